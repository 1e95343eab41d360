// Package rrm implements the round-robin DL/UL scheduling metric: UE
// iteration order, retransmission-first allocation, new-tx sizing from
// pending logical-channel data, and the MCS/TBS sizing functions that
// convert RBG/PRB counts into transport-block bytes (§4.6).
package rrm

// mcsForCQI maps a wideband CQI report to a conservative MCS index, a
// simplified stand-in for the 36.213 CQI-to-MCS mapping tables (the exact
// tables are PHY link-adaptation data not present in the retrieved
// reference sources; this keeps MCS monotonic in CQI and bounded by the
// UE's configured maximum, which is all the scheduling logic above it
// depends on).
func mcsForCQI(cqi uint32, maxMCS uint32) int {
	mcs := int(cqi) * 2
	if mcs > int(maxMCS) {
		mcs = int(maxMCS)
	}
	if mcs < 0 {
		mcs = 0
	}
	return mcs
}

// spectralEfficiency approximates bytes-per-resource-unit at a given MCS,
// monotonically increasing from MCS 0 to 28.
func spectralEfficiency(mcs int) int {
	// bytes per RBG (12 subcarriers x 7 symbols, 2 slots) scaled by MCS.
	return 8 + mcs*6
}

// dlTBSForRBG returns the approximate transport-block size in bytes for
// nRBG resource-block-groups at the given MCS.
func dlTBSForRBG(nRBG, mcs int) int {
	if nRBG <= 0 {
		return 0
	}
	return nRBG * spectralEfficiency(mcs)
}

// rbgNeededForBytes returns the minimum number of RBGs whose TBS at mcs
// would cover nBytes, capped at maxRBG.
func rbgNeededForBytes(nBytes, mcs, maxRBG int) int {
	per := spectralEfficiency(mcs)
	if per <= 0 {
		return maxRBG
	}
	need := (nBytes + per - 1) / per
	if need > maxRBG {
		need = maxRBG
	}
	if need < 1 {
		need = 1
	}
	return need
}

// ulTBSForPRB returns the approximate UL transport-block size for nPRB
// PRBs at the given MCS.
func ulTBSForPRB(nPRB, mcs int) int {
	if nPRB <= 0 {
		return 0
	}
	return nPRB * (6 + mcs*4)
}

// ULTBSForPRB is the exported form of ulTBSForPRB, for callers outside
// this package that need to estimate a UL grant's TBS from the same
// formula (e.g. Msg3 HARQ bookkeeping).
func ULTBSForPRB(nPRB, mcs int) int { return ulTBSForPRB(nPRB, mcs) }

// MCSForCQI is the exported form of mcsForCQI, for callers that finalize
// a DL/UL HARQ transmission after this package has already chosen the
// allocation's RBG/PRB span.
func MCSForCQI(cqi uint32, maxMCS uint32) int { return mcsForCQI(cqi, maxMCS) }

// DLTBSForRBG is the exported form of dlTBSForRBG, for callers sizing the
// MAC PDU for a DL allocation after grid placement has succeeded.
func DLTBSForRBG(nRBG, mcs int) int { return dlTBSForRBG(nRBG, mcs) }

// prbNeededForBytes returns the minimum PRB count whose UL TBS at mcs
// would cover nBytes.
func prbNeededForBytes(nBytes, mcs, maxPRB int) int {
	per := 6 + mcs*4
	if per <= 0 {
		return maxPRB
	}
	need := (nBytes + per - 1) / per
	if need > maxPRB {
		need = maxPRB
	}
	if need < 1 {
		need = 1
	}
	return need
}
