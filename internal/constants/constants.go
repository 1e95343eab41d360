// Package constants holds the fixed numeric parameters of the LTE MAC
// scheduler: TTI wraparound, HARQ process counts, RV cycling, and the
// resource-grid sizes the rest of the tree builds on.
package constants

import "time"

// TTI / frame timing.
const (
	// NumTTI is the modulo used by the TTI counter (10240 TTIs = 1024 SFNs).
	NumTTI = 10240

	// FDDHarqDelayUL is the UL HARQ processing delay: rx -> tx_dl.
	FDDHarqDelayUL = 4
	// FDDHarqDelayDL is the DL HARQ processing delay: tx_dl -> tx_ul (ACK).
	FDDHarqDelayDL = 4

	// SfIdxPerFrame is the number of subframes per radio frame.
	SfIdxPerFrame = 10
)

// HARQ.
const (
	// NumDLHarq is the number of DL HARQ processes per UE per carrier (async).
	NumDLHarq = 8
	// NumULHarq is the number of UL HARQ processes per UE per carrier (sync).
	NumULHarq = 8
	// MaxTB is the maximum number of transport blocks per HARQ process (2x2 MIMO).
	MaxTB = 2
	// DefaultMaxRetx is the default max number of HARQ retransmissions: a TB
	// survives 3 retransmissions and is discarded on the 4th NACK.
	DefaultMaxRetx = 4
	// ULHarqRoundTripTTIs is the fixed UL synchronous HARQ round trip.
	ULHarqRoundTripTTIs = 8
)

// RVSequence is the fixed redundancy-version cycle indexed by retx count mod 4.
var RVSequence = [4]int{0, 2, 3, 1}

// Resource grid.
const (
	// MaxRBGs bounds the DL resource-block-group mask capacity (110 PRB / P=1 worst case).
	MaxRBGs = 32
	// MaxPRBs bounds the UL PRB mask capacity at 20 MHz (110 PRB incl. margin).
	MaxPRBs = 110
	// MaxCCEs bounds the PDCCH CCE mask capacity at CFI=3, 20 MHz.
	MaxCCEs = 88

	// RARCtrlPRBs is the number of PRBs reserved for a RAR allocation's control region sizing (3 PRB nominal).
	RARCtrlPRBs = 3
	// BCCtrlPRBs is the number of PRBs reserved for BCCH/PCCH control allocations.
	BCCtrlPRBs = 4
)

// PDCCH.
const (
	MaxCFI = 3
	MinCFI = 1

	// Aggregation levels: legal PDCCH aggregation levels.
	AggrLevel1 = 1
	AggrLevel2 = 2
	AggrLevel4 = 4
	AggrLevel8 = 8
)

// RAR / RACH.
const (
	// RARDelayTTIs is the minimum delay between PRACH reception and the RAR grant (tti_tx_dl >= prach_tti+3).
	RARDelayTTIs = 3
	// MaxRARGrants is the max number of Msg3 grants coalesced into one RAR PDU.
	MaxRARGrants = 8
	// Msg3DelayTTIs is the delay from the RAR grant TTI to the Msg3 PUSCH TTI.
	Msg3DelayTTIs = 6
	// RARSubheaderBytes is the size of one RAR content subheader+body.
	RARSubheaderBytes = 7
	// DefaultMaxMsg3Retx bounds Msg3 retransmissions absent explicit UE config.
	DefaultMaxMsg3Retx = 4
)

// Logical channels / MAC CEs.
const (
	NumLCIDs  = 11
	NumLCGs   = 4
	MinMACSDU = 5

	// ConResIDBytes is the size of the Contention Resolution ID MAC control element.
	ConResIDBytes = 6

	// LCID control-element codepoints, DL-SCH (36.321 Table 6.2.1-1).
	LCIDSCellActivation = 27
	LCIDConResID        = 28
	LCIDTACmd           = 29
	LCIDDRXCmd          = 30
	LCIDPadding         = 31

	// LCID control-element codepoints, UL-SCH (36.321 Table 6.2.1-2).
	LCIDPHR       = 26
	LCIDCRNTI     = 27
	LCIDTruncBSR  = 28
	LCIDShortBSR  = 29
	LCIDLongBSR   = 30
	LCIDULPadding = 31
)

// SIB / paging.
const (
	// SIB1PeriodRF is the fixed SIB1 repetition period in radio frames.
	SIB1PeriodRF = 2
	// SIB1SfIdx is the fixed subframe index carrying SIB1.
	SIB1SfIdx = 5
	// MaxSIBTxPerPeriod caps SIB (re)transmissions inside one scheduling period.
	MaxSIBTxPerPeriod = 4
	// PagingAggrLevel is the fixed aggregation level used for paging DCIs.
	PagingAggrLevel = AggrLevel4
)

// UL grant MCS sentinels (36.213).
const (
	// NonAdaptiveRetxMCSBase: non-adaptive UL retx MCS is encoded as 28+rv.
	NonAdaptiveRetxMCSBase = 28
	// UCIOnlyMCS is used for a zero-TB grant that only carries UCI (CQI/SR).
	UCIOnlyMCS = 29
	// UCIOnlyMaxPRB bounds the grant size for a UCI-only PUSCH allocation.
	UCIOnlyMaxPRB = 4
)

// Timing budgets the driver/config layers use; not consumed by the
// real-time core itself (which never blocks), only by simulation tooling.
const (
	DefaultTTIPeriod = time.Millisecond
)
