package pdcch

import "github.com/go-enb/sched/internal/constants"

// aggrIdx maps an aggregation level {1,2,4,8} to its index 0..3, mirroring
// sched_dci_cce_t's cce_start[4][6] layout (4 aggregation levels, up to 6
// candidate locations each).
func aggrIdx(l int) int {
	switch l {
	case constants.AggrLevel1:
		return 0
	case constants.AggrLevel2:
		return 1
	case constants.AggrLevel4:
		return 2
	default:
		return 3
	}
}

// nofCandidates is the UE-specific search-space candidate count per
// aggregation level (TS 36.213 Table 9.1.1-1).
func nofCandidates(l int) int {
	switch l {
	case constants.AggrLevel1, constants.AggrLevel2:
		return 6
	case constants.AggrLevel4:
		return 2
	default:
		return 2
	}
}

// CandidateTable holds the precomputed PDCCH candidate start positions for
// one (CFI, subframe, RNTI) triple, indexed by aggregation-level index
// 0..3 (L=1,2,4,8). Ported from sched_dci_cce_t: a fixed-size array rather
// than a slice, since the candidate count per level is bounded and known.
type CandidateTable struct {
	Starts [4][6]uint32
	NofLoc [4]int
}

// StartsFor returns the candidate CCE start positions for aggregation
// level l.
func (c *CandidateTable) StartsFor(l int) []uint32 {
	idx := aggrIdx(l)
	return c.Starts[idx][:c.NofLoc[idx]]
}

// yk implements the TS 36.213 §9.1.1 recursive pseudo-random sequence used
// to derive the UE-specific search space, Y_k = (A * Y_{k-1}) mod D, seeded
// by the RNTI and iterated once per subframe.
func yk(rnti uint16, sfIdx uint32) uint32 {
	const a = 39827
	const d = 65537
	y := uint32(rnti)
	for i := uint32(0); i <= sfIdx; i++ {
		y = (a * y) % d
	}
	return y
}

// ComputeUECandidates derives the UE-specific PDCCH candidate table for
// rnti at subframe sfIdx, given nCCE available CCEs at the current CFI
// (§4.2 item 1: "candidate start positions ... depends on (RNTI, sf_idx,
// CFI)").
func ComputeUECandidates(rnti uint16, sfIdx uint32, nCCE uint32) CandidateTable {
	var t CandidateTable
	y := yk(rnti, sfIdx)
	for _, l := range []int{constants.AggrLevel1, constants.AggrLevel2, constants.AggrLevel4, constants.AggrLevel8} {
		idx := aggrIdx(l)
		if nCCE < uint32(l) {
			continue
		}
		nCL := nCCE / uint32(l)
		m := nofCandidates(l)
		seen := map[uint32]bool{}
		n := 0
		for i := 0; i < m && n < len(t.Starts[idx]); i++ {
			start := uint32(l) * ((y + uint32(i)) % nCL)
			if seen[start] {
				continue
			}
			seen[start] = true
			t.Starts[idx][n] = start
			n++
		}
		t.NofLoc[idx] = n
	}
	return t
}

// CommonCandidates derives the common-search-space candidate table, used
// for broadcast, paging, and RAR DCIs, which does not depend on RNTI (TS
// 36.213 §9.1.1 Table 9.1.1-1: aggregation levels 4 and 8 only, 4 and 2
// candidates respectively).
func CommonCandidates(nCCE uint32) CandidateTable {
	var t CandidateTable
	for _, spec := range []struct {
		l int
		m int
	}{{constants.AggrLevel4, 4}, {constants.AggrLevel8, 2}} {
		idx := aggrIdx(spec.l)
		if nCCE < uint32(spec.l) {
			continue
		}
		nCL := nCCE / uint32(spec.l)
		n := 0
		for i := 0; i < spec.m && n < len(t.Starts[idx]); i++ {
			start := uint32(spec.l) * (uint32(i) % nCL)
			t.Starts[idx][n] = start
			n++
		}
		t.NofLoc[idx] = n
	}
	return t
}
