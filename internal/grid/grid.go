// Package grid implements the per-subframe resource grid: the DL RBG mask,
// the UL PRB mask, and the PDCCH CCE allocator they share, plus the
// collected scheduling result for the TTI (§3 "Subframe scheduling
// result", §4.1, §4.2).
package grid

import (
	"github.com/go-enb/sched/internal/bitset"
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/pdcch"
)

// DLAlloc is one concrete DL data allocation for this TTI.
type DLAlloc struct {
	RNTI   uint16
	Pid    uint32
	Mask   *bitset.Set
	DCI    pdcch.Alloc
	NewData bool
}

// ULAlloc is one concrete UL grant for this TTI.
type ULAlloc struct {
	RNTI     uint16
	Pid      uint32
	RBStart  int
	L        int
	DCI      pdcch.Alloc
	Adaptive bool
}

// CtrlAlloc is a control-region allocation (BCCH/PCCH/RAR) that consumes
// RBGs but carries no per-UE HARQ process.
type CtrlAlloc struct {
	Kind interfaces.AllocKind
	Mask *bitset.Set
	DCI  pdcch.Alloc
}

// Grid is the resource grid for a single subframe on a single carrier: DL
// RBG mask, UL PRB mask, and the PDCCH allocator they draw DCIs from.
type Grid struct {
	nRBG int
	nPRB int

	dlMask *bitset.Set
	ulMask *bitset.Set
	pdcch  *pdcch.Allocator

	dlAllocRNTI map[uint16]bool
	ulAllocRNTI map[uint16]bool

	Ctrl []CtrlAlloc
	DL   []DLAlloc
	UL   []ULAlloc

	log interfaces.Logger
}

// New returns a Grid sized for nRBG DL resource-block-groups and nPRB UL
// physical resource blocks, with the given per-CFI CCE counts.
func New(nRBG, nPRB int, nCCEByCFI [constants.MaxCFI + 1]uint32, log interfaces.Logger) *Grid {
	return &Grid{
		nRBG:  nRBG,
		nPRB:  nPRB,
		pdcch: pdcch.New(nCCEByCFI, log),
		log:   log,
	}
}

// NewTTI resets the grid for a fresh subframe.
func (g *Grid) NewTTI() {
	g.dlMask = bitset.New(constants.MaxRBGs, g.nRBG, false, g.log)
	g.ulMask = bitset.New(constants.MaxPRBs, g.nPRB, false, g.log)
	g.pdcch.NewTTI()
	g.dlAllocRNTI = map[uint16]bool{}
	g.ulAllocRNTI = map[uint16]bool{}
	g.Ctrl = nil
	g.DL = nil
	g.UL = nil
}

// DLMask returns the current cumulative DL RBG mask.
func (g *Grid) DLMask() *bitset.Set { return g.dlMask }

// ULMask returns the current cumulative UL PRB mask.
func (g *Grid) ULMask() *bitset.Set { return g.ulMask }

// CFI returns the CFI currently in force after any PDCCH-driven raises.
func (g *Grid) CFI() int { return g.pdcch.CFI() }

// CurrentNCCE returns the CCE count available at the CFI currently in force.
func (g *Grid) CurrentNCCE() uint32 { return g.pdcch.CurrentNCCE() }

// IsDLAlloc reports whether rnti already has a DL allocation this TTI
// (§4.1 invariant: at most one DL allocation per UE per TTI).
func (g *Grid) IsDLAlloc(rnti uint16) bool { return g.dlAllocRNTI[rnti] }

// IsULAlloc reports whether rnti already has a UL allocation this TTI.
func (g *Grid) IsULAlloc(rnti uint16) bool { return g.ulAllocRNTI[rnti] }

// FindDLAllocation takes up to maxRBG free RBGs in index order and fails
// if fewer than minRBG are free, matching the source's find_allocation.
// The RBGs returned are the first free ones found and need not be
// contiguous.
func (g *Grid) FindDLAllocation(minRBG, maxRBG int) (*bitset.Set, bool) {
	if g.dlMask.All() {
		return nil, false
	}
	local := g.dlMask.Not()
	i, count := 0, 0
	for ; i < local.Size() && count < maxRBG; i++ {
		if local.Test(i) {
			count++
		}
	}
	if count < minRBG {
		return nil, false
	}
	local.Fill(i, local.Size(), false)
	return local, true
}

// AllocDLUser reserves mask for rnti's DL process pid and requests a
// matching PDCCH DCI from candidates. On success the RBG mask is merged
// into the grid's cumulative DL mask.
func (g *Grid) AllocDLUser(rnti uint16, mask *bitset.Set, pid uint32, candidates []uint32, aggrLevel int) (interfaces.AllocOutcome, pdcch.Alloc) {
	if g.dlMask.AnyRange(0, mask.Size()) && maskOverlap(g.dlMask, mask) {
		return interfaces.OutcomeRBCollision, pdcch.Alloc{}
	}
	outcome, alloc := g.pdcch.AllocDCI(rnti, aggrLevel, candidates)
	if !outcome.OK() {
		return outcome, pdcch.Alloc{}
	}
	g.dlMask.OrInPlace(mask)
	g.dlAllocRNTI[rnti] = true
	g.DL = append(g.DL, DLAlloc{RNTI: rnti, Pid: pid, Mask: mask, DCI: alloc})
	return interfaces.OutcomeSuccess, alloc
}

// AllocULUser reserves [rbStart, rbStart+l) for rnti's UL process pid. A
// non-adaptive retx (same PRBs as before, no DCI required) is requested
// with candidates == nil.
func (g *Grid) AllocULUser(rnti uint16, pid uint32, rbStart, l int, candidates []uint32, aggrLevel int) (interfaces.AllocOutcome, pdcch.Alloc) {
	if g.ulMask.AnyRange(rbStart, rbStart+l) {
		return interfaces.OutcomeRBCollision, pdcch.Alloc{}
	}
	var alloc pdcch.Alloc
	if candidates != nil {
		outcome, a := g.pdcch.AllocDCI(rnti, aggrLevel, candidates)
		if !outcome.OK() {
			return outcome, pdcch.Alloc{}
		}
		alloc = a
	}
	g.ulMask.Fill(rbStart, rbStart+l, true)
	g.ulAllocRNTI[rnti] = true
	g.UL = append(g.UL, ULAlloc{RNTI: rnti, Pid: pid, RBStart: rbStart, L: l, DCI: alloc, Adaptive: candidates != nil})
	return interfaces.OutcomeSuccess, alloc
}

// AllocCtrl reserves mask for a control-region allocation (BCCH/PCCH/RAR)
// and requests its common-search-space DCI.
func (g *Grid) AllocCtrl(kind interfaces.AllocKind, mask *bitset.Set, candidates []uint32, aggrLevel int) (interfaces.AllocOutcome, pdcch.Alloc) {
	outcome, alloc := g.pdcch.AllocDCI(0, aggrLevel, candidates)
	if !outcome.OK() {
		return outcome, pdcch.Alloc{}
	}
	g.dlMask.OrInPlace(mask)
	g.Ctrl = append(g.Ctrl, CtrlAlloc{Kind: kind, Mask: mask, DCI: alloc})
	return interfaces.OutcomeSuccess, alloc
}

// FindULAllocation scans for L contiguous free PRBs starting from the
// lowest free index, trimming to a dft-precoding-valid width (§4.6
// "Uplink Metric": SC-FDMA requires PRB counts with only 2,3,5 as prime
// factors).
func (g *Grid) FindULAllocation(l int) (rbStart, got int, ok bool) {
	used := g.ulMask
	start, length := 0, 0
	for n := 0; n < used.Size() && length < l; n++ {
		if !used.Test(n) && length == 0 {
			start = n
		}
		if !used.Test(n) {
			length++
		} else if length > 0 {
			if n < 3 {
				start, length = 0, 0
			} else {
				break
			}
		}
	}
	if length == 0 {
		return 0, 0, false
	}
	for length > 0 && !validULPRB(length) {
		length--
	}
	return start, length, length == l
}

// validULPRB reports whether n is a legal SC-FDMA PRB allocation width:
// its prime factorisation contains only 2, 3, 5 (DFT-precoding support).
func validULPRB(n int) bool {
	if n <= 0 {
		return false
	}
	for _, p := range []int{2, 3, 5} {
		for n%p == 0 {
			n /= p
		}
	}
	return n == 1
}

func maskOverlap(a, b *bitset.Set) bool {
	c := a.Clone()
	c.AndInPlace(b)
	return c.Any()
}
