// Package pdcch implements the PDCCH CCE allocator: a per-CFI breadth-first
// tree of partial DCI assignments that avoids CCE collisions between
// simultaneously scheduled DCIs, plus the UE-specific and common-search-space
// candidate location tables it draws from (§4.2).
package pdcch

import (
	"github.com/go-enb/sched/internal/bitset"
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/interfaces"
)

// Alloc is one concrete DCI placement: the RNTI it was allocated to (0 for
// common-space broadcast/paging), its CCE aggregation level, and the first
// CCE of the range it occupies.
type Alloc struct {
	RNTI uint16
	NCCE uint32
	L    int
}

// leaf is one node of the allocation tree: the cumulative CCE mask along
// this path, and the concrete allocations that produced it.
type leaf struct {
	mask   *bitset.Set
	allocs []Alloc
}

// maxLeaves bounds the tree width the way the source's tie-break does,
// pruning duplicate total masks so the search stays cheap (§4.2 item 3).
const maxLeaves = 64

// request is one DCI allocation request recorded for CFI-raise replay.
type request struct {
	rnti       uint16
	l          int
	candidates []uint32
}

// Allocator is the PDCCH CCE tree allocator for a single cell, rebuilt
// once per TTI. It tracks, per CFI, the set of distinct achievable CCE
// masks ("leaves") and replays the ordered DCI record list when the CFI
// must be raised to find room (§4.2 item 4).
type Allocator struct {
	nCCEByCFI [constants.MaxCFI + 1]uint32 // index by cfi 1..3
	cfi       int
	maxCFI    int
	leaves    []leaf
	records   []request
	log       interfaces.Logger
}

// New returns an allocator for a cell whose CCE count per CFI is given by
// nCCEByCFI (indexed 1..3; index 0 is unused).
func New(nCCEByCFI [constants.MaxCFI + 1]uint32, log interfaces.Logger) *Allocator {
	return &Allocator{nCCEByCFI: nCCEByCFI, maxCFI: constants.MaxCFI, log: log}
}

// NewTTI resets the allocator for a fresh subframe, starting at the
// minimum CFI.
func (a *Allocator) NewTTI() {
	a.cfi = constants.MinCFI
	a.records = nil
	a.resetTree()
}

func (a *Allocator) resetTree() {
	nCCE := a.nCCEByCFI[a.cfi]
	a.leaves = []leaf{{mask: bitset.New(constants.MaxCCEs, int(nCCE), true, a.log)}}
}

// CFI returns the CFI currently in force for this subframe.
func (a *Allocator) CFI() int { return a.cfi }

// CurrentNCCE returns the CCE count available at the CFI currently in
// force, used by callers that need to (re)compute candidate tables after
// the allocator has raised the CFI.
func (a *Allocator) CurrentNCCE() uint32 { return a.nCCEByCFI[a.cfi] }

// AllocDCI requests a DCI placement for rnti (0 for common space) at
// aggregation level l, drawn from the given precomputed candidate start
// positions. Candidates that would collide with the UE's periodic SR
// PUCCH resource must already be excluded by the caller (§4.2 invariant).
//
// On dci_collision the allocator has already raised the CFI as far as it
// can and replayed every prior request; a further retry by the caller is
// pointless within this TTI.
func (a *Allocator) AllocDCI(rnti uint16, l int, candidates []uint32) (interfaces.AllocOutcome, Alloc) {
	req := request{rnti: rnti, l: l, candidates: candidates}
	if ok, alloc := a.tryAdd(req); ok {
		a.records = append(a.records, req)
		return interfaces.OutcomeSuccess, alloc
	}

	for a.cfi < a.maxCFI {
		a.cfi++
		a.resetTree()
		ok := a.replayAll(a.records)
		if !ok {
			continue
		}
		if ok, alloc := a.tryAdd(req); ok {
			a.records = append(a.records, req)
			return interfaces.OutcomeSuccess, alloc
		}
	}
	return interfaces.OutcomeDCICollision, Alloc{}
}

// replayAll rebuilds the tree at the current CFI by re-adding every prior
// request in order; it fails if any of them no longer fits (which would
// mean the caller must raise the CFI again).
func (a *Allocator) replayAll(reqs []request) bool {
	for _, r := range reqs {
		if ok, _ := a.tryAdd(r); !ok {
			return false
		}
	}
	return true
}

// tryAdd extends every current leaf with every candidate for req,
// discards combinations that collide, dedupes identical resulting masks,
// and — on success — adopts the new leaf set.
func (a *Allocator) tryAdd(req request) (bool, Alloc) {
	var next []leaf
	seen := map[string]bool{}

	for _, lf := range a.leaves {
		for _, s := range req.candidates {
			start, end := int(s), int(s)+req.l
			if end > lf.mask.Size() {
				continue
			}
			if lf.mask.AnyRange(start, end) {
				continue
			}
			nm := lf.mask.Clone()
			nm.Fill(start, end, true)
			key := nm.String()
			if seen[key] {
				continue
			}
			seen[key] = true

			allocs := make([]Alloc, len(lf.allocs)+1)
			copy(allocs, lf.allocs)
			allocs[len(lf.allocs)] = Alloc{RNTI: req.rnti, NCCE: s, L: req.l}
			next = append(next, leaf{mask: nm, allocs: allocs})
			if len(next) >= maxLeaves {
				break
			}
		}
		if len(next) >= maxLeaves {
			break
		}
	}

	if len(next) == 0 {
		return false, Alloc{}
	}
	a.leaves = next
	last := next[0].allocs[len(next[0].allocs)-1]
	return true, last
}

// Result returns one maximal leaf's allocations: the concrete {ncce, L}
// chosen for every DCI requested so far this TTI (§4.2 "at result-emission
// time the allocator picks any one maximal leaf").
func (a *Allocator) Result() []Alloc {
	if len(a.leaves) == 0 {
		return nil
	}
	best := a.leaves[0]
	for _, lf := range a.leaves[1:] {
		if len(lf.allocs) > len(best.allocs) {
			best = lf
		}
	}
	return best.allocs
}

// TotalMask returns the cumulative CCE mask of the chosen result leaf, for
// auditing (§3 "Subframe scheduling result").
func (a *Allocator) TotalMask() *bitset.Set {
	if len(a.leaves) == 0 {
		return nil
	}
	best := a.leaves[0]
	for _, lf := range a.leaves[1:] {
		if len(lf.allocs) > len(best.allocs) {
			best = lf
		}
	}
	return best.mask
}
