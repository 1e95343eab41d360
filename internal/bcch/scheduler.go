// Package bcch implements the broadcast and paging scheduler: SIB window
// computation with a per-period transmission cap, and the paging
// allocation that reuses the same broadcast allocation path (§4.4). SIB1
// goes out at each of its opportunities up to the cap; a SIB with index > 0
// is sent only in the first subframe of its window, once per period, and is
// not repeated elsewhere in the window.
package bcch

import (
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/wire"
)

// SIBConfig is the static per-SIB configuration (§3 "cell_cfg_sib_t").
type SIBConfig struct {
	Index       int
	LenBytes    int
	SIWindowMS  uint32 // ignored for SIB1, whose window is fixed
	PeriodRF    uint32 // ignored for SIB1 (fixed at SIB1PeriodRF)
}

// sibState tracks one SIB's per-period transmission progress.
type sibState struct {
	cfg      SIBConfig
	nTx      int
	lastSFN  uint32 // -1 sentinel via hasLast
	hasLast  bool
}

// Scheduler is the BCCH/PCCH scheduler for one cell: one state machine per
// configured SIB, replayed each TTI to decide whether a (re)transmission
// opportunity falls in the current subframe (§4.4).
type Scheduler struct {
	sibs []sibState
	obs  interfaces.Observer
	log  interfaces.Logger

	pendingPage *pagingReq
}

type pagingReq struct {
	payloadLen int
}

// New returns a BCCH/PCCH scheduler configured with the given SIBs.
func New(sibs []SIBConfig, obs interfaces.Observer, log interfaces.Logger) *Scheduler {
	if obs == nil {
		obs = interfaces.NoOpObserver{}
	}
	s := &Scheduler{obs: obs, log: log}
	for _, c := range sibs {
		s.sibs = append(s.sibs, sibState{cfg: c})
	}
	return s
}

// QueuePaging records a paging opportunity RRC wants transmitted at the
// current TTI.
func (s *Scheduler) QueuePaging(payloadLen int) { s.pendingPage = &pagingReq{payloadLen: payloadLen} }

// inSIB1Window reports whether now falls in a SIB1 transmission window:
// subframe 5 of every even SFN (§4.4).
func inSIB1Window(now tti.Point) bool {
	return now.SfIdx() == constants.SIB1SfIdx && now.SFN()%constants.SIB1PeriodRF == 0
}

// windowFor computes the (sfnMod, sfIdx, lengthMS) window for SIB index i>0.
func windowFor(i int, siWindowMS uint32) (sfnMod, sfIdx, length uint32) {
	start := uint32(i-1) * siWindowMS
	return start / 10, start % 10, siWindowMS
}

// Schedule examines every configured SIB plus any pending paging request
// and returns the BCCH/PCCH allocations due this TTI, requesting PDCCH
// common-space DCIs and RBG reservations from g as it goes.
func (s *Scheduler) Schedule(now tti.Point, g *grid.Grid, commonCandidates func(aggr int) []uint32) []wire.BCAlloc {
	var out []wire.BCAlloc

	for i := range s.sibs {
		if alloc, ok := s.tryScheduleSIB(now, &s.sibs[i], g, commonCandidates); ok {
			out = append(out, alloc)
		}
	}

	if s.pendingPage != nil {
		if alloc, ok := s.tryAllocBC(now, wire.PCCH, 0, s.pendingPage.payloadLen, 0, g, commonCandidates); ok {
			out = append(out, alloc)
		}
		s.pendingPage = nil
	}

	return out
}

func (s *Scheduler) tryScheduleSIB(now tti.Point, st *sibState, g *grid.Grid, commonCandidates func(int) []uint32) (wire.BCAlloc, bool) {
	var inWindow bool
	var periodRF uint32

	if st.cfg.Index == 0 {
		inWindow = inSIB1Window(now)
		periodRF = constants.SIB1PeriodRF * constants.MaxSIBTxPerPeriod
	} else {
		sfnMod, sfIdx, _ := windowFor(st.cfg.Index, st.cfg.SIWindowMS)
		periodRF = st.cfg.PeriodRF
		inWindow = now.SFN()%periodRF == sfnMod && now.SfIdx() == sfIdx
	}

	if !inWindow {
		return wire.BCAlloc{}, false
	}

	// New period: reset the per-period transmission counter.
	periodStart := now.SFN() / periodRF
	if !st.hasLast || st.lastSFN != periodStart {
		st.nTx = 0
		st.hasLast = true
		st.lastSFN = periodStart
	}
	if st.nTx >= constants.MaxSIBTxPerPeriod {
		return wire.BCAlloc{}, false
	}

	return s.tryAllocSIB(now, st, g, commonCandidates)
}

func (s *Scheduler) tryAllocSIB(now tti.Point, st *sibState, g *grid.Grid, commonCandidates func(int) []uint32) (wire.BCAlloc, bool) {
	// RV cycles 0,2,3,1 across successive (re)transmissions of the same SIB
	// within a period; st.nTx still holds the prior-transmission count here.
	rv := constants.RVSequence[st.nTx%len(constants.RVSequence)]
	alloc, ok := s.tryAllocBC(now, wire.BCCH, st.cfg.Index, st.cfg.LenBytes, rv, g, commonCandidates)
	if ok {
		st.nTx++
	}
	return alloc, ok
}

func (s *Scheduler) tryAllocBC(now tti.Point, kind wire.BCType, index, lenBytes, rv int, g *grid.Grid, commonCandidates func(int) []uint32) (wire.BCAlloc, bool) {
	const aggr = constants.AggrLevel4
	minRBG, maxRBG := 1, constants.BCCtrlPRBs
	mask, ok := g.FindDLAllocation(minRBG, maxRBG)
	if !ok {
		s.obs.ObserveSIBSkip()
		return wire.BCAlloc{}, false
	}
	allocKind := interfaces.AllocDLBroadcast
	if kind == wire.PCCH {
		allocKind = interfaces.AllocDLPaging
	}
	outcome, pdcchAlloc := g.AllocCtrl(allocKind, mask, commonCandidates(aggr), aggr)
	s.obs.ObserveAllocation(allocKind, outcome)
	if !outcome.OK() {
		if s.log != nil {
			s.log.Warn("bc allocation failed", "kind", kind, "index", index, "outcome", outcome.String())
		}
		return wire.BCAlloc{}, false
	}
	return wire.BCAlloc{
		Type:     kind,
		Index:    index,
		TBS:      lenBytes,
		RV:       rv,
		Location: wire.DCILocation{NCCE: pdcchAlloc.NCCE, L: pdcchAlloc.L},
	}, true
}
