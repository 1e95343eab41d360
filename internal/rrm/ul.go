package rrm

import (
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/harq"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/uestate"
)

// ULScheduler is the round-robin UL allocation metric for one carrier
// (§4.6 "Uplink Metric": ul_metric_rr). It allocates retransmissions in a
// first pass and new transmissions in a second, both starting from a
// TTI-rotated UE offset interleaved with the DL pass.
type ULScheduler struct {
	ccIndex int
	obs     interfaces.Observer
	log     interfaces.Logger
}

// NewULScheduler returns a UL round-robin scheduler for carrier ccIndex.
func NewULScheduler(ccIndex int, obs interfaces.Observer, log interfaces.Logger) *ULScheduler {
	if obs == nil {
		obs = interfaces.NoOpObserver{}
	}
	return &ULScheduler{ccIndex: ccIndex, obs: obs, log: log}
}

// SchedUsers allocates UL grants for every UE on this carrier: every
// pending retx first, then new transmissions, both in round-robin order
// offset by half the UE count so DL and UL starting points interleave
// (§4.6).
func (s *ULScheduler) SchedUsers(txUL tti.Point, ues map[uint16]*uestate.UE, g *grid.Grid) {
	if len(ues) == 0 {
		return
	}
	rntis := sortedRNTIs(ues)
	priorityIdx := (int(txUL.Uint32()) + len(rntis)/2) % len(rntis)

	for i := 0; i < len(rntis); i++ {
		rnti := rntis[(priorityIdx+i)%len(rntis)]
		s.allocateRetx(txUL, ues[rnti], g)
	}
	for i := 0; i < len(rntis); i++ {
		rnti := rntis[(priorityIdx+i)%len(rntis)]
		s.allocateNewtx(txUL, ues[rnti], g)
	}
}

func (s *ULScheduler) allocateRetx(txUL tti.Point, u *uestate.UE, g *grid.Grid) {
	if g.IsULAlloc(u.RNTI) || !u.CanScheduleUL(s.ccIndex) {
		return
	}
	c := u.Carrier(s.ccIndex)
	h := c.HarqEnt.GetUL(txUL)
	if !h.HasPendingRetx() {
		return
	}
	alloc := h.Alloc()

	outcome := s.tryAllocUL(u, g, h, txUL, alloc.RBStart, alloc.L)
	if outcome.OK() || outcome == interfaces.OutcomeDCICollision {
		if !outcome.OK() {
			s.warnf(u.RNTI, "ul retx")
		}
		return
	}

	if rbStart, got, ok := g.FindULAllocation(alloc.L); ok && got > 0 {
		outcome := s.tryAllocUL(u, g, h, txUL, rbStart, got)
		if !outcome.OK() && outcome == interfaces.OutcomeDCICollision {
			s.warnf(u.RNTI, "ul retx")
		}
	}
}

func (s *ULScheduler) allocateNewtx(txUL tti.Point, u *uestate.UE, g *grid.Grid) {
	if g.IsULAlloc(u.RNTI) || !u.CanScheduleUL(s.ccIndex) {
		return
	}
	c := u.Carrier(s.ccIndex)
	h := c.HarqEnt.GetUL(txUL)
	pending := u.PendingULBytes()
	if !h.IsEmptyTB(0) || pending <= 0 {
		return
	}

	mcs := mcsForCQI(c.ULCQI, c.MaxMCSForUL())
	needed := prbNeededForBytes(pending, mcs, g.ULMask().MaxSize())
	rbStart, got, _ := g.FindULAllocation(needed)
	if got <= 0 {
		return
	}
	outcome := s.tryAllocULNewTx(u, g, h, txUL, rbStart, got, mcs)
	if !outcome.OK() && outcome == interfaces.OutcomeDCICollision {
		s.warnf(u.RNTI, "ul newtx")
	}
}

func (s *ULScheduler) tryAllocUL(u *uestate.UE, g *grid.Grid, h *harq.ULProcess, txUL tti.Point, rbStart, l int) interfaces.AllocOutcome {
	c := u.Carrier(s.ccIndex)
	var candidates []uint32
	if prev := h.Alloc(); prev.RBStart != rbStart || prev.L != l {
		candTbl := c.CandidatesFor(u.RNTI, 0, 0, g.CurrentNCCE())
		candidates = candTbl.StartsFor(2)
	}
	outcome, _ := g.AllocULUser(u.RNTI, h.ID(), rbStart, l, candidates, 2)
	if outcome.OK() {
		h.NewRetx(txUL, harq.UlAlloc{RBStart: rbStart, L: l})
	}
	s.obs.ObserveAllocation(interfaces.AllocULData, outcome)
	return outcome
}

func (s *ULScheduler) tryAllocULNewTx(u *uestate.UE, g *grid.Grid, h *harq.ULProcess, txUL tti.Point, rbStart, l, mcs int) interfaces.AllocOutcome {
	c := u.Carrier(s.ccIndex)
	candTbl := c.CandidatesFor(u.RNTI, 0, 0, g.CurrentNCCE())
	outcome, _ := g.AllocULUser(u.RNTI, h.ID(), rbStart, l, candTbl.StartsFor(2), 2)
	if outcome.OK() {
		tbs := ulTBSForPRB(l, mcs)
		h.NewTx(txUL, mcs, tbs, harq.UlAlloc{RBStart: rbStart, L: l}, constants.DefaultMaxRetx)
	}
	s.obs.ObserveAllocation(interfaces.AllocULData, outcome)
	return outcome
}

func (s *ULScheduler) warnf(rnti uint16, what string) {
	if s.log != nil {
		s.log.Warn("couldn't find space in pdcch", "rnti", rnti, "what", what)
	}
}
