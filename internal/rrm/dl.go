package rrm

import (
	"sort"

	"github.com/go-enb/sched/internal/bitset"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/uestate"
)

// DLScheduler is the round-robin DL allocation metric for one carrier
// (§4.6 "Downlink Metric": dl_metric_rr).
type DLScheduler struct {
	ccIndex int
	obs     interfaces.Observer
	log     interfaces.Logger
}

// NewDLScheduler returns a DL round-robin scheduler for carrier ccIndex.
func NewDLScheduler(ccIndex int, obs interfaces.Observer, log interfaces.Logger) *DLScheduler {
	if obs == nil {
		obs = interfaces.NoOpObserver{}
	}
	return &DLScheduler{ccIndex: ccIndex, obs: obs, log: log}
}

// SchedUsers allocates DL resources for every UE on this carrier, rotating
// the starting UE each TTI by tti_tx_dl mod len(ues) (§4.6).
func (s *DLScheduler) SchedUsers(txDL tti.Point, ues map[uint16]*uestate.UE, g *grid.Grid) {
	if len(ues) == 0 {
		return
	}
	rntis := sortedRNTIs(ues)
	priorityIdx := int(txDL.Uint32()) % len(rntis)

	for i := 0; i < len(rntis); i++ {
		rnti := rntis[(priorityIdx+i)%len(rntis)]
		s.allocateUser(txDL, ues[rnti], g)
	}
}

func (s *DLScheduler) allocateUser(txDL tti.Point, u *uestate.UE, g *grid.Grid) {
	if g.IsDLAlloc(u.RNTI) {
		return
	}
	if !u.CanScheduleDL(s.ccIndex) {
		return
	}
	c := u.Carrier(s.ccIndex)

	if h := c.HarqEnt.GetPendingDL(txDL); h != nil {
		retxMask := h.RBGMask()
		if retxMask != nil {
			outcome := s.tryAllocDL(u, g, retxMask, h.ID())
			if outcome.OK() {
				return
			}
			if outcome == interfaces.OutcomeDCICollision {
				s.warnf(u.RNTI, "dl retx")
				return
			}
			if mask, ok := g.FindDLAllocation(retxMask.Count(), retxMask.Count()); ok {
				outcome := s.tryAllocDL(u, g, mask, h.ID())
				if outcome.OK() || outcome == interfaces.OutcomeDCICollision {
					if !outcome.OK() {
						s.warnf(u.RNTI, "dl retx")
					}
					return
				}
			}
		}
	}

	h := c.HarqEnt.GetEmptyDL(txDL)
	if h == nil {
		return
	}
	pending := u.PendingDLBytes()
	if pending <= 0 {
		return
	}
	mcs := mcsForCQI(c.DLCQI, c.MaxMCSForDL())
	minRBG := rbgNeededForBytes(min(pending, dlTBSForRBG(1, mcs)), mcs, g.DLMask().MaxSize())
	maxRBG := rbgNeededForBytes(pending, mcs, g.DLMask().MaxSize())
	if minRBG < 1 {
		minRBG = 1
	}
	if maxRBG < minRBG {
		maxRBG = minRBG
	}
	mask, ok := g.FindDLAllocation(minRBG, maxRBG)
	if !ok {
		return
	}
	outcome := s.tryAllocDL(u, g, mask, h.ID())
	if !outcome.OK() && outcome == interfaces.OutcomeDCICollision {
		s.warnf(u.RNTI, "dl newtx")
	}
}

func (s *DLScheduler) tryAllocDL(u *uestate.UE, g *grid.Grid, mask *bitset.Set, pid uint32) interfaces.AllocOutcome {
	c := u.Carrier(s.ccIndex)
	sfIdx := uint32(0)
	nCCE := g.CurrentNCCE()
	candTbl := c.CandidatesFor(u.RNTI, 0, sfIdx, nCCE)
	aggr := c.AggrLevel(40)
	outcome, _ := g.AllocDLUser(u.RNTI, mask, pid, candTbl.StartsFor(aggr), aggr)
	s.obs.ObserveAllocation(interfaces.AllocDLData, outcome)
	return outcome
}

func (s *DLScheduler) warnf(rnti uint16, what string) {
	if s.log != nil {
		s.log.Warn("couldn't find space in pdcch", "rnti", rnti, "what", what)
	}
}

func sortedRNTIs(ues map[uint16]*uestate.UE) []uint16 {
	out := make([]uint16, 0, len(ues))
	for rnti := range ues {
		out = append(out, rnti)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
