package rrm

import (
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/uestate"
)

// CellScheduler bundles the DL and UL round-robin metrics for one carrier
// index, the unit the grid/cell scheduler drives once per TTI (§4.6).
type CellScheduler struct {
	DL *DLScheduler
	UL *ULScheduler
}

// NewCellScheduler returns a DL+UL round-robin pair for carrier ccIndex.
func NewCellScheduler(ccIndex int, obs interfaces.Observer, log interfaces.Logger) *CellScheduler {
	return &CellScheduler{
		DL: NewDLScheduler(ccIndex, obs, log),
		UL: NewULScheduler(ccIndex, obs, log),
	}
}

// Run allocates DL and UL resources for every UE on this carrier for the
// current TTI, given the DL transmission TTI and the UL grant TTI.
func (s *CellScheduler) Run(txDL, txUL tti.Point, ues map[uint16]*uestate.UE, g *grid.Grid) {
	s.DL.SchedUsers(txDL, ues, g)
	s.UL.SchedUsers(txUL, ues, g)
}
