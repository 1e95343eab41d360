package rrm

import (
	"testing"

	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/harq"
	"github.com/go-enb/sched/internal/lchan"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/uestate"
)

func testCarrierCfg() uestate.CarrierConfig {
	return uestate.CarrierConfig{MaxMCSDL: 28, MaxMCSUL: 28, FixedMCSDL: -1, FixedMCSUL: -1, MaxAggrLevel: 8, MaxHARQRetx: 3}
}

func testGrid() *grid.Grid {
	var nCCE [constants.MaxCFI + 1]uint32
	nCCE[1], nCCE[2], nCCE[3] = 16, 32, 48
	return grid.New(8, 25, nCCE, nil)
}

func TestDLSchedulerAllocatesNewTxForPendingData(t *testing.T) {
	u := uestate.NewUE(0x46, testCarrierCfg(), nil, nil)
	u.LChan.ConfigLCID(3, lchan.BearerConfig{Priority: 1, PBR: lchan.PBRInfinity, Direction: lchan.DirDL})
	u.LChan.DLBufferState(3, 500, 0)
	u.PCell().SetDLCQI(tti.New(0), 10)

	ues := map[uint16]*uestate.UE{u.RNTI: u}
	g := testGrid()
	g.NewTTI()

	sched := NewDLScheduler(0, nil, nil)
	sched.SchedUsers(tti.New(4), ues, g)

	if len(g.DL) != 1 {
		t.Fatalf("expected one dl allocation, got %d", len(g.DL))
	}
	if !g.IsDLAlloc(u.RNTI) {
		t.Fatal("expected rnti marked dl-allocated")
	}
}

func TestDLSchedulerSkipsUEWithNoPendingData(t *testing.T) {
	u := uestate.NewUE(0x46, testCarrierCfg(), nil, nil)
	ues := map[uint16]*uestate.UE{u.RNTI: u}
	g := testGrid()
	g.NewTTI()

	NewDLScheduler(0, nil, nil).SchedUsers(tti.New(4), ues, g)
	if len(g.DL) != 0 {
		t.Fatalf("expected no allocation with empty buffers, got %d", len(g.DL))
	}
}

func TestULSchedulerAllocatesNewTxForPendingBSR(t *testing.T) {
	u := uestate.NewUE(0x46, testCarrierCfg(), nil, nil)
	u.LChan.ConfigLCID(0, lchan.BearerConfig{Priority: 1, LCG: 0, Direction: lchan.DirUL})
	u.LChan.ULBSR(0, 200)
	u.PCell().SetULCQI(tti.New(0), 10)

	ues := map[uint16]*uestate.UE{u.RNTI: u}
	g := testGrid()
	g.NewTTI()

	NewULScheduler(0, nil, nil).SchedUsers(tti.New(8), ues, g)
	if len(g.UL) != 1 {
		t.Fatalf("expected one ul allocation, got %d", len(g.UL))
	}
}

func TestULSchedulerRetxTakesPriorityOverNewtx(t *testing.T) {
	u := uestate.NewUE(0x46, testCarrierCfg(), nil, nil)
	u.LChan.ConfigLCID(0, lchan.BearerConfig{Priority: 1, LCG: 0, Direction: lchan.DirUL})
	u.LChan.ULBSR(0, 500)

	ues := map[uint16]*uestate.UE{u.RNTI: u}
	g := testGrid()
	g.NewTTI()

	txUL := tti.New(8)
	h := u.PCell().HarqEnt.GetUL(txUL)
	h.NewTx(txUL.Sub32(8), 5, 40, harq.UlAlloc{RBStart: 0, L: 4}, 3)
	h.SetAck(false)

	NewULScheduler(0, nil, nil).SchedUsers(txUL, ues, g)
	if len(g.UL) == 0 {
		t.Fatal("expected an ul allocation")
	}
}

func TestCellSchedulerRunsBothDirections(t *testing.T) {
	u := uestate.NewUE(0x46, testCarrierCfg(), nil, nil)
	u.LChan.ConfigLCID(3, lchan.BearerConfig{Priority: 1, PBR: lchan.PBRInfinity, Direction: lchan.DirDL})
	u.LChan.DLBufferState(3, 500, 0)
	u.PCell().SetDLCQI(tti.New(0), 10)
	u.LChan.ConfigLCID(4, lchan.BearerConfig{Priority: 1, LCG: 1, Direction: lchan.DirUL})
	u.LChan.ULBSR(1, 200)

	ues := map[uint16]*uestate.UE{u.RNTI: u}
	g := testGrid()
	g.NewTTI()

	cs := NewCellScheduler(0, nil, nil)
	cs.Run(tti.New(4), tti.New(8), ues, g)

	if len(g.DL) == 0 || len(g.UL) == 0 {
		t.Fatalf("expected both dl and ul allocations, got dl=%d ul=%d", len(g.DL), len(g.UL))
	}
}
