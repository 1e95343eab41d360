package uestate

import (
	"testing"

	"github.com/go-enb/sched/internal/tti"
)

func testCfg() CarrierConfig {
	return CarrierConfig{MaxMCSDL: 28, MaxMCSUL: 28, FixedMCSDL: -1, FixedMCSUL: -1, MaxAggrLevel: 8, MaxHARQRetx: 3}
}

func TestPCellStartsActive(t *testing.T) {
	u := NewUE(0x46, testCfg(), nil, nil)
	if !u.PCell().IsActive() {
		t.Fatal("expected pcell to start active")
	}
}

func TestSCellStartsIdleAndActivates(t *testing.T) {
	u := NewUE(0x46, testCfg(), nil, nil)
	u.AddCarrier(testCfg())

	if u.Carrier(1).State() != CellIdle {
		t.Fatalf("expected scell idle, got %v", u.Carrier(1).State())
	}

	u.QueueSCellActivation(1)
	if u.Carrier(1).State() != CellActivating {
		t.Fatalf("expected scell activating, got %v", u.Carrier(1).State())
	}
	if u.CEQueue.Empty() {
		t.Fatal("expected scell activation CE queued")
	}

	u.Carrier(1).SetDLCQI(tti.New(0), 10)
	if u.Carrier(1).State() != CellActive {
		t.Fatalf("expected scell active after positive cqi, got %v", u.Carrier(1).State())
	}
	u.PCell().SetDLCQI(tti.New(0), 10)
	if !u.CanScheduleDL(1) {
		t.Fatal("expected dl scheduling permitted on active scell once pcell cqi has arrived")
	}
}

func TestSCellDeactivationWaitsForHARQDrain(t *testing.T) {
	u := NewUE(0x46, testCfg(), nil, nil)
	u.AddCarrier(testCfg())
	c := u.Carrier(1)
	u.QueueSCellActivation(1)
	c.SetDLCQI(tti.New(0), 10)

	p := c.HarqEnt.GetEmptyDL(tti.New(100))
	if p == nil {
		t.Fatal("expected a free dl harq process")
	}
	p.NewTx(nil, 0, tti.New(100), 10, 5, 0)

	u.RequestSCellDeactivation(1)
	if c.State() != CellDeactivating {
		t.Fatalf("expected deactivating, got %v", c.State())
	}

	c.TryFinishDeactivation()
	if c.State() != CellDeactivating {
		t.Fatal("expected deactivation to stay pending with an outstanding harq process")
	}

	c.HarqEnt.SetAckInfo(tti.New(104), 0, true)
	c.TryFinishDeactivation()
	if c.State() != CellIdle {
		t.Fatalf("expected idle once harq drained, got %v", c.State())
	}
}

func TestNonActiveCarrierRefusesScheduling(t *testing.T) {
	u := NewUE(0x46, testCfg(), nil, nil)
	u.AddCarrier(testCfg())
	if u.CanScheduleDL(1) || u.CanScheduleUL(1) {
		t.Fatal("expected idle scell to refuse scheduling")
	}
}
