package grid

import (
	"testing"

	"github.com/go-enb/sched/internal/constants"
)

func testGrid() *Grid {
	var nCCE [constants.MaxCFI + 1]uint32
	nCCE[1], nCCE[2], nCCE[3] = 16, 32, 48
	return New(8, 25, nCCE, nil)
}

func TestFindDLAllocationRespectsMinMax(t *testing.T) {
	g := testGrid()
	g.NewTTI()

	mask, ok := g.FindDLAllocation(2, 4)
	if !ok {
		t.Fatal("expected an allocation to be found")
	}
	if mask.Count() != 4 {
		t.Fatalf("expected 4 rbgs allocated (max), got %d", mask.Count())
	}
}

func TestAllocDLUserReservesMaskAndDCI(t *testing.T) {
	g := testGrid()
	g.NewTTI()

	mask, _ := g.FindDLAllocation(1, 2)
	outcome, _ := g.AllocDLUser(0x46, mask, 0, []uint32{0, 2, 4}, 2)
	if !outcome.OK() {
		t.Fatalf("expected success, got %v", outcome)
	}
	if !g.IsDLAlloc(0x46) {
		t.Fatal("expected rnti marked as dl-allocated")
	}
	if g.DLMask().Count() != mask.Count() {
		t.Fatalf("expected cumulative mask to include the allocation")
	}
}

func TestAllocULUserReservesPRBs(t *testing.T) {
	g := testGrid()
	g.NewTTI()

	outcome, _ := g.AllocULUser(0x46, 3, 0, 4, []uint32{0, 2}, 2)
	if !outcome.OK() {
		t.Fatalf("expected success, got %v", outcome)
	}
	if g.ULMask().Count() != 4 {
		t.Fatalf("expected 4 prbs reserved, got %d", g.ULMask().Count())
	}

	outcome2, _ := g.AllocULUser(0x47, 0, 2, 3, []uint32{4}, 2)
	if outcome2.OK() {
		t.Fatal("expected collision with already-reserved prbs 0-3")
	}
}

func TestFindULAllocationTrimsToValidWidth(t *testing.T) {
	g := testGrid()
	g.NewTTI()

	rbStart, got, ok := g.FindULAllocation(7)
	if got == 0 {
		t.Fatal("expected a nonzero allocation")
	}
	if !validULPRB(got) {
		t.Fatalf("expected a dft-precoding-valid width, got %d", got)
	}
	_ = rbStart
	_ = ok
}
