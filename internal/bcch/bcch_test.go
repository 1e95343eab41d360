package bcch

import (
	"testing"

	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/pdcch"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/wire"
)

func testGrid() *grid.Grid {
	var nCCE [constants.MaxCFI + 1]uint32
	nCCE[1], nCCE[2], nCCE[3] = 16, 32, 48
	return grid.New(25, 25, nCCE, nil)
}

func commonCands(aggr int) []uint32 {
	tbl := pdcch.CommonCandidates(16)
	return tbl.StartsFor(aggr)
}

func TestSIB1ScheduledInItsWindow(t *testing.T) {
	s := New([]SIBConfig{{Index: 0, LenBytes: 20}}, nil, nil)
	g := testGrid()
	g.NewTTI()

	allocs := s.Schedule(tti.New(5), g, commonCands) // sfn=0, sf=5
	if len(allocs) != 1 {
		t.Fatalf("expected sib1 scheduled in its window, got %d", len(allocs))
	}
}

func TestSIB1NotScheduledOutsideWindow(t *testing.T) {
	s := New([]SIBConfig{{Index: 0, LenBytes: 20}}, nil, nil)
	g := testGrid()
	g.NewTTI()

	allocs := s.Schedule(tti.New(6), g, commonCands)
	if len(allocs) != 0 {
		t.Fatalf("expected no sib1 allocation outside window, got %d", len(allocs))
	}
}

func TestSIB1CapsTxPerPeriod(t *testing.T) {
	s := New([]SIBConfig{{Index: 0, LenBytes: 20}}, nil, nil)

	count := 0
	// Two more opportunities than one period holds: the first
	// MaxSIBTxPerPeriod fall in the first period, the rest start the next.
	nofRepeats := uint32(constants.MaxSIBTxPerPeriod + 2)
	periodRF := uint32(constants.SIB1PeriodRF * constants.MaxSIBTxPerPeriod)
	for n := uint32(0); n < nofRepeats; n++ {
		sfn := n * constants.SIB1PeriodRF
		g := testGrid()
		g.NewTTI()
		now := tti.New(sfn*constants.SfIdxPerFrame + constants.SIB1SfIdx)
		allocs := s.Schedule(now, g, commonCands)
		if sfn < periodRF {
			count += len(allocs)
		}
	}
	if count > constants.MaxSIBTxPerPeriod {
		t.Fatalf("expected at most %d sib1 tx in the first period, got %d", constants.MaxSIBTxPerPeriod, count)
	}
}

func TestSIB1RVCyclesAcrossRetransmissions(t *testing.T) {
	s := New([]SIBConfig{{Index: 0, LenBytes: 20}}, nil, nil)

	var rvs []int
	for n := uint32(0); n < constants.MaxSIBTxPerPeriod; n++ {
		g := testGrid()
		g.NewTTI()
		now := tti.New(n*constants.SIB1PeriodRF*constants.SfIdxPerFrame + constants.SIB1SfIdx)
		allocs := s.Schedule(now, g, commonCands)
		if len(allocs) != 1 {
			t.Fatalf("expected one sib1 allocation at retx %d, got %d", n, len(allocs))
		}
		rvs = append(rvs, allocs[0].RV)
	}
	want := constants.RVSequence[:len(rvs)]
	for i, rv := range rvs {
		if rv != want[i] {
			t.Errorf("retx %d: expected rv %d, got %d", i, want[i], rv)
		}
	}
}

func TestPagingScheduledWhenQueued(t *testing.T) {
	s := New(nil, nil, nil)
	s.QueuePaging(50)
	g := testGrid()
	g.NewTTI()

	allocs := s.Schedule(tti.New(0), g, commonCands)
	if len(allocs) != 1 {
		t.Fatalf("expected one paging allocation, got %d", len(allocs))
	}
	if allocs[0].Type != wire.PCCH {
		t.Fatalf("expected a PCCH allocation for paging, got type %v", allocs[0].Type)
	}
}
