package sched

import (
	"testing"

	"github.com/go-enb/sched/internal/wire"
)

// maskBits returns the set bit positions of a rendered bitset string
// ("0110...").
func maskBits(s string) map[int]bool {
	bits := map[int]bool{}
	for i, c := range s {
		if c == '1' {
			bits[i] = true
		}
	}
	return bits
}

func masksOverlap(a, b string) bool {
	for i := range maskBits(a) {
		if i < len(b) && b[i] == '1' {
			return true
		}
	}
	return false
}

func cceInterval(l wire.DCILocation) (int, int) {
	return int(l.NCCE), int(l.NCCE) + (1 << uint(l.L))
}

func intervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// populateDLTraffic gives rnti enough buffered DL data on lcid 3 to be
// allocated, and enough UL BSR to be granted PUSCH.
func populateDLTraffic(f *TestFixture, rnti uint16, bytes uint32) {
	_ = f.DLRLCBufferState(rnti, 3, bytes, 0)
	_ = f.ULBSR(rnti, 0, bytes)
	_ = f.DLCQIInfo(0, rnti, 0, 10)
	_ = f.ULCQIInfo(0, rnti, 0, 10)
}

// TestInvariantNoDLMaskOverlap covers property 1: the DL RBG masks
// emitted in one dl_sched call never share a bit.
func TestInvariantNoDLMaskOverlap(t *testing.T) {
	f := NewTestFixture()
	var rntis []uint16
	for i := 0; i < 4; i++ {
		rnti, err := f.AttachUE(uint32(i))
		if err != nil {
			t.Fatalf("attach ue %d: %v", i, err)
		}
		populateDLTraffic(f, rnti, 500)
		rntis = append(rntis, rnti)
	}

	res, err := f.DLSched(100, 0)
	if err != nil {
		t.Fatalf("dl_sched: %v", err)
	}
	if len(res.Data) < 2 {
		t.Skip("not enough concurrent DL allocations to exercise overlap")
	}
	for i := 0; i < len(res.Data); i++ {
		for j := i + 1; j < len(res.Data); j++ {
			if masksOverlap(res.Data[i].Grant.RBGMask, res.Data[j].Grant.RBGMask) {
				t.Errorf("DL RBG masks overlap between grants %d and %d: %q vs %q",
					i, j, res.Data[i].Grant.RBGMask, res.Data[j].Grant.RBGMask)
			}
		}
	}
}

// TestInvariantNoULMaskOverlap covers property 2 for the PUSCH region.
func TestInvariantNoULMaskOverlap(t *testing.T) {
	f := NewTestFixture()
	for i := 0; i < 4; i++ {
		rnti, err := f.AttachUE(uint32(i))
		if err != nil {
			t.Fatalf("attach ue %d: %v", i, err)
		}
		populateDLTraffic(f, rnti, 500)
	}

	res, err := f.ULSched(100, 0)
	if err != nil {
		t.Fatalf("ul_sched: %v", err)
	}
	for i := 0; i < len(res.PUSCH); i++ {
		for j := i + 1; j < len(res.PUSCH); j++ {
			a, b := res.PUSCH[i], res.PUSCH[j]
			if intervalsOverlap(a.RBStart, a.RBStart+a.L, b.RBStart, b.RBStart+b.L) {
				t.Errorf("UL PRB ranges overlap: [%d,%d) vs [%d,%d)",
					a.RBStart, a.RBStart+a.L, b.RBStart, b.RBStart+b.L)
			}
		}
	}
}

// TestInvariantNoCCECollision covers property 3: every DCI issued within
// one TTI on one carrier occupies a disjoint CCE range.
func TestInvariantNoCCECollision(t *testing.T) {
	f := NewTestFixture()
	for i := 0; i < 6; i++ {
		rnti, err := f.AttachUE(uint32(i))
		if err != nil {
			t.Fatalf("attach ue %d: %v", i, err)
		}
		populateDLTraffic(f, rnti, 800)
	}

	const now = 200
	dl, err := f.DLSched(now, 0)
	if err != nil {
		t.Fatalf("dl_sched: %v", err)
	}
	ul, err := f.ULSched(now, 0)
	if err != nil {
		t.Fatalf("ul_sched: %v", err)
	}

	var locations []wire.DCILocation
	for _, d := range dl.Data {
		locations = append(locations, d.Grant.Location)
	}
	for _, rar := range dl.RAR {
		locations = append(locations, rar.Location)
	}
	for _, bc := range dl.BC {
		locations = append(locations, bc.Location)
	}
	for _, g := range ul.PUSCH {
		if g.NeedsPDCCH {
			locations = append(locations, g.Location)
		}
	}

	for i := 0; i < len(locations); i++ {
		aStart, aEnd := cceInterval(locations[i])
		for j := i + 1; j < len(locations); j++ {
			bStart, bEnd := cceInterval(locations[j])
			if intervalsOverlap(aStart, aEnd, bStart, bEnd) {
				t.Errorf("CCE ranges collide: [%d,%d) vs [%d,%d)", aStart, aEnd, bStart, bEnd)
			}
		}
	}
}

// TestInvariantRVSequence covers property 5: the RV used for the k-th
// transmission of a transport block follows {0,2,3,1}[k mod 4].
func TestInvariantRVSequence(t *testing.T) {
	f := NewTestFixture()
	rnti, err := f.AttachUE(0)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	populateDLTraffic(f, rnti, 2000)

	res, err := f.DLSched(10, 0)
	if err != nil {
		t.Fatalf("dl_sched: %v", err)
	}
	if len(res.Data) == 0 {
		t.Fatal("expected a DL allocation for the attached UE")
	}
	if res.Data[0].Grant.RV[0] != 0 {
		t.Errorf("expected rv=0 on first transmission, got %d", res.Data[0].Grant.RV[0])
	}

	pid := res.Data[0].Grant.Pid
	if err := f.DLAckInfo(10+4, rnti, 0, 0, false); err != nil {
		t.Fatalf("dl_ack_info: %v", err)
	}

	// Re-run dl_sched at the retx-eligible TTI and find the same pid's grant.
	res2, err := f.DLSched(10+8, 0)
	if err != nil {
		t.Fatalf("dl_sched retx: %v", err)
	}
	for _, d := range res2.Data {
		if d.Grant.Pid == pid {
			if d.Grant.RV[0] != 2 {
				t.Errorf("expected rv=2 on second transmission, got %d", d.Grant.RV[0])
			}
			return
		}
	}
	t.Fatal("expected a retransmission for the NACKed process")
}

// TestInvariantNoDCIForInactiveCarrier covers property 9: an SCell that
// hasn't finished activating never gets a DL/UL allocation.
func TestInvariantNoDCIForInactiveCarrier(t *testing.T) {
	f := NewTestFixture()
	scellCfg := CellConfig{
		NofPRB:       25,
		MaxHARQRetx:  4,
		MaxAggrLevel: 8,
	}
	if err := f.CellCfg([]CellConfig{
		{NofPRB: 25, SIBs: nil, PRACHRARWindowMS: 10, MaxHARQRetx: 4, MaxAggrLevel: 8},
		scellCfg,
	}); err != nil {
		t.Fatalf("cell_cfg: %v", err)
	}

	rnti, err := f.AttachUE(0)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	// cc1 was never added to the UE, so it has no second carrier at all;
	// scheduling cc1 must simply find no allocations for this rnti.
	res, err := f.DLSched(0, 1)
	if err != nil {
		t.Fatalf("dl_sched cc1: %v", err)
	}
	for _, d := range res.Data {
		if d.Grant.RNTI == rnti {
			t.Errorf("unexpected DL allocation for rnti on an scell it was never added to")
		}
	}
}

// TestInvariantPDUSizeWithinTBS covers property 10: served logical-channel
// bytes never exceed the transport block size.
func TestInvariantPDUSizeWithinTBS(t *testing.T) {
	f := NewTestFixture()
	rnti, err := f.AttachUE(0)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	populateDLTraffic(f, rnti, 100000)

	res, err := f.DLSched(10, 0)
	if err != nil {
		t.Fatalf("dl_sched: %v", err)
	}
	if len(res.Data) == 0 {
		t.Fatal("expected a DL allocation")
	}
	d := res.Data[0]
	var served uint32
	for _, e := range d.Elements[0] {
		served += e.NBytes
	}
	if int(served) > d.Grant.TBS[0] {
		t.Errorf("served bytes %d exceed tbs %d", served, d.Grant.TBS[0])
	}
}
