package harq

import (
	"testing"

	"github.com/go-enb/sched/internal/bitset"
	"github.com/go-enb/sched/internal/tti"
)

func TestDLProcessNewTxThenRetx(t *testing.T) {
	e := NewEntity(nil)
	mask := bitset.New(32, 8, false, nil)
	mask.Fill(0, 4, true)

	txDL := tti.New(100)
	p := e.GetEmptyDL(txDL)
	if p == nil {
		t.Fatal("expected an empty DL process")
	}
	p.NewTx(mask, 0, txDL, 10, 1000, 5)

	if p.IsEmpty() {
		t.Fatal("process should be active after new tx")
	}

	// Not yet retx-eligible before tx+8.
	if p.HasPendingRetx(0, txDL.Add(4)) {
		t.Fatal("must not be retx-eligible before ack delay elapses")
	}

	// The ACK for a DL transmission at txDL is received by the eNB 4 TTIs
	// later; the next retx opportunity (tti_tx_dl) is 8 TTIs after txDL.
	ackRxTTI := txDL.Add(4)
	nextTxDL := txDL.Add(8)
	pid, tbs := e.SetAckInfo(ackRxTTI, 0, false)
	if pid != p.ID() {
		t.Fatalf("expected pid %d, got %d", p.ID(), pid)
	}
	if tbs != 1000 {
		t.Fatalf("expected tbs 1000, got %d", tbs)
	}

	if !p.HasPendingRetx(0, nextTxDL) {
		t.Fatal("expected pending retx after NACK")
	}

	pending := e.GetPendingDL(nextTxDL)
	if pending == nil || pending.ID() != p.ID() {
		t.Fatal("expected the NACKed process to be the pending retx candidate")
	}

	mcs, tbsOut := pending.NewRetx(mask, 0, nextTxDL, 5)
	if mcs != 10 || tbsOut != 1000 {
		t.Fatalf("retx must reuse mcs/tbs, got mcs=%d tbs=%d", mcs, tbsOut)
	}
	if pending.RV(0) != 2 {
		t.Fatalf("expected rv=2 on first retx, got %d", pending.RV(0))
	}
}

func TestDLProcessMaxRetxEmpties(t *testing.T) {
	e := NewEntity(nil)
	e.SetMaxRetx(3)
	mask := bitset.New(32, 8, false, nil)
	txDL := tti.New(0)

	p := e.GetEmptyDL(txDL)
	p.NewTx(mask, 0, txDL, 5, 500, 1)

	// Each retx round: NACK bumps ack_state, then the scheduler re-arms the
	// process via NewRetx (which is what actually increments the retx
	// counter). The process is only forcibly emptied once n_rtx+1 >= max_retx.
	for i := 0; i < 2; i++ {
		ackRxTTI := p.Tti().Add(4)
		e.SetAckInfo(ackRxTTI, 0, false)
		if p.IsEmptyTB(0) {
			t.Fatalf("process emptied too early at round %d", i)
		}
		p.NewRetx(mask, 0, p.Tti().Add(8), 1)
	}

	finalAckRxTTI := p.Tti().Add(4)
	e.SetAckInfo(finalAckRxTTI, 0, false)

	if !p.IsEmptyTB(0) {
		t.Fatal("expected process to be emptied after exceeding max_retx")
	}
}

func TestULProcessSyncIndexing(t *testing.T) {
	e := NewEntity(nil)
	txUL := tti.New(42)
	h := e.GetUL(txUL)
	if h.ID() != 42%8 {
		t.Fatalf("expected pid %d, got %d", 42%8, h.ID())
	}
}

func TestULProcessAdaptiveRetx(t *testing.T) {
	e := NewEntity(nil)
	txUL := tti.New(10)
	h := e.GetUL(txUL)
	h.NewTx(txUL, 8, 800, UlAlloc{RBStart: 0, L: 4}, 5)

	applied, pid := e.SetULCRC(txUL, false)
	if !applied || pid != h.ID() {
		t.Fatal("expected CRC to apply to the addressed process")
	}
	if !h.HasPendingRetx() {
		t.Fatal("expected pending retx after CRC failure")
	}

	// Same allocation -> non-adaptive.
	h.NewRetx(txUL.Add(8), UlAlloc{RBStart: 0, L: 4})
	if h.IsAdaptiveRetx() {
		t.Fatal("expected non-adaptive retx when allocation is unchanged")
	}

	e.SetULCRC(txUL.Add(8), false)
	// Different allocation -> adaptive.
	h.NewRetx(txUL.Add(16), UlAlloc{RBStart: 4, L: 8})
	if !h.IsAdaptiveRetx() {
		t.Fatal("expected adaptive retx when allocation changes")
	}
}

func TestULProcessPendingAck(t *testing.T) {
	e := NewEntity(nil)
	txUL := tti.New(5)
	h := e.GetUL(txUL)
	h.NewTx(txUL, 8, 200, UlAlloc{RBStart: 0, L: 2}, 5)

	if h.HasPendingAck() {
		t.Fatal("should have no pending ack before CRC")
	}
	h.SetAck(true)
	if !h.HasPendingAck() || !h.PendingAck() {
		t.Fatal("expected a positive pending ack after successful CRC")
	}
	if !h.IsEmpty() {
		t.Fatal("expected process to empty on ACK")
	}
}

func TestResetPendingDataRecyclesZeroRetx(t *testing.T) {
	e := NewEntity(nil)
	e.SetMaxRetx(0)
	mask := bitset.New(32, 8, false, nil)
	txDL := tti.New(0)
	p := e.GetEmptyDL(txDL)
	p.NewTx(mask, 0, txDL, 5, 500, 1)

	e.ResetPendingData(tti.New(0))
	if !p.IsEmpty() {
		t.Fatal("expected zero-retx-budget process to be recycled")
	}
}

func TestAckForInactiveProcessIsRejected(t *testing.T) {
	e := NewEntity(nil)
	pid, tbs := e.SetAckInfo(tti.New(500), 0, true)
	if pid != uint32(len(e.DLProcs())) || tbs != -1 {
		t.Fatalf("expected sentinel pid/tbs for unmatched ack, got pid=%d tbs=%d", pid, tbs)
	}
}
