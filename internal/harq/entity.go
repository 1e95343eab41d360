package harq

import (
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/tti"
)

// Entity is the fixed vector of 8 DL + 8 UL HARQ processes a per-UE carrier
// state owns (§3 "HARQ entity"). DL processes are addressed asynchronously
// (any empty process may be picked, per the normalisation of the source's
// ASYNC_DL_SCHED compile-time flag to "always async" — see the Open Question
// note it is grounded on); UL processes are addressed synchronously by
// tti_tx_ul mod 8.
type Entity struct {
	dl  [constants.NumDLHarq]*DLProcess
	ul  [constants.NumULHarq]*ULProcess
	log interfaces.Logger
}

// NewEntity builds a fresh HARQ entity with every process initialised and empty.
func NewEntity(log interfaces.Logger) *Entity {
	e := &Entity{log: log}
	for i := range e.dl {
		e.dl[i] = newDLProcess(uint32(i), log)
	}
	for i := range e.ul {
		e.ul[i] = newULProcess(uint32(i), log)
	}
	return e
}

// SetMaxRetx reconfigures the retx ceiling of every process in the entity.
func (e *Entity) SetMaxRetx(maxRetx uint32) {
	for _, h := range e.dl {
		h.SetMaxRetx(maxRetx)
	}
	for _, h := range e.ul {
		h.SetMaxRetx(maxRetx)
	}
}

// DLProcs exposes the DL process vector for read-only iteration (metric
// scheduling needs to scan all of them for retx candidates).
func (e *Entity) DLProcs() []*DLProcess { return e.dl[:] }

// ULProcs exposes the UL process vector.
func (e *Entity) ULProcs() []*ULProcess { return e.ul[:] }

// GetEmptyDL returns an empty DL process available for a new transmission
// at txDL, or nil if none is free.
func (e *Entity) GetEmptyDL(txDL tti.Point) *DLProcess {
	for _, h := range e.dl {
		if h.IsEmpty() {
			return h
		}
	}
	return nil
}

// GetPendingDL returns the oldest retx-eligible DL process at txDL, or nil
// (§4.3: "the scheduler prefers the oldest retx-eligible process").
func (e *Entity) GetPendingDL(txDL tti.Point) *DLProcess {
	var oldest *DLProcess
	oldestAge := -1
	for _, h := range e.dl {
		if h.HasPendingRetx(0, txDL) || h.HasPendingRetx(1, txDL) {
			age := txDL.Sub(h.Tti())
			if age > oldestAge {
				oldest = h
				oldestAge = age
			}
		}
	}
	return oldest
}

// SetAckInfo applies a DL ACK/NACK received at tti_rx for the process whose
// transmission is due acknowledgment at that TTI (tx + 4 == tti_rx). Returns
// the process id and the TBS that was (n)acked, or (len(dl), -1) if no
// process matches — the HARQ-inconsistency case from §7, logged by the caller.
func (e *Entity) SetAckInfo(ttiRx tti.Point, tbIdx int, ack bool) (pid uint32, tbs int) {
	for _, h := range e.dl {
		if h.Tti().Add(constants.FDDHarqDelayDL).Equal(ttiRx) {
			if h.SetAck(tbIdx, ack) {
				return h.ID(), h.LastTBS(tbIdx)
			}
			return h.ID(), -1
		}
	}
	return uint32(len(e.dl)), -1
}

// GetUL returns the UL process for tti_tx_ul (synchronous indexing).
func (e *Entity) GetUL(txUL tti.Point) *ULProcess {
	return e.ul[txUL.Uint32()%constants.NumULHarq]
}

// SetULCRC applies a CRC result for the UL process addressed by tti_tx_ul,
// returning whether it was applied and the process id.
func (e *Entity) SetULCRC(txUL tti.Point, ack bool) (applied bool, pid uint32) {
	h := e.GetUL(txUL)
	return h.SetAck(ack), h.ID()
}

// ResetPendingData discards abandoned processes and recycles zero-retx
// processes following reception at tti_rx (§3 "reset_pending_data").
func (e *Entity) ResetPendingData(ttiRx tti.Point) {
	txUL := tti.ToTxUL(ttiRx)
	txDL := tti.ToTxDL(ttiRx)

	e.GetUL(txUL).ResetPendingData()

	for _, h := range e.dl {
		h.ResetPendingData()
	}

	const staleAfterTTIs = 100
	for _, h := range e.dl {
		if !h.IsEmpty() && txDL.Sub(h.Tti()) > staleAfterTTIs {
			if e.log != nil {
				e.log.Info("harq process stale, resetting", "pid", h.ID(), "tti_pid", h.Tti().Uint32(), "now", txDL.Uint32())
			}
			for tb := 0; tb < constants.MaxTB; tb++ {
				h.resetTB(tb)
			}
		}
	}
}
