// Package harq implements the DL/UL HARQ process and entity state machine:
// transport-block lifecycle, redundancy-version cycling, and the fixed
// retransmission timelines used by FDD scheduling (§3, §4.3).
package harq

import (
	"github.com/go-enb/sched/internal/bitset"
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/tti"
)

// AckState is the per-TB acknowledgment state.
type AckState int

const (
	AckNull AckState = iota
	AckNACK
	AckACK
)

// tb holds the per-transport-block state shared by DL and UL processes.
type tb struct {
	active   bool
	ackState AckState
	ndi      bool
	nTx      uint32
	nRetx    uint32
	lastMCS  int
	lastTBS  int
}

func (t *tb) reset() {
	*t = tb{lastMCS: -1, lastTBS: -1}
}

// RV returns the redundancy version for the current retx count.
func (t *tb) RV() int {
	return constants.RVSequence[int(t.nRetx)%len(constants.RVSequence)]
}

// Process is the common substrate shared by DL and UL HARQ processes: up to
// two transport blocks, each tracked independently, plus the TTI of the last
// transmission and the configured retx ceiling.
type Process struct {
	id      uint32
	maxRetx uint32
	tbs     [constants.MaxTB]tb
	txTTI   tti.Point
	log     interfaces.Logger
}

func newProcess(id uint32, log interfaces.Logger) *Process {
	p := &Process{id: id, maxRetx: constants.DefaultMaxRetx, log: log}
	for i := range p.tbs {
		p.tbs[i].reset()
	}
	return p
}

// ID returns the process index (0..7).
func (p *Process) ID() uint32 { return p.id }

// SetMaxRetx reconfigures the retransmission ceiling.
func (p *Process) SetMaxRetx(maxRetx uint32) { p.maxRetx = maxRetx }

// MaxRetx returns the configured retransmission ceiling.
func (p *Process) MaxRetx() uint32 { return p.maxRetx }

// Tti returns the TTI of the process's last transmission.
func (p *Process) Tti() tti.Point { return p.txTTI }

// IsEmpty reports whether every TB is inactive.
func (p *Process) IsEmpty() bool {
	for i := range p.tbs {
		if p.tbs[i].active {
			return false
		}
	}
	return true
}

// IsEmptyTB reports whether TB tbIdx is inactive.
func (p *Process) IsEmptyTB(tbIdx int) bool {
	return !p.tbs[tbIdx].active
}

// NofTx returns the cumulative transmission count for TB tbIdx.
func (p *Process) NofTx(tbIdx int) uint32 { return p.tbs[tbIdx].nTx }

// NofRetx returns the retransmission count for TB tbIdx.
func (p *Process) NofRetx(tbIdx int) uint32 { return p.tbs[tbIdx].nRetx }

// NDI returns the new-data-indicator bit for TB tbIdx.
func (p *Process) NDI(tbIdx int) bool { return p.tbs[tbIdx].ndi }

// LastTBS returns the last transport-block size signalled for tbIdx.
func (p *Process) LastTBS(tbIdx int) int { return p.tbs[tbIdx].lastTBS }

// LastMCS returns the last MCS signalled for tbIdx.
func (p *Process) LastMCS(tbIdx int) int { return p.tbs[tbIdx].lastMCS }

// RV returns the redundancy version currently in force for tbIdx.
func (p *Process) RV(tbIdx int) int { return p.tbs[tbIdx].RV() }

// hasPendingRetxCommon reports whether tbIdx is active and NACKed.
func (p *Process) hasPendingRetxCommon(tbIdx int) bool {
	return p.tbs[tbIdx].active && p.tbs[tbIdx].ackState == AckNACK
}

// newTxCommon resets tbIdx and starts a fresh transmission, per §3: an
// empty process has no TBs active and no pending ACK, so reset always
// precedes activation.
func (p *Process) newTxCommon(tbIdx int, at tti.Point, mcs, tbsBytes int) {
	ndi := p.tbs[tbIdx].ndi
	p.tbs[tbIdx].reset()
	p.tbs[tbIdx].ndi = !ndi
	p.txTTI = at
	p.tbs[tbIdx].nTx++
	p.tbs[tbIdx].lastMCS = mcs
	p.tbs[tbIdx].lastTBS = tbsBytes
	p.tbs[tbIdx].active = true
}

// newRetxCommon bumps the transmission and retx counters and returns the
// previously signalled MCS/TBS, which a retransmission must reuse verbatim.
func (p *Process) newRetxCommon(tbIdx int, at tti.Point) (mcs, tbsBytes int) {
	p.tbs[tbIdx].ackState = AckNACK
	p.txTTI = at
	p.tbs[tbIdx].nTx++
	p.tbs[tbIdx].nRetx++
	return p.tbs[tbIdx].lastMCS, p.tbs[tbIdx].lastTBS
}

// setAckCommon records an ACK/NACK and forcibly empties the process if the
// retx ceiling has been reached (§3 invariant: retx_count <= max_retx).
func (p *Process) setAckCommon(tbIdx int, ack bool) bool {
	if p.IsEmptyTB(tbIdx) {
		if p.log != nil {
			p.log.Warn("ack for inactive harq process", "pid", p.id, "tb", tbIdx)
		}
		return false
	}
	if ack {
		p.tbs[tbIdx].ackState = AckACK
		p.tbs[tbIdx].active = false
		return true
	}
	p.tbs[tbIdx].ackState = AckNACK
	if p.tbs[tbIdx].nRetx+1 >= p.maxRetx {
		if p.log != nil {
			p.log.Warn("discarding tb, max retx exceeded", "pid", p.id, "tb", tbIdx, "max_retx", p.maxRetx)
		}
		p.tbs[tbIdx].active = false
	}
	return true
}

// resetPendingDataCommon reuses a process whose max_retx has been configured
// to zero: such a process is never retransmitted, so it may be recycled
// immediately once active.
func (p *Process) resetPendingDataCommon() {
	if p.maxRetx == 0 && !p.IsEmpty() {
		for i := range p.tbs {
			p.tbs[i].active = false
		}
	}
}

func (p *Process) resetTB(tbIdx int) {
	p.tbs[tbIdx].reset()
	p.txTTI = tti.New(0)
}

// DLProcess is a DL HARQ process: common substrate plus the allocated RBG
// mask and the NCCE used for its PDCCH (§3).
type DLProcess struct {
	Process
	rbgMask *bitset.Set
	nCCE    uint32
}

func newDLProcess(id uint32, log interfaces.Logger) *DLProcess {
	return &DLProcess{Process: *newProcess(id, log)}
}

// NewTx activates tbIdx for a new DL transmission with the given RBG mask
// and PDCCH NCCE.
func (p *DLProcess) NewTx(mask *bitset.Set, tbIdx int, at tti.Point, mcs, tbsBytes int, nCCE uint32) {
	p.rbgMask = mask
	p.nCCE = nCCE
	p.newTxCommon(tbIdx, at, mcs, tbsBytes)
}

// NewRetx re-arms tbIdx for retransmission, returning the MCS/TBS that must
// be reused (a retx never renegotiates these).
func (p *DLProcess) NewRetx(mask *bitset.Set, tbIdx int, at tti.Point, nCCE uint32) (mcs, tbsBytes int) {
	p.rbgMask = mask
	p.nCCE = nCCE
	return p.newRetxCommon(tbIdx, at)
}

// SetAck records the DL ACK/NACK for tbIdx.
func (p *DLProcess) SetAck(tbIdx int, ack bool) bool { return p.setAckCommon(tbIdx, ack) }

// RBGMask returns the RBG mask of the process's last allocation.
func (p *DLProcess) RBGMask() *bitset.Set { return p.rbgMask }

// NCCE returns the PDCCH CCE index used for the process's last allocation.
func (p *DLProcess) NCCE() uint32 { return p.nCCE }

// HasPendingRetx reports whether tbIdx is retx-eligible at tti_tx_dl: the
// ACK timeline (tx -> ack_dl == tx + 8) must have elapsed (§4.3).
func (p *DLProcess) HasPendingRetx(tbIdx int, txDL tti.Point) bool {
	ackDue := p.txTTI.Add(constants.FDDHarqDelayUL + constants.FDDHarqDelayDL)
	return txDL.AfterOrEqual(ackDue) && p.hasPendingRetxCommon(tbIdx)
}

// ResetPendingData recycles a zero-retx-budget DL process.
func (p *DLProcess) ResetPendingData() { p.resetPendingDataCommon() }

// UlAlloc is the UL PUSCH resource assignment {RB_start, L} a UL HARQ
// process was last granted.
type UlAlloc struct {
	RBStart int
	L       int
}

// Equal reports whether two UL allocations cover the same PRBs.
func (a UlAlloc) Equal(o UlAlloc) bool { return a.RBStart == o.RBStart && a.L == o.L }

// ULProcess is a UL HARQ process: common substrate plus the granted PRB
// range, the adaptive-retx flag, and the pending PHICH ACK slot (§3, §4.3).
type ULProcess struct {
	Process
	alloc       UlAlloc
	pendingData int
	isAdaptive  bool
	pendingAck  AckState
}

func newULProcess(id uint32, log interfaces.Logger) *ULProcess {
	return &ULProcess{Process: *newProcess(id, log)}
}

// NewTx activates a fresh UL transmission; a new grant is always
// non-adaptive by construction.
func (p *ULProcess) NewTx(at tti.Point, mcs, tbsBytes int, alloc UlAlloc, maxRetx uint32) {
	p.maxRetx = maxRetx
	p.isAdaptive = false
	p.alloc = alloc
	p.newTxCommon(0, at, mcs, tbsBytes)
	p.pendingData = tbsBytes
	p.pendingAck = AckNull
}

// NewRetx re-arms the sole UL TB for retransmission. The retx is adaptive
// (requires a fresh PDCCH grant) iff the PRB allocation changed since the
// previous transmission (§4.3).
func (p *ULProcess) NewRetx(at tti.Point, alloc UlAlloc) (mcs, tbsBytes int) {
	p.isAdaptive = alloc.L != p.alloc.L || alloc.RBStart != p.alloc.RBStart
	p.alloc = alloc
	return p.newRetxCommon(0, at)
}

// SetAck records the UL CRC result, arming the PHICH for one TTI later.
func (p *ULProcess) SetAck(ack bool) bool {
	if p.IsEmpty() {
		return false
	}
	if ack {
		p.pendingAck = AckACK
	} else {
		p.pendingAck = AckNACK
	}
	p.setAckCommon(0, ack)
	return true
}

// Alloc returns the process's last granted PRB range.
func (p *ULProcess) Alloc() UlAlloc { return p.alloc }

// HasPendingRetx reports whether the sole UL TB is NACKed and so due for
// retransmission at tti_rx+8 (§4.3).
func (p *ULProcess) HasPendingRetx() bool { return p.hasPendingRetxCommon(0) }

// IsAdaptiveRetx reports whether the next retransmission needs a fresh
// PDCCH grant because its PRBs differ from the prior transmission.
func (p *ULProcess) IsAdaptiveRetx() bool { return p.isAdaptive && p.HasPendingRetx() }

// HasPendingAck reports whether a PHICH bit is owed for this process.
func (p *ULProcess) HasPendingAck() bool { return p.pendingAck != AckNull }

// PendingAck returns the PHICH polarity; only meaningful if HasPendingAck.
func (p *ULProcess) PendingAck() bool { return p.pendingAck == AckACK }

// PendingData returns the outstanding grant size in bytes.
func (p *ULProcess) PendingData() uint32 { return uint32(p.pendingData) }

// ResetPendingData clears the PHICH slot and recycles a zero-retx-budget
// process.
func (p *ULProcess) ResetPendingData() {
	p.resetPendingDataCommon()
	p.pendingAck = AckNull
	if p.IsEmptyTB(0) {
		p.pendingData = 0
	}
}
