// Package lchan implements the per-UE logical-channel manager: bearer
// configuration, the per-LCID token bucket used to pace DL new
// transmissions against the negotiated PBR, UL buffer-status-report
// bookkeeping per logical-channel group, and RLC PDU allocation in
// priority order (§3 "Logical-channel manager").
package lchan

import (
	"fmt"

	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/interfaces"
)

// Direction is the bearer's configured traffic direction.
type Direction int

const (
	DirIdle Direction = iota
	DirUL
	DirDL
	DirBoth
)

// PBRInfinity disables the token bucket for a bearer (unlimited rate).
const PBRInfinity = -1

// BearerConfig is the static configuration of one logical channel.
type BearerConfig struct {
	Priority  int
	PBR       int // bytes/s, or PBRInfinity
	BSD       int // bucket size duration, ms
	LCG       int // 0..3
	Direction Direction
}

type bearer struct {
	cfg        BearerConfig
	bucketSize int
	bufTx      int
	bufRetx    int
	bj         int
}

// Manager is the logical-channel manager for a single UE: 11 LCIDs, 4
// logical-channel-group BSR counters, and a priority index used to
// round-robin among equal-priority channels across TTIs.
type Manager struct {
	lch      [constants.NumLCIDs]bearer
	lcgBSR   [constants.NumLCGs]int
	prioIdx  int
	log      interfaces.Logger
}

// NewManager returns an idle logical-channel manager.
func NewManager(log interfaces.Logger) *Manager {
	return &Manager{log: log}
}

// NewTTI advances the token buckets of every active bearer by one TTI's
// worth of PBR, capped at the bucket size (§3 token bucket refill).
func (m *Manager) NewTTI() {
	m.prioIdx++
	for lcid := range m.lch {
		if !m.isBearerActive(lcid) {
			continue
		}
		if m.lch[lcid].cfg.PBR != PBRInfinity {
			m.lch[lcid].bj = min(m.lch[lcid].bj+m.lch[lcid].cfg.PBR, m.lch[lcid].bucketSize)
		}
	}
}

// ConfigLCID (re)configures one logical channel's bearer. Infinite PBR
// disables the bucket entirely (unbounded Bj).
func (m *Manager) ConfigLCID(lcid int, cfg BearerConfig) {
	if lcid < 0 || lcid >= constants.NumLCIDs {
		m.warn("bearer config with invalid lcid=%d", lcid)
		return
	}
	if cfg.LCG < 0 || cfg.LCG >= constants.NumLCGs {
		m.warn("bearer config with invalid lcg=%d", cfg.LCG)
		return
	}
	if m.lch[lcid].cfg == cfg {
		return
	}
	m.lch[lcid].cfg = cfg
	if cfg.PBR == PBRInfinity {
		m.lch[lcid].bucketSize = int(^uint(0) >> 1)
		m.lch[lcid].bj = int(^uint(0) >> 1)
	} else {
		m.lch[lcid].bucketSize = cfg.BSD * cfg.PBR
		m.lch[lcid].bj = 0
	}
	if m.log != nil {
		m.log.Info("bearer configured", "lcid", lcid, "priority", cfg.Priority, "direction", cfg.Direction)
	}
}

// ULBSR sets the absolute UL buffer-status-report value for a logical
// channel group, as signalled in a MAC BSR control element.
func (m *Manager) ULBSR(lcg int, bsr uint32) {
	if lcg < 0 || lcg >= constants.NumLCGs {
		m.warn("bsr with invalid lcg=%d", lcg)
		return
	}
	m.lcgBSR[lcg] = int(bsr)
}

// ULBufferAdd increments a logical-channel-group's BSR by bytes, used when
// upper layers report incremental UL data arrival for lcid.
func (m *Manager) ULBufferAdd(lcid int, bytes uint32) {
	if lcid < 0 || lcid >= constants.NumLCIDs {
		m.warn("buffer add with invalid lcid=%d", lcid)
		return
	}
	m.lcgBSR[m.lch[lcid].cfg.LCG] += int(bytes)
}

// DLBufferState sets the DL new-tx and retx queue depths for lcid, as
// reported by RLC.
func (m *Manager) DLBufferState(lcid int, txQueue, retxQueue uint32) {
	if lcid < 0 || lcid >= constants.NumLCIDs {
		m.warn("dl buffer state with invalid lcid=%d", lcid)
		return
	}
	m.lch[lcid].bufTx = int(txQueue)
	m.lch[lcid].bufRetx = int(retxQueue)
}

func (m *Manager) isBearerActive(lcid int) bool { return m.lch[lcid].cfg.Direction != DirIdle }

// IsBearerActive reports whether lcid carries any traffic direction.
func (m *Manager) IsBearerActive(lcid int) bool { return m.isBearerActive(lcid) }

// IsBearerUL reports whether lcid is configured for UL traffic.
func (m *Manager) IsBearerUL(lcid int) bool {
	return m.isBearerActive(lcid) && m.lch[lcid].cfg.Direction != DirDL
}

// IsBearerDL reports whether lcid is configured for DL traffic.
func (m *Manager) IsBearerDL(lcid int) bool {
	return m.isBearerActive(lcid) && m.lch[lcid].cfg.Direction != DirUL
}

// GetDLTx returns the pending new-tx bytes for lcid (0 if not a DL bearer).
func (m *Manager) GetDLTx(lcid int) int {
	if m.IsBearerDL(lcid) {
		return m.lch[lcid].bufTx
	}
	return 0
}

// GetDLRetx returns the pending retx bytes for lcid (0 if not a DL bearer).
func (m *Manager) GetDLRetx(lcid int) int {
	if m.IsBearerDL(lcid) {
		return m.lch[lcid].bufRetx
	}
	return 0
}

// GetDLTxTotal returns new-tx + retx pending bytes for lcid.
func (m *Manager) GetDLTxTotal(lcid int) int { return m.GetDLTx(lcid) + m.GetDLRetx(lcid) }

// GetBSR returns the buffer-status-report value for lcid's group (0 if not
// a UL bearer).
func (m *Manager) GetBSR(lcid int) int {
	if m.IsBearerUL(lcid) {
		return m.lcgBSR[m.lch[lcid].cfg.LCG]
	}
	return 0
}

// TotalBSR returns the sum of every logical-channel-group's
// buffer-status-report value, used by the UL round-robin metric to size a
// new-tx grant (§4.6).
func (m *Manager) TotalBSR() int {
	total := 0
	for _, bsr := range m.lcgBSR {
		total += bsr
	}
	return total
}

// GetMaxPrioLCID picks the next logical channel to serve: retx-pending
// channels first (lowest priority value wins), then new-tx channels gated
// by a positive token bucket, then any channel with pending data at all,
// round-robining among ties via the per-TTI priority index (§3, §4.8).
func (m *Manager) GetMaxPrioLCID() int {
	minPrio := int(^uint(0) >> 1)
	prioLCID := -1

	for lcid := 0; lcid < constants.NumLCIDs; lcid++ {
		if m.GetDLRetx(lcid) > 0 && m.lch[lcid].cfg.Priority < minPrio {
			minPrio = m.lch[lcid].cfg.Priority
			prioLCID = lcid
		}
	}
	if prioLCID >= 0 {
		return prioLCID
	}

	for lcid := 0; lcid < constants.NumLCIDs; lcid++ {
		if m.GetDLTx(lcid) > 0 && m.lch[lcid].bj > 0 && m.lch[lcid].cfg.Priority < minPrio {
			minPrio = m.lch[lcid].cfg.Priority
			prioLCID = lcid
		}
	}
	if prioLCID >= 0 {
		return prioLCID
	}

	var chosen []int
	for lcid := 0; lcid < constants.NumLCIDs; lcid++ {
		if m.GetDLTxTotal(lcid) <= 0 {
			continue
		}
		switch {
		case m.lch[lcid].cfg.Priority < minPrio:
			minPrio = m.lch[lcid].cfg.Priority
			chosen = []int{lcid}
		case m.lch[lcid].cfg.Priority == minPrio:
			chosen = append(chosen, lcid)
		}
	}
	if len(chosen) > 0 {
		prioLCID = chosen[m.prioIdx%len(chosen)]
	}
	return prioLCID
}

// RLCPDU is one allocated MAC SDU carrying RLC payload.
type RLCPDU struct {
	LCID   int
	NBytes int
}

// AllocRLCPDU allocates the highest-priority pending RLC PDU within
// remBytes, preferring a retransmission over a new transmission.
func (m *Manager) AllocRLCPDU(remBytes int) (RLCPDU, bool) {
	lcid := m.GetMaxPrioLCID()
	if lcid < 0 {
		return RLCPDU{}, false
	}

	alloc := m.allocRetxBytes(lcid, remBytes)
	if alloc == 0 {
		alloc = m.allocTxBytes(lcid, remBytes)
	}
	if alloc <= 0 {
		return RLCPDU{}, false
	}
	if m.log != nil {
		m.log.Debug("allocated rlc pdu", "lcid", lcid, "nbytes", alloc, "rem_bytes", remBytes)
	}
	return RLCPDU{LCID: lcid, NBytes: alloc}, true
}

func (m *Manager) allocRetxBytes(lcid, remBytes int) int {
	alloc := min(remBytes, m.GetDLRetx(lcid))
	m.lch[lcid].bufRetx -= alloc
	return alloc
}

func (m *Manager) allocTxBytes(lcid, remBytes int) int {
	alloc := min(remBytes, m.GetDLTx(lcid))
	m.lch[lcid].bufTx -= alloc
	if alloc > 0 && m.lch[lcid].cfg.PBR != PBRInfinity {
		m.lch[lcid].bj -= alloc
	}
	return alloc
}

func (m *Manager) warn(format string, args ...any) {
	if m.log != nil {
		m.log.Warn(fmt.Sprintf(format, args...))
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
