// Package uestate holds per-UE and per-UE-per-carrier scheduler state: CQI/RI/PMI
// tracking, MCS/aggregation bounds, the PDCCH candidate-location cache, the
// HARQ entity, and the secondary-cell activation FSM (§3 "Per-UE carrier
// state", "Per-UE state", §4.7).
package uestate

import (
	"github.com/go-enb/sched/internal/harq"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/pdcch"
	"github.com/go-enb/sched/internal/pdcchcache"
	"github.com/go-enb/sched/internal/tti"
)

// CellState is the secondary-cell activation FSM state (§4.7). The
// primary cell is always Active.
type CellState int

const (
	CellIdle CellState = iota
	CellActivating
	CellActive
	CellDeactivating
)

func (s CellState) String() string {
	switch s {
	case CellIdle:
		return "idle"
	case CellActivating:
		return "activating"
	case CellActive:
		return "active"
	case CellDeactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}

// CarrierConfig is the subset of UE carrier configuration the carrier
// state needs: MCS bounds, aggregation cap, max HARQ retx.
type CarrierConfig struct {
	MaxMCSDL      uint32
	MaxMCSDLAlt   uint32
	MaxMCSUL      uint32
	FixedMCSDL    int // < 0 disables
	FixedMCSUL    int
	MaxAggrLevel  uint32
	MaxHARQRetx   uint32
}

// Carrier is the per-UE, per-carrier scheduling state: CQI/RI/PMI,
// MCS/aggregation bounds, the candidate-location cache, and the HARQ
// entity (§3 "Per-UE carrier state").
type Carrier struct {
	CCIndex int
	cfg     CarrierConfig

	DLRI      uint32
	DLRITTI   uint32
	DLPMI     uint32
	DLPMITTI  uint32
	DLCQI     uint32
	DLCQITTI  uint32
	ULCQI     uint32
	ULCQITTI  uint32
	DLCQIRx   bool

	HarqEnt *harq.Entity

	state CellState

	rnti  uint16
	cache *pdcchcache.Cache

	log interfaces.Logger
}

// NewCarrier returns the carrier state for ccIndex (0 == PCell, which
// starts Active; SCells start Idle per §4.7). cache is the cell-wide
// PDCCH candidate-location cache shared by every carrier of every UE on
// the cell (component P).
func NewCarrier(ccIndex int, cfg CarrierConfig, rnti uint16, cache *pdcchcache.Cache, log interfaces.Logger) *Carrier {
	c := &Carrier{
		CCIndex: ccIndex,
		cfg:     cfg,
		DLCQI:   1,
		ULCQI:   1,
		HarqEnt: harq.NewEntity(log),
		rnti:    rnti,
		cache:   cache,
		log:     log,
	}
	c.HarqEnt.SetMaxRetx(cfg.MaxHARQRetx)
	if ccIndex == 0 {
		c.state = CellActive
	} else {
		c.state = CellIdle
	}
	return c
}

// Reconfigure applies a new CarrierConfig to an already-running carrier
// (a UECfg call arriving after the carrier was created, e.g. the RRC
// reconfiguration that follows a RACH-time rach-only config). MCS and
// aggregation bounds take effect on the next allocation; the HARQ
// entity's retx budget is updated in place since it is consulted by
// already-pending processes.
func (c *Carrier) Reconfigure(cfg CarrierConfig) {
	c.cfg = cfg
	c.HarqEnt.SetMaxRetx(cfg.MaxHARQRetx)
}

// State returns the carrier's activation FSM state.
func (c *Carrier) State() CellState { return c.state }

// IsActive reports whether DL/UL allocation is permitted on this carrier
// (§4.7: "allocators refuse any DL/UL allocation on a non-active carrier").
func (c *Carrier) IsActive() bool { return c.state == CellActive }

// Activate begins SCell activation: idle -> activating. Returns true if a
// MAC CE must be queued (caller is responsible for enqueuing it at the
// front of pending_ces).
func (c *Carrier) Activate() bool {
	if c.CCIndex == 0 || c.state == CellActive || c.state == CellActivating {
		return false
	}
	c.state = CellActivating
	return true
}

// Deactivate begins SCell deactivation: active -> deactivating.
func (c *Carrier) Deactivate() bool {
	if c.CCIndex == 0 || c.state != CellActive {
		return false
	}
	c.state = CellDeactivating
	return true
}

// OnDLCQIReceived advances activating -> active on the first positive CQI
// report for this carrier (§4.7).
func (c *Carrier) OnDLCQIReceived(cqi uint32) {
	if c.state == CellActivating && cqi > 0 {
		c.state = CellActive
	}
}

// TryFinishDeactivation advances deactivating -> idle once every HARQ
// process on this carrier has drained (§4.7: "after all outstanding ACKs
// return").
func (c *Carrier) TryFinishDeactivation() {
	if c.state != CellDeactivating {
		return
	}
	for _, h := range c.HarqEnt.DLProcs() {
		if !h.IsEmpty() {
			return
		}
	}
	for _, h := range c.HarqEnt.ULProcs() {
		if !h.IsEmpty() {
			return
		}
	}
	c.state = CellIdle
}

// SetDLCQI records a new wideband DL CQI report.
func (c *Carrier) SetDLCQI(txDL tti.Point, cqi uint32) {
	c.DLCQI = cqi
	c.DLCQITTI = txDL.Uint32()
	c.DLCQIRx = true
	c.OnDLCQIReceived(cqi)
}

// SetULCQI records a new UL CQI (SNR proxy) report.
func (c *Carrier) SetULCQI(rxTTI tti.Point, cqi uint32) {
	c.ULCQI = cqi
	c.ULCQITTI = rxTTI.Uint32()
}

// SetDLRI records a new reported rank indicator.
func (c *Carrier) SetDLRI(txDL tti.Point, ri uint32) {
	c.DLRI = ri
	c.DLRITTI = txDL.Uint32()
}

// SetDLPMI records a new reported precoding matrix indicator.
func (c *Carrier) SetDLPMI(txDL tti.Point, pmi uint32) {
	c.DLPMI = pmi
	c.DLPMITTI = txDL.Uint32()
}

// MaxMCSForDL returns the DL MCS ceiling for this carrier: the fixed MCS
// if configured, otherwise the configured maximum.
func (c *Carrier) MaxMCSForDL() uint32 {
	if c.cfg.FixedMCSDL >= 0 {
		return uint32(c.cfg.FixedMCSDL)
	}
	return c.cfg.MaxMCSDL
}

// MaxMCSForUL returns the UL MCS ceiling for this carrier.
func (c *Carrier) MaxMCSForUL() uint32 {
	if c.cfg.FixedMCSUL >= 0 {
		return uint32(c.cfg.FixedMCSUL)
	}
	return c.cfg.MaxMCSUL
}

// AggrLevel derives the PDCCH aggregation level for a DCI of nofBits
// payload size from the UE's wideband CQI, capped at the configured
// maximum (§4.1 "alloc_dl_data ... allocates a PDCCH slot of an
// aggregation level derived from the UE's wideband CQI").
func (c *Carrier) AggrLevel(nofBits uint32) int {
	level := 1
	switch {
	case c.DLCQI <= 5:
		level = 8
	case c.DLCQI <= 8:
		level = 4
	case c.DLCQI <= 11:
		level = 2
	default:
		level = 1
	}
	if nofBits > 40 && level < 2 {
		level = 2
	}
	if uint32(level) > c.cfg.MaxAggrLevel && c.cfg.MaxAggrLevel > 0 {
		level = int(c.cfg.MaxAggrLevel)
	}
	return level
}

// CandidatesFor returns (computing and caching if necessary) the
// UE-specific PDCCH candidate table for this carrier at the given CFI
// index (0-based) and subframe index, via the cell-wide LRU cache.
func (c *Carrier) CandidatesFor(rnti uint16, cfiIdx int, sfIdx uint32, nCCE uint32) *pdcch.CandidateTable {
	key := pdcchcache.Key{RNTI: rnti, CCIndex: c.CCIndex, CFIIdx: cfiIdx, SfIdx: sfIdx}
	return c.cache.Get(key, func() pdcch.CandidateTable {
		return pdcch.ComputeUECandidates(rnti, sfIdx, nCCE)
	})
}

// InvalidateCandidates drops this UE's cached candidate tables, e.g.
// after a cell bandwidth/CFI reconfiguration.
func (c *Carrier) InvalidateCandidates() {
	c.cache.InvalidateUE(c.rnti)
}
