// Package sched implements the top-level MAC scheduler facade: the
// single entry point PHY/RRC/RLC drive across the FAPI-like boundary
// described in sched_interface.h (cell/UE/bearer configuration, PHY
// feedback setters, and the per-TTI dl_sched/ul_sched pair), owning the
// UE map and one sub-scheduler per component carrier under a single
// mutex (§4.9, §5).
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/go-enb/sched/internal/bcch"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/lchan"
	"github.com/go-enb/sched/internal/pdcchcache"
	"github.com/go-enb/sched/internal/ra"
	"github.com/go-enb/sched/internal/rrm"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/uestate"
	"github.com/go-enb/sched/internal/wire"
)

// defaultRARWindowMS is the RAR response window the RA scheduler is
// configured with when cell_cfg_t.prach_rar_window is zero.
const defaultRARWindowMS = 10

// gridStaleAfterTTIs bounds how long a per-TTI grid is kept around once
// created, covering the longest round trip any subsystem can reach into
// the future for (HARQ ACK/retx timelines, the RAR window, and the Msg3
// delay): long enough that a grid is never pruned before every subsystem
// that might still touch it is done, short enough to bound memory on a
// scheduler that runs indefinitely.
const gridStaleAfterTTIs = 64

// carrierState is everything the facade owns for one component carrier:
// its static config, the BCCH/RA pipelines (PCell only), the round-robin
// metric, and the rolling per-TTI grid map (§4.1 EXPANSION: per-TTI
// scratch scoped to the TTI it was built for, but kept addressable across
// the independent dl_sched/ul_sched calls and the Msg3 cross-TTI
// reservation that targets a future subframe).
type carrierState struct {
	ccIndex int
	cfg     CellConfig

	bc *bcch.Scheduler // nil on SCells
	ra *ra.Scheduler    // nil on SCells
	rr *rrm.CellScheduler

	nCCEByCFI [4]uint32
	nRBG      int

	grids map[uint32]*grid.Grid

	// dciFormat remembers the DCI format chosen for a UE's DL HARQ
	// process at new-tx time (ConRes-ID forces format 1A), so a
	// subsequent retransmission of the same process reuses it without
	// re-inspecting MAC PDU contents it no longer has on hand. Keyed by
	// rnti<<8 | pid.
	dciFormat map[uint32]wire.DCIFormat
}

func dciFormatKey(rnti uint16, pid uint32) uint32 { return uint32(rnti)<<8 | pid }

func newCarrierState(cfg CellConfig, obs interfaces.Observer, log interfaces.Logger) *carrierState {
	cs := &carrierState{
		ccIndex:   cfg.CCIndex,
		cfg:       cfg,
		rr:        rrm.NewCellScheduler(cfg.CCIndex, obs, log),
		nCCEByCFI: cfg.nCCEByCFI(),
		nRBG:      nRBGForPRB(cfg.NofPRB),
		grids:     map[uint32]*grid.Grid{},
		dciFormat: map[uint32]wire.DCIFormat{},
	}
	if cfg.CCIndex == 0 {
		windowMS := cfg.PRACHRARWindowMS
		if windowMS == 0 {
			windowMS = defaultRARWindowMS
		}
		cs.bc = bcch.New(cfg.SIBs, obs, log)
		cs.ra = ra.New(windowMS, cfg.NofPRB, obs, log)
	}
	return cs
}

// gridFor returns the carrier's resource grid for TTI t, creating and
// initialising it on first touch by any of dl_sched, ul_sched, or the
// Msg3 reservation step, and pruning grids old enough that nothing can
// still be addressing them.
func (cs *carrierState) gridFor(now, t tti.Point) *grid.Grid {
	key := t.Uint32()
	g, ok := cs.grids[key]
	if !ok {
		g = grid.New(cs.nRBG, cs.cfg.NofPRB, cs.nCCEByCFI, nil)
		g.NewTTI()
		cs.grids[key] = g
	}
	cs.pruneGrids(now)
	return g
}

func (cs *carrierState) pruneGrids(now tti.Point) {
	for key := range cs.grids {
		if now.Sub(tti.New(key)) > gridStaleAfterTTIs {
			delete(cs.grids, key)
		}
	}
}

// Scheduler is the cell-wide MAC scheduler: the UE map, one carrierState
// per component carrier, and the shared PDCCH candidate cache, guarded by
// a single mutex so dl_sched/ul_sched and every configuration/feedback
// setter observe a consistent view (§5).
type Scheduler struct {
	mu sync.Mutex

	carriers []*carrierState
	ues      map[uint16]*uestate.UE
	cache    *pdcchcache.Cache

	// rachPending tracks UEs awaiting their contention-resolution MAC CE:
	// set when a UE is created at RACH time, cleared (and the CE queued)
	// on the first successful Msg3 CRC (§3, §8 invariant 8).
	rachPending map[uint16]bool

	metrics *Metrics
	obs     interfaces.Observer
	log     interfaces.Logger

	ctx context.Context
}

// Options bundles the optional collaborators a Scheduler is built with:
// cancellation context, logger, observer, and the cell-wide PDCCH cache
// sizing hint.
type Options struct {
	Context  context.Context
	Logger   interfaces.Logger
	Observer interfaces.Observer

	// MaxUEs sizes the shared PDCCH candidate cache (component P); 0
	// picks a reasonable default.
	MaxUEs int
}

// New returns an unconfigured Scheduler: no carriers, no UEs. Callers
// must call CellCfg before dl_sched/ul_sched can do anything useful.
func New(options *Options) *Scheduler {
	if options == nil {
		options = &Options{}
	}
	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}
	obs := options.Observer
	metrics := NewMetrics(time.Now())
	if obs == nil {
		obs = metrics
	}
	maxUEs := options.MaxUEs
	if maxUEs <= 0 {
		maxUEs = 64
	}

	return &Scheduler{
		ues:         map[uint16]*uestate.UE{},
		cache:       pdcchcache.New(maxUEs),
		rachPending: map[uint16]bool{},
		metrics:     metrics,
		obs:         obs,
		log:         options.Logger,
		ctx:         ctx,
	}
}

// CellCfg (re)configures the cell's component carrier list, mirroring
// sched_interface.h's cell_cfg(list). The first entry is the PCell.
func (s *Scheduler) CellCfg(cells []CellConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(cells) == 0 {
		return NewError("CellCfg", ErrCodeConfigInvalid, "empty cell list")
	}
	carriers := make([]*carrierState, len(cells))
	for i, cfg := range cells {
		if cfg.NofPRB <= 0 {
			return NewError("CellCfg", ErrCodeConfigInvalid, "nof_prb out of range")
		}
		cfg.CCIndex = i
		carriers[i] = newCarrierState(cfg, s.obs, s.log)
	}
	s.carriers = carriers
	return nil
}

// Reset clears every UE and carrier, mirroring sched_interface.h's
// reset(). CellCfg must be called again before scheduling resumes.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carriers = nil
	s.ues = map[uint16]*uestate.UE{}
	s.rachPending = map[uint16]bool{}
}

func (s *Scheduler) carrier(cc int) *carrierState {
	if cc < 0 || cc >= len(s.carriers) {
		return nil
	}
	return s.carriers[cc]
}

// UEExists reports whether rnti is currently configured.
func (s *Scheduler) UEExists(rnti uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ues[rnti]
	return ok
}

// UECfg applies a full RRC UE configuration on top of the rach-only
// defaults a UE is created with. The UE must already exist (created by a
// prior DLRachInfo call); unknown RNTIs are an error, never a crash.
func (s *Scheduler) UECfg(rnti uint16, cfg UEConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("UECfg", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.PUCCH = cfg.toPUCCHConfig()
	carrierCfg := cfg.toCarrierConfig()
	for _, c := range ue.Carriers {
		c.Reconfigure(carrierCfg)
	}
	return nil
}

// UERem removes a UE and every reference to it: HARQ state, logical
// channels, and cached PDCCH candidates drop with it (§5 "ue_rem is
// synchronous").
func (s *Scheduler) UERem(rnti uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ues[rnti]; !ok {
		return NewUEError("UERem", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	delete(s.ues, rnti)
	delete(s.rachPending, rnti)
	s.cache.InvalidateUE(rnti)
	return nil
}

// SCellAdd configures a secondary cell carrier for rnti, starting idle
// (§4.7). ccIndex must already be a configured carrier on the cell and
// must not already exist on this UE.
func (s *Scheduler) SCellAdd(rnti uint16, ccIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("SCellAdd", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	cs := s.carrier(ccIndex)
	if cs == nil {
		return &Error{Op: "SCellAdd", CCIndex: ccIndex, Code: ErrCodeUnknownCarrier, Msg: "carrier not configured"}
	}
	if ue.Carrier(ccIndex) != nil {
		return NewCarrierError("SCellAdd", rnti, ccIndex, ErrCodeAlreadyExists, "scell already added")
	}
	if len(ue.Carriers) != ccIndex {
		return NewCarrierError("SCellAdd", rnti, ccIndex, ErrCodeUnknownCarrier, "scells must be added in index order")
	}
	ue.AddCarrier(defaultRACHCarrierConfig(cs.cfg))
	return nil
}

// SCellActivate marks a UE's secondary cell active, queuing the SCell
// Activation MAC CE if this transitions the carrier out of idle (§4.7:
// "RRC marks the SCell active").
func (s *Scheduler) SCellActivate(rnti uint16, ccIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("SCellActivate", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	if ue.Carrier(ccIndex) == nil {
		return NewCarrierError("SCellActivate", rnti, ccIndex, ErrCodeUnknownCarrier, "scell not added for ue")
	}
	ue.QueueSCellActivation(ccIndex)
	return nil
}

// SCellDeactivate begins RRC-driven deactivation of a UE's secondary
// cell; the carrier finishes the idle transition once every outstanding
// HARQ process on it has drained (§4.7).
func (s *Scheduler) SCellDeactivate(rnti uint16, ccIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("SCellDeactivate", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	if ue.Carrier(ccIndex) == nil {
		return NewCarrierError("SCellDeactivate", rnti, ccIndex, ErrCodeUnknownCarrier, "scell not added for ue")
	}
	ue.RequestSCellDeactivation(ccIndex)
	return nil
}

// BearerUECfg configures one logical channel for rnti.
func (s *Scheduler) BearerUECfg(rnti uint16, lcid int, cfg BearerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("BearerUECfg", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.LChan.ConfigLCID(lcid, cfg.toLChan())
	return nil
}

// BearerUERem disables a logical channel for rnti (idle direction, no
// further scheduling until reconfigured).
func (s *Scheduler) BearerUERem(rnti uint16, lcid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("BearerUERem", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.LChan.ConfigLCID(lcid, lchan.BearerConfig{Direction: lchan.DirIdle})
	return nil
}

// GetDLBuffer returns the UE's aggregate pending DL bytes across every
// logical channel.
func (s *Scheduler) GetDLBuffer(rnti uint16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return 0, NewUEError("GetDLBuffer", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	return ue.PendingDLBytes(), nil
}

// GetULBuffer returns the UE's aggregate UL buffer-status-report total.
func (s *Scheduler) GetULBuffer(rnti uint16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return 0, NewUEError("GetULBuffer", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	return ue.PendingULBytes(), nil
}

// DLRLCBufferState records RLC's reported new-tx/retx queue depths for
// one logical channel.
func (s *Scheduler) DLRLCBufferState(rnti uint16, lcid int, txQueue, retxQueue uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("DLRLCBufferState", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.LChan.DLBufferState(lcid, txQueue, retxQueue)
	return nil
}

// DLMACBufferState queues a MAC control element for rnti (§6 "DL-SCH:
// CCCH=0, SCELL_ACTIVATION=27, CON_RES_ID=28, TA_CMD=29, DRX_CMD=30").
func (s *Scheduler) DLMACBufferState(rnti uint16, ceCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("DLMACBufferState", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.CEQueue.Push(ceCode)
	return nil
}

// ULSRInfo records a scheduling-request event from rnti.
func (s *Scheduler) ULSRInfo(rnti uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("ULSRInfo", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.SetSRPending(true)
	return nil
}

// ULBSR sets the absolute UL buffer-status-report value for one of
// rnti's logical-channel groups.
func (s *Scheduler) ULBSR(rnti uint16, lcg int, bsr uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("ULBSR", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.LChan.ULBSR(lcg, bsr)
	return nil
}

// ULRecvLen reports incremental UL data arrival for one logical channel,
// adding to its group's BSR total.
func (s *Scheduler) ULRecvLen(rnti uint16, lcid int, nBytes uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("ULRecvLen", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.LChan.ULBufferAdd(lcid, nBytes)
	return nil
}

// ULPHR records a power-headroom report.
func (s *Scheduler) ULPHR(rnti uint16, phr int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("ULPHR", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	ue.QueuePHR(phr)
	return nil
}

// DLCQIInfo records a wideband DL CQI report for rnti's carrier cc.
func (s *Scheduler) DLCQIInfo(now uint32, rnti uint16, cc int, cqi uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ueCarrier("DLCQIInfo", rnti, cc)
	if err != nil {
		return err
	}
	c.SetDLCQI(tti.New(now), cqi)
	return nil
}

// DLRIInfo records a reported DL rank indicator.
func (s *Scheduler) DLRIInfo(now uint32, rnti uint16, cc int, ri uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ueCarrier("DLRIInfo", rnti, cc)
	if err != nil {
		return err
	}
	c.SetDLRI(tti.New(now), ri)
	return nil
}

// DLPMIInfo records a reported DL precoding matrix indicator.
func (s *Scheduler) DLPMIInfo(now uint32, rnti uint16, cc int, pmi uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ueCarrier("DLPMIInfo", rnti, cc)
	if err != nil {
		return err
	}
	c.SetDLPMI(tti.New(now), pmi)
	return nil
}

// ULCQIInfo records a UL CQI (SNR proxy) report for rnti's carrier cc.
func (s *Scheduler) ULCQIInfo(now uint32, rnti uint16, cc int, cqi uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ueCarrier("ULCQIInfo", rnti, cc)
	if err != nil {
		return err
	}
	c.SetULCQI(tti.New(now), cqi)
	return nil
}

// ueCarrier looks up rnti's carrier cc under the caller's already-held
// lock, returning a structured error on an unknown UE or carrier index.
func (s *Scheduler) ueCarrier(op string, rnti uint16, cc int) (*uestate.Carrier, error) {
	ue, ok := s.ues[rnti]
	if !ok {
		return nil, NewUEError(op, rnti, ErrCodeUnknownUE, "ue not configured")
	}
	c := ue.Carrier(cc)
	if c == nil {
		return nil, NewCarrierError(op, rnti, cc, ErrCodeUnknownCarrier, "carrier not configured for ue")
	}
	return c, nil
}

// Snapshot returns a point-in-time metrics view without taking the
// scheduling mutex (§5 EXPANSION: a metrics scrape must never stall a
// dl_sched/ul_sched caller).
func (s *Scheduler) Snapshot() Snapshot {
	return s.metrics.Snapshot(time.Now())
}

// Metrics returns the scheduler's metrics/audit component, e.g. for
// registration with a Prometheus registry.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }
