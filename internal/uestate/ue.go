package uestate

import (
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/lchan"
	"github.com/go-enb/sched/internal/pdcchcache"
	"github.com/go-enb/sched/internal/tti"
)

// PUCCHConfig is the UE's periodic-resource configuration relevant to the
// PDCCH allocator's SR-collision exclusion rule.
type PUCCHConfig struct {
	SRConfigured bool
	SRPeriod     uint32
	SROffset     uint32
	NPUCCHFormat1 uint32
}

// UE is the per-UE scheduler state: ordered carrier list (index 0 is
// always PCell), the logical-channel manager, SR/BSR/PHR bookkeeping,
// pending MAC control elements, and Msg3 retransmission tracking (§3
// "Per-UE state").
type UE struct {
	RNTI uint16

	Carriers []*Carrier
	LChan    *lchan.Manager
	CEQueue  lchan.CEQueue

	SRPending   bool
	PHR         int
	TPCPending  []int // queued TPC commands, applied and cleared by the grid
	PUCCH       PUCCHConfig

	MaxMsg3Retx uint32
	Msg3NofRetx uint32

	currentTTI tti.Point

	cache *pdcchcache.Cache
	log   interfaces.Logger
}

// NewUE returns a UE with a PCell-only carrier configuration; SCells are
// added with AddCarrier. cache is the cell-wide PDCCH candidate-location
// cache (component P) shared across every UE on the cell; if nil, a
// UE-private cache is created instead (for standalone construction and
// tests).
func NewUE(rnti uint16, pcellCfg CarrierConfig, cache *pdcchcache.Cache, log interfaces.Logger) *UE {
	if cache == nil {
		cache = pdcchcache.New(4)
	}
	u := &UE{
		RNTI:        rnti,
		LChan:       lchan.NewManager(log),
		MaxMsg3Retx: constants.DefaultMaxMsg3Retx,
		cache:       cache,
		log:         log,
	}
	u.Carriers = append(u.Carriers, NewCarrier(0, pcellCfg, rnti, cache, log))
	return u
}

// AddCarrier configures an additional secondary cell for this UE, starting
// idle per §4.7.
func (u *UE) AddCarrier(cfg CarrierConfig) *Carrier {
	idx := len(u.Carriers)
	c := NewCarrier(idx, cfg, u.RNTI, u.cache, u.log)
	u.Carriers = append(u.Carriers, c)
	return c
}

// PCell returns the UE's primary cell carrier state.
func (u *UE) PCell() *Carrier { return u.Carriers[0] }

// Carrier returns the carrier state for ccIndex, or nil if out of range.
func (u *UE) Carrier(ccIndex int) *Carrier {
	if ccIndex < 0 || ccIndex >= len(u.Carriers) {
		return nil
	}
	return u.Carriers[ccIndex]
}

// ActiveCarriers returns every carrier currently eligible for DL/UL
// allocation (§4.7).
func (u *UE) ActiveCarriers() []*Carrier {
	var out []*Carrier
	for _, c := range u.Carriers {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	return out
}

// NewTTI advances per-TTI UE state: the logical-channel token buckets and
// any pending SCell deactivation completion checks.
func (u *UE) NewTTI(now tti.Point) {
	u.currentTTI = now
	u.LChan.NewTTI()
	for _, c := range u.Carriers {
		c.TryFinishDeactivation()
	}
}

// SetSRPending records a scheduling-request event from the UE.
func (u *UE) SetSRPending(pending bool) { u.SRPending = pending }

// QueueSCellActivation activates a secondary cell and, if the FSM requires
// it, queues the SCell-Activation MAC CE at the front of the pending CE
// queue (§4.7).
func (u *UE) QueueSCellActivation(ccIndex int) {
	c := u.Carrier(ccIndex)
	if c == nil {
		return
	}
	if c.Activate() {
		u.CEQueue.PushFront(constants.LCIDSCellActivation)
	}
}

// RequestSCellDeactivation begins deactivation of a secondary cell.
func (u *UE) RequestSCellDeactivation(ccIndex int) {
	c := u.Carrier(ccIndex)
	if c == nil {
		return
	}
	c.Deactivate()
}

// QueuePHR records a new power-headroom report.
func (u *UE) QueuePHR(phr int) { u.PHR = phr }

// QueueTPC appends a pending TPC command for the next UL grant.
func (u *UE) QueueTPC(delta int) { u.TPCPending = append(u.TPCPending, delta) }

// PopTPC drains and returns the pending TPC commands.
func (u *UE) PopTPC() []int {
	out := u.TPCPending
	u.TPCPending = nil
	return out
}

// PendingDLBytes sums the new-tx + retx pending bytes across every
// configured DL logical channel (§4.6 "Downlink Metric": the RR scheduler
// sizes a new-tx allocation from the UE's total pending DL data).
func (u *UE) PendingDLBytes() int {
	total := 0
	for lcid := 0; lcid < constants.NumLCIDs; lcid++ {
		total += u.LChan.GetDLTxTotal(lcid)
	}
	return total
}

// PendingULBytes returns the aggregate UL buffer-status-report total
// across every logical-channel group (§4.6 "Uplink Metric").
func (u *UE) PendingULBytes() int { return u.LChan.TotalBSR() }

// IncMsg3Retx advances the Msg3 retransmission counter and reports whether
// the retry budget is exhausted.
func (u *UE) IncMsg3Retx() (exhausted bool) {
	u.Msg3NofRetx++
	return u.Msg3NofRetx > u.MaxMsg3Retx
}
