// Package ra implements the RACH/RAR/Msg3 pipeline: RA-RNTI derivation,
// pending-RAR coalescing, window deferral/drop logic, RAR DCI sizing with
// grant-count backoff, and Msg3 PRB reservation with type-2 RIV encoding
// (§4.5).
package ra

import (
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/interfaces"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/wire"
)

// FID is the PRACH frequency-domain index; always 0 for FDD (§4.5).
const FID = 0

// RARNTI derives the RA-RNTI for a preamble received at prachTTI (§4.5):
// `1 + (prach_tti mod 10) + f_id`.
func RARNTI(prachTTI tti.Point) uint16 {
	return uint16(1 + prachTTI.SfIdx() + FID)
}

// pendingMsg3 is one coalesced Msg3 grant awaiting a RAR transmission.
type pendingMsg3 struct {
	raID        uint32
	preambleIdx uint32
	tempCRNTI   uint16
	taCmd       int
	mcs         int
}

// pendingRAR is one in-flight RAR: all preambles that hashed to the same
// (ra_rnti, prach_tti) coalesced together (§4.5).
type pendingRAR struct {
	rarnti   uint16
	prachTTI tti.Point
	grants   []pendingMsg3
}

// Scheduler is the RACH/RAR/Msg3 pipeline for one carrier.
type Scheduler struct {
	windowMS uint32
	nPRB     int
	queue    []*pendingRAR
	obs      interfaces.Observer
	log      interfaces.Logger
}

// New returns a RA scheduler with the given RAR response window (ms) and
// cell bandwidth in PRBs, the latter needed to encode Msg3 grants as type-2
// RIVs.
func New(windowMS uint32, nPRB int, obs interfaces.Observer, log interfaces.Logger) *Scheduler {
	if obs == nil {
		obs = interfaces.NoOpObserver{}
	}
	return &Scheduler{windowMS: windowMS, nPRB: nPRB, obs: obs, log: log}
}

// RACHInfo records a PRACH preamble detection at prachTTI, identified by
// preambleIdx and carrying the temp C-RNTI and TA command the PHY already
// assigned it, coalescing it into an existing pending RAR for the same
// (ra_rnti, prach_tti) or creating a new one (§4.5). Returns false if the
// RAR's grant count is already at MaxRARGrants.
func (s *Scheduler) RACHInfo(prachTTI tti.Point, preambleIdx uint32, tempCRNTI uint16, taCmd int, estimatedSize uint32) bool {
	rarnti := RARNTI(prachTTI)
	for _, p := range s.queue {
		if p.rarnti == rarnti && p.prachTTI.Equal(prachTTI) {
			if len(p.grants) >= constants.MaxRARGrants {
				return false
			}
			p.grants = append(p.grants, pendingMsg3{
				raID:        uint32(len(p.grants)),
				preambleIdx: preambleIdx,
				tempCRNTI:   tempCRNTI,
				taCmd:       taCmd,
				mcs:         mcsForSize(estimatedSize),
			})
			return true
		}
	}
	s.queue = append(s.queue, &pendingRAR{
		rarnti:   rarnti,
		prachTTI: prachTTI,
		grants: []pendingMsg3{{
			raID:        0,
			preambleIdx: preambleIdx,
			tempCRNTI:   tempCRNTI,
			taCmd:       taCmd,
			mcs:         mcsForSize(estimatedSize),
		}},
	})
	return true
}

func mcsForSize(estimatedSize uint32) int {
	if estimatedSize > 200 {
		return 10
	}
	return 4
}

// Schedule examines the head of the RAR queue against txDL, deferring,
// dropping, or allocating a RAR DCI with grant-count backoff, and
// reserving Msg3 PRBs for each successful grant (§4.5).
func (s *Scheduler) Schedule(txDL tti.Point, g *grid.Grid, commonCandidates func(aggr int) []uint32) []wire.RAR {
	var out []wire.RAR
	msg3Start := 0

	for len(s.queue) > 0 {
		head := s.queue[0]
		due := head.prachTTI.Add(constants.RARDelayTTIs)

		if txDL.Before(due) {
			break // defer: still too early for the head, and order is FIFO
		}
		dropDeadline := head.prachTTI.Add(constants.RARDelayTTIs + s.windowMS)
		if txDL.After(dropDeadline) {
			s.obs.ObserveRARWindowDrop()
			if s.log != nil {
				s.log.Warn("rar window expired, dropping", "rarnti", head.rarnti, "prach_tti", head.prachTTI.Uint32())
			}
			s.queue = s.queue[1:]
			continue
		}

		rar, ok := s.tryAllocRAR(txDL, head, g, commonCandidates, msg3Start)
		if !ok {
			break // retry next TTI; FIFO order preserved
		}
		out = append(out, rar)
		msg3Start += len(rar.Grants) * constants.RARCtrlPRBs
		s.queue = s.queue[1:]
	}

	return out
}

// tryAllocRAR attempts a RAR DCI of 7*N+1 bytes for N grants, backing off
// the grant count down to 1 on RB collision before giving up for this TTI
// (§4.5).
func (s *Scheduler) tryAllocRAR(txDL tti.Point, head *pendingRAR, g *grid.Grid, commonCandidates func(int) []uint32, msg3Start int) (wire.RAR, bool) {
	const aggr = constants.AggrLevel4
	n := len(head.grants)
	for n >= 1 {
		tbs := constants.RARSubheaderBytes*n + 1
		minRBG, maxRBG := rbgForBytes(tbs), rbgForBytes(tbs)
		mask, ok := g.FindDLAllocation(minRBG, maxRBG)
		if ok {
			outcome, alloc := g.AllocCtrl(interfaces.AllocDLRAR, mask, commonCandidates(aggr), aggr)
			s.obs.ObserveAllocation(interfaces.AllocDLRAR, outcome)
			if outcome.OK() {
				grants := s.reserveMsg3(txDL, head.grants[:n], g, msg3Start)
				return wire.RAR{
					RARNTI:   head.rarnti,
					TBS:      tbs,
					Location: wire.DCILocation{NCCE: alloc.NCCE, L: alloc.L},
					Grants:   grants,
				}, true
			}
		}
		n--
	}
	return wire.RAR{}, false
}

func rbgForBytes(tbs int) int {
	need := (tbs + constants.RARCtrlPRBs - 1) / constants.RARCtrlPRBs
	if need < 1 {
		need = 1
	}
	return need
}

// reserveMsg3 lays out 3 contiguous PRBs per grant for the Msg3 subframe
// (tti_tx_dl + MSG3_DELAY), starting at rbStart (the first PRB after the
// grants of the RARs already allocated this TTI), and encodes each as a
// type-2 RIV (§4.5). It does not reserve the PRBs in any grid; the caller
// does that against the Msg3 subframe's own grid.
func (s *Scheduler) reserveMsg3(txDL tti.Point, grants []pendingMsg3, g *grid.Grid, rbStart int) []wire.RARGrant {
	msg3TTI := txDL.Add(constants.Msg3DelayTTIs)
	_ = msg3TTI // the grid's UL mask for that subframe is owned by the caller's per-TTI grid rotation

	var out []wire.RARGrant
	for _, gr := range grants {
		out = append(out, wire.RARGrant{
			RAPID:     gr.raID,
			TempCRNTI: gr.tempCRNTI,
			RBStart:   rbStart,
			L:         constants.RARCtrlPRBs,
			RIV:       RIVType2(s.nPRB, rbStart, constants.RARCtrlPRBs),
			MCS:       gr.mcs,
			TACmd:     gr.taCmd,
		})
		rbStart += constants.RARCtrlPRBs
	}
	return out
}

// RIVType2 encodes a contiguous PRB allocation [rbStart, rbStart+l) as a
// type-2 resource indication value for nPRB total PRBs (TS 36.213
// §7.1.6.3).
func RIVType2(nPRB, rbStart, l int) uint32 {
	lCapped := l
	if lCapped > nPRB-rbStart {
		lCapped = nPRB - rbStart
	}
	if lCapped-1 <= nPRB/2 {
		return uint32(nPRB*(lCapped-1) + rbStart)
	}
	return uint32(nPRB*(nPRB-lCapped+1) + (nPRB - 1 - rbStart))
}
