package sched

import (
	"time"

	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/grid"
	"github.com/go-enb/sched/internal/harq"
	"github.com/go-enb/sched/internal/lchan"
	"github.com/go-enb/sched/internal/pdcch"
	"github.com/go-enb/sched/internal/rrm"
	"github.com/go-enb/sched/internal/tti"
	"github.com/go-enb/sched/internal/uestate"
	"github.com/go-enb/sched/internal/wire"
)

// RACHEvent is one detected PRACH preamble, as handed up from the PHY:
// the preamble index, the temp C-RNTI and TA command it already assigned,
// and the estimated Msg3 size (§6 "rach(cc, {prach_tti, preamble_idx,
// temp_crnti, ta_cmd, msg3_size})").
type RACHEvent struct {
	PRACHTTI    uint32
	PreambleIdx uint32
	TempCRNTI   uint16
	TACmd       int
	Msg3Size    uint32
}

// DLRachInfo records a detected PRACH preamble on carrier cc, creating the
// UE that owns the PHY-assigned temp C-RNTI (§3 "created on RACH (rach-only
// config with SRB0 active)", §4.5).
func (s *Scheduler) DLRachInfo(cc int, ev RACHEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.carrier(cc)
	if cs == nil {
		return &Error{Op: "DLRachInfo", CCIndex: cc, Code: ErrCodeUnknownCarrier, Msg: "carrier not configured"}
	}
	if cs.ra == nil {
		return &Error{Op: "DLRachInfo", CCIndex: cc, Code: ErrCodeNotActive, Msg: "rach only accepted on pcell"}
	}

	ok := cs.ra.RACHInfo(tti.New(ev.PRACHTTI), ev.PreambleIdx, ev.TempCRNTI, ev.TACmd, ev.Msg3Size)
	if !ok {
		return &Error{Op: "DLRachInfo", CCIndex: cc, Code: ErrCodeRARWindowExpired, Msg: "rar grant limit reached for this prach tti"}
	}

	ue := uestate.NewUE(ev.TempCRNTI, defaultRACHCarrierConfig(cs.cfg), s.cache, s.log)
	const lcidCCCH = 0 // SRB0, active from RACH per the rach-only config
	ue.LChan.ConfigLCID(lcidCCCH, lchan.BearerConfig{Priority: 1, PBR: lchan.PBRInfinity, LCG: 0, Direction: lchan.DirBoth})
	s.ues[ev.TempCRNTI] = ue
	s.rachPending[ev.TempCRNTI] = true
	return nil
}

// ULCRCInfo applies a UL CRC result received at now for rnti on carrier
// cc. A successful CRC on the process a UE is still awaiting contention
// resolution on queues the ConRes-ID MAC CE at the front of its pending
// CE list (§8 scenario: "after Msg3 CRC=ok, first DL data DCI contains
// ConRes-ID").
func (s *Scheduler) ULCRCInfo(now uint32, rnti uint16, cc int, crcOK bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("ULCRCInfo", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	c := ue.Carrier(cc)
	if c == nil {
		return NewCarrierError("ULCRCInfo", rnti, cc, ErrCodeUnknownCarrier, "carrier not configured for ue")
	}

	applied, pid := c.HarqEnt.SetULCRC(tti.New(now), crcOK)
	if !applied {
		if s.log != nil {
			s.log.Warn("ul crc for inactive harq process", "rnti", rnti, "cc", cc, "pid", pid)
		}
		return nil
	}
	if crcOK && s.rachPending[rnti] {
		ue.CEQueue.PushFront(constants.LCIDConResID)
		delete(s.rachPending, rnti)
	}
	if !crcOK && c.HarqEnt.ULProcs()[pid].IsEmptyTB(0) {
		s.obs.ObserveHARQDrop(false)
	}
	return nil
}

// DLAckInfo applies a DL HARQ ACK/NACK received at now for rnti/cc/tbIdx
// (§3, §4.3).
func (s *Scheduler) DLAckInfo(now uint32, rnti uint16, cc, tbIdx int, ack bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ue, ok := s.ues[rnti]
	if !ok {
		return NewUEError("DLAckInfo", rnti, ErrCodeUnknownUE, "ue not configured")
	}
	c := ue.Carrier(cc)
	if c == nil {
		return NewCarrierError("DLAckInfo", rnti, cc, ErrCodeUnknownCarrier, "carrier not configured for ue")
	}
	pid, tbs := c.HarqEnt.SetAckInfo(tti.New(now), tbIdx, ack)
	if tbs < 0 {
		if s.log != nil {
			s.log.Warn("dl ack for unmatched harq process", "rnti", rnti, "cc", cc, "tb", tbIdx)
		}
		return nil
	}
	if !ack && c.HarqEnt.DLProcs()[pid].IsEmptyTB(tbIdx) {
		s.obs.ObserveHARQDrop(true)
	}
	return nil
}

// DLSched runs one TTI of DL scheduling on carrier cc: broadcast/paging,
// RAR (PCell only), round-robin data allocation, Msg3 PRB reservation in
// the future subframe the RAR grants target, and DL HARQ seeding for
// every data allocation the round-robin metric produced (§4.9).
func (s *Scheduler) DLSched(now uint32, cc int) (wire.SFDLResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.carrier(cc)
	if cs == nil {
		return wire.SFDLResult{}, &Error{Op: "DLSched", CCIndex: cc, Code: ErrCodeUnknownCarrier, Msg: "carrier not configured"}
	}

	txDL := tti.New(now)
	if cc == 0 {
		for _, ue := range s.ues {
			ue.NewTTI(txDL)
		}
	}

	g := cs.gridFor(txDL, txDL)
	commonCandidates := func(aggr int) []uint32 {
		tbl := pdcch.CommonCandidates(g.CurrentNCCE())
		return tbl.StartsFor(aggr)
	}

	var result wire.SFDLResult
	if cs.bc != nil {
		result.BC = cs.bc.Schedule(txDL, g, commonCandidates)
	}
	if cs.ra != nil {
		result.RAR = cs.ra.Schedule(txDL, g, commonCandidates)
		s.reserveMsg3(cs, txDL, result.RAR)
	}

	cs.rr.DL.SchedUsers(txDL, s.ues, g)
	result.Data = s.finalizeDLAllocations(cs, txDL, g)
	result.CFI = uint32(g.CFI())

	s.metrics.RecordTTIDuration(time.Since(start))
	return result, nil
}

// reserveMsg3 grants each RAR's coalesced Msg3 PRBs against the future
// subframe's own grid and seeds the UL HARQ process that will carry it,
// since ra.Scheduler computes the grant shape but has no grid to reserve
// against (its own reserveMsg3 deliberately leaves that to the caller).
func (s *Scheduler) reserveMsg3(cs *carrierState, txDL tti.Point, rars []wire.RAR) {
	if len(rars) == 0 {
		return
	}
	msg3TTI := txDL.Add(constants.Msg3DelayTTIs)
	msg3Grid := cs.gridFor(txDL, msg3TTI)

	for _, rar := range rars {
		for _, gr := range rar.Grants {
			ue := s.ues[gr.TempCRNTI]
			if ue == nil {
				continue
			}
			h := ue.PCell().HarqEnt.GetUL(msg3TTI)
			outcome, _ := msg3Grid.AllocULUser(gr.TempCRNTI, h.ID(), gr.RBStart, gr.L, nil, 0)
			if !outcome.OK() {
				if s.log != nil {
					s.log.Warn("msg3 prb reservation collided", "rnti", gr.TempCRNTI, "outcome", outcome.String())
				}
				continue
			}
			tbs := rrm.ULTBSForPRB(gr.L, gr.MCS)
			h.NewTx(msg3TTI, gr.MCS, tbs, harq.UlAlloc{RBStart: gr.RBStart, L: gr.L}, ue.MaxMsg3Retx)
		}
	}
}

// finalizeDLAllocations seeds DL HARQ state and sizes the MAC PDU for
// every DL allocation the round-robin metric placed into g this TTI: the
// metric only reserves the RBG mask and PDCCH location, so the facade
// recomputes the MCS/TBS from the same CQI it was sized from and calls
// NewTx/NewRetx to arm the process (§4.6, §4.8).
func (s *Scheduler) finalizeDLAllocations(cs *carrierState, txDL tti.Point, g *grid.Grid) []wire.DLData {
	var out []wire.DLData
	for _, alloc := range g.DL {
		ue, ok := s.ues[alloc.RNTI]
		if !ok {
			continue
		}
		c := ue.Carrier(cs.ccIndex)
		if c == nil {
			continue
		}
		h := c.HarqEnt.DLProcs()[alloc.Pid]
		isNewTx := h.IsEmpty()

		var mcs, tbsBytes int
		var ndi bool
		var elems []lchan.PDUElement
		key := dciFormatKey(alloc.RNTI, alloc.Pid)

		if isNewTx {
			mcs = rrm.MCSForCQI(c.DLCQI, c.MaxMCSForDL())
			tbsBytes = rrm.DLTBSForRBG(alloc.Mask.Count(), mcs)
			h.NewTx(alloc.Mask, 0, txDL, mcs, tbsBytes, alloc.DCI.NCCE)
			ndi = h.NDI(0)
			elems, _ = ue.LChan.SizePDU(&ue.CEQueue, tbsBytes)
			format := wire.DCIFormat1
			for _, e := range elems {
				if e.LCID == constants.LCIDConResID {
					format = wire.DCIFormat1A
					break
				}
			}
			cs.dciFormat[key] = format
		} else {
			mcs, tbsBytes = h.NewRetx(alloc.Mask, 0, txDL, alloc.DCI.NCCE)
			ndi = h.NDI(0)
		}

		format, ok := cs.dciFormat[key]
		if !ok {
			format = wire.DCIFormat1
		}

		grant := wire.DLGrant{
			RNTI:     alloc.RNTI,
			Format:   format,
			Location: wire.DCILocation{NCCE: alloc.DCI.NCCE, L: alloc.DCI.L},
			Pid:      alloc.Pid,
			RBGMask:  alloc.Mask.String(),
		}
		grant.MCS[0] = mcs
		grant.TBS[0] = tbsBytes
		grant.NDI[0] = ndi
		grant.RV[0] = h.RV(0)

		data := wire.DLData{Grant: grant}
		for _, e := range elems {
			data.Elements[0] = append(data.Elements[0], wire.DLPDUElement{LCID: uint32(e.LCID), NBytes: uint32(e.NBytes)})
		}
		out = append(out, data)
	}
	return out
}

// ULSched runs one TTI of UL scheduling on carrier cc: round-robin
// retx-then-newtx PUSCH allocation, plus the PHICH bits owed from UL CRC
// results already applied for the processes addressed this TTI (§4.6,
// §4.9).
func (s *Scheduler) ULSched(now uint32, cc int) (wire.SFULResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.carrier(cc)
	if cs == nil {
		return wire.SFULResult{}, &Error{Op: "ULSched", CCIndex: cc, Code: ErrCodeUnknownCarrier, Msg: "carrier not configured"}
	}

	txUL := tti.New(now)
	g := cs.gridFor(txUL, txUL)

	cs.rr.UL.SchedUsers(txUL, s.ues, g)

	var result wire.SFULResult
	for _, alloc := range g.UL {
		ue, ok := s.ues[alloc.RNTI]
		if !ok {
			continue
		}
		c := ue.Carrier(cs.ccIndex)
		if c == nil {
			continue
		}
		h := c.HarqEnt.GetUL(txUL)
		mcs := h.LastMCS(0)
		if !alloc.Adaptive && h.NofRetx(0) > 0 {
			// Non-adaptive retx carries no new grant fields; the MCS/RV
			// field is repurposed to signal the redundancy version (§4.3).
			mcs = constants.NonAdaptiveRetxMCSBase + h.RV(0)
		}
		result.PUSCH = append(result.PUSCH, wire.ULGrant{
			RNTI:        alloc.RNTI,
			NeedsPDCCH:  alloc.Adaptive,
			Location:    wire.DCILocation{NCCE: alloc.DCI.NCCE, L: alloc.DCI.L},
			Pid:         alloc.Pid,
			MCS:         mcs,
			TBS:         h.LastTBS(0),
			NDI:         h.NDI(0),
			RV:          h.RV(0),
			RBStart:     alloc.RBStart,
			L:           alloc.L,
			CurrentTxNb: h.NofTx(0),
		})
	}

	for _, ue := range s.ues {
		c := ue.Carrier(cs.ccIndex)
		if c == nil {
			continue
		}
		h := c.HarqEnt.GetUL(txUL)
		if h.HasPendingAck() {
			result.PHICH = append(result.PHICH, wire.PHICHBit{RNTI: ue.RNTI, ACK: h.PendingAck()})
			h.ResetPendingData()
		}
	}

	s.metrics.RecordTTIDuration(time.Since(start))
	return result, nil
}
