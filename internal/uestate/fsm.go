package uestate

import "github.com/go-enb/sched/internal/constants"

// The secondary-cell activation FSM (§4.7) is implemented directly as
// methods on Carrier (Activate/Deactivate/OnDLCQIReceived/
// TryFinishDeactivation in carrier.go). This file documents the legal
// transitions and offers a small helper used by the RRC-facing facade.

// transitions:
//
//	idle         -(RRC activate)->      activating
//	activating   -(DL CQI>0 received)->  active
//	active       -(RRC deactivate)->     deactivating
//	deactivating -(HARQ drained)->       idle
//
// The PCell never leaves Active; Activate/Deactivate are no-ops on ccIndex 0.

// CanScheduleDL reports whether ccIndex may receive a new DL allocation
// this TTI: the carrier must be Active (§4.7's allocator-refusal rule), and
// the UE's PCell CQI must have been received at least once, unless the UE
// still has contention resolution (ConRes-ID/Msg4) pending, since that
// first DL data transmission has to go out before any CQI report can
// arrive (§4.6).
func (u *UE) CanScheduleDL(ccIndex int) bool {
	c := u.Carrier(ccIndex)
	if c == nil || !c.IsActive() {
		return false
	}
	if !u.PCell().DLCQIRx && !u.CEQueue.Contains(constants.LCIDConResID) {
		return false
	}
	return true
}

// CanScheduleUL reports whether ccIndex may receive a new UL grant this
// TTI.
func (u *UE) CanScheduleUL(ccIndex int) bool {
	c := u.Carrier(ccIndex)
	return c != nil && c.IsActive()
}
