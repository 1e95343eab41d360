package lchan

import "github.com/go-enb/sched/internal/constants"

// CESize returns the total MAC PDU bytes (subheader + payload) a control
// element of the given LCID codepoint costs (TS 36.321 §6.1.3): a 1-byte
// subheader, plus a 6-byte payload for ConRes ID, a 1-byte payload for
// SCell Activation, TA Command and DRX Command, and no payload otherwise.
func CESize(lcid int) int {
	switch lcid {
	case constants.LCIDConResID:
		return 1 + constants.ConResIDBytes
	case constants.LCIDSCellActivation, constants.LCIDTACmd, constants.LCIDDRXCmd:
		return 1 + 1
	default:
		return 1
	}
}

// subheaderSize returns the MAC SDU subheader size for a payload of the
// given length: 2 bytes if length fits in 7 bits (<=128), 3 otherwise
// (TS 36.321 §7.1.2).
func subheaderSize(sduBytes int) int {
	if sduBytes > 128 {
		return 3
	}
	return 2
}

// PDUElement is one allocated element (CE or RLC SDU) of a MAC PDU.
type PDUElement struct {
	LCID   int
	NBytes int // 0 for fixed-payload CEs
}

// CEQueue is the pending MAC control-element queue for one UE. Insertion
// order is preserved except that ConRes ID, when present, is always
// inserted at the front (§3 "Per-UE state").
type CEQueue struct {
	pending []int
}

// Push appends a CE LCID to the back of the queue.
func (q *CEQueue) Push(lcid int) {
	q.pending = append(q.pending, lcid)
}

// PushFront inserts a CE LCID (typically ConRes ID) at the front.
func (q *CEQueue) PushFront(lcid int) {
	q.pending = append([]int{lcid}, q.pending...)
}

// Empty reports whether the queue has no pending CEs.
func (q *CEQueue) Empty() bool { return len(q.pending) == 0 }

// Contains reports whether lcid is queued.
func (q *CEQueue) Contains(lcid int) bool {
	for _, p := range q.pending {
		if p == lcid {
			return true
		}
	}
	return false
}

// AllocCEs consumes CEs from the front of the queue while each still fits
// within remBytes, returning the allocated elements and bytes consumed.
func (q *CEQueue) AllocCEs(remBytes int) ([]PDUElement, int) {
	var out []PDUElement
	consumed := 0
	for len(q.pending) > 0 {
		lcid := q.pending[0]
		size := CESize(lcid)
		if remBytes-consumed < size {
			break
		}
		out = append(out, PDUElement{LCID: lcid})
		consumed += size
		q.pending = q.pending[1:]
	}
	return out, consumed
}

// SizePDU fills a transport block of size tbsBytes: pending MAC CEs first
// (in queue order), then RLC SDUs in logical-channel priority order, until
// fewer than min_mac_sdu_size bytes remain (§4.8).
func (m *Manager) SizePDU(ces *CEQueue, tbsBytes int) ([]PDUElement, int) {
	var elems []PDUElement
	remTBS := tbsBytes

	ceElems, ceBytes := ces.AllocCEs(remTBS)
	elems = append(elems, ceElems...)
	remTBS -= ceBytes

	for remTBS >= constants.MinMACSDU {
		maxSDU := remTBS - subheaderSize(remTBS-2)
		pdu, ok := m.AllocRLCPDU(maxSDU)
		if !ok {
			break
		}
		elems = append(elems, PDUElement{LCID: pdu.LCID, NBytes: pdu.NBytes})
		remTBS -= pdu.NBytes + subheaderSize(pdu.NBytes)
	}

	return elems, tbsBytes - remTBS
}
