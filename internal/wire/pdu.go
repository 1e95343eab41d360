package wire

import "github.com/go-enb/sched/internal/pdubuf"

// DLPDUElement is one MAC PDU element (CE or RLC SDU) scheduled for a
// transport block, mirroring the source's dl_sched_pdu_t (§6).
type DLPDUElement struct {
	LCID   uint32
	NBytes uint32
}

// DLData is one UE's DL data allocation for this TTI: the grant plus the
// MAC PDU contents for each transport block (§6 dl_sched_data_t).
type DLData struct {
	Grant    DLGrant
	Elements [2][]DLPDUElement
	MACCETA  bool
	MACCERNTI bool
}

// SFDLResult is the per-TTI DL scheduling result handed back across the
// scheduler boundary: the CFI in force plus every data/RAR/broadcast
// allocation (§3 "Subframe scheduling result", §6 dl_sched_res_t).
type SFDLResult struct {
	CFI  uint32
	Data []DLData
	RAR  []RAR
	BC   []BCAlloc
}

// SFULResult is the per-TTI UL scheduling result: every PUSCH grant plus
// the PHICH bits due this TTI (§6 ul_sched_res_t).
type SFULResult struct {
	PUSCH []ULGrant
	PHICH []PHICHBit
}

// subheader bit layout (one synthetic octet, not 36.321's literal wire
// bits, but expressing the same fields described in §6 "PDU wire
// format"): bit7 E (more subheaders follow), bit6 has-length, bit5
// long-length (15-bit vs 7-bit), bits4-0 LCID.
const (
	shMore      = 0x80
	shHasLen    = 0x40
	shLongLen   = 0x20
	shLCIDMask  = 0x1F
	shortLenMax = 127
)

// EncodeMACSubheaders marshals the subheader sequence preceding a DL-SCH
// transport block's payloads: each element gets a length field unless it
// is a fixed-payload CE (NBytes == 0), and every subheader but the last
// sets the continuation bit (§6 "PDU wire format"). The returned slice is
// pool-backed (internal/pdubuf) and should be released with pdubuf.Put
// once the caller has copied or transmitted it.
func EncodeMACSubheaders(elems []DLPDUElement) []byte {
	size := 0
	for i, e := range elems {
		size += subheaderSize(e, i < len(elems)-1)
	}
	buf := pdubuf.Get(size)
	off := 0
	for i, e := range elems {
		off += encodeSubheader(buf[off:], e, i < len(elems)-1)
	}
	return buf[:off]
}

func subheaderSize(e DLPDUElement, more bool) int {
	if e.NBytes == 0 {
		return 1
	}
	if e.NBytes > shortLenMax {
		return 3
	}
	return 2
}

func encodeSubheader(dst []byte, e DLPDUElement, more bool) int {
	b0 := byte(e.LCID & shLCIDMask)
	if more {
		b0 |= shMore
	}
	if e.NBytes == 0 {
		dst[0] = b0
		return 1
	}
	if e.NBytes > shortLenMax {
		dst[0] = b0 | shHasLen | shLongLen
		dst[1] = byte(e.NBytes >> 8)
		dst[2] = byte(e.NBytes & 0xFF)
		return 3
	}
	dst[0] = b0 | shHasLen
	dst[1] = byte(e.NBytes & 0x7F)
	return 2
}

// DecodeMACSubheaders unmarshals a subheader sequence back into its
// element list, stopping once a subheader without the continuation bit
// is reached, and returns the total bytes consumed.
func DecodeMACSubheaders(buf []byte) ([]DLPDUElement, int) {
	var elems []DLPDUElement
	off := 0
	for off < len(buf) {
		e, more, n := decodeSubheader(buf[off:])
		elems = append(elems, e)
		off += n
		if !more {
			break
		}
	}
	return elems, off
}

func decodeSubheader(buf []byte) (elem DLPDUElement, more bool, consumed int) {
	b0 := buf[0]
	more = b0&shMore != 0
	lcid := uint32(b0 & shLCIDMask)
	if b0&shHasLen == 0 {
		return DLPDUElement{LCID: lcid}, more, 1
	}
	if b0&shLongLen != 0 {
		n := uint32(buf[1])<<8 | uint32(buf[2])
		return DLPDUElement{LCID: lcid, NBytes: n}, more, 3
	}
	return DLPDUElement{LCID: lcid, NBytes: uint32(buf[1])}, more, 2
}
