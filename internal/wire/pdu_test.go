package wire

import (
	"reflect"
	"testing"

	"github.com/go-enb/sched/internal/pdubuf"
)

func TestEncodeDecodeMACSubheadersRoundTrips(t *testing.T) {
	elems := []DLPDUElement{
		{LCID: 28, NBytes: 0},   // fixed CE, no length field
		{LCID: 3, NBytes: 40},   // short SDU
		{LCID: 5, NBytes: 300},  // long SDU
		{LCID: 2, NBytes: 0},    // last element, no length field regardless
	}

	buf := EncodeMACSubheaders(elems)
	defer pdubuf.Put(buf)

	got, consumed := DecodeMACSubheaders(buf)
	if consumed != len(buf) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(buf), consumed)
	}
	if !reflect.DeepEqual(got, elems) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, elems)
	}
}

func TestEncodeMACSubheadersSingleElementHasNoContinuation(t *testing.T) {
	elems := []DLPDUElement{{LCID: 28, NBytes: 0}}
	buf := EncodeMACSubheaders(elems)
	defer pdubuf.Put(buf)

	if len(buf) != 1 {
		t.Fatalf("expected a single 1-byte subheader, got %d bytes", len(buf))
	}
	if buf[0]&shMore != 0 {
		t.Fatal("expected the only (and last) subheader to have no continuation bit")
	}
}

func TestEncodeMACSubheadersLastSDUOmitsLengthField(t *testing.T) {
	elems := []DLPDUElement{{LCID: 1, NBytes: 0}, {LCID: 3, NBytes: 50}}
	// Second element is "last" in this 2-element PDU; its NBytes is implied
	// by remaining TBS space so it's encoded with NBytes 0 by the caller.
	elems[1].NBytes = 0
	buf := EncodeMACSubheaders(elems)
	defer pdubuf.Put(buf)
	if len(buf) != 2 {
		t.Fatalf("expected two 1-byte subheaders, got %d bytes", len(buf))
	}
}
