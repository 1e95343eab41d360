// Package tti implements modulo-10240 TTI (transmission time interval)
// point arithmetic: wrap-aware comparison, signed distance, and the fixed
// derived points the FDD HARQ timeline relies on (tx_dl, tx_ul, ack_dl).
package tti

import "github.com/go-enb/sched/internal/constants"

const wrap = constants.NumTTI

// Point is an opaque, wrap-aware TTI counter. The zero value is TTI 0; use
// New to normalize an arbitrary uint32 into range.
type Point struct {
	val uint32
}

// New returns the Point for the given raw TTI counter, wrapped into [0, 10240).
func New(raw uint32) Point {
	return Point{val: raw % wrap}
}

// Invalid returns a sentinel Point that compares unequal to every valid point.
// Used the way the source uses an out-of-range tti_val to mean "unset".
func Invalid() Point {
	return Point{val: wrap}
}

// IsValid reports whether p was constructed via New (i.e. is in [0, 10240)).
func (p Point) IsValid() bool { return p.val < wrap }

// Uint32 returns the raw wrapped counter value.
func (p Point) Uint32() uint32 { return p.val }

// SfIdx returns the subframe index within the radio frame (0..9).
func (p Point) SfIdx() uint32 { return p.val % constants.SfIdxPerFrame }

// SFN returns the system frame number (0..1023).
func (p Point) SFN() uint32 { return p.val / constants.SfIdxPerFrame }

// Equal reports value equality (not distance-based).
func (p Point) Equal(o Point) bool { return p.val == o.val }

// Sub returns the signed wrap-aware distance p - o, in [-5120, 5120).
// This is the basis for every comparison operator below; never compare
// raw counters directly, since they wrap at 10240.
func (p Point) Sub(o Point) int {
	diff := int(p.val) - int(o.val)
	if diff >= wrap/2 {
		return diff - wrap
	}
	if diff < -wrap/2 {
		return diff + wrap
	}
	return diff
}

// Before reports whether p is strictly earlier than o (wrap-aware).
func (p Point) Before(o Point) bool { return p.Sub(o) < 0 }

// After reports whether p is strictly later than o (wrap-aware).
func (p Point) After(o Point) bool { return p.Sub(o) > 0 }

// BeforeOrEqual reports p <= o (wrap-aware).
func (p Point) BeforeOrEqual(o Point) bool { return p.Equal(o) || p.Before(o) }

// AfterOrEqual reports p >= o (wrap-aware).
func (p Point) AfterOrEqual(o Point) bool { return p.Equal(o) || p.After(o) }

// Add returns p shifted forward by a non-negative number of TTIs.
func (p Point) Add(jump uint32) Point {
	return Point{val: (p.val + jump) % wrap}
}

// Sub32 returns p shifted backward by a non-negative number of TTIs.
func (p Point) Sub32(jump uint32) Point {
	j := jump % wrap
	if p.val < j {
		return Point{val: p.val + wrap - j}
	}
	return Point{val: p.val - j}
}

// InInterval reports whether p lies in the closed wrap-aware interval [l, u].
func (p Point) InInterval(l, u Point) bool {
	return p.AfterOrEqual(l) && p.BeforeOrEqual(u)
}

// ToTxDL derives the TTI at which the DL grant scheduled in response to
// PHY feedback received at rx will be transmitted: tx_dl = rx + 4.
func ToTxDL(rx Point) Point { return rx.Add(constants.FDDHarqDelayUL) }

// ToTxUL derives the TTI at which the UL grant corresponding to rx is
// transmitted by the UE: tx_ul = rx + 8.
func ToTxUL(rx Point) Point { return rx.Add(constants.FDDHarqDelayUL + constants.FDDHarqDelayDL) }

// ToAckDL derives the TTI at which the DL HARQ ACK/NACK for rx is
// expected back from the UE. Per spec.md §3, ack_dl == tx_ul.
func ToAckDL(rx Point) Point { return ToTxUL(rx) }

// Max returns the later of a, b (wrap-aware).
func Max(a, b Point) Point {
	if a.After(b) {
		return a
	}
	return b
}

// Min returns the earlier of a, b (wrap-aware).
func Min(a, b Point) Point {
	if a.Before(b) {
		return a
	}
	return b
}
