// Package bitset implements a fixed-capacity, runtime-resizable bit
// container used throughout the scheduler for RBG/PRB/CCE masks. It
// mirrors srsRAN's bounded_bitset<N>: a compile-time maximum N, a runtime
// size <= N, and the convention that out-of-range access is logged and a
// sentinel returned rather than panicking (§3 invariant).
package bitset

import (
	"fmt"

	"github.com/go-enb/sched/internal/interfaces"
)

const bitsPerWord = 64

// Set is a bounded bitset with capacity max and runtime size size <= max.
// A zero Set has size 0; call Resize before use.
type Set struct {
	words    []uint64
	size     int
	max      int
	reversed bool // mirrors bit indices, for protocol byte orderings that need it
	log      interfaces.Logger
}

// New returns a Set with the given max capacity and initial runtime size.
// log may be nil, in which case out-of-range accesses are silently
// dropped (tests commonly do this); production callers should pass a
// real logger so bugs surface.
func New(max, size int, reversed bool, log interfaces.Logger) *Set {
	s := &Set{max: max, reversed: reversed, log: log}
	s.words = make([]uint64, nofWords(max))
	s.Resize(size)
	return s
}

func nofWords(nbits int) int {
	if nbits <= 0 {
		return 0
	}
	return (nbits-1)/bitsPerWord + 1
}

func (s *Set) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Error(fmt.Sprintf(format, args...))
	}
}

// MaxSize returns the compile-time-equivalent maximum capacity.
func (s *Set) MaxSize() int { return s.max }

// Size returns the current runtime size.
func (s *Set) Size() int { return s.size }

// Resize changes the runtime size, zeroing any newly exposed bits and
// refusing (with a logged error) to grow past max.
func (s *Set) Resize(newSize int) {
	if newSize > s.max {
		s.logf("bitset resize out of bounds: %d>%d", newSize, s.max)
		return
	}
	if newSize == s.size {
		return
	}
	s.size = newSize
	s.sanitize()
	for i := nofWords(s.size); i < len(s.words); i++ {
		s.words[i] = 0
	}
}

func (s *Set) posIndex(pos int) int {
	if s.reversed {
		return s.size - 1 - pos
	}
	return pos
}

func (s *Set) inRange(pos int) bool {
	if pos < 0 || pos >= s.size {
		s.logf("bitset out of bounds: %d>=%d", pos, s.size)
		return false
	}
	return true
}

// Set sets bit pos to 1.
func (s *Set) Set(pos int) {
	if !s.inRange(pos) {
		return
	}
	p := s.posIndex(pos)
	s.words[p/bitsPerWord] |= 1 << uint(p%bitsPerWord)
}

// SetVal sets bit pos to val.
func (s *Set) SetVal(pos int, val bool) {
	if val {
		s.Set(pos)
	} else {
		s.Clear(pos)
	}
}

// Clear sets bit pos to 0.
func (s *Set) Clear(pos int) {
	if !s.inRange(pos) {
		return
	}
	p := s.posIndex(pos)
	s.words[p/bitsPerWord] &^= 1 << uint(p%bitsPerWord)
}

// ClearAll zeroes every bit without changing size.
func (s *Set) ClearAll() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// Test reports the value of bit pos (false + logged error if out of range).
func (s *Set) Test(pos int) bool {
	if !s.inRange(pos) {
		return false
	}
	p := s.posIndex(pos)
	return s.words[p/bitsPerWord]&(1<<uint(p%bitsPerWord)) != 0
}

// Fill sets [start, end) to value.
func (s *Set) Fill(start, end int, value bool) {
	if end > s.size || start > end {
		s.logf("bounds (%d, %d) not valid for bitset of size %d", start, end, s.size)
		return
	}
	for i := start; i < end; i++ {
		s.SetVal(i, value)
	}
}

// Any reports whether any bit in [0, size) is set.
func (s *Set) Any() bool {
	for i := 0; i < nofWords(s.size); i++ {
		if s.words[i] != 0 {
			return true
		}
	}
	return false
}

// AnyRange reports whether any bit in [start, stop) is set.
func (s *Set) AnyRange(start, stop int) bool {
	if start > stop || stop > s.size {
		s.logf("bounds (%d, %d) not valid for bitset of size %d", start, stop, s.size)
		return false
	}
	for i := start; i < stop; i++ {
		if s.Test(i) {
			return true
		}
	}
	return false
}

// None reports whether no bit is set.
func (s *Set) None() bool { return !s.Any() }

// All reports whether every bit in [0, size) is set.
func (s *Set) All() bool {
	nw := nofWords(s.size)
	if nw == 0 {
		return true
	}
	const allSet = ^uint64(0)
	for i := 0; i < nw-1; i++ {
		if s.words[i] != allSet {
			return false
		}
	}
	return s.words[nw-1] == allSet>>uint(nw*bitsPerWord-s.size)
}

// Count returns the number of set bits.
func (s *Set) Count() int {
	n := 0
	for i := 0; i < nofWords(s.size); i++ {
		w := s.words[i]
		for w != 0 {
			n += int(w & 1)
			w >>= 1
		}
	}
	return n
}

// Equal reports value equality (same size, same bits).
func (s *Set) Equal(o *Set) bool {
	if s.size != o.size {
		return false
	}
	for i := 0; i < nofWords(s.size); i++ {
		if s.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	c := &Set{max: s.max, size: s.size, reversed: s.reversed, log: s.log}
	c.words = make([]uint64, len(s.words))
	copy(c.words, s.words)
	return c
}

// And computes the bitwise AND of equally sized sets into a new Set.
func (s *Set) And(o *Set) *Set {
	r := s.Clone()
	r.AndInPlace(o)
	return r
}

// AndInPlace ANDs o into s.
func (s *Set) AndInPlace(o *Set) {
	if s.size != o.size {
		s.logf("AND on bitsets of different sizes (%d!=%d)", s.size, o.size)
		return
	}
	for i := 0; i < nofWords(s.size); i++ {
		s.words[i] &= o.words[i]
	}
}

// Or computes the bitwise OR of equally sized sets into a new Set.
func (s *Set) Or(o *Set) *Set {
	r := s.Clone()
	r.OrInPlace(o)
	return r
}

// OrInPlace ORs o into s.
func (s *Set) OrInPlace(o *Set) {
	if s.size != o.size {
		s.logf("OR on bitsets of different sizes (%d!=%d)", s.size, o.size)
		return
	}
	for i := 0; i < nofWords(s.size); i++ {
		s.words[i] |= o.words[i]
	}
}

// Not returns the bitwise complement within [0, size).
func (s *Set) Not() *Set {
	r := s.Clone()
	r.Flip()
	return r
}

// Flip inverts every bit in [0, size) in place.
func (s *Set) Flip() {
	for i := 0; i < nofWords(s.size); i++ {
		s.words[i] = ^s.words[i]
	}
	s.sanitize()
}

func (s *Set) sanitize() {
	n := s.size % bitsPerWord
	nw := nofWords(s.size)
	if n != 0 && nw > 0 {
		s.words[nw-1] &= ^(^uint64(0) << uint(n))
	}
}

// String renders the bitset MSB-first ("normal") or LSB-first if reversed,
// matching bounded_bitset::to_string.
func (s *Set) String() string {
	buf := make([]byte, s.size)
	for i := range buf {
		buf[i] = '0'
	}
	if !s.reversed {
		for i := s.size; i > 0; i-- {
			if s.Test(i - 1) {
				buf[s.size-i] = '1'
			}
		}
	} else {
		for i := 0; i < s.size; i++ {
			if s.Test(i) {
				buf[i] = '1'
			}
		}
	}
	return string(buf)
}
