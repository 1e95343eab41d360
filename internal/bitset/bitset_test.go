package bitset

import "testing"

func TestSetClearTest(t *testing.T) {
	s := New(32, 10, false, nil)
	s.Set(3)
	if !s.Test(3) {
		t.Fatalf("expected bit 3 set")
	}
	s.Clear(3)
	if s.Test(3) {
		t.Fatalf("expected bit 3 clear")
	}
}

func TestOutOfRangeIsSentinel(t *testing.T) {
	s := New(32, 4, false, nil)
	if s.Test(10) {
		t.Fatalf("expected Test() out of range to return false")
	}
	s.Set(10) // must not panic
}

func TestCountAnyAllNone(t *testing.T) {
	s := New(32, 8, false, nil)
	if s.Any() || !s.None() {
		t.Fatalf("new bitset should be empty")
	}
	s.Fill(0, 8, true)
	if !s.All() || s.Count() != 8 {
		t.Fatalf("expected all 8 bits set, count=%d", s.Count())
	}
	s.Clear(3)
	if s.All() {
		t.Fatalf("expected not all set after clearing one bit")
	}
	if s.Count() != 7 {
		t.Fatalf("expected count 7, got %d", s.Count())
	}
}

func TestAndOr(t *testing.T) {
	a := New(16, 8, false, nil)
	b := New(16, 8, false, nil)
	a.Fill(0, 4, true)
	b.Fill(2, 6, true)

	and := a.And(b)
	if and.Count() != 2 {
		t.Fatalf("expected AND count 2, got %d", and.Count())
	}

	or := a.Or(b)
	if or.Count() != 6 {
		t.Fatalf("expected OR count 6, got %d", or.Count())
	}
}

func TestNotFlip(t *testing.T) {
	s := New(16, 4, false, nil)
	s.Set(0)
	s.Set(2)
	n := s.Not()
	if n.Test(0) || n.Test(2) {
		t.Fatalf("complement should clear previously set bits")
	}
	if !n.Test(1) || !n.Test(3) {
		t.Fatalf("complement should set previously clear bits")
	}
}

func TestEqualClone(t *testing.T) {
	a := New(16, 8, false, nil)
	a.Set(1)
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatalf("clone should be equal")
	}
	b.Set(2)
	if a.Equal(b) {
		t.Fatalf("mutating clone should not affect original")
	}
}

func TestResize(t *testing.T) {
	s := New(64, 4, false, nil)
	s.Fill(0, 4, true)
	s.Resize(8)
	if s.Count() != 4 {
		t.Fatalf("resize should not disturb existing bits, count=%d", s.Count())
	}
	if s.Test(5) {
		t.Fatalf("newly exposed bits should be zero")
	}
	s.Resize(1000) // exceeds max, should be a no-op (logged)
	if s.Size() != 8 {
		t.Fatalf("resize beyond max should be rejected, size=%d", s.Size())
	}
}

func TestReversedIndexing(t *testing.T) {
	s := New(8, 4, true, nil)
	s.Set(0)
	if s.Test(0) != true {
		t.Fatalf("expected bit 0 readable as set")
	}
	// reversed mirrors storage but not the logical Test/Set API, so a
	// freshly set bit 0 must read back as set regardless of mirroring.
	str := s.String()
	if len(str) != 4 {
		t.Fatalf("expected string length 4, got %d", len(str))
	}
}

func TestMultiWordCount(t *testing.T) {
	s := New(128, 100, false, nil)
	s.Fill(0, 100, true)
	if s.Count() != 100 {
		t.Fatalf("expected count 100 across multiple words, got %d", s.Count())
	}
	if !s.All() {
		t.Fatalf("expected All() true across multiple words")
	}
}
