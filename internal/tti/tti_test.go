package tti

import "testing"

func TestNewWraps(t *testing.T) {
	p := New(10241)
	if p.Uint32() != 1 {
		t.Errorf("New(10241).Uint32() = %d, want 1", p.Uint32())
	}
}

func TestSubNoWrap(t *testing.T) {
	a := New(100)
	b := New(90)
	if d := a.Sub(b); d != 10 {
		t.Errorf("Sub() = %d, want 10", d)
	}
	if d := b.Sub(a); d != -10 {
		t.Errorf("Sub() = %d, want -10", d)
	}
}

func TestSubAcrossWrap(t *testing.T) {
	a := New(2)   // just after wrap
	b := New(10238) // just before wrap
	if d := a.Sub(b); d != 4 {
		t.Errorf("Sub() across wrap = %d, want 4", d)
	}
	if d := b.Sub(a); d != -4 {
		t.Errorf("Sub() across wrap = %d, want -4", d)
	}
}

func TestBeforeAfterWrapAware(t *testing.T) {
	early := New(10239)
	late := New(2)
	if !early.Before(late) {
		t.Errorf("expected %d before %d across wrap", early.Uint32(), late.Uint32())
	}
	if !late.After(early) {
		t.Errorf("expected %d after %d across wrap", late.Uint32(), early.Uint32())
	}
}

func TestAddSub32Wrap(t *testing.T) {
	p := New(10239).Add(2)
	if p.Uint32() != 1 {
		t.Errorf("Add across wrap = %d, want 1", p.Uint32())
	}
	p = New(1).Sub32(2)
	if p.Uint32() != 10239 {
		t.Errorf("Sub32 across wrap = %d, want 10239", p.Uint32())
	}
}

func TestDerivedPoints(t *testing.T) {
	rx := New(100)
	if got := ToTxDL(rx).Uint32(); got != 104 {
		t.Errorf("ToTxDL = %d, want 104", got)
	}
	if got := ToTxUL(rx).Uint32(); got != 108 {
		t.Errorf("ToTxUL = %d, want 108", got)
	}
	if !ToAckDL(rx).Equal(ToTxUL(rx)) {
		t.Errorf("ToAckDL must equal ToTxUL")
	}
}

func TestSfIdxSFN(t *testing.T) {
	p := New(35)
	if p.SfIdx() != 5 {
		t.Errorf("SfIdx() = %d, want 5", p.SfIdx())
	}
	if p.SFN() != 3 {
		t.Errorf("SFN() = %d, want 3", p.SFN())
	}
}

func TestInInterval(t *testing.T) {
	l := New(10)
	u := New(20)
	if !New(15).InInterval(l, u) {
		t.Errorf("expected 15 in [10,20]")
	}
	if New(25).InInterval(l, u) {
		t.Errorf("expected 25 not in [10,20]")
	}
}

func TestInvalid(t *testing.T) {
	inv := Invalid()
	if inv.IsValid() {
		t.Errorf("Invalid() should report IsValid() == false")
	}
	if New(0).IsValid() != true {
		t.Errorf("New(0) should be valid")
	}
}

func TestMaxMin(t *testing.T) {
	a := New(10239)
	b := New(2)
	if !Max(a, b).Equal(b) {
		t.Errorf("Max across wrap should pick the later point")
	}
	if !Min(a, b).Equal(a) {
		t.Errorf("Min across wrap should pick the earlier point")
	}
}
