package vm

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Tagging round trips
// ---------------------------------------------------------------------------

func TestSmallIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, MaxSmallInt, MinSmallInt}
	for _, n := range cases {
		v := FromSmallInt(n)
		if !v.IsSmallInt() {
			t.Errorf("FromSmallInt(%d): not a small int", n)
		}
		if got := v.SmallInt(); got != n {
			t.Errorf("SmallInt() = %d, want %d", got, n)
		}
	}
}

func TestTryFromSmallIntRange(t *testing.T) {
	if _, ok := TryFromSmallInt(MaxSmallInt); !ok {
		t.Errorf("MaxSmallInt should be representable")
	}
	if _, ok := TryFromSmallInt(MinSmallInt); !ok {
		t.Errorf("MinSmallInt should be representable")
	}
	if _, ok := TryFromSmallInt(MaxSmallInt + 1); ok {
		t.Errorf("MaxSmallInt+1 should not be representable")
	}
	if _, ok := TryFromSmallInt(MinSmallInt - 1); ok {
		t.Errorf("MinSmallInt-1 should not be representable")
	}
}

func TestSpecialValues(t *testing.T) {
	if !Nil.IsNil() || !Nil.IsSpecial() {
		t.Errorf("Nil has wrong tag")
	}
	if !True.IsBool() || !False.IsBool() {
		t.Errorf("booleans have wrong tag")
	}
	if Nil == True || True == False || Nil == False {
		t.Errorf("special values must be distinct")
	}
}

func TestSymbolRoundTrip(t *testing.T) {
	v := FromSymbolID(7)
	if !v.IsSymbol() {
		t.Errorf("not a symbol")
	}
	if got := v.SymbolID(); got != 7 {
		t.Errorf("SymbolID() = %d, want 7", got)
	}
	if v.IsSmallInt() || v.IsActor() {
		t.Errorf("symbol matches other tags")
	}
}

func TestHandleKinds(t *testing.T) {
	p := FromPairHandle(128)
	r := FromRawHandle(128)
	c := FromClosureHandle(128)

	if !p.IsPair() || p.IsRawHandle() {
		t.Errorf("pair handle misclassified")
	}
	if !r.IsRawHandle() || r.IsPair() {
		t.Errorf("raw handle misclassified")
	}
	if !c.IsClosure() || c.IsHandle() {
		t.Errorf("closure handle misclassified")
	}
	if p == r {
		t.Errorf("pair and raw handles at the same offset must differ")
	}
	for _, v := range []Value{p, r, c} {
		if got := v.Handle(); got != 128 {
			t.Errorf("Handle() = %d, want 128", got)
		}
	}
}

func TestActorRoundTrip(t *testing.T) {
	v := FromActorID(99)
	if !v.IsActor() {
		t.Errorf("not an actor")
	}
	if got := v.ActorID(); got != 99 {
		t.Errorf("ActorID() = %d, want 99", got)
	}
}

func TestCapTokenRoundTrip(t *testing.T) {
	v := FromCapToken(12, 4096)
	if !v.IsCap() {
		t.Errorf("not a capability token")
	}
	if got := v.CapKind(); got != 12 {
		t.Errorf("CapKind() = %d, want 12", got)
	}
	if got := v.CapAmount(); got != 4096 {
		t.Errorf("CapAmount() = %d, want 4096", got)
	}
}

func TestBitsRoundTrip(t *testing.T) {
	for _, v := range []Value{Nil, True, FromSmallInt(-7), FromActorID(3), FromCapToken(5, 0)} {
		if got := ValueFromBits(v.Bits()); got != v {
			t.Errorf("ValueFromBits(Bits()) = %#x, want %#x", got, v)
		}
	}
}

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

func TestTruthiness(t *testing.T) {
	if Nil.IsTruthy() || False.IsTruthy() {
		t.Errorf("nil and false must be falsy")
	}
	for _, v := range []Value{True, FromSmallInt(0), FromSmallInt(-1), FromSymbolID(0), FromPairHandle(0), FromActorID(0)} {
		if !v.IsTruthy() {
			t.Errorf("%#x should be truthy", uint64(v))
		}
	}
}
