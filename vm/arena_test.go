package vm

import (
	"errors"
	"testing"
)

func TestArenaPairRoundTrip(t *testing.T) {
	a := NewObjectArena(1024)

	ptr, err := a.AllocatePair(FromSmallInt(1), FromSmallInt(2))
	if err != nil {
		t.Fatalf("AllocatePair: %v", err)
	}
	head, tail, err := a.Pair(ptr)
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if head != FromSmallInt(1) || tail != FromSmallInt(2) {
		t.Errorf("pair = (%v, %v), want (1, 2)", head, tail)
	}
}

func TestArenaAllocationIsAligned(t *testing.T) {
	a := NewObjectArena(1024)

	// A raw record with a 3-byte payload still advances the cursor to an
	// 8-byte boundary.
	if _, err := a.Allocate(RecordRaw, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if a.Used()%arenaAlign != 0 {
		t.Errorf("used = %d, not aligned", a.Used())
	}

	ptr, err := a.Allocate(RecordRaw, []byte{4})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if uint64(ptr)%arenaAlign != 0 {
		t.Errorf("ptr = %d, not aligned", ptr)
	}
}

func TestArenaClosureRoundTrip(t *testing.T) {
	a := NewObjectArena(1024)

	captures := []Value{FromSmallInt(10), Nil, True}
	ptr, err := a.AllocateClosure(3, captures)
	if err != nil {
		t.Fatalf("AllocateClosure: %v", err)
	}
	funcIdx, got, err := a.Closure(ptr)
	if err != nil {
		t.Fatalf("Closure: %v", err)
	}
	if funcIdx != 3 {
		t.Errorf("funcIndex = %d, want 3", funcIdx)
	}
	if len(got) != 3 || got[0] != FromSmallInt(10) || got[1] != Nil || got[2] != True {
		t.Errorf("captures = %v, want %v", got, captures)
	}
}

func TestArenaClosureCapturesAreCopied(t *testing.T) {
	a := NewObjectArena(1024)

	src := []Value{FromSmallInt(1)}
	ptr, err := a.AllocateClosure(0, src)
	if err != nil {
		t.Fatalf("AllocateClosure: %v", err)
	}
	// Mutating the source slot after allocation must not affect the record.
	src[0] = FromSmallInt(99)

	_, got, err := a.Closure(ptr)
	if err != nil {
		t.Fatalf("Closure: %v", err)
	}
	if got[0] != FromSmallInt(1) {
		t.Errorf("capture = %v, want 1", got[0])
	}
}

func TestArenaFullThenReset(t *testing.T) {
	// Room for exactly two pair records (24 aligned bytes each).
	a := NewObjectArena(48)

	for i := 0; i < 2; i++ {
		if _, err := a.AllocatePair(Nil, Nil); err != nil {
			t.Fatalf("AllocatePair %d: %v", i, err)
		}
	}

	_, err := a.AllocatePair(Nil, Nil)
	if err == nil {
		t.Fatalf("third allocation should fail")
	}
	var vmErr *VMError
	if !errors.As(err, &vmErr) {
		t.Fatalf("error type = %T, want *VMError", err)
	}
	if vmErr.Code != ErrArenaFull {
		t.Errorf("code = %v, want ArenaFull", vmErr.Code)
	}
	if vmErr.Attempted != 24 || vmErr.Limit != 0 {
		t.Errorf("attempted = %d limit = %d, want 24 and 0", vmErr.Attempted, vmErr.Limit)
	}

	gen := a.Generation()
	a.Reset()
	if a.Used() != 0 {
		t.Errorf("used = %d after reset, want 0", a.Used())
	}
	if a.Generation() != gen+1 {
		t.Errorf("generation = %d, want %d", a.Generation(), gen+1)
	}

	// The full capacity is available again.
	for i := 0; i < 2; i++ {
		if _, err := a.AllocatePair(Nil, Nil); err != nil {
			t.Fatalf("AllocatePair after reset %d: %v", i, err)
		}
	}
}

func TestArenaInvalidPointer(t *testing.T) {
	a := NewObjectArena(64)

	if _, err := a.Header(0); err == nil {
		t.Errorf("Header on empty arena should fail")
	}
	_, _, err := a.Pair(4096)
	if err == nil {
		t.Fatalf("Pair on out-of-range pointer should fail")
	}
	var vmErr *VMError
	if !errors.As(err, &vmErr) || vmErr.Code != ErrInvalidHeapPtr {
		t.Errorf("error = %v, want InvalidHeapPtr", err)
	}
}

func TestArenaRecordKindMismatch(t *testing.T) {
	a := NewObjectArena(128)

	ptr, err := a.Allocate(RecordRaw, make([]byte, 16))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, _, err := a.Pair(ptr); err == nil {
		t.Errorf("Pair on a raw record should fail")
	}
	if _, _, err := a.Closure(ptr); err == nil {
		t.Errorf("Closure on a raw record should fail")
	}
}
