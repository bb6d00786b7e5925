package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/cap"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kestrel.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTest(t)

	if err := s.Put(1, 10, vm.FromSmallInt(-42)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(1, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != vm.FromSmallInt(-42) {
		t.Errorf("value = %v, want -42", got)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := openTest(t)

	if err := s.Put(1, 10, vm.True); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(1, 10, vm.False); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(1, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != vm.False {
		t.Errorf("value = %v, want the overwritten false", got)
	}
}

func TestKeysAreScopedPerActor(t *testing.T) {
	s := openTest(t)

	if err := s.Put(1, 5, vm.FromSmallInt(100)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Get(2, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("actor 2 should not see actor 1's key, got %v", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := openTest(t)
	if _, err := s.Get(1, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHeapValuesRejected(t *testing.T) {
	s := openTest(t)

	for _, v := range []vm.Value{vm.FromPairHandle(0), vm.FromRawHandle(8), vm.FromClosureHandle(16)} {
		if err := s.Put(1, 1, v); !errors.Is(err, ErrNotPersistable) {
			t.Errorf("Put(%#x) = %v, want ErrNotPersistable", v.Bits(), err)
		}
	}
}

func TestAuditArchiveRoundTrip(t *testing.T) {
	s := openTest(t)

	export := &cap.Export{
		RunID: "run-1",
		Entries: []cap.AuditEntry{{
			Request:  cap.Request{Requester: 2, Cap: cap.Capability{Kind: cap.IoPersist}, Justification: "save state", Step: 7},
			Decision: cap.Granted,
			Reason:   "capability held",
		}},
	}
	if err := s.ArchiveAudit(export); err != nil {
		t.Fatalf("ArchiveAudit: %v", err)
	}

	got, err := s.LoadAudit("run-1")
	if err != nil {
		t.Fatalf("LoadAudit: %v", err)
	}
	if got.RunID != "run-1" || len(got.Entries) != 1 {
		t.Fatalf("export = %+v", got)
	}
	if got.Entries[0].Request.Justification != "save state" {
		t.Errorf("entry lost in round trip: %+v", got.Entries[0])
	}

	if _, err := s.LoadAudit("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
