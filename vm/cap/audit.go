package cap

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// Decision is the outcome of a capability request.
type Decision uint8

const (
	Granted Decision = iota + 1
	Denied
	Pending
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Granted:
		return "Granted"
	case Denied:
		return "Denied"
	case Pending:
		return "Pending"
	}
	return fmt.Sprintf("Decision(%d)", uint8(d))
}

// Request is one capability request. Step is the scheduler's step count at
// the time of the request. Steps are the system's only clock, so requests
// order deterministically.
type Request struct {
	Requester     uint32     `cbor:"1,keyasint"`
	Cap           Capability `cbor:"2,keyasint"`
	Justification string     `cbor:"3,keyasint,omitempty"`
	Step          uint64     `cbor:"4,keyasint"`
}

// AuditEntry is a request plus its decision. Entries are immutable once
// appended.
type AuditEntry struct {
	Request  Request  `cbor:"1,keyasint"`
	Decision Decision `cbor:"2,keyasint"`
	Reason   string   `cbor:"3,keyasint,omitempty"`
}

// AuditLog is the append-only record of every capability request and its
// decision. It is the sole record of how authority state evolved: a
// historical record, not a rollback log.
type AuditLog struct {
	entries []AuditEntry
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append adds one immutable entry. There is no removal operation.
func (l *AuditLog) Append(e AuditEntry) {
	l.entries = append(l.entries, e)
}

// Len returns the number of entries.
func (l *AuditLog) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the log.
func (l *AuditLog) Entries() []AuditEntry {
	return append([]AuditEntry(nil), l.entries...)
}

// At returns the i-th entry.
func (l *AuditLog) At(i int) AuditEntry {
	return l.entries[i]
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cap: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Export is the serialized audit artifact handed to the verification layer.
// RunID identifies the session that produced it; it lives only in the
// envelope, never inside the deterministic core.
type Export struct {
	RunID   string       `cbor:"1,keyasint"`
	Entries []AuditEntry `cbor:"2,keyasint,omitempty"`
}

// MarshalExport serializes an export in canonical form.
func MarshalExport(e *Export) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// MarshalExport serializes the log with a fresh run identifier.
func (l *AuditLog) MarshalExport() ([]byte, error) {
	return MarshalExport(&Export{
		RunID:   uuid.NewString(),
		Entries: l.entries,
	})
}

// UnmarshalExport deserializes an audit export.
func UnmarshalExport(data []byte) (*Export, error) {
	var e Export
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cap: unmarshal audit export: %w", err)
	}
	return &e, nil
}
