package vm

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// ObjectArena: bump allocator for heap records
// ---------------------------------------------------------------------------

// HeapPtr is an opaque byte offset into the arena's current generation.
// A HeapPtr is valid only until the next Reset; dereferencing a stale handle
// after Reset is an unchecked precondition. The allocator bounds-checks
// offsets but cannot tell a stale handle from a live one.
type HeapPtr uint64

// RecordKind identifies the layout of an arena record.
type RecordKind uint8

const (
	RecordPair    RecordKind = 1 // two Values: head, tail
	RecordClosure RecordKind = 2 // function index + captured Values
	RecordRaw     RecordKind = 3 // uninterpreted bytes
)

// Record header layout: kind (1 byte), reserved (3 bytes), payload length
// (4 bytes, little-endian). Records are aligned to 8 bytes so a header never
// straddles an alignment boundary.
const (
	recordHeaderSize = 8
	arenaAlign       = 8
)

// RecordHeader describes one arena record.
type RecordHeader struct {
	Kind RecordKind
	Len  uint32 // payload length in bytes
}

// ObjectArena is a contiguous byte region with a bump cursor. Allocation is
// O(1); the only reclamation mechanism is Reset, which invalidates every
// outstanding handle in O(1) without touching memory contents. It is
// intentionally not a tracing collector: actor-scoped computations reset
// between independent units of work. A mark-sweep pass can be layered on top
// by walking the header/data format, but that is outside this contract.
type ObjectArena struct {
	bytes      []byte
	used       uint64
	generation uint64
}

// NewObjectArena creates an arena with the given capacity in bytes.
func NewObjectArena(capacity uint64) *ObjectArena {
	return &ObjectArena{bytes: make([]byte, capacity)}
}

// Capacity returns the arena's total size in bytes.
func (a *ObjectArena) Capacity() uint64 {
	return uint64(len(a.bytes))
}

// Used returns the number of bytes currently allocated. Used <= Capacity
// always holds.
func (a *ObjectArena) Used() uint64 {
	return a.used
}

// Generation returns the reset counter. It increments on every Reset and is
// recorded in snapshots so a restored arena rejects nothing it should accept.
func (a *ObjectArena) Generation() uint64 {
	return a.generation
}

// Allocate bumps the cursor and writes a record header followed by data.
// It fails cleanly with *VMError (ErrArenaFull) when the aligned size would
// exceed remaining capacity; it never panics.
func (a *ObjectArena) Allocate(kind RecordKind, data []byte) (HeapPtr, error) {
	size := uint64(recordHeaderSize + len(data))
	aligned := (size + arenaAlign - 1) &^ (arenaAlign - 1)

	if a.used+aligned > uint64(len(a.bytes)) {
		return 0, &VMError{
			Code:      ErrArenaFull,
			Message:   "arena full",
			Attempted: aligned,
			Limit:     uint64(len(a.bytes)) - a.used,
		}
	}

	ptr := HeapPtr(a.used)
	a.bytes[a.used] = byte(kind)
	a.bytes[a.used+1] = 0
	a.bytes[a.used+2] = 0
	a.bytes[a.used+3] = 0
	binary.LittleEndian.PutUint32(a.bytes[a.used+4:], uint32(len(data)))
	copy(a.bytes[a.used+recordHeaderSize:], data)
	a.used += aligned
	return ptr, nil
}

// Reset sets the cursor back to zero and invalidates every outstanding
// handle. O(1): memory contents are not touched.
func (a *ObjectArena) Reset() {
	a.used = 0
	a.generation++
}

// Header returns the record header at ptr.
func (a *ObjectArena) Header(ptr HeapPtr) (RecordHeader, error) {
	if uint64(ptr)+recordHeaderSize > a.used {
		return RecordHeader{}, &VMError{
			Code:    ErrInvalidHeapPtr,
			Message: "heap pointer out of range",
		}
	}
	return RecordHeader{
		Kind: RecordKind(a.bytes[ptr]),
		Len:  binary.LittleEndian.Uint32(a.bytes[ptr+4:]),
	}, nil
}

// Data returns the payload bytes of the record at ptr. The returned slice
// aliases arena memory and is valid only until the next Reset.
func (a *ObjectArena) Data(ptr HeapPtr) ([]byte, error) {
	hdr, err := a.Header(ptr)
	if err != nil {
		return nil, err
	}
	start := uint64(ptr) + recordHeaderSize
	if start+uint64(hdr.Len) > a.used {
		return nil, &VMError{
			Code:    ErrInvalidHeapPtr,
			Message: "heap record truncated",
		}
	}
	return a.bytes[start : start+uint64(hdr.Len)], nil
}

// ---------------------------------------------------------------------------
// Typed record helpers
// ---------------------------------------------------------------------------

// AllocatePair allocates a pair record holding head and tail.
func (a *ObjectArena) AllocatePair(head, tail Value) (HeapPtr, error) {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(head))
	binary.LittleEndian.PutUint64(buf[8:], uint64(tail))
	return a.Allocate(RecordPair, buf[:])
}

// Pair reads a pair record.
func (a *ObjectArena) Pair(ptr HeapPtr) (head, tail Value, err error) {
	hdr, err := a.Header(ptr)
	if err != nil {
		return Nil, Nil, err
	}
	if hdr.Kind != RecordPair || hdr.Len != 16 {
		return Nil, Nil, &VMError{
			Code:    ErrInvalidHeapPtr,
			Message: "not a pair record",
		}
	}
	data, err := a.Data(ptr)
	if err != nil {
		return Nil, Nil, err
	}
	head = Value(binary.LittleEndian.Uint64(data[0:]))
	tail = Value(binary.LittleEndian.Uint64(data[8:]))
	return head, tail, nil
}

// AllocateClosure allocates a closure record: the callee's function index
// followed by the captured values. Captures are copied, never aliased:
// the frame slots they came from are reused by subsequent tail calls.
func (a *ObjectArena) AllocateClosure(funcIndex uint16, captures []Value) (HeapPtr, error) {
	buf := make([]byte, 4+8*len(captures))
	binary.LittleEndian.PutUint16(buf[0:], funcIndex)
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(captures)))
	for i, c := range captures {
		binary.LittleEndian.PutUint64(buf[4+8*i:], uint64(c))
	}
	return a.Allocate(RecordClosure, buf)
}

// Closure reads a closure record. The returned captures slice is a copy.
func (a *ObjectArena) Closure(ptr HeapPtr) (funcIndex uint16, captures []Value, err error) {
	hdr, err := a.Header(ptr)
	if err != nil {
		return 0, nil, err
	}
	if hdr.Kind != RecordClosure || hdr.Len < 4 {
		return 0, nil, &VMError{
			Code:    ErrInvalidHeapPtr,
			Message: "not a closure record",
		}
	}
	data, err := a.Data(ptr)
	if err != nil {
		return 0, nil, err
	}
	funcIndex = binary.LittleEndian.Uint16(data[0:])
	n := int(binary.LittleEndian.Uint16(data[2:]))
	if len(data) < 4+8*n {
		return 0, nil, &VMError{
			Code:    ErrInvalidHeapPtr,
			Message: "closure record truncated",
		}
	}
	captures = make([]Value, n)
	for i := range captures {
		captures[i] = Value(binary.LittleEndian.Uint64(data[4+8*i:]))
	}
	return funcIndex, captures, nil
}
