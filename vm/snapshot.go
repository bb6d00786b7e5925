package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Canonical CBOR encoding keeps snapshots byte-identical across runs, which
// the determinism guarantee depends on.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Snapshot: serializable VM state
// ---------------------------------------------------------------------------

// FrameSnapshot is the serializable form of one call frame.
type FrameSnapshot struct {
	FuncIndex uint16  `cbor:"1,keyasint"`
	IP        int     `cbor:"2,keyasint"`
	Window    int     `cbor:"3,keyasint"`
	Locals    []Value `cbor:"4,keyasint,omitempty"`
	Captures  []Value `cbor:"5,keyasint,omitempty"`
	Depth     uint32  `cbor:"6,keyasint"`
}

// Snapshot captures everything needed to replay or resume a VmState, minus
// the program itself (the program is identified by the embedder). It is the
// artifact exposed to the verification layer.
type Snapshot struct {
	ActorID        uint32          `cbor:"1,keyasint"`
	Stack          []Value         `cbor:"2,keyasint,omitempty"`
	Frames         []FrameSnapshot `cbor:"3,keyasint,omitempty"`
	StepsRemaining uint64          `cbor:"4,keyasint"`
	MemoryLimit    uint64          `cbor:"5,keyasint"`
	ArenaBytes     []byte          `cbor:"6,keyasint,omitempty"`
	ArenaCapacity  uint64          `cbor:"7,keyasint"`
	ArenaGen       uint64          `cbor:"8,keyasint"`
	Inbox          []Value         `cbor:"9,keyasint,omitempty"`
	Halted         bool            `cbor:"10,keyasint,omitempty"`
}

// Capture produces a snapshot of the current state. The arena contents are
// copied up to the bump cursor only.
func (vs *VmState) Capture() *Snapshot {
	s := &Snapshot{
		ActorID:        vs.ActorID,
		Stack:          append([]Value(nil), vs.stack[:vs.sp]...),
		StepsRemaining: vs.StepsRemaining,
		MemoryLimit:    vs.MemoryLimit,
		ArenaBytes:     append([]byte(nil), vs.Arena.bytes[:vs.Arena.used]...),
		ArenaCapacity:  vs.Arena.Capacity(),
		ArenaGen:       vs.Arena.generation,
		Inbox:          append([]Value(nil), vs.Inbox...),
		Halted:         vs.halted,
	}
	for i := 0; i <= vs.fp; i++ {
		f := &vs.frames[i]
		s.Frames = append(s.Frames, FrameSnapshot{
			FuncIndex: f.FuncIndex,
			IP:        f.IP,
			Window:    f.Window,
			Locals:    append([]Value(nil), f.Locals...),
			Captures:  append([]Value(nil), f.Captures...),
			Depth:     f.Depth,
		})
	}
	return s
}

// Restore builds a VmState from a snapshot and a program. The program must
// be the one the snapshot was captured against; the snapshot does not
// embed it.
func Restore(p *Program, s *Snapshot) *VmState {
	arena := NewObjectArena(s.ArenaCapacity)
	copy(arena.bytes, s.ArenaBytes)
	arena.used = uint64(len(s.ArenaBytes))
	arena.generation = s.ArenaGen

	vs := &VmState{
		Program:        p,
		Arena:          arena,
		stack:          append([]Value(nil), s.Stack...),
		sp:             len(s.Stack),
		fp:             len(s.Frames) - 1,
		StepsRemaining: s.StepsRemaining,
		MemoryLimit:    s.MemoryLimit,
		ActorID:        s.ActorID,
		Inbox:          append([]Value(nil), s.Inbox...),
		halted:         s.Halted,
	}
	for _, f := range s.Frames {
		vs.frames = append(vs.frames, CallFrame{
			FuncIndex: f.FuncIndex,
			IP:        f.IP,
			Window:    f.Window,
			Locals:    append([]Value(nil), f.Locals...),
			Captures:  append([]Value(nil), f.Captures...),
			Depth:     f.Depth,
		})
	}
	return vs
}

// ---------------------------------------------------------------------------
// Wire encoding
// ---------------------------------------------------------------------------

// MarshalSnapshot serializes a snapshot to canonical CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// MarshalProgram serializes a program to canonical CBOR bytes. This is the
// container format the CLI loads.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("vm: unmarshal program: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
