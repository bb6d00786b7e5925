package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction. The instruction set is a
// closed contract: the interpreter matches it exhaustively and anything
// outside it is an UnknownOpcode error, never a silent skip.
type Opcode byte

// Stack Operations
const (
	OpNop  Opcode = 0x00 // no operation
	OpPop  Opcode = 0x01 // discard top of stack
	OpDup  Opcode = 0x02 // duplicate top of stack
	OpSwap Opcode = 0x03 // swap top two stack values
)

// Push Constants
const (
	OpPushNil   Opcode = 0x10 // push nil
	OpPushTrue  Opcode = 0x11 // push true
	OpPushFalse Opcode = 0x12 // push false
	OpPushInt8  Opcode = 0x13 // push 8-bit signed integer
	OpPushInt32 Opcode = 0x14 // push 32-bit signed integer
	OpPushConst Opcode = 0x15 // push constant from pool (16-bit index)
	OpPushSelf  Opcode = 0x16 // push own actor identifier
)

// Local Variables
const (
	OpPushLocal    Opcode = 0x20 // push local/argument (8-bit index)
	OpStoreLocal   Opcode = 0x21 // pop into local (8-bit index)
	OpPushCaptured Opcode = 0x22 // push captured variable (8-bit index)
)

// Pairs
const (
	OpMakePair Opcode = 0x30 // pop tail, head; push pair handle
	OpPairHead Opcode = 0x31 // pop pair; push head
	OpPairTail Opcode = 0x32 // pop pair; push tail
)

// Arithmetic and comparison. Integer overflow and division by zero are
// structured errors, never wraparound.
const (
	OpAdd Opcode = 0x40
	OpSub Opcode = 0x41
	OpMul Opcode = 0x42
	OpDiv Opcode = 0x43
	OpMod Opcode = 0x44
	OpNeg Opcode = 0x45
	OpEq  Opcode = 0x46
	OpLt  Opcode = 0x47
	OpGt  Opcode = 0x48
	OpNot Opcode = 0x49
)

// Control Flow
const (
	OpJump      Opcode = 0x60 // unconditional relative jump (16-bit offset)
	OpJumpTrue  Opcode = 0x61 // pop, jump if truthy (16-bit offset)
	OpJumpFalse Opcode = 0x62 // pop, jump if falsy (16-bit offset)
)

// Calls
const (
	OpCall        Opcode = 0x70 // call function (16-bit index, 8-bit argc)
	OpTailCall    Opcode = 0x71 // tail call: reuse current frame (16-bit index, 8-bit argc)
	OpReturn      Opcode = 0x72 // pop frame, push return value into caller
	OpMakeClosure Opcode = 0x73 // create closure (16-bit func index, 8-bit capture count)
	OpCallClosure Opcode = 0x74 // pop closure + args, call it (8-bit argc)
)

// Actor Interaction
const (
	OpYield Opcode = 0x80 // explicit cooperative suspension point
	OpSend  Opcode = 0x81 // pop value, pop target actor; enqueue message
	OpRecv  Opcode = 0x82 // push next mailbox message, or nil if empty
	OpHalt  Opcode = 0x83 // finish actor with top of stack as result
)

// Capability Instructions. HasCap is a pure local read; the other four
// suspend the interpreter with a request only the scheduler may resolve.
const (
	OpHasCap     Opcode = 0x90 // push whether actor holds capability (8-bit kind)
	OpRequestCap Opcode = 0x91 // request capability (8-bit kind, 16-bit justification const)
	OpRequestRes Opcode = 0x92 // request resource grant: pops amount (8-bit kind, 16-bit justification const)
	OpGrantCap   Opcode = 0x93 // pop target actor; grant it a capability (8-bit kind)
	OpRevokeCap  Opcode = 0x94 // pop target actor; revoke a capability (8-bit kind)
	OpHostCall   Opcode = 0x95 // pop args; invoke host function (8-bit fn, 8-bit argc)
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
	StackEffect  int    // net effect on stack (-128 = variable)
}

const variableEffect = -128

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:  {"NOP", 0, 0},
	OpPop:  {"POP", 0, -1},
	OpDup:  {"DUP", 0, 1},
	OpSwap: {"SWAP", 0, 0},

	OpPushNil:   {"PUSH_NIL", 0, 1},
	OpPushTrue:  {"PUSH_TRUE", 0, 1},
	OpPushFalse: {"PUSH_FALSE", 0, 1},
	OpPushInt8:  {"PUSH_INT8", 1, 1},
	OpPushInt32: {"PUSH_INT32", 4, 1},
	OpPushConst: {"PUSH_CONST", 2, 1},
	OpPushSelf:  {"PUSH_SELF", 0, 1},

	OpPushLocal:    {"PUSH_LOCAL", 1, 1},
	OpStoreLocal:   {"STORE_LOCAL", 1, -1},
	OpPushCaptured: {"PUSH_CAPTURED", 1, 1},

	OpMakePair: {"MAKE_PAIR", 0, -1},
	OpPairHead: {"PAIR_HEAD", 0, 0},
	OpPairTail: {"PAIR_TAIL", 0, 0},

	OpAdd: {"ADD", 0, -1},
	OpSub: {"SUB", 0, -1},
	OpMul: {"MUL", 0, -1},
	OpDiv: {"DIV", 0, -1},
	OpMod: {"MOD", 0, -1},
	OpNeg: {"NEG", 0, 0},
	OpEq:  {"EQ", 0, -1},
	OpLt:  {"LT", 0, -1},
	OpGt:  {"GT", 0, -1},
	OpNot: {"NOT", 0, 0},

	OpJump:      {"JUMP", 2, 0},
	OpJumpTrue:  {"JUMP_TRUE", 2, -1},
	OpJumpFalse: {"JUMP_FALSE", 2, -1},

	OpCall:        {"CALL", 3, variableEffect},
	OpTailCall:    {"TAIL_CALL", 3, variableEffect},
	OpReturn:      {"RETURN", 0, -1},
	OpMakeClosure: {"MAKE_CLOSURE", 3, variableEffect},
	OpCallClosure: {"CALL_CLOSURE", 1, variableEffect},

	OpYield: {"YIELD", 0, 0},
	OpSend:  {"SEND", 0, -2},
	OpRecv:  {"RECV", 0, 1},
	OpHalt:  {"HALT", 0, -1},

	OpHasCap:     {"HAS_CAP", 1, 1},
	OpRequestCap: {"REQUEST_CAP", 3, 1},
	OpRequestRes: {"REQUEST_RES", 3, 0},
	OpGrantCap:   {"GRANT_CAP", 1, 0},
	OpRevokeCap:  {"REVOKE_CAP", 1, 0},
	OpHostCall:   {"HOST_CALL", 2, variableEffect},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), OperandBytes: 0, StackEffect: 0}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences. It is the boundary the
// external compiler targets, and the tool tests build programs with.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *BytecodeBuilder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitInt8 appends an opcode with a signed 8-bit operand.
func (b *BytecodeBuilder) EmitInt8(op Opcode, operand int8) {
	b.bytes = append(b.bytes, byte(op), byte(operand))
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitInt32 appends an opcode with a 32-bit operand (little-endian).
func (b *BytecodeBuilder) EmitInt32(op Opcode, operand int32) {
	b.bytes = append(b.bytes, byte(op))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(operand))
	b.bytes = append(b.bytes, buf[:]...)
}

// EmitCall appends a CALL or TAIL_CALL instruction.
func (b *BytecodeBuilder) EmitCall(op Opcode, funcIndex uint16, argc uint8) {
	b.bytes = append(b.bytes, byte(op), byte(funcIndex), byte(funcIndex>>8), argc)
}

// EmitMakeClosure appends a MAKE_CLOSURE instruction.
func (b *BytecodeBuilder) EmitMakeClosure(funcIndex uint16, nCaptures uint8) {
	b.bytes = append(b.bytes, byte(OpMakeClosure), byte(funcIndex), byte(funcIndex>>8), nCaptures)
}

// EmitCapRequest appends a REQUEST_CAP or REQUEST_RES instruction.
func (b *BytecodeBuilder) EmitCapRequest(op Opcode, kind uint8, justification uint16) {
	b.bytes = append(b.bytes, byte(op), kind, byte(justification), byte(justification>>8))
}

// EmitHostCall appends a HOST_CALL instruction.
func (b *BytecodeBuilder) EmitHostCall(fn uint8, argc uint8) {
	b.bytes = append(b.bytes, byte(OpHostCall), fn, argc)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a forward reference in bytecode.
type Label struct {
	resolved bool
	position int   // position to patch (if unresolved) or target (if resolved)
	refs     []int // positions that reference this label
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{resolved: false, refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	// Patch all forward references
	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitJump emits a jump instruction with a label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		// Backward jump: calculate offset
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		// Forward jump: record position for later patching
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0) // placeholder
	}
}

// ---------------------------------------------------------------------------
// Bytecode reader for disassembly
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc, pos: 0}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	op := Opcode(r.bytes[r.pos])
	r.pos++
	return op
}

// ReadByte reads a single byte operand.
func (r *BytecodeReader) ReadByte() byte {
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadInt8 reads a signed 8-bit operand.
func (r *BytecodeReader) ReadInt8() int8 {
	return int8(r.ReadByte())
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *BytecodeReader) ReadUint16() uint16 {
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadInt16 reads a signed 16-bit operand (little-endian).
func (r *BytecodeReader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// ReadInt32 reads a 32-bit operand (little-endian).
func (r *BytecodeReader) ReadInt32() int32 {
	v := binary.LittleEndian.Uint32(r.bytes[r.pos:])
	r.pos += 4
	return int32(v)
}

// Skip advances the position by n bytes.
func (r *BytecodeReader) Skip(n int) {
	r.pos += n
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position. Returns the string representation and advances the reader.
func DisassembleInstruction(r *BytecodeReader) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	switch op {
	case OpPushInt8:
		v := r.ReadInt8()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, v)

	case OpPushInt32:
		v := r.ReadInt32()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, v)

	case OpPushConst:
		idx := r.ReadUint16()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpPushLocal, OpStoreLocal, OpPushCaptured, OpHasCap, OpGrantCap, OpRevokeCap:
		idx := r.ReadByte()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpJump, OpJumpTrue, OpJumpFalse:
		offset := r.ReadInt16()
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, target)

	case OpCall, OpTailCall:
		fn := r.ReadUint16()
		argc := r.ReadByte()
		return fmt.Sprintf("%04d  %s func=%d argc=%d", pos, info.Name, fn, argc)

	case OpMakeClosure:
		fn := r.ReadUint16()
		n := r.ReadByte()
		return fmt.Sprintf("%04d  %s func=%d captures=%d", pos, info.Name, fn, n)

	case OpCallClosure:
		argc := r.ReadByte()
		return fmt.Sprintf("%04d  %s argc=%d", pos, info.Name, argc)

	case OpRequestCap, OpRequestRes:
		kind := r.ReadByte()
		just := r.ReadUint16()
		return fmt.Sprintf("%04d  %s kind=%d justification=%d", pos, info.Name, kind, just)

	case OpHostCall:
		fn := r.ReadByte()
		argc := r.ReadByte()
		return fmt.Sprintf("%04d  %s fn=%d argc=%d", pos, info.Name, fn, argc)

	default:
		r.Skip(info.OperandBytes)
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
}

// Disassemble returns a full disassembly of bytecode.
func Disassemble(bc []byte) string {
	r := NewBytecodeReader(bc)
	var result string
	for r.HasMore() {
		if result != "" {
			result += "\n"
		}
		result += DisassembleInstruction(r)
	}
	return result
}
