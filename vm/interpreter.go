package vm

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// CallFrame: Execution state for a function invocation
// ---------------------------------------------------------------------------

// CallFrame represents the execution state of a single function invocation.
//
// Locals live in a per-frame slice, separate from the operand-stack window.
// A tail call overwrites the locals slice in place and jumps; because
// MakeClosure copied any escaping locals into an arena record at closure
// creation time, that reuse can never alias a capture.
type CallFrame struct {
	FuncIndex uint16  // index into Program.Functions
	IP        int     // instruction pointer (offset into bytecode)
	Window    int     // start of this frame's operand-stack window
	Locals    []Value // arguments followed by locals
	Captures  []Value // captured variables (closure invocations only)
	Depth     uint32  // recursion depth, still counted across tail calls
	ReturnsTo int     // caller frame index (-1 for the entry frame)
}

// ---------------------------------------------------------------------------
// Step results
// ---------------------------------------------------------------------------

// Status classifies the outcome of one interpreter step.
type Status uint8

const (
	Continue  Status = iota // instruction applied, more to run
	Yielded                 // explicit cooperative suspension point
	Finished                // actor completed with a result value
	Suspended               // capability-sensitive instruction awaits the scheduler
	Failed                  // structured error, see Err
)

// StepResult is the tagged result of Step. The scheduler interprets it;
// the interpreter itself never decides authority questions.
type StepResult struct {
	Status  Status
	Value   Value       // result when Status == Finished
	Err     *VMError    // set when Status == Failed
	Request *Suspension // set when Status == Suspended
}

// SuspendOp identifies which capability-sensitive instruction suspended.
type SuspendOp uint8

const (
	SuspendRequest SuspendOp = iota + 1 // RequestCap / RequestRes
	SuspendGrant                        // GrantCap
	SuspendRevoke                       // RevokeCap
	SuspendHostCall                     // HostCall
)

// Suspension carries a capability request out of the interpreter. Only the
// scheduler may resolve it; the interpreter resumes via Resume.
type Suspension struct {
	Op            SuspendOp
	CapKind       uint8
	Amount        uint32 // resource requests only
	Justification string
	Target        uint32  // grant/revoke target actor
	HostFn        uint8   // host function index (SuspendHostCall)
	Args          []Value // host call arguments, in call order
}

// OutboundMessage is a message awaiting routing by the scheduler.
type OutboundMessage struct {
	Target  uint32
	Payload Value
}

// CapView is a read-only view of the owning actor's capability set, used by
// the HasCap instruction. The scheduler supplies it; the interpreter can
// only read.
type CapView interface {
	Has(kind uint8) bool
}

// ---------------------------------------------------------------------------
// VmState: one actor's interpreter
// ---------------------------------------------------------------------------

// VmState executes one instruction stream against one value stack and one
// call-frame stack, using an arena for heap objects. It is created per actor
// and lives for the actor's lifetime. It enforces step and memory budgets
// and never makes authority decisions itself.
type VmState struct {
	Program *Program
	Arena   *ObjectArena

	stack  []Value
	sp     int
	frames []CallFrame
	fp     int

	// Budgets. StepsRemaining is decremented before every instruction and
	// the budget check fails closed. MemoryLimit caps arena usage below the
	// arena's own capacity.
	StepsRemaining uint64
	MemoryLimit    uint64

	ActorID uint32
	Caps    CapView

	// Mailboxes. Inbox is drained by RECV; Outbox is appended by SEND and
	// drained by the scheduler after each quantum.
	Inbox  []Value
	Outbox []OutboundMessage

	pending *Suspension
	halted  bool
}

// NewVmState creates an interpreter for a program, entered at Program.Entry
// with no arguments.
func NewVmState(p *Program, arena *ObjectArena, stepLimit, memLimit uint64) *VmState {
	vs := &VmState{
		Program:        p,
		Arena:          arena,
		stack:          make([]Value, 0, 256),
		frames:         make([]CallFrame, 0, 32),
		fp:             -1,
		StepsRemaining: stepLimit,
		MemoryLimit:    memLimit,
	}
	entry := &p.Functions[p.Entry]
	vs.frames = append(vs.frames, CallFrame{
		FuncIndex: p.Entry,
		Locals:    make([]Value, entry.NumLocals),
		Depth:     1,
		ReturnsTo: -1,
	})
	vs.fp = 0
	return vs
}

// FrameDepth returns the current call-frame-stack length.
func (vs *VmState) FrameDepth() int {
	return vs.fp + 1
}

// RecursionDepth returns the current frame's depth counter, which keeps
// counting across tail calls for resource accounting.
func (vs *VmState) RecursionDepth() uint32 {
	if vs.fp < 0 {
		return 0
	}
	return vs.frames[vs.fp].Depth
}

// Pending returns the outstanding suspension, or nil.
func (vs *VmState) Pending() *Suspension {
	return vs.pending
}

// Resume delivers the scheduler's answer to a suspended instruction: the
// value is pushed and execution may continue.
func (vs *VmState) Resume(v Value) {
	vs.pending = nil
	vs.push(v)
}

// Deliver appends a message to the inbox. The scheduler calls this at the
// start of the actor's quantum, never mid-quantum.
func (vs *VmState) Deliver(v Value) {
	vs.Inbox = append(vs.Inbox, v)
}

// DrainOutbox returns and clears the outbound message list.
func (vs *VmState) DrainOutbox() []OutboundMessage {
	out := vs.Outbox
	vs.Outbox = nil
	return out
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (vs *VmState) push(v Value) {
	vs.stack = append(vs.stack[:vs.sp], v)
	vs.sp++
}

func (vs *VmState) pop() (Value, bool) {
	if vs.fp >= 0 && vs.sp <= vs.frames[vs.fp].Window {
		return Nil, false
	}
	if vs.sp <= 0 {
		return Nil, false
	}
	vs.sp--
	return vs.stack[vs.sp], true
}

func (vs *VmState) underflow(pc int, op Opcode) StepResult {
	return vs.fail(pc, op, &VMError{Code: ErrStackUnderflow, Message: "operand stack underflow"})
}

func (vs *VmState) fail(pc int, op Opcode, e *VMError) StepResult {
	return StepResult{Status: Failed, Err: vs.attach(e, pc, op)}
}

// ---------------------------------------------------------------------------
// Step: decode and apply one instruction
// ---------------------------------------------------------------------------

// Step decodes the instruction at the program counter, applies its effect,
// and reports the outcome. Every step first decrements the remaining-step
// counter and fails closed with CpuLimitExceeded the instant the budget
// would go negative.
func (vs *VmState) Step() StepResult {
	if vs.pending != nil {
		return StepResult{Status: Suspended, Request: vs.pending}
	}
	if vs.halted {
		return StepResult{Status: Finished, Value: Nil}
	}

	if vs.StepsRemaining == 0 {
		e := &VMError{Code: ErrCpuLimitExceeded, Message: "step budget exhausted", Limit: 0, Attempted: 1}
		frame := &vs.frames[vs.fp]
		blocked := OpNop
		if code := vs.Program.Functions[frame.FuncIndex].Code; frame.IP < len(code) {
			blocked = Opcode(code[frame.IP])
		}
		return vs.fail(frame.IP, blocked, e)
	}
	vs.StepsRemaining--

	frame := &vs.frames[vs.fp]
	fn := &vs.Program.Functions[frame.FuncIndex]
	bc := fn.Code

	if frame.IP >= len(bc) {
		// Implicit return of nil at end of function.
		return vs.doReturn(Nil)
	}

	pc := frame.IP
	op := Opcode(bc[frame.IP])
	frame.IP++

	// Reject an instruction stream truncated mid-operand before any decode
	// below reads past the end of the bytecode.
	if frame.IP+op.Info().OperandBytes > len(bc) {
		return vs.fail(pc, op, &VMError{Code: ErrTruncatedBytecode, Message: "instruction operands truncated"})
	}

	switch op {
	// --- Stack operations ---
	case OpNop:
		// Do nothing.

	case OpPop:
		if _, ok := vs.pop(); !ok {
			return vs.underflow(pc, op)
		}

	case OpDup:
		v, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		vs.push(v)
		vs.push(v)

	case OpSwap:
		b, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		a, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		vs.push(b)
		vs.push(a)

	// --- Push constants ---
	case OpPushNil:
		vs.push(Nil)

	case OpPushTrue:
		vs.push(True)

	case OpPushFalse:
		vs.push(False)

	case OpPushInt8:
		val := int8(bc[frame.IP])
		frame.IP++
		vs.push(FromSmallInt(int64(val)))

	case OpPushInt32:
		val := int32(binary.LittleEndian.Uint32(bc[frame.IP:]))
		frame.IP += 4
		vs.push(FromSmallInt(int64(val)))

	case OpPushConst:
		idx := binary.LittleEndian.Uint16(bc[frame.IP:])
		frame.IP += 2
		if int(idx) >= len(vs.Program.Constants) {
			return vs.fail(pc, op, &VMError{Code: ErrBadConstIndex, Message: "constant index out of range"})
		}
		vs.push(vs.Program.Constants[idx])

	case OpPushSelf:
		vs.push(FromActorID(vs.ActorID))

	// --- Locals ---
	case OpPushLocal:
		idx := int(bc[frame.IP])
		frame.IP++
		if idx >= len(frame.Locals) {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "local index out of range"})
		}
		vs.push(frame.Locals[idx])

	case OpStoreLocal:
		idx := int(bc[frame.IP])
		frame.IP++
		if idx >= len(frame.Locals) {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "local index out of range"})
		}
		v, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		frame.Locals[idx] = v

	case OpPushCaptured:
		idx := int(bc[frame.IP])
		frame.IP++
		if idx >= len(frame.Captures) {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "capture index out of range"})
		}
		vs.push(frame.Captures[idx])

	// --- Pairs ---
	case OpMakePair:
		tail, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		head, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if res := vs.checkMemory(pc, op, recordHeaderSize+16); res != nil {
			return *res
		}
		ptr, err := vs.Arena.AllocatePair(head, tail)
		if err != nil {
			return vs.fail(pc, op, err.(*VMError))
		}
		vs.push(FromPairHandle(ptr))

	case OpPairHead, OpPairTail:
		v, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if !v.IsPair() {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "pair expected"})
		}
		head, tail, err := vs.Arena.Pair(v.Handle())
		if err != nil {
			return vs.fail(pc, op, err.(*VMError))
		}
		if op == OpPairHead {
			vs.push(head)
		} else {
			vs.push(tail)
		}

	// --- Arithmetic ---
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpLt, OpGt:
		b, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		a, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if !a.IsSmallInt() || !b.IsSmallInt() {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "integer operands expected"})
		}
		res, err := arith(op, a.SmallInt(), b.SmallInt())
		if err != nil {
			return vs.fail(pc, op, err)
		}
		vs.push(res)

	case OpNeg:
		v, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if !v.IsSmallInt() {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "integer operand expected"})
		}
		n, inRange := TryFromSmallInt(-v.SmallInt())
		if !inRange {
			return vs.fail(pc, op, &VMError{Code: ErrIntegerOverflow, Message: "negation overflow"})
		}
		vs.push(n)

	case OpEq:
		b, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		a, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		vs.push(FromBool(a == b))

	case OpNot:
		v, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		vs.push(FromBool(!v.IsTruthy()))

	// --- Control flow ---
	case OpJump:
		offset := int16(binary.LittleEndian.Uint16(bc[frame.IP:]))
		frame.IP += 2
		target := frame.IP + int(offset)
		if target < 0 {
			return vs.fail(pc, op, &VMError{Code: ErrBadJumpTarget, Message: "jump target before bytecode start"})
		}
		frame.IP = target

	case OpJumpTrue, OpJumpFalse:
		offset := int16(binary.LittleEndian.Uint16(bc[frame.IP:]))
		frame.IP += 2
		cond, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if (op == OpJumpTrue) == cond.IsTruthy() {
			target := frame.IP + int(offset)
			if target < 0 {
				return vs.fail(pc, op, &VMError{Code: ErrBadJumpTarget, Message: "jump target before bytecode start"})
			}
			frame.IP = target
		}

	// --- Calls ---
	case OpCall:
		funcIdx := binary.LittleEndian.Uint16(bc[frame.IP:])
		frame.IP += 2
		argc := int(bc[frame.IP])
		frame.IP++
		if res := vs.doCall(pc, op, funcIdx, argc, nil); res != nil {
			return *res
		}

	case OpTailCall:
		funcIdx := binary.LittleEndian.Uint16(bc[frame.IP:])
		frame.IP += 2
		argc := int(bc[frame.IP])
		frame.IP++
		if res := vs.doTailCall(pc, op, funcIdx, argc); res != nil {
			return *res
		}

	case OpReturn:
		result, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		return vs.doReturn(result)

	case OpMakeClosure:
		funcIdx := binary.LittleEndian.Uint16(bc[frame.IP:])
		frame.IP += 2
		nCaptures := int(bc[frame.IP])
		frame.IP++
		if int(funcIdx) >= len(vs.Program.Functions) {
			return vs.fail(pc, op, &VMError{Code: ErrBadFuncIndex, Message: "closure function index out of range"})
		}
		// Pop captures; they were pushed in capture order.
		captures := make([]Value, nCaptures)
		for i := nCaptures - 1; i >= 0; i-- {
			v, ok := vs.pop()
			if !ok {
				return vs.underflow(pc, op)
			}
			captures[i] = v
		}
		if res := vs.checkMemory(pc, op, recordHeaderSize+4+8*nCaptures); res != nil {
			return *res
		}
		ptr, err := vs.Arena.AllocateClosure(funcIdx, captures)
		if err != nil {
			return vs.fail(pc, op, err.(*VMError))
		}
		vs.push(FromClosureHandle(ptr))

	case OpCallClosure:
		argc := int(bc[frame.IP])
		frame.IP++
		args := make([]Value, argc)
		for i := argc - 1; i >= 0; i-- {
			v, ok := vs.pop()
			if !ok {
				return vs.underflow(pc, op)
			}
			args[i] = v
		}
		clo, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if !clo.IsClosure() {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "closure expected"})
		}
		funcIdx, captures, err := vs.Arena.Closure(clo.Handle())
		if err != nil {
			return vs.fail(pc, op, err.(*VMError))
		}
		for i := len(args) - 1; i >= 0; i-- {
			vs.push(args[i])
		}
		if res := vs.doCall(pc, op, funcIdx, argc, captures); res != nil {
			return *res
		}

	// --- Actor interaction ---
	case OpYield:
		return StepResult{Status: Yielded}

	case OpSend:
		payload, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		target, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if !target.IsActor() {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "actor identifier expected"})
		}
		vs.Outbox = append(vs.Outbox, OutboundMessage{Target: target.ActorID(), Payload: payload})

	case OpRecv:
		if len(vs.Inbox) == 0 {
			vs.push(Nil)
		} else {
			vs.push(vs.Inbox[0])
			vs.Inbox = vs.Inbox[1:]
		}

	case OpHalt:
		result, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		vs.halted = true
		return StepResult{Status: Finished, Value: result}

	// --- Capabilities ---
	case OpHasCap:
		kind := bc[frame.IP]
		frame.IP++
		vs.push(FromBool(vs.Caps != nil && vs.Caps.Has(kind)))

	case OpRequestCap, OpRequestRes:
		kind := bc[frame.IP]
		frame.IP++
		justIdx := binary.LittleEndian.Uint16(bc[frame.IP:])
		frame.IP += 2
		var amount uint32
		if op == OpRequestRes {
			v, ok := vs.pop()
			if !ok {
				return vs.underflow(pc, op)
			}
			if !v.IsSmallInt() || v.SmallInt() < 0 {
				return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "non-negative amount expected"})
			}
			amount = uint32(v.SmallInt())
		}
		just := ""
		if int(justIdx) < len(vs.Program.Constants) {
			just = vs.Program.SymbolName(vs.Program.Constants[justIdx])
		}
		vs.pending = &Suspension{
			Op:            SuspendRequest,
			CapKind:       kind,
			Amount:        amount,
			Justification: just,
		}
		return StepResult{Status: Suspended, Request: vs.pending}

	case OpGrantCap, OpRevokeCap:
		kind := bc[frame.IP]
		frame.IP++
		target, ok := vs.pop()
		if !ok {
			return vs.underflow(pc, op)
		}
		if !target.IsActor() {
			return vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "actor identifier expected"})
		}
		sop := SuspendGrant
		if op == OpRevokeCap {
			sop = SuspendRevoke
		}
		vs.pending = &Suspension{Op: sop, CapKind: kind, Target: target.ActorID()}
		return StepResult{Status: Suspended, Request: vs.pending}

	case OpHostCall:
		fnIdx := bc[frame.IP]
		frame.IP++
		argc := int(bc[frame.IP])
		frame.IP++
		args := make([]Value, argc)
		for i := argc - 1; i >= 0; i-- {
			v, ok := vs.pop()
			if !ok {
				return vs.underflow(pc, op)
			}
			args[i] = v
		}
		vs.pending = &Suspension{Op: SuspendHostCall, HostFn: fnIdx, Args: args}
		return StepResult{Status: Suspended, Request: vs.pending}

	default:
		return vs.fail(pc, op, &VMError{Code: ErrUnknownOpcode, Message: "unknown opcode"})
	}

	return StepResult{Status: Continue}
}

// ---------------------------------------------------------------------------
// Call handling
// ---------------------------------------------------------------------------

func (vs *VmState) doCall(pc int, op Opcode, funcIdx uint16, argc int, captures []Value) *StepResult {
	if int(funcIdx) >= len(vs.Program.Functions) {
		r := vs.fail(pc, op, &VMError{Code: ErrBadFuncIndex, Message: "function index out of range"})
		return &r
	}
	callee := &vs.Program.Functions[funcIdx]
	if argc != callee.NumParams {
		r := vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "argument count mismatch"})
		return &r
	}

	locals := make([]Value, callee.NumLocals)
	for i := argc - 1; i >= 0; i-- {
		v, ok := vs.pop()
		if !ok {
			r := vs.underflow(pc, op)
			return &r
		}
		locals[i] = v
	}
	for i := argc; i < callee.NumLocals; i++ {
		locals[i] = Nil
	}

	vs.frames = append(vs.frames[:vs.fp+1], CallFrame{
		FuncIndex: funcIdx,
		Window:    vs.sp,
		Locals:    locals,
		Captures:  captures,
		Depth:     vs.frames[vs.fp].Depth + 1,
		ReturnsTo: vs.fp,
	})
	vs.fp++
	return nil
}

// doTailCall reuses the current frame's slot instead of pushing a new one,
// bounding stack growth for self-recursive tail calls to O(1). The depth
// counter still increments so runaway recursion stays visible to resource
// accounting.
func (vs *VmState) doTailCall(pc int, op Opcode, funcIdx uint16, argc int) *StepResult {
	if int(funcIdx) >= len(vs.Program.Functions) {
		r := vs.fail(pc, op, &VMError{Code: ErrBadFuncIndex, Message: "function index out of range"})
		return &r
	}
	callee := &vs.Program.Functions[funcIdx]
	if argc != callee.NumParams {
		r := vs.fail(pc, op, &VMError{Code: ErrTypeMismatch, Message: "argument count mismatch"})
		return &r
	}

	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, ok := vs.pop()
		if !ok {
			r := vs.underflow(pc, op)
			return &r
		}
		args[i] = v
	}

	frame := &vs.frames[vs.fp]
	// Discard the finished frame's operands before reusing its slot.
	vs.sp = frame.Window

	locals := frame.Locals
	if cap(locals) < callee.NumLocals {
		locals = make([]Value, callee.NumLocals)
	} else {
		locals = locals[:callee.NumLocals]
	}
	copy(locals, args)
	for i := argc; i < callee.NumLocals; i++ {
		locals[i] = Nil
	}

	frame.FuncIndex = funcIdx
	frame.IP = 0
	frame.Locals = locals
	frame.Captures = nil
	frame.Depth++
	return nil
}

func (vs *VmState) doReturn(result Value) StepResult {
	frame := &vs.frames[vs.fp]
	// Truncate to the frame's window boundary, guaranteeing isolation
	// between frames.
	vs.sp = frame.Window
	vs.fp--
	vs.frames = vs.frames[:vs.fp+1]

	if vs.fp < 0 {
		vs.halted = true
		return StepResult{Status: Finished, Value: result}
	}
	vs.push(result)
	return StepResult{Status: Continue}
}

// checkMemory enforces the per-actor memory budget before an allocation.
// Returns a MemoryLimitExceeded failure, or nil if the allocation may
// proceed (the arena itself still enforces its capacity).
func (vs *VmState) checkMemory(pc int, op Opcode, size int) *StepResult {
	aligned := (uint64(size) + arenaAlign - 1) &^ (arenaAlign - 1)
	if vs.MemoryLimit > 0 && vs.Arena.Used()+aligned > vs.MemoryLimit {
		r := vs.fail(pc, op, &VMError{
			Code:      ErrMemoryLimitExceeded,
			Message:   "memory budget exhausted",
			Attempted: vs.Arena.Used() + aligned,
			Limit:     vs.MemoryLimit,
		})
		return &r
	}
	return nil
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// arith applies an integer operation with deterministic overflow handling.
// Results outside the 48-bit SmallInt range are IntegerOverflow errors, so
// behavior is independent of host integer width.
func arith(op Opcode, a, b int64) (Value, *VMError) {
	var r int64
	switch op {
	case OpAdd:
		r = a + b
	case OpSub:
		r = a - b
	case OpMul:
		r = a * b
		if a != 0 && r/a != b {
			return Nil, &VMError{Code: ErrIntegerOverflow, Message: "multiplication overflow"}
		}
	case OpDiv:
		if b == 0 {
			return Nil, &VMError{Code: ErrDivideByZero, Message: "division by zero"}
		}
		r = a / b
	case OpMod:
		if b == 0 {
			return Nil, &VMError{Code: ErrDivideByZero, Message: "modulo by zero"}
		}
		r = a % b
	case OpLt:
		return FromBool(a < b), nil
	case OpGt:
		return FromBool(a > b), nil
	}
	v, inRange := TryFromSmallInt(r)
	if !inRange {
		return Nil, &VMError{Code: ErrIntegerOverflow, Message: "result out of integer range"}
	}
	return v, nil
}
