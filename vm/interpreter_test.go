package vm

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// singleFunc wraps one bytecode sequence as a program's entry function.
func singleFunc(code []byte, numLocals int) *Program {
	return &Program{
		Functions: []Function{{Name: "main", NumLocals: numLocals, Code: code}},
	}
}

// runVM steps until the VM stops making progress and returns the final
// result.
func runVM(t *testing.T, vs *VmState) StepResult {
	t.Helper()
	for i := 0; i < 1_000_000; i++ {
		res := vs.Step()
		if res.Status != Continue {
			return res
		}
	}
	t.Fatalf("program did not terminate")
	return StepResult{}
}

// runProgram executes a program with generous budgets.
func runProgram(t *testing.T, p *Program) StepResult {
	t.Helper()
	vs := NewVmState(p, NewObjectArena(4096), 1_000_000, 0)
	return runVM(t, vs)
}

// mustFinish asserts a Finished status and returns the result value.
func mustFinish(t *testing.T, res StepResult) Value {
	t.Helper()
	if res.Status != Finished {
		t.Fatalf("status = %v, want Finished (err: %v)", res.Status, res.Err)
	}
	return res.Value
}

// mustFail asserts a Failed status with the given error code.
func mustFail(t *testing.T, res StepResult, code ErrorCode) *VMError {
	t.Helper()
	if res.Status != Failed {
		t.Fatalf("status = %v, want Failed", res.Status)
	}
	if res.Err.Code != code {
		t.Fatalf("error code = %v, want %v", res.Err.Code, code)
	}
	return res.Err
}

// ---------------------------------------------------------------------------
// Basic execution
// ---------------------------------------------------------------------------

func TestAddTwoConstants(t *testing.T) {
	// 5 + 3
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 5)
	b.EmitInt8(OpPushInt8, 3)
	b.Emit(OpAdd)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
	if result != FromSmallInt(8) {
		t.Errorf("result = %v, want 8", result)
	}
}

func TestImplicitReturnNil(t *testing.T) {
	// Falling off the end of the entry function finishes with nil.
	b := NewBytecodeBuilder()
	b.Emit(OpNop)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
	if result != Nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestPushInt32(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt32(OpPushInt32, -100000)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
	if result != FromSmallInt(-100000) {
		t.Errorf("result = %v, want -100000", result)
	}
}

func TestPushConst(t *testing.T) {
	p := singleFunc(nil, 0)
	idx := p.AddConstant(FromSmallInt(1 << 40))

	b := NewBytecodeBuilder()
	b.EmitUint16(OpPushConst, idx)
	b.Emit(OpHalt)
	p.Functions[0].Code = b.Bytes()

	result := mustFinish(t, runProgram(t, p))
	if result != FromSmallInt(1<<40) {
		t.Errorf("result = %v, want 1<<40", result)
	}
}

func TestBadConstIndex(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitUint16(OpPushConst, 9)
	b.Emit(OpHalt)

	mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrBadConstIndex)
}

func TestPushSelf(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpPushSelf)
	b.Emit(OpHalt)

	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(64), 100, 0)
	vs.ActorID = 17
	result := mustFinish(t, runVM(t, vs))
	if result != FromActorID(17) {
		t.Errorf("result = %v, want actor 17", result)
	}
}

func TestStackOps(t *testing.T) {
	// swap(1, 2) then pop leaves 2... stack: 1 2 -> swap -> 2 1 -> pop -> 2
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 1)
	b.EmitInt8(OpPushInt8, 2)
	b.Emit(OpSwap)
	b.Emit(OpPop)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
	if result != FromSmallInt(2) {
		t.Errorf("result = %v, want 2", result)
	}
}

func TestLocals(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 11)
	b.EmitByte(OpStoreLocal, 0)
	b.EmitByte(OpPushLocal, 0)
	b.EmitByte(OpPushLocal, 0)
	b.Emit(OpAdd)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 1)))
	if result != FromSmallInt(22) {
		t.Errorf("result = %v, want 22", result)
	}
}

// ---------------------------------------------------------------------------
// Arithmetic and errors
// ---------------------------------------------------------------------------

func TestArithmetic(t *testing.T) {
	cases := []struct {
		name string
		op   Opcode
		a, b int8
		want Value
	}{
		{"sub", OpSub, 10, 3, FromSmallInt(7)},
		{"mul", OpMul, 6, 7, FromSmallInt(42)},
		{"div", OpDiv, 7, 2, FromSmallInt(3)},
		{"mod", OpMod, 7, 2, FromSmallInt(1)},
		{"lt true", OpLt, 1, 2, True},
		{"lt false", OpLt, 2, 1, False},
		{"gt true", OpGt, 2, 1, True},
		{"eq true", OpEq, 5, 5, True},
		{"eq false", OpEq, 5, 6, False},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBytecodeBuilder()
			b.EmitInt8(OpPushInt8, tc.a)
			b.EmitInt8(OpPushInt8, tc.b)
			b.Emit(tc.op)
			b.Emit(OpHalt)

			result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
			if result != tc.want {
				t.Errorf("result = %v, want %v", result, tc.want)
			}
		})
	}
}

func TestNegAndNot(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 9)
	b.Emit(OpNeg)
	b.Emit(OpHalt)
	if got := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0))); got != FromSmallInt(-9) {
		t.Errorf("neg = %v, want -9", got)
	}

	b = NewBytecodeBuilder()
	b.Emit(OpPushNil)
	b.Emit(OpNot)
	b.Emit(OpHalt)
	if got := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0))); got != True {
		t.Errorf("not nil = %v, want true", got)
	}
}

func TestDivideByZero(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 1)
	b.EmitInt8(OpPushInt8, 0)
	b.Emit(OpDiv)
	b.Emit(OpHalt)

	err := mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrDivideByZero)
	if !err.Code.IsStructural() {
		t.Errorf("divide by zero should be structural")
	}
}

func TestIntegerOverflow(t *testing.T) {
	p := singleFunc(nil, 0)
	idx := p.AddConstant(FromSmallInt(MaxSmallInt))

	b := NewBytecodeBuilder()
	b.EmitUint16(OpPushConst, idx)
	b.EmitInt8(OpPushInt8, 2)
	b.Emit(OpMul)
	b.Emit(OpHalt)
	p.Functions[0].Code = b.Bytes()

	mustFail(t, runProgram(t, p), ErrIntegerOverflow)
}

func TestAddOverflowAt48Bits(t *testing.T) {
	// MaxSmallInt + 1 overflows even though it fits in an int64.
	p := singleFunc(nil, 0)
	idx := p.AddConstant(FromSmallInt(MaxSmallInt))

	b := NewBytecodeBuilder()
	b.EmitUint16(OpPushConst, idx)
	b.EmitInt8(OpPushInt8, 1)
	b.Emit(OpAdd)
	b.Emit(OpHalt)
	p.Functions[0].Code = b.Bytes()

	mustFail(t, runProgram(t, p), ErrIntegerOverflow)
}

func TestTypeMismatch(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpPushNil)
	b.EmitInt8(OpPushInt8, 1)
	b.Emit(OpAdd)
	b.Emit(OpHalt)

	mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrTypeMismatch)
}

func TestStackUnderflow(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpAdd)

	mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrStackUnderflow)
}

func TestUnknownOpcode(t *testing.T) {
	err := mustFail(t, runProgram(t, singleFunc([]byte{0xFF}, 0)), ErrUnknownOpcode)
	if err.Instruction != "UNKNOWN_FF" {
		t.Errorf("instruction = %q, want UNKNOWN_FF", err.Instruction)
	}
}

func TestErrorDiagnostics(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 1)
	b.EmitInt8(OpPushInt8, 2)
	b.EmitUint16(OpPushConst, 9)

	err := mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrBadConstIndex)
	if err.PC != 4 {
		t.Errorf("PC = %d, want 4", err.PC)
	}
	if err.Instruction != "PUSH_CONST" {
		t.Errorf("instruction = %q, want PUSH_CONST", err.Instruction)
	}
	if err.CallDepth != 1 {
		t.Errorf("call depth = %d, want 1", err.CallDepth)
	}
	if len(err.StackSnapshot) != 2 {
		t.Errorf("stack snapshot = %v, want the two pushed operands", err.StackSnapshot)
	}
}

func TestTruncatedOperandFailsClosed(t *testing.T) {
	// A bare PUSH_INT32 with none of its four operand bytes present.
	err := mustFail(t, runProgram(t, singleFunc([]byte{byte(OpPushInt32)}, 0)), ErrTruncatedBytecode)
	if err.Instruction != "PUSH_INT32" {
		t.Errorf("instruction = %q, want PUSH_INT32", err.Instruction)
	}
	if err.PC != 0 {
		t.Errorf("PC = %d, want 0", err.PC)
	}
}

func TestTruncatedCallOperands(t *testing.T) {
	// CALL carries three operand bytes; only one is present.
	mustFail(t, runProgram(t, singleFunc([]byte{byte(OpCall), 0x01}, 0)), ErrTruncatedBytecode)
}

func TestJumpBeforeBytecodeStart(t *testing.T) {
	// Relative offset -16 from position 3 lands before the code.
	code := []byte{byte(OpJump), 0xF0, 0xFF}
	err := mustFail(t, runProgram(t, singleFunc(code, 0)), ErrBadJumpTarget)
	if err.Instruction != "JUMP" {
		t.Errorf("instruction = %q, want JUMP", err.Instruction)
	}
}

func TestConditionalJumpBeforeBytecodeStart(t *testing.T) {
	code := []byte{byte(OpPushTrue), byte(OpJumpTrue), 0xF0, 0xFF}
	mustFail(t, runProgram(t, singleFunc(code, 0)), ErrBadJumpTarget)
}

func TestJumpPastEndIsImplicitReturn(t *testing.T) {
	// Jumping beyond the last instruction behaves like falling off the end.
	code := []byte{byte(OpJump), 0x10, 0x00}
	result := mustFinish(t, runProgram(t, singleFunc(code, 0)))
	if result != Nil {
		t.Errorf("result = %v, want nil", result)
	}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestConditionalJump(t *testing.T) {
	// if true then 1 else 2
	b := NewBytecodeBuilder()
	elseL := b.NewLabel()
	endL := b.NewLabel()
	b.Emit(OpPushTrue)
	b.EmitJump(OpJumpFalse, elseL)
	b.EmitInt8(OpPushInt8, 1)
	b.EmitJump(OpJump, endL)
	b.Mark(elseL)
	b.EmitInt8(OpPushInt8, 2)
	b.Mark(endL)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
	if result != FromSmallInt(1) {
		t.Errorf("result = %v, want 1", result)
	}
}

func TestLoopSum(t *testing.T) {
	// local0 = 10; local1 = 0; while local0 > 0 { local1 += local0; local0 -= 1 }
	b := NewBytecodeBuilder()
	top := b.NewLabel()
	done := b.NewLabel()

	b.EmitInt8(OpPushInt8, 10)
	b.EmitByte(OpStoreLocal, 0)
	b.EmitInt8(OpPushInt8, 0)
	b.EmitByte(OpStoreLocal, 1)

	b.Mark(top)
	b.EmitByte(OpPushLocal, 0)
	b.EmitInt8(OpPushInt8, 0)
	b.Emit(OpGt)
	b.EmitJump(OpJumpFalse, done)

	b.EmitByte(OpPushLocal, 1)
	b.EmitByte(OpPushLocal, 0)
	b.Emit(OpAdd)
	b.EmitByte(OpStoreLocal, 1)

	b.EmitByte(OpPushLocal, 0)
	b.EmitInt8(OpPushInt8, 1)
	b.Emit(OpSub)
	b.EmitByte(OpStoreLocal, 0)
	b.EmitJump(OpJump, top)

	b.Mark(done)
	b.EmitByte(OpPushLocal, 1)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 2)))
	if result != FromSmallInt(55) {
		t.Errorf("result = %v, want 55", result)
	}
}

// ---------------------------------------------------------------------------
// Pairs
// ---------------------------------------------------------------------------

func TestMakePairAndAccess(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 1)
	b.EmitInt8(OpPushInt8, 2)
	b.Emit(OpMakePair)
	b.Emit(OpDup)
	b.Emit(OpPairHead)
	b.Emit(OpSwap)
	b.Emit(OpPairTail)
	b.Emit(OpAdd)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
	if result != FromSmallInt(3) {
		t.Errorf("result = %v, want 3", result)
	}
}

func TestPairHeadTypeMismatch(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 5)
	b.Emit(OpPairHead)
	b.Emit(OpHalt)

	mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrTypeMismatch)
}

// ---------------------------------------------------------------------------
// Function calls
// ---------------------------------------------------------------------------

func TestFunctionCall(t *testing.T) {
	// main: add2(20, 22)
	mb := NewBytecodeBuilder()
	mb.EmitInt8(OpPushInt8, 20)
	mb.EmitInt8(OpPushInt8, 22)
	mb.EmitCall(OpCall, 1, 2)
	mb.Emit(OpHalt)

	fb := NewBytecodeBuilder()
	fb.EmitByte(OpPushLocal, 0)
	fb.EmitByte(OpPushLocal, 1)
	fb.Emit(OpAdd)
	fb.Emit(OpReturn)

	p := &Program{Functions: []Function{
		{Name: "main", Code: mb.Bytes()},
		{Name: "add2", NumParams: 2, NumLocals: 2, Code: fb.Bytes()},
	}}

	result := mustFinish(t, runProgram(t, p))
	if result != FromSmallInt(42) {
		t.Errorf("result = %v, want 42", result)
	}
}

func TestCallArgcMismatch(t *testing.T) {
	mb := NewBytecodeBuilder()
	mb.EmitInt8(OpPushInt8, 1)
	mb.EmitCall(OpCall, 1, 1)
	mb.Emit(OpHalt)

	fb := NewBytecodeBuilder()
	fb.Emit(OpPushNil)
	fb.Emit(OpReturn)

	p := &Program{Functions: []Function{
		{Name: "main", Code: mb.Bytes()},
		{Name: "two", NumParams: 2, NumLocals: 2, Code: fb.Bytes()},
	}}

	mustFail(t, runProgram(t, p), ErrTypeMismatch)
}

func TestCallBadFuncIndex(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitCall(OpCall, 9, 0)
	b.Emit(OpHalt)

	mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrBadFuncIndex)
}

func TestFrameIsolation(t *testing.T) {
	// A callee cannot pop its caller's operands: leaf tries to ADD with an
	// empty window while main has two values on the stack.
	mb := NewBytecodeBuilder()
	mb.EmitInt8(OpPushInt8, 1)
	mb.EmitInt8(OpPushInt8, 2)
	mb.EmitCall(OpCall, 1, 0)
	mb.Emit(OpHalt)

	fb := NewBytecodeBuilder()
	fb.Emit(OpAdd)
	fb.Emit(OpReturn)

	p := &Program{Functions: []Function{
		{Name: "main", Code: mb.Bytes()},
		{Name: "leaf", Code: fb.Bytes()},
	}}

	mustFail(t, runProgram(t, p), ErrStackUnderflow)
}

// ---------------------------------------------------------------------------
// Closures
// ---------------------------------------------------------------------------

func TestClosureCapture(t *testing.T) {
	// main: local0 = 40; f = closure(addCaptured, [local0]); f(2)
	mb := NewBytecodeBuilder()
	mb.EmitInt8(OpPushInt8, 40)
	mb.EmitByte(OpStoreLocal, 0)
	mb.EmitByte(OpPushLocal, 0)
	mb.EmitMakeClosure(1, 1)
	mb.EmitInt8(OpPushInt8, 2)
	mb.EmitByte(OpCallClosure, 1)
	mb.Emit(OpHalt)

	fb := NewBytecodeBuilder()
	fb.EmitByte(OpPushCaptured, 0)
	fb.EmitByte(OpPushLocal, 0)
	fb.Emit(OpAdd)
	fb.Emit(OpReturn)

	p := &Program{Functions: []Function{
		{Name: "main", NumLocals: 1, Code: mb.Bytes()},
		{Name: "addCaptured", NumParams: 1, NumLocals: 1, Code: fb.Bytes(), Escaping: []uint8{0}},
	}}

	result := mustFinish(t, runProgram(t, p))
	if result != FromSmallInt(42) {
		t.Errorf("result = %v, want 42", result)
	}
}

func TestClosureCaptureIsolation(t *testing.T) {
	// The captured value is fixed at MAKE_CLOSURE time; overwriting the
	// local afterwards must not change what the closure sees.
	mb := NewBytecodeBuilder()
	mb.EmitInt8(OpPushInt8, 1)
	mb.EmitByte(OpStoreLocal, 0)
	mb.EmitByte(OpPushLocal, 0)
	mb.EmitMakeClosure(1, 1)
	mb.EmitInt8(OpPushInt8, 99)
	mb.EmitByte(OpStoreLocal, 0)
	mb.EmitByte(OpCallClosure, 0)
	mb.Emit(OpHalt)

	fb := NewBytecodeBuilder()
	fb.EmitByte(OpPushCaptured, 0)
	fb.Emit(OpReturn)

	p := &Program{Functions: []Function{
		{Name: "main", NumLocals: 1, Code: mb.Bytes()},
		{Name: "reader", Code: fb.Bytes()},
	}}

	result := mustFinish(t, runProgram(t, p))
	if result != FromSmallInt(1) {
		t.Errorf("result = %v, want the captured 1", result)
	}
}

func TestCallClosureTypeMismatch(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 7)
	b.EmitByte(OpCallClosure, 0)
	b.Emit(OpHalt)

	mustFail(t, runProgram(t, singleFunc(b.Bytes(), 0)), ErrTypeMismatch)
}

// ---------------------------------------------------------------------------
// Actor instructions
// ---------------------------------------------------------------------------

func TestRecvEmptyInboxPushesNil(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpRecv)
	b.Emit(OpHalt)

	result := mustFinish(t, runProgram(t, singleFunc(b.Bytes(), 0)))
	if result != Nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestRecvDeliveredMessage(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpRecv)
	b.Emit(OpHalt)

	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(64), 100, 0)
	vs.Deliver(FromSmallInt(31))
	result := mustFinish(t, runVM(t, vs))
	if result != FromSmallInt(31) {
		t.Errorf("result = %v, want 31", result)
	}
}

func TestSendAppendsOutbox(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpPushSelf)
	b.EmitInt8(OpPushInt8, 7)
	b.Emit(OpSend)
	b.Emit(OpPushNil)
	b.Emit(OpHalt)

	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(64), 100, 0)
	vs.ActorID = 3
	mustFinish(t, runVM(t, vs))

	out := vs.DrainOutbox()
	if len(out) != 1 {
		t.Fatalf("outbox len = %d, want 1", len(out))
	}
	if out[0].Target != 3 || out[0].Payload != FromSmallInt(7) {
		t.Errorf("message = %+v, want target 3 payload 7", out[0])
	}
	if len(vs.DrainOutbox()) != 0 {
		t.Errorf("second drain should be empty")
	}
}

func TestYield(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpYield)
	b.EmitInt8(OpPushInt8, 1)
	b.Emit(OpHalt)

	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(64), 100, 0)
	res := vs.Step()
	if res.Status != Yielded {
		t.Fatalf("status = %v, want Yielded", res.Status)
	}
	// Execution continues past the yield point.
	result := mustFinish(t, runVM(t, vs))
	if result != FromSmallInt(1) {
		t.Errorf("result = %v, want 1", result)
	}
}

// ---------------------------------------------------------------------------
// Budgets
// ---------------------------------------------------------------------------

func TestStepBudgetExactlySufficient(t *testing.T) {
	// Four instructions, budget of exactly four.
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 5)
	b.EmitInt8(OpPushInt8, 3)
	b.Emit(OpAdd)
	b.Emit(OpHalt)

	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(64), 4, 0)
	result := mustFinish(t, runVM(t, vs))
	if result != FromSmallInt(8) {
		t.Errorf("result = %v, want 8", result)
	}
	if vs.StepsRemaining != 0 {
		t.Errorf("steps remaining = %d, want 0", vs.StepsRemaining)
	}
}

func TestStepBudgetFailsClosed(t *testing.T) {
	// Same program, budget one short: the last instruction must not run.
	b := NewBytecodeBuilder()
	b.EmitInt8(OpPushInt8, 5)
	b.EmitInt8(OpPushInt8, 3)
	b.Emit(OpAdd)
	b.Emit(OpHalt)

	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(64), 3, 0)
	err := mustFail(t, runVM(t, vs), ErrCpuLimitExceeded)
	if vs.StepsRemaining != 0 {
		t.Errorf("steps remaining = %d, want 0", vs.StepsRemaining)
	}
	if !err.Code.IsResource() {
		t.Errorf("budget exhaustion should be a resource error")
	}
	if err.Instruction != "HALT" {
		t.Errorf("blocked instruction = %q, want HALT", err.Instruction)
	}
}

func TestZeroStepBudget(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpNop)

	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(64), 0, 0)
	mustFail(t, vs.Step(), ErrCpuLimitExceeded)
}

func TestMemoryBudgetDistinctFromArenaCapacity(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpPushNil)
	b.Emit(OpPushNil)
	b.Emit(OpMakePair)
	b.Emit(OpHalt)

	// Arena has room for the pair; the budget does not.
	vs := NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(1024), 100, 16)
	err := mustFail(t, runVM(t, vs), ErrMemoryLimitExceeded)
	if err.Limit != 16 {
		t.Errorf("limit = %d, want 16", err.Limit)
	}

	// Arena itself too small fails differently.
	vs = NewVmState(singleFunc(b.Bytes(), 0), NewObjectArena(16), 100, 0)
	mustFail(t, runVM(t, vs), ErrArenaFull)
}
