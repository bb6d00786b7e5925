package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Structured errors
// ---------------------------------------------------------------------------

// ErrorCode identifies one failure mode of the interpreter or allocator.
type ErrorCode uint8

// Resource errors: expected, recoverable conditions. The acting unit halts,
// the system continues.
const (
	ErrCpuLimitExceeded ErrorCode = iota + 1
	ErrMemoryLimitExceeded
	ErrArenaFull
)

// Structural errors: a contract violation by the bytecode producer. Fatal to
// the offending actor, never silently ignored.
const (
	ErrStackUnderflow ErrorCode = iota + 16
	ErrInvalidHeapPtr
	ErrUnknownOpcode
	ErrTypeMismatch
	ErrDivideByZero
	ErrIntegerOverflow
	ErrBadConstIndex
	ErrBadFuncIndex
	ErrTruncatedBytecode
	ErrBadJumpTarget
)

var errorCodeNames = map[ErrorCode]string{
	ErrCpuLimitExceeded:    "CpuLimitExceeded",
	ErrMemoryLimitExceeded: "MemoryLimitExceeded",
	ErrArenaFull:           "ArenaFull",
	ErrStackUnderflow:      "StackUnderflow",
	ErrInvalidHeapPtr:      "InvalidHeapPtr",
	ErrUnknownOpcode:       "UnknownOpcode",
	ErrTypeMismatch:        "TypeMismatch",
	ErrDivideByZero:        "DivideByZero",
	ErrIntegerOverflow:     "IntegerOverflow",
	ErrBadConstIndex:       "BadConstIndex",
	ErrBadFuncIndex:        "BadFuncIndex",
	ErrTruncatedBytecode:   "TruncatedBytecode",
	ErrBadJumpTarget:       "BadJumpTarget",
}

// String returns the error code name.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", c)
}

// IsResource returns true for expected, recoverable resource exhaustion.
func (c ErrorCode) IsResource() bool {
	return c >= ErrCpuLimitExceeded && c <= ErrArenaFull
}

// IsStructural returns true for bytecode contract violations.
func (c ErrorCode) IsStructural() bool {
	return c >= ErrStackUnderflow
}

// VMError is the structured error type for everything that can go wrong
// inside the interpreter. It carries enough execution context that the
// embedding layer can both recover and learn from the failure mode.
// VMError values propagate as ordinary Go errors; the interpreter never
// lets a panic cross its API boundary.
type VMError struct {
	Code    ErrorCode
	Message string

	// Resource context: exact limit and attempted values.
	Limit     uint64
	Attempted uint64

	// Execution context, filled in by the interpreter when the error
	// surfaces from a Step.
	PC             int
	Instruction    string
	StackSnapshot  []Value
	CallDepth      int
	StepsRemaining uint64
	ActorID        uint32
	MemoryUsed     uint64
}

// Error implements the error interface.
func (e *VMError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "vm: %s", e.Code)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Code.IsResource() && (e.Limit != 0 || e.Attempted != 0) {
		fmt.Fprintf(&b, " (attempted=%d limit=%d)", e.Attempted, e.Limit)
	}
	if e.Instruction != "" {
		fmt.Fprintf(&b, " at pc=%d op=%s depth=%d actor=%d", e.PC, e.Instruction, e.CallDepth, e.ActorID)
	}
	return b.String()
}

// attach fills in execution context on an error surfacing from a Step.
// The stack snapshot copies at most the top 16 values.
func (vs *VmState) attach(e *VMError, pc int, op Opcode) *VMError {
	e.PC = pc
	e.Instruction = op.Name()
	e.CallDepth = vs.fp + 1
	e.StepsRemaining = vs.StepsRemaining
	e.ActorID = vs.ActorID
	e.MemoryUsed = vs.Arena.Used()

	n := vs.sp
	if n > 16 {
		n = 16
	}
	e.StackSnapshot = make([]Value, n)
	copy(e.StackSnapshot, vs.stack[vs.sp-n:vs.sp])
	return e
}
