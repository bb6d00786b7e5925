package sched

import (
	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/cap"
)

// Metrics summarizes resource consumption of a completed execution.
type Metrics struct {
	StepsUsed    uint64
	MemoryUsed   uint64
	Ticks        int
	AuditEntries int
}

// ExecutionResult is the outcome of running a single actor to quiescence.
type ExecutionResult struct {
	Value    vm.Value
	Err      *vm.VMError
	Messages []vm.OutboundMessage
	Snapshot []byte
	Metrics  Metrics
	Audit    []cap.AuditEntry
}

// ExecuteActor runs one actor synchronously from the program's entry
// function until it finishes, errors, or exhausts its budgets. Messages it
// sends with no live recipient are collected rather than dropped. The
// returned snapshot captures the final machine state in canonical form, so
// two identical executions yield byte-identical snapshots.
func ExecuteActor(p *vm.Program, cfg Config, host HostHandler) (*ExecutionResult, error) {
	s := New(cfg, host)
	a := s.Spawn(p)

	ticks := 0
	for a.State == ActorReady {
		s.runQuantum(a)
		ticks++
	}

	// With no siblings, anything the root actor sent outward lands in the
	// dropped set; surface it as the execution's message output.
	res := &ExecutionResult{
		Value:    a.Result,
		Err:      a.Err,
		Messages: s.Dropped(),
		Audit:    s.engine.Log.Entries(),
		Metrics: Metrics{
			StepsUsed:    cfg.StepBudget - a.VM.StepsRemaining,
			MemoryUsed:   a.VM.Arena.Used(),
			Ticks:        ticks,
			AuditEntries: s.engine.Log.Len(),
		},
	}

	snap, err := vm.MarshalSnapshot(a.VM.Capture())
	if err != nil {
		return res, err
	}
	res.Snapshot = snap
	return res, nil
}
