package sched

import (
	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/cap"
)

// ---------------------------------------------------------------------------
// Actor: one isolated unit of execution
// ---------------------------------------------------------------------------

// ActorState is the lifecycle state of an actor.
type ActorState uint8

const (
	ActorReady    ActorState = iota + 1 // runnable at its next turn
	ActorRunning                        // currently executing (one at a time)
	ActorWaiting                        // blocked on a Pending capability decision
	ActorFinished                       // completed with a result
	ActorErrored                        // halted by a structured error
)

// String returns the state name.
func (s ActorState) String() string {
	switch s {
	case ActorReady:
		return "Ready"
	case ActorRunning:
		return "Running"
	case ActorWaiting:
		return "Waiting"
	case ActorFinished:
		return "Finished"
	case ActorErrored:
		return "Errored"
	}
	return "Unknown"
}

// Terminal reports whether the state removes the actor from rotation.
func (s ActorState) Terminal() bool {
	return s == ActorFinished || s == ActorErrored
}

// Actor is an isolated unit of execution: its own VM, mailbox, and
// capability set. Actors share nothing except the scheduler-owned audit log
// and resource pools.
type Actor struct {
	ID     uint32
	VM     *vm.VmState
	Caps   *cap.Set
	State  ActorState
	Result vm.Value
	Err    *vm.VMError

	// Parent is used for delegated capability decisions and error
	// surfacing. The root actor has none.
	Parent    uint32
	HasParent bool

	// Outstanding Pending capability requests awaiting external
	// resolution.
	Outstanding []cap.Request

	// staged holds messages routed to this actor during other actors'
	// quanta. They become visible only at this actor's next quantum.
	staged []vm.Value
}

// Has implements vm.CapView: the interpreter's pure HasCap read.
func (a *Actor) Has(kind uint8) bool {
	return a.Caps.Has(cap.Kind(kind))
}

// Mailbox returns the messages currently visible to the actor's VM.
func (a *Actor) Mailbox() []vm.Value {
	return a.VM.Inbox
}

// promoteStaged moves staged messages into the VM inbox. Called by the
// scheduler at the start of the actor's quantum, never mid-quantum.
func (a *Actor) promoteStaged() {
	for _, m := range a.staged {
		a.VM.Deliver(m)
	}
	a.staged = nil
}
