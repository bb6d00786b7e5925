// Package sched implements the cooperative actor scheduler: the only
// component that resumes actor VMs, routes messages, and mutates capability
// state. Execution is single-threaded and deterministic; given identical
// programs, budgets, and message arrival order, two runs produce identical
// traces.
package sched

import (
	"github.com/tliron/commonlog"

	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/cap"
)

// Scheduler owns a collection of actors and resumes them in strict
// round-robin order. It is the unique owner of all capability mutation: the
// audit log and resource pools live inside its engine, and actor bytecode
// can only reach them through suspension requests it resolves.
type Scheduler struct {
	cfg    Config
	engine *cap.Engine
	host   HostHandler
	log    commonlog.Logger

	actors map[uint32]*Actor
	order  []uint32 // rotation order; append-only while an actor lives
	cursor int
	nextID uint32

	// steps counts executed instructions across all actors. It is the
	// system's only clock and the timestamp on audit entries.
	steps uint64

	// dropped holds messages whose target was unknown or terminal, in
	// send order, for embedders that want to observe them.
	dropped []vm.OutboundMessage
}

// New creates a scheduler with the given configuration and host handler.
// A nil handler behaves as NullHostHandler.
func New(cfg Config, host HostHandler) *Scheduler {
	if host == nil {
		host = NullHostHandler{}
	}
	s := &Scheduler{
		cfg:    cfg,
		host:   host,
		log:    commonlog.GetLogger("kestrel.sched"),
		actors: make(map[uint32]*Actor),
		nextID: 1,
	}
	s.engine = cap.NewEngine(cap.Policy{
		Quorum: cfg.Quorum,
		Vote: func(voter uint32, req cap.Request) bool {
			return s.Holds(voter, req.Cap.Kind)
		},
	}, cap.NewResourcePools(cfg.Pools.Memory, cfg.Pools.Time))
	return s
}

// Engine exposes the capability engine, primarily for audit access.
func (s *Scheduler) Engine() *cap.Engine {
	return s.engine
}

// Steps returns the total instruction count executed so far.
func (s *Scheduler) Steps() uint64 {
	return s.steps
}

// Actor returns the actor with the given identifier.
func (s *Scheduler) Actor(id uint32) (*Actor, bool) {
	a, ok := s.actors[id]
	return a, ok
}

// ---------------------------------------------------------------------------
// Spawning
// ---------------------------------------------------------------------------

// Spawn creates a root actor running the program's entry function.
func (s *Scheduler) Spawn(p *vm.Program) *Actor {
	return s.spawn(p, nil)
}

// SpawnChild creates an actor whose parent is used for delegated capability
// decisions and error surfacing.
func (s *Scheduler) SpawnChild(p *vm.Program, parent *Actor) *Actor {
	return s.spawn(p, parent)
}

func (s *Scheduler) spawn(p *vm.Program, parent *Actor) *Actor {
	id := s.nextID
	s.nextID++

	arena := vm.NewObjectArena(s.cfg.ArenaCapacity)
	state := vm.NewVmState(p, arena, s.cfg.StepBudget, s.cfg.MemoryBudget)
	state.ActorID = id

	a := &Actor{
		ID:     id,
		VM:     state,
		Caps:   cap.NewSet(),
		State:  ActorReady,
		Result: vm.Nil,
	}
	if parent != nil {
		a.Parent = parent.ID
		a.HasParent = true
	}
	state.Caps = a

	s.actors[id] = a
	s.order = append(s.order, id)
	s.log.Debugf("spawned actor %d (parent=%v)", id, a.HasParent)
	return a
}

// ---------------------------------------------------------------------------
// cap.View: read-only actor state for the decision engine
// ---------------------------------------------------------------------------

// Holds implements cap.View.
func (s *Scheduler) Holds(actor uint32, k cap.Kind) bool {
	a, ok := s.actors[actor]
	return ok && a.Caps.Has(k)
}

// Parent implements cap.View.
func (s *Scheduler) Parent(actor uint32) (uint32, bool) {
	a, ok := s.actors[actor]
	if !ok || !a.HasParent {
		return 0, false
	}
	return a.Parent, true
}

// LiveActors implements cap.View. Rotation order keeps the result
// deterministic.
func (s *Scheduler) LiveActors() []uint32 {
	var live []uint32
	for _, id := range s.order {
		if a, ok := s.actors[id]; ok && !a.State.Terminal() {
			live = append(live, id)
		}
	}
	return live
}

// ---------------------------------------------------------------------------
// Ticking
// ---------------------------------------------------------------------------

// Tick resumes the next Ready actor for one quantum. Returns false when no
// actor is runnable.
func (s *Scheduler) Tick() bool {
	a := s.nextReady()
	if a == nil {
		return false
	}
	s.runQuantum(a)
	return true
}

// Run ticks until no actor is runnable or maxTicks is reached. Returns the
// number of ticks executed.
func (s *Scheduler) Run(maxTicks int) int {
	ticks := 0
	for ticks < maxTicks && s.Tick() {
		ticks++
	}
	return ticks
}

// nextReady scans the rotation from the cursor for a Ready actor.
func (s *Scheduler) nextReady() *Actor {
	n := len(s.order)
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		a, ok := s.actors[s.order[idx]]
		if ok && a.State == ActorReady {
			s.cursor = (idx + 1) % n
			return a
		}
	}
	return nil
}

// runQuantum resumes one actor's VM until it yields, suspends into a
// pending decision, finishes, errors, or exhausts the quantum.
func (s *Scheduler) runQuantum(a *Actor) {
	a.State = ActorRunning
	// Staged messages become visible now, at the start of the quantum,
	// never in the middle of another actor's turn.
	a.promoteStaged()

	for executed := uint64(0); executed < s.cfg.Quantum; executed++ {
		res := a.VM.Step()
		s.steps++

		switch res.Status {
		case vm.Continue:
			continue

		case vm.Yielded:
			a.State = ActorReady
			s.routeOutbox(a)
			return

		case vm.Finished:
			a.State = ActorFinished
			a.Result = res.Value
			s.routeOutbox(a)
			s.log.Debugf("actor %d finished", a.ID)
			return

		case vm.Failed:
			s.failActor(a, res.Err)
			s.routeOutbox(a)
			return

		case vm.Suspended:
			if !s.resolve(a, res.Request) {
				// Decision is pending; the actor waits off-rotation.
				s.routeOutbox(a)
				return
			}
		}
	}

	// Quantum exhausted; back into rotation.
	a.State = ActorReady
	s.routeOutbox(a)
}

// failActor marks an actor Errored, removes it from rotation, and surfaces
// the structured error to whatever spawned it. Sibling actors are
// unaffected.
func (s *Scheduler) failActor(a *Actor, err *vm.VMError) {
	a.State = ActorErrored
	a.Err = err
	s.log.Errorf("actor %d errored: %v", a.ID, err)

	if !a.HasParent {
		return
	}
	parent, ok := s.actors[a.Parent]
	if !ok || parent.State.Terminal() {
		return
	}
	// Surface (errored-actor . error-code) into the parent's mailbox. The
	// pair lives in the parent's arena; if that allocation fails the bare
	// actor id is still delivered.
	notice := vm.FromActorID(a.ID)
	if ptr, allocErr := parent.VM.Arena.AllocatePair(notice, vm.FromSmallInt(int64(err.Code))); allocErr == nil {
		notice = vm.FromPairHandle(ptr)
	}
	parent.staged = append(parent.staged, notice)
}

// routeOutbox moves an actor's outbound messages into the targets' staging
// buffers. Messages to unknown or terminal actors are dropped and retained
// in Dropped.
func (s *Scheduler) routeOutbox(a *Actor) {
	for _, m := range a.VM.DrainOutbox() {
		t, ok := s.actors[m.Target]
		if !ok || t.State.Terminal() {
			s.log.Debugf("dropping message from %d to %d", a.ID, m.Target)
			s.dropped = append(s.dropped, m)
			continue
		}
		t.staged = append(t.staged, m.Payload)
	}
}

// Dropped returns messages that could not be delivered, in send order.
func (s *Scheduler) Dropped() []vm.OutboundMessage {
	return s.dropped
}

// ---------------------------------------------------------------------------
// Suspension resolution
// ---------------------------------------------------------------------------

// resolve answers a capability-sensitive suspension. Returns false when the
// decision is Pending and the actor must wait.
func (s *Scheduler) resolve(a *Actor, susp *vm.Suspension) bool {
	switch susp.Op {
	case vm.SuspendRequest:
		req := cap.Request{
			Requester:     a.ID,
			Cap:           cap.Capability{Kind: cap.Kind(susp.CapKind), Amount: susp.Amount},
			Justification: susp.Justification,
			Step:          s.steps,
		}
		out := s.engine.Decide(s, req)
		switch out.Decision {
		case cap.Granted:
			a.Caps.Add(req.Cap)
			a.VM.Resume(vm.FromCapToken(susp.CapKind, susp.Amount))
		case cap.Denied:
			a.VM.Resume(vm.Nil)
		case cap.Pending:
			a.Outstanding = append(a.Outstanding, req)
			a.State = ActorWaiting
			return false
		}
		return true

	case vm.SuspendGrant:
		c := cap.Capability{Kind: cap.Kind(susp.CapKind)}
		out := s.engine.DecideGrant(s, a.ID, susp.Target, c, s.steps)
		target, exists := s.actors[susp.Target]
		if out.Decision == cap.Granted && exists && !target.State.Terminal() {
			target.Caps.Add(c)
			a.VM.Resume(vm.True)
		} else {
			a.VM.Resume(vm.False)
		}
		return true

	case vm.SuspendRevoke:
		out := s.engine.DecideRevoke(s, a.ID, susp.Target, cap.Kind(susp.CapKind), s.steps)
		target, exists := s.actors[susp.Target]
		if out.Decision == cap.Granted && exists {
			a.VM.Resume(vm.FromBool(target.Caps.Remove(cap.Kind(susp.CapKind))))
		} else {
			a.VM.Resume(vm.False)
		}
		return true

	case vm.SuspendHostCall:
		s.hostCall(a, susp)
		return true
	}

	// Unknown suspension kinds cannot happen with a closed instruction
	// set; deny defensively all the same.
	a.VM.Resume(vm.Nil)
	return true
}

// ResolvePending answers an actor's outstanding Pending request from
// outside the policy (the embedder's resolution). The actor rejoins the
// rotation.
func (s *Scheduler) ResolvePending(actorID uint32, granted bool) bool {
	a, ok := s.actors[actorID]
	if !ok || a.State != ActorWaiting || len(a.Outstanding) == 0 {
		return false
	}
	req := a.Outstanding[0]
	a.Outstanding = a.Outstanding[1:]

	decision := cap.Denied
	resumeWith := vm.Nil
	if granted {
		decision = cap.Granted
		a.Caps.Add(req.Cap)
		resumeWith = vm.FromCapToken(uint8(req.Cap.Kind), req.Cap.Amount)
	}
	s.engine.Log.Append(cap.AuditEntry{
		Request:  req,
		Decision: decision,
		Reason:   "resolved externally",
	})
	a.VM.Resume(resumeWith)
	a.State = ActorReady
	return true
}

// ---------------------------------------------------------------------------
// Host calls
// ---------------------------------------------------------------------------

// hostCall gates a host function behind its required capability, audits the
// outcome, and invokes the effect only on success. The underlying effect
// never executes unless HasCap for the required capability would return
// true at this instant.
func (s *Scheduler) hostCall(a *Actor, susp *vm.Suspension) {
	fn := HostFn(susp.HostFn)
	required, known := RequiredCap(fn)

	req := cap.Request{
		Requester:     a.ID,
		Cap:           cap.Capability{Kind: required},
		Justification: "host call " + fn.String(),
		Step:          s.steps,
	}

	if !known {
		s.engine.Log.Append(cap.AuditEntry{Request: req, Decision: cap.Denied, Reason: "unknown host function"})
		a.VM.Resume(vm.Nil)
		return
	}
	if !a.Caps.Has(required) {
		s.engine.Log.Append(cap.AuditEntry{Request: req, Decision: cap.Denied, Reason: "capability not held"})
		a.VM.Resume(vm.Nil)
		return
	}
	s.engine.Log.Append(cap.AuditEntry{Request: req, Decision: cap.Granted, Reason: "capability held"})

	switch fn {
	case HostActorSpawn:
		a.VM.Resume(s.hostSpawn(a, susp.Args))
	case HostActorTerminate:
		a.VM.Resume(s.hostTerminate(a, susp.Args))
	default:
		ctx := HostContext{ActorID: a.ID, Program: a.VM.Program, Step: s.steps}
		result, err := s.host.Invoke(ctx, fn, susp.Args)
		if err != nil {
			s.log.Errorf("host call %s for actor %d: %v", fn, a.ID, err)
			a.VM.Resume(vm.Nil)
			return
		}
		a.VM.Resume(result)
	}
}

// hostSpawn creates a child actor entering the function index given as the
// first argument, in the same program as the spawner.
func (s *Scheduler) hostSpawn(a *Actor, args []vm.Value) vm.Value {
	if len(args) < 1 || !args[0].IsSmallInt() {
		return vm.Nil
	}
	entry := args[0].SmallInt()
	if entry < 0 || entry >= int64(len(a.VM.Program.Functions)) {
		return vm.Nil
	}
	child := *a.VM.Program
	child.Entry = uint16(entry)
	spawned := s.spawn(&child, a)
	return vm.FromActorID(spawned.ID)
}

// hostTerminate marks the target Errored and never reschedules it.
// Already-in-flight effects are not unwound.
func (s *Scheduler) hostTerminate(a *Actor, args []vm.Value) vm.Value {
	if len(args) < 1 || !args[0].IsActor() {
		return vm.False
	}
	target, ok := s.actors[args[0].ActorID()]
	if !ok || target.State.Terminal() {
		return vm.False
	}
	target.State = ActorErrored
	s.log.Infof("actor %d terminated by %d", target.ID, a.ID)
	return vm.True
}
