package sched

import (
	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/cap"
)

// ---------------------------------------------------------------------------
// Host function table
// ---------------------------------------------------------------------------

// HostFn is a fixed enumeration of privileged external operations reachable
// through the HOST_CALL instruction.
type HostFn uint8

const (
	HostSensorRead     HostFn = 1
	HostActuatorWrite  HostFn = 2
	HostClockRead      HostFn = 3
	HostActorSpawn     HostFn = 4
	HostActorTerminate HostFn = 5
	HostNetSend        HostFn = 6
	HostNetRecv        HostFn = 7
	HostPersistRead    HostFn = 8
	HostPersistWrite   HostFn = 9
)

var hostFnNames = map[HostFn]string{
	HostSensorRead:     "SensorRead",
	HostActuatorWrite:  "ActuatorWrite",
	HostClockRead:      "ClockRead",
	HostActorSpawn:     "ActorSpawn",
	HostActorTerminate: "ActorTerminate",
	HostNetSend:        "NetSend",
	HostNetRecv:        "NetRecv",
	HostPersistRead:    "PersistRead",
	HostPersistWrite:   "PersistWrite",
}

// String returns the host function name.
func (f HostFn) String() string {
	if name, ok := hostFnNames[f]; ok {
		return name
	}
	return "Unknown"
}

// hostRequirements statically associates each host function with the one
// capability required to invoke it. The association is part of the external
// interface contract, not policy.
var hostRequirements = map[HostFn]cap.Kind{
	HostSensorRead:     cap.IoSensor,
	HostActuatorWrite:  cap.IoActuator,
	HostClockRead:      cap.SysClock,
	HostActorSpawn:     cap.SysSpawnActor,
	HostActorTerminate: cap.SysTerminateActor,
	HostNetSend:        cap.IoNetwork,
	HostNetRecv:        cap.IoNetwork,
	HostPersistRead:    cap.IoPersist,
	HostPersistWrite:   cap.IoPersist,
}

// RequiredCap returns the capability a host function demands.
func RequiredCap(fn HostFn) (cap.Kind, bool) {
	k, ok := hostRequirements[fn]
	return k, ok
}

// HostContext gives a handler what it needs to interpret argument values:
// symbols are only meaningful against the calling actor's program.
type HostContext struct {
	ActorID uint32
	Program *vm.Program
	Step    uint64
}

// HostHandler implements the effects behind host functions other than
// spawn/terminate, which the scheduler handles itself. Handlers run only
// after the capability check passed; a handler never sees a call the actor
// was not allowed to make.
type HostHandler interface {
	Invoke(ctx HostContext, fn HostFn, args []vm.Value) (vm.Value, error)
}

// NullHostHandler answers every host call with nil. Useful for tests and
// for running programs whose host effects are irrelevant.
type NullHostHandler struct{}

// Invoke implements HostHandler.
func (NullHostHandler) Invoke(ctx HostContext, fn HostFn, args []vm.Value) (vm.Value, error) {
	return vm.Nil, nil
}
