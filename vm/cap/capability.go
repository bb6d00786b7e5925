// Package cap implements the capability model for Kestrel: privilege kinds,
// unforgeable grants, the append-only audit log, shared resource pools, and
// the decision engine. The package only decides and records; applying a
// decision to an actor is the scheduler's job, and enforcing one is the
// interpreter's.
package cap

import (
	"fmt"
	"sort"
)

// Kind is a closed enumeration of privilege kinds.
type Kind uint8

const (
	// Meta capabilities govern authority itself.
	MetaSelfModify Kind = iota + 1 // modify own code
	MetaGrant                      // grant capabilities to other actors

	// Macro capabilities cover compile-time evaluation.
	MacroHygienic
	MacroUnhygienic

	// I/O capabilities.
	IoSensor
	IoActuator
	IoNetwork
	IoPersist

	// System capabilities.
	SysSpawnActor
	SysTerminateActor
	SysClock

	// Parameterized resource grants; these carry an amount.
	ResMemory
	ResTime
)

// Category groups capability kinds for decision policy.
type Category uint8

const (
	CategoryMeta Category = iota + 1
	CategoryMacro
	CategoryIO
	CategorySys
	CategoryResource
)

var kindNames = map[Kind]string{
	MetaSelfModify:    "MetaSelfModify",
	MetaGrant:         "MetaGrant",
	MacroHygienic:     "MacroHygienic",
	MacroUnhygienic:   "MacroUnhygienic",
	IoSensor:          "IoSensor",
	IoActuator:        "IoActuator",
	IoNetwork:         "IoNetwork",
	IoPersist:         "IoPersist",
	SysSpawnActor:     "SysSpawnActor",
	SysTerminateActor: "SysTerminateActor",
	SysClock:          "SysClock",
	ResMemory:         "ResMemory",
	ResTime:           "ResTime",
}

// String returns the capability kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KindByName resolves a capability name (as used in config files) to its
// kind. Returns false for unknown names.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Category returns the decision-policy category of a kind.
func (k Kind) Category() Category {
	switch k {
	case MetaSelfModify, MetaGrant:
		return CategoryMeta
	case MacroHygienic, MacroUnhygienic:
		return CategoryMacro
	case IoSensor, IoActuator, IoNetwork, IoPersist:
		return CategoryIO
	case SysSpawnActor, SysTerminateActor, SysClock:
		return CategorySys
	case ResMemory, ResTime:
		return CategoryResource
	}
	return 0
}

// Dangerous reports whether requests for this kind require consensus among
// live actors.
func (k Kind) Dangerous() bool {
	return k == SysTerminateActor || k == MacroUnhygienic
}

// AutoGrant reports whether this kind has no destructive potential and is
// granted without further checks.
func (k Kind) AutoGrant() bool {
	return k == MacroHygienic
}

// Capability is one privilege grant. Amount is zero except for resource
// kinds, where it carries the granted quota.
type Capability struct {
	Kind   Kind   `cbor:"1,keyasint"`
	Amount uint32 `cbor:"2,keyasint,omitempty"`
}

// String formats a capability for audit output.
func (c Capability) String() string {
	if c.Amount != 0 {
		return fmt.Sprintf("%s(%d)", c.Kind, c.Amount)
	}
	return c.Kind.String()
}

// ---------------------------------------------------------------------------
// Set: one actor's current capabilities
// ---------------------------------------------------------------------------

// Set holds an actor's current capability set. Resource amounts accumulate
// across grants. The zero value is unusable; use NewSet.
type Set struct {
	held map[Kind]uint32
}

// NewSet creates an empty capability set.
func NewSet() *Set {
	return &Set{held: make(map[Kind]uint32)}
}

// Has reports whether the set holds a capability of the given kind.
func (s *Set) Has(k Kind) bool {
	_, ok := s.held[k]
	return ok
}

// Amount returns the accumulated resource amount for a kind (zero if the
// kind is absent or non-resource).
func (s *Set) Amount(k Kind) uint32 {
	return s.held[k]
}

// Add inserts a capability, accumulating resource amounts.
func (s *Set) Add(c Capability) {
	s.held[c.Kind] += c.Amount
}

// Remove drops a kind from the set going forward. It does not undo
// already-completed privileged effects.
func (s *Set) Remove(k Kind) bool {
	if _, ok := s.held[k]; !ok {
		return false
	}
	delete(s.held, k)
	return true
}

// Kinds returns the held kinds in ascending order, for deterministic
// iteration.
func (s *Set) Kinds() []Kind {
	out := make([]Kind, 0, len(s.held))
	for k := range s.held {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
