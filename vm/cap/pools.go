package cap

// ---------------------------------------------------------------------------
// Shared resource pools
// ---------------------------------------------------------------------------

// ResourcePools holds the memory and time available for resource-capability
// grants, shared by every actor under one scheduler. The scheduler owns the
// pools; actor bytecode never touches them directly.
type ResourcePools struct {
	Memory uint64
	Time   uint64
}

// NewResourcePools creates pools with the given budgets.
func NewResourcePools(memory, time uint64) *ResourcePools {
	return &ResourcePools{Memory: memory, Time: time}
}

// TryDebit atomically checks and decrements the pool backing a resource
// kind. Returns false, leaving the pool untouched, if the pool cannot
// cover the amount or the kind is not a resource kind.
func (p *ResourcePools) TryDebit(k Kind, amount uint32) bool {
	switch k {
	case ResMemory:
		if uint64(amount) > p.Memory {
			return false
		}
		p.Memory -= uint64(amount)
		return true
	case ResTime:
		if uint64(amount) > p.Time {
			return false
		}
		p.Time -= uint64(amount)
		return true
	}
	return false
}

// Credit returns an amount to a pool, e.g. when an errored actor's grant is
// reclaimed.
func (p *ResourcePools) Credit(k Kind, amount uint32) {
	switch k {
	case ResMemory:
		p.Memory += uint64(amount)
	case ResTime:
		p.Time += uint64(amount)
	}
}
