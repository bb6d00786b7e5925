package cap

import "fmt"

// ---------------------------------------------------------------------------
// Decision engine
// ---------------------------------------------------------------------------

// View is a read-only view of actor state, supplied by the scheduler. The
// engine reads through it but never mutates anything except its own audit
// log and pools.
type View interface {
	// Holds reports whether an actor currently holds a capability kind.
	Holds(actor uint32, k Kind) bool
	// Parent returns an actor's parent, if it has one.
	Parent(actor uint32) (uint32, bool)
	// LiveActors returns the identifiers of all currently-live actors in
	// deterministic order.
	LiveActors() []uint32
}

// VoteFunc decides one actor's consensus vote on a dangerous request.
// A nil VoteFunc means the policy refuses to auto-decide dangerous
// requests; they come back Pending for the embedder to resolve.
type VoteFunc func(voter uint32, req Request) bool

// Policy is the pluggable decision policy. The engine enforces whatever the
// policy returns; it does not judge whether a grant is wise.
type Policy struct {
	// Quorum is the fraction of live actors whose approving votes a
	// dangerous request needs. Treated as a policy parameter, not a
	// contract; the conventional default is 0.75.
	Quorum float64
	// Vote decides one live actor's vote on a dangerous request.
	Vote VoteFunc
}

// DefaultPolicy returns a policy with a 75% quorum and a voter that
// approves a dangerous request iff the voter itself holds the capability
// being requested.
func DefaultPolicy(view View) Policy {
	return Policy{
		Quorum: 0.75,
		Vote: func(voter uint32, req Request) bool {
			return view.Holds(voter, req.Cap.Kind)
		},
	}
}

// Outcome is the result of a decision, including the reason recorded in the
// audit log.
type Outcome struct {
	Decision Decision
	Reason   string
}

// Engine decides capability requests against a policy, shared pools, and
// the audit log. Every request, regardless of outcome, appends one entry to
// the log before the decision is returned.
type Engine struct {
	Policy Policy
	Pools  *ResourcePools
	Log    *AuditLog
}

// NewEngine creates an engine with the given policy and pools and an empty
// audit log.
func NewEngine(policy Policy, pools *ResourcePools) *Engine {
	return &Engine{Policy: policy, Pools: pools, Log: NewAuditLog()}
}

// Decide evaluates one capability request. Decision policy, by category:
//
//   - Kinds with no destructive potential are auto-granted.
//   - Dangerous kinds require a consensus vote among currently-live actors,
//     granted only if approvals meet the quorum fraction of total voters.
//   - Resource kinds are checked and debited against the shared pools.
//   - Everything else is forwarded to the requester's parent, whose own
//     decision under the same policy is the final answer; an actor with no
//     parent and no applicable rule is denied by default.
func (e *Engine) Decide(view View, req Request) Outcome {
	out := e.decide(view, req, req.Requester, 0)
	e.Log.Append(AuditEntry{Request: req, Decision: out.Decision, Reason: out.Reason})
	return out
}

// Delegation depth bound: a parent chain longer than this is treated as a
// cycle and denied.
const maxDelegationDepth = 64

func (e *Engine) decide(view View, req Request, onBehalfOf uint32, depth int) Outcome {
	k := req.Cap.Kind

	if k.AutoGrant() {
		return Outcome{Decision: Granted, Reason: "auto-grant: no destructive potential"}
	}

	if k.Dangerous() {
		return e.consensus(view, req)
	}

	if k.Category() == CategoryResource {
		if e.Pools.TryDebit(k, req.Cap.Amount) {
			return Outcome{Decision: Granted, Reason: fmt.Sprintf("pool debit of %d", req.Cap.Amount)}
		}
		return Outcome{Decision: Denied, Reason: "resource pool cannot cover request"}
	}

	// Delegate to the parent chain; fail closed at the root.
	if depth >= maxDelegationDepth {
		return Outcome{Decision: Denied, Reason: "delegation chain too deep"}
	}
	parent, ok := view.Parent(onBehalfOf)
	if !ok {
		return Outcome{Decision: Denied, Reason: "no parent and no applicable rule"}
	}
	// A parent holding the capability may pass it down; otherwise the
	// question continues up the chain.
	if view.Holds(parent, k) {
		return Outcome{Decision: Granted, Reason: fmt.Sprintf("delegated: parent %d holds %s", parent, k)}
	}
	return e.decide(view, req, parent, depth+1)
}

func (e *Engine) consensus(view View, req Request) Outcome {
	if e.Policy.Vote == nil {
		return Outcome{Decision: Pending, Reason: "dangerous request awaits external resolution"}
	}
	voters := view.LiveActors()
	if len(voters) == 0 {
		return Outcome{Decision: Denied, Reason: "no live voters"}
	}
	approvals := 0
	for _, voter := range voters {
		if e.Policy.Vote(voter, req) {
			approvals++
		}
	}
	if float64(approvals) >= e.Policy.Quorum*float64(len(voters)) {
		return Outcome{
			Decision: Granted,
			Reason:   fmt.Sprintf("consensus: %d/%d approvals", approvals, len(voters)),
		}
	}
	return Outcome{
		Decision: Denied,
		Reason:   fmt.Sprintf("consensus failed: %d/%d approvals below quorum %.2f", approvals, len(voters), e.Policy.Quorum),
	}
}

// DecideGrant evaluates a grant of a capability from one actor to another.
// Granting to another actor requires the grantor to already hold MetaGrant.
// The decision is audited like any other request.
func (e *Engine) DecideGrant(view View, grantor, target uint32, c Capability, step uint64) Outcome {
	req := Request{
		Requester:     grantor,
		Cap:           c,
		Justification: fmt.Sprintf("grant to actor %d", target),
		Step:          step,
	}
	var out Outcome
	if !view.Holds(grantor, MetaGrant) {
		out = Outcome{Decision: Denied, Reason: "grantor does not hold MetaGrant"}
	} else {
		out = Outcome{Decision: Granted, Reason: fmt.Sprintf("grantor %d holds MetaGrant", grantor)}
	}
	e.Log.Append(AuditEntry{Request: req, Decision: out.Decision, Reason: out.Reason})
	return out
}

// DecideRevoke evaluates a revocation. Revoking one's own capability is
// always allowed; revoking another actor's requires MetaGrant. Revocation
// is forward-only: it never undoes completed privileged effects.
func (e *Engine) DecideRevoke(view View, revoker, target uint32, k Kind, step uint64) Outcome {
	req := Request{
		Requester:     revoker,
		Cap:           Capability{Kind: k},
		Justification: fmt.Sprintf("revoke from actor %d", target),
		Step:          step,
	}
	var out Outcome
	switch {
	case revoker == target:
		out = Outcome{Decision: Granted, Reason: "self-revocation"}
	case view.Holds(revoker, MetaGrant):
		out = Outcome{Decision: Granted, Reason: fmt.Sprintf("revoker %d holds MetaGrant", revoker)}
	default:
		out = Outcome{Decision: Denied, Reason: "revoker does not hold MetaGrant"}
	}
	e.Log.Append(AuditEntry{Request: req, Decision: out.Decision, Reason: out.Reason})
	return out
}
