package scope

// Denial reasons carried on Decision. These are stable machine-readable codes
// for callers and metrics, never user-facing text.
const (
	ReasonScopeNone    = "scope_none"
	ReasonNotOwner     = "not_owner"
	ReasonScopeInvalid = "scope_invalid"
	ReasonLimitReached = "limit_reached"
)

// Decision is the outcome of a scope check: allow, or deny with a reason code.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision carrying the given reason code.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}
