package scope

import (
	"context"
	"errors"
)

// Reporter receives permission configurations the resolver refused to honor:
// scope values outside the closed set, or subordinate scope on a non-admin.
// These always resolve to deny; the reporter exists so operators hear about
// them.
type Reporter func(identityID string, res Resource, act Action, problem string)

// Resolver evaluates scope decisions for single records and builds the
// equivalent list filters. It holds no mutable state and is safe for
// concurrent use.
type Resolver struct {
	dir    Directory
	report Reporter
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithReporter installs the configuration-problem hook.
func WithReporter(fn Reporter) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.report = fn
		}
	}
}

// NewResolver constructs a Resolver backed by the given hierarchy directory.
func NewResolver(dir Directory, opts ...ResolverOption) (*Resolver, error) {
	if dir == nil {
		return nil, errors.New("scope: hierarchy directory is required")
	}
	r := &Resolver{
		dir:    dir,
		report: func(string, Resource, Action, string) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CanAct decides whether the identity may perform the action on the single
// record described by fact. The worst case for any configuration or
// hierarchy problem is deny; CanAct never widens access on error.
//
// A non-nil error reports a directory lookup failure; the accompanying
// decision is already the fail-closed deny.
func (r *Resolver) CanAct(ctx context.Context, id Identity, res Resource, act Action, fact Fact) (Decision, error) {
	// A user always sees their own account record, whatever their scope
	// says. This is the single exception to scope evaluation.
	if res == ResourceUser && act == ActionView && fact.AssigneeID != "" && fact.AssigneeID == id.ID {
		return Allow(), nil
	}

	sc := id.ScopeFor(res, act)
	if !sc.Valid() {
		r.report(id.ID, res, act, "invalid scope value "+string(sc))
		return Deny(ReasonScopeInvalid), nil
	}

	// Communications have two ownership axes: who logged the communication
	// and who owns the linked lead/customer. The created scope means "my own
	// log entries"; every other ownership scope addresses the linked contact.
	eval := fact
	if res == ResourceCommunication && sc != ScopeCreated {
		eval = fact.linked()
	}

	switch sc {
	case ScopeNone:
		return Deny(ReasonScopeNone), nil

	case ScopeAll:
		return Allow(), nil

	case ScopeCreated:
		if eval.CreatorID != "" && eval.CreatorID == id.ID {
			return Allow(), nil
		}
		return Deny(ReasonNotOwner), nil

	case ScopeAssigned:
		if eval.AssigneeID != "" && eval.AssigneeID == id.ID {
			return Allow(), nil
		}
		return Deny(ReasonNotOwner), nil

	case ScopeSubordinates:
		if id.Role != RoleAdmin {
			r.report(id.ID, res, act, "subordinates scope on role "+string(id.Role))
			return Deny(ReasonScopeInvalid), nil
		}
		if eval.CreatorID != "" && eval.CreatorID == id.ID {
			return Allow(), nil
		}
		if eval.AssigneeID != "" && eval.AssigneeID == id.ID {
			return Allow(), nil
		}
		subs, err := r.dir.SubordinatesOf(ctx, id.ID)
		if err != nil {
			return Deny(ReasonNotOwner), err
		}
		if eval.CreatorID != "" {
			if _, ok := subs[eval.CreatorID]; ok {
				return Allow(), nil
			}
		}
		if eval.AssigneeID != "" {
			if _, ok := subs[eval.AssigneeID]; ok {
				return Allow(), nil
			}
		}
		return Deny(ReasonNotOwner), nil
	}

	// unreachable given Valid above, but never allow by accident
	return Deny(ReasonScopeInvalid), nil
}
