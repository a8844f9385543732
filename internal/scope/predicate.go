package scope

import (
	"context"
	"sort"
)

// Field names one ownership axis of a stored record. The storage layer maps
// fields to its own columns; Matches evaluates them against in-memory facts.
type Field string

const (
	FieldCreator  Field = "creator"
	FieldAssignee Field = "assignee"
	// Linked variants address the lead/customer a communication is attached
	// to rather than the communication row itself.
	FieldLinkedCreator  Field = "linked_creator"
	FieldLinkedAssignee Field = "linked_assignee"
)

// Cond matches one field against a single id (Equals) or a fixed id set (In).
// Exactly one of the two is populated.
type Cond struct {
	Field  Field
	Equals string
	In     []string
}

// Predicate is a storage-agnostic row filter: match everything, match
// nothing, or any-of a list of conditions. It is the list-query equivalent of
// a single-record scope decision and must agree with it for every fact.
type Predicate struct {
	All  bool
	None bool
	Any  []Cond
}

// MatchAll returns the predicate satisfied by every record.
func MatchAll() Predicate { return Predicate{All: true} }

// MatchNone returns the predicate satisfied by no record.
func MatchNone() Predicate { return Predicate{None: true} }

func anyOf(conds ...Cond) Predicate {
	if len(conds) == 0 {
		return MatchNone()
	}
	return Predicate{Any: conds}
}

// Matches evaluates the predicate against one ownership fact. Empty field
// values never match: a record assigned to nobody is invisible to assignee
// conditions.
func (p Predicate) Matches(f Fact) bool {
	if p.All {
		return true
	}
	if p.None {
		return false
	}
	for _, c := range p.Any {
		v := fieldValue(f, c.Field)
		if v == "" {
			continue
		}
		if c.Equals != "" && v == c.Equals {
			return true
		}
		for _, id := range c.In {
			if v == id {
				return true
			}
		}
	}
	return false
}

func fieldValue(f Fact, field Field) string {
	switch field {
	case FieldCreator:
		return f.CreatorID
	case FieldAssignee:
		return f.AssigneeID
	case FieldLinkedCreator:
		return f.linked().CreatorID
	case FieldLinkedAssignee:
		return f.linked().AssigneeID
	}
	return ""
}

// BuildFilter produces the list filter equivalent to calling CanAct with the
// same identity, resource and action on every candidate record. Subordinate
// sets are materialized once, here; an admin with subordinates scope and zero
// employees keeps seeing only their own records, never everything.
//
// A non-nil error reports a directory lookup failure; the accompanying
// predicate is the fail-closed MatchNone.
func (r *Resolver) BuildFilter(ctx context.Context, id Identity, res Resource, act Action) (Predicate, error) {
	p, err := r.baseFilter(ctx, id, res, act)
	if err != nil {
		return MatchNone(), err
	}

	// mirror the self-view exception: user listings always include the
	// caller's own record
	if res == ResourceUser && act == ActionView && !p.All {
		self := Cond{Field: FieldAssignee, Equals: id.ID}
		if p.None {
			return anyOf(self), nil
		}
		if !containsCond(p.Any, self) {
			p.Any = append(p.Any, self)
		}
	}
	return p, nil
}

func (r *Resolver) baseFilter(ctx context.Context, id Identity, res Resource, act Action) (Predicate, error) {
	sc := id.ScopeFor(res, act)
	if !sc.Valid() {
		r.report(id.ID, res, act, "invalid scope value "+string(sc))
		return MatchNone(), nil
	}

	creator, assignee := FieldCreator, FieldAssignee
	if res == ResourceCommunication && sc != ScopeCreated {
		creator, assignee = FieldLinkedCreator, FieldLinkedAssignee
	}

	switch sc {
	case ScopeNone:
		return MatchNone(), nil

	case ScopeAll:
		return MatchAll(), nil

	case ScopeCreated:
		return anyOf(Cond{Field: creator, Equals: id.ID}), nil

	case ScopeAssigned:
		return anyOf(Cond{Field: assignee, Equals: id.ID}), nil

	case ScopeSubordinates:
		if id.Role != RoleAdmin {
			r.report(id.ID, res, act, "subordinates scope on role "+string(id.Role))
			return MatchNone(), nil
		}
		subs, err := r.dir.SubordinatesOf(ctx, id.ID)
		if err != nil {
			return MatchNone(), err
		}
		conds := []Cond{
			{Field: creator, Equals: id.ID},
			{Field: assignee, Equals: id.ID},
		}
		if len(subs) > 0 {
			ids := make([]string, 0, len(subs))
			for sub := range subs {
				ids = append(ids, sub)
			}
			sort.Strings(ids)
			conds = append(conds,
				Cond{Field: creator, In: ids},
				Cond{Field: assignee, In: ids},
			)
		}
		return anyOf(conds...), nil
	}

	return MatchNone(), nil
}

func containsCond(conds []Cond, want Cond) bool {
	for _, c := range conds {
		if c.Field == want.Field && c.Equals == want.Equals && len(c.In) == 0 && len(want.In) == 0 {
			return true
		}
	}
	return false
}
