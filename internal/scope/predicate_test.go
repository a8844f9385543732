package scope

import (
	"context"
	"fmt"
	"testing"
)

// enumerated actor ids for fact-space enumeration: the identity itself, one
// of its subordinates, an unrelated account, and nobody.
var factIDs = []string{"me", "emp-1", "stranger", ""}

func enumerateFacts(res Resource) []Fact {
	var base []Fact
	for _, creator := range factIDs {
		for _, assignee := range factIDs {
			base = append(base, Fact{CreatorID: creator, AssigneeID: assignee})
		}
	}
	if res != ResourceCommunication {
		return base
	}
	// communications carry a second ownership axis: the linked contact
	var facts []Fact
	for _, own := range base {
		own := own
		facts = append(facts, own) // dangling link, still must fail closed consistently
		for _, linked := range base {
			linked := linked
			f := own
			f.Linked = &linked
			facts = append(facts, f)
		}
	}
	return facts
}

// TestCanActAgreesWithBuildFilter checks, exhaustively over the finite fact
// space, that the single-record decision and the list filter never disagree:
// a record passes the filter exactly when CanAct would allow it.
func TestCanActAgreesWithBuildFilter(t *testing.T) {
	dir := StaticDirectory{Admins: map[string]string{"emp-1": "me", "emp-2": "other-admin"}}
	r := newTestResolver(t, dir)

	scopes := []Scope{ScopeNone, ScopeCreated, ScopeAssigned, ScopeSubordinates, ScopeAll, Scope("bogus")}
	roles := []Role{RoleDeveloper, RoleAdmin, RoleEmployee}

	ctx := context.Background()
	for _, role := range roles {
		for _, sc := range scopes {
			for _, res := range Resources {
				for _, act := range Actions {
					id := Identity{ID: "me", Role: role, Permissions: map[PermKey]Scope{
						{Resource: res, Action: act}: sc,
					}}
					p, err := r.BuildFilter(ctx, id, res, act)
					if err != nil {
						t.Fatalf("BuildFilter(%s,%s,%s,%s): %v", role, sc, res, act, err)
					}
					for _, fact := range enumerateFacts(res) {
						d, err := r.CanAct(ctx, id, res, act, fact)
						if err != nil {
							t.Fatalf("CanAct(%s,%s,%s,%s): %v", role, sc, res, act, err)
						}
						if got := p.Matches(fact); got != d.Allowed {
							t.Fatalf("filter and decision disagree: role=%s scope=%s res=%s act=%s fact=%+v canAct=%v matches=%v",
								role, sc, res, act, fact, d.Allowed, got)
						}
					}
				}
			}
		}
	}
}

// TestUnknownScopeNeverMatches is the fail-closed law on the filter side.
func TestUnknownScopeNeverMatches(t *testing.T) {
	r := newTestResolver(t, StaticDirectory{})
	id := Identity{ID: "me", Role: RoleAdmin, Permissions: map[PermKey]Scope{
		{Resource: ResourceLead, Action: ActionView}: Scope("everything"),
	}}
	p, err := r.BuildFilter(context.Background(), id, ResourceLead, ActionView)
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	for _, fact := range enumerateFacts(ResourceLead) {
		if p.Matches(fact) {
			t.Fatalf("unrecognized scope matched fact %+v", fact)
		}
	}
}

// TestSubordinateMonotonicity: adding a hierarchy edge can only grow what an
// admin with subordinates scope sees; removing one can only shrink it.
func TestSubordinateMonotonicity(t *testing.T) {
	ctx := context.Background()
	id := adminIdentity("me", map[PermKey]Scope{
		{Resource: ResourceLead, Action: ActionView}: ScopeSubordinates,
	})

	matched := func(dir Directory) map[string]bool {
		r := newTestResolver(t, dir)
		p, err := r.BuildFilter(ctx, id, ResourceLead, ActionView)
		if err != nil {
			t.Fatalf("BuildFilter: %v", err)
		}
		out := make(map[string]bool)
		for _, fact := range enumerateFacts(ResourceLead) {
			key := fmt.Sprintf("%s|%s", fact.CreatorID, fact.AssigneeID)
			out[key] = p.Matches(fact)
		}
		return out
	}

	before := matched(StaticDirectory{Admins: map[string]string{}})
	after := matched(StaticDirectory{Admins: map[string]string{"emp-1": "me"}})

	grew := false
	for key, was := range before {
		if was && !after[key] {
			t.Fatalf("adding an edge hid fact %s", key)
		}
		if !was && after[key] {
			grew = true
		}
	}
	if !grew {
		t.Fatalf("adding an edge should expose subordinate-owned facts")
	}
}

// TestEmptySubordinateSetIsNotAll: an admin with subordinates scope and no
// employees sees only their own records.
func TestEmptySubordinateSetIsNotAll(t *testing.T) {
	r := newTestResolver(t, StaticDirectory{})
	id := adminIdentity("me", map[PermKey]Scope{
		{Resource: ResourceCustomer, Action: ActionView}: ScopeSubordinates,
	})
	p, err := r.BuildFilter(context.Background(), id, ResourceCustomer, ActionView)
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if p.All {
		t.Fatalf("empty subordinate set must not widen to match-all")
	}
	if p.Matches(Fact{CreatorID: "stranger", AssigneeID: "someone"}) {
		t.Fatalf("foreign record matched")
	}
	if !p.Matches(Fact{CreatorID: "me"}) {
		t.Fatalf("own record should match")
	}
	if !p.Matches(Fact{AssigneeID: "me"}) {
		t.Fatalf("assigned record should match")
	}
}

// TestUserListingIncludesSelf: user listings mirror the self-view exception.
func TestUserListingIncludesSelf(t *testing.T) {
	r := newTestResolver(t, StaticDirectory{})
	id := Identity{ID: "me", Role: RoleEmployee, Permissions: map[PermKey]Scope{
		{Resource: ResourceUser, Action: ActionView}: ScopeNone,
	}}
	p, err := r.BuildFilter(context.Background(), id, ResourceUser, ActionView)
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if !p.Matches(Fact{AssigneeID: "me"}) {
		t.Fatalf("own user record must pass the filter")
	}
	if p.Matches(Fact{AssigneeID: "stranger"}) {
		t.Fatalf("foreign user record must not pass")
	}
}

func TestPredicateEmptyFieldsNeverMatch(t *testing.T) {
	p := anyOf(Cond{Field: FieldAssignee, Equals: "me"})
	if p.Matches(Fact{}) {
		t.Fatalf("unassigned record matched an assignee condition")
	}
	p = anyOf(Cond{Field: FieldCreator, In: []string{"a", "b"}})
	if p.Matches(Fact{}) {
		t.Fatalf("creatorless record matched a creator set condition")
	}
}
