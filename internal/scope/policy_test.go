package scope

import "testing"

func TestDefaultScopeTable(t *testing.T) {
	cases := []struct {
		role Role
		res  Resource
		act  Action
		want Scope
	}{
		{RoleDeveloper, ResourceLead, ActionDelete, ScopeAll},
		{RoleDeveloper, ResourceUser, ActionCreate, ScopeAll},

		{RoleAdmin, ResourceLead, ActionView, ScopeSubordinates},
		{RoleAdmin, ResourceUser, ActionView, ScopeSubordinates},
		{RoleAdmin, ResourceLead, ActionEdit, ScopeCreated},
		{RoleAdmin, ResourceCustomer, ActionDelete, ScopeCreated},
		{RoleAdmin, ResourceCommunication, ActionEdit, ScopeSubordinates},
		{RoleAdmin, ResourceCommunication, ActionDelete, ScopeSubordinates},
		{RoleAdmin, ResourceLead, ActionCreate, ScopeAll},

		{RoleEmployee, ResourceLead, ActionView, ScopeAssigned},
		{RoleEmployee, ResourceCustomer, ActionEdit, ScopeAssigned},
		{RoleEmployee, ResourceLead, ActionDelete, ScopeNone},
		{RoleEmployee, ResourceLead, ActionCreate, ScopeAll},
		{RoleEmployee, ResourceUser, ActionCreate, ScopeNone},
		{RoleEmployee, ResourceUser, ActionView, ScopeAssigned},
	}
	for _, tc := range cases {
		if got := DefaultScope(tc.role, tc.res, tc.act); got != tc.want {
			t.Fatalf("DefaultScope(%s,%s,%s)=%s, want %s", tc.role, tc.res, tc.act, got, tc.want)
		}
	}

	// unknown roles fall through to deny
	if got := DefaultScope(Role("intern"), ResourceLead, ActionView); got != ScopeNone {
		t.Fatalf("unknown role should default to none, got %s", got)
	}
}

func TestScopeForPrefersOverride(t *testing.T) {
	id := Identity{ID: "u", Role: RoleEmployee, Permissions: map[PermKey]Scope{
		{Resource: ResourceLead, Action: ActionDelete}: ScopeCreated,
	}}
	if got := id.ScopeFor(ResourceLead, ActionDelete); got != ScopeCreated {
		t.Fatalf("override not applied, got %s", got)
	}
	if got := id.ScopeFor(ResourceLead, ActionView); got != ScopeAssigned {
		t.Fatalf("default not applied, got %s", got)
	}
}
