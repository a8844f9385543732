package scope

// PermKey addresses one permission setting on an identity.
type PermKey struct {
	Resource Resource
	Action   Action
}

// Identity is the requesting principal: the authenticated account's id, role
// and stored permission overrides. It is a read-only view assembled per
// request; the resolver never mutates it.
type Identity struct {
	ID   string
	Role Role

	// Permissions holds explicit per-user overrides. Keys absent here fall
	// back to the role defaults in the policy table. Values are stored
	// verbatim, including invalid ones: validation happens at evaluation time
	// so a corrupt setting denies instead of being silently dropped.
	Permissions map[PermKey]Scope
}

// ScopeFor returns the effective scope for one (resource, action) pair:
// the identity's explicit override when present, the role default otherwise.
// The returned value may be invalid if the stored override is; callers must
// treat invalid scopes as deny.
func (id Identity) ScopeFor(res Resource, act Action) Scope {
	if s, ok := id.Permissions[PermKey{Resource: res, Action: act}]; ok {
		return s
	}
	return DefaultScope(id.Role, res, act)
}

// Fact is the ownership information of one concrete record: who created it
// and who it is assigned to. Empty strings mean "nobody".
//
// For communications Linked carries the ownership fact of the lead or
// customer the communication is attached to. For user records AssigneeID is
// the target user's own id and CreatorID is the account that created it.
type Fact struct {
	CreatorID  string
	AssigneeID string
	Linked     *Fact
}

// linked returns the linked contact's fact, or the zero fact when absent.
func (f Fact) linked() Fact {
	if f.Linked == nil {
		return Fact{}
	}
	return *f.Linked
}
