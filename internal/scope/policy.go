package scope

// DefaultScope is the compile-time policy table: the scope applied when an
// identity has no explicit permission override for the (resource, action)
// pair. The table is fixed; administrators change behavior per user through
// stored overrides, never by mutating these defaults.
//
// Developers operate everything. Admins see their own branch (own records
// plus their employees') and mutate what they created. Employees work the
// records assigned to them and cannot delete.
func DefaultScope(role Role, res Resource, act Action) Scope {
	switch role {
	case RoleDeveloper:
		return ScopeAll

	case RoleAdmin:
		if act == ActionCreate {
			return ScopeAll
		}
		if act == ActionView || res == ResourceCommunication {
			return ScopeSubordinates
		}
		return ScopeCreated

	case RoleEmployee:
		switch act {
		case ActionCreate:
			// employees open leads, customers and communications themselves;
			// account creation is an admin concern
			if res == ResourceUser {
				return ScopeNone
			}
			return ScopeAll
		case ActionView, ActionEdit:
			return ScopeAssigned
		}
		return ScopeNone
	}

	// unknown role: deny
	return ScopeNone
}
