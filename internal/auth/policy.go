package auth

// Management policy layered on top of the basic gate: an admin may only
// create, update or delete user-role identities; a superadmin additionally
// manages admins but never another superadmin. Nobody deletes themselves.

// CanManage reports whether an actor of the given role may create, modify or
// delete an identity holding targetRole.
func CanManage(actor, targetRole Role) bool {
	switch actor {
	case RoleSuperadmin:
		return targetRole == RoleUser || targetRole == RoleAdmin
	case RoleAdmin:
		return targetRole == RoleUser
	default:
		return false
	}
}

// CanDelete applies CanManage plus the self-deletion prohibition.
func CanDelete(actor Role, actorID string, targetRole Role, targetID string) bool {
	if actorID == targetID {
		return false
	}
	return CanManage(actor, targetRole)
}
