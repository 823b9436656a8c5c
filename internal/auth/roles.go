package auth

// Role is a closed enumeration with an explicit ordinal rank. The hierarchy
// is a total order: user < admin < superadmin.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var roleRanks = map[Role]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// ParseRole maps a stored role string onto the enumeration.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleRanks[r]
	return r, ok
}

// Rank returns the role's ordinal, 0 for an unknown role.
func (r Role) Rank() int {
	return roleRanks[r]
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

func (r Role) String() string {
	return string(r)
}

// Authorize grants access when the actor's rank meets the weakest declared
// requirement, so a route requiring admin also admits superadmin. An empty
// requirement set is default-open: callers opt in to role checks explicitly.
// An invalid actual role is treated as unauthenticated.
func Authorize(required []Role, actual Role) error {
	if len(required) == 0 {
		return nil
	}
	if !actual.Valid() {
		return ErrUnauthenticated
	}

	minRank := 0
	for _, r := range required {
		if rank := r.Rank(); rank > 0 && (minRank == 0 || rank < minRank) {
			minRank = rank
		}
	}
	if minRank == 0 {
		return nil
	}

	if actual.Rank() < minRank {
		return ErrPermissionDenied
	}
	return nil
}
