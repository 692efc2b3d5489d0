package rbac

// Role names. Keep these stable; they are part of auth contracts.
// Callers initiate calls and spend credits; receivers accept calls and
// accrue earnings.
const (
	RoleCaller   = "caller"
	RoleReceiver = "receiver"
	RoleAdmin    = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsValidRole(role string) bool {
	switch role {
	case RoleCaller, RoleReceiver, RoleAdmin:
		return true
	default:
		return false
	}
}
