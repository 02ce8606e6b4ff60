package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

// Can reports whether role may perform action on records it does not own.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return action == ActionRead || action == ActionWrite
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// CanDeleteOwned allows admins, and writers deleting a record they own
// (a task they created, an attachment they uploaded).
func CanDeleteOwned(role Role, actorID, ownerID int64) bool {
	if Can(role, ActionDelete) {
		return true
	}
	return Can(role, ActionWrite) && actorID != 0 && actorID == ownerID
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
