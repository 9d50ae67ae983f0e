package rbac

// Permissions
const (
	PermissionCreateGig      = "gig:create"
	PermissionManageGig      = "gig:manage"
	PermissionPlaceBid       = "bid:place"
	PermissionListBids       = "bid:list"
	PermissionAwardBid       = "bid:award"
	PermissionManageProject  = "project:manage"
	PermissionDeliverProject = "project:deliver"
	PermissionReview         = "project:review"
	PermissionPay            = "payment:create"
	PermissionSubscribe      = "subscription:manage"
	PermissionUseAssist      = "assist:use"
	PermissionAdmin          = "admin"
)

// Roles; an account's role is fixed at registration.
const (
	RoleFreelancer = "freelancer"
	RoleClient     = "client"
	RoleAdmin      = "admin"
)

var rolePermissions = map[string][]string{
	RoleFreelancer: {
		PermissionPlaceBid,
		PermissionDeliverProject,
		PermissionReview,
		PermissionSubscribe,
		PermissionUseAssist,
	},
	RoleClient: {
		PermissionCreateGig,
		PermissionManageGig,
		PermissionListBids,
		PermissionAwardBid,
		PermissionManageProject,
		PermissionReview,
		PermissionPay,
		PermissionSubscribe,
		PermissionUseAssist,
	},
	RoleAdmin: {
		PermissionCreateGig,
		PermissionManageGig,
		PermissionListBids,
		PermissionManageProject,
		PermissionSubscribe,
		PermissionUseAssist,
		PermissionAdmin,
	},
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission checks the role's permission table
func HasPermission(role string, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning a typed error
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError is returned when the role lacks a permission
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "role '" + e.Role + "' is not authorized for " + e.Permission
}
