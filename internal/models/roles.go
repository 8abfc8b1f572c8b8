package models

// Role values stored on users.role.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// SelfServiceRoles are the roles a visitor may pick at registration.
var SelfServiceRoles = []string{RoleClient, RoleFreelancer}

// ValidSelfServiceRole reports whether role can be chosen at sign-up.
func ValidSelfServiceRole(role string) bool {
	for _, r := range SelfServiceRoles {
		if r == role {
			return true
		}
	}
	return false
}
