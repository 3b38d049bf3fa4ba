package model

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient, RoleProvider:
		return Role(s), true
	default:
		return "", false
	}
}

// Actor is the authenticated caller. It is taken from the verified token, never from the
// request body.
type Actor struct {
	UserID string
	Role   Role
	Email  string
}

func (a Actor) IsProvider(providerID string) bool {
	return a.Role == RoleProvider && a.UserID != "" && a.UserID == providerID
}
