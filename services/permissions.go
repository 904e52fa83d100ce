package services

import "golang.org/x/exp/slices"

// Role is the closed set of roles the identity provider may hand us.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Permission names an action gated beyond plain ownership checks.
type Permission string

const (
	PermCancelAnyOrder  Permission = "order:cancel_any"
	PermProcessRefund   Permission = "order:refund"
	PermApproveSpace    Permission = "space:approve"
	PermModerateComment Permission = "comment:moderate"
)

// rolePermissions is resolved once per request from the verified token;
// handlers never re-derive roles from storage.
var rolePermissions = map[Role][]Permission{
	RoleUser:   {},
	RoleAdmin:  {PermCancelAnyOrder, PermProcessRefund, PermApproveSpace, PermModerateComment},
	RoleSystem: {PermCancelAnyOrder, PermProcessRefund},
}

// Actor is the authenticated caller as supplied by the authorization
// collaborator. The engine trusts it.
type Actor struct {
	UserID uint
	Role   Role
}

// Can reports whether the actor's role grants the permission.
func (a Actor) Can(p Permission) bool {
	return slices.Contains(rolePermissions[a.Role], p)
}

// SystemActor is used by internal jobs such as pending-order expiry.
var SystemActor = Actor{UserID: 0, Role: RoleSystem}
