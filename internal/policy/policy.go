// Package policy holds the static role permission table and the guards that
// every privileged handler consults before mutating state. All functions are
// pure: no I/O, no context, no implicit allow.
package policy

import (
	"tenantkit/internal/types"
)

// Resource is a protected area of the product.
type Resource string

const (
	ResourceOrganization Resource = "organization"
	ResourceBilling      Resource = "billing"
	ResourceUsers        Resource = "users"
	ResourceFeatures     Resource = "features"
	ResourceAnalytics    Resource = "analytics"
	ResourceReports      Resource = "reports"
)

// Action is an operation on a Resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
	ActionManage Action = "manage"
)

type grants map[Resource]map[Action]struct{}

func allow(actions ...Action) map[Action]struct{} {
	m := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		m[a] = struct{}{}
	}
	return m
}

var table = map[types.Role]grants{
	types.RoleOwner: {
		ResourceOrganization: allow(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceBilling:      allow(ActionRead, ActionManage),
		ResourceUsers:        allow(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionInvite),
		ResourceFeatures:     allow(ActionRead, ActionUpdate),
		ResourceAnalytics:    allow(ActionRead),
		ResourceReports:      allow(ActionRead),
	},
	types.RoleAdmin: {
		ResourceOrganization: allow(ActionRead, ActionUpdate),
		ResourceUsers:        allow(ActionCreate, ActionRead, ActionUpdate, ActionInvite),
		ResourceFeatures:     allow(ActionRead),
		ResourceAnalytics:    allow(ActionRead),
		ResourceReports:      allow(ActionRead),
	},
	types.RoleMember: {
		ResourceOrganization: allow(ActionRead),
		ResourceUsers:        allow(ActionRead),
		ResourceFeatures:     allow(ActionRead),
	},
}

// HasPermission reports whether role may perform action on resource.
// Unknown roles, resources and actions are denied.
func HasPermission(role types.Role, resource Resource, action Action) bool {
	g, ok := table[role]
	if !ok {
		return false
	}
	actions, ok := g[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// CanInviteMembers reports whether role may send invitations.
func CanInviteMembers(role types.Role) bool {
	return HasPermission(role, ResourceUsers, ActionInvite)
}

// CanManageMembers reports whether role may resend or cancel invitations and
// otherwise administer the member list.
func CanManageMembers(role types.Role) bool {
	return HasPermission(role, ResourceUsers, ActionUpdate)
}

// CanChangeRoles reports whether role may change other members' roles.
func CanChangeRoles(role types.Role) bool {
	return HasPermission(role, ResourceUsers, ActionUpdate)
}

// CanRemoveMembers reports whether acting may remove a member holding target.
// Only roles with users:delete may remove anyone, and an owner can only be
// removed by another owner.
func CanRemoveMembers(acting, target types.Role) bool {
	if !HasPermission(acting, ResourceUsers, ActionDelete) {
		return false
	}
	if target == types.RoleOwner && acting != types.RoleOwner {
		return false
	}
	return true
}

// CanTransferOwnership reports whether role may hand the organization to
// another member. Only an owner can.
func CanTransferOwnership(role types.Role) bool {
	return role == types.RoleOwner
}
