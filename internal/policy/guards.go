package policy

import (
	"fmt"

	"tenantkit/internal/types"
)

// Require returns a permission error unless role may perform action on
// resource.
func Require(role types.Role, resource Resource, action Action) error {
	if HasPermission(role, resource, action) {
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrCodePermissionRole,
		fmt.Sprintf("role %q may not %s %s", role, action, resource), nil,
		map[string]any{"resource": string(resource), "action": string(action)})
}

// forbidden builds the standard permission error for a named guard.
func forbidden(guard string, role types.Role) error {
	return types.NewAppErrorWithDetails(types.ErrCodePermissionRole,
		"insufficient role for this action", nil,
		map[string]any{"guard": guard, "role": string(role)})
}

// RequireInvite fails unless role may send invitations.
func RequireInvite(role types.Role) error {
	if CanInviteMembers(role) {
		return nil
	}
	return forbidden("canInviteMembers", role)
}

// RequireManage fails unless role may administer members and invitations.
func RequireManage(role types.Role) error {
	if CanManageMembers(role) {
		return nil
	}
	return forbidden("canManageMembers", role)
}

// RequireTransfer fails unless role may transfer ownership.
func RequireTransfer(role types.Role) error {
	if CanTransferOwnership(role) {
		return nil
	}
	return forbidden("canTransferOwnership", role)
}

// RemovalCheck describes a member removal request.
type RemovalCheck struct {
	ActingRole     types.Role
	TargetRole     types.Role
	TargetInactive bool
	IsSelf         bool
	ActiveOwners   int
}

// CheckRemoval applies the removal rules in order: the acting role must be
// allowed to remove the target, an owner may not remove themselves, and the
// last active owner can never be removed. A pending or suspended owner does
// not count toward ActiveOwners and is not protected by that rule.
func CheckRemoval(c RemovalCheck) error {
	if c.TargetRole == types.RoleOwner && !c.TargetInactive && c.ActiveOwners <= 1 {
		return types.NewAppError(types.ErrCodeConflictLastOwner,
			"the last owner of an organization cannot be removed", nil)
	}
	if !CanRemoveMembers(c.ActingRole, c.TargetRole) {
		return forbidden("canRemoveMembers", c.ActingRole)
	}
	if c.IsSelf && c.ActingRole == types.RoleOwner {
		return types.NewAppError(types.ErrCodePermissionSelfRemoval,
			"an owner cannot remove themselves; transfer ownership first", nil)
	}
	return nil
}

// RoleChangeCheck describes a role change request.
type RoleChangeCheck struct {
	ActingRole     types.Role
	CurrentRole    types.Role
	NewRole        types.Role
	TargetInactive bool
	ActiveOwners   int
}

// CheckRoleChange validates a role change. Only owners may grant or revoke
// the owner role, and the last active owner cannot be demoted.
func CheckRoleChange(c RoleChangeCheck) error {
	if !c.NewRole.IsValid() {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRole,
			"unknown role", nil, map[string]any{"field": "role", "value": string(c.NewRole)})
	}
	if c.CurrentRole == types.RoleOwner && c.NewRole != types.RoleOwner && !c.TargetInactive && c.ActiveOwners <= 1 {
		return types.NewAppError(types.ErrCodeConflictLastOwner,
			"the last owner of an organization cannot be demoted", nil)
	}
	if !CanChangeRoles(c.ActingRole) {
		return forbidden("canChangeRoles", c.ActingRole)
	}
	if (c.CurrentRole == types.RoleOwner || c.NewRole == types.RoleOwner) && c.ActingRole != types.RoleOwner {
		return forbidden("canChangeRoles", c.ActingRole)
	}
	return nil
}
