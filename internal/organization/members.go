package organization

import (
	"context"

	"tenantkit/internal/audit"
	"tenantkit/internal/policy"
	"tenantkit/internal/types"
)

// ListMembers returns the organization's members with their user profile.
func (s *Service) ListMembers(ctx context.Context, actor types.Caller) ([]*types.MemberView, error) {
	if err := policy.Require(actor.Role, policy.ResourceUsers, policy.ActionRead); err != nil {
		return nil, err
	}
	members, err := s.memberships.List(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []*types.MemberView{}
	}
	return members, nil
}

// ChangeRole sets userID's role. The update is conditional on the role read
// here, so a concurrent change surfaces as a conflict.
func (s *Service) ChangeRole(ctx context.Context, actor types.Caller, userID string, role types.Role) (*types.Membership, error) {
	if err := policy.RequireManage(actor.Role); err != nil {
		return nil, err
	}
	target, err := s.memberships.Get(ctx, actor.OrganizationID, userID)
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}
	owners, err := s.memberships.CountActiveOwners(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := policy.CheckRoleChange(policy.RoleChangeCheck{
		ActingRole:     actor.Role,
		CurrentRole:    target.Role,
		NewRole:        role,
		TargetInactive: !target.IsActive(),
		ActiveOwners:   owners,
	}); err != nil {
		return nil, err
	}

	if err := s.memberships.UpdateRole(ctx, actor.OrganizationID, userID, target.Role, role); err != nil {
		return nil, err
	}

	previous := target.Role
	target.Role = role
	target.UpdatedAt = s.clock.Now()

	s.audit.Record(ctx, audit.Event{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         types.AuditActionMemberUpdateRole,
		TargetType:     types.AuditTargetMembership,
		TargetID:       target.ID,
		Metadata: map[string]any{
			"userId":       userID,
			"previousRole": string(previous),
			"newRole":      string(role),
		},
	})
	return target, nil
}

// RemoveMember deletes userID's membership.
func (s *Service) RemoveMember(ctx context.Context, actor types.Caller, userID string) error {
	if err := policy.RequireManage(actor.Role); err != nil {
		return err
	}
	target, err := s.memberships.Get(ctx, actor.OrganizationID, userID)
	if err != nil {
		return err
	}
	owners, err := s.memberships.CountActiveOwners(ctx, actor.OrganizationID)
	if err != nil {
		return err
	}
	if err := policy.CheckRemoval(policy.RemovalCheck{
		ActingRole:     actor.Role,
		TargetRole:     target.Role,
		TargetInactive: !target.IsActive(),
		IsSelf:         userID == actor.UserID,
		ActiveOwners:   owners,
	}); err != nil {
		return err
	}

	if err := s.memberships.Delete(ctx, actor.OrganizationID, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Event{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         types.AuditActionMemberRemove,
		TargetType:     types.AuditTargetMembership,
		TargetID:       target.ID,
		Metadata:       map[string]any{"userId": userID, "role": string(target.Role)},
	})
	return nil
}
