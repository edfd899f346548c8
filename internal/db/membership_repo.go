package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tenantkit/internal/types"
)

// MembershipRepository provides data access for the memberships table.
//
// The memberships_owner_guard trigger rejects any change that would leave an
// organization without an active owner; those failures surface as
// ErrCodeConflictLastOwner. Callers still check CountActiveOwners first so the
// common case fails before touching a row.
type MembershipRepository struct {
	db DBTX
}

func NewMembershipRepository(db DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `m.id, m.organization_id, m.user_id, m.role, m.status,
	m.invited_by, m.created_at, m.updated_at`

func membershipScanDest(m *types.Membership) []any {
	return []any{
		&m.ID,
		&m.OrganizationID,
		&m.UserID,
		&m.Role,
		&m.Status,
		&m.InvitedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
}

// Create inserts a membership. An existing (organization, user) pair returns
// ErrCodeConflictAlreadyMember.
func (r *MembershipRepository) Create(ctx context.Context, m *types.Membership) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO memberships (id, organization_id, user_id, role, status, invited_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), COALESCE($8, NOW()))`,
		m.ID,
		m.OrganizationID,
		m.UserID,
		m.Role,
		m.Status,
		m.InvitedBy,
		nilIfZeroTime(m.CreatedAt),
		nilIfZeroTime(m.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictAlreadyMember, "user is already a member of this organization", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create membership", err)
	}
	return nil
}

func (r *MembershipRepository) Get(ctx context.Context, orgID, userID string) (*types.Membership, error) {
	var m types.Membership
	err := r.db.QueryRow(ctx,
		`SELECT `+membershipColumns+`
		 FROM memberships m
		 WHERE m.organization_id = $1 AND m.user_id = $2`,
		orgID, userID,
	).Scan(membershipScanDest(&m)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMembership, "membership not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve membership", err)
	}
	return &m, nil
}

// List returns every membership of the organization joined with its user,
// oldest first.
func (r *MembershipRepository) List(ctx context.Context, orgID string) ([]*types.MemberView, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+membershipColumns+`, u.email, u.name, u.avatar_url
		 FROM memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.organization_id = $1
		 ORDER BY m.created_at ASC, m.id ASC`,
		orgID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list members", err)
	}
	defer rows.Close()

	var out []*types.MemberView
	for rows.Next() {
		var v types.MemberView
		dest := append(membershipScanDest(&v.Membership), &v.Email, &v.Name, &v.AvatarURL)
		if err := rows.Scan(dest...); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan member", err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate members", err)
	}
	return out, nil
}

// ListForUser returns the organizations the user actively belongs to.
func (r *MembershipRepository) ListForUser(ctx context.Context, userID string) ([]*types.UserOrganization, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orgColumns+`, m.role
		 FROM memberships m
		 JOIN organizations o ON o.id = m.organization_id
		 WHERE m.user_id = $1 AND m.status = 'active'
		 ORDER BY o.name ASC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list organizations", err)
	}
	defer rows.Close()

	var out []*types.UserOrganization
	for rows.Next() {
		var uo types.UserOrganization
		var stripeCustomerID *string
		err := rows.Scan(
			&uo.ID, &uo.Name, &uo.Slug, &uo.Plan, &uo.LogoURL, &uo.Settings,
			&stripeCustomerID, &uo.CreatedAt, &uo.UpdatedAt, &uo.Role,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan organization", err)
		}
		if stripeCustomerID != nil {
			uo.StripeCustomerID = *stripeCustomerID
		}
		out = append(out, &uo)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate organizations", err)
	}
	return out, nil
}

func (r *MembershipRepository) CountActiveOwners(ctx context.Context, orgID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships
		 WHERE organization_id = $1 AND role = 'owner' AND status = 'active'`,
		orgID,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count owners", err)
	}
	return n, nil
}

// ActiveMemberExistsByEmail reports whether a user with this email already has
// an active membership in the organization.
func (r *MembershipRepository) ActiveMemberExistsByEmail(ctx context.Context, orgID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM memberships m
		   JOIN users u ON u.id = m.user_id
		   WHERE m.organization_id = $1 AND lower(u.email) = $2 AND m.status = 'active'
		 )`,
		orgID, types.CanonicalEmail(email),
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check membership", err)
	}
	return exists, nil
}

// UpdateRole changes a member's role only if it is still from. Zero rows
// means a concurrent change won and returns ErrCodeConflictConcurrent.
func (r *MembershipRepository) UpdateRole(ctx context.Context, orgID, userID string, from, to types.Role) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE memberships SET role = $1, updated_at = NOW()
		 WHERE organization_id = $2 AND user_id = $3 AND role = $4`,
		to, orgID, userID, from,
	)
	if err != nil {
		return mapMembershipWriteErr(err, "failed to update role")
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictConcurrent, "membership changed concurrently", nil)
	}
	return nil
}

// Demote turns an active owner into an admin. Zero rows means the user is no
// longer an owner and returns ErrCodeConflictNotOwner.
func (r *MembershipRepository) Demote(ctx context.Context, orgID, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE memberships SET role = 'admin', updated_at = NOW()
		 WHERE organization_id = $1 AND user_id = $2 AND role = 'owner' AND status = 'active'`,
		orgID, userID,
	)
	if err != nil {
		return mapMembershipWriteErr(err, "failed to demote owner")
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictNotOwner, "acting user is no longer an owner", nil)
	}
	return nil
}

// Promote makes an active member the owner. Zero rows returns
// ErrCodeNotFoundMembership.
func (r *MembershipRepository) Promote(ctx context.Context, orgID, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE memberships SET role = 'owner', updated_at = NOW()
		 WHERE organization_id = $1 AND user_id = $2 AND status = 'active'`,
		orgID, userID,
	)
	if err != nil {
		return mapMembershipWriteErr(err, "failed to promote member")
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMembership, "target membership not found", nil)
	}
	return nil
}

func (r *MembershipRepository) Delete(ctx context.Context, orgID, userID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID,
	)
	if err != nil {
		return mapMembershipWriteErr(err, "failed to remove member")
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMembership, "membership not found", nil)
	}
	return nil
}

func mapMembershipWriteErr(err error, msg string) error {
	if isLastOwnerViolation(err) {
		return types.NewAppError(types.ErrCodeConflictLastOwner, "organization must keep at least one owner", err)
	}
	return types.NewAppError(types.ErrCodeInternalDB, msg, err)
}
