package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tenantkit/internal/types"
)

// InvitationRepository provides data access for the invitations table. A row
// exists only while the invitation is pending; accept and cancel delete it.
type InvitationRepository struct {
	db DBTX
}

func NewInvitationRepository(db DBTX) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `i.id, i.organization_id, i.email, i.role, i.token,
	i.expires_at, i.invited_by, i.created_at`

func scanInvitation(row pgx.Row) (*types.Invitation, error) {
	var inv types.Invitation
	var token string
	err := row.Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.Email,
		&inv.Role,
		&token,
		&inv.ExpiresAt,
		&inv.InvitedBy,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Token = types.SecretString(token)
	return &inv, nil
}

func (r *InvitationRepository) Create(ctx context.Context, inv *types.Invitation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invitations (id, organization_id, email, role, token, expires_at, invited_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		inv.ID,
		inv.OrganizationID,
		types.CanonicalEmail(inv.Email),
		inv.Role,
		inv.Token.Unmask(),
		inv.ExpiresAt,
		inv.InvitedBy,
		nilIfZeroTime(inv.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create invitation", err)
	}
	return nil
}

// GetByID is scoped to the organization so one tenant cannot read another's
// invitations by guessing IDs.
func (r *InvitationRepository) GetByID(ctx context.Context, orgID, id string) (*types.Invitation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations i
		 WHERE i.organization_id = $1 AND i.id = $2`,
		orgID, id,
	)
	return r.scanOne(row)
}

func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*types.Invitation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations i WHERE i.token = $1`,
		token,
	)
	return r.scanOne(row)
}

// FindUnexpired returns the pending, unexpired invitation for email in the
// organization, or nil when there is none.
func (r *InvitationRepository) FindUnexpired(ctx context.Context, orgID, email string, now time.Time) (*types.Invitation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations i
		 WHERE i.organization_id = $1 AND i.email = $2 AND i.expires_at >= $3
		 ORDER BY i.created_at DESC
		 LIMIT 1`,
		orgID, types.CanonicalEmail(email), now,
	)
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up invitation", err)
	}
	return inv, nil
}

// List returns the organization's invitations, newest first. Expired rows are
// included; callers flag them.
func (r *InvitationRepository) List(ctx context.Context, orgID string) ([]*types.Invitation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+invitationColumns+` FROM invitations i
		 WHERE i.organization_id = $1
		 ORDER BY i.created_at DESC, i.id DESC`,
		orgID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list invitations", err)
	}
	defer rows.Close()

	var out []*types.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan invitation", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate invitations", err)
	}
	return out, nil
}

// Delete removes the invitation and reports how many rows went. Deleting a
// missing invitation is not an error.
func (r *InvitationRepository) Delete(ctx context.Context, orgID, id string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM invitations WHERE organization_id = $1 AND id = $2`,
		orgID, id,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete invitation", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes invitations whose expiry is before cutoff, across
// all organizations.
func (r *InvitationRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM invitations WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge expired invitations", err)
	}
	return tag.RowsAffected(), nil
}

func (r *InvitationRepository) scanOne(row pgx.Row) (*types.Invitation, error) {
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundInvitation, "invitation not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve invitation", err)
	}
	return inv, nil
}
