package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"tenantkit/internal/types"
)

// AuditRepository provides data access for the audit_logs table.
type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `a.id, a.organization_id, a.actor_id, a.action, a.target_type,
	a.target_id, a.metadata, a.ip_address, a.user_agent, a.created_at`

// Insert persists entry, assigning an ID when the caller left it empty.
func (r *AuditRepository) Insert(ctx context.Context, entry *types.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = NewID(PrefixAuditLog)
	}
	if entry.Metadata == nil {
		entry.Metadata = types.AuditMetadata{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_logs (id, organization_id, actor_id, action, target_type, target_id,
		 metadata, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		entry.ID,
		entry.OrganizationID,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Metadata,
		entry.IPAddress,
		entry.UserAgent,
		nilIfZeroTime(entry.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write audit log", err)
	}
	return nil
}

// List returns one page of the organization's entries, newest first.
func (r *AuditRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*types.AuditLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+auditColumns+`
		 FROM audit_logs a
		 WHERE a.organization_id = $1
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT $2 OFFSET $3`,
		orgID, limit, offset,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list audit logs", err)
	}
	return scanAuditRows(rows, limit)
}

// ListOlderThan returns up to limit entries created before cutoff, oldest
// first, across all organizations.
func (r *AuditRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.AuditLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+auditColumns+`
		 FROM audit_logs a
		 WHERE a.created_at < $1
		 ORDER BY a.created_at, a.id
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list expired audit logs", err)
	}
	return scanAuditRows(rows, limit)
}

func scanAuditRows(rows pgx.Rows, capacity int) ([]*types.AuditLogEntry, error) {
	defer rows.Close()

	out := make([]*types.AuditLogEntry, 0, capacity)
	for rows.Next() {
		var e types.AuditLogEntry
		err := rows.Scan(
			&e.ID,
			&e.OrganizationID,
			&e.ActorID,
			&e.Action,
			&e.TargetType,
			&e.TargetID,
			&e.Metadata,
			&e.IPAddress,
			&e.UserAgent,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan audit log", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate audit logs", err)
	}
	return out, nil
}

func (r *AuditRepository) Count(ctx context.Context, orgID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE organization_id = $1`,
		orgID,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count audit logs", err)
	}
	return n, nil
}

// DeleteByIDs removes entries that have already been copied to the archive.
func (r *AuditRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM audit_logs WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete archived audit logs", err)
	}
	return tag.RowsAffected(), nil
}
