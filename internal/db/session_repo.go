package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tenantkit/internal/types"
)

// SessionRepository stores login sessions by the SHA-256 hash of their
// bearer token; the raw token is never persisted.
type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, user_agent, ip_address, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		s.ID,
		s.UserID,
		s.TokenHash,
		s.UserAgent,
		s.IPAddress,
		s.ExpiresAt,
		nilIfZeroTime(s.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}
	return nil
}

// GetByTokenHash returns the session only while it is unexpired at now.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*types.Session, error) {
	var s types.Session
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, created_at
		 FROM sessions
		 WHERE token_hash = $1 AND expires_at > $2`,
		tokenHash, now,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSession, "session not found or expired", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve session", err)
	}
	return &s, nil
}

// Delete removes a session; deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
