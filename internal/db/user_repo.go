package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tenantkit/internal/types"
)

// UserRepository provides data access for the users table. Users are global;
// organization access goes through memberships.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `u.id, u.email, u.name, u.avatar_url, u.password_hash,
	u.mfa_enabled, u.mfa_secret, u.mfa_backup_codes, u.preferences,
	u.failed_login_attempts, u.locked_until, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var mfaSecret *string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.MFAEnabled,
		&mfaSecret,
		&u.MFABackupCodes,
		&u.Preferences,
		&u.FailedLoginAttempts,
		&u.LockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mfaSecret != nil {
		u.MFASecret = types.SecretString(*mfaSecret)
	}
	return &u, nil
}

// Create inserts a user. Email is stored canonicalized; a duplicate returns
// ErrCodeConflictEmail.
func (r *UserRepository) Create(ctx context.Context, u *types.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, name, avatar_url, password_hash, preferences, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), COALESCE($8, NOW()))`,
		u.ID,
		types.CanonicalEmail(u.Email),
		u.Name,
		u.AvatarURL,
		u.PasswordHash,
		u.Preferences,
		nilIfZeroTime(u.CreatedAt),
		nilIfZeroTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "an account with this email already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	return r.scanOne(row)
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE lower(u.email) = $1`,
		types.CanonicalEmail(email),
	)
	return r.scanOne(row)
}

func (r *UserRepository) scanOne(row pgx.Row) (*types.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// RecordLoginFailure increments the failed attempt counter. When the counter
// reaches maxAttempts the account is locked until lockUntil and the counter
// restarts. It returns the resulting lock expiry, nil when not locked.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (*time.Time, error) {
	var lockedUntil *time.Time
	err := r.db.QueryRow(ctx,
		`UPDATE users
		 SET failed_login_attempts = CASE WHEN failed_login_attempts + 1 >= $2 THEN 0 ELSE failed_login_attempts + 1 END,
		     locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING locked_until`,
		id, maxAttempts, lockUntil,
	).Scan(&lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to record login failure", err)
	}
	return lockedUntil, nil
}

// ResetLoginFailures clears the counter and any lock after a good login.
func (r *UserRepository) ResetLoginFailures(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		 WHERE id = $1 AND (failed_login_attempts <> 0 OR locked_until IS NOT NULL)`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reset login failures", err)
	}
	return nil
}

func (r *UserRepository) UpdatePreferences(ctx context.Context, id string, prefs types.UserPreferences) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET preferences = $1, updated_at = NOW() WHERE id = $2`,
		prefs, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update preferences", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}
