// Package db provides PostgreSQL-backed repositories for tenantkit. All
// repositories accept a DBTX, which both *pgxpool.Pool and pgx.Tx satisfy, so
// the same code runs inside or outside a transaction.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ID prefixes for generated primary keys.
const (
	PrefixOrganization = "org_"
	PrefixUser         = "user_"
	PrefixMembership   = "mem_"
	PrefixInvitation   = "inv_"
	PrefixAuditLog     = "audit_"
	PrefixSession      = "sess_"
)

// NewID returns a prefixed random UUID such as "org_6f1c...".
func NewID(prefix string) string {
	return prefix + uuid.NewString()
}

// lastOwnerConstraint is raised by the memberships_owner_guard trigger.
const lastOwnerConstraint = "memberships_last_owner"

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime lets the column default (NOW()) apply when no time is set.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isUniqueViolation reports a PostgreSQL unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isLastOwnerViolation reports that the owner guard trigger rejected a
// statement or commit.
func isLastOwnerViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName == lastOwnerConstraint
	}
	return false
}
