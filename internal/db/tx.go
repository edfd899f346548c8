package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"tenantkit/internal/types"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories is the set of repositories bound to one transaction.
type Repositories struct {
	Organizations *OrganizationRepository
	Users         *UserRepository
	Memberships   *MembershipRepository
	Invitations   *InvitationRepository
	Audit         *AuditRepository
	Sessions      *SessionRepository
}

// NewRepositories binds every repository to conn.
func NewRepositories(conn DBTX) *Repositories {
	return &Repositories{
		Organizations: NewOrganizationRepository(conn),
		Users:         NewUserRepository(conn),
		Memberships:   NewMembershipRepository(conn),
		Invitations:   NewInvitationRepository(conn),
		Audit:         NewAuditRepository(conn),
		Sessions:      NewSessionRepository(conn),
	}
}

// TxManager runs functions inside a database transaction.
type TxManager struct {
	pool TxBeginner
}

func NewTxManager(pool TxBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx begins a transaction, hands fn repositories bound to it and commits
// when fn returns nil. Any error from fn rolls everything back and is
// returned unchanged. The owner guard trigger is deferred, so a violation
// shows up at commit as ErrCodeConflictLastOwner.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, NewRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isLastOwnerViolation(err) {
			return types.NewAppError(types.ErrCodeConflictLastOwner, "organization must keep at least one owner", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
