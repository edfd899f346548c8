package main

import (
	"context"

	"tenantkit/internal/auth"
	"tenantkit/internal/db"
	"tenantkit/internal/invitation"
	"tenantkit/internal/organization"
	"tenantkit/internal/ownership"
)

// repoTx is the part of *db.TxManager the adapters below need.
type repoTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos *db.Repositories) error) error
}

// Each service declares its own narrow TxManager. These adapters hand it the
// transaction-bound repositories it asks for.

type authTx struct{ tx repoTx }

func (a authTx) RunInTx(ctx context.Context, fn func(ctx context.Context, users auth.UserRepo, sessions auth.SessionRepo) error) error {
	return a.tx.RunInTx(ctx, func(ctx context.Context, repos *db.Repositories) error {
		return fn(ctx, repos.Users, repos.Sessions)
	})
}

type invitationTx struct{ tx repoTx }

func (a invitationTx) RunInTx(ctx context.Context, fn func(ctx context.Context, invitations invitation.InvitationRepo, memberships invitation.MembershipRepo) error) error {
	return a.tx.RunInTx(ctx, func(ctx context.Context, repos *db.Repositories) error {
		return fn(ctx, repos.Invitations, repos.Memberships)
	})
}

type ownershipTx struct{ tx repoTx }

func (a ownershipTx) RunInTx(ctx context.Context, fn func(ctx context.Context, memberships ownership.MembershipRepo) error) error {
	return a.tx.RunInTx(ctx, func(ctx context.Context, repos *db.Repositories) error {
		return fn(ctx, repos.Memberships)
	})
}

type organizationTx struct{ tx repoTx }

func (a organizationTx) RunInTx(ctx context.Context, fn func(ctx context.Context, orgs organization.OrgRepo, memberships organization.MembershipRepo) error) error {
	return a.tx.RunInTx(ctx, func(ctx context.Context, repos *db.Repositories) error {
		return fn(ctx, repos.Organizations, repos.Memberships)
	})
}

var (
	_ auth.TxManager         = authTx{}
	_ invitation.TxManager   = invitationTx{}
	_ ownership.TxManager    = ownershipTx{}
	_ organization.TxManager = organizationTx{}
)
