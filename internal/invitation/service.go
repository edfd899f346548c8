// Package invitation implements the invitation lifecycle: an invitation is
// created pending and ends accepted, cancelled or expired.
package invitation

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tenantkit/internal/audit"
	"tenantkit/internal/auth"
	"tenantkit/internal/notifications/core"
	emailpkg "tenantkit/internal/notifications/email"
	"tenantkit/internal/policy"
	"tenantkit/internal/types"
)

// InvitationRepo is the invitation data access the Service needs.
type InvitationRepo interface {
	Create(ctx context.Context, inv *types.Invitation) error
	GetByID(ctx context.Context, orgID, id string) (*types.Invitation, error)
	GetByToken(ctx context.Context, token string) (*types.Invitation, error)
	FindUnexpired(ctx context.Context, orgID, email string, now time.Time) (*types.Invitation, error)
	List(ctx context.Context, orgID string) ([]*types.Invitation, error)
	Delete(ctx context.Context, orgID, id string) (int64, error)
}

// MembershipRepo is the membership data access the Service needs.
type MembershipRepo interface {
	Create(ctx context.Context, m *types.Membership) error
	Get(ctx context.Context, orgID, userID string) (*types.Membership, error)
	ActiveMemberExistsByEmail(ctx context.Context, orgID, email string) (bool, error)
}

// OrgReader loads the organization named in outgoing emails.
type OrgReader interface {
	GetByID(ctx context.Context, id string) (*types.Organization, error)
}

// UserReader loads the inviter for outgoing emails.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// TxManager runs fn with transaction-scoped repositories.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, invitations InvitationRepo, memberships MembershipRepo) error) error
}

// LinkBuilder builds the absolute acceptance link. tenant.LinkBuilder
// satisfies it.
type LinkBuilder interface {
	RootURL(path string) string
}

// ServiceDeps holds the Service dependencies. Tokens, NewID, Clock, Audit
// and Logger default when nil.
type ServiceDeps struct {
	Invitations InvitationRepo
	Memberships MembershipRepo
	Orgs        OrgReader
	Users       UserReader
	Tx          TxManager
	Emails      core.Dispatcher
	Links       LinkBuilder
	Audit       audit.Recorder
	Tokens      auth.TokenGenerator
	NewID       func(prefix string) string
	Clock       types.Clock
	Logger      *slog.Logger
	TTL         time.Duration
}

// Service implements the invitation state machine.
type Service struct {
	invitations InvitationRepo
	memberships MembershipRepo
	orgs        OrgReader
	users       UserReader
	tx          TxManager
	emails      core.Dispatcher
	links       LinkBuilder
	audit       audit.Recorder
	tokens      auth.TokenGenerator
	newID       func(prefix string) string
	clock       types.Clock
	logger      *slog.Logger
	ttl         time.Duration
	validate    *validator.Validate
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{
		invitations: deps.Invitations,
		memberships: deps.Memberships,
		orgs:        deps.Orgs,
		users:       deps.Users,
		tx:          deps.Tx,
		emails:      deps.Emails,
		links:       deps.Links,
		audit:       deps.Audit,
		tokens:      deps.Tokens,
		newID:       deps.NewID,
		clock:       deps.Clock,
		logger:      deps.Logger,
		ttl:         deps.TTL,
		validate:    validator.New(),
	}
	if s.tokens == nil {
		s.tokens = auth.CryptoTokenGenerator{}
	}
	if s.newID == nil {
		s.newID = func(prefix string) string { return prefix + uuid.NewString() }
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.audit == nil {
		s.audit = audit.Discard{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.ttl <= 0 {
		s.ttl = types.InvitationTTL
	}
	return s
}

// CreateInput is the data needed to invite someone. Locale selects the email
// language; empty uses the inviter's preference.
type CreateInput struct {
	Email  string
	Role   types.Role
	Locale string
}

// CreateResult reports the stored invitation and whether the email went out.
// A failed email never rolls the invitation back.
type CreateResult struct {
	Invitation *types.Invitation
	EmailSent  bool
}

// ResendResult reports a resend attempt.
type ResendResult struct {
	Invitation *types.Invitation
	EmailSent  bool
}

// Create invites email into the caller's organization with role.
func (s *Service) Create(ctx context.Context, actor types.Caller, in CreateInput) (*CreateResult, error) {
	if err := policy.RequireInvite(actor.Role); err != nil {
		return nil, err
	}
	if err := types.ValidateInvitableRole(in.Role); err != nil {
		return nil, err
	}
	email := types.CanonicalEmail(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidEmail,
			"a valid email address is required", err, map[string]any{"field": "email"})
	}

	exists, err := s.memberships.ActiveMemberExistsByEmail(ctx, actor.OrganizationID, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, types.NewAppError(types.ErrCodeConflictAlreadyMember, "this person is already a member", nil)
	}

	now := s.clock.Now()
	pending, err := s.invitations.FindUnexpired(ctx, actor.OrganizationID, email, now)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictInvitationPending,
			"an invitation for this email is already pending", nil,
			map[string]any{"invitation_id": pending.ID})
	}

	token, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate invitation token", err)
	}

	inviter := actor.UserID
	inv := &types.Invitation{
		ID:             s.newID("inv_"),
		OrganizationID: actor.OrganizationID,
		Email:          email,
		Role:           in.Role,
		Token:          types.SecretString(token),
		ExpiresAt:      now.Add(s.ttl),
		InvitedBy:      &inviter,
		CreatedAt:      now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	sent := s.sendInvitation(ctx, actor, inv, in.Locale)

	s.audit.Record(ctx, audit.Event{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         types.AuditActionInvitationCreate,
		TargetType:     types.AuditTargetInvitation,
		TargetID:       inv.ID,
		Metadata:       map[string]any{"email": email, "role": string(in.Role), "emailSent": sent},
	})

	s.logger.InfoContext(ctx, "invitation created",
		"organization_id", actor.OrganizationID,
		"invitation_id", inv.ID,
		"email_sent", sent,
	)
	return &CreateResult{Invitation: inv, EmailSent: sent}, nil
}

// Resend re-dispatches the email for a pending invitation with the same
// token. The expiry is not extended.
func (s *Service) Resend(ctx context.Context, actor types.Caller, id string) (*ResendResult, error) {
	if err := policy.RequireManage(actor.Role); err != nil {
		return nil, err
	}
	inv, err := s.invitations.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if inv.IsExpired(s.clock.Now()) {
		return nil, expiredErr(inv)
	}

	sent := s.sendInvitation(ctx, actor, inv, "")

	s.audit.Record(ctx, audit.Event{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         types.AuditActionInvitationResend,
		TargetType:     types.AuditTargetInvitation,
		TargetID:       inv.ID,
		Metadata:       map[string]any{"email": inv.Email, "emailSent": sent},
	})
	return &ResendResult{Invitation: inv, EmailSent: sent}, nil
}

// Cancel deletes the invitation. Cancelling an unknown or already removed
// invitation succeeds.
func (s *Service) Cancel(ctx context.Context, actor types.Caller, id string) error {
	if err := policy.RequireManage(actor.Role); err != nil {
		return err
	}
	n, err := s.invitations.Delete(ctx, actor.OrganizationID, id)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Event{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         types.AuditActionInvitationCancel,
		TargetType:     types.AuditTargetInvitation,
		TargetID:       id,
		Metadata:       map[string]any{"deleted": n > 0},
	})
	return nil
}

// Accept turns the invitation identified by token into an active membership
// for user. The membership insert and the invitation delete commit together.
func (s *Service) Accept(ctx context.Context, user *types.User, token string) (*types.Membership, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeNotFoundInvitation, "invitation not found", nil)
	}
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if types.CanonicalEmail(user.Email) != types.CanonicalEmail(inv.Email) {
		return nil, types.NewAppError(types.ErrCodePermissionEmailMismatch,
			"this invitation was sent to a different email address", nil)
	}
	now := s.clock.Now()
	if inv.IsExpired(now) {
		return nil, expiredErr(inv)
	}

	existing, err := s.memberships.Get(ctx, inv.OrganizationID, user.ID)
	if err != nil && types.CodeOf(err) != types.ErrCodeNotFoundMembership {
		return nil, err
	}
	if existing != nil {
		return nil, types.NewAppError(types.ErrCodeConflictAlreadyMember, "you are already a member of this organization", nil)
	}

	m := &types.Membership{
		ID:             s.newID("mem_"),
		OrganizationID: inv.OrganizationID,
		UserID:         user.ID,
		Role:           inv.Role,
		Status:         types.MembershipActive,
		InvitedBy:      inv.InvitedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context, invitations InvitationRepo, memberships MembershipRepo) error {
		if err := memberships.Create(ctx, m); err != nil {
			return err
		}
		_, err := invitations.Delete(ctx, inv.OrganizationID, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		OrganizationID: inv.OrganizationID,
		ActorID:        user.ID,
		Action:         types.AuditActionInvitationAccept,
		TargetType:     types.AuditTargetInvitation,
		TargetID:       inv.ID,
		Metadata:       map[string]any{"role": string(inv.Role), "membershipId": m.ID},
	})

	s.logger.InfoContext(ctx, "invitation accepted",
		"organization_id", inv.OrganizationID,
		"invitation_id", inv.ID,
		"user_id", user.ID,
	)
	return m, nil
}

// ListItem is an invitation with its expiry evaluated at list time.
type ListItem struct {
	*types.Invitation
	Expired bool `json:"expired"`
}

// List returns the organization's outstanding invitations, newest first.
// Expired invitations are included and flagged.
func (s *Service) List(ctx context.Context, actor types.Caller) ([]ListItem, error) {
	if err := policy.Require(actor.Role, policy.ResourceUsers, policy.ActionRead); err != nil {
		return nil, err
	}
	invs, err := s.invitations.List(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	items := make([]ListItem, 0, len(invs))
	for _, inv := range invs {
		items = append(items, ListItem{Invitation: inv, Expired: inv.IsExpired(now)})
	}
	return items, nil
}

func expiredErr(inv *types.Invitation) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInvitationExpired,
		"this invitation has expired", nil,
		map[string]any{"expired_at": inv.ExpiresAt.Format(time.RFC3339)})
}

// sendInvitation dispatches the invitation email and reports whether it was
// handed off. Failures are logged and never returned.
func (s *Service) sendInvitation(ctx context.Context, actor types.Caller, inv *types.Invitation, locale string) bool {
	if s.emails == nil {
		return false
	}

	orgName := inv.OrganizationID
	if s.orgs != nil {
		if org, err := s.orgs.GetByID(ctx, inv.OrganizationID); err == nil {
			orgName = org.Name
		} else {
			s.logger.WarnContext(ctx, "invitation email: failed to load organization", "error", err)
		}
	}
	inviterName := actor.Email
	if s.users != nil {
		if u, err := s.users.GetByID(ctx, actor.UserID); err == nil {
			if u.Name != "" {
				inviterName = u.Name
			}
			if locale == "" {
				locale = u.Preferences.Language
			}
		}
	}

	acceptURL := "/invitations/accept?token=" + url.QueryEscape(inv.Token.Unmask())
	if s.links != nil {
		acceptURL = s.links.RootURL(acceptURL)
	}

	err := s.emails.Dispatch(ctx, types.EmailMessage{
		ID:        inv.ID,
		Template:  types.TemplateInvitation,
		Recipient: inv.Email,
		Locale:    locale,
		Variables: map[string]string{
			emailpkg.VarInviterName: inviterName,
			emailpkg.VarOrgName:     orgName,
			emailpkg.VarRole:        string(inv.Role),
			emailpkg.VarAcceptURL:   acceptURL,
			emailpkg.VarExpiresAt:   inv.ExpiresAt.UTC().Format(time.RFC3339),
		},
		RequestID: types.GetRequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "invitation email not sent",
			"invitation_id", inv.ID,
			"to", emailpkg.RedactEmail(inv.Email),
			"error", err,
		)
		return false
	}
	return true
}
