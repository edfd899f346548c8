// Package ownership transfers the owner role of an organization from the
// acting owner to another active member.
package ownership

import (
	"context"
	"log/slog"

	"tenantkit/internal/audit"
	"tenantkit/internal/notifications/core"
	emailpkg "tenantkit/internal/notifications/email"
	"tenantkit/internal/policy"
	"tenantkit/internal/types"
)

// MembershipRepo is the membership data access a transfer needs.
type MembershipRepo interface {
	Get(ctx context.Context, orgID, userID string) (*types.Membership, error)
	Demote(ctx context.Context, orgID, userID string) error
	Promote(ctx context.Context, orgID, userID string) error
}

// TxManager runs fn with a transaction-scoped membership repository.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, memberships MembershipRepo) error) error
}

// OrgReader loads the organization for the notification email.
type OrgReader interface {
	GetByID(ctx context.Context, id string) (*types.Organization, error)
}

// UserReader loads both parties for the notification email.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// LinkBuilder builds the link to the organization. tenant.LinkBuilder
// satisfies it.
type LinkBuilder interface {
	URL(tenant, path string) string
}

// ServiceDeps holds the Service dependencies. Audit and Logger default when
// nil; Emails may be nil to skip notification.
type ServiceDeps struct {
	Memberships MembershipRepo
	Tx          TxManager
	Orgs        OrgReader
	Users       UserReader
	Emails      core.Dispatcher
	Links       LinkBuilder
	Audit       audit.Recorder
	Logger      *slog.Logger
}

// Service performs ownership transfers.
type Service struct {
	memberships MembershipRepo
	tx          TxManager
	orgs        OrgReader
	users       UserReader
	emails      core.Dispatcher
	links       LinkBuilder
	audit       audit.Recorder
	logger      *slog.Logger
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{
		memberships: deps.Memberships,
		tx:          deps.Tx,
		orgs:        deps.Orgs,
		users:       deps.Users,
		emails:      deps.Emails,
		links:       deps.Links,
		audit:       deps.Audit,
		logger:      deps.Logger,
	}
	if s.audit == nil {
		s.audit = audit.Discard{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// TransferResult names both sides of a completed transfer.
type TransferResult struct {
	OrganizationID  string `json:"organizationId"`
	PreviousOwnerID string `json:"previousOwnerId"`
	NewOwnerID      string `json:"newOwnerId"`
	EmailSent       bool   `json:"emailSent"`
}

// Transfer makes targetUserID the owner and demotes the acting owner to
// admin. Both updates commit together or not at all; if the promotion fails
// the demotion is rolled back with it.
func (s *Service) Transfer(ctx context.Context, actor types.Caller, targetUserID string) (*TransferResult, error) {
	if err := policy.RequireTransfer(actor.Role); err != nil {
		return nil, err
	}
	if targetUserID == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"new owner is required", nil, map[string]any{"field": "newOwnerId"})
	}
	if targetUserID == actor.UserID {
		return nil, types.NewAppError(types.ErrCodeValidationSelfTarget, "you already own this organization", nil)
	}

	target, err := s.memberships.Get(ctx, actor.OrganizationID, targetUserID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive() {
		return nil, types.NewAppError(types.ErrCodeNotFoundMembership, "target is not an active member", nil)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, memberships MembershipRepo) error {
		if err := memberships.Demote(ctx, actor.OrganizationID, actor.UserID); err != nil {
			return err
		}
		return memberships.Promote(ctx, actor.OrganizationID, targetUserID)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "ownership transfer failed",
			"organization_id", actor.OrganizationID,
			"target_user_id", targetUserID,
			"error", err,
		)
		return nil, err
	}

	result := &TransferResult{
		OrganizationID:  actor.OrganizationID,
		PreviousOwnerID: actor.UserID,
		NewOwnerID:      targetUserID,
	}
	result.EmailSent = s.notify(ctx, actor, targetUserID)

	s.audit.Record(ctx, audit.Event{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         types.AuditActionOwnershipTransfer,
		TargetType:     types.AuditTargetOrganization,
		TargetID:       actor.OrganizationID,
		Metadata: map[string]any{
			"previousOwnerId": actor.UserID,
			"newOwnerId":      targetUserID,
		},
	})

	s.logger.InfoContext(ctx, "ownership transferred",
		"organization_id", actor.OrganizationID,
		"previous_owner_id", actor.UserID,
		"new_owner_id", targetUserID,
	)
	return result, nil
}

// notify emails the new owner. Failures are logged only.
func (s *Service) notify(ctx context.Context, actor types.Caller, newOwnerID string) bool {
	if s.emails == nil || s.users == nil || s.orgs == nil {
		return false
	}
	newOwner, err := s.users.GetByID(ctx, newOwnerID)
	if err != nil {
		s.logger.WarnContext(ctx, "ownership email: failed to load new owner", "error", err)
		return false
	}
	org, err := s.orgs.GetByID(ctx, actor.OrganizationID)
	if err != nil {
		s.logger.WarnContext(ctx, "ownership email: failed to load organization", "error", err)
		return false
	}

	previousName := actor.Email
	if prev, err := s.users.GetByID(ctx, actor.UserID); err == nil && prev.Name != "" {
		previousName = prev.Name
	}
	orgURL := "/" + org.Slug
	if s.links != nil {
		orgURL = s.links.URL(org.Slug, "/")
	}

	err = s.emails.Dispatch(ctx, types.EmailMessage{
		ID:        "xfer_" + org.ID + "_" + newOwnerID,
		Template:  types.TemplateOwnershipTransferred,
		Recipient: newOwner.Email,
		Locale:    newOwner.Preferences.Language,
		Variables: map[string]string{
			emailpkg.VarPreviousOwnerName: previousName,
			emailpkg.VarOrgName:           org.Name,
			emailpkg.VarOrgURL:            orgURL,
		},
		RequestID: types.GetRequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "ownership email not sent",
			"to", emailpkg.RedactEmail(newOwner.Email),
			"error", err,
		)
		return false
	}
	return true
}
