// Package organization implements the organization lifecycle (create,
// update, delete) and member administration (list, change role, remove).
package organization

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tenantkit/internal/audit"
	"tenantkit/internal/billing"
	"tenantkit/internal/external"
	"tenantkit/internal/features"
	"tenantkit/internal/policy"
	"tenantkit/internal/types"
)

// OrgRepo is the organization data access the Service needs.
type OrgRepo interface {
	Create(ctx context.Context, org *types.Organization) error
	GetByID(ctx context.Context, id string) (*types.Organization, error)
	Update(ctx context.Context, org *types.Organization) error
	Delete(ctx context.Context, id string) error
	SetStripeCustomer(ctx context.Context, id, customerID string) error
}

// MembershipRepo is the membership data access the Service needs.
type MembershipRepo interface {
	Create(ctx context.Context, m *types.Membership) error
	Get(ctx context.Context, orgID, userID string) (*types.Membership, error)
	List(ctx context.Context, orgID string) ([]*types.MemberView, error)
	ListForUser(ctx context.Context, userID string) ([]*types.UserOrganization, error)
	CountActiveOwners(ctx context.Context, orgID string) (int, error)
	UpdateRole(ctx context.Context, orgID, userID string, from, to types.Role) error
	Delete(ctx context.Context, orgID, userID string) error
}

// TxManager runs fn with transaction-scoped repositories.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, orgs OrgRepo, memberships MembershipRepo) error) error
}

// FlagChecker reports whether a feature flag is on. *features.Resolver
// satisfies it.
type FlagChecker interface {
	IsEnabled(key string) bool
}

// ServiceDeps holds the Service dependencies. Billing may be nil; Plans,
// NewID, Clock, Audit and Logger default when nil.
type ServiceDeps struct {
	Orgs        OrgRepo
	Memberships MembershipRepo
	Tx          TxManager
	Billing     external.BillingService
	Flags       FlagChecker
	Plans       billing.PlanRegistry
	Audit       audit.Recorder
	NewID       func(prefix string) string
	Clock       types.Clock
	Logger      *slog.Logger
}

// Service implements organization and member management.
type Service struct {
	orgs        OrgRepo
	memberships MembershipRepo
	tx          TxManager
	billing     external.BillingService
	flags       FlagChecker
	plans       billing.PlanRegistry
	audit       audit.Recorder
	newID       func(prefix string) string
	clock       types.Clock
	logger      *slog.Logger
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{
		orgs:        deps.Orgs,
		memberships: deps.Memberships,
		tx:          deps.Tx,
		billing:     deps.Billing,
		flags:       deps.Flags,
		plans:       deps.Plans,
		audit:       deps.Audit,
		newID:       deps.NewID,
		clock:       deps.Clock,
		logger:      deps.Logger,
	}
	if s.plans == nil {
		s.plans = billing.NewStaticPlanRegistry()
	}
	if s.audit == nil {
		s.audit = audit.Discard{}
	}
	if s.newID == nil {
		s.newID = func(prefix string) string { return prefix + uuid.NewString() }
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateInput is the data needed to create an organization.
type CreateInput struct {
	Name string
	Slug string
}

// View is an organization as its members see it.
type View struct {
	*types.Organization
	Role   types.Role          `json:"role"`
	Limits billing.PlanLimits `json:"limits"`
}

// Create makes a new organization with creator as its only owner. The
// organization and the owner membership commit together. When billing is
// enabled a Stripe customer is created afterwards; a failure there is logged
// and does not undo the organization.
func (s *Service) Create(ctx context.Context, creator *types.User, in CreateInput) (*View, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > types.MaxNameLength {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"organization name is required and must be at most 200 characters", nil,
			map[string]any{"field": "name"})
	}
	slug := strings.TrimSpace(in.Slug)
	if err := types.ValidateSlug(slug); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	org := &types.Organization{
		ID:        s.newID("org_"),
		Name:      name,
		Slug:      slug,
		Plan:      types.PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &types.Membership{
		ID:             s.newID("mem_"),
		OrganizationID: org.ID,
		UserID:         creator.ID,
		Role:           types.RoleOwner,
		Status:         types.MembershipActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context, orgs OrgRepo, memberships MembershipRepo) error {
		if err := orgs.Create(ctx, org); err != nil {
			return err
		}
		return memberships.Create(ctx, owner)
	})
	if err != nil {
		return nil, err
	}

	if s.billing != nil && s.flags != nil && s.flags.IsEnabled(features.Billing) {
		if customerID, err := s.billing.EnsureCustomer(ctx, org.ID, creator.Email); err != nil {
			s.logger.WarnContext(ctx, "failed to create billing customer",
				"organization_id", org.ID,
				"error", err,
			)
		} else if err := s.orgs.SetStripeCustomer(ctx, org.ID, customerID); err != nil {
			s.logger.WarnContext(ctx, "failed to store billing customer",
				"organization_id", org.ID,
				"error", err,
			)
		} else {
			org.StripeCustomerID = customerID
		}
	}

	s.audit.Record(ctx, audit.Event{
		OrganizationID: org.ID,
		ActorID:        creator.ID,
		Action:         types.AuditActionOrganizationCreate,
		TargetType:     types.AuditTargetOrganization,
		TargetID:       org.ID,
		Metadata:       map[string]any{"name": name, "slug": slug},
	})

	s.logger.InfoContext(ctx, "organization created", "organization_id", org.ID, "slug", slug)
	return s.view(org, types.RoleOwner), nil
}

// Get returns the caller's organization.
func (s *Service) Get(ctx context.Context, actor types.Caller) (*View, error) {
	if err := policy.Require(actor.Role, policy.ResourceOrganization, policy.ActionRead); err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	return s.view(org, actor.Role), nil
}

// ListMine returns every organization user belongs to.
func (s *Service) ListMine(ctx context.Context, userID string) ([]*types.UserOrganization, error) {
	return s.memberships.ListForUser(ctx, userID)
}

// UpdateInput carries the fields to change; nil leaves a field alone.
type UpdateInput struct {
	Name     *string
	Slug     *string
	LogoURL  *string
	Settings *types.OrganizationSettings
}

// Update changes the organization's profile. Owners and admins may update;
// a logo change is audited separately from other changes.
func (s *Service) Update(ctx context.Context, actor types.Caller, in UpdateInput) (*View, error) {
	if err := policy.Require(actor.Role, policy.ResourceOrganization, policy.ActionUpdate); err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	var changed []string
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > types.MaxNameLength {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				"organization name must be 1-200 characters", nil, map[string]any{"field": "name"})
		}
		if name != org.Name {
			org.Name = name
			changed = append(changed, "name")
		}
	}
	if in.Slug != nil && *in.Slug != org.Slug {
		if err := types.ValidateSlug(*in.Slug); err != nil {
			return nil, err
		}
		org.Slug = *in.Slug
		changed = append(changed, "slug")
	}
	if in.Settings != nil {
		org.Settings = *in.Settings
		changed = append(changed, "settings")
	}
	logoChanged := false
	if in.LogoURL != nil {
		logo := strings.TrimSpace(*in.LogoURL)
		if logo == "" {
			org.LogoURL = nil
		} else {
			org.LogoURL = &logo
		}
		logoChanged = true
	}

	if len(changed) == 0 && !logoChanged {
		return s.view(org, actor.Role), nil
	}
	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		s.audit.Record(ctx, audit.Event{
			OrganizationID: org.ID,
			ActorID:        actor.UserID,
			Action:         types.AuditActionOrganizationUpdate,
			TargetType:     types.AuditTargetOrganization,
			TargetID:       org.ID,
			Metadata:       map[string]any{"fields": changed},
		})
	}
	if logoChanged {
		s.audit.Record(ctx, audit.Event{
			OrganizationID: org.ID,
			ActorID:        actor.UserID,
			Action:         types.AuditActionOrganizationLogoUpdate,
			TargetType:     types.AuditTargetOrganization,
			TargetID:       org.ID,
			Metadata:       map[string]any{"removed": org.LogoURL == nil},
		})
	}
	return s.view(org, actor.Role), nil
}

// Delete removes the organization and everything scoped to it. Only the
// owner may delete. The audit trail is deleted with the organization, so the
// deletion is logged rather than audited.
func (s *Service) Delete(ctx context.Context, actor types.Caller) error {
	if err := policy.Require(actor.Role, policy.ResourceOrganization, policy.ActionDelete); err != nil {
		return err
	}
	if err := s.orgs.Delete(ctx, actor.OrganizationID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "organization deleted",
		"organization_id", actor.OrganizationID,
		"actor_id", actor.UserID,
		"audit_action", types.AuditActionOrganizationDelete,
	)
	return nil
}

func (s *Service) view(org *types.Organization, role types.Role) *View {
	return &View{Organization: org, Role: role, Limits: s.plans.GetLimits(org.Plan)}
}
