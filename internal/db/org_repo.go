package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tenantkit/internal/types"
)

// OrganizationRepository provides data access for the organizations table.
type OrganizationRepository struct {
	db DBTX
}

func NewOrganizationRepository(db DBTX) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// orgColumns is the column list every organization query selects, in scanOrg
// order.
const orgColumns = `o.id, o.name, o.slug, o.plan, o.logo_url, o.settings,
	o.stripe_customer_id, o.created_at, o.updated_at`

func scanOrg(row pgx.Row) (*types.Organization, error) {
	var org types.Organization
	var stripeCustomerID *string

	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Plan,
		&org.LogoURL,
		&org.Settings,
		&stripeCustomerID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeCustomerID != nil {
		org.StripeCustomerID = *stripeCustomerID
	}
	return &org, nil
}

// Create inserts a new organization. The caller sets ID and Slug. A taken
// slug returns ErrCodeConflictSlug.
func (r *OrganizationRepository) Create(ctx context.Context, org *types.Organization) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO organizations (id, name, slug, plan, logo_url, settings,
		 stripe_customer_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()), COALESCE($9, NOW()))`,
		org.ID,
		org.Name,
		org.Slug,
		org.Plan,
		org.LogoURL,
		org.Settings,
		nilIfEmpty(org.StripeCustomerID),
		nilIfZeroTime(org.CreatedAt),
		nilIfZeroTime(org.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppErrorWithDetails(types.ErrCodeConflictSlug, "organization slug is already taken", err,
				map[string]any{"slug": org.Slug})
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create organization", err)
	}
	return nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*types.Organization, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations o WHERE o.id = $1`,
		id,
	)
	return r.scanOne(row)
}

// GetBySlug resolves a tenant slug to its organization.
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*types.Organization, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations o WHERE o.slug = $1`,
		slug,
	)
	return r.scanOne(row)
}

func (r *OrganizationRepository) scanOne(row pgx.Row) (*types.Organization, error) {
	org, err := scanOrg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve organization", err)
	}
	return org, nil
}

// Update writes the mutable fields (name, slug, logo, settings).
func (r *OrganizationRepository) Update(ctx context.Context, org *types.Organization) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organizations
		 SET name = $1,
		     slug = $2,
		     logo_url = $3,
		     settings = $4,
		     updated_at = NOW()
		 WHERE id = $5`,
		org.Name,
		org.Slug,
		org.LogoURL,
		org.Settings,
		org.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppErrorWithDetails(types.ErrCodeConflictSlug, "organization slug is already taken", err,
				map[string]any{"slug": org.Slug})
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update organization", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
	}
	return nil
}

// Delete removes the organization; memberships, invitations and audit rows
// go with it through ON DELETE CASCADE.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete organization", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
	}
	return nil
}

// SetStripeCustomer links the organization to its Stripe customer.
func (r *OrganizationRepository) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organizations SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`,
		customerID, id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to link stripe customer", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOrg, "organization not found", nil)
	}
	return nil
}

// UpdatePlanByCustomer applies a plan change reported by a Stripe webhook.
func (r *OrganizationRepository) UpdatePlanByCustomer(ctx context.Context, customerID string, plan types.PlanTier) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE organizations SET plan = $1, updated_at = NOW() WHERE stripe_customer_id = $2`,
		plan, customerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update organization plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOrg, "no organization for stripe customer", nil)
	}
	return nil
}
