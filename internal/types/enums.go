package types

// Role defines authorization levels within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Invitable reports whether an invitation may grant r. Ownership is only
// ever obtained through a transfer.
func (r Role) Invitable() bool {
	return r == RoleAdmin || r == RoleMember
}

// MembershipStatus represents the lifecycle state of a membership.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipPending   MembershipStatus = "pending"
	MembershipSuspended MembershipStatus = "suspended"
)

// PlanTier identifies the billing plan for an organization.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanStarter    PlanTier = "starter"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// SubscriptionStatus mirrors the Stripe subscription lifecycle.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusPastDue  SubscriptionStatus = "past_due"
	SubStatusCanceled SubscriptionStatus = "canceled"
)

// EmailTemplate names an outbound email template.
type EmailTemplate string

const (
	TemplateInvitation           EmailTemplate = "invitation"
	TemplateOwnershipTransferred EmailTemplate = "ownership_transferred"
)

// Theme is the user's UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)
