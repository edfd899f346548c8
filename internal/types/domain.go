package types

import (
	"strings"
	"time"
)

// Organization is a tenant: the unit that owns memberships, invitations,
// billing state and audit history.
type Organization struct {
	ID               string               `json:"id" db:"id"`
	Name             string               `json:"name" db:"name"`
	Slug             string               `json:"slug" db:"slug"`
	Plan             PlanTier             `json:"plan" db:"plan"`
	LogoURL          *string              `json:"logo_url,omitempty" db:"logo_url"`
	Settings         OrganizationSettings `json:"settings" db:"settings"`
	StripeCustomerID string               `json:"-" db:"stripe_customer_id"`
	CreatedAt        time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at" db:"updated_at"`
}

// OrganizationSettings is the free-form settings bag stored as JSONB.
type OrganizationSettings struct {
	AutoAcceptDomainMembers AutoAcceptDomain `json:"autoAcceptDomainMembers"`
	Extra                   map[string]any   `json:"extra,omitempty"`
}

// AutoAcceptDomain lets users whose email matches Domain join without an
// explicit invitation.
type AutoAcceptDomain struct {
	Enabled bool   `json:"enabled"`
	Domain  string `json:"domain,omitempty"`
}

// UserPreferences holds per-user UI preferences.
type UserPreferences struct {
	Language string `json:"language"`
	Theme    Theme  `json:"theme"`
}

// User is an account that can belong to many organizations.
type User struct {
	ID           string  `json:"id" db:"id"`
	Email        string  `json:"email" db:"email"`
	Name         string  `json:"name" db:"name"`
	AvatarURL    *string `json:"avatar_url,omitempty" db:"avatar_url"`
	PasswordHash *string `json:"-" db:"password_hash"`

	MFAEnabled     bool         `json:"mfa_enabled" db:"mfa_enabled"`
	MFASecret      SecretString `json:"-" db:"mfa_secret"`
	MFABackupCodes []string     `json:"-" db:"mfa_backup_codes"`

	Preferences UserPreferences `json:"preferences" db:"preferences"`

	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" db:"locked_until"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Membership binds one User to one Organization with a role and status.
type Membership struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	UserID         string           `json:"user_id" db:"user_id"`
	Role           Role             `json:"role" db:"role"`
	Status         MembershipStatus `json:"status" db:"status"`
	InvitedBy      *string          `json:"invited_by,omitempty" db:"invited_by"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the membership grants access.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive
}

// MemberView is a membership joined with the user it belongs to.
type MemberView struct {
	Membership
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// UserOrganization is an organization listed for one of its members.
type UserOrganization struct {
	Organization
	Role Role `json:"role"`
}

// Invitation is a pending offer for an email address to join an
// organization. The token is delivered by email and never rendered in API
// responses.
type Invitation struct {
	ID             string       `json:"id" db:"id"`
	OrganizationID string       `json:"organization_id" db:"organization_id"`
	Email          string       `json:"email" db:"email"`
	Role           Role         `json:"role" db:"role"`
	Token          SecretString `json:"-" db:"token"`
	ExpiresAt      time.Time    `json:"expires_at" db:"expires_at"`
	InvitedBy      *string      `json:"invited_by,omitempty" db:"invited_by"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the invitation can no longer be resent or
// accepted at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InvitationTTL is how long an invitation stays acceptable.
const InvitationTTL = 7 * 24 * time.Hour

// AuditLogEntry is a write-once record of a privileged action.
type AuditLogEntry struct {
	ID             string        `json:"id" db:"id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	ActorID        *string       `json:"actor_id" db:"actor_id"`
	Action         string        `json:"action" db:"action"`
	TargetType     string        `json:"target_type" db:"target_type"`
	TargetID       string        `json:"target_id" db:"target_id"`
	Metadata       AuditMetadata `json:"metadata" db:"metadata"`
	IPAddress      *string       `json:"ip_address" db:"ip_address"`
	UserAgent      *string       `json:"user_agent" db:"user_agent"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// AuditMetadata is the arbitrary JSON payload attached to an audit entry.
type AuditMetadata map[string]any

// Session represents an authenticated user session. Only the SHA-256 hash of
// the bearer token is stored.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EmailMessage is a template-addressed outbound email, the unit passed to the
// dispatch queue and the email worker.
type EmailMessage struct {
	ID        string            `json:"id"`
	Template  EmailTemplate     `json:"template"`
	Recipient string            `json:"recipient"`
	Locale    string            `json:"locale,omitempty"`
	Variables map[string]string `json:"variables"`
	RequestID string            `json:"request_id,omitempty"`
}

// SendInput is a rendered email ready for a provider.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyText    string
	BodyHTML    string
	ReferenceID string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// CanonicalEmail normalizes an email address for storage and comparison:
// surrounding whitespace trimmed and the whole address lower-cased.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
