package types

import (
	"regexp"
	"strings"
)

// Validation constraint constants.
const (
	MinSlugLength     = 3
	MaxSlugLength     = 50
	MaxNameLength     = 200
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{3,50}$`)

// ValidateSlug checks that slug is URL-safe: 3-50 characters of lowercase
// letters, digits and hyphens, not starting or ending with a hyphen.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidSlug,
			"slug must be 3-50 characters of lowercase letters, digits or hyphens", nil,
			map[string]any{"field": "slug"})
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidSlug,
			"slug must not start or end with a hyphen", nil,
			map[string]any{"field": "slug"})
	}
	return nil
}

// ValidateInvitableRole rejects roles an invitation may not grant.
func ValidateInvitableRole(role Role) error {
	if !role.Invitable() {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidRole,
			"invitations may only grant the admin or member role", nil,
			map[string]any{"field": "role", "value": string(role)})
	}
	return nil
}
