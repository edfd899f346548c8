// Package email renders template-addressed messages into translated emails
// and delivers them through an external EmailProvider (SES, SendGrid or the
// local stub).
package email

import (
	"errors"

	"tenantkit/internal/types"
)

// ErrRecipientBlocked means the provider refuses to deliver to the
// recipient. Retrying will not help.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// IsBlocklistError reports whether err is a terminal recipient rejection,
// either the sentinel or an AppError with ErrCodeEmailBlocked.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	return types.CodeOf(err) == types.ErrCodeEmailBlocked
}
