package external

import (
	"context"

	"tenantkit/internal/types"
)

// EmailProvider sends one pre-rendered email and returns the provider's
// message ID.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// BillingService is the part of the payment provider the organization
// lifecycle uses.
type BillingService interface {
	// EnsureCustomer returns the Stripe customer for orgID, creating it when
	// none is tagged with the organization yet.
	EnsureCustomer(ctx context.Context, orgID, email string) (string, error)
}

// WebhookVerifier checks a webhook signature header against the signing
// secret.
type WebhookVerifier interface {
	Verify(payload []byte, header, secret string) error
}

// Stripe event types the billing webhook handles.
const (
	EventStripeSubCreated = "customer.subscription.created"
	EventStripeSubUpdated = "customer.subscription.updated"
	EventStripeSubDeleted = "customer.subscription.deleted"
)
