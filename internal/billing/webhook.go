package billing

import (
	"context"
	"encoding/json"
	"log/slog"

	"tenantkit/internal/external"
	"tenantkit/internal/types"
)

// PlanUpdater applies a plan to the organization owning a Stripe customer.
type PlanUpdater interface {
	UpdatePlanByCustomer(ctx context.Context, customerID string, plan types.PlanTier) error
}

// WebhookService verifies Stripe webhook deliveries and syncs subscription
// state onto organizations.
type WebhookService struct {
	verifier external.WebhookVerifier
	plans    PlanUpdater
	secret   types.SecretString
	logger   *slog.Logger
}

func NewWebhookService(verifier external.WebhookVerifier, plans PlanUpdater, secret types.SecretString, logger *slog.Logger) *WebhookService {
	if verifier == nil {
		verifier = external.StripeVerifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{verifier: verifier, plans: plans, secret: secret, logger: logger}
}

// stripeEvent is the minimal shape of a Stripe event envelope.
type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			Price struct {
				ID        string `json:"id"`
				LookupKey string `json:"lookup_key"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// Handle verifies and applies one webhook delivery. A bad signature or body
// is an auth or validation error. Events for unknown customers and event
// types that are not handled are acknowledged without error; a storage
// failure is returned so Stripe retries.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) error {
	if signature == "" {
		return types.NewAppError(types.ErrCodeAuthTokenMissing, "missing Stripe-Signature header", nil)
	}
	if s.secret.IsEmpty() {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "stripe webhooks are not configured", nil)
	}
	if err := s.verifier.Verify(payload, signature, s.secret.Unmask()); err != nil {
		s.logger.WarnContext(ctx, "webhook signature verification failed", "error", err)
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "webhook signature verification failed", err)
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return types.NewAppError(types.ErrCodeValidationBody, "invalid webhook event JSON", err)
	}

	logger := s.logger.With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case external.EventStripeSubCreated, external.EventStripeSubUpdated, external.EventStripeSubDeleted:
	default:
		logger.InfoContext(ctx, "ignoring unhandled webhook event type")
		return nil
	}

	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return types.NewAppError(types.ErrCodeValidationBody, "invalid subscription object", err)
	}
	if sub.Customer == "" {
		logger.WarnContext(ctx, "subscription event without customer")
		return nil
	}

	plan := planForSubscription(event.Type, sub)
	if err := s.plans.UpdatePlanByCustomer(ctx, sub.Customer, plan); err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundOrg {
			logger.WarnContext(ctx, "no organization for stripe customer", "customer_id", sub.Customer)
			return nil
		}
		return err
	}

	logger.InfoContext(ctx, "organization plan updated",
		"customer_id", sub.Customer,
		"subscription_id", sub.ID,
		"plan", plan,
	)
	return nil
}

// planForSubscription maps a subscription to the plan it entitles. Deleted
// and terminal subscriptions fall back to free.
func planForSubscription(eventType string, sub stripeSubscription) types.PlanTier {
	if eventType == external.EventStripeSubDeleted {
		return types.PlanFree
	}
	switch types.SubscriptionStatus(sub.Status) {
	case types.SubStatusActive, types.SubStatusPastDue, "trialing":
	default:
		return types.PlanFree
	}
	if len(sub.Items.Data) == 0 {
		return types.PlanFree
	}
	price := sub.Items.Data[0].Price
	key := price.LookupKey
	if key == "" {
		key = price.ID
	}
	return external.PlanForPrice(key)
}
