package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"tenantkit/internal/types"
)

const stripeAPIBase = "https://api.stripe.com"

// StripeClient implements BillingService over the Stripe REST API.
type StripeClient struct {
	base      *BaseClient
	secretKey types.SecretString
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient builds a client against baseURL; empty means the public
// Stripe API.
func NewStripeClient(base *BaseClient, secretKey types.SecretString, baseURL string, logger *slog.Logger) *StripeClient {
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeClient{
		base:      base,
		secretKey: secretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

type stripeCustomer struct {
	ID string `json:"id"`
}

type stripeSearchResult struct {
	Data []stripeCustomer `json:"data"`
}

// EnsureCustomer searches for a customer tagged metadata.org_id = orgID and
// creates one if none exists, so retries never duplicate customers.
func (s *StripeClient) EnsureCustomer(ctx context.Context, orgID, email string) (string, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf("metadata['org_id']:'%s'", orgID))

	var found stripeSearchResult
	if err := s.call(ctx, http.MethodGet, "/v1/customers/search?"+q.Encode(), nil, &found); err != nil {
		return "", err
	}

	customerID := ""
	if len(found.Data) > 0 {
		customerID = found.Data[0].ID
	} else {
		form := url.Values{}
		form.Set("email", email)
		form.Set("metadata[org_id]", orgID)
		var created stripeCustomer
		if err := s.call(ctx, http.MethodPost, "/v1/customers", form, &created); err != nil {
			return "", err
		}
		customerID = created.ID
	}

	s.logger.InfoContext(ctx, "stripe customer resolved", "org_id", orgID, "customer_id", customerID)
	return customerID, nil
}

func (s *StripeClient) call(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build Stripe request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stripeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe response", err)
	}
	return nil
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func stripeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed stripeErrorBody
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamStripe,
		fmt.Sprintf("Stripe returned %d: %s", resp.StatusCode, msg), nil,
		map[string]any{"stripe_code": parsed.Error.Code})
}

// StripeVerifier checks Stripe-Signature headers (HMAC plus timestamp
// tolerance) with stripe-go.
type StripeVerifier struct{}

func (StripeVerifier) Verify(payload []byte, header, secret string) error {
	return webhook.ValidatePayload(payload, header, secret)
}

// PriceToPlan maps Stripe price lookup keys to plan tiers.
var PriceToPlan = map[string]types.PlanTier{
	"starter":    types.PlanStarter,
	"pro":        types.PlanPro,
	"enterprise": types.PlanEnterprise,
}

// PlanForPrice resolves a subscription price to a plan. Unknown prices map
// to free.
func PlanForPrice(lookupKey string) types.PlanTier {
	if plan, ok := PriceToPlan[lookupKey]; ok {
		return plan
	}
	return types.PlanFree
}

var (
	_ BillingService  = (*StripeClient)(nil)
	_ WebhookVerifier = StripeVerifier{}
)
