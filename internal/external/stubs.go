package external

import (
	"context"
	"log/slog"
	"sync"

	"tenantkit/internal/types"
)

// StubEmailProvider logs instead of sending and keeps every message in
// memory. It backs EMAIL_PROVIDER=stub for local development and tests.
type StubEmailProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []types.SendInput
}

func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, in types.SendInput) (string, error) {
	s.mu.Lock()
	s.sent = append(s.sent, in)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "stub: email not sent",
		"to", in.To,
		"subject", in.Subject,
		"reference_id", in.ReferenceID,
	)
	return "msg_stub_" + in.ReferenceID, nil
}

// Sent returns a copy of everything passed to Send.
func (s *StubEmailProvider) Sent() []types.SendInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.SendInput(nil), s.sent...)
}

// StubBillingService fabricates customer IDs without calling Stripe.
type StubBillingService struct {
	logger *slog.Logger
}

func NewStubBillingService(logger *slog.Logger) *StubBillingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubBillingService{logger: logger}
}

func (s *StubBillingService) EnsureCustomer(ctx context.Context, orgID, email string) (string, error) {
	s.logger.InfoContext(ctx, "stub: EnsureCustomer", "org_id", orgID)
	return "cus_stub_" + orgID, nil
}

var (
	_ EmailProvider  = (*StubEmailProvider)(nil)
	_ BillingService = (*StubBillingService)(nil)
)
