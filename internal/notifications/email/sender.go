package email

import (
	"context"
	"log/slog"

	"tenantkit/internal/external"
	"tenantkit/internal/notifications/core"
	"tenantkit/internal/types"
)

// Sender renders a message and hands it to the provider, recording the
// outcome as delivery metrics.
type Sender struct {
	renderer *Renderer
	provider external.EmailProvider
	metrics  core.Metrics
	clock    types.Clock
	logger   *slog.Logger
}

func NewSender(renderer *Renderer, provider external.EmailProvider, metrics core.Metrics, clock types.Clock, logger *slog.Logger) *Sender {
	if metrics == nil {
		metrics = core.NoopMetrics{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{renderer: renderer, provider: provider, metrics: metrics, clock: clock, logger: logger}
}

// Send delivers msg. A blocklist rejection is returned as-is so callers can
// treat it as terminal with IsBlocklistError.
func (s *Sender) Send(ctx context.Context, msg types.EmailMessage) error {
	logger := s.logger.With(
		"email_id", msg.ID,
		"template", msg.Template,
		"to", RedactEmail(msg.Recipient),
	)
	if msg.RequestID != "" {
		logger = logger.With("request_id", msg.RequestID)
	}

	rendered, err := s.renderer.Render(msg)
	if err != nil {
		s.metrics.RecordDelivery(ctx, msg.Template, core.MetricFailed)
		logger.ErrorContext(ctx, "email render failed", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render email", err)
	}

	start := s.clock.Now()
	providerID, err := s.provider.Send(ctx, types.SendInput{
		To:          msg.Recipient,
		From:        s.renderer.Sender(),
		Subject:     rendered.Subject,
		BodyText:    rendered.BodyText,
		BodyHTML:    rendered.BodyHTML,
		ReferenceID: msg.ID,
	})
	s.metrics.RecordLatency(ctx, msg.Template, s.clock.Now().Sub(start))

	if err != nil {
		if IsBlocklistError(err) {
			s.metrics.RecordDelivery(ctx, msg.Template, core.MetricBlocked)
			logger.WarnContext(ctx, "email recipient blocked", "error", err)
			return err
		}
		s.metrics.RecordDelivery(ctx, msg.Template, core.MetricFailed)
		logger.ErrorContext(ctx, "email send failed", "error", err)
		return err
	}

	s.metrics.RecordDelivery(ctx, msg.Template, core.MetricSuccess)
	logger.InfoContext(ctx, "email sent", "provider_message_id", providerID)
	return nil
}

// DirectDispatcher sends inline instead of enqueueing. Used when no email
// queue is configured.
type DirectDispatcher struct {
	sender *Sender
}

func NewDirectDispatcher(sender *Sender) *DirectDispatcher {
	return &DirectDispatcher{sender: sender}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, msg types.EmailMessage) error {
	if msg.RequestID == "" {
		msg.RequestID = types.GetRequestID(ctx)
	}
	return d.sender.Send(ctx, msg)
}

var _ core.Dispatcher = (*DirectDispatcher)(nil)
