package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"tenantkit/internal/types"
)

// SESAPI is the subset of *sesv2.Client SESClient uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClient sends mail through Amazon SES v2 with IAM credentials. The SDK
// retries on its own, so it does not go through BaseClient.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

func NewSESClient(api SESAPI, configSetName string, logger *slog.Logger) *SESClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESClient{api: api, configSetName: configSetName, logger: logger}
}

func (s *SESClient) Send(ctx context.Context, in types.SendInput) (string, error) {
	content := &sestypes.Message{
		Subject: utf8(in.Subject),
		Body:    &sestypes.Body{},
	}
	if in.BodyHTML != "" {
		content.Body.Html = utf8(in.BodyHTML)
	}
	if in.BodyText != "" {
		content.Body.Text = utf8(in.BodyText)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(formatAddress(in.From)),
		Destination:      &sestypes.Destination{ToAddresses: []string{in.To}},
		Content:          &sestypes.EmailContent{Simple: content},
	}
	if s.configSetName != "" {
		input.ConfigurationSetName = aws.String(s.configSetName)
	}
	if in.ReferenceID != "" {
		input.EmailTags = []sestypes.MessageTag{{
			Name:  aws.String("reference_id"),
			Value: aws.String(in.ReferenceID),
		}}
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return "", mapSESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func utf8(s string) *sestypes.Content {
	return &sestypes.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

// formatAddress renders "Name <address>", or the bare address when there is
// no display name.
func formatAddress(id types.SenderIdentity) string {
	if id.Name == "" {
		return id.Address
	}
	return fmt.Sprintf("%s <%s>", id.Name, id.Address)
}

func mapSESError(err error) error {
	var rejected *sestypes.MessageRejected
	if errors.As(err, &rejected) {
		return types.NewAppError(types.ErrCodeEmailBlocked, "SES rejected the message", err)
	}
	var throttled *sestypes.TooManyRequestsException
	if errors.As(err, &throttled) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES rate limit exceeded", err)
	}
	var paused *sestypes.SendingPausedException
	if errors.As(err, &paused) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES sending is paused for this account", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SES send failed", err)
}

var _ EmailProvider = (*SESClient)(nil)
