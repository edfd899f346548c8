package email

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"tenantkit/internal/external"
	"tenantkit/internal/types"
)

// Provider kinds accepted by NewProvider.
const (
	ProviderSES      = "ses"
	ProviderSendGrid = "sendgrid"
	ProviderStub     = "stub"
)

// ProviderConfig selects and configures an EmailProvider.
type ProviderConfig struct {
	Kind           string
	SendGridAPIKey types.SecretString
	SESConfigSet   string
}

// NewProvider builds the configured EmailProvider. awsCfg is only used for
// SES.
func NewProvider(cfg ProviderConfig, awsCfg aws.Config, logger *slog.Logger) (external.EmailProvider, error) {
	switch cfg.Kind {
	case ProviderSES:
		return external.NewSESClient(sesv2.NewFromConfig(awsCfg), cfg.SESConfigSet, logger), nil
	case ProviderSendGrid:
		if cfg.SendGridAPIKey.IsEmpty() {
			return nil, fmt.Errorf("email: sendgrid provider requires an API key")
		}
		base := external.NewBaseClient(&http.Client{Timeout: 10 * time.Second}, "sendgrid", external.DefaultRetryPolicy())
		return external.NewSendGridClient(base, cfg.SendGridAPIKey, "", logger), nil
	case ProviderStub, "":
		return external.NewStubEmailProvider(logger), nil
	default:
		return nil, fmt.Errorf("email: unknown provider %q", cfg.Kind)
	}
}
