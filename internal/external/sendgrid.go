package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"tenantkit/internal/types"
)

const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClient sends pre-rendered mail through the SendGrid v3 Mail Send
// API.
type SendGridClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	logger  *slog.Logger
}

// NewSendGridClient builds a client against baseURL; empty means the public
// SendGrid API.
func NewSendGridClient(base *BaseClient, apiKey types.SecretString, baseURL string, logger *slog.Logger) *SendGridClient {
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridClient{
		base:    base,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

func buildSendGridMail(in types.SendInput) sendGridMail {
	m := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: in.To}}}},
		From:             sendGridAddress{Email: in.From.Address, Name: in.From.Name},
		Subject:          in.Subject,
	}
	// SendGrid requires text/plain before text/html.
	if in.BodyText != "" {
		m.Content = append(m.Content, sendGridContent{Type: "text/plain", Value: in.BodyText})
	}
	if in.BodyHTML != "" {
		m.Content = append(m.Content, sendGridContent{Type: "text/html", Value: in.BodyHTML})
	}
	if in.ReferenceID != "" {
		m.CustomArgs = map[string]string{"reference_id": in.ReferenceID}
	}
	return m
}

// Send returns the X-Message-Id of the accepted message. A 403 means the
// recipient is suppressed and maps to ErrCodeEmailBlocked.
func (s *SendGridClient) Send(ctx context.Context, in types.SendInput) (string, error) {
	body, err := json.Marshal(buildSendGridMail(in))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode SendGrid payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build SendGrid request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey.Unmask())

	resp, err := s.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return resp.Header.Get("X-Message-Id"), nil
	}
	return "", sendGridError(resp)
}

type sendGridErrorBody struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func sendGridError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	var parsed sendGridErrorBody
	if json.Unmarshal(raw, &parsed) == nil && len(parsed.Errors) > 0 {
		msg = parsed.Errors[0].Message
	}

	if resp.StatusCode == http.StatusForbidden {
		return types.NewAppError(types.ErrCodeEmailBlocked, "SendGrid blocked delivery: "+msg, nil)
	}
	return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("SendGrid returned %d: %s", resp.StatusCode, msg), nil)
}

var _ EmailProvider = (*SendGridClient)(nil)
