package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

const (
	// DefaultResendURL is the Resend API root.
	DefaultResendURL = "https://api.resend.com/"

	defaultTimeout = 10 * time.Second
)

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	client *resend.Client
	apiKey string
}

// NewResendSender returns a sender using the given API key and optional API root override.
func NewResendSender(apiKey, baseURL string) (*ResendSender, error) {
	apiKey = strings.TrimSpace(apiKey)
	client := resend.NewCustomClient(&http.Client{Timeout: defaultTimeout}, apiKey)

	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultResendURL
	}
	// Request paths are resolved relative to the root, so it must end with a slash.
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("resend: base url: %w", err)
	}
	client.BaseURL = u

	return &ResendSender{client: client, apiKey: apiKey}, nil
}

// Send delivers the message. Provider messages are kept in the error for operator logs only.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if s.apiKey == "" {
		return errors.New("resend: API key not configured")
	}
	if len(msg.To) == 0 {
		return errors.New("resend: no recipients")
	}
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("resend: send %q: %w", msg.Subject, err)
	}
	return nil
}
