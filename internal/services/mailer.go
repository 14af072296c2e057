package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmgilman/go/errors"
)

// Mailer is the mail-dispatch collaborator used by the OTP engine. The
// pipeline never builds mail transport itself; it hands a rendered message
// to whatever dispatcher the deployment wires in.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// WebhookMailer dispatches mail by POSTing the message as JSON to a
// transactional-mail relay endpoint.
type WebhookMailer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewWebhookMailer(endpoint, apiKey string) *WebhookMailer {
	return &WebhookMailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *WebhookMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"subject": subject,
		"html":    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.CodeNetwork, "mail relay unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Newf(errors.CodeNetwork, "mail relay returned status %d", resp.StatusCode)
	}
	return nil
}

// LogMailer logs instead of sending. Used for local runs where no relay is
// configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	slog.Info("Mail dispatch suppressed (log-only mailer).", "to", to, "subject", subject)
	return nil
}
