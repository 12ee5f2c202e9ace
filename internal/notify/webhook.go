package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebhookNotifier implements Notifier by POSTing messages as JSON to a
// configured endpoint.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		w.client = c
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) WebhookOption {
	return func(w *WebhookNotifier) {
		w.headers = headers
	}
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:    url,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// webhookPayload is the JSON body posted to the endpoint.
type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts a message to the webhook endpoint.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookPayload{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("webhook rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("webhook returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
