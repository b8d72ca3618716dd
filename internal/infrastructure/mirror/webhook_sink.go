package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cozykbin/Jipsa-bot/pkg/retry"
)

// WebhookSink posts rows as JSON to a spreadsheet-bridge webhook (e.g. an
// Apps Script endpoint).
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink posting to the given URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Append posts one row. Client errors (4xx) are permanent: retrying the
// same malformed row cannot succeed.
func (s *WebhookSink) Append(ctx context.Context, row Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return retry.Permanent(fmt.Errorf("webhook sink: encode row: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("webhook sink: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook sink: post: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("webhook sink: rejected with status %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook sink: status %d", resp.StatusCode)
	}
}
