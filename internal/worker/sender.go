package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/internal/journal"
	"lattice.dev/lattice/internal/stream"
)

const defaultSendTimeout = 10 * time.Second

// WebhookSender POSTs event JSON to subscription URLs. A non-2xx
// response is a failed delivery.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

func (s *WebhookSender) Send(ctx context.Context, sub journal.Subscription, msg stream.Message) (int, error) {
	body, err := json.Marshal(msg.Event)
	if err != nil {
		return 0, fmt.Errorf("encoding event %d: %w", msg.Event.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lattice-Event", string(msg.Event.Kind))
	req.Header.Set("X-Lattice-Event-Id", strconv.FormatInt(msg.Event.ID, 10))
	req.Header.Set("X-Lattice-Delivery", strconv.FormatInt(id.New(), 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("posting to %s: %w", sub.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook %s answered %d", sub.URL, resp.StatusCode)
	}
	return resp.StatusCode, nil
}
