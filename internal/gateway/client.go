package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tahirm09/BulkNotify/pkg/metrics"
)

// User is one addressee inside a gateway payload.
type User struct {
	UserID       string            `json:"user_id"`
	ChannelID    string            `json:"channel_id"`
	Placeholders map[string]string `json:"placeholders"`
}

// Payload is the notification gateway's send request. SourceID is a fresh
// unique token per dispatch invocation; it is the gateway's idempotency
// boundary, not ours.
type Payload struct {
	Subject          string `json:"subject,omitempty"`
	Body             string `json:"body"`
	NotificationType string `json:"notification_type"`
	Source           string `json:"source"`
	SourceID         string `json:"source_id"`
	Users            []User `json:"users"`
}

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

type Client struct {
	url    string
	client *http.Client
}

// NewClient builds a gateway client with a bounded per-call timeout. A timeout
// surfaces as a transport error from Send, never a hang.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.GatewayRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	var e struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if e.Message == "" {
		e.Message = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: e.Message}
}
