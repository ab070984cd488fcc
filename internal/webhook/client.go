package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "X-Iconforge-Signature"
	HeaderTimestamp = "X-Iconforge-Timestamp"
	HeaderEvent     = "X-Iconforge-Event"
)

const (
	EventIconSetCompleted = "iconset.completed"
	EventIconSetFailed    = "iconset.failed"
)

// IconSetNotification is the body delivered when an icon-set job finishes.
type IconSetNotification struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	SourceKey   string    `json:"source_key"`
	ArchiveKey  string    `json:"archive_key,omitempty"`
	Icons       int       `json:"icons,omitempty"`
	Error       string    `json:"error,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	httpClient     *http.Client
	signingSecret  string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		signingSecret:  cfg.SigningSecret,
		maxAttempts:    max(1, cfg.MaxAttempts),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     max(cfg.MaxBackoff, cfg.InitialBackoff),
	}
}

// Send posts payload as signed JSON. Every attempt carries the same
// timestamp and signature so receivers can deduplicate retries. An empty
// endpoint is a no-op.
func (c *Client) Send(ctx context.Context, endpoint, event string, payload any) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	timestamp := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	headers := http.Header{
		"Content-Type":  {"application/json"},
		HeaderTimestamp: {timestamp},
		HeaderSignature: {c.sign(timestamp, body)},
		HeaderEvent:     {event},
	}

	wait := c.initialBackoff
	for attempt := 1; ; attempt++ {
		err := c.deliver(ctx, endpoint, headers, body)
		if err == nil {
			return nil
		}
		var de *deliveryError
		if attempt >= c.maxAttempts || (errors.As(err, &de) && !de.transient) {
			return fmt.Errorf("webhook delivery failed: %w", err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

func (c *Client) deliver(ctx context.Context, endpoint string, headers http.Header, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &deliveryError{err: fmt.Errorf("build webhook request: %w", err)}
	}
	req.Header = headers.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &deliveryError{err: ctxErr}
		}
		return &deliveryError{err: err, transient: true}
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &deliveryError{
		err:       fmt.Errorf("webhook returned status=%d", resp.StatusCode),
		transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
}

// deliveryError marks whether another attempt could succeed. Transport
// errors, 429 and 5xx are transient; other 4xx mean the receiver rejected
// the payload.
type deliveryError struct {
	err       error
	transient bool
}

func (e *deliveryError) Error() string { return e.err.Error() }

func (e *deliveryError) Unwrap() error { return e.err }

// Sign returns the signature header value for a timestamp and body so
// receivers and tests can verify deliveries.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) sign(timestamp string, body []byte) string {
	return Sign(c.signingSecret, timestamp, body)
}
