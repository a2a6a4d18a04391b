package events

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"alchemiser/src/model"
)

const (
	SignatureHeader = "X-Alchemiser-Signature"
	EventTypeHeader = "X-Alchemiser-Event"

	defaultWebhookTimeout = 10 * time.Second
	defaultWebhookRetries = 3
	defaultWebhookWait    = 500 * time.Millisecond
	defaultWebhookMaxWait = 5 * time.Second
)

// Webhook POSTs each event as JSON to a fixed URL.
type Webhook struct {
	url    string
	secret string
	http   *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// NewWebhook builds a webhook publisher. A non-empty secret signs every body
// with HMAC-SHA256.
func NewWebhook(url, secret string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(defaultWebhookRetries).
		SetRetryWaitTime(defaultWebhookWait).
		SetRetryMaxWaitTime(defaultWebhookMaxWait).
		AddRetryCondition(isRetryableResp)
	return &Webhook{url: url, secret: secret, http: client}
}

// WithClient swaps the underlying resty client, used to shorten retries in tests.
func (w *Webhook) WithClient(c *resty.Client) *Webhook {
	w.http = c.AddRetryCondition(isRetryableResp)
	return w
}

func (w *Webhook) Publish(ctx context.Context, event model.ErrorNotificationEvent) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	req := w.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(EventTypeHeader, event.EventType).
		SetBody(body)
	if w.secret != "" {
		req.SetHeader(SignatureHeader, "sha256="+Sign(body, w.secret))
	}

	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("%w: webhook: %v", ErrPublish, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: webhook: HTTP %d", ErrPublish, resp.StatusCode())
	}
	return nil
}

// Ping checks the endpoint answers. Any status below 500 counts as reachable.
func (w *Webhook) Ping(ctx context.Context) error {
	resp, err := w.http.R().SetContext(ctx).Head(w.url)
	if err != nil {
		return fmt.Errorf("%w: webhook unreachable: %v", ErrPublish, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("%w: webhook: HTTP %d", ErrPublish, resp.StatusCode())
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
