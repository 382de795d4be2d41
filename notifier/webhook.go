package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// ChannelWebhook is the channel name of the JSON webhook sink.
const ChannelWebhook = "webhook"

// SignatureHeader carries the hex HMAC-SHA256 of the request body, computed
// with the configured shared secret.
const SignatureHeader = "X-Polyflow-Signature"

// statusPayload is the JSON body shared by the webhook and Kafka sinks.
type statusPayload struct {
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"`
	LastError     string    `json:"lastError,omitempty"`
	At            time.Time `json:"at"`
}

func marshalStatusPayload(event *types.NotificationEvent) ([]byte, error) {
	return json.Marshal(statusPayload{
		TransactionID: event.TransactionID,
		Status:        event.Status.String(),
		LastError:     event.LastError,
		At:            event.At,
	})
}

// WebhookChannel POSTs status payloads to a configured HTTP endpoint. When a
// shared secret is set the body is signed so the receiver can authenticate
// the sender.
type WebhookChannel struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookChannel creates a webhook delivery channel.
//
// Parameters:
// - url: the endpoint to POST payloads to.
// - secret: the optional shared secret for request signing; empty disables it.
// - timeout: the HTTP client timeout.
//
// Returns:
// - *WebhookChannel: the new channel instance.
func NewWebhookChannel(url, secret string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the channel identifier.
func (c *WebhookChannel) Name() string { return ChannelWebhook }

// Deliver POSTs the event as JSON and treats any non-2xx response as a failure.
func (c *WebhookChannel) Deliver(ctx context.Context, event *types.NotificationEvent) error {
	body, err := marshalStatusPayload(event)
	if err != nil {
		return errors.Wrap(err, "failed to encode webhook payload")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}
	request.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		request.Header.Set(SignatureHeader, signBody(body, c.secret))
	}

	response, err := c.client.Do(request)
	if err != nil {
		return errors.Wrap(err, "webhook request failed")
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("webhook endpoint returned %s", response.Status)
	}
	return nil
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
