package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// ChannelChat is the channel name of the chat webhook sink.
const ChannelChat = "chat"

// ChatChannel posts a human-readable status line to a chat incoming webhook
// (Slack, Discord, and compatible receivers accept the same text payload).
type ChatChannel struct {
	url    string
	client *http.Client
}

// NewChatChannel creates a chat webhook delivery channel.
func NewChatChannel(url string, timeout time.Duration) *ChatChannel {
	return &ChatChannel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the channel identifier.
func (c *ChatChannel) Name() string { return ChannelChat }

// Deliver posts the rendered status line.
func (c *ChatChannel) Deliver(ctx context.Context, event *types.NotificationEvent) error {
	body, err := json.Marshal(map[string]string{"text": formatStatusLine(event)})
	if err != nil {
		return errors.Wrap(err, "failed to encode chat payload")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build chat request")
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return errors.Wrap(err, "chat request failed")
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("chat endpoint returned %s", response.Status)
	}
	return nil
}

func formatStatusLine(event *types.NotificationEvent) string {
	line := fmt.Sprintf("Transaction %s is now %s", event.TransactionID, event.Status)
	if event.LastError != "" {
		line += fmt.Sprintf(" (%s)", event.LastError)
	}
	return line
}
