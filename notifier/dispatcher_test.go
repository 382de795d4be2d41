package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type fakeChannel struct {
	name string
	err  error

	mu     sync.Mutex
	events []*types.NotificationEvent
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Deliver(ctx context.Context, event *types.NotificationEvent) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *fakeChannel) last() *types.NotificationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

type countingRecorder struct {
	mu        sync.Mutex
	delivered map[string]int
	failed    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		delivered: make(map[string]int),
		failed:    make(map[string]int),
	}
}

func (r *countingRecorder) RecordNotificationDelivered(channel string) {
	r.mu.Lock()
	r.delivered[channel]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordNotificationFailed(channel string) {
	r.mu.Lock()
	r.failed[channel]++
	r.mu.Unlock()
}

func (r *countingRecorder) deliveredCount(channel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered[channel]
}

func (r *countingRecorder) failedCount(channel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[channel]
}

func dispatcherTestSetup(t *testing.T, recorder Recorder, channels ...Channel) (*Dispatcher, *eventbus.Bus) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	bus := eventbus.NewBus(1, 64, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(bus.Stop)
	bus.Start(ctx)

	dispatcher := NewDispatcher(channels, time.Second, recorder, logger)
	assert.NoError(t, dispatcher.Start(ctx, bus))
	t.Cleanup(dispatcher.Stop)

	return dispatcher, bus
}

func finalizedEvent() *types.NotificationEvent {
	return &types.NotificationEvent{
		TransactionID: "tx-1",
		Status:        types.StatusFinalized,
		At:            time.Now(),
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestNotifyFansOutToEveryChannel(t *testing.T) {
	webhook := &fakeChannel{name: "webhook"}
	chat := &fakeChannel{name: "chat"}
	dispatcher, _ := dispatcherTestSetup(t, nil, webhook, chat)

	dispatcher.Notify(finalizedEvent())

	assert.True(t, waitUntil(t, time.Second, func() bool {
		return webhook.count() == 1 && chat.count() == 1
	}), "every channel receives the event")
	assert.Equal(t, "tx-1", webhook.last().TransactionID)
	assert.Equal(t, types.StatusFinalized, chat.last().Status)
}

func TestNotifyChannelFailureIsIsolated(t *testing.T) {
	failing := &fakeChannel{name: "webhook", err: errors.New("endpoint unreachable")}
	healthy := &fakeChannel{name: "chat"}
	recorder := newCountingRecorder()
	dispatcher, _ := dispatcherTestSetup(t, recorder, failing, healthy)

	dispatcher.Notify(finalizedEvent())

	assert.True(t, waitUntil(t, time.Second, func() bool {
		return recorder.failedCount("webhook") == 1 && recorder.deliveredCount("chat") == 1
	}), "the healthy channel delivers despite the failing one")
	assert.Equal(t, 1, healthy.count())
}

func TestNotifyHonorsTargets(t *testing.T) {
	webhook := &fakeChannel{name: "webhook"}
	chat := &fakeChannel{name: "chat"}
	dispatcher, _ := dispatcherTestSetup(t, nil, webhook, chat)

	event := finalizedEvent()
	event.Targets = []string{"chat"}
	dispatcher.Notify(event)

	assert.True(t, waitUntil(t, time.Second, func() bool {
		return chat.count() == 1
	}))
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, webhook.count(), "untargeted channels are skipped")
}

func TestNotifyAfterStopIsDropped(t *testing.T) {
	channel := &fakeChannel{name: "webhook"}
	dispatcher, _ := dispatcherTestSetup(t, nil, channel)

	dispatcher.Stop()
	dispatcher.Notify(finalizedEvent())

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, channel.count())
}

func TestDispatcherBridgesBusEvents(t *testing.T) {
	channel := &fakeChannel{name: "webhook"}
	_, bus := dispatcherTestSetup(t, nil, channel)

	assert.NoError(t, bus.Publish(eventbus.Event{
		Type: types.EventTransactionStatusChanged,
		Payload: &types.TransactionEvent{
			TransactionID: "tx-9",
			Previous:      types.StatusSubmitted,
			Status:        types.StatusFailed,
			Attempt:       3,
			LastError:     "submission window expired",
			At:            time.Now(),
		},
	}))

	assert.True(t, waitUntil(t, time.Second, func() bool {
		return channel.count() == 1
	}), "bus transitions reach the channels")

	received := channel.last()
	assert.Equal(t, "tx-9", received.TransactionID)
	assert.Equal(t, types.StatusFailed, received.Status)
	assert.Equal(t, "submission window expired", received.LastError)
}

func TestWebhookChannelPostsSignedPayload(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
		gotType      string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel := NewWebhookChannel(server.URL, "topsecret", time.Second)
	event := finalizedEvent()
	event.LastError = ""

	assert.NoError(t, channel.Deliver(context.Background(), event))
	assert.Equal(t, "application/json", gotType)

	var payload statusPayload
	assert.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "tx-1", payload.TransactionID)
	assert.Equal(t, "FINALIZED", payload.Status)

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestWebhookChannelReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	channel := NewWebhookChannel(server.URL, "", time.Second)
	err := channel.Deliver(context.Background(), finalizedEvent())
	assert.ErrorContains(t, err, "500")
}

func TestChatChannelPostsStatusLine(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel := NewChatChannel(server.URL, time.Second)
	event := finalizedEvent()
	event.Status = types.StatusFailed
	event.LastError = "max retries exceeded"

	assert.NoError(t, channel.Deliver(context.Background(), event))

	var payload map[string]string
	assert.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Contains(t, payload["text"], "tx-1")
	assert.Contains(t, payload["text"], "FAILED")
	assert.Contains(t, payload["text"], "max retries exceeded")
}

func TestEmailMessageRendering(t *testing.T) {
	channel := NewEmailChannel("smtp.example.com:587", "", "", "ops@example.com",
		[]string{"oncall@example.com", "audit@example.com"})

	event := finalizedEvent()
	event.Status = types.StatusFailed
	event.LastError = "connection error"

	message := string(channel.message(event))
	assert.Contains(t, message, "From: ops@example.com\r\n")
	assert.Contains(t, message, "To: oncall@example.com, audit@example.com\r\n")
	assert.Contains(t, message, "Subject: Transaction tx-1 FAILED\r\n")
	assert.Contains(t, message, "Last error: connection error")
}
