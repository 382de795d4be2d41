package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func streamTestSetup(t *testing.T) (*eventbus.Bus, string) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	bus := eventbus.NewBus(1, 64, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(bus.Stop)
	bus.Start(ctx)

	s := NewServer(&Config{Addr: ":0", Core: &fakeCore{}, Bus: bus, Logger: logger})

	server := httptest.NewServer(s.router)
	t.Cleanup(server.Close)

	return bus, "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
}

// dialStream connects and consumes the hello frame, so events published after
// it returns are guaranteed to reach the stream.
func dialStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	t.Cleanup(func() { conn.Close() })

	hello := readStreamMessage(t, conn)
	assert.Equal(t, streamEstablished, hello.Type)

	return conn
}

func readStreamMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()

	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	var message StreamMessage
	assert.NoError(t, json.Unmarshal(data, &message))
	return message
}

func TestStreamDeliversTransactionEvents(t *testing.T) {
	bus, url := streamTestSetup(t)
	conn := dialStream(t, url)

	assert.NoError(t, bus.Publish(eventbus.Event{
		Type: types.EventTransactionStatusChanged,
		Payload: &types.TransactionEvent{
			TransactionID: "tx-1",
			Previous:      types.StatusSubmitted,
			Status:        types.StatusInBlock,
			Attempt:       1,
			At:            time.Now(),
		},
	}))

	message := readStreamMessage(t, conn)
	assert.Equal(t, "transactionStatusChanged", message.Type)
	assert.NotNil(t, message.Transaction)
	assert.Nil(t, message.Chain)
	assert.Equal(t, "tx-1", message.Transaction.TransactionID)
	assert.Equal(t, "SUBMITTED", message.Transaction.Previous)
	assert.Equal(t, "IN_BLOCK", message.Transaction.Status)
	assert.Equal(t, 1, message.Transaction.Attempt)
}

func TestStreamHonorsTransactionFilter(t *testing.T) {
	bus, url := streamTestSetup(t)
	conn := dialStream(t, url+"?transaction=tx-2")

	for _, id := range []string{"tx-1", "tx-2"} {
		assert.NoError(t, bus.Publish(eventbus.Event{
			Type: types.EventTransactionStatusChanged,
			Payload: &types.TransactionEvent{
				TransactionID: id,
				Previous:      types.StatusPending,
				Status:        types.StatusValidated,
				At:            time.Now(),
			},
		}))
	}

	message := readStreamMessage(t, conn)
	assert.NotNil(t, message.Transaction)
	assert.Equal(t, "tx-2", message.Transaction.TransactionID)
}

func TestStreamDeliversChainEvents(t *testing.T) {
	bus, url := streamTestSetup(t)
	conn := dialStream(t, url)

	assert.NoError(t, bus.Publish(eventbus.Event{
		Type: types.EventChainDisconnected,
		Payload: &types.ChainEvent{
			Type:      types.EventChainDisconnected,
			ChainID:   1000,
			ChainName: "asset-hub",
			Error:     "read: connection reset",
			At:        time.Now(),
		},
	}))

	message := readStreamMessage(t, conn)
	assert.Equal(t, "chainDisconnected", message.Type)
	assert.Nil(t, message.Transaction)
	assert.NotNil(t, message.Chain)
	assert.Equal(t, uint64(1000), message.Chain.ChainID)
	assert.Equal(t, "asset-hub", message.Chain.ChainName)
	assert.Contains(t, message.Chain.Error, "connection reset")
}
