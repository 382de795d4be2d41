package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamEstablished is the type of the hello frame sent once the stream
// subscriptions are in place.
const streamEstablished = "streamEstablished"

// streamEventTypes are the bus events mirrored onto the WebSocket stream.
var streamEventTypes = []types.EventType{
	types.EventTransactionStatusChanged,
	types.EventChainConnected,
	types.EventChainDisconnected,
	types.EventChainError,
	types.EventChainReconnected,
	types.EventMaxReconnectAttemptsReached,
}

// StreamMessage is one WebSocket frame: a transaction transition or a chain
// connectivity change, tagged with the bus event type.
type StreamMessage struct {
	Type        string             `json:"type"`
	At          time.Time          `json:"at"`
	Transaction *TransactionChange `json:"transaction,omitempty"`
	Chain       *ChainChange       `json:"chain,omitempty"`
}

// TransactionChange is the stream view of one transaction state transition.
type TransactionChange struct {
	TransactionID string `json:"transactionId"`
	Previous      string `json:"previous"`
	Status        string `json:"status"`
	Attempt       int    `json:"attempt"`
	LastError     string `json:"lastError,omitempty"`
}

// ChainChange is the stream view of one chain connectivity change.
type ChainChange struct {
	ChainID   uint64 `json:"chainId"`
	ChainName string `json:"chainName,omitempty"`
	Attempt   uint64 `json:"attempt,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleStream upgrades the request and mirrors bus events to the client
// until the client disconnects. The optional "transaction" query parameter
// narrows the stream to one transaction id; connectivity events always pass.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	filter := c.Query("transaction")

	s.logger.WithFields(logrus.Fields{
		"clientIP": c.ClientIP(),
		"filter":   filter,
	}).Info("WebSocket stream established")

	// Buffered so a slow client sheds events instead of stalling the bus worker.
	events := make(chan eventbus.Event, 64)
	subscriber := func(event eventbus.Event) error {
		select {
		case events <- event:
		default:
		}
		return nil
	}

	tokens := make(map[types.EventType]uint64, len(streamEventTypes))
	for _, eventType := range streamEventTypes {
		tokens[eventType] = s.bus.Subscribe(eventType, subscriber)
	}
	defer func() {
		for eventType, token := range tokens {
			s.bus.Unsubscribe(eventType, token)
		}
	}()

	// Hello frame. Events published after the client reads it are guaranteed
	// to be on the stream.
	hello, err := json.Marshal(StreamMessage{Type: streamEstablished, At: time.Now()})
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, hello)
	}
	if err != nil {
		s.logger.WithError(err).Warn("Failed to send WebSocket hello frame")
		return
	}

	// Read pump. The peer never sends application data; reading is how close
	// frames get processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event := <-events:
			message, ok := streamMessageFor(event, filter)
			if !ok {
				continue
			}

			data, err := json.Marshal(message)
			if err != nil {
				s.logger.WithError(err).Warn("Failed to marshal stream message")
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// streamMessageFor converts a bus event into its stream frame. Returns false
// for payloads that do not belong on the stream or are excluded by the filter.
func streamMessageFor(event eventbus.Event, filter string) (StreamMessage, bool) {
	switch payload := event.Payload.(type) {
	case *types.TransactionEvent:
		if filter != "" && payload.TransactionID != filter {
			return StreamMessage{}, false
		}

		return StreamMessage{
			Type: string(event.Type),
			At:   payload.At,
			Transaction: &TransactionChange{
				TransactionID: payload.TransactionID,
				Previous:      payload.Previous.String(),
				Status:        payload.Status.String(),
				Attempt:       payload.Attempt,
				LastError:     payload.LastError,
			},
		}, true
	case *types.ChainEvent:
		return StreamMessage{
			Type: string(event.Type),
			At:   payload.At,
			Chain: &ChainChange{
				ChainID:   payload.ChainID,
				ChainName: payload.ChainName,
				Attempt:   payload.Attempt,
				Error:     payload.Error,
			},
		}, true
	default:
		return StreamMessage{}, false
	}
}
