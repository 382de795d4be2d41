package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// writeTimeout bounds how long a single frame write may take.
	writeTimeout = 10 * time.Second

	// subscriptionBuffer is the per-subscription notification backlog. The
	// node emits a handful of lifecycle updates per extrinsic, so a small
	// buffer is enough.
	subscriptionBuffer = 16
)

// rpcRequest is an outbound JSON-RPC 2.0 frame.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcError is the error object of a JSON-RPC response.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error returns the string representation of the node error.
func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcMessage is one inbound frame, either a call response or a subscription
// notification.
type rpcMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *uint64          `json:"id,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  *rpcNotifyParams `json:"params,omitempty"`
}

// rpcNotifyParams carries the payload of a subscription notification.
type rpcNotifyParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// Client is a JSON-RPC 2.0 client over a single websocket connection to a
// Substrate node. Calls from multiple goroutines are multiplexed over the
// connection and matched back to callers by request id.
type Client struct {
	url    string
	logger *logrus.Logger

	conn       *websocket.Conn
	writeMutex sync.Mutex

	nextID atomic.Uint64

	pendingMutex sync.Mutex
	pending      map[uint64]chan rpcMessage

	subsMutex sync.Mutex
	subs      map[string]chan json.RawMessage
	unclaimed map[string][]json.RawMessage

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens a websocket connection to a Substrate node and starts the frame
// dispatch loop.
//
// Parameters:
// - ctx: the context for managing the handshake.
// - endpoint: the ws or wss node URL.
// - handshakeTimeout: the timeout for the websocket handshake.
// - logger: the logger instance.
//
// Returns:
// - *Client: the connected client.
// - error: an error if the node is unreachable.
func Dial(ctx context.Context, endpoint string, handshakeTimeout time.Duration, logger *logrus.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(cerrors.ErrConnection, "failed to dial %s: %v", endpoint, err)
	}

	client := &Client{
		url:       endpoint,
		logger:    logger,
		conn:      conn,
		pending:   make(map[uint64]chan rpcMessage),
		subs:      make(map[string]chan json.RawMessage),
		unclaimed: make(map[string][]json.RawMessage),
		closed:    make(chan struct{}),
	}

	go client.readLoop()

	return client, nil
}

// Connected reports whether the underlying connection is still usable.
func (c *Client) Connected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Close tears the connection down and fails all in-flight calls.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
		c.failPending()
	})
}

// Call performs a single JSON-RPC call and waits for the matching response.
//
// Parameters:
// - ctx: the context for managing the call.
// - method: the RPC method name.
// - params: the positional call parameters.
//
// Returns:
// - json.RawMessage: the raw result payload.
// - error: the node error, a connection error, or the context error.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if !c.Connected() {
		return nil, errors.Wrapf(cerrors.ErrConnection, "connection to %s is closed", c.url)
	}

	if params == nil {
		params = []interface{}{}
	}

	id := c.nextID.Add(1)
	respChan := make(chan rpcMessage, 1)

	c.pendingMutex.Lock()
	c.pending[id] = respChan
	c.pendingMutex.Unlock()

	request := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	if err := c.writeJSON(request); err != nil {
		c.removePending(id)
		return nil, errors.Wrapf(cerrors.ErrConnection, "failed to send %s to %s: %v", method, c.url, err)
	}

	select {
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	case <-c.closed:
		c.removePending(id)
		return nil, errors.Wrapf(cerrors.ErrConnection, "connection to %s closed while waiting for %s", c.url, method)
	case msg, ok := <-respChan:
		if !ok {
			return nil, errors.Wrapf(cerrors.ErrConnection, "connection to %s dropped during %s", c.url, method)
		}
		if msg.Error != nil {
			return nil, errors.Wrapf(msg.Error, "%s failed", method)
		}
		return msg.Result, nil
	}
}

// Subscribe performs a subscription call and routes its notifications to the
// returned subscription until it is cancelled or the connection drops.
//
// Parameters:
// - ctx: the context for managing the subscription call.
// - method: the subscribe RPC method name.
// - unsubMethod: the matching unsubscribe RPC method name.
// - params: the positional call parameters.
//
// Returns:
// - *nodeSubscription: the active subscription.
// - error: an error if the subscription call fails.
func (c *Client) Subscribe(ctx context.Context, method, unsubMethod string, params ...interface{}) (*nodeSubscription, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	var subID string
	if err := json.Unmarshal(result, &subID); err != nil {
		return nil, errors.Wrapf(err, "unexpected %s subscription id", method)
	}

	updates := make(chan json.RawMessage, subscriptionBuffer)

	c.subsMutex.Lock()
	for _, raw := range c.unclaimed[subID] {
		updates <- raw
	}
	delete(c.unclaimed, subID)
	c.subs[subID] = updates
	c.subsMutex.Unlock()

	return &nodeSubscription{
		id:          subID,
		updates:     updates,
		client:      c,
		unsubMethod: unsubMethod,
	}, nil
}

// readLoop dispatches inbound frames to pending calls and subscriptions. It
// exits when the connection drops, failing everything still in flight.
func (c *Client) readLoop() {
	for {
		var msg rpcMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if c.Connected() {
				c.logger.WithError(err).WithField("url", c.url).Warn("Node connection read failed")
			}
			c.Close()
			return
		}

		switch {
		case msg.Params != nil && msg.Method != "":
			c.dispatchNotification(msg.Params)
		case msg.ID != nil:
			c.dispatchResponse(*msg.ID, msg)
		}
	}
}

// dispatchResponse hands a call response to the goroutine waiting on it.
func (c *Client) dispatchResponse(id uint64, msg rpcMessage) {
	c.pendingMutex.Lock()
	respChan, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMutex.Unlock()

	if ok {
		respChan <- msg
	}
}

// dispatchNotification hands a subscription notification to its subscriber.
// Notifications for a subscription whose confirming response has not been
// processed yet are parked until Subscribe claims them.
func (c *Client) dispatchNotification(params *rpcNotifyParams) {
	c.subsMutex.Lock()
	defer c.subsMutex.Unlock()

	if updates, ok := c.subs[params.Subscription]; ok {
		select {
		case updates <- params.Result:
		default:
			c.logger.WithField("subscription", params.Subscription).Warn("Dropping notification, subscriber too slow")
		}
		return
	}

	backlog := c.unclaimed[params.Subscription]
	if len(backlog) >= subscriptionBuffer {
		backlog = backlog[1:]
	}
	c.unclaimed[params.Subscription] = append(backlog, params.Result)
}

// removeSubscription unregisters a subscription and closes its channel.
func (c *Client) removeSubscription(id string) {
	c.subsMutex.Lock()
	defer c.subsMutex.Unlock()

	if updates, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(updates)
	}
	delete(c.unclaimed, id)
}

// removePending unregisters an in-flight call.
func (c *Client) removePending(id uint64) {
	c.pendingMutex.Lock()
	defer c.pendingMutex.Unlock()
	delete(c.pending, id)
}

// failPending closes every in-flight call channel and every subscription so
// waiters observe the connection loss.
func (c *Client) failPending() {
	c.pendingMutex.Lock()
	for id, respChan := range c.pending {
		delete(c.pending, id)
		close(respChan)
	}
	c.pendingMutex.Unlock()

	c.subsMutex.Lock()
	for id, updates := range c.subs {
		delete(c.subs, id)
		close(updates)
	}
	c.subsMutex.Unlock()
}

// writeJSON serializes one frame to the connection. Gorilla connections
// support a single concurrent writer, so writes are serialized here.
func (c *Client) writeJSON(v interface{}) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// nodeSubscription is one active node-side subscription.
type nodeSubscription struct {
	id          string
	updates     chan json.RawMessage
	client      *Client
	unsubMethod string
	once        sync.Once
}

// Updates returns the notification channel. The channel closes when the
// subscription is cancelled or the connection drops.
func (s *nodeSubscription) Updates() <-chan json.RawMessage {
	return s.updates
}

// Unsubscribe cancels the subscription on the node and closes the
// notification channel.
func (s *nodeSubscription) Unsubscribe(ctx context.Context) {
	s.once.Do(func() {
		s.client.removeSubscription(s.id)
		if s.client.Connected() {
			if _, err := s.client.Call(ctx, s.unsubMethod, s.id); err != nil {
				s.client.logger.WithError(err).WithField("subscription", s.id).Debug("Failed to cancel node subscription")
			}
		}
	})
}
