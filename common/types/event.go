package types

import (
	"time"
)

// EventType identifies a bus event emitted by the core.
type EventType string

const (
	// EventChainConnected is emitted when a chain connection becomes live.
	EventChainConnected EventType = "chainConnected"

	// EventChainDisconnected is emitted when a live connection is lost unexpectedly.
	EventChainDisconnected EventType = "chainDisconnected"

	// EventChainError is emitted when a reconnect attempt fails. The connection
	// may still recover on a later attempt.
	EventChainError EventType = "chainError"

	// EventChainReconnected is emitted when a lost connection is restored.
	EventChainReconnected EventType = "chainReconnected"

	// EventMaxReconnectAttemptsReached is emitted when the reconnect loop gives
	// up on a chain. Terminal for that connection.
	EventMaxReconnectAttemptsReached EventType = "maxReconnectAttemptsReached"

	// EventTransactionStatusChanged is emitted on every transaction state transition.
	EventTransactionStatusChanged EventType = "transactionStatusChanged"
)

// ChainEvent describes a connectivity change on one chain.
//
// Fields:
// - Type: the kind of connectivity change.
// - ChainID: the chain the event concerns.
// - ChainName: the display name of the chain.
// - Attempt: the reconnect attempt number, for reconnect events.
// - Error: the failure message, when the event reports a failure.
// - At: the time the event occurred.
type ChainEvent struct {
	Type      EventType
	ChainID   uint64
	ChainName string
	Attempt   uint64
	Error     string
	At        time.Time
}

// TransactionEvent describes one transaction state transition.
//
// Fields:
// - TransactionID: the transaction that changed.
// - Previous: the state before the transition.
// - Status: the state after the transition.
// - Attempt: the attempt counter at transition time.
// - LastError: the failure summary, when the transition records a failure.
// - At: the time of the transition.
type TransactionEvent struct {
	TransactionID string
	Previous      TransactionStatus
	Status        TransactionStatus
	Attempt       int
	LastError     string
	At            time.Time
}

// NotificationEvent is the fire-and-forget payload fanned out to configured
// notification channels. Not persisted by the core.
//
// Fields:
// - TransactionID: the transaction the notification concerns.
// - Status: the new lifecycle state.
// - LastError: the failure summary for failure states.
// - At: the time of the transition.
// - Targets: the channel names to deliver to; empty means every configured channel.
type NotificationEvent struct {
	TransactionID string
	Status        TransactionStatus
	LastError     string
	At            time.Time
	Targets       []string
}
