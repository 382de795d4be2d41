package types

// TransactionStatus represents the lifecycle state of a cross-chain transaction.
type TransactionStatus string

const (
	// StatusPending indicates that the transaction was accepted and is waiting
	// for an execution slot.
	StatusPending TransactionStatus = "PENDING"

	// StatusValidated indicates that the transaction passed validation and is
	// about to be submitted.
	StatusValidated TransactionStatus = "VALIDATED"

	// StatusSubmitted indicates that the message was handed to the source chain node.
	StatusSubmitted TransactionStatus = "SUBMITTED"

	// StatusInBlock indicates that the message was included in a block but is
	// not yet irreversible.
	StatusInBlock TransactionStatus = "IN_BLOCK"

	// StatusFinalized indicates that the message reached finality on its chain.
	StatusFinalized TransactionStatus = "FINALIZED"

	// StatusFailed indicates that a submission attempt failed. Terminal once
	// the retry budget is exhausted or the failure is fatal.
	StatusFailed TransactionStatus = "FAILED"

	// StatusRetrying indicates that a failed submission is waiting for its
	// backoff timer before the next attempt.
	StatusRetrying TransactionStatus = "RETRYING"

	// StatusCancelled indicates that the caller cancelled the transaction
	// before it completed.
	StatusCancelled TransactionStatus = "CANCELLED"

	// StatusRejected indicates that the request failed validation and was
	// never submitted.
	StatusRejected TransactionStatus = "REJECTED"
)

// String converts TransactionStatus to string representation
func (s TransactionStatus) String() string {
	return string(s)
}

// Terminal reports whether the status admits no further transitions.
// StatusFailed counts as terminal: the orchestrator parks a transaction there
// only after its retry budget is exhausted or the failure is fatal.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusFinalized, StatusFailed, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// validTransitions encodes the legal lifecycle edges, including the bounded
// retry loop and cooperative cancellation from any non-terminal state. The
// RETRYING self-edge covers attempts that fail again before reaching the
// node, so repeated failures still surface as state updates.
var validTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:   {StatusValidated, StatusRejected, StatusCancelled},
	StatusValidated: {StatusSubmitted, StatusFailed, StatusRetrying, StatusCancelled},
	StatusSubmitted: {StatusInBlock, StatusFailed, StatusRetrying, StatusCancelled},
	StatusInBlock:   {StatusFinalized, StatusSubmitted, StatusFailed, StatusRetrying, StatusCancelled},
	StatusRetrying:  {StatusSubmitted, StatusRetrying, StatusFailed, StatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle edge.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
