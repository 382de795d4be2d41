package errors

import "github.com/pkg/errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidChainType    = errors.New("invalid chain type")
	ErrNotImplemented      = errors.New("functionality not implemented")
)

// Orchestration error taxonomy. Retryable reports how each class is treated
// by the retry scheduler.
var (
	// ErrValidation marks bad caller input. Fatal, never retried.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedRoute marks a (source, destination) pair no operation kind
	// supports. Fatal, never retried.
	ErrUnsupportedRoute = errors.New("unsupported route")

	// ErrConnection marks an unreachable or disconnected chain. Retryable.
	ErrConnection = errors.New("connection error")

	// ErrSubmission marks a message the RPC node rejected. Retryable unless
	// escalated to a fatal on-chain condition.
	ErrSubmission = errors.New("submission error")

	// ErrInsufficientBalance marks a fatal on-chain rejection: the sender
	// cannot cover the transfer and its fees. Escalates ErrSubmission to fatal.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTimeout marks an operation that exceeded its configured deadline. Retryable.
	ErrTimeout = errors.New("timeout")

	// ErrMaxRetries marks a transaction whose attempt budget is exhausted.
	// Terminal, surfaced as transaction state FAILED.
	ErrMaxRetries = errors.New("max retries exceeded")

	// ErrState marks an operation attempted on a transaction in a terminal
	// state. Surfaced immediately, never retried.
	ErrState = errors.New("invalid transaction state")
)

// Retryable reports whether err may be resolved by waiting and resubmitting.
// Fatal classifications win over retryable ones: a submission rejected for
// insufficient balance stays fatal even though submission errors retry.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnsupportedRoute),
		errors.Is(err, ErrMaxRetries),
		errors.Is(err, ErrState):
		return false
	case errors.Is(err, ErrConnection),
		errors.Is(err, ErrSubmission),
		errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}
