package errors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection", err: ErrConnection, want: true},
		{name: "timeout", err: ErrTimeout, want: true},
		{name: "submission", err: ErrSubmission, want: true},
		{name: "wrapped timeout", err: errors.Wrap(ErrTimeout, "finality watch"), want: true},
		{name: "validation", err: ErrValidation, want: false},
		{name: "unsupported route", err: ErrUnsupportedRoute, want: false},
		{name: "max retries", err: ErrMaxRetries, want: false},
		{name: "state", err: ErrState, want: false},
		{name: "insufficient balance", err: ErrInsufficientBalance, want: false},
		{name: "unclassified", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

// A node rejection that names a fatal on-chain condition must stay fatal even
// though submission errors retry by default.
func TestRetryableEscalation(t *testing.T) {
	err := errors.Wrap(ErrInsufficientBalance, "node rejected extrinsic")

	assert.False(t, Retryable(err))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
}
