package types

import "time"

// RetryState tracks one transaction's position in the bounded retry loop.
// Created when the transaction first fails retryably; destroyed when it
// reaches a terminal state or exhausts the attempt ceiling.
//
// Fields:
// - TransactionID: the owning transaction.
// - Attempt: the number of completed submission attempts.
// - NextEligibleTime: the earliest time the next attempt may run.
// - BaseDelay: the backoff base the delay was computed from.
type RetryState struct {
	TransactionID    string
	Attempt          int
	NextEligibleTime time.Time
	BaseDelay        time.Duration
}
