package types

import (
	"math/big"
	"time"
)

// Transaction is the unit of orchestrated work: one cross-chain operation
// driven from intake to a terminal state.
//
// Fields:
// - ID: the unique identifier assigned at intake.
// - SourceChain: the chain id the operation originates from.
// - DestChain: the chain id the operation targets.
// - Asset: the identifier of the transferred asset.
// - Amount: the transferred amount in minor units; integer, never floating point.
// - Recipient: the recipient address on the destination chain.
// - Kind: the kind of cross-chain operation.
// - Optimization: the caller's fee/speed preference.
// - FeeAsset: the optional override asset used to pay fees.
// - IncludeRefund: whether the caller asked for refund handling on failure.
// - Status: the current lifecycle state.
// - Attempt: the number of completed submission attempts.
// - CreatedAt: the time the request was accepted.
// - UpdatedAt: the time of the last state transition.
// - LastError: a human-readable summary of the most recent failure, if any.
// - Quote: the fee quote the submission was sized with, if obtained.
// - Hops: the ordered hop sequence for multi-hop operations; nil otherwise.
// - CurrentHop: the index of the hop currently executing.
// - Hash: the hash of the most recently submitted message.
type Transaction struct {
	ID            string
	SourceChain   uint64
	DestChain     uint64
	Asset         string
	Amount        *big.Int
	Recipient     string
	Kind          OperationKind
	Optimization  Optimization
	FeeAsset      string
	IncludeRefund bool
	Status        TransactionStatus
	Attempt       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastError     string
	Quote         *FeeQuote
	Hops          []Hop
	CurrentHop    int
	Hash          string
}

// Hop is one leg of a multi-hop operation. The orchestrator advances to the
// next hop only after the prior hop reaches inclusion.
type Hop struct {
	SourceChain uint64
	DestChain   uint64
	Hash        string
	InBlock     bool
}

// Terminal reports whether the transaction reached a terminal state.
func (t *Transaction) Terminal() bool {
	return t.Status.Terminal()
}

// Snapshot returns a shallow copy safe to hand outside the orchestrator.
// Hops are copied so callers cannot mutate the live hop sequence.
func (t *Transaction) Snapshot() *Transaction {
	cp := *t
	if t.Hops != nil {
		cp.Hops = make([]Hop, len(t.Hops))
		copy(cp.Hops, t.Hops)
	}
	return &cp
}

// Submission describes a message accepted by a chain node.
//
// Fields:
// - Hash: the hash of the submitted message.
// - ChainID: the chain the message was submitted to.
// - SubmittedAt: the time the node accepted the message.
type Submission struct {
	Hash        string
	ChainID     uint64
	SubmittedAt time.Time
}
