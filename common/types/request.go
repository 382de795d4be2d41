package types

import (
	"math/big"
	"time"
)

// OperationRequest is a caller's request for a cross-chain operation, as
// submitted by the API layer. Validated and converted into a Transaction at intake.
//
// Fields:
// - Kind: the kind of cross-chain operation.
// - SourceChain: the chain id the operation originates from.
// - DestChain: the chain id the operation targets.
// - Asset: the identifier of the asset to move.
// - Amount: the amount in minor units.
// - Recipient: the recipient address on the destination chain.
// - Optimization: the caller's fee/speed preference.
// - FeeAsset: optional override asset used to pay fees.
// - Timeout: optional override for the submission timeout.
// - IncludeRefund: whether to request refund handling on failure.
// - Route: explicit chain id path for multi-hop operations, source to
//   destination inclusive; ignored for other kinds.
type OperationRequest struct {
	Kind          OperationKind
	SourceChain   uint64
	DestChain     uint64
	Asset         string
	Amount        *big.Int
	Recipient     string
	Optimization  Optimization
	FeeAsset      string
	Timeout       time.Duration
	IncludeRefund bool
	Route         []uint64
}

// Transaction converts the request into a new pending transaction.
func (r *OperationRequest) Transaction(id string, now time.Time) *Transaction {
	return &Transaction{
		ID:            id,
		SourceChain:   r.SourceChain,
		DestChain:     r.DestChain,
		Asset:         r.Asset,
		Amount:        r.Amount,
		Recipient:     r.Recipient,
		Kind:          r.Kind,
		Optimization:  r.Optimization,
		FeeAsset:      r.FeeAsset,
		IncludeRefund: r.IncludeRefund,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
