package types

import "math/big"

// XCMMessage is one built cross-chain message, ready for fee estimation and
// submission on its source chain. Multi-hop operations build one message per hop.
//
// Fields:
// - SourceChain: the chain the message is submitted to.
// - DestChain: the chain the message targets.
// - DestParaID: the parachain id of the target; zero when targeting the relay chain.
// - Kind: the operation kind the message encodes.
// - Asset: the identifier of the transferred asset.
// - Amount: the transferred amount in minor units.
// - Beneficiary: the recipient account on the destination chain.
// - FeeAsset: the asset used to pay execution fees; empty means the native asset.
type XCMMessage struct {
	SourceChain uint64
	DestChain   uint64
	DestParaID  uint64
	Kind        OperationKind
	Asset       string
	Amount      *big.Int
	Beneficiary string
	FeeAsset    string
}
