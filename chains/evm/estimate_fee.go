package evm

import (
	"context"
	"math/big"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// baseFeeHeadroomPct is applied to the current base fee when deriving the fee
// cap, absorbing per-block base fee growth while the transaction waits for
// inclusion.
const baseFeeHeadroomPct = 130

// feeCaps carries the dynamic fee settings for one submission.
type feeCaps struct {
	gasFeeCap *big.Int // Cap on the total price per gas unit.
	gasTipCap *big.Int // Priority tip per gas unit.
}

// EstimateFee estimates the execution fee of the message by pricing the
// cross-chain transfer call against the current gas market.
//
// Parameters:
// - ctx: the context for managing the request.
// - message: the cross-chain message to estimate.
//
// Returns:
// - *big.Int: the estimated fee in the smallest unit of the native asset.
// - error: an error if the client is not initialized or the estimation fails.
func (e *evm) EstimateFee(ctx context.Context, message *types.XCMMessage) (*big.Int, error) {
	client := e.getClient()
	if client == nil {
		return nil, errors.Wrap(cerrors.ErrConnection, "client not initialized")
	}

	data, err := buildTransferCalldata(message)
	if err != nil {
		return nil, err
	}

	from := common.Address{}
	if wallet := e.getWallet(); wallet != nil {
		from = wallet.Address()
	}

	to := common.HexToAddress(xtokensPrecompile)
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to estimate gas on %s", e.config.Name)
	}

	price, err := e.currentGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	return new(big.Int).Mul(new(big.Int).SetUint64(gas), price), nil
}

// currentGasPrice resolves the effective gas price, preferring dynamic fee
// caps and falling back to the legacy suggested price on chains without base
// fees.
func (e *evm) currentGasPrice(ctx context.Context) (*big.Int, error) {
	if caps, err := e.dynamicFeeCaps(ctx); err == nil {
		return caps.gasFeeCap, nil
	}

	client := e.getClient()
	if client == nil {
		return nil, errors.Wrap(cerrors.ErrConnection, "client not initialized")
	}

	price, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get gas price on %s", e.config.Name)
	}
	return price, nil
}

// dynamicFeeCaps derives the fee caps for a dynamic fee transaction from the
// current head. The fee cap is the buffered base fee plus the suggested tip.
// Chains without a base fee report an error and are priced with legacy gas.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - *feeCaps: the fee and tip caps for the next submission.
// - error: an error if the head cannot be fetched or carries no base fee.
func (e *evm) dynamicFeeCaps(ctx context.Context) (*feeCaps, error) {
	client := e.getClient()
	if client == nil {
		return nil, errors.New("client not initialized")
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Tip query failed, defaulting to one wei")
		tip = big.NewInt(1)
	}
	if tip.Sign() <= 0 {
		// A zero tip is valid but strands the transaction behind paying ones.
		tip = big.NewInt(1)
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chain head")
	}
	if header.BaseFee == nil {
		return nil, errors.Errorf("chain %s has no base fee", e.config.Name)
	}

	buffered := new(big.Int).Mul(header.BaseFee, big.NewInt(baseFeeHeadroomPct))
	buffered.Div(buffered, big.NewInt(100))

	feeCap := new(big.Int).Add(buffered, tip)
	if feeCap.Cmp(tip) <= 0 {
		feeCap = new(big.Int).Add(tip, header.BaseFee)
	}

	return &feeCaps{gasFeeCap: feeCap, gasTipCap: tip}, nil
}
