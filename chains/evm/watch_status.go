package evm

import (
	"context"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const (
	// finalityConfirmations is how many blocks must build on top of the
	// including block before it is reported final. EVM parachains settle
	// through the relay, so a shallow depth is enough.
	finalityConfirmations = 10

	// receiptPollInterval is the polling cadence for HTTP endpoints.
	receiptPollInterval = time.Second
)

// WatchStatus streams lifecycle updates for a previously submitted
// transaction into the provided channel until a terminal phase is delivered.
// Websocket endpoints are tracked through a new-head subscription, HTTP
// endpoints through receipt polling.
//
// Parameters:
// - ctx: the context bounding the watch.
// - hash: the transaction hash returned by SubmitMessage.
// - updates: the channel receiving the lifecycle updates.
//
// Returns:
// - error: nil once a terminal phase was delivered, or a connection error
//   when the node watch was interrupted.
func (e *evm) WatchStatus(ctx context.Context, hash string, updates chan<- types.StatusUpdate) error {
	client := e.getClient()
	if client == nil {
		return errors.Wrap(cerrors.ErrConnection, "client not initialized")
	}

	watch := &receiptWatch{
		chain:   e,
		hash:    hash,
		updates: updates,
	}

	if err := watch.send(ctx, types.StatusUpdate{Hash: hash, Phase: types.PhaseBroadcast, At: time.Now()}); err != nil {
		return err
	}

	if e.config.SupportsSubscriptions() {
		return watch.runWS(ctx)
	}
	return watch.runHTTP(ctx)
}

// receiptWatch tracks one transaction from broadcast to finality.
type receiptWatch struct {
	chain           *evm
	hash            string
	updates         chan<- types.StatusUpdate
	inBlockReported bool
}

// runWS follows new block headers over a websocket subscription.
func (w *receiptWatch) runWS(ctx context.Context) error {
	client := w.chain.getClient()
	if client == nil {
		return errors.Wrap(cerrors.ErrConnection, "client not initialized")
	}

	heads := make(chan *ethtypes.Header)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		w.chain.logger.WithError(err).WithField("chain", w.chain.config.Name).Warn("Head subscription unavailable, polling instead")
		return w.runHTTP(ctx)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return errors.Wrapf(cerrors.ErrConnection, "head subscription failed: %v", err)
		case header := <-heads:
			done, err := w.probe(ctx, header.Number.Uint64())
			if done || err != nil {
				return err
			}
		}
	}
}

// runHTTP follows chain progress by polling block numbers and receipts.
func (w *receiptWatch) runHTTP(ctx context.Context) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			client := w.chain.getClient()
			if client == nil {
				return errors.Wrap(cerrors.ErrConnection, "client not initialized")
			}

			currentBlock, err := client.BlockNumber(ctx)
			if err != nil {
				return errors.Wrapf(cerrors.ErrConnection, "failed to get current block number: %v", err)
			}

			done, err := w.probe(ctx, currentBlock)
			if done || err != nil {
				return err
			}
		}
	}
}

// probe checks the receipt once and reports inclusion and finality. It
// returns true when a terminal phase was delivered.
func (w *receiptWatch) probe(ctx context.Context, currentBlock uint64) (bool, error) {
	client := w.chain.getClient()
	if client == nil {
		return false, errors.Wrap(cerrors.ErrConnection, "client not initialized")
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(w.hash))
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(cerrors.ErrConnection, "failed to get transaction receipt: %v", err)
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		update := types.StatusUpdate{Hash: w.hash, Phase: types.PhaseInvalid, BlockHash: receipt.BlockHash.Hex(), At: time.Now()}
		if err := w.send(ctx, update); err != nil {
			return false, err
		}
		return true, nil
	}

	if !w.inBlockReported {
		update := types.StatusUpdate{Hash: w.hash, Phase: types.PhaseInBlock, BlockHash: receipt.BlockHash.Hex(), At: time.Now()}
		if err := w.send(ctx, update); err != nil {
			return false, err
		}
		w.inBlockReported = true
	}

	if currentBlock >= receipt.BlockNumber.Uint64()+finalityConfirmations {
		update := types.StatusUpdate{Hash: w.hash, Phase: types.PhaseFinalized, BlockHash: receipt.BlockHash.Hex(), At: time.Now()}
		if err := w.send(ctx, update); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// send delivers one update unless the watch context ends first.
func (w *receiptWatch) send(ctx context.Context, update types.StatusUpdate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.updates <- update:
		return nil
	}
}
