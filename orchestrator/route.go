package orchestrator

import (
	"context"
	"math/big"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
)

// buildMessage assembles the cross-chain message for one leg. Every leg
// delivers to the final recipient; multi-hop validation already checked the
// recipient parses on each leg's destination.
func buildMessage(exec *execution, leg hop) *types.XCMMessage {
	exec.mu.Lock()
	defer exec.mu.Unlock()

	return &types.XCMMessage{
		SourceChain: leg.source.ChainID,
		DestChain:   leg.dest.ChainID,
		DestParaID:  leg.dest.ParaID,
		Kind:        leg.kind,
		Asset:       exec.tx.Asset,
		Amount:      exec.tx.Amount,
		Beneficiary: exec.tx.Recipient,
		FeeAsset:    exec.tx.FeeAsset,
	}
}

// hopTimeout returns the submission window for one leg: the caller's
// override when given, otherwise the leg's source chain default.
func (exec *execution) hopTimeout(leg hop) time.Duration {
	if exec.timeout > 0 {
		return exec.timeout
	}
	return leg.source.SubmissionTimeout()
}

// ensureQuote prices the transaction on its first attempt. Retries reuse the
// quote the submission was originally sized with.
func (o *Orchestrator) ensureQuote(exec *execution) error {
	exec.mu.Lock()
	if exec.tx.Quote != nil {
		exec.mu.Unlock()
		return nil
	}
	asset := exec.tx.FeeAsset
	if asset == "" {
		asset = exec.tx.Asset
	}
	optimization := exec.tx.Optimization
	plan := exec.plan
	sourceChain := exec.tx.SourceChain
	destChain := exec.tx.DestChain
	exec.mu.Unlock()

	quoteCtx, cancel := context.WithTimeout(exec.ctx, exec.hopTimeout(plan[0]))
	defer cancel()

	quote, err := o.aggregateQuote(quoteCtx, plan, asset, optimization, sourceChain, destChain)
	if err != nil {
		return o.mapHopError(quoteCtx, exec, err)
	}

	exec.mu.Lock()
	exec.tx.Quote = quote
	exec.mu.Unlock()
	return nil
}

// aggregateQuote prices a hop plan: per-leg quotes summed into one quote for
// the whole route. Durations add up along the path and the confidence of the
// weakest leg bounds the whole.
func (o *Orchestrator) aggregateQuote(
	ctx context.Context,
	plan []hop,
	asset string,
	optimization types.Optimization,
	sourceChain, destChain uint64,
) (*types.FeeQuote, error) {
	totalFee := new(big.Int)
	var totalDuration time.Duration
	confidence := 1.0

	for _, leg := range plan {
		quote, err := o.fees.Quote(ctx, types.RouteKey{
			SourceChain:  leg.source.ChainID,
			DestChain:    leg.dest.ChainID,
			Asset:        asset,
			Optimization: optimization,
		})
		if err != nil {
			return nil, err
		}

		totalFee.Add(totalFee, quote.EstimatedFee)
		totalDuration += quote.EstimatedDuration
		if quote.Confidence < confidence {
			confidence = quote.Confidence
		}
	}

	return &types.FeeQuote{
		Route: types.RouteKey{
			SourceChain:  sourceChain,
			DestChain:    destChain,
			Asset:        asset,
			Optimization: optimization,
		},
		EstimatedFee:      totalFee,
		EstimatedDuration: totalDuration,
		Confidence:        confidence,
		ComputedAt:        time.Now(),
	}, nil
}
