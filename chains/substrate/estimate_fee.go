package substrate

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// paymentInfo mirrors the fee part of the payment_queryInfo response.
type paymentInfo struct {
	PartialFee string `json:"partialFee"`
}

// EstimateFee asks the node for the dispatch fee of the encoded message.
//
// Parameters:
// - ctx: the context for managing the request.
// - message: the cross-chain message to estimate.
//
// Returns:
// - *big.Int: the estimated fee in the smallest unit of the native asset.
// - error: an error if the message cannot be encoded or the node query fails.
func (s *substrate) EstimateFee(ctx context.Context, message *types.XCMMessage) (*big.Int, error) {
	client := s.getClient()
	if client == nil {
		return nil, errors.Wrap(cerrors.ErrConnection, "node client not initialized")
	}

	encoded, err := EncodeExtrinsic(s.config, message)
	if err != nil {
		return nil, err
	}

	result, err := client.Call(ctx, "payment_queryInfo", "0x"+hex.EncodeToString(encoded))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query fee info on %s", s.config.Name)
	}

	var info paymentInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, errors.Wrapf(err, "unexpected fee info from %s", s.config.Name)
	}

	fee, ok := new(big.Int).SetString(info.PartialFee, 0)
	if !ok {
		return nil, errors.Errorf("unexpected partial fee %q from %s", info.PartialFee, s.config.Name)
	}

	return fee, nil
}
