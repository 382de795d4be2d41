package evm

import (
	"context"
	"encoding/binary"
	"math/big"
	"strings"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

const (
	// xtokensPrecompile is the address of the cross-chain transfer precompile
	// on the supported EVM parachain runtimes.
	xtokensPrecompile = "0x0000000000000000000000000000000000000804"

	// nativeAssetPrecompile is the ERC-20 view of the native asset.
	nativeAssetPrecompile = "0x0000000000000000000000000000000000000802"

	// defaultDestWeight is the execution weight bought on the destination.
	defaultDestWeight = uint64(4_000_000_000)

	// gasLimitHeadroom scales the estimated gas before submission.
	gasLimitHeadroom = 1.1
)

// xtokensABI describes the transfer function of the cross-chain transfer
// precompile.
const xtokensABI = `[{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"currencyAddress","type":"address"},{"name":"amount","type":"uint256"},{"name":"destination","type":"tuple","components":[{"name":"parents","type":"uint8"},{"name":"interior","type":"bytes[]"}]},{"name":"weight","type":"uint64"}],"outputs":[]}]`

// xtokensLocation mirrors the precompile's multilocation tuple.
type xtokensLocation struct {
	Parents  uint8    `abi:"parents"`
	Interior [][]byte `abi:"interior"`
}

// Junction tags of the precompile's interior encoding.
const (
	junctionTagParachain    = 0x00
	junctionTagAccountId32  = 0x01
	junctionTagAccountKey20 = 0x03
	networkTagAny           = 0x00
)

// SubmitMessage signs and submits the cross-chain transfer call carrying the
// message and returns its transaction hash.
//
// Parameters:
// - ctx: the context for managing the request.
// - message: the cross-chain message to submit.
//
// Returns:
// - *types.Submission: the submission receipt with the transaction hash.
// - error: an error if the chain has no submission key or the submission fails.
func (e *evm) SubmitMessage(ctx context.Context, message *types.XCMMessage) (*types.Submission, error) {
	client := e.getClient()
	wallet := e.getWallet()
	if client == nil || wallet == nil {
		return nil, errors.Wrap(cerrors.ErrConnection, "client or wallet not initialized")
	}

	data, err := buildTransferCalldata(message)
	if err != nil {
		return nil, err
	}

	nonce, err := client.PendingNonceAt(ctx, wallet.Address())
	if err != nil {
		return nil, errors.Wrapf(cerrors.ErrConnection, "failed to get nonce: %v", err)
	}

	tx, err := e.prepareTransaction(ctx, nonce, xtokensPrecompile, big.NewInt(0), data)
	if err != nil {
		return nil, err
	}

	signedTx, err := e.signAndSendTransaction(ctx, tx)
	if err != nil {
		return nil, mapSubmitError(err)
	}

	e.logger.WithField("hash", signedTx.Hash().Hex()).WithField("chain", e.config.Name).Info("Submitted transaction")

	return &types.Submission{
		Hash:        signedTx.Hash().Hex(),
		ChainID:     e.config.ChainID,
		SubmittedAt: time.Now(),
	}, nil
}

// mapSubmitError classifies a submission failure. Balance shortfalls are not
// worth retrying; everything else may clear on a later attempt.
func mapSubmitError(err error) error {
	if strings.Contains(err.Error(), "insufficient funds") {
		return errors.Wrapf(cerrors.ErrInsufficientBalance, "node rejected transaction: %v", err)
	}
	return errors.Wrapf(cerrors.ErrSubmission, "node rejected transaction: %v", err)
}

// buildTransferCalldata packs the precompile call for the message. The
// destination location carries the target chain junction followed by the
// beneficiary account junction.
func buildTransferCalldata(message *types.XCMMessage) ([]byte, error) {
	transferAbi, err := abi.JSON(strings.NewReader(xtokensABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse transfer ABI")
	}

	account, err := beneficiaryJunction(message.Beneficiary)
	if err != nil {
		return nil, err
	}

	interior := make([][]byte, 0, 2)
	if message.DestParaID != 0 {
		para := make([]byte, 5)
		para[0] = junctionTagParachain
		binary.BigEndian.PutUint32(para[1:], uint32(message.DestParaID))
		interior = append(interior, para)
	}
	interior = append(interior, account)

	destination := xtokensLocation{
		Parents:  1,
		Interior: interior,
	}

	if message.Amount == nil || message.Amount.Sign() <= 0 {
		return nil, errors.Wrap(cerrors.ErrValidation, "transfer amount must be positive")
	}

	data, err := transferAbi.Pack(
		"transfer",
		common.HexToAddress(nativeAssetPrecompile),
		message.Amount,
		destination,
		defaultDestWeight,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack transfer data")
	}

	return data, nil
}

// beneficiaryJunction encodes the recipient account junction. An empty
// beneficiary encodes as the zero 32-byte account, used by fee dry-runs.
func beneficiaryJunction(address string) ([]byte, error) {
	if address == "" {
		out := make([]byte, 34)
		out[0] = junctionTagAccountId32
		out[33] = networkTagAny
		return out, nil
	}

	if common.IsHexAddress(address) && len(address) == 42 {
		account, err := utils.AccountBytes(address, types.AccountKey20)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, 22)
		out = append(out, junctionTagAccountKey20)
		out = append(out, account...)
		return append(out, networkTagAny), nil
	}

	account, err := utils.AccountBytes(address, types.AccountId32)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 34)
	out = append(out, junctionTagAccountId32)
	out = append(out, account...)
	return append(out, networkTagAny), nil
}

// prepareTransaction prepares a transaction with the given parameters, using
// dynamic fees when the chain exposes a base fee and legacy pricing otherwise.
//
// Parameters:
// - ctx: the context for managing the request.
// - nonce: the nonce for the transaction.
// - toAddress: the recipient address of the transaction.
// - value: the amount of native currency to send with the transaction.
// - data: the input data for the transaction.
//
// Returns:
// - *ethtypes.Transaction: the prepared transaction.
// - error: an error if the gas estimation or gas price retrieval fails.
func (e *evm) prepareTransaction(ctx context.Context, nonce uint64, toAddress string, value *big.Int, data []byte) (*ethtypes.Transaction, error) {
	estimatedGas, err := e.estimateCallGas(ctx, toAddress, value, data)
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to estimate gas")
		return nil, errors.Wrap(err, "failed to estimate gas")
	}

	gasLimit := uint64(float64(estimatedGas) * gasLimitHeadroom)
	to := common.HexToAddress(toAddress)

	client := e.getClient()
	if client == nil {
		return nil, errors.Wrap(cerrors.ErrConnection, "client not initialized")
	}

	if caps, err := e.dynamicFeeCaps(ctx); err == nil {
		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(e.config.ChainID),
			Nonce:     nonce,
			GasFeeCap: caps.gasFeeCap,
			GasTipCap: caps.gasTipCap,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(150))
	gasPrice = new(big.Int).Div(gasPrice, big.NewInt(100))

	return ethtypes.NewTransaction(
		nonce,
		to,
		value,
		gasLimit,
		gasPrice,
		data,
	), nil
}

// estimateCallGas estimates the gas required for a call from the wallet account.
func (e *evm) estimateCallGas(ctx context.Context, toAddress string, value *big.Int, data []byte) (uint64, error) {
	client := e.getClient()
	wallet := e.getWallet()
	if client == nil || wallet == nil {
		return 0, errors.New("client or wallet not initialized")
	}

	to := common.HexToAddress(toAddress)
	msg := ethereum.CallMsg{
		From:     wallet.Address(),
		To:       &to,
		Value:    value,
		GasPrice: nil,
		Data:     data,
	}

	return client.EstimateGas(ctx, msg)
}

// signAndSendTransaction signs and sends the prepared transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the prepared transaction to be signed and sent.
//
// Returns:
// - *ethtypes.Transaction: the signed and sent transaction.
// - error: an error if the client or wallet is not initialized, or if the signing or sending fails.
func (e *evm) signAndSendTransaction(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	client := e.getClient()
	wallet := e.getWallet()
	if client == nil || wallet == nil {
		return nil, errors.New("client or wallet not initialized")
	}

	signedTx, err := wallet.SignTx(tx)
	if err != nil {
		e.logger.WithError(err).Error("Failed to sign transaction")
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err = client.SendTransaction(ctx, signedTx); err != nil {
		e.logger.WithError(err).Error("Failed to send transaction")
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	return signedTx, nil
}
