// Package signer holds the submission key of one EVM parachain and signs
// outgoing transactions with it.
package signer

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Wallet signs submissions for a single EVM chain.
type Wallet interface {
	// SignTx signs a prepared transaction for the wallet's chain.
	//
	// Parameters:
	// - tx: the transaction to sign.
	//
	// Returns:
	// - *ethtypes.Transaction: the signed transaction.
	// - error: an error if signing fails.
	SignTx(tx *ethtypes.Transaction) (*ethtypes.Transaction, error)

	// Address returns the account submissions are sent from.
	//
	// Returns:
	// - common.Address: the submission account.
	Address() common.Address
}

// wallet binds a submission key to one chain id. The keyed transactor is
// built once at construction, so replay protection cannot drift between
// signatures.
type wallet struct {
	opts    *bind.TransactOpts
	address common.Address
}

// FromHexKey builds the submission wallet for a chain from its configured
// private key. A 0x prefix on the key is accepted.
//
// Parameters:
// - hexKey: the hex-encoded secp256k1 private key.
// - chainID: the chain the wallet signs for.
//
// Returns:
// - Wallet: the wallet bound to the chain id.
// - error: an error if the key is malformed or cannot be bound to the chain.
func FromHexKey(hexKey string, chainID *big.Int) (Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "malformed submission key")
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to bind submission key to chain")
	}

	return &wallet{
		opts:    opts,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the account submissions are sent from.
//
// Returns:
// - common.Address: the submission account.
func (w *wallet) Address() common.Address {
	return w.address
}

// SignTx signs a prepared transaction for the wallet's chain.
//
// Parameters:
// - tx: the transaction to sign.
//
// Returns:
// - *ethtypes.Transaction: the signed transaction.
// - error: an error if signing fails.
func (w *wallet) SignTx(tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	signed, err := w.opts.Signer(w.address, tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign submission")
	}
	return signed, nil
}
