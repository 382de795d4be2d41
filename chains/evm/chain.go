package evm

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/kamalbuilds/polyflow-ai-sub001/chainmanager"
	"github.com/kamalbuilds/polyflow-ai-sub001/chains/evm/signer"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/connectionmonitor"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// evm represents the base EVM parachain implementation.
type evm struct {
	config *types.ChainConfig // Chain configuration.
	logger *logrus.Logger     // Logger for logging events.
	bus    *eventbus.Bus      // Bus for connection lifecycle events.
	alive  atomic.Bool        // Last observed connection health.

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex      // Mutex for client.
	client      *ethclient.Client // Ethereum client.

	walletMutex sync.RWMutex  // Mutex for wallet.
	wallet      signer.Wallet // Wallet signing outgoing submissions.

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

// NewEvmChain creates a new EVM parachain connection.
//
// Parameters:
// - ctx: the context for managing the request.
// - config: the chain configuration.
// - bus: the bus receiving connection lifecycle events.
// - logger: the logger for logging events.
//
// Returns:
// - types.Connection: a new EVM chain connection.
// - error: an error if any issue occurs during creation.
func NewEvmChain(ctx context.Context, config *types.ChainConfig, bus *eventbus.Bus, logger *logrus.Logger) (types.Connection, error) {
	client, err := ethclient.Dial(config.Endpoint())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	chain := &evm{
		config: config,
		logger: logger,
		bus:    bus,
		client: client,
	}
	chain.alive.Store(true)

	builder := chainmanager.NewConnectionBuilder(config)
	builder.WithFeeEstimator(chain)
	builder.WithStatusWatcher(chain)
	builder.WithLifecycle(chain)

	if config.PrivateKey != "" {
		wallet, err := signer.FromHexKey(config.PrivateKey, new(big.Int).SetUint64(config.ChainID))
		if err != nil {
			client.Close()
			return nil, errors.Wrap(err, "failed to build submission wallet")
		}

		chain.walletMutex.Lock()
		chain.wallet = wallet
		chain.walletMutex.Unlock()

		builder.WithMessageSubmitter(chain)
	}

	if err := chain.initMonitor(ctx); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	return builder.Build(), nil
}

// Connected reports the last observed health of the node connection.
func (e *evm) Connected() bool {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return e.client != nil && e.alive.Load()
}

// Close should be called when the connection is no longer needed.
// It stops the connection monitor and closes the client.
func (e *evm) Close() {
	e.monitorMutex.Lock()
	if e.monitor != nil {
		e.monitor.Stop()
	}
	e.monitorMutex.Unlock()

	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()

	e.alive.Store(false)
}

// getClient returns the Ethereum client.
//
// Returns:
// - *ethclient.Client: the Ethereum client, nil after Close.
func (e *evm) getClient() *ethclient.Client {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return e.client
}

// getWallet returns the submission wallet.
//
// Returns:
// - signer.Wallet: the wallet, nil when the chain has no submission key.
func (e *evm) getWallet() signer.Wallet {
	e.walletMutex.RLock()
	defer e.walletMutex.RUnlock()
	return e.wallet
}
