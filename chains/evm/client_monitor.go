package evm

import (
	"context"

	"github.com/kamalbuilds/polyflow-ai-sub001/connectionmonitor"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// nodeProbe adapts the chain to the connection monitor. The monitor owns the
// reconnect policy; the probe only knows how to ping the node and re-dial it.
type nodeProbe struct {
	chain *evm
}

// initMonitor wires the chain into a connection monitor and starts it.
//
// Parameters:
// - ctx: the context bounding the monitor lifetime.
//
// Returns:
// - error: an error if the monitor is already running.
func (e *evm) initMonitor(ctx context.Context) error {
	e.monitorMutex.Lock()
	defer e.monitorMutex.Unlock()

	e.monitor = connectionmonitor.NewConnectionMonitor(&nodeProbe{chain: e}, e.config, e.bus, e.logger)
	return e.monitor.Start(ctx)
}

// CheckConnection pings the node by requesting the current block number and
// records the outcome in the chain's health flag.
//
// Parameters:
// - ctx: the context for managing the probe.
//
// Returns:
// - error: an error if the client is gone or the node did not answer.
func (p *nodeProbe) CheckConnection(ctx context.Context) error {
	p.chain.clientMutex.RLock()
	client := p.chain.client
	p.chain.clientMutex.RUnlock()

	if client == nil {
		return errors.New("client not initialized")
	}

	_, err := client.BlockNumber(ctx)
	p.chain.alive.Store(err == nil)
	return err
}

// Reconnect drops the dead client and dials a fresh one. Calls in flight on
// the old client fail and surface to their callers as connection errors.
//
// Parameters:
// - ctx: the context for managing the re-dial.
//
// Returns:
// - error: an error if the endpoint cannot be dialed.
func (p *nodeProbe) Reconnect(ctx context.Context) error {
	p.chain.clientMutex.Lock()
	defer p.chain.clientMutex.Unlock()

	if p.chain.client != nil {
		p.chain.client.Close()
	}

	client, err := ethclient.Dial(p.chain.config.Endpoint())
	if err != nil {
		return err
	}

	p.chain.client = client
	p.chain.alive.Store(true)
	return nil
}
