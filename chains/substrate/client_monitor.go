package substrate

import (
	"context"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/connectionmonitor"

	"github.com/pkg/errors"
)

// nodeProbe adapts the chain to the connection monitor. The monitor owns the
// reconnect policy; the probe only knows how to ping the node and re-dial it.
type nodeProbe struct {
	chain *substrate
}

// initMonitor wires the chain into a connection monitor and starts it.
//
// Parameters:
// - ctx: the context bounding the monitor lifetime.
//
// Returns:
// - error: an error if the monitor is already running.
func (s *substrate) initMonitor(ctx context.Context) error {
	s.monitorMutex.Lock()
	defer s.monitorMutex.Unlock()

	s.monitor = connectionmonitor.NewConnectionMonitor(&nodeProbe{chain: s}, s.config, s.bus, s.logger)
	return s.monitor.Start(ctx)
}

// CheckConnection pings the node with a system_health query.
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

	_, err := client.Call(ctx, "system_health")
	return err
}

// Reconnect drops the dead client and dials a fresh websocket connection.
// Watches attached to the previous connection are interrupted and their
// callers resubmit.
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

	client, err := Dial(ctx, p.chain.config.Endpoint(), types.DefaultHandshakeTimeout, p.chain.logger)
	if err != nil {
		return err
	}

	p.chain.client = client
	return nil
}
