package chains

import (
	"context"
	"sync"

	"github.com/kamalbuilds/polyflow-ai-sub001/chains/evm"
	"github.com/kamalbuilds/polyflow-ai-sub001/chains/substrate"
	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	commontypes "github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ConnectionConstructor represents a function that constructs a new chain
// connection.
//
// Parameters:
// - ctx: the context for managing the connection establishment.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Connection: the constructed chain connection.
// - error: an error if the connection construction fails.
type ConnectionConstructor func(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Connection, error)

// ConnectionFactory defines the interface for chain connection creation.
type ConnectionFactory interface {
	// RegisterConstructor registers a new connection constructor for a given chain type.
	//
	// Parameters:
	// - chainType: the type of the chain to register.
	// - constructor: the constructor function for the chain type.
	RegisterConstructor(chainType commontypes.ChainType, constructor ConnectionConstructor)

	// CreateConnection creates a new chain connection based on the configuration.
	//
	// Parameters:
	// - ctx: the context for managing the connection establishment.
	// - config: the configuration for the chain.
	// - logger: the logger for logging purposes.
	//
	// Returns:
	// - commontypes.Connection: the created chain connection.
	// - error: an error if the connection creation fails.
	CreateConnection(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Connection, error)
}

type connectionFactory struct {
	// bus delivers connection lifecycle events of the created connections.
	bus *eventbus.Bus
	// constructors stores the mapping of chain types to their constructors.
	constructors map[commontypes.ChainType]ConnectionConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewConnectionFactory creates a new instance of the connection factory.
//
// Parameters:
// - bus: the bus receiving connection lifecycle events.
//
// Returns:
// - ConnectionFactory: the new connection factory instance.
func NewConnectionFactory(bus *eventbus.Bus) ConnectionFactory {
	factory := &connectionFactory{
		bus:          bus,
		constructors: make(map[commontypes.ChainType]ConnectionConstructor),
	}

	// Initialize with default constructors.
	factory.registerConstructors()

	return factory
}

// RegisterConstructor registers a new connection constructor.
//
// Parameters:
// - chainType: the type of the chain to register.
// - constructor: the constructor function for the chain type.
func (f *connectionFactory) RegisterConstructor(chainType commontypes.ChainType, constructor ConnectionConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateConnection creates a new chain connection based on the configuration.
//
// Parameters:
// - ctx: the context for managing the connection establishment.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Connection: the created chain connection.
// - error: an error if the chain type has no registered constructor.
func (f *connectionFactory) CreateConnection(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Connection, error) {
	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[config.ChainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, errors.Wrapf(cerrors.ErrInvalidChainType, "no constructor for chain type %s", config.ChainType)
	}

	return constructor(ctx, config, logger)
}

// registerConstructors registers the blockchain constructors for the
// connection factory instance.
func (f *connectionFactory) registerConstructors() {
	// Register Substrate chain constructor with the factory.
	f.RegisterConstructor(commontypes.SUBSTRATE, func(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Connection, error) {
		return substrate.NewSubstrateChain(ctx, config, f.bus, logger)
	})

	// Register EVM chain constructor with the factory.
	f.RegisterConstructor(commontypes.EVM, func(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Connection, error) {
		return evm.NewEvmChain(ctx, config, f.bus, logger)
	})
}
