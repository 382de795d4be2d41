package types

// ChainType selects the driver a chain connection is built with.
type ChainType string

const (
	// SUBSTRATE represents Substrate-based chains speaking JSON-RPC over WebSocket
	// (the relay chain and most parachains).
	SUBSTRATE ChainType = "SUBSTRATE"
	// EVM represents Ethereum-compatible parachains (e.g. Moonbeam, Astar EVM).
	EVM ChainType = "EVM"
	// UNKNOWN represents unknown or unsupported chain type in the system.
	UNKNOWN ChainType = "UNKNOWN"
)

// String returns the storage representation of the chain type.
func (t ChainType) String() string {
	return string(t)
}

// ParseChainType maps a stored chain type string back to its ChainType.
// Unrecognized values parse as UNKNOWN and are rejected at connection time.
func ParseChainType(s string) ChainType {
	switch s {
	case SUBSTRATE.String():
		return SUBSTRATE
	case EVM.String():
		return EVM
	default:
		return UNKNOWN
	}
}
