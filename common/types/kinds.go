package types

// OperationKind represents the kind of cross-chain operation requested.
type OperationKind string

const (
	// KindTransfer represents a plain asset transfer between two chains.
	KindTransfer OperationKind = "TRANSFER"

	// KindTeleport represents a teleport of a trusted asset between the relay
	// chain and one of its parachains.
	KindTeleport OperationKind = "TELEPORT"

	// KindReserveTransfer represents a reserve-backed transfer between two
	// parachains through the reserve chain.
	KindReserveTransfer OperationKind = "RESERVE_TRANSFER"

	// KindMultiHop represents an operation routed through one or more
	// intermediate chains, executed as an ordered sequence of hops.
	KindMultiHop OperationKind = "MULTI_HOP"
)

// String converts OperationKind to string representation
func (k OperationKind) String() string {
	return string(k)
}

// Valid reports whether the kind is one of the supported operations.
func (k OperationKind) Valid() bool {
	switch k {
	case KindTransfer, KindTeleport, KindReserveTransfer, KindMultiHop:
		return true
	default:
		return false
	}
}

// Optimization represents the caller's fee/speed preference for an operation.
type Optimization string

const (
	// OptimizationStandard targets inclusion at the prevailing fee level.
	OptimizationStandard Optimization = "STANDARD"

	// OptimizationEconomy trades longer expected duration for a lower fee.
	OptimizationEconomy Optimization = "ECONOMY"
)

// String converts Optimization to string representation
func (o Optimization) String() string {
	return string(o)
}

// ParseOptimization converts string to Optimization representation.
// Unrecognized values default to OptimizationStandard.
func ParseOptimization(s string) Optimization {
	if s == OptimizationEconomy.String() {
		return OptimizationEconomy
	}
	return OptimizationStandard
}
