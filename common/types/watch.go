package types

import "time"

// WatchPhase represents one lifecycle phase reported by a chain node for a
// submitted message.
type WatchPhase string

const (
	// PhaseBroadcast indicates the message was gossiped to the network.
	PhaseBroadcast WatchPhase = "BROADCAST"

	// PhaseInBlock indicates the message was included in a block.
	PhaseInBlock WatchPhase = "IN_BLOCK"

	// PhaseFinalized indicates the including block became irreversible.
	PhaseFinalized WatchPhase = "FINALIZED"

	// PhaseDropped indicates the node dropped the message from its pool.
	PhaseDropped WatchPhase = "DROPPED"

	// PhaseInvalid indicates the node rejected the message as invalid.
	PhaseInvalid WatchPhase = "INVALID"
)

// String converts WatchPhase to string representation
func (p WatchPhase) String() string {
	return string(p)
}

// StatusUpdate reports one watch phase for a submitted message.
//
// Fields:
// - Hash: the hash of the watched message.
// - Phase: the reported lifecycle phase.
// - BlockHash: the including block, for inclusion and finality phases.
// - At: the time the phase was observed.
type StatusUpdate struct {
	Hash      string
	Phase     WatchPhase
	BlockHash string
	At        time.Time
}
