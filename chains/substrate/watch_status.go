package substrate

import (
	"context"
	"encoding/json"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// WatchStatus streams lifecycle updates for a previously submitted extrinsic
// into the provided channel until a terminal phase is delivered.
//
// Parameters:
// - ctx: the context bounding the watch.
// - hash: the extrinsic hash returned by SubmitMessage.
// - updates: the channel receiving the lifecycle updates.
//
// Returns:
// - error: nil once a terminal phase was delivered, a state error for an
//   unknown hash, or a connection error when the node watch was interrupted.
func (s *substrate) WatchStatus(ctx context.Context, hash string, updates chan<- types.StatusUpdate) error {
	s.watchesMutex.Lock()
	watch, ok := s.watches[hash]
	s.watchesMutex.Unlock()

	if !ok {
		return errors.Wrapf(cerrors.ErrState, "no submission watch for %s", hash)
	}

	for {
		select {
		case <-ctx.Done():
			// The caller abandoned the watch; nobody else will claim it.
			s.removeWatch(hash)
			return ctx.Err()
		case update, open := <-watch.updates:
			if !open {
				s.removeWatch(hash)
				return errors.Wrapf(cerrors.ErrConnection, "watch for %s interrupted", hash)
			}

			select {
			case <-ctx.Done():
				s.removeWatch(hash)
				return ctx.Err()
			case updates <- update:
			}

			if terminalPhase(update.Phase) {
				s.removeWatch(hash)
				return nil
			}
		}
	}
}

// removeWatch drops a submission watch from the registry.
func (s *substrate) removeWatch(hash string) {
	s.watchesMutex.Lock()
	defer s.watchesMutex.Unlock()
	delete(s.watches, hash)
}

// terminalPhase reports whether the phase ends the watch.
func terminalPhase(phase types.WatchPhase) bool {
	switch phase {
	case types.PhaseFinalized, types.PhaseDropped, types.PhaseInvalid:
		return true
	default:
		return false
	}
}

// parseExtrinsicStatus converts one author_extrinsicUpdate payload into a
// status update. The node reports pool-only states as bare strings and all
// progress states as single-key objects.
func parseExtrinsicStatus(hash string, raw json.RawMessage) (*types.StatusUpdate, bool, error) {
	now := time.Now()

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		switch plain {
		case "ready":
			return &types.StatusUpdate{Hash: hash, Phase: types.PhaseBroadcast, At: now}, false, nil
		case "future":
			return nil, false, nil
		default:
			return nil, false, errors.Errorf("unknown extrinsic status %q", plain)
		}
	}

	var status map[string]json.RawMessage
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false, errors.Wrap(err, "failed to decode extrinsic status")
	}

	blockHash := func(key string) string {
		var h string
		_ = json.Unmarshal(status[key], &h)
		return h
	}

	switch {
	case hasKey(status, "broadcast"), hasKey(status, "retracted"):
		return &types.StatusUpdate{Hash: hash, Phase: types.PhaseBroadcast, At: now}, false, nil
	case hasKey(status, "inBlock"):
		return &types.StatusUpdate{Hash: hash, Phase: types.PhaseInBlock, BlockHash: blockHash("inBlock"), At: now}, false, nil
	case hasKey(status, "finalized"):
		return &types.StatusUpdate{Hash: hash, Phase: types.PhaseFinalized, BlockHash: blockHash("finalized"), At: now}, true, nil
	case hasKey(status, "dropped"), hasKey(status, "finalityTimeout"):
		return &types.StatusUpdate{Hash: hash, Phase: types.PhaseDropped, At: now}, true, nil
	case hasKey(status, "invalid"), hasKey(status, "usurped"):
		return &types.StatusUpdate{Hash: hash, Phase: types.PhaseInvalid, At: now}, true, nil
	default:
		return nil, false, errors.New("unknown extrinsic status object")
	}
}

// hasKey reports whether the decoded status object carries the given state.
func hasKey(status map[string]json.RawMessage, key string) bool {
	_, ok := status[key]
	return ok
}
