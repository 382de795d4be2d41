package substrate

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// watchBuffer is the per-submission update backlog kept until the caller
// attaches a status watch.
const watchBuffer = 16

// extrinsicWatch buffers lifecycle updates for one submitted extrinsic.
type extrinsicWatch struct {
	hash    string
	updates chan types.StatusUpdate
}

// SubmitMessage encodes the message, submits it to the node and starts
// collecting its lifecycle updates. The updates are consumed through
// WatchStatus using the returned hash.
//
// Parameters:
// - ctx: the context for managing the request.
// - message: the cross-chain message to submit.
//
// Returns:
// - *types.Submission: the submission receipt with the extrinsic hash.
// - error: an error if encoding fails or the node rejects the extrinsic.
func (s *substrate) SubmitMessage(ctx context.Context, message *types.XCMMessage) (*types.Submission, error) {
	client := s.getClient()
	if client == nil {
		return nil, errors.Wrap(cerrors.ErrConnection, "node client not initialized")
	}

	encoded, err := EncodeExtrinsic(s.config, message)
	if err != nil {
		return nil, err
	}

	hash := ExtrinsicHash(encoded)

	sub, err := client.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", "0x"+hex.EncodeToString(encoded))
	if err != nil {
		return nil, s.mapSubmitError(err)
	}

	watch := &extrinsicWatch{
		hash:    hash,
		updates: make(chan types.StatusUpdate, watchBuffer),
	}

	s.watchesMutex.Lock()
	s.watches[hash] = watch
	s.watchesMutex.Unlock()

	go s.pumpStatus(sub, watch)

	s.logger.WithField("hash", hash).WithField("chain", s.config.Name).Info("Submitted extrinsic")

	return &types.Submission{
		Hash:        hash,
		ChainID:     s.config.ChainID,
		SubmittedAt: time.Now(),
	}, nil
}

// mapSubmitError classifies a submission failure. Transport failures keep
// their connection classification; fee payment failures are reported by the
// node as custom 1010 errors and are not worth retrying.
func (s *substrate) mapSubmitError(err error) error {
	if errors.Is(err, cerrors.ErrConnection) {
		return err
	}
	if strings.Contains(err.Error(), "Inability to pay") {
		return errors.Wrapf(cerrors.ErrInsufficientBalance, "node rejected extrinsic: %v", err)
	}
	return errors.Wrapf(cerrors.ErrSubmission, "node rejected extrinsic: %v", err)
}

// pumpStatus converts node notifications into status updates until a terminal
// phase arrives or the connection drops.
func (s *substrate) pumpStatus(sub *nodeSubscription, watch *extrinsicWatch) {
	terminal := false

	for raw := range sub.Updates() {
		update, isTerminal, err := parseExtrinsicStatus(watch.hash, raw)
		if err != nil {
			s.logger.WithError(err).WithField("hash", watch.hash).Debug("Skipping unrecognized extrinsic status")
			continue
		}
		if update == nil {
			continue
		}

		select {
		case watch.updates <- *update:
		default:
			s.logger.WithField("hash", watch.hash).Warn("Dropping extrinsic status, watcher too slow")
		}

		if isTerminal {
			terminal = true
			break
		}
	}

	if terminal {
		unsubCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		sub.Unsubscribe(unsubCtx)
		cancel()
	}

	close(watch.updates)
}
