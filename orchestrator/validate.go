package orchestrator

import (
	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/utils"

	"github.com/pkg/errors"
)

// validateRequest checks an operation request and returns the hop plan it
// decomposes into. Every failure is fatal: a rejected request never enters
// the retry path.
//
// Parameters:
// - request: the operation request to validate.
//
// Returns:
// - []hop: the ordered hop plan, one entry for single-leg operations.
// - error: a validation or unsupported-route error describing the rejection.
func (o *Orchestrator) validateRequest(request *types.OperationRequest) ([]hop, error) {
	if !request.Kind.Valid() {
		return nil, errors.Wrapf(cerrors.ErrValidation, "unknown operation kind %q", request.Kind)
	}

	if request.Amount == nil || request.Amount.Sign() <= 0 {
		return nil, errors.Wrap(cerrors.ErrValidation, "amount must be a positive integer in minor units")
	}

	if request.SourceChain == request.DestChain {
		return nil, errors.Wrapf(cerrors.ErrUnsupportedRoute,
			"source and destination are both chain %d", request.SourceChain)
	}

	source, ok := o.configs[request.SourceChain]
	if !ok {
		return nil, errors.Wrapf(cerrors.ErrUnsupportedRoute, "unknown source chain %d", request.SourceChain)
	}
	dest, ok := o.configs[request.DestChain]
	if !ok {
		return nil, errors.Wrapf(cerrors.ErrUnsupportedRoute, "unknown destination chain %d", request.DestChain)
	}

	if err := utils.ValidateAddress(request.Recipient, dest.AddressFormat); err != nil {
		return nil, err
	}

	if request.Kind == types.KindMultiHop {
		return o.planMultiHop(request)
	}

	if request.Kind == types.KindTeleport && source.Relay == dest.Relay {
		return nil, errors.Wrapf(cerrors.ErrUnsupportedRoute,
			"teleport requires a relay to parachain pair, got chains %d and %d",
			request.SourceChain, request.DestChain)
	}

	return []hop{{source: source, dest: dest, kind: request.Kind}}, nil
}

// planMultiHop decomposes an explicit route into an ordered hop plan. The
// route lists chain ids source to destination inclusive; each adjacent pair
// becomes one hop executed as a teleport or reserve transfer depending on
// whether it touches the relay chain.
func (o *Orchestrator) planMultiHop(request *types.OperationRequest) ([]hop, error) {
	route := request.Route
	if len(route) < 3 {
		return nil, errors.Wrap(cerrors.ErrValidation,
			"multi-hop operations need a route with at least one intermediate chain")
	}
	if route[0] != request.SourceChain || route[len(route)-1] != request.DestChain {
		return nil, errors.Wrap(cerrors.ErrValidation,
			"multi-hop route must start at the source chain and end at the destination chain")
	}

	plan := make([]hop, 0, len(route)-1)
	for i := 1; i < len(route); i++ {
		if route[i] == route[i-1] {
			return nil, errors.Wrapf(cerrors.ErrValidation, "multi-hop route repeats chain %d", route[i])
		}

		source, ok := o.configs[route[i-1]]
		if !ok {
			return nil, errors.Wrapf(cerrors.ErrUnsupportedRoute, "unknown chain %d in route", route[i-1])
		}
		dest, ok := o.configs[route[i]]
		if !ok {
			return nil, errors.Wrapf(cerrors.ErrUnsupportedRoute, "unknown chain %d in route", route[i])
		}

		// Every leg delivers to the final recipient, so the account must
		// parse on each leg's destination, not only the last.
		if err := utils.ValidateAddress(request.Recipient, dest.AddressFormat); err != nil {
			return nil, errors.Wrapf(cerrors.ErrUnsupportedRoute,
				"recipient cannot receive on intermediate chain %d: %v", route[i], err)
		}

		plan = append(plan, hop{source: source, dest: dest, kind: hopKind(source, dest)})
	}

	return plan, nil
}

// hopKind selects the operation a single hop executes as: legs touching the
// relay chain move trust-equivalent assets and teleport, parachain to
// parachain legs go through the reserve.
func hopKind(source, dest *types.ChainConfig) types.OperationKind {
	if source.Relay != dest.Relay {
		return types.KindTeleport
	}
	return types.KindReserveTransfer
}
