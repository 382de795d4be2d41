package substrate

import (
	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/utils"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Pallet and call indexes of the XCM dispatchables on the supported runtimes.
// The relay runtime hosts the pallet at a different index than the common
// parachain runtimes.
const (
	relayXcmPalletIndex     = 99
	parachainXcmPalletIndex = 31

	callTeleportAssets        = 1
	callReserveTransferAssets = 2
)

// Tags of the XCM v3 location encoding.
const (
	locationVersionV3 = 3

	interiorHere = 0
	interiorX1   = 1

	junctionParachain    = 0
	junctionAccountId32  = 1
	junctionAccountKey20 = 3

	networkIDNone = 0

	assetConcrete  = 0
	assetFungible  = 0
	unsignedProlog = 4
)

// EncodeExtrinsic builds the length-prefixed unsigned extrinsic carrying the
// XCM dispatchable for message, as accepted by the source runtime.
//
// Parameters:
// - config: the source chain configuration.
// - message: the cross-chain message to encode.
//
// Returns:
// - []byte: the full length-prefixed extrinsic bytes.
// - error: an error if the message cannot be expressed on the source runtime.
func EncodeExtrinsic(config *types.ChainConfig, message *types.XCMMessage) ([]byte, error) {
	call, err := encodeCall(config, message)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, len(call)+1)
	body = append(body, unsignedProlog)
	body = append(body, call...)

	out := CompactEncode(uint64(len(body)))
	return append(out, body...), nil
}

// encodeCall assembles the pallet call: indexes, destination, beneficiary,
// assets and the fee asset item.
func encodeCall(config *types.ChainConfig, message *types.XCMMessage) ([]byte, error) {
	palletIndex := byte(parachainXcmPalletIndex)
	if config.Relay {
		palletIndex = relayXcmPalletIndex
	}

	var callIndex byte
	switch message.Kind {
	case types.KindTeleport:
		callIndex = callTeleportAssets
	case types.KindTransfer, types.KindReserveTransfer:
		callIndex = callReserveTransferAssets
	default:
		return nil, errors.Wrapf(cerrors.ErrValidation, "kind %s cannot be encoded as a single extrinsic", message.Kind)
	}

	beneficiary, err := encodeBeneficiary(message.Beneficiary)
	if err != nil {
		return nil, err
	}

	assets, err := encodeAssets(config, message)
	if err != nil {
		return nil, err
	}

	call := []byte{palletIndex, callIndex}
	call = append(call, encodeDestination(config, message)...)
	call = append(call, beneficiary...)
	call = append(call, assets...)
	// fee_asset_item, the index of the asset paying the execution fee.
	call = append(call, 0, 0, 0, 0)
	return call, nil
}

// encodeDestination encodes the versioned destination location as seen from
// the source chain.
func encodeDestination(config *types.ChainConfig, message *types.XCMMessage) []byte {
	out := []byte{locationVersionV3}

	if message.DestParaID == 0 {
		// Up to the relay chain.
		return append(out, 1, interiorHere)
	}

	if config.Relay {
		// Down to a parachain.
		out = append(out, 0, interiorX1, junctionParachain)
		return append(out, CompactEncode(message.DestParaID)...)
	}

	// Sideways, up through the relay and down to the sibling.
	out = append(out, 1, interiorX1, junctionParachain)
	return append(out, CompactEncode(message.DestParaID)...)
}

// encodeBeneficiary encodes the versioned beneficiary location on the
// destination chain. An empty beneficiary encodes as the zero account, used
// by fee dry-runs.
func encodeBeneficiary(address string) ([]byte, error) {
	out := []byte{locationVersionV3, 0}

	if address == "" {
		out = append(out, interiorX1, junctionAccountId32, networkIDNone)
		return append(out, make([]byte, 32)...), nil
	}

	format := types.AccountId32
	junction := byte(junctionAccountId32)
	if ethcommon.IsHexAddress(address) && len(address) == 42 {
		format = types.AccountKey20
		junction = junctionAccountKey20
	}

	account, err := utils.AccountBytes(address, format)
	if err != nil {
		return nil, err
	}

	out = append(out, interiorX1, junction, networkIDNone)
	return append(out, account...), nil
}

// encodeAssets encodes the single-asset versioned asset list. The native
// asset of the relay is located at the relay, so its location from a
// parachain crosses one parent boundary.
func encodeAssets(config *types.ChainConfig, message *types.XCMMessage) ([]byte, error) {
	if message.Amount != nil && message.Amount.BitLen() > 128 {
		return nil, errors.Wrap(cerrors.ErrValidation, "amount exceeds the chain balance width")
	}

	amount, err := CompactEncodeBig(message.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount for asset %s", message.Asset)
	}

	assetParents := byte(1)
	if config.Relay {
		assetParents = 0
	}

	out := []byte{locationVersionV3}
	out = append(out, CompactEncode(1)...)
	out = append(out, assetConcrete, assetParents, interiorHere, assetFungible)
	return append(out, amount...), nil
}
