package evm

import (
	"encoding/hex"
	"math/big"
	"testing"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

const (
	aliceSS58   = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	alicePubKey = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
)

func testMessage(destPara uint64) *types.XCMMessage {
	return &types.XCMMessage{
		SourceChain: 2004,
		DestChain:   0,
		DestParaID:  destPara,
		Kind:        types.KindTransfer,
		Asset:       "GLMR",
		Amount:      big.NewInt(1_000_000),
		Beneficiary: aliceSS58,
	}
}

func TestBeneficiaryJunction(t *testing.T) {
	account, err := beneficiaryJunction(aliceSS58)
	assert.NoError(t, err)
	assert.Len(t, account, 34)
	assert.Equal(t, byte(junctionTagAccountId32), account[0])
	pubKey, _ := hex.DecodeString(alicePubKey)
	assert.Equal(t, pubKey, account[1:33])
	assert.Equal(t, byte(networkTagAny), account[33])
}

func TestBeneficiaryJunctionEthereumAddress(t *testing.T) {
	account, err := beneficiaryJunction("0x9Edb3915E65B4EE05F01c86eFA11E57B8752b2c8")
	assert.NoError(t, err)
	assert.Len(t, account, 22)
	assert.Equal(t, byte(junctionTagAccountKey20), account[0])
	assert.Equal(t, byte(networkTagAny), account[21])
}

func TestBeneficiaryJunctionZeroAccountForDryRuns(t *testing.T) {
	account, err := beneficiaryJunction("")
	assert.NoError(t, err)
	assert.Equal(t, append([]byte{junctionTagAccountId32}, make([]byte, 33)...), account)
}

func TestBeneficiaryJunctionRejectsMalformedAddress(t *testing.T) {
	_, err := beneficiaryJunction("not-an-address")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrValidation))
}

func TestBuildTransferCalldata(t *testing.T) {
	first, err := buildTransferCalldata(testMessage(1000))
	assert.NoError(t, err)
	second, err := buildTransferCalldata(testMessage(1000))
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Greater(t, len(first), 4)

	// A relay destination carries one junction less than a parachain one.
	relayBound, err := buildTransferCalldata(testMessage(0))
	assert.NoError(t, err)
	assert.Less(t, len(relayBound), len(first))
}

func TestBuildTransferCalldataRejectsNonPositiveAmount(t *testing.T) {
	message := testMessage(1000)
	message.Amount = big.NewInt(0)

	_, err := buildTransferCalldata(message)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrValidation))
}
