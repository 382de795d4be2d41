package utils

import (
	"encoding/hex"
	"strings"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	// ss58ChecksumPreimage prefixes the checksum input per the SS58 format.
	ss58ChecksumPreimage = "SS58PRE"
	// accountIDLength is the raw public key length for AccountId32 accounts.
	accountIDLength = 32
	// checksumLength is the SS58 checksum suffix length for account addresses.
	checksumLength = 2
)

// DecodeSS58 decodes an SS58-encoded account address.
//
// Parameters:
// - addr: the SS58 address string.
//
// Returns:
// - []byte: the raw 32-byte account id.
// - uint16: the network prefix the address was encoded with.
// - error: an error if the address is malformed or its checksum is invalid.
func DecodeSS58(addr string) ([]byte, uint16, error) {
	data, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, errors.Wrap(cerrors.ErrValidation, "invalid base58 encoding")
	}

	if len(data) < 1 {
		return nil, 0, errors.Wrap(cerrors.ErrValidation, "empty address payload")
	}

	var prefixLen int
	var prefix uint16
	switch {
	case data[0] < 64:
		prefixLen = 1
		prefix = uint16(data[0])
	case data[0] < 128:
		if len(data) < 2 {
			return nil, 0, errors.Wrap(cerrors.ErrValidation, "truncated address prefix")
		}
		// Two-byte prefixes store the 14-bit ident little-endian with the
		// top two bits of the first byte reserved.
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b0011_1111
		prefixLen = 2
		prefix = uint16(lower) | uint16(upper)<<8
	default:
		return nil, 0, errors.Wrap(cerrors.ErrValidation, "invalid address prefix")
	}

	if len(data) != prefixLen+accountIDLength+checksumLength {
		return nil, 0, errors.Wrapf(cerrors.ErrValidation, "invalid address length %d", len(data))
	}

	body := data[:prefixLen+accountIDLength]
	checksum := data[prefixLen+accountIDLength:]

	hash := blake2b.Sum512(append([]byte(ss58ChecksumPreimage), body...))
	if hash[0] != checksum[0] || hash[1] != checksum[1] {
		return nil, 0, errors.Wrap(cerrors.ErrValidation, "address checksum mismatch")
	}

	accountID := make([]byte, accountIDLength)
	copy(accountID, data[prefixLen:prefixLen+accountIDLength])

	return accountID, prefix, nil
}

// ValidateAddress checks that addr matches the account format the destination
// chain expects. AccountId32 accepts SS58 or 0x-prefixed 64-character hex;
// AccountKey20 accepts a 0x-prefixed 40-character hex address.
func ValidateAddress(addr string, format types.AddressFormat) error {
	switch format {
	case types.AccountKey20:
		if !common.IsHexAddress(addr) {
			return errors.Wrapf(cerrors.ErrValidation, "invalid 20-byte account %q", addr)
		}
		return nil
	case types.AccountId32:
		if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
			raw, err := hex.DecodeString(addr[2:])
			if err != nil || len(raw) != accountIDLength {
				return errors.Wrapf(cerrors.ErrValidation, "invalid 32-byte account %q", addr)
			}
			return nil
		}
		_, _, err := DecodeSS58(addr)
		return err
	default:
		return errors.Wrapf(cerrors.ErrValidation, "unknown address format %q", format)
	}
}

// AccountBytes returns the raw account bytes for addr in the given format:
// 32 bytes for AccountId32, 20 bytes for AccountKey20.
func AccountBytes(addr string, format types.AddressFormat) ([]byte, error) {
	switch format {
	case types.AccountKey20:
		if !common.IsHexAddress(addr) {
			return nil, errors.Wrapf(cerrors.ErrValidation, "invalid 20-byte account %q", addr)
		}
		return common.HexToAddress(addr).Bytes(), nil
	case types.AccountId32:
		if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
			raw, err := hex.DecodeString(addr[2:])
			if err != nil || len(raw) != accountIDLength {
				return nil, errors.Wrapf(cerrors.ErrValidation, "invalid 32-byte account %q", addr)
			}
			return raw, nil
		}
		accountID, _, err := DecodeSS58(addr)
		return accountID, err
	default:
		return nil, errors.Wrapf(cerrors.ErrValidation, "unknown address format %q", format)
	}
}
