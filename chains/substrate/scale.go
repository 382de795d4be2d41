package substrate

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// SCALE compact-integer mode tags, carried in the two low bits of the first
// byte.
const (
	compactTwoByteMode  = 0x01
	compactFourByteMode = 0x02
	compactBigIntMode   = 0x03

	compactSingleByteMax = 1<<6 - 1
	compactTwoByteMax    = 1<<14 - 1
	compactFourByteMax   = 1<<30 - 1
)

// CompactEncode encodes n using the SCALE compact integer encoding.
//
// Parameters:
// - n: the value to encode.
//
// Returns:
// - []byte: the encoded bytes, between one and nine bytes long.
func CompactEncode(n uint64) []byte {
	switch {
	case n <= compactSingleByteMax:
		return []byte{byte(n << 2)}
	case n <= compactTwoByteMax:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(n)<<2|compactTwoByteMode)
		return buf
	case n <= compactFourByteMax:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(n)<<2|compactFourByteMode)
		return buf
	default:
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, n)
		for len(data) > 4 && data[len(data)-1] == 0 {
			data = data[:len(data)-1]
		}
		out := make([]byte, 0, len(data)+1)
		out = append(out, byte(len(data)-4)<<2|compactBigIntMode)
		return append(out, data...)
	}
}

// CompactEncodeBig encodes n using the SCALE compact integer encoding,
// supporting values beyond 64 bits.
//
// Parameters:
// - n: the non-negative value to encode.
//
// Returns:
// - []byte: the encoded bytes.
// - error: an error if n is nil, negative, or wider than 536 bits.
func CompactEncodeBig(n *big.Int) ([]byte, error) {
	if n == nil || n.Sign() < 0 {
		return nil, errors.Wrap(cerrors.ErrValidation, "compact encoding requires a non-negative value")
	}

	if n.IsUint64() {
		return CompactEncode(n.Uint64()), nil
	}

	byteLen := (n.BitLen() + 7) / 8
	if byteLen > 67 {
		return nil, errors.Wrap(cerrors.ErrValidation, "value too large for compact encoding")
	}

	data := make([]byte, byteLen)
	for i, b := range n.Bytes() {
		data[byteLen-1-i] = b
	}

	out := make([]byte, 0, byteLen+1)
	out = append(out, byte(byteLen-4)<<2|compactBigIntMode)
	return append(out, data...), nil
}

// ExtrinsicHash computes the canonical hash of an encoded extrinsic as the
// node reports it, the blake2b-256 digest in 0x-prefixed hex.
//
// Parameters:
// - encoded: the full length-prefixed extrinsic bytes.
//
// Returns:
// - string: the 0x-prefixed hash.
func ExtrinsicHash(encoded []byte) string {
	sum := blake2b.Sum256(encoded)
	return "0x" + hex.EncodeToString(sum[:])
}
