package substrate

import (
	"math/big"
	"testing"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCompactEncode(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x04}},
		{"single byte max", 63, []byte{0xfc}},
		{"two byte min", 64, []byte{0x01, 0x01}},
		{"two byte max", 16383, []byte{0xfd, 0xff}},
		{"four byte min", 16384, []byte{0x02, 0x00, 0x01, 0x00}},
		{"four byte max", 1<<30 - 1, []byte{0xfe, 0xff, 0xff, 0xff}},
		{"big int min", 1 << 30, []byte{0x03, 0x00, 0x00, 0x00, 0x40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompactEncode(tt.value))
		})
	}
}

func TestCompactEncodeBig(t *testing.T) {
	small, err := CompactEncodeBig(big.NewInt(16384))
	assert.NoError(t, err)
	assert.Equal(t, CompactEncode(16384), small)

	beyond := new(big.Int).Lsh(big.NewInt(1), 64)
	encoded, err := CompactEncodeBig(beyond)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}, encoded)

	_, err = CompactEncodeBig(nil)
	assert.True(t, errors.Is(err, cerrors.ErrValidation))

	_, err = CompactEncodeBig(big.NewInt(-1))
	assert.True(t, errors.Is(err, cerrors.ErrValidation))
}

func TestExtrinsicHash(t *testing.T) {
	first := ExtrinsicHash([]byte{0x01, 0x02, 0x03})
	second := ExtrinsicHash([]byte{0x01, 0x02, 0x03})
	other := ExtrinsicHash([]byte{0x01, 0x02, 0x04})

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 66)
	assert.Equal(t, "0x", first[:2])
}
