package bergercrc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zollek/nvm3/internal/bergercrc"
)

func TestBergerCode_ZeroValue(t *testing.T) {
	code := bergercrc.Berger(0, bergercrc.BergerWidth)
	require.Equal(t, uint32(bergercrc.BergerWidth), code, "all-zero value has every bit contributing to the code")
}

func TestBergerCode_AllOnes(t *testing.T) {
	allOnes := uint32(1)<<bergercrc.BergerWidth - 1
	code := bergercrc.Berger(allOnes, bergercrc.BergerWidth)
	require.Equal(t, uint32(0), code)
}

func TestBergerCode_RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 5, 12345, 0x7FFFFFF} {
		code := bergercrc.Berger(v, bergercrc.BergerWidth)
		require.True(t, bergercrc.ValidateBerger(v, code, bergercrc.BergerWidth))
	}
}

func TestBergerCode_MismatchDetected(t *testing.T) {
	code := bergercrc.Berger(42, bergercrc.BergerWidth)
	require.False(t, bergercrc.ValidateBerger(42, code+1, bergercrc.BergerWidth))
}

func TestBergerCode_EraseCountComplement(t *testing.T) {
	const mask = uint32(1)<<bergercrc.BergerWidth - 1
	eraseCount := uint32(5)
	inv := ^eraseCount & mask
	require.Equal(t, eraseCount, ^inv&mask)
}
