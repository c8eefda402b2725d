package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/typesys"
)

func TestCalcImmAcceptsTwoEncodingShapes(t *testing.T) {
	_, err := NewLongImm(100, ImmCalc)
	assert.NoError(t, err, "values under 4096 encode directly")

	_, err = NewLongImm(0x1000, ImmCalc)
	assert.NoError(t, err, "a value with only bits [12:24) set is the shifted form")

	_, err = NewLongImm(0x1001, ImmCalc)
	assert.Error(t, err, "a value straddling both shapes is not encodable")
}

func TestLoadImmAccepts9BitRange(t *testing.T) {
	_, err := NewLongImm(0x1FF, ImmLoad)
	assert.NoError(t, err)

	_, err = NewLongImm(0x200, ImmLoad)
	assert.Error(t, err, "0x200 needs a 10th bit")
}

func TestLoadImmSignExtendsOnDisplay(t *testing.T) {
	c, err := NewWordImm(0x1FF, ImmLoad)
	require.NoError(t, err)
	bits, width := c.AsBits()
	assert.Equal(t, uint8(32), width)
	assert.Equal(t, int32(-1), int32(bits), "0x1FF's bit 8 set means sign-extend to -1")
}

func TestCondCmpImmAccepts5Bits(t *testing.T) {
	_, err := NewLongImm(0x1F, ImmCCmp)
	assert.NoError(t, err)
	_, err = NewLongImm(0x20, ImmCCmp)
	assert.Error(t, err)
}

func TestLogicalImmRejectsAllZerosAndAllOnes(t *testing.T) {
	_, err := NewWordImm(0x0000_0000, ImmLogic)
	assert.Error(t, err)
	_, err = NewWordImm(0xFFFF_FFFF, ImmLogic)
	assert.Error(t, err)
}

func TestLogicalImmAcceptsRepeatingPatterns(t *testing.T) {
	_, err := NewWordImm(0x5555_5555, ImmLogic)
	assert.NoError(t, err)
	_, err = NewWordImm(0x0000_00FF, ImmLogic)
	assert.NoError(t, err, "a single contiguous run is a valid 32-bit-period loop pattern")
}

func TestLogicalImmRejectsNonRepeatingPattern(t *testing.T) {
	_, err := NewWordImm(0x0000_1234, ImmLogic)
	assert.Error(t, err)
}

func TestFullImmAcceptsAnyValue(t *testing.T) {
	_, err := NewLongImm(0xFFFF_FFFF_FFFF_FFFF, ImmFull)
	assert.NoError(t, err)
}

func TestImmFromBitsDispatchesByType(t *testing.T) {
	tctx := typesys.NewContext()

	c := ImmFromBits(0xDEADBEEF, tctx.Int(32))
	bits, width := c.AsBits()
	assert.Equal(t, uint8(32), width)
	assert.Equal(t, uint64(0xDEADBEEF), bits)

	c = ImmFromBits(42, tctx.Ptr())
	bits, width = c.AsBits()
	assert.Equal(t, uint8(64), width)
	assert.Equal(t, uint64(42), bits)
}

func TestZeroImmIsZeroForEveryType(t *testing.T) {
	tctx := typesys.NewContext()
	c := ZeroImm(tctx.Int(32))
	bits, _ := c.AsBits()
	assert.Equal(t, uint64(0), bits)
}

func TestFMovRoundTripsThroughFloat64(t *testing.T) {
	for _, v := range []float64{1.0, 2.0, -1.0, 0.5, 4.0} {
		enc, ok := TryFloat64ToFMov(v)
		require.True(t, ok, "%v should be fmov-encodable", v)
		decoded := fp8ToFloat64(enc)
		assert.Equal(t, v, decoded)
	}
}

func TestFMovRejectsUnencodableValues(t *testing.T) {
	_, ok := TryFloat64ToFMov(3.14159)
	assert.False(t, ok)
}
