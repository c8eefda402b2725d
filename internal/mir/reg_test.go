package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"talon/internal/typesys"
)

func TestSubRegIndexRoundTrip(t *testing.T) {
	s := NewSubRegIndex(5, 3)
	assert.Equal(t, uint8(5), s.BitsLog2())
	assert.Equal(t, uint8(3), s.Index())

	s = s.WithBitsLog2(6)
	assert.Equal(t, uint8(6), s.BitsLog2())
	assert.Equal(t, uint8(3), s.Index(), "changing width must not disturb the lane index")

	s = s.WithIndex(10)
	assert.Equal(t, uint8(10), s.Index())
	assert.Equal(t, uint8(6), s.BitsLog2(), "changing the lane must not disturb the width")
}

func TestSubRegIndexRejectsOutOfRangeWidth(t *testing.T) {
	assert.Panics(t, func() { NewSubRegIndex(2, 0) })
	assert.Panics(t, func() { NewSubRegIndex(8, 0) })
}

func TestRegUseFlagsCombine(t *testing.T) {
	f := RegUseNone.With(RegUseDef).With(RegUseKill)
	assert.True(t, f.Has(RegUseDef))
	assert.True(t, f.Has(RegUseKill))
	assert.False(t, f.Has(RegUseDead))

	f = f.Without(RegUseDef)
	assert.False(t, f.Has(RegUseDef))
	assert.True(t, f.Has(RegUseKill))
}

func TestVRegFromTypeSelectsBank(t *testing.T) {
	tctx := typesys.NewContext()

	v := NewVRegFromType(tctx.Int(32), 0)
	assert.False(t, v.IsFloat())
	assert.Equal(t, uint8(32), v.Bits())

	v = NewVRegFromType(tctx.Int(64), 1)
	assert.Equal(t, uint8(64), v.Bits())

	v = NewVRegFromType(tctx.Ptr(), 2)
	assert.False(t, v.IsFloat())
	assert.Equal(t, uint8(64), v.Bits())

	v = NewVRegFromType(tctx.Float(typesys.Float32), 3)
	assert.True(t, v.IsFloat())
	assert.Equal(t, uint8(32), v.Bits())

	v = NewVRegFromType(tctx.Float(typesys.Float64), 4)
	assert.True(t, v.IsFloat())
	assert.Equal(t, uint8(64), v.Bits())
}

func TestVRegFromTypeRejectsAggregates(t *testing.T) {
	tctx := typesys.NewContext()
	assert.Panics(t, func() {
		NewVRegFromType(tctx.Array(tctx.Int(32), 4), 0)
	})
}

func TestPRegDisplayNames(t *testing.T) {
	assert.Equal(t, "x0", RegX(0).String())
	assert.Equal(t, "w1", RegW(1).String())
	assert.Equal(t, "d2", RegFPD(2).String())
	assert.Equal(t, "s3", RegFPS(3).String())
	assert.Equal(t, "sp", RegSP().String())
	assert.Equal(t, "xzr", RegZR().String())
	assert.True(t, RegLR().IsLinkRegister())
}

func TestPRegIdBounds(t *testing.T) {
	assert.Panics(t, func() { RegX(32) })
	assert.Panics(t, func() { RegW(32) })
}

func TestRegOperandDispatch(t *testing.T) {
	r := VRegOperand(NewIntVReg(7))
	assert.True(t, r.IsVirtual())
	assert.False(t, r.IsPhysical())

	r = PRegOperand(RegX(5))
	assert.True(t, r.IsPhysical())
	assert.False(t, r.IsVirtual())
}
