package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeConstOffsetsFoldsAllConstantsIntoOne(t *testing.T) {
	idx := VRegOperand(NewLongVReg(3))
	g := &MirGEP{
		Dst:  VRegOperand(NewLongVReg(0)),
		Tmp:  VRegOperand(NewLongVReg(1)),
		Base: GEPBaseReg(VRegOperand(NewLongVReg(2))),
		Offsets: []OffsetWeight{
			{GEPOffsetImm(1), 4},
			{GEPOffsetG64(idx), 8},
			{GEPOffsetImm(2), 4},
		},
	}
	g.MergeConstOffsets()

	assert.Len(t, g.Offsets, 2)
	assert.True(t, g.Offsets[0].Offset.IsImm())
	assert.Equal(t, int64(12), g.Offsets[0].Offset.Imm(), "1*4 + 2*4 = 12")
	assert.Equal(t, uint64(1), g.Offsets[0].Weight)
	assert.False(t, g.Offsets[1].Offset.IsImm())
}

func TestMergeConstOffsetsDropsZeroMergedOffset(t *testing.T) {
	g := &MirGEP{
		Dst:  VRegOperand(NewLongVReg(0)),
		Tmp:  VRegOperand(NewLongVReg(1)),
		Base: GEPBaseReg(VRegOperand(NewLongVReg(2))),
		Offsets: []OffsetWeight{
			{GEPOffsetImm(5), 0},
		},
	}
	g.MergeConstOffsets()
	assert.Empty(t, g.Offsets)
}

func TestGEPBaseSymbolHasNoRegister(t *testing.T) {
	b := GEPBaseSymbol("my_global")
	assert.True(t, b.IsSymbol())
	assert.False(t, b.IsReg())
	assert.Equal(t, "my_global", b.Symbol())
}
