package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpAdjustTreeOffsetMapAccumulatesNestedDeltas(t *testing.T) {
	blk := NewBlock("entry")
	b := NewAdjTreeBuilder()
	b.FocusBlock(blk)
	b.BeginSubSP(32, 0)
	b.BeginSaveRegs(RegMask(0).With(maskX19), 1)
	b.EndSaveRegs(2)
	b.EndSubSP(3)
	tree := b.Build()

	offsets := tree.OffsetMap()
	assert.Equal(t, uint32(32), offsets[InstPos{blk, 0}], "outside the inner save-regs region: outer sub-sp delta only")
	assert.Equal(t, uint32(48), offsets[InstPos{blk, 1}], "inside the inner region: outer 32 plus the inner save-regs region's own 16")
	assert.Equal(t, uint32(48), offsets[InstPos{blk, 2}])
	assert.Equal(t, uint32(32), offsets[InstPos{blk, 3}])
}

func TestSpAdjustNodeSPDeltaRoundsSaveRegsUpTo16(t *testing.T) {
	n := &SpAdjustNode{Kind: AdjustSaveRegs, Mask: RegMask(0).With(maskX19)}
	assert.Equal(t, uint32(16), n.SPDelta(), "one 8-byte register rounds up to a 16-byte-aligned region")

	n2 := &SpAdjustNode{Kind: AdjustSaveRegs, Mask: RegMask(0).With(maskX19).With(maskX20)}
	assert.Equal(t, uint32(16), n2.SPDelta(), "two registers fit exactly in 16 bytes")
}

func TestMergeRegSaveIntervalsJoinsAdjacentSameMaskPairs(t *testing.T) {
	blk := NewBlock("entry")
	mask := RegMask(0).With(maskX19)
	tree := &SpAdjustTree{
		Roots: []*SpAdjustNode{
			{Block: blk, Kind: AdjustSaveRegs, Mask: mask, Begin: 0, End: 1},
			{Block: blk, Kind: AdjustSaveRegs, Mask: mask, Begin: 2, End: 3},
		},
	}
	removed := tree.MergeRegSaveIntervals()
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, 0, tree.Roots[0].Begin)
	assert.Equal(t, 3, tree.Roots[0].End)
	assert.NotEmpty(t, removed)
}

func TestMergeRegSaveIntervalsLeavesNonAdjacentPairsAlone(t *testing.T) {
	blk := NewBlock("entry")
	mask := RegMask(0).With(maskX19)
	tree := &SpAdjustTree{
		Roots: []*SpAdjustNode{
			{Block: blk, Kind: AdjustSaveRegs, Mask: mask, Begin: 0, End: 1},
			{Block: blk, Kind: AdjustSaveRegs, Mask: mask, Begin: 5, End: 6},
		},
	}
	tree.MergeRegSaveIntervals()
	assert.Len(t, tree.Roots, 2)
}

func TestAdjTreeBuilderRejectsUnbalancedEnd(t *testing.T) {
	b := NewAdjTreeBuilder()
	b.FocusBlock(NewBlock("entry"))
	assert.Panics(t, func() { b.EndSubSP(0) })
}

func TestAdjTreeBuilderRejectsBlockChangeWithOpenRegion(t *testing.T) {
	b := NewAdjTreeBuilder()
	b.FocusBlock(NewBlock("entry"))
	b.BeginSubSP(16, 0)
	assert.Panics(t, func() { b.FocusBlock(NewBlock("other")) })
}
