package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstKindDispatchesToThePopulatedVariant(t *testing.T) {
	dst := VRegOperand(NewIntVReg(0))
	lhs := VRegOperand(NewIntVReg(1))
	rhs := VRegOperand(NewIntVReg(2))
	inst := Inst{BinReg: &BinReg{Op: OpAdd, Bits: 32, Dst: dst, Lhs: lhs, Rhs: rhs}}
	assert.Equal(t, KindBinReg, inst.Kind())
	assert.False(t, inst.IsPseudo())
	assert.False(t, inst.IsTerminator())
}

func TestInstKindPanicsOnEmptyInst(t *testing.T) {
	assert.Panics(t, func() { Inst{}.Kind() })
}

func TestPseudoFamiliesAreMarkedAsPseudo(t *testing.T) {
	cases := []Inst{
		{MirCall: &MirCall{Symbol: "f"}},
		{MirGEP: &MirGEP{}},
		{MirSaveRegs: &MirSaveRegs{}},
		{MirReturn: &MirReturn{}},
	}
	for _, c := range cases {
		assert.True(t, c.IsPseudo())
	}
}

func TestBranchFamiliesAreTerminators(t *testing.T) {
	j := NewBlock("j")
	assert.True(t, Inst{Branch: &Branch{Target: j}}.IsTerminator())
	assert.True(t, Inst{CondBranch: &CondBranch{Target: j}}.IsTerminator())
	assert.True(t, Inst{RegBranch: &RegBranch{Op: OpCBZ, Target: j}}.IsTerminator())
	assert.True(t, Inst{MirReturn: &MirReturn{}}.IsTerminator())
	assert.True(t, Inst{MirSwitch: &MirSwitch{}}.IsTerminator())
	assert.False(t, Inst{MirCall: &MirCall{Symbol: "f"}}.IsTerminator())
}

func TestUsesAndDefsOfBinReg(t *testing.T) {
	dst := VRegOperand(NewIntVReg(0))
	lhs := VRegOperand(NewIntVReg(1))
	rhs := VRegOperand(NewIntVReg(2))
	inst := Inst{BinReg: &BinReg{Op: OpAdd, Bits: 32, Dst: dst, Lhs: lhs, Rhs: rhs}}

	uses := UsesOf(inst)
	defs := DefsOf(inst)
	require.Len(t, uses, 2)
	require.Len(t, defs, 1)
	assert.Equal(t, lhs, uses[0])
	assert.Equal(t, rhs, uses[1])
	assert.Equal(t, dst, defs[0])
}

func TestUsesOfLoadStoreDistinguishesLoadFromStore(t *testing.T) {
	reg := VRegOperand(NewIntVReg(0))
	base := VRegOperand(NewLongVReg(1))
	load := Inst{LoadStore: &LoadStore{Op: OpLdr, Reg: reg, Base: base, Mode: AddrBaseImm}}
	assert.ElementsMatch(t, []Reg{base}, UsesOf(load))

	store := Inst{LoadStore: &LoadStore{Op: OpStr, IsStore: true, Reg: reg, Base: base, Mode: AddrBaseImm}}
	assert.ElementsMatch(t, []Reg{base, reg}, UsesOf(store))
	assert.Empty(t, DefsOf(store))
	assert.ElementsMatch(t, []Reg{reg}, DefsOf(load))
}

func TestRewriteRegRetargetsMatchingOperands(t *testing.T) {
	spilled := VRegOperand(NewIntVReg(5))
	scratch := PRegOperand(RegW(9))
	other := VRegOperand(NewIntVReg(6))
	inst := Inst{BinReg: &BinReg{Op: OpAdd, Bits: 32, Dst: spilled, Lhs: spilled, Rhs: other}}

	rewritten := RewriteReg(inst, spilled, scratch)
	assert.Equal(t, scratch, rewritten.BinReg.Dst)
	assert.Equal(t, scratch, rewritten.BinReg.Lhs)
	assert.Equal(t, other, rewritten.BinReg.Rhs)
}

func TestCondInvertIsInvolutive(t *testing.T) {
	for c := CondEQ; c <= CondAL; c++ {
		if c == CondAL {
			continue
		}
		assert.Equal(t, c, c.Invert().Invert())
	}
}
