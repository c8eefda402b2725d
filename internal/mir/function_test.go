package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionVRegCountersAreDensePerBank(t *testing.T) {
	f := NewFunction("add")
	a := f.FreshIntVReg()
	b := f.FreshIntVReg()
	c := f.FreshDoubleVReg()

	assert.Equal(t, uint32(0), a.Virtual.ID())
	assert.Equal(t, uint32(1), b.Virtual.ID())
	assert.Equal(t, uint32(0), c.Virtual.ID(), "float bank counts independently of the general bank")
}

func TestAllVRegsMergesSubregisterWidths(t *testing.T) {
	f := NewFunction("f")
	wideDst := f.FreshLongVReg()
	lhs := f.FreshIntVReg()
	rhs := f.FreshIntVReg()
	// reuse lhs's id at 64 bits, as spill-everything must merge to the
	// widest observed width for a single spill slot (spec.md §4.12 step 1)
	narrow := VRegOperand(NewIntVReg(lhs.Virtual.ID()))
	wide := VRegOperand(NewLongVReg(lhs.Virtual.ID()))

	b := f.NewBlock("entry")
	b.Push(Inst{BinReg: &BinReg{Op: OpAdd, Bits: 32, Dst: wideDst, Lhs: narrow, Rhs: rhs}})
	b.Push(Inst{BinReg: &BinReg{Op: OpAdd, Bits: 64, Dst: wideDst, Lhs: wide, Rhs: rhs}})

	regs := f.AllVRegs()
	var found *VReg
	for i := range regs {
		if regs[i].ID() == lhs.Virtual.ID() {
			found = &regs[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, uint8(64), found.Bits())
}

func TestAllVRegsExcludesStackPositions(t *testing.T) {
	f := NewFunction("f")
	slot := f.AllocStackSlot("x", 4, 4)
	b := f.NewBlock("entry")
	b.Push(Inst{LoadStore: &LoadStore{Op: OpLdr, Reg: f.FreshIntVReg(), Base: slot, Mode: AddrBaseImm, Offset: ImmOperand(zeroLoadImm())}})

	for _, v := range f.AllVRegs() {
		assert.NotEqual(t, slot.Virtual.ID(), v.ID())
	}
}

func zeroLoadImm() ImmConst {
	c, _ := NewLongImm(0, ImmLoad)
	return c
}

func TestBlockTerminatorRequiresLastInstToBeATerminator(t *testing.T) {
	b := NewBlock("entry")
	b.Push(Inst{BinReg: &BinReg{Op: OpAdd, Bits: 32}})
	_, ok := b.Terminator()
	assert.False(t, ok)

	b.Push(Inst{MirReturn: &MirReturn{}})
	term, ok := b.Terminator()
	assert.True(t, ok)
	assert.Equal(t, KindMirReturn, term.Kind())
}
