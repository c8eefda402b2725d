package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/base"
	"talon/internal/typesys"
)

func newTestModule() (*Module, *Builder) {
	tctx := typesys.NewContext()
	m := NewModule(tctx)
	return m, NewBuilder(m)
}

// Property 1: use-list consistency. userlist(v) == { u : u.Operand == v }.
func TestUseListConsistency(t *testing.T) {
	m, b := newTestModule()
	fnH, err := b.DeclareFunction("f", m.Types().Func(nil, m.Types().Int(32), false), nil, false)
	require.NoError(t, err)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)

	i1 := b.CreateBinOp(OpAdd, ConstInt64(m.Types().Int(32), 1), ConstInt64(m.Types().Int(32), 2), m.Types().Int(32))
	i2 := b.CreateBinOp(OpMul, InstValue(i1), InstValue(i1), m.Types().Int(32))
	b.CreateRet(InstValue(i2))

	users := m.Users(InstValue(i1))
	assert.Len(t, users, 2, "i1 is used twice by i2 (lhs and rhs)")
	for _, uh := range users {
		u := m.uses.Get(uh)
		assert.True(t, u.Operand.Equal(InstValue(i1)))
		assert.Equal(t, i2, u.User)
	}
}

// Property 3: terminator uniqueness. A block's instruction list ends
// with exactly one terminator, and adding instructions after it via
// PushInstBeforeTerminator keeps it last.
func TestTerminatorUniqueness(t *testing.T) {
	m, b := newTestModule()
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, m.Types().Void(), false), nil, false)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)

	retH := b.CreateRet(None)
	assert.Equal(t, retH, m.Terminator(blk))

	// Inserting another instruction must land before the terminator, not
	// after it.
	addH := b.CreateBinOp(OpAdd, ConstInt64(m.Types().Int(32), 1), ConstInt64(m.Types().Int(32), 1), m.Types().Int(32))
	insts := m.Instructions(blk)
	require.Len(t, insts, 2)
	assert.Equal(t, addH, insts[0])
	assert.Equal(t, retH, insts[1])
	assert.Equal(t, retH, m.Terminator(blk))
}

// Property 2 + Scenario A: critical edge detection/splitting and phi
// incoming-pair fix-up. entry has two successors (side, merge); merge
// has two distinct predecessors (entry, side), so the entry->merge edge
// is critical.
func TestCriticalEdgeSplitMovesSoleIncomingPair(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)

	entry := b.CreateBlock()
	side := b.CreateBlock()
	merge := b.CreateBlock()

	b.SetBlock(entry)
	brH := b.CreateBr(FuncArgValue(fnH, 0), side, merge)

	b.SetBlock(side)
	b.CreateJump(merge)

	b.SetBlock(merge)
	phi := b.CreatePhi(i32)
	b.AddIncoming(phi, entry, ConstInt64(i32, 10))
	b.AddIncoming(phi, side, ConstInt64(i32, 20))
	b.CreateRet(InstValue(phi))

	brInst := m.Instruction(brH).(*BrInst)
	falseJT := brInst.FalseTarget // entry -> merge, the direct arm

	require.True(t, m.IsCriticalEdge(falseJT), "entry has 2 successors, merge has 2 distinct predecessors")

	splitBlock := m.SplitCriticalEdge(falseJT)
	assert.Equal(t, splitBlock, m.jumpTargets.Get(falseJT).Block, "jump target now points at the split block")

	// The phi's incoming pair for entry must have moved to splitBlock,
	// since falseJT was the only edge from entry to merge.
	phiInst := m.Instruction(phi).(*PhiInst)
	foundSplit := false
	foundEntry := false
	for _, inc := range phiInst.Incoming {
		blockVal := m.uses.Get(inc.BlockUse).Operand
		if blockVal.Ref == splitBlock {
			foundSplit = true
		}
		if blockVal.Ref == entry {
			foundEntry = true
		}
	}
	assert.True(t, foundSplit, "incoming pair moved to the new split block")
	assert.False(t, foundEntry, "original entry block no longer a direct incoming source")
}

// Property 4: phi-edge alignment — every incoming pair's block operand
// corresponds to an actual predecessor JumpTarget of the phi's block.
func TestPhiIncomingBlocksAreActualPredecessors(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)

	entry := b.CreateBlock()
	merge := b.CreateBlock()
	b.SetBlock(entry)
	b.CreateJump(merge)
	b.SetBlock(merge)
	phi := b.CreatePhi(i32)
	b.AddIncoming(phi, entry, ConstInt64(i32, 7))
	b.CreateRet(InstValue(phi))

	preds := m.DistinctPredecessorBlocks(merge)
	require.Len(t, preds, 1)
	assert.Equal(t, entry, preds[0])

	phiInst := m.Instruction(phi).(*PhiInst)
	require.Len(t, phiInst.Incoming, 1)
	blockVal := m.uses.Get(phiInst.Incoming[0].BlockUse).Operand
	assert.Equal(t, entry, blockVal.Ref)
}

// Scenario B: RAUW. v1 starts with 3 users; after
// ReplaceAllUsesWith(v1, v2), v1's user list is empty and v2's contains
// all 3.
func TestReplaceAllUsesWith(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)

	v1 := b.CreateBinOp(OpAdd, ConstInt64(i32, 1), ConstInt64(i32, 1), i32)
	v2 := b.CreateBinOp(OpAdd, ConstInt64(i32, 2), ConstInt64(i32, 2), i32)

	// Three uses of v1: both operand slots of u1, plus the cast's source.
	u1 := b.CreateBinOp(OpAdd, InstValue(v1), InstValue(v1), i32)
	u2 := b.CreateCast(CastBitcast, InstValue(v1), i32)
	b.CreateRet(InstValue(u2))
	_ = u1

	require.Len(t, m.Users(InstValue(v1)), 3)

	m.ReplaceAllUsesWith(InstValue(v1), InstValue(v2))

	assert.Empty(t, m.Users(InstValue(v1)), "v1's user list must be empty after RAUW")
	assert.Len(t, m.Users(InstValue(v2)), 3, "all of v1's former uses now point at v2")

	for _, uh := range m.Users(InstValue(v2)) {
		u := m.uses.Get(uh)
		assert.True(t, u.Operand.Equal(InstValue(v2)))
	}
}

// Scenario C: GEP on a packed struct {i8, i32, i16} with index path
// [0, 1] yields offset 1 (no padding before the i32 field) and a final
// type of i32.
func TestGEPOnPackedStructField(t *testing.T) {
	m, b := newTestModule()
	tctx := m.Types()
	i8 := tctx.Int(8)
	i32 := tctx.Int(32)
	i16 := tctx.Int(16)
	packed := tctx.Struct("", []typesys.Type{i8, i32, i16}, true)

	fnH, _ := b.DeclareFunction("f", tctx.Func(nil, tctx.Ptr(), false), nil, false)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)

	base_ := b.CreateAlloca(packed, 0)
	gepH, err := b.CreateGEP(InstValue(base_), []Value{
		ConstInt64(tctx.Int(32), 0),
		ConstInt64(tctx.Int(32), 1),
	}, packed, true)
	require.NoError(t, err)
	b.CreateRet(InstValue(gepH))

	gep := m.Instruction(gepH).(*GEPInst)
	assert.Equal(t, i32, gep.FinalType)
	assert.Equal(t, 1, tctx.FieldOffset(packed, 1), "packed struct has no padding before field 1")
}

func TestGEPRejectsNonIntegerIndex(t *testing.T) {
	m, b := newTestModule()
	tctx := m.Types()
	i32 := tctx.Int(32)
	arr := tctx.Array(i32, 4)

	fnH, _ := b.DeclareFunction("f", tctx.Func(nil, tctx.Ptr(), false), nil, false)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)
	base_ := b.CreateAlloca(arr, 0)

	_, err := b.CreateGEP(InstValue(base_), []Value{ConstNullPointer()}, arr, false)
	require.Error(t, err)
}

func TestGEPRejectsNonConstantStructIndex(t *testing.T) {
	m, b := newTestModule()
	tctx := m.Types()
	i32 := tctx.Int(32)
	st := tctx.Struct("pair", []typesys.Type{i32, i32}, false)

	fnH, _ := b.DeclareFunction("f", tctx.Func(nil, tctx.Ptr(), false), nil, false)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)
	base_ := b.CreateAlloca(st, 0)
	loadedIdx := b.CreateLoad(InstValue(base_), i32, 2)

	_, err := b.CreateGEP(InstValue(base_), []Value{
		ConstInt64(i32, 0),
		InstValue(loadedIdx),
	}, st, false)
	require.Error(t, err)
}

func TestDeclareFunctionRejectsDuplicateName(t *testing.T) {
	m, b := newTestModule()
	_, err := b.DeclareFunction("dup", m.Types().Func(nil, m.Types().Void(), false), nil, false)
	require.NoError(t, err)
	_, err = b.DeclareFunction("dup", m.Types().Func(nil, m.Types().Void(), false), nil, false)
	require.Error(t, err)
}

func TestNonCriticalEdgeIsNotSplit(t *testing.T) {
	m, b := newTestModule()
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, m.Types().Void(), false), nil, false)
	b.SetFunction(fnH)
	a := b.CreateBlock()
	bb := b.CreateBlock()

	b.SetBlock(a)
	jumpH := b.CreateJump(bb)
	b.SetBlock(bb)
	b.CreateRet(None)

	jumpInst := m.Instruction(jumpH).(*JumpInst)
	assert.False(t, m.IsCriticalEdge(jumpInst.Target), "a single successor/single predecessor edge is never critical")
}

func TestHandleEqualityAndNilness(t *testing.T) {
	assert.True(t, base.Nil.IsNil())
	assert.False(t, base.Nil.IsValid())
}
