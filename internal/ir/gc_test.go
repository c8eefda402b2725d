package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/base"
)

// buildModuleWithDeadCode constructs a module containing one live
// function (reachable from the root set) and one dead, unreferenced
// external declaration, to exercise the mark phase's sweep.
func buildModuleWithDeadCode(t *testing.T) *Module {
	t.Helper()
	m, b := newTestModule()
	i32 := m.Types().Int(32)

	// Dead: never called, never referenced.
	_, err := b.DeclareFunction("unused", m.Types().Func(nil, i32, true), nil, true)
	require.NoError(t, err)

	liveFn, err := b.DeclareFunction("live", m.Types().Func(nil, i32, false), nil, false)
	require.NoError(t, err)
	b.SetFunction(liveFn)
	blk := b.CreateBlock()
	b.SetBlock(blk)
	v := b.CreateBinOp(OpAdd, ConstInt64(i32, 1), ConstInt64(i32, 2), i32)
	b.CreateRet(InstValue(v))

	return m
}

// Property 5: GC soundness. Every entity reachable from a root survives
// compaction, and the resulting module's internal bookkeeping
// (use-lists, block lists) stays consistent.
func TestCompactSoundnessKeepsLiveCodeAndDropsDead(t *testing.T) {
	m := buildModuleWithDeadCode(t)

	newM, reserved := m.Compact(nil)
	assert.Empty(t, reserved)

	_, ok := newM.LookupFunction("live")
	assert.True(t, ok, "the reachable function must survive compaction")

	_, ok = newM.LookupFunction("unused")
	assert.False(t, ok, "an unreferenced external declaration must be swept")

	liveFn, _ := newM.LookupFunction("live")
	blocks := newM.Blocks(liveFn)
	require.Len(t, blocks, 1)
	insts := newM.Instructions(blocks[0])
	require.Len(t, insts, 2, "the add and the ret")

	addInst := insts[0]
	retInst := insts[1]
	assert.True(t, newM.Terminator(blocks[0]).IsValid())
	assert.Equal(t, retInst, newM.Terminator(blocks[0]))

	// use-list consistency must still hold post-compaction: the add's
	// result has exactly one user, the ret.
	users := newM.Users(InstValue(addInst))
	assert.Len(t, users, 1)
	assert.Equal(t, retInst, newM.uses.Get(users[0]).User)
}

// Property 6: GC determinism. Compacting the same module twice (from
// the same starting point) must assign identical handles both times,
// since traversal order is driven by stable list/map order, not Go map
// iteration order.
func TestCompactIsDeterministic(t *testing.T) {
	m := buildModuleWithDeadCode(t)

	m1, _ := m.Compact(nil)
	m2, _ := m.Compact(nil)

	fn1, ok1 := m1.LookupFunction("live")
	fn2, ok2 := m2.LookupFunction("live")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, fn1, fn2)

	b1 := m1.Blocks(fn1)
	b2 := m2.Blocks(fn2)
	require.Equal(t, len(b1), len(b2))
	for i := range b1 {
		assert.Equal(t, b1[i], b2[i])
	}

	i1 := m1.Instructions(b1[0])
	i2 := m2.Instructions(b2[0])
	require.Equal(t, len(i1), len(i2))
	for i := range i1 {
		assert.Equal(t, i1[i], i2[i])
	}
}

// Compact also preserves phi/critical-edge structure: run it on a
// module already split by SplitCriticalEdge and confirm the phi's
// incoming pairs still resolve to real predecessor blocks.
func TestCompactPreservesPhiStructure(t *testing.T) {
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
	m.SplitCriticalEdge(brInst.FalseTarget)

	newM, _ := m.Compact(nil)
	newFn, ok := newM.LookupFunction("f")
	require.True(t, ok)
	blocks := newM.Blocks(newFn)
	require.Len(t, blocks, 4, "entry, side, the split block, and merge")

	// Find the merge block: the one whose first instruction is a phi.
	var mergeBlock base.Handle
	for _, bH := range blocks {
		insts := newM.Instructions(bH)
		if len(insts) == 0 {
			continue
		}
		if _, ok := newM.Instruction(insts[0]).(*PhiInst); ok {
			mergeBlock = bH
			break
		}
	}
	require.True(t, mergeBlock.IsValid(), "merge block with the phi must exist in the compacted module")

	preds := newM.DistinctPredecessorBlocks(mergeBlock)
	assert.Len(t, preds, 2, "side and the split block, now that entry no longer jumps to merge directly")

	phiInst := newM.Instruction(newM.Instructions(mergeBlock)[0]).(*PhiInst)
	require.Len(t, phiInst.Incoming, 2)
	for _, inc := range phiInst.Incoming {
		blockVal := newM.uses.Get(inc.BlockUse).Operand
		assert.Contains(t, preds, blockVal.Ref)
	}
}

func TestCompactReserveAllocatesUnattachedSlots(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)
	b.CreateRet(ConstInt64(i32, 0))

	newM, reserved := m.Compact(func(fn base.Handle) int { return 3 })
	newFn, _ := newM.LookupFunction("f")
	slots, ok := reserved[newFn]
	require.True(t, ok)
	assert.Len(t, slots, 3)
	for _, s := range slots {
		assert.True(t, s.IsValid())
	}
}
