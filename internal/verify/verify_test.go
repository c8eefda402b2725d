package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/diag"
	"talon/internal/ir"
	"talon/internal/typesys"
)

func newTestModule() (*ir.Module, *ir.Builder) {
	tctx := typesys.NewContext()
	m := ir.NewModule(tctx)
	return m, ir.NewBuilder(m)
}

func codesOf(diags []*diag.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

// A well-formed function with one block should pass clean.
func TestRunAcceptsWellFormedFunction(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, err := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	require.NoError(t, err)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)
	v := b.CreateBinOp(ir.OpAdd, ir.ConstInt64(i32, 1), ir.ConstInt64(i32, 2), i32)
	b.CreateRet(ir.InstValue(v))

	diags := Run(m)
	assert.Empty(t, diags)
}

// External declarations have no body and must be skipped entirely.
func TestRunSkipsExternalFunctions(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	_, err := b.DeclareFunction("extern_fn", m.Types().Func(nil, i32, true), nil, true)
	require.NoError(t, err)

	diags := Run(m)
	assert.Empty(t, diags)
}

// checkTerminator: a block left without a terminator (construction
// abandoned mid-block) is flagged.
func TestMissingTerminatorIsReported(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)
	blk := b.CreateBlock()
	b.SetBlock(blk)
	b.CreateBinOp(ir.OpAdd, ir.ConstInt64(i32, 1), ir.ConstInt64(i32, 2), i32)

	diags := Run(m)
	assert.Contains(t, codesOf(diags), diag.ErrMissingTerminator)
}

// checkPhiPlacement: a phi emitted after a non-phi instruction in the
// same block breaks the leading-phi-group invariant.
func TestPhiAfterNonPhiIsReported(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)

	entry := b.CreateBlock()
	side := b.CreateBlock()
	merge := b.CreateBlock()

	b.SetBlock(entry)
	b.CreateBr(ir.ConstInt64(m.Types().Int(1), 1), side, merge)

	b.SetBlock(side)
	b.CreateJump(merge)

	b.SetBlock(merge)
	b.CreateBinOp(ir.OpAdd, ir.ConstInt64(i32, 1), ir.ConstInt64(i32, 1), i32)
	phi := b.CreatePhi(i32)
	b.AddIncoming(phi, entry, ir.ConstInt64(i32, 1))
	b.AddIncoming(phi, side, ir.ConstInt64(i32, 2))
	b.CreateRet(ir.InstValue(phi))

	diags := Run(m)
	assert.Contains(t, codesOf(diags), diag.ErrPhiNotAtBlockStart)
}

// checkPhiEdges: a phi with fewer incoming pairs than the block has
// distinct predecessors must be flagged.
func TestPhiMissingIncomingPairIsReported(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)

	entry := b.CreateBlock()
	side := b.CreateBlock()
	merge := b.CreateBlock()

	b.SetBlock(entry)
	b.CreateBr(ir.ConstInt64(m.Types().Int(1), 1), side, merge)

	b.SetBlock(side)
	b.CreateJump(merge)

	b.SetBlock(merge)
	phi := b.CreatePhi(i32)
	// Only one of the two distinct predecessors gets an incoming pair.
	b.AddIncoming(phi, side, ir.ConstInt64(i32, 2))
	b.CreateRet(ir.InstValue(phi))

	diags := Run(m)
	assert.Contains(t, codesOf(diags), diag.ErrPhiEdgeMismatch)
}

// checkPhiEdges: an incoming block that never actually branches into
// the phi's block is flagged even if the pair count matches.
func TestPhiIncomingBlockNotAPredecessorIsReported(t *testing.T) {
	m, b := newTestModule()
	i32 := m.Types().Int(32)
	fnH, _ := b.DeclareFunction("f", m.Types().Func(nil, i32, false), nil, false)
	b.SetFunction(fnH)

	entry := b.CreateBlock()
	merge := b.CreateBlock()
	stray := b.CreateBlock()

	b.SetBlock(entry)
	b.CreateJump(merge)

	b.SetBlock(stray)
	b.CreateUnreachable()

	b.SetBlock(merge)
	phi := b.CreatePhi(i32)
	b.AddIncoming(phi, stray, ir.ConstInt64(i32, 9))
	b.CreateRet(ir.InstValue(phi))

	diags := Run(m)
	assert.Contains(t, codesOf(diags), diag.ErrPhiEdgeMismatch)
}
