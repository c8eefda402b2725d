package irtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/mir"
)

func buildModule(t *testing.T) *mir.Module {
	t.Helper()
	mod := mir.NewModule()
	fn := mod.NewFunction("add_one")
	fn.Args = []mir.ArgLoc{{Reg: mir.PRegOperand(mir.RegX(0)), InReg: true}}
	fn.HasResult = true
	fn.ResultReg = mir.PRegOperand(mir.RegX(0))

	entry := fn.NewBlock("entry")
	one, err := mir.NewLongImm(1, mir.ImmCalc)
	require.NoError(t, err)
	entry.Push(mir.Inst{BinImm: &mir.BinImm{
		Op: mir.OpAdd, Bits: 64,
		Dst: mir.PRegOperand(mir.RegX(0)),
		Lhs: mir.PRegOperand(mir.RegX(0)),
		Imm: one,
	}})
	entry.Push(mir.Inst{MirReturn: &mir.MirReturn{}})

	return mod
}

func TestPrintRendersModuleFunctionBlockAndInstructionShape(t *testing.T) {
	mod := buildModule(t)
	text := Print(mod)

	assert.Contains(t, text, "module main {")
	assert.Contains(t, text, "func add_one(a0: x0) -> x0 {")
	assert.Contains(t, text, "entry:")
	assert.Contains(t, text, "add.64 x0, x0, #0x1;")
	assert.Contains(t, text, "mir.return;")
}

func TestParseThenFormatReproducesPrintOutputExactly(t *testing.T) {
	mod := buildModule(t)
	printed := Print(mod)

	prog, err := Parse("add_one.mir", printed)
	require.NoError(t, err)

	assert.Equal(t, printed, prog.Format())
}

func TestParseRecoversFunctionAndBlockStructure(t *testing.T) {
	mod := buildModule(t)
	printed := Print(mod)

	prog, err := Parse("add_one.mir", printed)
	require.NoError(t, err)

	require.Len(t, prog.Functions, 1)
	fn := prog.Functions[0]
	assert.Equal(t, "add_one", fn.Name)
	require.Len(t, fn.Args, 1)
	assert.Equal(t, "a0", fn.Args[0].Name)
	assert.Equal(t, "x0", fn.Args[0].Reg)
	require.NotNil(t, fn.Result)
	assert.Equal(t, "x0", *fn.Result)

	require.Len(t, fn.Blocks, 1)
	blk := fn.Blocks[0]
	assert.Equal(t, "entry", blk.Label)
	require.Len(t, blk.Insts, 2)

	add := blk.Insts[0]
	assert.Equal(t, "add.64", add.Mnemonic)
	assert.Equal(t, []string{"x0", "x0", "#0x1"}, add.Operands)

	ret := blk.Insts[1]
	assert.Equal(t, "mir.return", ret.Mnemonic)
	assert.Empty(t, ret.Operands)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, err := Parse("bad.mir", "module main { func broken( }")
	assert.Error(t, err)
}

func TestPrintRendersGlobalsAndRoundTripsThem(t *testing.T) {
	mod := mir.NewModule()
	mod.Globals = []string{"counter", "table"}
	mod.NewFunction("noop")

	text := Print(mod)
	assert.Contains(t, text, "global counter;")
	assert.Contains(t, text, "global table;")

	prog, err := Parse("globals.mir", text)
	require.NoError(t, err)
	assert.Equal(t, []string{"counter", "table"}, prog.Globals)
}

func TestPrintHandlesMultipleFunctionsAndArgsWithoutResult(t *testing.T) {
	mod := mir.NewModule()

	fn := mod.NewFunction("discard")
	fn.Args = []mir.ArgLoc{
		{Reg: mir.PRegOperand(mir.RegX(0)), InReg: true},
		{Reg: mir.PRegOperand(mir.RegX(1)), InReg: true},
	}
	blk := fn.NewBlock("entry")
	blk.Push(mir.Inst{MirReturn: &mir.MirReturn{}})

	mod.NewFunction("empty")

	text := Print(mod)
	assert.Contains(t, text, "func discard(a0: x0, a1: x1) {")
	assert.Contains(t, text, "func empty() {")

	prog, err := Parse("multi.mir", text)
	require.NoError(t, err)
	require.Len(t, prog.Functions, 2)
	assert.Nil(t, prog.Functions[0].Result)
}
