// Package stackframe finalizes a MIR function's memory layout, per
// spec.md §4.13: it assigns every stack-position vreg a real SP-relative
// offset, splices in the callee-saved register save/restore brackets
// that make up the function's prologue and epilogue, and rewrites every
// instruction still referencing a stack-position vreg into real address
// arithmetic off SP. Ported from original_source's mir/util/stack_frame.rs
// finalize_stack_frame pass, minus its per-call-site outgoing-argument
// bracket (internal/lower's call lowering never spills overflow
// arguments to the stack yet, so CORE's frames never need one — see
// DESIGN.md).
package stackframe

import (
	"talon/internal/mir"
)

const scratchBase = 16
const scratchCount = 2

// Finalize assigns offsets to fn's stack layout, inserts the prologue
// and epilogue register-save brackets, and rewrites every
// stack-position vreg reference into SP-relative address arithmetic.
// fn.Layout.Finalized is true once this returns.
func Finalize(fn *mir.Function) {
	items := map[vkey]*mir.StackItem{}

	varSize := layoutRegion(fn.Layout.Vars, 0)
	for i := range fn.Layout.Vars {
		items[keyOf(fn.Layout.Vars[i].StackPos)] = &fn.Layout.Vars[i]
	}

	// A bare frame-pointer chain: this allocator never assigns a vreg
	// to a callee-saved physical register (every vreg is spilled to its
	// own stack slot, per internal/lower/regalloc), so the only
	// registers the function itself needs to preserve across a call are
	// the ones AAPCS64 requires unconditionally for stack unwinding.
	calleeSaved := mir.RegMask(0).With(mir.MaskFP).With(mir.MaskLR)
	saveNode := &mir.SpAdjustNode{Kind: mir.AdjustSaveRegs, Mask: calleeSaved}
	calleeSavedSize := saveNode.SPDelta()

	frameSize := roundUp16(calleeSavedSize + varSize + fn.Layout.OutgoingArgSize)
	incomingBase := frameSize
	layoutRegion(fn.Layout.IncomingArgs, incomingBase)
	for i := range fn.Layout.IncomingArgs {
		items[keyOf(fn.Layout.IncomingArgs[i].StackPos)] = &fn.Layout.IncomingArgs[i]
	}

	fn.Layout.CalleeSaved = calleeSaved
	fn.Layout.VarSize = varSize
	fn.Layout.CalleeSavedSize = calleeSavedSize

	insertPrologueEpilogue(fn, calleeSaved)
	rewriteStackPositions(fn, items)

	fn.SpAdjust = mir.NewAdjTreeBuilder().Build()
	fn.Layout.Finalized = true
}

// layoutRegion assigns each item's Offset a naturally-aligned, strictly
// increasing position starting at base, and returns the region's total
// byte size.
func layoutRegion(items []mir.StackItem, base uint32) uint32 {
	off := base
	for i := range items {
		align := items[i].Align
		if align == 0 {
			align = 1
		}
		off = (off + align - 1) &^ (align - 1)
		items[i].Offset = int32(off)
		off += items[i].Size
	}
	return off - base
}

func roundUp16(v uint32) uint32 { return (v + 15) &^ 15 }

// insertPrologueEpilogue splices a MirSaveRegs at the very start of the
// entry block, and a MirRestoreHostRegs immediately before every
// MirReturn in the function — the bracket pseudo-expansion (§4.14) turns
// into the real stp/ldp and SP adjustment sequence.
func insertPrologueEpilogue(fn *mir.Function, mask mir.RegMask) {
	if len(fn.Blocks) == 0 {
		return
	}
	entry := fn.Blocks[0]
	entry.InsertBefore(0, mir.Inst{MirSaveRegs: &mir.MirSaveRegs{Mask: mask}})

	for _, b := range fn.Blocks {
		for i, inst := range b.Insts {
			if inst.Kind() == mir.KindMirReturn {
				b.InsertBefore(i, mir.Inst{MirRestoreHostRegs: &mir.MirRestoreHostRegs{Mask: mask}})
				break
			}
		}
	}
}

// rewriteStackPositions replaces every remaining reference to a
// stack-position vreg with a scratch physical register loaded with the
// real SP-relative address immediately before the instruction that uses
// it, per spec.md §4.13's `addr = SP + delta_sp + item.Offset` formula
// (delta_sp is always 0 here, since CORE's frames carry no nested
// outgoing-argument adjustment — see the package doc comment).
func rewriteStackPositions(fn *mir.Function, items map[vkey]*mir.StackItem) {
	for _, b := range fn.Blocks {
		out := make([]mir.Inst, 0, len(b.Insts))
		for _, inst := range b.Insts {
			out = append(out, rewriteInst(items, inst)...)
		}
		b.Insts = out
	}
}

func rewriteInst(items map[vkey]*mir.StackItem, inst mir.Inst) []mir.Inst {
	var pre []mir.Inst
	next := 0
	rewritten := inst

	rewrite := func(r mir.Reg) {
		if !r.IsVirtual() {
			return
		}
		item, ok := items[keyOf(r)]
		if !ok {
			return
		}
		if next >= scratchCount {
			panic("stackframe: exhausted address scratch pool for one instruction")
		}
		scratch := mir.PRegOperand(mir.RegX(uint8(scratchBase + next)))
		next++
		pre = append(pre, materializeAddr(scratch, item.Offset)...)
		rewritten = mir.RewriteReg(rewritten, r, scratch)
	}

	for _, r := range mir.UsesOf(inst) {
		rewrite(r)
	}
	for _, r := range mir.DefsOf(inst) {
		rewrite(r)
	}

	if len(pre) == 0 {
		return []mir.Inst{inst}
	}
	return append(pre, rewritten)
}

// materializeAddr builds `dst = sp + offset` (or `sp - |offset|`),
// preferring a single Calc-immediate add/sub and falling back to a
// load-constant-then-add for offsets too large to encode directly.
func materializeAddr(dst mir.Reg, offset int32) []mir.Inst {
	sp := mir.PRegOperand(mir.RegSP())
	if offset >= 0 {
		if c, err := mir.NewLongImm(uint64(offset), mir.ImmCalc); err == nil {
			return []mir.Inst{{BinImm: &mir.BinImm{Op: mir.OpAdd, Bits: 64, Dst: dst, Lhs: sp, Imm: c}}}
		}
	} else {
		if c, err := mir.NewLongImm(uint64(-offset), mir.ImmCalc); err == nil {
			return []mir.Inst{{BinImm: &mir.BinImm{Op: mir.OpSub, Bits: 64, Dst: dst, Lhs: sp, Imm: c}}}
		}
	}
	full, _ := mir.NewLongImm(uint64(int64(offset)), mir.ImmFull)
	return []mir.Inst{
		{MirLoadConst: &mir.MirLoadConst{Dst: dst, Val: full, Bits: 64}},
		{BinReg: &mir.BinReg{Op: mir.OpAdd, Bits: 64, Dst: dst, Lhs: dst, Rhs: sp}},
	}
}

type vkey struct {
	file uint8
	id   uint32
}

func keyOf(r mir.Reg) vkey {
	return vkey{file: regFileOf(r), id: r.Virtual.ID()}
}

// regFileOf distinguishes the vreg bank for map-key purposes; stack
// position vregs are always general-purpose (mir.Function.AllocStackSlot
// only ever mints long vregs), but keying on bank too keeps this safe if
// that ever changes.
func regFileOf(r mir.Reg) uint8 {
	if r.Virtual.IsFloat() {
		return 1
	}
	return 0
}
