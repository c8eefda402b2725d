// Package expand implements pseudo-instruction expansion, per spec.md
// §4.14: the last MIR pass before a function is ready for textual
// emission, turning the pseudos internal/lower and
// internal/lower/stackframe left behind into real AArch64
// data-processing and load/store instructions.
//
// Not every pseudo is fully decomposed. The Inst type's non-pseudo
// struct family has no shape for a symbol-or-register-indirect call,
// for adrp page-relative addressing, or for a jump-table switch — see
// DESIGN.md. MirCall, MirReturn, MirSwitch, MirLdrLit, MirStrLit,
// MirStSym64, and the symbol-targeted variants of MirStImm32/64 and
// MirGEP are left as terminal pseudos for a future textual-emission
// stage to interpret directly; every other pseudo is fully expanded
// here.
package expand

import (
	"math/bits"

	"talon/internal/mir"
)

// scratchReg is the first of the two physical registers this pass
// borrows transiently for its own expansions. x16 holds a load-constant
// chunk sequence, an SP adjustment too large to fold into a single
// immediate, or an extended MirGEP offset; x17 (scratchReg+1) holds an
// out-of-range load/store address, a MirGEP non-power-of-two weight, or
// a non-zero MirStImm32/64 value, so a MirGEP term can use both at once. Neither value outlives the
// expansion of the instruction that borrowed it.
const scratchReg = 16 // x16

// Expand rewrites every block of fn in place, replacing each
// expandable pseudo with its real-instruction sequence.
func Expand(fn *mir.Function) {
	for _, b := range fn.Blocks {
		out := make([]mir.Inst, 0, len(b.Insts))
		for _, inst := range b.Insts {
			out = append(out, expandInst(fn, inst)...)
		}
		b.Insts = out
	}
}

func expandInst(fn *mir.Function, inst mir.Inst) []mir.Inst {
	switch inst.Kind() {
	case mir.KindMirCopy32:
		c := inst.MirCopy32
		if regEqual(c.Dst, c.Src) {
			return nil
		}
		return []mir.Inst{{UnaryReg: &mir.UnaryReg{Op: mir.OpMov, Bits: 32, Dst: c.Dst, Src: c.Src}}}
	case mir.KindMirCopy64:
		c := inst.MirCopy64
		if regEqual(c.Dst, c.Src) {
			return nil
		}
		return []mir.Inst{{UnaryReg: &mir.UnaryReg{Op: mir.OpMov, Bits: 64, Dst: c.Dst, Src: c.Src}}}
	case mir.KindMirFCopy32:
		c := inst.MirFCopy32
		if regEqual(c.Dst, c.Src) {
			return nil
		}
		return []mir.Inst{{FPUnary: &mir.FPUnary{Op: mir.OpFMov, Bits: 32, Dst: c.Dst, Src: c.Src}}}
	case mir.KindMirFCopy64:
		c := inst.MirFCopy64
		if regEqual(c.Dst, c.Src) {
			return nil
		}
		return []mir.Inst{{FPUnary: &mir.FPUnary{Op: mir.OpFMov, Bits: 64, Dst: c.Dst, Src: c.Src}}}
	case mir.KindMirPCopy:
		// PSTATE is hardware state that simply persists across
		// instructions that don't write it; no copy instruction exists
		// or is needed.
		return nil
	case mir.KindMirLoadConst:
		c := inst.MirLoadConst
		return expandLoadConst(c.Dst, c.Val, c.Bits)
	case mir.KindMirLdImmF32:
		c := inst.MirLdImmF32
		return expandLdImmF(c.Dst, c.Val, 32)
	case mir.KindMirLdImmF64:
		c := inst.MirLdImmF64
		return expandLdImmF(c.Dst, c.Val, 64)
	case mir.KindMirSaveRegs:
		c := inst.MirSaveRegs
		return expandSave(fn, c.Mask)
	case mir.KindMirRestoreRegs:
		c := inst.MirRestoreRegs
		return expandRestore(fn, c.Mask, false)
	case mir.KindMirRestoreHostRegs:
		c := inst.MirRestoreHostRegs
		return expandRestore(fn, c.Mask, true)
	case mir.KindMirStImm32:
		c := inst.MirStImm32
		if c.Sym != "" {
			return []mir.Inst{inst}
		}
		return expandStImm(c.Base, c.Offset, uint64(c.Val), 32)
	case mir.KindMirStImm64:
		c := inst.MirStImm64
		if c.Sym != "" {
			return []mir.Inst{inst}
		}
		return expandStImm(c.Base, c.Offset, c.Val, 64)
	case mir.KindMirGEP:
		c := inst.MirGEP
		if c.Base.IsSymbol() {
			return []mir.Inst{inst}
		}
		return expandGEP(c)
	default:
		return []mir.Inst{inst}
	}
}

func regEqual(a, b mir.Reg) bool { return a.String() == b.String() }

// expandLoadConst materializes val into dst via a movz, seeding every
// 16-bit window, followed by one movk per subsequent window that
// isn't already zero. The shift amount each movk applies is carried
// positionally — Imm holds the window's value pre-shifted into place,
// every other bit zero — since BinImm has no separate shift field.
func expandLoadConst(dst mir.Reg, val mir.ImmConst, width uint8) []mir.Inst {
	raw, _ := val.AsBits()
	return loadConstChunks(dst, raw, width)
}

func loadConstChunks(dst mir.Reg, raw uint64, width uint8) []mir.Inst {
	n := int(width / 16)
	zr := mir.PRegOperand(mir.RegZR())

	insts := make([]mir.Inst, 0, n)
	chunk0 := raw & 0xFFFF
	insts = append(insts, mir.Inst{BinImm: &mir.BinImm{
		Op: mir.OpMovZ, Bits: width, Dst: dst, Lhs: zr, Imm: windowImm(chunk0, width),
	}})

	for i := 1; i < n; i++ {
		window := (raw >> uint(16*i)) & 0xFFFF
		if window == 0 {
			continue
		}
		insts = append(insts, mir.Inst{BinImm: &mir.BinImm{
			Op: mir.OpMovK, Bits: width, Dst: dst, Lhs: dst, Imm: windowImm(window<<uint(16*i), width),
		}})
	}
	return insts
}

func windowImm(v uint64, width uint8) mir.ImmConst {
	if width == 32 {
		c, _ := mir.NewWordImm(uint32(v), mir.ImmFull)
		return c
	}
	c, _ := mir.NewLongImm(v, mir.ImmFull)
	return c
}

// expandLdImmF materializes a floating-point immediate. A value
// encodable in the 8-bit fmov immediate space expands to one
// instruction; anything else is built bit-for-bit in a GP scratch
// register and moved across the register bank with fmov.
func expandLdImmF(dst mir.Reg, val mir.ImmConst, width uint8) []mir.Inst {
	f, _ := val.AsFloat()
	if enc, ok := mir.TryFloat64ToFMov(f); ok {
		return []mir.Inst{{BinImm: &mir.BinImm{
			Op: mir.OpFMov, Bits: width, Dst: dst, Lhs: dst, Imm: mir.NewFMovImm(enc),
		}}}
	}

	raw, _ := val.AsBits()
	scratch := mir.PRegOperand(mir.RegX(scratchReg))
	insts := loadConstChunks(scratch, raw, width)
	insts = append(insts, mir.Inst{FPUnary: &mir.FPUnary{Op: mir.OpFMov, Bits: width, Dst: dst, Src: scratch}})
	return insts
}

// expandSave expands the function prologue bracket: reserve the whole
// frame by subtracting its size from SP, then store each callee-saved
// register into its slot.
func expandSave(fn *mir.Function, mask mir.RegMask) []mir.Inst {
	frameSize, base := frameGeometry(fn)
	insts := adjustSP(frameSize, false)
	insts = append(insts, saveRestoreRegs(mask, base, true)...)
	return insts
}

// expandRestore expands a restore bracket: reload each callee-saved
// register from its slot, then — for the function epilogue only —
// unwind SP back to its value at function entry.
func expandRestore(fn *mir.Function, mask mir.RegMask, isEpilogue bool) []mir.Inst {
	_, base := frameGeometry(fn)
	insts := saveRestoreRegs(mask, base, false)
	if isEpilogue {
		frameSize, _ := frameGeometry(fn)
		insts = append(insts, adjustSP(frameSize, true)...)
	}
	return insts
}

// frameGeometry returns the total frame size and the byte offset from
// SP where the callee-saved region begins, per
// internal/lower/stackframe's layout: Vars, then outgoing arguments,
// then the callee-saved slots, with IncomingArgs living above the
// frame entirely.
func frameGeometry(fn *mir.Function) (frameSize, calleeSavedBase uint32) {
	l := fn.Layout
	calleeSavedBase = l.VarSize + l.OutgoingArgSize
	frameSize = roundUp16(calleeSavedBase + l.CalleeSavedSize)
	return frameSize, calleeSavedBase
}

func roundUp16(v uint32) uint32 { return (v + 15) &^ 15 }

func saveRestoreRegs(mask mir.RegMask, base uint32, isStore bool) []mir.Inst {
	var insts []mir.Inst
	for i, preg := range mask.Registers() {
		off := base + uint32(i)*8
		op := mir.OpLdr
		if isStore {
			op = mir.OpStr
		}
		reg := mir.PRegOperand(preg)
		insts = append(insts, loadStoreAt(reg, mir.PRegOperand(mir.RegSP()), off, op, isStore)...)
	}
	return insts
}

// adjustSP grows (shrink=false) or shrinks (shrink=true) the stack by
// size bytes, preferring a single Calc-immediate sub/add and falling
// back to a load-constant-then-add/sub sequence for an offset too
// large to encode directly.
func adjustSP(size uint32, shrink bool) []mir.Inst {
	sp := mir.PRegOperand(mir.RegSP())
	op := mir.OpSub
	if shrink {
		op = mir.OpAdd
	}
	if c, err := mir.NewLongImm(uint64(size), mir.ImmCalc); err == nil {
		return []mir.Inst{{BinImm: &mir.BinImm{Op: op, Bits: 64, Dst: sp, Lhs: sp, Imm: c}}}
	}
	scratch := mir.PRegOperand(mir.RegX(scratchReg))
	insts := loadConstChunks(scratch, uint64(size), 64)
	binOp := mir.OpSub
	if shrink {
		binOp = mir.OpAdd
	}
	insts = append(insts, mir.Inst{BinReg: &mir.BinReg{Op: binOp, Bits: 64, Dst: sp, Lhs: sp, Rhs: scratch}})
	return insts
}

// loadStoreAt builds a load or store of reg at base+offset, folding
// offset directly into the instruction when it fits the tight 9-bit
// ImmLoad encoding, and materializing base+offset into a scratch
// register first otherwise.
func loadStoreAt(reg, base mir.Reg, offset uint32, op mir.Opcode, isStore bool) []mir.Inst {
	if c, err := mir.NewLongImm(uint64(offset), mir.ImmLoad); err == nil {
		return []mir.Inst{{LoadStore: &mir.LoadStore{
			Op: op, IsStore: isStore, Reg: reg, Base: base, Mode: mir.AddrBaseImm, Offset: mir.ImmOperand(c),
		}}}
	}

	scratch := mir.PRegOperand(mir.RegX(scratchReg + 1))
	var pre []mir.Inst
	if c, err := mir.NewLongImm(uint64(offset), mir.ImmCalc); err == nil {
		pre = append(pre, mir.Inst{BinImm: &mir.BinImm{Op: mir.OpAdd, Bits: 64, Dst: scratch, Lhs: base, Imm: c}})
	} else {
		pre = append(pre, loadConstChunks(scratch, uint64(offset), 64)...)
		pre = append(pre, mir.Inst{BinReg: &mir.BinReg{Op: mir.OpAdd, Bits: 64, Dst: scratch, Lhs: scratch, Rhs: base}})
	}
	zero, _ := mir.NewLongImm(0, mir.ImmLoad)
	pre = append(pre, mir.Inst{LoadStore: &mir.LoadStore{
		Op: op, IsStore: isStore, Reg: reg, Base: scratch, Mode: mir.AddrBaseImm, Offset: mir.ImmOperand(zero),
	}})
	return pre
}

// expandStImm stores WZR/XZR at base+offset when val is zero;
// otherwise it materializes val into x17/w17 via movz/movk and stores
// that. The pseudo's own Scratch vreg is not used.
func expandStImm(base mir.Reg, offset mir.ImmConst, val uint64, width uint8) []mir.Inst {
	src := mir.RegX(scratchReg + 1)
	if width == 32 {
		src = mir.RegW(scratchReg + 1)
	}
	var insts []mir.Inst
	if val == 0 {
		src = mir.RegZR()
		if width == 32 {
			src.Sub = src.Sub.WithBitsLog2(5)
		}
	} else {
		insts = loadConstChunks(mir.PRegOperand(src), val, width)
	}
	op := mir.OpStr
	insts = append(insts, mir.Inst{LoadStore: &mir.LoadStore{
		Op: op, IsStore: true, Reg: mir.PRegOperand(src), Base: base, Mode: mir.AddrBaseImm, Offset: mir.ImmOperand(offset),
	}})
	return insts
}

// expandGEP expands a register-based MirGEP into a running sum in
// Dst, seeded from Base and accumulating one term per offset: a
// folded constant add/sub, a shift-and-add for a power-of-two weight,
// or a multiply-accumulate for anything else. g.Tmp is left untouched
// — its doc comment reserves it for materializing a symbol base's
// address, which a register-base GEP never needs — so this expansion
// borrows its own fixed scratch pair instead, the same X16/X17 pair
// internal/lower/stackframe uses for stack addresses.
func expandGEP(g *mir.MirGEP) []mir.Inst {
	extReg := mir.PRegOperand(mir.RegX(scratchReg))
	wReg := mir.PRegOperand(mir.RegX(scratchReg + 1))

	insts := []mir.Inst{{UnaryReg: &mir.UnaryReg{Op: mir.OpMov, Bits: 64, Dst: g.Dst, Src: g.Base.Reg()}}}

	for _, ow := range g.Offsets {
		if ow.Offset.IsImm() {
			term := ow.Offset.Imm() * int64(ow.Weight)
			if term == 0 {
				continue
			}
			insts = append(insts, addConstTerm(g.Dst, extReg, term)...)
			continue
		}

		ext := ow.Offset.Ext()
		insts = append(insts, mir.Inst{UnaryReg: &mir.UnaryReg{
			Op: mir.OpMov, Bits: 64, Dst: extReg, Src: ow.Offset.Reg(), Shift: extPtr(ext),
		}})

		switch {
		case ow.Weight == 1:
			insts = append(insts, mir.Inst{BinReg: &mir.BinReg{
				Op: mir.OpAdd, Bits: 64, Dst: g.Dst, Lhs: g.Dst, Rhs: extReg,
			}})
		case bits.OnesCount64(ow.Weight) == 1:
			shift := mir.LSL(uint8(bits.TrailingZeros64(ow.Weight)))
			insts = append(insts, mir.Inst{BinReg: &mir.BinReg{
				Op: mir.OpAdd, Bits: 64, Dst: g.Dst, Lhs: g.Dst, Rhs: extReg, Shift: &shift,
			}})
		default:
			insts = append(insts, loadConstChunks(wReg, ow.Weight, 64)...)
			insts = append(insts, mir.Inst{MulAdd: &mir.MulAdd{
				Op: mir.OpMAdd, DstBits: 64, SrcBits: 64,
				Dst: g.Dst, Lhs: extReg, Rhs: wReg, Acc: g.Dst, HasAcc: true,
			}})
		}
	}
	return insts
}

func extPtr(e mir.ShiftExtendOp) *mir.ShiftExtendOp {
	if e == (mir.SXTX) {
		return nil
	}
	return &e
}

func addConstTerm(dst, scratch mir.Reg, term int64) []mir.Inst {
	op := mir.OpAdd
	mag := uint64(term)
	if term < 0 {
		op = mir.OpSub
		mag = uint64(-term)
	}
	if c, err := mir.NewLongImm(mag, mir.ImmCalc); err == nil {
		return []mir.Inst{{BinImm: &mir.BinImm{Op: op, Bits: 64, Dst: dst, Lhs: dst, Imm: c}}}
	}
	insts := loadConstChunks(scratch, mag, 64)
	insts = append(insts, mir.Inst{BinReg: &mir.BinReg{Op: op, Bits: 64, Dst: dst, Lhs: dst, Rhs: scratch}})
	return insts
}
