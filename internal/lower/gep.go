package lower

import (
	"talon/internal/base"
	"talon/internal/ir"
	"talon/internal/mir"
	"talon/internal/typesys"
)

// lowerGEP walks GEPInst.Indices through InitialType the way
// spec.md §4.11 describes: the first index scales by the size of the
// pointee type itself (array-of-InitialType semantics), every later
// index scales by the stride of whatever aggregate the walk is
// currently inside (array element size, or a struct field's byte
// offset). Constant indices contribute an immediate term; dynamic
// indices contribute a register term, sign-extended from 32 bits when
// the index is 32 bits wide or narrower and used as is otherwise.
func (fc *funcCtx) lowerGEP(b *mir.Block, ih base.Handle, inst *ir.GEPInst) {
	tctx := fc.m.Types()
	dst := fc.fn.FreshLongVReg()
	tmp := fc.fn.FreshLongVReg()

	baseVal := fc.m.UseOperand(inst.Base)
	var gbase mir.GEPBase
	if baseVal.Kind == ir.ValGlobal {
		gbase = mir.GEPBaseSymbol(fc.m.Global(baseVal.Ref).Name)
	} else {
		gbase = mir.GEPBaseReg(fc.valueReg(b, baseVal))
	}

	var offsets []mir.OffsetWeight
	cur := inst.InitialType
	for idx, useH := range inst.Indices {
		iv := fc.m.UseOperand(useH)
		if idx == 0 {
			weight := uint64(tctx.SizeOf(cur))
			offsets = append(offsets, fc.gepOffsetFor(b, iv, weight))
			continue
		}

		switch cur.Kind() {
		case typesys.KindArray:
			elem := tctx.ElementType(cur)
			weight := uint64(tctx.SizeOf(elem))
			offsets = append(offsets, fc.gepOffsetFor(b, iv, weight))
			cur = elem
		case typesys.KindStruct:
			if iv.Kind != ir.ValConstData {
				panic("lower: GEP struct index must be a compile-time constant")
			}
			fieldIdx := int(iv.Bits)
			off := tctx.FieldOffset(cur, fieldIdx)
			offsets = append(offsets, mir.OffsetWeight{Offset: mir.GEPOffsetImm(int64(off)), Weight: 1})
			cur = tctx.FieldType(cur, fieldIdx)
		default:
			panic("lower: GEP index into a non-aggregate type")
		}
	}

	g := &mir.MirGEP{Dst: dst, Tmp: tmp, Base: gbase, Offsets: offsets}
	g.MergeConstOffsets()
	fc.emitGEPSimplified(b, g)
	fc.valOf[ih] = dst
}

// gepOffsetFor builds the OffsetWeight term for one GEP index: an
// immediate for a constant index, otherwise a register term whose
// extension mode follows the index's own width (spec.md §4.11 scales
// a sub-64-bit index as sign-extended, per original_source's GEP
// index-materialization rule).
func (fc *funcCtx) gepOffsetFor(b *mir.Block, iv ir.Value, weight uint64) mir.OffsetWeight {
	if iv.Kind == ir.ValConstData {
		return mir.OffsetWeight{Offset: mir.GEPOffsetImm(int64(iv.Bits)), Weight: weight}
	}
	reg := fc.valueReg(b, iv)
	ty := fc.operandType(iv)
	if ty.Kind() == typesys.KindInt && ty.IntBits() <= 32 {
		return mir.OffsetWeight{Offset: mir.GEPOffsetS32(reg), Weight: weight}
	}
	return mir.OffsetWeight{Offset: mir.GEPOffsetG64(reg), Weight: weight}
}

// emitGEPSimplified applies spec.md §4.11's late-simplification rules
// after MergeConstOffsets: a zero offset against a register base is a
// plain move; a single remaining constant offset becomes an immediate
// add/sub when it fits the Calc class, or a load-const-then-add
// otherwise. A symbol base, or any register-valued offset, is left as
// a MirGEP for expand to handle.
func (fc *funcCtx) emitGEPSimplified(b *mir.Block, g *mir.MirGEP) {
	if g.Base.IsSymbol() {
		b.Push(mir.Inst{MirGEP: g})
		return
	}

	if len(g.Offsets) == 0 {
		b.Push(mir.Inst{MirCopy64: &mir.MirCopy64{Dst: g.Dst, Src: g.Base.Reg()}})
		return
	}

	if len(g.Offsets) == 1 && g.Offsets[0].Offset.IsImm() && g.Offsets[0].Weight == 1 {
		imm := g.Offsets[0].Offset.Imm()
		base := g.Base.Reg()

		if imm >= 0 {
			if c, ok := calcImm64(uint64(imm)); ok {
				b.Push(mir.Inst{BinImm: &mir.BinImm{Op: mir.OpAdd, Bits: 64, Dst: g.Dst, Lhs: base, Imm: c}})
				return
			}
		} else {
			if c, ok := calcImm64(uint64(-imm)); ok {
				b.Push(mir.Inst{BinImm: &mir.BinImm{Op: mir.OpSub, Bits: 64, Dst: g.Dst, Lhs: base, Imm: c}})
				return
			}
		}

		full, _ := mir.NewLongImm(uint64(imm), mir.ImmFull)
		b.Push(mir.Inst{MirLoadConst: &mir.MirLoadConst{Dst: g.Tmp, Val: full, Bits: 64}})
		b.Push(mir.Inst{BinReg: &mir.BinReg{Op: mir.OpAdd, Bits: 64, Dst: g.Dst, Lhs: base, Rhs: g.Tmp}})
		return
	}

	b.Push(mir.Inst{MirGEP: g})
}

func calcImm64(v uint64) (mir.ImmConst, bool) {
	c, err := mir.NewLongImm(v, mir.ImmCalc)
	return c, err == nil
}
