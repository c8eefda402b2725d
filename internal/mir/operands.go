package mir

// UsesOf and DefsOf partition an instruction's register operands into
// the ones it reads and the ones it writes. internal/lower/regalloc
// needs this split to know, for a spilled vreg touching an instruction,
// whether to materialize a load before the instruction (a use) or a
// store after it (a def) — spec.md §4.12 step 3.

func UsesOf(inst Inst) []Reg {
	var out []Reg
	add := func(r Reg) { out = append(out, r) }
	switch inst.Kind() {
	case KindBranch:
	case KindCondBranch:
	case KindRegBranch:
		add(inst.RegBranch.Reg)
	case KindCmp:
		add(inst.Cmp.Lhs)
		if inst.Cmp.Rhs.IsReg() {
			add(inst.Cmp.Rhs.Reg())
		}
	case KindBinReg:
		add(inst.BinReg.Lhs)
		add(inst.BinReg.Rhs)
	case KindBinImm:
		add(inst.BinImm.Lhs)
	case KindUnaryReg:
		add(inst.UnaryReg.Src)
	case KindMulAdd:
		add(inst.MulAdd.Lhs)
		add(inst.MulAdd.Rhs)
		if inst.MulAdd.HasAcc {
			add(inst.MulAdd.Acc)
		}
	case KindLoadStore:
		ls := inst.LoadStore
		if ls.Mode != AddrLiteral {
			add(ls.Base)
		}
		if ls.Offset.IsReg() {
			add(ls.Offset.Reg())
		}
		if ls.IsStore {
			add(ls.Reg)
		}
	case KindCondSelect:
		add(inst.CondSelect.Lhs)
		add(inst.CondSelect.Rhs)
	case KindFPBinary:
		add(inst.FPBinary.Lhs)
		add(inst.FPBinary.Rhs)
	case KindFPUnary:
		add(inst.FPUnary.Src)
	case KindFPConvert:
		add(inst.FPConvert.Src)
	case KindFPCompare:
		add(inst.FPCompare.Lhs)
		add(inst.FPCompare.Rhs)
	case KindMirCopy32, KindMirCopy64, KindMirFCopy32, KindMirFCopy64, KindMirPCopy:
		add(copySrc(inst))
	case KindMirCall:
		out = append(out, inst.MirCall.ArgRegs...)
		if inst.MirCall.Symbol == "" {
			add(inst.MirCall.Target)
		}
	case KindMirReturn:
		out = append(out, inst.MirReturn.ResultRegs...)
	case KindMirSwitch:
		add(inst.MirSwitch.Index)
	case KindMirGEP:
		g := inst.MirGEP
		if g.Base.IsReg() {
			add(g.Base.Reg())
		}
		for _, ow := range g.Offsets {
			if !ow.Offset.IsImm() {
				add(ow.Offset.Reg())
			}
		}
	case KindMirLoadConst:
	case KindMirStImm32:
		if inst.MirStImm32.Sym == "" {
			add(inst.MirStImm32.Base)
		}
	case KindMirStImm64:
		if inst.MirStImm64.Sym == "" {
			add(inst.MirStImm64.Base)
		}
	case KindMirStrLit:
		add(inst.MirStrLit.Src)
	}
	return out
}

func copySrc(inst Inst) Reg {
	switch inst.Kind() {
	case KindMirCopy32:
		return inst.MirCopy32.Src
	case KindMirCopy64:
		return inst.MirCopy64.Src
	case KindMirFCopy32:
		return inst.MirFCopy32.Src
	case KindMirFCopy64:
		return inst.MirFCopy64.Src
	case KindMirPCopy:
		return inst.MirPCopy.Src
	default:
		panic("mir: copySrc called on a non-copy instruction")
	}
}

func DefsOf(inst Inst) []Reg {
	var out []Reg
	add := func(r Reg) { out = append(out, r) }
	switch inst.Kind() {
	case KindBinReg:
		add(inst.BinReg.Dst)
	case KindBinImm:
		add(inst.BinImm.Dst)
	case KindUnaryReg:
		add(inst.UnaryReg.Dst)
	case KindMulAdd:
		add(inst.MulAdd.Dst)
	case KindLoadStore:
		if !inst.LoadStore.IsStore {
			add(inst.LoadStore.Reg)
		}
	case KindCondSelect:
		add(inst.CondSelect.Dst)
	case KindFPBinary:
		add(inst.FPBinary.Dst)
	case KindFPUnary:
		add(inst.FPUnary.Dst)
	case KindFPConvert:
		add(inst.FPConvert.Dst)
	case KindMirCopy32:
		add(inst.MirCopy32.Dst)
	case KindMirCopy64:
		add(inst.MirCopy64.Dst)
	case KindMirFCopy32:
		add(inst.MirFCopy32.Dst)
	case KindMirFCopy64:
		add(inst.MirFCopy64.Dst)
	case KindMirPCopy:
		add(inst.MirPCopy.Dst)
	case KindMirCall:
		out = append(out, inst.MirCall.ResultRegs...)
	case KindMirGEP:
		add(inst.MirGEP.Dst)
		if inst.MirGEP.Base.IsSymbol() {
			add(inst.MirGEP.Tmp)
		}
	case KindMirLoadConst:
		add(inst.MirLoadConst.Dst)
	case KindMirLdImmF32:
		add(inst.MirLdImmF32.Dst)
	case KindMirLdImmF64:
		add(inst.MirLdImmF64.Dst)
	case KindMirLdrLit:
		add(inst.MirLdrLit.Dst)
	}
	return out
}

func regsOf(inst Inst) []Reg {
	return append(UsesOf(inst), DefsOf(inst)...)
}

// RewriteReg returns a copy of inst with every occurrence of old (by
// bank+id) replaced by replacement, used by internal/lower/regalloc to
// retarget a spilled vreg's operand slots onto the scratch physical
// register materialized around each touching instruction.
func RewriteReg(inst Inst, old, replacement Reg) Inst {
	matches := func(r Reg) bool {
		return r.IsVirtual() && old.IsVirtual() &&
			r.Virtual.file == old.Virtual.file && r.Virtual.id == old.Virtual.id
	}
	sub := func(r Reg) Reg {
		if matches(r) {
			rep := replacement
			if r.Virtual != nil {
				rep = withFlags(replacement, r.Virtual.Flags)
			}
			return rep
		}
		return r
	}
	switch inst.Kind() {
	case KindBinReg:
		v := *inst.BinReg
		v.Dst, v.Lhs, v.Rhs = sub(v.Dst), sub(v.Lhs), sub(v.Rhs)
		return Inst{BinReg: &v}
	case KindBinImm:
		v := *inst.BinImm
		v.Dst, v.Lhs = sub(v.Dst), sub(v.Lhs)
		return Inst{BinImm: &v}
	case KindUnaryReg:
		v := *inst.UnaryReg
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{UnaryReg: &v}
	case KindCmp:
		v := *inst.Cmp
		v.Lhs = sub(v.Lhs)
		if v.Rhs.IsReg() {
			v.Rhs = RegOperand(sub(v.Rhs.Reg()))
		}
		return Inst{Cmp: &v}
	case KindLoadStore:
		v := *inst.LoadStore
		v.Reg, v.Base = sub(v.Reg), sub(v.Base)
		if v.Offset.IsReg() {
			v.Offset = RegOperand(sub(v.Offset.Reg()))
		}
		return Inst{LoadStore: &v}
	case KindMirCopy64:
		v := *inst.MirCopy64
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{MirCopy64: &v}
	case KindMirCopy32:
		v := *inst.MirCopy32
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{MirCopy32: &v}
	case KindMirFCopy32:
		v := *inst.MirFCopy32
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{MirFCopy32: &v}
	case KindMirFCopy64:
		v := *inst.MirFCopy64
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{MirFCopy64: &v}
	case KindMirPCopy:
		v := *inst.MirPCopy
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{MirPCopy: &v}
	case KindMulAdd:
		v := *inst.MulAdd
		v.Dst, v.Lhs, v.Rhs = sub(v.Dst), sub(v.Lhs), sub(v.Rhs)
		if v.HasAcc {
			v.Acc = sub(v.Acc)
		}
		return Inst{MulAdd: &v}
	case KindCondSelect:
		v := *inst.CondSelect
		v.Dst, v.Lhs, v.Rhs = sub(v.Dst), sub(v.Lhs), sub(v.Rhs)
		return Inst{CondSelect: &v}
	case KindFPBinary:
		v := *inst.FPBinary
		v.Dst, v.Lhs, v.Rhs = sub(v.Dst), sub(v.Lhs), sub(v.Rhs)
		return Inst{FPBinary: &v}
	case KindFPUnary:
		v := *inst.FPUnary
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{FPUnary: &v}
	case KindFPConvert:
		v := *inst.FPConvert
		v.Dst, v.Src = sub(v.Dst), sub(v.Src)
		return Inst{FPConvert: &v}
	case KindFPCompare:
		v := *inst.FPCompare
		v.Lhs, v.Rhs = sub(v.Lhs), sub(v.Rhs)
		return Inst{FPCompare: &v}
	case KindRegBranch:
		v := *inst.RegBranch
		v.Reg = sub(v.Reg)
		return Inst{RegBranch: &v}
	case KindMirSwitch:
		v := *inst.MirSwitch
		v.Index = sub(v.Index)
		return Inst{MirSwitch: &v}
	case KindMirReturn:
		v := *inst.MirReturn
		for i, r := range v.ResultRegs {
			v.ResultRegs[i] = sub(r)
		}
		return Inst{MirReturn: &v}
	case KindMirCall:
		v := *inst.MirCall
		if v.Symbol == "" {
			v.Target = sub(v.Target)
		}
		for i, r := range v.ArgRegs {
			v.ArgRegs[i] = sub(r)
		}
		return Inst{MirCall: &v}
	case KindMirGEP:
		v := *inst.MirGEP
		v.Dst, v.Tmp = sub(v.Dst), sub(v.Tmp)
		if v.Base.IsReg() {
			v.Base = GEPBaseReg(sub(v.Base.Reg()))
		}
		for i, ow := range v.Offsets {
			if !ow.Offset.IsImm() {
				v.Offsets[i].Offset = rewriteGEPOffset(ow.Offset, sub)
			}
		}
		return Inst{MirGEP: &v}
	case KindMirLoadConst:
		v := *inst.MirLoadConst
		v.Dst = sub(v.Dst)
		return Inst{MirLoadConst: &v}
	case KindMirLdImmF32:
		v := *inst.MirLdImmF32
		v.Dst = sub(v.Dst)
		return Inst{MirLdImmF32: &v}
	case KindMirLdImmF64:
		v := *inst.MirLdImmF64
		v.Dst = sub(v.Dst)
		return Inst{MirLdImmF64: &v}
	case KindMirStImm32:
		v := *inst.MirStImm32
		if v.Sym == "" {
			v.Base = sub(v.Base)
		}
		v.Scratch = sub(v.Scratch)
		return Inst{MirStImm32: &v}
	case KindMirStImm64:
		v := *inst.MirStImm64
		if v.Sym == "" {
			v.Base = sub(v.Base)
		}
		v.Scratch = sub(v.Scratch)
		return Inst{MirStImm64: &v}
	case KindMirLdrLit:
		v := *inst.MirLdrLit
		v.Dst, v.Tmp = sub(v.Dst), sub(v.Tmp)
		return Inst{MirLdrLit: &v}
	case KindMirStrLit:
		v := *inst.MirStrLit
		v.Src, v.Tmp = sub(v.Src), sub(v.Tmp)
		return Inst{MirStrLit: &v}
	default:
		return inst
	}
}

func rewriteGEPOffset(o GEPOffset, sub func(Reg) Reg) GEPOffset {
	r := sub(o.Reg())
	switch {
	case o.ext == SXTX:
		return GEPOffsetG64(r)
	case o.ext == UXTW:
		return GEPOffsetU32(r)
	default:
		return GEPOffsetS32(r)
	}
}

func withFlags(r Reg, flags RegUseFlags) Reg {
	if r.IsPhysical() {
		p := *r.Physical
		p.Flags = flags
		return PRegOperand(p)
	}
	v := *r.Virtual
	v.Flags = flags
	return VRegOperand(v)
}
