// Package lower implements CORE's instruction-selection pass: the
// translation from a verified internal/ir.Module into an
// internal/mir.Module, grounded on spec.md §4.10 ("Instruction
// selection"). The pass is a single forward walk per function — every
// block is visited once, every IR instruction lowers to zero or more
// MIR instructions appended to the corresponding MIR block — followed
// by a second pass that resolves phi nodes into parallel copies
// scheduled at the tail of each predecessor, since MIR has no phi
// instruction of its own (§4.10's "Phi is not emitted directly").
//
// Register allocation (regalloc), stack-layout finalization
// (stackframe), and pseudo expansion (expand) are later, separate
// passes over the Lower output; this package's job ends once every IR
// instruction has a MIR translation referencing virtual registers and
// not-yet-finalized stack positions.
package lower

import (
	"fmt"

	"talon/internal/base"
	"talon/internal/ir"
	"talon/internal/mir"
	"talon/internal/typesys"
)

const (
	intArgRegs = 8
	fpArgRegs  = 8
)

// funcCtx carries the per-function state a lowering pass accumulates:
// the block/value maps from IR handles to their MIR counterparts, and
// the phi nodes whose resolution is deferred to a second pass.
type funcCtx struct {
	m       *ir.Module
	fn      *mir.Function
	irFn    *ir.FuncData
	blockOf map[base.Handle]*mir.Block
	valOf   map[base.Handle]mir.Reg
	cmpCond map[base.Handle]mir.Cond
	argOf   []mir.Reg
	phis    []pendingPhi
}

type pendingPhi struct {
	dst      mir.Reg
	isFloat  bool
	bits     uint8
	incoming []phiIncoming
}

type phiIncoming struct {
	pred base.Handle
	val  ir.Value
}

// Lower translates every non-external function of m into a MIR
// function, collecting the set of global names MIR's symbol operands
// may reference.
func Lower(m *ir.Module) *mir.Module {
	out := mir.NewModule()
	for _, gh := range m.Globals() {
		out.Globals = append(out.Globals, m.Global(gh).Name)
	}
	for _, fh := range m.Functions() {
		fd := m.Function(fh)
		if fd.External {
			continue
		}
		out.Functions = append(out.Functions, lowerFunction(m, fh, fd))
	}
	return out
}

func lowerFunction(m *ir.Module, fh base.Handle, fd *ir.FuncData) *mir.Function {
	fn := mir.NewFunction(fd.Name)
	fn.IsMain = fd.Name == "main"

	fc := &funcCtx{
		m:       m,
		fn:      fn,
		irFn:    fd,
		blockOf: map[base.Handle]*mir.Block{},
		valOf:   map[base.Handle]mir.Reg{},
		cmpCond: map[base.Handle]mir.Cond{},
	}

	irBlocks := m.Blocks(fh)
	for i, bh := range irBlocks {
		fc.blockOf[bh] = fn.NewBlock(fmt.Sprintf("bb%d", i))
	}

	fc.lowerArgs(fd)

	for _, bh := range irBlocks {
		fc.lowerBlockBody(bh)
	}

	fc.resolvePhis()

	return fn
}

// lowerArgs classifies each parameter per AAPCS64: the first eight
// integer/pointer args arrive in X0-X7, the first eight float args in
// D0-D7; everything past that is spilled by the caller into the
// incoming-argument stack area above entry SP (spec.md §4.13).
func (fc *funcCtx) lowerArgs(fd *ir.FuncData) {
	entry := fc.fn.Blocks[0]
	nextInt, nextFP := uint8(0), uint8(0)
	fc.argOf = make([]mir.Reg, len(fd.ArgTypes))

	for i, ty := range fd.ArgTypes {
		dst := fc.freshVRegOf(ty)
		isFloat := ty.Kind() == typesys.KindFloat

		switch {
		case isFloat && nextFP < fpArgRegs:
			src := mir.PRegOperand(mir.RegFPD(nextFP))
			nextFP++
			if bitsOf(ty) == 32 {
				entry.Push(mir.Inst{MirFCopy32: &mir.MirFCopy32{Dst: dst, Src: src}})
			} else {
				entry.Push(mir.Inst{MirFCopy64: &mir.MirFCopy64{Dst: dst, Src: src}})
			}
			fc.fn.Args = append(fc.fn.Args, mir.ArgLoc{Reg: src, InReg: true})
		case !isFloat && nextInt < intArgRegs:
			src := mir.PRegOperand(mir.RegX(nextInt))
			nextInt++
			if bitsOf(ty) == 32 {
				entry.Push(mir.Inst{MirCopy32: &mir.MirCopy32{Dst: dst, Src: src}})
			} else {
				entry.Push(mir.Inst{MirCopy64: &mir.MirCopy64{Dst: dst, Src: src}})
			}
			fc.fn.Args = append(fc.fn.Args, mir.ArgLoc{Reg: src, InReg: true})
		default:
			slot := fc.fn.AllocIncomingArgSlot(fmt.Sprintf("arg%d", i), 8, 8)
			entry.Push(mir.Inst{LoadStore: &mir.LoadStore{
				Op: mir.OpLdr, Reg: dst, Base: slot, Mode: mir.AddrBaseImm, Offset: mir.ImmOperand(zeroLoadImm()),
			}})
			fc.fn.Args = append(fc.fn.Args, mir.ArgLoc{InReg: false})
		}
		fc.argOf[i] = dst
	}
}

func zeroLoadImm() mir.ImmConst {
	c, _ := mir.NewLongImm(0, mir.ImmLoad)
	return c
}

// bitsOf returns the MIR register width (32 or 64) a value of ty lowers
// into.
func bitsOf(ty typesys.Type) uint8 {
	switch ty.Kind() {
	case typesys.KindInt:
		if ty.IntBits() > 32 {
			return 64
		}
		return 32
	case typesys.KindFloat:
		if ty.FloatKind() == typesys.Float64 {
			return 64
		}
		return 32
	default:
		return 64
	}
}

func (fc *funcCtx) freshVRegOf(ty typesys.Type) mir.Reg {
	switch ty.Kind() {
	case typesys.KindFloat:
		if ty.FloatKind() == typesys.Float32 {
			return fc.fn.FreshFloatVReg()
		}
		return fc.fn.FreshDoubleVReg()
	case typesys.KindInt:
		if ty.IntBits() > 32 {
			return fc.fn.FreshLongVReg()
		}
		return fc.fn.FreshIntVReg()
	default: // Ptr and anything else material lowers as a 64-bit address
		return fc.fn.FreshLongVReg()
	}
}

func (fc *funcCtx) freshIntVRegOfBits(bits uint8) mir.Reg {
	if bits == 64 {
		return fc.fn.FreshLongVReg()
	}
	return fc.fn.FreshIntVReg()
}

// instResultType recovers the SSA result type of an arbitrary
// instruction value without a generic accessor on ir.Instruction, by a
// type switch over the concrete instruction structs.
func instResultType(inst ir.Instruction) typesys.Type {
	switch v := inst.(type) {
	case *ir.BinOpInst:
		return v.ResultType
	case *ir.CmpInst:
		return v.ResultType
	case *ir.CastInst:
		return v.ResultType
	case *ir.LoadInst:
		return v.ResultType
	case *ir.AllocaInst:
		return v.ResultType
	case *ir.GEPInst:
		return v.ResultType
	case *ir.SelectInst:
		return v.ResultType
	case *ir.CallInst:
		return v.ResultType
	case *ir.PhiInst:
		return v.ResultType
	default:
		panic("lower: instruction kind has no SSA result")
	}
}

// operandType resolves the type of any operand-position SSA value,
// needed by GEP index-width classification and store-immediate
// materialization.
func (fc *funcCtx) operandType(v ir.Value) typesys.Type {
	switch v.Kind {
	case ir.ValConstData:
		return v.Ty
	case ir.ValFuncArg:
		return fc.irFn.ArgTypes[v.ArgIndex]
	case ir.ValInst:
		return instResultType(fc.m.Instruction(v.Ref))
	default:
		return fc.m.Types().Ptr()
	}
}

// tryCalcImm reports whether v is a compile-time constant that fits
// the Calc immediate class at the given width, the condition spec.md
// §4.10 gates I-form add/sub/cmp selection on.
func tryCalcImm(bits uint8, v ir.Value) (mir.ImmConst, bool) {
	if v.Kind != ir.ValConstData || (v.ConstKind != ir.ConstInt && v.ConstKind != ir.ConstZero) {
		return mir.ImmConst{}, false
	}
	if bits == 64 {
		c, err := mir.NewLongImm(v.Bits, mir.ImmCalc)
		return c, err == nil
	}
	c, err := mir.NewWordImm(uint32(v.Bits), mir.ImmCalc)
	return c, err == nil
}

// valueReg resolves an IR operand value to a MIR register, emitting
// whatever materialization instructions (constant loads, global address
// computation) are needed into b as a side effect.
func (fc *funcCtx) valueReg(b *mir.Block, v ir.Value) mir.Reg {
	switch v.Kind {
	case ir.ValInst:
		if r, ok := fc.valOf[v.Ref]; ok {
			return r
		}
		if cond, ok := fc.cmpCond[v.Ref]; ok {
			return fc.materializeCond(b, cond)
		}
		panic("lower: use of an instruction result before it was lowered")
	case ir.ValFuncArg:
		if v.ArgIndex < 0 || v.ArgIndex >= len(fc.argOf) {
			panic("lower: reference to an unknown function argument")
		}
		return fc.argOf[v.ArgIndex]
	case ir.ValConstData:
		return fc.materializeConst(b, v)
	case ir.ValGlobal:
		return fc.materializeGlobalAddr(b, v.Ref)
	default:
		panic("lower: unsupported value kind in operand position")
	}
}

func (fc *funcCtx) materializeConst(b *mir.Block, v ir.Value) mir.Reg {
	if v.ConstKind == ir.ConstFloat {
		bits := bitsOf(v.Ty)
		imm := mir.ImmFromBits(v.Bits, v.Ty)
		if bits == 32 {
			dst := fc.fn.FreshFloatVReg()
			b.Push(mir.Inst{MirLdImmF32: &mir.MirLdImmF32{Dst: dst, Val: imm}})
			return dst
		}
		dst := fc.fn.FreshDoubleVReg()
		b.Push(mir.Inst{MirLdImmF64: &mir.MirLdImmF64{Dst: dst, Val: imm}})
		return dst
	}

	bits := bitsOf(v.Ty)
	dst := fc.freshIntVRegOfBits(bits)
	var imm mir.ImmConst
	if bits == 64 {
		imm, _ = mir.NewLongImm(v.Bits, mir.ImmFull)
	} else {
		imm, _ = mir.NewWordImm(uint32(v.Bits), mir.ImmFull)
	}
	b.Push(mir.Inst{MirLoadConst: &mir.MirLoadConst{Dst: dst, Val: imm, Bits: bits}})
	return dst
}

// materializeGlobalAddr computes the runtime address of a global via a
// zero-offset MirGEP from a symbol base — the same `adrp`+`add` shape
// pseudo-expansion already knows how to expand a symbol-based MirGEP
// into (spec.md §4.11), reused here instead of inventing a separate
// address-of-symbol pseudo.
func (fc *funcCtx) materializeGlobalAddr(b *mir.Block, gh base.Handle) mir.Reg {
	name := fc.m.Global(gh).Name
	dst := fc.fn.FreshLongVReg()
	tmp := fc.fn.FreshLongVReg()
	b.Push(mir.Inst{MirGEP: &mir.MirGEP{Dst: dst, Tmp: tmp, Base: mir.GEPBaseSymbol(name)}})
	return dst
}

// condOf resolves a boolean SSA value to an AArch64 condition code
// testable by a branch/select, fusing with a preceding Cmp when
// possible (spec.md §4.10: "consumers are responsible for reading
// PSTATE promptly") and otherwise materializing the boolean into a GPR
// and comparing it against zero.
func (fc *funcCtx) condOf(b *mir.Block, v ir.Value) mir.Cond {
	if v.Kind == ir.ValInst {
		if cond, ok := fc.cmpCond[v.Ref]; ok {
			return cond
		}
	}
	reg := fc.valueReg(b, v)
	zero, _ := mir.NewWordImm(0, mir.ImmCalc)
	b.Push(mir.Inst{Cmp: &mir.Cmp{Op: mir.OpCmp, Bits: 32, Lhs: reg, Rhs: mir.ImmOperand(zero)}})
	return mir.CondNE
}
