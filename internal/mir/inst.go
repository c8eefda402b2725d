package mir

import (
	"fmt"
	"strings"
)

// Inst is the closed sum of MIR instruction variants, the same
// "struct-plus-tag, not interface" shape internal/ir uses for Value and
// this package uses for Reg/Operand — every variant below fills exactly
// one of Inst's pointer fields, the rest are nil, and Kind reports which.
// This mirrors original_source's MirInst enum (mir/inst/impls.rs +
// mir/inst/opcode.rs), collapsed from its ~40 per-operand-shape structs
// down to the families spec.md §4.9 names.
type Inst struct {
	Branch      *Branch
	CondBranch  *CondBranch
	RegBranch   *RegBranch
	Cmp         *Cmp
	BinReg      *BinReg
	BinImm      *BinImm
	UnaryReg    *UnaryReg
	MulAdd      *MulAdd
	LoadStore   *LoadStore
	CondSelect  *CondSelect
	FPBinary    *FPBinary
	FPUnary     *FPUnary
	FPConvert   *FPConvert
	FPCompare   *FPCompare

	// Pseudos, named exactly as spec.md §4.9 lists them.
	MirCopy32          *MirCopy32
	MirCopy64          *MirCopy64
	MirFCopy32         *MirFCopy32
	MirFCopy64         *MirFCopy64
	MirPCopy           *MirPCopy
	MirCall            *MirCall
	MirReturn          *MirReturn
	MirSwitch          *MirSwitch
	MirGEP             *MirGEP
	MirLoadConst       *MirLoadConst
	MirLdImmF32        *MirLdImmF32
	MirLdImmF64        *MirLdImmF64
	MirLdrLit          *MirLdrLit
	MirStrLit          *MirStrLit
	MirStImm32         *MirStImm32
	MirStImm64         *MirStImm64
	MirStSym64         *MirStSym64
	MirSaveRegs        *MirSaveRegs
	MirRestoreRegs     *MirRestoreRegs
	MirRestoreHostRegs *MirRestoreHostRegs
}

// Kind names which alternative of Inst is populated, for switch-free
// dispatch in callers that only need identity (e.g. pseudo-expansion's
// "is this still a pseudo" check).
type Kind uint8

const (
	KindBranch Kind = iota
	KindCondBranch
	KindRegBranch
	KindCmp
	KindBinReg
	KindBinImm
	KindUnaryReg
	KindMulAdd
	KindLoadStore
	KindCondSelect
	KindFPBinary
	KindFPUnary
	KindFPConvert
	KindFPCompare
	KindMirCopy32
	KindMirCopy64
	KindMirFCopy32
	KindMirFCopy64
	KindMirPCopy
	KindMirCall
	KindMirReturn
	KindMirSwitch
	KindMirGEP
	KindMirLoadConst
	KindMirLdImmF32
	KindMirLdImmF64
	KindMirLdrLit
	KindMirStrLit
	KindMirStImm32
	KindMirStImm64
	KindMirStSym64
	KindMirSaveRegs
	KindMirRestoreRegs
	KindMirRestoreHostRegs
)

func (i Inst) Kind() Kind {
	switch {
	case i.Branch != nil:
		return KindBranch
	case i.CondBranch != nil:
		return KindCondBranch
	case i.RegBranch != nil:
		return KindRegBranch
	case i.Cmp != nil:
		return KindCmp
	case i.BinReg != nil:
		return KindBinReg
	case i.BinImm != nil:
		return KindBinImm
	case i.UnaryReg != nil:
		return KindUnaryReg
	case i.MulAdd != nil:
		return KindMulAdd
	case i.LoadStore != nil:
		return KindLoadStore
	case i.CondSelect != nil:
		return KindCondSelect
	case i.FPBinary != nil:
		return KindFPBinary
	case i.FPUnary != nil:
		return KindFPUnary
	case i.FPConvert != nil:
		return KindFPConvert
	case i.FPCompare != nil:
		return KindFPCompare
	case i.MirCopy32 != nil:
		return KindMirCopy32
	case i.MirCopy64 != nil:
		return KindMirCopy64
	case i.MirFCopy32 != nil:
		return KindMirFCopy32
	case i.MirFCopy64 != nil:
		return KindMirFCopy64
	case i.MirPCopy != nil:
		return KindMirPCopy
	case i.MirCall != nil:
		return KindMirCall
	case i.MirReturn != nil:
		return KindMirReturn
	case i.MirSwitch != nil:
		return KindMirSwitch
	case i.MirGEP != nil:
		return KindMirGEP
	case i.MirLoadConst != nil:
		return KindMirLoadConst
	case i.MirLdImmF32 != nil:
		return KindMirLdImmF32
	case i.MirLdImmF64 != nil:
		return KindMirLdImmF64
	case i.MirLdrLit != nil:
		return KindMirLdrLit
	case i.MirStrLit != nil:
		return KindMirStrLit
	case i.MirStImm32 != nil:
		return KindMirStImm32
	case i.MirStImm64 != nil:
		return KindMirStImm64
	case i.MirStSym64 != nil:
		return KindMirStSym64
	case i.MirSaveRegs != nil:
		return KindMirSaveRegs
	case i.MirRestoreRegs != nil:
		return KindMirRestoreRegs
	case i.MirRestoreHostRegs != nil:
		return KindMirRestoreHostRegs
	default:
		panic("mir: empty Inst has no populated variant")
	}
}

// IsPseudo reports whether the instruction must pass through
// internal/lower/expand before it can be emitted as real AArch64 text.
func (i Inst) IsPseudo() bool {
	switch i.Kind() {
	case KindMirCopy32, KindMirCopy64, KindMirFCopy32, KindMirFCopy64, KindMirPCopy,
		KindMirCall, KindMirReturn, KindMirSwitch, KindMirGEP, KindMirLoadConst,
		KindMirLdImmF32, KindMirLdImmF64, KindMirLdrLit, KindMirStrLit,
		KindMirStImm32, KindMirStImm64, KindMirStSym64,
		KindMirSaveRegs, KindMirRestoreRegs, KindMirRestoreHostRegs:
		return true
	default:
		return false
	}
}

func (i Inst) IsTerminator() bool {
	switch i.Kind() {
	case KindBranch, KindCondBranch, KindRegBranch, KindMirReturn, KindMirSwitch:
		return true
	default:
		return false
	}
}

// --- Non-pseudo families (spec.md §4.9) ---

// Branch is an unconditional jump to a label target (the `b` opcode).
type Branch struct {
	Target *Block
}

// CondBranch reads PSTATE and a condition code (`b.cond`).
type CondBranch struct {
	Cond   Cond
	Target *Block
	Fallthrough *Block
}

// RegBranch is a register-conditional branch: CBZ/CBNZ test a whole
// register against zero, TBZ/TBNZ test a single bit.
type RegBranch struct {
	Op     Opcode // OpCBZ, OpCBNZ, OpTBZ, OpTBNZ
	Reg    Reg
	Bit    uint8 // meaningful only for TBZ/TBNZ
	Target *Block
	Fallthrough *Block
}

// Cmp computes lhs-rhs (or lhs+rhs for Cmn) and writes PSTATE only;
// Rhs may be a register or a Calc-class immediate.
type Cmp struct {
	Op    Opcode // OpCmp, OpCmn
	Bits  uint8  // 32 or 64
	Lhs   Reg
	Rhs   Operand // Reg or ImmConst(ImmCalc)
	Shift *ShiftExtendOp
}

// BinReg is a three-operand register-register integer or logic
// instruction (add/sub/and/orr/eor/lsl/lsr/asr/ror), optionally with a
// shift/extend modifier on Rhs.
type BinReg struct {
	Op    Opcode
	Bits  uint8
	Dst   Reg
	Lhs   Reg
	Rhs   Reg
	Shift *ShiftExtendOp
}

// BinImm is the immediate-operand counterpart of BinReg: add/sub with a
// Calc immediate, or and/orr/eor with a Logic immediate.
type BinImm struct {
	Op   Opcode
	Bits uint8
	Dst  Reg
	Lhs  Reg
	Imm  ImmConst
}

// UnaryReg covers single-source-register integer ops: neg, mvn, mov,
// clz, and plain register-to-register mov.
type UnaryReg struct {
	Op    Opcode
	Bits  uint8
	Dst   Reg
	Src   Reg
	Shift *ShiftExtendOp
}

// MulAdd covers the multiply and multiply-accumulate families,
// including the widening smull/umull/smaddl/umaddl forms whose Acc and
// Dst are a wider register class than Lhs/Rhs.
type MulAdd struct {
	Op        Opcode
	DstBits   uint8
	SrcBits   uint8
	Dst       Reg
	Lhs       Reg
	Rhs       Reg
	Acc       Reg // zero Reg for mul/smull/umull (no accumulate operand)
	HasAcc    bool
}

// AddrMode names a load/store addressing mode.
type AddrMode uint8

const (
	AddrBaseImm AddrMode = iota
	AddrRegOffset
	AddrPreIndex
	AddrPostIndex
	AddrLiteral
)

// LoadStore covers every ldr/str sub-family, split by addressing mode
// and access width/signedness (the opcode itself, e.g. OpLdrSH, already
// carries width+signedness; AddrMode carries the addressing shape).
type LoadStore struct {
	Op      Opcode
	IsStore bool
	Reg     Reg // the loaded/stored GP or FP register
	Base    Reg // meaningful for all modes except AddrLiteral
	Offset  Operand // Reg (AddrRegOffset) or ImmConst(ImmLoad) (AddrBaseImm/Pre/Post), none for AddrLiteral
	Symbol  string  // meaningful only for AddrLiteral
	Mode    AddrMode
}

// CondSelect covers CSEL/CSINC/CSINV/CSNEG/CSET/FCSEL: Dst = cond ?
// Lhs : (some derivation of Rhs), gated by Cond and reading PSTATE.
type CondSelect struct {
	Op   Opcode
	Bits uint8
	Dst  Reg
	Lhs  Reg
	Rhs  Reg
	Cond Cond
}

// FPBinary is a two-FP-source arithmetic op (fadd/fsub/fmul/fdiv).
type FPBinary struct {
	Op   Opcode
	Bits uint8 // 32 or 64
	Dst  Reg
	Lhs  Reg
	Rhs  Reg
}

// FPUnary is a one-FP-source op (fabs/fneg/fsqrt/fmov register-register).
type FPUnary struct {
	Op   Opcode
	Bits uint8
	Dst  Reg
	Src  Reg
}

// FPConvert moves a value between the integer and floating-point
// register banks (scvtf/ucvtf/fcvtzs/fcvtzu).
type FPConvert struct {
	Op      Opcode
	SrcBits uint8
	DstBits uint8
	Dst     Reg
	Src     Reg
}

// FPCompare writes PSTATE from two FP sources (fcmp/fcmpe).
type FPCompare struct {
	Op   Opcode
	Bits uint8
	Lhs  Reg
	Rhs  Reg
}

func (b *Branch) String() string { return fmt.Sprintf("b %s", b.Target.Name) }
func (b *CondBranch) String() string {
	return fmt.Sprintf("b.%s %s", b.Cond, b.Target.Name)
}
func (r *RegBranch) String() string {
	if r.Op == OpTBZ || r.Op == OpTBNZ {
		return fmt.Sprintf("%s %s, #%d, %s", r.Op, r.Reg, r.Bit, r.Target.Name)
	}
	return fmt.Sprintf("%s %s, %s", r.Op, r.Reg, r.Target.Name)
}

// shiftAtom renders a shift/extend modifier with its internal space
// removed ("LSL #3" -> "LSL#3") so it survives as a single token under
// internal/irtext's whitespace-delimited atom lexer.
func shiftAtom(s ShiftExtendOp) string {
	return strings.ReplaceAll(s.String(), " ", "")
}

// String renders i as a flat, comma-separated mnemonic-and-operands
// line with no nested brackets — the form internal/irtext's printer
// builds its per-function dump from, and the shape its grammar's
// operand list is designed to tokenize back out of. It assumes every
// Reg it touches is already physical, true for any function that has
// been through internal/lower/regalloc, internal/lower/stackframe and
// internal/lower/expand — PReg.String() never emits the
// space-or-bracket-bearing text VReg.String() can. Every Kind is
// covered: the Branch family and the copy, return, load-const and
// save/restore pseudos delegate to their own String methods; every
// other kind, MirGEP included, is formatted inline here.
func (i Inst) String() string {
	switch i.Kind() {
	case KindBranch:
		return i.Branch.String()
	case KindCondBranch:
		return i.CondBranch.String()
	case KindRegBranch:
		return i.RegBranch.String()
	case KindCmp:
		v := i.Cmp
		return fmt.Sprintf("%s.%d %s, %s", v.Op, v.Bits, v.Lhs, v.Rhs)
	case KindBinReg:
		v := i.BinReg
		s := fmt.Sprintf("%s.%d %s, %s, %s", v.Op, v.Bits, v.Dst, v.Lhs, v.Rhs)
		if v.Shift != nil {
			s += ", " + shiftAtom(*v.Shift)
		}
		return s
	case KindBinImm:
		v := i.BinImm
		return fmt.Sprintf("%s.%d %s, %s, #%s", v.Op, v.Bits, v.Dst, v.Lhs, v.Imm)
	case KindUnaryReg:
		v := i.UnaryReg
		s := fmt.Sprintf("%s.%d %s, %s", v.Op, v.Bits, v.Dst, v.Src)
		if v.Shift != nil {
			s += ", " + shiftAtom(*v.Shift)
		}
		return s
	case KindMulAdd:
		v := i.MulAdd
		if v.HasAcc {
			return fmt.Sprintf("%s %s, %s, %s, %s", v.Op, v.Dst, v.Lhs, v.Rhs, v.Acc)
		}
		return fmt.Sprintf("%s %s, %s, %s", v.Op, v.Dst, v.Lhs, v.Rhs)
	case KindLoadStore:
		v := i.LoadStore
		switch v.Mode {
		case AddrLiteral:
			return fmt.Sprintf("%s %s, =%s", v.Op, v.Reg, v.Symbol)
		case AddrPreIndex:
			return fmt.Sprintf("%s %s, %s, %s!", v.Op, v.Reg, v.Base, v.Offset)
		default:
			return fmt.Sprintf("%s %s, %s, %s", v.Op, v.Reg, v.Base, v.Offset)
		}
	case KindCondSelect:
		v := i.CondSelect
		return fmt.Sprintf("%s.%d %s, %s, %s, %s", v.Op, v.Bits, v.Dst, v.Lhs, v.Rhs, v.Cond)
	case KindFPBinary:
		v := i.FPBinary
		return fmt.Sprintf("%s.%d %s, %s, %s", v.Op, v.Bits, v.Dst, v.Lhs, v.Rhs)
	case KindFPUnary:
		v := i.FPUnary
		return fmt.Sprintf("%s.%d %s, %s", v.Op, v.Bits, v.Dst, v.Src)
	case KindFPConvert:
		v := i.FPConvert
		return fmt.Sprintf("%s %s, %s", v.Op, v.Dst, v.Src)
	case KindFPCompare:
		v := i.FPCompare
		return fmt.Sprintf("%s.%d %s, %s", v.Op, v.Bits, v.Lhs, v.Rhs)
	case KindMirCopy32:
		return i.MirCopy32.String()
	case KindMirCopy64:
		return i.MirCopy64.String()
	case KindMirFCopy32:
		return i.MirFCopy32.String()
	case KindMirFCopy64:
		return i.MirFCopy64.String()
	case KindMirPCopy:
		return i.MirPCopy.String()
	case KindMirCall:
		v := i.MirCall
		target := v.Symbol
		if target == "" {
			target = v.Target.String()
		}
		return fmt.Sprintf("mir.call %s", target)
	case KindMirReturn:
		return i.MirReturn.String()
	case KindMirSwitch:
		v := i.MirSwitch
		return fmt.Sprintf("mir.switch %s, default %s", v.Index, v.Default.Name)
	case KindMirGEP:
		v := i.MirGEP
		if len(v.Offsets) == 0 {
			return fmt.Sprintf("mir.gep %s, %s, %s", v.Dst, v.Tmp, v.Base)
		}
		parts := make([]string, 0, len(v.Offsets))
		for _, ow := range v.Offsets {
			parts = append(parts, fmt.Sprintf("%s*%d", ow.Offset, ow.Weight))
		}
		return fmt.Sprintf("mir.gep %s, %s, %s, %s", v.Dst, v.Tmp, v.Base, strings.Join(parts, "+"))
	case KindMirLoadConst:
		return i.MirLoadConst.String()
	case KindMirLdImmF32:
		v := i.MirLdImmF32
		return fmt.Sprintf("mir.ld_imm_f32 %s, %s", v.Dst, v.Val)
	case KindMirLdImmF64:
		v := i.MirLdImmF64
		return fmt.Sprintf("mir.ld_imm_f64 %s, %s", v.Dst, v.Val)
	case KindMirLdrLit:
		v := i.MirLdrLit
		return fmt.Sprintf("mir.ldr_lit %s, =%s", v.Dst, v.Symbol)
	case KindMirStrLit:
		v := i.MirStrLit
		return fmt.Sprintf("mir.str_lit %s, =%s", v.Src, v.Symbol)
	case KindMirStImm32:
		v := i.MirStImm32
		if v.Sym != "" {
			return fmt.Sprintf("mir.st_imm32 =%s, #%d", v.Sym, v.Val)
		}
		return fmt.Sprintf("mir.st_imm32 %s, %s, #%d", v.Base, v.Offset, v.Val)
	case KindMirStImm64:
		v := i.MirStImm64
		if v.Sym != "" {
			return fmt.Sprintf("mir.st_imm64 =%s, #%d", v.Sym, v.Val)
		}
		return fmt.Sprintf("mir.st_imm64 %s, %s, #%d", v.Base, v.Offset, v.Val)
	case KindMirStSym64:
		v := i.MirStSym64
		return fmt.Sprintf("mir.st_sym64 =%s, =%s", v.DstSymbol, v.SrcSymbol)
	case KindMirSaveRegs:
		return i.MirSaveRegs.String()
	case KindMirRestoreRegs:
		return i.MirRestoreRegs.String()
	case KindMirRestoreHostRegs:
		return i.MirRestoreHostRegs.String()
	default:
		return "?"
	}
}
