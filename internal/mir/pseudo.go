package mir

import (
	"fmt"
	"strings"
)

// MirCopy32/MirCopy64 are parallel-copy pseudos: phi elimination (spec.md
// §4.10) inserts one per incoming edge instead of emitting a phi
// directly. Pseudo-expansion (§4.14) turns each into a plain mov and
// does not reorder them — internal/lower's phi-elimination pass
// sequences same-block copies with cyclic dependencies before MIR ever
// sees them, so by the time a function reaches expand, copies are
// already conflict-free moves.
type MirCopy32 struct {
	Dst Reg
	Src Reg
}
type MirCopy64 struct {
	Dst Reg
	Src Reg
}

// MirFCopy32/64 are the floating-point-bank counterparts of MirCopy.
type MirFCopy32 struct {
	Dst Reg
	Src Reg
}
type MirFCopy64 struct {
	Dst Reg
	Src Reg
}

// MirPCopy copies PSTATE itself, used when a compare's flags must
// survive across an intervening instruction that would otherwise
// clobber them.
type MirPCopy struct {
	Dst Reg
	Src Reg
}

// MirCall is the call pseudo: a direct call to Symbol, or an indirect
// call through Target. ArgRegs/ResultRegs record which physical
// registers carry arguments in and the result out, per AAPCS64;
// UsesOf and DefsOf report them as the call's uses and defs.
type MirCall struct {
	Symbol     string // empty when Target is set (indirect call)
	Target     Reg
	ArgRegs    []Reg
	ResultRegs []Reg
}

// MirReturn is the function-exit pseudo; internal/lower/stackframe
// splices in the epilogue (MirRestoreHostRegs) immediately before it.
type MirReturn struct {
	ResultRegs []Reg
}

// MirSwitch is a multi-way branch pseudo over a jump table; Index
// selects the register holding the discriminant, Cases pairs a
// switch-table index operand with its target block, Default is taken
// when Index matches no case.
type MirSwitch struct {
	Index   Reg
	Cases   []SwitchCase
	Default *Block
}

type SwitchCase struct {
	Value  int64
	Target *Block
}

// MirLoadConst materializes an arbitrary integer immediate into a
// general-purpose register via a movz/movk sequence (spec.md §4.10's
// "constants first materialized into a virtual register by a LoadConst
// pseudo", and §4.13's "load-constant + sub/add" stack-offset path).
// Bits is 32 or 64.
type MirLoadConst struct {
	Dst  Reg
	Val  ImmConst
	Bits uint8
}

// MirLdImmF32/64 materializes a floating-point immediate, per spec.md
// §4.14: FP8-encodable constants expand to a single `fmov`; everything
// else expands to a GP load-constant followed by an `fmov` from the GP
// to the FP bank.
type MirLdImmF32 struct {
	Dst Reg
	Val ImmConst
}
type MirLdImmF64 struct {
	Dst Reg
	Val ImmConst
}

// MirLdrLit/MirStrLit are the PC-relative literal load/store pseudos
// spec.md §4.14 expands to `adrp tmp, symbol; ldr/str r, [tmp, :lo12:symbol]`.
// IsFloat selects the destination register bank; Bits is 32 or 64.
type MirLdrLit struct {
	Dst     Reg
	Symbol  string
	Tmp     Reg
	IsFloat bool
	Bits    uint8
}
type MirStrLit struct {
	Src     Reg
	Symbol  string
	Tmp     Reg
	IsFloat bool
	Bits    uint8
}

// MirStImm32/64 stores an immediate value (materializing it into a
// scratch GP register first, unless it is zero, in which case WZR/XZR
// is stored directly). Sym is set when the store target is itself a
// global symbol rather than a register+offset base (spec.md calls this
// shape out as a `[Sym]` suffix variant).
type MirStImm32 struct {
	Base   Reg
	Offset ImmConst
	Val    uint32
	Sym    string
	Scratch Reg
}
type MirStImm64 struct {
	Base   Reg
	Offset ImmConst
	Val    uint64
	Sym    string
	Scratch Reg
}

// MirStSym64 stores the address of SrcSymbol into DstSymbol — both
// addresses are materialized into scratch registers (TmpData, TmpAddr)
// before the store, per spec.md §4.14.
type MirStSym64 struct {
	SrcSymbol string
	DstSymbol string
	TmpData   Reg
	TmpAddr   Reg
}

// RegMask is a bitset over the 20 AAPCS64 callee-saved registers
// (X19-X28, D8-D15, FP, LR) that MirSaveRegs/MirRestoreRegs/
// MirRestoreHostRegs carry, so save/restore merging (spec.md §4.13) can
// compare masks for equality without walking register lists.
type RegMask uint32

const (
	maskX19 RegMask = 1 << iota
	maskX20
	maskX21
	maskX22
	maskX23
	maskX24
	maskX25
	maskX26
	maskX27
	maskX28
	maskD8
	maskD9
	maskD10
	maskD11
	maskD12
	maskD13
	maskD14
	maskD15
	maskFP
	maskLR
)

var calleeSavedBits = []struct {
	bit  RegMask
	name string
}{
	{maskX19, "x19"}, {maskX20, "x20"}, {maskX21, "x21"}, {maskX22, "x22"}, {maskX23, "x23"},
	{maskX24, "x24"}, {maskX25, "x25"}, {maskX26, "x26"}, {maskX27, "x27"}, {maskX28, "x28"},
	{maskD8, "d8"}, {maskD9, "d9"}, {maskD10, "d10"}, {maskD11, "d11"},
	{maskD12, "d12"}, {maskD13, "d13"}, {maskD14, "d14"}, {maskD15, "d15"},
	{maskFP, "fp"}, {maskLR, "lr"},
}

func (m RegMask) Has(bit RegMask) bool { return m&bit == bit }
func (m RegMask) With(bit RegMask) RegMask { return m | bit }

// MaskFP and MaskLR are exported so internal/lower/stackframe can build
// the frame-pointer-chain callee-saved set without reaching into this
// package's private bit assignment.
const (
	MaskFP = maskFP
	MaskLR = maskLR
)

// Registers enumerates the physical registers m covers, in the same
// canonical order as calleeSavedBits, so internal/lower/expand can
// turn a MirSaveRegs/MirRestoreRegs/MirRestoreHostRegs mask into a
// concrete sequence of str/ldr instructions without reaching into this
// package's private bit table.
func (m RegMask) Registers() []PReg {
	var regs []PReg
	for i, e := range calleeSavedBits {
		if !m.Has(e.bit) {
			continue
		}
		switch {
		case i <= 9: // x19..x28
			regs = append(regs, RegX(uint8(19+i)))
		case i <= 17: // d8..d15
			regs = append(regs, RegFPD(uint8(8+i-10)))
		case e.bit == maskFP:
			regs = append(regs, RegX(29))
		case e.bit == maskLR:
			regs = append(regs, RegLR())
		}
	}
	return regs
}

func (m RegMask) String() string {
	var names []string
	for _, e := range calleeSavedBits {
		if m.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// MirSaveRegs / MirRestoreRegs bracket a call site (or the function
// prologue/epilogue) with a save/restore pair carrying the same mask;
// testable property 10 requires every save to have exactly one
// dominating restore with an equal mask before any return.
type MirSaveRegs struct {
	Mask RegMask
}
type MirRestoreRegs struct {
	Mask RegMask
}

// MirRestoreHostRegs is the function-epilogue variant of
// MirRestoreRegs: in addition to the register loads, it also unwinds SP
// back to the value it held on function entry.
type MirRestoreHostRegs struct {
	Mask RegMask
}

func (m *MirCopy32) String() string      { return fmt.Sprintf("mir.copy32 %s, %s", m.Dst, m.Src) }
func (m *MirCopy64) String() string      { return fmt.Sprintf("mir.copy64 %s, %s", m.Dst, m.Src) }
func (m *MirFCopy32) String() string     { return fmt.Sprintf("mir.fcopy32 %s, %s", m.Dst, m.Src) }
func (m *MirFCopy64) String() string     { return fmt.Sprintf("mir.fcopy64 %s, %s", m.Dst, m.Src) }
func (m *MirPCopy) String() string       { return fmt.Sprintf("mir.pcopy %s, %s", m.Dst, m.Src) }
func (m *MirSaveRegs) String() string    { return fmt.Sprintf("mir.save_regs %s", m.Mask) }
func (m *MirRestoreRegs) String() string { return fmt.Sprintf("mir.restore_regs %s", m.Mask) }
func (m *MirRestoreHostRegs) String() string {
	return fmt.Sprintf("mir.restore_host_regs %s", m.Mask)
}
func (m *MirReturn) String() string { return "mir.return" }
func (m *MirLoadConst) String() string {
	return fmt.Sprintf("mir.load_const %s, %s", m.Dst, m.Val)
}
