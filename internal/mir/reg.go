// Package mir is the Machine IR CORE lowers into: AArch64-specific
// registers, immediates, and instructions, grounded on
// original_source's mir/operand and mir/inst modules. Where the
// original leans on Rust tagged unions and a bitflags crate, this
// package uses Go structs and a plain uint16 bitset — the teacher's
// internal/ir package shows the same one-struct/enum-per-concept,
// comparable-by-value shape, just without a register file.
package mir

import (
	"fmt"

	"talon/internal/typesys"
)

// SubRegIndex packs a sub-register's bit width and lane index into a
// single byte, mirroring the original's bit-packed encoding exactly
// so register-width queries stay branch-free comparisons rather than
// struct field reads scattered across call sites.
//
// bits[0:3] encodes log2(width) - 3, so values in [3,7] map to widths
// 8, 16, 32, 64, 128. bits[3:8] is the lane index, 0..31.
type SubRegIndex uint8

// NewSubRegIndex builds a SubRegIndex for the given width (as log2 of
// bit width, so 3 means 8 bits, 7 means 128 bits) and lane index.
func NewSubRegIndex(bitsLog2, index uint8) SubRegIndex {
	if bitsLog2 < 3 || bitsLog2 > 7 {
		panic("mir: SubRegIndex bitsLog2 must be in [3, 7]")
	}
	if index >= 32 {
		panic("mir: SubRegIndex index must be < 32")
	}
	return SubRegIndex((bitsLog2-3)&0b111 | (index << 3))
}

func (s SubRegIndex) BitsLog2() uint8 { return (uint8(s) & 0b111) + 3 }
func (s SubRegIndex) Index() uint8    { return (uint8(s) >> 3) & 0b0001_1111 }

func (s SubRegIndex) WithBitsLog2(bitsLog2 uint8) SubRegIndex {
	if bitsLog2 < 3 || bitsLog2 > 7 {
		panic("mir: SubRegIndex bitsLog2 must be in [3, 7]")
	}
	return SubRegIndex(uint8(s)&^0b111 | (bitsLog2-3)&0b111)
}

func (s SubRegIndex) WithIndex(index uint8) SubRegIndex {
	if index >= 32 {
		panic("mir: SubRegIndex index must be < 32")
	}
	return SubRegIndex(uint8(s)&^0b1111_1000 | (index&0b0001_1111)<<3)
}

func (s SubRegIndex) String() string {
	return fmt.Sprintf("[:b%d:%d]", s.BitsLog2(), s.Index())
}

// RegUseFlags records an operand's role in its owning instruction —
// defined, dead, killed, or implicitly defined. A plain bitset, same
// convention as the original's bitflags-derived RegUseFlags.
type RegUseFlags uint16

const (
	RegUseNone        RegUseFlags = 0
	RegUseDef         RegUseFlags = 1 << 0
	RegUseDead        RegUseFlags = 1 << 1
	RegUseKill        RegUseFlags = 1 << 2
	RegUseImplicitDef RegUseFlags = 1 << 3
)

func (f RegUseFlags) Has(flag RegUseFlags) bool { return f&flag == flag }
func (f RegUseFlags) With(flag RegUseFlags) RegUseFlags {
	return f | flag
}
func (f RegUseFlags) Without(flag RegUseFlags) RegUseFlags {
	return f &^ flag
}

func (f RegUseFlags) String() string {
	s := ""
	if f.Has(RegUseDef) {
		s += "def "
	}
	if f.Has(RegUseDead) {
		s += "dead "
	}
	if f.Has(RegUseKill) {
		s += "kill "
	}
	if f.Has(RegUseImplicitDef) {
		s += "implicit-def "
	}
	if len(s) > 0 {
		s = s[:len(s)-1]
	}
	return s
}

// ShiftExtendOp names a shift or extend modifier applied to a register
// operand in a data-processing instruction (e.g. `add x0, x1, x2, lsl #3`).
type ShiftExtendOp struct {
	kind shiftExtendKind
	bits uint8 // shift amount, meaningful only for LSL/LSR/ASR
}

type shiftExtendKind uint8

const (
	SELSL shiftExtendKind = iota
	SELSR
	SEASR
	SEUXTB
	SEUXTH
	SEUXTW
	SESXTB
	SESXTH
	SESXTW
	SESXTX
)

func LSL(bits uint8) ShiftExtendOp { return ShiftExtendOp{SELSL, bits} }
func LSR(bits uint8) ShiftExtendOp { return ShiftExtendOp{SELSR, bits} }
func ASR(bits uint8) ShiftExtendOp { return ShiftExtendOp{SEASR, bits} }

var (
	UXTB = ShiftExtendOp{kind: SEUXTB}
	UXTH = ShiftExtendOp{kind: SEUXTH}
	UXTW = ShiftExtendOp{kind: SEUXTW}
	SXTB = ShiftExtendOp{kind: SESXTB}
	SXTH = ShiftExtendOp{kind: SESXTH}
	SXTW = ShiftExtendOp{kind: SESXTW}
	SXTX = ShiftExtendOp{kind: SESXTX}
)

func (o ShiftExtendOp) IsShift() bool {
	return o.kind == SELSL || o.kind == SELSR || o.kind == SEASR
}

func (o ShiftExtendOp) IsExtend() bool { return !o.IsShift() }

func (o ShiftExtendOp) ShiftBits() uint8 {
	if o.IsShift() {
		return o.bits
	}
	return 0
}

func (o ShiftExtendOp) String() string {
	switch o.kind {
	case SELSL:
		return fmt.Sprintf("LSL #%d", o.bits)
	case SELSR:
		return fmt.Sprintf("LSR #%d", o.bits)
	case SEASR:
		return fmt.Sprintf("ASR #%d", o.bits)
	case SEUXTB:
		return "UXTB"
	case SEUXTH:
		return "UXTH"
	case SEUXTW:
		return "UXTW"
	case SESXTB:
		return "SXTB"
	case SESXTH:
		return "SXTH"
	case SESXTW:
		return "SXTW"
	case SESXTX:
		return "SXTX"
	default:
		return "?"
	}
}

// regFile distinguishes the two vreg banks — general-purpose and
// floating/vector — since a virtual register's id is only unique
// within its own bank.
type regFile uint8

const (
	fileGeneral regFile = iota
	fileFloat
)

// VReg is a virtual register, assigned by instruction selection before
// register allocation runs. Ids are dense per bank, starting at 0.
type VReg struct {
	file  regFile
	id    uint32
	Sub   SubRegIndex
	Flags RegUseFlags
}

func NewLongVReg(id uint32) VReg  { return VReg{fileGeneral, id, NewSubRegIndex(6, 0), RegUseNone} }
func NewIntVReg(id uint32) VReg   { return VReg{fileGeneral, id, NewSubRegIndex(5, 0), RegUseNone} }
func NewDoubleVReg(id uint32) VReg { return VReg{fileFloat, id, NewSubRegIndex(6, 0), RegUseNone} }
func NewFloatVReg(id uint32) VReg  { return VReg{fileFloat, id, NewSubRegIndex(5, 0), RegUseNone} }

// NewVRegFromType picks the narrowest vreg bank/width that can hold a
// value of the given CORE type, mirroring the original's
// VReg::new_from_type dispatch over ValTypeID.
func NewVRegFromType(ty typesys.Type, id uint32) VReg {
	switch ty.Kind() {
	case typesys.KindPtr:
		return NewLongVReg(id)
	case typesys.KindInt:
		if ty.IntBits() <= 32 {
			return NewIntVReg(id)
		}
		return NewLongVReg(id)
	case typesys.KindFloat:
		if ty.FloatKind() == typesys.Float32 {
			return NewFloatVReg(id)
		}
		return NewDoubleVReg(id)
	default:
		panic(fmt.Sprintf("mir: cannot create a vreg for non-scalar type kind %v", ty.Kind()))
	}
}

func (v VReg) IsFloat() bool { return v.file == fileFloat }
func (v VReg) ID() uint32    { return v.id }
func (v VReg) WithID(id uint32) VReg {
	v.id = id
	return v
}

func (v VReg) Bits() uint8     { return 1 << v.Sub.BitsLog2() }
func (v VReg) BitsLog2() uint8 { return v.Sub.BitsLog2() }

func (v VReg) WithFlag(flag RegUseFlags) VReg {
	v.Flags = v.Flags.With(flag)
	return v
}
func (v VReg) WithoutFlag(flag RegUseFlags) VReg {
	v.Flags = v.Flags.Without(flag)
	return v
}

func (v VReg) String() string {
	prefix := "%vg"
	if v.file == fileFloat {
		prefix = "%vf"
	}
	flags := v.Flags.String()
	if flags != "" {
		flags += " "
	}
	return fmt.Sprintf("%s%s%d%s", flags, prefix, v.id, v.Sub)
}

// pregKind distinguishes the physical register families a PReg can
// name.
type pregKind uint8

const (
	pregX pregKind = iota
	pregV
	pregSP
	pregZR
	pregPState
	pregPC
)

// PReg is a physical AArch64 register: a general-purpose Xn/Wn, a
// vector Vn/Dn/Sn, SP, the zero register, PSTATE, or PC.
type PReg struct {
	kind  pregKind
	id    uint8 // meaningful for pregX and pregV only
	Sub   SubRegIndex
	Flags RegUseFlags
}

func RegSP() PReg    { return PReg{kind: pregSP, Sub: NewSubRegIndex(6, 0)} }
func RegZR() PReg    { return PReg{kind: pregZR, Sub: NewSubRegIndex(6, 0)} }
func RegPC() PReg    { return PReg{kind: pregPC, Sub: NewSubRegIndex(6, 0)} }
func RegPState() PReg { return PReg{kind: pregPState} }

func RegX(id uint8) PReg {
	if id >= 32 {
		panic("mir: PReg id must be < 32")
	}
	return PReg{kind: pregX, id: id, Sub: NewSubRegIndex(6, 0)}
}

func RegW(id uint8) PReg {
	if id >= 32 {
		panic("mir: PReg id must be < 32")
	}
	return PReg{kind: pregX, id: id, Sub: NewSubRegIndex(5, 0)}
}

func RegFPD(id uint8) PReg {
	if id >= 32 {
		panic("mir: PReg id must be < 32")
	}
	return PReg{kind: pregV, id: id, Sub: NewSubRegIndex(6, 0)}
}

func RegFPS(id uint8) PReg {
	if id >= 32 {
		panic("mir: PReg id must be < 32")
	}
	return PReg{kind: pregV, id: id, Sub: NewSubRegIndex(5, 0)}
}

// RegLR is the link register, x30, used as the return address slot by
// the calling convention.
func RegLR() PReg { return RegX(30) }

func (p PReg) IsSP() bool          { return p.kind == pregSP }
func (p PReg) IsZR() bool          { return p.kind == pregZR }
func (p PReg) IsPState() bool      { return p.kind == pregPState }
func (p PReg) IsPC() bool          { return p.kind == pregPC }
func (p PReg) IsX() bool           { return p.kind == pregX && p.Sub.BitsLog2() == 6 }
func (p PReg) IsW() bool           { return p.kind == pregX && p.Sub.BitsLog2() == 5 }
func (p PReg) IsFPD() bool         { return p.kind == pregV && p.Sub.BitsLog2() == 6 }
func (p PReg) IsFPS() bool         { return p.kind == pregV && p.Sub.BitsLog2() == 5 }
func (p PReg) IsLinkRegister() bool { return p.kind == pregX && p.id == 30 }

func (p PReg) Bits() uint8 {
	if p.kind == pregPState {
		return 64
	}
	return 1 << p.Sub.BitsLog2()
}

func (p PReg) BitsLog2() uint8 {
	if p.kind == pregPState {
		return 6
	}
	return p.Sub.BitsLog2()
}

func (p PReg) WithFlag(flag RegUseFlags) PReg {
	p.Flags = p.Flags.With(flag)
	return p
}

func (p PReg) String() string {
	switch p.kind {
	case pregX:
		if p.Sub.BitsLog2() == 5 {
			return fmt.Sprintf("w%d", p.id)
		}
		return fmt.Sprintf("x%d", p.id)
	case pregV:
		switch p.Sub.BitsLog2() {
		case 5:
			return fmt.Sprintf("s%d", p.id)
		case 6:
			return fmt.Sprintf("d%d", p.id)
		default:
			return fmt.Sprintf("v%d", p.id)
		}
	case pregSP:
		if p.Sub.BitsLog2() == 5 {
			return "wsp"
		}
		return "sp"
	case pregZR:
		if p.Sub.BitsLog2() == 5 {
			return "wzr"
		}
		return "xzr"
	case pregPState:
		return "pstate"
	case pregPC:
		if p.Sub.BitsLog2() == 5 {
			return "wpc"
		}
		return "pc"
	default:
		return "?"
	}
}

// Reg is the closed sum of the two operand-level register
// representations an instruction slot can hold: a virtual register
// before allocation, or a physical one after.
type Reg struct {
	Virtual   *VReg
	Physical  *PReg
}

func VRegOperand(v VReg) Reg { return Reg{Virtual: &v} }
func PRegOperand(p PReg) Reg { return Reg{Physical: &p} }

func (r Reg) IsVirtual() bool  { return r.Virtual != nil }
func (r Reg) IsPhysical() bool { return r.Physical != nil }

func (r Reg) String() string {
	if r.Virtual != nil {
		return r.Virtual.String()
	}
	if r.Physical != nil {
		return r.Physical.String()
	}
	return "<invalid reg>"
}
