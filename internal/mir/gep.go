package mir

import (
	"fmt"
	"strings"
)

// GEPBase is the base pointer of a MirGEP: either a 64-bit GP register
// or a global symbol whose address must be materialized before the
// pointer arithmetic runs.
type GEPBase struct {
	reg    *Reg
	symbol string
}

func GEPBaseReg(r Reg) GEPBase    { return GEPBase{reg: &r} }
func GEPBaseSymbol(s string) GEPBase { return GEPBase{symbol: s} }

func (b GEPBase) IsReg() bool    { return b.reg != nil }
func (b GEPBase) IsSymbol() bool { return b.reg == nil }
func (b GEPBase) Reg() Reg       { return *b.reg }
func (b GEPBase) Symbol() string { return b.symbol }

func (b GEPBase) String() string {
	if b.IsReg() {
		return b.reg.String()
	}
	return b.symbol
}

// GEPOffset is one term of a MirGEP's offset list: a constant, or a
// register holding a 64-bit value, a sign-extended 32-bit value, or a
// zero-extended 32-bit value — mirroring original_source's
// MirGEPOffset (gep.rs), which keeps the extension mode alongside the
// register rather than folding it into a generic shift/extend operand.
type GEPOffset struct {
	isImm bool
	imm   int64
	reg   Reg
	ext   ShiftExtendOp // UXTW/SXTW/none(G64), meaningful only when !isImm
}

func GEPOffsetImm(v int64) GEPOffset { return GEPOffset{isImm: true, imm: v} }
func GEPOffsetG64(r Reg) GEPOffset   { return GEPOffset{reg: r, ext: SXTX} }
func GEPOffsetS32(r Reg) GEPOffset   { return GEPOffset{reg: r, ext: SXTW} }
func GEPOffsetU32(r Reg) GEPOffset   { return GEPOffset{reg: r, ext: UXTW} }

func (o GEPOffset) IsImm() bool { return o.isImm }
func (o GEPOffset) Imm() int64  { return o.imm }
func (o GEPOffset) Reg() Reg    { return o.reg }

// Ext reports the extension mode of a register-valued offset —
// meaningful only when IsImm() is false. Exported so
// internal/lower/expand can pick the matching mov-with-extend
// instruction when it lowers a MirGEP to real address arithmetic.
func (o GEPOffset) Ext() ShiftExtendOp { return o.ext }

func (o GEPOffset) String() string {
	if o.isImm {
		return fmt.Sprintf("%d", o.imm)
	}
	return o.reg.String()
}

// OffsetWeight pairs one GEPOffset with the byte stride it is
// multiplied by before being added to the base — `Xd += sext(off) *
// weight`, per spec.md §4.11.
type OffsetWeight struct {
	Offset GEPOffset
	Weight uint64
}

// MirGEP computes a pointer by adding a weighted sum of offsets to a
// base, the pseudo internal/lower's GEP-lowering stage emits for every
// IR GEP instruction. Dst receives the final address; Tmp is a scratch
// register reserved for materializing a symbol base's address, used
// only when Base is a symbol.
type MirGEP struct {
	Dst     Reg
	Tmp     Reg
	Base    GEPBase
	Offsets []OffsetWeight
}

func (g *MirGEP) String() string {
	var parts []string
	for _, ow := range g.Offsets {
		parts = append(parts, fmt.Sprintf("%s x %d", ow.Offset, ow.Weight))
	}
	suffix := ""
	if len(parts) > 0 {
		suffix = " [" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("mir.gep %s through %s from %s%s", g.Dst, g.Tmp, g.Base, suffix)
}

// MergeConstOffsets folds every constant offset term into a single
// `imm x 1` term, leaving register-valued offsets untouched and in
// their original relative order. Ported directly from
// original_source's MirGEP::merge_const_offsets (gep.rs) — a pure
// structural rewrite, not part of the buggy try_simplify dispatch the
// Open Questions flag, so it is carried over unmodified rather than
// reimplemented.
func (g *MirGEP) MergeConstOffsets() {
	var merged int64
	var regOffsets []OffsetWeight
	for _, ow := range g.Offsets {
		if ow.Offset.IsImm() {
			merged += ow.Offset.Imm() * int64(ow.Weight)
		} else {
			regOffsets = append(regOffsets, ow)
		}
	}

	newOffsets := make([]OffsetWeight, 0, 1+len(regOffsets))
	if merged != 0 {
		newOffsets = append(newOffsets, OffsetWeight{GEPOffsetImm(merged), 1})
	}
	newOffsets = append(newOffsets, regOffsets...)
	g.Offsets = newOffsets
}
