package ir

import (
	"talon/internal/base"
	"talon/internal/typesys"
)

// InstKind tags which instruction family a given Instruction variant
// implements, matching the opcode families enumerated in spec.md §3.
type InstKind uint8

const (
	InstJump InstKind = iota
	InstBr
	InstSwitch
	InstRet
	InstUnreachable
	InstLoad
	InstStore
	InstAlloca
	InstGEP
	InstBinOp
	InstCmp
	InstCast
	InstPhi
	InstSelect
	InstCall
)

// InstCommon is the header every instruction variant embeds: opcode,
// result type, parent block, the instruction-list node, and the SSA
// user list for when this instruction's result is used as an operand
// elsewhere. Per spec.md §9, this is a closed sum type — every new
// family is a new struct embedding InstCommon, not a new subclass.
type InstCommon struct {
	Kind       InstKind
	ResultType typesys.Type
	Parent     base.Handle // owning block
	listLinks  base.Links  // node within the block's instruction list
	users      userList    // uses whose Operand == InstValue(self)
}

func (c *InstCommon) common() *InstCommon { return c }

// Instruction is the shared interface every opcode-family struct
// implements. No open hierarchy: the lowering selector recovers the
// concrete variant with a Go type switch over these structs.
type Instruction interface {
	common() *InstCommon
	IsTerminator() bool
	// Uses returns the Use handles this instruction owns, in a stable,
	// opcode-defined order (used for GC marking and generic operand
	// walks; lowering reads typed fields directly instead).
	Uses() []base.Handle
}

func filterValid(hs ...base.Handle) []base.Handle {
	out := make([]base.Handle, 0, len(hs))
	for _, h := range hs {
		if h.IsValid() {
			out = append(out, h)
		}
	}
	return out
}

// JumpInst is an unconditional branch. Target is an owned JumpTarget
// handle, not a Use — block references flow through JumpTarget, not
// through the operand Use mechanism.
type JumpInst struct {
	InstCommon
	Target base.Handle
}

func (i *JumpInst) IsTerminator() bool   { return true }
func (i *JumpInst) Uses() []base.Handle  { return nil }

// BrInst is a two-way conditional branch.
type BrInst struct {
	InstCommon
	Cond        base.Handle // Use
	TrueTarget  base.Handle // JumpTarget
	FalseTarget base.Handle // JumpTarget
}

func (i *BrInst) IsTerminator() bool  { return true }
func (i *BrInst) Uses() []base.Handle { return filterValid(i.Cond) }

// SwitchCase pairs a constant case value with its JumpTarget.
type SwitchCase struct {
	Value  int64 // spec.md allows i128; int64 covers AArch64-relevant widths
	Target base.Handle
}

// SwitchInst is a multi-way branch on an integer value.
type SwitchInst struct {
	InstCommon
	Value   base.Handle // Use
	Default base.Handle // JumpTarget
	Cases   []SwitchCase
}

func (i *SwitchInst) IsTerminator() bool  { return true }
func (i *SwitchInst) Uses() []base.Handle { return filterValid(i.Value) }

// RetInst returns from the function, optionally with a value.
type RetInst struct {
	InstCommon
	Value base.Handle // Use, Nil for a void return
}

func (i *RetInst) IsTerminator() bool  { return true }
func (i *RetInst) Uses() []base.Handle { return filterValid(i.Value) }

// UnreachableInst marks a program point the verifier guarantees is
// never reached at runtime.
type UnreachableInst struct{ InstCommon }

func (i *UnreachableInst) IsTerminator() bool  { return true }
func (i *UnreachableInst) Uses() []base.Handle { return nil }

// LoadInst reads ResultType from memory at Addr.
type LoadInst struct {
	InstCommon
	Addr      base.Handle // Use
	AlignLog2 uint8
}

func (i *LoadInst) IsTerminator() bool  { return false }
func (i *LoadInst) Uses() []base.Handle { return filterValid(i.Addr) }

// StoreInst writes Val to memory at Addr. Has no result (ResultType is
// typesys.Context.Void()).
type StoreInst struct {
	InstCommon
	Addr, Val base.Handle // Uses
	AlignLog2 uint8
}

func (i *StoreInst) IsTerminator() bool  { return false }
func (i *StoreInst) Uses() []base.Handle { return filterValid(i.Addr, i.Val) }

// AllocaInst reserves stack storage for a value of AllocType and
// produces its address (ResultType is always a pointer).
type AllocaInst struct {
	InstCommon
	AllocType typesys.Type
	AlignLog2 uint8
}

func (i *AllocaInst) IsTerminator() bool  { return false }
func (i *AllocaInst) Uses() []base.Handle { return nil }

// GEPInst computes a pointer offset by walking Indices through
// InitialType, per spec.md §4.6.
type GEPInst struct {
	InstCommon
	Base             base.Handle // Use
	Indices          []base.Handle // Uses
	InitialType      typesys.Type
	FinalType        typesys.Type
	AlignLog2        uint8
	PointeeAlignLog2 uint8
	Inbounds         bool
}

func (i *GEPInst) IsTerminator() bool { return false }
func (i *GEPInst) Uses() []base.Handle {
	out := filterValid(i.Base)
	out = append(out, i.Indices...)
	return out
}

// BinOp enumerates the integer arithmetic/bitwise families.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpUDiv
	OpSDiv
	OpURem
	OpSRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
)

// BinOpInst is a two-operand integer/float arithmetic instruction.
type BinOpInst struct {
	InstCommon
	Op       BinOp
	Lhs, Rhs base.Handle // Uses
}

func (i *BinOpInst) IsTerminator() bool  { return false }
func (i *BinOpInst) Uses() []base.Handle { return filterValid(i.Lhs, i.Rhs) }

// CmpPredicate enumerates integer/float comparison predicates.
type CmpPredicate uint8

const (
	CmpEq CmpPredicate = iota
	CmpNe
	CmpSlt
	CmpSle
	CmpSgt
	CmpSge
	CmpUlt
	CmpUle
	CmpUgt
	CmpUge
)

// CmpInst produces a boolean comparison result and, at lowering, is the
// sole producer MIR models as defining PSTATE.
type CmpInst struct {
	InstCommon
	Pred     CmpPredicate
	Lhs, Rhs base.Handle // Uses
}

func (i *CmpInst) IsTerminator() bool  { return false }
func (i *CmpInst) Uses() []base.Handle { return filterValid(i.Lhs, i.Rhs) }

// CastOp enumerates the value-conversion families.
type CastOp uint8

const (
	CastTrunc CastOp = iota
	CastZExt
	CastSExt
	CastFPTrunc
	CastFPExt
	CastFPToUI
	CastFPToSI
	CastUIToFP
	CastSIToFP
	CastPtrToInt
	CastIntToPtr
	CastBitcast
)

// CastInst converts Src to ResultType.
type CastInst struct {
	InstCommon
	Op  CastOp
	Src base.Handle // Use
}

func (i *CastInst) IsTerminator() bool  { return false }
func (i *CastInst) Uses() []base.Handle { return filterValid(i.Src) }

// PhiIncoming is one (incoming_block, incoming_value) pair, per
// spec.md §4.5; both halves carry the same group index in their Use's
// Kind so removal/reordering of an incoming edge is O(1) to locate.
type PhiIncoming struct {
	BlockUse base.Handle // Use, Kind = {RolePhiBlock, group}
	ValueUse base.Handle // Use, Kind = {RolePhiValue, group}
}

// PhiInst merges values along incoming control-flow edges.
type PhiInst struct {
	InstCommon
	Incoming []PhiIncoming
}

func (i *PhiInst) IsTerminator() bool { return false }
func (i *PhiInst) Uses() []base.Handle {
	out := make([]base.Handle, 0, len(i.Incoming)*2)
	for _, inc := range i.Incoming {
		out = append(out, filterValid(inc.BlockUse, inc.ValueUse)...)
	}
	return out
}

// SelectInst chooses between True and False based on Cond, with no
// control-flow effect (a "ternary" instruction).
type SelectInst struct {
	InstCommon
	Cond, True, False base.Handle // Uses
}

func (i *SelectInst) IsTerminator() bool { return false }
func (i *SelectInst) Uses() []base.Handle {
	return filterValid(i.Cond, i.True, i.False)
}

// CallInst calls Callee (a function global or function-typed value)
// with Args.
type CallInst struct {
	InstCommon
	Callee base.Handle // Use
	Args   []base.Handle // Uses
}

func (i *CallInst) IsTerminator() bool { return false }
func (i *CallInst) Uses() []base.Handle {
	out := filterValid(i.Callee)
	out = append(out, i.Args...)
	return out
}
