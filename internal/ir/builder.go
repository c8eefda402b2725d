package ir

import (
	"fmt"

	"talon/internal/base"
	"talon/internal/diag"
	"talon/internal/typesys"
)

// Builder is the construction-time façade over a Module: it tracks a
// current function and block cursor and exposes checked constructors
// that return a *diag.Diagnostic for spec.md §7 class-2 errors
// (duplicate names, GEP type mismatches) instead of panicking. Class-1
// errors (operand-class mismatches, double-attach) still panic — those
// indicate a bug in the caller, not a malformed input.
type Builder struct {
	Module *Module
	fn     base.Handle
	block  base.Handle
}

// NewBuilder wraps m for construction.
func NewBuilder(m *Module) *Builder { return &Builder{Module: m} }

// DeclareGlobal registers a new global; returns ErrDuplicateGlobalName
// if the name is already taken.
func (b *Builder) DeclareGlobal(name string, ty typesys.Type, extern bool) (base.Handle, error) {
	if _, exists := b.Module.LookupGlobal(name); exists {
		return base.Nil, diag.New(diag.ErrDuplicateGlobalName, fmt.Sprintf("global %q already declared", name))
	}
	return b.Module.NewGlobal(name, ty, extern), nil
}

// DeclareFunction registers a new function; returns
// ErrDuplicateGlobalName if the name is already taken (functions and
// globals share one namespace, matching the teacher's single module
// symbol table).
func (b *Builder) DeclareFunction(name string, sig typesys.Type, argTypes []typesys.Type, external bool) (base.Handle, error) {
	if _, exists := b.Module.LookupFunction(name); exists {
		return base.Nil, diag.New(diag.ErrDuplicateGlobalName, fmt.Sprintf("function %q already declared", name))
	}
	return b.Module.NewFunction(name, sig, argTypes, external), nil
}

// SetFunction moves the cursor to fn, with no current block.
func (b *Builder) SetFunction(fn base.Handle) { b.fn = fn; b.block = base.Nil }

// CreateBlock creates a new block in the current function and moves the
// cursor to it.
func (b *Builder) CreateBlock() base.Handle {
	h := b.Module.NewBlock(b.fn)
	b.block = h
	return h
}

// SetBlock moves the instruction cursor to blk without creating a new
// block.
func (b *Builder) SetBlock(blk base.Handle) { b.block = blk }

func (b *Builder) emit(inst Instruction) base.Handle {
	h := b.Module.insts.Insert(inst)
	if b.Module.Terminator(b.block).IsValid() {
		b.Module.PushInstBeforeTerminator(b.block, h)
	} else {
		b.Module.PushInst(b.block, h)
	}
	return h
}

func (m *Module) valueType(v Value) typesys.Type {
	switch v.Kind {
	case ValConstData:
		return v.Ty
	case ValConstExpr:
		return m.ConstExprData(v.ConstExpr).Ty
	case ValFuncArg:
		return m.Function(v.Func).ArgTypes[v.ArgIndex]
	case ValInst:
		return m.instCommon(v.Ref).ResultType
	case ValGlobal:
		return m.Global(v.Ref).Ty
	case ValFunc:
		return m.Function(v.Ref).Sig
	case ValBlock:
		return m.tctx.Void()
	default:
		return m.tctx.Void()
	}
}

// CreateBinOp emits a two-operand arithmetic/bitwise instruction.
func (b *Builder) CreateBinOp(op BinOp, lhs, rhs Value, resultType typesys.Type) base.Handle {
	inst := &BinOpInst{InstCommon: InstCommon{Kind: InstBinOp, ResultType: resultType, users: newUserList()}, Op: op}
	h := b.emit(inst)
	inst.Lhs = b.Module.newUse(UseKind{RoleOperand, 0}, h, lhs)
	inst.Rhs = b.Module.newUse(UseKind{RoleOperand, 1}, h, rhs)
	return h
}

// CreateCmp emits a comparison instruction. The result type is always
// i1 (a one-bit boolean), per the teacher's BoolType convention adapted
// to typesys.
func (b *Builder) CreateCmp(pred CmpPredicate, lhs, rhs Value) base.Handle {
	inst := &CmpInst{InstCommon: InstCommon{Kind: InstCmp, ResultType: b.Module.tctx.Int(1), users: newUserList()}, Pred: pred}
	h := b.emit(inst)
	inst.Lhs = b.Module.newUse(UseKind{RoleOperand, 0}, h, lhs)
	inst.Rhs = b.Module.newUse(UseKind{RoleOperand, 1}, h, rhs)
	return h
}

// CreateCast emits a value-conversion instruction.
func (b *Builder) CreateCast(op CastOp, src Value, resultType typesys.Type) base.Handle {
	inst := &CastInst{InstCommon: InstCommon{Kind: InstCast, ResultType: resultType, users: newUserList()}, Op: op}
	h := b.emit(inst)
	inst.Src = b.Module.newUse(UseKind{RoleOperand, 0}, h, src)
	return h
}

// CreateLoad emits a load of resultType from addr.
func (b *Builder) CreateLoad(addr Value, resultType typesys.Type, alignLog2 uint8) base.Handle {
	inst := &LoadInst{InstCommon: InstCommon{Kind: InstLoad, ResultType: resultType, users: newUserList()}, AlignLog2: alignLog2}
	h := b.emit(inst)
	inst.Addr = b.Module.newUse(UseKind{RoleOperand, 0}, h, addr)
	return h
}

// CreateStore emits a store of val to addr.
func (b *Builder) CreateStore(addr, val Value, alignLog2 uint8) base.Handle {
	inst := &StoreInst{InstCommon: InstCommon{Kind: InstStore, ResultType: b.Module.tctx.Void(), users: newUserList()}, AlignLog2: alignLog2}
	h := b.emit(inst)
	inst.Addr = b.Module.newUse(UseKind{RoleOperand, 0}, h, addr)
	inst.Val = b.Module.newUse(UseKind{RoleOperand, 1}, h, val)
	return h
}

// CreateAlloca reserves stack space for a value of allocType.
func (b *Builder) CreateAlloca(allocType typesys.Type, alignLog2 uint8) base.Handle {
	inst := &AllocaInst{
		InstCommon: InstCommon{Kind: InstAlloca, ResultType: b.Module.tctx.Ptr(), users: newUserList()},
		AllocType:  allocType,
		AlignLog2:  alignLog2,
	}
	return b.emit(inst)
}

// CreateGEP emits a getelementptr instruction, type-checking each index
// against the LLVM-compatible walk described in spec.md §4.6. initialType
// is the pointee type base addresses; the first index always walks the
// implicit outer array, subsequent indices walk into arrays/structs.
func (b *Builder) CreateGEP(base_ Value, indices []Value, initialType typesys.Type, inbounds bool) (base.Handle, error) {
	finalType, err := b.Module.walkGEP(initialType, indices)
	if err != nil {
		return base.Nil, err
	}
	ptrTy := b.Module.tctx.Ptr()
	inst := &GEPInst{
		InstCommon:       InstCommon{Kind: InstGEP, ResultType: ptrTy, users: newUserList()},
		InitialType:      initialType,
		FinalType:        finalType,
		AlignLog2:        log2Align(b.Module.tctx.AlignOf(initialType)),
		PointeeAlignLog2: log2Align(alignOfOrOne(b.Module.tctx, finalType)),
		Inbounds:         inbounds,
	}
	h := b.emit(inst)
	inst.Base = b.Module.newUse(UseKind{RoleOperand, 0}, h, base_)
	inst.Indices = make([]base.Handle, len(indices))
	for i, idx := range indices {
		inst.Indices[i] = b.Module.newUse(UseKind{RoleOperand, i + 1}, h, idx)
	}
	return h, nil
}

func alignOfOrOne(ctx *typesys.Context, t typesys.Type) int {
	if t.Kind() == typesys.KindVoid {
		return 1
	}
	return ctx.AlignOf(t)
}

func log2Align(align int) uint8 {
	n := uint8(0)
	for align > 1 {
		align >>= 1
		n++
	}
	return n
}

// walkGEP implements the GEPTypeUnpack state machine of spec.md §4.6.
func (m *Module) walkGEP(initial typesys.Type, indices []Value) (typesys.Type, error) {
	cur := initial
	for i, idx := range indices {
		if m.valueType(idx).Kind() != typesys.KindInt {
			return typesys.Type{}, diag.New(diag.ErrGEPNonIntegerIndex,
				fmt.Sprintf("GEP index %d is not an integer value", i))
		}
		if i == 0 {
			continue // walks the implicit outer array of `initial`; type unchanged
		}
		switch cur.Kind() {
		case typesys.KindArray:
			cur = m.tctx.ElementType(cur)
		case typesys.KindStruct:
			if idx.Kind != ValConstData || idx.ConstKind != ConstInt {
				return typesys.Type{}, diag.New(diag.ErrGEPStructNonConstant,
					fmt.Sprintf("GEP index %d into a struct must be a compile-time constant", i))
			}
			fieldIdx := int(idx.Bits)
			if fieldIdx < 0 || fieldIdx >= m.tctx.NumFields(cur) {
				return typesys.Type{}, diag.New(diag.ErrGEPStructOutOfRange,
					fmt.Sprintf("GEP index %d: field %d out of range", i, fieldIdx))
			}
			cur = m.tctx.FieldType(cur, fieldIdx)
		default:
			return typesys.Type{}, diag.New(diag.ErrGEPIndexNonAggregate,
				fmt.Sprintf("GEP index %d applied to non-aggregate type %s", i, m.tctx.Display(cur)))
		}
	}
	return cur, nil
}

// CreateSelect emits a value-select instruction.
func (b *Builder) CreateSelect(cond, t, f Value, resultType typesys.Type) base.Handle {
	inst := &SelectInst{InstCommon: InstCommon{Kind: InstSelect, ResultType: resultType, users: newUserList()}}
	h := b.emit(inst)
	inst.Cond = b.Module.newUse(UseKind{RoleOperand, 0}, h, cond)
	inst.True = b.Module.newUse(UseKind{RoleOperand, 1}, h, t)
	inst.False = b.Module.newUse(UseKind{RoleOperand, 2}, h, f)
	return h
}

// CreateCall emits a function call.
func (b *Builder) CreateCall(callee Value, args []Value, resultType typesys.Type) base.Handle {
	inst := &CallInst{InstCommon: InstCommon{Kind: InstCall, ResultType: resultType, users: newUserList()}}
	h := b.emit(inst)
	inst.Callee = b.Module.newUse(UseKind{RoleOperand, 0}, h, callee)
	inst.Args = make([]base.Handle, len(args))
	for i, a := range args {
		inst.Args[i] = b.Module.newUse(UseKind{RoleOperand, i + 1}, h, a)
	}
	return h
}

// CreatePhi emits an empty phi; incoming pairs are added with
// AddIncoming once predecessor values are known.
func (b *Builder) CreatePhi(resultType typesys.Type) base.Handle {
	inst := &PhiInst{InstCommon: InstCommon{Kind: InstPhi, ResultType: resultType, users: newUserList()}}
	return b.emit(inst)
}

// AddIncoming appends one (block, value) pair to an existing phi.
func (b *Builder) AddIncoming(phiH base.Handle, block base.Handle, val Value) {
	phi := (*b.Module.insts.Get(phiH)).(*PhiInst)
	group := len(phi.Incoming)
	blockUse := b.Module.newUse(UseKind{RolePhiBlock, group}, phiH, BlockValue(block))
	valueUse := b.Module.newUse(UseKind{RolePhiValue, group}, phiH, val)
	phi.Incoming = append(phi.Incoming, PhiIncoming{BlockUse: blockUse, ValueUse: valueUse})
}

// terminator constructors; each manages its own JumpTarget(s) and
// attaches them via SetJumpTargetBlock so the target's predecessor list
// stays consistent with spec.md §4.4.

// CreateJump emits an unconditional branch to target.
func (b *Builder) CreateJump(target base.Handle) base.Handle {
	inst := &JumpInst{InstCommon: InstCommon{Kind: InstJump, ResultType: b.Module.tctx.Void(), users: newUserList()}}
	h := b.Module.insts.Insert(Instruction(inst))
	inst.Target = b.Module.NewJumpTarget(JTJump, 0, h)
	b.Module.SetJumpTargetBlock(inst.Target, target)
	b.Module.SetTerminator(b.block, h)
	return h
}

// CreateBr emits a two-way conditional branch.
func (b *Builder) CreateBr(cond Value, trueBlock, falseBlock base.Handle) base.Handle {
	inst := &BrInst{InstCommon: InstCommon{Kind: InstBr, ResultType: b.Module.tctx.Void(), users: newUserList()}}
	h := b.Module.insts.Insert(Instruction(inst))
	inst.Cond = b.Module.newUse(UseKind{RoleOperand, 0}, h, cond)
	inst.TrueTarget = b.Module.NewJumpTarget(JTBrTrue, 0, h)
	inst.FalseTarget = b.Module.NewJumpTarget(JTBrFalse, 0, h)
	b.Module.SetJumpTargetBlock(inst.TrueTarget, trueBlock)
	b.Module.SetJumpTargetBlock(inst.FalseTarget, falseBlock)
	b.Module.SetTerminator(b.block, h)
	return h
}

// SwitchArm is one case of a CreateSwitch call.
type SwitchArm struct {
	Value int64
	Block base.Handle
}

// CreateSwitch emits a multi-way branch.
func (b *Builder) CreateSwitch(val Value, defaultBlock base.Handle, arms []SwitchArm) base.Handle {
	inst := &SwitchInst{InstCommon: InstCommon{Kind: InstSwitch, ResultType: b.Module.tctx.Void(), users: newUserList()}}
	h := b.Module.insts.Insert(Instruction(inst))
	inst.Value = b.Module.newUse(UseKind{RoleOperand, 0}, h, val)
	inst.Default = b.Module.NewJumpTarget(JTSwitchDefault, 0, h)
	b.Module.SetJumpTargetBlock(inst.Default, defaultBlock)
	inst.Cases = make([]SwitchCase, len(arms))
	for i, arm := range arms {
		jt := b.Module.NewJumpTarget(JTSwitchCase, arm.Value, h)
		b.Module.SetJumpTargetBlock(jt, arm.Block)
		inst.Cases[i] = SwitchCase{Value: arm.Value, Target: jt}
	}
	b.Module.SetTerminator(b.block, h)
	return h
}

// CreateRet emits a return. Pass None for a void return.
func (b *Builder) CreateRet(val Value) base.Handle {
	inst := &RetInst{InstCommon: InstCommon{Kind: InstRet, ResultType: b.Module.tctx.Void(), users: newUserList()}}
	h := b.Module.insts.Insert(Instruction(inst))
	if val.Kind != ValNone {
		inst.Value = b.Module.newUse(UseKind{RoleOperand, 0}, h, val)
	}
	b.Module.SetTerminator(b.block, h)
	return h
}

// CreateUnreachable emits an unreachable terminator.
func (b *Builder) CreateUnreachable() base.Handle {
	inst := &UnreachableInst{InstCommon{Kind: InstUnreachable, ResultType: b.Module.tctx.Void(), users: newUserList()}}
	h := b.Module.insts.Insert(Instruction(inst))
	b.Module.SetTerminator(b.block, h)
	return h
}
