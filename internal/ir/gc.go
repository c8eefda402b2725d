package ir

import "talon/internal/base"

// ReserveFunc lets a caller ask Compact to leave spare, unattached
// instruction slots after a function's own instructions — room a
// later pass can claim (attach to a block, fill in operands) without
// forcing another full compaction. The default reserves nothing.
type ReserveFunc func(fn base.Handle) int

// NoReserve is the zero-reservation policy.
func NoReserve(base.Handle) int { return 0 }

// markSet records which handles of each arena kind are reachable from
// the module's roots: every global (globals are always named, so all
// of them are roots) and every non-extern function definition, per
// spec.md §4.7. Grounded on original_source/src/ir/module/gc/mark.rs's
// worklist-free recursive marking.
type markSet struct {
	funcs      map[base.Handle]bool
	blocks     map[base.Handle]bool
	insts      map[base.Handle]bool
	globals    map[base.Handle]bool
	constExprs map[base.Handle]bool
}

func newMarkSet() *markSet {
	return &markSet{
		funcs:      map[base.Handle]bool{},
		blocks:     map[base.Handle]bool{},
		insts:      map[base.Handle]bool{},
		globals:    map[base.Handle]bool{},
		constExprs: map[base.Handle]bool{},
	}
}

// Mark runs the mark phase and returns the reachable set. Exposed on
// its own (distinct from Compact) so a verifier or diagnostic pass can
// ask "is this handle live" without paying for a rebuild.
func (m *Module) Mark() *markSet {
	ms := newMarkSet()
	for _, gH := range m.Globals() {
		ms.markGlobal(m, gH)
	}
	for _, fnH := range m.Functions() {
		if !m.Function(fnH).External {
			ms.markFunc(m, fnH)
		}
	}
	return ms
}

func (ms *markSet) markGlobal(m *Module, h base.Handle) {
	if ms.globals[h] {
		return
	}
	ms.globals[h] = true
	g := m.Global(h)
	if g.Initializer.IsValid() {
		ms.markConstExpr(m, g.Initializer)
	}
}

func (ms *markSet) markConstExpr(m *Module, h base.Handle) {
	if ms.constExprs[h] {
		return
	}
	ms.constExprs[h] = true
	ce := m.ConstExprData(h)
	for _, e := range ce.Elements {
		ms.markValue(m, e)
	}
}

func (ms *markSet) markFunc(m *Module, h base.Handle) {
	if ms.funcs[h] {
		return
	}
	ms.funcs[h] = true
	for _, bH := range m.Blocks(h) {
		ms.markBlock(m, bH)
	}
}

func (ms *markSet) markBlock(m *Module, h base.Handle) {
	if ms.blocks[h] {
		return
	}
	ms.blocks[h] = true
	for _, instH := range m.Instructions(h) {
		ms.markInst(m, instH)
	}
}

func (ms *markSet) markInst(m *Module, h base.Handle) {
	if ms.insts[h] {
		return
	}
	ms.insts[h] = true
	inst := m.Instruction(h)
	for _, useH := range inst.Uses() {
		ms.markValue(m, m.uses.Get(useH).Operand)
	}
	for _, jtH := range m.instJumpTargets(h) {
		jt := m.jumpTargets.Get(jtH)
		if jt.Block.IsValid() {
			ms.markBlock(m, jt.Block)
		}
	}
}

func (ms *markSet) markValue(m *Module, v Value) {
	switch v.Kind {
	case ValBlock:
		ms.markBlock(m, v.Ref)
	case ValInst:
		ms.markInst(m, v.Ref)
	case ValGlobal:
		ms.markGlobal(m, v.Ref)
	case ValFunc:
		ms.markFunc(m, v.Ref)
	case ValConstExpr:
		ms.markConstExpr(m, v.ConstExpr)
	}
}

// compactor carries the old->new handle maps while Compact rebuilds a
// fresh, densely packed module in canonical order: globals, then
// functions, each function's blocks and instructions in their existing
// list order. Rebuilding into a new Module sidesteps in-place handle
// renumbering (the arena's freelist is LIFO, not sequential, so handles
// can't be renumbered in place without breaking every existing
// reference anyway) while still producing the gap-free, deterministic
// layout a compacting collector promises.
type compactor struct {
	old *Module
	new *Module
	ms  *markSet

	globals    map[base.Handle]base.Handle
	funcs      map[base.Handle]base.Handle
	blocks     map[base.Handle]base.Handle
	insts      map[base.Handle]base.Handle
	constExprs map[base.Handle]base.Handle

	reserved map[base.Handle][]base.Handle // keyed by NEW function handle
}

// Compact performs a full mark-and-compact pass and returns a new
// Module containing only reachable entities, reindexed in canonical
// order, plus the set of reservation-gap instruction handles Compact
// allocated per reserve's request (unattached: Parent is base.Nil,
// caller must PushInst/PushInstBeforeTerminator them into a block
// before use).
func (m *Module) Compact(reserve ReserveFunc) (*Module, map[base.Handle][]base.Handle) {
	if reserve == nil {
		reserve = NoReserve
	}
	c := &compactor{
		old:        m,
		new:        NewModule(m.tctx),
		ms:         m.Mark(),
		globals:    map[base.Handle]base.Handle{},
		funcs:      map[base.Handle]base.Handle{},
		blocks:     map[base.Handle]base.Handle{},
		insts:      map[base.Handle]base.Handle{},
		constExprs: map[base.Handle]base.Handle{},
		reserved:   map[base.Handle][]base.Handle{},
	}
	c.copyGlobals()
	c.copyFuncSkeletons()
	c.copyBlocksAndInstSkeletons()
	c.wireInstOperands()
	c.applyReserve(reserve)
	return c.new, c.reserved
}

func (c *compactor) copyGlobals() {
	for _, gH := range c.old.Globals() {
		if !c.ms.globals[gH] {
			continue
		}
		g := c.old.Global(gH)
		c.globals[gH] = c.new.NewGlobal(g.Name, g.Ty, g.Extern)
	}
	for _, gH := range c.old.Globals() {
		if !c.ms.globals[gH] {
			continue
		}
		g := c.old.Global(gH)
		if g.Initializer.IsValid() {
			c.new.SetGlobalInitializer(c.globals[gH], c.remapConstExpr(g.Initializer))
		}
	}
}

func (c *compactor) copyFuncSkeletons() {
	for _, fnH := range c.old.Functions() {
		if !c.ms.funcs[fnH] {
			continue
		}
		f := c.old.Function(fnH)
		c.funcs[fnH] = c.new.NewFunction(f.Name, f.Sig, f.ArgTypes, f.External)
	}
}

// copyBlocksAndInstSkeletons creates every live block and a shape-only
// copy of every live instruction (opcode-specific scalar fields set,
// operand/jump-target references left empty) before any operand is
// wired up — instructions can reference blocks and other instructions
// that appear later in list order (loop back-edges, forward phi
// incoming blocks), so every handle must exist before pass two runs.
func (c *compactor) copyBlocksAndInstSkeletons() {
	for _, fnH := range c.old.Functions() {
		if !c.ms.funcs[fnH] {
			continue
		}
		newFn := c.funcs[fnH]
		for _, bH := range c.old.Blocks(fnH) {
			c.blocks[bH] = c.new.NewBlock(newFn)
		}
	}
	for _, fnH := range c.old.Functions() {
		if !c.ms.funcs[fnH] {
			continue
		}
		for _, bH := range c.old.Blocks(fnH) {
			newB := c.blocks[bH]
			for _, instH := range c.old.Instructions(bH) {
				skeleton := cloneInstShape(c.old.Instruction(instH))
				newH := c.new.insts.Insert(skeleton)
				c.insts[instH] = newH
				c.new.PushInst(newB, newH)
			}
		}
	}
}

// cloneInstShape copies the opcode tag and non-reference fields of inst
// into a fresh variant of the same concrete type; Use- and
// JumpTarget-bearing fields are left at their zero value for
// wireInstOperands to fill in once every handle exists.
func cloneInstShape(inst Instruction) Instruction {
	common := InstCommon{Kind: inst.common().Kind, ResultType: inst.common().ResultType, users: newUserList()}
	switch t := inst.(type) {
	case *JumpInst:
		return &JumpInst{InstCommon: common}
	case *BrInst:
		return &BrInst{InstCommon: common}
	case *SwitchInst:
		cases := make([]SwitchCase, len(t.Cases))
		for i, c := range t.Cases {
			cases[i] = SwitchCase{Value: c.Value}
		}
		return &SwitchInst{InstCommon: common, Cases: cases}
	case *RetInst:
		return &RetInst{InstCommon: common}
	case *UnreachableInst:
		return &UnreachableInst{InstCommon: common}
	case *LoadInst:
		return &LoadInst{InstCommon: common, AlignLog2: t.AlignLog2}
	case *StoreInst:
		return &StoreInst{InstCommon: common, AlignLog2: t.AlignLog2}
	case *AllocaInst:
		return &AllocaInst{InstCommon: common, AllocType: t.AllocType, AlignLog2: t.AlignLog2}
	case *GEPInst:
		return &GEPInst{
			InstCommon: common, InitialType: t.InitialType, FinalType: t.FinalType,
			AlignLog2: t.AlignLog2, PointeeAlignLog2: t.PointeeAlignLog2, Inbounds: t.Inbounds,
			Indices: make([]base.Handle, len(t.Indices)),
		}
	case *BinOpInst:
		return &BinOpInst{InstCommon: common, Op: t.Op}
	case *CmpInst:
		return &CmpInst{InstCommon: common, Pred: t.Pred}
	case *CastInst:
		return &CastInst{InstCommon: common, Op: t.Op}
	case *PhiInst:
		return &PhiInst{InstCommon: common, Incoming: make([]PhiIncoming, len(t.Incoming))}
	case *SelectInst:
		return &SelectInst{InstCommon: common}
	case *CallInst:
		return &CallInst{InstCommon: common, Args: make([]base.Handle, len(t.Args))}
	default:
		panic("ir: cloneInstShape: unhandled instruction variant")
	}
}

func (c *compactor) remapValue(v Value) Value {
	switch v.Kind {
	case ValGlobal:
		return GlobalValue(c.globals[v.Ref])
	case ValFunc:
		return FuncValue(c.funcs[v.Ref])
	case ValBlock:
		return BlockValue(c.blocks[v.Ref])
	case ValInst:
		return InstValue(c.insts[v.Ref])
	case ValFuncArg:
		return FuncArgValue(c.funcs[v.Func], v.ArgIndex)
	case ValConstExpr:
		return Value{Kind: ValConstExpr, ConstExpr: c.remapConstExpr(v.ConstExpr)}
	default:
		return v // ValNone, ValConstData carry no handles of their own
	}
}

func (c *compactor) remapConstExpr(h base.Handle) base.Handle {
	if nh, ok := c.constExprs[h]; ok {
		return nh
	}
	ce := c.old.ConstExprData(h)
	elems := make([]Value, len(ce.Elements))
	for i, e := range ce.Elements {
		elems[i] = c.remapValue(e)
	}
	nh := c.new.NewConstExpr(ce.Kind, ce.Ty, elems)
	c.constExprs[h] = nh
	return nh
}

// wireInstOperands fills in every Use and JumpTarget the skeleton
// instructions created in pass two still lack, now that every block and
// instruction handle in the function set has a new counterpart. It walks
// instructions in the same function/block/list order as pass two, so
// each instruction's Uses and JumpTargets are allocated contiguously
// and in the same order on every run.
func (c *compactor) wireInstOperands() {
	for _, fnH := range c.old.Functions() {
		if !c.ms.funcs[fnH] {
			continue
		}
		for _, bH := range c.old.Blocks(fnH) {
			for _, oldH := range c.old.Instructions(bH) {
				newH := c.insts[oldH]
				c.wireOne(c.old.Instruction(oldH), c.new.Instruction(newH), newH)
			}
		}
	}
}

func (c *compactor) wireOne(old, nw Instruction, newH base.Handle) {
	switch t := old.(type) {
	case *JumpInst:
		n := nw.(*JumpInst)
		n.Target = c.new.NewJumpTarget(JTJump, 0, newH)
		c.new.SetJumpTargetBlock(n.Target, c.blocks[c.old.jumpTargets.Get(t.Target).Block])
	case *BrInst:
		n := nw.(*BrInst)
		n.Cond = c.wireUse(t.Cond, newH, 0, RoleOperand)
		n.TrueTarget = c.new.NewJumpTarget(JTBrTrue, 0, newH)
		c.new.SetJumpTargetBlock(n.TrueTarget, c.blocks[c.old.jumpTargets.Get(t.TrueTarget).Block])
		n.FalseTarget = c.new.NewJumpTarget(JTBrFalse, 0, newH)
		c.new.SetJumpTargetBlock(n.FalseTarget, c.blocks[c.old.jumpTargets.Get(t.FalseTarget).Block])
	case *SwitchInst:
		n := nw.(*SwitchInst)
		n.Value = c.wireUse(t.Value, newH, 0, RoleOperand)
		n.Default = c.new.NewJumpTarget(JTSwitchDefault, 0, newH)
		c.new.SetJumpTargetBlock(n.Default, c.blocks[c.old.jumpTargets.Get(t.Default).Block])
		for i, oldCase := range t.Cases {
			jt := c.new.NewJumpTarget(JTSwitchCase, oldCase.Value, newH)
			c.new.SetJumpTargetBlock(jt, c.blocks[c.old.jumpTargets.Get(oldCase.Target).Block])
			n.Cases[i].Target = jt
		}
	case *RetInst:
		n := nw.(*RetInst)
		if t.Value.IsValid() {
			n.Value = c.wireUse(t.Value, newH, 0, RoleOperand)
		}
	case *UnreachableInst:
	case *LoadInst:
		n := nw.(*LoadInst)
		n.Addr = c.wireUse(t.Addr, newH, 0, RoleOperand)
	case *StoreInst:
		n := nw.(*StoreInst)
		n.Addr = c.wireUse(t.Addr, newH, 0, RoleOperand)
		n.Val = c.wireUse(t.Val, newH, 1, RoleOperand)
	case *AllocaInst:
	case *GEPInst:
		n := nw.(*GEPInst)
		n.Base = c.wireUse(t.Base, newH, 0, RoleOperand)
		for i, oldIdx := range t.Indices {
			n.Indices[i] = c.wireUse(oldIdx, newH, i+1, RoleOperand)
		}
	case *BinOpInst:
		n := nw.(*BinOpInst)
		n.Lhs = c.wireUse(t.Lhs, newH, 0, RoleOperand)
		n.Rhs = c.wireUse(t.Rhs, newH, 1, RoleOperand)
	case *CmpInst:
		n := nw.(*CmpInst)
		n.Lhs = c.wireUse(t.Lhs, newH, 0, RoleOperand)
		n.Rhs = c.wireUse(t.Rhs, newH, 1, RoleOperand)
	case *CastInst:
		n := nw.(*CastInst)
		n.Src = c.wireUse(t.Src, newH, 0, RoleOperand)
	case *PhiInst:
		n := nw.(*PhiInst)
		for i, inc := range t.Incoming {
			blockVal := c.old.uses.Get(inc.BlockUse).Operand
			valueVal := c.old.uses.Get(inc.ValueUse).Operand
			n.Incoming[i] = PhiIncoming{
				BlockUse: c.new.newUse(UseKind{RolePhiBlock, i}, newH, c.remapValue(blockVal)),
				ValueUse: c.new.newUse(UseKind{RolePhiValue, i}, newH, c.remapValue(valueVal)),
			}
		}
	case *SelectInst:
		n := nw.(*SelectInst)
		n.Cond = c.wireUse(t.Cond, newH, 0, RoleOperand)
		n.True = c.wireUse(t.True, newH, 1, RoleOperand)
		n.False = c.wireUse(t.False, newH, 2, RoleOperand)
	case *CallInst:
		n := nw.(*CallInst)
		n.Callee = c.wireUse(t.Callee, newH, 0, RoleOperand)
		for i, a := range t.Args {
			n.Args[i] = c.wireUse(a, newH, i+1, RoleOperand)
		}
	}
}

func (c *compactor) wireUse(oldUseH, newInstH base.Handle, index int, role UseRole) base.Handle {
	oldVal := c.old.uses.Get(oldUseH).Operand
	return c.new.newUse(UseKind{role, index}, newInstH, c.remapValue(oldVal))
}

// applyReserve allocates reserve(fn) unattached instruction slots per
// live function, in module function order, recorded in c.reserved
// under the function's NEW handle for the caller to claim later.
func (c *compactor) applyReserve(reserve ReserveFunc) {
	for _, oldFn := range c.old.Functions() {
		newFn, live := c.funcs[oldFn]
		if !live {
			continue
		}
		n := reserve(oldFn)
		if n <= 0 {
			continue
		}
		slots := make([]base.Handle, n)
		for i := 0; i < n; i++ {
			slots[i] = c.new.insts.Insert(&UnreachableInst{InstCommon: InstCommon{Kind: InstUnreachable, ResultType: c.new.voidType(), users: newUserList()}})
		}
		c.reserved[newFn] = slots
	}
}
