package ir

import "talon/internal/base"

// JumpTargetKind identifies the role of a CFG edge, per spec.md §3/§4.4.
type JumpTargetKind uint8

const (
	JTJump JumpTargetKind = iota
	JTBrTrue
	JTBrFalse
	JTSwitchDefault
	JTSwitchCase
)

// JumpTarget is a first-class CFG edge, owned strongly by its
// terminator instruction and living, while attached, in its target
// block's weak predecessor list.
type JumpTarget struct {
	Kind       JumpTargetKind
	CaseValue  int64 // meaningful only when Kind == JTSwitchCase
	Terminator base.Handle
	Block      base.Handle // target; base.Nil until SetJumpTargetBlock
	links      base.Links  // node within Block's predecessor list
}

// NewJumpTarget allocates a JumpTarget owned by terminator, initially
// pointed at no block (spec.md §3: "on construction pointed at null").
func (m *Module) NewJumpTarget(kind JumpTargetKind, caseValue int64, terminator base.Handle) base.Handle {
	return m.jumpTargets.Insert(JumpTarget{Kind: kind, CaseValue: caseValue, Terminator: terminator, Block: base.Nil})
}

// JumpTarget returns the CFG edge named by h, so that instruction
// selection (internal/lower) can resolve a terminator's owned edges to
// their target blocks without reaching into module internals.
func (m *Module) JumpTarget(h base.Handle) *JumpTarget { return m.jumpTargets.Get(h) }

// SetJumpTargetBlock implements JumpTarget::set_block: detaches jt from
// its old target's predecessor list (if any) and attaches it to
// newBlock's (if valid).
func (m *Module) SetJumpTargetBlock(jtHandle, newBlock base.Handle) {
	jt := m.jumpTargets.Get(jtHandle)
	if jt.Block.IsValid() {
		old := m.blocks.Get(jt.Block)
		old.preds.Unlink(m.predListLinks(old), jtHandle)
	}
	jt.Block = newBlock
	if newBlock.IsValid() {
		nb := m.blocks.Get(newBlock)
		nb.preds.PushBack(m.predListLinks(nb), jtHandle)
	}
}

// DropJumpTarget detaches jt from its target's predecessor list (if
// attached) and frees its arena slot — the "on drop, detaches" rule of
// spec.md §3.
func (m *Module) DropJumpTarget(jtHandle base.Handle) {
	jt := m.jumpTargets.Get(jtHandle)
	if jt.Block.IsValid() {
		b := m.blocks.Get(jt.Block)
		b.preds.Unlink(m.predListLinks(b), jtHandle)
	}
	m.jumpTargets.Remove(jtHandle)
}

// countEdgesSourceToTarget counts how many of source's own JumpTargets
// currently point at target — used by critical-edge splitting to decide
// whether a phi's incoming pair should move or be copied.
func (m *Module) countEdgesSourceToTarget(source, target base.Handle) int {
	term := m.Terminator(source)
	if term.IsNil() {
		return 0
	}
	n := 0
	for _, jtH := range m.instJumpTargets(term) {
		if m.jumpTargets.Get(jtH).Block == target {
			n++
		}
	}
	return n
}

// IsCriticalEdge reports whether jt's edge is critical: its source has
// ≥2 distinct successors and its target has ≥2 distinct predecessors
// (spec.md §4.4; "distinct" dedupes parallel edges, resolving Open
// Question 2 of spec.md §9).
func (m *Module) IsCriticalEdge(jtHandle base.Handle) bool {
	jt := m.jumpTargets.Get(jtHandle)
	if !jt.Block.IsValid() {
		return false
	}
	source := m.instCommon(jt.Terminator).Parent
	return len(m.DistinctSuccessorBlocks(source)) >= 2 &&
		len(m.DistinctPredecessorBlocks(jt.Block)) >= 2
}

// SplitCriticalEdge splits jt's edge, per spec.md §4.4: inserts a new
// block B' between source and target, redirects jt to B', gives B' a
// single unconditional jump to the original target, and fixes up the
// target's phis. A phi's incoming pair for source is moved to B' when
// jt was the only edge from source to target; otherwise it is copied,
// since the remaining parallel edge(s) still need source as a valid
// incoming block.
func (m *Module) SplitCriticalEdge(jtHandle base.Handle) base.Handle {
	jt := m.jumpTargets.Get(jtHandle)
	target := jt.Block
	source := m.instCommon(jt.Terminator).Parent
	edgeCount := m.countEdgesSourceToTarget(source, target)
	fn := m.blocks.Get(source).Parent

	bPrime := m.NewBlock(fn)
	jumpInst := &JumpInst{InstCommon: InstCommon{Kind: InstJump, ResultType: m.voidType(), users: newUserList()}}
	jumpH := m.insts.Insert(Instruction(jumpInst))
	jumpInst.Target = m.NewJumpTarget(JTJump, 0, jumpH)
	m.SetJumpTargetBlock(jumpInst.Target, target)
	m.SetTerminator(bPrime, jumpH)

	m.SetJumpTargetBlock(jtHandle, bPrime)

	for _, instH := range m.Instructions(target) {
		phi, ok := (*m.insts.Get(instH)).(*PhiInst)
		if !ok {
			continue
		}
		for idx := range phi.Incoming {
			inc := phi.Incoming[idx]
			blockVal := m.uses.Get(inc.BlockUse).Operand
			if blockVal.Kind != ValBlock || blockVal.Ref != source {
				continue
			}
			if edgeCount <= 1 {
				m.setOperand(inc.BlockUse, BlockValue(bPrime))
			} else {
				valueOperand := m.uses.Get(inc.ValueUse).Operand
				group := len(phi.Incoming)
				newBlockUse := m.newUse(UseKind{RolePhiBlock, group}, instH, BlockValue(bPrime))
				newValueUse := m.newUse(UseKind{RolePhiValue, group}, instH, valueOperand)
				phi.Incoming = append(phi.Incoming, PhiIncoming{BlockUse: newBlockUse, ValueUse: newValueUse})
			}
			break
		}
	}
	return bPrime
}
