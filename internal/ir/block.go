package ir

import "talon/internal/base"

// BlockData is the storage backing a basic block: an owned instruction
// list whose last member must be a terminator (spec.md §4.4), a weak
// list of predecessor JumpTargets, a back-reference to its function,
// and the SSA user list for when the block itself is used as a value.
type BlockData struct {
	listLinks base.Links // node within the function's block list
	Parent    base.Handle

	instSentinel      base.Handle
	instSentinelLinks base.Links
	insts             base.List

	predSentinel      base.Handle
	predSentinelLinks base.Links
	preds             base.WeakList

	users userList
}

func newBlockData(parent base.Handle) BlockData {
	instS := base.NewSentinelHandle()
	predS := base.NewSentinelHandle()
	return BlockData{
		Parent:            parent,
		instSentinel:      instS,
		instSentinelLinks: base.Links{Prev: instS, Next: instS},
		insts:             *base.NewList(instS),
		predSentinel:      predS,
		predSentinelLinks: base.Links{Prev: predS, Next: predS},
		preds:             *base.NewList(predS),
		users:             newUserList(),
	}
}

func (m *Module) instListLinks(b *BlockData) base.LinksOf {
	return func(h base.Handle) *base.Links {
		if h == b.instSentinel {
			return &b.instSentinelLinks
		}
		return &m.instCommon(h).listLinks
	}
}

func (m *Module) predListLinks(b *BlockData) base.LinksOf {
	return func(h base.Handle) *base.Links {
		if h == b.predSentinel {
			return &b.predSentinelLinks
		}
		return &m.jumpTargets.Get(h).links
	}
}

// NewBlock creates an empty block (no terminator yet) appended to fn's
// block list.
func (m *Module) NewBlock(fn base.Handle) base.Handle {
	h := m.blocks.Insert(newBlockData(fn))
	f := m.funcs.Get(fn)
	f.blocks.PushBack(m.funcBlockListLinks(f), h)
	return h
}

// Instructions returns every instruction handle in b, front to back.
func (m *Module) Instructions(b base.Handle) []base.Handle {
	bd := m.blocks.Get(b)
	return bd.insts.ToSlice(m.instListLinks(bd))
}

// Terminator returns b's terminator instruction, or base.Nil if b has
// none yet (under-construction block).
func (m *Module) Terminator(b base.Handle) base.Handle {
	bd := m.blocks.Get(b)
	if bd.insts.Empty() {
		return base.Nil
	}
	last := bd.insts.Back(m.instListLinks(bd))
	if !m.instCommon(last).Kind.isTerminatorKind() {
		return base.Nil
	}
	return last
}

func (k InstKind) isTerminatorKind() bool {
	switch k {
	case InstJump, InstBr, InstSwitch, InstRet, InstUnreachable:
		return true
	default:
		return false
	}
}

// PushInstBeforeTerminator appends inst to b's instruction list
// immediately before the terminator. Panics if b has no terminator —
// per spec.md §4.4 this operation is only legal once one exists.
func (m *Module) PushInstBeforeTerminator(b, inst base.Handle) {
	bd := m.blocks.Get(b)
	term := m.Terminator(b)
	if term.IsNil() {
		panic("ir: PushInstBeforeTerminator: block has no terminator")
	}
	bd.insts.InsertBefore(m.instListLinks(bd), term, inst)
	m.instCommon(inst).Parent = b
}

// PushInst appends inst to the tail of b's instruction list
// unconditionally — used while building a block before it has a
// terminator.
func (m *Module) PushInst(b, inst base.Handle) {
	bd := m.blocks.Get(b)
	bd.insts.PushBack(m.instListLinks(bd), inst)
	m.instCommon(inst).Parent = b
}

// SetTerminator replaces b's terminator with newTerm (which must not
// yet be attached to any block), returning the previous terminator
// handle (base.Nil if there was none) for the caller to detach. Every
// JumpTarget owned by newTerm is attached to its target block's
// predecessor list by the instruction's own constructor — SetTerminator
// only manages the instruction-list splice.
func (m *Module) SetTerminator(b, newTerm base.Handle) base.Handle {
	bd := m.blocks.Get(b)
	old := m.Terminator(b)
	if old.IsValid() {
		bd.insts.Unlink(m.instListLinks(bd), old)
	}
	bd.insts.PushBack(m.instListLinks(bd), newTerm)
	m.instCommon(newTerm).Parent = b
	return old
}

// Predecessors returns the JumpTarget handles whose Block is b.
func (m *Module) Predecessors(b base.Handle) []base.Handle {
	bd := m.blocks.Get(b)
	return bd.preds.ToSlice(m.predListLinks(bd))
}

// DistinctPredecessorBlocks returns the unique set of source blocks
// that branch into b, per the "distinct" rule of spec.md §4.4 (parallel
// edges from the same source count once).
func (m *Module) DistinctPredecessorBlocks(b base.Handle) []base.Handle {
	seen := map[base.Handle]bool{}
	var out []base.Handle
	for _, jt := range m.Predecessors(b) {
		src := m.instCommon(m.jumpTargets.Get(jt).Terminator).Parent
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

// DistinctSuccessorBlocks returns the unique set of blocks b's
// terminator can jump to.
func (m *Module) DistinctSuccessorBlocks(b base.Handle) []base.Handle {
	term := m.Terminator(b)
	if term.IsNil() {
		return nil
	}
	seen := map[base.Handle]bool{}
	var out []base.Handle
	for _, jtH := range m.instJumpTargets(term) {
		tgt := m.jumpTargets.Get(jtH).Block
		if tgt.IsValid() && !seen[tgt] {
			seen[tgt] = true
			out = append(out, tgt)
		}
	}
	return out
}

// BlockParent returns the function a block belongs to.
func (m *Module) BlockParent(b base.Handle) base.Handle {
	return m.blocks.Get(b).Parent
}

// SuccessorBlocks returns the (possibly repeated, parallel-edge
// preserving) target blocks a terminator instruction can jump to, in
// JumpTarget order — unlike DistinctSuccessorBlocks, this keeps
// duplicates so callers that need to walk every edge (not just the
// distinct target set) can do so.
func (m *Module) SuccessorBlocks(instH base.Handle) []base.Handle {
	var out []base.Handle
	for _, jtH := range m.instJumpTargets(instH) {
		tgt := m.jumpTargets.Get(jtH).Block
		if tgt.IsValid() {
			out = append(out, tgt)
		}
	}
	return out
}

// instJumpTargets returns every JumpTarget handle a terminator owns, in
// a stable order (needed for critical-edge counting and GC marking).
func (m *Module) instJumpTargets(instH base.Handle) []base.Handle {
	inst := *m.insts.Get(instH)
	switch t := inst.(type) {
	case *JumpInst:
		return []base.Handle{t.Target}
	case *BrInst:
		return []base.Handle{t.TrueTarget, t.FalseTarget}
	case *SwitchInst:
		out := []base.Handle{t.Default}
		for _, c := range t.Cases {
			out = append(out, c.Target)
		}
		return out
	default:
		return nil
	}
}
