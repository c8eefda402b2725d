package ir

import "talon/internal/base"

// UseRole names the slot an operand occupies, per spec.md §3/§4.3. Most
// instructions use RoleOperand with Index as a plain position (GEP base
// is index 0, GEP index i is index i+1, call callee is index 0, call
// argument i is index i+1). Phi incoming pairs get their own roles
// because both halves of a pair share one group index.
type UseRole uint8

const (
	RoleOperand UseRole = iota
	RolePhiBlock
	RolePhiValue
)

// UseKind names which slot of its owning instruction a Use occupies.
type UseKind struct {
	Role  UseRole
	Index int // operand position, or phi group index
}

// Use is one operand slot of one instruction. It is owned by its
// instruction and holds a weak link into its operand's user list — the
// mirror of Instruction's ownership of its Use slots described in
// spec.md §4.3.
type Use struct {
	Kind    UseKind
	User    base.Handle // owning instruction handle
	Operand Value
	links   base.Links // node within Operand's user list, when Operand is a reference variant
}

// userList is the weak list of Use handles whose Operand currently
// equals a given reference-variant value. Every Block, Instruction, and
// Global embeds one. The sentinel's Links live inline (not in an arena)
// since the sentinel is never addressed by client code.
type userList struct {
	sentinel      base.Handle
	sentinelLinks base.Links
	list          base.WeakList
}

func newUserList() userList {
	s := base.NewSentinelHandle()
	ul := userList{sentinel: s, sentinelLinks: base.Links{Prev: s, Next: s}}
	ul.list = *base.NewList(s)
	return ul
}

// Len reports the number of uses currently referencing this value.
func (ul *userList) Len() int { return ul.list.Len() }

// uses is the Module-global arena of Use records; defined here so
// use.go and module.go can both refer to it without an import cycle
// (there is none — this is just organizational).
type usesArena = base.Arena[Use]

func (m *Module) useLinks(ul *userList) base.LinksOf {
	return func(h base.Handle) *base.Links {
		if h == ul.sentinel {
			return &ul.sentinelLinks
		}
		return &m.uses.Get(h).links
	}
}

// userListOf returns the userList backing v's user-list bookkeeping, or
// ok=false if v is not a reference variant (and so has none).
func (m *Module) userListOf(v Value) (*userList, bool) {
	switch v.Kind {
	case ValBlock:
		return &m.blocks.Get(v.Ref).users, true
	case ValInst:
		return &m.instCommon(v.Ref).users, true
	case ValGlobal:
		return &m.globals.Get(v.Ref).users, true
	default:
		return nil, false
	}
}

// newUse allocates a Use with the given kind/user/operand and links it
// into the operand's user list if the operand is a reference variant.
func (m *Module) newUse(kind UseKind, user base.Handle, operand Value) base.Handle {
	h := m.uses.Insert(Use{Kind: kind, User: user, Operand: None})
	m.setOperand(h, operand)
	return h
}

// setOperand implements Use::set_operand from spec.md §4.3: unlink from
// the old operand's user list (if it had one), assign, then link into
// the new operand's user list (if it has one). This is the single
// primitive that keeps the invariant
// userlist(v) = { u : u.operand == v } intact.
func (m *Module) setOperand(useHandle base.Handle, newVal Value) {
	use := m.uses.Get(useHandle)
	if old, ok := m.userListOf(use.Operand); ok {
		old.list.Unlink(m.useLinks(old), useHandle)
	}
	use.Operand = newVal
	if ul, ok := m.userListOf(newVal); ok {
		ul.list.PushBack(m.useLinks(ul), useHandle)
	}
}

// dropUse implements Use::drop: unlink from the operand's user list and
// free the Use's arena slot. Callers must already have removed the use
// handle from its owning instruction's operand list.
func (m *Module) dropUse(useHandle base.Handle) {
	use := m.uses.Get(useHandle)
	if ul, ok := m.userListOf(use.Operand); ok {
		ul.list.Unlink(m.useLinks(ul), useHandle)
	}
	m.uses.Remove(useHandle)
}

// ReplaceAllUsesWith implements Value::replace_all_uses_with: walks v's
// user list and redirects every use to newVal via setOperand, which
// itself performs the list migration. On return v's user list is empty.
func (m *Module) ReplaceAllUsesWith(v, newVal Value) {
	ul, ok := m.userListOf(v)
	if !ok {
		return
	}
	members := ul.list.ToSlice(m.useLinks(ul))
	for _, useHandle := range members {
		m.setOperand(useHandle, newVal)
	}
}

// Users returns every Use currently referencing v, or nil if v is not a
// reference variant.
func (m *Module) Users(v Value) []base.Handle {
	ul, ok := m.userListOf(v)
	if !ok {
		return nil
	}
	return ul.list.ToSlice(m.useLinks(ul))
}

// UseOperand returns the current operand Value a Use holds — the
// exported read side of setOperand, for callers (such as the
// verification pass) outside this package that only need to inspect a
// Use, not mutate it.
func (m *Module) UseOperand(useHandle base.Handle) Value {
	return m.uses.Get(useHandle).Operand
}
