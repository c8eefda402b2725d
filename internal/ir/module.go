package ir

import (
	"fmt"

	"talon/internal/base"
	"talon/internal/typesys"
)

// ConstExprKind distinguishes the aggregate-initializer forms a
// ConstExpr value can hold.
type ConstExprKind uint8

const (
	CEStruct ConstExprKind = iota
	CEArray
)

// ConstExpr is an aggregate initializer (struct or array literal),
// referenced from a Value via ValConstExpr.
type ConstExpr struct {
	Kind     ConstExprKind
	Ty       typesys.Type
	Elements []Value
}

// Module is the root arena container: dedicated slabs for every entity
// kind plus the name→handle maps for globals and functions, per
// spec.md §3's "Module" description.
type Module struct {
	tctx *typesys.Context

	blocks      *base.Arena[BlockData]
	funcs       *base.Arena[FuncData]
	globals     *base.Arena[GlobalData]
	insts       *base.Arena[Instruction]
	uses        *base.Arena[Use]
	jumpTargets *base.Arena[JumpTarget]
	constExprs  *base.Arena[ConstExpr]

	globalOrder []base.Handle // module map order, for GC compaction
	globalNames map[string]base.Handle
	funcOrder   []base.Handle
	funcNames   map[string]base.Handle
}

// NewModule creates an empty module backed by tctx for all type
// queries.
func NewModule(tctx *typesys.Context) *Module {
	return &Module{
		tctx:        tctx,
		blocks:      base.NewArena[BlockData](),
		funcs:       base.NewArena[FuncData](),
		globals:     base.NewArena[GlobalData](),
		insts:       base.NewArena[Instruction](),
		uses:        base.NewArena[Use](),
		jumpTargets: base.NewArena[JumpTarget](),
		constExprs:  base.NewArena[ConstExpr](),
		globalNames: make(map[string]base.Handle),
		funcNames:   make(map[string]base.Handle),
	}
}

// Types exposes the module's type context to callers that need to
// build types for instruction construction.
func (m *Module) Types() *typesys.Context { return m.tctx }

func (m *Module) voidType() typesys.Type { return m.tctx.Void() }

func (m *Module) instCommon(h base.Handle) *InstCommon {
	return (*m.insts.Get(h)).common()
}

// Instruction returns the concrete instruction value for h.
func (m *Module) Instruction(h base.Handle) Instruction {
	return *m.insts.Get(h)
}

// NewGlobal declares a global variable. Returns a diag-style error via
// panic-free signature (duplicate names are a construction-time error,
// per spec.md §7 item 2) — see Builder.DeclareGlobal for the checked
// entry point; this method assumes the caller already checked
// uniqueness.
func (m *Module) NewGlobal(name string, ty typesys.Type, extern bool) base.Handle {
	h := m.globals.Insert(GlobalData{Name: name, Ty: ty, Extern: extern, users: newUserList()})
	m.globalNames[name] = h
	m.globalOrder = append(m.globalOrder, h)
	return h
}

// SetGlobalInitializer attaches a constant-expression initializer to an
// existing global.
func (m *Module) SetGlobalInitializer(g, constExpr base.Handle) {
	m.globals.Get(g).Initializer = constExpr
}

// LookupGlobal resolves a global by name.
func (m *Module) LookupGlobal(name string) (base.Handle, bool) {
	h, ok := m.globalNames[name]
	return h, ok
}

// Global returns the data for a global handle.
func (m *Module) Global(h base.Handle) *GlobalData { return m.globals.Get(h) }

// NewConstExpr interns an aggregate initializer.
func (m *Module) NewConstExpr(kind ConstExprKind, ty typesys.Type, elems []Value) base.Handle {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return m.constExprs.Insert(ConstExpr{Kind: kind, Ty: ty, Elements: cp})
}

// ConstExprData returns the data for a constant-expression handle.
func (m *Module) ConstExprData(h base.Handle) *ConstExpr { return m.constExprs.Get(h) }

// NewFunction declares a function with the given signature and
// parameter types. argTypes must match the number of parameters implied
// by sig.
func (m *Module) NewFunction(name string, sig typesys.Type, argTypes []typesys.Type, external bool) base.Handle {
	h := m.funcs.Insert(newFuncData(name, sig, argTypes, external))
	m.funcNames[name] = h
	m.funcOrder = append(m.funcOrder, h)
	return h
}

// LookupFunction resolves a function by name.
func (m *Module) LookupFunction(name string) (base.Handle, bool) {
	h, ok := m.funcNames[name]
	return h, ok
}

// Function returns the data for a function handle.
func (m *Module) Function(h base.Handle) *FuncData { return m.funcs.Get(h) }

// Functions returns every function handle in module-map order.
func (m *Module) Functions() []base.Handle {
	out := make([]base.Handle, len(m.funcOrder))
	copy(out, m.funcOrder)
	return out
}

// Globals returns every global handle in module-map order.
func (m *Module) Globals() []base.Handle {
	out := make([]base.Handle, len(m.globalOrder))
	copy(out, m.globalOrder)
	return out
}

func (m *Module) String() string {
	return fmt.Sprintf("module{functions=%d, globals=%d}", len(m.funcOrder), len(m.globalOrder))
}
