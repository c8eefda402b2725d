package ir

import (
	"talon/internal/base"
	"talon/internal/typesys"
)

// FuncData backs a Function: its signature, parameter list, and the
// block list spec.md §3 describes.
type FuncData struct {
	Name       string
	Sig        typesys.Type // KindFunc
	External   bool         // declaration only, no body
	ArgTypes   []typesys.Type

	blockSentinel      base.Handle
	blockSentinelLinks base.Links
	blocks             base.List
}

func newFuncData(name string, sig typesys.Type, argTypes []typesys.Type, external bool) FuncData {
	s := base.NewSentinelHandle()
	return FuncData{
		Name:     name,
		Sig:      sig,
		External: external,
		ArgTypes: argTypes,

		blockSentinel:      s,
		blockSentinelLinks: base.Links{Prev: s, Next: s},
		blocks:             *base.NewList(s),
	}
}

func (m *Module) funcBlockListLinks(f *FuncData) base.LinksOf {
	return func(h base.Handle) *base.Links {
		if h == f.blockSentinel {
			return &f.blockSentinelLinks
		}
		return &m.blocks.Get(h).listLinks
	}
}

// Blocks returns every block handle belonging to fn, in list order.
func (m *Module) Blocks(fn base.Handle) []base.Handle {
	f := m.funcs.Get(fn)
	return f.blocks.ToSlice(m.funcBlockListLinks(f))
}

// GlobalData backs a Global: a name, its declared type, and an optional
// initializer constant-expression handle.
type GlobalData struct {
	Name        string
	Ty          typesys.Type
	Initializer base.Handle // constant-expression handle, base.Nil if none
	Extern      bool
	users       userList
}
