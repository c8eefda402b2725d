// Package typesys is the black-box type provider the IR and MIR layers
// consult for size, alignment, and field-offset information. It never
// type-checks source programs; it only answers layout questions about
// types a caller has already constructed, mirroring the teacher's
// internal/types.TypeRegistry but generalized to the composite types
// (arrays, structs, functions) the lowering pipeline needs.
package typesys

import (
	"fmt"
	"strings"
)

// Kind discriminates the tagged union Type represents.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindFloat
	KindPtr
	KindArray
	KindStruct
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPtr:
		return "ptr"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindFunc:
		return "func"
	default:
		return "unknown"
	}
}

// FloatKind distinguishes the two AArch64-native float widths. Naming
// follows original_source/src/typing/types.rs's FloatTypeKind.
type FloatKind uint8

const (
	Float32 FloatKind = iota
	Float64
)

// BinaryBits returns the IEEE-754 bit width, grounded on
// FloatTypeKind::get_binary_bits.
func (f FloatKind) BinaryBits() int {
	if f == Float64 {
		return 64
	}
	return 32
}

// Type is a compact, comparable value identifying one interned type.
// Composite payloads (array/struct/func) are indices into the owning
// Context's tables, so two Types compare equal with == iff they denote
// the same type — the Context guarantees structural types are
// deduplicated on construction.
type Type struct {
	kind  Kind
	bits  uint8
	float FloatKind
	ref   int32 // index into Context.arrays / .structs / .funcs; -1 if unused
}

// Kind reports the type's tag.
func (t Type) Kind() Kind { return t.kind }

// IntBits returns the bit width of an int type. Panics on any other kind.
func (t Type) IntBits() int {
	if t.kind != KindInt {
		panic("typesys: IntBits of a non-int type")
	}
	return int(t.bits)
}

// FloatKind returns the float width of a float type. Panics on any other
// kind.
func (t Type) FloatKind() FloatKind {
	if t.kind != KindFloat {
		panic("typesys: FloatKind of a non-float type")
	}
	return t.float
}

type arrayData struct {
	elem   Type
	length int
}

type structData struct {
	elems  []Type
	packed bool
	name   string // empty for an anonymous struct

	// Incremental offset cache, ported from StructTypeData's
	// _size_cache/_size_top/_align_cache in
	// original_source/src/typing/types.rs: offsets are computed lazily
	// and only as far as the highest index ever requested.
	offsets  []int
	sizeTop  int
	size     int
	align    int
	computed bool // whether align/size-at-sizeTop==len(elems) is final
}

type funcData struct {
	args    []Type
	ret     Type
	vararg  bool
}

// Context is the interning table for every non-trivial type the IR/MIR
// layers reference. The zero Context is not usable; call NewContext.
type Context struct {
	arrays  []arrayData
	structs []structData
	funcs   []funcData

	arrayIndex  map[arrayKey]int32
	structNames map[string]int32
	funcIndex   map[string]int32
}

type arrayKey struct {
	elem   Type
	length int
}

// NewContext creates an empty type context.
func NewContext() *Context {
	return &Context{
		arrayIndex:  make(map[arrayKey]int32),
		structNames: make(map[string]int32),
		funcIndex:   make(map[string]int32),
	}
}

// Void is the unit type, used for instructions and calls that produce no
// value.
func (c *Context) Void() Type { return Type{kind: KindVoid, ref: -1} }

// Int returns the integer type of the given bit width (1, 8, 16, 32, or
// 64 in practice; the context does not itself restrict the width, since
// that validation belongs to the caller constructing IR).
func (c *Context) Int(bits int) Type {
	return Type{kind: KindInt, bits: uint8(bits), ref: -1}
}

// Float returns the IEEE float type of the given kind.
func (c *Context) Float(kind FloatKind) Type {
	return Type{kind: KindFloat, float: kind, ref: -1}
}

// Ptr returns the single opaque pointer type. AArch64 pointers are
// always 8 bytes, 8-byte aligned, regardless of pointee.
func (c *Context) Ptr() Type { return Type{kind: KindPtr, ref: -1} }

// Array interns an array-of-elem type with the given element count.
func (c *Context) Array(elem Type, length int) Type {
	key := arrayKey{elem: elem, length: length}
	if idx, ok := c.arrayIndex[key]; ok {
		return Type{kind: KindArray, ref: idx}
	}
	idx := int32(len(c.arrays))
	c.arrays = append(c.arrays, arrayData{elem: elem, length: length})
	c.arrayIndex[key] = idx
	return Type{kind: KindArray, ref: idx}
}

// Struct declares a new, distinct struct type with the given fields. Two
// calls with identical field lists still produce distinct types (struct
// identity is nominal, not structural) unless name is non-empty and
// already registered, in which case the existing type is returned — this
// models a named struct alias being referenced a second time.
func (c *Context) Struct(name string, elems []Type, packed bool) Type {
	if name != "" {
		if idx, ok := c.structNames[name]; ok {
			return Type{kind: KindStruct, ref: idx}
		}
	}
	idx := int32(len(c.structs))
	cp := make([]Type, len(elems))
	copy(cp, elems)
	c.structs = append(c.structs, structData{
		elems:   cp,
		packed:  packed,
		name:    name,
		offsets: make([]int, len(cp)),
	})
	if name != "" {
		c.structNames[name] = idx
	}
	return Type{kind: KindStruct, ref: idx}
}

// Func interns a function signature type.
func (c *Context) Func(args []Type, ret Type, vararg bool) Type {
	key := funcKey(args, ret, vararg)
	if idx, ok := c.funcIndex[key]; ok {
		return Type{kind: KindFunc, ref: idx}
	}
	idx := int32(len(c.funcs))
	cp := make([]Type, len(args))
	copy(cp, args)
	c.funcs = append(c.funcs, funcData{args: cp, ret: ret, vararg: vararg})
	c.funcIndex[key] = idx
	return Type{kind: KindFunc, ref: idx}
}

func funcKey(args []Type, ret Type, vararg bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v|%v|", ret, vararg)
	for _, a := range args {
		fmt.Fprintf(&b, "%v,", a)
	}
	return b.String()
}

// NumElements returns the element count of an array type.
func (c *Context) NumElements(t Type) int {
	return c.array(t).length
}

// ElementType returns the element type of an array type.
func (c *Context) ElementType(t Type) Type {
	return c.array(t).elem
}

func (c *Context) array(t Type) *arrayData {
	if t.kind != KindArray {
		panic("typesys: not an array type")
	}
	return &c.arrays[t.ref]
}

// NumFields returns the field count of a struct type.
func (c *Context) NumFields(t Type) int {
	return len(c.strct(t).elems)
}

// FieldType returns the type of field i of a struct type.
func (c *Context) FieldType(t Type, i int) Type {
	return c.strct(t).elems[i]
}

// IsPacked reports whether a struct type was declared packed (no
// inter-field alignment padding).
func (c *Context) IsPacked(t Type) bool {
	return c.strct(t).packed
}

func (c *Context) strct(t Type) *structData {
	if t.kind != KindStruct {
		panic("typesys: not a struct type")
	}
	return &c.structs[t.ref]
}

// FuncArgs, FuncReturn, and FuncVararg decompose a function type.
func (c *Context) FuncArgs(t Type) []Type { return c.fn(t).args }
func (c *Context) FuncReturn(t Type) Type { return c.fn(t).ret }
func (c *Context) FuncVararg(t Type) bool { return c.fn(t).vararg }

func (c *Context) fn(t Type) *funcData {
	if t.kind != KindFunc {
		panic("typesys: not a func type")
	}
	return &c.funcs[t.ref]
}

// SizeOf returns the size in bytes of a complete object of type t.
// Pointers, and scalar/array/struct types built from them, always have a
// defined size; Void does not.
func (c *Context) SizeOf(t Type) int {
	switch t.kind {
	case KindVoid:
		panic("typesys: SizeOf(void)")
	case KindInt:
		return (int(t.bits) + 7) / 8
	case KindFloat:
		return t.float.BinaryBits() / 8
	case KindPtr:
		return 8
	case KindArray:
		a := c.array(t)
		return c.elemAlignedSize(a.elem) * a.length
	case KindStruct:
		return c.structSize(t)
	case KindFunc:
		panic("typesys: SizeOf(func) — functions are not instantiable")
	default:
		panic("typesys: unreachable kind")
	}
}

// AlignOf returns the required alignment in bytes of type t.
func (c *Context) AlignOf(t Type) int {
	switch t.kind {
	case KindVoid:
		panic("typesys: AlignOf(void)")
	case KindInt, KindFloat, KindPtr:
		return c.SizeOf(t)
	case KindArray:
		return c.AlignOf(c.array(t).elem)
	case KindStruct:
		return c.structAlign(t)
	case KindFunc:
		panic("typesys: AlignOf(func)")
	default:
		panic("typesys: unreachable kind")
	}
}

// elemAlignedSize rounds an element's size up to its own alignment, the
// per-element stride used by arrays — ported from
// ArrayTypeRef::get_elem_aligned_size.
func (c *Context) elemAlignedSize(elem Type) int {
	size := c.SizeOf(elem)
	align := c.AlignOf(elem)
	return alignUp(size, align)
}

// FieldOffset returns the byte offset of field i within a struct
// instance, populating the struct's offset cache as far as i if it has
// not already been computed that far.
//
// Grounded on StructTypeData::get_offset / update_size_cache in
// original_source/src/typing/types.rs: offsets are computed
// incrementally from the last cached index, not recomputed from
// scratch, since a struct's prefix offsets never change once fields are
// fixed.
func (c *Context) FieldOffset(t Type, i int) int {
	if i == 0 {
		return 0
	}
	s := c.strct(t)
	c.updateOffsetCache(t, s, i)
	return s.offsets[i]
}

func (c *Context) updateOffsetCache(t Type, s *structData, upto int) {
	if upto < s.sizeTop {
		return
	}
	cursor := 0
	if s.sizeTop > 0 {
		prevIdx := s.sizeTop - 1
		cursor = s.offsets[prevIdx] + c.SizeOf(s.elems[prevIdx])
	}
	for i := s.sizeTop; i <= upto && i < len(s.elems); i++ {
		if i > 0 {
			if !s.packed {
				align := c.AlignOf(s.elems[i])
				cursor = alignUp(cursor, align)
			}
			s.offsets[i] = cursor
		} else {
			s.offsets[i] = 0
		}
		cursor += c.SizeOf(s.elems[i])
	}
	if upto+1 > s.sizeTop {
		s.sizeTop = upto + 1
	}
}

func (c *Context) structSize(t Type) int {
	s := c.strct(t)
	if len(s.elems) == 0 {
		return 0
	}
	c.updateOffsetCache(t, s, len(s.elems)-1)
	last := len(s.elems) - 1
	size := s.offsets[last] + c.SizeOf(s.elems[last])
	align := c.structAlign(t)
	return alignUp(size, align)
}

func (c *Context) structAlign(t Type) int {
	s := c.strct(t)
	if s.packed {
		return 1
	}
	if s.align != 0 {
		return s.align
	}
	align := 1
	for _, e := range s.elems {
		if a := c.AlignOf(e); a > align {
			align = a
		}
	}
	s.align = align
	return align
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// StructOffsets returns the offset of every field, in declaration order.
// Grounded on StructTypeRef::iter_offsets.
func (c *Context) StructOffsets(t Type) []int {
	s := c.strct(t)
	if len(s.elems) == 0 {
		return nil
	}
	c.updateOffsetCache(t, s, len(s.elems)-1)
	out := make([]int, len(s.elems))
	copy(out, s.offsets)
	return out
}

// Display renders t the way diagnostics and the textual IR printer show
// it. Function types render as fn<(arg1, arg2, ...):ret>, matching
// FuncTypeData::get_display_name.
func (c *Context) Display(t Type) string {
	switch t.kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("i%d", t.bits)
	case KindFloat:
		if t.float == Float64 {
			return "f64"
		}
		return "f32"
	case KindPtr:
		return "ptr"
	case KindArray:
		a := c.array(t)
		return fmt.Sprintf("[%s x %d]", c.Display(a.elem), a.length)
	case KindStruct:
		s := c.strct(t)
		if s.name != "" {
			return s.name
		}
		parts := make([]string, len(s.elems))
		for i, e := range s.elems {
			parts[i] = c.Display(e)
		}
		prefix := "struct"
		if s.packed {
			prefix = "packed_struct"
		}
		return fmt.Sprintf("%s{%s}", prefix, strings.Join(parts, ", "))
	case KindFunc:
		f := c.fn(t)
		parts := make([]string, len(f.args))
		for i, a := range f.args {
			parts[i] = c.Display(a)
		}
		if f.vararg {
			parts = append(parts, "...")
		}
		return fmt.Sprintf("fn<(%s):%s>", strings.Join(parts, ", "), c.Display(f.ret))
	default:
		return "?"
	}
}
