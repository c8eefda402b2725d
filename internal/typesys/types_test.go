package typesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarSizesAndAlignment(t *testing.T) {
	c := NewContext()
	assert.Equal(t, 1, c.SizeOf(c.Int(8)))
	assert.Equal(t, 4, c.SizeOf(c.Int(32)))
	assert.Equal(t, 8, c.SizeOf(c.Int(64)))
	assert.Equal(t, 4, c.SizeOf(c.Float(Float32)))
	assert.Equal(t, 8, c.SizeOf(c.Float(Float64)))
	assert.Equal(t, 8, c.SizeOf(c.Ptr()))
	assert.Equal(t, c.SizeOf(c.Int(32)), c.AlignOf(c.Int(32)))
}

func TestArraySizeUsesElementAlignedStride(t *testing.T) {
	c := NewContext()
	elem := c.Int(8)
	arr := c.Array(elem, 5)
	assert.Equal(t, 5, c.SizeOf(arr))
	assert.Equal(t, 1, c.AlignOf(arr))

	arrOfArr := c.Array(c.Array(c.Int(32), 1), 3)
	assert.Equal(t, 4*3, c.SizeOf(arrOfArr))
}

func TestArrayInterningDeduplicates(t *testing.T) {
	c := NewContext()
	a1 := c.Array(c.Int(32), 4)
	a2 := c.Array(c.Int(32), 4)
	assert.Equal(t, a1, a2)

	a3 := c.Array(c.Int(32), 5)
	assert.NotEqual(t, a1, a3)
}

func TestStructOffsetsDefaultAlignment(t *testing.T) {
	c := NewContext()
	// struct { i8, i32, i8 } — field 1 pads to 4-byte alignment, field 2
	// immediately follows at offset 8, total size pads up to 12.
	s := c.Struct("", []Type{c.Int(8), c.Int(32), c.Int(8)}, false)

	assert.Equal(t, 0, c.FieldOffset(s, 0))
	assert.Equal(t, 4, c.FieldOffset(s, 1))
	assert.Equal(t, 8, c.FieldOffset(s, 2))
	assert.Equal(t, 4, c.AlignOf(s))
	assert.Equal(t, 12, c.SizeOf(s))
}

func TestPackedStructHasNoPadding(t *testing.T) {
	c := NewContext()
	s := c.Struct("", []Type{c.Int(8), c.Int(32), c.Int(8)}, true)

	assert.Equal(t, 0, c.FieldOffset(s, 0))
	assert.Equal(t, 1, c.FieldOffset(s, 1))
	assert.Equal(t, 5, c.FieldOffset(s, 2))
	assert.Equal(t, 1, c.AlignOf(s))
	assert.Equal(t, 6, c.SizeOf(s))
}

func TestStructOffsetCacheIsIncrementalAndRepeatable(t *testing.T) {
	c := NewContext()
	s := c.Struct("", []Type{c.Int(32), c.Int(64), c.Int(8)}, false)

	// Query out of order and repeatedly; the cached prefix must not
	// change the answer, matching update_size_cache's monotonic top.
	assert.Equal(t, 8, c.FieldOffset(s, 1))
	assert.Equal(t, 8, c.FieldOffset(s, 1))
	assert.Equal(t, 16, c.FieldOffset(s, 2))
	assert.Equal(t, 0, c.FieldOffset(s, 0))

	offsets := c.StructOffsets(s)
	require.Len(t, offsets, 3)
	assert.Equal(t, []int{0, 8, 16}, offsets)
}

func TestNamedStructIsReturnedOnSecondDeclaration(t *testing.T) {
	c := NewContext()
	s1 := c.Struct("Point", []Type{c.Int(32), c.Int(32)}, false)
	s2 := c.Struct("Point", []Type{c.Int(64)}, false) // fields ignored on re-reference
	assert.Equal(t, s1, s2)
	assert.Equal(t, 2, c.NumFields(s1))
}

func TestFuncTypeInterningAndDisplay(t *testing.T) {
	c := NewContext()
	i32 := c.Int(32)
	f1 := c.Func([]Type{i32, i32}, i32, false)
	f2 := c.Func([]Type{i32, i32}, i32, false)
	assert.Equal(t, f1, f2)

	assert.Equal(t, "fn<(i32, i32):i32>", c.Display(f1))

	vararg := c.Func([]Type{c.Ptr()}, c.Void(), true)
	assert.Equal(t, "fn<(ptr, ...):void>", c.Display(vararg))
}

func TestDisplayFormatsCompositeTypes(t *testing.T) {
	c := NewContext()
	arr := c.Array(c.Int(8), 4)
	assert.Equal(t, "[i8 x 4]", c.Display(arr))

	anon := c.Struct("", []Type{c.Int(8), c.Int(32)}, false)
	assert.Equal(t, "struct{i8, i32}", c.Display(anon))

	packed := c.Struct("", []Type{c.Int(8), c.Int(32)}, true)
	assert.Equal(t, "packed_struct{i8, i32}", c.Display(packed))
}

func TestIntSizeOfRoundsUpSubByteWidths(t *testing.T) {
	c := NewContext()
	assert.Equal(t, 1, c.SizeOf(c.Int(1)))
	assert.Equal(t, 1, c.SizeOf(c.Int(7)))
	assert.Equal(t, 2, c.SizeOf(c.Int(9)))
}

func TestNestedStructAlignment(t *testing.T) {
	c := NewContext()
	inner := c.Struct("", []Type{c.Int(8), c.Int(64)}, false)
	outer := c.Struct("", []Type{c.Int(8), inner}, false)

	assert.Equal(t, 8, c.AlignOf(inner))
	assert.Equal(t, 8, c.AlignOf(outer))
	assert.Equal(t, 8, c.FieldOffset(outer, 1))
}
