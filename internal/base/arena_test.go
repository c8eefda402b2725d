package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaInsertGet(t *testing.T) {
	a := NewArena[string]()
	h1 := a.Insert("alpha")
	h2 := a.Insert("beta")

	assert.False(t, h1.IsNil())
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, "alpha", *a.Get(h1))
	assert.Equal(t, "beta", *a.Get(h2))
	assert.Equal(t, 2, a.Len())
}

func TestArenaRemoveAndReuse(t *testing.T) {
	a := NewArena[int]()
	h1 := a.Insert(1)
	a.Insert(2)
	a.Remove(h1)
	assert.Equal(t, 1, a.Len())

	h3 := a.Insert(3)
	// The freed slot is reused, but with a bumped generation so stale
	// handles to it are detected rather than silently aliasing.
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 3, *a.Get(h3))

	_, ok := a.TryGet(h1)
	assert.False(t, ok, "stale handle must not resolve after reuse")
}

func TestArenaPanicsOnNullHandle(t *testing.T) {
	a := NewArena[int]()
	require.Panics(t, func() { a.Get(Nil) })
}

func TestArenaPanicsOnDoubleFree(t *testing.T) {
	a := NewArena[int]()
	h := a.Insert(42)
	a.Remove(h)
	require.Panics(t, func() { a.Remove(h) })
}

func TestArenaEachVisitsLiveOnly(t *testing.T) {
	a := NewArena[int]()
	h1 := a.Insert(10)
	a.Insert(20)
	a.Remove(h1)

	seen := map[Handle]int{}
	a.Each(func(h Handle, v *int) { seen[h] = *v })
	assert.Len(t, seen, 1)
}
