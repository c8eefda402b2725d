package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct {
	links Links
	name  string
}

func linksOf(arena *Arena[node]) LinksOf {
	return func(h Handle) *Links { return &arena.Get(h).links }
}

func TestListPushBackOrder(t *testing.T) {
	arena := NewArena[node]()
	sentinel := arena.Insert(node{})
	sh := Handle{} // placeholder, replaced below
	_ = sh
	sentinelHandle := sentinel
	lof := linksOf(arena)
	Init(lof, sentinelHandle)
	l := NewList(sentinelHandle)

	a := arena.Insert(node{name: "a"})
	b := arena.Insert(node{name: "b"})
	c := arena.Insert(node{name: "c"})
	l.PushBack(lof, a)
	l.PushBack(lof, b)
	l.PushBack(lof, c)

	var order []string
	l.Iterate(lof, func(h Handle) bool {
		order = append(order, arena.Get(h).name)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 3, l.Len())
}

func TestListUnlinkMiddle(t *testing.T) {
	arena := NewArena[node]()
	sentinel := arena.Insert(node{})
	lof := linksOf(arena)
	Init(lof, sentinel)
	l := NewList(sentinel)

	a := arena.Insert(node{name: "a"})
	b := arena.Insert(node{name: "b"})
	c := arena.Insert(node{name: "c"})
	l.PushBack(lof, a)
	l.PushBack(lof, b)
	l.PushBack(lof, c)

	l.Unlink(lof, b)

	var order []string
	l.Iterate(lof, func(h Handle) bool {
		order = append(order, arena.Get(h).name)
		return true
	})
	assert.Equal(t, []string{"a", "c"}, order)
	assert.Equal(t, 2, l.Len())
}

func TestListEmptySentinelSelfLoop(t *testing.T) {
	arena := NewArena[node]()
	sentinel := arena.Insert(node{})
	lof := linksOf(arena)
	Init(lof, sentinel)
	l := NewList(sentinel)

	assert.True(t, l.Empty())
	assert.Equal(t, sentinel, l.Front(lof))
	assert.Equal(t, sentinel, l.Back(lof))
}

func TestWeakListFinalizeNullsBackPointers(t *testing.T) {
	arena := NewArena[node]()
	sentinel := arena.Insert(node{})
	lof := linksOf(arena)
	Init(lof, sentinel)
	l := NewList(sentinel)

	a := arena.Insert(node{name: "a"})
	b := arena.Insert(node{name: "b"})
	l.PushBack(lof, a)
	l.PushBack(lof, b)

	var finalized []Handle
	FinalizeAll(l, lof, func(member Handle) {
		finalized = append(finalized, member)
	})

	assert.ElementsMatch(t, []Handle{a, b}, finalized)
	assert.True(t, l.Empty())
}

func TestSentinelHandlesAreDistinct(t *testing.T) {
	h1 := NewSentinelHandle()
	h2 := NewSentinelHandle()
	assert.NotEqual(t, h1, h2)
	assert.True(t, IsSentinelHandle(h1))
	assert.False(t, h1.IsNil())
}
