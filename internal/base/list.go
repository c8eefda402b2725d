package base

import "sync/atomic"

// Links is the intrusive (prev, next) pair embedded in every list-capable
// entity. A type that wants to live on a base.List embeds a Links field
// and exposes it through a LinksOf accessor at each call site — Go has no
// Drop trait, so entities don't find their own Links; the caller supplies
// an arena-aware accessor instead.
type Links struct {
	Prev, Next Handle
}

// LinksOf maps a handle (including a list's sentinel handle) to its
// Links record. The caller's closure typically special-cases the list's
// own sentinel handle and otherwise delegates to an Arena.Get.
type LinksOf func(Handle) *Links

var sentinelCounter uint32

// NewSentinelHandle mints a handle reserved for use as a list sentinel.
// It is guaranteed to never equal a handle returned by Arena.Insert,
// because it carries a reserved out-of-band index.
func NewSentinelHandle() Handle {
	id := atomic.AddUint32(&sentinelCounter, 1)
	return Handle{index: sentinelMarker, gen: id}
}

const sentinelMarker = ^uint32(0)

// IsSentinelHandle reports whether h was minted by NewSentinelHandle.
func IsSentinelHandle(h Handle) bool { return h.index == sentinelMarker }

// List is a doubly linked list of handles with a sentinel head, per
// spec.md §4.2: the four insert/remove operations are branchless on the
// empty case because the sentinel's own Links already point to itself.
//
// The same topology serves both "owning" lists (instructions in a block)
// and "weak" lists (predecessors of a block, users of a value) — the
// difference is purely in which side is responsible for calling Unlink
// when an entity dies; see WeakList for the convention used there.
type List struct {
	sentinel Handle
	length   int
}

// NewList creates an empty list anchored at sentinel. The caller must
// have already initialized sentinel's Links to point to itself (Prev =
// Next = sentinel); Init does this for you.
func NewList(sentinel Handle) *List {
	return &List{sentinel: sentinel}
}

// Init sets sentinel's own Links to the empty-list self-loop. Call this
// once, right after minting the sentinel handle and before any insert.
func Init(links LinksOf, sentinel Handle) {
	l := links(sentinel)
	l.Prev, l.Next = sentinel, sentinel
}

func (l *List) Sentinel() Handle { return l.sentinel }
func (l *List) Len() int         { return l.length }
func (l *List) Empty() bool      { return l.length == 0 }

// PushBack inserts h as the new last element.
func (l *List) PushBack(links LinksOf, h Handle) { l.InsertBefore(links, l.sentinel, h) }

// PushFront inserts h as the new first element.
func (l *List) PushFront(links LinksOf, h Handle) { l.InsertAfter(links, l.sentinel, h) }

// InsertAfter inserts h immediately after at (at may be the sentinel).
func (l *List) InsertAfter(links LinksOf, at, h Handle) {
	atL := links(at)
	next := atL.Next
	hl := links(h)
	hl.Prev, hl.Next = at, next
	atL.Next = h
	links(next).Prev = h
	l.length++
}

// InsertBefore inserts h immediately before at (at may be the sentinel).
func (l *List) InsertBefore(links LinksOf, at, h Handle) {
	atL := links(at)
	prev := atL.Prev
	hl := links(h)
	hl.Prev, hl.Next = prev, at
	atL.Prev = h
	links(prev).Next = h
	l.length++
}

// Unlink removes h from the list. h must currently be a member; Unlink
// does not check membership, since callers always know the list they
// are detaching from.
func (l *List) Unlink(links LinksOf, h Handle) {
	hl := links(h)
	links(hl.Prev).Next = hl.Next
	links(hl.Next).Prev = hl.Prev
	hl.Prev, hl.Next = Nil, Nil
	l.length--
}

// Front returns the first non-sentinel handle, or the sentinel itself if
// the list is empty.
func (l *List) Front(links LinksOf) Handle { return links(l.sentinel).Next }

// Back returns the last non-sentinel handle, or the sentinel itself if
// the list is empty.
func (l *List) Back(links LinksOf) Handle { return links(l.sentinel).Prev }

// Iterate calls fn for every member front to back, stopping early if fn
// returns false.
func (l *List) Iterate(links LinksOf, fn func(Handle) bool) {
	for h := l.Front(links); h != l.sentinel; h = links(h).Next {
		if !fn(h) {
			return
		}
	}
}

// IterateFrom is like Iterate but starts at a given member rather than
// the front.
func (l *List) IterateFrom(links LinksOf, from Handle, fn func(Handle) bool) {
	for h := from; h != l.sentinel; h = links(h).Next {
		if !fn(h) {
			return
		}
	}
}

// ToSlice collects every member into a slice, front to back.
func (l *List) ToSlice(links LinksOf) []Handle {
	out := make([]Handle, 0, l.length)
	l.Iterate(links, func(h Handle) bool {
		out = append(out, h)
		return true
	})
	return out
}

// WeakList documents the observer-only variant of List used for CFG
// predecessor edges and SSA user edges: members are entities owned
// elsewhere (a JumpTarget owned by its terminator, a Use owned by its
// instruction). When the list's subject dies, FinalizeAll must be called
// before the arena slot is reused, so every member can null its own
// back-pointer through the onFinalize callback FinalizeAll is given.
type WeakList = List

// FinalizeAll walks every member of a about-to-die weak list and invokes
// onFinalize for each, then clears the list. Callers pass this the same
// LinksOf they used to build the list; onFinalize is responsible for
// nulling whatever back-pointer the member holds into the dying entity.
func FinalizeAll(l *WeakList, links LinksOf, onFinalize func(member Handle)) {
	members := l.ToSlice(links)
	for _, m := range members {
		onFinalize(m)
	}
	sentinelL := links(l.sentinel)
	sentinelL.Prev, sentinelL.Next = l.sentinel, l.sentinel
	l.length = 0
}
