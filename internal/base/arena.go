package base

// Arena is a slab allocator with freelist reuse, generalizing the
// map-keyed registries the teacher keeps for types and symbols
// (internal/types.TypeRegistry) to index-addressed storage: IR and MIR
// entities are referenced by Handle, not by name.
//
// Arena.Get is valid for h iff h was returned by a prior Insert and has
// not since been Removed. Freeing a slot twice is a programmer error and
// panics rather than silently succeeding.
type Arena[T any] struct {
	slots    []slot[T]
	freelist []uint32
	live     int
}

type slot[T any] struct {
	value    T
	gen      uint32
	occupied bool
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores value and returns a stable handle for it.
func (a *Arena[T]) Insert(value T) Handle {
	if n := len(a.freelist); n > 0 {
		idx := a.freelist[n-1]
		a.freelist = a.freelist[:n-1]
		s := &a.slots[idx]
		s.value = value
		s.occupied = true
		a.live++
		return handleAt(idx, s.gen)
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: value, occupied: true})
	a.live++
	return handleAt(idx, 0)
}

// Get returns the value for h. It panics if h is nil, out of range, or
// stale (its slot has been freed and possibly reused).
func (a *Arena[T]) Get(h Handle) *T {
	s := a.mustSlot(h)
	return &s.value
}

// TryGet is the non-panicking form of Get.
func (a *Arena[T]) TryGet(h Handle) (*T, bool) {
	if h.IsNil() {
		return nil, false
	}
	i := h.slot()
	if int(i) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[i]
	if !s.occupied || s.gen != h.gen {
		return nil, false
	}
	return &s.value, true
}

// Remove frees the slot addressed by h. The caller must have already
// detached the entity from every list it participates in; Remove does
// not walk weak lists on the caller's behalf.
func (a *Arena[T]) Remove(h Handle) {
	s := a.mustSlot(h)
	_ = s
	i := h.slot()
	a.slots[i].occupied = false
	a.slots[i].gen++
	var zero T
	a.slots[i].value = zero
	a.freelist = append(a.freelist, i)
	a.live--
}

func (a *Arena[T]) mustSlot(h Handle) *slot[T] {
	if h.IsNil() {
		panic("base.Arena: use of the null handle")
	}
	i := h.slot()
	if int(i) >= len(a.slots) {
		panic("base.Arena: handle out of range")
	}
	s := &a.slots[i]
	if !s.occupied {
		panic("base.Arena: use-after-free of a freed handle")
	}
	if s.gen != h.gen {
		panic("base.Arena: stale handle (slot was freed and reused)")
	}
	return s
}

// Len reports the number of live entries.
func (a *Arena[T]) Len() int { return a.live }

// Cap reports the number of slots ever allocated, live or free.
func (a *Arena[T]) Cap() int { return len(a.slots) }

// Each calls fn for every live handle, in slot order. fn must not insert
// or remove entries during iteration.
func (a *Arena[T]) Each(fn func(Handle, *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.occupied {
			fn(handleAt(uint32(i), s.gen), &s.value)
		}
	}
}

// Handles returns every live handle, in slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.live)
	a.Each(func(h Handle, _ *T) { out = append(out, h) })
	return out
}
