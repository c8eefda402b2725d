// Package base provides the arena, handle, and intrusive-list primitives
// shared by the IR and MIR layers: slab-allocated storage addressed by
// stable integer handles, plus the doubly-linked list types used for
// instructions-in-block, blocks-in-function, and uses-per-value.
package base

import "fmt"

// Handle addresses a single slot in an Arena. The zero Handle is never
// returned by Arena.Insert; it is reserved as the null sentinel so that
// every kind of reference (instruction, block, use, jump target, global)
// shares the same "no value" representation.
type Handle struct {
	index uint32
	gen   uint32
}

// Nil is the null handle. A freshly zeroed Handle is already Nil.
var Nil = Handle{}

// IsNil reports whether h is the null sentinel.
func (h Handle) IsNil() bool { return h.index == 0 }

// IsValid is the complement of IsNil, named for call sites that read
// better in the positive.
func (h Handle) IsValid() bool { return h.index != 0 }

func (h Handle) String() string {
	if h.IsNil() {
		return "<nil>"
	}
	return fmt.Sprintf("#%d.%d", h.index, h.gen)
}

// Less gives Handle a total order: by slot index, then by generation.
func (h Handle) Less(other Handle) bool {
	if h.index != other.index {
		return h.index < other.index
	}
	return h.gen < other.gen
}

func (h Handle) slot() uint32 { return h.index - 1 }

func handleAt(slot uint32, gen uint32) Handle {
	return Handle{index: slot + 1, gen: gen}
}
