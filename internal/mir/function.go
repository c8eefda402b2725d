package mir

import "fmt"

// Block is a MIR basic block: a flat instruction slice in program order.
// Unlike internal/ir.Block, MIR blocks need no arena/GC machinery — MIR
// is built once, in a single forward pass, and never garbage collected
// (spec.md §3's arena/handle/GC model is scoped to the IR only); a plain
// slice gives the same "iterate in list order" guarantee with none of
// the intrusive-list bookkeeping IR needs for O(1) mid-list insertion.
type Block struct {
	Name  string
	Insts []Inst
}

func NewBlock(name string) *Block { return &Block{Name: name} }

func (b *Block) Push(i Inst) { b.Insts = append(b.Insts, i) }

// InsertBefore splices i immediately before the instruction at index,
// used by pseudo-expansion to replace one pseudo with its N-instruction
// expansion in place.
func (b *Block) InsertBefore(index int, insts ...Inst) {
	b.Insts = append(b.Insts[:index:index], append(append([]Inst{}, insts...), b.Insts[index:]...)...)
}

func (b *Block) Terminator() (Inst, bool) {
	if len(b.Insts) == 0 {
		return Inst{}, false
	}
	last := b.Insts[len(b.Insts)-1]
	if !last.IsTerminator() {
		return Inst{}, false
	}
	return last, true
}

// ArgLoc describes where one function argument lives on entry: in a
// fixed AAPCS64 argument-passing register, or already spilled to the
// incoming spilled-argument stack area by the caller.
type ArgLoc struct {
	Reg      Reg
	InReg    bool
	StackOff int32 // meaningful only when !InReg
}

// StackItem is one slot in the function's variable section: an alloca
// or a spill slot, named by the stack-position vreg that stands in for
// its address until internal/lower/stackframe finalizes SP offsets.
type StackItem struct {
	Name     string
	Size     uint32
	Align    uint32
	StackPos Reg // a virtual X-register, not yet a real SP+offset
	Offset   int32 // filled in by stackframe finalization; 0 until then
}

// StackLayout is the function's not-yet-finalized memory map, per
// spec.md §4.13: an incoming spilled-argument area (above entry SP, laid
// out by the caller), a variable section (allocas + spilled vregs), a
// callee-saved-register section (set by stackframe.Finalize), and
// the peak outgoing-argument area its call sites need.
type StackLayout struct {
	IncomingArgs    []StackItem
	Vars            []StackItem
	CalleeSaved     RegMask
	OutgoingArgSize uint32
	VarSize         uint32 // set by stackframe.Finalize
	CalleeSavedSize uint32 // set by stackframe.Finalize
	Finalized       bool
}

// Function is a MIR function: its entry arguments, blocks, stack
// layout, and per-bank virtual-register counters. Grounded on
// spec.md §3's "MIR function: arg registers, stack layout, vreg
// allocator, callee-saved set, block list."
type Function struct {
	Name       string
	Args       []ArgLoc
	ResultReg  Reg
	HasResult  bool
	Blocks     []*Block
	Layout     StackLayout
	SpAdjust   *SpAdjustTree
	IsMain     bool
	nextGenID  uint32
	nextFltID  uint32
	nextSPID   uint32
}

func NewFunction(name string) *Function {
	return &Function{Name: name, Layout: StackLayout{}}
}

func (f *Function) NewBlock(name string) *Block {
	b := NewBlock(name)
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) FreshIntVReg() Reg {
	v := NewIntVReg(f.nextGenID)
	f.nextGenID++
	return VRegOperand(v)
}

func (f *Function) FreshLongVReg() Reg {
	v := NewLongVReg(f.nextGenID)
	f.nextGenID++
	return VRegOperand(v)
}

func (f *Function) FreshFloatVReg() Reg {
	v := NewFloatVReg(f.nextFltID)
	f.nextFltID++
	return VRegOperand(v)
}

func (f *Function) FreshDoubleVReg() Reg {
	v := NewDoubleVReg(f.nextFltID)
	f.nextFltID++
	return VRegOperand(v)
}

// AllocStackSlot reserves space in the variable section and returns a
// fresh stack-position vreg (always 64-bit: it stands for an address)
// naming the slot. The real SP offset is unknown until
// internal/lower/stackframe.Finalize runs.
func (f *Function) AllocStackSlot(name string, size, align uint32) Reg {
	pos := NewLongVReg(f.nextSPID + 1<<20) // offset the id space so stack-position vregs never collide with ordinary long vregs
	f.nextSPID++
	stackPos := VRegOperand(pos)
	f.Layout.Vars = append(f.Layout.Vars, StackItem{Name: name, Size: size, Align: align, StackPos: stackPos})
	return stackPos
}

// AllocIncomingArgSlot reserves a slot in the incoming spilled-argument
// area for the (intArgRegs+1)'th and later arguments of a call's callee
// — the stack-allocated counterpart of an AAPCS64 argument register,
// placed by the caller above the callee's entry SP (spec.md §4.13).
func (f *Function) AllocIncomingArgSlot(name string, size, align uint32) Reg {
	pos := NewLongVReg(f.nextSPID + 1<<20)
	f.nextSPID++
	stackPos := VRegOperand(pos)
	f.Layout.IncomingArgs = append(f.Layout.IncomingArgs, StackItem{Name: name, Size: size, Align: align, StackPos: stackPos})
	return stackPos
}

// AllVRegs returns every distinct virtual register mentioned by any
// operand of any instruction in the function, the enumeration
// spill-everything allocation (spec.md §4.12, step 1) needs before it
// can assign stack slots. Stack-position vregs are excluded, since they
// already stand for a slot rather than needing one.
func (f *Function) AllVRegs() []VReg {
	seen := map[vregKey]int{}
	var out []VReg
	note := func(r Reg) {
		if !r.IsVirtual() {
			return
		}
		v := *r.Virtual
		if f.isStackPosition(v) {
			return
		}
		key := vregKey{v.file, v.id}
		if idx, ok := seen[key]; ok {
			if v.Bits() > out[idx].Bits() {
				out[idx] = v
			}
			return
		}
		seen[key] = len(out)
		out = append(out, v)
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			for _, r := range regsOf(inst) {
				note(r)
			}
		}
	}
	return out
}

func (f *Function) isStackPosition(v VReg) bool {
	for _, item := range f.Layout.Vars {
		if item.StackPos.IsVirtual() && item.StackPos.Virtual.id == v.id && item.StackPos.Virtual.file == v.file {
			return true
		}
	}
	for _, item := range f.Layout.IncomingArgs {
		if item.StackPos.IsVirtual() && item.StackPos.Virtual.id == v.id && item.StackPos.Virtual.file == v.file {
			return true
		}
	}
	return false
}

type vregKey struct {
	file regFile
	id   uint32
}

// Module is the MIR counterpart of internal/ir.Module: a flat list of
// lowered functions plus the names of the globals they reference (the
// global definitions themselves stay owned by the IR module — MIR only
// needs to name them in Mir* symbol operands, not duplicate storage).
type Module struct {
	Functions []*Function
	Globals   []string
}

func NewModule() *Module { return &Module{} }

func (m *Module) NewFunction(name string) *Function {
	f := NewFunction(name)
	m.Functions = append(m.Functions, f)
	return f
}

func (m *Module) String() string {
	return fmt.Sprintf("mir.module{%d functions}", len(m.Functions))
}
