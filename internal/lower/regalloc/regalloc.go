// Package regalloc implements CORE's "spill everything" register
// allocator, per spec.md §4.12: no vreg is ever assigned a physical
// register for its whole lifetime; every virtual register gets its own
// stack slot, and every instruction that touches one is wrapped with a
// load immediately before (for a use) and a store immediately after
// (for a def), through a fixed pool of scratch physical registers.
// This is deliberately the simplest allocator that is still correct —
// optimizing register pressure is out of scope for CORE's MIR stage.
package regalloc

import (
	"fmt"

	"talon/internal/mir"
)

// scratchInt/scratchFloat are the fixed physical scratch pools
// instructions are rewritten through: X9-X15 (caller-saved, outside
// the AAPCS64 argument and callee-saved ranges) and D16-D22 likewise.
// Seven registers per bank is more than any single MIR instruction
// this package's callers produce can reference at once.
const scratchBase = 9
const scratchFloatBase = 16
const scratchCount = 7

type slotInfo struct {
	pos     mir.Reg
	isFloat bool
	bits    uint8
}

type vkey struct {
	isFloat bool
	id      uint32
}

// Allocate rewrites fn in place: every vreg enumerated by
// fn.AllVRegs() is given a stack slot (spec.md §4.12 step 2), and every
// instruction referencing one is rewritten to route through a scratch
// physical register, loaded before a use and stored after a def
// (step 3). Stack-position vregs (alloca/incoming-argument slots) are
// left untouched — they are resolved directly by
// internal/lower/stackframe, not spilled through this mechanism.
func Allocate(fn *mir.Function) {
	slots := map[vkey]slotInfo{}
	for _, v := range fn.AllVRegs() {
		bits := v.Bits()
		size := uint32(bits) / 8
		name := fmt.Sprintf("spill.%s", v.String())
		pos := fn.AllocStackSlot(name, size, size)
		slots[vkeyOf(v)] = slotInfo{pos: pos, isFloat: v.IsFloat(), bits: bits}
	}

	for _, b := range fn.Blocks {
		out := make([]mir.Inst, 0, len(b.Insts))
		for _, inst := range b.Insts {
			out = append(out, rewriteInst(slots, inst)...)
		}
		b.Insts = out
	}
}

func vkeyOf(v mir.VReg) vkey { return vkey{isFloat: v.IsFloat(), id: v.ID()} }

type assignment struct {
	orig    mir.Reg
	scratch mir.Reg
	info    slotInfo
	isUse   bool
	isDef   bool
}

// rewriteInst returns the load/rewritten-instruction/store sequence one
// instruction expands into once every spilled vreg it touches is
// routed through a scratch register.
func rewriteInst(slots map[vkey]slotInfo, inst mir.Inst) []mir.Inst {
	seen := map[vkey]*assignment{}
	var order []vkey
	nextInt, nextFP := 0, 0

	note := func(r mir.Reg, isUse, isDef bool) {
		if !r.IsVirtual() {
			return
		}
		k := vkeyOf(*r.Virtual)
		info, ok := slots[k]
		if !ok {
			return
		}
		a, exists := seen[k]
		if !exists {
			var scratch mir.Reg
			if info.isFloat {
				if nextFP >= scratchCount {
					panic("regalloc: exhausted float scratch pool for one instruction")
				}
				scratch = mir.PRegOperand(mir.RegFPD(uint8(scratchFloatBase + nextFP)))
				nextFP++
			} else {
				if nextInt >= scratchCount {
					panic("regalloc: exhausted integer scratch pool for one instruction")
				}
				scratch = mir.PRegOperand(mir.RegX(uint8(scratchBase + nextInt)))
				nextInt++
			}
			a = &assignment{orig: r, scratch: scratch, info: info}
			seen[k] = a
			order = append(order, k)
		}
		a.isUse = a.isUse || isUse
		a.isDef = a.isDef || isDef
	}

	for _, r := range mir.UsesOf(inst) {
		note(r, true, false)
	}
	for _, r := range mir.DefsOf(inst) {
		note(r, false, true)
	}

	if len(order) == 0 {
		return []mir.Inst{inst}
	}

	var pre, post []mir.Inst
	rewritten := inst
	for _, k := range order {
		a := seen[k]
		if a.isUse {
			pre = append(pre, loadSpill(a.scratch, a.info))
		}
		rewritten = mir.RewriteReg(rewritten, a.orig, a.scratch)
		if a.isDef {
			post = append(post, storeSpill(a.scratch, a.info))
		}
	}

	out := make([]mir.Inst, 0, len(pre)+1+len(post))
	out = append(out, pre...)
	out = append(out, rewritten)
	out = append(out, post...)
	return out
}

func loadSpill(dst mir.Reg, info slotInfo) mir.Inst {
	return mir.Inst{LoadStore: &mir.LoadStore{
		Op: mir.OpLdr, IsStore: false, Reg: dst, Base: info.pos,
		Mode: mir.AddrBaseImm, Offset: mir.ImmOperand(zeroImm()),
	}}
}

func storeSpill(src mir.Reg, info slotInfo) mir.Inst {
	return mir.Inst{LoadStore: &mir.LoadStore{
		Op: mir.OpStr, IsStore: true, Reg: src, Base: info.pos,
		Mode: mir.AddrBaseImm, Offset: mir.ImmOperand(zeroImm()),
	}}
}

func zeroImm() mir.ImmConst {
	c, _ := mir.NewLongImm(0, mir.ImmLoad)
	return c
}
