// Package verify implements the semantic verification pass CORE runs
// over a constructed Module before handing it to the lowering pipeline
// — the third error class described in spec.md §7, distinct from the
// client-programmer panics and construction-time diag.Diagnostic
// returns the ir package itself raises. Grounded on the teacher's
// internal/semantic analyzer: one Verifier accumulating a flat
// diagnostic list, with one check method per invariant family, mirrors
// Analyzer's own accumulate-as-you-walk shape in analyzer.go.
package verify

import (
	"fmt"

	"talon/internal/base"
	"talon/internal/diag"
	"talon/internal/ir"
)

// Verifier walks a Module and accumulates diagnostics. It never
// mutates the module; lowering only proceeds once Run returns no
// error-severity diagnostics.
type Verifier struct {
	module *ir.Module
	diags  []*diag.Diagnostic
}

// Run verifies m and returns every diagnostic found, in a stable,
// function-then-block-then-instruction order.
func Run(m *ir.Module) []*diag.Diagnostic {
	v := &Verifier{module: m}
	for _, fnH := range m.Functions() {
		fn := m.Function(fnH)
		if fn.External {
			continue
		}
		v.checkFunction(fn.Name, fnH)
	}
	return v.diags
}

func (v *Verifier) report(d *diag.Diagnostic) { v.diags = append(v.diags, d) }

func (v *Verifier) checkFunction(name string, fnH base.Handle) {
	blocks := v.module.Blocks(fnH)
	for _, bH := range blocks {
		v.checkTerminator(name, fnH, bH)
		v.checkPhiPlacement(name, bH)
		v.checkPhiEdges(name, bH)
		v.checkBranchTargetsSameFunction(name, fnH, bH)
	}
}

// checkTerminator enforces Testable Property 3: every block ends in
// exactly one terminator.
func (v *Verifier) checkTerminator(fnName string, fnH, bH base.Handle) {
	if v.module.Terminator(bH).IsNil() {
		v.report(diag.New(diag.ErrMissingTerminator,
			fmt.Sprintf("block in function %q has no terminator", fnName)).
			WithFunc(fnName))
	}
}

// checkPhiPlacement requires every PhiInst to precede every non-phi
// instruction in its block, the conventional SSA "phis form a leading
// group" rule lowering's phi-elimination pass depends on.
func (v *Verifier) checkPhiPlacement(fnName string, bH base.Handle) {
	seenNonPhi := false
	for _, instH := range v.module.Instructions(bH) {
		_, isPhi := v.module.Instruction(instH).(*ir.PhiInst)
		if isPhi {
			if seenNonPhi {
				v.report(diag.New(diag.ErrPhiNotAtBlockStart,
					fmt.Sprintf("phi instruction in function %q follows a non-phi instruction", fnName)).
					WithFunc(fnName))
			}
			continue
		}
		seenNonPhi = true
	}
}

// checkPhiEdges enforces Testable Property 4: a phi's incoming blocks
// are exactly the block's distinct predecessors: every incoming block
// is a predecessor and every distinct predecessor has a pair. Several
// pairs naming the same predecessor are not reported.
func (v *Verifier) checkPhiEdges(fnName string, bH base.Handle) {
	preds := v.module.DistinctPredecessorBlocks(bH)
	predSet := make(map[base.Handle]bool, len(preds))
	for _, p := range preds {
		predSet[p] = true
	}
	for _, instH := range v.module.Instructions(bH) {
		phi, ok := v.module.Instruction(instH).(*ir.PhiInst)
		if !ok {
			continue
		}
		seen := make(map[base.Handle]bool, len(phi.Incoming))
		for _, inc := range phi.Incoming {
			blockVal := v.module.UseOperand(inc.BlockUse)
			if blockVal.Kind != ir.ValBlock || !predSet[blockVal.Ref] {
				v.report(diag.New(diag.ErrPhiEdgeMismatch,
					fmt.Sprintf("phi in function %q has an incoming block that is not an actual predecessor", fnName)).
					WithFunc(fnName))
				continue
			}
			seen[blockVal.Ref] = true
		}
		if len(seen) != len(preds) {
			v.report(diag.New(diag.ErrPhiEdgeMismatch,
				fmt.Sprintf("phi in function %q has %d incoming pairs but the block has %d distinct predecessors", fnName, len(seen), len(preds))).
				WithFunc(fnName))
		}
	}
}

// checkBranchTargetsSameFunction catches a builder misuse that nothing
// else would: a JumpTarget pointed at a block owned by a different
// function (SetJumpTargetBlock has no way to validate this itself,
// since it only knows about block/predecessor-list bookkeeping).
func (v *Verifier) checkBranchTargetsSameFunction(fnName string, fnH, bH base.Handle) {
	term := v.module.Terminator(bH)
	if term.IsNil() {
		return
	}
	for _, target := range v.module.SuccessorBlocks(term) {
		if v.module.BlockParent(target) != fnH {
			v.report(diag.New(diag.ErrBranchCrossesFunction,
				fmt.Sprintf("a branch in function %q targets a block owned by a different function", fnName)).
				WithFunc(fnName))
		}
	}
}
