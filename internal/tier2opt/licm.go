// licm.go - pass 5: loop-invariant code motion (spec.md §4.4)
//
// "Only for kind=Loop: hoist LoadReg and other side-effect-free ops
// into prologue when no in-body StoreReg writes their register."
// Only LoadReg is hoisted; every other instruction, side-effect-free or
// not, stays in the body. Applies only when tr.IsLoop; a non-loop trace has no back-edge to
// amortize the hoist against, so it's a no-op there. Builds a fresh
// Body slice and an old-index -> new-ValueRef remap the same way
// ConstantFold/CSE do, since hoisted instructions move to a different
// addressing space (tier2ir.TraceProlog) entirely.
package tier2opt

import "github.com/aerocore/aerocore/internal/tier2ir"

func HoistLoopInvariants(tr *tier2ir.Trace) {
	if !tr.IsLoop {
		return
	}

	stored := make(map[int]bool)
	for _, instr := range tr.Body {
		if instr.Kind == tier2ir.OpStoreReg {
			stored[instr.Reg] = true
		}
	}

	newBody := make([]tier2ir.Instr, 0, len(tr.Body))
	remap := make(map[int]tier2ir.ValueRef, len(tr.Body))

	for i, instr := range tr.Body {
		if instr.Kind == tier2ir.OpLoadReg && !stored[instr.Reg] {
			tr.Prologue = append(tr.Prologue, instr)
			remap[i] = tier2ir.ValueRef{Block: tier2ir.TraceProlog, Idx: len(tr.Prologue) - 1}
			continue
		}
		rewritten := instr
		rewriteOperands(&rewritten, remap)
		newBody = append(newBody, rewritten)
		remap[i] = tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: len(newBody) - 1}
	}
	tr.Body = newBody
}
