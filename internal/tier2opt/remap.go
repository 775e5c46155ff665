// remap.go - shared operand-rewriting helper for passes that
// renumber or relocate values (constant folding, CSE, LICM).
//
// Grounded on no single teacher file (the teacher has no IR optimizer
// to imitate); this is the idiomatic shape any SSA rewrite pass takes:
// walk in producer order, maintain old-index -> new-ValueRef, rewrite
// each instruction's operands before appending it to the output.
package tier2opt

import "github.com/aerocore/aerocore/internal/tier2ir"

// rewrite resolves v through remap if v names a Body-space value that
// moved; values already in another space (or not present in remap,
// meaning unchanged) pass through untouched.
func rewrite(v tier2ir.ValueRef, remap map[int]tier2ir.ValueRef) tier2ir.ValueRef {
	if !v.IsValid() {
		return v
	}
	if v.Block == tier2ir.TraceBody {
		if nv, ok := remap[v.Idx]; ok {
			return nv
		}
	}
	return v
}

// rewriteOperands rewrites every ValueRef-typed operand field an
// instruction of the given kind actually uses.
func rewriteOperands(instr *tier2ir.Instr, remap map[int]tier2ir.ValueRef) {
	switch instr.Kind {
	case tier2ir.OpStoreReg:
		instr.Value = rewrite(instr.Value, remap)
	case tier2ir.OpBinOp:
		instr.Lhs = rewrite(instr.Lhs, remap)
		instr.Rhs = rewrite(instr.Rhs, remap)
	case tier2ir.OpAddr:
		instr.Base = rewrite(instr.Base, remap)
		if instr.Index.IsValid() {
			instr.Index = rewrite(instr.Index, remap)
		}
	case tier2ir.OpLoadMem:
		instr.Addr = rewrite(instr.Addr, remap)
	case tier2ir.OpStoreMem:
		instr.Addr = rewrite(instr.Addr, remap)
		instr.Value = rewrite(instr.Value, remap)
	case tier2ir.OpGuard:
		instr.Cond = rewrite(instr.Cond, remap)
	}
}
