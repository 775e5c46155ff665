// fold.go - pass 1: constant folding (spec.md §4.4)
//
// "Replace BinOp(Const a, Const b) with Const(eval_binop(op,a,b).0)
// and (if flags were written) a SetFlags { mask, values }." Walks the
// body in producer order so every operand a later instruction names
// has already been resolved to its final index; folding a BinOp can
// grow the output by one instruction (the extra SetFlags), so this
// pass builds a fresh slice and an old-index -> new-ValueRef map
// rather than mutating in place.
package tier2opt

import "github.com/aerocore/aerocore/internal/tier2ir"

func ConstantFold(body []tier2ir.Instr) []tier2ir.Instr {
	out := make([]tier2ir.Instr, 0, len(body))
	remap := make(map[int]tier2ir.ValueRef, len(body))

	asConst := func(v tier2ir.ValueRef) (uint64, bool) {
		rv := rewrite(v, remap)
		if rv.Block != tier2ir.TraceBody || rv.Idx < 0 || rv.Idx >= len(out) {
			return 0, false
		}
		if out[rv.Idx].Kind != tier2ir.OpConst {
			return 0, false
		}
		return out[rv.Idx].ConstVal, true
	}

	for i, instr := range body {
		if instr.Kind == tier2ir.OpBinOp {
			if lv, lok := asConst(instr.Lhs); lok {
				if rv, rok := asConst(instr.Rhs); rok {
					result, fv := tier2ir.EvalBinOp(instr.ALUOp, lv, rv, instr.Width)
					out = append(out, tier2ir.Instr{Kind: tier2ir.OpConst, Width: instr.Width, ConstVal: result})
					newIdx := tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: len(out) - 1}
					remap[i] = newIdx
					if instr.FlagsWritten != 0 {
						out = append(out, tier2ir.Instr{Kind: tier2ir.OpSetFlags, FlagsWritten: instr.FlagsWritten, SetValues: fv})
					}
					continue
				}
			}
		}

		rewritten := instr
		rewriteOperands(&rewritten, remap)
		out = append(out, rewritten)
		remap[i] = tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: len(out) - 1}
	}
	return out
}
