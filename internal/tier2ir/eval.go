// eval.go - eval_binop(op, lhs, rhs) -> (u64, FlagValues) (spec.md §4.4)
//
// Delegates to internal/alu.Eval rather than re-deriving the flag
// formulas: Tier-0, Tier-1's reference interpreter, and Tier-2's
// constant folder must all agree on the exact same AF/OF/CF semantics,
// and alu.Eval is already that single source of truth (see its own
// doc comment).
package tier2ir

import (
	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
)

// EvalBinOp computes lhs OP rhs at width w, returning the result and
// every flag value the operation would set (masking which of those
// values actually get written is the caller's job, via FlagValues.Pack).
func EvalBinOp(op alu.Op, lhs, rhs uint64, w isa.Width) (uint64, FlagValues) {
	result, flags := alu.Eval(op, lhs, rhs, w)
	return result, FlagValues{
		CF: flags.CF,
		PF: flags.PF,
		AF: flags.AF,
		ZF: flags.ZF,
		SF: flags.SF,
		OF: flags.OF,
	}
}
