// deadflags.go - pass 3: dead-flag elimination (spec.md §4.4)
//
// "Backward pass; maintain the set of flags read downstream before the
// next write of each flag. Clear bits in each op's flags_written that
// aren't read before being overwritten." Mutates FlagsWritten in place;
// instruction count and operand indices never change, so no remap is
// needed (unlike ConstantFold/CSE).
package tier2opt

import "github.com/aerocore/aerocore/internal/tier2ir"

func EliminateDeadFlags(body []tier2ir.Instr) {
	var live tier2ir.FlagMask = tier2ir.AllFlags // conservative: trace exit may read any flag
	for i := len(body) - 1; i >= 0; i-- {
		instr := &body[i]
		switch instr.Kind {
		case tier2ir.OpLoadFlag:
			live = live.Insert(tier2ir.FlagMask(instr.Flag))
		case tier2ir.OpBinOp:
			if instr.FlagsWritten != 0 {
				kept := instr.FlagsWritten.Intersection(live)
				live = live.Remove(instr.FlagsWritten)
				instr.FlagsWritten = kept
			}
		case tier2ir.OpSetFlags:
			kept := instr.FlagsWritten.Intersection(live)
			live = live.Remove(instr.FlagsWritten)
			instr.FlagsWritten = kept
		}
	}
}
