// cse.go - pass 2: common subexpression elimination (spec.md §4.4)
//
// "Hash (op, lhs, rhs) (commuting operands for commutative ops) ->
// dedupe. Skip instructions that have side effects or write flags
// other than callers already subsume." Runs after ConstantFold, over
// its output. LoadReg is treated as pure only between writes to the
// same register: an "epoch" counter per register, bumped on every
// StoreReg, is folded into LoadReg's key so a LoadReg separated from
// an identical earlier one by an intervening store never dedupes.
package tier2opt

import (
	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/tier2ir"
)

type cseKey struct {
	kind         tier2ir.Kind
	op           int
	width        int
	a, b         int // operand new-indices (order-normalized for commutative ops)
	reg          int
	epoch        int
	constVal     uint64
	scale        uint8
	disp         int64
}

func commutative(op tier2ir.Instr) bool {
	switch op.ALUOp {
	case alu.Add, alu.And, alu.Or, alu.Xor, alu.Eq:
		return true
	default:
		return false
	}
}

func CSE(body []tier2ir.Instr) []tier2ir.Instr {
	out := make([]tier2ir.Instr, 0, len(body))
	remap := make(map[int]tier2ir.ValueRef, len(body))
	seen := make(map[cseKey]int) // key -> new index in out
	epoch := make(map[int]int)   // register -> store-epoch

	for i, instr := range body {
		rewritten := instr
		rewriteOperands(&rewritten, remap)

		if rewritten.Kind == tier2ir.OpStoreReg {
			epoch[rewritten.Reg]++
			out = append(out, rewritten)
			remap[i] = tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: len(out) - 1}
			continue
		}

		var key cseKey
		dedupable := true
		switch rewritten.Kind {
		case tier2ir.OpConst:
			key = cseKey{kind: rewritten.Kind, width: int(rewritten.Width), constVal: rewritten.ConstVal}
		case tier2ir.OpLoadReg:
			key = cseKey{kind: rewritten.Kind, width: int(rewritten.Width), reg: rewritten.Reg, epoch: epoch[rewritten.Reg]}
		case tier2ir.OpBinOp:
			if rewritten.FlagsWritten != 0 {
				// Deduping a flag-writing BinOp would drop its flag write.
				dedupable = false
				break
			}
			a, b := rewritten.Lhs.Idx, rewritten.Rhs.Idx
			if commutative(rewritten) && a > b {
				a, b = b, a
			}
			key = cseKey{kind: rewritten.Kind, op: int(rewritten.ALUOp), width: int(rewritten.Width), a: a, b: b}
		case tier2ir.OpAddr:
			idx := -1
			if rewritten.Index.IsValid() {
				idx = rewritten.Index.Idx
			}
			key = cseKey{kind: rewritten.Kind, a: rewritten.Base.Idx, b: idx, scale: rewritten.Scale, disp: rewritten.Disp}
		default:
			dedupable = false
		}

		if dedupable {
			if newIdx, ok := seen[key]; ok {
				remap[i] = tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: newIdx}
				continue
			}
		}

		out = append(out, rewritten)
		newIdx := len(out) - 1
		remap[i] = tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: newIdx}
		if dedupable {
			seen[key] = newIdx
		}
	}
	return out
}
