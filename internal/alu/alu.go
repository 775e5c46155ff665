// alu.go - width-parameterized x86 flag semantics
//
// The teacher hand-duplicates setFlagsArith8/16/32 and setFlagsLogic8/16/32
// (cpu_x86.go) for each operand width. AeroCore generalizes that into one
// Width-parameterized evaluator, since both the Tier-0 interpreter and the
// Tier-2 SSA evaluator (spec.md §4.4 eval_binop) need exactly the same
// flag semantics and must never disagree.

package alu

import "github.com/aerocore/aerocore/internal/isa"

// Op identifies a binary ALU operation, matching the Tier-2 IR's BinOp set
// (spec.md §3); Tier-0 uses the same set and adds no ops of its own.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	And
	Or
	Xor
	Shl
	Shr
	Eq
	LtU
)

// Flags is the RFLAGS-bit subset this evaluator computes.
type Flags struct {
	CF, PF, AF, ZF, SF, OF bool
}

// Pack returns the flags as RFLAGS-positioned bits.
func (f Flags) Pack() uint64 {
	var v uint64
	if f.CF {
		v |= isa.FlagCF
	}
	if f.PF {
		v |= isa.FlagPF
	}
	if f.AF {
		v |= isa.FlagAF
	}
	if f.ZF {
		v |= isa.FlagZF
	}
	if f.SF {
		v |= isa.FlagSF
	}
	if f.OF {
		v |= isa.FlagOF
	}
	return v
}

func parity(v uint8) bool {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v&1 == 0
}

func signBit(w isa.Width) uint64 {
	switch w {
	case isa.W8:
		return 0x80
	case isa.W16:
		return 0x8000
	case isa.W32:
		return 0x80000000
	default:
		return 0x8000000000000000
	}
}

// shiftCountMask returns the architectural shift-count mask: 5 bits for
// W8/W16/W32, 6 bits for W64 (spec.md §4.3).
func shiftCountMask(w isa.Width) uint64 {
	if w == isa.W64 {
		return 0x3F
	}
	return 0x1F
}

// Eval computes lhs OP rhs at width w and the flags the operation writes,
// matching x86 semantics exactly: AF = ((l^r^res) & 0x10) != 0, OF uses
// the sign-bit differential for Add/Sub and is 0 for logical ops
// (spec.md §4.4).
func Eval(op Op, lhs, rhs uint64, w isa.Width) (result uint64, flags Flags) {
	mask := w.Mask()
	l := lhs & mask
	r := rhs & mask
	sign := signBit(w)

	switch op {
	case Add:
		wide := l + r
		result = wide & mask
		flags.CF = wide&^mask != 0 || wide < l // carry out of the width
		flags.AF = ((l ^ r ^ result) & 0x10) != 0
		flags.OF = (^(l ^ r) & (l ^ result) & sign) != 0
	case Sub:
		wide := l - r
		result = wide & mask
		flags.CF = l < r
		flags.AF = ((l ^ r ^ result) & 0x10) != 0
		flags.OF = ((l ^ r) & (l ^ result) & sign) != 0
	case Mul:
		wide := l * r
		result = wide & mask
		flags.CF = (wide &^ mask) != 0
		flags.OF = flags.CF
	case And:
		result = l & r
	case Or:
		result = l | r
	case Xor:
		result = l ^ r
	case Shl:
		count := r & shiftCountMask(w)
		bits := w.Bytes() * 8
		if count == 0 {
			result = l
			// CF/OF unaffected when count==0; caller's flag mask decides
			// whether to apply these at all.
		} else {
			wide := l << count
			result = wide & mask
			if count <= bits {
				msbBit := uint64(1) << (bits - count)
				flags.CF = (l & msbBit) != 0
			}
			newMSB := (result & sign) != 0
			flags.OF = newMSB != flags.CF
		}
		flags.ZF = result == 0
		flags.SF = (result & sign) != 0
		flags.PF = parity(uint8(result))
		return result, flags
	case Shr:
		count := r & shiftCountMask(w)
		if count == 0 {
			result = l
		} else {
			result = (l & mask) >> count
			if count >= 1 {
				lsbBit := uint64(1) << (count - 1)
				flags.CF = (l & lsbBit) != 0
			}
			origMSB := (l & sign) != 0
			flags.OF = count == 1 && origMSB
		}
		flags.ZF = result == 0
		flags.SF = (result & sign) != 0
		flags.PF = parity(uint8(result))
		return result, flags
	case Eq:
		if l == r {
			result = 1
		}
		flags.ZF = l == r
		return result, flags
	case LtU:
		if l < r {
			result = 1
		}
		flags.CF = l < r
		return result, flags
	}

	flags.ZF = result == 0
	flags.SF = (result & sign) != 0
	flags.PF = parity(uint8(result))
	return result, flags
}
