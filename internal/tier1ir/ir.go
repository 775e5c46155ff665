// ir.go - Tier-1 linear IR (spec.md §4.3)
//
// A Block is a straight-line list of Instr, each producing one value
// identified by its own index (a ValueRef), followed by a single
// Terminator. Grounded on the teacher's straight-line opcode dispatch in
// cpu_x86.go, generalized into a small SSA-like value-numbered IR so the
// reference interpreter and the WASM codegen (tier1wasm) can both walk
// the same representation instead of redundantly decoding x86 bytes.
package tier1ir

import (
	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
)

// ValueRef indexes a prior instruction in the same Block whose result is
// being consumed. -1 means "no value" (e.g. a Store has no result value
// of its own, but its index still occupies a ValueRef slot).
type ValueRef int

const NoValue ValueRef = -1

// Kind distinguishes the Instr variants spec.md §4.3 names.
type Kind int

const (
	OpConst Kind = iota
	OpReadReg
	OpWriteReg
	OpBinOp
	OpLoad
	OpStore
	OpCallHelper
)

func (k Kind) String() string {
	switch k {
	case OpConst:
		return "Const"
	case OpReadReg:
		return "ReadReg"
	case OpWriteReg:
		return "WriteReg"
	case OpBinOp:
		return "BinOp"
	case OpLoad:
		return "Load"
	case OpStore:
		return "Store"
	case OpCallHelper:
		return "CallHelper"
	default:
		return "?"
	}
}

// FlagMaskAll is the full set of flags a BinOp may request, per spec.md
// §4.3: "flag-mask of a BinOp is a subset of {CF,PF,AF,ZF,SF,OF}".
const FlagMaskAll = isa.FlagCF | isa.FlagPF | isa.FlagAF | isa.FlagZF | isa.FlagSF | isa.FlagOF

// Instr is one IR instruction. Only the fields relevant to Kind are
// meaningful; the rest are zero.
type Instr struct {
	Kind  Kind
	Width isa.Width

	// OpConst
	ConstVal uint64

	// OpReadReg / OpWriteReg: register id (isa GPR index or high-8 alias)
	Reg int

	// OpWriteReg / OpStore: the value being written
	Value ValueRef

	// OpBinOp
	ALUOp    alu.Op
	Lhs, Rhs ValueRef
	FlagMask uint64

	// OpLoad / OpStore
	Addr ValueRef

	// OpCallHelper: opaque helper identity; codegen never inlines this,
	// it only ever bails to the interpreter (spec.md §4.3).
	Helper string
}

// TermKind distinguishes block terminators.
type TermKind int

const (
	TermNext TermKind = iota
	TermBranch
	TermExitToInterpreter
)

// Terminator ends a Block. NextRip/TrueRip/FalseRip are the architectural
// next-RIP values at that point in the guest's instruction stream
// (spec.md §4.3: "the architectural next RIP at that point").
type Terminator struct {
	Kind TermKind

	// TermNext
	NextRIP uint64

	// TermBranch
	Cond            ValueRef
	TrueRIP, FalseRIP uint64

	// TermExitToInterpreter
	ExitKind   uint32
	ExitNextRIP uint64
}

// Block is one Tier-1 linear-IR translation unit: a straight-line
// instruction list plus a terminator.
type Block struct {
	StartRIP uint64
	Instrs   []Instr
	Term     Terminator
}

// Emit appends instr and returns the ValueRef the rest of the block can
// use to reference its result.
func (b *Block) Emit(instr Instr) ValueRef {
	b.Instrs = append(b.Instrs, instr)
	return ValueRef(len(b.Instrs) - 1)
}
