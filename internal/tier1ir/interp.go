// interp.go - reference interpreter for Tier-1 IR (spec.md §4.3)
//
// "Executes the IR against a byte-serialized CPU image and a memory-bus
// trait. It is the ground truth for the codegen." Mirrors Tier-0's
// opcode-dispatch shape (internal/tier0/interp.go) but walks an already
//-decoded Block instead of fetching bytes, and is deliberately the
// slow/obviously-correct sibling that tier1wasm's property test checks
// the WASM lowering against.
package tier1ir

import (
	"fmt"

	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/memory"
)

// MemAccessor is the "memory-bus trait" spec.md §4.3 calls for: a
// minimal width-parameterized read/write surface, so the reference
// interpreter and the WASM lowering can both be driven against either a
// real MemoryBus or a property-test fake.
type MemAccessor interface {
	ReadMem(addr uint64, w isa.Width) (uint64, error)
	WriteMem(addr uint64, w isa.Width, v uint64) error
}

// BusAccessor adapts a memory.MemoryBus to MemAccessor.
type BusAccessor struct{ Bus *memory.MemoryBus }

func (a BusAccessor) ReadMem(addr uint64, w isa.Width) (uint64, error) {
	switch w {
	case isa.W8:
		v, err := a.Bus.ReadU8(addr)
		return uint64(v), err
	case isa.W16:
		v, err := a.Bus.ReadU16(addr)
		return uint64(v), err
	case isa.W32:
		v, err := a.Bus.ReadU32(addr)
		return uint64(v), err
	default:
		return a.Bus.ReadU64(addr)
	}
}

func (a BusAccessor) WriteMem(addr uint64, w isa.Width, v uint64) error {
	switch w {
	case isa.W8:
		return a.Bus.WriteU8(addr, uint8(v))
	case isa.W16:
		return a.Bus.WriteU16(addr, uint16(v))
	case isa.W32:
		return a.Bus.WriteU32(addr, uint32(v))
	default:
		return a.Bus.WriteU64(addr, v)
	}
}

// ExitKind reports which path ended a Run: fall-through, a taken or
// untaken branch, a CallHelper bail-out, or an exit to the interpreter.
// It is not the Terminator.ExitKind code a block passes to jit_exit.
type ExitKind int

const (
	ExitFallthrough ExitKind = iota
	ExitBranchTrue
	ExitBranchFalse
	ExitHelper
	ExitToInterpreter
)

// Result is what running a Block produces: the next RIP to resume
// execution at, and why.
type Result struct {
	NextRIP uint64
	Kind    ExitKind
}

// Run executes b against img and mem, returning the same Result shape
// the WASM lowering must produce bit-for-bit (spec.md §4.3's correctness
// oracle).
func Run(b *Block, img Image, mem MemAccessor) (Result, error) {
	values := make([]uint64, len(b.Instrs))

	for i, instr := range b.Instrs {
		switch instr.Kind {
		case OpConst:
			values[i] = instr.ConstVal

		case OpReadReg:
			values[i] = img.ReadReg(instr.Reg, instr.Width)

		case OpWriteReg:
			img.WriteReg(instr.Reg, instr.Width, values[instr.Value])

		case OpBinOp:
			result, flags := alu.Eval(instr.ALUOp, values[instr.Lhs], values[instr.Rhs], instr.Width)
			values[i] = result
			if instr.FlagMask != 0 {
				applyMaskedFlags(img, instr.FlagMask, flags)
			}

		case OpLoad:
			v, err := mem.ReadMem(values[instr.Addr], instr.Width)
			if err != nil {
				return Result{}, fmt.Errorf("tier1ir: load at instr %d: %w", i, err)
			}
			values[i] = v

		case OpStore:
			if err := mem.WriteMem(values[instr.Addr], instr.Width, values[instr.Value]); err != nil {
				return Result{}, fmt.Errorf("tier1ir: store at instr %d: %w", i, err)
			}

		case OpCallHelper:
			// Unsupported construct: write next_rip into the image and
			// bail, never trap (spec.md §4.3).
			img.SetRIP(b.Term.NextRIP)
			return Result{NextRIP: b.Term.NextRIP, Kind: ExitHelper}, nil

		default:
			return Result{}, fmt.Errorf("tier1ir: unhandled instruction kind %d at %d", instr.Kind, i)
		}
	}

	switch b.Term.Kind {
	case TermNext:
		img.SetRIP(b.Term.NextRIP)
		return Result{NextRIP: b.Term.NextRIP, Kind: ExitFallthrough}, nil

	case TermBranch:
		if values[b.Term.Cond] != 0 {
			img.SetRIP(b.Term.TrueRIP)
			return Result{NextRIP: b.Term.TrueRIP, Kind: ExitBranchTrue}, nil
		}
		img.SetRIP(b.Term.FalseRIP)
		return Result{NextRIP: b.Term.FalseRIP, Kind: ExitBranchFalse}, nil

	case TermExitToInterpreter:
		img.SetRIP(b.Term.ExitNextRIP)
		return Result{NextRIP: b.Term.ExitNextRIP, Kind: ExitToInterpreter}, nil

	default:
		return Result{}, fmt.Errorf("tier1ir: unknown terminator kind %d", b.Term.Kind)
	}
}

// applyMaskedFlags writes only the flag bits set in mask, matching the
// WASM lowering's "compute each requested flag" (spec.md §4.3) — a
// BinOp that doesn't ask for OF, say, must not perturb it.
func applyMaskedFlags(img Image, mask uint64, f alu.Flags) {
	rflags := img.RFLAGS()
	set := func(bit uint64, v bool) {
		if mask&bit == 0 {
			return
		}
		if v {
			rflags |= bit
		} else {
			rflags &^= bit
		}
	}
	set(isa.FlagCF, f.CF)
	set(isa.FlagPF, f.PF)
	set(isa.FlagAF, f.AF)
	set(isa.FlagZF, f.ZF)
	set(isa.FlagSF, f.SF)
	set(isa.FlagOF, f.OF)
	img.SetRFLAGS(rflags)
}
