// interp.go - reference interpreter for a Tier-2 Function (spec.md §4.4)
//
// The ground truth tier2exec's optimized-trace executor is checked
// against (spec.md §4.4's "equivalence property" / spec.md §8 S8):
// stepping this interpreter block-by-block until Return must match
// running the optimized, cached-register trace until SideExit, then
// resuming this interpreter at the side-exited block. Walks Blocks the
// same way tier1ir.Run walks a single Block's Instrs; Guard and
// GuardCodeVersion bail out exactly like tier1ir's CallHelper does,
// never trapping.
package tier2ir

import (
	"fmt"

	"github.com/aerocore/aerocore/internal/isa"
)

// RegFile is the plain register file the Tier-2 interpreter and
// executor both read/write; unlike tier1ir's byte Image, Tier-2 never
// needs raw pointer arithmetic (no Wasm lowering consumes it), so a Go
// map is the idiomatic shape here.
type RegFile map[int]uint64

func (r RegFile) Read(reg int, w isa.Width) uint64 { return r[reg] & w.Mask() }
func (r RegFile) Write(reg int, w isa.Width, v uint64) {
	if w == isa.W64 {
		r[reg] = v
		return
	}
	r[reg] = (r[reg] &^ w.Mask()) | (v & w.Mask())
}

// MemAccessor mirrors tier1ir.MemAccessor; Tier-2 reuses the same
// narrow interface rather than importing tier1ir, since a Function's
// memory traffic is logically identical but the packages must stay
// independently buildable tiers.
type MemAccessor interface {
	ReadMem(addr uint64, w isa.Width) (uint64, error)
	WriteMem(addr uint64, w isa.Width, v uint64) error
}

// Env is the RuntimeEnv spec.md §4.4 threads through eval: the current
// code-page version table GuardCodeVersion checks against.
type Env struct {
	CodePageVersions map[uint64]uint64
}

// ExitKind is why Run stopped.
type ExitKind int

const (
	ExitReturn ExitKind = iota
	ExitGuardFailed
	ExitGuardCodeVersionFailed
)

type Result struct {
	Kind    ExitKind
	NextRIP uint64 // valid for ExitGuardFailed/ExitGuardCodeVersionFailed
}

// Run walks fn block-by-block from fn.Entry until a Return terminator,
// or until a Guard/GuardCodeVersion fails.
func Run(fn *Function, regs RegFile, flags *uint64, env *Env, mem MemAccessor) (Result, error) {
	blockID := fn.Entry
	for {
		b := fn.Block(blockID)
		if b == nil {
			return Result{}, fmt.Errorf("tier2ir: unknown block %d", blockID)
		}
		values := make(map[ValueRef]uint64, len(b.Instrs))
		get := func(v ValueRef) uint64 { return values[v] }

		for i, instr := range b.Instrs {
			self := ValueRef{Block: b.ID, Idx: i}
			switch instr.Kind {
			case OpConst:
				values[self] = instr.ConstVal

			case OpLoadReg:
				values[self] = regs.Read(instr.Reg, instr.Width)

			case OpStoreReg:
				regs.Write(instr.Reg, instr.Width, get(instr.Value))

			case OpLoadFlag:
				if *flags&instr.Flag != 0 {
					values[self] = 1
				}

			case OpSetFlags:
				*flags = (*flags &^ uint64(instr.FlagsWritten)) | uint64(instr.SetValues.Pack(instr.FlagsWritten))

			case OpBinOp:
				result, fv := EvalBinOp(instr.ALUOp, get(instr.Lhs), get(instr.Rhs), instr.Width)
				values[self] = result
				if instr.FlagsWritten != 0 {
					*flags = (*flags &^ uint64(instr.FlagsWritten)) | uint64(fv.Pack(instr.FlagsWritten))
				}

			case OpAddr:
				addr := get(instr.Base) + uint64(instr.Disp)
				if instr.Index.IsValid() {
					addr += get(instr.Index) * uint64(instr.Scale)
				}
				values[self] = addr

			case OpLoadMem:
				v, err := mem.ReadMem(get(instr.Addr), instr.Width)
				if err != nil {
					return Result{}, fmt.Errorf("tier2ir: load at block %d instr %d: %w", b.ID, i, err)
				}
				values[self] = v

			case OpStoreMem:
				if err := mem.WriteMem(get(instr.Addr), instr.Width, get(instr.Value)); err != nil {
					return Result{}, fmt.Errorf("tier2ir: store at block %d instr %d: %w", b.ID, i, err)
				}

			case OpGuard:
				if get(instr.Cond) != instr.Expected {
					return Result{Kind: ExitGuardFailed, NextRIP: instr.ExitRIP}, nil
				}

			case OpGuardCodeVersion:
				if env.CodePageVersions[instr.Page] != instr.ExpectedVer {
					return Result{Kind: ExitGuardCodeVersionFailed, NextRIP: instr.ExitRIP}, nil
				}

			default:
				return Result{}, fmt.Errorf("tier2ir: unhandled instruction kind %v at block %d instr %d", instr.Kind, b.ID, i)
			}
		}

		switch b.Term.Kind {
		case TermReturn:
			return Result{Kind: ExitReturn}, nil
		case TermJump:
			blockID = b.Term.Target
		case TermBranch:
			if get(b.Term.Cond) != 0 {
				blockID = b.Term.True
			} else {
				blockID = b.Term.False
			}
		default:
			return Result{}, fmt.Errorf("tier2ir: unknown terminator kind %d", b.Term.Kind)
		}
	}
}
