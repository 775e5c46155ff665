// exec.go - run_trace_with_cached_regs(ir, env, state, budget,
// cached_plan) -> {exit, stats} (spec.md §4.4 "Executor").
//
// Walks a tier2ir.Trace the way tier2ir.Run walks a Function's Blocks,
// but over the Trace's two flat instruction lists (Prologue, Body)
// instead of following Terminators, since TraceBuilder already resolved
// every branch into an inline Guard. Grounded in tier1ir's
// interpreter-as-reference-then-JIT-speeds-it-up relationship: this
// executor is what a compiled trace "would do" once cached registers
// replace the repeated CPU-image LoadReg/StoreReg traffic the plain
// tier2ir.Run interpreter pays on every access.
package tier2exec

import (
	"fmt"

	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/tier2ir"
)

// ExitKind is why RunTraceWithCachedRegs stopped.
type ExitKind int

const (
	Returned ExitKind = iota
	SideExit
	BudgetExhausted
)

// Result mirrors spec.md's exit ∈ {Returned, SideExit{next_rip},
// BudgetExhausted}; NextRIP is only meaningful for SideExit and
// BudgetExhausted.
type Result struct {
	Exit    ExitKind
	NextRIP uint64
}

// Stats accounts for the CPU-image traffic a cached-register plan
// avoided: "stats.reg_loads/reg_stores account for LoadReg/StoreReg ops
// issued against the CPU image (cached moves don't count)."
type Stats struct {
	RegLoads  uint64
	RegStores uint64
}

// T2State is the executor's view of guest state: the real register
// file and flags a trace's cached locals are loaded from and stored
// back into, the Tier-2 analogue of tier0's CpuState.
type T2State struct {
	Regs  tier2ir.RegFile
	Flags uint64
}

type execCtx struct {
	state   *T2State
	locals  tier2ir.RegFile
	cached  map[int]bool
	env     *tier2ir.Env
	mem     tier2ir.MemAccessor
	flags   uint64
	stats   Stats
	prolVal map[tier2ir.ValueRef]uint64
}

func (c *execCtx) readReg(reg int, w isa.Width) uint64 {
	if c.cached[reg] {
		return c.locals.Read(reg, w)
	}
	c.stats.RegLoads++
	return c.state.Regs.Read(reg, w)
}

func (c *execCtx) writeReg(reg int, w isa.Width, v uint64) {
	if c.cached[reg] {
		c.locals.Write(reg, w, v)
		return
	}
	c.stats.RegStores++
	c.state.Regs.Write(reg, w, v)
}

// run executes one flat instruction list (Prologue or Body) in order,
// consulting c.prolVal for cross-space reads (a Body instruction using
// a LICM-hoisted Prologue value) and a fresh per-call bodyVal map for
// values this list itself produces. Returns (exited, result) — exited
// is true the moment a Guard/GuardCodeVersion fails.
func (c *execCtx) run(space tier2ir.BlockId, instrs []tier2ir.Instr) (bool, Result, error) {
	values := make(map[tier2ir.ValueRef]uint64, len(instrs))
	get := func(v tier2ir.ValueRef) uint64 {
		if v.Block == tier2ir.TraceProlog {
			return c.prolVal[v]
		}
		return values[v]
	}

	for i, instr := range instrs {
		self := tier2ir.ValueRef{Block: space, Idx: i}
		switch instr.Kind {
		case tier2ir.OpConst:
			values[self] = instr.ConstVal

		case tier2ir.OpLoadReg:
			values[self] = c.readReg(instr.Reg, instr.Width)

		case tier2ir.OpStoreReg:
			c.writeReg(instr.Reg, instr.Width, get(instr.Value))

		case tier2ir.OpLoadFlag:
			if c.flags&instr.Flag != 0 {
				values[self] = 1
			}

		case tier2ir.OpSetFlags:
			c.flags = (c.flags &^ uint64(instr.FlagsWritten)) | uint64(instr.SetValues.Pack(instr.FlagsWritten))

		case tier2ir.OpBinOp:
			result, fv := tier2ir.EvalBinOp(instr.ALUOp, get(instr.Lhs), get(instr.Rhs), instr.Width)
			values[self] = result
			if instr.FlagsWritten != 0 {
				c.flags = (c.flags &^ uint64(instr.FlagsWritten)) | uint64(fv.Pack(instr.FlagsWritten))
			}

		case tier2ir.OpAddr:
			addr := get(instr.Base) + uint64(instr.Disp)
			if instr.Index.IsValid() {
				addr += get(instr.Index) * uint64(instr.Scale)
			}
			values[self] = addr

		case tier2ir.OpLoadMem:
			v, err := c.mem.ReadMem(get(instr.Addr), instr.Width)
			if err != nil {
				return false, Result{}, fmt.Errorf("tier2exec: load at instr %d: %w", i, err)
			}
			values[self] = v

		case tier2ir.OpStoreMem:
			if err := c.mem.WriteMem(get(instr.Addr), instr.Width, get(instr.Value)); err != nil {
				return false, Result{}, fmt.Errorf("tier2exec: store at instr %d: %w", i, err)
			}

		case tier2ir.OpGuard:
			if get(instr.Cond) != instr.Expected {
				return true, Result{Exit: SideExit, NextRIP: instr.ExitRIP}, nil
			}

		case tier2ir.OpGuardCodeVersion:
			if c.env.CodePageVersions[instr.Page] != instr.ExpectedVer {
				return true, Result{Exit: SideExit, NextRIP: instr.ExitRIP}, nil
			}

		default:
			return false, Result{}, fmt.Errorf("tier2exec: unhandled instruction kind %v at instr %d", instr.Kind, i)
		}
	}

	if space == tier2ir.TraceProlog {
		// Hand hoisted prologue values (if any) to the body.
		for k, v := range values {
			c.prolVal[k] = v
		}
	}
	return false, Result{}, nil
}

// RunTraceWithCachedRegs loads tr.CachedRegs once from state into
// per-run locals, runs the prologue, then repeats the body (for a
// kind=Loop trace) until a Guard/GuardCodeVersion side-exits, the trace
// falls off the end of a non-loop body (Returned), or budget iterations
// of a looping body are exhausted. Cached registers are always stored
// back into state before returning, whichever way the run ends.
func RunTraceWithCachedRegs(tr *tier2ir.Trace, env *tier2ir.Env, state *T2State, budget uint64, mem tier2ir.MemAccessor) (Result, Stats, error) {
	c := &execCtx{
		state:   state,
		locals:  make(tier2ir.RegFile, len(tr.CachedRegs)),
		cached:  make(map[int]bool, len(tr.CachedRegs)),
		env:     env,
		mem:     mem,
		flags:   state.Flags,
		prolVal: make(map[tier2ir.ValueRef]uint64),
	}
	for _, reg := range tr.CachedRegs {
		c.cached[reg] = true
		c.locals[reg] = state.Regs.Read(reg, isa.W64)
	}

	storeBack := func() {
		for _, reg := range tr.CachedRegs {
			state.Regs.Write(reg, isa.W64, c.locals[reg])
		}
		state.Flags = c.flags
	}

	if exited, res, err := c.run(tier2ir.TraceProlog, tr.Prologue); err != nil {
		storeBack()
		return Result{}, c.stats, err
	} else if exited {
		storeBack()
		return res, c.stats, nil
	}

	if !tr.IsLoop {
		exited, res, err := c.run(tier2ir.TraceBody, tr.Body)
		storeBack()
		if err != nil {
			return Result{}, c.stats, err
		}
		if exited {
			return res, c.stats, nil
		}
		return Result{Exit: Returned}, c.stats, nil
	}

	for iter := uint64(0); iter < budget; iter++ {
		exited, res, err := c.run(tier2ir.TraceBody, tr.Body)
		if err != nil {
			storeBack()
			return Result{}, c.stats, err
		}
		if exited {
			storeBack()
			return res, c.stats, nil
		}
	}

	storeBack()
	return Result{Exit: BudgetExhausted, NextRIP: tr.LoopBackTo}, c.stats, nil
}
