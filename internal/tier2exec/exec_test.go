package tier2exec

import (
	"testing"

	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/tier2ir"
	"github.com/aerocore/aerocore/internal/tier2opt"
	"github.com/aerocore/aerocore/internal/tier2trace"
)

type fakeMem struct{ m map[uint64]uint64 }

func (f *fakeMem) ReadMem(addr uint64, w isa.Width) (uint64, error) { return f.m[addr] & w.Mask(), nil }
func (f *fakeMem) WriteMem(addr uint64, w isa.Width, v uint64) error {
	f.m[addr] = v & w.Mask()
	return nil
}

// loopFunction is spec.md S5's shape: Block0 at RIP=0 counts RAX up by
// one per pass while RAX < 10, looping on itself; Block1 at RIP=100
// returns.
func loopFunction() *tier2ir.Function {
	block0 := &tier2ir.Block{ID: 0, StartRIP: 0, Kind: tier2ir.BlockLoop}
	rax := block0.Emit(tier2ir.Instr{Kind: tier2ir.OpLoadReg, Reg: isa.RAX, Width: isa.W64})
	one := block0.Emit(tier2ir.Instr{Kind: tier2ir.OpConst, Width: isa.W64, ConstVal: 1})
	sum := block0.Emit(tier2ir.Instr{Kind: tier2ir.OpBinOp, Width: isa.W64, ALUOp: alu.Add, Lhs: rax, Rhs: one, FlagsWritten: tier2ir.AllFlags})
	block0.Emit(tier2ir.Instr{Kind: tier2ir.OpStoreReg, Reg: isa.RAX, Width: isa.W64, Value: sum})
	ten := block0.Emit(tier2ir.Instr{Kind: tier2ir.OpConst, Width: isa.W64, ConstVal: 10})
	cond := block0.Emit(tier2ir.Instr{Kind: tier2ir.OpBinOp, Width: isa.W64, ALUOp: alu.LtU, Lhs: sum, Rhs: ten})
	block0.Term = tier2ir.Terminator{Kind: tier2ir.TermBranch, Cond: cond, True: 0, False: 1}

	block1 := &tier2ir.Block{ID: 1, StartRIP: 100, Term: tier2ir.Terminator{Kind: tier2ir.TermReturn}}
	return &tier2ir.Function{Blocks: []*tier2ir.Block{block0, block1}, Entry: 0}
}

func loopProfile() *tier2trace.ProfileData {
	p := tier2trace.NewProfileData()
	p.BlockCounts[0] = 10000
	p.EdgeCounts[tier2trace.Edge{From: 0, To: 0}] = 9000
	p.EdgeCounts[tier2trace.Edge{From: 0, To: 1}] = 1000
	p.HotBackedges[tier2trace.Edge{From: 0, To: 0}] = true
	p.CodePageVersions[0] = 7
	return p
}

// TestLoopTraceMatchesInterpreter is spec.md S5: the optimized, cached
// trace must run the loop to completion (SideExit to Block1 at
// RIP=100) with the same final RAX the plain tier2ir.Run interpreter
// would reach.
func TestLoopTraceMatchesInterpreter(t *testing.T) {
	fn := loopFunction()
	tb := tier2trace.NewTraceBuilder(fn, loopProfile())
	tr, err := tb.BuildFrom(0)
	if err != nil {
		t.Fatalf("BuildFrom: %v", err)
	}
	tier2opt.Optimize(tr)

	state := &T2State{Regs: tier2ir.RegFile{isa.RAX: 0}}
	env := &tier2ir.Env{CodePageVersions: map[uint64]uint64{0: 7}}
	mem := &fakeMem{m: make(map[uint64]uint64)}

	res, stats, err := RunTraceWithCachedRegs(tr, env, state, 100, mem)
	if err != nil {
		t.Fatalf("RunTraceWithCachedRegs: %v", err)
	}
	if res.Exit != SideExit || res.NextRIP != 100 {
		t.Fatalf("result = %+v, want SideExit to RIP=100", res)
	}
	if state.Regs[isa.RAX] != 10 {
		t.Fatalf("RAX = %d, want 10", state.Regs[isa.RAX])
	}

	// RAX is the only register either LoadReg or StoreReg ever touches,
	// so cached-register allocation should have picked it up; per-pass
	// register traffic should not hit the CPU image at all.
	if stats.RegLoads != 0 || stats.RegStores != 0 {
		t.Fatalf("stats = %+v, want zero CPU-image traffic (RAX is fully cached)", stats)
	}

	// Equivalence property (spec.md §4.4): the reference interpreter
	// reaches the identical final state.
	refRegs := tier2ir.RegFile{isa.RAX: 0}
	var refFlags uint64
	refRes, err := tier2ir.Run(fn, refRegs, &refFlags, env, mem)
	if err != nil {
		t.Fatalf("tier2ir.Run: %v", err)
	}
	if refRes.Kind != tier2ir.ExitReturn {
		t.Fatalf("reference interpreter exit = %+v, want ExitReturn", refRes)
	}
	if refRegs[isa.RAX] != state.Regs[isa.RAX] {
		t.Fatalf("trace RAX=%d, interpreter RAX=%d: diverged", state.Regs[isa.RAX], refRegs[isa.RAX])
	}
}

// TestCodeVersionBumpSideExitsImmediately is spec.md S5's closing
// clause: "If env's code_page_versions[0] is bumped to 8 before entry,
// the trace exits immediately via GuardCodeVersion without performing
// any increment."
func TestCodeVersionBumpSideExitsImmediately(t *testing.T) {
	fn := loopFunction()
	tb := tier2trace.NewTraceBuilder(fn, loopProfile())
	tr, err := tb.BuildFrom(0)
	if err != nil {
		t.Fatalf("BuildFrom: %v", err)
	}
	tier2opt.Optimize(tr)

	state := &T2State{Regs: tier2ir.RegFile{isa.RAX: 0}}
	env := &tier2ir.Env{CodePageVersions: map[uint64]uint64{0: 8}} // bumped past the profiled expectation of 7
	mem := &fakeMem{m: make(map[uint64]uint64)}

	res, _, err := RunTraceWithCachedRegs(tr, env, state, 100, mem)
	if err != nil {
		t.Fatalf("RunTraceWithCachedRegs: %v", err)
	}
	if res.Exit != SideExit || res.NextRIP != tr.EntryStartRIP {
		t.Fatalf("result = %+v, want immediate SideExit to entry_start_rip %d", res, tr.EntryStartRIP)
	}
	if state.Regs[isa.RAX] != 0 {
		t.Fatalf("RAX = %d, want unchanged 0 (guard must fire before any body instruction runs)", state.Regs[isa.RAX])
	}
}

func TestBudgetExhaustedReturnsLoopBackTo(t *testing.T) {
	fn := loopFunction()
	tb := tier2trace.NewTraceBuilder(fn, loopProfile())
	tr, err := tb.BuildFrom(0)
	if err != nil {
		t.Fatalf("BuildFrom: %v", err)
	}
	tier2opt.Optimize(tr)

	state := &T2State{Regs: tier2ir.RegFile{isa.RAX: 0}}
	env := &tier2ir.Env{CodePageVersions: map[uint64]uint64{0: 7}}
	mem := &fakeMem{m: make(map[uint64]uint64)}

	// Budget of 3 iterations: not enough to count RAX from 0 to 10.
	res, _, err := RunTraceWithCachedRegs(tr, env, state, 3, mem)
	if err != nil {
		t.Fatalf("RunTraceWithCachedRegs: %v", err)
	}
	if res.Exit != BudgetExhausted || res.NextRIP != tr.LoopBackTo {
		t.Fatalf("result = %+v, want BudgetExhausted at LoopBackTo %d", res, tr.LoopBackTo)
	}
	if state.Regs[isa.RAX] != 3 {
		t.Fatalf("RAX = %d, want 3 (three body passes, cached reg stored back on exhaustion)", state.Regs[isa.RAX])
	}
}
