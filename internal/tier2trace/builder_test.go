package tier2trace

import (
	"context"
	"testing"

	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/tier2ir"
)

// loopFunction builds spec.md S5's shape: Block0 at RIP=0 loops on
// itself while RAX < 10, then falls through to Block1 at RIP=100 which
// returns.
func loopFunction() *tier2ir.Function {
	block0 := &tier2ir.Block{ID: 0, StartRIP: 0}
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

func loopProfile() *ProfileData {
	p := NewProfileData()
	p.BlockCounts[0] = 10000
	p.EdgeCounts[Edge{From: 0, To: 0}] = 9000
	p.EdgeCounts[Edge{From: 0, To: 1}] = 1000
	p.HotBackedges[Edge{From: 0, To: 0}] = true
	p.CodePageVersions[0] = 7
	return p
}

func TestBuildFromProducesLoopTraceWithCodeVersionGuard(t *testing.T) {
	fn := loopFunction()
	tb := NewTraceBuilder(fn, loopProfile())

	tr, err := tb.BuildFrom(0)
	if err != nil {
		t.Fatalf("BuildFrom: %v", err)
	}
	if !tr.IsLoop {
		t.Fatalf("expected IsLoop, since the hottest edge (0,0) revisits the entry")
	}
	if tr.LoopBackTo != tr.EntryStartRIP {
		t.Fatalf("LoopBackTo = %d, want %d", tr.LoopBackTo, tr.EntryStartRIP)
	}
	if len(tr.Prologue) != 1 {
		t.Fatalf("len(Prologue) = %d, want 1 GuardCodeVersion", len(tr.Prologue))
	}
	guard := tr.Prologue[0]
	if guard.Kind != tier2ir.OpGuardCodeVersion || guard.Page != 0 || guard.ExpectedVer != 7 {
		t.Fatalf("prologue guard = %+v, want page=0 expectedVer=7", guard)
	}
	if guard.ExitRIP != tr.EntryStartRIP {
		t.Fatalf("GuardCodeVersion.ExitRIP = %d, want entry_start_rip %d", guard.ExitRIP, tr.EntryStartRIP)
	}

	// Block0's six instructions plus the trailing branch Guard.
	if len(tr.Body) != 7 {
		t.Fatalf("len(Body) = %d, want 7", len(tr.Body))
	}
	last := tr.Body[len(tr.Body)-1]
	if last.Kind != tier2ir.OpGuard || last.ExitRIP != 100 {
		t.Fatalf("trailing guard = %+v, want ExitRIP=100 (the cold Block1)", last)
	}
}

func TestBuildFromStopsAtReturn(t *testing.T) {
	fn := loopFunction()
	tb := NewTraceBuilder(fn, loopProfile())

	tr, err := tb.BuildFrom(1)
	if err != nil {
		t.Fatalf("BuildFrom: %v", err)
	}
	if tr.IsLoop {
		t.Fatalf("Block1 is a single Return block, should not be flagged as a loop")
	}
	if len(tr.Body) != 0 {
		t.Fatalf("len(Body) = %d, want 0 (Block1 has no instructions)", len(tr.Body))
	}
}

func TestBuildFromRespectsMaxBlocks(t *testing.T) {
	// Two straight-line blocks with no branch; MaxBlocks=1 must cut
	// the walk short with a synthetic unconditional exit rather than
	// inlining block1.
	b0 := &tier2ir.Block{ID: 0, StartRIP: 0, Term: tier2ir.Terminator{Kind: tier2ir.TermJump, Target: 1}}
	b1 := &tier2ir.Block{ID: 1, StartRIP: 50, Term: tier2ir.Terminator{Kind: tier2ir.TermReturn}}
	fn := &tier2ir.Function{Blocks: []*tier2ir.Block{b0, b1}, Entry: 0}

	tb := NewTraceBuilder(fn, NewProfileData())
	tb.MaxBlocks = 1

	tr, err := tb.BuildFrom(0)
	if err != nil {
		t.Fatalf("BuildFrom: %v", err)
	}
	if tr.IsLoop {
		t.Fatalf("non-looping walk must not be flagged IsLoop")
	}
	if len(tr.Body) == 0 {
		t.Fatalf("expected a synthetic unconditional-exit guard when the block budget is exceeded")
	}
	last := tr.Body[len(tr.Body)-1]
	if last.Kind != tier2ir.OpGuard || last.ExitRIP != 50 {
		t.Fatalf("budget-exceeded exit = %+v, want ExitRIP=50 (block1, never inlined)", last)
	}
}

func TestCacheGetOrBuildDedupesConcurrentBuilds(t *testing.T) {
	fn := loopFunction()
	tb := NewTraceBuilder(fn, loopProfile())
	cache := NewCache()

	const callers = 8
	results := make(chan *tier2ir.Trace, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			tr, err := cache.GetOrBuild(tb, 0)
			results <- tr
			errs <- err
		}()
	}
	var first *tier2ir.Trace
	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("GetOrBuild: %v", err)
		}
		tr := <-results
		if first == nil {
			first = tr
		} else if tr != first {
			t.Fatalf("concurrent GetOrBuild calls returned distinct Trace pointers for the same key")
		}
	}
}

func TestCacheWarmManyBuildsAllEntries(t *testing.T) {
	fn := loopFunction()
	tb := NewTraceBuilder(fn, loopProfile())
	cache := NewCache()

	if err := cache.WarmMany(context.Background(), tb, []tier2ir.BlockId{0, 1}); err != nil {
		t.Fatalf("WarmMany: %v", err)
	}
	if _, ok := cache.Get(tb, 0); !ok {
		t.Fatalf("expected block 0's trace to be cached after WarmMany")
	}
	if _, ok := cache.Get(tb, 1); !ok {
		t.Fatalf("expected block 1's trace to be cached after WarmMany")
	}
}
