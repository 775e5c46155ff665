package tier2opt

import (
	"testing"

	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/tier2ir"
)

func bodyRef(i int) tier2ir.ValueRef { return tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: i} }

func TestConstantFoldCollapsesBinOp(t *testing.T) {
	body := []tier2ir.Instr{
		{Kind: tier2ir.OpConst, Width: isa.W32, ConstVal: 2},
		{Kind: tier2ir.OpConst, Width: isa.W32, ConstVal: 3},
		{Kind: tier2ir.OpBinOp, Width: isa.W32, ALUOp: alu.Add, Lhs: bodyRef(0), Rhs: bodyRef(1), FlagsWritten: tier2ir.AllFlags},
	}
	out := ConstantFold(body)
	// expect: Const(2), Const(3), Const(5), SetFlags
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	if out[2].Kind != tier2ir.OpConst || out[2].ConstVal != 5 {
		t.Fatalf("folded result = %+v, want Const(5)", out[2])
	}
	if out[3].Kind != tier2ir.OpSetFlags {
		t.Fatalf("expected trailing SetFlags, got %+v", out[3])
	}
}

func TestCSEDedupesCommutativeBinOp(t *testing.T) {
	body := []tier2ir.Instr{
		{Kind: tier2ir.OpLoadReg, Reg: isa.RAX, Width: isa.W64},
		{Kind: tier2ir.OpLoadReg, Reg: isa.RBX, Width: isa.W64},
		{Kind: tier2ir.OpBinOp, Width: isa.W64, ALUOp: alu.Add, Lhs: bodyRef(0), Rhs: bodyRef(1)},
		{Kind: tier2ir.OpBinOp, Width: isa.W64, ALUOp: alu.Add, Lhs: bodyRef(1), Rhs: bodyRef(0)}, // same, operands swapped
		{Kind: tier2ir.OpStoreReg, Reg: isa.RCX, Width: isa.W64, Value: bodyRef(3)},
	}
	out := CSE(body)
	if len(out) != 4 { // LoadReg x2, one BinOp, one StoreReg
		t.Fatalf("len(out) = %d, want 4 (duplicate add eliminated)", len(out))
	}
	store := out[len(out)-1]
	if store.Kind != tier2ir.OpStoreReg || store.Value.Idx != 2 {
		t.Fatalf("store operand not rewired to the deduped add: %+v", store)
	}
}

func TestCSEDoesNotDedupeLoadRegAcrossStore(t *testing.T) {
	body := []tier2ir.Instr{
		{Kind: tier2ir.OpLoadReg, Reg: isa.RAX, Width: isa.W64},
		{Kind: tier2ir.OpConst, Width: isa.W64, ConstVal: 1},
		{Kind: tier2ir.OpStoreReg, Reg: isa.RAX, Width: isa.W64, Value: bodyRef(1)},
		{Kind: tier2ir.OpLoadReg, Reg: isa.RAX, Width: isa.W64}, // must NOT dedupe with instr 0
	}
	out := CSE(body)
	loads := 0
	for _, instr := range out {
		if instr.Kind == tier2ir.OpLoadReg {
			loads++
		}
	}
	if loads != 2 {
		t.Fatalf("loads = %d, want 2 (store between them must prevent dedup)", loads)
	}
}

func TestEliminateDeadFlagsClearsUnreadBits(t *testing.T) {
	// live starts as AllFlags (conservative at trace exit); the trailing
	// BinOp's full write consumes that conservative set on the way back,
	// so only the LoadFlag's ZF survives to be demanded of the first BinOp.
	body := []tier2ir.Instr{
		{Kind: tier2ir.OpBinOp, ALUOp: alu.Add, FlagsWritten: tier2ir.AllFlags},
		{Kind: tier2ir.OpLoadFlag, Flag: isa.FlagZF},
		{Kind: tier2ir.OpBinOp, ALUOp: alu.Add, FlagsWritten: tier2ir.AllFlags},
	}
	EliminateDeadFlags(body)
	if body[0].FlagsWritten != tier2ir.FlagMask(isa.FlagZF) {
		t.Fatalf("FlagsWritten = %#x, want only ZF (only flag read downstream)", body[0].FlagsWritten)
	}
}

func TestSimplifyAddressesFoldsNestedAddr(t *testing.T) {
	body := []tier2ir.Instr{
		{Kind: tier2ir.OpLoadReg, Reg: isa.RAX, Width: isa.W64},
		{Kind: tier2ir.OpAddr, Base: bodyRef(0), Index: tier2ir.NoValue, Scale: 1, Disp: 8},
		{Kind: tier2ir.OpAddr, Base: bodyRef(1), Index: tier2ir.NoValue, Scale: 1, Disp: 16},
	}
	SimplifyAddresses(body)
	folded := body[2]
	if folded.Base != bodyRef(0) || folded.Disp != 24 {
		t.Fatalf("folded addr = %+v, want base=0 disp=24", folded)
	}
}

func TestHoistLoopInvariantsMovesUnmodifiedLoadReg(t *testing.T) {
	tr := &tier2ir.Trace{
		IsLoop: true,
		Body: []tier2ir.Instr{
			{Kind: tier2ir.OpLoadReg, Reg: isa.RBX, Width: isa.W64}, // never stored -> invariant
			{Kind: tier2ir.OpLoadReg, Reg: isa.RAX, Width: isa.W64}, // stored below -> stays
			{Kind: tier2ir.OpConst, Width: isa.W64, ConstVal: 1},
			{Kind: tier2ir.OpBinOp, Width: isa.W64, ALUOp: alu.Add, Lhs: bodyRef(1), Rhs: bodyRef(2)},
			{Kind: tier2ir.OpStoreReg, Reg: isa.RAX, Width: isa.W64, Value: bodyRef(3)},
		},
	}
	HoistLoopInvariants(tr)
	if len(tr.Prologue) != 1 || tr.Prologue[0].Reg != isa.RBX {
		t.Fatalf("prologue = %+v, want one hoisted RBX load", tr.Prologue)
	}
	if len(tr.Body) != 4 {
		t.Fatalf("body len = %d, want 4 (RBX load removed)", len(tr.Body))
	}
}

func TestAllocateCachedRegsCollectsTouchedRegisters(t *testing.T) {
	tr := &tier2ir.Trace{
		Prologue: []tier2ir.Instr{{Kind: tier2ir.OpLoadReg, Reg: isa.RBX, Width: isa.W64}},
		Body: []tier2ir.Instr{
			{Kind: tier2ir.OpLoadReg, Reg: isa.RAX, Width: isa.W64},
			{Kind: tier2ir.OpStoreReg, Reg: isa.RAX, Width: isa.W64},
		},
	}
	AllocateCachedRegs(tr)
	want := map[int]bool{isa.RAX: true, isa.RBX: true}
	if len(tr.CachedRegs) != 2 {
		t.Fatalf("CachedRegs = %v, want 2 entries", tr.CachedRegs)
	}
	for _, r := range tr.CachedRegs {
		if !want[r] {
			t.Fatalf("unexpected cached reg %d", r)
		}
	}
}

func TestOptimizeRunsAllPassesInOrder(t *testing.T) {
	tr := &tier2ir.Trace{
		Body: []tier2ir.Instr{
			{Kind: tier2ir.OpConst, Width: isa.W32, ConstVal: 2},
			{Kind: tier2ir.OpConst, Width: isa.W32, ConstVal: 3},
			{Kind: tier2ir.OpBinOp, Width: isa.W32, ALUOp: alu.Add, Lhs: bodyRef(0), Rhs: bodyRef(1)},
		},
	}
	Optimize(tr)
	if len(tr.Body) != 3 {
		t.Fatalf("len(Body) = %d, want 3 (folded, no flags requested)", len(tr.Body))
	}
	if tr.Body[2].ConstVal != 5 {
		t.Fatalf("final folded value = %d, want 5", tr.Body[2].ConstVal)
	}
}
