package tier1ir

import (
	"testing"

	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
)

type fakeMem struct{ m map[uint64]uint64 }

func newFakeMem() *fakeMem { return &fakeMem{m: make(map[uint64]uint64)} }

func (f *fakeMem) ReadMem(addr uint64, w isa.Width) (uint64, error) {
	return f.m[addr] & w.Mask(), nil
}

func (f *fakeMem) WriteMem(addr uint64, w isa.Width, v uint64) error {
	f.m[addr] = v & w.Mask()
	return nil
}

// TestAddWithFlagsAndWriteback mirrors the BinOp-with-flags scenario
// spec.md §4.3/§8 calls out: two constants added with flags requested,
// the sum written back to a register.
func TestAddWithFlagsAndWriteback(t *testing.T) {
	b := &Block{StartRIP: 0x1000}
	c1 := b.Emit(Instr{Kind: OpConst, Width: isa.W32, ConstVal: 0xFFFFFFFF})
	c2 := b.Emit(Instr{Kind: OpConst, Width: isa.W32, ConstVal: 1})
	sum := b.Emit(Instr{Kind: OpBinOp, Width: isa.W32, ALUOp: alu.Add, Lhs: c1, Rhs: c2, FlagMask: FlagMaskAll})
	b.Emit(Instr{Kind: OpWriteReg, Width: isa.W32, Reg: isa.RAX, Value: sum})
	b.Term = Terminator{Kind: TermNext, NextRIP: 0x1008}

	if err := Validate(b); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	img := NewImage()
	res, err := Run(b, img, newFakeMem())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NextRIP != 0x1008 || res.Kind != ExitFallthrough {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := img.GPR(isa.RAX); got != 0 {
		t.Fatalf("RAX = %#x, want 0 (wraps to zero on overflow)", got)
	}
	if img.RFLAGS()&isa.FlagCF == 0 {
		t.Fatalf("CF not set after 0xFFFFFFFF+1 at W32")
	}
}

func TestLoadStoreRoundtrip(t *testing.T) {
	b := &Block{StartRIP: 0x2000}
	addr := b.Emit(Instr{Kind: OpConst, Width: isa.W64, ConstVal: 0x4000})
	val := b.Emit(Instr{Kind: OpConst, Width: isa.W32, ConstVal: 0xDEADBEEF})
	b.Emit(Instr{Kind: OpStore, Width: isa.W32, Addr: addr, Value: val})
	loaded := b.Emit(Instr{Kind: OpLoad, Width: isa.W32, Addr: addr})
	b.Emit(Instr{Kind: OpWriteReg, Width: isa.W32, Reg: isa.RBX, Value: loaded})
	b.Term = Terminator{Kind: TermNext, NextRIP: 0x2010}

	if err := Validate(b); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	img := NewImage()
	mem := newFakeMem()
	if _, err := Run(b, img, mem); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := img.GPR(isa.RBX); got != 0xDEADBEEF {
		t.Fatalf("RBX = %#x, want 0xDEADBEEF", got)
	}
}

func TestValidateRejectsForwardReference(t *testing.T) {
	b := &Block{}
	b.Instrs = []Instr{{Kind: OpWriteReg, Reg: isa.RAX, Value: 5}}
	b.Term = Terminator{Kind: TermNext}
	if err := Validate(b); err == nil {
		t.Fatal("expected validation error for a forward-referencing WriteReg")
	}
}

func TestValidateRejectsBadFlagMask(t *testing.T) {
	b := &Block{}
	c1 := b.Emit(Instr{Kind: OpConst, ConstVal: 1})
	c2 := b.Emit(Instr{Kind: OpConst, ConstVal: 2})
	b.Emit(Instr{Kind: OpBinOp, ALUOp: alu.Add, Lhs: c1, Rhs: c2, FlagMask: isa.FlagTF})
	b.Term = Terminator{Kind: TermNext}
	if err := Validate(b); err == nil {
		t.Fatal("expected validation error for a flag mask outside {CF,PF,AF,ZF,SF,OF}")
	}
}

func TestCallHelperBailsWithoutTrapping(t *testing.T) {
	b := &Block{StartRIP: 0x3000}
	b.Emit(Instr{Kind: OpCallHelper, Helper: "cpuid"})
	b.Term = Terminator{Kind: TermNext, NextRIP: 0x3005}

	if err := Validate(b); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	img := NewImage()
	res, err := Run(b, img, newFakeMem())
	if err != nil {
		t.Fatalf("Run returned an error instead of bailing: %v", err)
	}
	if res.Kind != ExitHelper || res.NextRIP != 0x3005 {
		t.Fatalf("unexpected result %+v", res)
	}
	if img.RIP() != 0x3005 {
		t.Fatalf("RIP not written into image: %#x", img.RIP())
	}
}
