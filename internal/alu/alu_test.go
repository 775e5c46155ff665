package alu

import (
	"testing"

	"github.com/aerocore/aerocore/internal/isa"
)

// TestNarrowShiftFlagSemantics covers spec.md §8.7 / S4 exactly.
func TestNarrowShiftFlagSemantics(t *testing.T) {
	result, flags := Eval(Shl, 0x81, 1, isa.W8)
	if result != 0x02 {
		t.Fatalf("result = 0x%x, want 0x02", result)
	}
	if !flags.CF {
		t.Fatal("expected CF=1")
	}
	if !flags.OF {
		t.Fatal("expected OF=1")
	}
}

func TestShiftCountMaskedTo5Bits(t *testing.T) {
	result, _ := Eval(Shl, 1, 17, isa.W16)
	if result != 0 {
		t.Fatalf("SHL(W16, 1, 17) = 0x%x, want 0", result)
	}
}

func TestAddOverflowAndCarry(t *testing.T) {
	// 0x7F + 0x01 = 0x80 at W8: signed overflow (OF), no carry.
	result, flags := Eval(Add, 0x7F, 0x01, isa.W8)
	if result != 0x80 {
		t.Fatalf("result = 0x%x", result)
	}
	if flags.CF {
		t.Fatal("unexpected CF")
	}
	if !flags.OF {
		t.Fatal("expected OF")
	}
	if !flags.SF {
		t.Fatal("expected SF")
	}
}

func TestAddCarryOutOfWidth(t *testing.T) {
	result, flags := Eval(Add, 0xFF, 0x01, isa.W8)
	if result != 0 {
		t.Fatalf("result = 0x%x, want 0", result)
	}
	if !flags.CF {
		t.Fatal("expected CF")
	}
	if !flags.ZF {
		t.Fatal("expected ZF")
	}
}

func TestSubBorrow(t *testing.T) {
	result, flags := Eval(Sub, 0x00, 0x01, isa.W8)
	if result != 0xFF {
		t.Fatalf("result = 0x%x", result)
	}
	if !flags.CF {
		t.Fatal("expected borrow CF")
	}
}

func TestAuxiliaryCarry(t *testing.T) {
	_, flags := Eval(Add, 0x0F, 0x01, isa.W8)
	if !flags.AF {
		t.Fatal("expected AF (nibble carry)")
	}
}

func TestLogicalOpsClearCFAndOF(t *testing.T) {
	_, flags := Eval(And, 0xFF, 0x0F, isa.W8)
	if flags.CF || flags.OF {
		t.Fatal("logical ops must clear CF/OF")
	}
}

func TestEqAndLtU(t *testing.T) {
	result, flags := Eval(Eq, 5, 5, isa.W32)
	if result != 1 || !flags.ZF {
		t.Fatal("Eq(5,5) should produce 1 with ZF set")
	}
	result, flags = Eval(LtU, 3, 5, isa.W32)
	if result != 1 || !flags.CF {
		t.Fatal("LtU(3,5) should produce 1 with CF set")
	}
}
