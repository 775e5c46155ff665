package cpustate

import (
	"testing"

	"github.com/aerocore/aerocore/internal/isa"
)

func TestResetSetsReservedFlagBit(t *testing.T) {
	c := New(ModeBit64)
	if c.RFLAGS&isa.FlagReservedBit1 == 0 {
		t.Fatal("RFLAGS bit 1 must always be set")
	}
}

func TestWriteGPRZeroExtendsW32(t *testing.T) {
	c := New(ModeBit64)
	c.GPR[isa.RAX] = 0xFFFFFFFFFFFFFFFF
	c.WriteGPR(isa.RAX, isa.W32, 0x12345678)
	if c.GPR[isa.RAX] != 0x12345678 {
		t.Fatalf("W32 write should zero-extend, got 0x%x", c.GPR[isa.RAX])
	}
}

func TestWriteGPRPreservesUpperBitsForW16(t *testing.T) {
	c := New(ModeBit64)
	c.GPR[isa.RAX] = 0x1122334455667788
	c.WriteGPR(isa.RAX, isa.W16, 0xBEEF)
	if c.GPR[isa.RAX] != 0x112233445566BEEF {
		t.Fatalf("W16 write should preserve upper bits, got 0x%x", c.GPR[isa.RAX])
	}
}

func TestWriteGPRHigh8(t *testing.T) {
	c := New(ModeBit64)
	c.GPR[isa.RAX] = 0x0000000000001100
	c.WriteGPR(isa.AH, isa.W8, 0xCD)
	if c.GPR[isa.RAX] != 0x000000000000CD00 {
		t.Fatalf("AH write should only touch bits [15:8], got 0x%x", c.GPR[isa.RAX])
	}
	if c.ReadGPR(isa.AH, isa.W8) != 0xCD {
		t.Fatalf("AH readback mismatch")
	}
}

func TestInterruptShadowDecrementsOnRetire(t *testing.T) {
	c := New(ModeBit64)
	c.OpenInterruptShadow()
	if !c.ExternalInterruptsMasked() {
		t.Fatal("shadow should mask external interrupts")
	}
	c.SetFlag(isa.FlagIF, true)
	if !c.ExternalInterruptsMasked() {
		t.Fatal("shadow should still mask despite IF=1")
	}
	c.RetireInstruction()
	if c.ExternalInterruptsMasked() {
		t.Fatal("shadow should have cleared after one retirement")
	}
}

func TestExternalInterruptsMaskedByIF(t *testing.T) {
	c := New(ModeBit64)
	c.SetFlag(isa.FlagIF, false)
	if !c.ExternalInterruptsMasked() {
		t.Fatal("IF=0 must mask external interrupts")
	}
}

func TestPendingEventsFIFOOrder(t *testing.T) {
	var p PendingEvents
	p.QueueExternal(1)
	p.QueueExternal(2)
	v, ok := p.PopExternal()
	if !ok || v != 1 {
		t.Fatalf("expected first-queued vector 1, got %v %v", v, ok)
	}
	v, ok = p.PopExternal()
	if !ok || v != 2 {
		t.Fatalf("expected vector 2, got %v %v", v, ok)
	}
	if _, ok := p.PopExternal(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestPendingSoftwareSingleton(t *testing.T) {
	var p PendingEvents
	p.SetSoftware(SoftwareInterrupt{Vector: 0x80, NextIP: 0x1000})
	p.SetSoftware(SoftwareInterrupt{Vector: 0x21, NextIP: 0x2000})
	v, ok := p.TakeSoftware()
	if !ok || v.Vector != 0x21 {
		t.Fatalf("expected latest software interrupt to replace prior, got %+v", v)
	}
	if _, ok := p.TakeSoftware(); ok {
		t.Fatal("expected singleton to be consumed")
	}
}
