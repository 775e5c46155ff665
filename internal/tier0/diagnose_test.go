package tier0

import (
	"strings"
	"testing"

	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/isa"
)

func TestDescribeFaultDecodesKnownBytes(t *testing.T) {
	bus := newTestBus(t, 0x10000)
	// INC EAX (0x40) is a valid one-byte 32-bit-mode instruction.
	mustWrite(t, bus, 0x1000, []byte{0x40})

	cpu := &cpustate.CpuState{Mode: isa.ModeBit32}
	fault := &CPUFault{Kind: cpustate.ExceptionUD}

	desc := DescribeFault(bus, cpu, fault, 0x1000)
	if !strings.Contains(desc, "#UD") {
		t.Fatalf("description %q missing fault kind", desc)
	}
	if !strings.Contains(desc, "0x1000") {
		t.Fatalf("description %q missing faulting rip", desc)
	}
}

func TestDescribeFaultHandlesUnreadableAddress(t *testing.T) {
	bus := newTestBus(t, 0x100)
	cpu := &cpustate.CpuState{Mode: isa.ModeBit32}
	fault := &CPUFault{Kind: cpustate.ExceptionGP}

	desc := DescribeFault(bus, cpu, fault, 0xFFFFFF)
	if !strings.Contains(desc, "unreadable") {
		t.Fatalf("description %q, want an <unreadable> fallback for an out-of-range rip", desc)
	}
}
