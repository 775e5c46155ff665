// diagnose.go - #GP/#UD fault diagnostics (spec.md §7 error handling)
//
// Grounded on debug_disasm_x86.go, the teacher's hand-rolled disassembler
// used to annotate the monitor's instruction dump; that decoder stays the
// one the rest of tier0 would use on any real decode path. This file adds
// a diagnostics-only second opinion: golang.org/x/arch/x86/x86asm (pack:
// other_examples/bobuhiro11-gokvm's go.mod requires it) decodes the bytes
// at the faulting RIP purely to produce a human-readable instruction
// string for a structured log record — it is never consulted by
// RunBatch's decode loop, only by the error path after a fault has
// already been raised.
package tier0

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/memory"
)

// maxDiagnosticBytes covers the longest possible x86 instruction
// encoding (15 bytes) with headroom for a misaligned read.
const maxDiagnosticBytes = 16

// DescribeFault renders a best-effort disassembly of the instruction at
// faultRIP for a CPUFault's structured log record. Decode failure (the
// fault was itself caused by an undecodable byte sequence, which is
// exactly the #UD case) degrades to a raw-bytes hex dump rather than an
// error, since this path exists to help a human read a log line, not to
// re-raise the exception the caller already has.
func DescribeFault(bus *memory.MemoryBus, cpu *cpustate.CpuState, fault *CPUFault, faultRIP uint64) string {
	base := cpu.Seg[isa.SegCS].Base
	mode := 64
	if cpu.Mode != isa.ModeBit64 {
		mode = 32
	}

	var raw [maxDiagnosticBytes]byte
	n := maxDiagnosticBytes
	for n > 0 {
		if bus.TryReadBytes(base+faultRIP, raw[:n]) == nil {
			break
		}
		n--
	}
	kind := faultKindName(fault.Kind)
	if n == 0 {
		return fmt.Sprintf("%s at rip=%#x: <unreadable>", kind, faultRIP)
	}

	inst, err := x86asm.Decode(raw[:n], mode)
	if err != nil {
		return fmt.Sprintf("%s at rip=%#x: <undecodable bytes % x>", kind, faultRIP, raw[:n])
	}
	return fmt.Sprintf("%s at rip=%#x: %s (% x)", kind, faultRIP, x86asm.GNUSyntax(inst, faultRIP, nil), raw[:inst.Len])
}

// faultKindName names a CPUFault.Kind for a log line; cpustate.ExceptionKind
// has no String method of its own since pending.go's queue never needs to
// print one, so this diagnostics-only path carries its own small mapping.
func faultKindName(k cpustate.ExceptionKind) string {
	switch k {
	case cpustate.ExceptionGP:
		return "#GP"
	case cpustate.ExceptionTS:
		return "#TS"
	case cpustate.ExceptionPF:
		return "#PF"
	case cpustate.ExceptionUD:
		return "#UD"
	case cpustate.ExceptionNP:
		return "#NP"
	case cpustate.ExceptionSS:
		return "#SS"
	default:
		return "#?"
	}
}
