// deliver.go - interrupt/exception gate dispatch (spec.md §4.2)
//
// Generalizes the teacher's handleInterrupt (cpu_x86.go), which only ever
// pushes a 16-bit real-mode frame, into the three delivery shapes the spec
// names: real-mode IVT, 32-bit protected-mode gates (with optional
// privilege-level stack switch via the TSS), and 64-bit long-mode gates
// (with IST stack selection).

package tier0

import (
	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/memory"
)

// deliverParams bundles the inputs common to every delivery path.
type deliverParams struct {
	vector     uint8
	nextIP     uint64
	isSoftware bool
	errorCode  *uint32
}

// deliverVector dispatches vector to its handler according to cpu.Mode,
// mutating cpu (CS:RIP, SS:RSP/ESP, RFLAGS, CPL) and writing the return
// frame to bus. nextIP is the address execution should resume at once the
// handler IRETs (already past the faulting/INT instruction for software
// and synchronous exception delivery; the HLT-wake caller passes the
// parked HLT address instead).
func deliverVector(cpu *cpustate.CpuState, bus *memory.MemoryBus, p deliverParams) error {
	switch cpu.Mode {
	case isa.ModeReal:
		return deliverReal(cpu, bus, p)
	case isa.ModeBit32:
		return deliverProtected32(cpu, bus, p)
	default:
		return deliverLong64(cpu, bus, p)
	}
}

func deliverReal(cpu *cpustate.CpuState, bus *memory.MemoryBus, p deliverParams) error {
	g, err := readRealModeVector(bus, p.vector)
	if err != nil {
		return err
	}

	ss := cpu.Seg[isa.SegSS].Base
	sp := cpu.GPR[isa.RSP] & 0xFFFF

	push16 := func(v uint16) {
		sp = (sp - 2) & 0xFFFF
		_ = bus.WriteU16(ss+sp, v)
	}
	push16(uint16(cpu.RFLAGS))
	push16(cpu.Seg[isa.SegCS].Selector)
	push16(uint16(p.nextIP))

	cpu.GPR[isa.RSP] = (cpu.GPR[isa.RSP] &^ 0xFFFF) | sp
	cpu.SetFlag(isa.FlagIF, false)
	cpu.SetFlag(isa.FlagTF, false)
	cpu.Seg[isa.SegCS] = cpustate.Segment{Selector: g.Selector, Base: uint64(g.Selector) << 4, Limit: 0xFFFF, Present: true}
	cpu.RIP = g.Offset
	return nil
}

func deliverProtected32(cpu *cpustate.CpuState, bus *memory.MemoryBus, p deliverParams) error {
	g, err := readIDTGate32(bus, cpu.IDTR, p.vector)
	if err != nil {
		return err
	}
	if !g.Present {
		return &CPUFault{Kind: cpustate.ExceptionNP, ErrorCode: u32ptr(uint32(p.vector)*8 + 2)}
	}
	if p.isSoftware && cpu.CPL() > g.DPL {
		return &CPUFault{Kind: cpustate.ExceptionGP, ErrorCode: u32ptr(uint32(p.vector)*8 + 2)}
	}

	destCS, err := readSegmentDescriptor(bus, cpu.GDTR, g.Selector)
	if err != nil {
		return err
	}
	destDPL := segmentDPL(destCS)
	curCPL := cpu.CPL()

	oldSS := cpu.Seg[isa.SegSS]
	oldESP := uint32(cpu.GPR[isa.RSP])
	oldCS := cpu.Seg[isa.SegCS]
	oldEFLAGS := uint32(cpu.RFLAGS)

	if destDPL < curCPL {
		esp0, ss0, err := readTSS32Stack(bus, cpu.TR.Base)
		if err != nil {
			return err
		}
		newSS, err := readSegmentDescriptor(bus, cpu.GDTR, ss0)
		if err != nil {
			return err
		}
		cpu.Seg[isa.SegSS] = newSS
		cpu.GPR[isa.RSP] = uint64(esp0)

		push32 := func(v uint32) {
			cpu.GPR[isa.RSP] = uint64(uint32(cpu.GPR[isa.RSP]) - 4)
			_ = bus.WriteU32(newSS.Base+(cpu.GPR[isa.RSP]&0xFFFFFFFF), v)
		}
		push32(uint32(oldSS.Selector))
		push32(oldESP)
		push32(oldEFLAGS)
		push32(uint32(oldCS.Selector))
		push32(uint32(p.nextIP))
		if p.errorCode != nil {
			push32(*p.errorCode)
		}
	} else {
		push32 := func(v uint32) {
			cpu.GPR[isa.RSP] = uint64(uint32(cpu.GPR[isa.RSP]) - 4)
			_ = bus.WriteU32(oldSS.Base+(cpu.GPR[isa.RSP]&0xFFFFFFFF), v)
		}
		push32(oldEFLAGS)
		push32(uint32(oldCS.Selector))
		push32(uint32(p.nextIP))
		if p.errorCode != nil {
			push32(*p.errorCode)
		}
	}

	if !g.IsTrap {
		cpu.SetFlag(isa.FlagIF, false)
	}
	cpu.SetFlag(isa.FlagTF, false)
	destCS.Selector = (destCS.Selector &^ 0x3) | uint16(destDPL)
	cpu.Seg[isa.SegCS] = destCS
	cpu.RIP = g.Offset
	return nil
}

func deliverLong64(cpu *cpustate.CpuState, bus *memory.MemoryBus, p deliverParams) error {
	g, err := readIDTGate64(bus, cpu.IDTR, p.vector)
	if err != nil {
		return err
	}
	if !g.Present {
		return &CPUFault{Kind: cpustate.ExceptionNP, ErrorCode: u32ptr(uint32(p.vector)*16 + 2)}
	}
	if p.isSoftware && cpu.CPL() > g.DPL {
		return &CPUFault{Kind: cpustate.ExceptionGP, ErrorCode: u32ptr(uint32(p.vector)*16 + 2)}
	}

	destCS, err := readSegmentDescriptor(bus, cpu.GDTR, g.Selector)
	if err != nil {
		return err
	}

	var rsp uint64
	if g.ISTIndex != 0 {
		rsp, err = readTSS64Stack(bus, cpu.TR.Base, g.ISTIndex)
	} else {
		rsp, err = readTSS64Stack(bus, cpu.TR.Base, 0)
		if err == nil && !isCanonical(rsp) {
			// Non-canonical RSP0 with a usable IST falls back to it;
			// otherwise #TS on the interrupt-stack fallback (spec.md §4.2).
			if g.ISTIndex == 0 {
				return &CPUFault{Kind: cpustate.ExceptionTS, ErrorCode: u32ptr(uint32(p.vector)*16 + 2)}
			}
		}
	}
	if err != nil {
		return err
	}

	oldSS := cpu.Seg[isa.SegSS]
	oldRSP := cpu.GPR[isa.RSP]
	oldCS := cpu.Seg[isa.SegCS]
	oldRFLAGS := cpu.RFLAGS

	rsp &^= 0xF // 16-byte align the new interrupt stack
	push64 := func(v uint64) {
		rsp -= 8
		_ = bus.WriteU64(rsp, v)
	}
	push64(uint64(oldSS.Selector))
	push64(oldRSP)
	push64(oldRFLAGS)
	push64(uint64(oldCS.Selector))
	push64(p.nextIP)
	if p.errorCode != nil {
		push64(uint64(*p.errorCode))
	}

	cpu.GPR[isa.RSP] = rsp
	cpu.Seg[isa.SegSS] = cpustate.Segment{}
	if !g.IsTrap {
		cpu.SetFlag(isa.FlagIF, false)
	}
	cpu.SetFlag(isa.FlagTF, false)
	cpu.Seg[isa.SegCS] = destCS
	cpu.RIP = g.Offset
	return nil
}

// isCanonical reports whether a 64-bit address is canonical (bits 63..47
// all equal).
func isCanonical(addr uint64) bool {
	top := addr >> 47
	return top == 0 || top == 0x1FFFF
}
