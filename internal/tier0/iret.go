// iret.go - IRET/IRETD/IRETQ (spec.md §4.2, S1/S2)
//
// The inverse of deliver.go's gate dispatch: pops the frame a delivery
// path pushed and restores CS:RIP/SS:RSP/RFLAGS, switching back to the
// caller's privilege level and stack when the popped CS selector's RPL
// says the interrupt crossed rings.

package tier0

import (
	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/memory"
)

func executeIRET(cpu *cpustate.CpuState, bus *memory.MemoryBus) error {
	switch cpu.Mode {
	case isa.ModeReal:
		return iretReal(cpu, bus)
	case isa.ModeBit32:
		return iretProtected32(cpu, bus)
	default:
		return iretLong64(cpu, bus)
	}
}

func iretReal(cpu *cpustate.CpuState, bus *memory.MemoryBus) error {
	ss := cpu.Seg[isa.SegSS].Base
	sp := cpu.GPR[isa.RSP] & 0xFFFF

	pop16 := func() (uint16, error) {
		v, err := bus.ReadU16(ss + sp)
		sp = (sp + 2) & 0xFFFF
		return v, err
	}
	ip, err := pop16()
	if err != nil {
		return wrapBusErr("IRET pop IP", err)
	}
	cs, err := pop16()
	if err != nil {
		return wrapBusErr("IRET pop CS", err)
	}
	flags, err := pop16()
	if err != nil {
		return wrapBusErr("IRET pop FLAGS", err)
	}

	cpu.GPR[isa.RSP] = (cpu.GPR[isa.RSP] &^ 0xFFFF) | sp
	cpu.Seg[isa.SegCS] = cpustate.Segment{Selector: cs, Base: uint64(cs) << 4, Limit: 0xFFFF, Present: true}
	cpu.RIP = uint64(ip)
	cpu.RFLAGS = (cpu.RFLAGS &^ 0xFFFF) | uint64(flags) | isa.FlagReservedBit1
	return nil
}

func iretProtected32(cpu *cpustate.CpuState, bus *memory.MemoryBus) error {
	ss := cpu.Seg[isa.SegSS]
	esp := uint32(cpu.GPR[isa.RSP])

	pop32 := func() (uint32, error) {
		v, err := bus.ReadU32(ss.Base + uint64(esp))
		esp += 4
		return v, err
	}
	eip, err := pop32()
	if err != nil {
		return wrapBusErr("IRETD pop EIP", err)
	}
	csSel, err := pop32()
	if err != nil {
		return wrapBusErr("IRETD pop CS", err)
	}
	eflags, err := pop32()
	if err != nil {
		return wrapBusErr("IRETD pop EFLAGS", err)
	}

	newCS, err := readSegmentDescriptor(bus, cpu.GDTR, uint16(csSel))
	if err != nil {
		return err
	}
	newRPL := newCS.RPL()
	curCPL := cpu.CPL()

	if newRPL > curCPL {
		// Returning to a lower privilege level: the frame also carries
		// the outer ESP:SS.
		outerESP, err := pop32()
		if err != nil {
			return wrapBusErr("IRETD pop ESP", err)
		}
		outerSSSel, err := pop32()
		if err != nil {
			return wrapBusErr("IRETD pop SS", err)
		}
		outerSS, err := readSegmentDescriptor(bus, cpu.GDTR, uint16(outerSSSel))
		if err != nil {
			return err
		}
		cpu.Seg[isa.SegSS] = outerSS
		cpu.GPR[isa.RSP] = uint64(outerESP)
	} else {
		cpu.GPR[isa.RSP] = uint64(esp)
	}

	cpu.Seg[isa.SegCS] = newCS
	cpu.RIP = uint64(eip)
	cpu.RFLAGS = (uint64(eflags) & 0xFFFFFFFF) | isa.FlagReservedBit1
	return nil
}

func iretLong64(cpu *cpustate.CpuState, bus *memory.MemoryBus) error {
	rsp := cpu.GPR[isa.RSP]

	pop64 := func() (uint64, error) {
		v, err := bus.ReadU64(rsp)
		rsp += 8
		return v, err
	}
	rip, err := pop64()
	if err != nil {
		return wrapBusErr("IRETQ pop RIP", err)
	}
	csSel, err := pop64()
	if err != nil {
		return wrapBusErr("IRETQ pop CS", err)
	}
	rflags, err := pop64()
	if err != nil {
		return wrapBusErr("IRETQ pop RFLAGS", err)
	}
	outerRSP, err := pop64()
	if err != nil {
		return wrapBusErr("IRETQ pop RSP", err)
	}
	outerSSSel, err := pop64()
	if err != nil {
		return wrapBusErr("IRETQ pop SS", err)
	}

	newCS, err := readSegmentDescriptor(bus, cpu.GDTR, uint16(csSel))
	if err != nil {
		return err
	}
	var newSS cpustate.Segment
	if outerSSSel != 0 {
		newSS, err = readSegmentDescriptor(bus, cpu.GDTR, uint16(outerSSSel))
		if err != nil {
			return err
		}
	}

	cpu.Seg[isa.SegCS] = newCS
	cpu.Seg[isa.SegSS] = newSS
	cpu.RIP = rip
	cpu.GPR[isa.RSP] = outerRSP
	cpu.RFLAGS = rflags | isa.FlagReservedBit1
	return nil
}
