// gates.go - IVT/IDT gate and GDT descriptor decoding, TSS stack lookup
//
// The teacher's handleInterrupt (cpu_x86.go) only ever reads a 4-byte
// real-mode IVT entry. AeroCore generalizes the same "fetch a table entry,
// pull out a far pointer" shape to 32-bit and 64-bit IDT gates and to the
// GDT/TSS lookups those modes need, per spec.md §4.2.

package tier0

import (
	"encoding/binary"

	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/memory"
)

// gate is the decoded form of one IDT entry, real-mode far pointer,
// 32-bit gate, or 64-bit gate alike.
type gate struct {
	Selector  uint16
	Offset    uint64
	DPL       uint8
	Present   bool
	IsTrap    bool // trap gates preserve IF; interrupt gates clear it
	ISTIndex  uint8
}

// readRealModeVector reads the 4-byte IVT entry for vector (offset, then
// segment, little-endian far pointer).
func readRealModeVector(bus *memory.MemoryBus, vector uint8) (gate, error) {
	base := uint64(vector) * 4
	var buf [4]byte
	if err := bus.TryReadBytes(base, buf[:]); err != nil {
		return gate{}, wrapBusErr("read IVT entry", err)
	}
	ip := binary.LittleEndian.Uint16(buf[0:2])
	cs := binary.LittleEndian.Uint16(buf[2:4])
	return gate{Selector: cs, Offset: uint64(ip), Present: true, DPL: 0}, nil
}

// readIDTGate32 reads an 8-byte protected-mode interrupt/trap gate.
func readIDTGate32(bus *memory.MemoryBus, idtr cpustate.DescriptorTableReg, vector uint8) (gate, error) {
	entryOff := uint64(vector) * 8
	if entryOff+7 > uint64(idtr.Limit) {
		return gate{}, &CPUFault{Kind: cpustate.ExceptionGP, ErrorCode: u32ptr(uint32(vector)*8 + 2)}
	}
	var buf [8]byte
	if err := bus.TryReadBytes(idtr.Base+entryOff, buf[:]); err != nil {
		return gate{}, wrapBusErr("read IDT gate32", err)
	}
	offLo := binary.LittleEndian.Uint16(buf[0:2])
	selector := binary.LittleEndian.Uint16(buf[2:4])
	typeAttr := buf[5]
	offHi := binary.LittleEndian.Uint16(buf[6:8])
	g := gate{
		Selector: selector,
		Offset:   uint64(offHi)<<16 | uint64(offLo),
		Present:  typeAttr&0x80 != 0,
		DPL:      (typeAttr >> 5) & 0x3,
		IsTrap:   typeAttr&0xF == 0xF || typeAttr&0xF == 0x7,
	}
	return g, nil
}

// readIDTGate64 reads a 16-byte long-mode interrupt/trap gate.
func readIDTGate64(bus *memory.MemoryBus, idtr cpustate.DescriptorTableReg, vector uint8) (gate, error) {
	entryOff := uint64(vector) * 16
	if entryOff+15 > uint64(idtr.Limit) {
		return gate{}, &CPUFault{Kind: cpustate.ExceptionGP, ErrorCode: u32ptr(uint32(vector)*16 + 2)}
	}
	var buf [16]byte
	if err := bus.TryReadBytes(idtr.Base+entryOff, buf[:]); err != nil {
		return gate{}, wrapBusErr("read IDT gate64", err)
	}
	offLo := binary.LittleEndian.Uint16(buf[0:2])
	selector := binary.LittleEndian.Uint16(buf[2:4])
	ist := buf[4] & 0x7
	typeAttr := buf[5]
	offMid := binary.LittleEndian.Uint16(buf[6:8])
	offHi := binary.LittleEndian.Uint32(buf[8:12])
	g := gate{
		Selector: selector,
		Offset:   uint64(offHi)<<32 | uint64(offMid)<<16 | uint64(offLo),
		Present:  typeAttr&0x80 != 0,
		DPL:      (typeAttr >> 5) & 0x3,
		IsTrap:   typeAttr&0xF == 0xF,
		ISTIndex: ist,
	}
	return g, nil
}

// readSegmentDescriptor decodes an 8-byte legacy GDT/LDT descriptor into a
// Segment, applying the granularity bit to the limit.
func readSegmentDescriptor(bus *memory.MemoryBus, gdtr cpustate.DescriptorTableReg, selector uint16) (cpustate.Segment, error) {
	index := uint64(selector &^ 0x7)
	if index+7 > uint64(gdtr.Limit) {
		return cpustate.Segment{}, &CPUFault{Kind: cpustate.ExceptionGP, ErrorCode: u32ptr(uint32(selector))}
	}
	var buf [8]byte
	if err := bus.TryReadBytes(gdtr.Base+index, buf[:]); err != nil {
		return cpustate.Segment{}, wrapBusErr("read segment descriptor", err)
	}
	limitLo := binary.LittleEndian.Uint16(buf[0:2])
	baseLo := binary.LittleEndian.Uint16(buf[2:4])
	baseMid := buf[4]
	access := buf[5]
	flagsLimitHi := buf[6]
	baseHi := buf[7]

	limit := uint32(limitLo) | uint32(flagsLimitHi&0xF)<<16
	base := uint64(baseLo) | uint64(baseMid)<<16 | uint64(baseHi)<<24
	if flagsLimitHi&0x80 != 0 { // G bit
		limit = limit<<12 | 0xFFF
	}
	return cpustate.Segment{
		Selector: selector,
		Base:     base,
		Limit:    limit,
		Access:   access,
		Present:  access&0x80 != 0,
	}, nil
}

func segmentDPL(s cpustate.Segment) uint8 { return (s.Access >> 5) & 0x3 }

// readTSS32Stack reads ESP0/SS0 out of a TSS32 at offsets +4/+8.
func readTSS32Stack(bus *memory.MemoryBus, trBase uint64) (esp0 uint32, ss0 uint16, err error) {
	var buf [10]byte
	if err := bus.TryReadBytes(trBase, buf[:]); err != nil {
		return 0, 0, wrapBusErr("read TSS32 stack", err)
	}
	esp0 = binary.LittleEndian.Uint32(buf[4:8])
	ss0 = binary.LittleEndian.Uint16(buf[8:10])
	return esp0, ss0, nil
}

// readTSS64Stack reads RSP0 (ist==0) or IST[ist-1] (ist in 1..7) out of a
// TSS64: RSP0 at +4, IST1 at +0x24, 8 bytes apart thereafter.
func readTSS64Stack(bus *memory.MemoryBus, trBase uint64, ist uint8) (uint64, error) {
	var off uint64
	if ist == 0 {
		off = 4
	} else {
		off = 0x24 + uint64(ist-1)*8
	}
	var buf [8]byte
	if err := bus.TryReadBytes(trBase+off, buf[:]); err != nil {
		return 0, wrapBusErr("read TSS64 stack", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func u32ptr(v uint32) *uint32 { return &v }

// CPUFault is a synchronous architectural exception raised during decode or
// gate dispatch, carried back up through RunBatch as a BatchExit{Kind:
// Exception}.
type CPUFault struct {
	Kind      cpustate.ExceptionKind
	ErrorCode *uint32
	CR2       *uint64
}

func (f *CPUFault) Error() string { return "tier0: CPU fault" }
