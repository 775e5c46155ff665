// ops.go - opcode handlers
//
// Adapted from the teacher's per-opcode methods (cpu_x86_ops.go,
// cpu_x86_grp.go), which are hand-written for the fixed 32-bit register
// file. AeroCore's handlers route arithmetic through internal/alu (shared
// with Tier-2) instead of duplicating flag formulas per width, and use
// isa.Width/cpustate.ReadGPR/WriteGPR so the same handler body works
// across real/32-bit/64-bit operand widths wherever the spec's concrete
// scenarios need it. Coverage is intentionally the subset spec.md's S1-S4
// scenarios and a plausible surrounding instruction mix exercise, not a
// full ISA decoder; see DESIGN.md.

package tier0

import (
	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/isa"
)

func init() {
	baseOps[0x90] = opNop
	baseOps[0xF4] = opHlt
	baseOps[0xFA] = opCli
	baseOps[0xFB] = opSti
	baseOps[0xF8] = opClc
	baseOps[0xF9] = opStc
	baseOps[0xFC] = opCld
	baseOps[0xFD] = opStd
	baseOps[0x9C] = opPushf
	baseOps[0x9D] = opPopf
	baseOps[0xCD] = opIntImm8
	baseOps[0xCF] = opIret
	baseOps[0xC3] = opRetNear
	baseOps[0xC2] = opRetImm16
	baseOps[0xE8] = opCallRel32
	baseOps[0xEB] = opJmpRel8
	baseOps[0xE9] = opJmpRel32
	baseOps[0xA1] = opMovEaxMoffs
	baseOps[0xA3] = opMovMoffsEax

	for r := 0; r < 8; r++ {
		baseOps[0x50+r] = makePushReg(r)
		baseOps[0x58+r] = makePopReg(r)
		baseOps[0xB8+r] = makeMovRegImm(r)
	}
	for cc := 0; cc < 16; cc++ {
		baseOps[0x70+cc] = makeJcc(cc)
	}

	baseOps[0x05] = makeAccumImm(alu.Add, isa.RAX)
	baseOps[0x0D] = makeAccumImm(alu.Or, isa.RAX)
	baseOps[0x25] = makeAccumImm(alu.And, isa.RAX)
	baseOps[0x2D] = makeAccumImm(alu.Sub, isa.RAX)
	baseOps[0x35] = makeAccumImm(alu.Xor, isa.RAX)
	baseOps[0x3D] = makeAccumCmp(isa.RAX)
}

func opNop(ip *interp) (BatchExit, error) { return completed() }

func opHlt(ip *interp) (BatchExit, error) {
	ip.cpu.Halted = true
	ip.cpu.HaltReturnRIP = ip.instrStart
	return completed()
}

func opCli(ip *interp) (BatchExit, error) {
	ip.cpu.SetFlag(isa.FlagIF, false)
	return completed()
}

func opSti(ip *interp) (BatchExit, error) {
	ip.cpu.SetFlag(isa.FlagIF, true)
	ip.cpu.OpenInterruptShadow()
	ip.armedShadow = true
	return completed()
}

func opClc(ip *interp) (BatchExit, error) { ip.cpu.SetFlag(isa.FlagCF, false); return completed() }
func opStc(ip *interp) (BatchExit, error) { ip.cpu.SetFlag(isa.FlagCF, true); return completed() }
func opCld(ip *interp) (BatchExit, error) { ip.cpu.SetFlag(isa.FlagDF, false); return completed() }
func opStd(ip *interp) (BatchExit, error) { ip.cpu.SetFlag(isa.FlagDF, true); return completed() }

func opPushf(ip *interp) (BatchExit, error) {
	if err := ip.push(ip.cpu.RFLAGS); err != nil {
		return BatchExit{}, err
	}
	return completed()
}

func opPopf(ip *interp) (BatchExit, error) {
	v, err := ip.pop()
	if err != nil {
		return BatchExit{}, err
	}
	ip.cpu.RFLAGS = v | isa.FlagReservedBit1
	return completed()
}

// opIntImm8 is INT n: a synchronous software interrupt, delivered inline
// (spec.md §4.2 doesn't model it as a deferred PendingEvents.software
// entry for the common case; the batch constructs the frame itself before
// continuing into the handler).
func opIntImm8(ip *interp) (BatchExit, error) {
	vector, err := ip.fetch8()
	if err != nil {
		return BatchExit{}, err
	}
	if err := deliverVector(ip.cpu, ip.bus, deliverParams{vector: vector, nextIP: ip.cpu.RIP, isSoftware: true}); err != nil {
		return BatchExit{}, err
	}
	return completed()
}

func opIret(ip *interp) (BatchExit, error) {
	if err := executeIRET(ip.cpu, ip.bus); err != nil {
		return BatchExit{}, err
	}
	return completed()
}

func opRetNear(ip *interp) (BatchExit, error) {
	target, err := ip.pop()
	if err != nil {
		return BatchExit{}, err
	}
	ip.cpu.RIP = target
	return BatchExit{Kind: Branch}, nil
}

func opRetImm16(ip *interp) (BatchExit, error) {
	imm, err := ip.fetch16()
	if err != nil {
		return BatchExit{}, err
	}
	target, err := ip.pop()
	if err != nil {
		return BatchExit{}, err
	}
	ip.cpu.RIP = target
	ip.cpu.WriteGPR(isa.RSP, ip.stackWidth(), ip.cpu.GPR[isa.RSP]+uint64(imm))
	return BatchExit{Kind: Branch}, nil
}

func opCallRel32(ip *interp) (BatchExit, error) {
	rel, err := ip.fetch32()
	if err != nil {
		return BatchExit{}, err
	}
	target := ip.cpu.RIP + uint64(int64(int32(rel)))
	if err := ip.push(ip.cpu.RIP); err != nil {
		return BatchExit{}, err
	}
	ip.cpu.RIP = target
	return BatchExit{Kind: Branch}, nil
}

func opJmpRel8(ip *interp) (BatchExit, error) {
	rel, err := ip.fetch8()
	if err != nil {
		return BatchExit{}, err
	}
	ip.cpu.RIP += uint64(int64(int8(rel)))
	return BatchExit{Kind: Branch}, nil
}

func opJmpRel32(ip *interp) (BatchExit, error) {
	rel, err := ip.fetch32()
	if err != nil {
		return BatchExit{}, err
	}
	ip.cpu.RIP += uint64(int64(int32(rel)))
	return BatchExit{Kind: Branch}, nil
}

func opMovEaxMoffs(ip *interp) (BatchExit, error) {
	addr, err := ip.fetchMoffs()
	if err != nil {
		return BatchExit{}, err
	}
	w := ip.operandWidth()
	v, err := ip.readMem(addr, w)
	if err != nil {
		return BatchExit{}, err
	}
	ip.cpu.WriteGPR(isa.RAX, w, v)
	return completed()
}

func opMovMoffsEax(ip *interp) (BatchExit, error) {
	addr, err := ip.fetchMoffs()
	if err != nil {
		return BatchExit{}, err
	}
	w := ip.operandWidth()
	if err := ip.writeMem(addr, w, ip.cpu.ReadGPR(isa.RAX, w)); err != nil {
		return BatchExit{}, err
	}
	return completed()
}

// fetchMoffs reads the absolute-address operand of the A0-A3 MOV forms:
// 16-bit in real mode, 32-bit otherwise.
func (ip *interp) fetchMoffs() (uint64, error) {
	if ip.cpu.Mode == isa.ModeReal {
		v, err := ip.fetch16()
		return ip.cpu.Seg[isa.SegDS].Base + uint64(v), err
	}
	v, err := ip.fetch32()
	return uint64(v), err
}

func (ip *interp) readMem(addr uint64, w isa.Width) (uint64, error) {
	switch w {
	case isa.W16:
		v, err := ip.bus.ReadU16(addr)
		return uint64(v), wrapBusErr("readMem16", err)
	default:
		v, err := ip.bus.ReadU32(addr)
		return uint64(v), wrapBusErr("readMem32", err)
	}
}

func (ip *interp) writeMem(addr uint64, w isa.Width, v uint64) error {
	switch w {
	case isa.W16:
		return wrapBusErr("writeMem16", ip.bus.WriteU16(addr, uint16(v)))
	default:
		return wrapBusErr("writeMem32", ip.bus.WriteU32(addr, uint32(v)))
	}
}

func makePushReg(reg int) opFunc {
	return func(ip *interp) (BatchExit, error) {
		if err := ip.push(ip.cpu.ReadGPR(reg, ip.stackWidth())); err != nil {
			return BatchExit{}, err
		}
		return completed()
	}
}

func makePopReg(reg int) opFunc {
	return func(ip *interp) (BatchExit, error) {
		v, err := ip.pop()
		if err != nil {
			return BatchExit{}, err
		}
		ip.cpu.WriteGPR(reg, ip.stackWidth(), v)
		return completed()
	}
}

func makeMovRegImm(reg int) opFunc {
	return func(ip *interp) (BatchExit, error) {
		w := ip.operandWidth()
		var v uint64
		var err error
		if w == isa.W16 {
			var v16 uint16
			v16, err = ip.fetch16()
			v = uint64(v16)
		} else {
			var v32 uint32
			v32, err = ip.fetch32()
			v = uint64(v32)
		}
		if err != nil {
			return BatchExit{}, err
		}
		ip.cpu.WriteGPR(reg, w, v)
		return completed()
	}
}

func makeAccumImm(op alu.Op, dstReg int) opFunc {
	return func(ip *interp) (BatchExit, error) {
		w := ip.operandWidth()
		var imm uint64
		var err error
		if w == isa.W16 {
			var v16 uint16
			v16, err = ip.fetch16()
			imm = uint64(v16)
		} else {
			var v32 uint32
			v32, err = ip.fetch32()
			imm = uint64(v32)
		}
		if err != nil {
			return BatchExit{}, err
		}
		lhs := ip.cpu.ReadGPR(dstReg, w)
		result, flags := alu.Eval(op, lhs, uint64(imm), w)
		ip.cpu.WriteGPR(dstReg, w, result)
		applyFlags(ip.cpu, flags)
		return completed()
	}
}

func makeAccumCmp(reg int) opFunc {
	return func(ip *interp) (BatchExit, error) {
		w := ip.operandWidth()
		var imm uint64
		var err error
		if w == isa.W16 {
			var v16 uint16
			v16, err = ip.fetch16()
			imm = uint64(v16)
		} else {
			var v32 uint32
			v32, err = ip.fetch32()
			imm = uint64(v32)
		}
		if err != nil {
			return BatchExit{}, err
		}
		_, flags := alu.Eval(alu.Sub, ip.cpu.ReadGPR(reg, w), uint64(imm), w)
		applyFlags(ip.cpu, flags)
		return completed()
	}
}

// condition codes, Jcc low nibble order (0x70 + cc).
const (
	ccO = iota
	ccNO
	ccB
	ccAE
	ccE
	ccNE
	ccBE
	ccA
	ccS
	ccNS
	ccP
	ccNP
	ccL
	ccGE
	ccLE
	ccG
)

func evalCond(cpu *cpustate.CpuState, cc int) bool {
	cf := cpu.FlagSet(isa.FlagCF)
	zf := cpu.FlagSet(isa.FlagZF)
	sf := cpu.FlagSet(isa.FlagSF)
	of := cpu.FlagSet(isa.FlagOF)
	pf := cpu.FlagSet(isa.FlagPF)
	switch cc {
	case ccO:
		return of
	case ccNO:
		return !of
	case ccB:
		return cf
	case ccAE:
		return !cf
	case ccE:
		return zf
	case ccNE:
		return !zf
	case ccBE:
		return cf || zf
	case ccA:
		return !cf && !zf
	case ccS:
		return sf
	case ccNS:
		return !sf
	case ccP:
		return pf
	case ccNP:
		return !pf
	case ccL:
		return sf != of
	case ccGE:
		return sf == of
	case ccLE:
		return zf || sf != of
	case ccG:
		return !zf && sf == of
	}
	return false
}

func makeJcc(cc int) opFunc {
	return func(ip *interp) (BatchExit, error) {
		rel, err := ip.fetch8()
		if err != nil {
			return BatchExit{}, err
		}
		if evalCond(ip.cpu, cc) {
			ip.cpu.RIP += uint64(int64(int8(rel)))
			return BatchExit{Kind: Branch}, nil
		}
		return completed()
	}
}
