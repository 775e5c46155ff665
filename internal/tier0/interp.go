// interp.go - Tier-0 batched interpreter core loop (spec.md §4.2)
//
// Structured after the teacher's CPU_X86.run() fetch/decode/execute loop
// (cpu_x86.go), but generalized from "run one instruction, call back into
// the VM for interrupts" to run_batch's "execute up to budget instructions,
// yielding a typed BatchExit at every architecturally interesting
// boundary" contract, since the outer scheduler (not modeled in this
// package) needs to observe halts, branches, and faults between batches.

package tier0

import (
	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/memory"
)

// Config holds decode-time toggles. Empty today; reserved for the
// opcode-extension switches spec.md's Open Questions leave for a
// follow-up (e.g. enabling the inline-tlb-only fast paths Tier-1 uses).
type Config struct{}

// interp is the per-batch decode/execute cursor. It never outlives a
// single RunBatch call.
type interp struct {
	cfg    Config
	cpu    *cpustate.CpuState
	bus    *memory.MemoryBus
	events *cpustate.PendingEvents

	instrStart uint64 // address of the instruction currently executing
	armedShadow bool  // true if this instruction just called OpenInterruptShadow
}

// opFunc executes one decoded instruction and reports how the batch
// should proceed.
type opFunc func(ip *interp) (BatchExit, error)

var baseOps [256]opFunc

func completed() (BatchExit, error) { return BatchExit{Kind: Completed}, nil }

// RunBatch executes up to budget instructions starting at cpu.RIP,
// stopping early at any boundary BatchExit names (spec.md §4.2/§5).
func RunBatch(cfg Config, events *cpustate.PendingEvents, cpu *cpustate.CpuState, bus *memory.MemoryBus, budget int) (BatchResult, error) {
	ip := &interp{cfg: cfg, cpu: cpu, bus: bus, events: events}

	executed := 0
	for executed < budget {
		if cpu.Halted {
			v, ok := events.PeekExternal()
			if !ok || cpu.ExternalInterruptsMasked() {
				return BatchResult{Executed: executed, Exit: BatchExit{Kind: Halted}}, nil
			}
			events.PopExternal()
			if err := deliverVector(cpu, bus, deliverParams{vector: v, nextIP: cpu.HaltReturnRIP}); err != nil {
				return faultResult(executed, err)
			}
			cpu.Halted = false
			if cpu.Mode == isa.ModeReal {
				return BatchResult{Executed: executed, Exit: BatchExit{Kind: BiosInterrupt, Vector: v}}, nil
			}
			continue
		}

		// External interrupts are otherwise only polled once, at batch
		// entry, per spec.md §5 ("the scheduler polls between batches");
		// mid-batch they're only re-checked via the HLT-wake path above.
		if executed == 0 {
			if v, ok := events.PeekExternal(); ok && !cpu.ExternalInterruptsMasked() {
				events.PopExternal()
				if err := deliverVector(cpu, bus, deliverParams{vector: v, nextIP: cpu.RIP}); err != nil {
					return faultResult(executed, err)
				}
				if cpu.Mode == isa.ModeReal {
					return BatchResult{Executed: executed, Exit: BatchExit{Kind: BiosInterrupt, Vector: v}}, nil
				}
				continue
			}
		}

		ip.instrStart = cpu.RIP
		ip.armedShadow = false
		opcode, err := ip.fetch8()
		if err != nil {
			return faultResult(executed, err)
		}
		fn := baseOps[opcode]
		if fn == nil {
			return faultResult(executed, &CPUFault{Kind: cpustate.ExceptionUD})
		}
		exit, err := fn(ip)
		if err != nil {
			return faultResult(executed, err)
		}
		executed++
		if !ip.armedShadow {
			cpu.RetireInstruction()
		}
		if exit.Kind != Completed {
			return BatchResult{Executed: executed, Exit: exit}, nil
		}
	}
	return BatchResult{Executed: executed, Exit: BatchExit{Kind: Completed}}, nil
}

func faultResult(executed int, err error) (BatchResult, error) {
	if cf, ok := err.(*CPUFault); ok {
		return BatchResult{Executed: executed, Exit: BatchExit{Kind: Exception, FaultKind: cf.Kind, ErrorCode: cf.ErrorCode, CR2: cf.CR2}}, nil
	}
	return BatchResult{Executed: executed}, err
}

// --- fetch helpers: address = current CS base + RIP ------------------------

func (ip *interp) codeAddr(offset uint64) uint64 {
	return ip.cpu.Seg[isa.SegCS].Base + offset
}

func (ip *interp) fetch8() (uint8, error) {
	v, err := ip.bus.ReadU8(ip.codeAddr(ip.cpu.RIP))
	if err != nil {
		return 0, wrapBusErr("fetch8", err)
	}
	ip.cpu.RIP++
	return v, nil
}

func (ip *interp) fetch16() (uint16, error) {
	v, err := ip.bus.ReadU16(ip.codeAddr(ip.cpu.RIP))
	if err != nil {
		return 0, wrapBusErr("fetch16", err)
	}
	ip.cpu.RIP += 2
	return v, nil
}

func (ip *interp) fetch32() (uint32, error) {
	v, err := ip.bus.ReadU32(ip.codeAddr(ip.cpu.RIP))
	if err != nil {
		return 0, wrapBusErr("fetch32", err)
	}
	ip.cpu.RIP += 4
	return v, nil
}

// --- stack helpers: address = current SS base + stack pointer --------------

func (ip *interp) stackWidth() isa.Width {
	switch ip.cpu.Mode {
	case isa.ModeReal:
		return isa.W16
	case isa.ModeBit32:
		return isa.W32
	default:
		return isa.W64
	}
}

func (ip *interp) push(v uint64) error {
	w := ip.stackWidth()
	sp := ip.cpu.GPR[isa.RSP] - w.Bytes()
	ip.cpu.WriteGPR(isa.RSP, w, sp)
	addr := ip.cpu.Seg[isa.SegSS].Base + (sp & w.Mask())
	switch w {
	case isa.W16:
		return wrapBusErr("push16", ip.bus.WriteU16(addr, uint16(v)))
	case isa.W32:
		return wrapBusErr("push32", ip.bus.WriteU32(addr, uint32(v)))
	default:
		return wrapBusErr("push64", ip.bus.WriteU64(addr, v))
	}
}

func (ip *interp) pop() (uint64, error) {
	w := ip.stackWidth()
	sp := ip.cpu.GPR[isa.RSP] & w.Mask()
	addr := ip.cpu.Seg[isa.SegSS].Base + sp
	var v uint64
	var err error
	switch w {
	case isa.W16:
		var v16 uint16
		v16, err = ip.bus.ReadU16(addr)
		v = uint64(v16)
	case isa.W32:
		var v32 uint32
		v32, err = ip.bus.ReadU32(addr)
		v = uint64(v32)
	default:
		v, err = ip.bus.ReadU64(addr)
	}
	if err != nil {
		return 0, wrapBusErr("pop", err)
	}
	ip.cpu.WriteGPR(isa.RSP, w, sp+w.Bytes())
	return v, nil
}

// operandWidth is the default operand width for the interpreter's
// supplementary accumulator-form ALU opcodes: 16-bit in real mode, 32-bit
// otherwise (no operand-size-prefix decoding; spec.md's concrete scenarios
// never exercise it).
func (ip *interp) operandWidth() isa.Width {
	if ip.cpu.Mode == isa.ModeReal {
		return isa.W16
	}
	return isa.W32
}

// applyFlags writes flags to RFLAGS, masked to the bits alu.Eval actually
// computed for this op (CF/PF/AF/ZF/SF/OF).
func applyFlags(cpu *cpustate.CpuState, f alu.Flags) {
	cpu.SetFlag(isa.FlagCF, f.CF)
	cpu.SetFlag(isa.FlagPF, f.PF)
	cpu.SetFlag(isa.FlagAF, f.AF)
	cpu.SetFlag(isa.FlagZF, f.ZF)
	cpu.SetFlag(isa.FlagSF, f.SF)
	cpu.SetFlag(isa.FlagOF, f.OF)
}
