// codegen.go - Tier-1 IR -> WASM lowering (spec.md §4.3)
//
// Each IR value gets its own i64 local (uniform width keeps the lowering
// simple; narrower widths are enforced by masking at each use, mirroring
// tier1ir.Run's own `lhs & mask` / `rhs & mask` treatment). Because every
// BinOp's Width and FlagMask are already concrete at lowering time (not
// discovered at WASM runtime), the codegen needs no runtime width
// dispatch: the mask/sign/shift-count constants are baked into the
// bytecode as immediates, matching the rest of this package's
// "specialize at compile time, stay branch-free at runtime" style.
package tier1wasm

import (
	"fmt"

	"github.com/aerocore/aerocore/internal/alu"
	"github.com/aerocore/aerocore/internal/isa"
	"github.com/aerocore/aerocore/internal/tier1ir"
)

// Import function indices, in the fixed declaration order Lower emits
// them. jit_exit always precedes the memory imports (spec.md §4.3) so
// its index is stable whether or not a memory-free block under the
// inline-tlb build omits page_fault/mem_* (see wantsMemoryImports).
const (
	impJitExit = iota
	impPageFault
	impMemReadU8
	impMemReadU16
	impMemReadU32
	impMemReadU64
	impMemWriteU8
	impMemWriteU16
	impMemWriteU32
	impMemWriteU64
	numImports
)

// sentinelReadRIPFromImage is returned by tier1_block in place of a
// concrete next-RIP whenever the block bailed out through a path that
// already wrote RIP into the CPU image itself (spec.md §4.3's "or a
// sentinel indicating the runtime should read RIP from the CPU image").
// All-ones is never a valid canonical x86-64 address.
const sentinelReadRIPFromImage = ^uint64(0)

func memReadImport(w isa.Width) uint32 {
	switch w {
	case isa.W8:
		return impMemReadU8
	case isa.W16:
		return impMemReadU16
	case isa.W32:
		return impMemReadU32
	default:
		return impMemReadU64
	}
}

func memWriteImport(w isa.Width) uint32 {
	switch w {
	case isa.W8:
		return impMemWriteU8
	case isa.W16:
		return impMemWriteU16
	case isa.W32:
		return impMemWriteU32
	default:
		return impMemWriteU64
	}
}

func signBit(w isa.Width) uint64 {
	switch w {
	case isa.W8:
		return 0x80
	case isa.W16:
		return 0x8000
	case isa.W32:
		return 0x80000000
	default:
		return 0x8000000000000000
	}
}

func shiftCountMask(w isa.Width) uint64 {
	if w == isa.W64 {
		return 0x3F
	}
	return 0x1F
}

// codegen holds per-block lowering state.
type codegen struct {
	body       []byte
	numValues  int
	scratchIdx int // one shared i64 scratch local: parity folding, then the flag accumulator
}

func localIdx(valueIdx int) uint32 { return uint32(2 + valueIdx) }

func (cg *codegen) emit(b ...byte) { cg.body = append(cg.body, b...) }

func (cg *codegen) i64Const(v uint64) {
	cg.emit(opI64Const)
	cg.body = appendSLEB128(cg.body, int64(v))
}

func (cg *codegen) i32Const(v int32) {
	cg.emit(opI32Const)
	cg.body = appendSLEB128(cg.body, int64(v))
}

func (cg *codegen) localGet(idx uint32) {
	cg.emit(opLocalGet)
	cg.body = appendULEB128(cg.body, uint64(idx))
}

func (cg *codegen) localSet(idx uint32) {
	cg.emit(opLocalSet)
	cg.body = appendULEB128(cg.body, uint64(idx))
}

// regOffset returns the byte offset of reg within the image, and true if
// reg is a high-8 alias (AH/BH/CH/DH), per tier1ir.Image's layout.
func regOffset(reg int) (offset int32, high8 bool) {
	if base := isa.High8Base(reg); base >= 0 {
		return int32(tier1ir.OffGPR0 + base*8), true
	}
	return int32(tier1ir.OffGPR0 + reg*8), false
}

// pushAddr pushes cpu_ptr + offset (i32) onto the stack.
func (cg *codegen) pushAddr(offset int32) {
	cg.localGet(0)
	cg.i32Const(offset)
	cg.emit(opI32Add)
}

// Lower translates one validated Tier-1 Block into a standalone WASM
// binary exporting tier1_block(cpu_ptr: i32, jit_ctx_ptr: i32) -> i64.
func Lower(b *tier1ir.Block) ([]byte, error) {
	if err := tier1ir.Validate(b); err != nil {
		return nil, fmt.Errorf("tier1wasm: %w", err)
	}

	cg := &codegen{numValues: len(b.Instrs)}
	cg.scratchIdx = 2 + cg.numValues

	m := newModuleBuilder("tier1_block", funcType{params: []byte{valI32, valI32}, results: []byte{valI64}})
	m.importFunc("jit_exit", []byte{valI32, valI64}, []byte{valI64})

	// Dead-code check ahead of import emission: the inline-tlb build
	// must not declare page_fault/mem_* imports for a block that never
	// touches guest memory, or instantiation fails when the host hasn't
	// wired those imports up (spec.md §4.3, §9 Open Question 3). The
	// default build always wants them, since it has no cheaper fallback
	// path for a load/store that might appear later.
	if wantsMemoryImports(b) {
		m.importFunc("page_fault", []byte{valI32, valI32}, nil)
		m.importFunc("mem_read_u8", []byte{valI32, valI32}, []byte{valI64})
		m.importFunc("mem_read_u16", []byte{valI32, valI32}, []byte{valI64})
		m.importFunc("mem_read_u32", []byte{valI32, valI32}, []byte{valI64})
		m.importFunc("mem_read_u64", []byte{valI32, valI32}, []byte{valI64})
		m.importFunc("mem_write_u8", []byte{valI32, valI32, valI64}, nil)
		m.importFunc("mem_write_u16", []byte{valI32, valI32, valI64}, nil)
		m.importFunc("mem_write_u32", []byte{valI32, valI32, valI64}, nil)
		m.importFunc("mem_write_u64", []byte{valI32, valI32, valI64}, nil)
	}

	bailed := false
	for i, instr := range b.Instrs {
		if instr.Kind == tier1ir.OpCallHelper {
			// Unsupported construct: write next_rip into the image and
			// return the sentinel, never trap (spec.md §4.3). Subsequent
			// instructions/terminator are unreachable, matching
			// tier1ir.Run's own early return on CallHelper.
			cg.pushAddr(tier1ir.OffRIP)
			cg.i64Const(b.Term.NextRIP)
			cg.emit(opI64Store, 3, 0)
			cg.i64Const(sentinelReadRIPFromImage)
			bailed = true
			break
		}
		if err := cg.emitInstr(i, instr); err != nil {
			return nil, err
		}
	}
	if !bailed {
		cg.emitTerminator(b.Term)
	}

	m.localTypes = make([]byte, cg.numValues+1) // + the shared scratch local
	m.body = cg.body
	return m.encode(), nil
}

// blockUsesMemory reports whether b contains any guest memory access.
func blockUsesMemory(b *tier1ir.Block) bool {
	for _, instr := range b.Instrs {
		if instr.Kind == tier1ir.OpLoad || instr.Kind == tier1ir.OpStore {
			return true
		}
	}
	return false
}

func loadReg64(body []byte, offset int32) []byte {
	body = append(body, opLocalGet)
	body = appendULEB128(body, 0)
	if offset != 0 {
		body = append(body, opI32Const)
		body = appendSLEB128(body, int64(offset))
		body = append(body, opI32Add)
	}
	body = append(body, opI64Load)
	body = appendULEB128(body, 3) // align
	body = appendULEB128(body, 0) // offset immediate (folded into address already)
	return body
}

func storeReg64Addr(body []byte, offset int32) []byte {
	body = append(body, opLocalGet)
	body = appendULEB128(body, 0)
	if offset != 0 {
		body = append(body, opI32Const)
		body = appendSLEB128(body, int64(offset))
		body = append(body, opI32Add)
	}
	return body
}

func (cg *codegen) emitInstr(i int, instr tier1ir.Instr) error {
	resultIdx := localIdx(i)

	switch instr.Kind {
	case tier1ir.OpConst:
		cg.i64Const(instr.ConstVal)
		cg.localSet(resultIdx)

	case tier1ir.OpReadReg:
		offset, high8 := regOffset(instr.Reg)
		cg.body = loadReg64(cg.body, offset)
		if high8 {
			cg.i64Const(8)
			cg.emit(opI64ShrU)
			cg.i64Const(0xFF)
			cg.emit(opI64And)
		} else {
			cg.i64Const(instr.Width.Mask())
			cg.emit(opI64And)
		}
		cg.localSet(resultIdx)

	case tier1ir.OpWriteReg:
		offset, high8 := regOffset(instr.Reg)
		if !high8 && (instr.Width == isa.W64 || instr.Width == isa.W32) {
			// Full 8-byte overwrite: no need to read the current value. A
			// W32 write zero-extends, so the value is masked to 32 bits.
			cg.body = storeReg64Addr(cg.body, offset)
			cg.localGet(localIdx(int(instr.Value)))
			if instr.Width == isa.W32 {
				cg.i64Const(0xFFFFFFFF)
				cg.emit(opI64And)
			}
			cg.emit(opI64Store, 3, 0)
			break
		}
		cg.body = storeReg64Addr(cg.body, offset) // addr for the store, stays on stack
		cg.body = loadReg64(cg.body, offset)      // current 8 bytes
		if high8 {
			cg.i64Const(0xFFFFFFFFFFFF00FF)
			cg.emit(opI64And)
			cg.localGet(localIdx(int(instr.Value)))
			cg.i64Const(0xFF)
			cg.emit(opI64And)
			cg.i64Const(8)
			cg.emit(opI64Shl)
		} else {
			mask := instr.Width.Mask()
			cg.i64Const(^mask)
			cg.emit(opI64And)
			cg.localGet(localIdx(int(instr.Value)))
			cg.i64Const(mask)
			cg.emit(opI64And)
		}
		cg.emit(opI64Or)
		cg.emit(opI64Store, 3, 0)

	case tier1ir.OpBinOp:
		cg.emitBinOp(i, instr)

	case tier1ir.OpLoad:
		cg.localGet(0)
		cg.localGet(localIdx(int(instr.Addr)))
		cg.emit(opI32WrapI64)
		cg.emit(opCall)
		cg.body = appendULEB128(cg.body, uint64(memReadImport(instr.Width)))
		if instr.Width != isa.W64 {
			cg.i64Const(instr.Width.Mask())
			cg.emit(opI64And)
		}
		cg.localSet(resultIdx)

	case tier1ir.OpStore:
		cg.localGet(0)
		cg.localGet(localIdx(int(instr.Addr)))
		cg.emit(opI32WrapI64)
		cg.localGet(localIdx(int(instr.Value)))
		if instr.Width != isa.W64 {
			cg.i64Const(instr.Width.Mask())
			cg.emit(opI64And)
		}
		cg.emit(opCall)
		cg.body = appendULEB128(cg.body, uint64(memWriteImport(instr.Width)))

	default:
		return fmt.Errorf("tier1wasm: unsupported instruction kind %d", instr.Kind)
	}
	return nil
}

// emitBinOp lowers one ALU BinOp, baking Width/FlagMask into constants.
func (cg *codegen) emitBinOp(i int, instr tier1ir.Instr) {
	resultIdx := localIdx(i)
	lhsIdx := localIdx(int(instr.Lhs))
	rhsIdx := localIdx(int(instr.Rhs))
	mask := instr.Width.Mask()

	pushL := func() { cg.localGet(lhsIdx); cg.i64Const(mask); cg.emit(opI64And) }
	pushR := func() { cg.localGet(rhsIdx); cg.i64Const(mask); cg.emit(opI64And) }

	switch instr.ALUOp {
	case alu.Add:
		pushL()
		pushR()
		cg.emit(opI64Add)
		cg.i64Const(mask)
		cg.emit(opI64And)
		cg.localSet(resultIdx)
	case alu.Sub:
		pushL()
		pushR()
		cg.emit(opI64Sub)
		cg.i64Const(mask)
		cg.emit(opI64And)
		cg.localSet(resultIdx)
	case alu.Mul:
		pushL()
		pushR()
		cg.emit(opI64Mul)
		cg.i64Const(mask)
		cg.emit(opI64And)
		cg.localSet(resultIdx)
	case alu.And:
		pushL()
		pushR()
		cg.emit(opI64And)
		cg.localSet(resultIdx)
	case alu.Or:
		pushL()
		pushR()
		cg.emit(opI64Or)
		cg.localSet(resultIdx)
	case alu.Xor:
		pushL()
		pushR()
		cg.emit(opI64Xor)
		cg.localSet(resultIdx)
	case alu.Shl:
		pushL()
		cg.localGet(rhsIdx)
		cg.i64Const(shiftCountMask(instr.Width))
		cg.emit(opI64And)
		cg.emit(opI64Shl)
		cg.i64Const(mask)
		cg.emit(opI64And)
		cg.localSet(resultIdx)
	case alu.Shr:
		pushL()
		cg.localGet(rhsIdx)
		cg.i64Const(shiftCountMask(instr.Width))
		cg.emit(opI64And)
		cg.emit(opI64ShrU)
		cg.localSet(resultIdx)
	case alu.Eq:
		pushL()
		pushR()
		cg.emit(0x51) // i64.eq
		cg.emit(opI64ExtendI32U)
		cg.localSet(resultIdx)
	case alu.LtU:
		pushL()
		pushR()
		cg.emit(0x54) // i64.lt_u
		cg.emit(opI64ExtendI32U)
		cg.localSet(resultIdx)
	}

	if instr.FlagMask != 0 {
		cg.emitFlags(instr, resultIdx, lhsIdx, rhsIdx)
	}
}

// emitFlags computes the requested flag bits and folds them into RFLAGS,
// matching alu.Eval's formulas bit-for-bit (spec.md §4.3/§4.4).
func (cg *codegen) emitFlags(instr tier1ir.Instr, resultIdx, lhsIdx, rhsIdx uint32) {
	mask := instr.Width.Mask()
	sign := signBit(instr.Width)

	pushL := func() { cg.localGet(lhsIdx); cg.i64Const(mask); cg.emit(opI64And) }
	pushR := func() { cg.localGet(rhsIdx); cg.i64Const(mask); cg.emit(opI64And) }
	pushResult := func() { cg.localGet(resultIdx) }

	// accumulator starts at 0
	cg.i64Const(0)

	addFlag := func(bit uint64, pushBoolI32 func()) {
		pushBoolI32()
		cg.emit(opI64ExtendI32U)
		cg.i64Const(bit)
		cg.emit(opI64Mul)
		cg.emit(opI64Or)
	}

	// alu.Eval sets AF only for Add/Sub, and for Eq/LtU only ZF (Eq:
	// lhs==rhs) or CF (LtU); a requested flag skipped here is written as 0.
	isCmp := instr.ALUOp == alu.Eq || instr.ALUOp == alu.LtU
	hasAF := instr.ALUOp == alu.Add || instr.ALUOp == alu.Sub

	if instr.FlagMask&isa.FlagZF != 0 && instr.ALUOp != alu.LtU {
		addFlag(isa.FlagZF, func() {
			pushResult()
			cg.emit(opI64Eqz)
			if instr.ALUOp == alu.Eq {
				cg.emit(opI32Eqz) // Eq's result is 1 exactly when lhs==rhs
			}
		})
	}
	if instr.FlagMask&isa.FlagSF != 0 && !isCmp {
		addFlag(isa.FlagSF, func() {
			pushResult()
			cg.i64Const(sign)
			cg.emit(opI64And)
			cg.i64Const(0)
			cg.emit(0x52) // i64.ne
		})
	}
	if instr.FlagMask&isa.FlagPF != 0 && !isCmp {
		addFlag(isa.FlagPF, func() {
			pushResult()
			cg.i64Const(0xFF)
			cg.emit(opI64And)
			cg.localSet(uint32(cg.scratchIdx))
			for _, shift := range []uint64{4, 2, 1} {
				cg.localGet(uint32(cg.scratchIdx))
				cg.localGet(uint32(cg.scratchIdx))
				cg.i64Const(shift)
				cg.emit(opI64ShrU)
				cg.emit(opI64Xor)
				cg.localSet(uint32(cg.scratchIdx))
			}
			cg.localGet(uint32(cg.scratchIdx))
			cg.i64Const(1)
			cg.emit(opI64And)
			cg.emit(opI64Eqz)
		})
	}
	if instr.FlagMask&isa.FlagAF != 0 && hasAF {
		addFlag(isa.FlagAF, func() {
			pushL()
			pushR()
			cg.emit(opI64Xor)
			pushResult()
			cg.emit(opI64Xor)
			cg.i64Const(0x10)
			cg.emit(opI64And)
			cg.i64Const(0)
			cg.emit(0x52) // i64.ne
		})
	}
	if instr.FlagMask&isa.FlagCF != 0 {
		addFlag(isa.FlagCF, func() { cg.emitCF(instr, lhsIdx, rhsIdx, resultIdx) })
	}
	if instr.FlagMask&isa.FlagOF != 0 {
		addFlag(isa.FlagOF, func() { cg.emitOF(instr, lhsIdx, rhsIdx, resultIdx) })
	}

	// accumulator (i64, flag bits only) now on stack; fold into RFLAGS.
	cg.localSet(uint32(cg.scratchIdx))
	cg.pushAddr(int32(tier1ir.OffRFLAGS))
	cg.loadRFLAGS()
	cg.i64Const(^(instr.FlagMask))
	cg.emit(opI64And)
	cg.localGet(uint32(cg.scratchIdx))
	cg.emit(opI64Or)
	cg.emit(opI64Store, 3, 0)
}

func (cg *codegen) loadRFLAGS() {
	cg.localGet(0)
	cg.i32Const(int32(tier1ir.OffRFLAGS))
	cg.emit(opI32Add)
	cg.emit(opI64Load, 3, 0)
}

// emitCF pushes an i32 bool for CF, per op.
func (cg *codegen) emitCF(instr tier1ir.Instr, lhsIdx, rhsIdx, resultIdx uint32) {
	mask := instr.Width.Mask()
	pushL := func() { cg.localGet(lhsIdx); cg.i64Const(mask); cg.emit(opI64And) }
	pushR := func() { cg.localGet(rhsIdx); cg.i64Const(mask); cg.emit(opI64And) }

	switch instr.ALUOp {
	case alu.Add:
		// (wide&^mask != 0) || wide < l
		pushL()
		pushR()
		cg.emit(opI64Add)
		cg.i64Const(^mask)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52) // ne
		pushL()
		pushR()
		cg.emit(opI64Add)
		pushL()
		cg.emit(0x54) // lt_u: wide < l
		cg.emit(opI32Or)
	case alu.Sub:
		pushL()
		pushR()
		cg.emit(0x54) // l < r
	case alu.Mul:
		pushL()
		pushR()
		cg.emit(opI64Mul)
		cg.i64Const(^mask)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52)
	case alu.LtU:
		pushL()
		pushR()
		cg.emit(0x54)
	case alu.Shl:
		// CF = count!=0 && count<=bits && (l & (1<<(bits-count))) != 0
		// (spec.md §4.3/§4.4; Go's zero-initialized Flags leaves CF false
		// whenever count==0 or count exceeds the width in bits). select's
		// operand order is [val1, val2, cond]: push CF_raw, then 0, then
		// applyCF last so it lands on top as the selector.
		bits := instr.Width.Bytes() * 8
		count := func() { cg.localGet(rhsIdx); cg.i64Const(shiftCountMask(instr.Width)); cg.emit(opI64And) }

		pushL()
		cg.i64Const(1)
		cg.i64Const(bits)
		count()
		cg.emit(opI64Sub)
		cg.emit(opI64Shl) // 1 << (bits-count)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52) // CF_raw (val1)

		cg.i32Const(0) // val2

		count()
		cg.i64Const(0)
		cg.emit(0x52) // count != 0
		count()
		cg.i64Const(bits)
		cg.emit(0x58) // count <= bits (le_u)
		cg.emit(opI32And) // applyCF (cond)

		cg.emit(opSelect)
	case alu.Shr:
		// CF = count!=0 && (l & (1<<(count-1))) != 0
		count := func() { cg.localGet(rhsIdx); cg.i64Const(shiftCountMask(instr.Width)); cg.emit(opI64And) }

		pushL()
		cg.i64Const(1)
		count()
		cg.i64Const(1)
		cg.emit(opI64Sub)
		cg.emit(opI64Shl)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52) // CF_raw (val1)

		cg.i32Const(0) // val2

		count()
		cg.i64Const(0)
		cg.emit(0x52) // applyCF = count != 0 (cond)

		cg.emit(opSelect)
	default:
		cg.i32Const(0)
	}
}

// emitOF pushes an i32 bool for OF, per op.
func (cg *codegen) emitOF(instr tier1ir.Instr, lhsIdx, rhsIdx, resultIdx uint32) {
	mask := instr.Width.Mask()
	sign := signBit(instr.Width)
	pushL := func() { cg.localGet(lhsIdx); cg.i64Const(mask); cg.emit(opI64And) }
	pushR := func() { cg.localGet(rhsIdx); cg.i64Const(mask); cg.emit(opI64And) }

	switch instr.ALUOp {
	case alu.Add:
		// (^(l^r) & (l^result) & sign) != 0
		pushL()
		pushR()
		cg.emit(opI64Xor)
		cg.i64Const(^uint64(0))
		cg.emit(opI64Xor) // bitwise not via xor with all-ones
		pushL()
		cg.localGet(resultIdx)
		cg.emit(opI64Xor)
		cg.emit(opI64And)
		cg.i64Const(sign)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52)
	case alu.Sub:
		pushL()
		pushR()
		cg.emit(opI64Xor)
		pushL()
		cg.localGet(resultIdx)
		cg.emit(opI64Xor)
		cg.emit(opI64And)
		cg.i64Const(sign)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52)
	case alu.Mul:
		pushL()
		pushR()
		cg.emit(opI64Mul)
		cg.i64Const(^mask)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52)
	case alu.Shl:
		// OF = count!=0 && (newMSB != CF_effective) (spec.md §4.3).
		count := func() { cg.localGet(rhsIdx); cg.i64Const(shiftCountMask(instr.Width)); cg.emit(opI64And) }

		cg.localGet(resultIdx)
		cg.i64Const(sign)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52) // newMSB (i32)
		cg.emitCF(instr, lhsIdx, rhsIdx, resultIdx) // CF_effective (i32)
		cg.emit(0x47) // i32.ne -> OF_raw (val1)

		cg.i32Const(0) // val2

		count()
		cg.i64Const(0)
		cg.emit(0x52) // applyOF = count != 0 (cond)

		cg.emit(opSelect)
	case alu.Shr:
		// OF = count == 1 && origMSB (spec.md §4.3).
		count := func() { cg.localGet(rhsIdx); cg.i64Const(shiftCountMask(instr.Width)); cg.emit(opI64And) }

		count()
		cg.i64Const(1)
		cg.emit(0x51) // count == 1 (i64.eq)
		pushL()
		cg.i64Const(sign)
		cg.emit(opI64And)
		cg.i64Const(0)
		cg.emit(0x52) // origMSB
		cg.emit(opI32And)
	default:
		cg.i32Const(0)
	}
}

func (cg *codegen) emitTerminator(t tier1ir.Terminator) {
	switch t.Kind {
	case tier1ir.TermNext:
		cg.pushAddr(tier1ir.OffRIP)
		cg.i64Const(t.NextRIP)
		cg.emit(opI64Store, 3, 0)
		cg.i64Const(t.NextRIP)

	case tier1ir.TermBranch:
		store := func() {
			cg.pushAddr(tier1ir.OffRIP)
			cg.i64Const(t.TrueRIP)
			cg.i64Const(t.FalseRIP)
			cg.localGet(localIdx(int(t.Cond)))
			cg.i64Const(0)
			cg.emit(0x52) // cond != 0 -> i32 bool
			cg.emit(opSelect)
			cg.emit(opI64Store, 3, 0)
		}
		store()
		cg.i64Const(t.TrueRIP)
		cg.i64Const(t.FalseRIP)
		cg.localGet(localIdx(int(t.Cond)))
		cg.i64Const(0)
		cg.emit(0x52)
		cg.emit(opSelect)

	case tier1ir.TermExitToInterpreter:
		cg.pushAddr(tier1ir.OffRIP)
		cg.i64Const(t.ExitNextRIP)
		cg.emit(opI64Store, 3, 0)
		cg.i32Const(int32(t.ExitKind))
		cg.i64Const(t.ExitNextRIP)
		cg.emit(opCall)
		cg.body = appendULEB128(cg.body, impJitExit)
	}
}
