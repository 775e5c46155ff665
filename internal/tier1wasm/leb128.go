// leb128.go - LEB128 integer encoding for the WASM binary format
//
// The WASM binary format (https://webassembly.github.io/spec/core/binary)
// uses unsigned and signed LEB128 throughout section/index/immediate
// encoding. No pack repo hand-rolls this (the nearest analogue is the
// teacher's hand-rolled x86 instruction encoder in debug_disasm_x86.go,
// which this mirrors in spirit: small byte-level encoders with no
// external codec library, since none of the pack's go.mod files carry a
// WASM-authoring package — wazero is a runtime, not an assembler).
package tier1wasm

// appendULEB128 appends v as unsigned LEB128.
func appendULEB128(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// appendSLEB128 appends v as signed LEB128.
func appendSLEB128(buf []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7F)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// appendName appends a WASM "name": a ULEB128 length followed by the
// UTF-8 bytes.
func appendName(buf []byte, s string) []byte {
	buf = appendULEB128(buf, uint64(len(s)))
	return append(buf, s...)
}

// withSize prepends body's ULEB128-encoded length to itself, as every
// WASM section and every function body requires.
func withSize(body []byte) []byte {
	out := appendULEB128(nil, uint64(len(body)))
	return append(out, body...)
}
