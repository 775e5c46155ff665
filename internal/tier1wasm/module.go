// module.go - minimal WASM module binary builder (spec.md §4.3)
//
// Builds exactly the module shape spec.md §4.3 specifies: imports from
// module "env" (memory, page_fault, jit_exit, width-specialized
// mem_{read,write}_*), and a single export tier1_block. Grounded on
// `github.com/tetratelabs/wazero` (pack: other_examples/tetratelabs-wazero)
// as the consumer of this binary — wazero is used to load and run it in
// the oracle test, not to author it; authoring is a plain byte encoder
// since no pack repo carries a WASM-authoring library.
package tier1wasm

const (
	valI32 = 0x7F
	valI64 = 0x7E

	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secExport   = 7
	secCode     = 10

	importKindFunc   = 0x00
	importKindMemory = 0x02

	exportKindFunc = 0x00

	opBlockEnd = 0x0B

	opLocalGet = 0x20
	opLocalSet = 0x21
	opLocalTee = 0x22

	opI32Const = 0x41
	opI64Const = 0x42

	opI32Eqz = 0x45
	opI64Eqz = 0x50

	opI32Add = 0x6A
	opI32Sub = 0x6B
	opI32And = 0x71
	opI32Or  = 0x72
	opI32Xor = 0x73

	opI64Add = 0x7C
	opI64Sub = 0x7D
	opI64Mul = 0x7E
	opI64And = 0x83
	opI64Or  = 0x84
	opI64Xor = 0x85
	opI64Shl = 0x86
	opI64ShrU = 0x88

	opI64ExtendI32U = 0xAD
	opI32WrapI64    = 0xA7

	opI64Load   = 0x29
	opI64Store  = 0x37
	opI32Load8U = 0x2D

	opCall   = 0x10
	opReturn = 0x0F
	opSelect = 0x1B

	// opDrop discards the top-of-stack value. The lowering does not emit
	// it: the CallHelper bail-out path stops emitting after the sentinel.
	opDrop = 0x1A
)

// funcType is a WASM function type: param kinds -> result kinds.
type funcType struct {
	params  []byte
	results []byte
}

// importFunc describes one function import from module "env".
type importFunc struct {
	name string
	typ  funcType
}

// moduleBuilder accumulates the pieces of one WASM binary.
type moduleBuilder struct {
	imports    []importFunc
	localTypes []byte // local var types for the single defined function, in order
	body       []byte // function body instructions, not yet size-prefixed
	exportName string
	fnType     funcType
}

func newModuleBuilder(exportName string, fnType funcType) *moduleBuilder {
	return &moduleBuilder{exportName: exportName, fnType: fnType}
}

func (m *moduleBuilder) importFunc(name string, params, results []byte) uint32 {
	idx := uint32(len(m.imports))
	m.imports = append(m.imports, importFunc{name: name, typ: funcType{params: params, results: results}})
	return idx
}

// encode assembles the full binary: header + type + import + function +
// export + code sections, in the order the WASM spec requires. Memory is
// imported, so no memory section is emitted.
func (m *moduleBuilder) encode() []byte {
	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6D) // magic "\0asm"
	out = append(out, 0x01, 0x00, 0x00, 0x00) // version 1

	// Type section: one entry per import, plus one for the defined
	// function, in declaration order.
	types := make([]funcType, 0, len(m.imports)+1)
	for _, imp := range m.imports {
		types = append(types, imp.typ)
	}
	definedTypeIdx := uint32(len(types))
	types = append(types, m.fnType)

	var typeBody []byte
	typeBody = appendULEB128(typeBody, uint64(len(types)))
	for _, t := range types {
		typeBody = append(typeBody, 0x60) // func type tag
		typeBody = appendULEB128(typeBody, uint64(len(t.params)))
		typeBody = append(typeBody, t.params...)
		typeBody = appendULEB128(typeBody, uint64(len(t.results)))
		typeBody = append(typeBody, t.results...)
	}
	out = append(out, secType)
	out = append(out, withSize(typeBody)...)

	// Import section: memory first (spec.md §4.3 lists "memory" first),
	// then every function import, each with its own type index.
	var impBody []byte
	impBody = appendULEB128(impBody, uint64(1+len(m.imports)))
	impBody = appendName(impBody, "env")
	impBody = appendName(impBody, "memory")
	impBody = append(impBody, importKindMemory)
	impBody = appendULEB128(impBody, 0) // limits: flags=0 (no max)
	impBody = appendULEB128(impBody, 1) // min pages
	for i, imp := range m.imports {
		impBody = appendName(impBody, "env")
		impBody = appendName(impBody, imp.name)
		impBody = append(impBody, importKindFunc)
		impBody = appendULEB128(impBody, uint64(i))
	}
	out = append(out, secImport)
	out = append(out, withSize(impBody)...)

	// Function section: the one defined function, by type index.
	var fnBody []byte
	fnBody = appendULEB128(fnBody, 1)
	fnBody = appendULEB128(fnBody, uint64(definedTypeIdx))
	out = append(out, secFunction)
	out = append(out, withSize(fnBody)...)

	// Export section.
	var expBody []byte
	expBody = appendULEB128(expBody, 1)
	expBody = appendName(expBody, m.exportName)
	expBody = append(expBody, exportKindFunc)
	expBody = appendULEB128(expBody, uint64(len(m.imports))) // defined func index, after all imports
	out = append(out, secExport)
	out = append(out, withSize(expBody)...)

	// Code section: one function body, locals run-length-encoded as a
	// single run of i64 locals (every value slot is an i64, per
	// codegen.go's uniform-width-local design).
	var codeBody []byte
	codeBody = appendULEB128(codeBody, 1) // one function
	var fb []byte
	if len(m.localTypes) > 0 {
		fb = appendULEB128(fb, 1) // one locals-declaration group
		fb = appendULEB128(fb, uint64(len(m.localTypes)))
		fb = append(fb, valI64)
	} else {
		fb = appendULEB128(fb, 0)
	}
	fb = append(fb, m.body...)
	fb = append(fb, opBlockEnd)
	codeBody = append(codeBody, withSize(fb)...)
	out = append(out, secCode)
	out = append(out, withSize(codeBody)...)

	return out
}
