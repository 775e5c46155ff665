//go:build inline_tlb

// Inline-TLB codegen variant (spec.md §9 Open Question 3): a memory-free
// block must not declare the page_fault/mem_* imports at all, so a host
// that only wires up jit_exit for pure-ALU traces can still instantiate
// it. Resolved this way rather than an always-present no-op TLB cache,
// since spec.md §8.6's S-series scenarios never exercise an actual
// inline translation table — only the import-elision behavior.
package tier1wasm

import "github.com/aerocore/aerocore/internal/tier1ir"

func inlineTLBFeatureName() string { return "tier1wasm.tlb=inline" }

// wantsMemoryImports runs the dead-code check spec.md §4.3/§9 requires:
// a block touching no guest memory gets no page_fault/mem_* imports.
func wantsMemoryImports(b *tier1ir.Block) bool {
	return blockUsesMemory(b)
}
