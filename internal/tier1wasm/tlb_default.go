//go:build !inline_tlb

package tier1wasm

import "github.com/aerocore/aerocore/internal/tier1ir"

// inlineTLBFeatureName reports the default codegen variant: guest
// virtual addresses resolve through the host's page_fault/mem_* import
// calls on every access, no inline translation cache.
func inlineTLBFeatureName() string { return "tier1wasm.tlb=host-import" }

// wantsMemoryImports always declares the memory-access imports in the
// default build: without an inline TLB, the module has no other way to
// reach guest memory if a later revision of the block ever needs it.
func wantsMemoryImports(b *tier1ir.Block) bool { return true }
