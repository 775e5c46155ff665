// features.go - inline-tlb feature registration (spec.md §9 Open Questions)
//
// Adapts the teacher's features.go init()-registration-into-a-slice
// pattern: instead of reporting enabled emulator features at startup,
// this reports which Tier-1 codegen variant is compiled in, so
// diagnostics/telemetry can record it without a build-tag-aware
// runtime check scattered through the codebase.
package tier1wasm

var registeredFeatures []string

func init() {
	registeredFeatures = append(registeredFeatures, inlineTLBFeatureName())
}

// Features returns the codegen feature set this build was compiled
// with, in registration order.
func Features() []string {
	out := make([]string, len(registeredFeatures))
	copy(out, registeredFeatures)
	return out
}
