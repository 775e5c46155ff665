// addrsimplify.go - pass 4: address simplification (spec.md §4.4)
//
// "Fold nested Addr of Addr with the same scale=1 into one node (sum
// displacements; keep base; drop zero index)." Only the outer Addr's
// shape matters here (no index of its own, i.e. a plain base+disp);
// folding it into its base's own Addr when that base is itself an
// Addr keeps one fewer instruction live without changing count (the
// inner Addr instruction is left in place, just no longer referenced
// by anything after the fold — dead-code elimination of truly unused
// instructions is left to the host executor's reachability walk, not
// this pass).
package tier2opt

import "github.com/aerocore/aerocore/internal/tier2ir"

func SimplifyAddresses(body []tier2ir.Instr) {
	for i := range body {
		instr := &body[i]
		if instr.Kind != tier2ir.OpAddr || instr.Index.IsValid() || instr.Scale > 1 {
			continue
		}
		if instr.Base.Block != tier2ir.TraceBody {
			continue
		}
		inner := body[instr.Base.Idx]
		if inner.Kind != tier2ir.OpAddr {
			continue
		}
		instr.Disp += inner.Disp
		instr.Base = inner.Base
		instr.Index = inner.Index
		instr.Scale = inner.Scale
	}
}
