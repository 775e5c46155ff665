// optimizer.go - runs the six Tier-2 passes in the fixed order spec.md
// §4.4 specifies: constant folding, CSE, dead-flag elimination, address
// simplify, LICM, cached-register allocation.
package tier2opt

import "github.com/aerocore/aerocore/internal/tier2ir"

func Optimize(tr *tier2ir.Trace) {
	tr.Body = ConstantFold(tr.Body)
	tr.Body = CSE(tr.Body)
	EliminateDeadFlags(tr.Body)
	SimplifyAddresses(tr.Body)
	HoistLoopInvariants(tr)
	AllocateCachedRegs(tr)
}
