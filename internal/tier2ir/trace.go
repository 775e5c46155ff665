// trace.go - the straight-line shape TraceBuilder emits and the
// optimizer/executor operate on (spec.md §4.4).
//
// A Trace is a linearized slice of a Function: a prologue of
// GuardCodeVersion checks followed by a straight-line body of
// instructions (with off-trace Guards inline), ending the way a single
// tier1ir.Block does. Kept in tier2ir rather than tier2trace so both
// tier2trace (which builds one) and tier2opt (which rewrites one) can
// depend on the type without tier2opt importing tier2trace.
package tier2ir

// Trace is what TraceBuilder.BuildFrom produces and the optimizer
// passes rewrite in place.
type Trace struct {
	EntryStartRIP uint64
	Prologue      []Instr // GuardCodeVersion checks, one per touched page
	Body          []Instr // straight-line instructions, Guards inline
	IsLoop        bool    // back-edge revisits EntryStartRIP (spec.md §4.4)
	LoopBackTo    uint64  // EntryStartRIP when IsLoop

	// CachedRegs is populated by tier2opt's cached-register-allocation
	// pass (spec.md §4.4 pass 6): registers whose every body effect is a
	// direct LoadReg/StoreReg of that register, loaded once on entry and
	// stored back once on exit instead of per-access.
	CachedRegs []int
}

// valueRefsEqual reports whether a and b name the same value. It does no
// operand commuting; tier2opt's CSE normalizes commutative operands in
// its own key and does not call this.
func valueRefsEqual(a, b ValueRef) bool { return a == b }
