// counters.go - cross-tier instrumentation counters (spec.md's
// DOMAIN/AMBIENT STACK: "structured logging + counters used across
// tiers").
//
// The teacher has nothing like this; cpu_x86.go's debug build prints ad
// hoc fmt.Printf call counts from inside DebugX86 instead. Counters
// generalizes that into a small set of atomic counters any tier can bump
// without taking a lock, read back by cmd/aerocore for one summary
// structured log line when its batch loop exits.
package telemetry

import (
	"log/slog"
	"sync/atomic"
)

// Counters tracks how much work each tier has done. Safe for concurrent
// use; every field is updated with atomic adds only.
type Counters struct {
	Tier0Batches       atomic.Int64
	Tier0Instructions  atomic.Int64
	Tier1Compiles      atomic.Int64
	Tier2TraceCompiles atomic.Int64
	Tier2SideExits     atomic.Int64
	SnapshotsTaken     atomic.Int64
}

// LogSummary emits one structured record with every counter's current
// value, the generalized form of the teacher's scattered debug print
// statements.
func (c *Counters) LogSummary(logger *slog.Logger) {
	logger.Info("aerocore counters",
		slog.Int64("tier0_batches", c.Tier0Batches.Load()),
		slog.Int64("tier0_instructions", c.Tier0Instructions.Load()),
		slog.Int64("tier1_compiles", c.Tier1Compiles.Load()),
		slog.Int64("tier2_trace_compiles", c.Tier2TraceCompiles.Load()),
		slog.Int64("tier2_side_exits", c.Tier2SideExits.Load()),
		slog.Int64("snapshots_taken", c.SnapshotsTaken.Load()),
	)
}
