// exit.go - batch termination reasons
//
// Mirrors the teacher's BreakpointEvent/DebugX86 "why did execution stop"
// shape (debug_cpu_x86.go) but generalized into the typed BatchExit union
// spec.md §4.2/§5 describes: a batch yields at branches, halts, MMIO
// exits, and exceptions so the outer scheduler can poll external state.

package tier0

import "github.com/aerocore/aerocore/internal/cpustate"

// ExitKind discriminates the BatchExit union.
type ExitKind int

const (
	Completed ExitKind = iota
	Branch
	Halted
	BiosInterrupt
	Exception
	Assist
	CpuExit
)

// BatchExit is the reason a batch stopped before exhausting its budget
// (or Completed, if it ran the full budget without a natural boundary).
type BatchExit struct {
	Kind ExitKind

	// BiosInterrupt
	Vector uint8

	// Exception
	FaultKind cpustate.ExceptionKind
	ErrorCode *uint32
	CR2       *uint64

	// Assist / CpuExit
	Reason string
	Code   int
}

// BatchResult is RunBatch's return value.
type BatchResult struct {
	Executed int
	Exit     BatchExit
}
