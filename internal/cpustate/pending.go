// pending.go - interrupt/exception/software-interrupt event queue
//
// Adapted from the teacher's atomic irqPending/irqVector pair
// (cpu_x86.go's CPU_X86.irqLine/irqPending/irqVector) generalized into the
// small FIFO-plus-two-singletons shape spec.md §3 describes, since the
// spec distinguishes hardware, software, and fault delivery paths rather
// than folding them into one flag+vector.

package cpustate

// SoftwareInterrupt is a pending INT n, carrying the address execution
// should resume at once the handler IRETs.
type SoftwareInterrupt struct {
	Vector uint8
	NextIP uint64
}

// ExceptionKind identifies an architectural exception.
type ExceptionKind int

const (
	ExceptionNone ExceptionKind = iota
	ExceptionGP
	ExceptionTS
	ExceptionPF
	ExceptionUD
	ExceptionNP
	ExceptionSS
)

// ExceptionFault is a pending CPU-raised exception.
type ExceptionFault struct {
	Kind      ExceptionKind
	NextIP    uint64
	ErrorCode *uint32
	CR2       *uint64
}

// PendingEvents is the small event queue CpuState consults before
// executing each instruction in a batch.
type PendingEvents struct {
	external  []uint8
	software  *SoftwareInterrupt
	exception *ExceptionFault
}

// QueueExternal enqueues a hardware interrupt vector.
func (p *PendingEvents) QueueExternal(vector uint8) {
	p.external = append(p.external, vector)
}

// PeekExternal returns the head of the external-interrupt FIFO without
// removing it.
func (p *PendingEvents) PeekExternal() (uint8, bool) {
	if len(p.external) == 0 {
		return 0, false
	}
	return p.external[0], true
}

// PopExternal removes and returns the head of the external-interrupt
// FIFO.
func (p *PendingEvents) PopExternal() (uint8, bool) {
	v, ok := p.PeekExternal()
	if ok {
		p.external = p.external[1:]
	}
	return v, ok
}

// SetSoftware installs a pending software interrupt, replacing any
// previous one (spec.md §3: "at most one SoftwareInterrupt").
func (p *PendingEvents) SetSoftware(v SoftwareInterrupt) { p.software = &v }

// TakeSoftware removes and returns the pending software interrupt, if any.
func (p *PendingEvents) TakeSoftware() (SoftwareInterrupt, bool) {
	if p.software == nil {
		return SoftwareInterrupt{}, false
	}
	v := *p.software
	p.software = nil
	return v, true
}

// SetException installs a pending exception fault, replacing any previous
// one (spec.md §3: "at most one ExceptionFault").
func (p *PendingEvents) SetException(v ExceptionFault) { p.exception = &v }

// TakeException removes and returns the pending exception, if any.
func (p *PendingEvents) TakeException() (ExceptionFault, bool) {
	if p.exception == nil {
		return ExceptionFault{}, false
	}
	v := *p.exception
	p.exception = nil
	return v, true
}
