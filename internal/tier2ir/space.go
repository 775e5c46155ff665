package tier2ir

// Prologue/Body are the two addressing spaces a Trace's ValueRefs can
// live in once TraceBuilder has linearized a Function into one: a
// value's BlockId names which list (Trace.Prologue or Trace.Body) its
// producing instruction sits in, since both are flat slices rather
// than a single multi-block Function anymore.
const (
	TraceProlog BlockId = 0
	TraceBody   BlockId = 1
)
