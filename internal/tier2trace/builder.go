// builder.go - TraceBuilder.BuildFrom (spec.md §4.4 "Trace formation")
//
// "Follow the hottest successor edge (argmax over edge_counts) until
// revisiting the entry (-> Loop), exceeding max_blocks/max_instrs, or
// hitting a Return/SideExit. For each branch along the trace, the
// off-trace edge becomes a Guard{cond, expected, exit_rip=off_block's
// start_rip}. For each distinct code page touched, emit one
// GuardCodeVersion{page, expected, exit_rip=entry_start_rip} in the
// prologue." Linearizes the walked tier2ir.Blocks into one straight-line
// tier2ir.Trace the way tier1ir already represents one block: since a
// tier2ir.Block's values never cross into another block (only GPRs and
// flags do, via RegFile/*flags), concatenation only needs to renumber
// each carried-over ValueRef's Idx by the running body offset — no
// cross-block value-merging is needed.
package tier2trace

import (
	"fmt"

	"github.com/aerocore/aerocore/internal/tier2ir"
)

// Default walk limits; spec.md names max_blocks/max_instrs as tunable
// budget inputs without fixing their values, so callers override these
// through TraceBuilder's fields the way tier0's budget knobs work.
const (
	DefaultMaxBlocks = 16
	DefaultMaxInstrs = 256
)

// TraceBuilder walks one Function guided by a ProfileData snapshot.
type TraceBuilder struct {
	Fn        *tier2ir.Function
	Profile   *ProfileData
	MaxBlocks int
	MaxInstrs int
}

// NewTraceBuilder returns a TraceBuilder with the default walk budget.
func NewTraceBuilder(fn *tier2ir.Function, profile *ProfileData) *TraceBuilder {
	return &TraceBuilder{Fn: fn, Profile: profile, MaxBlocks: DefaultMaxBlocks, MaxInstrs: DefaultMaxInstrs}
}

func (tb *TraceBuilder) maxBlocks() int {
	if tb.MaxBlocks > 0 {
		return tb.MaxBlocks
	}
	return DefaultMaxBlocks
}

func (tb *TraceBuilder) maxInstrs() int {
	if tb.MaxInstrs > 0 {
		return tb.MaxInstrs
	}
	return DefaultMaxInstrs
}

func remapToBody(v tier2ir.ValueRef, blockID tier2ir.BlockId, offset int) tier2ir.ValueRef {
	if !v.IsValid() || v.Block != blockID {
		return v
	}
	return tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: offset + v.Idx}
}

func remapInstrToBody(instr tier2ir.Instr, blockID tier2ir.BlockId, offset int) tier2ir.Instr {
	instr.Lhs = remapToBody(instr.Lhs, blockID, offset)
	instr.Rhs = remapToBody(instr.Rhs, blockID, offset)
	instr.Base = remapToBody(instr.Base, blockID, offset)
	instr.Index = remapToBody(instr.Index, blockID, offset)
	instr.Addr = remapToBody(instr.Addr, blockID, offset)
	instr.Value = remapToBody(instr.Value, blockID, offset)
	instr.Cond = remapToBody(instr.Cond, blockID, offset)
	return instr
}

// BuildFrom walks tb.Fn starting at start, producing the straight-line
// Trace spec.md §4.4 describes.
func (tb *TraceBuilder) BuildFrom(start tier2ir.BlockId) (*tier2ir.Trace, error) {
	entry := tb.Fn.Block(start)
	if entry == nil {
		return nil, fmt.Errorf("tier2trace: unknown entry block %d", start)
	}

	tr := &tier2ir.Trace{EntryStartRIP: entry.StartRIP}
	touchedPages := make(map[uint64]bool)
	blockID := start
	blocksWalked := 0

	for {
		b := tb.Fn.Block(blockID)
		if b == nil {
			return nil, fmt.Errorf("tier2trace: unknown block %d", blockID)
		}
		blocksWalked++

		page := PageOf(b.StartRIP)
		if !touchedPages[page] {
			touchedPages[page] = true
			tr.Prologue = append(tr.Prologue, tier2ir.Instr{
				Kind:        tier2ir.OpGuardCodeVersion,
				Page:        page,
				ExpectedVer: tb.Profile.CodePageVersions[page],
				ExitRIP:     tr.EntryStartRIP,
			})
		}

		offset := len(tr.Body)
		for _, instr := range b.Instrs {
			tr.Body = append(tr.Body, remapInstrToBody(instr, b.ID, offset))
		}

		overBudget := blocksWalked >= tb.maxBlocks() || len(tr.Body) >= tb.maxInstrs()

		switch b.Term.Kind {
		case tier2ir.TermReturn:
			return tr, nil

		case tier2ir.TermJump:
			if overBudget || b.Term.Target == start {
				if b.Term.Target == start {
					tr.IsLoop = true
					tr.LoopBackTo = tr.EntryStartRIP
				} else {
					tb.emitUnconditionalExit(tr, tb.Fn.Block(b.Term.Target).StartRIP)
				}
				return tr, nil
			}
			blockID = b.Term.Target

		case tier2ir.TermBranch:
			// Branch conditions are boolean (0 or 1), the shape every
			// alu comparison op (LtU, Eq) produces; Guard's equality
			// test against a literal Expected only makes sense under
			// that assumption.
			cond := remapToBody(b.Term.Cond, b.ID, offset)
			hot, cold := tb.hotSuccessor(b)
			coldBlock := tb.Fn.Block(cold)
			expected := uint64(0)
			if hot == b.Term.True {
				expected = 1
			}
			tr.Body = append(tr.Body, tier2ir.Instr{
				Kind:     tier2ir.OpGuard,
				Cond:     cond,
				Expected: expected, // exits to the cold block once cond stops matching the hot path
				ExitRIP:  coldBlock.StartRIP,
			})

			if overBudget {
				tb.emitUnconditionalExit(tr, tb.Fn.Block(hot).StartRIP)
				return tr, nil
			}
			if hot == start {
				tr.IsLoop = true
				tr.LoopBackTo = tr.EntryStartRIP
				return tr, nil
			}
			blockID = hot

		default:
			return nil, fmt.Errorf("tier2trace: unknown terminator kind %d in block %d", b.Term.Kind, b.ID)
		}
	}
}

// hotSuccessor picks the True/False edge argmax over tb.Profile's
// EdgeCounts, returning (hot, cold).
func (tb *TraceBuilder) hotSuccessor(b *tier2ir.Block) (hot, cold tier2ir.BlockId) {
	trueCount := tb.Profile.EdgeCounts[Edge{From: b.ID, To: b.Term.True}]
	falseCount := tb.Profile.EdgeCounts[Edge{From: b.ID, To: b.Term.False}]
	if falseCount > trueCount {
		return b.Term.False, b.Term.True
	}
	return b.Term.True, b.Term.False
}

// emitUnconditionalExit appends a Guard that always fails, the shape a
// budget-exceeded walk exits through: spec.md doesn't give this case its
// own instruction, so it's modeled as a Guard whose condition can never
// match its expectation, exiting to the block the walk would otherwise
// have continued into.
func (tb *TraceBuilder) emitUnconditionalExit(tr *tier2ir.Trace, nextRIP uint64) {
	zero := tier2ir.ValueRef{Block: tier2ir.TraceBody, Idx: len(tr.Body)}
	tr.Body = append(tr.Body, tier2ir.Instr{Kind: tier2ir.OpConst, ConstVal: 0})
	tr.Body = append(tr.Body, tier2ir.Instr{Kind: tier2ir.OpGuard, Cond: zero, Expected: 1, ExitRIP: nextRIP})
}
