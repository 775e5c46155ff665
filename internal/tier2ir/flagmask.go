// flagmask.go - packed RFLAGS-bit-position flag set (spec.md §4.4, §9)
//
// "Use a packed FlagMask bitset over the six RFLAGS bit positions. This
// collapses 'write CF only' vs 'write all flags' into a first-class
// value that passes through optimization passes cleanly." Reuses the
// RFLAGS bit positions internal/isa already defines rather than
// renumbering 0-5, so a FlagMask and an RFLAGS snapshot are directly
// comparable with a plain bitwise AND throughout tier2opt/tier2exec.
package tier2ir

import "github.com/aerocore/aerocore/internal/isa"

// FlagMask is a subset of {CF,PF,AF,ZF,SF,OF}, packed at their RFLAGS
// bit positions.
type FlagMask uint64

// AllFlags is the full {CF,PF,AF,ZF,SF,OF} set.
const AllFlags FlagMask = FlagMask(isa.FlagCF | isa.FlagPF | isa.FlagAF | isa.FlagZF | isa.FlagSF | isa.FlagOF)

func (m FlagMask) IsEmpty() bool          { return m == 0 }
func (m FlagMask) Intersects(o FlagMask) bool { return m&o != 0 }
func (m FlagMask) Contains(o FlagMask) bool   { return m&o == o }
func (m FlagMask) Insert(o FlagMask) FlagMask { return m | o }
func (m FlagMask) Remove(o FlagMask) FlagMask { return m &^ o }
func (m FlagMask) Union(o FlagMask) FlagMask     { return m | o }
func (m FlagMask) Intersection(o FlagMask) FlagMask { return m & o }

// FlagValues is eval_binop's flag half of its result, keyed the same way
// alu.Flags is; tier2ir keeps its own copy since callers (tier2opt's
// SetFlags folding) need to pack/mask it independently of alu's type.
type FlagValues struct {
	CF, PF, AF, ZF, SF, OF bool
}

// Pack returns only the bits present in mask.
func (v FlagValues) Pack(mask FlagMask) FlagMask {
	var out FlagMask
	if mask.Intersects(FlagMask(isa.FlagCF)) && v.CF {
		out |= FlagMask(isa.FlagCF)
	}
	if mask.Intersects(FlagMask(isa.FlagPF)) && v.PF {
		out |= FlagMask(isa.FlagPF)
	}
	if mask.Intersects(FlagMask(isa.FlagAF)) && v.AF {
		out |= FlagMask(isa.FlagAF)
	}
	if mask.Intersects(FlagMask(isa.FlagZF)) && v.ZF {
		out |= FlagMask(isa.FlagZF)
	}
	if mask.Intersects(FlagMask(isa.FlagSF)) && v.SF {
		out |= FlagMask(isa.FlagSF)
	}
	if mask.Intersects(FlagMask(isa.FlagOF)) && v.OF {
		out |= FlagMask(isa.FlagOF)
	}
	return out
}
