// gpr.go - width-aware GPR access
//
// Implements spec.md §3's write-normalization rule: "Widths are normalized
// to 64 bits after write with zero-extension for W32, or sub-register
// preservation for narrower writes", plus the AH/BH/CH/DH high8 carve-out.

package cpustate

import "github.com/aerocore/aerocore/internal/isa"

// ReadGPR reads reg at width w (reg may be a high8 id: isa.AH/BH/CH/DH).
func (c *CpuState) ReadGPR(reg int, w isa.Width) uint64 {
	if base := isa.High8Base(reg); base >= 0 {
		return (c.GPR[base] >> 8) & 0xFF
	}
	return c.GPR[reg] & w.Mask()
}

// WriteGPR writes value (already masked to w's width by the caller, or
// masked here defensively) into reg at width w.
//
//   - W64: replace the full 64 bits.
//   - W32: replace the full 64 bits, zero-extending the 32-bit value.
//   - W16/W8: preserve the untouched bits of the existing 64-bit register.
//   - high8 (AH/BH/CH/DH): preserve everything except bits [15:8].
func (c *CpuState) WriteGPR(reg int, w isa.Width, value uint64) {
	if base := isa.High8Base(reg); base >= 0 {
		c.GPR[base] = (c.GPR[base] &^ 0xFF00) | ((value & 0xFF) << 8)
		return
	}
	value &= w.Mask()
	switch w {
	case isa.W64, isa.W32:
		c.GPR[reg] = value
	default:
		c.GPR[reg] = (c.GPR[reg] &^ w.Mask()) | value
	}
}
