// image.go - byte-serialized CPU image (spec.md §4.3)
//
// Tier-1's reference interpreter and its WASM lowering must agree on
// exactly the same memory layout for CPU state, since the WASM module
// reads/writes this image through raw pointer arithmetic (cpu_ptr) rather
// than through cpustate.CpuState's Go struct fields. Image gives both
// sides one shared offset table, grounded on the teacher's fixed
// EAX..EDI/EIP/Flags register block (cpu_x86.go) generalized to the
// spec's 16-GPR/RFLAGS/RIP model.
package tier1ir

import (
	"encoding/binary"

	"github.com/aerocore/aerocore/internal/cpustate"
	"github.com/aerocore/aerocore/internal/isa"
)

const (
	OffGPR0  = 0                     // isa.NumGPRs * 8 bytes, GPR i at OffGPR0+i*8
	OffRFLAGS = OffGPR0 + isa.NumGPRs*8
	OffRIP    = OffRFLAGS + 8
	ImageSize = OffRIP + 8
)

// Image is the fixed-layout byte buffer both the reference interpreter
// and the codegen'd WASM module operate on.
type Image []byte

// NewImage allocates a zeroed image.
func NewImage() Image { return make(Image, ImageSize) }

// FromCpuState serializes the subset of CpuState that Tier-1 blocks can
// touch (GPRs, RFLAGS, RIP) into a fresh Image.
func FromCpuState(c *cpustate.CpuState) Image {
	img := NewImage()
	for i := 0; i < isa.NumGPRs; i++ {
		img.SetGPR(i, c.GPR[i])
	}
	img.SetRFLAGS(c.RFLAGS)
	img.SetRIP(c.RIP)
	return img
}

// WriteBack copies the image's registers back into a CpuState after a
// Tier-1 block has executed against it.
func (img Image) WriteBack(c *cpustate.CpuState) {
	for i := 0; i < isa.NumGPRs; i++ {
		c.GPR[i] = img.GPR(i)
	}
	c.RFLAGS = img.RFLAGS()
	c.RIP = img.RIP()
}

func (img Image) GPR(i int) uint64 {
	return binary.LittleEndian.Uint64(img[OffGPR0+i*8:])
}

func (img Image) SetGPR(i int, v uint64) {
	binary.LittleEndian.PutUint64(img[OffGPR0+i*8:], v)
}

func (img Image) RFLAGS() uint64 { return binary.LittleEndian.Uint64(img[OffRFLAGS:]) }

func (img Image) SetRFLAGS(v uint64) { binary.LittleEndian.PutUint64(img[OffRFLAGS:], v) }

func (img Image) RIP() uint64 { return binary.LittleEndian.Uint64(img[OffRIP:]) }

func (img Image) SetRIP(v uint64) { binary.LittleEndian.PutUint64(img[OffRIP:], v) }

// ReadReg reads reg (a GPR id or a high-8 alias id from isa) at width w,
// preserving the high8/AH-BH-CH-DH aliasing spec.md §3 requires.
func (img Image) ReadReg(reg int, w isa.Width) uint64 {
	if base := isa.High8Base(reg); base >= 0 {
		return (img.GPR(base) >> 8) & 0xFF
	}
	return img.GPR(reg) & w.Mask()
}

// WriteReg writes value into reg at width w. A W32 write zero-extends to
// 64 bits (spec.md §4.3); a high-8 write only touches bits [15:8] of its
// base register, leaving the rest untouched.
func (img Image) WriteReg(reg int, w isa.Width, value uint64) {
	if base := isa.High8Base(reg); base >= 0 {
		cur := img.GPR(base)
		img.SetGPR(base, (cur &^ 0xFF00) | ((value & 0xFF) << 8))
		return
	}
	switch w {
	case isa.W64:
		img.SetGPR(reg, value)
	case isa.W32:
		img.SetGPR(reg, value&0xFFFFFFFF)
	default:
		cur := img.GPR(reg)
		img.SetGPR(reg, (cur &^ w.Mask()) | (value & w.Mask()))
	}
}
