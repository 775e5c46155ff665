// bus.go - physical address router: ROM/MMIO overlays over flat RAM
//
// Adapted from the teacher's machine_bus.go MachineBus/IORegion model
// (start/end ranges with onRead/onWrite callbacks keyed by page), but
// generalized from a 32-bit word bus with a fixed page bitmap to an
// arbitrary-width byte bus with a sorted, binary-searched overlay list, as
// required by the bulk-access routing algorithm in spec.md §4.1.

package memory

import (
	"encoding/binary"
	"sort"
	"sync"
)

// MmioHandler services reads and writes to a registered MMIO range. The
// bus brackets every call with sequentially-consistent fences and never
// calls a handler with an access wider than 16 bytes (wider accesses are
// decomposed per-byte by the bus itself), so handlers never need to worry
// about partial-width tearing beyond the single byte/word they're given.
type MmioHandler interface {
	ReadBytes(addr uint64, dst []byte)
	WriteBytes(addr uint64, src []byte)
}

type overlayKind int

const (
	overlayROM overlayKind = iota
	overlayMMIO
)

// OverlayRegion is a non-RAM range that takes priority over RAM when
// routing a physical access.
type OverlayRegion struct {
	Start, End uint64 // [Start, End)
	kind       overlayKind
	rom        []byte
	handler    MmioHandler
}

// maxSingleCallAccess is the largest access the bus will forward to an
// MMIO handler in one call; wider accesses are decomposed per-byte.
const maxSingleCallAccess = 16

// MemoryBus routes bulk reads/writes to ROM, MMIO, or RAM.
//
// The routing fast path (TryReadBytes/TryWriteBytes) takes the overlay
// list under a read lock; only RegisterROM/RegisterMMIO take the write
// lock, matching spec.md §5's "mutates only its overlay list during
// registration" contract.
type MemoryBus struct {
	mu       sync.RWMutex
	ram      *PhysicalMemory
	overlays []OverlayRegion
}

// NewMemoryBus creates a bus backed by the given RAM region.
func NewMemoryBus(ram *PhysicalMemory) *MemoryBus {
	return &MemoryBus{ram: ram}
}

// RegisterROM installs a read-only overlay backed by data. Writes into the
// range are silently dropped (open-collector ROM behavior).
func (b *MemoryBus) RegisterROM(start uint64, data []byte) error {
	end := start + uint64(len(data))
	return b.registerOverlay(OverlayRegion{Start: start, End: end, kind: overlayROM, rom: data})
}

// RegisterMMIO installs an MMIO overlay over [start, end).
func (b *MemoryBus) RegisterMMIO(start, end uint64, handler MmioHandler) error {
	return b.registerOverlay(OverlayRegion{Start: start, End: end, kind: overlayMMIO, handler: handler})
}

func (b *MemoryBus) registerOverlay(o OverlayRegion) error {
	if o.End <= o.Start {
		return &InvalidRangeError{Start: o.Start, End: o.End}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := sort.Search(len(b.overlays), func(i int) bool { return b.overlays[i].Start >= o.Start })
	if idx > 0 {
		prev := b.overlays[idx-1]
		if prev.End > o.Start {
			return &OverlapError{NewStart: o.Start, NewEnd: o.End, ExistingStart: prev.Start, ExistingEnd: prev.End}
		}
	}
	if idx < len(b.overlays) {
		next := b.overlays[idx]
		if o.End > next.Start {
			return &OverlapError{NewStart: o.Start, NewEnd: o.End, ExistingStart: next.Start, ExistingEnd: next.End}
		}
	}

	b.overlays = append(b.overlays, OverlayRegion{})
	copy(b.overlays[idx+1:], b.overlays[idx:])
	b.overlays[idx] = o
	return nil
}

// overlayAt returns the overlay containing cursor; otherwise it returns a
// nil region plus the start address of the first overlay after cursor,
// with hasNext false when no overlay lies after it.
func (b *MemoryBus) overlayAt(cursor uint64) (region *OverlayRegion, nextStart uint64, hasNext bool) {
	idx := sort.Search(len(b.overlays), func(i int) bool { return b.overlays[i].End > cursor })
	if idx < len(b.overlays) {
		o := &b.overlays[idx]
		if o.Start <= cursor {
			return o, 0, false
		}
		return nil, o.Start, true
	}
	return nil, 0, false
}

// TryReadBytes reads len(dst) bytes starting at paddr, routing each
// sub-range to the overlay or RAM region that covers it.
func (b *MemoryBus) TryReadBytes(paddr uint64, dst []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.walk(paddr, uint64(len(dst)), func(region *OverlayRegion, cursor uint64, seg []byte) {
		if region.kind == overlayROM {
			relOff := cursor - region.Start
			copy(seg, region.rom[relOff:relOff+uint64(len(seg))])
		} else {
			b.fencedMMIORead(region.handler, cursor, seg)
		}
	}, func(cursor uint64, seg []byte) error {
		return b.ram.ReadBytes(cursor, seg)
	}, dst)
}

// TryWriteBytes writes src starting at paddr.
func (b *MemoryBus) TryWriteBytes(paddr uint64, src []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.walk(paddr, uint64(len(src)), func(region *OverlayRegion, cursor uint64, seg []byte) {
		if region.kind == overlayROM {
			return // open-collector: writes are dropped
		}
		b.fencedMMIOWrite(region.handler, cursor, seg)
	}, func(cursor uint64, seg []byte) error {
		return b.ram.WriteBytes(cursor, seg)
	}, src)
}

// walk advances a cursor across [paddr, paddr+length), invoking overlayFn
// for the portion of each sub-range covered by an overlay and ramFn for
// the remainder. buf is the caller's original dst/src slice, windowed per
// step so reads land back in it and writes are sourced from it.
func (b *MemoryBus) walk(paddr, length uint64, overlayFn func(region *OverlayRegion, cursor uint64, seg []byte), ramFn func(cursor uint64, seg []byte) error, buf []byte) error {
	cursor := paddr
	end := paddr + length
	for cursor < end {
		remaining := end - cursor
		pos := cursor - paddr
		region, nextStart, hasNext := b.overlayAt(cursor)
		if region != nil {
			n := region.End - cursor
			if n > remaining {
				n = remaining
			}
			overlayFn(region, cursor, buf[pos:pos+n])
			cursor += n
			continue
		}

		// No overlay covers cursor: serve from RAM up to the lesser of
		// ram_end and the next overlay start.
		limit := b.ram.Size()
		if hasNext && nextStart < limit {
			limit = nextStart
		}
		if cursor >= limit {
			return &UnmappedError{Paddr: cursor, Len: remaining}
		}
		n := limit - cursor
		if n > remaining {
			n = remaining
		}
		if err := ramFn(cursor, buf[pos:pos+n]); err != nil {
			return err
		}
		cursor += n
	}
	return nil
}

func (b *MemoryBus) fencedMMIORead(h MmioHandler, addr uint64, dst []byte) {
	mmioFence()
	if len(dst) <= maxSingleCallAccess {
		h.ReadBytes(addr, dst)
	} else {
		for i := range dst {
			h.ReadBytes(addr+uint64(i), dst[i:i+1])
		}
	}
	mmioFence()
}

func (b *MemoryBus) fencedMMIOWrite(h MmioHandler, addr uint64, src []byte) {
	mmioFence()
	if len(src) <= maxSingleCallAccess {
		h.WriteBytes(addr, src)
	} else {
		for i := range src {
			h.WriteBytes(addr+uint64(i), src[i:i+1])
		}
	}
	mmioFence()
}

// --- width-specific little-endian wrappers -------------------------------

func (b *MemoryBus) ReadU8(addr uint64) (uint8, error) {
	var buf [1]byte
	if err := b.TryReadBytes(addr, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *MemoryBus) WriteU8(addr uint64, v uint8) error {
	return b.TryWriteBytes(addr, []byte{v})
}

func (b *MemoryBus) ReadU16(addr uint64) (uint16, error) {
	var buf [2]byte
	if err := b.TryReadBytes(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (b *MemoryBus) WriteU16(addr uint64, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return b.TryWriteBytes(addr, buf[:])
}

func (b *MemoryBus) ReadU32(addr uint64) (uint32, error) {
	var buf [4]byte
	if err := b.TryReadBytes(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (b *MemoryBus) WriteU32(addr uint64, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return b.TryWriteBytes(addr, buf[:])
}

func (b *MemoryBus) ReadU64(addr uint64) (uint64, error) {
	var buf [8]byte
	if err := b.TryReadBytes(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (b *MemoryBus) WriteU64(addr uint64, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return b.TryWriteBytes(addr, buf[:])
}

// ReadU128 returns the 128-bit little-endian value at addr as (lo, hi).
func (b *MemoryBus) ReadU128(addr uint64) (lo, hi uint64, err error) {
	var buf [16]byte
	if err := b.TryReadBytes(addr, buf[:]); err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint64(buf[0:8]), binary.LittleEndian.Uint64(buf[8:16]), nil
}

// WriteU128 writes a 128-bit little-endian value given as (lo, hi).
func (b *MemoryBus) WriteU128(addr uint64, lo, hi uint64) error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], lo)
	binary.LittleEndian.PutUint64(buf[8:16], hi)
	return b.TryWriteBytes(addr, buf[:])
}

// MustReadU32 panics on error; reserved for host-bug-only call sites per
// spec.md §7 ("the infallible read_u32 etc. panic (host bug)").
func (b *MemoryBus) MustReadU32(addr uint64) uint32 {
	v, err := b.ReadU32(addr)
	if err != nil {
		panic(err)
	}
	return v
}

// MustWriteU32 panics on error; see MustReadU32.
func (b *MemoryBus) MustWriteU32(addr uint64, v uint32) {
	if err := b.WriteU32(addr, v); err != nil {
		panic(err)
	}
}
