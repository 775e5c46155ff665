package memory

import (
	"encoding/binary"
	"errors"
	"testing"
)

type recordingHandler struct {
	reads     []uint64
	readCalls int
	writes    map[uint64]byte
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{writes: make(map[uint64]byte)}
}

func (h *recordingHandler) ReadBytes(addr uint64, dst []byte) {
	h.readCalls++
	for i := range dst {
		h.reads = append(h.reads, addr+uint64(i))
		dst[i] = byte(addr + uint64(i))
	}
}

func (h *recordingHandler) WriteBytes(addr uint64, src []byte) {
	for i, b := range src {
		h.writes[addr+uint64(i)] = b
	}
}

func newTestBus(size uint64) *MemoryBus {
	return NewMemoryBus(NewPhysicalMemory(size))
}

// TestRoutingCompleteness: spec.md §8.1 - a bulk access that succeeds
// touches each byte in [paddr, paddr+len) exactly once.
func TestRoutingCompleteness(t *testing.T) {
	bus := newTestBus(0x10000)
	h := newRecordingHandler()
	if err := bus.RegisterMMIO(0x100, 0x110, h); err != nil {
		t.Fatal(err)
	}
	if err := bus.RegisterROM(0x200, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 0x20)
	if err := bus.TryReadBytes(0xF8, dst); err != nil {
		t.Fatal(err)
	}
	// Bytes 0xF8..0x100 from RAM (zero), 0x100..0x110 from MMIO, rest RAM.
	for i := 0x100; i < 0x110; i++ {
		want := byte(i)
		got := dst[i-0xF8]
		if got != want {
			t.Fatalf("byte 0x%x: got %d want %d", i, got, want)
		}
	}
	seen := make(map[uint64]int)
	for _, a := range h.reads {
		seen[a]++
	}
	for a, n := range seen {
		if n != 1 {
			t.Fatalf("address 0x%x touched %d times, want 1", a, n)
		}
	}
}

// TestROMImmutability: spec.md §8.2.
func TestROMImmutability(t *testing.T) {
	bus := newTestBus(0x1000)
	rom := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := bus.RegisterROM(0x300, rom); err != nil {
		t.Fatal(err)
	}
	if err := bus.TryWriteBytes(0x300, []byte{0, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 4)
	if err := bus.TryReadBytes(0x300, got); err != nil {
		t.Fatal(err)
	}
	for i, b := range got {
		if b != rom[i] {
			t.Fatalf("ROM byte %d mutated: got %d want %d", i, b, rom[i])
		}
	}
}

// TestOverlayDisjointness: spec.md §8.3.
func TestOverlayDisjointness(t *testing.T) {
	bus := newTestBus(0x1000)
	if err := bus.RegisterROM(0x100, make([]byte, 0x10)); err != nil {
		t.Fatal(err)
	}
	if err := bus.RegisterMMIO(0x108, 0x120, newRecordingHandler()); err == nil {
		t.Fatal("expected overlap error")
	} else {
		var overlapErr *OverlapError
		if !errors.As(err, &overlapErr) {
			t.Fatalf("expected *OverlapError, got %T", err)
		}
	}
	if err := bus.RegisterMMIO(0x110, 0x120, newRecordingHandler()); err != nil {
		t.Fatal(err)
	}
	// List stays sorted and disjoint.
	for i := 1; i < len(bus.overlays); i++ {
		if bus.overlays[i-1].End > bus.overlays[i].Start {
			t.Fatalf("overlays not disjoint: %+v %+v", bus.overlays[i-1], bus.overlays[i])
		}
	}
}

func TestUnmappedAccessFails(t *testing.T) {
	bus := newTestBus(0x100)
	dst := make([]byte, 4)
	err := bus.TryReadBytes(0x200, dst)
	var unmapped *UnmappedError
	if !errors.As(err, &unmapped) {
		t.Fatalf("expected *UnmappedError, got %v", err)
	}
}

func TestInvalidRange(t *testing.T) {
	bus := newTestBus(0x100)
	if err := bus.RegisterMMIO(0x10, 0x10, newRecordingHandler()); err == nil {
		t.Fatal("expected InvalidRangeError for empty range")
	}
}

func TestWidthWrappersLittleEndian(t *testing.T) {
	bus := newTestBus(0x100)
	if err := bus.WriteU32(0x10, 0x12345678); err != nil {
		t.Fatal(err)
	}
	got, err := bus.ReadU32(0x10)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x12345678 {
		t.Fatalf("got 0x%x", got)
	}
	raw := make([]byte, 4)
	if err := bus.TryReadBytes(0x10, raw); err != nil {
		t.Fatal(err)
	}
	if binary.LittleEndian.Uint32(raw) != 0x12345678 {
		t.Fatal("not little-endian")
	}
}

func TestMMIOWiderThanSixteenBytesDecomposed(t *testing.T) {
	bus := newTestBus(0x1000)
	h := newRecordingHandler()
	if err := bus.RegisterMMIO(0x400, 0x440, h); err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 32)
	if err := bus.TryReadBytes(0x400, dst); err != nil {
		t.Fatal(err)
	}
	if len(h.reads) != 32 {
		t.Fatalf("expected 32 bytes read, got %d", len(h.reads))
	}
	if h.readCalls != 32 {
		t.Fatalf("expected per-byte decomposition (32 calls), got %d", h.readCalls)
	}
}
