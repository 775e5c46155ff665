package memory

import "testing"

func TestMappedGuestMemoryHolesReadOpenBus(t *testing.T) {
	inner := NewPhysicalMemory(0x1000)
	inner.WriteBytes(0, []byte{1, 2, 3, 4})
	m, err := NewMappedGuestMemory(inner, []struct{ PhysStart, PhysEnd, InnerOffset uint64 }{
		{PhysStart: 0xA0000000, PhysEnd: 0xA0000004, InnerOffset: 0},
	})
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 8)
	if err := m.ReadBytes(0xA0000000, dst); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4, 0xFF, 0xFF, 0xFF, 0xFF}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, dst[i], want[i])
		}
	}
}

func TestMappedGuestMemoryHoleWritesDropped(t *testing.T) {
	inner := NewPhysicalMemory(0x10)
	m, err := NewMappedGuestMemory(inner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.WriteBytes(0x1000, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
}

func TestMappedGuestMemorySpanning4GiB(t *testing.T) {
	inner := NewPhysicalMemory(0x1000)
	m, err := NewMappedGuestMemory(inner, []struct{ PhysStart, PhysEnd, InnerOffset uint64 }{
		{PhysStart: 0xFFFFFF00, PhysEnd: 0x100000100, InnerOffset: 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.WriteBytes(0xFFFFFF00, []byte{0xAB}); err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 1)
	if err := m.ReadBytes(0xFFFFFF00, dst); err != nil {
		t.Fatal(err)
	}
	if dst[0] != 0xAB {
		t.Fatalf("got %d", dst[0])
	}
}

func TestMappedGuestMemoryRejectsOverflow(t *testing.T) {
	inner := NewPhysicalMemory(0x10)
	_, err := NewMappedGuestMemory(inner, []struct{ PhysStart, PhysEnd, InnerOffset uint64 }{
		{PhysStart: 0, PhysEnd: 0x20, InnerOffset: 0},
	})
	if err == nil {
		t.Fatal("expected MappingError for inner range exceeding store size")
	}
}

func TestMappedGuestMemoryRejectsOverlap(t *testing.T) {
	inner := NewPhysicalMemory(0x100)
	_, err := NewMappedGuestMemory(inner, []struct{ PhysStart, PhysEnd, InnerOffset uint64 }{
		{PhysStart: 0, PhysEnd: 0x10, InnerOffset: 0},
		{PhysStart: 0x8, PhysEnd: 0x18, InnerOffset: 0x10},
	})
	if err == nil {
		t.Fatal("expected MappingError for overlapping ranges")
	}
}
