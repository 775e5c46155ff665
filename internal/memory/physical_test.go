package memory

import "testing"

func TestPhysicalMemoryBoundsChecked(t *testing.T) {
	m := NewPhysicalMemory(16)
	if err := m.WriteBytes(10, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err == nil {
		t.Fatal("expected OutOfBoundsError")
	}
	if err := m.WriteBytes(8, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 4)
	if err := m.ReadBytes(8, dst); err != nil {
		t.Fatal(err)
	}
	for i, b := range dst {
		if b != byte(i+1) {
			t.Fatalf("byte %d: got %d", i, b)
		}
	}
}

func TestPhysicalMemoryReset(t *testing.T) {
	m := NewPhysicalMemory(4)
	m.WriteBytes(0, []byte{1, 2, 3, 4})
	m.Reset()
	dst := make([]byte, 4)
	m.ReadBytes(0, dst)
	for _, b := range dst {
		if b != 0 {
			t.Fatalf("expected zeroed memory, got %v", dst)
		}
	}
}
