// mapped.go - guest-physical address space with holes over a dense store
//
// Grounded on the same sorted-disjoint-ranges idea as bus.go's overlay
// list, generalized further: instead of routing to one of several handler
// kinds, every mapping just offsets into one backing GuestMemory, and
// anything not covered reads as open-bus 0xFF / absorbs writes, matching
// spec.md §3's PCI-hole-below-4GiB use case.

package memory

import "sort"

// GuestMemory is the dense backing store MappedGuestMemory offsets into.
type GuestMemory interface {
	Size() uint64
	ReadBytes(offset uint64, dst []byte) error
	WriteBytes(offset uint64, src []byte) error
}

type mapping struct {
	physStart, physEnd uint64
	innerOffset        uint64
}

// MappedGuestMemory exposes a guest-physical space with holes over a
// dense inner store, e.g. for the PCI hole below 4GiB.
type MappedGuestMemory struct {
	inner    GuestMemory
	mappings []mapping
}

// NewMappedGuestMemory validates and installs the given mappings over
// inner. Mappings may be given in any order (they are sorted by PhysStart
// here) but must be pairwise disjoint in physical space,
// and each inner range must lie within inner's size. Mappings may span a
// 4GiB boundary in physical space; only the inner offset is bounds-checked.
func NewMappedGuestMemory(inner GuestMemory, maps []struct{ PhysStart, PhysEnd, InnerOffset uint64 }) (*MappedGuestMemory, error) {
	m := &MappedGuestMemory{inner: inner}
	sorted := append([]struct{ PhysStart, PhysEnd, InnerOffset uint64 }{}, maps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PhysStart < sorted[j].PhysStart })

	var prevEnd uint64
	havePrev := false
	for _, mp := range sorted {
		if mp.PhysEnd <= mp.PhysStart {
			return nil, &MappingError{Reason: "empty or reversed physical range"}
		}
		innerLen := mp.PhysEnd - mp.PhysStart
		if mp.InnerOffset+innerLen > inner.Size() || mp.InnerOffset+innerLen < mp.InnerOffset {
			return nil, &MappingError{Reason: "inner range exceeds backing store size"}
		}
		if havePrev && mp.PhysStart < prevEnd {
			return nil, &MappingError{Reason: "overlapping physical ranges"}
		}
		m.mappings = append(m.mappings, mapping{physStart: mp.PhysStart, physEnd: mp.PhysEnd, innerOffset: mp.InnerOffset})
		prevEnd = mp.PhysEnd
		havePrev = true
	}
	return m, nil
}

// find returns the mapping covering paddr, or nil if paddr falls in a hole.
func (m *MappedGuestMemory) find(paddr uint64) *mapping {
	idx := sort.Search(len(m.mappings), func(i int) bool { return m.mappings[i].physEnd > paddr })
	if idx < len(m.mappings) && m.mappings[idx].physStart <= paddr {
		return &m.mappings[idx]
	}
	return nil
}

// ReadBytes reads len(dst) bytes of guest-physical space starting at
// paddr. Bytes falling in holes read as 0xFF (open bus).
func (m *MappedGuestMemory) ReadBytes(paddr uint64, dst []byte) error {
	cursor := paddr
	end := paddr + uint64(len(dst))
	pos := uint64(0)
	for cursor < end {
		remaining := end - cursor
		mp := m.find(cursor)
		if mp == nil {
			// Determine how far the hole extends before the next mapping.
			idx := sort.Search(len(m.mappings), func(i int) bool { return m.mappings[i].physStart > cursor })
			n := remaining
			if idx < len(m.mappings) {
				if gap := m.mappings[idx].physStart - cursor; gap < n {
					n = gap
				}
			}
			for i := uint64(0); i < n; i++ {
				dst[pos+i] = 0xFF
			}
			cursor += n
			pos += n
			continue
		}
		n := mp.physEnd - cursor
		if n > remaining {
			n = remaining
		}
		innerOff := mp.innerOffset + (cursor - mp.physStart)
		if err := m.inner.ReadBytes(innerOff, dst[pos:pos+n]); err != nil {
			return err
		}
		cursor += n
		pos += n
	}
	return nil
}

// WriteBytes writes src into guest-physical space starting at paddr.
// Writes into holes succeed and are dropped.
func (m *MappedGuestMemory) WriteBytes(paddr uint64, src []byte) error {
	cursor := paddr
	end := paddr + uint64(len(src))
	pos := uint64(0)
	for cursor < end {
		remaining := end - cursor
		mp := m.find(cursor)
		if mp == nil {
			idx := sort.Search(len(m.mappings), func(i int) bool { return m.mappings[i].physStart > cursor })
			n := remaining
			if idx < len(m.mappings) {
				if gap := m.mappings[idx].physStart - cursor; gap < n {
					n = gap
				}
			}
			cursor += n
			pos += n
			continue
		}
		n := mp.physEnd - cursor
		if n > remaining {
			n = remaining
		}
		innerOff := mp.innerOffset + (cursor - mp.physStart)
		if err := m.inner.WriteBytes(innerOff, src[pos:pos+n]); err != nil {
			return err
		}
		cursor += n
		pos += n
	}
	return nil
}
