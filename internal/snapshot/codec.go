// codec.go - nested byte-level codec for variable-size field payloads
// (spec.md §4.5)
//
// A snapshot field's body is itself sometimes a structured blob (a device
// queue, a ring buffer) rather than one scalar. Encoder/Decoder give that
// body its own tiny little-endian wire format, independent of the TLV
// envelope itself.

package snapshot

import (
	"encoding/binary"
	"fmt"
)

// Encoder appends values to an in-progress field payload.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) U8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) Bool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (e *Encoder) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) I32(v int32) { e.U32(uint32(v)) }

func (e *Encoder) FixedBytes(v []byte) { e.buf = append(e.buf, v...) } // no length prefix

func (e *Encoder) VecU8(v []uint8) {
	e.U32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *Encoder) VecBytes(v [][]byte) {
	e.U32(uint32(len(v)))
	for _, elem := range v {
		e.VecU8(elem)
	}
}

// Decoder reads values out of a field payload in the order Encoder wrote
// them. It never pre-allocates a slice from an untrusted length prefix:
// every element is appended one at a time, so a corrupt huge count fails
// with ErrShortBuffer on the first missing element rather than an
// out-of-memory allocation (spec.md §4.5).
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// ErrShortBuffer is returned by any Decoder accessor that runs past the
// end of the payload.
type ErrShortBuffer struct {
	Want, Have int
}

func (e *ErrShortBuffer) Error() string {
	return fmt.Sprintf("snapshot: codec short buffer: want %d bytes, have %d", e.Want, e.Have)
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, &ErrShortBuffer{Want: n, Have: len(d.buf) - d.pos}
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) U8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.U8()
	return v != 0, err
}

func (d *Decoder) U16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) I32() (int32, error) {
	v, err := d.U32()
	return int32(v), err
}

func (d *Decoder) FixedBytes(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, n)
	copy(cp, b)
	return cp, nil
}

func (d *Decoder) VecU8() ([]uint8, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	out := make([]uint8, 0, minPreallocHint(n))
	for i := uint32(0); i < n; i++ {
		v, err := d.U8()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *Decoder) VecBytes() ([][]byte, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, minPreallocHint(n))
	for i := uint32(0); i < n; i++ {
		v, err := d.VecU8()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// minPreallocHint bounds an untrusted count's influence on the initial
// slice capacity so a forged huge count can't force a large allocation
// before the first short-read error surfaces.
func minPreallocHint(n uint32) int {
	const cap = 64
	if n > cap {
		return cap
	}
	return int(n)
}
