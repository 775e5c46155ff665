// writer.go - snapshot envelope writer (spec.md §4.5/§6, S6)
//
// Grounded on the teacher's SaveSnapshotToFile (debug_snapshot.go), which
// builds a snapshot by appending fixed-width fields into a bytes.Buffer
// via binary.Write/WriteByte. AeroCore keeps that "accumulate into a
// buffer, serialize once" shape but replaces the teacher's ad hoc
// register-list format with the spec's sorted-by-tag TLV envelope, since
// every device's snapshot now needs the same bit-exact wire format to
// round-trip through Writer/Reader identically (testable property 10).

package snapshot

import (
	"bytes"
	"encoding/binary"
	"sort"
)

const (
	Magic        = "AERO"
	FormatMajor  = 1
	headerLength = 16
)

type tlvField struct {
	tag  uint16
	body []byte
}

// Writer accumulates typed fields for one device snapshot, then emits a
// bit-exact TLV envelope at Finish.
type Writer struct {
	deviceID      [4]byte
	deviceMajor   uint16
	deviceMinor   uint16
	formatMinor   uint16
	fields        []tlvField
}

// NewWriter starts a writer for device_id (a 4-character fourcc) and
// device_version (major, minor).
func NewWriter(deviceID string, deviceMajor, deviceMinor uint16) *Writer {
	w := &Writer{deviceMajor: deviceMajor, deviceMinor: deviceMinor}
	copy(w.deviceID[:], deviceID)
	return w
}

func (w *Writer) FieldU8(tag uint16, v uint8) { w.fields = append(w.fields, tlvField{tag, []byte{v}}) }

func (w *Writer) FieldU16(tag uint16, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.fields = append(w.fields, tlvField{tag, b[:]})
}

func (w *Writer) FieldU32(tag uint16, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.fields = append(w.fields, tlvField{tag, b[:]})
}

func (w *Writer) FieldU64(tag uint16, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.fields = append(w.fields, tlvField{tag, b[:]})
}

func (w *Writer) FieldBool(tag uint16, v bool) {
	var b byte
	if v {
		b = 1
	}
	w.fields = append(w.fields, tlvField{tag, []byte{b}})
}

func (w *Writer) FieldBytes(tag uint16, v []byte) {
	cp := make([]byte, len(v))
	copy(cp, v)
	w.fields = append(w.fields, tlvField{tag, cp})
}

// Finish sorts fields ascending by tag and serializes the header plus TLV
// records. Two writers built from the same sequence of Field* calls (in
// any insertion order, since Finish always sorts) produce byte-identical
// output.
func (w *Writer) Finish() []byte {
	sorted := make([]tlvField, len(w.fields))
	copy(sorted, w.fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].tag < sorted[j].tag })

	var buf bytes.Buffer
	buf.WriteString(Magic)
	writeU16(&buf, FormatMajor)
	writeU16(&buf, w.formatMinor)
	buf.Write(w.deviceID[:])
	writeU16(&buf, w.deviceMajor)
	writeU16(&buf, w.deviceMinor)

	for _, f := range sorted {
		writeU16(&buf, f.tag)
		writeU32(&buf, uint32(len(f.body)))
		buf.Write(f.body)
	}
	return buf.Bytes()
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
