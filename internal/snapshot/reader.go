// reader.go - snapshot envelope reader/validator (spec.md §4.5/§7, S6)

package snapshot

import "encoding/binary"

// MaxFields caps the number of TLV records one envelope may carry, per
// spec.md §7's "reject if the number of fields exceeds the implementation
// maximum" — guards against a corrupt/hostile snapshot claiming an
// unbounded record count.
const MaxFields = 4096

// Reader is a parsed, validated snapshot envelope.
type Reader struct {
	DeviceID    [4]byte
	FormatMinor uint16
	DeviceMajor uint16
	DeviceMinor uint16

	order  []uint16
	fields map[uint16][]byte
}

// Parse validates the header and walks every TLV record. Duplicate tags,
// truncated headers/bodies, and a field count past MaxFields are errors;
// there is no partial decode on failure (spec.md §7).
func Parse(data []byte, expectDeviceID string, maxSupportedDeviceMajor uint16) (*Reader, error) {
	if len(data) < headerLength {
		return nil, &TruncatedTLVError{Offset: 0}
	}
	var magic [4]byte
	copy(magic[:], data[0:4])
	if string(magic[:]) != Magic {
		return nil, &MagicMismatchError{Got: magic}
	}
	formatMajor := binary.LittleEndian.Uint16(data[4:6])
	if formatMajor != FormatMajor {
		return nil, &UnsupportedVersionError{FormatMajor: formatMajor}
	}
	formatMinor := binary.LittleEndian.Uint16(data[6:8])

	var deviceID [4]byte
	copy(deviceID[:], data[8:12])
	var wantID [4]byte
	copy(wantID[:], expectDeviceID)
	if deviceID != wantID {
		return nil, &DeviceMismatchError{Want: wantID, Got: deviceID}
	}
	deviceMajor := binary.LittleEndian.Uint16(data[12:14])
	if deviceMajor > maxSupportedDeviceMajor {
		return nil, &DeviceVersionError{DeviceMajor: deviceMajor}
	}
	deviceMinor := binary.LittleEndian.Uint16(data[14:16])

	r := &Reader{
		DeviceID:    deviceID,
		FormatMinor: formatMinor,
		DeviceMajor: deviceMajor,
		DeviceMinor: deviceMinor,
		fields:      make(map[uint16][]byte),
	}

	pos := headerLength
	for pos < len(data) {
		if pos+6 > len(data) {
			return nil, &TruncatedTLVError{Offset: pos}
		}
		tag := binary.LittleEndian.Uint16(data[pos : pos+2])
		length := binary.LittleEndian.Uint32(data[pos+2 : pos+6])
		pos += 6
		bodyEnd := pos + int(length)
		if bodyEnd < pos || bodyEnd > len(data) {
			return nil, &BodyOutOfBoundsError{Tag: tag, Offset: pos, Length: int(length)}
		}
		if _, dup := r.fields[tag]; dup {
			return nil, &DuplicateFieldTagError{Tag: tag}
		}
		if len(r.fields) >= MaxFields {
			return nil, &TooManyFieldsError{Count: len(r.fields) + 1, Max: MaxFields}
		}
		r.fields[tag] = data[pos:bodyEnd]
		r.order = append(r.order, tag)
		pos = bodyEnd
	}
	return r, nil
}

// Tags returns every field tag present, in ascending order (the order a
// correctly sorted Writer emitted them in).
func (r *Reader) Tags() []uint16 { return r.order }

func (r *Reader) field(tag uint16, wantLen int) ([]byte, error) {
	b, ok := r.fields[tag]
	if !ok {
		return nil, &FieldMissingError{Tag: tag}
	}
	if wantLen >= 0 && len(b) != wantLen {
		return nil, &FieldTypeError{Tag: tag, WantLen: wantLen, GotLen: len(b)}
	}
	return b, nil
}

func (r *Reader) FieldU8(tag uint16) (uint8, error) {
	b, err := r.field(tag, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) FieldU16(tag uint16) (uint16, error) {
	b, err := r.field(tag, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) FieldU32(tag uint16) (uint32, error) {
	b, err := r.field(tag, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) FieldU64(tag uint16) (uint64, error) {
	b, err := r.field(tag, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) FieldBool(tag uint16) (bool, error) {
	b, err := r.field(tag, 1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *Reader) FieldBytes(tag uint16) ([]byte, error) {
	b, err := r.field(tag, -1)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}
