// errors.go - decode error kinds (spec.md §7 "Decode" kind)

package snapshot

import "fmt"

type MagicMismatchError struct{ Got [4]byte }

func (e *MagicMismatchError) Error() string {
	return fmt.Sprintf("snapshot: bad magic %q, want \"AERO\"", e.Got[:])
}

type UnsupportedVersionError struct{ FormatMajor uint16 }

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("snapshot: unsupported format_major %d", e.FormatMajor)
}

type DeviceMismatchError struct{ Want, Got [4]byte }

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("snapshot: device_id %q does not match expected %q", e.Got[:], e.Want[:])
}

type DeviceVersionError struct{ DeviceMajor uint16 }

func (e *DeviceVersionError) Error() string {
	return fmt.Sprintf("snapshot: unsupported device_major %d", e.DeviceMajor)
}

type TruncatedTLVError struct{ Offset int }

func (e *TruncatedTLVError) Error() string {
	return fmt.Sprintf("snapshot: truncated TLV header at offset %d", e.Offset)
}

type BodyOutOfBoundsError struct {
	Tag            uint16
	Offset, Length int
}

func (e *BodyOutOfBoundsError) Error() string {
	return fmt.Sprintf("snapshot: tag %d body [%d, %d) exceeds buffer", e.Tag, e.Offset, e.Offset+e.Length)
}

type DuplicateFieldTagError struct{ Tag uint16 }

func (e *DuplicateFieldTagError) Error() string {
	return fmt.Sprintf("snapshot: DuplicateFieldTag(%d)", e.Tag)
}

type TooManyFieldsError struct{ Count, Max int }

func (e *TooManyFieldsError) Error() string {
	return fmt.Sprintf("snapshot: %d fields exceeds implementation maximum %d", e.Count, e.Max)
}

// FieldMissingError is returned by Reader.Field* accessors when the
// requested tag wasn't present in the decoded envelope.
type FieldMissingError struct{ Tag uint16 }

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("snapshot: field tag %d not present", e.Tag)
}

// FieldTypeError is returned when a field is present but its stored width
// doesn't match the accessor requested.
type FieldTypeError struct {
	Tag      uint16
	WantLen  int
	GotLen   int
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("snapshot: field tag %d is %d bytes, accessor wants %d", e.Tag, e.GotLen, e.WantLen)
}
