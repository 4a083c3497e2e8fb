package frame

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// HeaderLen is the fixed header size: source, length, command.
	HeaderLen = 3
	// MarkerLen is the start-of-frame marker size.
	MarkerLen = 2
	// DefaultMaxPayload bounds the length byte. MACS payloads observed on
	// appliance buses stay well below it.
	DefaultMaxPayload = 128
)

// Start-of-frame markers. Each one selects the Type of the frame that follows.
var (
	MarkerNormal = [MarkerLen]byte{0xC9, 0x2D}
	MarkerDiag   = [MarkerLen]byte{0xC9, 0x3A}
)

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrShortPayload    = errors.New("frame: short payload")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Type is selected by the start-of-frame marker that preceded the header.
type Type uint8

// Frame types, logged as "Normal" and "Diag".
const (
	TypeNormal Type = iota // after MarkerNormal
	TypeDiag               // after MarkerDiag
)

func (t Type) String() string {
	switch t {
	case TypeNormal:
		return "Normal"
	case TypeDiag:
		return "Diag"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Marker returns the start-of-frame bytes for t.
func (t Type) Marker() [MarkerLen]byte {
	if t == TypeDiag {
		return MarkerDiag
	}
	return MarkerNormal
}

// MatchMarker reports which frame type a 2-byte window announces.
func MatchMarker(window [MarkerLen]byte) (Type, bool) {
	switch window {
	case MarkerNormal:
		return TypeNormal, true
	case MarkerDiag:
		return TypeDiag, true
	default:
		return 0, false
	}
}

// Frame is one decoded bus message. len(Payload) == int(Length) always holds.
type Frame struct {
	Type    Type
	Source  byte
	Length  byte
	Command byte
	Payload []byte
}

// PayloadHex renders the payload as lowercase, space separated octets.
func (f Frame) PayloadHex() string {
	return HexOctets(f.Payload)
}

// HexOctets renders b as "01 02 ff".
func HexOctets(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	const digits = "0123456789abcdef"
	var sb strings.Builder
	sb.Grow(len(b)*3 - 1)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(digits[v>>4])
		sb.WriteByte(digits[v&0x0f])
	}
	return sb.String()
}

// Limits constrains the length byte accepted by Read.
type Limits struct {
	MaxPayload int
}

func DefaultLimits() Limits {
	return Limits{MaxPayload: DefaultMaxPayload}
}

// FramingError reports a frame that could not be completed. The scan loop
// discards it and resynchronizes.
type FramingError struct {
	Err  error
	Want int
	Got  int
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("%v: want=%d got=%d", e.Err, e.Want, e.Got)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// Reason is a stable label for metrics.
func (e *FramingError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrShortHeader):
		return "short_header"
	case errors.Is(e.Err, ErrShortPayload):
		return "short_payload"
	case errors.Is(e.Err, ErrPayloadTooLarge):
		return "payload_too_large"
	default:
		return "other"
	}
}

// IsFraming reports whether err is a recoverable framing failure.
func IsFraming(err error) bool {
	var fe *FramingError
	return errors.As(err, &fe)
}

// ReadTimed fills buf from r until it is full, r fails, or a read returns
// no bytes. Serial ports return (0, nil) when their read timeout elapses, so
// a short count with a nil error means the line went quiet.
func ReadTimed(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, nil
		}
	}
	return n, nil
}

// Read decodes header and payload from r, which must be positioned right
// after a start-of-frame marker of type typ.
func Read(r io.Reader, typ Type, limits Limits) (Frame, error) {
	var hdr [HeaderLen]byte
	n, err := ReadTimed(r, hdr[:])
	if n < HeaderLen {
		if err != nil && !errors.Is(err, io.EOF) {
			return Frame{}, err
		}
		return Frame{}, &FramingError{Err: ErrShortHeader, Want: HeaderLen, Got: n}
	}

	f := Frame{
		Type:    typ,
		Source:  hdr[0],
		Length:  hdr[1],
		Command: hdr[2],
	}
	if int(f.Length) > limits.MaxPayload {
		return Frame{}, &FramingError{Err: ErrPayloadTooLarge, Want: limits.MaxPayload, Got: int(f.Length)}
	}

	f.Payload = make([]byte, f.Length)
	if f.Length == 0 {
		return f, nil
	}
	n, err = ReadTimed(r, f.Payload)
	if n < int(f.Length) {
		if err != nil && !errors.Is(err, io.EOF) {
			return Frame{}, err
		}
		return Frame{}, &FramingError{Err: ErrShortPayload, Want: int(f.Length), Got: n}
	}
	return f, nil
}

// Append encodes f with its start-of-frame marker onto dst.
func Append(dst []byte, f Frame) []byte {
	m := f.Type.Marker()
	dst = append(dst, m[0], m[1], f.Source, byte(len(f.Payload)), f.Command)
	return append(dst, f.Payload...)
}
