package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/doitaljosh/macs-logger/internal/testutil/bytesrc"
)

func TestReadFrameRoundTrip(t *testing.T) {
	for _, length := range []int{0, 1, 2, 17, DefaultMaxPayload} {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i*7 + 0xA0)
		}
		in := Frame{Type: TypeDiag, Source: 0x65, Length: byte(length), Command: 0x2e, Payload: payload}
		wire := Append(nil, in)
		if !bytes.Equal(wire[:MarkerLen], MarkerDiag[:]) {
			t.Fatalf("marker mismatch: %x", wire[:MarkerLen])
		}

		out, err := Read(bytes.NewReader(wire[MarkerLen:]), TypeDiag, DefaultLimits())
		if err != nil {
			t.Fatalf("length=%d read frame: %v", length, err)
		}
		if out.Source != in.Source || out.Length != in.Length || out.Command != in.Command || out.Type != TypeDiag {
			t.Fatalf("header mismatch: got=%+v want=%+v", out, in)
		}
		if len(out.Payload) != int(out.Length) || !bytes.Equal(out.Payload, payload) {
			t.Fatalf("payload mismatch: got=%x want=%x", out.Payload, payload)
		}
		if out.PayloadHex() != HexOctets(payload) {
			t.Fatalf("hex mismatch: %q", out.PayloadHex())
		}
	}
}

func TestHexOctets(t *testing.T) {
	cases := map[string][]byte{
		"":         nil,
		"01":       {0x01},
		"01 02":    {0x01, 0x02},
		"ab cd ef": {0xAB, 0xCD, 0xEF},
		"00 ff 0a": {0x00, 0xFF, 0x0A},
	}
	for want, in := range cases {
		if got := HexOctets(in); got != want {
			t.Fatalf("HexOctets(%x)=%q want %q", in, got, want)
		}
	}
}

func TestMatchMarker(t *testing.T) {
	if typ, ok := MatchMarker([2]byte{0xC9, 0x2D}); !ok || typ != TypeNormal {
		t.Fatalf("normal marker not matched: %v %v", typ, ok)
	}
	if typ, ok := MatchMarker([2]byte{0xC9, 0x3A}); !ok || typ != TypeDiag {
		t.Fatalf("diag marker not matched: %v %v", typ, ok)
	}
	if _, ok := MatchMarker([2]byte{0x2D, 0xC9}); ok {
		t.Fatalf("reversed marker matched")
	}
	if TypeNormal.String() != "Normal" || TypeDiag.String() != "Diag" {
		t.Fatalf("unexpected type names: %s %s", TypeNormal, TypeDiag)
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := Read(bytesrc.New([]byte{0x45, 0x02}, bytesrc.Timeout), TypeNormal, DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	if !IsFraming(err) {
		t.Fatalf("expected framing error, got %T", err)
	}
}

func TestReadFrameShortPayloadOnTimeout(t *testing.T) {
	src := bytesrc.New([]byte{0x45, 0x02, 0x6C, 0x01}, bytesrc.Timeout, []byte{0xC9, 0x2D})
	_, err := Read(src, TypeNormal, DefaultLimits())
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
	var fe *FramingError
	if !errors.As(err, &fe) || fe.Want != 2 || fe.Got != 1 {
		t.Fatalf("unexpected framing detail: %+v", fe)
	}
	// The bytes after the timeout remain for the scanner.
	var next [2]byte
	if n, _ := ReadTimed(src, next[:]); n != 2 || next != MarkerNormal {
		t.Fatalf("expected marker after stall, got n=%d %x", n, next)
	}
}

func TestReadFramePayloadTooLarge(t *testing.T) {
	wire := []byte{0x45, DefaultMaxPayload + 1, 0x6C}
	_, err := Read(bytes.NewReader(wire), TypeNormal, DefaultLimits())
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	_, err = Read(bytes.NewReader([]byte{0x45, 0xFF, 0x6C}), TypeNormal, Limits{MaxPayload: 255})
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload with full bound, got %v", err)
	}
}

func TestReadFrameTransportErrorIsNotFraming(t *testing.T) {
	boom := errors.New("device gone")
	src := bytesrc.New([]byte{0x45})
	src.Err = boom
	_, err := Read(src, TypeNormal, DefaultLimits())
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if IsFraming(err) {
		t.Fatalf("transport error classified as framing")
	}
}

func TestReadTimedStopsOnEOF(t *testing.T) {
	var buf [4]byte
	n, err := ReadTimed(bytes.NewReader([]byte{1, 2}), buf[:])
	if n != 2 || !errors.Is(err, io.EOF) {
		t.Fatalf("unexpected result n=%d err=%v", n, err)
	}
}
