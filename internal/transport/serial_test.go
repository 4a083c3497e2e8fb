package transport

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestOpenWithoutDevice(t *testing.T) {
	_, err := Open(DefaultConfig())
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "open" {
		t.Fatalf("expected open TransportError, got %#v", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = filepath.Join(t.TempDir(), "ttyMissing0")
	_, err := Open(cfg)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Device != cfg.Device {
		t.Fatalf("unexpected device in error: %q", te.Device)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaudRate != 9600 {
		t.Fatalf("unexpected baud rate: %d", cfg.BaudRate)
	}
	if cfg.ReadTimeout != DefaultReadTimeout {
		t.Fatalf("unexpected read timeout: %v", cfg.ReadTimeout)
	}
}

func TestReaderAdapter(t *testing.T) {
	r := FromReader(bytes.NewReader([]byte{0xC9, 0x2D}))
	if err := r.ResetInputBuffer(); err != nil {
		t.Fatalf("flush input: %v", err)
	}
	if err := r.ResetOutputBuffer(); err != nil {
		t.Fatalf("flush output: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{0xC9, 0x2D}) {
		t.Fatalf("unexpected bytes: %x", got)
	}
}
