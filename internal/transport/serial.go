// Package transport opens the MACS serial line.
package transport

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is fixed for every MACS appliance.
	DefaultBaudRate = 9600
	// DefaultReadTimeout bounds every blocking read. An elapsed timeout
	// yields a short read, not an error.
	DefaultReadTimeout = 5 * time.Second
)

var (
	ErrNoDevice = errors.New("transport: no device specified")
	ErrClosed   = errors.New("transport: port closed")
)

// TransportError reports an open, read or flush failure unrelated to the
// read timeout.
type TransportError struct {
	Op     string
	Device string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Config struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Port is an open serial line, 8N1.
type Port struct {
	device    string
	port      serial.Port
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func Open(cfg Config) (*Port, error) {
	device := strings.TrimSpace(cfg.Device)
	if device == "" {
		return nil, &TransportError{Op: "open", Err: ErrNoDevice}
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, &TransportError{Op: "open", Device: device, Err: err}
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, &TransportError{Op: "set read timeout", Device: device, Err: err}
	}
	return &Port{device: device, port: p}, nil
}

func (p *Port) Device() string {
	return p.device
}

// Read returns (0, nil) once the read timeout elapses without data.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		if p.closed.Load() {
			return n, &TransportError{Op: "read", Device: p.device, Err: ErrClosed}
		}
		return n, &TransportError{Op: "read", Device: p.device, Err: err}
	}
	return n, nil
}

func (p *Port) ResetInputBuffer() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return &TransportError{Op: "flush input", Device: p.device, Err: err}
	}
	return nil
}

func (p *Port) ResetOutputBuffer() error {
	if err := p.port.ResetOutputBuffer(); err != nil {
		return &TransportError{Op: "flush output", Device: p.device, Err: err}
	}
	return nil
}

// Close unblocks a pending Read. Safe to call from another goroutine and
// more than once.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if err := p.port.Close(); err != nil {
			p.closeErr = &TransportError{Op: "close", Device: p.device, Err: err}
		}
	})
	return p.closeErr
}

// ListPorts enumerates serial devices known to the OS.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}
	return ports, nil
}

// Reader adapts a finite byte stream, such as a raw bus dump, to the
// transport contract. Flushes are no-ops.
type Reader struct {
	r io.Reader
}

func FromReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) Read(b []byte) (int, error) {
	return r.r.Read(b)
}

func (r *Reader) ResetInputBuffer() error  { return nil }
func (r *Reader) ResetOutputBuffer() error { return nil }
