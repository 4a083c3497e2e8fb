// Package capture records decoded frames to a CBOR stream so a bus session
// can be replayed into any log format later.
//
// A capture is one Header item followed by one Entry item per frame.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/doitaljosh/macs-logger/internal/protocol/frame"
	"github.com/fxamacker/cbor/v2"
	"github.com/segmentio/ksuid"
)

var ErrNotCapture = errors.New("capture: missing header")

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// NewRunID returns a sortable id for one logging session.
func NewRunID() string {
	return ksuid.New().String()
}

type Header struct {
	Run     string    `cbor:"run"`
	Started time.Time `cbor:"started"`
	Device  string    `cbor:"device,omitempty"`
	Baud    int       `cbor:"baud,omitempty"`
}

type Entry struct {
	Run     string    `cbor:"run"`
	Seq     uint64    `cbor:"seq"`
	At      time.Time `cbor:"at"`
	Type    uint8     `cbor:"type"`
	Source  uint8     `cbor:"source"`
	Length  uint8     `cbor:"length"`
	Command uint8     `cbor:"command"`
	Payload []byte    `cbor:"payload"`
}

func (e Entry) Frame() frame.Frame {
	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}
	return frame.Frame{
		Type:    frame.Type(e.Type),
		Source:  e.Source,
		Length:  e.Length,
		Command: e.Command,
		Payload: payload,
	}
}

// Writer appends entries to a capture file.
type Writer struct {
	f   *os.File
	w   *bufio.Writer
	enc *cbor.Encoder
	run string
	seq uint64
	now func() time.Time
}

// Create truncates path and writes hdr. An empty hdr.Run gets a fresh id.
func Create(path string, hdr Header) (*Writer, error) {
	if strings.TrimSpace(hdr.Run) == "" {
		hdr.Run = NewRunID()
	}
	if hdr.Started.IsZero() {
		hdr.Started = time.Now().UTC()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	w := &Writer{f: f, w: bw, enc: encMode.NewEncoder(bw), run: hdr.Run, now: time.Now}
	if err := w.enc.Encode(hdr); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("capture: write header: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("capture: write header: %w", err)
	}
	return w, nil
}

func (w *Writer) Run() string {
	return w.run
}

func (w *Writer) Write(f frame.Frame) error {
	w.seq++
	e := Entry{
		Run:     w.run,
		Seq:     w.seq,
		At:      w.now().UTC(),
		Type:    uint8(f.Type),
		Source:  f.Source,
		Length:  f.Length,
		Command: f.Command,
		Payload: f.Payload,
	}
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("capture: write entry %d: %w", e.Seq, err)
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	flushErr := w.w.Flush()
	closeErr := w.f.Close()
	return errors.Join(flushErr, closeErr)
}

// Reader iterates a capture file.
type Reader struct {
	f      io.Closer
	dec    *cbor.Decoder
	Header Header
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.f = f
	return r, nil
}

// NewReader decodes the header from src.
func NewReader(src io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(bufio.NewReader(src))
	var hdr Header
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if hdr.Run == "" {
		return nil, ErrNotCapture
	}
	return &Reader{dec: dec, Header: hdr}, nil
}

// Next returns io.EOF after the last entry.
func (r *Reader) Next() (Entry, error) {
	var e Entry
	if err := r.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("capture: read entry: %w", err)
	}
	if int(e.Length) != len(e.Payload) {
		return Entry{}, fmt.Errorf("capture: entry %d length %d does not match payload %d", e.Seq, e.Length, len(e.Payload))
	}
	return e, nil
}

func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}
