package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/doitaljosh/macs-logger/internal/protocol"
)

var ErrClosed = errors.New("sink: closed")

// Sink writes one line per record.
type Sink struct {
	cfg    Config
	stdout io.Writer
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// Open normalizes and validates cfg, then truncates the destination and writes the csv
// header when needed. stdout receives console and echo lines.
func Open(cfg Config, stdout io.Writer) (*Sink, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	if stdout == nil {
		stdout = io.Discard
	}
	s := &Sink{cfg: cfg, stdout: stdout}
	if cfg.Path == "" {
		return s, nil
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", cfg.Path, err)
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	if cfg.Format == FormatCSV {
		if err := s.writeFileLine(CSVHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Sink) Config() Config {
	return s.cfg
}

// Write emits rec to the configured destinations.
func (s *Sink) Write(rec protocol.Record) error {
	if s.closed {
		return ErrClosed
	}
	if s.file == nil {
		_, err := fmt.Fprintln(s.stdout, ConsoleLine(rec))
		return err
	}

	line := Line(s.cfg.Format, rec)
	if err := s.writeFileLine(line); err != nil {
		return err
	}
	if s.cfg.Echo() {
		if _, err := fmt.Fprintln(s.stdout, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) writeFileLine(line string) error {
	if _, err := s.w.WriteString(line); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.cfg.Path, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.cfg.Path, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: flush %s: %w", s.cfg.Path, err)
	}
	return nil
}

// Close flushes and closes the destination. Safe to call more than once.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	flushErr := s.w.Flush()
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	return errors.Join(flushErr, syncErr, closeErr)
}
