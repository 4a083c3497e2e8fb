package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/doitaljosh/macs-logger/internal/observability"
	"github.com/doitaljosh/macs-logger/internal/protocol"
	"github.com/doitaljosh/macs-logger/internal/protocol/frame"
	"github.com/doitaljosh/macs-logger/internal/protocol/names"
	"github.com/rs/zerolog/log"
)

// DefaultPace keeps the loop from spinning ahead of a 9600 baud line.
const DefaultPace = time.Millisecond

// Source is the byte side of a serial transport. Read returns (0, nil) when
// the transport read timeout elapses.
type Source interface {
	io.Reader
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Handler receives every decoded frame. A returned error stops the loop.
type Handler func(f frame.Frame, rec protocol.Record) error

// Config tunes the scan loop.
type Config struct {
	Limits frame.Limits
	Pace   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Limits: frame.DefaultLimits(),
		Pace:   DefaultPace,
	}
}

// Stats is a point-in-time copy of the loop counters.
type Stats struct {
	NormalFrames   uint64 `json:"normal_frames"`
	DiagFrames     uint64 `json:"diag_frames"`
	FramingErrors  uint64 `json:"framing_errors"`
	DiscardedBytes uint64 `json:"discarded_bytes"`
}

// Synchronizer scans a byte source for start-of-frame markers.
type Synchronizer struct {
	cfg     Config
	parser  *Parser
	handler Handler

	normal    atomic.Uint64
	diag      atomic.Uint64
	framing   atomic.Uint64
	discarded atomic.Uint64
}

func NewSynchronizer(cfg Config, resolver *names.Resolver, handler Handler) *Synchronizer {
	if handler == nil {
		handler = func(frame.Frame, protocol.Record) error { return nil }
	}
	return &Synchronizer{
		cfg:     cfg,
		parser:  NewParser(cfg.Limits, resolver),
		handler: handler,
	}
}

// Run scans src until ctx is cancelled, src reports io.EOF, or a
// non-framing error occurs. Cancellation and EOF return nil.
func (s *Synchronizer) Run(ctx context.Context, src Source) error {
	var window [frame.MarkerLen]byte
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := frame.ReadTimed(src, window[:])
		if err != nil {
			s.discard(n)
			return s.stopErr(ctx, "read window", err)
		}
		if n < frame.MarkerLen {
			s.discard(n)
			continue
		}

		typ, ok := frame.MatchMarker(window)
		if !ok {
			s.discard(n)
			continue
		}

		if err := src.ResetInputBuffer(); err != nil {
			return s.stopErr(ctx, "flush input", err)
		}
		if err := src.ResetOutputBuffer(); err != nil {
			return s.stopErr(ctx, "flush output", err)
		}

		f, rec, err := s.parser.Parse(src, typ)
		if err != nil {
			var fe *frame.FramingError
			if errors.As(err, &fe) {
				s.framing.Add(1)
				observability.RecordFramingError(fe.Reason())
				log.Debug().Err(err).Str("type", typ.String()).Msg("decoder.Synchronizer.Run framing error, resynchronizing")
				continue
			}
			return s.stopErr(ctx, "read frame", err)
		}

		s.count(f.Type)
		if err := s.handler(f, rec); err != nil {
			return fmt.Errorf("decoder: handle frame: %w", err)
		}
		if !s.pause(ctx) {
			return nil
		}
	}
}

// Stats snapshots the loop counters.
func (s *Synchronizer) Stats() Stats {
	return Stats{
		NormalFrames:   s.normal.Load(),
		DiagFrames:     s.diag.Load(),
		FramingErrors:  s.framing.Load(),
		DiscardedBytes: s.discarded.Load(),
	}
}

func (s *Synchronizer) count(typ frame.Type) {
	if typ == frame.TypeDiag {
		s.diag.Add(1)
	} else {
		s.normal.Add(1)
	}
	observability.RecordFrame(typ.String())
}

func (s *Synchronizer) discard(n int) {
	if n <= 0 {
		return
	}
	s.discarded.Add(uint64(n))
	observability.RecordDiscarded(n)
}

func (s *Synchronizer) stopErr(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decoder: %s: %w", stage, err)
}

func (s *Synchronizer) pause(ctx context.Context) bool {
	if s.cfg.Pace <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.Pace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
