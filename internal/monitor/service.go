package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/doitaljosh/macs-logger/internal/capture"
	"github.com/doitaljosh/macs-logger/internal/decoder"
	"github.com/doitaljosh/macs-logger/internal/observability"
	"github.com/doitaljosh/macs-logger/internal/protocol"
	"github.com/doitaljosh/macs-logger/internal/protocol/frame"
	"github.com/doitaljosh/macs-logger/internal/protocol/names"
	"github.com/doitaljosh/macs-logger/internal/sink"
	"github.com/doitaljosh/macs-logger/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoSource          = errors.New("monitor: no TTY device or input file specified")
	ErrInvalidMaxPayload = errors.New("monitor: max payload must be within 1..255")
	ErrInvalidPace       = errors.New("monitor: pace must not be negative")
)

// ServiceConfig configures one logging session.
type ServiceConfig struct {
	Transport transport.Config
	// Input decodes a raw byte dump instead of opening Transport.Device.
	Input       string
	Decoder     decoder.Config
	Sink        sink.Config
	NamesFile   string
	CaptureFile string
	StatusAddr  string
	CorsOrigins []string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Transport: transport.DefaultConfig(),
		Decoder:   decoder.DefaultConfig(),
	}
}

// Validate checks cfg for a live session. It performs no I/O.
func (c ServiceConfig) Validate() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Transport.Device) == "" && strings.TrimSpace(c.Input) == "" {
		return ErrNoSource
	}
	return nil
}

func (c ServiceConfig) validateCommon() error {
	if err := c.Sink.Validate(); err != nil {
		return err
	}
	if c.Decoder.Limits.MaxPayload < 1 || c.Decoder.Limits.MaxPayload > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxPayload, c.Decoder.Limits.MaxPayload)
	}
	if c.Decoder.Pace < 0 {
		return ErrInvalidPace
	}
	return nil
}

type source interface {
	decoder.Source
	io.Closer
}

type fileSource struct {
	*transport.Reader
	io.Closer
}

// Service runs one logging session.
type Service struct {
	cfg     ServiceConfig
	stdout  io.Writer
	runID   string
	open    func() (source, error)
	scanner *decoder.Synchronizer
}

func NewService(cfg ServiceConfig) *Service {
	return NewServiceWithOutput(cfg, os.Stdout)
}

// NewServiceWithOutput sends console and echo lines to stdout.
func NewServiceWithOutput(cfg ServiceConfig, stdout io.Writer) *Service {
	s := &Service{
		cfg:    cfg,
		stdout: stdout,
		runID:  capture.NewRunID(),
	}
	s.open = s.openSource
	return s
}

func (s *Service) RunID() string {
	return s.runID
}

// Stats reports decoder counters; zero before Run starts scanning.
func (s *Service) Stats() decoder.Stats {
	if s.scanner == nil {
		return decoder.Stats{}
	}
	return s.scanner.Stats()
}

// Run blocks until SIGINT/SIGTERM or a fatal error.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the session until ctx is cancelled. Sink, capture and
// transport are closed on every return path.
func (s *Service) Serve(ctx context.Context) (err error) {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	resolver, err := s.resolver()
	if err != nil {
		return err
	}

	out, err := sink.Open(s.cfg.Sink, s.stdout)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, out.Close()) }()
	s.announce(out.Config())

	src, err := s.open()
	if err != nil {
		return err
	}
	defer src.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stopClose()

	var capw *capture.Writer
	if s.cfg.CaptureFile != "" {
		capw, err = capture.Create(s.cfg.CaptureFile, capture.Header{
			Run:    s.runID,
			Device: s.sourceName(),
			Baud:   s.cfg.Transport.BaudRate,
		})
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, capw.Close()) }()
	}

	s.scanner = decoder.NewSynchronizer(s.cfg.Decoder, resolver, func(f frame.Frame, rec protocol.Record) error {
		if err := out.Write(rec); err != nil {
			return err
		}
		if capw != nil {
			return capw.Write(f)
		}
		return nil
	})

	statusDone := make(chan struct{})
	statusCtx, cancelStatus := context.WithCancel(ctx)
	defer cancelStatus()
	if s.cfg.StatusAddr != "" {
		scanner := s.scanner
		go func() {
			defer close(statusDone)
			err := observability.ServeStatus(statusCtx, observability.StatusConfig{
				Addr:        s.cfg.StatusAddr,
				CorsOrigins: s.cfg.CorsOrigins,
				RunID:       s.runID,
				Device:      s.sourceName(),
				Stats:       func() any { return scanner.Stats() },
			}, log.Logger)
			if err != nil {
				log.Warn().Err(err).Msg("monitor.Service.Serve status server stopped")
			}
		}()
	} else {
		close(statusDone)
	}

	log.Info().Str("run_id", s.runID).Str("source", s.sourceName()).Msg("monitor.Service.Serve scanning")
	runErr := s.scanner.Run(ctx, src)
	cancelStatus()
	<-statusDone

	stats := s.scanner.Stats()
	log.Info().
		Str("run_id", s.runID).
		Uint64("normal", stats.NormalFrames).
		Uint64("diag", stats.DiagFrames).
		Uint64("framing_errors", stats.FramingErrors).
		Uint64("discarded_bytes", stats.DiscardedBytes).
		Msg("monitor.Service.Serve stopped")
	return runErr
}

// Replay pushes every frame of a capture file through the sink.
func (s *Service) Replay(ctx context.Context, path string) (err error) {
	if err := s.cfg.validateCommon(); err != nil {
		return err
	}
	resolver, err := s.resolver()
	if err != nil {
		return err
	}
	r, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := sink.Open(s.cfg.Sink, s.stdout)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, out.Close()) }()
	s.announce(out.Config())

	log.Info().
		Str("capture_run", r.Header.Run).
		Time("started", r.Header.Started).
		Str("device", r.Header.Device).
		Msg("monitor.Service.Replay reading capture")

	count := 0
	for ctx.Err() == nil {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := out.Write(protocol.Annotate(e.Frame(), resolver)); err != nil {
			return err
		}
		count++
	}
	log.Info().Int("frames", count).Msg("monitor.Service.Replay done")
	return nil
}

func (s *Service) resolver() (*names.Resolver, error) {
	if s.cfg.NamesFile == "" {
		return names.DefaultResolver(), nil
	}
	r, err := names.LoadFile(s.cfg.NamesFile, names.DefaultResolver())
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("path", s.cfg.NamesFile).
		Int("nodes", r.Nodes.Len()).
		Int("commands", r.Commands.Len()).
		Msg("monitor.Service loaded name tables")
	return r, nil
}

func (s *Service) announce(cfg sink.Config) {
	if cfg.Path != "" {
		log.Info().Msgf("Logging to %s file at %s", cfg.Format, cfg.Path)
	}
	if cfg.Quiet {
		log.Info().Msg("Quiet mode enabled")
	}
}

func (s *Service) sourceName() string {
	if s.cfg.Input != "" {
		return s.cfg.Input
	}
	return s.cfg.Transport.Device
}

func (s *Service) openSource() (source, error) {
	if s.cfg.Input != "" {
		f, err := os.Open(s.cfg.Input)
		if err != nil {
			return nil, fmt.Errorf("monitor: open input: %w", err)
		}
		return fileSource{Reader: transport.FromReader(f), Closer: f}, nil
	}
	start := time.Now()
	p, err := transport.Open(s.cfg.Transport)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("device", p.Device()).
		Int("baud", s.cfg.Transport.BaudRate).
		Dur("read_timeout", s.cfg.Transport.ReadTimeout).
		Dur("open", time.Since(start)).
		Msg("monitor.Service opened transport")
	return p, nil
}
