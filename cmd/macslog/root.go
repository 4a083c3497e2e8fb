package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/doitaljosh/macs-logger/internal/decoder"
	"github.com/doitaljosh/macs-logger/internal/monitor"
	"github.com/doitaljosh/macs-logger/internal/protocol/frame"
	"github.com/doitaljosh/macs-logger/internal/sink"
	"github.com/doitaljosh/macs-logger/internal/transport"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	device      string
	input       string
	baudRate    int
	readTimeout time.Duration
	pace        time.Duration
	maxPayload  int
	logFormat   string
	logFile     string
	quiet       bool
	namesFile   string
	captureFile string
	statusAddr  string
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	return newRootCommandWithOptions(&options{}, stdout)
}

func newRootCommandWithOptions(opts *options, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "macslog",
		Short:         "Log MACS appliance bus traffic from a serial port",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return monitor.NewServiceWithOutput(cfg, stdout).Run()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	pf.StringVarP(&opts.logFormat, "logfmt", "l", "", "log format: csv, text, console")
	pf.StringVarP(&opts.logFile, "logfile", "f", "", "log file location")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "log to the file only, without echoing to stdout")
	pf.StringVar(&opts.namesFile, "names", "", "YAML file with extra node and command labels")

	f := root.Flags()
	f.StringVarP(&opts.device, "device", "d", "", "TTY device")
	f.StringVar(&opts.input, "input", "", "decode a raw byte dump instead of a TTY device")
	f.IntVar(&opts.baudRate, "baud", transport.DefaultBaudRate, "serial baud rate")
	f.DurationVar(&opts.readTimeout, "read-timeout", transport.DefaultReadTimeout, "serial read timeout")
	f.DurationVar(&opts.pace, "pace", decoder.DefaultPace, "delay after each decoded frame")
	f.IntVar(&opts.maxPayload, "max-payload", frame.DefaultMaxPayload, "largest accepted payload length")
	f.StringVar(&opts.captureFile, "capture", "", "record decoded frames to a CBOR capture file")
	f.StringVar(&opts.statusAddr, "status-addr", "", "serve /health and /metrics on this address")

	root.AddCommand(newReplayCommand(opts, stdout), newPortsCommand(stdout))
	return root
}

func newReplayCommand(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <capture>",
		Short: "Re-log frames from a CBOR capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return monitor.NewServiceWithOutput(cfg, stdout).Replay(ctx, args[0])
		},
	}
}

func newPortsCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial devices",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(stdout, p)
			}
			return nil
		},
	}
}

// resolveConfig layers defaults, the optional config file, then flags the
// user set explicitly.
func resolveConfig(cmd *cobra.Command, opts *options) (monitor.ServiceConfig, error) {
	cfg := monitor.DefaultServiceConfig()
	if opts.configPath != "" {
		loaded, err := loadServiceConfig(opts.configPath)
		if err != nil {
			return monitor.ServiceConfig{}, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Transport.Device = opts.device
	}
	if changed("input") {
		cfg.Input = opts.input
	}
	if changed("baud") {
		cfg.Transport.BaudRate = opts.baudRate
	}
	if changed("read-timeout") {
		cfg.Transport.ReadTimeout = opts.readTimeout
	}
	if changed("pace") {
		cfg.Decoder.Pace = opts.pace
	}
	if changed("max-payload") {
		cfg.Decoder.Limits.MaxPayload = opts.maxPayload
	}
	if changed("logfmt") {
		format, err := sink.ParseFormat(opts.logFormat)
		if err != nil {
			return monitor.ServiceConfig{}, err
		}
		cfg.Sink.Format = format
	}
	if changed("logfile") {
		cfg.Sink.Path = strings.TrimSpace(opts.logFile)
	}
	if changed("quiet") {
		cfg.Sink.Quiet = opts.quiet
	}
	if changed("names") {
		cfg.NamesFile = opts.namesFile
	}
	if changed("capture") {
		cfg.CaptureFile = opts.captureFile
	}
	if changed("status-addr") {
		cfg.StatusAddr = opts.statusAddr
	}
	return cfg, nil
}
