package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/doitaljosh/macs-logger/internal/monitor"
	"github.com/doitaljosh/macs-logger/internal/sink"
)

type fileConfig struct {
	Device        string   `toml:"device"`
	BaudRate      int      `toml:"baud_rate"`
	ReadTimeout   string   `toml:"read_timeout"`
	ReadTimeoutMS int64    `toml:"read_timeout_ms"`
	Pace          string   `toml:"pace"`
	MaxPayload    int      `toml:"max_payload"`
	Input         string   `toml:"input"`
	LogFormat     string   `toml:"log_format"`
	LogFile       string   `toml:"log_file"`
	Quiet         bool     `toml:"quiet"`
	NamesFile     string   `toml:"names_file"`
	CaptureFile   string   `toml:"capture_file"`
	StatusAddr    string   `toml:"status_addr"`
	CorsOrigins   []string `toml:"cors_origins"`
}

func loadServiceConfig(path string) (monitor.ServiceConfig, error) {
	cfg := monitor.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return monitor.ServiceConfig{}, fmt.Errorf("load macslog config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return monitor.ServiceConfig{}, fmt.Errorf("load macslog config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.Transport.Device = strings.TrimSpace(raw.Device)
	}

	if meta.IsDefined("baud_rate") {
		cfg.Transport.BaudRate = raw.BaudRate
	}

	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return monitor.ServiceConfig{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.Transport.ReadTimeout = d
	}

	if meta.IsDefined("read_timeout_ms") {
		cfg.Transport.ReadTimeout = time.Duration(raw.ReadTimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("pace") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Pace))
		if err != nil {
			return monitor.ServiceConfig{}, fmt.Errorf("parse pace: %w", err)
		}
		cfg.Decoder.Pace = d
	}

	if meta.IsDefined("max_payload") {
		cfg.Decoder.Limits.MaxPayload = raw.MaxPayload
	}

	if meta.IsDefined("input") {
		cfg.Input = strings.TrimSpace(raw.Input)
	}

	if meta.IsDefined("log_format") {
		f, err := sink.ParseFormat(raw.LogFormat)
		if err != nil {
			return monitor.ServiceConfig{}, err
		}
		cfg.Sink.Format = f
	}

	if meta.IsDefined("log_file") {
		cfg.Sink.Path = strings.TrimSpace(raw.LogFile)
	}

	if meta.IsDefined("quiet") {
		cfg.Sink.Quiet = raw.Quiet
	}

	if meta.IsDefined("names_file") {
		cfg.NamesFile = strings.TrimSpace(raw.NamesFile)
	}

	if meta.IsDefined("capture_file") {
		cfg.CaptureFile = strings.TrimSpace(raw.CaptureFile)
	}

	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
