package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/doitaljosh/macs-logger/internal/monitor"
	"github.com/doitaljosh/macs-logger/internal/sink"
	"github.com/doitaljosh/macs-logger/internal/testutil/testlog"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	cmd := newRootCommand(&stdout)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return stdout.String(), err
}

func writeDump(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
}

func TestRootRequiresSource(t *testing.T) {
	testlog.Start(t)
	if _, err := execute(t); !errors.Is(err, monitor.ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

func TestRootConfigErrors(t *testing.T) {
	testlog.Start(t)
	cases := map[string][]string{
		"format without file":  {"--device", "/dev/ttyUSB0", "--logfmt", "csv"},
		"blank file":           {"--device", "/dev/ttyUSB0", "--logfmt", "csv", "--logfile", " "},
		"quiet without format": {"--device", "/dev/ttyUSB0", "--quiet"},
		"unknown format":       {"--device", "/dev/ttyUSB0", "--logfmt", "yaml", "--logfile", "x"},
	}
	for name, args := range cases {
		_, err := execute(t, args...)
		var cfgErr *sink.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigError, got %v", name, err)
		}
	}
}

func TestRootBlankLogFileStaysOnConsole(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	writeDump(t, "bus.bin", []byte{0xC9, 0x2D, 0x45, 0x02, 0x6C, 0x01, 0x02})

	stdout, err := execute(t, "--input", "bus.bin", "--pace", "0s", "--logfile", " ")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "MACS message: type: Normal, src: 0x45 OVC1, length: 2, cmd: 0x6c heartbeat, payload: 01 02\n"
	if stdout != want {
		t.Fatalf("stdout = %q, want %q", stdout, want)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the dump in %s, found %d entries", dir, len(entries))
	}
}

func TestRootDecodesInputTwiceWithOneHeader(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	dump := filepath.Join(dir, "bus.bin")
	writeDump(t, dump, []byte{0xAA, 0xBB, 0xC9, 0x2D, 0x45, 0x02, 0x6C, 0x01, 0x02})
	out := filepath.Join(dir, "bus.csv")

	for i := 0; i < 2; i++ {
		stdout, err := execute(t, "--input", dump, "--pace", "0s", "-l", "CSV", "-f", out, "-q")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if stdout != "" {
			t.Fatalf("run %d: quiet run printed %q", i, stdout)
		}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := sink.CSVHeader + "\n" + `"Normal","0x45 OVC1","2"," 0x6c heartbeat","01 02"` + "\n"
	if string(data) != want {
		t.Fatalf("csv = %q, want %q", data, want)
	}
}

func TestRootFlagsOverrideConfigFile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "macslog.toml")
	if err := os.WriteFile(cfgPath, []byte("device = \"/dev/ttyS9\"\nlog_format = \"text\"\nlog_file = \"a.log\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts := &options{}
	cmd := newRootCommandWithOptions(opts, &bytes.Buffer{})
	if err := cmd.ParseFlags([]string{"--config", cfgPath, "--logfile", " b.log ", "--max-payload", "32"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Transport.Device != "/dev/ttyS9" {
		t.Fatalf("device = %q", cfg.Transport.Device)
	}
	if cfg.Sink.Format != sink.FormatText || cfg.Sink.Path != "b.log" {
		t.Fatalf("sink = %+v", cfg.Sink)
	}
	if cfg.Decoder.Limits.MaxPayload != 32 {
		t.Fatalf("max payload = %d", cfg.Decoder.Limits.MaxPayload)
	}
}

func TestReplayCommand(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	dump := filepath.Join(dir, "bus.bin")
	writeDump(t, dump, []byte{0xC9, 0x3A, 0x65, 0x01, 0x2E, 0x07})
	capPath := filepath.Join(dir, "bus.cbor")

	if _, err := execute(t, "--input", dump, "--pace", "0s", "--capture", capPath); err != nil {
		t.Fatalf("capture run: %v", err)
	}

	stdout, err := execute(t, "replay", capPath)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	want := "MACS message: type: Diag, src: 0x65 OVC2, length: 1, cmd: 0x2e tempMonitor, payload: 07\n"
	if stdout != want {
		t.Fatalf("replay stdout = %q, want %q", stdout, want)
	}
}
