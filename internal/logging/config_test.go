package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" DEBUG ":  zerolog.DebugLevel,
		"warn":     zerolog.WarnLevel,
		"off":      zerolog.Disabled,
		"disabled": zerolog.Disabled,
		"error":    zerolog.ErrorLevel,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q)=%v,%v want %v", raw, got, ok, want)
		}
	}
	for _, raw := range []string{"loud", "diagnostics", "inactive"} {
		if _, ok := parseLevel(raw); ok {
			t.Fatalf("expected %q to be ignored", raw)
		}
	}
	if _, ok := parseLevel(""); ok {
		t.Fatalf("expected empty level to be ignored")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogBypass, "not-a-bool")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("expected timestamps disabled")
	}
	if !cfg.NoColor {
		t.Fatalf("expected color disabled")
	}
	if cfg.Bypass {
		t.Fatalf("invalid bool must not enable bypass")
	}
}

func TestNewBypassWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, Bypass: true, Out: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Str("device", "/dev/ttyUSB0").Msg("opened")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "opened" || line["device"] != "/dev/ttyUSB0" || line["app"] != "macslog" {
		t.Fatalf("unexpected log line: %+v", line)
	}
}
