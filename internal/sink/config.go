package sink

import (
	"fmt"
	"strings"
)

// ConfigError reports an inconsistent format/destination/quiet combination.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "sink config: " + e.Reason
}

// Config is resolved once at startup.
type Config struct {
	Format Format
	Path   string
	// Quiet suppresses the stdout echo of lines written to Path.
	Quiet bool
}

// Validate checks cfg without touching the filesystem.
func (c Config) Validate() error {
	_, err := c.Normalize()
	return err
}

// Normalize returns the canonical form of c: the format lowercased and the
// path trimmed. The result is what Open writes with.
func (c Config) Normalize() (Config, error) {
	format, err := ParseFormat(string(c.Format))
	if err != nil {
		return Config{}, err
	}
	out := Config{Format: format, Path: strings.TrimSpace(c.Path), Quiet: c.Quiet}
	hasPath := out.Path != ""
	switch {
	case out.Format != FormatNone && !hasPath:
		return Config{}, &ConfigError{Reason: fmt.Sprintf("log format %q specified without a file location", out.Format)}
	case out.Format == FormatNone && hasPath:
		return Config{}, &ConfigError{Reason: fmt.Sprintf("log file %q specified without a log format", out.Path)}
	case out.Quiet && (out.Format == FormatNone || !hasPath):
		return Config{}, &ConfigError{Reason: "quiet mode requires a log format and file location"}
	}
	return out, nil
}

// Echo reports whether file lines are duplicated to stdout.
func (c Config) Echo() bool {
	return c.Path != "" && !c.Quiet
}
