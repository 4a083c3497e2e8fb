// Package names resolves MACS node addresses and command codes to labels.
//
// Tables are immutable once built. Lookups are total: a code with no entry
// resolves to a sentinel label instead of failing.
package names

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	UnknownNode    = "UNK"
	UnknownCommand = "Unknown"
)

// Table maps one byte domain to labels.
type Table struct {
	entries map[byte]string
}

func NewTable(entries map[byte]string) Table {
	return Table{entries: maps.Clone(entries)}
}

func (t Table) Lookup(code byte) (string, bool) {
	label, ok := t.entries[code]
	return label, ok
}

func (t Table) Len() int {
	return len(t.entries)
}

// with returns a copy of t extended by overrides.
func (t Table) with(overrides map[byte]string) Table {
	out := make(map[byte]string, len(t.entries)+len(overrides))
	maps.Copy(out, t.entries)
	maps.Copy(out, overrides)
	return Table{entries: out}
}

// Resolver annotates frames with node and command labels.
type Resolver struct {
	Nodes    Table
	Commands Table
}

func DefaultNodes() Table {
	return NewTable(map[byte]string{
		0x45: "OVC1",
		0x65: "OVC2",
		0x25: "OUI",
		0xA5: "GPU",
		0xFF: "BCST",
	})
}

func DefaultCommands() Table {
	return NewTable(map[byte]string{
		0x6C: "heartbeat",
		0x2E: "tempMonitor",
		0x2C: "reportOpenRTD",
		0x24: "ovenLightState",
	})
}

func DefaultResolver() *Resolver {
	return &Resolver{Nodes: DefaultNodes(), Commands: DefaultCommands()}
}

// ResolveNode returns "0x45 OVC1", or "0x45 UNK" for an unlisted address.
func (r *Resolver) ResolveNode(addr byte) string {
	return label(r.Nodes, addr, UnknownNode)
}

// ResolveCommand returns "0x6c heartbeat", or "0x6c Unknown".
func (r *Resolver) ResolveCommand(cmd byte) string {
	return label(r.Commands, cmd, UnknownCommand)
}

func label(t Table, code byte, unknown string) string {
	name, ok := t.Lookup(code)
	if !ok {
		name = unknown
	}
	return fmt.Sprintf("0x%x %s", code, name)
}

type fileTables struct {
	Nodes    map[string]string `yaml:"nodes"`
	Commands map[string]string `yaml:"commands"`
}

// LoadFile reads YAML overrides and merges them onto base:
//
//	nodes:
//	  "0x45": OVC1
//	commands:
//	  "0x6c": heartbeat
func LoadFile(path string, base *Resolver) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("names load failed (%s): %w", path, err)
	}
	var raw fileTables
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("names parse failed (%s): %w", path, err)
	}
	nodes, err := parseCodes(raw.Nodes)
	if err != nil {
		return nil, fmt.Errorf("names nodes invalid (%s): %w", path, err)
	}
	commands, err := parseCodes(raw.Commands)
	if err != nil {
		return nil, fmt.Errorf("names commands invalid (%s): %w", path, err)
	}
	if base == nil {
		base = DefaultResolver()
	}
	return &Resolver{
		Nodes:    base.Nodes.with(nodes),
		Commands: base.Commands.with(commands),
	}, nil
}

func parseCodes(in map[string]string) (map[byte]string, error) {
	out := make(map[byte]string, len(in))
	for key, name := range in {
		code, err := ParseCode(key)
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("code %s has empty label", key)
		}
		out[code] = name
	}
	return out, nil
}

// ParseCode accepts "0x45", "45h" style hex or plain decimal.
func ParseCode(raw string) (byte, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"):
		s, base = s[2:], 16
	case strings.HasSuffix(s, "h"):
		s, base = strings.TrimSuffix(s, "h"), 16
	}
	v, err := strconv.ParseUint(s, base, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid code %q", raw)
	}
	return byte(v), nil
}
