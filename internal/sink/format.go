package sink

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/doitaljosh/macs-logger/internal/protocol"
)

// Format selects the line layout.
type Format string

const (
	FormatNone    Format = ""
	FormatCSV     Format = "csv"
	FormatText    Format = "text"
	FormatConsole Format = "console"
)

// CSVHeader is written once at the top of every csv destination.
const CSVHeader = "Type,SourceAddr,Length,Command,Payload"

func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FormatNone, FormatCSV, FormatText, FormatConsole:
		return f, nil
	default:
		return FormatNone, &ConfigError{Reason: fmt.Sprintf("unknown log format %q", raw)}
	}
}

// Line renders rec in format f, without a trailing newline.
func Line(f Format, rec protocol.Record) string {
	switch f {
	case FormatCSV:
		return CSVLine(rec)
	case FormatText:
		return TextLine(rec)
	default:
		return ConsoleLine(rec)
	}
}

// CSVLine quotes every field. The command column keeps the leading space
// existing MACS captures carry.
func CSVLine(rec protocol.Record) string {
	fields := []string{
		rec.Type,
		rec.Source,
		strconv.Itoa(rec.Length),
		" " + rec.Command,
		rec.Payload,
	}
	for i, v := range fields {
		fields[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return strings.Join(fields, ",")
}

func TextLine(rec protocol.Record) string {
	return fmt.Sprintf("type: %s, src: %s, length: %d, cmd: %s, payload: %s",
		rec.Type, rec.Source, rec.Length, rec.Command, rec.Payload)
}

func ConsoleLine(rec protocol.Record) string {
	return "MACS message: " + TextLine(rec)
}
