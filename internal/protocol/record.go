package protocol

import (
	"github.com/doitaljosh/macs-logger/internal/protocol/frame"
	"github.com/doitaljosh/macs-logger/internal/protocol/names"
)

// Record is a frame annotated with resolved labels, ready to be formatted.
type Record struct {
	Type    string
	Source  string
	Length  int
	Command string
	Payload string
}

// Annotate derives the output record for f.
func Annotate(f frame.Frame, r *names.Resolver) Record {
	return Record{
		Type:    f.Type.String(),
		Source:  r.ResolveNode(f.Source),
		Length:  int(f.Length),
		Command: r.ResolveCommand(f.Command),
		Payload: f.PayloadHex(),
	}
}
