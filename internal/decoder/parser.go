package decoder

import (
	"io"

	"github.com/doitaljosh/macs-logger/internal/protocol"
	"github.com/doitaljosh/macs-logger/internal/protocol/frame"
	"github.com/doitaljosh/macs-logger/internal/protocol/names"
)

// Parser decodes one frame and annotates it.
type Parser struct {
	limits   frame.Limits
	resolver *names.Resolver
}

func NewParser(limits frame.Limits, resolver *names.Resolver) *Parser {
	if resolver == nil {
		resolver = names.DefaultResolver()
	}
	return &Parser{limits: limits, resolver: resolver}
}

// Parse reads from r, positioned right after a marker of type typ.
func (p *Parser) Parse(r io.Reader, typ frame.Type) (frame.Frame, protocol.Record, error) {
	f, err := frame.Read(r, typ, p.limits)
	if err != nil {
		return frame.Frame{}, protocol.Record{}, err
	}
	return f, protocol.Annotate(f, p.resolver), nil
}
