// Package report renders a scan: the per-token stream and the end-of-scan
// symbol and constant tables, as text or as one JSON document.
package report

import (
	"fmt"
	"io"

	"github.com/xplshn/clex/pkg/table"
	"github.com/xplshn/clex/pkg/token"
	"github.com/xplshn/clex/pkg/util"
)

// Unset is printed in place of an empty table field.
const Unset = "-"

type Options struct {
	Tokens bool // write the token stream
	Tables bool // write the symbol and constant tables
}

// Summary is what a finished scan hands to a reporter.
type Summary struct {
	Symbols   *table.SymbolTable
	Constants *table.ConstantTable
	Errors    int
	Warnings  int
}

// Reporter receives every token as soon as it is classified, then the
// tables exactly once.
type Reporter interface {
	Token(tok token.Token) error
	Finish(sum Summary) error
}

// New returns the reporter for format, "text" or "json".
func New(format string, w io.Writer, src util.SourceFileRecord, opts Options) (Reporter, error) {
	switch format {
	case "", "text":
		return &Text{w: w, opts: opts}, nil
	case "json":
		return &JSON{w: w, src: src, opts: opts}, nil
	}
	return nil, fmt.Errorf("unknown report format '%s'", format)
}
