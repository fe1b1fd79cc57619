package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/xplshn/clex/pkg/config"
	"github.com/xplshn/clex/pkg/token"
)

const (
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorNone   = "\033[0m"
)

// SourceFileRecord tracks the name and content of the file being scanned.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// rawByteBase maps a byte that is not valid UTF-8 onto a lone low surrogate,
// which a UTF-8 decode never yields.
const rawByteBase = 0xDC00

// DecodeSource turns input bytes into runes. Invalid UTF-8 bytes are kept
// one rune each so that diagnostics can show them as \xNN.
func DecodeSource(b []byte) []rune {
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			r = rawByteBase + rune(b[0])
		}
		out = append(out, r)
		b = b[size:]
	}
	return out
}

// SourceText is the inverse of DecodeSource for display: raw bytes print as \xNN.
func SourceText(rs []rune) string {
	var sb strings.Builder
	for _, r := range rs {
		if r >= rawByteBase+0x80 && r <= rawByteBase+0xFF {
			fmt.Fprintf(&sb, "\\x%02x", r-rawByteBase)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Diagnostics is the diagnostic channel of a scan. Nothing it reports is fatal.
type Diagnostics struct {
	out      io.Writer
	cfg      *config.Config
	source   SourceFileRecord
	color    bool
	errors   int
	warnings int
}

func NewDiagnostics(out io.Writer, cfg *config.Config) *Diagnostics {
	return &Diagnostics{
		out:   out,
		cfg:   cfg,
		color: cfg.IsFeatureEnabled(config.FeatColor) && IsTerminal(out),
	}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetSource stores the scanned source for caret rendering.
func (d *Diagnostics) SetSource(rec SourceFileRecord) { d.source = rec }

func (d *Diagnostics) ErrorCount() int   { return d.errors }
func (d *Diagnostics) WarningCount() int { return d.warnings }

func (d *Diagnostics) paint(color, s string) string {
	if !d.color {
		return s
	}
	return color + s + colorNone
}

// InvalidToken reports one unrecognized lexeme.
func (d *Diagnostics) InvalidToken(tok token.Token) {
	d.Error(tok, "Invalid token '%s'", tok.Value)
}

// Error prints "[line L] ERROR: <message>".
func (d *Diagnostics) Error(tok token.Token, format string, args ...any) {
	d.errors++
	fmt.Fprintf(d.out, "[line %d] %s: ", tok.Line, d.paint(colorRed, "ERROR"))
	fmt.Fprintf(d.out, format, args...)
	fmt.Fprintln(d.out)
	d.printErrorLine(tok)
}

// Warn prints a warning if the corresponding warning is enabled.
func (d *Diagnostics) Warn(wt config.Warning, tok token.Token, format string, args ...any) {
	if !d.cfg.IsWarningEnabled(wt) {
		return
	}
	d.warnings++
	fmt.Fprintf(d.out, "[line %d] %s: ", tok.Line, d.paint(colorYellow, "warning"))
	fmt.Fprintf(d.out, format, args...)
	fmt.Fprintf(d.out, " [-W%s]\n", d.cfg.Warnings[wt].Name)
	d.printErrorLine(tok)
}

// printErrorLine prints the source line and a caret indicating the error position
func (d *Diagnostics) printErrorLine(tok token.Token) {
	if !d.cfg.IsFeatureEnabled(config.FeatCaret) || tok.Line == 0 || tok.Column == 0 {
		return
	}
	content := d.source.Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(d.out, "  %s\n", SourceText(content[lineStart:lineEnd]))
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(d.out, "  %s%s\n", strings.Repeat(" ", tok.Column-1), d.paint(colorGreen, caret))
}

// PrintFatal writes "<prog>: error: <message>" to w. The caller decides the
// exit status.
func PrintFatal(w io.Writer, prog, format string, args ...any) {
	fmt.Fprintf(w, "%s: error: ", prog)
	fmt.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}
