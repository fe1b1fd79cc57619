package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xplshn/clex/pkg/table"
	"github.com/xplshn/clex/pkg/token"
)

var (
	symbolHeader   = []string{"Name", "Type", "Dimensions", "Frequency", "Return Type", "Parameters Lists in Function call"}
	constantHeader = []string{"Variable Name", "Line No.", "Value", "Type"}
)

// Text streams "[line L] KIND : text" lines and dumps the tables in
// aligned columns. ERROR tokens are left to the diagnostic channel.
type Text struct {
	w    io.Writer
	opts Options
}

func (t *Text) Token(tok token.Token) error {
	if !t.opts.Tokens || tok.Kind == token.Error {
		return nil
	}
	_, err := fmt.Fprintf(t.w, "[line %d] %-12s : %s\n", tok.Line, tok.Kind, tok.Value)
	return err
}

func (t *Text) Finish(sum Summary) error {
	if !t.opts.Tables {
		return nil
	}
	var sb strings.Builder
	if t.opts.Tokens {
		sb.WriteString("\n")
	}
	sb.WriteString("SYMBOL TABLE\n")
	writeColumns(&sb, symbolHeader, SymbolRows(sum.Symbols))
	sb.WriteString("\nCONSTANT TABLE\n")
	writeColumns(&sb, constantHeader, ConstantRows(sum.Constants))
	_, err := io.WriteString(t.w, sb.String())
	return err
}

// SymbolRows renders each symbol in first-seen order, one cell per column.
func SymbolRows(syms *table.SymbolTable) [][]string {
	rows := make([][]string, 0, syms.Len())
	for _, s := range syms.All() {
		rows = append(rows, []string{
			s.Name,
			orUnset(s.Type),
			orUnset(s.Dimensions),
			strconv.Itoa(s.Frequency),
			orUnset(s.ReturnType),
			orUnset(s.ParamText()),
		})
	}
	return rows
}

// ConstantRows renders each constant in encounter order.
func ConstantRows(consts *table.ConstantTable) [][]string {
	rows := make([][]string, 0, consts.Len())
	for _, c := range consts.All() {
		rows = append(rows, []string{c.Variable, strconv.Itoa(c.Line), c.Value, string(c.Type)})
	}
	return rows
}

func orUnset(s string) string {
	if s == "" {
		return Unset
	}
	return s
}

// writeColumns pads every column to its widest cell, counted in runes; the
// last column is never padded.
func writeColumns(sb *strings.Builder, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	line := func(cells []string) {
		for i, cell := range cells {
			if i == len(cells)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+2))
		}
		sb.WriteByte('\n')
	}

	line(header)
	rule := make([]string, len(header))
	for i := range rule {
		rule[i] = strings.Repeat("-", widths[i])
	}
	line(rule)
	for _, row := range rows {
		line(row)
	}
}
