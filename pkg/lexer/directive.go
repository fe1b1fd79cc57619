package lexer

import (
	"fmt"
	"strings"

	plexer "github.com/alecthomas/participle/v2/lexer"
)

// directiveLexer splits one logical preprocessor line. Rules are tried in
// order, so Hash must come before Other and String before Other.
var directiveLexer = plexer.MustSimple([]plexer.SimpleRule{
	{Name: "Hash", Pattern: `#[ \t]*[A-Za-z_][A-Za-z0-9_]*|#`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Char", Pattern: `'(\\.|[^'\\])*'`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `\.?[0-9]([0-9A-Za-z_.]|[eEpP][+-])*`},
	{Name: "Punct", Pattern: `[()\[\]{},;]`},
	{Name: "Whitespace", Pattern: `[ \t\r\f\v]+`},
	{Name: "Other", Pattern: `.`},
})

var directiveSymbols = directiveLexer.Symbols()

// Directive is the structure of a single preprocessor line.
type Directive struct {
	Name      string // "define", "include", ...; empty for a null directive
	Head      string // normalized "#name"
	Macro     string // #define only
	HasParams bool   // function-like macro
	Params    string // text between the parameter parentheses
	Body      string // everything after the name (or after the parameter list)
	// ValueKind is the literal kind of Body when Body is exactly one string,
	// character or number lexeme: "String", "Char" or "Number".
	ValueKind string
}

func (d Directive) IsDefine() bool { return d.Name == "define" }

// ParseDirective splits text, a logical line starting with '#' whose
// backslash-newline continuations have already been joined.
func ParseDirective(text string) (Directive, error) {
	lex, err := directiveLexer.LexString("", text)
	if err != nil {
		return Directive{}, fmt.Errorf("lexing directive: %w", err)
	}
	all, err := plexer.ConsumeAll(lex)
	if err != nil {
		return Directive{}, fmt.Errorf("lexing directive: %w", err)
	}
	toks := all[:0]
	for _, t := range all {
		if !t.EOF() {
			toks = append(toks, t)
		}
	}
	if len(toks) == 0 || toks[0].Type != directiveSymbols["Hash"] {
		return Directive{}, fmt.Errorf("not a directive: %q", text)
	}

	var d Directive
	d.Name = strings.TrimSpace(strings.TrimPrefix(toks[0].Value, "#"))
	d.Head = "#" + d.Name
	rest := toks[1:]
	restOffset := len(toks[0].Value)
	d.Body = strings.TrimSpace(text[restOffset:])

	if !d.IsDefine() {
		return d, nil
	}

	rest = skipWhitespace(rest)
	if len(rest) == 0 || rest[0].Type != directiveSymbols["Ident"] {
		return d, nil
	}
	d.Macro = rest[0].Value
	afterName := rest[0].Pos.Offset + len(rest[0].Value)
	rest = rest[1:]

	// Only a '(' glued to the name makes a function-like macro.
	if len(rest) > 0 && rest[0].Value == "(" {
		depth := 0
		for i, t := range rest {
			switch t.Value {
			case "(":
				depth++
			case ")":
				depth--
			}
			if depth == 0 {
				d.HasParams = true
				d.Params = strings.TrimSpace(text[rest[0].Pos.Offset+1 : t.Pos.Offset])
				afterName = t.Pos.Offset + 1
				rest = rest[i+1:]
				break
			}
		}
	}

	d.Body = strings.TrimSpace(text[afterName:])
	if value := skipWhitespace(rest); !d.HasParams && len(value) > 0 && len(skipWhitespace(value[1:])) == 0 {
		switch value[0].Type {
		case directiveSymbols["String"]:
			d.ValueKind = "String"
		case directiveSymbols["Char"]:
			d.ValueKind = "Char"
		case directiveSymbols["Number"]:
			d.ValueKind = "Number"
		}
	}
	return d, nil
}

func skipWhitespace(toks []plexer.Token) []plexer.Token {
	for len(toks) > 0 && toks[0].Type == directiveSymbols["Whitespace"] {
		toks = toks[1:]
	}
	return toks
}
