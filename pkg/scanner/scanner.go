// Package scanner drives one pass over a C source: it pulls tokens from the
// lexer, derives declaration/assignment/call context from the token sequence
// alone, and fills the symbol and constant tables as it goes.
package scanner

import (
	"github.com/xplshn/clex/pkg/config"
	"github.com/xplshn/clex/pkg/lexer"
	"github.com/xplshn/clex/pkg/table"
	"github.com/xplshn/clex/pkg/token"
	"github.com/xplshn/clex/pkg/util"
)

// context is one of noContext, *declaring or *assigning.
type context interface{ isContext() }

type noContext struct{}

// declaring follows a type keyword until ';', '{' or '}'.
type declaring struct {
	typeText string
}

// assigning follows '=' after an identifier until a literal is seen or the
// statement ends. decl is the declaration the initializer belongs to, if any.
type assigning struct {
	target string
	decl   *declaring
	braces int
	parens int
}

func (noContext) isContext()  {}
func (*declaring) isContext() {}
func (*assigning) isContext() {}

// resume is the context that follows a finished assignment.
func (a *assigning) resume() context {
	if a.decl != nil && a.parens == 0 {
		return a.decl
	}
	return noContext{}
}

// subscript tracks "[" NUMBER "]" right after an identifier.
type subscript struct {
	owner   string
	open    bool
	content string
	invalid bool
}

// macroDef tracks "#define NAME VALUE" on a single directive line.
type macroDef struct {
	line int
	name string
}

// State is everything one scan owns: the lexer and its mode, the context
// tracker, and both tables.
type State struct {
	cfg  *config.Config
	lex  *lexer.Lexer
	diag *util.Diagnostics

	Symbols   *table.SymbolTable
	Constants *table.ConstantTable

	ctx          context
	lastWasIdent bool
	lastIdent    string
	prev         token.Token
	sub          subscript
	macro        *macroDef
	tokens       int
}

func NewState(source []rune, cfg *config.Config, diag *util.Diagnostics) *State {
	return &State{
		cfg:       cfg,
		lex:       lexer.NewLexer(source, cfg, diag),
		diag:      diag,
		Symbols:   table.NewSymbolTable(),
		Constants: table.NewConstantTable(),
		ctx:       noContext{},
	}
}

// Mode is the lexer's current mode.
func (s *State) Mode() lexer.Mode { return s.lex.Mode() }

func (s *State) ErrorCount() int   { return s.diag.ErrorCount() }
func (s *State) WarningCount() int { return s.diag.WarningCount() }
func (s *State) TokenCount() int   { return s.tokens }

// Next classifies the next token and applies its effects to the tables.
// At end of input it returns an EOF token and changes nothing.
func (s *State) Next() token.Token {
	tok := s.lex.Next()
	if tok.Kind == token.EOF {
		return tok
	}
	s.tokens++
	s.track(tok)
	for _, c := range s.lex.Captures() {
		s.Symbols.MarkFunction(c.Owner)
		if c.Kind == lexer.CaptureCall {
			s.Symbols.AppendParameters(c.Owner, c.Args)
		}
	}
	s.prev = tok
	return tok
}

// Run scans to end of input, handing every token to emit as soon as it is
// classified. An error from emit stops the scan and is returned.
func (s *State) Run(emit func(token.Token) error) error {
	for {
		tok := s.Next()
		if tok.Kind == token.EOF {
			return nil
		}
		if err := emit(tok); err != nil {
			return err
		}
	}
}

func (s *State) track(tok token.Token) {
	if s.macro != nil && tok.Line != s.macro.line {
		s.macro = nil
	}
	if s.macro != nil && s.trackMacro(tok) {
		return
	}

	keepSubscript := false
	switch tok.Kind {
	case token.TypeName:
		s.onType(tok)
		s.lastWasIdent = false
	case token.Ident:
		keepSubscript = s.onIdent(tok)
	case token.Number, token.String, token.Char:
		s.onLiteral(tok, literalType(tok))
		keepSubscript = s.sub.open
		s.lastWasIdent = false
	case token.Op:
		if tok.Value == "=" && s.lastWasIdent {
			a := &assigning{target: s.lastIdent}
			if d, ok := s.ctx.(*declaring); ok {
				a.decl = d
			}
			s.ctx = a
		}
		s.lastWasIdent = false
	case token.Punct:
		keepSubscript = s.onPunct(tok)
	case token.Preproc:
		if tok.Value == "#define" {
			s.macro = &macroDef{line: tok.Line}
		}
		s.lastWasIdent = false
	default:
		s.lastWasIdent = false
	}

	if s.sub.open && !keepSubscript {
		s.sub.invalid = true
	}
	if !s.sub.open && !keepSubscript {
		s.sub = subscript{}
	}
}

// trackMacro reports whether tok was consumed as part of a #define.
func (s *State) trackMacro(tok token.Token) bool {
	switch {
	case s.macro.name == "" && tok.Kind == token.Ident:
		s.Symbols.Touch(tok.Value)
		s.macro.name = tok.Value
		return true
	case s.macro.name != "" && tok.Kind.IsLiteral():
		s.Constants.Record(s.macro.name, tok.Line, tok.Value, token.ConstMacro)
		s.macro = nil
		return true
	}
	s.macro = nil
	return false
}

func (s *State) onType(tok token.Token) {
	switch ctx := s.ctx.(type) {
	case *declaring:
		if s.prev.Kind == token.TypeName {
			ctx.typeText += " " + tok.Value
		} else {
			ctx.typeText = tok.Value
		}
	case *assigning:
		// a cast inside an initializer
	default:
		// types inside call arguments are casts or sizeof operands
		if s.lex.Mode() != lexer.ModeArgumentCapture {
			s.ctx = &declaring{typeText: tok.Value}
		}
	}
}

func (s *State) onIdent(tok token.Token) bool {
	name := tok.Value
	s.Symbols.Touch(name)
	decl, isDeclaring := s.ctx.(*declaring)
	if isDeclaring {
		s.Symbols.SetTypeIfUnset(name, decl.typeText)
	}

	keepSubscript := false
	if !s.sub.open {
		s.sub = subscript{owner: name}
		keepSubscript = true
	}
	s.lastIdent = name
	s.lastWasIdent = true

	if s.lex.NextIsCall() {
		switch {
		case isDeclaring:
			s.Symbols.MarkFunction(name)
			s.Symbols.SetReturnType(name, decl.typeText)
		case s.cfg.IsFeatureEnabled(config.FeatCallCapture):
			s.Symbols.MarkFunction(name)
			s.lex.BeginCapture(name, tok.Line)
		}
	}
	return keepSubscript
}

func (s *State) onLiteral(tok token.Token, typ token.ConstType) {
	if s.sub.open && s.sub.content == "" && !s.sub.invalid && tok.Kind == token.Number {
		s.sub.content = tok.Value
	} else if s.sub.open {
		s.sub.invalid = true
	}

	a, ok := s.ctx.(*assigning)
	if !ok {
		s.Constants.Record(table.NoVariable, tok.Line, tok.Value, typ)
		return
	}
	s.Constants.Record(a.target, tok.Line, tok.Value, typ)
	if a.braces == 0 {
		s.ctx = a.resume()
	}
}

func (s *State) onPunct(tok token.Token) bool {
	wasIdent := s.lastWasIdent
	s.lastWasIdent = false
	a, isAssigning := s.ctx.(*assigning)

	switch tok.Value {
	case ";":
		s.ctx = noContext{}
	case "{":
		if isAssigning {
			a.braces++
		} else {
			s.ctx = noContext{}
		}
	case "}":
		switch {
		case isAssigning && a.braces > 1:
			a.braces--
		case isAssigning && a.braces == 1:
			a.braces = 0
			s.ctx = a.resume()
		default:
			s.ctx = noContext{}
		}
	case ",":
		if isAssigning && a.braces == 0 && a.parens == 0 {
			s.ctx = a.resume()
		}
	case "(":
		if isAssigning {
			a.parens++
		}
	case ")":
		if isAssigning && a.parens > 0 {
			a.parens--
		}
	case "[":
		if s.sub.owner != "" && !s.sub.open && (wasIdent || s.prev.Value == "]") {
			s.sub.open, s.sub.content, s.sub.invalid = true, "", false
			return true
		}
	case "]":
		if !s.sub.open {
			return false
		}
		_, isDeclaring := s.ctx.(*declaring)
		if !s.sub.invalid && (s.sub.content != "" || isDeclaring) {
			s.Symbols.AppendDimensions(s.sub.owner, "["+s.sub.content+"]")
		}
		s.sub.open = false
		// a subscripted name can still be an assignment target
		s.lastIdent = s.sub.owner
		s.lastWasIdent = true
		return true
	}
	return false
}

// literalType maps a literal token to its constant table tag.
func literalType(tok token.Token) token.ConstType {
	switch tok.Kind {
	case token.String:
		return token.ConstString
	case token.Char:
		return token.ConstChar
	}
	return tok.Const
}
