package lexer

import (
	"strings"

	"github.com/xplshn/clex/pkg/config"
	"github.com/xplshn/clex/pkg/token"
	"github.com/xplshn/clex/pkg/util"
)

// Mode is the active sub-grammar of the lexer.
type Mode int

const (
	ModeCode Mode = iota
	ModeBlockComment
	ModeStringLiteral
	ModeCharLiteral
	ModePreprocessorLine
	ModeArgumentCapture
)

var modeNames = [...]string{
	ModeCode:             "Code",
	ModeBlockComment:     "BlockComment",
	ModeStringLiteral:    "StringLiteral",
	ModeCharLiteral:      "CharLiteral",
	ModePreprocessorLine: "PreprocessorLine",
	ModeArgumentCapture:  "ArgumentCapture",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "UNKNOWN"
}

type CaptureKind int

const (
	CaptureCall CaptureKind = iota
	CaptureMacro
)

// Capture is the raw text between the parentheses of a call (or of a
// function-like macro's parameter list).
type Capture struct {
	Owner string
	Args  string
	Line  int
	Kind  CaptureKind
}

type pendingToken struct {
	tok     token.Token
	capture *Capture
}

type openCapture struct {
	owner string
	line  int
	depth int
	start int
}

type Lexer struct {
	source []rune
	pos    int
	line   int
	column int
	cfg    *config.Config
	diag   *util.Diagnostics

	mode          Mode
	lineHasToken  bool
	lastNumberEnd int
	pending       []pendingToken

	parenDepth int
	captures   []openCapture
	finished   []Capture
}

func NewLexer(source []rune, cfg *config.Config, diag *util.Diagnostics) *Lexer {
	return &Lexer{
		source: source, line: 1, column: 1, cfg: cfg, diag: diag,
		lastNumberEnd: -1,
	}
}

func (l *Lexer) Mode() Mode { return l.mode }

func (l *Lexer) baseMode() Mode {
	if len(l.captures) > 0 {
		return ModeArgumentCapture
	}
	return ModeCode
}

func (l *Lexer) Next() token.Token {
	if len(l.pending) > 0 {
		p := l.pending[0]
		l.pending = l.pending[1:]
		if p.capture != nil {
			l.finished = append(l.finished, *p.capture)
		}
		if len(l.pending) == 0 {
			l.mode = l.baseMode()
		}
		return p.tok
	}

	for {
		l.skipWhitespaceAndComments()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			l.captures = nil
			l.mode = ModeCode
			return l.makeToken(token.EOF, startPos, startCol, startLine)
		}

		ch := l.peek()
		if ch == '#' && !l.lineHasToken && l.cfg.IsFeatureEnabled(config.FeatPreprocessor) {
			l.lineHasToken = true
			return l.directive(startCol, startLine)
		}
		l.lineHasToken = true

		if isIdentStart(ch) {
			l.advance()
			return l.identifierOrKeyword(startPos, startCol, startLine)
		}
		if isDigit(ch) || (ch == '.' && isDigit(l.peekNext())) {
			return l.numberLiteral(startPos, startCol, startLine)
		}

		l.advance()
		switch ch {
		case '(':
			return l.openParen(startPos, startCol, startLine)
		case ')':
			return l.closeParen(startPos, startCol, startLine)
		case '{', '}', '[', ']', ';', ',':
			return l.makeToken(token.Punct, startPos, startCol, startLine)
		case '~', '?', ':':
			return l.makeToken(token.Op, startPos, startCol, startLine)
		case '=', '!', '*', '/', '%', '^':
			l.match('=')
			return l.makeToken(token.Op, startPos, startCol, startLine)
		case '+', '&', '|':
			if !l.match(ch) {
				l.match('=')
			}
			return l.makeToken(token.Op, startPos, startCol, startLine)
		case '-':
			if !l.match('-') && !l.match('>') {
				l.match('=')
			}
			return l.makeToken(token.Op, startPos, startCol, startLine)
		case '<', '>':
			l.match(ch)
			l.match('=')
			return l.makeToken(token.Op, startPos, startCol, startLine)
		case '.':
			if l.peek() == '.' && l.peekNext() == '.' {
				l.advance()
				l.advance()
				return l.makeToken(token.Punct, startPos, startCol, startLine)
			}
			return l.makeToken(token.Op, startPos, startCol, startLine)
		case '"':
			return l.stringLiteral(startPos, startCol, startLine)
		case '\'':
			return l.charLiteral(startPos, startCol, startLine)
		}

		return l.invalid(startPos, startCol, startLine)
	}
}

// NextIsCall reports whether the next non-blank character on the current
// line is '('. Used right after an identifier.
func (l *Lexer) NextIsCall() bool {
	if l.mode == ModePreprocessorLine {
		return false
	}
	for i := l.pos; i < len(l.source); i++ {
		switch l.source[i] {
		case ' ', '\t':
			continue
		case '(':
			return true
		default:
			return false
		}
	}
	return false
}

// BeginCapture enters ArgumentCapture for the call whose '(' is the next token.
func (l *Lexer) BeginCapture(owner string, line int) {
	l.captures = append(l.captures, openCapture{owner: owner, line: line, depth: l.parenDepth, start: -1})
	l.mode = ModeArgumentCapture
}

// Captures returns the captures completed since the previous call.
func (l *Lexer) Captures() []Capture {
	done := l.finished
	l.finished = nil
	return done
}

func (l *Lexer) openParen(startPos, startCol, startLine int) token.Token {
	if n := len(l.captures); n > 0 && l.captures[n-1].start < 0 {
		l.captures[n-1].start = l.pos
	}
	l.parenDepth++
	return l.makeToken(token.Punct, startPos, startCol, startLine)
}

func (l *Lexer) closeParen(startPos, startCol, startLine int) token.Token {
	if l.parenDepth > 0 {
		l.parenDepth--
	}
	if n := len(l.captures); n > 0 && l.captures[n-1].start >= 0 && l.captures[n-1].depth == l.parenDepth {
		c := l.captures[n-1]
		l.captures = l.captures[:n-1]
		l.finished = append(l.finished, Capture{
			Owner: c.owner,
			Args:  strings.TrimSpace(util.SourceText(l.source[c.start:startPos])),
			Line:  c.line,
			Kind:  CaptureCall,
		})
		l.mode = l.baseMode()
	}
	return l.makeToken(token.Punct, startPos, startCol, startLine)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
		l.lineHasToken = false
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(kind token.Kind, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Kind: kind, Value: util.SourceText(l.source[startPos:l.pos]),
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

// invalid turns the already consumed lexeme into an ERROR token and reports it.
func (l *Lexer) invalid(startPos, startCol, startLine int) token.Token {
	tok := l.makeToken(token.Error, startPos, startCol, startLine)
	l.diag.InvalidToken(tok)
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.advance()
		case '\\':
			// line splice outside of a directive
			if l.peekNext() != '\n' {
				return
			}
			l.advance()
			l.advance()
		case '/':
			switch {
			case l.peekNext() == '*':
				l.blockComment()
			case l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatLineComments):
				l.lineComment()
			default:
				return
			}
		default:
			return
		}
	}
}

// blockComment ends at the first "*/"; nesting is not tracked.
func (l *Lexer) blockComment() {
	startTok := l.makeToken(token.Error, l.pos, l.column, l.line)
	prevMode := l.mode
	l.mode = ModeBlockComment
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			l.mode = prevMode
			return
		}
		if l.peek() == '/' && l.peekNext() == '*' {
			l.diag.Warn(config.WarnNestedComment, l.makeToken(token.Error, l.pos, l.column, l.line), "'/*' within block comment")
		}
		l.advance()
	}
	startTok.Len = 2
	l.diag.Error(startTok, "Unterminated block comment")
	l.mode = prevMode
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isIdentChar(l.peek()) {
		l.advance()
	}
	tok := l.makeToken(token.Ident, startPos, startCol, startLine)
	if kind, isKeyword := token.KeywordMap[tok.Value]; isKeyword {
		tok.Kind = kind
	}
	return tok
}

// numberLiteral matches one numeric literal. A literal glued to a following
// identifier character is not a match: only its first character is consumed,
// as an ERROR, and scanning resumes right after it.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	end, tag, ok := scanNumber(l.source, startPos, l.cfg.IsFeatureEnabled(config.FeatBinaryLiterals))
	if !ok {
		l.advance()
		l.lastNumberEnd = l.pos
		return l.invalid(startPos, startCol, startLine)
	}
	for l.pos < end {
		l.advance()
	}
	adjacent := startPos == l.lastNumberEnd
	l.lastNumberEnd = l.pos

	// ".3" directly after "20.5" is the tail of a malformed literal.
	if adjacent && l.source[startPos] == '.' {
		return l.invalid(startPos, startCol, startLine)
	}

	tok := l.makeToken(token.Number, startPos, startCol, startLine)
	tok.Const = tag
	l.checkNumber(tok)
	return tok
}

func (l *Lexer) checkNumber(tok token.Token) {
	switch tok.Const {
	case token.ConstFloat:
		return
	case token.ConstOct:
		l.diag.Warn(config.WarnOctal, tok, "Legacy octal literal '%s'", tok.Value)
	}
	if !fitsUint64(tok.Value, tok.Const) {
		l.diag.Warn(config.WarnOverflow, tok, "Integer constant overflow: %s", tok.Value)
	}
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) token.Token {
	l.mode = ModeStringLiteral
	defer func() { l.mode = l.baseMode() }()
	for !l.isAtEnd() && l.peek() != '\n' {
		c := l.advance()
		switch {
		case c == '"':
			return l.makeToken(token.String, startPos, startCol, startLine)
		case c == '\\' && l.cfg.IsFeatureEnabled(config.FeatCEsc):
			l.decodeEscape(startPos, startCol, startLine)
		}
	}
	tok := l.makeToken(token.Error, startPos, startCol, startLine)
	l.diag.Error(tok, "Unterminated string literal")
	return tok
}

// charLiteral accepts multi-character constants such as 'xy'.
func (l *Lexer) charLiteral(startPos, startCol, startLine int) token.Token {
	l.mode = ModeCharLiteral
	defer func() { l.mode = l.baseMode() }()
	chars := 0
	for !l.isAtEnd() && l.peek() != '\n' {
		c := l.advance()
		switch {
		case c == '\'':
			tok := l.makeToken(token.Char, startPos, startCol, startLine)
			switch {
			case chars == 0:
				l.diag.Warn(config.WarnEmptyCharConst, tok, "Empty character constant")
			case chars > 1:
				l.diag.Warn(config.WarnMultiCharConst, tok, "Multi-character character constant %s", tok.Value)
			}
			return tok
		case c == '\\' && l.cfg.IsFeatureEnabled(config.FeatCEsc):
			l.decodeEscape(startPos, startCol, startLine)
		}
		chars++
	}
	tok := l.makeToken(token.Error, startPos, startCol, startLine)
	l.diag.Error(tok, "Unterminated character literal")
	return tok
}

// decodeEscape consumes the body of an escape sequence whose backslash has
// already been consumed. Only validity matters: literal text is kept raw.
func (l *Lexer) decodeEscape(startPos, startCol, startLine int) {
	if l.isAtEnd() {
		return
	}
	c := l.peek()
	if c == '\n' {
		l.advance()
		return
	}
	switch c {
	case 'n', 't', 'r', 'a', 'b', 'f', 'v', 'e', '\\', '\'', '"', '?':
		l.advance()
		return
	case 'x':
		l.advance()
		n := 0
		for isHexDigit(l.peek()) {
			l.advance()
			n++
		}
		if n > 0 {
			return
		}
	case 'u', 'U':
		want := 4
		if c == 'U' {
			want = 8
		}
		l.advance()
		n := 0
		for n < want && isHexDigit(l.peek()) {
			l.advance()
			n++
		}
		if n == want {
			return
		}
	default:
		if c >= '0' && c <= '7' {
			for n := 0; n < 3 && l.peek() >= '0' && l.peek() <= '7'; n++ {
				l.advance()
			}
			return
		}
		l.advance()
	}
	tok := l.makeToken(token.String, startPos, startCol, startLine)
	l.diag.Warn(config.WarnUnrecognizedEscape, tok, "Unrecognized escape sequence '\\%c'", c)
}

// directive consumes one logical preprocessor line, continuations included,
// and queues the tokens it splits into.
func (l *Lexer) directive(startCol, startLine int) token.Token {
	l.mode = ModePreprocessorLine
	var text strings.Builder
	for !l.isAtEnd() && l.peek() != '\n' {
		switch c := l.peek(); {
		case c == '\\' && l.peekNext() == '\n':
			l.advance()
			l.advance()
			l.lineHasToken = true
			text.WriteByte(' ')
		case c == '"' || c == '\'':
			l.copyQuoted(&text, c)
		case c == '/' && l.peekNext() == '*':
			l.blockComment()
			text.WriteByte(' ')
		case c == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatLineComments):
			l.lineComment()
		default:
			text.WriteRune(l.advance())
		}
	}
	raw := strings.TrimSpace(text.String())

	at := func(kind token.Kind, value string) token.Token {
		return token.Token{Kind: kind, Value: value, Line: startLine, Column: startCol, Len: len([]rune(value))}
	}
	queue := func(tok token.Token, c *Capture) {
		l.pending = append(l.pending, pendingToken{tok: tok, capture: c})
	}

	d, err := ParseDirective(raw)
	if err == nil && d.Name != "" && !knownDirectives[d.Name] {
		l.diag.Warn(config.WarnExtra, at(token.Preproc, raw), "Unknown preprocessor directive '#%s'", d.Name)
	}
	if err != nil || !d.IsDefine() || d.Macro == "" {
		queue(at(token.Preproc, raw), nil)
		return l.Next()
	}

	queue(at(token.Preproc, d.Head), nil)
	queue(at(token.Ident, d.Macro), nil)
	switch {
	case d.HasParams:
		c := &Capture{Owner: d.Macro, Args: d.Params, Line: startLine, Kind: CaptureMacro}
		queue(at(token.Preproc, strings.TrimSpace("("+d.Params+") "+d.Body)), c)
	case d.ValueKind != "":
		queue(l.macroValue(d, at), nil)
	case d.Body != "":
		queue(at(token.Preproc, d.Body), nil)
	}
	return l.Next()
}

var knownDirectives = map[string]bool{
	"define": true, "undef": true, "include": true, "include_next": true, "embed": true,
	"if": true, "ifdef": true, "ifndef": true, "elif": true, "elifdef": true, "elifndef": true,
	"else": true, "endif": true, "line": true, "error": true, "warning": true, "pragma": true,
}

// copyQuoted copies a quoted run of a directive line so that "//" or "/*"
// inside it are not taken for comments.
func (l *Lexer) copyQuoted(text *strings.Builder, quote rune) {
	text.WriteRune(l.advance())
	for !l.isAtEnd() && l.peek() != '\n' {
		r := l.advance()
		text.WriteRune(r)
		if r == '\\' && !l.isAtEnd() && l.peek() != '\n' {
			text.WriteRune(l.advance())
		} else if r == quote {
			return
		}
	}
}

// macroValue classifies the single-literal value of an object-like macro
// with the same rules as ordinary code.
func (l *Lexer) macroValue(d Directive, at func(token.Kind, string) token.Token) token.Token {
	switch d.ValueKind {
	case "String":
		return at(token.String, d.Body)
	case "Char":
		return at(token.Char, d.Body)
	}
	value := []rune(d.Body)
	end, tag, ok := scanNumber(value, 0, l.cfg.IsFeatureEnabled(config.FeatBinaryLiterals))
	if !ok || end != len(value) {
		return at(token.Preproc, d.Body)
	}
	tok := at(token.Number, d.Body)
	tok.Const = tag
	l.checkNumber(tok)
	return tok
}

func isDigit(ch rune) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch rune) bool { return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }
func isIdentChar(ch rune) bool  { return isIdentStart(ch) || isDigit(ch) }
func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
