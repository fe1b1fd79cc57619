package lexer_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/clex/pkg/config"
	"github.com/xplshn/clex/pkg/lexer"
	"github.com/xplshn/clex/pkg/token"
	"github.com/xplshn/clex/pkg/util"
)

// tokenCase is a single (kind, text) expectation used in table-driven tests.
type tokenCase struct {
	Kind  token.Kind
	Value string
}

func newLexer(cfg *config.Config, input string) (*lexer.Lexer, *bytes.Buffer) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	var diag bytes.Buffer
	return lexer.NewLexer(util.DecodeSource([]byte(input)), cfg, util.NewDiagnostics(&diag, cfg)), &diag
}

// lexAll returns every token up to and including EOF.
func lexAll(t *testing.T, cfg *config.Config, input string) ([]token.Token, string) {
	t.Helper()
	l, diag := newLexer(cfg, input)
	var toks []token.Token
	for i := 0; i < 10000; i++ {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, diag.String()
		}
	}
	t.Fatalf("lexer did not reach EOF on %q", input)
	return nil, ""
}

// runCases lexes input and compares the (kind, text) pairs before EOF.
func runCases(t *testing.T, cfg *config.Config, input string, want []tokenCase) string {
	t.Helper()
	toks, diag := lexAll(t, cfg, input)
	got := make([]tokenCase, 0, len(toks))
	for _, tok := range toks[:len(toks)-1] {
		got = append(got, tokenCase{tok.Kind, tok.Value})
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens for %q mismatch (-want +got):\n%s", input, diff)
	}
	return diag
}

func TestLexer_Declaration(t *testing.T) {
	diag := runCases(t, nil, "int a = 10;", []tokenCase{
		{token.TypeName, "int"},
		{token.Ident, "a"},
		{token.Op, "="},
		{token.Number, "10"},
		{token.Punct, ";"},
	})
	if diag != "" {
		t.Errorf("unexpected diagnostics: %q", diag)
	}
}

func TestLexer_KeywordsAndTypes(t *testing.T) {
	runCases(t, nil, "unsigned long static struct foo return _Bool iffy", []tokenCase{
		{token.TypeName, "unsigned"},
		{token.TypeName, "long"},
		{token.Keyword, "static"},
		{token.Keyword, "struct"},
		{token.Ident, "foo"},
		{token.Keyword, "return"},
		{token.TypeName, "_Bool"},
		{token.Ident, "iffy"},
	})
}

func TestLexer_Operators(t *testing.T) {
	runCases(t, nil, "a += b->c ... ? : ~ << >>= && || ++ -- != == . -= %", []tokenCase{
		{token.Ident, "a"},
		{token.Op, "+="},
		{token.Ident, "b"},
		{token.Op, "->"},
		{token.Ident, "c"},
		{token.Punct, "..."},
		{token.Op, "?"},
		{token.Op, ":"},
		{token.Op, "~"},
		{token.Op, "<<"},
		{token.Op, ">>="},
		{token.Op, "&&"},
		{token.Op, "||"},
		{token.Op, "++"},
		{token.Op, "--"},
		{token.Op, "!="},
		{token.Op, "=="},
		{token.Op, "."},
		{token.Op, "-="},
		{token.Op, "%"},
	})
}

func TestLexer_Punctuators(t *testing.T) {
	runCases(t, nil, "f(a[1]) { x, y; }", []tokenCase{
		{token.Ident, "f"},
		{token.Punct, "("},
		{token.Ident, "a"},
		{token.Punct, "["},
		{token.Number, "1"},
		{token.Punct, "]"},
		{token.Punct, ")"},
		{token.Punct, "{"},
		{token.Ident, "x"},
		{token.Punct, ","},
		{token.Ident, "y"},
		{token.Punct, ";"},
		{token.Punct, "}"},
	})
}

func TestLexer_Numbers(t *testing.T) {
	toks, diag := lexAll(t, nil, "42 0x1Fu 0755 0b101 3.14 1e10 2.5f .5 1. 10UL 6.02E+23")
	type numCase struct {
		Value string
		Const token.ConstType
	}
	want := []numCase{
		{"42", token.ConstInt},
		{"0x1Fu", token.ConstHex},
		{"0755", token.ConstOct},
		{"0b101", token.ConstBin},
		{"3.14", token.ConstFloat},
		{"1e10", token.ConstFloat},
		{"2.5f", token.ConstFloat},
		{".5", token.ConstFloat},
		{"1.", token.ConstFloat},
		{"10UL", token.ConstInt},
		{"6.02E+23", token.ConstFloat},
	}
	var got []numCase
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind != token.Number {
			t.Errorf("%q: got kind %s, want NUMBER", tok.Value, tok.Kind)
		}
		got = append(got, numCase{tok.Value, tok.Const})
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("numbers mismatch (-want +got):\n%s", diff)
	}
	if diag != "" {
		t.Errorf("unexpected diagnostics: %q", diag)
	}
}

// TestLexer_MalformedFloat checks that "20.5.3" is a good number followed by
// one bad fragment rather than one combined error.
func TestLexer_MalformedFloat(t *testing.T) {
	diag := runCases(t, nil, "float b = 20.5.3;", []tokenCase{
		{token.TypeName, "float"},
		{token.Ident, "b"},
		{token.Op, "="},
		{token.Number, "20.5"},
		{token.Error, ".3"},
		{token.Punct, ";"},
	})
	if want := "[line 1] ERROR: Invalid token '.3'\n"; diag != want {
		t.Errorf("diagnostics = %q, want %q", diag, want)
	}
}

func TestLexer_NumberGluedToLetters(t *testing.T) {
	diag := runCases(t, nil, "123abc", []tokenCase{
		{token.Error, "1"},
		{token.Error, "2"},
		{token.Error, "3"},
		{token.Ident, "abc"},
	})
	want := "[line 1] ERROR: Invalid token '1'\n" +
		"[line 1] ERROR: Invalid token '2'\n" +
		"[line 1] ERROR: Invalid token '3'\n"
	if diag != want {
		t.Errorf("diagnostics = %q, want %q", diag, want)
	}
}

func TestLexer_BadOctal(t *testing.T) {
	runCases(t, nil, "09", []tokenCase{
		{token.Error, "0"},
		{token.Number, "9"},
	})
}

func TestLexer_BinaryLiteralsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.ApplyStd("c99"); err != nil {
		t.Fatal(err)
	}
	runCases(t, cfg, "0b101", []tokenCase{
		{token.Error, "0"},
		{token.Ident, "b101"},
	})
}

func TestLexer_Comments(t *testing.T) {
	runCases(t, nil, "x // line comment\ny /* block\ncomment */ z", []tokenCase{
		{token.Ident, "x"},
		{token.Ident, "y"},
		{token.Ident, "z"},
	})
}

// TestLexer_CommentsDoNotNest checks that a block comment ends at the first "*/".
func TestLexer_CommentsDoNotNest(t *testing.T) {
	diag := runCases(t, nil, "a /* outer /* inner */ tail */ c", []tokenCase{
		{token.Ident, "a"},
		{token.Ident, "tail"},
		{token.Op, "*"},
		{token.Op, "/"},
		{token.Ident, "c"},
	})
	if diag != "" {
		t.Errorf("unexpected diagnostics: %q", diag)
	}
}

func TestLexer_LineCommentsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatLineComments, false)
	runCases(t, cfg, "a // b", []tokenCase{
		{token.Ident, "a"},
		{token.Op, "/"},
		{token.Op, "/"},
		{token.Ident, "b"},
	})
}

func TestLexer_UnterminatedComment(t *testing.T) {
	diag := runCases(t, nil, "a\n/* never closed", []tokenCase{
		{token.Ident, "a"},
	})
	if want := "[line 2] ERROR: Unterminated block comment\n"; diag != want {
		t.Errorf("diagnostics = %q, want %q", diag, want)
	}
}

func TestLexer_StringsAndChars(t *testing.T) {
	diag := runCases(t, nil, `"hi\n" 'a' 'xy' '\'' "say \"x\""`, []tokenCase{
		{token.String, `"hi\n"`},
		{token.Char, `'a'`},
		{token.Char, `'xy'`},
		{token.Char, `'\''`},
		{token.String, `"say \"x\""`},
	})
	if diag != "" {
		t.Errorf("multi-character constants are not errors, got %q", diag)
	}
}

func TestLexer_UnterminatedLiterals(t *testing.T) {
	diag := runCases(t, nil, "\"abc\nint 'q\nx", []tokenCase{
		{token.Error, `"abc`},
		{token.TypeName, "int"},
		{token.Error, `'q`},
		{token.Ident, "x"},
	})
	want := "[line 1] ERROR: Unterminated string literal\n" +
		"[line 2] ERROR: Unterminated character literal\n"
	if diag != want {
		t.Errorf("diagnostics = %q, want %q", diag, want)
	}
}

// TestLexer_InvalidCharacters checks one diagnostic per bad character, each
// with its own line, and that scanning carries on.
func TestLexer_InvalidCharacters(t *testing.T) {
	diag := runCases(t, nil, "a $ b\n$\n@c", []tokenCase{
		{token.Ident, "a"},
		{token.Error, "$"},
		{token.Ident, "b"},
		{token.Error, "$"},
		{token.Error, "@"},
		{token.Ident, "c"},
	})
	want := "[line 1] ERROR: Invalid token '$'\n" +
		"[line 2] ERROR: Invalid token '$'\n" +
		"[line 3] ERROR: Invalid token '@'\n"
	if diag != want {
		t.Errorf("diagnostics = %q, want %q", diag, want)
	}
}

func TestLexer_InvalidUTF8(t *testing.T) {
	diag := runCases(t, nil, "int a;\nb \xff\xfe c \"\xc3\"\n", []tokenCase{
		{token.TypeName, "int"},
		{token.Ident, "a"},
		{token.Punct, ";"},
		{token.Ident, "b"},
		{token.Error, `\xff`},
		{token.Error, `\xfe`},
		{token.Ident, "c"},
		{token.String, `"\xc3"`},
	})
	want := "[line 2] ERROR: Invalid token '\\xff'\n" +
		"[line 2] ERROR: Invalid token '\\xfe'\n"
	if diag != want {
		t.Errorf("diagnostics = %q, want %q", diag, want)
	}
}

func TestLexer_Position(t *testing.T) {
	toks, _ := lexAll(t, nil, "int x;\n  y\n\n\tz")
	type pos struct {
		Value        string
		Line, Column int
	}
	var got []pos
	for _, tok := range toks[:len(toks)-1] {
		got = append(got, pos{tok.Value, tok.Line, tok.Column})
	}
	want := []pos{
		{"int", 1, 1},
		{"x", 1, 5},
		{";", 1, 6},
		{"y", 2, 3},
		{"z", 4, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestLexer_Directives(t *testing.T) {
	input := "#include <stdio.h>\n" +
		"#define MAX 100\n" +
		"#define NAME \"x\"\n" +
		"#define SQ(x) ((x)*(x))\n" +
		"#define EMPTY\n" +
		"#define EXPR a + b\n" +
		"  #  pragma once\n" +
		"int y;"
	toks, diag := lexAll(t, nil, input)
	type dirCase struct {
		Kind  token.Kind
		Value string
		Line  int
	}
	var got []dirCase
	for _, tok := range toks[:len(toks)-1] {
		got = append(got, dirCase{tok.Kind, tok.Value, tok.Line})
	}
	want := []dirCase{
		{token.Preproc, "#include <stdio.h>", 1},
		{token.Preproc, "#define", 2},
		{token.Ident, "MAX", 2},
		{token.Number, "100", 2},
		{token.Preproc, "#define", 3},
		{token.Ident, "NAME", 3},
		{token.String, `"x"`, 3},
		{token.Preproc, "#define", 4},
		{token.Ident, "SQ", 4},
		{token.Preproc, "(x) ((x)*(x))", 4},
		{token.Preproc, "#define", 5},
		{token.Ident, "EMPTY", 5},
		{token.Preproc, "#define", 6},
		{token.Ident, "EXPR", 6},
		{token.Preproc, "a + b", 6},
		{token.Preproc, "#  pragma once", 7},
		{token.TypeName, "int", 8},
		{token.Ident, "y", 8},
		{token.Punct, ";", 8},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("directive tokens mismatch (-want +got):\n%s", diff)
	}
	if diag != "" {
		t.Errorf("unexpected diagnostics: %q", diag)
	}
}

func TestLexer_DirectiveContinuation(t *testing.T) {
	toks, _ := lexAll(t, nil, "#define LONG(a) \\\n  ((a) + 1)\nint z;")
	if toks[2].Value != "(a) ((a) + 1)" {
		t.Errorf("macro body = %q, want %q", toks[2].Value, "(a) ((a) + 1)")
	}
	if toks[3].Value != "int" || toks[3].Line != 3 {
		t.Errorf("token after directive = %q on line %d, want \"int\" on line 3", toks[3].Value, toks[3].Line)
	}
}

func TestLexer_HashInsideLine(t *testing.T) {
	runCases(t, nil, "a # b", []tokenCase{
		{token.Ident, "a"},
		{token.Error, "#"},
		{token.Ident, "b"},
	})
}

func TestLexer_PreprocessorDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatPreprocessor, false)
	runCases(t, cfg, "#x", []tokenCase{
		{token.Error, "#"},
		{token.Ident, "x"},
	})
}

func TestLexer_Modes(t *testing.T) {
	l, _ := newLexer(nil, "#define X 1\nf(a)")
	if l.Mode() != lexer.ModeCode {
		t.Fatalf("initial mode = %s, want Code", l.Mode())
	}
	if tok := l.Next(); tok.Value != "#define" {
		t.Fatalf("first token = %q", tok.Value)
	}
	if l.Mode() != lexer.ModePreprocessorLine {
		t.Errorf("mode inside directive = %s, want PreprocessorLine", l.Mode())
	}
	l.Next() // X
	l.Next() // 1
	if l.Mode() != lexer.ModeCode {
		t.Errorf("mode after directive = %s, want Code", l.Mode())
	}

	f := l.Next()
	if !l.NextIsCall() {
		t.Fatalf("NextIsCall after %q = false", f.Value)
	}
	l.BeginCapture(f.Value, f.Line)
	if l.Mode() != lexer.ModeArgumentCapture {
		t.Errorf("mode after BeginCapture = %s, want ArgumentCapture", l.Mode())
	}
	l.Next() // (
	l.Next() // a
	l.Next() // )
	if l.Mode() != lexer.ModeCode {
		t.Errorf("mode after ')' = %s, want Code", l.Mode())
	}
	want := []lexer.Capture{{Owner: "f", Args: "a", Line: 2, Kind: lexer.CaptureCall}}
	if diff := cmp.Diff(want, l.Captures()); diff != "" {
		t.Errorf("captures mismatch (-want +got):\n%s", diff)
	}
	if got := l.Captures(); len(got) != 0 {
		t.Errorf("Captures did not drain: %v", got)
	}
}

// TestLexer_NestedCaptures drives captures the way the scanner does: one per
// identifier directly followed by '('.
func TestLexer_NestedCaptures(t *testing.T) {
	l, _ := newLexer(nil, "f(g(x), 1)")
	var got []lexer.Capture
	for {
		tok := l.Next()
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind == token.Ident && l.NextIsCall() {
			l.BeginCapture(tok.Value, tok.Line)
		}
		got = append(got, l.Captures()...)
	}
	want := []lexer.Capture{
		{Owner: "g", Args: "x", Line: 1},
		{Owner: "f", Args: "g(x), 1", Line: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("captures mismatch (-want +got):\n%s", diff)
	}
}

func TestLexer_CaptureDroppedAtEOF(t *testing.T) {
	l, _ := newLexer(nil, "f(a, b")
	for {
		tok := l.Next()
		if tok.Kind == token.Ident && l.NextIsCall() {
			l.BeginCapture(tok.Value, tok.Line)
		}
		if tok.Kind == token.EOF {
			break
		}
	}
	if got := l.Captures(); len(got) != 0 {
		t.Errorf("unclosed call produced captures: %v", got)
	}
	if l.Mode() != lexer.ModeCode {
		t.Errorf("mode at EOF = %s, want Code", l.Mode())
	}
}

func TestLexer_MacroCapture(t *testing.T) {
	l, _ := newLexer(nil, "#define SQ(x) x\n")
	l.Next() // #define
	l.Next() // SQ
	if got := l.Captures(); len(got) != 0 {
		t.Errorf("capture delivered before the parameter token: %v", got)
	}
	l.Next()
	want := []lexer.Capture{{Owner: "SQ", Args: "x", Line: 1, Kind: lexer.CaptureMacro}}
	if diff := cmp.Diff(want, l.Captures()); diff != "" {
		t.Errorf("captures mismatch (-want +got):\n%s", diff)
	}
}

func TestLexer_Warnings(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		input string
		want  string
	}{
		{"unrecognized escape", nil, `"a\qb"`, "[line 1] warning: Unrecognized escape sequence '\\q' [-Wu-esc]\n"},
		{"overflow", nil, "99999999999999999999", "[line 1] warning: Integer constant overflow: 99999999999999999999 [-Woverflow]\n"},
		{"multi-char off by default", nil, "'xy'", ""},
		{"multi-char", []string{"-Wmulti-char-const"}, "'xy'", "[line 1] warning: Multi-character character constant 'xy' [-Wmulti-char-const]\n"},
		{"empty char", []string{"-Wall"}, "''", "[line 1] warning: Empty character constant [-Wempty-char-const]\n"},
		{"octal", []string{"-Woctal"}, "0755", "[line 1] warning: Legacy octal literal '0755' [-Woctal]\n"},
		{"nested comment", []string{"-Wnested-comment"}, "/* a /* b */", "[line 1] warning: '/*' within block comment [-Wnested-comment]\n"},
		{"unknown directive", []string{"-Wextra"}, "#frobnicate 1", "[line 1] warning: Unknown preprocessor directive '#frobnicate' [-Wextra]\n"},
		{"disabled", []string{"-Wno-u-esc"}, `"a\qb"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.ProcessFlags(tt.flags)
			_, diag := lexAll(t, cfg, tt.input)
			if diag != tt.want {
				t.Errorf("diagnostics = %q, want %q", diag, tt.want)
			}
		})
	}
}

func TestLexer_EscapesDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatCEsc, false)
	// without escapes the backslash does not protect the quote
	runCases(t, cfg, `"a\" b`, []tokenCase{
		{token.String, `"a\"`},
		{token.Ident, "b"},
	})
}

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode lexer.Mode
		want string
	}{
		{lexer.ModeCode, "Code"},
		{lexer.ModeArgumentCapture, "ArgumentCapture"},
		{lexer.Mode(-1), "UNKNOWN"},
		{lexer.ModeArgumentCapture + 1, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", int(tt.mode), got, tt.want)
		}
	}
}
