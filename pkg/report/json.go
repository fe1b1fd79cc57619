package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/xplshn/clex/pkg/token"
	"github.com/xplshn/clex/pkg/util"
)

type jsonToken struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Const  string `json:"const,omitempty"`
}

type jsonSymbol struct {
	Name       string   `json:"name"`
	Type       string   `json:"type,omitempty"`
	Dimensions string   `json:"dimensions,omitempty"`
	Frequency  int      `json:"frequency"`
	ReturnType string   `json:"return_type,omitempty"`
	IsFunction bool     `json:"is_function"`
	Parameters []string `json:"parameters,omitempty"`
}

type jsonConstant struct {
	Variable string `json:"variable"`
	Line     int    `json:"line"`
	Value    string `json:"value"`
	Type     string `json:"type"`
}

// Document is the JSON form of a whole scan.
type Document struct {
	Source     string         `json:"source"`
	SourceHash string         `json:"source_hash"`
	Tokens     []jsonToken    `json:"tokens,omitempty"`
	Symbols    []jsonSymbol   `json:"symbols,omitempty"`
	Constants  []jsonConstant `json:"constants,omitempty"`
	Errors     int            `json:"errors"`
	Warnings   int            `json:"warnings"`
}

// JSON buffers the scan and writes one Document when it finishes.
type JSON struct {
	w    io.Writer
	src  util.SourceFileRecord
	opts Options
	doc  Document
}

func (j *JSON) Token(tok token.Token) error {
	if j.opts.Tokens {
		j.doc.Tokens = append(j.doc.Tokens, jsonToken{
			Line: tok.Line, Column: tok.Column, Kind: tok.Kind.String(), Text: tok.Value, Const: string(tok.Const),
		})
	}
	return nil
}

func (j *JSON) Finish(sum Summary) error {
	j.doc.Source = j.src.Name
	j.doc.SourceHash = SourceHash(j.src.Content)
	j.doc.Errors = sum.Errors
	j.doc.Warnings = sum.Warnings

	if j.opts.Tables {
		for _, s := range sum.Symbols.All() {
			j.doc.Symbols = append(j.doc.Symbols, jsonSymbol{
				Name: s.Name, Type: s.Type, Dimensions: s.Dimensions, Frequency: s.Frequency,
				ReturnType: s.ReturnType, IsFunction: s.IsFunction, Parameters: s.Parameters(),
			})
		}
		for _, c := range sum.Constants.All() {
			j.doc.Constants = append(j.doc.Constants, jsonConstant{
				Variable: c.Variable, Line: c.Line, Value: c.Value, Type: string(c.Type),
			})
		}
	}

	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j.doc); err != nil {
		return fmt.Errorf("writing JSON report: %w", err)
	}
	return nil
}

// SourceHash is the xxhash digest of the scanned text, in hex.
func SourceHash(content []rune) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(string(content)))
}
