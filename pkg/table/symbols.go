// Package table holds the two tables built during a scan: the symbol table,
// keyed by identifier name, and the constant table, an append-only log of
// literal occurrences.
package table

import "strings"

// ParamDelimiter separates the argument lists of successive call sites.
const ParamDelimiter = "; "

// Symbol is the accumulated metadata of one identifier name.
type Symbol struct {
	Name       string
	Type       string
	Dimensions string
	Frequency  int
	ReturnType string
	IsFunction bool
	params     []string
}

// Parameters returns every recorded argument list, oldest first.
func (s *Symbol) Parameters() []string { return s.params }

// ParamText joins the recorded argument lists with ParamDelimiter. Each
// list is wrapped in parentheses so that empty calls stay visible.
func (s *Symbol) ParamText() string {
	if len(s.params) == 0 {
		return ""
	}
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, ParamDelimiter)
}

// SymbolTable maps names to symbols and remembers first-seen order for dumps.
type SymbolTable struct {
	byName map[string]*Symbol
	order  []*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol)}
}

// Touch records one occurrence of name, creating its symbol on first sight.
func (t *SymbolTable) Touch(name string) *Symbol {
	sym, ok := t.byName[name]
	if !ok {
		sym = &Symbol{Name: name}
		t.byName[name] = sym
		t.order = append(t.order, sym)
	}
	sym.Frequency++
	return sym
}

// Lookup finds a symbol without counting an occurrence.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := t.byName[name]
	return sym, ok
}

// SetTypeIfUnset applies the first declared type only; later ones are ignored.
func (t *SymbolTable) SetTypeIfUnset(name, typ string) bool {
	sym, ok := t.byName[name]
	if !ok || sym.Type != "" || typ == "" {
		return false
	}
	sym.Type = typ
	return true
}

func (t *SymbolTable) AppendDimensions(name, dims string) {
	if sym, ok := t.byName[name]; ok {
		sym.Dimensions += dims
	}
}

func (t *SymbolTable) AppendParameters(name, args string) {
	if sym, ok := t.byName[name]; ok {
		sym.params = append(sym.params, args)
	}
}

func (t *SymbolTable) SetReturnType(name, typ string) {
	if sym, ok := t.byName[name]; ok && sym.ReturnType == "" {
		sym.ReturnType = typ
	}
}

func (t *SymbolTable) MarkFunction(name string) {
	if sym, ok := t.byName[name]; ok {
		sym.IsFunction = true
	}
}

func (t *SymbolTable) Len() int { return len(t.order) }

// All returns the symbols in first-seen order.
func (t *SymbolTable) All() []*Symbol { return t.order }
