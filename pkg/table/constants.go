package table

import "github.com/xplshn/clex/pkg/token"

// NoVariable marks a constant seen outside any assignment context.
const NoVariable = "-"

type Constant struct {
	Variable string
	Line     int
	Value    string
	Type     token.ConstType
}

type ConstantTable struct {
	entries []Constant
}

func NewConstantTable() *ConstantTable { return &ConstantTable{} }

// Record appends unconditionally; entries are never merged or changed.
func (t *ConstantTable) Record(variable string, line int, value string, typ token.ConstType) {
	if variable == "" {
		variable = NoVariable
	}
	t.entries = append(t.entries, Constant{Variable: variable, Line: line, Value: value, Type: typ})
}

// Find returns the first constant with the given raw value and type.
func (t *ConstantTable) Find(value string, typ token.ConstType) (Constant, bool) {
	for _, c := range t.entries {
		if c.Value == value && c.Type == typ {
			return c, true
		}
	}
	return Constant{}, false
}

func (t *ConstantTable) Len() int { return len(t.entries) }

// All returns the constants in encounter order.
func (t *ConstantTable) All() []Constant { return t.entries }
