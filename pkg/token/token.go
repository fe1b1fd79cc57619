package token

// Kind is the classification reported for each lexeme.
type Kind int

const (
	EOF Kind = iota
	Keyword
	TypeName
	Ident
	String
	Char
	Number
	Op
	Punct
	Preproc
	Error
)

var kindNames = [...]string{
	EOF:      "EOF",
	Keyword:  "KEYWORD",
	TypeName: "TYPE",
	Ident:    "IDENT",
	String:   "STRING",
	Char:     "CHAR",
	Number:   "NUMBER",
	Op:       "OP",
	Punct:    "PUNCT",
	Preproc:  "PREPROC",
	Error:    "ERROR",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// IsLiteral reports whether tokens of this kind are logged in the constant table.
func (k Kind) IsLiteral() bool { return k == Number || k == String || k == Char }

var KeywordMap = map[string]Kind{
	"auto":     Keyword,
	"break":    Keyword,
	"case":     Keyword,
	"const":    Keyword,
	"continue": Keyword,
	"default":  Keyword,
	"do":       Keyword,
	"else":     Keyword,
	"enum":     Keyword,
	"extern":   Keyword,
	"for":      Keyword,
	"goto":     Keyword,
	"if":       Keyword,
	"inline":   Keyword,
	"register": Keyword,
	"restrict": Keyword,
	"return":   Keyword,
	"sizeof":   Keyword,
	"static":   Keyword,
	"struct":   Keyword,
	"switch":   Keyword,
	"typedef":  Keyword,
	"union":    Keyword,
	"volatile": Keyword,
	"while":    Keyword,

	"char":     TypeName,
	"double":   TypeName,
	"float":    TypeName,
	"int":      TypeName,
	"long":     TypeName,
	"short":    TypeName,
	"signed":   TypeName,
	"unsigned": TypeName,
	"void":     TypeName,
	"_Bool":    TypeName,
	"_Complex": TypeName,
}

// ConstType tags an entry of the constant table.
type ConstType string

const (
	ConstInt    ConstType = "int"
	ConstFloat  ConstType = "float"
	ConstHex    ConstType = "hex"
	ConstOct    ConstType = "oct"
	ConstBin    ConstType = "bin"
	ConstString ConstType = "string"
	ConstChar   ConstType = "char"
	ConstMacro  ConstType = "macro"
)

type Token struct {
	Kind   Kind
	Value  string
	Line   int
	Column int
	Len    int
	// Const is set on Number tokens to the literal's numeric form.
	Const ConstType
}
