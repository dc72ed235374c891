package token

type Type int

const (
	EOF Type = iota
	Ident
	Number
	String
	Fn
	Var
	Print
	Scan
	If
	While
	Return
	True
	False
	IntKeyword
	BoolKeyword
	StringKeyword
	VoidKeyword
	LParen
	RParen
	LBrace
	RBrace
	Semi
	Comma
	Colon
	Arrow
	Eq
	Plus
	Minus
	Star
	Slash
	Rem
	AndInt
	OrInt
	AndBool
	OrBool
	Xor
	Shl
	Shr
	Lt
	Gt
	Not
)

var typeStrings = map[Type]string{
	Fn: "fn", Var: "var", Print: "print", Scan: "scan", If: "if", While: "while", Return: "return",
	True: "True", False: "False",
	IntKeyword: "Int", BoolKeyword: "Bool", StringKeyword: "String", VoidKeyword: "Void",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Rem: "%",
	AndInt: "&", OrInt: "|", AndBool: "&&", OrBool: "||", Xor: "^",
	Shl: "<<", Shr: ">>", Lt: "<", Gt: ">", Not: "!",
	Eq: "=", Arrow: "->", Colon: ":", Semi: ";", Comma: ",",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
}

func (t Type) String() string {
	if s, ok := typeStrings[t]; ok {
		return s
	}
	switch t {
	case EOF:
		return "EOF"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	case String:
		return "string"
	}
	return "token"
}

// IsBinaryOperator reports whether t may appear as the operator of a binary expression.
func (t Type) IsBinaryOperator() bool { return t >= Plus && t <= Gt }

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
