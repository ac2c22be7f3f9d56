package eval

import "tinyc/pkg/lexer"

// BracketPrecedence is added (in multiples of this amount) to every
// operator precedence for each level of enclosing `(` `)` or `[` `]`, so
// a `+` inside parentheses always outranks a `*` outside them (spec.md
// §4.5.1 GLOSSARY "Bracket precedence").
const BracketPrecedence = 20

// opInfo carries an operator's prefix/postfix/infix precedence (0 means
// "not valid in that position") plus its printable name, exactly
// mirroring picoc's OperatorPrecedence table (spec.md §4.5.1, cross
// checked against original_source/expression.c).
type opInfo struct {
	Prefix, Postfix, Infix int
	Name                   string
}

var precedenceTable = map[lexer.TokenType]opInfo{
	lexer.COMMA: {0, 0, 0, ","},

	lexer.ASSIGN:         {0, 0, 2, "="},
	lexer.PLUS_ASSIGN:    {0, 0, 2, "+="},
	lexer.MINUS_ASSIGN:   {0, 0, 2, "-="},
	lexer.STAR_ASSIGN:    {0, 0, 2, "*="},
	lexer.SLASH_ASSIGN:   {0, 0, 2, "/="},
	lexer.PERCENT_ASSIGN: {0, 0, 2, "%="},
	lexer.SHL_ASSIGN:     {0, 0, 2, "<<="},
	lexer.SHR_ASSIGN:     {0, 0, 2, ">>="},
	lexer.AMP_ASSIGN:     {0, 0, 2, "&="},
	lexer.PIPE_ASSIGN:    {0, 0, 2, "|="},
	lexer.CARET_ASSIGN:   {0, 0, 2, "^="},

	lexer.QUESTION: {0, 0, 3, "?"},
	lexer.COLON:    {0, 0, 3, ":"},

	lexer.OR_LOGICAL:  {0, 0, 4, "||"},
	lexer.AND_LOGICAL: {0, 0, 5, "&&"},

	lexer.PIPE:  {0, 0, 6, "|"},
	lexer.CARET: {0, 0, 7, "^"},
	lexer.AMP:   {14, 0, 8, "&"},

	lexer.EQUALS: {0, 0, 9, "=="},
	lexer.NOT_EQ: {0, 0, 9, "!="},

	lexer.LESS:       {0, 0, 10, "<"},
	lexer.GREATER:    {0, 0, 10, ">"},
	lexer.LESS_EQ:    {0, 0, 10, "<="},
	lexer.GREATER_EQ: {0, 0, 10, ">="},

	lexer.SHL: {0, 0, 11, "<<"},
	lexer.SHR: {0, 0, 11, ">>"},

	lexer.PLUS:  {14, 0, 12, "+"},
	lexer.MINUS: {14, 0, 12, "-"},

	lexer.STAR:    {14, 0, 13, "*"},
	lexer.SLASH:   {0, 0, 13, "/"},
	lexer.PERCENT: {0, 0, 13, "%"},

	lexer.PLUS_PLUS:   {14, 15, 0, "++"},
	lexer.MINUS_MINUS: {14, 15, 0, "--"},
	lexer.NOT:         {14, 0, 0, "!"},
	lexer.TILDE:       {14, 0, 0, "~"},
	lexer.SIZEOF:      {14, 0, 0, "sizeof"},

	lexer.LBRACKET: {0, 0, 15, "["},
	lexer.RBRACKET: {0, 15, 0, "]"},
	lexer.DOT:      {0, 0, 15, "."},
	lexer.ARROW:    {0, 0, 15, "->"},

	lexer.LPAREN: {15, 0, 0, "("},
	lexer.RPAREN: {0, 15, 0, ")"},
}

// opCast is a synthetic token-less operator pushed when `(` is followed by
// a type name: picoc's TokenCast. It shares prefix precedence 14 with the
// other unary operators and is never produced by the lexer directly.
const opCast = lexer.TokenType(-1)

func castInfo() opInfo { return opInfo{Prefix: 14, Name: "cast"} }

// isLeftToRight reports whether collapsing at precedence p should treat
// operators of equal precedence as left-associative. Assignment (2) and
// ternary (3) are the two right-to-left exceptions (spec.md §4.5.1).
func isLeftToRight(p int) bool { return p != 2 && p != 3 }
