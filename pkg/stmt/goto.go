package stmt

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/eval"
	"tinyc/pkg/lexer"
	"tinyc/pkg/value"
)

// runner drives one function-body execution. fnName and ret are fixed for
// the whole call; bodyStart/bodyEnd bound the token range a `goto` inside
// this body is allowed to search for its label.
type runner struct {
	ev     *eval.Evaluator
	fnName string
	ret    *value.Cell

	bodyStart int
	bodyEnd   int
}

// matchingBrace returns the index of the `}` matching the `{` at openIdx.
func matchingBrace(tokens []lexer.Token, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(tokens); i++ {
		switch tokens[i].Type {
		case lexer.LBRACE:
			depth++
		case lexer.RBRACE:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(tokens) - 1
}

// findLabel scans [start,end) for an "ident:" label statement and returns
// the token index just past its colon. A candidate only counts if it is
// itself the start of a statement (preceded by `;`, `{`, `}`, or another
// label's colon, or is the very first token in range).
func findLabel(tokens []lexer.Token, start, end int, name string) (int, bool) {
	for i := start; i < end; i++ {
		tok := tokens[i]
		if tok.Type != lexer.IDENTIFIER || tok.Lexeme != name {
			continue
		}
		if i+1 >= end || tokens[i+1].Type != lexer.COLON {
			continue
		}
		if i > start {
			switch tokens[i-1].Type {
			case lexer.SEMICOLON, lexer.LBRACE, lexer.RBRACE, lexer.COLON:
			default:
				continue
			}
		}
		return i + 2, true
	}
	return 0, false
}

// execGoto locates label within the current function body and restores
// the stream cursor just past its colon, signaling sigGoto so enclosing
// blocks can decide whether the new position falls within their own
// brace range (resume their loop) or not (keep propagating).
func (r *runner) execGoto(labelTok lexer.Token) (signal, string, error) {
	pos, ok := findLabel(r.ev.Stream.Tokens, r.bodyStart, r.bodyEnd, labelTok.Lexeme)
	if !ok {
		return sigNone, "", r.errf(diag.Name, labelTok, "label %q not found", labelTok.Lexeme)
	}
	r.ev.Stream.Restore(pos)
	return sigGoto, labelTok.Lexeme, nil
}
