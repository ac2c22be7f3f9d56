// Package stmt is the statement-level driver layered above package eval:
// control flow, declarations, and the top-level program parser, all
// walking the same token stream the expression evaluator reads (spec.md
// §4.5.4's "step 7", and §4.6's scope/frame discipline). It implements
// eval.BodyRunner so the two packages can depend on each other's surface
// without importing each other directly.
package stmt

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/eval"
	"tinyc/pkg/lexer"
	"tinyc/pkg/value"
)

// Driver is the eval.BodyRunner implementation: stateless itself, it just
// builds a fresh runner per call so nested/recursive invocations never
// share mutable state.
type Driver struct{}

// RunFunctionBody executes the statement sequence starting at the body's
// opening brace until it returns or falls off the end.
func (Driver) RunFunctionBody(ev *eval.Evaluator, fnName string, bodyIdx int, ret *value.Cell) (bool, error) {
	ev.Stream.Restore(bodyIdx)
	r := &runner{
		ev:        ev,
		fnName:    fnName,
		ret:       ret,
		bodyStart: bodyIdx,
		bodyEnd:   matchingBrace(ev.Stream.Tokens, bodyIdx),
	}
	sig, _, err := r.execBlock()
	if err != nil {
		return false, err
	}
	return sig == sigReturn, nil
}

func errf(ev *eval.Evaluator, cat diag.Category, tok lexer.Token, format string, args ...any) error {
	return diag.Errorf(cat, ev.File, tok.Line, tok.Col, format, args...)
}

func (r *runner) errf(cat diag.Category, tok lexer.Token, format string, args ...any) error {
	return errf(r.ev, cat, tok, format, args...)
}

// expectTok consumes the next token, failing if it is not of type tt.
func expectTok(ev *eval.Evaluator, tt lexer.TokenType) (lexer.Token, error) {
	tok := ev.Stream.Peek()
	if tok.Type != tt {
		return tok, errf(ev, diag.Syntax, tok, "expected %v, got %v %q", tt, tok.Type, tok.Lexeme)
	}
	return ev.Stream.Next(), nil
}

func (r *runner) expect(tt lexer.TokenType) (lexer.Token, error) { return expectTok(r.ev, tt) }

func (r *runner) expectSemi() (lexer.Token, error) { return r.expect(lexer.SEMICOLON) }

func isStorageClass(tt lexer.TokenType) bool {
	switch tt {
	case lexer.STATIC, lexer.EXTERN, lexer.CONST, lexer.VOLATILE, lexer.REGISTER, lexer.AUTO:
		return true
	default:
		return false
	}
}
