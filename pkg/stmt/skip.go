package stmt

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/eval"
	"tinyc/pkg/lexer"
)

// skipStatement walks one statement's tokens without executing it — the
// structural twin of execStatement, used for an `if`/`switch` branch that
// was not taken. Sub-expressions are walked through eval's own suppressed
// evaluator so the bracket/paren nesting rules stay in exactly one place;
// control constructs are walked once each regardless of what their
// condition would have evaluated to, since a skip never iterates.
func (r *runner) skipStatement() error {
	tok := r.ev.Stream.Peek()
	switch tok.Type {
	case lexer.LBRACE:
		return r.skipBlock()
	case lexer.SEMICOLON:
		r.ev.Stream.Next()
		return nil
	case lexer.IF:
		r.ev.Stream.Next()
		if _, err := r.expect(lexer.LPAREN); err != nil {
			return err
		}
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return err
		}
		if _, err := r.expect(lexer.RPAREN); err != nil {
			return err
		}
		if err := r.skipStatement(); err != nil {
			return err
		}
		if r.ev.Stream.Peek().Type == lexer.ELSE {
			r.ev.Stream.Next()
			return r.skipStatement()
		}
		return nil
	case lexer.WHILE:
		r.ev.Stream.Next()
		if _, err := r.expect(lexer.LPAREN); err != nil {
			return err
		}
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return err
		}
		if _, err := r.expect(lexer.RPAREN); err != nil {
			return err
		}
		return r.skipStatement()
	case lexer.DO:
		r.ev.Stream.Next()
		if err := r.skipStatement(); err != nil {
			return err
		}
		return r.finishDoWhileTail(true)
	case lexer.FOR:
		return r.skipFor()
	case lexer.SWITCH:
		r.ev.Stream.Next()
		if _, err := r.expect(lexer.LPAREN); err != nil {
			return err
		}
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return err
		}
		if _, err := r.expect(lexer.RPAREN); err != nil {
			return err
		}
		return r.skipBlock()
	case lexer.RETURN:
		r.ev.Stream.Next()
		if r.ev.Stream.Peek().Type != lexer.SEMICOLON {
			if _, err := r.ev.EvaluateSuppressed(true); err != nil {
				return err
			}
		}
		_, err := r.expectSemi()
		return err
	case lexer.BREAK, lexer.CONTINUE:
		r.ev.Stream.Next()
		_, err := r.expectSemi()
		return err
	case lexer.GOTO:
		r.ev.Stream.Next()
		if _, err := r.expect(lexer.IDENTIFIER); err != nil {
			return err
		}
		_, err := r.expectSemi()
		return err
	case lexer.CASE:
		r.ev.Stream.Next()
		if _, err := r.ev.EvaluateSuppressed(false); err != nil {
			return err
		}
		_, err := r.expect(lexer.COLON)
		return err
	case lexer.DEFAULT:
		r.ev.Stream.Next()
		_, err := r.expect(lexer.COLON)
		return err
	default:
		if tok.Type == lexer.TYPEDEF || isStorageClass(tok.Type) || r.ev.StartsType(tok) {
			return skipDeclaration(r.ev)
		}
		if tok.Type == lexer.IDENTIFIER && r.ev.Stream.PeekAt(1).Type == lexer.COLON {
			r.ev.Stream.Next()
			r.ev.Stream.Next()
			return r.skipStatement()
		}
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return err
		}
		_, err := r.expectSemi()
		return err
	}
}

func (r *runner) skipFor() error {
	r.ev.Stream.Next() // 'for'
	if _, err := r.expect(lexer.LPAREN); err != nil {
		return err
	}
	if r.ev.Stream.Peek().Type != lexer.SEMICOLON {
		if r.ev.StartsType(r.ev.Stream.Peek()) || isStorageClass(r.ev.Stream.Peek().Type) {
			if err := skipDeclaration(r.ev); err != nil {
				return err
			}
		} else {
			if _, err := r.ev.EvaluateSuppressed(true); err != nil {
				return err
			}
			if _, err := r.expectSemi(); err != nil {
				return err
			}
		}
	} else {
		r.ev.Stream.Next()
	}
	if r.ev.Stream.Peek().Type != lexer.SEMICOLON {
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return err
		}
	}
	if _, err := r.expectSemi(); err != nil {
		return err
	}
	if r.ev.Stream.Peek().Type != lexer.RPAREN {
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return err
		}
	}
	if _, err := r.expect(lexer.RPAREN); err != nil {
		return err
	}
	return r.skipStatement()
}

func (r *runner) skipBlock() error {
	if _, err := r.expect(lexer.LBRACE); err != nil {
		return err
	}
	for r.ev.Stream.Peek().Type != lexer.RBRACE {
		if r.ev.Stream.Peek().Type == lexer.EOF {
			return r.errf(diag.Syntax, r.ev.Stream.Peek(), "unexpected end of input in block")
		}
		if err := r.skipStatement(); err != nil {
			return err
		}
	}
	r.ev.Stream.Next()
	return nil
}

// skipDeclaration walks a local declaration's tokens without allocating
// storage or binding any name: the type specifier itself is still parsed
// for real (struct/union/enum member and constant tables are a
// compile-time concept in C, visible regardless of which runtime branch
// executes), but each declarator's initializer is only walked, never
// assigned.
func skipDeclaration(ev *eval.Evaluator) error {
	for {
		switch ev.Stream.Peek().Type {
		case lexer.STATIC, lexer.EXTERN, lexer.CONST, lexer.VOLATILE, lexer.REGISTER, lexer.AUTO:
			ev.Stream.Next()
		default:
			goto doneQualifiers
		}
	}
doneQualifiers:
	if ev.Stream.Peek().Type == lexer.TYPEDEF {
		ev.Stream.Next()
		base, err := parseTypeSpecifier(ev)
		if err != nil {
			return err
		}
		if _, err := parseDeclarator(ev, base); err != nil {
			return err
		}
		_, err = expectTok(ev, lexer.SEMICOLON)
		return err
	}

	base, err := parseTypeSpecifier(ev)
	if err != nil {
		return err
	}
	if ev.Stream.Peek().Type == lexer.SEMICOLON {
		ev.Stream.Next()
		return nil
	}
	for {
		if _, err := parseDeclarator(ev, base); err != nil {
			return err
		}
		if ev.Stream.Peek().Type == lexer.ASSIGN {
			ev.Stream.Next()
			if err := skipInitializer(ev); err != nil {
				return err
			}
		}
		if ev.Stream.Peek().Type == lexer.COMMA {
			ev.Stream.Next()
			continue
		}
		break
	}
	_, err = expectTok(ev, lexer.SEMICOLON)
	return err
}
