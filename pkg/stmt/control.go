package stmt

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/eval"
	"tinyc/pkg/lexer"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

func (r *runner) execIf(scopeID int) (signal, string, error) {
	r.ev.Stream.Next() // 'if'
	if _, err := r.expect(lexer.LPAREN); err != nil {
		return sigNone, "", err
	}
	cond, err := r.ev.Evaluate(true)
	if err != nil {
		return sigNone, "", err
	}
	if _, err := r.expect(lexer.RPAREN); err != nil {
		return sigNone, "", err
	}
	truthy, err := eval.Truthy(cond)
	if err != nil {
		return sigNone, "", err
	}

	if truthy {
		sig, label, err := r.execStatement(scopeID)
		if err != nil {
			return sigNone, "", err
		}
		if r.ev.Stream.Peek().Type == lexer.ELSE {
			r.ev.Stream.Next()
			if err := r.skipStatement(); err != nil {
				return sigNone, "", err
			}
		}
		return sig, label, nil
	}

	if err := r.skipStatement(); err != nil {
		return sigNone, "", err
	}
	if r.ev.Stream.Peek().Type == lexer.ELSE {
		r.ev.Stream.Next()
		return r.execStatement(scopeID)
	}
	return sigNone, "", nil
}

func (r *runner) execWhile() (signal, string, error) {
	r.ev.Stream.Next() // 'while'
	condStart := r.ev.Stream.Save()
	if _, err := r.expect(lexer.LPAREN); err != nil {
		return sigNone, "", err
	}
	if _, err := r.ev.EvaluateSuppressed(true); err != nil {
		return sigNone, "", err
	}
	if _, err := r.expect(lexer.RPAREN); err != nil {
		return sigNone, "", err
	}
	bodyStart := r.ev.Stream.Save()

	for {
		r.ev.Stream.Restore(condStart)
		if _, err := r.expect(lexer.LPAREN); err != nil {
			return sigNone, "", err
		}
		cond, err := r.ev.Evaluate(true)
		if err != nil {
			return sigNone, "", err
		}
		if _, err := r.expect(lexer.RPAREN); err != nil {
			return sigNone, "", err
		}
		truthy, err := eval.Truthy(cond)
		if err != nil {
			return sigNone, "", err
		}
		if !truthy {
			r.ev.Stream.Restore(bodyStart)
			if err := r.skipStatement(); err != nil {
				return sigNone, "", err
			}
			return sigNone, "", nil
		}

		r.ev.Stream.Restore(bodyStart)
		sig, label, err := r.execStatement(r.ev.NextScopeID())
		if err != nil {
			return sigNone, "", err
		}
		switch sig {
		case sigBreak:
			return sigNone, "", nil
		case sigReturn, sigGoto:
			return sig, label, nil
		}
	}
}

func (r *runner) execDoWhile() (signal, string, error) {
	r.ev.Stream.Next() // 'do'
	bodyStart := r.ev.Stream.Save()

	for {
		r.ev.Stream.Restore(bodyStart)
		sig, label, err := r.execStatement(r.ev.NextScopeID())
		if err != nil {
			return sigNone, "", err
		}
		switch sig {
		case sigBreak:
			if err := r.finishDoWhileTail(true); err != nil {
				return sigNone, "", err
			}
			return sigNone, "", nil
		case sigReturn, sigGoto:
			return sig, label, nil
		}

		if _, err := r.expect(lexer.WHILE); err != nil {
			return sigNone, "", err
		}
		if _, err := r.expect(lexer.LPAREN); err != nil {
			return sigNone, "", err
		}
		cond, err := r.ev.Evaluate(true)
		if err != nil {
			return sigNone, "", err
		}
		if _, err := r.expect(lexer.RPAREN); err != nil {
			return sigNone, "", err
		}
		if _, err := r.expectSemi(); err != nil {
			return sigNone, "", err
		}
		truthy, err := eval.Truthy(cond)
		if err != nil {
			return sigNone, "", err
		}
		if !truthy {
			return sigNone, "", nil
		}
	}
}

// finishDoWhileTail consumes the trailing `while ( <cond> ) ;` of a
// do-loop after `break` already decided the loop is over, walking the
// condition's tokens without evaluating it.
func (r *runner) finishDoWhileTail(suppressed bool) error {
	if _, err := r.expect(lexer.WHILE); err != nil {
		return err
	}
	if _, err := r.expect(lexer.LPAREN); err != nil {
		return err
	}
	if suppressed {
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return err
		}
	} else if _, err := r.ev.Evaluate(true); err != nil {
		return err
	}
	if _, err := r.expect(lexer.RPAREN); err != nil {
		return err
	}
	_, err := r.expectSemi()
	return err
}

func (r *runner) execFor() (signal, string, error) {
	r.ev.Stream.Next() // 'for'
	if _, err := r.expect(lexer.LPAREN); err != nil {
		return sigNone, "", err
	}

	scopeID := r.ev.NextScopeID()
	r.ev.Symbols.EnterScope(scopeID)
	defer r.ev.Symbols.ExitScope(scopeID)

	if r.ev.Stream.Peek().Type != lexer.SEMICOLON {
		if r.ev.StartsType(r.ev.Stream.Peek()) || isStorageClass(r.ev.Stream.Peek().Type) {
			if err := r.execDeclaration(scopeID); err != nil {
				return sigNone, "", err
			}
		} else {
			if _, err := r.ev.Evaluate(true); err != nil {
				return sigNone, "", err
			}
			if _, err := r.expectSemi(); err != nil {
				return sigNone, "", err
			}
		}
	} else {
		r.ev.Stream.Next()
	}

	condStart := r.ev.Stream.Save()
	hasCond := r.ev.Stream.Peek().Type != lexer.SEMICOLON
	if hasCond {
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return sigNone, "", err
		}
	}
	if _, err := r.expectSemi(); err != nil {
		return sigNone, "", err
	}
	postStart := r.ev.Stream.Save()
	hasPost := r.ev.Stream.Peek().Type != lexer.RPAREN
	if hasPost {
		if _, err := r.ev.EvaluateSuppressed(true); err != nil {
			return sigNone, "", err
		}
	}
	if _, err := r.expect(lexer.RPAREN); err != nil {
		return sigNone, "", err
	}
	bodyStart := r.ev.Stream.Save()
	afterFor := matchingLoopEnd(r)

	for {
		truthy := true
		if hasCond {
			r.ev.Stream.Restore(condStart)
			cond, err := r.ev.Evaluate(true)
			if err != nil {
				return sigNone, "", err
			}
			truthy, err = eval.Truthy(cond)
			if err != nil {
				return sigNone, "", err
			}
		}
		if !truthy {
			r.ev.Stream.Restore(bodyStart)
			if err := r.skipStatement(); err != nil {
				return sigNone, "", err
			}
			return sigNone, "", nil
		}

		r.ev.Stream.Restore(bodyStart)
		sig, label, err := r.execStatement(r.ev.NextScopeID())
		if err != nil {
			return sigNone, "", err
		}
		switch sig {
		case sigBreak:
			r.ev.Stream.Restore(afterFor)
			return sigNone, "", nil
		case sigReturn, sigGoto:
			return sig, label, nil
		}

		if hasPost {
			r.ev.Stream.Restore(postStart)
			if _, err := r.ev.Evaluate(true); err != nil {
				return sigNone, "", err
			}
		}
	}
}

// matchingLoopEnd records the position right after the loop body, reached
// by skipping it once structurally, so `break` can land the cursor there
// without re-running the body walk on every exit.
func matchingLoopEnd(r *runner) int {
	save := r.ev.Stream.Save()
	defer r.ev.Stream.Restore(save)
	if err := r.skipStatement(); err != nil {
		return save
	}
	return r.ev.Stream.Save()
}

func (r *runner) execSwitch() (signal, string, error) {
	r.ev.Stream.Next() // 'switch'
	if _, err := r.expect(lexer.LPAREN); err != nil {
		return sigNone, "", err
	}
	subject, err := r.ev.Evaluate(true)
	if err != nil {
		return sigNone, "", err
	}
	if _, err := r.expect(lexer.RPAREN); err != nil {
		return sigNone, "", err
	}
	subjectVal, err := value.CoerceInt(subject)
	if err != nil {
		return sigNone, "", err
	}

	if _, err := r.expect(lexer.LBRACE); err != nil {
		return sigNone, "", err
	}
	openIdx := r.ev.Stream.Save() - 1
	blockEnd := matchingBrace(r.ev.Stream.Tokens, openIdx)

	scopeID := r.ev.NextScopeID()
	r.ev.Symbols.EnterScope(scopeID)
	defer r.ev.Symbols.ExitScope(scopeID)

	matched := false
	for r.ev.Stream.Peek().Type != lexer.RBRACE {
		tok := r.ev.Stream.Peek()
		switch tok.Type {
		case lexer.CASE:
			r.ev.Stream.Next()
			caseVal, err := r.ev.Evaluate(false)
			if err != nil {
				return sigNone, "", err
			}
			if _, err := r.expect(lexer.COLON); err != nil {
				return sigNone, "", err
			}
			n, err := value.CoerceInt(caseVal)
			if err != nil {
				return sigNone, "", err
			}
			if n == subjectVal {
				matched = true
			}
		case lexer.DEFAULT:
			r.ev.Stream.Next()
			if _, err := r.expect(lexer.COLON); err != nil {
				return sigNone, "", err
			}
			matched = true
		case lexer.EOF:
			return sigNone, "", r.errf(diag.Syntax, tok, "unexpected end of input in switch")
		default:
			if matched {
				sig, label, err := r.execStatement(scopeID)
				if err != nil {
					return sigNone, "", err
				}
				switch sig {
				case sigBreak:
					r.ev.Stream.Restore(blockEnd + 1)
					return sigNone, "", nil
				case sigReturn, sigGoto:
					return sig, label, nil
				}
			} else if err := r.skipStatement(); err != nil {
				return sigNone, "", err
			}
		}
	}
	r.ev.Stream.Next() // consume '}'
	return sigNone, "", nil
}

func (r *runner) execReturn() (signal, string, error) {
	tok := r.ev.Stream.Next() // 'return'
	if r.ev.Stream.Peek().Type == lexer.SEMICOLON {
		r.ev.Stream.Next()
		if r.ret.Type.Base != types.Void {
			return sigNone, "", r.errf(diag.Runtime, tok, "%q: non-void function must return a value", r.fnName)
		}
		return sigReturn, "", nil
	}
	val, err := r.ev.Evaluate(true)
	if err != nil {
		return sigNone, "", err
	}
	if _, err := r.expectSemi(); err != nil {
		return sigNone, "", err
	}
	if r.ret.Type.Base == types.Void {
		return sigReturn, "", nil
	}
	r.ret.IsLValue = true
	assignErr := value.Assign(r.ev.Types, r.ret, val, true, false)
	r.ret.IsLValue = false
	if assignErr != nil {
		return sigNone, "", r.errf(diag.Type, tok, "%s", assignErr)
	}
	return sigReturn, "", nil
}
