package stmt

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/lexer"
)

// signal is what a statement hands back to its enclosing block: either
// "keep going" or one of the four escapes C statements can produce.
type signal int

const (
	sigNone signal = iota
	sigReturn
	sigBreak
	sigContinue
	sigGoto
)

// execBlock runs a `{ ... }` block, assuming the stream is positioned at
// the leading brace. It opens a fresh lexical scope (spec.md §4.6) and
// closes it on every exit path, including an escaping signal.
func (r *runner) execBlock() (signal, string, error) {
	openIdx := r.ev.Stream.Save()
	if _, err := r.expect(lexer.LBRACE); err != nil {
		return sigNone, "", err
	}
	blockEnd := matchingBrace(r.ev.Stream.Tokens, openIdx)

	scopeID := r.ev.NextScopeID()
	r.ev.Symbols.EnterScope(scopeID)
	defer r.ev.Symbols.ExitScope(scopeID)

	for {
		tok := r.ev.Stream.Peek()
		if tok.Type == lexer.RBRACE {
			r.ev.Stream.Next()
			return sigNone, "", nil
		}
		if tok.Type == lexer.EOF {
			return sigNone, "", r.errf(diag.Syntax, tok, "unexpected end of input in block")
		}
		sig, label, err := r.execStatement(scopeID)
		if err != nil {
			return sigNone, "", err
		}
		if sig == sigGoto {
			pos := r.ev.Stream.Save()
			if pos > openIdx && pos <= blockEnd {
				continue
			}
			return sig, label, nil
		}
		if sig != sigNone {
			return sig, label, nil
		}
	}
}

// execStatement dispatches one statement by its leading token.
func (r *runner) execStatement(scopeID int) (signal, string, error) {
	tok := r.ev.Stream.Peek()
	switch tok.Type {
	case lexer.LBRACE:
		return r.execBlock()
	case lexer.SEMICOLON:
		r.ev.Stream.Next()
		return sigNone, "", nil
	case lexer.IF:
		return r.execIf(scopeID)
	case lexer.WHILE:
		return r.execWhile()
	case lexer.DO:
		return r.execDoWhile()
	case lexer.FOR:
		return r.execFor()
	case lexer.SWITCH:
		return r.execSwitch()
	case lexer.BREAK:
		r.ev.Stream.Next()
		if _, err := r.expectSemi(); err != nil {
			return sigNone, "", err
		}
		return sigBreak, "", nil
	case lexer.CONTINUE:
		r.ev.Stream.Next()
		if _, err := r.expectSemi(); err != nil {
			return sigNone, "", err
		}
		return sigContinue, "", nil
	case lexer.RETURN:
		return r.execReturn()
	case lexer.GOTO:
		r.ev.Stream.Next()
		nameTok, err := r.expect(lexer.IDENTIFIER)
		if err != nil {
			return sigNone, "", err
		}
		if _, err := r.expectSemi(); err != nil {
			return sigNone, "", err
		}
		return r.execGoto(nameTok)
	default:
		if tok.Type == lexer.TYPEDEF || isStorageClass(tok.Type) || r.ev.StartsType(tok) {
			return sigNone, "", r.execDeclaration(scopeID)
		}
		if tok.Type == lexer.IDENTIFIER && r.ev.Stream.PeekAt(1).Type == lexer.COLON {
			r.ev.Stream.Next()
			r.ev.Stream.Next()
			return sigNone, "", nil
		}
		return sigNone, "", r.execExprStatement()
	}
}

func (r *runner) execExprStatement() error {
	if _, err := r.ev.Evaluate(true); err != nil {
		return err
	}
	_, err := r.expectSemi()
	return err
}
