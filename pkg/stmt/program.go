// Package stmt's program.go implements the top-level parse pass: global
// variable definitions and function prototypes/definitions, registering
// everything in the symbol table and type registry while deliberately
// skipping over (not executing) every function body, exactly as
// invokeFunctionBody expects to find it later (spec.md §4.5.4).
package stmt

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/eval"
	"tinyc/pkg/lexer"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// ParseProgram consumes the whole token stream as a sequence of top-level
// declarations. It is the statement layer's half of the embedding API's
// `parse_source` (spec.md §6): by the time it returns, every global and
// function name is bound, but no code has run.
func ParseProgram(ev *eval.Evaluator) error {
	for ev.Stream.Peek().Type != lexer.EOF {
		if err := parseTopLevelDecl(ev); err != nil {
			return err
		}
	}
	return nil
}

func parseTopLevelDecl(ev *eval.Evaluator) error {
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
		return execTypedef(ev)
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
		d, err := parseDeclarator(ev, base)
		if err != nil {
			return err
		}
		if ev.Stream.Peek().Type == lexer.LPAREN {
			return parseFunction(ev, d)
		}
		if err := defineGlobal(ev, d); err != nil {
			return err
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

func defineGlobal(ev *eval.Evaluator, d declarator) error {
	if err := resizeIfBraceInit(ev, d.typ); err != nil {
		return err
	}
	cell, err := value.NewHeap(ev.Arena, d.typ)
	if err != nil {
		return err
	}
	cell.IsLValue = true
	if ev.Stream.Peek().Type == lexer.ASSIGN {
		ev.Stream.Next()
		if err := parseInitializerInto(ev, cell); err != nil {
			return err
		}
	}
	if err := ev.Symbols.Define(d.name, cell, d.typ, true, -1); err != nil {
		return errf(ev, diag.Name, d.tok, "%s", err)
	}
	return nil
}

// parseFunction parses a parameter list and then either a `;` (a
// prototype) or a `{ ... }` body (a definition, whose tokens are noted
// and skipped over, not executed).
func parseFunction(ev *eval.Evaluator, d declarator) error {
	ev.Stream.Next() // '('
	var params []types.Param
	if ev.Stream.Peek().Type == lexer.VOID && ev.Stream.PeekAt(1).Type == lexer.RPAREN {
		ev.Stream.Next()
	} else if ev.Stream.Peek().Type != lexer.RPAREN {
		for {
			pBase, err := parseTypeSpecifier(ev)
			if err != nil {
				return err
			}
			pd, err := parseDeclarator(ev, pBase)
			if err != nil {
				return err
			}
			pt := pd.typ
			if pt.Base == types.Array {
				// Array parameters decay to a pointer to their element type.
				pt = ev.Types.Pointer(pt.From)
			}
			params = append(params, types.Param{Name: pd.name, Type: pt})
			if ev.Stream.Peek().Type == lexer.COMMA {
				ev.Stream.Next()
				continue
			}
			break
		}
	}
	if _, err := expectTok(ev, lexer.RPAREN); err != nil {
		return err
	}

	fnType := ev.Types.Function(types.Function, d.name, d.typ, params, false)

	if ev.Stream.Peek().Type == lexer.SEMICOLON {
		ev.Stream.Next()
		if _, ok := ev.Symbols.Lookup(d.name); !ok {
			if err := ev.Symbols.Define(d.name, nil, fnType, false, -1); err != nil {
				return errf(ev, diag.Name, d.tok, "%s", err)
			}
		}
		return nil
	}

	bodyIdx := ev.Stream.Save()
	if ev.Stream.Peek().Type != lexer.LBRACE {
		return errf(ev, diag.Syntax, ev.Stream.Peek(), "expected function body or ';' after parameter list")
	}
	cell, err := value.NewHeap(ev.Arena, fnType)
	if err != nil {
		return err
	}
	value.SetRawBits(cell, uint64(bodyIdx))

	if entry, ok := ev.Symbols.Lookup(d.name); ok {
		if entry.Cell != nil {
			return errf(ev, diag.Name, d.tok, "redefinition of function %q", d.name)
		}
		entry.Cell = cell
	} else if err := ev.Symbols.Define(d.name, cell, fnType, false, -1); err != nil {
		return errf(ev, diag.Name, d.tok, "%s", err)
	}

	end := matchingBrace(ev.Stream.Tokens, bodyIdx)
	ev.Stream.Restore(end + 1)
	return nil
}
