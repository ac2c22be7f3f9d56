package eval

import (
	"strconv"
	"strings"

	"tinyc/pkg/diag"
	"tinyc/pkg/lexer"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// parseOperand consumes tokens in "expect operand" position: a literal,
// identifier, parenthesized group, cast, or prefix operator (spec.md
// §4.5.2's prefix state, §4.5.3's literal/identifier/cast/sizeof cases).
// It returns produced=true once a value has been pushed onto the stack
// (ending operand position); produced=false means a prefix operator (or
// an opening bracket) was consumed and another operand is still expected.
func (ev *Evaluator) parseOperand(base int, depth *int) (bool, error) {
	tok := ev.Stream.Peek()

	switch tok.Type {
	case lexer.INTEGER:
		ev.Stream.Next()
		return true, ev.pushIntLiteral(tok)
	case lexer.UNSIGNED_LIT:
		ev.Stream.Next()
		return true, ev.pushUnsignedLiteral(tok)
	case lexer.FLOAT_LIT:
		ev.Stream.Next()
		return true, ev.pushFloatLiteral(tok)
	case lexer.CHAR_LIT:
		ev.Stream.Next()
		r := []rune(tok.Lexeme)
		c := value.NewImmediate(ev.Types.BaseType(types.Char), make([]byte, 1))
		c.IsLValue = true
		_, err := value.AssignInt(c, int64(r[0]), false)
		c.IsLValue = false
		if err != nil {
			return false, err
		}
		ev.pushValue(c)
		return true, nil
	case lexer.STRING:
		ev.Stream.Next()
		ev.pushValue(ev.stringLiteral(tok.Lexeme))
		return true, nil

	case lexer.IDENTIFIER:
		ev.Stream.Next()
		return true, ev.pushIdentifier(tok)

	case lexer.SIZEOF:
		ev.Stream.Next()
		return ev.parseSizeof(*depth)

	case lexer.LPAREN:
		ev.Stream.Next()
		if ev.startsType(ev.Stream.Peek()) {
			target, err := ev.ParseTypeName()
			if err != nil {
				return false, err
			}
			if _, err := ev.expect(lexer.RPAREN); err != nil {
				return false, err
			}
			ev.pushPrefix(opCast, 14, *depth, tok, target)
			return false, nil
		}
		*depth++
		return false, nil

	case lexer.PLUS, lexer.MINUS, lexer.NOT, lexer.TILDE, lexer.STAR, lexer.AMP, lexer.PLUS_PLUS, lexer.MINUS_MINUS:
		ev.Stream.Next()
		ev.pushPrefix(tok.Type, 14, *depth, tok, nil)
		return false, nil

	default:
		return false, ev.errf(diag.Syntax, tok, "expected an expression, found %s", tok.Type)
	}
}

func (ev *Evaluator) expect(tt lexer.TokenType) (lexer.Token, error) {
	tok := ev.Stream.Peek()
	if tok.Type != tt {
		return tok, ev.errf(diag.Syntax, tok, "expected %s, found %s", tt, tok.Type)
	}
	return ev.Stream.Next(), nil
}

func (ev *Evaluator) pushIntLiteral(tok lexer.Token) error {
	i, err := strconv.ParseInt(strings.TrimRight(tok.Lexeme, "uUlL"), 0, 64)
	if err != nil {
		return ev.errf(diag.Syntax, tok, "invalid integer literal %q", tok.Lexeme)
	}
	if strings.ContainsAny(tok.Lexeme, "lL") {
		c := value.NewImmediate(ev.Types.BaseType(types.Long), make([]byte, 8))
		value.SetRawBits(c, uint64(i))
		ev.pushValue(c)
		return nil
	}
	ev.pushValue(intCell(ev.Types, i))
	return nil
}

func (ev *Evaluator) pushUnsignedLiteral(tok lexer.Token) error {
	u, err := strconv.ParseUint(strings.TrimRight(tok.Lexeme, "uUlL"), 0, 64)
	if err != nil {
		return ev.errf(diag.Syntax, tok, "invalid integer literal %q", tok.Lexeme)
	}
	c := value.NewImmediate(ev.Types.BaseType(types.UnsignedInt), make([]byte, 4))
	value.SetRawBits(c, u)
	ev.pushValue(c)
	return nil
}

func (ev *Evaluator) pushFloatLiteral(tok lexer.Token) error {
	f, err := strconv.ParseFloat(strings.TrimRight(tok.Lexeme, "fF"), 64)
	if err != nil {
		return ev.errf(diag.Syntax, tok, "invalid floating point literal %q", tok.Lexeme)
	}
	t := ev.Types.BaseType(types.Double)
	if strings.HasSuffix(tok.Lexeme, "f") || strings.HasSuffix(tok.Lexeme, "F") {
		t = ev.Types.BaseType(types.Float)
	}
	ev.pushValue(floatCell(t, f))
	return nil
}

// stringLiteral interns and caches a string literal's cell so that two
// occurrences of the same text in source share one backing array (spec
// invariant: string-literal sharing), stored on the arena's heap since
// string literals outlive any single expression evaluation.
func (ev *Evaluator) stringLiteral(s string) *value.Cell {
	if c, ok := ev.stringLits[s]; ok {
		return c
	}
	elemType := ev.Types.BaseType(types.Char)
	arrType := ev.Types.ArrayOf(elemType, len(s)+1)
	cell, err := value.NewHeap(ev.Arena, arrType)
	if err != nil {
		// Out of memory for a string literal is as fatal as any other
		// allocation failure; callers have no sensible fallback, so
		// panic through the interpreter's single recover point.
		panic(err)
	}
	copy(cell.Payload, s)
	cell.Payload[len(s)] = 0
	ev.stringLits[s] = cell
	return cell
}

// pushIdentifier resolves a name to its symbol table entry, dispatching a
// call immediately if it names a function or macro (spec.md §4.5.4: a
// function designator is only ever followed by `(`).
func (ev *Evaluator) pushIdentifier(tok lexer.Token) error {
	entry, ok := ev.Symbols.Lookup(tok.Lexeme)
	if !ok {
		if ev.suppressed() {
			ev.pushValue(ev.zeroCell())
			return nil
		}
		return ev.errf(diag.Name, tok, "undefined identifier %q", tok.Lexeme)
	}

	if entry.Type.Base == types.Function || entry.Type.Base == types.Macro {
		if ev.Stream.Peek().Type != lexer.LPAREN {
			return ev.errf(diag.Type, tok, "%q must be called", tok.Lexeme)
		}
		result, err := ev.dispatchCall(entry, tok)
		if err != nil {
			return err
		}
		ev.pushValue(result)
		return nil
	}

	if ev.suppressed() {
		ev.pushValue(ev.zeroCell())
		return nil
	}
	ev.pushValue(entry.Cell)
	return nil
}

func (ev *Evaluator) parseSizeof(depth int) (bool, error) {
	tok := ev.Stream.Peek()
	if tok.Type == lexer.LPAREN {
		save := ev.Stream.Save()
		ev.Stream.Next()
		if ev.startsType(ev.Stream.Peek()) {
			target, err := ev.ParseTypeName()
			if err != nil {
				return false, err
			}
			if _, err := ev.expect(lexer.RPAREN); err != nil {
				return false, err
			}
			ev.pushValue(sizeCell(ev.Types, target))
			return true, nil
		}
		ev.Stream.Restore(save)
	}
	ev.pushPrefix(lexer.SIZEOF, 14, depth, tok, nil)
	return false, nil
}

// startsType reports whether tok begins a type name, used to disambiguate
// `(type)expr` casts and `sizeof(type)` from parenthesized expressions.
func (ev *Evaluator) startsType(tok lexer.Token) bool {
	switch tok.Type {
	case lexer.VOID, lexer.CHAR, lexer.SHORT, lexer.INT, lexer.LONG, lexer.UNSIGNED, lexer.SIGNED,
		lexer.FLOAT, lexer.DOUBLE, lexer.STRUCT, lexer.UNION, lexer.ENUM, lexer.CONST, lexer.VOLATILE:
		return true
	case lexer.IDENTIFIER:
		_, ok := ev.Typedefs[tok.Lexeme]
		return ok
	}
	return false
}

// StartsType is startsType exported for package stmt, which needs the same
// lookahead to tell a declaration statement from an expression statement.
func (ev *Evaluator) StartsType(tok lexer.Token) bool { return ev.startsType(tok) }

func (ev *Evaluator) consumeOptional(tt lexer.TokenType) {
	if ev.Stream.Peek().Type == tt {
		ev.Stream.Next()
	}
}

// ParseTypeName reads a type-name production (qualifiers, a base type,
// and zero or more `*` pointer levels) — the shared grammar for casts,
// `sizeof(type)`, and the declaration parsing in package stmt.
func (ev *Evaluator) ParseTypeName() (*types.Descriptor, error) {
	for {
		t := ev.Stream.Peek().Type
		if t == lexer.CONST || t == lexer.VOLATILE {
			ev.Stream.Next()
			continue
		}
		break
	}
	base, err := ev.parseBaseType()
	if err != nil {
		return nil, err
	}
	for ev.Stream.Peek().Type == lexer.STAR {
		ev.Stream.Next()
		base = ev.Types.Pointer(base)
	}
	return base, nil
}

// ParseBaseType reads just the base-type portion of a declaration (no
// qualifiers, no pointer stars) — package stmt uses this for declarators,
// where each comma-separated name in `int *p, q;` applies its own pointer
// levels to a shared base type, unlike a type-name's single combined walk.
func (ev *Evaluator) ParseBaseType() (*types.Descriptor, error) {
	return ev.parseBaseType()
}

func (ev *Evaluator) parseBaseType() (*types.Descriptor, error) {
	tok := ev.Stream.Next()
	switch tok.Type {
	case lexer.VOID:
		return ev.Types.BaseType(types.Void), nil
	case lexer.FLOAT:
		return ev.Types.BaseType(types.Float), nil
	case lexer.DOUBLE:
		return ev.Types.BaseType(types.Double), nil
	case lexer.INT:
		return ev.Types.BaseType(types.Int), nil
	case lexer.STRUCT:
		nameTok, err := ev.expect(lexer.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return ev.Types.Aggregate(types.Struct, nameTok.Lexeme), nil
	case lexer.UNION:
		nameTok, err := ev.expect(lexer.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return ev.Types.Aggregate(types.Union, nameTok.Lexeme), nil
	case lexer.ENUM:
		nameTok, err := ev.expect(lexer.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return ev.Types.Aggregate(types.Enum, nameTok.Lexeme), nil
	case lexer.CHAR:
		if ev.Stream.Peek().Type == lexer.UNSIGNED {
			ev.Stream.Next()
		}
		return ev.Types.BaseType(types.Char), nil
	case lexer.SHORT:
		ev.consumeOptional(lexer.INT)
		return ev.Types.BaseType(types.Short), nil
	case lexer.LONG:
		if ev.Stream.Peek().Type == lexer.LONG {
			ev.Stream.Next()
			ev.consumeOptional(lexer.INT)
			return ev.Types.BaseType(types.LongLong), nil
		}
		ev.consumeOptional(lexer.INT)
		return ev.Types.BaseType(types.Long), nil
	case lexer.UNSIGNED, lexer.SIGNED:
		return ev.parseSignPrefixed(tok.Type == lexer.UNSIGNED)
	case lexer.IDENTIFIER:
		if d, ok := ev.Typedefs[tok.Lexeme]; ok {
			return d, nil
		}
		return nil, ev.errf(diag.Syntax, tok, "expected a type name, found %s", tok.Type)
	default:
		return nil, ev.errf(diag.Syntax, tok, "expected a type name, found %s", tok.Type)
	}
}

func (ev *Evaluator) parseSignPrefixed(unsigned bool) (*types.Descriptor, error) {
	switch ev.Stream.Peek().Type {
	case lexer.CHAR:
		ev.Stream.Next()
		if unsigned {
			return ev.Types.BaseType(types.UnsignedChar), nil
		}
		return ev.Types.BaseType(types.Char), nil
	case lexer.SHORT:
		ev.Stream.Next()
		ev.consumeOptional(lexer.INT)
		if unsigned {
			return ev.Types.BaseType(types.UnsignedShort), nil
		}
		return ev.Types.BaseType(types.Short), nil
	case lexer.LONG:
		ev.Stream.Next()
		if ev.Stream.Peek().Type == lexer.LONG {
			ev.Stream.Next()
			ev.consumeOptional(lexer.INT)
			if unsigned {
				return ev.Types.BaseType(types.UnsignedLongLong), nil
			}
			return ev.Types.BaseType(types.LongLong), nil
		}
		ev.consumeOptional(lexer.INT)
		if unsigned {
			return ev.Types.BaseType(types.UnsignedLong), nil
		}
		return ev.Types.BaseType(types.Long), nil
	case lexer.INT:
		ev.Stream.Next()
		fallthrough
	default:
		if unsigned {
			return ev.Types.BaseType(types.UnsignedInt), nil
		}
		return ev.Types.BaseType(types.Int), nil
	}
}
