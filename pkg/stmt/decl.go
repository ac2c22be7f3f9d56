package stmt

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/eval"
	"tinyc/pkg/lexer"
	"tinyc/pkg/symtab"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// declarator is one name parsed off a shared base type, before any
// initializer is read (spec.md §6 "declarator list": `int a, *b, c[3];`).
type declarator struct {
	name string
	typ  *types.Descriptor
	tok  lexer.Token
}

// parseTypeSpecifier reads a type specifier at a declaration site: either
// a struct/union/enum tag (with an optional inline member/constant list)
// or anything eval's own type-name grammar already knows (builtin
// keywords and typedef names).
func parseTypeSpecifier(ev *eval.Evaluator) (*types.Descriptor, error) {
	switch ev.Stream.Peek().Type {
	case lexer.STRUCT, lexer.UNION:
		return parseStructOrUnion(ev)
	case lexer.ENUM:
		return parseEnum(ev)
	default:
		return ev.ParseBaseType()
	}
}

func parseStructOrUnion(ev *eval.Evaluator) (*types.Descriptor, error) {
	kwTok := ev.Stream.Next() // STRUCT or UNION
	base := types.Struct
	if kwTok.Type == lexer.UNION {
		base = types.Union
	}
	nameTok, err := expectTok(ev, lexer.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	descr := ev.Types.Aggregate(base, nameTok.Lexeme)
	if ev.Stream.Peek().Type != lexer.LBRACE {
		return descr, nil
	}
	ev.Stream.Next() // '{'

	var members []types.Member
	for ev.Stream.Peek().Type != lexer.RBRACE {
		fieldBase, err := parseTypeSpecifier(ev)
		if err != nil {
			return nil, err
		}
		for {
			d, err := parseDeclarator(ev, fieldBase)
			if err != nil {
				return nil, err
			}
			members = append(members, types.Member{Name: d.name, Type: d.typ})
			if ev.Stream.Peek().Type == lexer.COMMA {
				ev.Stream.Next()
				continue
			}
			break
		}
		if _, err := expectTok(ev, lexer.SEMICOLON); err != nil {
			return nil, err
		}
	}
	ev.Stream.Next() // '}'
	ev.Types.DefineAggregate(descr, computeOffsets(base, members))
	return descr, nil
}

// computeOffsets lays members out sequentially with natural alignment for
// a struct, or all at offset 0 for a union.
func computeOffsets(base types.Base, members []types.Member) []types.Member {
	if base == types.Union {
		for i := range members {
			members[i].Offset = 0
		}
		return members
	}
	offset := 0
	for i := range members {
		align := members[i].Type.Align
		if align < 1 {
			align = 1
		}
		if offset%align != 0 {
			offset += align - offset%align
		}
		members[i].Offset = offset
		offset += members[i].Type.Size
	}
	return members
}

func parseEnum(ev *eval.Evaluator) (*types.Descriptor, error) {
	ev.Stream.Next() // ENUM
	nameTok, err := expectTok(ev, lexer.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	descr := ev.Types.Aggregate(types.Enum, nameTok.Lexeme)
	if ev.Stream.Peek().Type != lexer.LBRACE {
		return descr, nil
	}
	ev.Stream.Next() // '{'
	next := int64(0)
	for ev.Stream.Peek().Type != lexer.RBRACE {
		constTok, err := expectTok(ev, lexer.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if ev.Stream.Peek().Type == lexer.ASSIGN {
			ev.Stream.Next()
			v, err := ev.Evaluate(false)
			if err != nil {
				return nil, err
			}
			n, err := value.CoerceInt(v)
			if err != nil {
				return nil, err
			}
			next = n
		}
		descr.EnumConsts[constTok.Lexeme] = next
		cell, err := value.NewHeap(ev.Arena, ev.Types.BaseType(types.Int))
		if err != nil {
			return nil, err
		}
		cell.IsLValue = true
		if _, err := value.AssignInt(cell, next, false); err != nil {
			return nil, err
		}
		cell.IsLValue = false
		if err := ev.Symbols.Define(constTok.Lexeme, cell, ev.Types.BaseType(types.Int), false, -1); err != nil {
			// A previously-seen enum (e.g. re-entering this block) already
			// defined the constant; that is fine, not a redefinition error.
		}
		next++
		if ev.Stream.Peek().Type == lexer.COMMA {
			ev.Stream.Next()
			continue
		}
		break
	}
	ev.Stream.Next() // '}'
	return descr, nil
}

// parseDeclarator reads zero or more leading `*` plus a name plus zero or
// more `[n]`/`[]` array suffixes, building on base.
func parseDeclarator(ev *eval.Evaluator, base *types.Descriptor) (declarator, error) {
	t := base
	for ev.Stream.Peek().Type == lexer.STAR {
		ev.Stream.Next()
		t = ev.Types.Pointer(t)
	}
	nameTok, err := expectTok(ev, lexer.IDENTIFIER)
	if err != nil {
		return declarator{}, err
	}
	for ev.Stream.Peek().Type == lexer.LBRACKET {
		ev.Stream.Next()
		size := 0
		sized := false
		if ev.Stream.Peek().Type != lexer.RBRACKET {
			szVal, err := ev.Evaluate(false)
			if err != nil {
				return declarator{}, err
			}
			n, err := value.CoerceInt(szVal)
			if err != nil {
				return declarator{}, err
			}
			size = int(n)
			sized = true
		}
		if _, err := expectTok(ev, lexer.RBRACKET); err != nil {
			return declarator{}, err
		}
		if sized {
			t = ev.Types.ArrayOf(t, size)
		} else {
			// An unsized array gets a private, uninterned descriptor: it
			// will be resized in place once its initializer is known
			// (spec.md §3), and the registry's cached zero-size variant is
			// shared by every other unsized array of the same element
			// type, so mutating it would corrupt unrelated declarations.
			t = &types.Descriptor{Base: types.Array, From: t, Align: t.Align}
		}
	}
	return declarator{name: nameTok.Lexeme, typ: t, tok: nameTok}, nil
}

func execTypedef(ev *eval.Evaluator) error {
	ev.Stream.Next() // 'typedef'
	base, err := parseTypeSpecifier(ev)
	if err != nil {
		return err
	}
	d, err := parseDeclarator(ev, base)
	if err != nil {
		return err
	}
	if _, err := expectTok(ev, lexer.SEMICOLON); err != nil {
		return err
	}
	ev.Typedefs[d.name] = d.typ
	return nil
}

// execDeclaration parses and executes one local declaration statement:
// optional storage classes, a type specifier, a comma-separated
// declarator list each with an optional initializer, and the trailing
// semicolon.
func (r *runner) execDeclaration(scopeID int) error {
	static := false
	for {
		switch r.ev.Stream.Peek().Type {
		case lexer.STATIC:
			static = true
			r.ev.Stream.Next()
		case lexer.EXTERN, lexer.CONST, lexer.VOLATILE, lexer.REGISTER, lexer.AUTO:
			r.ev.Stream.Next()
		default:
			goto doneQualifiers
		}
	}
doneQualifiers:
	if r.ev.Stream.Peek().Type == lexer.TYPEDEF {
		return execTypedef(r.ev)
	}

	base, err := parseTypeSpecifier(r.ev)
	if err != nil {
		return err
	}
	if r.ev.Stream.Peek().Type == lexer.SEMICOLON {
		// A standalone `struct Foo { ... };` / `enum Bar { ... };` tag
		// definition with no variable declared.
		r.ev.Stream.Next()
		return nil
	}
	for {
		d, err := parseDeclarator(r.ev, base)
		if err != nil {
			return err
		}
		if static {
			if err := r.defineStaticLocal(d); err != nil {
				return err
			}
		} else {
			if err := r.defineLocal(d, scopeID); err != nil {
				return err
			}
		}
		if r.ev.Stream.Peek().Type == lexer.COMMA {
			r.ev.Stream.Next()
			continue
		}
		break
	}
	_, err = r.expectSemi()
	return err
}

func (r *runner) defineLocal(d declarator, scopeID int) error {
	if err := resizeIfBraceInit(r.ev, d.typ); err != nil {
		return err
	}
	cell, err := value.NewStack(r.ev.Arena, d.typ)
	if err != nil {
		return err
	}
	cell.IsLValue = true
	cell.ScopeID = scopeID
	if r.ev.Stream.Peek().Type == lexer.ASSIGN {
		r.ev.Stream.Next()
		if err := parseInitializerInto(r.ev, cell); err != nil {
			return err
		}
	}
	if err := r.ev.Symbols.Define(d.name, cell, d.typ, true, scopeID); err != nil {
		return r.errf(diag.Name, d.tok, "%s", err)
	}
	return nil
}

// defineStaticLocal implements a function-local `static` (spec invariant
// "Static persistence"): the very first time this declaration executes,
// storage is allocated on the heap and the initializer runs for real;
// every later execution reuses the surviving global cell and merely walks
// the initializer's tokens (via the suppressed evaluator) to keep the
// stream in lockstep, without re-running its side effects.
func (r *runner) defineStaticLocal(d declarator) error {
	mangled := symtab.MangleStatic(r.ev.File, r.fnName, d.name)
	firstTime := !r.ev.Symbols.HasGlobal(mangled)

	var cell *value.Cell
	if firstTime {
		if err := resizeIfBraceInit(r.ev, d.typ); err != nil {
			return err
		}
		c, err := value.NewHeap(r.ev.Arena, d.typ)
		if err != nil {
			return err
		}
		c.IsLValue = true
		cell = c
	}

	if r.ev.Stream.Peek().Type == lexer.ASSIGN {
		r.ev.Stream.Next()
		if firstTime {
			if err := parseInitializerInto(r.ev, cell); err != nil {
				return err
			}
		} else if err := skipInitializer(r.ev); err != nil {
			return err
		}
	}
	if err := r.ev.Symbols.DefineStatic(r.ev.File, r.fnName, d.name, cell, d.typ); err != nil {
		return r.errf(diag.Name, d.tok, "%s", err)
	}
	return nil
}

// resizeIfBraceInit pre-sizes an unsized array descriptor before any
// storage for it is allocated, so the allocation below reserves the right
// number of bytes: either a brace-list initializer's top-level element
// count, or (for `char s[] = "...";`) the string literal's length plus its
// trailing NUL. Without this, value.NewStack would reserve only the
// placeholder 1-byte size an unsized array starts with, and assignArray's
// later ResizeArray would widen the Go slice over memory the arena had
// already handed to the next allocation.
func resizeIfBraceInit(ev *eval.Evaluator, t *types.Descriptor) error {
	if t.Base != types.Array || t.ArraySize != 0 {
		return nil
	}
	if ev.Stream.Peek().Type != lexer.ASSIGN {
		return nil
	}
	switch ev.Stream.PeekAt(1).Type {
	case lexer.LBRACE:
		save := ev.Stream.Save()
		ev.Stream.Next() // '='
		n, err := countBraceElements(ev)
		ev.Stream.Restore(save)
		if err != nil {
			return err
		}
		ev.Types.ResizeArray(t, n)
	case lexer.STRING:
		if t.From.Base == types.Char {
			ev.Types.ResizeArray(t, len(ev.Stream.PeekAt(1).Lexeme)+1)
		}
	}
	return nil
}

// countBraceElements counts the top-level comma-separated elements of a
// `{ ... }` initializer list without evaluating them for effect, used to
// size an unsized array before its storage exists.
func countBraceElements(ev *eval.Evaluator) (int, error) {
	if _, err := expectTok(ev, lexer.LBRACE); err != nil {
		return 0, err
	}
	count := 0
	for ev.Stream.Peek().Type != lexer.RBRACE {
		if ev.Stream.Peek().Type == lexer.LBRACE {
			end := matchingBrace(ev.Stream.Tokens, ev.Stream.Save())
			ev.Stream.Restore(end + 1)
		} else if _, err := ev.EvaluateSuppressed(false); err != nil {
			return 0, err
		}
		count++
		if ev.Stream.Peek().Type == lexer.COMMA {
			ev.Stream.Next()
			continue
		}
		break
	}
	if _, err := expectTok(ev, lexer.RBRACE); err != nil {
		return 0, err
	}
	return count, nil
}

// parseInitializerInto reads one initializer (a brace list or a plain
// expression) and assigns it into cell, which must already be the right
// size.
func parseInitializerInto(ev *eval.Evaluator, cell *value.Cell) error {
	if ev.Stream.Peek().Type == lexer.LBRACE {
		return parseBraceInitializer(ev, cell)
	}
	val, err := ev.Evaluate(false)
	if err != nil {
		return err
	}
	if err := value.Assign(ev.Types, cell, val, true, false); err != nil {
		return errf(ev, diag.Type, ev.Stream.Peek(), "%s", err)
	}
	return nil
}

func parseBraceInitializer(ev *eval.Evaluator, cell *value.Cell) error {
	if _, err := expectTok(ev, lexer.LBRACE); err != nil {
		return err
	}
	switch cell.Type.Base {
	case types.Array:
		elemType := cell.Type.From
		idx := 0
		for ev.Stream.Peek().Type != lexer.RBRACE {
			if cell.Type.ArraySize != 0 && idx >= cell.Type.ArraySize {
				return errf(ev, diag.Type, ev.Stream.Peek(), "too many initializers for array of size %d", cell.Type.ArraySize)
			}
			elemView := value.NewView(cell, elemType, idx*elemType.Size)
			elemView.IsLValue = true
			if err := parseInitializerInto(ev, elemView); err != nil {
				return err
			}
			idx++
			if ev.Stream.Peek().Type == lexer.COMMA {
				ev.Stream.Next()
				continue
			}
			break
		}
		if _, err := expectTok(ev, lexer.RBRACE); err != nil {
			return err
		}
		return nil
	case types.Struct, types.Union:
		i := 0
		for ev.Stream.Peek().Type != lexer.RBRACE {
			if i >= len(cell.Type.Members) {
				return errf(ev, diag.Type, ev.Stream.Peek(), "too many initializers for %s", cell.Type)
			}
			m := cell.Type.Members[i]
			memberView := value.NewView(cell, m.Type, m.Offset)
			memberView.IsLValue = true
			if err := parseInitializerInto(ev, memberView); err != nil {
				return err
			}
			i++
			if ev.Stream.Peek().Type == lexer.COMMA {
				ev.Stream.Next()
				continue
			}
			break
		}
		if _, err := expectTok(ev, lexer.RBRACE); err != nil {
			return err
		}
		return nil
	default:
		return errf(ev, diag.Type, ev.Stream.Peek(), "brace initializer not valid for %s", cell.Type)
	}
}

// skipInitializer walks an initializer's tokens without assigning
// anything, used to replay a `static` local's initializer on every call
// after the first.
func skipInitializer(ev *eval.Evaluator) error {
	if ev.Stream.Peek().Type != lexer.LBRACE {
		_, err := ev.EvaluateSuppressed(false)
		return err
	}
	ev.Stream.Next() // '{'
	for ev.Stream.Peek().Type != lexer.RBRACE {
		if err := skipInitializer(ev); err != nil {
			return err
		}
		if ev.Stream.Peek().Type == lexer.COMMA {
			ev.Stream.Next()
			continue
		}
		break
	}
	_, err := expectTok(ev, lexer.RBRACE)
	return err
}
