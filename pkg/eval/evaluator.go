// Package eval is the interpreter's core: a precedence-climbing,
// stack-machine expression evaluator that walks a lexer.Stream directly
// and never builds a persistent AST (spec.md §1, §4.5). Everything it
// produces is a *value.Cell backed by the arena; statements (package
// stmt, layered above this one) drive it expression-at-a-time.
package eval

import (
	"tinyc/pkg/arena"
	"tinyc/pkg/diag"
	"tinyc/pkg/intern"
	"tinyc/pkg/lexer"
	"tinyc/pkg/symtab"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// Intrinsic is a host function trampoline bound to a Function descriptor's
// Intrinsic field (spec.md §4.5.4 "host intrinsic dispatch"). ret is a
// stack cell of the function's declared return type, already allocated;
// the intrinsic assigns into it if the return type is not void.
type Intrinsic func(ev *Evaluator, ret *value.Cell, args []*value.Cell) error

// BodyRunner executes a parsed function body. It is implemented by
// package stmt and injected at construction time: eval cannot import stmt
// directly (stmt imports eval to evaluate the expressions nested in
// statements), so this interface inverts the dependency.
type BodyRunner interface {
	// RunFunctionBody runs the statement sequence starting at the token
	// index bodyIdx (the '{' of a function body) until it falls off the
	// end or executes a `return`. When a return was executed, returned is
	// true and ret holds the (possibly void) result. fnName is the
	// function's declared name, needed by package stmt to mangle `static`
	// locals per spec.md §4.6.
	RunFunctionBody(ev *Evaluator, fnName string, bodyIdx int, ret *value.Cell) (returned bool, err error)
}

// Evaluator holds the shared interpreter state that expression evaluation
// reads and mutates: the arena, type registry, string interner, symbol
// table, and the token cursor itself. One Evaluator is shared by every
// nested call frame of a running program (spec.md §3: these are the
// interpreter's singletons).
type Evaluator struct {
	Arena    *arena.Arena
	Types    *types.Registry
	Interner *intern.Table
	Symbols  *symtab.Table
	Stream   *lexer.Stream
	File     string

	RunBody BodyRunner

	// Typedefs maps a typedef name (spec.md §6: "typedefs") to the
	// descriptor it aliases, consulted by startsType/parseBaseType so
	// casts and sizeof operands can name a typedef the way they name a
	// builtin keyword. Populated by package stmt as it parses `typedef`
	// declarations; eval never introduces entries itself.
	Typedefs map[string]*types.Descriptor

	stringLits map[string]*value.Cell

	stack []node

	// suppressDepth > 0 means the evaluator is walking tokens for their
	// side effects only, in short-circuit skip mode (spec.md §4.5.3
	// "short-circuit evaluation"); reads and calls yield a synthetic zero
	// instead of touching real storage.
	suppressDepth int
	// suppressMarks records, for each active suppression, the stack depth
	// it was entered at, so collapsing back past that depth lifts it.
	suppressMarks []int

	// ternaryConds records, for each open `?` awaiting its `:`, whether
	// the condition was truthy, so the correct branch can be suppressed
	// and the other kept live (spec.md §4.5.3 "ternary operator").
	ternaryConds []bool

	scopeCounter int
}

// New builds an Evaluator over an already-lexed token stream.
func New(ar *arena.Arena, reg *types.Registry, interner *intern.Table, sym *symtab.Table, stream *lexer.Stream, file string) *Evaluator {
	return &Evaluator{
		Arena:      ar,
		Types:      reg,
		Interner:   interner,
		Symbols:    sym,
		Stream:     stream,
		File:       file,
		Typedefs:   make(map[string]*types.Descriptor),
		stringLits: make(map[string]*value.Cell),
	}
}

// NextScopeID allocates a fresh lexical-scope identifier, used by package
// stmt to tag each block's locals for dormancy tracking (spec.md §4.6).
func (ev *Evaluator) NextScopeID() int {
	ev.scopeCounter++
	return ev.scopeCounter
}

func (ev *Evaluator) errf(cat diag.Category, tok lexer.Token, format string, args ...any) error {
	return diag.Errorf(cat, ev.File, tok.Line, tok.Col, format, args...)
}

func (ev *Evaluator) suppressed() bool { return ev.suppressDepth > 0 }

func (ev *Evaluator) enterSuppress() {
	ev.suppressDepth++
	ev.suppressMarks = append(ev.suppressMarks, len(ev.stack))
}

// liftSuppressAt releases every suppression mark recorded at or above
// stackDepth, called as the collapse loop reduces the operator that
// introduced it.
func (ev *Evaluator) liftSuppressAt(stackDepth int) {
	for len(ev.suppressMarks) > 0 && ev.suppressMarks[len(ev.suppressMarks)-1] >= stackDepth {
		ev.suppressMarks = ev.suppressMarks[:len(ev.suppressMarks)-1]
		ev.suppressDepth--
	}
}

// zeroCell produces a synthetic int 0, not backed by the arena, the
// stand-in result for any operand read while suppressed.
func (ev *Evaluator) zeroCell() *value.Cell {
	return value.NewImmediate(ev.Types.BaseType(types.Int), make([]byte, 4))
}

// Evaluate parses and evaluates one expression starting at the current
// stream position, per spec.md §4.5.2's outer loop. allowComma controls
// whether a top-level `,` is the comma operator (true — e.g. a `for`
// init-clause) or an argument/initializer separator the caller must see
// (false).
func (ev *Evaluator) Evaluate(allowComma bool) (*value.Cell, error) {
	base := len(ev.stack)
	expectOperand := true
	depth := 0 // cumulative `(`/`[` nesting, in units of BracketPrecedence

	for {
		tok := ev.Stream.Peek()

		if expectOperand {
			produced, err := ev.parseOperand(base, &depth)
			if err != nil {
				return nil, err
			}
			expectOperand = !produced
			continue
		}

		switch tok.Type {
		case lexer.RPAREN:
			if depth == 0 {
				goto done
			}
			ev.Stream.Next()
			depth--
			continue

		case lexer.RBRACKET:
			if depth == 0 {
				goto done
			}
			ev.Stream.Next()
			depth--
			if err := ev.closeIndex(base, depth, tok); err != nil {
				return nil, err
			}
			continue

		case lexer.COMMA:
			if !allowComma {
				goto done
			}
			ev.Stream.Next()
			if err := ev.collapse(base, 1); err != nil {
				return nil, err
			}
			ev.stack = ev.stack[:base] // comma discards the left operand
			expectOperand = true
			continue

		case lexer.DOT, lexer.ARROW:
			ev.Stream.Next()
			nameTok := ev.Stream.Next()
			if nameTok.Type != lexer.IDENTIFIER {
				return nil, ev.errf(diag.Syntax, nameTok, "expected a member name after %s", tok.Type)
			}
			if err := ev.applyMember(tok.Type == lexer.ARROW, nameTok); err != nil {
				return nil, err
			}
			continue

		case lexer.PLUS_PLUS, lexer.MINUS_MINUS:
			ev.Stream.Next()
			if err := ev.applyPostfixIncDec(tok.Type, tok); err != nil {
				return nil, err
			}
			continue

		case lexer.QUESTION:
			ev.Stream.Next()
			if err := ev.pushInfix(base, tok.Type, 3, depth, tok); err != nil {
				return nil, err
			}
			if err := ev.enterTernaryBranch(); err != nil {
				return nil, err
			}
			expectOperand = true
			continue

		case lexer.COLON:
			if len(ev.ternaryConds) == 0 {
				goto done
			}
			ev.Stream.Next()
			if err := ev.pushInfix(base, tok.Type, 3, depth, tok); err != nil {
				return nil, err
			}
			if err := ev.switchTernaryBranch(); err != nil {
				return nil, err
			}
			expectOperand = true
			continue

		case lexer.LBRACKET:
			ev.Stream.Next()
			depth++
			if err := ev.pushInfix(base, tok.Type, 15, depth, tok); err != nil {
				return nil, err
			}
			expectOperand = true
			continue
		}

		info, isOp := precedenceTable[tok.Type]
		if !isOp || info.Infix == 0 {
			goto done
		}
		ev.Stream.Next()
		if err := ev.pushInfix(base, tok.Type, info.Infix, depth, tok); err != nil {
			return nil, err
		}
		if tok.Type == lexer.AND_LOGICAL || tok.Type == lexer.OR_LOGICAL {
			if err := ev.maybeShortCircuit(tok.Type); err != nil {
				return nil, err
			}
		}
		expectOperand = true
	}

done:
	if err := ev.collapse(base, 0); err != nil {
		return nil, err
	}
	if len(ev.stack) != base+1 || ev.stack[base].order != orderNone {
		return nil, ev.errf(diag.Syntax, ev.Stream.Peek(), "malformed expression")
	}
	result := ev.stack[base].val
	ev.stack = ev.stack[:base]
	return result, nil
}

// EvaluateSuppressed parses and walks one expression exactly like Evaluate,
// but for its side effects only: every identifier read yields a synthetic
// zero and no assignment touches real storage. Package stmt uses this to
// walk (not run) the untaken branch of an if/while/switch, so token
// consumption stays identical whether or not the branch executes.
func (ev *Evaluator) EvaluateSuppressed(allowComma bool) (*value.Cell, error) {
	mark := len(ev.stack)
	ev.enterSuppress()
	result, err := ev.Evaluate(allowComma)
	ev.liftSuppressAt(mark)
	return result, err
}
