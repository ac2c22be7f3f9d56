package eval

import (
	"fmt"

	"tinyc/pkg/diag"
	"tinyc/pkg/lexer"
	"tinyc/pkg/symtab"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// dispatchCall implements spec.md §4.5.4's call sequence: parse the
// argument list, check arity, then either invoke a host intrinsic or push
// a fresh frame and run the interpreted body.
func (ev *Evaluator) dispatchCall(entry *symtab.Entry, tok lexer.Token) (*value.Cell, error) {
	if ev.suppressed() {
		// A call inside a skipped operand is walked, not made: its
		// arguments are parsed (themselves suppressed) and it yields zero.
		if _, err := ev.parseArgs(tok); err != nil {
			return nil, err
		}
		return ev.zeroCell(), nil
	}
	if entry.Type.Base == types.Macro {
		return ev.callMacro(entry, tok)
	}
	return ev.callFunction(entry, tok)
}

func (ev *Evaluator) parseArgs(tok lexer.Token) ([]*value.Cell, error) {
	if _, err := ev.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var args []*value.Cell
	if ev.Stream.Peek().Type != lexer.RPAREN {
		for {
			v, err := ev.Evaluate(false)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			if ev.Stream.Peek().Type == lexer.COMMA {
				ev.Stream.Next()
				continue
			}
			break
		}
	}
	if _, err := ev.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (ev *Evaluator) checkArity(ident string, fnType *types.Descriptor, argc int, tok lexer.Token) error {
	min := len(fnType.Params)
	if argc < min || (!fnType.Variadic && argc > min) {
		return ev.errf(diag.Runtime, tok, "%q: expected %d argument(s), got %d", ident, min, argc)
	}
	return nil
}

func (ev *Evaluator) callFunction(entry *symtab.Entry, tok lexer.Token) (*value.Cell, error) {
	fnType := entry.Type

	// Arguments are evaluated here, in the caller's still-active frame,
	// before the callee's frame is pushed: valid C never lets an
	// argument expression see the callee's own locals, so evaluating the
	// whole list up front is observably identical to interleaving it
	// with frame setup, and is considerably simpler.
	args, err := ev.parseArgs(tok)
	if err != nil {
		return nil, err
	}
	if err := ev.checkArity(entry.Name, fnType, len(args), tok); err != nil {
		return nil, err
	}

	if intrinsic, ok := fnType.Intrinsic.(Intrinsic); ok {
		ret, err := value.NewStack(ev.Arena, fnType.From)
		if err != nil {
			return nil, err
		}
		if fnType.From.Base != types.Void {
			ret.IsLValue = true
		}
		if err := intrinsic(ev, ret, args); err != nil {
			return nil, ev.errf(diag.Runtime, tok, "%s", err)
		}
		return ret, nil
	}

	if entry.Cell == nil {
		return nil, ev.errf(diag.Link, tok, "function %q has no defined body", entry.Name)
	}
	returnCursor := ev.Stream.Save()
	ret, err := ev.invokeFunctionBody(entry, args, returnCursor)
	if err != nil {
		return nil, err
	}
	ev.Stream.Restore(returnCursor)
	return ret, nil
}

// CallNamed invokes a previously-defined function by name with already-
// evaluated arguments, without reading anything from the token stream.
// This is the embedding API's path into a running program (spec.md §6
// `call_entry`): the host has no source tokens for `main(argc, argv)`, so
// it cannot go through dispatchCall's parseArgs.
func (ev *Evaluator) CallNamed(name string, args []*value.Cell) (*value.Cell, error) {
	entry, ok := ev.Symbols.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("eval: %q is not defined", name)
	}
	if entry.Type.Base != types.Function {
		return nil, fmt.Errorf("eval: %q is not a function", name)
	}
	if entry.Cell == nil {
		return nil, fmt.Errorf("eval: function %q has no defined body", name)
	}
	if err := ev.checkArity(name, entry.Type, len(args), lexer.Token{}); err != nil {
		return nil, err
	}
	returnCursor := ev.Stream.Save()
	ret, err := ev.invokeFunctionBody(entry, args, returnCursor)
	ev.Stream.Restore(returnCursor)
	return ret, err
}

// invokeFunctionBody pushes the callee's arena/symtab frames, binds
// parameters, runs the body via the injected BodyRunner, and restores the
// caller's frames — the machinery shared by a call dispatched from the
// token stream (callFunction) and one driven directly by the host
// (CallNamed).
func (ev *Evaluator) invokeFunctionBody(entry *symtab.Entry, args []*value.Cell, returnCursor int) (*value.Cell, error) {
	fnType := entry.Type
	bodyIdx := int(value.RawBits(entry.Cell))

	// The return cell must outlive the callee's frame, so it is allocated
	// here in the caller's still-active region before PushFrame: otherwise
	// PopFrame discards its backing bytes, and the very next call at the
	// same nesting depth reuses the identical arena offsets before the
	// result is consumed.
	ret, err := value.NewStack(ev.Arena, fnType.From)
	if err != nil {
		return nil, err
	}
	if fnType.From.Base != types.Void {
		ret.IsLValue = true
	}

	ev.Arena.PushFrame()
	ev.Symbols.PushFrame(returnCursor)
	if err := ev.bindParams(fnType, args); err != nil {
		ev.Symbols.PopFrame()
		ev.Arena.PopFrame()
		return nil, err
	}
	ev.Symbols.SetScope(-1)

	ev.Stream.Restore(bodyIdx)

	returned, runErr := ev.RunBody.RunFunctionBody(ev, entry.Name, bodyIdx, ret)

	cursor, popErr := ev.Symbols.PopFrame()
	ev.Arena.PopFrame()
	if runErr != nil {
		return nil, runErr
	}
	if popErr != nil {
		return nil, popErr
	}
	if !returned && fnType.From.Base != types.Void {
		return nil, fmt.Errorf("%q: control reached end of non-void function without a return", entry.Name)
	}
	ev.Stream.Restore(cursor)
	ret.IsLValue = false
	return ret, nil
}

// bindParams allocates a fresh stack cell per parameter and assigns the
// corresponding argument into it, except arrays — which decay, so the
// parameter simply aliases the caller's array storage (spec.md §4.5.4
// step 4 "array arguments decay").
func (ev *Evaluator) bindParams(fnType *types.Descriptor, args []*value.Cell) error {
	for i, p := range fnType.Params {
		src := args[i]
		var paramCell *value.Cell
		if p.Type.Base == types.Array && src.Type.Base == types.Array {
			paramCell = src
		} else {
			c, err := value.NewStack(ev.Arena, p.Type)
			if err != nil {
				return err
			}
			c.IsLValue = true
			if err := value.Assign(ev.Types, c, src, true, false); err != nil {
				return err
			}
			paramCell = c
		}
		if err := ev.Symbols.Define(p.Name, paramCell, p.Type, true, -1); err != nil {
			return err
		}
	}
	return nil
}

// callMacro implements spec.md §4.5.4's macro-call variant: arguments are
// bound by value like a function call, but the body is a single
// expression evaluated in place rather than a statement sequence, and its
// declared return type widens to double if the body evaluates to a
// floating point result.
func (ev *Evaluator) callMacro(entry *symtab.Entry, tok lexer.Token) (*value.Cell, error) {
	macroType := entry.Type
	args, err := ev.parseArgs(tok)
	if err != nil {
		return nil, err
	}
	if len(args) != len(macroType.Params) {
		return nil, ev.errf(diag.Runtime, tok, "macro %q: expected %d argument(s), got %d", entry.Name, len(macroType.Params), len(args))
	}
	if entry.Cell == nil {
		return nil, ev.errf(diag.Link, tok, "macro %q has no defined body", entry.Name)
	}
	bodyIdx := int(value.RawBits(entry.Cell))
	returnCursor := ev.Stream.Save()

	ev.Arena.PushFrame()
	ev.Symbols.PushFrame(returnCursor)
	for i, p := range macroType.Params {
		c, err := value.NewStack(ev.Arena, p.Type)
		if err != nil {
			ev.Symbols.PopFrame()
			ev.Arena.PopFrame()
			return nil, err
		}
		c.IsLValue = true
		if err := value.Assign(ev.Types, c, args[i], true, false); err != nil {
			ev.Symbols.PopFrame()
			ev.Arena.PopFrame()
			return nil, err
		}
		if err := ev.Symbols.Define(p.Name, c, p.Type, true, -1); err != nil {
			ev.Symbols.PopFrame()
			ev.Arena.PopFrame()
			return nil, err
		}
	}
	ev.Symbols.SetScope(-1)

	ev.Stream.Restore(bodyIdx)
	result, evalErr := ev.Evaluate(false)

	// result's payload lives in the frame about to be discarded; copy it
	// into a Go-owned cell before PopFrame, since the next allocation at
	// this depth (e.g. a sibling macro call in the same expression) would
	// otherwise silently overwrite it first.
	var out *value.Cell
	if evalErr == nil {
		out = value.NewImmediate(result.Type, append([]byte(nil), result.Payload...))
	}

	_, popErr := ev.Symbols.PopFrame()
	ev.Arena.PopFrame()
	ev.Stream.Restore(returnCursor)
	if evalErr != nil {
		return nil, evalErr
	}
	if popErr != nil {
		return nil, popErr
	}

	if types.IsFloating(out.Type.Base) && macroType.From.Base != types.Double {
		macroType.From = ev.Types.BaseType(types.Double)
	}
	return out, nil
}
