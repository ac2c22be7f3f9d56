// Package interp is the embedding API and top-level driver (spec.md §6):
// Initialize, IncludeAllSystemHeaders, ParseSource, CallEntry,
// SetExitPoint, and Cleanup wire the arena, type registry, symbol table,
// evaluator, statement driver and host library into one interpreter
// instance, the same six-call sequence the teacher's pkg/compiler +
// pkg/cpu pairing exposes as Compile+NewCPU+Run, just named after picoc's
// own PicocInitialise/.../PicocCleanup.
package interp

import (
	"fmt"
	"os"
	"strconv"

	"tinyc/pkg/arena"
	"tinyc/pkg/eval"
	"tinyc/pkg/hostlib"
	"tinyc/pkg/intern"
	"tinyc/pkg/lexer"
	"tinyc/pkg/stmt"
	"tinyc/pkg/symtab"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// FatalError is the interpreter's one non-local escape (spec.md §4.7,
// §9): every fatal diag.Error, arena invariant panic, or host exit()
// eventually surfaces through SetExitPoint as one of these (or, for a
// clean exit() call, as a plain exit code with no error).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Config configures a fresh interpreter. Zero value uses StackSize's
// default (spec.md §6 "STACKSIZE... default 32 MiB").
type Config struct {
	StackSize int
	File      string
}

// StackSizeFromEnv reads STACKSIZE the way spec.md §6 describes it: an
// integer byte count, falling back to arena.DefaultSize when unset or
// unparsable.
func StackSizeFromEnv() int {
	v := os.Getenv("STACKSIZE")
	if v == "" {
		return arena.DefaultSize
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return arena.DefaultSize
	}
	return n
}

// Interpreter owns every singleton spec.md §5 lists as exclusively owned
// by one running instance: the arena, type registry, interner, symbol
// table and evaluator. Two Interpreters never share state.
type Interpreter struct {
	Arena    *arena.Arena
	Types    *types.Registry
	Interner *intern.Table
	Symbols  *symtab.Table
	Eval     *eval.Evaluator
}

// Initialize builds a fresh interpreter instance (spec.md §6
// `initialize(stack_bytes)`).
func Initialize(cfg Config) *Interpreter {
	size := cfg.StackSize
	if size <= 0 {
		size = arena.DefaultSize
	}
	ar := arena.New(size)
	reg := types.NewRegistry()
	interner := intern.New()
	sym := symtab.New()
	ev := eval.New(ar, reg, interner, sym, lexer.NewStream(nil), cfg.File)
	ev.RunBody = stmt.Driver{}
	return &Interpreter{Arena: ar, Types: reg, Interner: interner, Symbols: sym, Eval: ev}
}

// IncludeAllSystemHeaders registers every host intrinsic table (spec.md
// §6 `include_all_system_headers`) — math, stdio and graphics.
func (in *Interpreter) IncludeAllSystemHeaders() error {
	return hostlib.RegisterAll(in.Eval)
}

// ParseSource lexes source and runs the top-level declaration pass
// (spec.md §6 `parse_source`). isInteractive is accepted for the
// embedding API's shape but has no effect on parsing itself: package
// stmt always parses one full top-level declaration at a time regardless
// of whether a REPL is driving it one line at a time.
func (in *Interpreter) ParseSource(filename string, source []byte, isInteractive bool) error {
	tokens, err := lexer.Lex(string(source))
	if err != nil {
		return fmt.Errorf("interp: %s: %w", filename, err)
	}
	in.Eval.File = filename
	in.Eval.Stream = lexer.NewStream(tokens)
	return stmt.ParseProgram(in.Eval)
}

// CallEntry invokes the declared `main`, if present (spec.md §6
// `call_entry(interpreter, argc, argv)`). main may be declared with zero
// parameters or with (int argc, char **argv); any other arity is a
// link-time error. The returned int is main's return value, the
// process's exit code by convention.
func (in *Interpreter) CallEntry(args []string) (int, error) {
	entry, ok := in.Eval.Symbols.Lookup("main")
	if !ok {
		return 0, fmt.Errorf("interp: no main function defined")
	}
	if entry.Type.Base != types.Function {
		return 0, fmt.Errorf("interp: main is not a function")
	}

	var callArgs []*value.Cell
	switch len(entry.Type.Params) {
	case 0:
	case 2:
		argc, argv, err := in.buildArgv(args)
		if err != nil {
			return 0, err
		}
		callArgs = []*value.Cell{argc, argv}
	default:
		return 0, fmt.Errorf("interp: main must take 0 or (argc, argv) parameters, found %d", len(entry.Type.Params))
	}

	ret, err := in.Eval.CallNamed("main", callArgs)
	if err != nil {
		return 0, err
	}
	code, err := value.CoerceInt(ret)
	if err != nil {
		return 0, err
	}
	return int(code), nil
}

// buildArgv lays out argc and a NUL-terminated argv char** on the heap,
// the same shape a hosted C program expects from the process.
func (in *Interpreter) buildArgv(args []string) (argc, argv *value.Cell, err error) {
	charT := in.Eval.Types.BaseType(types.Char)
	charPtrT := in.Eval.Types.Pointer(charT)
	argvArrT := in.Eval.Types.ArrayOf(charPtrT, len(args))

	argvArr, err := value.NewHeap(in.Eval.Arena, argvArrT)
	if err != nil {
		return nil, nil, err
	}
	for i, s := range args {
		strT := in.Eval.Types.ArrayOf(charT, len(s)+1)
		strCell, err := value.NewHeap(in.Eval.Arena, strT)
		if err != nil {
			return nil, nil, err
		}
		copy(strCell.Payload, append([]byte(s), 0))

		slot := value.NewView(argvArr, charPtrT, i*charPtrT.Size)
		value.SetRawBits(slot, uint64(strCell.Addr))
	}

	argcCell, err := value.NewStack(in.Eval.Arena, in.Eval.Types.BaseType(types.Int))
	if err != nil {
		return nil, nil, err
	}
	argcCell.IsLValue = true
	if _, err := value.AssignInt(argcCell, int64(len(args)), false); err != nil {
		return nil, nil, err
	}
	argcCell.IsLValue = false

	argvPtr, err := value.NewStack(in.Eval.Arena, in.Eval.Types.Pointer(charPtrT))
	if err != nil {
		return nil, nil, err
	}
	value.SetRawBits(argvPtr, uint64(argvArr.Addr))

	return argcCell, argvPtr, nil
}

// SetExitPoint installs the interpreter's single non-local escape
// (spec.md §6 `set_exit_point(interpreter) -> bool`) and runs fn inside
// it. Go has no setjmp/longjmp, so the escape is a panic/recover pair
// confined to this one function: a hostlib exit() intrinsic panics with
// *hostlib.ExitSignal to unwind straight here with its exit code, and any
// other panic (including arena's LIFO-discipline panics) is wrapped into
// a *FatalError instead of propagating further.
func (in *Interpreter) SetExitPoint(fn func() error) (exitCode int, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case *hostlib.ExitSignal:
			exitCode = v.Code
		case *FatalError:
			err = v
		case error:
			err = &FatalError{Err: v}
		default:
			err = &FatalError{Err: fmt.Errorf("%v", v)}
		}
	}()
	if runErr := fn(); runErr != nil {
		return 0, &FatalError{Err: runErr}
	}
	return 0, nil
}

// Cleanup releases the interpreter's resources (spec.md §6
// `cleanup(interpreter)`). The arena is a single Go-managed slice with no
// external handles, so there is nothing to release explicitly; Cleanup
// exists to complete the embedding API's six-call shape and to give a
// host a single place to drop its last reference.
func (in *Interpreter) Cleanup() {
	in.Eval = nil
}
