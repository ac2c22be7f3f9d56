package hostlib

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"tinyc/pkg/arena"
	"tinyc/pkg/eval"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

var stdin = bufio.NewReader(os.Stdin)

const maxCString = 1 << 20

// readCString walks an arena pointer byte by byte until a NUL, since
// value.Deref only ever hands back a single-pointee view and printf's
// %s needs the whole run.
func readCString(ar *arena.Arena, ptr *value.Cell) (string, error) {
	if ptr.Type.Base != types.Pointer {
		return "", fmt.Errorf("hostlib: expected a pointer argument, got %s", ptr.Type)
	}
	if value.IsNullPointer(ptr) {
		return "", fmt.Errorf("hostlib: NULL string argument")
	}
	addr, err := value.CoerceInt(ptr)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for n := 0; ; n++ {
		if n >= maxCString {
			return "", fmt.Errorf("hostlib: string argument has no NUL terminator within %d bytes", maxCString)
		}
		b := ar.Bytes(arena.Ptr(addr)+arena.Ptr(n), 1)[0]
		if b == 0 {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}

// cPrintf translates the small subset of printf conversions this library
// supports (d, i, u, x, o, c, f, g, e, s, p, %) into Go's own formatting,
// skipping width/precision/length modifiers rather than honoring them.
func cPrintf(ar *arena.Arena, format string, args []*value.Cell) (string, error) {
	var sb strings.Builder
	argi := 0
	for i := 0; i < len(format); {
		if format[i] != '%' {
			sb.WriteByte(format[i])
			i++
			continue
		}
		i++
		for i < len(format) && strings.ContainsRune("-+ 0123456789.lhz", rune(format[i])) {
			i++
		}
		if i >= len(format) {
			return "", fmt.Errorf("hostlib: printf: dangling %% at end of format")
		}
		verb := format[i]
		i++
		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		if argi >= len(args) {
			return "", fmt.Errorf("hostlib: printf: too few arguments for format %q", format)
		}
		arg := args[argi]
		argi++
		switch verb {
		case 'd', 'i':
			n, err := value.CoerceInt(arg)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "%d", n)
		case 'u':
			n, err := value.CoerceUnsigned(arg)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "%d", n)
		case 'x', 'X', 'o':
			n, err := value.CoerceUnsigned(arg)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "%"+string(verb), n)
		case 'c':
			n, err := value.CoerceInt(arg)
			if err != nil {
				return "", err
			}
			sb.WriteByte(byte(n))
		case 'f', 'g', 'e', 'G', 'E':
			f, err := value.CoerceFloat(arg)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "%"+string(verb), f)
		case 's':
			s, err := readCString(ar, arg)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		case 'p':
			n, err := value.CoerceInt(arg)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "%#x", uint64(n))
		default:
			sb.WriteByte('%')
			sb.WriteByte(verb)
		}
	}
	return sb.String(), nil
}

func printfIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	if len(args) == 0 {
		return fmt.Errorf("hostlib: printf: missing format argument")
	}
	format, err := readCString(ev.Arena, args[0])
	if err != nil {
		return err
	}
	out, err := cPrintf(ev.Arena, format, args[1:])
	if err != nil {
		return err
	}
	n, err := os.Stdout.WriteString(out)
	if err != nil {
		return err
	}
	_, err = value.AssignInt(ret, int64(n), false)
	return err
}

func putcharIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	n, err := value.CoerceInt(args[0])
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write([]byte{byte(n)}); err != nil {
		return err
	}
	_, err = value.AssignInt(ret, n, false)
	return err
}

func putsIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	s, err := readCString(ev.Arena, args[0])
	if err != nil {
		return err
	}
	n, err := fmt.Println(s)
	if err != nil {
		return err
	}
	_, err = value.AssignInt(ret, int64(n), false)
	return err
}

func getcharIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	b, err := stdin.ReadByte()
	if err != nil {
		_, err = value.AssignInt(ret, -1, false)
		return err
	}
	_, err = value.AssignInt(ret, int64(b), false)
	return err
}

// ExitSignal is what exit() panics with, caught by interp.Interpreter's
// SetExitPoint — the interpreter core's only place a program can unwind
// straight past every open call frame without it counting as a fatal
// error (spec.md §4.7/§9 "non-local escape").
type ExitSignal struct {
	Code int
}

func (e *ExitSignal) Error() string { return fmt.Sprintf("exit(%d)", e.Code) }

func exitIntrinsic(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
	n, err := value.CoerceInt(args[0])
	if err != nil {
		return err
	}
	panic(&ExitSignal{Code: int(n)})
}

// RegisterStdio defines the stdio.h-equivalent intrinsics (spec.md §3
// "SUPPLEMENTED FEATURES"): printf and friends read/write Go's own
// os.Stdout/os.Stdin rather than a reimplemented buffered layer.
func RegisterStdio(ev *eval.Evaluator) error {
	intT := ev.Types.BaseType(types.Int)
	voidT := ev.Types.BaseType(types.Void)
	charPtr := ev.Types.Pointer(ev.Types.BaseType(types.Char))

	if err := defineIntrinsic(ev, "printf", intT, []types.Param{{Name: "fmt", Type: charPtr}}, true, printfIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "putchar", intT, []types.Param{{Name: "c", Type: intT}}, false, putcharIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "puts", intT, []types.Param{{Name: "s", Type: charPtr}}, false, putsIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "exit", voidT, []types.Param{{Name: "code", Type: intT}}, false, exitIntrinsic); err != nil {
		return err
	}
	if err := defineIntrinsic(ev, "getchar", intT, nil, false, getcharIntrinsic); err != nil {
		return err
	}
	return nil
}
