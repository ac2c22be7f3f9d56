package hostlib

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"tinyc/pkg/arena"
	"tinyc/pkg/eval"
	"tinyc/pkg/intern"
	"tinyc/pkg/symtab"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

func newTestEvaluator(t *testing.T) *eval.Evaluator {
	t.Helper()
	ar := arena.New(1 << 16)
	reg := types.NewRegistry()
	ev := eval.New(ar, reg, intern.New(), symtab.New(), nil, "test.c")
	if err := RegisterAll(ev); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return ev
}

func callIntrinsic(t *testing.T, ev *eval.Evaluator, name string, args []*value.Cell) *value.Cell {
	t.Helper()
	entry, ok := ev.Symbols.Lookup(name)
	if !ok {
		t.Fatalf("intrinsic %q not registered", name)
	}
	fn, ok := entry.Type.Intrinsic.(eval.Intrinsic)
	if !ok {
		t.Fatalf("%q has no intrinsic trampoline", name)
	}
	ret, err := value.NewStack(ev.Arena, entry.Type.From)
	if err != nil {
		t.Fatalf("NewStack for %q return: %v", name, err)
	}
	if entry.Type.From.Base != types.Void {
		ret.IsLValue = true
	}
	if err := fn(ev, ret, args); err != nil {
		t.Fatalf("%q: %v", name, err)
	}
	ret.IsLValue = false
	return ret
}

func intCell(t *testing.T, ev *eval.Evaluator, n int64) *value.Cell {
	t.Helper()
	c, err := value.NewStack(ev.Arena, ev.Types.BaseType(types.Int))
	if err != nil {
		t.Fatalf("NewStack int: %v", err)
	}
	c.IsLValue = true
	if _, err := value.AssignInt(c, n, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	c.IsLValue = false
	return c
}

func floatCell(t *testing.T, ev *eval.Evaluator, f float64) *value.Cell {
	t.Helper()
	c, err := value.NewStack(ev.Arena, ev.Types.BaseType(types.Double))
	if err != nil {
		t.Fatalf("NewStack double: %v", err)
	}
	c.IsLValue = true
	if _, err := value.AssignFloat(c, f); err != nil {
		t.Fatalf("AssignFloat: %v", err)
	}
	c.IsLValue = false
	return c
}

// cStringCell allocates a NUL-terminated char array on the heap and
// returns a pointer cell to its first byte, the shape every hostlib
// string intrinsic expects.
func cStringCell(t *testing.T, ev *eval.Evaluator, s string) *value.Cell {
	t.Helper()
	charT := ev.Types.BaseType(types.Char)
	arrT := ev.Types.ArrayOf(charT, len(s)+1)
	arr, err := value.NewHeap(ev.Arena, arrT)
	if err != nil {
		t.Fatalf("NewHeap char array: %v", err)
	}
	copy(arr.Payload, append([]byte(s), 0))

	ptrT := ev.Types.Pointer(charT)
	ptr, err := value.NewStack(ev.Arena, ptrT)
	if err != nil {
		t.Fatalf("NewStack pointer: %v", err)
	}
	ptr.IsLValue = true
	if _, err := value.AssignInt(ptr, int64(arr.Addr), false); err != nil {
		t.Fatalf("AssignInt pointer: %v", err)
	}
	ptr.IsLValue = false
	return ptr
}

func TestMathSqrtAndPow(t *testing.T) {
	ev := newTestEvaluator(t)

	ret := callIntrinsic(t, ev, "sqrt", []*value.Cell{floatCell(t, ev, 81)})
	got, err := value.CoerceFloat(ret)
	if err != nil {
		t.Fatalf("CoerceFloat: %v", err)
	}
	if got != 9 {
		t.Fatalf("sqrt(81) = %v, want 9", got)
	}

	ret = callIntrinsic(t, ev, "pow", []*value.Cell{floatCell(t, ev, 2), floatCell(t, ev, 10)})
	got, _ = value.CoerceFloat(ret)
	if got != 1024 {
		t.Fatalf("pow(2,10) = %v, want 1024", got)
	}

	ret = callIntrinsic(t, ev, "floor", []*value.Cell{floatCell(t, ev, 3.7)})
	got, _ = value.CoerceFloat(ret)
	if got != math.Floor(3.7) {
		t.Fatalf("floor(3.7) = %v", got)
	}
}

func TestCPrintfFormatting(t *testing.T) {
	ev := newTestEvaluator(t)

	out, err := cPrintf(ev.Arena, "x=%d y=%s z=%.2f%%", []*value.Cell{
		intCell(t, ev, 42),
		cStringCell(t, ev, "hi"),
		floatCell(t, ev, 1.5),
	})
	if err != nil {
		t.Fatalf("cPrintf: %v", err)
	}
	want := "x=42 y=hi z=1.500000%"
	if out != want {
		t.Fatalf("cPrintf = %q, want %q", out, want)
	}
}

func TestReadCStringRejectsNull(t *testing.T) {
	ev := newTestEvaluator(t)
	ptrT := ev.Types.Pointer(ev.Types.BaseType(types.Char))
	nullPtr, err := value.NewStack(ev.Arena, ptrT)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	if _, err := readCString(ev.Arena, nullPtr); err == nil {
		t.Fatalf("expected error reading a NULL string")
	}
}

func TestPutsIntrinsicAppendsNewline(t *testing.T) {
	ev := newTestEvaluator(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	ret := callIntrinsic(t, ev, "puts", []*value.Cell{cStringCell(t, ev, "hello")})
	w.Close()
	n, err := value.CoerceInt(ret)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if n != int64(len("hello\n")) {
		t.Fatalf("puts returned %d, want %d", n, len("hello\n"))
	}

	buf := make([]byte, 64)
	nRead, _ := r.Read(buf)
	if string(buf[:nRead]) != "hello\n" {
		t.Fatalf("stdout = %q", buf[:nRead])
	}
}

func TestGraphicsPutpixelAndScreenshot(t *testing.T) {
	ev := newTestEvaluator(t)

	callIntrinsic(t, ev, "clearscreen", []*value.Cell{intCell(t, ev, 0)})
	callIntrinsic(t, ev, "setpalette", []*value.Cell{intCell(t, ev, 1), intCell(t, ev, 0xF800)})
	callIntrinsic(t, ev, "putpixel", []*value.Cell{intCell(t, ev, 10), intCell(t, ev, 10), intCell(t, ev, 1)})

	rgba := DefaultFramebuffer.RGBA()
	idx := (10*fbWidth + 10) * 4
	if rgba[idx] != 0xFF || rgba[idx+1] != 0 || rgba[idx+2] != 0 {
		t.Fatalf("pixel (10,10) = %v, want opaque red", rgba[idx:idx+4])
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")
	ret := callIntrinsic(t, ev, "screenshot", []*value.Cell{cStringCell(t, ev, path)})
	n, _ := value.CoerceInt(ret)
	if n != 0 {
		t.Fatalf("screenshot returned %d, want 0", n)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("screenshot did not create %s: %v", path, err)
	}
}
