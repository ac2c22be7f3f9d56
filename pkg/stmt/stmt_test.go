package stmt

import (
	"testing"

	"tinyc/pkg/arena"
	"tinyc/pkg/eval"
	"tinyc/pkg/intern"
	"tinyc/pkg/lexer"
	"tinyc/pkg/symtab"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// runProgram parses src as a whole translation unit and calls its int
// entry() with no arguments, the way interp.CallEntry exercises a parsed
// program's main, but scoped down to package stmt alone.
func runProgram(t *testing.T, src, entry string) int64 {
	t.Helper()
	toks, err := lexer.Lex(src)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	ar := arena.New(1 << 16)
	reg := types.NewRegistry()
	ev := eval.New(ar, reg, intern.New(), symtab.New(), lexer.NewStream(toks), "test.c")
	ev.RunBody = Driver{}

	if err := ParseProgram(ev); err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	result, err := ev.CallNamed(entry, nil)
	if err != nil {
		t.Fatalf("CallNamed(%q): %v", entry, err)
	}
	got, err := value.CoerceInt(result)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	return got
}

func TestIfElseTakesTheTrueBranch(t *testing.T) {
	src := `int f() { if (1) return 10; else return 20; }`
	if got := runProgram(t, src, "f"); got != 10 {
		t.Fatalf("f() = %d, want 10", got)
	}
}

func TestIfElseTakesTheFalseBranch(t *testing.T) {
	src := `int f() { if (0) return 10; else return 20; }`
	if got := runProgram(t, src, "f"); got != 20 {
		t.Fatalf("f() = %d, want 20", got)
	}
}

func TestIfWithNoElseSkipsCleanlyWhenFalse(t *testing.T) {
	src := `int f() { if (0) return 1; return 2; }`
	if got := runProgram(t, src, "f"); got != 2 {
		t.Fatalf("f() = %d, want 2", got)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	src := `int f() { int i; int sum; i = 0; sum = 0; while (i < 5) { sum = sum + i; i = i + 1; } return sum; }`
	if got := runProgram(t, src, "f"); got != 10 {
		t.Fatalf("f() = %d, want 10 (0+1+2+3+4)", got)
	}
}

func TestDoWhileRunsBodyAtLeastOnce(t *testing.T) {
	src := `int f() { int i; i = 0; do { i = i + 1; } while (0); return i; }`
	if got := runProgram(t, src, "f"); got != 1 {
		t.Fatalf("f() = %d, want 1 (body runs once even though the condition is false)", got)
	}
}

func TestForLoopCountsToFive(t *testing.T) {
	src := `int f() { int i; int n; n = 0; for (i = 0; i < 5; i = i + 1) { n = n + 1; } return n; }`
	if got := runProgram(t, src, "f"); got != 5 {
		t.Fatalf("f() = %d, want 5", got)
	}
}

func TestBreakExitsEnclosingLoopOnly(t *testing.T) {
	src := `int f() {
		int i; int n;
		n = 0;
		for (i = 0; i < 5; i = i + 1) {
			if (i == 3) break;
			n = n + 1;
		}
		return n;
	}`
	if got := runProgram(t, src, "f"); got != 3 {
		t.Fatalf("f() = %d, want 3 (loop breaks before counting i=3,4)", got)
	}
}

func TestContinueSkipsRestOfBodyNotTheLoop(t *testing.T) {
	src := `int f() {
		int i; int n;
		n = 0;
		for (i = 0; i < 5; i = i + 1) {
			if (i == 2) continue;
			n = n + 1;
		}
		return n;
	}`
	if got := runProgram(t, src, "f"); got != 4 {
		t.Fatalf("f() = %d, want 4 (every i except i=2 is counted)", got)
	}
}

func TestGotoJumpsForwardOverStatements(t *testing.T) {
	src := `int f() {
		int n;
		n = 1;
		goto skip;
		n = 99;
	skip:
		n = n + 1;
		return n;
	}`
	if got := runProgram(t, src, "f"); got != 2 {
		t.Fatalf("f() = %d, want 2 (the n=99 assignment must be skipped)", got)
	}
}

func TestGotoJumpsBackwardToFormALoop(t *testing.T) {
	src := `int f() {
		int i;
		i = 0;
	top:
		i = i + 1;
		if (i < 3) goto top;
		return i;
	}`
	if got := runProgram(t, src, "f"); got != 3 {
		t.Fatalf("f() = %d, want 3", got)
	}
}

func TestSwitchDispatchesToMatchingCase(t *testing.T) {
	src := `int f(int x) {
		int r;
		switch (x) {
		case 1: r = 10; break;
		case 2: r = 20; break;
		default: r = -1; break;
		}
		return r;
	}`
	ev := evalCall(t, src, "f", 2)
	if ev != 20 {
		t.Fatalf("f(2) = %d, want 20", ev)
	}
}

func TestSwitchFallsThroughWithoutBreak(t *testing.T) {
	src := `int f(int x) {
		int r;
		r = 0;
		switch (x) {
		case 1: r = r + 1;
		case 2: r = r + 10;
		}
		return r;
	}`
	if got := evalCall(t, src, "f", 1); got != 11 {
		t.Fatalf("f(1) = %d, want 11 (case 1 falls through into case 2)", got)
	}
}

func TestSwitchDefaultRunsWhenNoCaseMatches(t *testing.T) {
	src := `int f(int x) {
		int r;
		switch (x) {
		case 1: r = 1; break;
		default: r = 42; break;
		}
		return r;
	}`
	if got := evalCall(t, src, "f", 7); got != 42 {
		t.Fatalf("f(7) = %d, want 42", got)
	}
}

// evalCall is runProgram's single-int-argument variant, used by the
// switch tests above to exercise different case dispatches from one
// parsed program.
func evalCall(t *testing.T, src, entry string, arg int64) int64 {
	t.Helper()
	toks, err := lexer.Lex(src)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	ar := arena.New(1 << 16)
	reg := types.NewRegistry()
	ev := eval.New(ar, reg, intern.New(), symtab.New(), lexer.NewStream(toks), "test.c")
	ev.RunBody = Driver{}
	if err := ParseProgram(ev); err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	argCell, err := value.NewStack(ev.Arena, ev.Types.BaseType(types.Int))
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	argCell.IsLValue = true
	if _, err := value.AssignInt(argCell, arg, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	result, err := ev.CallNamed(entry, []*value.Cell{argCell})
	if err != nil {
		t.Fatalf("CallNamed(%q): %v", entry, err)
	}
	got, err := value.CoerceInt(result)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	return got
}

func TestReturnValueFromNestedBlockPropagates(t *testing.T) {
	src := `int f() { { { return 7; } } }`
	if got := runProgram(t, src, "f"); got != 7 {
		t.Fatalf("f() = %d, want 7", got)
	}
}

// TestStringLiteralArrayIsPreSizedBeforeSubsequentAllocation is a direct
// regression test for the unsized-char-array declaration bug: s must
// reserve len("abcd")+1 bytes up front so a later local declared at the
// same arena depth cannot overlap its trailing NUL.
func TestStringLiteralArrayIsPreSizedBeforeSubsequentAllocation(t *testing.T) {
	src := `int f() {
		char s[] = "abcd";
		int x;
		x = 16777216;
		return s[4];
	}`
	if got := runProgram(t, src, "f"); got != 0 {
		t.Fatalf("s[4] = %d, want 0 (the string's NUL terminator, undisturbed by x's allocation)", got)
	}
}

func TestBraceInitializedArrayIsPreSized(t *testing.T) {
	src := `int f() {
		int a[] = {1, 2, 3};
		int x;
		x = 99;
		return a[0] + a[1] + a[2];
	}`
	if got := runProgram(t, src, "f"); got != 6 {
		t.Fatalf("sum = %d, want 6", got)
	}
}

func TestLocalDeclarationWithInitializer(t *testing.T) {
	src := `int f() { int x = 5; return x + 1; }`
	if got := runProgram(t, src, "f"); got != 6 {
		t.Fatalf("f() = %d, want 6", got)
	}
}
