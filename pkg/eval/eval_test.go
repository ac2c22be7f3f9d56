package eval

import (
	"testing"

	"tinyc/pkg/arena"
	"tinyc/pkg/intern"
	"tinyc/pkg/lexer"
	"tinyc/pkg/symtab"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// newTestEvaluator builds an Evaluator over src with no BodyRunner: every
// test in this file either evaluates a single expression with no function
// calls, or (call_test.go) installs its own minimal BodyRunner stub.
func newTestEvaluator(t *testing.T, src string) *Evaluator {
	t.Helper()
	toks, err := lexer.Lex(src)
	if err != nil {
		t.Fatalf("Lex(%q): %v", src, err)
	}
	ar := arena.New(1 << 16)
	reg := types.NewRegistry()
	return New(ar, reg, intern.New(), symtab.New(), lexer.NewStream(toks), "test.c")
}

func evalInt(t *testing.T, src string) int64 {
	t.Helper()
	ev := newTestEvaluator(t, src)
	cell, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", src, err)
	}
	i, err := value.CoerceInt(cell)
	if err != nil {
		t.Fatalf("CoerceInt(%q): %v", src, err)
	}
	return i
}

func TestPrecedenceMultiplyBindsTighterThanAdd(t *testing.T) {
	if got := evalInt(t, "2 + 3 * 4"); got != 14 {
		t.Fatalf("2 + 3 * 4 = %d, want 14", got)
	}
}

func TestBracketPrecedenceOverridesOperatorPrecedence(t *testing.T) {
	if got := evalInt(t, "(2 + 3) * 4"); got != 20 {
		t.Fatalf("(2 + 3) * 4 = %d, want 20", got)
	}
}

func TestNestedBracketsCollapseInOrder(t *testing.T) {
	if got := evalInt(t, "((1 + 2) * (3 + 4))"); got != 21 {
		t.Fatalf("((1+2)*(3+4)) = %d, want 21", got)
	}
}

func TestStackedPrefixOperatorsCollapseRightToLeft(t *testing.T) {
	if got := evalInt(t, "- -5"); got != 5 {
		t.Fatalf("- -5 = %d, want 5", got)
	}
	if got := evalInt(t, "!!7"); got != 1 {
		t.Fatalf("!!7 = %d, want 1", got)
	}
	if got := evalInt(t, "~~3"); got != 3 {
		t.Fatalf("~~3 = %d, want 3", got)
	}
}

func TestComparisonBindsLooserThanArithmetic(t *testing.T) {
	if got := evalInt(t, "1 + 2 < 4 * 1"); got != 1 {
		t.Fatalf("1 + 2 < 4 * 1 = %d, want 1", got)
	}
}

func TestCommaOperatorKeepsLastOperand(t *testing.T) {
	// allowComma=false (evalInt's default) treats a top-level comma as an
	// argument/initializer separator, not the comma operator — even inside
	// parens, since depth tracking and allowComma are independent (see
	// Evaluate's COMMA case). So this exercises the comma operator directly
	// via Evaluate(true) rather than going through evalInt.
	ev := newTestEvaluator(t, "1, 2, 3")
	cell, err := ev.Evaluate(true)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, err := value.CoerceInt(cell)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if got != 3 {
		t.Fatalf("1, 2, 3 = %d, want 3 (comma keeps the last operand)", got)
	}
}

func TestTernaryRightAssociativityNestedElse(t *testing.T) {
	// 0 ? 1 : 0 ? 2 : 3 must parse as 0 ? 1 : (0 ? 2 : 3), not
	// (0 ? 1 : 0) ? 2 : 3.
	if got := evalInt(t, "0 ? 1 : 0 ? 2 : 3"); got != 3 {
		t.Fatalf("0 ? 1 : 0 ? 2 : 3 = %d, want 3", got)
	}
}

func TestTernarySuppressesUntakenBranch(t *testing.T) {
	// The untaken branch dereferences a NULL pointer: if it were evaluated
	// for real rather than walked in suppressed mode, this would fail with
	// a NULL-pointer-dereference error instead of returning.
	got := evalInt(t, "1 ? 42 : *(int*)0")
	if got != 42 {
		t.Fatalf("1 ? 42 : *(int*)0 = %d, want 42", got)
	}
}

func TestShortCircuitAndSuppressesRightOperand(t *testing.T) {
	got := evalInt(t, "0 && (1 / 0)")
	if got != 0 {
		t.Fatalf("0 && (1/0) = %d, want 0 (right operand must not run)", got)
	}
}

func TestShortCircuitOrSuppressesRightOperand(t *testing.T) {
	got := evalInt(t, "1 || (1 / 0)")
	if got != 1 {
		t.Fatalf("1 || (1/0) = %d, want 1 (right operand must not run)", got)
	}
}

func TestCastDisambiguatedFromParenthesizedExpression(t *testing.T) {
	if got := evalInt(t, "(int)3.9"); got != 3 {
		t.Fatalf("(int)3.9 = %d, want 3 (truncating cast)", got)
	}
	// (1 + 2) is a parenthesized expression, not a cast, even though both
	// start with '('.
	if got := evalInt(t, "(1 + 2) * 2"); got != 6 {
		t.Fatalf("(1+2)*2 = %d, want 6", got)
	}
}

func TestSizeofTypeNameDoesNotEvaluateOperand(t *testing.T) {
	ev := newTestEvaluator(t, "sizeof(int)")
	cell, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	n, err := value.CoerceInt(cell)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if n != int64(types.IntSize(types.Int)) {
		t.Fatalf("sizeof(int) = %d, want %d", n, types.IntSize(types.Int))
	}
}

func TestSizeofExpressionUsesOperandType(t *testing.T) {
	// sizeof 1L should report long's size, distinguishing the "type name in
	// parens" production from "sizeof applied to an expression".
	ev := newTestEvaluator(t, "sizeof 1L")
	cell, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	n, err := value.CoerceInt(cell)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if n != int64(types.IntSize(types.Long)) {
		t.Fatalf("sizeof 1L = %d, want %d", n, types.IntSize(types.Long))
	}
}

func TestIntegerPromotionWidensSubIntArithmetic(t *testing.T) {
	ev := newTestEvaluator(t, "(short)3 + (short)4")
	cell, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if cell.Type.Base != types.Int {
		t.Fatalf("(short + short) result type = %s, want int", cell.Type)
	}
}

func TestPostfixIncrementReturnsPriorValue(t *testing.T) {
	ev := newTestEvaluator(t, "x++")
	x, err := value.NewStack(ev.Arena, ev.Types.BaseType(types.Int))
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	x.IsLValue = true
	if _, err := value.AssignInt(x, 5, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	if err := ev.Symbols.Define("x", x, x.Type, true, -1); err != nil {
		t.Fatalf("Define: %v", err)
	}
	result, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, err := value.CoerceInt(result)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if got != 5 {
		t.Fatalf("x++ = %d, want 5 (prior value)", got)
	}
	after, err := value.CoerceInt(x)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if after != 6 {
		t.Fatalf("x after x++ = %d, want 6", after)
	}
}

func TestPointerArithmeticScalesByPointeeSize(t *testing.T) {
	ev := newTestEvaluator(t, "p + 2")
	intT := ev.Types.BaseType(types.Int)
	arr, err := value.NewStack(ev.Arena, ev.Types.ArrayOf(intT, 4))
	if err != nil {
		t.Fatalf("NewStack array: %v", err)
	}
	arr.IsLValue = true

	ptr, err := value.NewStack(ev.Arena, ev.Types.Pointer(intT))
	if err != nil {
		t.Fatalf("NewStack pointer: %v", err)
	}
	ptr.IsLValue = true
	if err := value.AssignToPointer(ev.Types, ptr, arr, false); err != nil {
		t.Fatalf("AssignToPointer: %v", err)
	}
	if err := ev.Symbols.Define("p", ptr, ptr.Type, true, -1); err != nil {
		t.Fatalf("Define: %v", err)
	}

	result, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := value.RawBits(result)
	want := uint64(arr.Addr) + 2*uint64(intT.Size)
	if got != want {
		t.Fatalf("p + 2 raw address = %d, want %d (scaled by sizeof(int)=%d)", got, want, intT.Size)
	}
}

func TestIndexIntoIsEquivalentToPointerDerefArithmetic(t *testing.T) {
	ev := newTestEvaluator(t, "a[2]")
	intT := ev.Types.BaseType(types.Int)
	arr, err := value.NewStack(ev.Arena, ev.Types.ArrayOf(intT, 4))
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	arr.IsLValue = true
	elem := value.NewView(arr, intT, 2*intT.Size)
	elem.IsLValue = true
	if _, err := value.AssignInt(elem, 99, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	if err := ev.Symbols.Define("a", arr, arr.Type, true, -1); err != nil {
		t.Fatalf("Define: %v", err)
	}

	result, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, err := value.CoerceInt(result)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if got != 99 {
		t.Fatalf("a[2] = %d, want 99", got)
	}
}

func TestMemberAccessDotAndArrow(t *testing.T) {
	ev := newTestEvaluator(t, "s.x + sp->y")
	intT := ev.Types.BaseType(types.Int)
	structT := ev.Types.Aggregate(types.Struct, "Point")
	ev.Types.DefineAggregate(structT, []types.Member{
		{Name: "x", Type: intT, Offset: 0},
		{Name: "y", Type: intT, Offset: int(intT.Size)},
	})

	s, err := value.NewStack(ev.Arena, structT)
	if err != nil {
		t.Fatalf("NewStack struct: %v", err)
	}
	s.IsLValue = true
	xView := value.NewView(s, intT, 0)
	xView.IsLValue = true
	if _, err := value.AssignInt(xView, 10, false); err != nil {
		t.Fatalf("AssignInt x: %v", err)
	}
	yView := value.NewView(s, intT, int(intT.Size))
	yView.IsLValue = true
	if _, err := value.AssignInt(yView, 20, false); err != nil {
		t.Fatalf("AssignInt y: %v", err)
	}
	if err := ev.Symbols.Define("s", s, s.Type, true, -1); err != nil {
		t.Fatalf("Define s: %v", err)
	}

	sp, err := value.NewStack(ev.Arena, ev.Types.Pointer(structT))
	if err != nil {
		t.Fatalf("NewStack pointer: %v", err)
	}
	sp.IsLValue = true
	sAddr := value.NewImmediate(ev.Types.Pointer(structT), make([]byte, 8))
	value.SetRawBits(sAddr, uint64(s.Addr))
	if err := value.AssignToPointer(ev.Types, sp, sAddr, false); err != nil {
		t.Fatalf("AssignToPointer: %v", err)
	}
	if err := ev.Symbols.Define("sp", sp, sp.Type, true, -1); err != nil {
		t.Fatalf("Define sp: %v", err)
	}

	result, err := ev.Evaluate(false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, err := value.CoerceInt(result)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if got != 30 {
		t.Fatalf("s.x + sp->y = %d, want 30", got)
	}
}

func TestUndefinedIdentifierIsNameError(t *testing.T) {
	ev := newTestEvaluator(t, "undeclared + 1")
	if _, err := ev.Evaluate(false); err == nil {
		t.Fatalf("expected an error referencing an undeclared identifier")
	}
}
