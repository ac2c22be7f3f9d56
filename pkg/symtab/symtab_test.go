package symtab

import (
	"testing"

	"tinyc/pkg/arena"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

func TestLocalShadowsGlobal(t *testing.T) {
	ar := arena.New(4096)
	reg := types.NewRegistry()
	tab := New()

	g, _ := value.NewHeap(ar, reg.BaseType(types.Int))
	if err := tab.Define("x", g, reg.BaseType(types.Int), true, -1); err != nil {
		t.Fatalf("Define global: %v", err)
	}

	tab.PushFrame(0)
	l, _ := value.NewStack(ar, reg.BaseType(types.Int))
	if err := tab.Define("x", l, reg.BaseType(types.Int), true, -1); err != nil {
		t.Fatalf("Define local: %v", err)
	}

	e, ok := tab.Lookup("x")
	if !ok {
		t.Fatalf("Lookup(x) not found")
	}
	if e.Cell != l {
		t.Fatalf("local x should shadow global x")
	}

	if _, err := tab.PopFrame(); err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	e, ok = tab.Lookup("x")
	if !ok || e.Cell != g {
		t.Fatalf("after PopFrame, x should resolve to the global again")
	}
}

func TestScopeDormancyHidesAndRestoresVariables(t *testing.T) {
	ar := arena.New(4096)
	reg := types.NewRegistry()
	tab := New()

	tab.PushFrame(0)
	outer, _ := value.NewStack(ar, reg.BaseType(types.Int))
	if err := tab.Define("y", outer, reg.BaseType(types.Int), true, 0); err != nil {
		t.Fatalf("Define: %v", err)
	}

	tab.EnterScope(1)
	inner, _ := value.NewStack(ar, reg.BaseType(types.Int))
	if err := tab.Define("y", inner, reg.BaseType(types.Int), true, 1); err != nil {
		t.Fatalf("Define shadow: %v", err)
	}

	e, ok := tab.Lookup("y")
	if !ok || e.Cell != inner {
		t.Fatalf("inner block should see its own y")
	}

	tab.ExitScope(1)
	e, ok = tab.Lookup("y")
	if !ok || e.Cell != outer {
		t.Fatalf("after leaving block, outer y should be visible again, got %+v", e)
	}
}

func TestDefineStaticPersistsAcrossCalls(t *testing.T) {
	ar := arena.New(4096)
	reg := types.NewRegistry()
	tab := New()

	// First call.
	tab.PushFrame(0)
	first, _ := value.NewHeap(ar, reg.BaseType(types.Int))
	if err := tab.DefineStatic("f.c", "f", "k", first, reg.BaseType(types.Int)); err != nil {
		t.Fatalf("DefineStatic: %v", err)
	}
	e, _ := tab.Lookup("k")
	e.Cell.IsLValue = true
	if _, err := value.AssignInt(e.Cell, 1, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	tab.PopFrame()

	// Second call: a fresh candidate cell is passed, but DefineStatic
	// must keep using the first call's storage.
	tab.PushFrame(0)
	second, _ := value.NewHeap(ar, reg.BaseType(types.Int))
	if err := tab.DefineStatic("f.c", "f", "k", second, reg.BaseType(types.Int)); err != nil {
		t.Fatalf("DefineStatic: %v", err)
	}
	e2, _ := tab.Lookup("k")
	got, err := value.CoerceInt(e2.Cell)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if got != 1 {
		t.Fatalf("static local did not persist across calls: got %d, want 1", got)
	}
}

func TestDefineStaticNotVisibleToOtherFunctions(t *testing.T) {
	ar := arena.New(4096)
	reg := types.NewRegistry()
	tab := New()

	tab.PushFrame(0)
	cell, _ := value.NewHeap(ar, reg.BaseType(types.Int))
	tab.DefineStatic("f.c", "f", "k", cell, reg.BaseType(types.Int))
	tab.PopFrame()

	tab.PushFrame(0)
	if _, ok := tab.Lookup("k"); ok {
		t.Fatalf("static local of f() must not be visible inside a different function")
	}
}
