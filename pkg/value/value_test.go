package value

import (
	"testing"

	"tinyc/pkg/arena"
	"tinyc/pkg/types"
)

func setup() (*arena.Arena, *types.Registry) {
	return arena.New(4096), types.NewRegistry()
}

func TestAssignIntNarrowsAndReturnsRequestedValue(t *testing.T) {
	ar, reg := setup()
	c, err := NewStack(ar, reg.BaseType(types.Char))
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	c.IsLValue = true

	newVal, err := AssignInt(c, 200, false)
	if err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	// char is signed 8-bit: 200 narrows to -56.
	if newVal != -56 {
		t.Fatalf("AssignInt narrowed value = %d, want -56", newVal)
	}
}

func TestAssignIntPostReturnsPreviousValue(t *testing.T) {
	ar, reg := setup()
	c, _ := NewStack(ar, reg.BaseType(types.Int))
	c.IsLValue = true
	if _, err := AssignInt(c, 5, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	prev, err := AssignInt(c, 6, true)
	if err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	if prev != 5 {
		t.Fatalf("postfix AssignInt returned %d, want previous value 5", prev)
	}
}

func TestAssignRequiresLValue(t *testing.T) {
	ar, reg := setup()
	c, _ := NewStack(ar, reg.BaseType(types.Int))
	// c.IsLValue left false.
	if _, err := AssignInt(c, 1, false); err == nil {
		t.Fatalf("expected error assigning to non-l-value")
	}
}

func TestCoerceIntSignExtendsSignedNarrowTypes(t *testing.T) {
	ar, reg := setup()
	c, _ := NewStack(ar, reg.BaseType(types.Char))
	c.IsLValue = true
	if _, err := AssignInt(c, -1, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	i, err := CoerceInt(c)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if i != -1 {
		t.Fatalf("CoerceInt(char -1) = %d, want -1", i)
	}
}

func TestCoerceIntZeroExtendsUnsignedNarrowTypes(t *testing.T) {
	ar, reg := setup()
	c, _ := NewStack(ar, reg.BaseType(types.UnsignedChar))
	c.IsLValue = true
	if _, err := AssignInt(c, -1, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}
	i, err := CoerceInt(c)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if i != 255 {
		t.Fatalf("CoerceInt(unsigned char -1) = %d, want 255 (scenario 3: signed char -1 -> unsigned)", i)
	}
}

func TestNewViewAliasesParentPayload(t *testing.T) {
	ar, reg := setup()
	structT := reg.Aggregate(types.Struct, "Point")
	intT := reg.BaseType(types.Int)
	reg.DefineAggregate(structT, []types.Member{
		{Name: "x", Type: intT, Offset: 0},
		{Name: "y", Type: intT, Offset: 4},
	})

	obj, _ := NewStack(ar, structT)
	obj.IsLValue = true

	yView := NewView(obj, intT, 4)
	yView.IsLValue = true
	if _, err := AssignInt(yView, 42, false); err != nil {
		t.Fatalf("AssignInt: %v", err)
	}

	// The write through the view must be visible through the parent.
	again := NewView(obj, intT, 4)
	got, err := CoerceInt(again)
	if err != nil {
		t.Fatalf("CoerceInt: %v", err)
	}
	if got != 42 {
		t.Fatalf("write through member view not visible via parent: got %d, want 42", got)
	}
}

func TestDerefNullPointerIsFatal(t *testing.T) {
	ar, reg := setup()
	ptr, _ := NewStack(ar, reg.Pointer(reg.BaseType(types.Int)))
	ptr.IsLValue = true
	// Payload defaults to zero bytes == null.
	if _, err := Deref(ar, ptr); err == nil {
		t.Fatalf("expected NULL pointer dereference error")
	}
}

func TestAssignToPointerFromArrayDecaysToAddress(t *testing.T) {
	ar, reg := setup()
	charT := reg.BaseType(types.Char)
	arrT := reg.ArrayOf(charT, 4)
	arr, _ := NewStack(ar, arrT)
	arr.IsLValue = true

	ptrT := reg.Pointer(charT)
	ptr, _ := NewStack(ar, ptrT)
	ptr.IsLValue = true

	if err := AssignToPointer(reg, ptr, arr, false); err != nil {
		t.Fatalf("AssignToPointer: %v", err)
	}
	if RawBits(ptr) != uint64(arr.Addr) {
		t.Fatalf("pointer does not hold array's address: got %d, want %d", RawBits(ptr), arr.Addr)
	}
}

func TestUnsizedCharArrayResizesFromStringLiteral(t *testing.T) {
	ar, reg := setup()
	charT := reg.BaseType(types.Char)
	unsized := reg.ArrayOf(charT, 0)
	dest, _ := NewStack(ar, unsized)
	dest.IsLValue = true
	// Give the unsized destination generous backing storage, as the
	// statement-level declaration handler would when it sees an
	// initializer present.
	dest.Payload = ar.Bytes(dest.Addr, 0)
	big, err := ar.AllocStack(16)
	if err != nil {
		t.Fatalf("AllocStack: %v", err)
	}
	dest.Payload = ar.Bytes(big, 0)
	dest.Addr = big
	dest.Payload = dest.Payload[:0:16]

	lit := reg.ArrayOf(charT, 5)
	src := NewImmediate(lit, []byte("abcd\x00"))

	if err := Assign(reg, dest, src, false, false); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if unsized.ArraySize != 5 {
		t.Fatalf("unsized array was not resized: ArraySize = %d", unsized.ArraySize)
	}
	if string(dest.Payload) != "abcd\x00" {
		t.Fatalf("Assign did not copy string literal bytes: %q", dest.Payload)
	}
}
