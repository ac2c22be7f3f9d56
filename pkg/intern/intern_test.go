package intern

import "testing"

func TestInternIsIdempotent(t *testing.T) {
	tbl := New()
	a := tbl.Intern("hello")
	b := tbl.Intern("hello")
	if a != b {
		t.Fatalf("interning the same string twice produced different IDs: %d vs %d", a, b)
	}
	c := tbl.Intern("world")
	if a == c {
		t.Fatalf("distinct strings interned to the same ID")
	}
}

func TestLookupDoesNotCreate(t *testing.T) {
	tbl := New()
	if _, ok := tbl.Lookup("missing"); ok {
		t.Fatalf("Lookup reported a string that was never interned")
	}
	if tbl.Len() != 0 {
		t.Fatalf("Lookup must not create entries, Len() = %d", tbl.Len())
	}
}

func TestStringRoundTrips(t *testing.T) {
	tbl := New()
	id := tbl.Intern("abc")
	if got := tbl.String(id); got != "abc" {
		t.Fatalf("String(%d) = %q, want %q", id, got, "abc")
	}
}
