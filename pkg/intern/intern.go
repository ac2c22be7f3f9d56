// Package intern canonicalizes identifiers and string literals so that
// identity comparisons (pointer equality) can replace repeated string
// comparisons, and so identical string literals share one backing cell
// (spec invariant: string-literal sharing).
package intern

// ID is an interned string's identity. Two IDs compare equal iff the
// underlying strings were equal at intern time.
type ID int

// Table is a single interpreter instance's symbol table, shared by
// identifiers, struct/union/enum tags, and string literals.
type Table struct {
	byString map[string]ID
	strings  []string
}

// New returns an empty interning table.
func New() *Table {
	return &Table{byString: make(map[string]ID)}
}

// Intern returns the canonical ID for s, creating one if s has not been
// seen before.
func (t *Table) Intern(s string) ID {
	if id, ok := t.byString[s]; ok {
		return id
	}
	id := ID(len(t.strings))
	t.strings = append(t.strings, s)
	t.byString[s] = id
	return id
}

// Lookup reports whether s has already been interned, without creating a
// new entry.
func (t *Table) Lookup(s string) (ID, bool) {
	id, ok := t.byString[s]
	return id, ok
}

// String returns the original string for an ID produced by this table.
func (t *Table) String(id ID) string {
	return t.strings[id]
}

// Len reports how many distinct strings have been interned.
func (t *Table) Len() int { return len(t.strings) }
