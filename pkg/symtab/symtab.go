// Package symtab implements the interpreter's two-tier symbol lookup
// (global table plus a per-frame local table), lexical scope-ID
// dormancy, and static-variable mangling, per spec.md §4.6 and picoc's
// variable.c.
package symtab

import (
	"fmt"

	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// Entry is one named binding: a value cell, its declared type, whether it
// may be written through (const-qualified locals are parsed but not
// enforced per spec.md §6), and the lexical scope it belongs to.
type Entry struct {
	Name     string
	Cell     *value.Cell
	Type     *types.Descriptor
	Writable bool
	ScopeID  int
	Dormant  bool

	// shadowed is the live outer-scope entry of the same name that this
	// entry hides; ExitScope puts it back.
	shadowed *Entry
}

// Frame is a per-call activation record: its own local table, the token
// position to resume the caller at, a parameter slot array, and a link to
// the calling frame (spec.md §3 "Scope / Frame").
type Frame struct {
	locals map[string]*Entry
	// order preserves declaration order for deterministic String() dumps
	// and for locating the most-recently-declared shadow of a name.
	order []string

	ReturnCursor int
	Params       []*value.Cell
	Prev         *Frame

	// CurrentScopeID tracks the active lexical block for Define's
	// default scope tagging; set by the statement driver via
	// SetScope.
	CurrentScopeID int
}

// Table is the two-tier symbol table: one global map shared by the whole
// program, and a stack of frames for the currently nested function calls.
type Table struct {
	globals map[string]*Entry
	order   []string
	top     *Frame
}

// New returns an empty, top-level (no active frame) symbol table.
func New() *Table {
	return &Table{globals: make(map[string]*Entry)}
}

// InFunction reports whether a call frame is currently active.
func (t *Table) InFunction() bool { return t.top != nil }

// PushFrame enters a new function call, recording where the evaluator
// should resume the caller's token stream on return.
func (t *Table) PushFrame(returnCursor int) *Frame {
	f := &Frame{locals: make(map[string]*Entry), ReturnCursor: returnCursor, Prev: t.top}
	t.top = f
	return f
}

// PopFrame leaves the current function call, discarding its local table.
// It returns the return cursor so the evaluator can restore the caller's
// token position.
func (t *Table) PopFrame() (int, error) {
	if t.top == nil {
		return 0, fmt.Errorf("symtab: PopFrame with no active frame")
	}
	cursor := t.top.ReturnCursor
	t.top = t.top.Prev
	return cursor, nil
}

// SetScope records the lexical block currently executing, used as the
// default ScopeID for subsequent Define calls in the active frame.
func (t *Table) SetScope(scopeID int) {
	if t.top != nil {
		t.top.CurrentScopeID = scopeID
	}
}

// Define allocates a binding for name in the active frame (or globally, if
// no frame is active), failing on duplicate definition within the same
// scope. Parameters pass scopeID -1 so they are never scoped out on block
// exit (spec.md §4.5.4 step 7).
func (t *Table) Define(name string, cell *value.Cell, typ *types.Descriptor, writable bool, scopeID int) error {
	if t.top != nil {
		existing, ok := t.top.locals[name]
		if ok && !existing.Dormant && existing.ScopeID == scopeID {
			return fmt.Errorf("symtab: redefinition of %q in the same scope", name)
		}
		e := &Entry{Name: name, Cell: cell, Type: typ, Writable: writable, ScopeID: scopeID}
		if ok && !existing.Dormant {
			e.shadowed = existing
		}
		if _, exists := t.top.locals[name]; !exists {
			t.top.order = append(t.top.order, name)
		}
		t.top.locals[name] = e
		return nil
	}

	if existing, ok := t.globals[name]; ok && !existing.Dormant {
		return fmt.Errorf("symtab: redefinition of global %q", name)
	}
	e := &Entry{Name: name, Cell: cell, Type: typ, Writable: writable, ScopeID: scopeID}
	if _, exists := t.globals[name]; !exists {
		t.order = append(t.order, name)
	}
	t.globals[name] = e
	return nil
}

// Lookup searches the local frame (if any) then the global table,
// skipping dormant entries (spec.md §4.6 "out-of-scope access").
func (t *Table) Lookup(name string) (*Entry, bool) {
	if t.top != nil {
		if e, ok := t.top.locals[name]; ok && !e.Dormant {
			return e, true
		}
	}
	if e, ok := t.globals[name]; ok && !e.Dormant {
		return e, true
	}
	return nil, false
}

// EnterScope reactivates every dormant local entry tagged with scopeID —
// the "re-entering a lexical block" half of spec.md §4.6's dormancy
// scheme, used when a loop body executes again with the same variables.
func (t *Table) EnterScope(scopeID int) {
	if t.top == nil {
		return
	}
	for _, e := range t.top.locals {
		if e.ScopeID == scopeID && e.Dormant {
			e.Dormant = false
		}
	}
	t.top.CurrentScopeID = scopeID
}

// ExitScope marks every live local entry tagged with scopeID as dormant,
// hiding it from Lookup until the block is re-entered (spec invariant:
// Scoping — "not visible after B's closing brace"). An entry that hid an
// outer entry of the same name is replaced by that outer entry instead.
func (t *Table) ExitScope(scopeID int) {
	if t.top == nil {
		return
	}
	for _, e := range t.top.locals {
		if e.ScopeID == scopeID && !e.Dormant {
			e.Dormant = true
			if e.shadowed != nil {
				t.top.locals[e.Name] = e.shadowed
			}
		}
	}
}

// HasGlobal reports whether name already has a global-table entry,
// mangled or not. Package stmt uses this to tell a `static` local's
// first execution (run the initializer) from a later one (skip it,
// spec invariant "Static persistence").
func (t *Table) HasGlobal(name string) bool {
	_, ok := t.globals[name]
	return ok
}

// MangleStatic builds the global key a `static` local is stored under:
// "/<file>/<func>/<ident>" (picoc's variable.c scheme, spec.md §4.6).
func MangleStatic(file, fn, ident string) string {
	return fmt.Sprintf("/%s/%s/%s", file, fn, ident)
}

// DefineStatic defines a function-local `static` variable: a globally
// scoped entry under its mangled key (surviving across calls, spec
// invariant "Static persistence"), plus a frame-local alias under the
// plain name that shares the same storage cell (so plain lookups inside
// the function see it, while other functions — even with an identically
// named static — cannot).
func (t *Table) DefineStatic(file, fn, ident string, cell *value.Cell, typ *types.Descriptor) error {
	mangled := MangleStatic(file, fn, ident)
	if _, ok := t.globals[mangled]; !ok {
		e := &Entry{Name: mangled, Cell: cell, Type: typ, Writable: true}
		t.globals[mangled] = e
		t.order = append(t.order, mangled)
	}
	global := t.globals[mangled]

	if t.top == nil {
		return fmt.Errorf("symtab: DefineStatic called outside a function")
	}
	alias := &Entry{Name: ident, Cell: global.Cell, Type: global.Type, Writable: true, ScopeID: t.top.CurrentScopeID}
	if _, exists := t.top.locals[ident]; !exists {
		t.top.order = append(t.top.order, ident)
	}
	t.top.locals[ident] = alias
	return nil
}
