// Package types implements the interpreter's canonical type descriptors:
// the closed enumeration of base kinds from spec.md §3, plus a registry
// that interns pointer and array descriptors structurally (so "int*" is
// one descriptor no matter how many times it is spelled) while structs,
// unions, enums, functions and macros are looked up nominally by tag and
// may exist as forward declarations with no member table.
package types

import "fmt"

// Base is the closed enumeration of value kinds the interpreter knows
// about (spec.md §3).
type Base int

const (
	Void Base = iota
	Char
	UnsignedChar
	Short
	UnsignedShort
	Int
	UnsignedInt
	Long
	UnsignedLong
	LongLong
	UnsignedLongLong
	Float
	Double
	Pointer
	Array
	Struct
	Union
	Enum
	Function
	Macro
	GotoLabel
	// TypeMeta is the meta-type carried by a value that names a type
	// itself, e.g. the operand pushed for `sizeof(int)`.
	TypeMeta
)

func (b Base) String() string {
	switch b {
	case Void:
		return "void"
	case Char:
		return "char"
	case UnsignedChar:
		return "unsigned char"
	case Short:
		return "short"
	case UnsignedShort:
		return "unsigned short"
	case Int:
		return "int"
	case UnsignedInt:
		return "unsigned int"
	case Long:
		return "long"
	case UnsignedLong:
		return "unsigned long"
	case LongLong:
		return "long long"
	case UnsignedLongLong:
		return "unsigned long long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Pointer:
		return "pointer"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case Union:
		return "union"
	case Enum:
		return "enum"
	case Function:
		return "function"
	case Macro:
		return "macro"
	case GotoLabel:
		return "label"
	case TypeMeta:
		return "type"
	default:
		return fmt.Sprintf("Base(%d)", int(b))
	}
}

// Member is one field of a struct/union descriptor: a name, its type, and
// its byte offset within the aggregate.
type Member struct {
	Name   string
	Type   *Descriptor
	Offset int
}

// Param is one declared parameter of a function or macro descriptor.
type Param struct {
	Name string
	Type *Descriptor
}

// Descriptor is a canonical, interned type. Pointer and array descriptors
// are structural (deduped by (Base, From, ArraySize)); struct/union/enum/
// function/macro descriptors are nominal (deduped by Ident) and may be
// forward-declared with no Members.
type Descriptor struct {
	Base  Base
	Size  int // in-memory byte size; 0 for an incomplete/unsized array
	Align int

	// From is the pointee type for Pointer, the element type for Array,
	// or the return type for Function/Macro.
	From *Descriptor

	// ArraySize is the element count for Array types; 0 means unsized
	// ("incomplete"), resized in place on first assignment from a sized
	// source (spec.md §3 invariant).
	ArraySize int

	// Ident is the tag name for Struct/Union/Enum, or the name for
	// Function/Macro.
	Ident string

	Members []Member
	byName  map[string]int

	Params   []Param
	Variadic bool

	// Intrinsic holds a host trampoline for Function descriptors backed
	// by a Go function rather than an interpreted body. Its concrete
	// type is defined by the caller (package eval); stored as any here
	// to avoid a dependency cycle between types and eval.
	Intrinsic any

	// EnumConsts maps constant name to value for Base == Enum.
	EnumConsts map[string]int64
}

// Member looks up a field by name, returning ok=false if absent.
func (d *Descriptor) Member(name string) (Member, bool) {
	if d.byName == nil {
		return Member{}, false
	}
	i, ok := d.byName[name]
	if !ok {
		return Member{}, false
	}
	return d.Members[i], ok
}

// IsIncomplete reports whether d is a struct/union forward declaration
// with no member table, or an unsized array.
func (d *Descriptor) IsIncomplete() bool {
	switch d.Base {
	case Struct, Union:
		return d.Members == nil
	case Array:
		return d.ArraySize == 0
	default:
		return false
	}
}

func (d *Descriptor) String() string {
	switch d.Base {
	case Pointer:
		return d.From.String() + "*"
	case Array:
		if d.ArraySize == 0 {
			return d.From.String() + "[]"
		}
		return fmt.Sprintf("%s[%d]", d.From.String(), d.ArraySize)
	case Struct:
		return "struct " + d.Ident
	case Union:
		return "union " + d.Ident
	case Enum:
		return "enum " + d.Ident
	case Function:
		return "function " + d.Ident
	case Macro:
		return "macro " + d.Ident
	default:
		return d.Base.String()
	}
}

type key struct {
	base      Base
	from      *Descriptor
	arraySize int
	ident     string
}

// Registry interns every Descriptor an interpreter instance creates.
type Registry struct {
	base    [int(TypeMeta) + 1]*Descriptor
	derived map[key]*Descriptor
}

// NewRegistry builds a registry pre-populated with the fixed-size base
// types (everything except Pointer/Array/Struct/Union/Enum/Function/
// Macro/GotoLabel/TypeMeta, which are created on demand).
func NewRegistry() *Registry {
	r := &Registry{derived: make(map[key]*Descriptor)}
	install := func(b Base, size, align int) {
		r.base[b] = &Descriptor{Base: b, Size: size, Align: align}
	}
	install(Void, 0, 1)
	install(Char, 1, 1)
	install(UnsignedChar, 1, 1)
	install(Short, 2, 2)
	install(UnsignedShort, 2, 2)
	install(Int, 4, 4)
	install(UnsignedInt, 4, 4)
	install(Long, 8, 8)
	install(UnsignedLong, 8, 8)
	install(LongLong, 8, 8)
	install(UnsignedLongLong, 8, 8)
	install(Float, 4, 4)
	install(Double, 8, 8)
	install(GotoLabel, 0, 1)
	install(TypeMeta, 0, 1)
	return r
}

// BaseType returns the interned descriptor for one of the fixed-size scalar
// base types.
func (r *Registry) BaseType(b Base) *Descriptor {
	d := r.base[b]
	if d == nil {
		panic(fmt.Sprintf("types: %v is not a fixed base type", b))
	}
	return d
}

// Pointer returns (creating if needed) the unique "pointer to from"
// descriptor.
func (r *Registry) Pointer(from *Descriptor) *Descriptor {
	k := key{base: Pointer, from: from}
	if d, ok := r.derived[k]; ok {
		return d
	}
	d := &Descriptor{Base: Pointer, Size: 8, Align: 8, From: from}
	r.derived[k] = d
	return d
}

// ArrayOf returns (creating if needed) the array-of-`from`, size
// `count` descriptor. count == 0 requests the unsized variant.
func (r *Registry) ArrayOf(from *Descriptor, count int) *Descriptor {
	k := key{base: Array, from: from, arraySize: count}
	if d, ok := r.derived[k]; ok {
		return d
	}
	size := 0
	if count > 0 {
		size = from.Size * count
	}
	d := &Descriptor{Base: Array, Size: size, Align: from.Align, From: from, ArraySize: count}
	r.derived[k] = d
	return d
}

// ResizeArray mutates an unsized array descriptor in place once its
// actual size is known (spec.md §3: "resized in place"). Any existing
// interning key for the unsized variant is left pointing at the old
// (now-sized) entry intentionally: callers hold the pointer, not the key.
func (r *Registry) ResizeArray(d *Descriptor, count int) {
	if d.Base != Array {
		panic("types: ResizeArray on non-array descriptor")
	}
	d.ArraySize = count
	d.Size = d.From.Size * count
}

// Aggregate returns the nominal struct/union/enum descriptor for ident,
// creating a forward declaration (no Members) if one does not exist yet.
func (r *Registry) Aggregate(base Base, ident string) *Descriptor {
	k := key{base: base, ident: ident}
	if d, ok := r.derived[k]; ok {
		return d
	}
	d := &Descriptor{Base: base, Ident: ident}
	if base == Enum {
		d.Size = r.base[Int].Size
		d.Align = r.base[Int].Align
		d.EnumConsts = make(map[string]int64)
	}
	r.derived[k] = d
	return d
}

// DefineAggregate fills in the member table (and byte size) of a
// previously forward-declared struct/union descriptor.
func (r *Registry) DefineAggregate(d *Descriptor, members []Member) {
	d.Members = members
	d.byName = make(map[string]int, len(members))
	size := 0
	align := 1
	for i, m := range members {
		d.byName[m.Name] = i
		if m.Type.Align > align {
			align = m.Type.Align
		}
		end := m.Offset + m.Type.Size
		if end > size {
			size = end
		}
	}
	if align > 1 {
		size = (size + align - 1) / align * align
	}
	d.Size = size
	d.Align = align
}

// Function returns the nominal function/macro descriptor for ident,
// creating one with no body/intrinsic (a "declared but undefined"
// function, spec.md §7 Link error category) if needed.
func (r *Registry) Function(base Base, ident string, ret *Descriptor, params []Param, variadic bool) *Descriptor {
	k := key{base: base, ident: ident}
	if d, ok := r.derived[k]; ok {
		return d
	}
	// Size/Align are never consulted for C's sizeof semantics (functions
	// are not sizeof-able objects); they exist only so a function/macro
	// cell has enough payload bytes to carry its body's token index
	// (package eval stores it via value.SetRawBits).
	d := &Descriptor{Base: base, Ident: ident, From: ret, Params: params, Variadic: variadic, Size: 8, Align: 8}
	r.derived[k] = d
	return d
}

// Lookup finds a previously-created nominal descriptor without creating
// one, used to detect "undefined function body at call time" (spec.md §7
// Link errors) versus "undefined identifier" (Name errors).
func (r *Registry) Lookup(base Base, ident string) (*Descriptor, bool) {
	d, ok := r.derived[key{base: base, ident: ident}]
	return d, ok
}

// Size returns the in-memory byte size of a type.
func Size(d *Descriptor) int { return d.Size }

// IntRank implements spec.md §4.3's integer rank ordering used by the
// usual arithmetic conversions.
func IntRank(b Base) int {
	switch b {
	case Char, UnsignedChar:
		return 1
	case Short, UnsignedShort:
		return 2
	case Int, UnsignedInt:
		return 3
	case Long, UnsignedLong:
		return 4
	case LongLong, UnsignedLongLong:
		return 5
	default:
		return 0
	}
}

// IsUnsigned reports whether b is one of the unsigned integer kinds.
func IsUnsigned(b Base) bool {
	switch b {
	case UnsignedChar, UnsignedShort, UnsignedInt, UnsignedLong, UnsignedLongLong:
		return true
	default:
		return false
	}
}

// IsInteger reports whether b is one of the fixed-width integer kinds
// (excluding Float/Double and everything non-numeric).
func IsInteger(b Base) bool {
	switch b {
	case Char, UnsignedChar, Short, UnsignedShort, Int, UnsignedInt,
		Long, UnsignedLong, LongLong, UnsignedLongLong:
		return true
	default:
		return false
	}
}

// IsFloating reports whether b is Float or Double.
func IsFloating(b Base) bool { return b == Float || b == Double }

// IsNumeric reports whether b is any integer or floating base.
func IsNumeric(b Base) bool { return IsInteger(b) || IsFloating(b) }

// IntSize returns the in-memory byte width of an integer base kind.
func IntSize(b Base) int {
	switch b {
	case Char, UnsignedChar:
		return 1
	case Short, UnsignedShort:
		return 2
	case Int, UnsignedInt:
		return 4
	case Long, UnsignedLong, LongLong, UnsignedLongLong:
		return 8
	default:
		return 0
	}
}

// UnsignedCounterpart returns the unsigned base kind with the same rank
// as a signed integer base kind (identity if already unsigned).
func UnsignedCounterpart(b Base) Base {
	switch b {
	case Char:
		return UnsignedChar
	case Short:
		return UnsignedShort
	case Int:
		return UnsignedInt
	case Long:
		return UnsignedLong
	case LongLong:
		return UnsignedLongLong
	default:
		return b
	}
}
