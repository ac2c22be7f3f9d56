// Package value implements the interpreter's tagged value cell (spec.md
// §3 "Value Cell") and the coercion/assignment operations of spec.md §4.4.
// A cell pairs a type descriptor with a raw-bytes payload sliced directly
// out of the arena, so that writing through an l-value's payload aliasing
// is a plain byte-level memcpy, matching picoc's payload-union discipline
// without resorting to unsafe pointer casts.
package value

import (
	"encoding/binary"
	"fmt"
	"math"

	"tinyc/pkg/arena"
	"tinyc/pkg/types"
)

// Cell is one runtime value: a type, the raw bytes holding its bits, and
// l-value bookkeeping (spec.md §3).
type Cell struct {
	Type    *types.Descriptor
	Payload []byte

	IsLValue bool
	// LValueFrom is the owning cell when this cell is a view into a
	// larger one (a struct member or an array element).
	LValueFrom *Cell

	OnHeap    bool
	OnStack   bool
	AnyOnHeap bool

	ScopeID    int
	OutOfScope bool

	// Addr is the cell's arena-relative address, used as the portable
	// "pointer value" for &, pointer arithmetic, and pointer equality.
	// It is arena.Ptr(-1) for cells with no backing arena storage (e.g.
	// synthetic zero values produced in short-circuit skip mode).
	Addr arena.Ptr
}

// NoAddr marks a cell as having no meaningful address.
const NoAddr = arena.Ptr(-1)

// NewStack allocates a cell of type t on the arena's stack half. Stack
// cells back expression temporaries and are released in LIFO order as the
// evaluator collapses its operator stack.
func NewStack(ar *arena.Arena, t *types.Descriptor) (*Cell, error) {
	size := t.Size
	if size == 0 {
		size = 1 // placeholder storage for an as-yet-unsized array
	}
	p, err := ar.AllocStack(size)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &Cell{Type: t, Payload: ar.Bytes(p, size), OnStack: true, Addr: p}, nil
}

// NewHeap allocates a cell of type t on the arena's heap half, for global
// variables and function/macro body storage that live for the program's
// lifetime.
func NewHeap(ar *arena.Arena, t *types.Descriptor) (*Cell, error) {
	size := t.Size
	if size == 0 {
		size = 1
	}
	p, err := ar.AllocHeap(size)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return &Cell{Type: t, Payload: ar.Bytes(p, size), OnHeap: true, AnyOnHeap: true, Addr: p}, nil
}

// NewView constructs an l-value that aliases a sub-range of parent's
// payload — used for struct/union member access and array indexing
// (spec.md §4.5.5, §4.5.3 "Left is array/pointer and operator is [").
func NewView(parent *Cell, t *types.Descriptor, offset int) *Cell {
	size := t.Size
	addr := NoAddr
	if parent.Addr != NoAddr {
		addr = parent.Addr + arena.Ptr(offset)
	}
	return &Cell{
		Type:       t,
		Payload:    parent.Payload[offset : offset+size],
		IsLValue:   parent.IsLValue,
		LValueFrom: parent,
		OnHeap:     parent.OnHeap,
		OnStack:    parent.OnStack,
		AnyOnHeap:  parent.AnyOnHeap,
		ScopeID:    parent.ScopeID,
		Addr:       addr,
	}
}

// NewImmediate wraps a Go-owned byte slice as an r-value cell that is not
// backed by the arena — used for synthetic zero values in short-circuit
// skip mode, where no storage discipline applies because nothing is kept.
func NewImmediate(t *types.Descriptor, payload []byte) *Cell {
	return &Cell{Type: t, Payload: payload, Addr: NoAddr}
}

// readRaw reads the cell's payload as an unsigned integer of its own
// width, without regard to signedness.
func readRaw(c *Cell) uint64 {
	switch len(c.Payload) {
	case 1:
		return uint64(c.Payload[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(c.Payload))
	case 4:
		return uint64(binary.LittleEndian.Uint32(c.Payload))
	case 8:
		return binary.LittleEndian.Uint64(c.Payload)
	default:
		return 0
	}
}

func writeRaw(c *Cell, bits uint64) {
	switch len(c.Payload) {
	case 1:
		c.Payload[0] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(c.Payload, uint16(bits))
	case 4:
		binary.LittleEndian.PutUint32(c.Payload, uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(c.Payload, bits)
	}
}

// CoerceInt reads any numeric or pointer cell as a signed 64-bit integer,
// sign-extending integers and bit-casting floats and pointers (spec.md
// §4.4).
func CoerceInt(c *Cell) (int64, error) {
	switch {
	case types.IsFloating(c.Type.Base):
		return int64(coerceFloatRaw(c)), nil
	case c.Type.Base == types.Pointer:
		return int64(readRaw(c)), nil
	case types.IsInteger(c.Type.Base):
		bits := readRaw(c)
		if types.IsUnsigned(c.Type.Base) {
			return int64(bits), nil
		}
		return signExtend(bits, types.IntSize(c.Type.Base)), nil
	case c.Type.Base == types.Enum:
		return int64(int32(readRaw(c))), nil
	default:
		return 0, fmt.Errorf("value: cannot coerce %s to integer", c.Type)
	}
}

// CoerceUnsigned is CoerceInt's unsigned counterpart.
func CoerceUnsigned(c *Cell) (uint64, error) {
	i, err := CoerceInt(c)
	if err != nil {
		return 0, err
	}
	return uint64(i), nil
}

func coerceFloatRaw(c *Cell) float64 {
	if c.Type.Base == types.Float {
		bits := binary.LittleEndian.Uint32(c.Payload)
		return float64(math.Float32frombits(bits))
	}
	bits := binary.LittleEndian.Uint64(c.Payload)
	return math.Float64frombits(bits)
}

// CoerceFloat widens any numeric cell to a double (spec.md §4.4).
func CoerceFloat(c *Cell) (float64, error) {
	switch {
	case types.IsFloating(c.Type.Base):
		return coerceFloatRaw(c), nil
	case types.IsInteger(c.Type.Base):
		i, err := CoerceInt(c)
		if err != nil {
			return 0, err
		}
		if types.IsUnsigned(c.Type.Base) {
			return float64(uint64(i)), nil
		}
		return float64(i), nil
	default:
		return 0, fmt.Errorf("value: cannot coerce %s to floating point", c.Type)
	}
}

func signExtend(bits uint64, size int) int64 {
	switch size {
	case 1:
		return int64(int8(bits))
	case 2:
		return int64(int16(bits))
	case 4:
		return int64(int32(bits))
	default:
		return int64(bits)
	}
}

// AssignInt writes i narrowed to dest's base type into the l-value,
// returning the previous value when post is true (for postfix ++/--) or
// the new value otherwise (spec.md §4.4).
func AssignInt(dest *Cell, i int64, post bool) (int64, error) {
	if !dest.IsLValue {
		return 0, fmt.Errorf("value: assignment target is not an l-value")
	}
	prev, err := CoerceInt(dest)
	if err != nil {
		return 0, err
	}
	writeRaw(dest, uint64(i))
	if post {
		return prev, nil
	}
	newVal, err := CoerceInt(dest)
	if err != nil {
		return 0, err
	}
	return newVal, nil
}

// AssignFloat writes f into a Float or Double l-value, narrowing to
// float32 bits if the destination is Float.
func AssignFloat(dest *Cell, f float64) (float64, error) {
	if !dest.IsLValue {
		return 0, fmt.Errorf("value: assignment target is not an l-value")
	}
	switch dest.Type.Base {
	case types.Float:
		binary.LittleEndian.PutUint32(dest.Payload, math.Float32bits(float32(f)))
		return float64(float32(f)), nil
	case types.Double:
		binary.LittleEndian.PutUint64(dest.Payload, math.Float64bits(f))
		return f, nil
	default:
		return 0, fmt.Errorf("value: AssignFloat target %s is not floating point", dest.Type)
	}
}

// AssignToPointer implements the pointer-assignment rule set of spec.md
// §4.4.
func AssignToPointer(reg *types.Registry, dest, src *Cell, allowCoercion bool) error {
	if !dest.IsLValue {
		return fmt.Errorf("value: assignment target is not an l-value")
	}
	if dest.Type.Base != types.Pointer {
		return fmt.Errorf("value: AssignToPointer destination %s is not a pointer", dest.Type)
	}

	switch {
	case src.Type.Base == types.Pointer:
		identical := src.Type == dest.Type
		voidInvolved := dest.Type.From.Base == types.Void || src.Type.From.Base == types.Void
		if identical || voidInvolved || allowCoercion {
			writeRaw(dest, readRaw(src))
			return nil
		}
		return fmt.Errorf("value: cannot assign %s to %s without a cast", src.Type, dest.Type)

	case src.Type.Base == types.Array:
		if src.Type.From != dest.Type.From && dest.Type.From.Base != types.Void {
			return fmt.Errorf("value: cannot assign %s to %s", src.Type, dest.Type)
		}
		// Address of the array's first element: the array's own
		// payload pointer, reinterpreted as a pointer value.
		writeRaw(dest, payloadAddress(src))
		return nil

	case types.IsInteger(src.Type.Base):
		i, err := CoerceInt(src)
		if err != nil {
			return err
		}
		if i != 0 && !allowCoercion {
			return fmt.Errorf("value: only a null (0) integer constant may assign to a pointer")
		}
		writeRaw(dest, uint64(i))
		return nil

	default:
		return fmt.Errorf("value: cannot assign %s to pointer", src.Type)
	}
}

// payloadAddress derives a synthetic address for a cell's payload,
// stable for the lifetime of the arena backing it: the cell's arena
// offset is used as the "address" pointers carry, which keeps pointer
// arithmetic and equality well-defined without resorting to Go's
// (non-portable, GC-relocatable) real addresses.
func payloadAddress(c *Cell) uint64 {
	if c.Addr == NoAddr {
		return 0
	}
	return uint64(c.Addr)
}

// AddressOf returns a cell's arena-relative address, failing if it has
// none (not an l-value backed by the arena) — used by the evaluator's
// unary `&` operator.
func AddressOf(c *Cell) (arena.Ptr, error) {
	if c.Addr == NoAddr {
		return 0, fmt.Errorf("value: cannot take the address of a value with no storage")
	}
	return c.Addr, nil
}

// RawBits returns a cell's payload reinterpreted as a same-width unsigned
// integer, with no signedness or floating-point awareness — used by the
// evaluator for pointer arithmetic and raw bit-pattern casts.
func RawBits(c *Cell) uint64 { return readRaw(c) }

// SetRawBits writes bits into a cell's payload, narrowed to the cell's own
// width.
func SetRawBits(c *Cell, bits uint64) { writeRaw(c, bits) }

// IsNullPointer reports whether a pointer-typed cell currently holds the
// null address.
func IsNullPointer(c *Cell) bool {
	return c.Type.Base == types.Pointer && readRaw(c) == 0
}

// Deref constructs an l-value view of the object a pointer cell points
// at: the pointee's arena storage, reinterpreted as an instance of the
// pointer's From type. Dereferencing a null pointer is a fatal error
// (spec.md §4.5.3).
func Deref(ar *arena.Arena, ptr *Cell) (*Cell, error) {
	if ptr.Type.Base != types.Pointer {
		return nil, fmt.Errorf("value: cannot dereference non-pointer type %s", ptr.Type)
	}
	addr := arena.Ptr(readRaw(ptr))
	if addr == 0 {
		return nil, fmt.Errorf("value: NULL pointer dereference")
	}
	pointee := ptr.Type.From
	size := pointee.Size
	if size == 0 {
		size = 1
	}
	return &Cell{
		Type:      pointee,
		Payload:   ar.Bytes(addr, size),
		IsLValue:  true,
		OnHeap:    ar.IsHeap(addr),
		OnStack:   ar.IsStack(addr),
		AnyOnHeap: ar.IsHeap(addr),
		Addr:      addr,
	}, nil
}

// Assign performs full general assignment, including aggregate copy and
// the unsized-char-array-from-string-literal special case (spec.md §4.4).
func Assign(reg *types.Registry, dest, src *Cell, force bool, allowPointerCoercion bool) error {
	if !dest.IsLValue && !force {
		return fmt.Errorf("value: assignment target is not an l-value")
	}

	switch {
	case dest.Type.Base == types.Pointer:
		return AssignToPointer(reg, dest, src, allowPointerCoercion)

	case types.IsFloating(dest.Type.Base):
		f, err := CoerceFloat(src)
		if err != nil {
			return err
		}
		_, err = AssignFloat(dest, f)
		return err

	case types.IsInteger(dest.Type.Base) || dest.Type.Base == types.Enum:
		var i int64
		var err error
		if types.IsFloating(src.Type.Base) {
			f, ferr := CoerceFloat(src)
			if ferr != nil {
				return ferr
			}
			i = int64(f)
		} else {
			i, err = CoerceInt(src)
			if err != nil {
				return err
			}
		}
		_, err = AssignInt(dest, i, false)
		return err

	case dest.Type.Base == types.Array:
		return assignArray(reg, dest, src)

	case dest.Type.Base == types.Struct || dest.Type.Base == types.Union:
		if src.Type != dest.Type {
			return fmt.Errorf("value: cannot assign %s to %s, types are not identical", src.Type, dest.Type)
		}
		copy(dest.Payload, src.Payload)
		return nil

	default:
		return fmt.Errorf("value: cannot assign to %s", dest.Type)
	}
}

func assignArray(reg *types.Registry, dest, src *Cell) error {
	// Unsized char array initialized from a string literal: resize in
	// place and copy including the trailing NUL.
	if dest.Type.ArraySize == 0 && dest.Type.From.Base == types.Char && src.Type.Base == types.Array && src.Type.From.Base == types.Char {
		n := len(src.Payload)
		reg.ResizeArray(dest.Type, n)
		if cap(dest.Payload) < n {
			return fmt.Errorf("value: unsized array storage too small to hold string literal of length %d", n)
		}
		dest.Payload = dest.Payload[:n]
		copy(dest.Payload, src.Payload)
		if dest.LValueFrom != nil {
			// The owning cell's aliasing window must track the resize.
			dest.LValueFrom.Payload = dest.Payload
		}
		return nil
	}

	if src.Type.Base != types.Array || src.Type.From != dest.Type.From {
		return fmt.Errorf("value: cannot assign %s to %s, element types differ", src.Type, dest.Type)
	}
	if src.Type.ArraySize != dest.Type.ArraySize {
		return fmt.Errorf("value: array size mismatch: %d vs %d", src.Type.ArraySize, dest.Type.ArraySize)
	}
	copy(dest.Payload, src.Payload)
	return nil
}
