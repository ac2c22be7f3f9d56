package eval

import (
	"fmt"
	"math"

	"tinyc/pkg/diag"
	"tinyc/pkg/lexer"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// truthValue reduces any scalar cell to a C truth value (spec.md §4.5.3:
// "nonzero is true"), used by `!`, `&&`, `||`, `?:`, and the statement
// driver's conditionals.
// Truthy is truthValue exported for package stmt's control-flow
// conditions (if/while/for/do/switch all reduce a condition cell to bool
// the same way an expression's `&&`/`||`/`?:` operands do).
func Truthy(c *value.Cell) (bool, error) { return truthValue(c) }

func truthValue(c *value.Cell) (bool, error) {
	switch {
	case c.Type.Base == types.Pointer:
		return !value.IsNullPointer(c), nil
	case types.IsFloating(c.Type.Base):
		f, err := value.CoerceFloat(c)
		return f != 0, err
	default:
		i, err := value.CoerceInt(c)
		return i != 0, err
	}
}

// commonNumeric applies the usual arithmetic conversions (spec.md §4.3)
// to a pair of numeric operand types, returning the type both operands
// should be widened to before the operator is applied.
func commonNumeric(reg *types.Registry, a, b *types.Descriptor) *types.Descriptor {
	if a.Base == types.Double || b.Base == types.Double {
		return reg.BaseType(types.Double)
	}
	if a.Base == types.Float || b.Base == types.Float {
		return reg.BaseType(types.Float)
	}
	// integer promotion: anything narrower than int promotes to int first
	pa, pb := promote(reg, a), promote(reg, b)
	if pa.Base == pb.Base {
		return pa
	}
	ra, rb := types.IntRank(pa.Base), types.IntRank(pb.Base)
	ua, ub := types.IsUnsigned(pa.Base), types.IsUnsigned(pb.Base)
	switch {
	case ua == ub:
		if ra >= rb {
			return pa
		}
		return pb
	case ua && ra >= rb:
		return pa
	case ub && rb >= ra:
		return pb
	case !ua && ra > rb:
		return pa
	case !ub && rb > ra:
		return pb
	default:
		if ua {
			return pa
		}
		return pb
	}
}

// promote implements integer promotion: char and short (signed or
// unsigned) become int; everything else is unchanged (spec.md §4.3). The
// registry's canonical Int descriptor is reused rather than allocating a
// new one, so pointer-identity comparisons elsewhere keep working.
func promote(reg *types.Registry, d *types.Descriptor) *types.Descriptor {
	switch d.Base {
	case types.Char, types.UnsignedChar, types.Short, types.UnsignedShort:
		return reg.BaseType(types.Int)
	default:
		return d
	}
}

func (ev *Evaluator) applyPrefix(opNode node, operand *value.Cell) (*value.Cell, error) {
	if ev.suppressed() && opNode.op != opCast {
		return ev.zeroCell(), nil
	}
	switch opNode.op {
	case opCast:
		return castTo(ev.Types, opNode.castType, operand)
	case lexer.PLUS:
		return operand, nil
	case lexer.MINUS:
		return negate(ev.Types, operand)
	case lexer.NOT:
		t, err := truthValue(operand)
		if err != nil {
			return nil, err
		}
		return intCell(ev.Types, boolToInt(!t)), nil
	case lexer.TILDE:
		i, err := value.CoerceInt(operand)
		if err != nil {
			return nil, err
		}
		return intCell(ev.Types, ^i), nil
	case lexer.STAR:
		return value.Deref(ev.Arena, operand)
	case lexer.AMP:
		addr, err := value.AddressOf(operand)
		if err != nil {
			return nil, err
		}
		ptrType := ev.Types.Pointer(operand.Type)
		cell := value.NewImmediate(ptrType, make([]byte, ptrType.Size))
		value.SetRawBits(cell, uint64(addr))
		return cell, nil
	case lexer.PLUS_PLUS, lexer.MINUS_MINUS:
		return applyIncDec(operand, opNode.op == lexer.PLUS_PLUS, false)
	case lexer.SIZEOF:
		return sizeCell(ev.Types, operand.Type), nil
	default:
		return nil, fmt.Errorf("eval: unsupported prefix operator %s", opNode.op)
	}
}

func negate(reg *types.Registry, c *value.Cell) (*value.Cell, error) {
	if types.IsFloating(c.Type.Base) {
		f, err := value.CoerceFloat(c)
		if err != nil {
			return nil, err
		}
		return floatCell(promoteFloatType(reg, c.Type), -f), nil
	}
	i, err := value.CoerceInt(c)
	if err != nil {
		return nil, err
	}
	return intCell(reg, -i), nil
}

func promoteFloatType(reg *types.Registry, t *types.Descriptor) *types.Descriptor {
	if t.Base == types.Float {
		return t
	}
	return reg.BaseType(types.Double)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intCell(reg *types.Registry, v int64) *value.Cell {
	c := value.NewImmediate(reg.BaseType(types.Int), make([]byte, 4))
	_, _ = value.AssignInt(setLValue(c), v, false)
	return c
}

func floatCell(t *types.Descriptor, v float64) *value.Cell {
	c := value.NewImmediate(t, make([]byte, t.Size))
	_, _ = value.AssignFloat(setLValue(c), v)
	return c
}

func sizeCell(reg *types.Registry, t *types.Descriptor) *value.Cell {
	c := value.NewImmediate(reg.BaseType(types.UnsignedLong), make([]byte, 8))
	value.SetRawBits(c, uint64(t.Size))
	return c
}

// setLValue marks a synthetic immediate as writable just long enough for
// the Assign* helpers (which require IsLValue) to populate it; the cell
// stays otherwise ordinary (no real storage, no address).
func setLValue(c *value.Cell) *value.Cell {
	c.IsLValue = true
	return c
}

func applyIncDec(target *value.Cell, increment, post bool) (*value.Cell, error) {
	if !target.IsLValue {
		return nil, fmt.Errorf("%s requires an l-value", incDecName(increment))
	}
	delta := int64(1)
	if !increment {
		delta = -1
	}
	if target.Type.Base == types.Pointer {
		step := target.Type.From.Size
		if step == 0 {
			step = 1
		}
		cur := value.RawBits(target)
		next := cur + uint64(delta*int64(step))
		prevCell := pointerSnapshot(target, cur)
		value.SetRawBits(target, next)
		if post {
			return prevCell, nil
		}
		return pointerSnapshot(target, next), nil
	}
	if types.IsFloating(target.Type.Base) {
		f, err := value.CoerceFloat(target)
		if err != nil {
			return nil, err
		}
		prev := f
		newVal, err := value.AssignFloat(target, f+float64(delta))
		if err != nil {
			return nil, err
		}
		if post {
			return floatCell(target.Type, prev), nil
		}
		return floatCell(target.Type, newVal), nil
	}
	newVal, err := value.AssignInt(target, mustCoerceInt(target)+delta, post)
	if err != nil {
		return nil, err
	}
	result := value.NewImmediate(target.Type, make([]byte, len(target.Payload)))
	value.SetRawBits(result, uint64(newVal))
	return result, nil
}

func incDecName(increment bool) string {
	if increment {
		return "++"
	}
	return "--"
}

func mustCoerceInt(c *value.Cell) int64 {
	i, _ := value.CoerceInt(c)
	return i
}

func pointerSnapshot(ptrType *value.Cell, bits uint64) *value.Cell {
	c := value.NewImmediate(ptrType.Type, make([]byte, len(ptrType.Payload)))
	value.SetRawBits(c, bits)
	return c
}

func (ev *Evaluator) applyInfix(lhs *value.Cell, opNode node, rhs *value.Cell) (*value.Cell, error) {
	if isAssignOp(opNode.op) {
		return ev.applyAssign(lhs, opNode, rhs)
	}
	if ev.suppressed() {
		return ev.zeroCell(), nil
	}
	switch opNode.op {
	case lexer.PLUS:
		return addOp(ev.Types, lhs, rhs, opNode.tok)
	case lexer.MINUS:
		return subOp(ev.Types, lhs, rhs, opNode.tok)
	case lexer.STAR, lexer.SLASH, lexer.PERCENT:
		return arithOp(ev.Types, opNode.op, lhs, rhs)
	case lexer.AMP, lexer.PIPE, lexer.CARET:
		return bitwiseOp(ev.Types, opNode.op, lhs, rhs)
	case lexer.SHL, lexer.SHR:
		return shiftOp(ev.Types, opNode.op, lhs, rhs)
	case lexer.EQUALS, lexer.NOT_EQ, lexer.LESS, lexer.GREATER, lexer.LESS_EQ, lexer.GREATER_EQ:
		return compareOp(ev.Types, opNode.op, lhs, rhs)
	case lexer.AND_LOGICAL:
		lt, err := truthValue(lhs)
		if err != nil {
			return nil, err
		}
		rt, err := truthValue(rhs)
		if err != nil {
			return nil, err
		}
		return intCell(ev.Types, boolToInt(lt && rt)), nil
	case lexer.OR_LOGICAL:
		lt, err := truthValue(lhs)
		if err != nil {
			return nil, err
		}
		rt, err := truthValue(rhs)
		if err != nil {
			return nil, err
		}
		return intCell(ev.Types, boolToInt(lt || rt)), nil
	default:
		return nil, fmt.Errorf("eval: unsupported infix operator %s", opNode.op)
	}
}

func isAssignOp(op lexer.TokenType) bool {
	switch op {
	case lexer.ASSIGN, lexer.PLUS_ASSIGN, lexer.MINUS_ASSIGN, lexer.STAR_ASSIGN, lexer.SLASH_ASSIGN,
		lexer.PERCENT_ASSIGN, lexer.SHL_ASSIGN, lexer.SHR_ASSIGN, lexer.AMP_ASSIGN, lexer.PIPE_ASSIGN, lexer.CARET_ASSIGN:
		return true
	default:
		return false
	}
}

func (ev *Evaluator) applyAssign(lhs *value.Cell, opNode node, rhs *value.Cell) (*value.Cell, error) {
	if ev.suppressed() {
		return ev.zeroCell(), nil
	}
	if !lhs.IsLValue {
		return nil, ev.errf(diag.Type, opNode.tok, "assignment target is not an l-value")
	}
	src := rhs
	if opNode.op != lexer.ASSIGN {
		binOp := compoundBinOp(opNode.op)
		combined, err := ev.applyInfix(lhs, node{op: binOp, tok: opNode.tok}, rhs)
		if err != nil {
			return nil, err
		}
		src = combined
	}
	if err := value.Assign(ev.Types, lhs, src, false, false); err != nil {
		return nil, ev.errf(diag.Type, opNode.tok, "%s", err)
	}
	return lhs, nil
}

func compoundBinOp(op lexer.TokenType) lexer.TokenType {
	switch op {
	case lexer.PLUS_ASSIGN:
		return lexer.PLUS
	case lexer.MINUS_ASSIGN:
		return lexer.MINUS
	case lexer.STAR_ASSIGN:
		return lexer.STAR
	case lexer.SLASH_ASSIGN:
		return lexer.SLASH
	case lexer.PERCENT_ASSIGN:
		return lexer.PERCENT
	case lexer.SHL_ASSIGN:
		return lexer.SHL
	case lexer.SHR_ASSIGN:
		return lexer.SHR
	case lexer.AMP_ASSIGN:
		return lexer.AMP
	case lexer.PIPE_ASSIGN:
		return lexer.PIPE
	case lexer.CARET_ASSIGN:
		return lexer.CARET
	default:
		return op
	}
}

// addOp and subOp special-case pointer arithmetic (spec.md §4.3 "pointer
// arithmetic scales by the pointee's size") before falling back to the
// usual arithmetic conversions.
func addOp(reg *types.Registry, lhs, rhs *value.Cell, tok lexer.Token) (*value.Cell, error) {
	if lhs.Type.Base == types.Pointer && types.IsInteger(rhs.Type.Base) {
		return pointerStep(reg, lhs, rhs, 1)
	}
	if rhs.Type.Base == types.Pointer && types.IsInteger(lhs.Type.Base) {
		return pointerStep(reg, rhs, lhs, 1)
	}
	return arithOp(reg, lexer.PLUS, lhs, rhs)
}

func subOp(reg *types.Registry, lhs, rhs *value.Cell, tok lexer.Token) (*value.Cell, error) {
	if lhs.Type.Base == types.Pointer && types.IsInteger(rhs.Type.Base) {
		return pointerStep(reg, lhs, rhs, -1)
	}
	if lhs.Type.Base == types.Pointer && rhs.Type.Base == types.Pointer {
		if lhs.Type.From != rhs.Type.From {
			return nil, fmt.Errorf("eval: cannot subtract pointers to different types")
		}
		step := int64(lhs.Type.From.Size)
		if step == 0 {
			step = 1
		}
		diff := (int64(value.RawBits(lhs)) - int64(value.RawBits(rhs))) / step
		return intCell(reg, diff), nil
	}
	return arithOp(reg, lexer.MINUS, lhs, rhs)
}

func pointerStep(reg *types.Registry, ptr, count *value.Cell, sign int64) (*value.Cell, error) {
	n, err := value.CoerceInt(count)
	if err != nil {
		return nil, err
	}
	step := ptr.Type.From.Size
	if step == 0 {
		step = 1
	}
	base := value.RawBits(ptr)
	next := int64(base) + sign*n*int64(step)
	cell := value.NewImmediate(ptr.Type, make([]byte, ptr.Type.Size))
	value.SetRawBits(cell, uint64(next))
	return cell, nil
}

func arithOp(reg *types.Registry, op lexer.TokenType, lhs, rhs *value.Cell) (*value.Cell, error) {
	common := commonNumeric(reg, lhs.Type, rhs.Type)
	if types.IsFloating(common.Base) {
		a, err := value.CoerceFloat(lhs)
		if err != nil {
			return nil, err
		}
		b, err := value.CoerceFloat(rhs)
		if err != nil {
			return nil, err
		}
		var r float64
		switch op {
		case lexer.PLUS:
			r = a + b
		case lexer.MINUS:
			r = a - b
		case lexer.STAR:
			r = a * b
		case lexer.SLASH:
			r = a / b
		case lexer.PERCENT:
			r = math.Mod(a, b)
		}
		return floatCell(common, r), nil
	}

	if types.IsUnsigned(common.Base) {
		a, err := value.CoerceUnsigned(lhs)
		if err != nil {
			return nil, err
		}
		b, err := value.CoerceUnsigned(rhs)
		if err != nil {
			return nil, err
		}
		var r uint64
		switch op {
		case lexer.PLUS:
			r = a + b
		case lexer.MINUS:
			r = a - b
		case lexer.STAR:
			r = a * b
		case lexer.SLASH:
			if b == 0 {
				return nil, fmt.Errorf("eval: division by zero")
			}
			r = a / b
		case lexer.PERCENT:
			if b == 0 {
				return nil, fmt.Errorf("eval: division by zero")
			}
			r = a % b
		}
		cell := value.NewImmediate(common, make([]byte, common.Size))
		value.SetRawBits(setLValue(cell), r)
		cell.IsLValue = false
		return cell, nil
	}

	a, err := value.CoerceInt(lhs)
	if err != nil {
		return nil, err
	}
	b, err := value.CoerceInt(rhs)
	if err != nil {
		return nil, err
	}
	var r int64
	switch op {
	case lexer.PLUS:
		r = a + b
	case lexer.MINUS:
		r = a - b
	case lexer.STAR:
		r = a * b
	case lexer.SLASH:
		if b == 0 {
			return nil, fmt.Errorf("eval: division by zero")
		}
		r = a / b
	case lexer.PERCENT:
		if b == 0 {
			return nil, fmt.Errorf("eval: division by zero")
		}
		r = a % b
	}
	return typedIntCell(common, r), nil
}

func typedIntCell(t *types.Descriptor, v int64) *value.Cell {
	c := value.NewImmediate(t, make([]byte, t.Size))
	c.IsLValue = true
	value.AssignInt(c, v, false)
	c.IsLValue = false
	return c
}

func bitwiseOp(reg *types.Registry, op lexer.TokenType, lhs, rhs *value.Cell) (*value.Cell, error) {
	a, err := value.CoerceInt(lhs)
	if err != nil {
		return nil, err
	}
	b, err := value.CoerceInt(rhs)
	if err != nil {
		return nil, err
	}
	common := commonNumeric(reg, lhs.Type, rhs.Type)
	var r int64
	switch op {
	case lexer.AMP:
		r = a & b
	case lexer.PIPE:
		r = a | b
	case lexer.CARET:
		r = a ^ b
	}
	return typedIntCell(common, r), nil
}

func shiftOp(reg *types.Registry, op lexer.TokenType, lhs, rhs *value.Cell) (*value.Cell, error) {
	a, err := value.CoerceInt(lhs)
	if err != nil {
		return nil, err
	}
	b, err := value.CoerceInt(rhs)
	if err != nil {
		return nil, err
	}
	promoted := promote(reg, lhs.Type)
	var r int64
	if op == lexer.SHL {
		r = a << uint(b)
	} else if types.IsUnsigned(promoted.Base) {
		r = int64(uint64(a) >> uint(b))
	} else {
		r = a >> uint(b)
	}
	return typedIntCell(promoted, r), nil
}

func compareOp(reg *types.Registry, op lexer.TokenType, lhs, rhs *value.Cell) (*value.Cell, error) {
	var cmp int
	switch {
	case lhs.Type.Base == types.Pointer || rhs.Type.Base == types.Pointer:
		a, b := value.RawBits(lhs), value.RawBits(rhs)
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	case types.IsFloating(lhs.Type.Base) || types.IsFloating(rhs.Type.Base):
		a, err := value.CoerceFloat(lhs)
		if err != nil {
			return nil, err
		}
		b, err := value.CoerceFloat(rhs)
		if err != nil {
			return nil, err
		}
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	default:
		common := commonNumeric(reg, lhs.Type, rhs.Type)
		if types.IsUnsigned(common.Base) {
			a, err := value.CoerceUnsigned(lhs)
			if err != nil {
				return nil, err
			}
			b, err := value.CoerceUnsigned(rhs)
			if err != nil {
				return nil, err
			}
			switch {
			case a < b:
				cmp = -1
			case a > b:
				cmp = 1
			}
		} else {
			a, err := value.CoerceInt(lhs)
			if err != nil {
				return nil, err
			}
			b, err := value.CoerceInt(rhs)
			if err != nil {
				return nil, err
			}
			switch {
			case a < b:
				cmp = -1
			case a > b:
				cmp = 1
			}
		}
	}
	var result bool
	switch op {
	case lexer.EQUALS:
		result = cmp == 0
	case lexer.NOT_EQ:
		result = cmp != 0
	case lexer.LESS:
		result = cmp < 0
	case lexer.GREATER:
		result = cmp > 0
	case lexer.LESS_EQ:
		result = cmp <= 0
	case lexer.GREATER_EQ:
		result = cmp >= 0
	}
	return intCell(reg, boolToInt(result)), nil
}

// castTo implements the explicit-cast coercion rules (spec.md §4.5.3
// "Cast expressions").
func castTo(reg *types.Registry, target *types.Descriptor, src *value.Cell) (*value.Cell, error) {
	cell := value.NewImmediate(target, make([]byte, max(target.Size, 1)))
	cell.IsLValue = true
	defer func() { cell.IsLValue = false }()

	switch {
	case target.Base == types.Pointer:
		return cell, value.AssignToPointer(reg, cell, src, true)
	case types.IsFloating(target.Base):
		f, err := value.CoerceFloat(src)
		if err != nil {
			return nil, err
		}
		_, err = value.AssignFloat(cell, f)
		return cell, err
	case types.IsInteger(target.Base):
		i, err := value.CoerceInt(src)
		if err != nil {
			return nil, err
		}
		_, err = value.AssignInt(cell, i, false)
		return cell, err
	default:
		return nil, fmt.Errorf("eval: cannot cast to %s", target)
	}
}

// indexInto implements `a[i]` for both array and pointer left operands
// (spec.md §4.5.3): arrays yield a view, pointers dereference a stepped
// address.
func (ev *Evaluator) indexInto(arr, idx *value.Cell) (*value.Cell, error) {
	if ev.suppressed() {
		return ev.zeroCell(), nil
	}
	i, err := value.CoerceInt(idx)
	if err != nil {
		return nil, err
	}
	switch arr.Type.Base {
	case types.Array:
		elem := arr.Type.From
		offset := int(i) * elem.Size
		if offset < 0 || offset+elem.Size > len(arr.Payload) {
			return nil, fmt.Errorf("eval: array index %d out of bounds", i)
		}
		return value.NewView(arr, elem, offset), nil
	case types.Pointer:
		stepped, err := pointerStep(ev.Types, arr, intCell(ev.Types, i), 1)
		if err != nil {
			return nil, err
		}
		return value.Deref(ev.Arena, stepped)
	default:
		return nil, fmt.Errorf("eval: cannot index into %s", arr.Type)
	}
}
