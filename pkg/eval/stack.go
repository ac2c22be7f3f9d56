package eval

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/lexer"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

type order int

const (
	orderNone order = iota
	orderPrefix
	orderInfix
)

// node is one slot of the evaluator's operand/operator stack: either a
// fully-reduced value (order == orderNone) or a pending operator awaiting
// the operand(s) that complete it.
type node struct {
	val *value.Cell

	op       lexer.TokenType
	prec     int
	order    order
	tok      lexer.Token
	castType *types.Descriptor // set only for synthetic cast prefix nodes
}

func (ev *Evaluator) pushValue(v *value.Cell) {
	ev.stack = append(ev.stack, node{order: orderNone, val: v})
}

func (ev *Evaluator) pushPrefix(op lexer.TokenType, logicalPrec, depth int, tok lexer.Token, cast *types.Descriptor) {
	ev.stack = append(ev.stack, node{op: op, prec: logicalPrec + depth*BracketPrecedence, order: orderPrefix, tok: tok, castType: cast})
}

// pushInfix collapses everything the new operator outranks, per its
// associativity, then pushes it to await its right operand.
func (ev *Evaluator) pushInfix(base int, op lexer.TokenType, logicalPrec, depth int, tok lexer.Token) error {
	adjusted := logicalPrec + depth*BracketPrecedence
	thresh := adjusted
	if !isLeftToRight(logicalPrec) {
		thresh = adjusted + 1 // right-to-left: only strictly tighter operators collapse first
	}
	if err := ev.collapse(base, thresh); err != nil {
		return err
	}
	ev.stack = append(ev.stack, node{op: op, prec: adjusted, order: orderInfix, tok: tok})
	return nil
}

// collapse repeatedly reduces the top of the stack (down to base) while a
// pending operator's precedence is at least minPrec, applying prefix,
// infix, and ternary operators as their operands become available
// (spec.md §4.5.2 "collapse the stack").
func (ev *Evaluator) collapse(base, minPrec int) error {
	for {
		n := len(ev.stack)
		have := n - base
		if have <= 0 {
			return nil
		}
		top := ev.stack[n-1]
		if top.order != orderNone {
			return nil // a bare operator still awaiting its operand
		}

		if have >= 5 {
			colon := ev.stack[n-2]
			question := ev.stack[n-4]
			if colon.order == orderInfix && colon.op == lexer.COLON &&
				question.order == orderInfix && question.op == lexer.QUESTION {
				if question.prec < minPrec {
					return nil
				}
				cond := ev.stack[n-5]
				trueVal := ev.stack[n-3]
				falseVal := ev.stack[n-1]
				result, err := ev.resolveTernary(cond.val, trueVal.val, falseVal.val)
				if err != nil {
					return err
				}
				ev.liftSuppressAt(n - 4)
				if len(ev.ternaryConds) > 0 {
					ev.ternaryConds = ev.ternaryConds[:len(ev.ternaryConds)-1]
				}
				ev.stack = ev.stack[:n-5]
				ev.pushValue(result)
				continue
			}
		}

		if have >= 2 {
			opNode := ev.stack[n-2]
			if opNode.order == orderPrefix {
				if opNode.prec < minPrec {
					return nil
				}
				result, err := ev.applyPrefix(opNode, top.val)
				if err != nil {
					return err
				}
				ev.liftSuppressAt(n - 1)
				ev.stack = ev.stack[:n-2]
				ev.pushValue(result)
				continue
			}
		}

		if have >= 3 {
			opNode := ev.stack[n-2]
			if opNode.order == orderInfix && opNode.op != lexer.QUESTION && opNode.op != lexer.COLON && opNode.op != lexer.LBRACKET {
				if opNode.prec < minPrec {
					return nil
				}
				lhs := ev.stack[n-3]
				ev.liftSuppressAt(n - 2)
				result, err := ev.applyInfix(lhs.val, opNode, top.val)
				if err != nil {
					return err
				}
				ev.stack = ev.stack[:n-3]
				ev.pushValue(result)
				continue
			}
		}

		return nil
	}
}

// closeIndex reduces a completed `a[i]` once the matching `]` is seen:
// stack holds [..., a, '[', i]; the result is an l-value view of element
// i (spec.md §4.5.3 "Left is array/pointer and operator is [").
func (ev *Evaluator) closeIndex(base, depth int, tok lexer.Token) error {
	thresh := 15 + (depth+1)*BracketPrecedence
	if err := ev.collapse(base, thresh); err != nil {
		return err
	}
	n := len(ev.stack)
	if n-base < 3 {
		return ev.errf(diag.Syntax, tok, "malformed index expression")
	}
	opNode := ev.stack[n-2]
	if opNode.order != orderInfix || opNode.op != lexer.LBRACKET {
		return ev.errf(diag.Syntax, tok, "unmatched ]")
	}
	arr := ev.stack[n-3].val
	idx := ev.stack[n-1].val
	result, err := ev.indexInto(arr, idx)
	if err != nil {
		return err
	}
	ev.liftSuppressAt(n - 2)
	ev.stack = ev.stack[:n-3]
	ev.pushValue(result)
	return nil
}

func (ev *Evaluator) applyPostfixIncDec(op lexer.TokenType, tok lexer.Token) error {
	n := len(ev.stack)
	if n == 0 || ev.stack[n-1].order != orderNone {
		return ev.errf(diag.Syntax, tok, "%s requires a preceding value", op)
	}
	target := ev.stack[n-1].val
	if ev.suppressed() {
		return nil
	}
	result, err := applyIncDec(target, op == lexer.PLUS_PLUS, true)
	if err != nil {
		return ev.errf(diag.Type, tok, "%s", err)
	}
	ev.stack[n-1].val = result
	return nil
}

// maybeShortCircuit decides, right after `&&`/`||` is pushed, whether the
// right-hand operand should be evaluated for effect only (spec.md §4.5.3).
// The left operand is already the reduced value directly below the new
// operator node.
func (ev *Evaluator) maybeShortCircuit(op lexer.TokenType) error {
	n := len(ev.stack)
	if n < 2 {
		return nil
	}
	lhs := ev.stack[n-2]
	truthy, err := truthValue(lhs.val)
	if err != nil {
		return err
	}
	if (op == lexer.AND_LOGICAL && !truthy) || (op == lexer.OR_LOGICAL && truthy) {
		ev.enterSuppress()
	}
	return nil
}

// enterTernaryBranch is called right after `?` is pushed: the condition
// is the reduced value directly below it.
func (ev *Evaluator) enterTernaryBranch() error {
	n := len(ev.stack)
	if n < 2 {
		return ev.errf(diag.Syntax, ev.Stream.Peek(), "?: missing condition")
	}
	cond := ev.stack[n-2]
	truthy, err := truthValue(cond.val)
	if err != nil {
		return err
	}
	ev.ternaryConds = append(ev.ternaryConds, truthy)
	if !truthy {
		ev.enterSuppress()
	}
	return nil
}

// switchTernaryBranch is called right after `:` is pushed: flips
// suppression from the branch that just finished to the other one.
func (ev *Evaluator) switchTernaryBranch() error {
	if len(ev.ternaryConds) == 0 {
		return ev.errf(diag.Syntax, ev.Stream.Peek(), ": without a matching ?")
	}
	truthy := ev.ternaryConds[len(ev.ternaryConds)-1]
	if !truthy {
		// the true-branch was suppressed; lift it now that it has ended
		n := len(ev.stack)
		ev.liftSuppressAt(n - 1)
	} else {
		ev.enterSuppress()
	}
	return nil
}

func (ev *Evaluator) resolveTernary(cond, trueVal, falseVal *value.Cell) (*value.Cell, error) {
	truthy, err := truthValue(cond)
	if err != nil {
		return nil, err
	}
	if truthy {
		return trueVal, nil
	}
	return falseVal, nil
}
