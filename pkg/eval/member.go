package eval

import (
	"tinyc/pkg/diag"
	"tinyc/pkg/lexer"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// applyMember implements `.` and `->` (spec.md §4.5.5): both have the
// highest precedence and apply eagerly to the value already on top of
// the stack, the same way postfix `++`/`--` and a closing `]` do.
func (ev *Evaluator) applyMember(isArrow bool, nameTok lexer.Token) error {
	n := len(ev.stack)
	if n == 0 || ev.stack[n-1].order != orderNone {
		return ev.errf(diag.Syntax, nameTok, "member access requires a preceding value")
	}
	operand := ev.stack[n-1].val

	if ev.suppressed() {
		ev.stack[n-1].val = ev.zeroCell()
		return nil
	}

	target := operand
	if isArrow {
		deref, err := value.Deref(ev.Arena, operand)
		if err != nil {
			return ev.errf(diag.Memory, nameTok, "%s", err)
		}
		target = deref
	}

	if target.Type.Base != types.Struct && target.Type.Base != types.Union {
		return ev.errf(diag.Type, nameTok, "%s is not a struct or union", target.Type)
	}
	m, ok := target.Type.Member(nameTok.Lexeme)
	if !ok {
		return ev.errf(diag.Name, nameTok, "%s has no member named %q", target.Type, nameTok.Lexeme)
	}
	ev.stack[n-1].val = value.NewView(target, m.Type, m.Offset)
	return nil
}
