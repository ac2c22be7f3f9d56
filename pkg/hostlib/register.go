package hostlib

import (
	"tinyc/pkg/eval"
	"tinyc/pkg/types"
)

// defineIntrinsic installs a host trampoline as a callable function name:
// a Function descriptor carrying fn in its Intrinsic slot (spec.md
// §4.5.4's "host intrinsic dispatch"), bound in the global symbol table
// with a nil body cell — dispatchCall never looks at entry.Cell once it
// finds an Intrinsic.
func defineIntrinsic(ev *eval.Evaluator, name string, ret *types.Descriptor, params []types.Param, variadic bool, fn eval.Intrinsic) error {
	fnType := ev.Types.Function(types.Function, name, ret, params, variadic)
	fnType.Intrinsic = fn
	return ev.Symbols.Define(name, nil, fnType, false, -1)
}

// RegisterAll wires every host library group into ev, the set an
// embedding host gets by default from `include_all_system_headers`
// (spec.md §6).
func RegisterAll(ev *eval.Evaluator) error {
	if err := RegisterMath(ev); err != nil {
		return err
	}
	if err := RegisterStdio(ev); err != nil {
		return err
	}
	if err := RegisterGraphics(ev); err != nil {
		return err
	}
	return nil
}
