// Package hostlib is the interpreter's standard library: host intrinsics
// bound to Function descriptors (spec.md §4.5.4 "host intrinsic
// dispatch"), grounded on the libraries the teacher and the rest of the
// retrieved pack import rather than hand-rolled equivalents. math.go
// mirrors picoc's cstdlib/math.c, but every computation is Go's own
// math package instead of a reimplementation.
package hostlib

import (
	"math"

	"tinyc/pkg/eval"
	"tinyc/pkg/types"
	"tinyc/pkg/value"
)

// unaryFloat adapts a float64->float64 Go math function to the Intrinsic
// signature, for the large family of one-argument math.h entries.
func unaryFloat(fn func(float64) float64) eval.Intrinsic {
	return func(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
		x, err := value.CoerceFloat(args[0])
		if err != nil {
			return err
		}
		_, err = value.AssignFloat(ret, fn(x))
		return err
	}
}

func binaryFloat(fn func(float64, float64) float64) eval.Intrinsic {
	return func(ev *eval.Evaluator, ret *value.Cell, args []*value.Cell) error {
		x, err := value.CoerceFloat(args[0])
		if err != nil {
			return err
		}
		y, err := value.CoerceFloat(args[1])
		if err != nil {
			return err
		}
		_, err = value.AssignFloat(ret, fn(x, y))
		return err
	}
}

// RegisterMath defines the math.h-equivalent intrinsics (spec.md §3
// "SUPPLEMENTED FEATURES", picoc's PlatformLibraryInit for MathFunctions).
// Every entry takes and returns double.
func RegisterMath(ev *eval.Evaluator) error {
	d := ev.Types.BaseType(types.Double)
	unary := map[string]func(float64) float64{
		"sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
		"asin": math.Asin, "acos": math.Acos, "atan": math.Atan,
		"sinh": math.Sinh, "cosh": math.Cosh, "tanh": math.Tanh,
		"exp": math.Exp, "log": math.Log, "log10": math.Log10,
		"sqrt": math.Sqrt, "fabs": math.Abs,
		"floor": math.Floor, "ceil": math.Ceil, "round": math.Round,
	}
	for name, fn := range unary {
		if err := defineIntrinsic(ev, name, d, []types.Param{{Name: "x", Type: d}}, false, unaryFloat(fn)); err != nil {
			return err
		}
	}

	binary := map[string]func(float64, float64) float64{
		"pow": math.Pow, "atan2": math.Atan2, "fmod": math.Mod,
	}
	for name, fn := range binary {
		params := []types.Param{{Name: "x", Type: d}, {Name: "y", Type: d}}
		if err := defineIntrinsic(ev, name, d, params, false, binaryFloat(fn)); err != nil {
			return err
		}
	}
	return nil
}
