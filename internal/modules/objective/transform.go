package objective

import "math"

// Transform is a named scalar function used by the unary-transform
// combinator. Deriv must be the analytic derivative of Eval; the symbolic
// differentiator applies it through the chain rule. Transforms are compared
// by name.
type Transform struct {
	Name  string
	Eval  func(float64) float64
	Deriv func(float64) float64
}

// Built-in transforms.
var (
	Sin  = Transform{Name: "sin", Eval: math.Sin, Deriv: math.Cos}
	Cos  = Transform{Name: "cos", Eval: math.Cos, Deriv: func(x float64) float64 { return -math.Sin(x) }}
	Exp  = Transform{Name: "exp", Eval: math.Exp, Deriv: math.Exp}
	Log  = Transform{Name: "log", Eval: math.Log, Deriv: func(x float64) float64 { return 1 / x }}
	Sqrt = Transform{Name: "sqrt", Eval: math.Sqrt, Deriv: func(x float64) float64 { return 0.5 / math.Sqrt(x) }}
)
