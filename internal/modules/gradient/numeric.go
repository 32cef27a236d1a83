package gradient

import (
	"errors"
	"fmt"

	"github.com/varqo/varqo/internal/modules/compiler"
)

// ErrUnknownMethod is returned for unrecognized stencil names.
var ErrUnknownMethod = errors.New("unknown differentiation method")

// EvalFunc evaluates an objective at a full variable binding.
type EvalFunc func(bindings map[string]float64) (float64, error)

// StencilFunc is the contract for pluggable finite-difference stencils: it
// receives the evaluation function, the point, the variable to displace and
// the stepsize, and returns the derivative estimate at the point.
type StencilFunc func(f EvalFunc, point map[string]float64, key string, step float64) (float64, error)

// Central is the two-point central stencil (f(a+h/2) - f(a-h/2)) / h.
func Central(f EvalFunc, point map[string]float64, key string, step float64) (float64, error) {
	hi, err := f(displaced(point, key, step/2))
	if err != nil {
		return 0, err
	}
	lo, err := f(displaced(point, key, -step/2))
	if err != nil {
		return 0, err
	}
	return (hi - lo) / step, nil
}

// Forward is the stencil (f(a+h) - f(a)) / h.
func Forward(f EvalFunc, point map[string]float64, key string, step float64) (float64, error) {
	hi, err := f(displaced(point, key, step))
	if err != nil {
		return 0, err
	}
	at, err := f(point)
	if err != nil {
		return 0, err
	}
	return (hi - at) / step, nil
}

// Backward is the stencil (f(a) - f(a-h)) / h.
func Backward(f EvalFunc, point map[string]float64, key string, step float64) (float64, error) {
	at, err := f(point)
	if err != nil {
		return 0, err
	}
	lo, err := f(displaced(point, key, -step))
	if err != nil {
		return 0, err
	}
	return (at - lo) / step, nil
}

// Stencil resolves a built-in stencil by name.
func Stencil(name string) (StencilFunc, error) {
	switch name {
	case "central", "2-point":
		return Central, nil
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// Numeric evaluates the derivative of f with respect to key at the given
// point using the stencil. It produces a value, not a new objective; the
// extra evaluations run sequentially.
func Numeric(f EvalFunc, point map[string]float64, key string, step float64, stencil StencilFunc) (float64, error) {
	if stencil == nil {
		stencil = Central
	}
	return stencil(f, point, key, step)
}

// CompiledEval adapts a compiled objective to an EvalFunc with a fixed
// samples count.
func CompiledEval(c *compiler.Compiled, samples int) EvalFunc {
	return func(bindings map[string]float64) (float64, error) {
		return c.Evaluate(bindings, samples)
	}
}

// displaced copies the binding with one variable moved by delta.
func displaced(point map[string]float64, key string, delta float64) map[string]float64 {
	out := make(map[string]float64, len(point))
	for k, v := range point {
		out[k] = v
	}
	out[key] += delta
	return out
}
