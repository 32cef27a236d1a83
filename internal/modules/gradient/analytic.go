// Package gradient produces derivatives of objectives. The analytic mode
// applies the parameter-shift rule at expectation leaves and the symbolic
// sum/product/quotient/power/chain rules across combinators, yielding a new
// objective that is itself compilable and further differentiable. The
// numeric mode evaluates finite-difference stencils against an existing
// compiled callable instead.
package gradient

import (
	"errors"
	"fmt"
	"math"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/objective"
)

// ErrNoShiftRule is returned when a gate parametrized by the differentiation
// variable lies outside the rotation family the shift rule covers.
var ErrNoShiftRule = errors.New("no parameter-shift rule for gate")

// shift is the parameter displacement of the two-point shift rule. It is
// exact for generators with eigenvalues ±1/2, i.e. the RX/RY/RZ family.
const shift = math.Pi / 2

// Analytic returns a new objective representing ∂o/∂v. Constants
// differentiate to zero and sub-DAGs not containing v are pruned; asking for
// a variable absent from the whole objective yields the zero constant, not
// an error. Compile bindings on the input's leaves do not carry over: the
// derivative is a fresh abstract objective.
func Analytic(o objective.Objective, v circuit.Variable) (objective.Objective, error) {
	memo := make(map[objective.Objective]objective.Objective)
	return derive(o, v.Name, memo)
}

func derive(o objective.Objective, name string, memo map[objective.Objective]objective.Objective) (objective.Objective, error) {
	if d, ok := memo[o]; ok {
		return d, nil
	}
	d, err := deriveNode(o, name, memo)
	if err != nil {
		return objective.Objective{}, err
	}
	memo[o] = d
	return d, nil
}

func deriveNode(o objective.Objective, name string, memo map[objective.Objective]objective.Objective) (objective.Objective, error) {
	switch o.Kind() {
	case objective.NodeConst:
		return zero(), nil

	case objective.NodeExpectation:
		l, _ := o.LeafInfo()
		return shiftRule(l, name)

	case objective.NodeTransform:
		t, _ := o.TransformInfo()
		if t.Deriv == nil {
			return objective.Objective{}, fmt.Errorf("transform %q has no derivative", t.Name)
		}
		inner := o.Operands()[0]
		di, err := derive(inner, name, memo)
		if err != nil {
			return objective.Objective{}, err
		}
		if isZero(di) {
			return zero(), nil
		}
		outer := objective.Transform{Name: t.Name + "'", Eval: t.Deriv}
		return inner.Apply(outer).Mul(di), nil
	}

	ops := o.Operands()
	a, b := ops[0], ops[1]
	da, err := derive(a, name, memo)
	if err != nil {
		return objective.Objective{}, err
	}
	db, err := derive(b, name, memo)
	if err != nil {
		return objective.Objective{}, err
	}

	switch o.Kind() {
	case objective.NodeAdd:
		return add(da, db), nil
	case objective.NodeSub:
		return sub(da, db), nil
	case objective.NodeMul:
		return add(mul(da, b), mul(a, db)), nil
	case objective.NodeDiv:
		// (a/b)' = a'/b - a b'/b^2
		return sub(div(da, b), div(mul(a, db), b.Mul(b))), nil
	case objective.NodePow:
		if b.Kind() == objective.NodeConst {
			// Constant exponent: (a^c)' = c a^(c-1) a'
			if isZero(da) {
				return zero(), nil
			}
			c := b.ConstValue()
			return a.PowScalar(c - 1).MulScalar(c).Mul(da), nil
		}
		// General exponent: (a^b)' = a^b (b' ln a + b a'/a)
		inner := add(mul(db, a.Apply(objective.Log)), div(mul(b, da), a))
		if isZero(inner) {
			return zero(), nil
		}
		return o.Mul(inner), nil
	}
	return objective.Objective{}, fmt.Errorf("cannot differentiate node kind %d", o.Kind())
}

// shiftRule builds the parameter-shift derivative of one expectation leaf:
// for every gate whose parameter scale*v+offset references v, two siblings
// with the offset shifted by ±π/2 are combined as scale/2 * (E+ − E−), and
// the per-gate contributions sum (product rule over occurrences).
func shiftRule(l objective.Leaf, name string) (objective.Objective, error) {
	c := l.E.Circuit()
	h := l.E.Hamiltonian()

	result := zero()
	for idx, g := range c.Gates() {
		if g.Param.VariableName() != name {
			continue
		}
		if !g.Kind.IsRotation() {
			return objective.Objective{}, fmt.Errorf("%w: %s depends on %q", ErrNoShiftRule, g, name)
		}
		plus := g
		plus.Param = g.Param.Shift(+shift)
		minus := g
		minus.Param = g.Param.Shift(-shift)

		ePlus := objective.FromExpectation(objective.NewExpectation(c.ReplaceGate(idx, plus), h))
		eMinus := objective.FromExpectation(objective.NewExpectation(c.ReplaceGate(idx, minus), h))
		term := ePlus.Sub(eMinus).MulScalar(0.5 * g.Param.Scale())
		result = add(result, term)
	}
	return result, nil
}

// Zero-pruning constructors keep derivative DAGs free of dead branches.

func zero() objective.Objective {
	return objective.Constant(0)
}

func isZero(o objective.Objective) bool {
	return o.Kind() == objective.NodeConst && o.ConstValue() == 0
}

func add(a, b objective.Objective) objective.Objective {
	if isZero(a) {
		return b
	}
	if isZero(b) {
		return a
	}
	return a.Add(b)
}

func sub(a, b objective.Objective) objective.Objective {
	if isZero(b) {
		return a
	}
	if isZero(a) {
		return b.Neg()
	}
	return a.Sub(b)
}

func mul(a, b objective.Objective) objective.Objective {
	if isZero(a) || isZero(b) {
		return zero()
	}
	return a.Mul(b)
}

func div(a, b objective.Objective) objective.Objective {
	if isZero(a) {
		return zero()
	}
	return a.Div(b)
}
