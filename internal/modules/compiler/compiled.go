package compiler

import (
	"fmt"

	"github.com/varqo/varqo/internal/modules/objective"
)

// Compiled is a backend-bound objective: every expectation leaf carries an
// executable, the variable order is frozen, and the combinator plan mirrors
// the original DAG. Evaluation is read-only and safe to run concurrently
// with different bindings.
type Compiled struct {
	obj      objective.Objective
	vars     []string
	compiler *Compiler
}

func newCompiled(o objective.Objective, c *Compiler) *Compiled {
	return &Compiled{obj: o, vars: o.Variables(), compiler: c}
}

// Objective returns the bound objective. Combining it with other objectives
// carries the bindings along, which is how hybrid objectives arise.
func (c *Compiled) Objective() objective.Objective {
	return c.obj
}

// Variables returns the frozen deterministic variable order. It never
// changes between compilations of the same objective.
func (c *Compiled) Variables() []string {
	vs := make([]string, len(c.vars))
	copy(vs, c.vars)
	return vs
}

// Backends returns the distinct backend names bound to the leaves. More than
// one name means the objective is hybrid.
func (c *Compiled) Backends() []string {
	return c.obj.Backends()
}

// Evaluate computes the objective at a named variable binding. A samples
// count of zero requests exact values from every leaf.
func (c *Compiled) Evaluate(bindings map[string]float64, samples int) (float64, error) {
	return c.obj.Evaluate(bindings, samples)
}

// EvaluateAt computes the objective from positional values ordered like
// Variables().
func (c *Compiled) EvaluateAt(values []float64, samples int) (float64, error) {
	if len(values) != len(c.vars) {
		return 0, fmt.Errorf("expected %d values for variables %v, got %d", len(c.vars), c.vars, len(values))
	}
	bindings := make(map[string]float64, len(values))
	for i, v := range values {
		bindings[c.vars[i]] = v
	}
	return c.obj.Evaluate(bindings, samples)
}

// String summarizes the bound objective including per-leaf backend tags.
func (c *Compiled) String() string {
	return c.obj.String()
}
