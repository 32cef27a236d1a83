package gradient

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/compiler"
	"github.com/varqo/varqo/internal/modules/hamiltonian"
	"github.com/varqo/varqo/internal/modules/objective"
	"github.com/varqo/varqo/internal/modules/simulator"
)

func newTestCompiler() *compiler.Compiler {
	sv := simulator.NewStatevector(simulator.StatevectorConfig{MaxQubits: 8, Seed: 3, Log: zerolog.Nop()})
	return compiler.New(compiler.NewRegistry(sv), zerolog.Nop())
}

// ryObjective is ⟨X⟩ after RY(a), whose exact value is sin(a).
func ryObjective(v circuit.Variable) objective.Objective {
	c := circuit.New(circuit.RY(0, circuit.Param(v)))
	return objective.FromExpectation(objective.NewExpectation(c, hamiltonian.X(0)))
}

func evalObjective(t *testing.T, comp *compiler.Compiler, o objective.Objective, bindings map[string]float64) float64 {
	t.Helper()
	compiled, err := comp.Compile(o, "", nil)
	require.NoError(t, err)
	v, err := compiled.Evaluate(bindings, 0)
	require.NoError(t, err)
	return v
}

func TestAnalyticShiftRule(t *testing.T) {
	a := circuit.NewVariable("a")
	comp := newTestCompiler()

	grad, err := Analytic(ryObjective(a), a)
	require.NoError(t, err)

	// d/da sin(a) = cos(a).
	for _, at := range []float64{0, 0.5, 1.0, math.Pi / 2, 2.3} {
		got := evalObjective(t, comp, grad, map[string]float64{"a": at})
		assert.InDelta(t, math.Cos(at), got, 1e-9, "at a=%g", at)
	}
}

func TestAnalyticAffineChainRule(t *testing.T) {
	a := circuit.NewVariable("a")
	comp := newTestCompiler()

	// RY(2a+0.3) gives sin(2a+0.3); the derivative carries the inner scale.
	c := circuit.New(circuit.RY(0, circuit.Affine(a, 2, 0.3)))
	o := objective.FromExpectation(objective.NewExpectation(c, hamiltonian.X(0)))

	grad, err := Analytic(o, a)
	require.NoError(t, err)

	at := 0.4
	got := evalObjective(t, comp, grad, map[string]float64{"a": at})
	assert.InDelta(t, 2*math.Cos(2*at+0.3), got, 1e-9)
}

func TestAnalyticRepeatedVariableSums(t *testing.T) {
	a := circuit.NewVariable("a")
	comp := newTestCompiler()

	// RY(a) RY(a) is RY(2a): the per-gate contributions must sum.
	c := circuit.New(circuit.RY(0, circuit.Param(a)), circuit.RY(0, circuit.Param(a)))
	o := objective.FromExpectation(objective.NewExpectation(c, hamiltonian.X(0)))

	grad, err := Analytic(o, a)
	require.NoError(t, err)

	at := 0.6
	got := evalObjective(t, comp, grad, map[string]float64{"a": at})
	assert.InDelta(t, 2*math.Cos(2*at), got, 1e-9)
}

func TestAnalyticCombinatorRules(t *testing.T) {
	a := circuit.NewVariable("a")
	comp := newTestCompiler()
	e := ryObjective(a) // sin(a)
	at := 0.8
	bindings := map[string]float64{"a": at}

	tests := []struct {
		name string
		obj  objective.Objective
		want float64
	}{
		{
			name: "square",
			obj:  e.PowScalar(2), // d/da sin² = 2 sin cos
			want: 2 * math.Sin(at) * math.Cos(at),
		},
		{
			name: "scaled and shifted",
			obj:  e.MulScalar(3).AddScalar(7),
			want: 3 * math.Cos(at),
		},
		{
			name: "product",
			obj:  e.Mul(e.AddScalar(1)), // d/da (s² + s) = 2 s c + c
			want: 2*math.Sin(at)*math.Cos(at) + math.Cos(at),
		},
		{
			name: "quotient",
			obj:  objective.Constant(1).Div(e.AddScalar(2)), // -c/(s+2)²
			want: -math.Cos(at) / math.Pow(math.Sin(at)+2, 2),
		},
		{
			name: "transform chain",
			obj:  e.Apply(objective.Exp), // e^sin * cos
			want: math.Exp(math.Sin(at)) * math.Cos(at),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grad, err := Analytic(tt.obj, a)
			require.NoError(t, err)
			got := evalObjective(t, comp, grad, bindings)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAnalyticAbsentVariableIsZero(t *testing.T) {
	a := circuit.NewVariable("a")
	other := circuit.NewVariable("missing")
	comp := newTestCompiler()

	grad, err := Analytic(ryObjective(a).PowScalar(2).AddScalar(1), other)
	require.NoError(t, err)

	assert.Equal(t, objective.NodeConst, grad.Kind())
	got := evalObjective(t, comp, grad, nil)
	assert.Equal(t, 0.0, got)
}

func TestAnalyticConstantIsZero(t *testing.T) {
	grad, err := Analytic(objective.Constant(5), circuit.NewVariable("a"))
	require.NoError(t, err)

	assert.Equal(t, objective.NodeConst, grad.Kind())
	assert.Equal(t, 0.0, grad.ConstValue())
}

func TestAnalyticSecondDerivative(t *testing.T) {
	a := circuit.NewVariable("a")
	comp := newTestCompiler()

	first, err := Analytic(ryObjective(a), a)
	require.NoError(t, err)
	second, err := Analytic(first, a)
	require.NoError(t, err)

	// d²/da² sin(a) = -sin(a).
	at := 0.9
	got := evalObjective(t, comp, second, map[string]float64{"a": at})
	assert.InDelta(t, -math.Sin(at), got, 1e-9)
}

func TestNumericStencils(t *testing.T) {
	f := func(bindings map[string]float64) (float64, error) {
		return math.Sin(bindings["a"]), nil
	}
	point := map[string]float64{"a": 0.8}
	want := math.Cos(0.8)

	tests := []struct {
		name    string
		stencil StencilFunc
		step    float64
		tol     float64
	}{
		{"central", Central, 1e-4, 1e-7},
		{"forward", Forward, 1e-6, 1e-5},
		{"backward", Backward, 1e-6, 1e-5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Numeric(f, point, "a", tt.step, tt.stencil)
			require.NoError(t, err)
			assert.InDelta(t, want, got, tt.tol)
			// The point itself must stay untouched.
			assert.Equal(t, 0.8, point["a"])
		})
	}
}

func TestNumericDefaultsToCentral(t *testing.T) {
	f := func(bindings map[string]float64) (float64, error) {
		return bindings["a"] * bindings["a"], nil
	}

	got, err := Numeric(f, map[string]float64{"a": 3}, "a", 1e-4, nil)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, got, 1e-6)
}

func TestStencilNames(t *testing.T) {
	for _, name := range []string{"central", "2-point", "forward", "backward"} {
		s, err := Stencil(name)
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}

	_, err := Stencil("5-point")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestNumericAgreesWithAnalytic(t *testing.T) {
	a := circuit.NewVariable("a")
	comp := newTestCompiler()

	o := ryObjective(a).PowScalar(2).AddScalar(1)
	compiled, err := comp.Compile(o, "", nil)
	require.NoError(t, err)

	grad, err := Analytic(o, a)
	require.NoError(t, err)

	point := map[string]float64{"a": 1.1}
	analytic := evalObjective(t, comp, grad, point)

	numeric, err := Numeric(CompiledEval(compiled, 0), point, "a", 1e-4, Central)
	require.NoError(t, err)

	assert.InDelta(t, analytic, numeric, 1e-3)
}
