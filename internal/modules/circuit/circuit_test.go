package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterValue(t *testing.T) {
	a := NewVariable("a")

	tests := []struct {
		name     string
		param    Parameter
		bindings map[string]float64
		want     float64
		wantErr  bool
	}{
		{
			name:  "constant ignores bindings",
			param: Const(1.5),
			want:  1.5,
		},
		{
			name:     "plain variable",
			param:    Param(a),
			bindings: map[string]float64{"a": 0.7},
			want:     0.7,
		},
		{
			name:     "affine form",
			param:    Affine(a, 2, 0.5),
			bindings: map[string]float64{"a": 1.0},
			want:     2.5,
		},
		{
			name:    "unbound variable",
			param:   Param(a),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.param.Value(tt.bindings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParameterShiftKeepsVariable(t *testing.T) {
	p := Affine(NewVariable("a"), 2, 0.1)
	shifted := p.Shift(math.Pi / 2)

	assert.Equal(t, "a", shifted.VariableName())
	assert.Equal(t, 2.0, shifted.Scale())

	v, err := shifted.Value(map[string]float64{"a": 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 2*0.5+0.1+math.Pi/2, v, 1e-12)

	// The original is untouched.
	v0, err := p.Value(map[string]float64{"a": 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 1.1, v0, 1e-12)
}

func TestCircuitVariablesFirstAppearanceOrder(t *testing.T) {
	a := NewVariable("a")
	b := NewVariable("b")

	c := New(
		RY(0, Param(b)),
		H(1),
		RX(1, Param(a)),
		RZ(0, Param(b)),
		RY(2, Const(0.3)),
	)

	assert.Equal(t, []string{"b", "a"}, c.Variables())
	// Repeated calls return the same order.
	assert.Equal(t, []string{"b", "a"}, c.Variables())
}

func TestCircuitAddDoesNotMutate(t *testing.T) {
	left := New(H(0))
	right := New(CNOT(0, 1))

	combined := left.Add(right)

	assert.Equal(t, 1, left.Len())
	assert.Equal(t, 1, right.Len())
	assert.Equal(t, 2, combined.Len())
	assert.Equal(t, 2, combined.NumQubits())
}

func TestCircuitHashStructural(t *testing.T) {
	a := NewVariable("a")

	c1 := New(H(0), RY(1, Param(a)))
	c2 := New(H(0), RY(1, Param(a)))
	c3 := New(H(0), RY(1, Affine(a, 1, 0.1)))
	c4 := New(RY(1, Param(a)), H(0))

	assert.Equal(t, c1.Hash(), c2.Hash())
	assert.True(t, c1.Equal(c2))
	assert.NotEqual(t, c1.Hash(), c3.Hash())
	assert.NotEqual(t, c1.Hash(), c4.Hash())
	assert.False(t, c1.Equal(c4))
}

func TestCircuitHashDistinguishesTargetsFromControls(t *testing.T) {
	cnot := New(CNOT(0, 1))
	flipped := New(CNOT(1, 0))

	assert.NotEqual(t, cnot.Hash(), flipped.Hash())
}

func TestReplaceGateCopies(t *testing.T) {
	a := NewVariable("a")
	c := New(RY(0, Param(a)), H(1))

	replaced := c.ReplaceGate(0, RY(0, Param(a).Shift(math.Pi/2)))

	assert.NotEqual(t, c.Hash(), replaced.Hash())
	assert.Equal(t, Param(a), c.Gates()[0].Param)
}

func TestGateIsParametrized(t *testing.T) {
	a := NewVariable("a")

	assert.True(t, RY(0, Param(a)).IsParametrized())
	assert.False(t, RY(0, Const(0.5)).IsParametrized())
	assert.False(t, H(0).IsParametrized())
}
