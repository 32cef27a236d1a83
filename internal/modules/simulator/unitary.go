package simulator

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/hamiltonian"
	"github.com/varqo/varqo/internal/modules/noise"
	"github.com/varqo/varqo/internal/modules/objective"
)

// unitaryMaxQubits caps the dense 4^n unitary representation.
const unitaryMaxQubits = 10

// Unitary is a secondary exact backend that materializes the full circuit
// unitary as a gonum complex matrix. It supports neither sampling nor noise
// nor SWAP gates; it exists for cross-checking the statevector backend and
// for small algebra-heavy circuits.
type Unitary struct {
	maxQubits int
	log       zerolog.Logger
}

// NewUnitary creates the unitary backend.
func NewUnitary(log zerolog.Logger) *Unitary {
	return &Unitary{
		maxQubits: unitaryMaxQubits,
		log:       log.With().Str("component", "unitary").Logger(),
	}
}

// Name implements compiler.Backend.
func (u *Unitary) Name() string {
	return "unitary"
}

// MaxQubits returns the qubit capacity of the dense representation.
func (u *Unitary) MaxQubits() int {
	return u.maxQubits
}

// Build implements compiler.Backend. SWAP gates and noise models are
// unsupported and rejected here, at compile time.
func (u *Unitary) Build(c circuit.Circuit, h hamiltonian.Hamiltonian, nm *noise.Model) (objective.Executable, error) {
	if nm.Len() > 0 {
		return nil, fmt.Errorf("%w: the unitary backend does not simulate noise", noise.ErrSpec)
	}
	nQubits := c.NumQubits()
	if hq := h.NumQubits(); hq > nQubits {
		nQubits = hq
	}
	if nQubits > u.maxQubits {
		return nil, fmt.Errorf("circuit needs %d qubits, backend capacity is %d", nQubits, u.maxQubits)
	}
	for _, g := range c.Gates() {
		if g.Kind == circuit.KindSWAP {
			return nil, fmt.Errorf("operation %s is not supported by the unitary backend", g)
		}
	}
	return &unitaryExecutable{circuit: c, ham: h, nQubits: nQubits}, nil
}

// unitaryExecutable is one compiled expectation value on the unitary
// backend. Exact evaluation only.
type unitaryExecutable struct {
	circuit circuit.Circuit
	ham     hamiltonian.Hamiltonian
	nQubits int
}

// Run implements objective.Executable.
func (e *unitaryExecutable) Run(bindings map[string]float64, samples int) (float64, error) {
	if samples > 0 {
		return 0, fmt.Errorf("the unitary backend is exact and does not sample")
	}
	dim := 1 << e.nQubits

	u := identityMatrix(dim)
	for _, g := range e.circuit.Gates() {
		theta, err := resolveAngle(g, bindings)
		if err != nil {
			return 0, err
		}
		gm, err := e.gateMatrix(g, theta)
		if err != nil {
			return 0, err
		}
		next := mat.NewCDense(dim, dim, nil)
		next.Mul(gm, u)
		u = next
	}

	// |ψ⟩ = U|0...0⟩ is the first column of U.
	psi := make([]complex128, dim)
	for i := 0; i < dim; i++ {
		psi[i] = u.At(i, 0)
	}

	var total complex128
	for _, t := range e.ham.Terms() {
		p := e.pauliMatrix(t.Ops)
		var val complex128
		for i := 0; i < dim; i++ {
			var row complex128
			for j := 0; j < dim; j++ {
				row += p.At(i, j) * psi[j]
			}
			val += cmplx.Conj(psi[i]) * row
		}
		total += t.Coeff * val
	}
	return real(total), nil
}

// gateMatrix expands one gate into the full 2^n x 2^n unitary.
func (e *unitaryExecutable) gateMatrix(g circuit.Gate, theta float64) (*mat.CDense, error) {
	switch g.Kind {
	case circuit.KindCNOT, circuit.KindCZ:
		return e.controlledMatrix(g), nil
	}
	var local *mat.CDense
	switch g.Kind {
	case circuit.KindH:
		f := complex(1/math.Sqrt2, 0)
		local = mat.NewCDense(2, 2, []complex128{f, f, f, -f})
	case circuit.KindX:
		local = mat.NewCDense(2, 2, []complex128{0, 1, 1, 0})
	case circuit.KindY:
		local = mat.NewCDense(2, 2, []complex128{0, -1i, 1i, 0})
	case circuit.KindZ:
		local = mat.NewCDense(2, 2, []complex128{1, 0, 0, -1})
	case circuit.KindS:
		local = mat.NewCDense(2, 2, []complex128{1, 0, 0, 1i})
	case circuit.KindRX:
		c := complex(math.Cos(theta/2), 0)
		js := complex(0, -math.Sin(theta/2))
		local = mat.NewCDense(2, 2, []complex128{c, js, js, c})
	case circuit.KindRY:
		c := complex(math.Cos(theta/2), 0)
		sn := complex(math.Sin(theta/2), 0)
		local = mat.NewCDense(2, 2, []complex128{c, -sn, sn, c})
	case circuit.KindRZ:
		p := cmplx.Exp(complex(0, theta/2))
		local = mat.NewCDense(2, 2, []complex128{cmplx.Conj(p), 0, 0, p})
	default:
		return nil, fmt.Errorf("operation %s is not supported by the unitary backend", g)
	}
	return e.expandSingle(local, g.Targets[0]), nil
}

// expandSingle lifts a 2x2 operator on one qubit to the full dimension via
// Kronecker products, qubit 0 least significant.
func (e *unitaryExecutable) expandSingle(op *mat.CDense, target int) *mat.CDense {
	full := mat.NewCDense(1, 1, []complex128{1})
	for q := e.nQubits - 1; q >= 0; q-- {
		if q == target {
			full = kron(full, op)
		} else {
			full = kron(full, identityMatrix(2))
		}
	}
	return full
}

// controlledMatrix builds CNOT/CZ directly as a sparse pattern in the full
// basis: rows where the control bit is clear pass through unchanged.
func (e *unitaryExecutable) controlledMatrix(g circuit.Gate) *mat.CDense {
	dim := 1 << e.nQubits
	cBit := 1 << g.Controls[0]
	tBit := 1 << g.Targets[0]
	m := mat.NewCDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		if i&cBit == 0 {
			m.Set(i, i, 1)
			continue
		}
		switch g.Kind {
		case circuit.KindCNOT:
			m.Set(i^tBit, i, 1)
		case circuit.KindCZ:
			if i&tBit != 0 {
				m.Set(i, i, -1)
			} else {
				m.Set(i, i, 1)
			}
		}
	}
	return m
}

// pauliMatrix expands a Pauli product term to the full dimension.
func (e *unitaryExecutable) pauliMatrix(ops []hamiltonian.Op) *mat.CDense {
	byQubit := make(map[int]hamiltonian.Axis, len(ops))
	for _, op := range ops {
		byQubit[op.Qubit] = op.Axis
	}
	full := mat.NewCDense(1, 1, []complex128{1})
	for q := e.nQubits - 1; q >= 0; q-- {
		var local *mat.CDense
		switch byQubit[q] {
		case 'X':
			local = mat.NewCDense(2, 2, []complex128{0, 1, 1, 0})
		case 'Y':
			local = mat.NewCDense(2, 2, []complex128{0, -1i, 1i, 0})
		case 'Z':
			local = mat.NewCDense(2, 2, []complex128{1, 0, 0, -1})
		default:
			local = identityMatrix(2)
		}
		full = kron(full, local)
	}
	return full
}

func identityMatrix(dim int) *mat.CDense {
	m := mat.NewCDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// kron computes the Kronecker product of two complex dense matrices.
func kron(a, b *mat.CDense) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	out := mat.NewCDense(ar*br, ac*bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			av := a.At(i, j)
			if av == 0 {
				continue
			}
			for k := 0; k < br; k++ {
				for l := 0; l < bc; l++ {
					out.Set(i*br+k, j*bc+l, av*b.At(k, l))
				}
			}
		}
	}
	return out
}
