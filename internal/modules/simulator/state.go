// Package simulator provides the built-in execution backends: a dense
// statevector simulator with sampling and stochastic noise trajectories, and
// a full-unitary backend built on gonum complex matrices. Both implement the
// compiler.Backend factory capability.
package simulator

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/hamiltonian"
)

// state is a dense statevector over n qubits, qubit 0 least significant.
type state struct {
	amps    []complex128
	nQubits int
}

func newState(nQubits int) *state {
	if nQubits < 1 {
		nQubits = 1
	}
	amps := make([]complex128, 1<<nQubits)
	amps[0] = 1
	return &state{amps: amps, nQubits: nQubits}
}

// applyGate applies one gate with a resolved rotation angle. Unknown kinds
// are rejected at build time, so this switch is total at run time.
func (s *state) applyGate(g circuit.Gate, theta float64) {
	switch g.Kind {
	case circuit.KindH:
		s.applyH(g.Targets[0])
	case circuit.KindX:
		s.applyX(g.Targets[0])
	case circuit.KindY:
		s.applyY(g.Targets[0])
	case circuit.KindZ:
		s.applyZ(g.Targets[0])
	case circuit.KindS:
		s.applyPhase(g.Targets[0], 1i)
	case circuit.KindRX:
		s.applyRX(g.Targets[0], theta)
	case circuit.KindRY:
		s.applyRY(g.Targets[0], theta)
	case circuit.KindRZ:
		s.applyRZ(g.Targets[0], theta)
	case circuit.KindCNOT:
		s.applyCNOT(g.Controls[0], g.Targets[0])
	case circuit.KindCZ:
		s.applyCZ(g.Controls[0], g.Targets[0])
	case circuit.KindSWAP:
		s.applySWAP(g.Targets[0], g.Targets[1])
	}
}

func (s *state) applyH(q int) {
	f := complex(1/math.Sqrt2, 0)
	bit := 1 << q
	for i := range s.amps {
		if i&bit == 0 {
			j := i | bit
			a, b := s.amps[i], s.amps[j]
			s.amps[i] = f * (a + b)
			s.amps[j] = f * (a - b)
		}
	}
}

func (s *state) applyX(q int) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit == 0 {
			j := i | bit
			s.amps[i], s.amps[j] = s.amps[j], s.amps[i]
		}
	}
}

func (s *state) applyY(q int) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit == 0 {
			j := i | bit
			s.amps[i], s.amps[j] = -1i*s.amps[j], 1i*s.amps[i]
		}
	}
}

func (s *state) applyZ(q int) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit != 0 {
			s.amps[i] = -s.amps[i]
		}
	}
}

func (s *state) applyPhase(q int, factor complex128) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit != 0 {
			s.amps[i] *= factor
		}
	}
}

func (s *state) applyRX(q int, theta float64) {
	bit := 1 << q
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	for i := range s.amps {
		if i&bit == 0 {
			j := i | bit
			a, b := s.amps[i], s.amps[j]
			s.amps[i] = c*a + js*b
			s.amps[j] = js*a + c*b
		}
	}
}

func (s *state) applyRY(q int, theta float64) {
	bit := 1 << q
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)
	for i := range s.amps {
		if i&bit == 0 {
			j := i | bit
			a, b := s.amps[i], s.amps[j]
			s.amps[i] = c*a - sn*b
			s.amps[j] = sn*a + c*b
		}
	}
}

func (s *state) applyRZ(q int, theta float64) {
	bit := 1 << q
	phase := cmplx.Exp(complex(0, theta/2))
	for i := range s.amps {
		if i&bit != 0 {
			s.amps[i] *= phase
		} else {
			s.amps[i] *= cmplx.Conj(phase)
		}
	}
}

func (s *state) applyCNOT(control, target int) {
	cBit, tBit := 1<<control, 1<<target
	for i := range s.amps {
		if i&cBit != 0 && i&tBit == 0 {
			j := i | tBit
			s.amps[i], s.amps[j] = s.amps[j], s.amps[i]
		}
	}
}

func (s *state) applyCZ(control, target int) {
	cBit, tBit := 1<<control, 1<<target
	for i := range s.amps {
		if i&cBit != 0 && i&tBit != 0 {
			s.amps[i] = -s.amps[i]
		}
	}
}

func (s *state) applySWAP(a, b int) {
	aBit, bBit := 1<<a, 1<<b
	for i := range s.amps {
		if i&aBit != 0 && i&bBit == 0 {
			j := (i &^ aBit) | bBit
			s.amps[i], s.amps[j] = s.amps[j], s.amps[i]
		}
	}
}

// prob1 returns the probability of measuring qubit q as 1.
func (s *state) prob1(q int) float64 {
	bit := 1 << q
	p := 0.0
	for i, a := range s.amps {
		if i&bit != 0 {
			p += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	return p
}

// renormalize rescales the amplitudes to unit norm.
func (s *state) renormalize() {
	n := 0.0
	for _, a := range s.amps {
		n += real(a)*real(a) + imag(a)*imag(a)
	}
	if n == 0 {
		return
	}
	f := complex(1/math.Sqrt(n), 0)
	for i := range s.amps {
		s.amps[i] *= f
	}
}

// termExpectation computes ⟨ψ|P|ψ⟩ for one Pauli product without building a
// matrix: X and Y flip basis bits, Y and Z contribute phases.
func (s *state) termExpectation(ops []hamiltonian.Op) complex128 {
	if len(ops) == 0 {
		return 1 // identity term
	}
	xorMask := 0
	for _, op := range ops {
		if op.Axis == 'X' || op.Axis == 'Y' {
			xorMask |= 1 << op.Qubit
		}
	}
	var sum complex128
	for i, a := range s.amps {
		if a == 0 {
			continue
		}
		phase := complex128(1)
		for _, op := range ops {
			bitSet := i&(1<<op.Qubit) != 0
			switch op.Axis {
			case 'Y':
				if bitSet {
					phase *= -1i
				} else {
					phase *= 1i
				}
			case 'Z':
				if bitSet {
					phase = -phase
				}
			}
		}
		sum += cmplx.Conj(s.amps[i^xorMask]) * phase * a
	}
	return sum
}

// expectation computes ⟨ψ|H|ψ⟩ and returns its real part (the measurable
// value; anti-Hermitian contributions are imaginary by construction).
func (s *state) expectation(h hamiltonian.Hamiltonian) float64 {
	var total complex128
	for _, t := range h.Terms() {
		total += t.Coeff * s.termExpectation(t.Ops)
	}
	return real(total)
}

// resolveAngle resolves a gate parameter against a binding; non-rotation
// gates resolve to zero.
func resolveAngle(g circuit.Gate, bindings map[string]float64) (float64, error) {
	if !g.Kind.IsRotation() {
		return 0, nil
	}
	theta, err := g.Param.Value(bindings)
	if err != nil {
		return 0, fmt.Errorf("gate %s: %w", g, err)
	}
	return theta, nil
}
