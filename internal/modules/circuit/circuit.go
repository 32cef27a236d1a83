package circuit

import (
	"hash/fnv"
	"strings"
)

// Circuit is an immutable ordered gate sequence. Concatenation returns a new
// circuit and never mutates its operands; equality is structural over the
// gate sequence and parameters, never pointer identity.
type Circuit struct {
	gates []Gate
}

// New creates a circuit from the given gates. The slice is copied.
func New(gates ...Gate) Circuit {
	gs := make([]Gate, len(gates))
	copy(gs, gates)
	return Circuit{gates: gs}
}

// Add concatenates two circuits into a new one.
func (c Circuit) Add(other Circuit) Circuit {
	gs := make([]Gate, 0, len(c.gates)+len(other.gates))
	gs = append(gs, c.gates...)
	gs = append(gs, other.gates...)
	return Circuit{gates: gs}
}

// Gates returns a copy of the gate sequence.
func (c Circuit) Gates() []Gate {
	gs := make([]Gate, len(c.gates))
	copy(gs, c.gates)
	return gs
}

// Len returns the number of gates.
func (c Circuit) Len() int {
	return len(c.gates)
}

// NumQubits returns the qubit count implied by the highest referenced qubit.
func (c Circuit) NumQubits() int {
	max := -1
	for _, g := range c.gates {
		for _, q := range g.Qubits() {
			if q > max {
				max = q
			}
		}
	}
	return max + 1
}

// Variables returns the unique variable names in first-appearance order over
// the gate sequence. The order is deterministic: it depends only on the
// structure of the circuit, never on map iteration.
func (c Circuit) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, g := range c.gates {
		name := g.Param.VariableName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Hash returns the FNV-64a structural hash of the circuit. Structurally equal
// circuits always hash equal.
func (c Circuit) Hash() uint64 {
	h := fnv.New64a()
	for _, g := range c.gates {
		g.hashInto(h)
	}
	return h.Sum64()
}

// Equal reports structural equality of two circuits.
func (c Circuit) Equal(other Circuit) bool {
	if len(c.gates) != len(other.gates) {
		return false
	}
	for i := range c.gates {
		if !c.gates[i].equal(other.gates[i]) {
			return false
		}
	}
	return true
}

// ReplaceGate returns a copy of the circuit with the gate at index replaced.
// Used by the parameter-shift rule to build shifted siblings of a circuit.
func (c Circuit) ReplaceGate(index int, g Gate) Circuit {
	gs := make([]Gate, len(c.gates))
	copy(gs, c.gates)
	gs[index] = g
	return Circuit{gates: gs}
}

// String renders the gate sequence for diagnostics.
func (c Circuit) String() string {
	parts := make([]string, len(c.gates))
	for i, g := range c.gates {
		parts[i] = g.String()
	}
	return strings.Join(parts, " ")
}
