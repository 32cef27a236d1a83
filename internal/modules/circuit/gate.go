package circuit

import (
	"fmt"
	"hash"
	"strings"
)

// Kind enumerates the abstract gate operations. Backends decide which kinds
// they support; the circuit itself attaches no semantics beyond the name.
type Kind string

const (
	KindH    Kind = "H"
	KindX    Kind = "X"
	KindY    Kind = "Y"
	KindZ    Kind = "Z"
	KindS    Kind = "S"
	KindRX   Kind = "RX"
	KindRY   Kind = "RY"
	KindRZ   Kind = "RZ"
	KindCNOT Kind = "CNOT"
	KindCZ   Kind = "CZ"
	KindSWAP Kind = "SWAP"
)

// rotationKinds are the single-qubit rotations exp(-i θ/2 P). Their two-point
// eigenvalue spectrum is what makes the ±π/2 parameter-shift rule exact.
var rotationKinds = map[Kind]bool{
	KindRX: true,
	KindRY: true,
	KindRZ: true,
}

// IsRotation reports whether k belongs to the shift-rule rotation family.
func (k Kind) IsRotation() bool {
	return rotationKinds[k]
}

// Gate is one abstract operation in a circuit. Parametrized kinds carry a
// Parameter; for the rest Param is the zero value and ignored.
type Gate struct {
	Kind     Kind
	Targets  []int
	Controls []int
	Param    Parameter
}

// IsParametrized reports whether the gate argument depends on a variable.
func (g Gate) IsParametrized() bool {
	return g.Kind.IsRotation() && !g.Param.IsConst()
}

// Qubits returns all qubits the gate touches (targets then controls).
func (g Gate) Qubits() []int {
	qs := make([]int, 0, len(g.Targets)+len(g.Controls))
	qs = append(qs, g.Targets...)
	qs = append(qs, g.Controls...)
	return qs
}

// String renders the gate for diagnostics, e.g. "RY(a)[0]" or "CNOT[1<-0]".
func (g Gate) String() string {
	var b strings.Builder
	b.WriteString(string(g.Kind))
	if g.Kind.IsRotation() {
		fmt.Fprintf(&b, "(%s)", g.Param)
	}
	fmt.Fprintf(&b, "%v", g.Targets)
	if len(g.Controls) > 0 {
		fmt.Fprintf(&b, "c%v", g.Controls)
	}
	return b.String()
}

func (g Gate) hashInto(h hash.Hash64) {
	_, _ = h.Write([]byte(g.Kind))
	for _, q := range g.Targets {
		writeFloat(h, float64(q))
	}
	_, _ = h.Write([]byte{0xff}) // separator between targets and controls
	for _, q := range g.Controls {
		writeFloat(h, float64(q))
	}
	if g.Kind.IsRotation() {
		g.Param.hashInto(h)
	}
}

func (g Gate) equal(other Gate) bool {
	if g.Kind != other.Kind || len(g.Targets) != len(other.Targets) || len(g.Controls) != len(other.Controls) {
		return false
	}
	for i := range g.Targets {
		if g.Targets[i] != other.Targets[i] {
			return false
		}
	}
	for i := range g.Controls {
		if g.Controls[i] != other.Controls[i] {
			return false
		}
	}
	if g.Kind.IsRotation() {
		return g.Param == other.Param
	}
	return true
}

// Convenience constructors. Rotations take the parameter explicitly so both
// fixed-angle and variable-angle gates go through the same path.

// H creates a Hadamard gate on the target qubit.
func H(target int) Gate { return Gate{Kind: KindH, Targets: []int{target}} }

// X creates a Pauli-X gate on the target qubit.
func X(target int) Gate { return Gate{Kind: KindX, Targets: []int{target}} }

// Y creates a Pauli-Y gate on the target qubit.
func Y(target int) Gate { return Gate{Kind: KindY, Targets: []int{target}} }

// Z creates a Pauli-Z gate on the target qubit.
func Z(target int) Gate { return Gate{Kind: KindZ, Targets: []int{target}} }

// S creates a phase gate on the target qubit.
func S(target int) Gate { return Gate{Kind: KindS, Targets: []int{target}} }

// RX creates a rotation around X by the given parameter.
func RX(target int, p Parameter) Gate {
	return Gate{Kind: KindRX, Targets: []int{target}, Param: p}
}

// RY creates a rotation around Y by the given parameter.
func RY(target int, p Parameter) Gate {
	return Gate{Kind: KindRY, Targets: []int{target}, Param: p}
}

// RZ creates a rotation around Z by the given parameter.
func RZ(target int, p Parameter) Gate {
	return Gate{Kind: KindRZ, Targets: []int{target}, Param: p}
}

// CNOT creates a controlled-NOT gate.
func CNOT(control, target int) Gate {
	return Gate{Kind: KindCNOT, Targets: []int{target}, Controls: []int{control}}
}

// CZ creates a controlled-Z gate.
func CZ(control, target int) Gate {
	return Gate{Kind: KindCZ, Targets: []int{target}, Controls: []int{control}}
}

// SWAP creates a swap gate between two qubits.
func SWAP(a, b int) Gate {
	return Gate{Kind: KindSWAP, Targets: []int{a, b}}
}
