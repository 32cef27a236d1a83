// Package hamiltonian provides immutable weighted sums of Pauli product
// operators. A Hamiltonian maps canonical term labels (tensor products of
// single-qubit Pauli operators) to complex coefficients; arithmetic merges
// term maps and drops exact-zero coefficients, so no stored term ever has a
// zero weight.
package hamiltonian

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
)

// Axis is a single-qubit Pauli operator label: 'X', 'Y' or 'Z'.
type Axis byte

// Op is one single-qubit Pauli factor of a term.
type Op struct {
	Qubit int
	Axis  Axis
}

// Term is a Pauli product with its coefficient. The identity term has no ops.
type Term struct {
	Ops   []Op
	Coeff complex128
}

// Hamiltonian is an immutable weighted sum of Pauli product terms.
type Hamiltonian struct {
	terms map[string]complex128
}

// Zero returns the empty Hamiltonian (no terms).
func Zero() Hamiltonian {
	return Hamiltonian{terms: map[string]complex128{}}
}

// Identity returns the identity operator scaled by coeff.
func Identity(coeff complex128) Hamiltonian {
	if coeff == 0 {
		return Zero()
	}
	return Hamiltonian{terms: map[string]complex128{"": coeff}}
}

// X returns the Pauli-X operator on one qubit.
func X(qubit int) Hamiltonian { return single(qubit, 'X') }

// Y returns the Pauli-Y operator on one qubit.
func Y(qubit int) Hamiltonian { return single(qubit, 'Y') }

// Z returns the Pauli-Z operator on one qubit.
func Z(qubit int) Hamiltonian { return single(qubit, 'Z') }

func single(qubit int, axis Axis) Hamiltonian {
	key := termKey([]Op{{Qubit: qubit, Axis: axis}})
	return Hamiltonian{terms: map[string]complex128{key: 1}}
}

// FromTerms builds a Hamiltonian from explicit terms, merging duplicates.
func FromTerms(terms ...Term) Hamiltonian {
	out := map[string]complex128{}
	for _, t := range terms {
		ops, phase := canonicalize(t.Ops)
		addTerm(out, termKey(ops), t.Coeff*phase)
	}
	return Hamiltonian{terms: out}
}

// Add returns the sum of two Hamiltonians. Coefficients of equal terms are
// summed and terms that cancel to exactly zero are dropped.
func (h Hamiltonian) Add(other Hamiltonian) Hamiltonian {
	out := make(map[string]complex128, len(h.terms)+len(other.terms))
	for k, c := range h.terms {
		out[k] = c
	}
	for k, c := range other.terms {
		addTerm(out, k, c)
	}
	return Hamiltonian{terms: out}
}

// Sub returns h - other.
func (h Hamiltonian) Sub(other Hamiltonian) Hamiltonian {
	return h.Add(other.Scale(-1))
}

// Scale returns the Hamiltonian with every coefficient multiplied by c.
func (h Hamiltonian) Scale(c complex128) Hamiltonian {
	if c == 0 {
		return Zero()
	}
	out := make(map[string]complex128, len(h.terms))
	for k, v := range h.terms {
		out[k] = v * c
	}
	return Hamiltonian{terms: out}
}

// Mul returns the operator product h * other, applying the single-qubit Pauli
// algebra (XY = iZ, YZ = iX, ZX = iY, PP = I) term by term.
func (h Hamiltonian) Mul(other Hamiltonian) Hamiltonian {
	out := map[string]complex128{}
	for ka, ca := range h.terms {
		opsA := parseKey(ka)
		for kb, cb := range other.terms {
			ops, phase := multiplyOps(opsA, parseKey(kb))
			addTerm(out, termKey(ops), ca*cb*phase)
		}
	}
	return Hamiltonian{terms: out}
}

// Split decomposes the Hamiltonian into its Hermitian and anti-Hermitian
// parts: h = herm + anti where herm keeps the real coefficients and anti the
// imaginary ones. Pauli products are Hermitian, so the split acts purely on
// coefficients.
func (h Hamiltonian) Split() (herm, anti Hamiltonian) {
	ht := map[string]complex128{}
	at := map[string]complex128{}
	for k, c := range h.terms {
		if r := real(c); r != 0 {
			ht[k] = complex(r, 0)
		}
		if im := imag(c); im != 0 {
			at[k] = complex(0, im)
		}
	}
	return Hamiltonian{terms: ht}, Hamiltonian{terms: at}
}

// IsHermitian reports whether every coefficient is real.
func (h Hamiltonian) IsHermitian() bool {
	for _, c := range h.terms {
		if imag(c) != 0 {
			return false
		}
	}
	return true
}

// Len returns the number of stored terms.
func (h Hamiltonian) Len() int {
	return len(h.terms)
}

// NumQubits returns the qubit count implied by the highest referenced qubit.
func (h Hamiltonian) NumQubits() int {
	max := -1
	for k := range h.terms {
		for _, op := range parseKey(k) {
			if op.Qubit > max {
				max = op.Qubit
			}
		}
	}
	return max + 1
}

// Terms returns the terms sorted by canonical label. The identity term, if
// present, sorts first.
func (h Hamiltonian) Terms() []Term {
	keys := make([]string, 0, len(h.terms))
	for k := range h.terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Term, len(keys))
	for i, k := range keys {
		out[i] = Term{Ops: parseKey(k), Coeff: h.terms[k]}
	}
	return out
}

// Hash returns the FNV-64a structural hash over the sorted term map.
func (h Hamiltonian) Hash() uint64 {
	fh := fnv.New64a()
	for _, t := range h.Terms() {
		_, _ = fh.Write([]byte(termKey(t.Ops)))
		writeFloat(fh, real(t.Coeff))
		writeFloat(fh, imag(t.Coeff))
	}
	return fh.Sum64()
}

// Equal reports structural equality of two Hamiltonians.
func (h Hamiltonian) Equal(other Hamiltonian) bool {
	if len(h.terms) != len(other.terms) {
		return false
	}
	for k, c := range h.terms {
		if other.terms[k] != c {
			return false
		}
	}
	return true
}

// String renders the Hamiltonian as a sum of weighted Pauli labels.
func (h Hamiltonian) String() string {
	terms := h.Terms()
	if len(terms) == 0 {
		return "0"
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		label := termKey(t.Ops)
		if label == "" {
			label = "I"
		}
		if imag(t.Coeff) == 0 {
			parts[i] = fmt.Sprintf("%+g*%s", real(t.Coeff), label)
		} else {
			parts[i] = fmt.Sprintf("+(%g%+gi)*%s", real(t.Coeff), imag(t.Coeff), label)
		}
	}
	return strings.Join(parts, " ")
}

// addTerm merges a coefficient into the map, deleting terms that cancel.
func addTerm(m map[string]complex128, key string, c complex128) {
	if c == 0 {
		return
	}
	sum := m[key] + c
	if sum == 0 {
		delete(m, key)
		return
	}
	m[key] = sum
}

// canonicalize sorts ops by qubit and multiplies out repeated qubits,
// returning the reduced op list and the accumulated algebra phase.
func canonicalize(ops []Op) ([]Op, complex128) {
	sorted := make([]Op, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Qubit < sorted[j].Qubit })

	phase := complex128(1)
	var out []Op
	for _, op := range sorted {
		n := len(out)
		if n == 0 || out[n-1].Qubit != op.Qubit {
			out = append(out, op)
			continue
		}
		axis, p, identity := axisProduct(out[n-1].Axis, op.Axis)
		phase *= p
		if identity {
			out = out[:n-1]
		} else {
			out[n-1].Axis = axis
		}
	}
	return out, phase
}

// multiplyOps multiplies two canonical op lists.
func multiplyOps(a, b []Op) ([]Op, complex128) {
	return canonicalize(append(append([]Op{}, a...), b...))
}

// axisProduct resolves the product of two Pauli axes on the same qubit.
// Returns the resulting axis (unless the product is the identity) and the
// phase factor.
func axisProduct(a, b Axis) (Axis, complex128, bool) {
	if a == b {
		return 0, 1, true
	}
	// Cyclic: XY=iZ, YZ=iX, ZX=iY; the reverse order flips the sign.
	type pair struct{ a, b Axis }
	products := map[pair]Axis{
		{'X', 'Y'}: 'Z',
		{'Y', 'Z'}: 'X',
		{'Z', 'X'}: 'Y',
	}
	if r, ok := products[pair{a, b}]; ok {
		return r, 1i, false
	}
	r := products[pair{b, a}]
	return r, -1i, false
}

func termKey(ops []Op) string {
	var b strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&b, "%c%d", op.Axis, op.Qubit)
	}
	return b.String()
}

// parseKey is the inverse of termKey for canonical keys.
func parseKey(key string) []Op {
	var ops []Op
	i := 0
	for i < len(key) {
		axis := Axis(key[i])
		i++
		start := i
		for i < len(key) && key[i] >= '0' && key[i] <= '9' {
			i++
		}
		q := 0
		for _, ch := range key[start:i] {
			q = q*10 + int(ch-'0')
		}
		ops = append(ops, Op{Qubit: q, Axis: axis})
	}
	return ops
}

func writeFloat(h interface{ Write([]byte) (int, error) }, f float64) {
	bits := math.Float64bits(f)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	_, _ = h.Write(buf[:])
}
