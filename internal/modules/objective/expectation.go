// Package objective provides the algebraic expression graph over expectation
// values. Leaves pair one circuit with one Hamiltonian and are hash-consed:
// structurally equal leaves are the same Go pointer, which is what makes the
// compiler's structural deduplication cheap and safe. Internal nodes are
// algebraic combinators; every operation builds a new immutable value.
package objective

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/hamiltonian"
)

// Executable is a backend-bound callable for one expectation leaf. A samples
// count of zero requests the deterministic exact value; a positive count
// requests a statistical estimate over that many repetitions.
type Executable interface {
	Run(bindings map[string]float64, samples int) (float64, error)
}

// Expectation pairs one circuit with one Hamiltonian. Values are interned:
// NewExpectation returns the same pointer for structurally equal inputs, so
// pointer equality coincides with structural equality.
type Expectation struct {
	circ circuit.Circuit
	ham  hamiltonian.Hamiltonian
	hash uint64
}

// intern is the process-wide arena of expectation values. Collisions on the
// combined hash fall back to a structural comparison within the bucket.
var intern = struct {
	mu      sync.Mutex
	buckets map[uint64][]*Expectation
}{buckets: map[uint64][]*Expectation{}}

// NewExpectation returns the interned expectation node for the given circuit
// and Hamiltonian.
func NewExpectation(c circuit.Circuit, h hamiltonian.Hamiltonian) *Expectation {
	hash := combineHashes(c.Hash(), h.Hash())

	intern.mu.Lock()
	defer intern.mu.Unlock()
	for _, e := range intern.buckets[hash] {
		if e.circ.Equal(c) && e.ham.Equal(h) {
			return e
		}
	}
	e := &Expectation{circ: c, ham: h, hash: hash}
	intern.buckets[hash] = append(intern.buckets[hash], e)
	return e
}

// Circuit returns the procedure of the expectation.
func (e *Expectation) Circuit() circuit.Circuit {
	return e.circ
}

// Hamiltonian returns the observable of the expectation.
func (e *Expectation) Hamiltonian() hamiltonian.Hamiltonian {
	return e.ham
}

// Hash returns the structural hash of the expectation. This is the compiler
// cache key component that identifies the leaf.
func (e *Expectation) Hash() uint64 {
	return e.hash
}

// Variables returns the variable names of the underlying circuit in
// first-appearance order.
func (e *Expectation) Variables() []string {
	return e.circ.Variables()
}

// String renders a short summary for diagnostics and error messages.
func (e *Expectation) String() string {
	return fmt.Sprintf("E[%d gates, %d terms, #%016x]", e.circ.Len(), e.ham.Len(), e.hash)
}

func combineHashes(a, b uint64) uint64 {
	h := fnv.New64a()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(a >> (8 * i))
		buf[8+i] = byte(b >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
