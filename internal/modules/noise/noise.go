// Package noise provides ordered compositions of stochastic error
// specifications. A model is opaque data handed to backends at execution
// time; the compiler only consults its canonical key for cache identity and
// never interprets or validates physical consistency beyond the entry ranges
// checked at construction.
package noise

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSpec is returned for entries with out-of-range probabilities, invalid
// qubit levels, or kinds a backend does not support.
var ErrSpec = errors.New("invalid noise specification")

// Kind enumerates the supported stochastic error channels.
type Kind string

// Supported noise kinds.
const (
	BitFlip            Kind = "bit_flip"
	PhaseFlip          Kind = "phase_flip"
	AmplitudeDamp      Kind = "amplitude_damp"
	PhaseDamp          Kind = "phase_damp"
	PhaseAmplitudeDamp Kind = "phase_amplitude_damp"
	Depolarizing       Kind = "depolarizing"
)

var knownKinds = map[Kind]bool{
	BitFlip:            true,
	PhaseFlip:          true,
	AmplitudeDamp:      true,
	PhaseDamp:          true,
	PhaseAmplitudeDamp: true,
	Depolarizing:       true,
}

// Entry is one stochastic error specification. Level routes the entry to
// gates touching exactly that many qubits.
type Entry struct {
	Probability float64
	Level       int
	Kind        Kind
}

// Model is an immutable ordered sequence of entries. Order is semantically
// significant: the underlying error operators generally do not commute, so
// a+b and b+a describe different simulated effects.
type Model struct {
	entries []Entry
}

// New validates the entries and builds a model preserving their order.
func New(entries ...Entry) (*Model, error) {
	for _, e := range entries {
		if e.Probability < 0 || e.Probability > 1 {
			return nil, fmt.Errorf("%w: probability %g outside [0,1]", ErrSpec, e.Probability)
		}
		if e.Level < 1 {
			return nil, fmt.Errorf("%w: qubit level %d must be positive", ErrSpec, e.Level)
		}
		if !knownKinds[e.Kind] {
			return nil, fmt.Errorf("%w: unknown kind %q", ErrSpec, e.Kind)
		}
	}
	es := make([]Entry, len(entries))
	copy(es, entries)
	return &Model{entries: es}, nil
}

// Add returns a model whose sequence is m's entries followed by other's,
// preserving each side's internal order. Concatenation is associative but
// not commutative in effect.
func (m *Model) Add(other *Model) *Model {
	if m == nil {
		return other
	}
	if other == nil {
		return m
	}
	es := make([]Entry, 0, len(m.entries)+len(other.entries))
	es = append(es, m.entries...)
	es = append(es, other.entries...)
	return &Model{entries: es}
}

// Entries returns a copy of the ordered entry sequence.
func (m *Model) Entries() []Entry {
	if m == nil {
		return nil
	}
	es := make([]Entry, len(m.entries))
	copy(es, m.entries)
	return es
}

// Len returns the number of entries; a nil model has zero.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Key returns a canonical string identifying the model, used as the noise
// component of compiler cache keys. A nil model keys as the empty string.
func (m *Model) Key() string {
	if m == nil {
		return ""
	}
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = fmt.Sprintf("%s:%d:%g", e.Kind, e.Level, e.Probability)
	}
	return strings.Join(parts, "|")
}

// String renders the ordered entries for diagnostics.
func (m *Model) String() string {
	if m.Len() == 0 {
		return "NoiseModel()"
	}
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = fmt.Sprintf("{%s p=%g level=%d}", e.Kind, e.Probability, e.Level)
	}
	return "NoiseModel(" + strings.Join(parts, " -> ") + ")"
}
