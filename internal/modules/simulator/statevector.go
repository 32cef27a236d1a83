package simulator

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/hamiltonian"
	"github.com/varqo/varqo/internal/modules/noise"
	"github.com/varqo/varqo/internal/modules/objective"
)

// absoluteMaxQubits caps the statevector size regardless of reported memory.
const absoluteMaxQubits = 30

// Statevector is the default execution backend: a dense statevector
// simulator supporting exact evaluation, binomial sampling of measurement
// statistics, and stochastic noise trajectories.
type Statevector struct {
	maxQubits int
	seed      uint64
	log       zerolog.Logger
}

// StatevectorConfig configures the statevector backend. A zero MaxQubits
// derives the capacity from available system memory; a zero Seed makes the
// sampling streams start from a fixed default.
type StatevectorConfig struct {
	MaxQubits int
	Seed      uint64
	Log       zerolog.Logger
}

// NewStatevector creates the statevector backend.
func NewStatevector(cfg StatevectorConfig) *Statevector {
	maxQubits := cfg.MaxQubits
	if maxQubits <= 0 {
		maxQubits = memoryQubitCapacity()
	}
	if maxQubits > absoluteMaxQubits {
		maxQubits = absoluteMaxQubits
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &Statevector{
		maxQubits: maxQubits,
		seed:      seed,
		log:       cfg.Log.With().Str("component", "statevector").Logger(),
	}
}

// memoryQubitCapacity derives the largest simulable qubit count from the
// available memory: one amplitude is 16 bytes and the trajectory path keeps
// a small constant number of working copies.
func memoryQubitCapacity() int {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Available == 0 {
		return 24 // conservative fallback when memory stats are unavailable
	}
	budget := vm.Available / 4
	n := 0
	for (uint64(16) << (n + 1)) <= budget && n < absoluteMaxQubits {
		n++
	}
	return n
}

// Name implements compiler.Backend.
func (s *Statevector) Name() string {
	return "statevector"
}

// MaxQubits returns the configured qubit capacity.
func (s *Statevector) MaxQubits() int {
	return s.maxQubits
}

// Build implements compiler.Backend. It validates the circuit against the
// backend's capacity and the noise model against the supported channel
// kinds, and returns an executable for the expectation value.
func (s *Statevector) Build(c circuit.Circuit, h hamiltonian.Hamiltonian, nm *noise.Model) (objective.Executable, error) {
	nQubits := c.NumQubits()
	if hq := h.NumQubits(); hq > nQubits {
		nQubits = hq
	}
	if nQubits > s.maxQubits {
		return nil, fmt.Errorf("circuit needs %d qubits, backend capacity is %d", nQubits, s.maxQubits)
	}
	for _, e := range nm.Entries() {
		if _, err := channelFor(e.Kind); err != nil {
			return nil, err
		}
	}
	return &svExecutable{
		circuit: c,
		ham:     h,
		nm:      nm,
		nQubits: nQubits,
		seed:    s.seed,
	}, nil
}

// svExecutable is one compiled expectation value on the statevector backend.
// Runs with different bindings are independent; the sampling stream advances
// atomically so concurrent calls draw distinct substreams.
type svExecutable struct {
	circuit circuit.Circuit
	ham     hamiltonian.Hamiltonian
	nm      *noise.Model
	nQubits int
	seed    uint64
	stream  uint64
}

// Run implements objective.Executable. A samples count of zero returns the
// deterministic exact value; noise models require sampling because they are
// realized as stochastic trajectories.
func (e *svExecutable) Run(bindings map[string]float64, samples int) (float64, error) {
	if e.nm.Len() > 0 {
		if samples <= 0 {
			return 0, fmt.Errorf("noise model %s requires a samples count", e.nm)
		}
		return e.runTrajectories(bindings, samples)
	}
	st, err := e.simulate(bindings)
	if err != nil {
		return 0, err
	}
	if samples <= 0 {
		return st.expectation(e.ham), nil
	}
	return e.sample(st, samples)
}

// simulate runs the noiseless circuit against the binding.
func (e *svExecutable) simulate(bindings map[string]float64) (*state, error) {
	st := newState(e.nQubits)
	for _, g := range e.circuit.Gates() {
		theta, err := resolveAngle(g, bindings)
		if err != nil {
			return nil, err
		}
		st.applyGate(g, theta)
	}
	return st, nil
}

// sample estimates the expectation by drawing a binomial count for each
// Pauli term around its exact single-shot outcome distribution.
func (e *svExecutable) sample(st *state, samples int) (float64, error) {
	src := rand.NewSource(e.nextSeed())
	total := 0.0
	for _, t := range e.ham.Terms() {
		coeff := real(t.Coeff)
		if len(t.Ops) == 0 {
			total += coeff
			continue
		}
		exact := real(st.termExpectation(t.Ops))
		p := (1 + math.Max(-1, math.Min(1, exact))) / 2
		bin := distuv.Binomial{N: float64(samples), P: p, Src: src}
		k := bin.Rand()
		total += coeff * (2*k/float64(samples) - 1)
	}
	return total, nil
}

// runTrajectories averages the exact expectation over stochastic noise
// trajectories: after every gate, each entry whose level matches the gate's
// qubit count applies its channel to the gate's qubits, in model order.
func (e *svExecutable) runTrajectories(bindings map[string]float64, samples int) (float64, error) {
	entries := e.nm.Entries()
	rng := rand.New(rand.NewSource(e.nextSeed()))

	sum := 0.0
	for traj := 0; traj < samples; traj++ {
		st := newState(e.nQubits)
		for _, g := range e.circuit.Gates() {
			theta, err := resolveAngle(g, bindings)
			if err != nil {
				return 0, err
			}
			st.applyGate(g, theta)

			qubits := g.Qubits()
			for _, entry := range entries {
				if entry.Level != len(qubits) {
					continue
				}
				ch, _ := channelFor(entry.Kind) // validated at build time
				for _, q := range qubits {
					ch(st, q, entry.Probability, rng)
				}
			}
		}
		sum += st.expectation(e.ham)
	}
	return sum / float64(samples), nil
}

// nextSeed returns a distinct deterministic seed per invocation.
func (e *svExecutable) nextSeed() uint64 {
	n := atomic.AddUint64(&e.stream, 1)
	return e.seed + n*0x9e3779b97f4a7c15
}
