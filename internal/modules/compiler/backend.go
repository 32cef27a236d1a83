// Package compiler maps objectives onto executable backends. Compilation is
// memoized per (leaf structural hash, backend, noise model) so a given
// expectation value is built at most once per target, no matter how many
// objectives reference it.
package compiler

import (
	"errors"
	"fmt"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/hamiltonian"
	"github.com/varqo/varqo/internal/modules/noise"
	"github.com/varqo/varqo/internal/modules/objective"
)

// ErrCompilation is returned when a leaf cannot be built for the requested
// backend, for example because the circuit uses an unsupported operation.
var ErrCompilation = errors.New("compilation failed")

// ErrUnknownBackend is returned when the requested backend is not registered.
var ErrUnknownBackend = errors.New("unknown backend")

// Backend is the factory capability one execution target implements. Build
// turns a single (circuit, Hamiltonian, noise) triple into an executable; it
// must treat the noise model as opaque beyond its own supported kinds.
type Backend interface {
	Name() string
	Build(c circuit.Circuit, h hamiltonian.Hamiltonian, nm *noise.Model) (objective.Executable, error)
}

// Registry is an explicit immutable list of available backends. The first
// registered backend is the default, mirroring installed-first-wins
// selection. Build the registry once at startup and pass it in; there is no
// ambient global state.
type Registry struct {
	backends []Backend
}

// NewRegistry creates a registry from the given backends in priority order.
func NewRegistry(backends ...Backend) *Registry {
	bs := make([]Backend, len(backends))
	copy(bs, backends)
	return &Registry{backends: bs}
}

// Default returns the first registered backend, or nil for an empty registry.
func (r *Registry) Default() Backend {
	if len(r.backends) == 0 {
		return nil
	}
	return r.backends[0]
}

// Get returns the backend with the given name. An empty name selects the
// default backend.
func (r *Registry) Get(name string) (Backend, error) {
	if name == "" {
		if b := r.Default(); b != nil {
			return b, nil
		}
		return nil, fmt.Errorf("%w: registry is empty", ErrUnknownBackend)
	}
	for _, b := range r.backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// Names returns the backend names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return names
}
