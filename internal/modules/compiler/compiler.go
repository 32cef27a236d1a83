package compiler

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/varqo/varqo/internal/modules/noise"
	"github.com/varqo/varqo/internal/modules/objective"
)

// cacheKey identifies one compiled leaf: the structural hash of the
// expectation, the backend it was built for, and the noise model it was
// built with.
type cacheKey struct {
	leafHash uint64
	backend  string
	noiseKey string
}

// Compiler binds objectives to backends with memoization. The cache is
// shared across all Compile calls on the same Compiler, so equal leaves in
// different objectives reuse one executable. The claim-then-fill discipline
// under the mutex guarantees at most one build per key even under concurrent
// compilation; a failed build inserts nothing, so one bad leaf never poisons
// entries for others.
type Compiler struct {
	registry *Registry
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[cacheKey]objective.Executable
}

// New creates a compiler over the given backend registry.
func New(registry *Registry, log zerolog.Logger) *Compiler {
	return &Compiler{
		registry: registry,
		log:      log.With().Str("component", "compiler").Logger(),
		cache:    map[cacheKey]objective.Executable{},
	}
}

// CacheSize returns the number of memoized leaf executables.
func (c *Compiler) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Compile binds an objective to the named backend (empty name selects the
// registry default). The hybrid input policy is:
//
//   - every leaf already bound to the target backend: no-op, the existing
//     bindings are returned unchanged;
//   - every leaf bound, but to other backends: full retarget, every leaf is
//     rebuilt for the target;
//   - a mix of raw and bound leaves: only raw leaves are compiled, foreign
//     bindings stay untouched and a mixed-backend warning is logged (the
//     result stays valid to evaluate).
func (c *Compiler) Compile(o objective.Objective, backendName string, nm *noise.Model) (*Compiled, error) {
	backend, err := c.registry.Get(backendName)
	if err != nil {
		return nil, err
	}

	leaves := o.Leaves()
	var raw, onTarget, foreign int
	for _, l := range leaves {
		switch {
		case l.Exec == nil:
			raw++
		case l.Backend == backend.Name():
			onTarget++
		default:
			foreign++
		}
	}

	if raw == 0 && foreign == 0 {
		// Already fully bound to the target; reuse as-is.
		return newCompiled(o, c), nil
	}

	retarget := raw == 0 && onTarget == 0 // fully compiled elsewhere: replace every leaf
	if raw > 0 && foreign > 0 {
		c.log.Warn().
			Str("backend", backend.Name()).
			Strs("existing", o.Backends()).
			Msg("Compiling hybrid objective; result will be mixed-backend")
	}

	bound, err := o.Rebind(func(l objective.Leaf) (objective.Executable, string, error) {
		if l.Exec != nil && !retarget {
			if l.Backend == backend.Name() {
				return l.Exec, l.Backend, nil
			}
			// Foreign binding in a hybrid objective stays untouched.
			return l.Exec, l.Backend, nil
		}
		exec, err := c.leafExecutable(l, backend, nm)
		if err != nil {
			return nil, "", err
		}
		return exec, backend.Name(), nil
	})
	if err != nil {
		return nil, err
	}
	return newCompiled(bound, c), nil
}

// leafExecutable returns the memoized executable for one leaf, building and
// caching it on first use.
func (c *Compiler) leafExecutable(l objective.Leaf, backend Backend, nm *noise.Model) (objective.Executable, error) {
	key := cacheKey{leafHash: l.E.Hash(), backend: backend.Name(), noiseKey: nm.Key()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if exec, ok := c.cache[key]; ok {
		return exec, nil
	}
	exec, err := backend.Build(l.E.Circuit(), l.E.Hamiltonian(), nm)
	if err != nil {
		return nil, fmt.Errorf("%w: leaf %s on backend %q: %v", ErrCompilation, l.E, backend.Name(), err)
	}
	c.cache[key] = exec
	c.log.Debug().
		Str("backend", backend.Name()).
		Str("leaf", l.E.String()).
		Msg("Compiled expectation value")
	return exec, nil
}
