package simulator

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/varqo/varqo/internal/modules/noise"
)

// channel applies one stochastic error channel to a single qubit of a
// trajectory state. Channels mutate the state in place and keep it
// normalized.
type channel func(st *state, qubit int, p float64, rng *rand.Rand)

// channelFor resolves the trajectory realization of a noise kind.
func channelFor(kind noise.Kind) (channel, error) {
	switch kind {
	case noise.BitFlip:
		return bitFlip, nil
	case noise.PhaseFlip:
		return phaseFlip, nil
	case noise.Depolarizing:
		return depolarizing, nil
	case noise.AmplitudeDamp:
		return amplitudeDamp, nil
	case noise.PhaseDamp:
		return phaseDamp, nil
	case noise.PhaseAmplitudeDamp:
		return phaseAmplitudeDamp, nil
	}
	return nil, fmt.Errorf("%w: kind %q not supported by the statevector backend", noise.ErrSpec, kind)
}

func bitFlip(st *state, q int, p float64, rng *rand.Rand) {
	if rng.Float64() < p {
		st.applyX(q)
	}
}

func phaseFlip(st *state, q int, p float64, rng *rand.Rand) {
	if rng.Float64() < p {
		st.applyZ(q)
	}
}

func depolarizing(st *state, q int, p float64, rng *rand.Rand) {
	if rng.Float64() >= p {
		return
	}
	switch rng.Intn(3) {
	case 0:
		st.applyX(q)
	case 1:
		st.applyY(q)
	case 2:
		st.applyZ(q)
	}
}

// amplitudeDamp unravels the amplitude damping channel: the decay Kraus
// operator fires with the trajectory probability p*P(|1⟩), collapsing the
// qubit to |0⟩; otherwise the no-jump operator damps the |1⟩ amplitude.
func amplitudeDamp(st *state, q int, p float64, rng *rand.Rand) {
	pJump := p * st.prob1(q)
	bit := 1 << q
	if rng.Float64() < pJump {
		// |1⟩ decays to |0⟩.
		for i := range st.amps {
			if i&bit != 0 {
				st.amps[i^bit] = st.amps[i]
				st.amps[i] = 0
			}
		}
	} else {
		f := complex(math.Sqrt(1-p), 0)
		for i := range st.amps {
			if i&bit != 0 {
				st.amps[i] *= f
			}
		}
	}
	st.renormalize()
}

// phaseDamp unravels phase damping: the jump projects onto |1⟩ without
// population transfer, destroying coherence with |0⟩.
func phaseDamp(st *state, q int, p float64, rng *rand.Rand) {
	pJump := p * st.prob1(q)
	bit := 1 << q
	if rng.Float64() < pJump {
		for i := range st.amps {
			if i&bit == 0 {
				st.amps[i] = 0
			}
		}
	} else {
		f := complex(math.Sqrt(1-p), 0)
		for i := range st.amps {
			if i&bit != 0 {
				st.amps[i] *= f
			}
		}
	}
	st.renormalize()
}

func phaseAmplitudeDamp(st *state, q int, p float64, rng *rand.Rand) {
	amplitudeDamp(st, q, p, rng)
	phaseDamp(st, q, p, rng)
}
