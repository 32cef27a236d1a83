package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/varqo/varqo/internal/modules/circuit"
	"github.com/varqo/varqo/internal/modules/compiler"
	"github.com/varqo/varqo/internal/modules/gradient"
	"github.com/varqo/varqo/internal/modules/hamiltonian"
	"github.com/varqo/varqo/internal/modules/history"
	"github.com/varqo/varqo/internal/modules/noise"
	"github.com/varqo/varqo/internal/modules/objective"
	"github.com/varqo/varqo/internal/utils"
)

// errValidation marks request shape errors so they map to 400.
var errValidation = errors.New("invalid request")

// GateDTO is the JSON form of one gate. Parametrized kinds carry Param.
type GateDTO struct {
	Kind     string        `json:"kind"`
	Targets  []int         `json:"targets"`
	Controls []int         `json:"controls,omitempty"`
	Param    *ParameterDTO `json:"param,omitempty"`
}

// ParameterDTO is the affine gate parameter scale*variable + offset. An
// empty variable name denotes the constant offset.
type ParameterDTO struct {
	Variable string  `json:"variable,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
	Offset   float64 `json:"offset,omitempty"`
}

// TermDTO is one weighted Pauli product of the observable.
type TermDTO struct {
	Re  float64 `json:"re"`
	Im  float64 `json:"im,omitempty"`
	Ops []OpDTO `json:"ops"`
}

// OpDTO is a single-qubit Pauli factor.
type OpDTO struct {
	Qubit int    `json:"qubit"`
	Axis  string `json:"axis"` // "X", "Y" or "Z"
}

// NoiseDTO is one noise model entry; order in the request is preserved.
type NoiseDTO struct {
	Kind        string  `json:"kind"`
	Probability float64 `json:"probability"`
	Level       int     `json:"level"`
}

// EvaluateRequest describes the objective scale*(E^power)+shift over a
// single expectation value E, with its execution target and binding.
type EvaluateRequest struct {
	Circuit     []GateDTO          `json:"circuit"`
	Hamiltonian []TermDTO          `json:"hamiltonian"`
	Power       *float64           `json:"power,omitempty"`
	Scale       *float64           `json:"scale,omitempty"`
	Shift       *float64           `json:"shift,omitempty"`
	Backend     string             `json:"backend,omitempty"`
	Variables   map[string]float64 `json:"variables"`
	Samples     int                `json:"samples,omitempty"`
	Noise       []NoiseDTO         `json:"noise,omitempty"`
}

// GradientRequest extends EvaluateRequest with the differentiation target.
type GradientRequest struct {
	EvaluateRequest
	Variable string  `json:"variable"`
	Mode     string  `json:"mode,omitempty"`    // "analytic" (default) or "numeric"
	Stencil  string  `json:"stencil,omitempty"` // numeric mode only
	Stepsize float64 `json:"stepsize,omitempty"`
}

// EvaluateResponse is the result of an evaluation or gradient call.
type EvaluateResponse struct {
	Value    float64  `json:"value"`
	Backends []string `json:"backends"`
	ID       string   `json:"id,omitempty"`
}

// Handlers provides the objective evaluation endpoints. A single shared
// compiler gives cross-request memoization of compiled leaves.
type Handlers struct {
	compiler *compiler.Compiler
	history  *history.Service
	log      zerolog.Logger
}

// NewHandlers creates the evaluation handlers.
func NewHandlers(c *compiler.Compiler, h *history.Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		compiler: c,
		history:  h,
		log:      log.With().Str("handler", "objective").Logger(),
	}
}

// HandleEvaluate handles POST /api/evaluate.
func (h *Handlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	defer utils.OperationTimer("evaluate", h.log)()

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	obj, nm, err := h.buildObjective(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	compiled, err := h.compiler.Compile(obj, req.Backend, nm)
	if err != nil {
		h.writeError(w, err)
		return
	}
	value, err := compiled.Evaluate(req.Variables, req.Samples)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := EvaluateResponse{Value: value, Backends: compiled.Backends()}
	if rec, err := h.history.Record(objectiveTag(obj), backendTag(compiled), req.Samples, value, req.Variables); err != nil {
		h.log.Error().Err(err).Msg("Failed to record evaluation")
	} else {
		resp.ID = rec.ID
	}
	writeJSON(w, h.log, resp)
}

// HandleGradient handles POST /api/gradient.
func (h *Handlers) HandleGradient(w http.ResponseWriter, r *http.Request) {
	defer utils.OperationTimer("gradient", h.log)()

	var req GradientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Variable == "" {
		http.Error(w, "Missing differentiation variable", http.StatusBadRequest)
		return
	}

	obj, nm, err := h.buildObjective(req.EvaluateRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var value float64
	var backends []string
	switch req.Mode {
	case "", "analytic":
		dobj, err := gradient.Analytic(obj, circuit.NewVariable(req.Variable))
		if err != nil {
			h.writeError(w, err)
			return
		}
		compiled, err := h.compiler.Compile(dobj, req.Backend, nm)
		if err != nil {
			h.writeError(w, err)
			return
		}
		value, err = compiled.Evaluate(req.Variables, req.Samples)
		if err != nil {
			h.writeError(w, err)
			return
		}
		backends = compiled.Backends()

	case "numeric":
		stencilName := req.Stencil
		if stencilName == "" {
			stencilName = "central"
		}
		stencil, err := gradient.Stencil(stencilName)
		if err != nil {
			h.writeError(w, err)
			return
		}
		step := req.Stepsize
		if step == 0 {
			step = 1e-4
		}
		compiled, err := h.compiler.Compile(obj, req.Backend, nm)
		if err != nil {
			h.writeError(w, err)
			return
		}
		value, err = gradient.Numeric(gradient.CompiledEval(compiled, req.Samples), req.Variables, req.Variable, step, stencil)
		if err != nil {
			h.writeError(w, err)
			return
		}
		backends = compiled.Backends()

	default:
		h.writeError(w, fmt.Errorf("%w: %q", gradient.ErrUnknownMethod, req.Mode))
		return
	}

	writeJSON(w, h.log, EvaluateResponse{Value: value, Backends: backends})
}

// buildObjective converts the request DTOs into scale*(E^power)+shift.
func (h *Handlers) buildObjective(req EvaluateRequest) (objective.Objective, *noise.Model, error) {
	if len(req.Circuit) == 0 {
		return objective.Objective{}, nil, fmt.Errorf("%w: circuit must contain at least one gate", errValidation)
	}
	if len(req.Hamiltonian) == 0 {
		return objective.Objective{}, nil, fmt.Errorf("%w: hamiltonian must contain at least one term", errValidation)
	}

	gates := make([]circuit.Gate, len(req.Circuit))
	for i, g := range req.Circuit {
		gate, err := toGate(g)
		if err != nil {
			return objective.Objective{}, nil, err
		}
		gates[i] = gate
	}

	terms := make([]hamiltonian.Term, len(req.Hamiltonian))
	for i, t := range req.Hamiltonian {
		term, err := toTerm(t)
		if err != nil {
			return objective.Objective{}, nil, err
		}
		terms[i] = term
	}

	var nm *noise.Model
	if len(req.Noise) > 0 {
		entries := make([]noise.Entry, len(req.Noise))
		for i, n := range req.Noise {
			entries[i] = noise.Entry{Kind: noise.Kind(n.Kind), Probability: n.Probability, Level: n.Level}
		}
		var err error
		nm, err = noise.New(entries...)
		if err != nil {
			return objective.Objective{}, nil, err
		}
	}

	e := objective.NewExpectation(circuit.New(gates...), hamiltonian.FromTerms(terms...))
	obj := objective.FromExpectation(e)
	if req.Power != nil && *req.Power != 1 {
		obj = obj.PowScalar(*req.Power)
	}
	if req.Scale != nil && *req.Scale != 1 {
		obj = obj.MulScalar(*req.Scale)
	}
	if req.Shift != nil && *req.Shift != 0 {
		obj = obj.AddScalar(*req.Shift)
	}
	return obj, nm, nil
}

func toGate(g GateDTO) (circuit.Gate, error) {
	kind := circuit.Kind(g.Kind)
	if len(g.Targets) == 0 {
		return circuit.Gate{}, fmt.Errorf("%w: gate %q has no targets", errValidation, g.Kind)
	}
	gate := circuit.Gate{Kind: kind, Targets: g.Targets, Controls: g.Controls}
	if kind.IsRotation() {
		if g.Param == nil {
			return circuit.Gate{}, fmt.Errorf("%w: rotation gate %q requires a param", errValidation, g.Kind)
		}
		if g.Param.Variable == "" {
			gate.Param = circuit.Const(g.Param.Offset)
		} else {
			scale := g.Param.Scale
			if scale == 0 {
				scale = 1
			}
			gate.Param = circuit.Affine(circuit.NewVariable(g.Param.Variable), scale, g.Param.Offset)
		}
	}
	return gate, nil
}

func toTerm(t TermDTO) (hamiltonian.Term, error) {
	ops := make([]hamiltonian.Op, len(t.Ops))
	for i, op := range t.Ops {
		if op.Axis != "X" && op.Axis != "Y" && op.Axis != "Z" {
			return hamiltonian.Term{}, fmt.Errorf("%w: unknown Pauli axis %q", errValidation, op.Axis)
		}
		ops[i] = hamiltonian.Op{Qubit: op.Qubit, Axis: hamiltonian.Axis(op.Axis[0])}
	}
	return hamiltonian.Term{Ops: ops, Coeff: complex(t.Re, t.Im)}, nil
}

// objectiveTag derives a stable identifier for history records from the
// first expectation leaf.
func objectiveTag(o objective.Objective) string {
	leaves := o.Leaves()
	if len(leaves) == 0 {
		return "constant"
	}
	return fmt.Sprintf("%016x", leaves[0].E.Hash())
}

func backendTag(c *compiler.Compiled) string {
	backends := c.Backends()
	if len(backends) == 0 {
		return ""
	}
	return backends[0]
}

// writeError maps the core error kinds onto HTTP statuses.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errValidation),
		errors.Is(err, objective.ErrMissingVariable),
		errors.Is(err, compiler.ErrCompilation),
		errors.Is(err, compiler.ErrUnknownBackend),
		errors.Is(err, gradient.ErrUnknownMethod),
		errors.Is(err, gradient.ErrNoShiftRule),
		errors.Is(err, noise.ErrSpec):
		status = http.StatusBadRequest
	}
	h.log.Error().Err(err).Int("status", status).Msg("Request failed")
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
