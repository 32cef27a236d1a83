package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varqo/varqo/internal/database"
	"github.com/varqo/varqo/internal/modules/compiler"
	"github.com/varqo/varqo/internal/modules/history"
	"github.com/varqo/varqo/internal/modules/simulator"
)

var serverDBCounter int

func newTestServer(t *testing.T) *Server {
	t.Helper()

	serverDBCounter++
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", serverDBCounter),
		Name: "history-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	registry := compiler.NewRegistry(
		simulator.NewStatevector(simulator.StatevectorConfig{MaxQubits: 8, Seed: 5, Log: log}),
		simulator.NewUnitary(log),
	)
	return New(Config{
		Port:     0,
		Log:      log,
		Compiler: compiler.New(registry, log),
		Registry: registry,
		History:  history.NewService(history.NewRepository(db, log), 90, log),
	})
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// ryRequest builds ⟨X⟩ after RY(a), which evaluates to sin(a).
func ryRequest(at float64) EvaluateRequest {
	return EvaluateRequest{
		Circuit: []GateDTO{
			{Kind: "RY", Targets: []int{0}, Param: &ParameterDTO{Variable: "a"}},
		},
		Hamiltonian: []TermDTO{
			{Re: 1, Ops: []OpDTO{{Qubit: 0, Axis: "X"}}},
		},
		Variables: map[string]float64{"a": at},
	}
}

func TestHandleEvaluate(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/api/evaluate", ryRequest(math.Pi/2))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 1.0, resp.Value, 1e-9)
	assert.Equal(t, []string{"statevector"}, resp.Backends)
	assert.NotEmpty(t, resp.ID, "the evaluation must be recorded")
}

func TestHandleEvaluateArithmetic(t *testing.T) {
	srv := newTestServer(t)

	// 3*sin(a)^2 + 1 at a = pi/2.
	req := ryRequest(math.Pi / 2)
	power, scale, shift := 2.0, 3.0, 1.0
	req.Power = &power
	req.Scale = &scale
	req.Shift = &shift

	rec := postJSON(t, srv, "/api/evaluate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 4.0, resp.Value, 1e-9)
}

func TestHandleEvaluateOnUnitaryBackend(t *testing.T) {
	srv := newTestServer(t)

	req := ryRequest(0.4)
	req.Backend = "unitary"

	rec := postJSON(t, srv, "/api/evaluate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, math.Sin(0.4), resp.Value, 1e-9)
	assert.Equal(t, []string{"unitary"}, resp.Backends)
}

func TestHandleEvaluateValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(*EvaluateRequest)
	}{
		{
			name:   "empty circuit",
			mutate: func(r *EvaluateRequest) { r.Circuit = nil },
		},
		{
			name:   "empty hamiltonian",
			mutate: func(r *EvaluateRequest) { r.Hamiltonian = nil },
		},
		{
			name:   "missing variable binding",
			mutate: func(r *EvaluateRequest) { r.Variables = nil },
		},
		{
			name:   "unknown backend",
			mutate: func(r *EvaluateRequest) { r.Backend = "tensor-network" },
		},
		{
			name: "rotation without param",
			mutate: func(r *EvaluateRequest) {
				r.Circuit[0].Param = nil
			},
		},
		{
			name: "unknown pauli axis",
			mutate: func(r *EvaluateRequest) {
				r.Hamiltonian[0].Ops[0].Axis = "Q"
			},
		},
		{
			name: "invalid noise probability",
			mutate: func(r *EvaluateRequest) {
				r.Noise = []NoiseDTO{{Kind: "bit_flip", Probability: 1.5, Level: 1}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ryRequest(0.5)
			tt.mutate(&req)
			rec := postJSON(t, srv, "/api/evaluate", req)
			assert.GreaterOrEqual(t, rec.Code, 400, rec.Body.String())
			assert.Less(t, rec.Code, 500)
		})
	}
}

func TestHandleEvaluateNoisySampling(t *testing.T) {
	srv := newTestServer(t)

	req := EvaluateRequest{
		Circuit: []GateDTO{{Kind: "X", Targets: []int{0}}},
		Hamiltonian: []TermDTO{
			{Re: 1, Ops: []OpDTO{{Qubit: 0, Axis: "Z"}}},
		},
		Samples: 50,
		Noise:   []NoiseDTO{{Kind: "bit_flip", Probability: 1, Level: 1}},
	}

	rec := postJSON(t, srv, "/api/evaluate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// X prepares |1⟩, the certain bit flip returns it to |0⟩.
	assert.InDelta(t, 1.0, resp.Value, 1e-9)
}

func TestHandleGradientAnalytic(t *testing.T) {
	srv := newTestServer(t)

	req := GradientRequest{
		EvaluateRequest: ryRequest(1.0),
		Variable:        "a",
	}

	rec := postJSON(t, srv, "/api/gradient", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, math.Cos(1.0), resp.Value, 1e-9)
}

func TestHandleGradientNumeric(t *testing.T) {
	srv := newTestServer(t)

	req := GradientRequest{
		EvaluateRequest: ryRequest(1.0),
		Variable:        "a",
		Mode:            "numeric",
		Stencil:         "central",
		Stepsize:        1e-4,
	}

	rec := postJSON(t, srv, "/api/gradient", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, math.Cos(1.0), resp.Value, 1e-6)
}

func TestHandleGradientValidation(t *testing.T) {
	srv := newTestServer(t)

	t.Run("missing variable", func(t *testing.T) {
		rec := postJSON(t, srv, "/api/gradient", GradientRequest{EvaluateRequest: ryRequest(1.0)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown mode", func(t *testing.T) {
		rec := postJSON(t, srv, "/api/gradient", GradientRequest{
			EvaluateRequest: ryRequest(1.0), Variable: "a", Mode: "symbolic",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown stencil", func(t *testing.T) {
		rec := postJSON(t, srv, "/api/gradient", GradientRequest{
			EvaluateRequest: ryRequest(1.0), Variable: "a", Mode: "numeric", Stencil: "5-point",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := getPath(t, srv, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"statevector", "unitary"}, resp.Backends)
}

func TestHandleBackends(t *testing.T) {
	srv := newTestServer(t)

	rec := getPath(t, srv, "/api/backends")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BackendsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "statevector", resp.Default)
	assert.Equal(t, []string{"statevector", "unitary"}, resp.Backends)
}

func TestHandleHistoryAfterEvaluate(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv, "/api/evaluate", ryRequest(0.3))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = getPath(t, srv, "/api/history?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []history.Evaluation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "statevector", records[0].Backend)
	assert.InDelta(t, math.Sin(0.3), records[0].Value, 1e-9)
}

func TestHandleHistoryInvalidLimit(t *testing.T) {
	srv := newTestServer(t)

	rec := getPath(t, srv, "/api/history?limit=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
