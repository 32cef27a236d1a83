package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/varqo/varqo/internal/modules/compiler"
	"github.com/varqo/varqo/internal/modules/history"
)

// SystemHandlers serves health, backend and history endpoints.
type SystemHandlers struct {
	registry *compiler.Registry
	history  *history.Service
	log      zerolog.Logger
	started  time.Time
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(r *compiler.Registry, h *history.Service, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		registry: r,
		history:  h,
		log:      log.With().Str("handler", "system").Logger(),
		started:  time.Now(),
	}
}

// HealthResponse reports process and host status.
type HealthResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	Backends      []string `json:"backends"`
	MemoryUsedPct float64  `json:"memory_used_pct,omitempty"`
}

// HandleHealth handles GET /api/health.
func (s *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		Backends:      s.registry.Names(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryUsedPct = vm.UsedPercent
	}
	writeJSON(w, s.log, resp)
}

// BackendsResponse lists the registered execution backends. The first entry
// is the default.
type BackendsResponse struct {
	Default  string   `json:"default"`
	Backends []string `json:"backends"`
}

// HandleBackends handles GET /api/backends.
func (s *SystemHandlers) HandleBackends(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	resp := BackendsResponse{Backends: names}
	if len(names) > 0 {
		resp.Default = names[0]
	}
	writeJSON(w, s.log, resp)
}

// HandleHistory handles GET /api/history?limit=N.
func (s *SystemHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := s.history.Recent(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list evaluation history")
		http.Error(w, "Failed to list history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.Evaluation{}
	}
	writeJSON(w, s.log, records)
}
