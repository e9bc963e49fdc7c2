package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/di"
	"github.com/aristath/tradeledger/internal/reliability"
	"github.com/aristath/tradeledger/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves operational endpoints: status, jobs and backups.
type SystemHandlers struct {
	container *di.Container
	dataDir   string
	startedAt time.Time
	log       zerolog.Logger

	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(container *di.Container, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		container:  container,
		dataDir:    dataDir,
		startedAt:  time.Now(),
		log:        log.With().Str("handler", "system").Logger(),
		cpuPercent: sampleCPU,
		memPercent: sampleMemory,
	}
}

// RegisterRoutes registers all system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}/run", h.HandleRunJob)
		r.Get("/backups", h.HandleListBackups)
	})
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status        string                `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64                 `json:"uptime_seconds"`
	CPUPercent    float64               `json:"cpu_percent"`
	MemoryPercent float64               `json:"memory_percent"`
	Database      *database.Stats       `json:"database,omitempty"`
	CachedPrices  int                   `json:"cached_prices"`
	StreamClients int                   `json:"stream_clients"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
	BackupsActive bool                  `json:"backups_enabled"`
	LastChecked   string                `json:"last_checked"`
}

// HandleSystemStatus reports process and ledger health.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Jobs:          []scheduler.JobStatus{},
		BackupsActive: h.container.BackupService != nil,
		LastChecked:   time.Now().UTC().Format(time.RFC3339),
	}

	if cpuPct, err := h.cpuPercent(); err == nil {
		response.CPUPercent = cpuPct
	} else {
		h.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	}
	if memPct, err := h.memPercent(); err == nil {
		response.MemoryPercent = memPct
	} else {
		h.log.Warn().Err(err).Msg("Failed to sample memory usage")
	}

	stats, err := h.container.LedgerDB.GetStats(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to collect database stats")
		response.Status = "degraded"
	}
	response.Database = stats

	if h.container.PriceCache != nil {
		response.CachedPrices = h.container.PriceCache.Len()
	}
	if h.container.Hub != nil {
		response.StreamClients = h.container.Hub.ClientCount()
	}
	if h.container.Scheduler != nil {
		response.Jobs = h.container.Scheduler.Statuses()
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleJobsStatus lists every job and the outcome of its last run.
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.container.Scheduler != nil {
		jobs = h.container.Scheduler.Statuses()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs}, h.log)
}

// HandleRunJob runs a registered job synchronously.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.container.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running", h.log)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run requested")
	err := h.container.Scheduler.RunByName(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown job: "+name, h.log)
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"job":   name,
			"error": err.Error(),
		}, h.log)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"job": name, "status": "completed"}, h.log)
	}
}

// HandleListBackups lists stored ledger backups, newest first.
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.container.BackupService == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
			"backups": []reliability.BackupInfo{},
		}, h.log)
		return
	}

	backups, err := h.container.BackupService.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		writeError(w, http.StatusBadGateway, "failed to list backups", h.log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": true, "backups": backups}, h.log)
}

func sampleCPU() (float64, error) {
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

func sampleMemory() (float64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, log zerolog.Logger) {
	writeJSON(w, status, map[string]string{"error": message}, log)
}
