// Package api exposes the operational HTTP surface: liveness, readiness,
// an engine status snapshot, and the delivery history.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
	"github.com/Toru2004/PlateVision-BE/internal/engine"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const readyCheckTimeout = 2 * time.Second

// StatusProvider exposes the engine's point-in-time snapshot.
type StatusProvider interface {
	Status() engine.Status
}

// HistoryStore reads the delivery audit trail. Optional.
type HistoryStore interface {
	ListByVehicle(ctx context.Context, key domain.VehicleKey, limit, offset int) ([]domain.DeliveryRecord, error)
}

// ReadyCheck probes one dependency for the /readyz endpoint.
type ReadyCheck func(ctx context.Context) error

type Handler struct {
	engine  StatusProvider
	history HistoryStore // optional, nil = endpoint disabled
	checks  map[string]ReadyCheck
}

func NewHandler(engine StatusProvider) *Handler {
	return &Handler{engine: engine, checks: make(map[string]ReadyCheck)}
}

// WithHistory enables the /deliveries endpoint.
func (h *Handler) WithHistory(store HistoryStore) *Handler {
	h.history = store
	return h
}

// WithReadyCheck registers a named dependency probe for /readyz.
func (h *Handler) WithReadyCheck(name string, check ReadyCheck) *Handler {
	h.checks[name] = check
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch r.URL.Path {
	case "/healthz":
		h.healthz(w, r)
	case "/readyz":
		h.readyz(w, r)
	case "/status":
		h.status(w, r)
	case "/deliveries":
		h.deliveries(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /healthz and /readyz response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	writeJSON(w, status, resp)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

func (h *Handler) deliveries(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "delivery history not configured")
		return
	}

	vehicle := r.URL.Query().Get("vehicle")
	if vehicle == "" {
		writeError(w, http.StatusBadRequest, "vehicle query parameter required")
		return
	}

	limit, offset := parsePagination(r)
	records, err := h.history.ListByVehicle(r.Context(), domain.VehicleKey(vehicle), limit, offset)
	if err != nil {
		log.Printf("api: list deliveries for vehicle=%s failed: %v", vehicle, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []domain.DeliveryRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
