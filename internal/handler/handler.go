package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"arpledger/internal/domain"
	"arpledger/internal/reconciler"
	"arpledger/internal/repository/sqlite"
)

// EventStore is the journal behind /api/events and /api/stats
type EventStore interface {
	ListEvents(ctx context.Context, limit int) ([]domain.ReconciliationEvent, error)
	Stats(ctx context.Context) (*sqlite.EventStats, error)
}

// HistoryStore serves per-ip ledger history. Only the embedded ledger has one.
type HistoryStore interface {
	History(ctx context.Context, ip string) ([]domain.Binding, error)
}

// Status exposes the running reconciler
type Status interface {
	State() reconciler.State
	Known() domain.Snapshot
	Totals() reconciler.Totals
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ErrorResponse is the JSON body of every error
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusResponse is returned by /api/status
type StatusResponse struct {
	State    string            `json:"state"`
	Bindings int               `json:"bindings"`
	Totals   reconciler.Totals `json:"totals"`
}

// Handler serves the reconciler's read-only views
type Handler struct {
	events  EventStore
	history HistoryStore
	status  Status
	stream  http.Handler
}

// New creates a handler. Any dependency may be nil; its routes then
// answer 404.
func New(events EventStore, status Status, stream http.Handler) *Handler {
	return &Handler{events: events, status: status, stream: stream}
}

// SetHistoryStore enables /api/history/{ip}
func (h *Handler) SetHistoryStore(s HistoryStore) {
	h.history = s
}

// Register adds all routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/events", h.ListEvents)
	mux.HandleFunc("GET /api/stats", h.Stats)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/known", h.Known)
	mux.HandleFunc("GET /api/history/{ip}", h.History)
	if h.stream != nil {
		mux.Handle("GET /events", h.stream)
	}
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// ListEvents returns the most recent events, newest first
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, "Event journal not configured", "", http.StatusNotFound)
		return
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "Invalid limit", v, http.StatusBadRequest)
			return
		}
		limit = min(n, maxLimit)
	}

	events, err := h.events.ListEvents(r.Context(), limit)
	if err != nil {
		logrus.Errorf("Handler: failed to list events: %v", err)
		writeError(w, "Failed to list events", err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []domain.ReconciliationEvent{}
	}
	writeJSON(w, events, http.StatusOK)
}

// Stats returns event counts by type and observer
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, "Event journal not configured", "", http.StatusNotFound)
		return
	}

	stats, err := h.events.Stats(r.Context())
	if err != nil {
		logrus.Errorf("Handler: failed to compute stats: %v", err)
		writeError(w, "Failed to compute stats", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats, http.StatusOK)
}

// Status returns the reconciler's state and running totals
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeError(w, "Reconciler not attached", "", http.StatusNotFound)
		return
	}
	writeJSON(w, StatusResponse{
		State:    h.status.State().String(),
		Bindings: len(h.status.Known()),
		Totals:   h.status.Totals(),
	}, http.StatusOK)
}

// Known returns Known State as a list ordered by ip
func (h *Handler) Known(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeError(w, "Reconciler not attached", "", http.StatusNotFound)
		return
	}
	known := h.status.Known()
	out := make([]domain.Binding, 0, len(known))
	for _, ip := range known.IPs() {
		out = append(out, known[ip])
	}
	writeJSON(w, out, http.StatusOK)
}

// History returns every binding recorded for one ip
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, "History not available for this ledger", "", http.StatusNotFound)
		return
	}

	ip, err := domain.NormalizeIP(r.PathValue("ip"))
	if err != nil {
		writeError(w, "Invalid ip", err.Error(), http.StatusBadRequest)
		return
	}

	history, err := h.history.History(r.Context(), ip)
	if err != nil {
		logrus.Errorf("Handler: failed to load history for %s: %v", ip, err)
		writeError(w, "Failed to load history", err.Error(), http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []domain.Binding{}
	}
	writeJSON(w, history, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.Warnf("Handler: failed to encode JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: msg, Details: details}, statusCode)
}
