package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
	"github.com/italolelis/d4sign_downloader/internal/orchestrator"
)

type StatusSource interface {
	Status() orchestrator.Status
}

// StatusHandler serves the read-only operator endpoints.
type StatusHandler struct {
	source  StatusSource
	metrics http.Handler
	started time.Time
}

func NewStatusHandler(source StatusSource, metrics http.Handler) *StatusHandler {
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}

	return &StatusHandler{
		source:  source,
		metrics: metrics,
		started: time.Now(),
	}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HandleHealth)
	r.Get("/status", h.HandleStatus)
	r.Method(http.MethodGet, "/metrics", h.metrics)

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, healthResponse{Status: "ok", Uptime: time.Since(h.started).Round(time.Second).String()})
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.source.Status())
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}
