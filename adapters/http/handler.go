// Package http provides HTTP handlers for the guard service.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/strandly/edgeguard/adapters/metrics"
	"github.com/strandly/edgeguard/app"
	"github.com/strandly/edgeguard/domain/guard"
	"github.com/strandly/edgeguard/domain/usage"
	"github.com/strandly/edgeguard/ports"
)

// Identity and control headers. The endpoint adapters forward these from
// the original client request.
const (
	HeaderUserID      = "x-user-id"
	HeaderFirebaseUID = "x-firebase-uid"
	HeaderTier        = "x-tier"
	HeaderAdminToken  = "x-admin-token"
)

const maxBodyBytes = 64 << 10 // guard/usage payloads are tiny

// Handler exposes the guard kit over HTTP to the endpoint adapters.
type Handler struct {
	guard     *app.GuardService
	resolver  *app.Resolver
	telemetry *app.TelemetryService
	clock     ports.Clock
	logger    zerolog.Logger

	metrics     *metrics.Collector // optional
	metricsPath string             // "" disables the endpoint
}

// NewHandler creates a new HTTP handler.
func NewHandler(g *app.GuardService, r *app.Resolver, t *app.TelemetryService, clock ports.Clock, logger zerolog.Logger) *Handler {
	return &Handler{
		guard:     g,
		resolver:  r,
		telemetry: t,
		clock:     clock,
		logger:    logger,
	}
}

// EnableMetrics attaches a Prometheus collector and serves it at path.
func (h *Handler) EnableMetrics(m *metrics.Collector, path string) {
	if path == "" {
		path = "/metrics"
	}
	h.metrics = m
	h.metricsPath = path
}

// Router builds the chi router for all endpoints.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	if h.metricsPath != "" {
		r.Handle(h.metricsPath, promhttp.Handler())
	}

	r.Post("/v1/guard", h.handleGuard)
	r.Post("/v1/usage", h.handleUsage)
	r.Get("/v1/usage/summary", h.handleUsageSummary)

	return r
}

// guardRequest is the inbound body from an endpoint adapter.
type guardRequest struct {
	Endpoint           string `json:"endpoint"`
	Feature            string `json:"feature"`
	Priority           string `json:"priority"`
	EstimatedCostCents int64  `json:"estimated_cost_cents"`
}

// guardResponse mirrors guard.Decision on the wire.
type guardResponse struct {
	OK            bool   `json:"ok"`
	Mode          string `json:"mode"`
	Reason        string `json:"reason,omitempty"`
	RetryAfterSec int64  `json:"retry_after_sec,omitempty"`
}

func (h *Handler) handleGuard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req guardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res := h.resolver.Resolve(identityFrom(r), r.Header.Get(HeaderTier), r.Header.Get(HeaderAdminToken))

	gc := guard.Context{
		Identity:  res.Identity,
		Tier:      res.Tier,
		Endpoint:  req.Endpoint,
		Feature:   guard.Feature(req.Feature),
		Priority:  guard.ParsePriority(req.Priority),
		CostCents: req.EstimatedCostCents,
		Bypass:    res.Bypass,
	}

	d, err := h.guard.Check(r.Context(), gc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if h.metrics != nil {
		h.metrics.DecisionDuration.WithLabelValues(req.Endpoint).Observe(time.Since(start).Seconds())
	}

	for k, v := range d.Headers {
		w.Header().Set(k, v)
	}
	status := http.StatusOK
	if !d.OK {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, guardResponse{
		OK:            d.OK,
		Mode:          string(d.Mode),
		Reason:        d.Reason,
		RetryAfterSec: d.RetryAfterSec,
	})
}

// usageReport is the fire-and-forget outcome report from an endpoint
// adapter. Identity arrives raw and is hashed by the telemetry service
// before storage.
type usageReport struct {
	Identity  string `json:"identity"`
	Endpoint  string `json:"endpoint"`
	Tier      string `json:"tier"`
	Feature   string `json:"feature"`
	Priority  string `json:"priority"`
	Mode      string `json:"mode"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latency_ms"`
	Status    int    `json:"status"`
	CacheHit  bool   `json:"cache_hit"`
	Note      string `json:"note,omitempty"`
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	var rep usageReport
	if err := decodeJSON(r, &rep); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.telemetry.Record(rep.Identity, usage.Entry{
		Endpoint:  rep.Endpoint,
		Tier:      guard.ParseTier(rep.Tier),
		Feature:   guard.Feature(rep.Feature),
		Priority:  guard.ParsePriority(rep.Priority),
		Mode:      guard.Mode(rep.Mode),
		OK:        rep.OK,
		LatencyMs: rep.LatencyMs,
		Status:    rep.Status,
		CacheHit:  rep.CacheHit,
		Note:      rep.Note,
	})

	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (h *Handler) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if !h.resolver.IsAdmin(r.Header.Get(HeaderAdminToken)) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin token required"})
		return
	}

	day := r.URL.Query().Get("day")
	if day == "" {
		day = guard.DayKey(h.clock.Now())
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
		return
	}

	s, err := h.telemetry.Summary(r.Context(), day)
	if err != nil {
		h.logger.Error().Err(err).Str("day", day).Msg("usage summary failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "summary unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logRequests emits one structured line per request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// identityFrom prefers the explicit user id header, falling back to the
// Firebase uid the mobile clients send.
func identityFrom(r *http.Request) string {
	if id := r.Header.Get(HeaderUserID); id != "" {
		return id
	}
	return r.Header.Get(HeaderFirebaseUID)
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
