// Package handlers provides HTTP request handlers for the trainer API.
package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"securityvibe.com/trainer/internal/trainer/reports"
	"securityvibe.com/trainer/internal/trainer/simulation"
	"securityvibe.com/trainer/internal/trainer/storage"
	"securityvibe.com/trainer/internal/trainer/tracking"
	"securityvibe.com/trainer/pkg/protocol"
)

// Handlers contains all API handlers.
type Handlers struct {
	db        *storage.DB
	sim       *simulation.Service
	validate  *validator.Validate
	version   string
	startTime time.Time
	logger    zerolog.Logger
}

// New creates a new Handlers instance.
func New(db *storage.DB, sim *simulation.Service, version string, startTime time.Time, logger zerolog.Logger) *Handlers {
	return &Handlers{
		db:        db,
		sim:       sim,
		validate:  validator.New(),
		version:   version,
		startTime: startTime,
		logger:    logger.With().Str("component", "handlers").Logger(),
	}
}

// ============================================================
// Simulation Handlers
// ============================================================

// LaunchSimulation handles POST /api/simulations
func (h *Handlers) LaunchSimulation(w http.ResponseWriter, r *http.Request) {
	var req protocol.LaunchSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", "A valid recipient email and a category are required")
		return
	}

	result, err := h.sim.Launch(r.Context(), req.Recipient, req.Category)
	if err != nil {
		h.logger.Error().Err(err).Str("recipient", req.Recipient).Msg("Failed to launch simulation")
		h.writeError(w, r, http.StatusBadGateway, "launch_failed", "Failed to launch simulation")
		return
	}

	h.writeJSON(w, http.StatusCreated, protocol.LaunchSimulationResponse{
		TrackingID: result.TrackingID,
		Recipient:  result.Recipient,
		Category:   result.Category,
		Subject:    result.Subject,
	})
}

// GetHistory handles GET /api/simulations
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")

	records := h.sim.History(r.Context(), recipient)

	infos := make([]protocol.TrainingRecordInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, protocol.TrainingRecordInfo{
			TrackingID: rec.TrackingID,
			Recipient:  rec.Recipient,
			Category:   rec.Category,
			Status:     rec.Status,
			SentAt:     rec.SentAt,
			ClickedAt:  rec.ClickedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, protocol.HistoryResponse{
		Records: infos,
		Total:   len(infos),
	})
}

// GetVulnerabilityReport handles GET /api/report
func (h *Handlers) GetVulnerabilityReport(w http.ResponseWriter, r *http.Request) {
	categories := h.sim.VulnerabilityReport(r.Context())

	total := 0
	for _, count := range categories {
		total += count
	}

	h.writeJSON(w, http.StatusOK, protocol.VulnerabilityReportResponse{
		Categories:  categories,
		TotalClicks: total,
	})
}

// GetBriefing handles GET /api/briefing
func (h *Handlers) GetBriefing(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = "General Security Trends"
	}

	summary, err := h.sim.Briefing(r.Context(), topic)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("Failed to generate briefing")
		h.writeError(w, r, http.StatusBadGateway, "generation_failed", "Failed to generate briefing")
		return
	}

	h.writeJSON(w, http.StatusOK, protocol.BriefingResponse{
		Topic:   topic,
		Summary: summary,
	})
}

// ListBounces handles GET /api/bounces
func (h *Handlers) ListBounces(w http.ResponseWriter, r *http.Request) {
	events := h.sim.Bounces(r.Context())

	infos := make([]protocol.BounceInfo, 0, len(events))
	for _, ev := range events {
		infos = append(infos, protocol.BounceInfo{
			ID:         ev.ID,
			Recipient:  ev.Recipient,
			Subject:    ev.Subject,
			Reason:     ev.Reason,
			ObservedAt: ev.ObservedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, protocol.BounceListResponse{
		Bounces: infos,
		Total:   len(infos),
	})
}

// ============================================================
// Click Tracking
// ============================================================

// TrackClick handles GET /track
//
// Always renders the training page with HTTP 200: a missing, stale, or
// forged tracking id is indistinguishable from a malformed link here, and
// the training value of the page never depends on the click being logged.
func (h *Handlers) TrackClick(w http.ResponseWriter, r *http.Request) {
	trackingID, category := tracking.ExtractClick(r)

	clicked, reportHTML := h.sim.HandleClick(r.Context(), trackingID)
	if clicked {
		h.logger.Info().Str("tracking_id", trackingID).Msg("Click attributed")
	}

	if reportHTML == "" && category != "" {
		reportHTML = fmt.Sprintf(
			"<h2>Report Pending</h2><p>The full vulnerability report on '%s' is not available yet. Check the dashboard for the complete analysis.</p>",
			html.EscapeString(category))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(reports.RenderPage(reportHTML))); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write training page")
	}
}

// ============================================================
// Health Handlers
// ============================================================

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus, err := h.db.Health(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Database health check failed")
	}

	status := "ok"
	if dbStatus != "healthy" {
		status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, protocol.HealthResponse{
		Status:   status,
		Version:  h.version,
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
		Database: dbStatus,
		Time:     time.Now(),
	})
}

// ReadyCheck handles GET /ready
func (h *Handlers) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "not_ready", "Database is not reachable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// ============================================================
// Helper methods
// ============================================================

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := protocol.ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}
	h.writeJSON(w, status, resp)
}
