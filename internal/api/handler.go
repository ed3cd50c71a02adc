// Package api implements the chainhealth REST API: read-only access to
// the latest scores, score history, definitions, and collector status.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chainhealth/chainhealth/internal/store"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// ScoreReader reads persisted score records.
type ScoreReader interface {
	Latest(ctx context.Context, kind scorecard.Kind, id string) (scorecard.ScoreRecord, error)
	Range(ctx context.Context, kind scorecard.Kind, id string, since int64) ([]scorecard.ScoreRecord, error)
}

// MeasurementReader reads the newest raw reading per metric.
type MeasurementReader interface {
	Latest(ctx context.Context, metricID string) (scorecard.Measurement, error)
}

// StatusReader reads collector run outcomes.
type StatusReader interface {
	List(ctx context.Context) ([]store.CollectorStatus, error)
}

// Handler is the top-level API handler for the chainhealth service.
type Handler struct {
	db           *sql.DB
	catalog      *scorecard.Catalog
	scores       ScoreReader
	measurements MeasurementReader
	status       StatusReader
	now          func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(db *sql.DB, catalog *scorecard.Catalog, scores ScoreReader, measurements MeasurementReader, status StatusReader) *Handler {
	return &Handler{
		db:           db,
		catalog:      catalog,
		scores:       scores,
		measurements: measurements,
		status:       status,
		now:          time.Now,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/score", h.handleScore)
	mux.HandleFunc("GET /api/v1/score/history", h.handleScoreHistory)
	mux.HandleFunc("GET /api/v1/pillars", h.handleListPillars)
	mux.HandleFunc("GET /api/v1/pillars/{pillarID}", h.handleGetPillar)
	mux.HandleFunc("GET /api/v1/metrics", h.handleListMetrics)
	mux.HandleFunc("GET /api/v1/metrics/{metricID}", h.handleGetMetric)
	mux.HandleFunc("GET /api/v1/metrics/{metricID}/history", h.handleMetricHistory)
	mux.HandleFunc("GET /api/v1/collectors/status", h.handleCollectorStatus)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// historyDays parses the ?days= query parameter, defaulting to 30 and
// capping at two years.
func historyDays(r *http.Request) int {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}
	if days > 730 {
		days = 730
	}
	return days
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scoreEntry is a persisted score rendered for API responses.
type scoreEntry struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Score     float64  `json:"score"`
	Timestamp int64    `json:"ts"`
	Trend7d   *float64 `json:"trend_7d,omitempty"`
	Trend30d  *float64 `json:"trend_30d,omitempty"`
}

func entryFromRecord(rec scorecard.ScoreRecord, name string) scoreEntry {
	return scoreEntry{
		ID:        rec.ID,
		Name:      name,
		Score:     rec.Score,
		Timestamp: rec.Timestamp,
		Trend7d:   rec.Trend7d,
		Trend30d:  rec.Trend30d,
	}
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	overall, err := h.scores.Latest(ctx, scorecard.KindOverall, scorecard.OverallID)
	if err != nil {
		if errors.Is(err, scorecard.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no score computed yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading score failed")
		return
	}

	pillars := make([]scoreEntry, 0, len(h.catalog.Pillars()))
	for _, def := range h.catalog.Pillars() {
		rec, err := h.scores.Latest(ctx, scorecard.KindPillar, def.PillarID)
		if err != nil {
			if errors.Is(err, scorecard.ErrNotFound) {
				continue
			}
			writeError(w, http.StatusInternalServerError, "loading pillar scores failed")
			return
		}
		pillars = append(pillars, entryFromRecord(rec, def.Name))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overall": entryFromRecord(overall, "Overall"),
		"pillars": pillars,
	})
}

func (h *Handler) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	since := h.now().Unix() - int64(historyDays(r))*86400
	recs, err := h.scores.Range(r.Context(), scorecard.KindOverall, scorecard.OverallID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading history failed")
		return
	}
	entries := make([]scoreEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, entryFromRecord(rec, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handler) handleListPillars(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	type pillarView struct {
		scorecard.PillarDefinition
		Latest *scoreEntry `json:"latest,omitempty"`
	}

	out := make([]pillarView, 0, len(h.catalog.Pillars()))
	for _, def := range h.catalog.Pillars() {
		view := pillarView{PillarDefinition: def}
		rec, err := h.scores.Latest(ctx, scorecard.KindPillar, def.PillarID)
		switch {
		case err == nil:
			entry := entryFromRecord(rec, def.Name)
			view.Latest = &entry
		case !errors.Is(err, scorecard.ErrNotFound):
			writeError(w, http.StatusInternalServerError, "loading pillar scores failed")
			return
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pillars": out})
}

func (h *Handler) handleGetPillar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pillarID := r.PathValue("pillarID")

	def, err := h.catalog.Pillar(pillarID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown pillar")
		return
	}

	metrics := make([]scoreEntry, 0)
	for _, m := range h.catalog.MetricsForPillar(pillarID) {
		rec, err := h.scores.Latest(ctx, scorecard.KindMetric, m.MetricID)
		if err != nil {
			if errors.Is(err, scorecard.ErrNotFound) {
				continue
			}
			writeError(w, http.StatusInternalServerError, "loading metric scores failed")
			return
		}
		metrics = append(metrics, entryFromRecord(rec, m.Name))
	}

	resp := map[string]any{
		"pillar":  def,
		"metrics": metrics,
	}
	rec, err := h.scores.Latest(ctx, scorecard.KindPillar, pillarID)
	if err == nil {
		resp["latest"] = entryFromRecord(rec, def.Name)
	} else if !errors.Is(err, scorecard.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "loading pillar score failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": h.catalog.Metrics()})
}

func (h *Handler) handleGetMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metricID := r.PathValue("metricID")

	def, err := h.catalog.Metric(metricID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown metric")
		return
	}

	resp := map[string]any{"metric": def}

	rec, err := h.scores.Latest(ctx, scorecard.KindMetric, metricID)
	switch {
	case err == nil:
		resp["latest"] = entryFromRecord(rec, def.Name)
	case !errors.Is(err, scorecard.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "loading metric score failed")
		return
	}

	meas, err := h.measurements.Latest(ctx, metricID)
	switch {
	case err == nil:
		resp["measurement"] = meas
	case !errors.Is(err, scorecard.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "loading measurement failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMetricHistory(w http.ResponseWriter, r *http.Request) {
	metricID := r.PathValue("metricID")
	if _, err := h.catalog.Metric(metricID); err != nil {
		writeError(w, http.StatusNotFound, "unknown metric")
		return
	}

	since := h.now().Unix() - int64(historyDays(r))*86400
	recs, err := h.scores.Range(r.Context(), scorecard.KindMetric, metricID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading history failed")
		return
	}
	entries := make([]scoreEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, entryFromRecord(rec, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"metric_id": metricID, "history": entries})
}

func (h *Handler) handleCollectorStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.status.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading collector status failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collectors": statuses})
}
