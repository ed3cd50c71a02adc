// Package exporter publishes the latest scores and collector health as
// Prometheus metrics. Gauges are refreshed from the stores on a fixed
// cadence rather than at scrape time, keeping scrapes cheap.
package exporter

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainhealth/chainhealth/internal/store"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// ScoreReader reads the newest persisted score per (kind, id).
type ScoreReader interface {
	Latest(ctx context.Context, kind scorecard.Kind, id string) (scorecard.ScoreRecord, error)
}

// MeasurementReader reads the newest raw reading per metric.
type MeasurementReader interface {
	Latest(ctx context.Context, metricID string) (scorecard.Measurement, error)
}

// StatusReader reads collector run outcomes.
type StatusReader interface {
	List(ctx context.Context) ([]store.CollectorStatus, error)
}

// Exporter owns a private Prometheus registry holding the chainhealth
// gauges.
type Exporter struct {
	catalog      *scorecard.Catalog
	scores       ScoreReader
	measurements MeasurementReader
	status       StatusReader
	log          *zap.Logger

	registry *prometheus.Registry

	overallScore prometheus.Gauge
	lastPassTS   prometheus.Gauge
	pillarScore  *prometheus.GaugeVec
	metricScore  *prometheus.GaugeVec
	metricValue  *prometheus.GaugeVec
	collectorUp  *prometheus.GaugeVec
	failureRuns  *prometheus.GaugeVec
}

func New(catalog *scorecard.Catalog, scores ScoreReader, measurements MeasurementReader, status StatusReader, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Exporter{
		catalog:      catalog,
		scores:       scores,
		measurements: measurements,
		status:       status,
		log:          log,
		registry:     prometheus.NewRegistry(),
		overallScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainhealth_overall_score",
			Help: "Overall network health score (0-100).",
		}),
		lastPassTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainhealth_last_pass_timestamp_seconds",
			Help: "Unix timestamp of the newest persisted overall score.",
		}),
		pillarScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainhealth_pillar_score",
			Help: "Pillar health score (0-100).",
		}, []string{"pillar"}),
		metricScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainhealth_metric_score",
			Help: "Metric health score (0-100).",
		}, []string{"metric", "pillar"}),
		metricValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainhealth_metric_value",
			Help: "Latest raw measurement value per metric.",
		}, []string{"metric"}),
		collectorUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainhealth_collector_up",
			Help: "1 when the collector's last run succeeded.",
		}, []string{"collector"}),
		failureRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainhealth_collector_consecutive_failures",
			Help: "Consecutive failed runs per collector.",
		}, []string{"collector"}),
	}
	e.registry.MustRegister(
		e.overallScore, e.lastPassTS, e.pillarScore,
		e.metricScore, e.metricValue, e.collectorUp, e.failureRuns,
	)
	return e
}

// Handler serves the text exposition format for this exporter's
// registry only.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Refresh reloads every gauge from the stores. Absent scores leave the
// gauge untouched; store I/O failures abort.
func (e *Exporter) Refresh(ctx context.Context) error {
	rec, err := e.scores.Latest(ctx, scorecard.KindOverall, scorecard.OverallID)
	switch {
	case err == nil:
		e.overallScore.Set(rec.Score)
		e.lastPassTS.Set(float64(rec.Timestamp))
	case !errors.Is(err, scorecard.ErrNotFound):
		return err
	}

	for _, def := range e.catalog.Pillars() {
		rec, err := e.scores.Latest(ctx, scorecard.KindPillar, def.PillarID)
		if err != nil {
			if errors.Is(err, scorecard.ErrNotFound) {
				continue
			}
			return err
		}
		e.pillarScore.WithLabelValues(def.PillarID).Set(rec.Score)
	}

	for _, def := range e.catalog.Metrics() {
		rec, err := e.scores.Latest(ctx, scorecard.KindMetric, def.MetricID)
		switch {
		case err == nil:
			e.metricScore.WithLabelValues(def.MetricID, def.PillarID).Set(rec.Score)
		case !errors.Is(err, scorecard.ErrNotFound):
			return err
		}

		meas, err := e.measurements.Latest(ctx, def.MetricID)
		switch {
		case err == nil:
			e.metricValue.WithLabelValues(def.MetricID).Set(meas.Value)
		case !errors.Is(err, scorecard.ErrNotFound):
			return err
		}
	}

	statuses, err := e.status.List(ctx)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		up := 0.0
		if st.ConsecutiveFailures == 0 {
			up = 1.0
		}
		e.collectorUp.WithLabelValues(st.Collector).Set(up)
		e.failureRuns.WithLabelValues(st.Collector).Set(float64(st.ConsecutiveFailures))
	}

	e.log.Debug("refreshed prometheus gauges")
	return nil
}
