package scorecard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine computes metric, pillar and overall scores and persists them.
// It is stateless between passes; every pass re-derives everything from the
// stores. The engine provides no scheduling or retry: a pass either completes
// or is aborted by a store failure, and at-most-one pass may run at a time
// (enforced by the surrounding orchestrator).
type Engine struct {
	catalog      *Catalog
	normalizer   *Normalizer
	measurements MeasurementStore
	scores       ScoreStore
	log          *zap.Logger

	now func() time.Time
}

// NewEngine wires a scoring engine from its collaborators.
func NewEngine(catalog *Catalog, normalizer *Normalizer, measurements MeasurementStore, scores ScoreStore, log *zap.Logger) *Engine {
	return &Engine{
		catalog:      catalog,
		normalizer:   normalizer,
		measurements: measurements,
		scores:       scores,
		log:          log,
		now:          time.Now,
	}
}

// WithNow overrides the engine clock for passes.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ScoreMetric converts a raw value into a 0-100 score according to the
// metric's definition. Rank-based directions return Absent(ErrNoDistribution)
// when no percentile snapshot exists; only store I/O failures are returned
// as errors.
func (e *Engine) ScoreMetric(ctx context.Context, def MetricDefinition, value float64) (Score, error) {
	switch def.Direction {
	case TargetBand:
		return Present(scoreTargetBand(*def.TargetMin, *def.TargetMax, value)), nil

	case HigherBetter, LowerBetter:
		rank, err := e.normalizer.Rank(ctx, def.MetricID, value)
		if errors.Is(err, ErrNoDistribution) {
			return Absent(err), nil
		}
		if err != nil {
			return Score{}, err
		}
		if def.Direction == HigherBetter {
			return Present(rank * 100), nil
		}
		return Present((1 - rank) * 100), nil

	default:
		return Absent(fmt.Errorf("metric %s: unknown direction %q", def.MetricID, def.Direction)), nil
	}
}

// scoreTargetBand scores by distance from a target band. In-band values span
// the full 0-100 range around the band center; out-of-band values span only
// 0-50, scaled by distance relative to the violated bound. The asymmetry is
// deliberate and the only clamp is the max(0, ...) on out-of-band scores.
func scoreTargetBand(min, max, value float64) float64 {
	center := (min + max) / 2
	halfRange := (max - min) / 2

	switch {
	case value >= min && value <= max:
		return 100 * (1 - math.Abs(value-center)/halfRange)
	case value < min:
		distance := min - value
		return math.Max(0, 50*(1-distance/min))
	default:
		distance := value - max
		return math.Max(0, 50*(1-distance/max))
	}
}

// ScorePillar aggregates a pillar as the weighted mean of its metrics that
// scored in this pass. Absent metrics are excluded from both the numerator
// and the denominator; if nothing scored, the pillar is absent with
// ErrZeroWeight.
func (e *Engine) ScorePillar(pillarID string, metricScores map[string]Score) Score {
	var weightedSum, totalWeight float64
	for _, def := range e.catalog.MetricsForPillar(pillarID) {
		s, ok := metricScores[def.MetricID]
		if !ok || !s.Present {
			continue
		}
		weightedSum += s.Value * def.Weight
		totalWeight += def.Weight
	}
	if totalWeight == 0 {
		return Absent(fmt.Errorf("pillar %s: %w", pillarID, ErrZeroWeight))
	}
	return Present(weightedSum / totalWeight)
}

// ScoreOverall aggregates the overall score as the weighted mean of the
// pillars that scored in this pass.
func (e *Engine) ScoreOverall(pillarScores map[string]Score) Score {
	var weightedSum, totalWeight float64
	for _, def := range e.catalog.Pillars() {
		s, ok := pillarScores[def.PillarID]
		if !ok || !s.Present {
			continue
		}
		weightedSum += s.Value * def.Weight
		totalWeight += def.Weight
	}
	if totalWeight == 0 {
		return Absent(fmt.Errorf("overall: %w", ErrZeroWeight))
	}
	return Present(weightedSum / totalWeight)
}

// Trend computes the percentage change of the current score against the most
// recent persisted score at or before asOf - days (nearest-prior sample, no
// interpolation). It returns nil when no historical sample exists or the
// historical score is zero; only store I/O failures are returned as errors.
func (e *Engine) Trend(ctx context.Context, kind Kind, id string, days int, current float64, asOf int64) (*float64, error) {
	cutoff := asOf - int64(days)*86400
	hist, err := e.scores.LatestBefore(ctx, kind, id, cutoff)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trend lookup %s/%s: %w", kind, id, err)
	}
	if hist.Score == 0 {
		return nil, nil
	}
	t := (current - hist.Score) / hist.Score * 100
	return &t, nil
}

// ComputeAll runs one full recompute pass: refresh percentile snapshots,
// score every metric into a transient map, aggregate pillars from that same
// map, aggregate the overall score from the just-computed pillar scores,
// compute trends, and persist all records. Aggregation at each level consumes
// only the current pass's lower-level results, never stale persisted values,
// so a single metric failure cannot mix data from different points in time.
func (e *Engine) ComputeAll(ctx context.Context) (*PassResult, error) {
	ts := e.now().UTC().Unix()
	pass := &PassResult{
		PassID:    uuid.NewString(),
		Timestamp: ts,
		Metrics:   make(map[string]Score),
		Pillars:   make(map[string]Score),
	}
	log := e.log.With(zap.String("pass", pass.PassID))

	metricDefs := e.catalog.Metrics()
	metricIDs := make([]string, len(metricDefs))
	for i, def := range metricDefs {
		metricIDs[i] = def.MetricID
	}
	if err := e.normalizer.RefreshAll(ctx, metricIDs, ts); err != nil {
		return nil, fmt.Errorf("refresh percentiles: %w", err)
	}

	for _, def := range metricDefs {
		score, err := e.scoreLatest(ctx, def)
		if err != nil {
			return nil, err
		}
		pass.Metrics[def.MetricID] = score
		if !score.Present {
			log.Warn("metric score absent",
				zap.String("metric", def.MetricID), zap.Error(score.Reason))
		}
	}

	for _, def := range e.catalog.Pillars() {
		score := e.ScorePillar(def.PillarID, pass.Metrics)
		pass.Pillars[def.PillarID] = score
		if !score.Present {
			log.Warn("pillar score absent",
				zap.String("pillar", def.PillarID), zap.Error(score.Reason))
		}
	}

	pass.Overall = e.ScoreOverall(pass.Pillars)
	if !pass.Overall.Present {
		log.Warn("overall score absent", zap.Error(pass.Overall.Reason))
	}

	for _, def := range metricDefs {
		if err := e.appendRecord(ctx, pass, KindMetric, def.MetricID, pass.Metrics[def.MetricID]); err != nil {
			return nil, err
		}
	}
	for _, def := range e.catalog.Pillars() {
		if err := e.appendRecord(ctx, pass, KindPillar, def.PillarID, pass.Pillars[def.PillarID]); err != nil {
			return nil, err
		}
	}
	if err := e.appendRecord(ctx, pass, KindOverall, OverallID, pass.Overall); err != nil {
		return nil, err
	}

	for _, rec := range pass.Records {
		if err := e.scores.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist score %s/%s: %w", rec.Kind, rec.ID, err)
		}
	}

	log.Info("recompute pass complete",
		zap.Int("metrics", len(pass.Metrics)),
		zap.Int("pillars", len(pass.Pillars)),
		zap.Int("records", len(pass.Records)),
		zap.Bool("overall", pass.Overall.Present))

	return pass, nil
}

// scoreLatest scores a metric from its most recent raw measurement.
func (e *Engine) scoreLatest(ctx context.Context, def MetricDefinition) (Score, error) {
	latest, err := e.measurements.Latest(ctx, def.MetricID)
	if errors.Is(err, ErrNotFound) {
		return Absent(fmt.Errorf("metric %s: %w", def.MetricID, ErrNoMeasurement)), nil
	}
	if err != nil {
		return Score{}, fmt.Errorf("latest measurement %s: %w", def.MetricID, err)
	}
	return e.ScoreMetric(ctx, def, latest.Value)
}

// appendRecord builds the persisted record for one present score, including
// its trailing trends. Absent scores produce no record.
func (e *Engine) appendRecord(ctx context.Context, pass *PassResult, kind Kind, id string, score Score) error {
	if !score.Present {
		return nil
	}
	trend7, err := e.Trend(ctx, kind, id, 7, score.Value, pass.Timestamp)
	if err != nil {
		return err
	}
	trend30, err := e.Trend(ctx, kind, id, 30, score.Value, pass.Timestamp)
	if err != nil {
		return err
	}
	pass.Records = append(pass.Records, ScoreRecord{
		Kind:      kind,
		ID:        id,
		Timestamp: pass.Timestamp,
		Score:     score.Value,
		Trend7d:   trend7,
		Trend30d:  trend30,
	})
	return nil
}
