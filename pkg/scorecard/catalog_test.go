package scorecard_test

import (
	"errors"
	"testing"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

func f64(v float64) *float64 { return &v }

func testPillars() []scorecard.PillarDefinition {
	return []scorecard.PillarDefinition{
		{PillarID: "security", Name: "Security", Weight: 0.30},
		{PillarID: "adoption", Name: "Adoption", Weight: 0.15},
	}
}

func TestNewCatalogValid(t *testing.T) {
	metrics := []scorecard.MetricDefinition{
		{MetricID: "security.hashprice", PillarID: "security", Direction: scorecard.HigherBetter, Weight: 0.25},
		{MetricID: "adoption.rbf_activity", PillarID: "adoption", Direction: scorecard.TargetBand,
			Weight: 0.35, TargetMin: f64(2), TargetMax: f64(15)},
	}

	c, err := scorecard.NewCatalog(metrics, testPillars())
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}

	m, err := c.Metric("security.hashprice")
	if err != nil {
		t.Fatalf("Metric() error: %v", err)
	}
	if m.PillarID != "security" {
		t.Errorf("PillarID = %q, want security", m.PillarID)
	}

	if got := c.MetricsForPillar("adoption"); len(got) != 1 || got[0].MetricID != "adoption.rbf_activity" {
		t.Errorf("MetricsForPillar(adoption) = %v", got)
	}

	if _, err := c.Metric("nope"); !errors.Is(err, scorecard.ErrMissingDefinition) {
		t.Errorf("Metric(nope) error = %v, want ErrMissingDefinition", err)
	}
	if _, err := c.Pillar("nope"); !errors.Is(err, scorecard.ErrMissingDefinition) {
		t.Errorf("Pillar(nope) error = %v, want ErrMissingDefinition", err)
	}
}

func TestNewCatalogRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		metric scorecard.MetricDefinition
	}{
		{
			name:   "unknown direction",
			metric: scorecard.MetricDefinition{MetricID: "m", PillarID: "security", Direction: "sideways_better"},
		},
		{
			name:   "target_band without bounds",
			metric: scorecard.MetricDefinition{MetricID: "m", PillarID: "security", Direction: scorecard.TargetBand},
		},
		{
			name: "inverted band",
			metric: scorecard.MetricDefinition{MetricID: "m", PillarID: "security",
				Direction: scorecard.TargetBand, TargetMin: f64(10), TargetMax: f64(2)},
		},
		{
			name: "band on rank direction",
			metric: scorecard.MetricDefinition{MetricID: "m", PillarID: "security",
				Direction: scorecard.HigherBetter, TargetMin: f64(1), TargetMax: f64(2)},
		},
		{
			name:   "negative weight",
			metric: scorecard.MetricDefinition{MetricID: "m", PillarID: "security", Direction: scorecard.LowerBetter, Weight: -1},
		},
		{
			name:   "unknown pillar",
			metric: scorecard.MetricDefinition{MetricID: "m", PillarID: "ghosts", Direction: scorecard.LowerBetter},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scorecard.NewCatalog([]scorecard.MetricDefinition{tc.metric}, testPillars())
			if err == nil {
				t.Error("NewCatalog() accepted invalid metric")
			}
		})
	}
}

func TestParseCatalogDefaultsWeight(t *testing.T) {
	data := []byte(`
pillars:
  - id: security
    name: Security
    weight: 0.30
  - id: decent
    name: Decentralization
metrics:
  - id: security.hashprice
    pillar: security
    name: Hashprice
    direction: higher_better
  - id: decent.pool_hhi
    pillar: decent
    name: Mining pool HHI
    direction: lower_better
    weight: 0.4
  - id: security.fee_band
    pillar: security
    direction: target_band
    target_min: 2
    target_max: 15
`)

	c, err := scorecard.ParseCatalog(data)
	if err != nil {
		t.Fatalf("ParseCatalog() error: %v", err)
	}

	m, _ := c.Metric("security.hashprice")
	if m.Weight != 1.0 {
		t.Errorf("unset metric weight = %v, want 1.0", m.Weight)
	}
	m, _ = c.Metric("decent.pool_hhi")
	if m.Weight != 0.4 {
		t.Errorf("explicit metric weight = %v, want 0.4", m.Weight)
	}

	p, _ := c.Pillar("decent")
	if p.Weight != 1.0 {
		t.Errorf("unset pillar weight = %v, want 1.0", p.Weight)
	}

	band, _ := c.Metric("security.fee_band")
	if band.TargetMin == nil || *band.TargetMin != 2 || band.TargetMax == nil || *band.TargetMax != 15 {
		t.Errorf("target band = %v..%v, want 2..15", band.TargetMin, band.TargetMax)
	}
}

func TestParseCatalogRejectsBadYAML(t *testing.T) {
	if _, err := scorecard.ParseCatalog([]byte("pillars: [")); err == nil {
		t.Error("ParseCatalog() accepted malformed YAML")
	}
}
