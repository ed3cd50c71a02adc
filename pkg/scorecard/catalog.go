package scorecard

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is the immutable definition catalog: every metric and pillar the
// engine knows about. It is constructed once, validated, and passed
// explicitly into the engine; nothing in the engine mutates it.
type Catalog struct {
	metrics  map[string]MetricDefinition
	pillars  map[string]PillarDefinition
	byPillar map[string][]MetricDefinition
}

// NewCatalog validates the given definitions and builds a Catalog.
func NewCatalog(metrics []MetricDefinition, pillars []PillarDefinition) (*Catalog, error) {
	c := &Catalog{
		metrics:  make(map[string]MetricDefinition, len(metrics)),
		pillars:  make(map[string]PillarDefinition, len(pillars)),
		byPillar: make(map[string][]MetricDefinition),
	}

	for _, p := range pillars {
		if p.PillarID == "" {
			return nil, fmt.Errorf("pillar with empty id")
		}
		if _, dup := c.pillars[p.PillarID]; dup {
			return nil, fmt.Errorf("duplicate pillar %q", p.PillarID)
		}
		if p.Weight < 0 {
			return nil, fmt.Errorf("pillar %q: negative weight %v", p.PillarID, p.Weight)
		}
		c.pillars[p.PillarID] = p
	}

	for _, m := range metrics {
		if err := validateMetric(m); err != nil {
			return nil, err
		}
		if _, dup := c.metrics[m.MetricID]; dup {
			return nil, fmt.Errorf("duplicate metric %q", m.MetricID)
		}
		if _, ok := c.pillars[m.PillarID]; !ok {
			return nil, fmt.Errorf("metric %q references unknown pillar %q", m.MetricID, m.PillarID)
		}
		c.metrics[m.MetricID] = m
		c.byPillar[m.PillarID] = append(c.byPillar[m.PillarID], m)
	}

	for id := range c.byPillar {
		sort.Slice(c.byPillar[id], func(i, j int) bool {
			return c.byPillar[id][i].MetricID < c.byPillar[id][j].MetricID
		})
	}

	return c, nil
}

func validateMetric(m MetricDefinition) error {
	if m.MetricID == "" {
		return fmt.Errorf("metric with empty id")
	}
	if m.Weight < 0 {
		return fmt.Errorf("metric %q: negative weight %v", m.MetricID, m.Weight)
	}
	switch m.Direction {
	case HigherBetter, LowerBetter:
		if m.TargetMin != nil || m.TargetMax != nil {
			return fmt.Errorf("metric %q: target band set but direction is %s", m.MetricID, m.Direction)
		}
	case TargetBand:
		if m.TargetMin == nil || m.TargetMax == nil {
			return fmt.Errorf("metric %q: direction target_band requires target_min and target_max", m.MetricID)
		}
		if *m.TargetMax <= *m.TargetMin {
			return fmt.Errorf("metric %q: target_max %v must exceed target_min %v",
				m.MetricID, *m.TargetMax, *m.TargetMin)
		}
	default:
		return fmt.Errorf("metric %q: unknown direction %q", m.MetricID, m.Direction)
	}
	return nil
}

// Metric returns the definition for a metric id, or ErrMissingDefinition.
func (c *Catalog) Metric(id string) (MetricDefinition, error) {
	m, ok := c.metrics[id]
	if !ok {
		return MetricDefinition{}, fmt.Errorf("metric %q: %w", id, ErrMissingDefinition)
	}
	return m, nil
}

// Pillar returns the definition for a pillar id, or ErrMissingDefinition.
func (c *Catalog) Pillar(id string) (PillarDefinition, error) {
	p, ok := c.pillars[id]
	if !ok {
		return PillarDefinition{}, fmt.Errorf("pillar %q: %w", id, ErrMissingDefinition)
	}
	return p, nil
}

// Metrics returns all metric definitions sorted by id.
func (c *Catalog) Metrics() []MetricDefinition {
	out := make([]MetricDefinition, 0, len(c.metrics))
	for _, m := range c.metrics {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetricID < out[j].MetricID })
	return out
}

// Pillars returns all pillar definitions sorted by id.
func (c *Catalog) Pillars() []PillarDefinition {
	out := make([]PillarDefinition, 0, len(c.pillars))
	for _, p := range c.pillars {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PillarID < out[j].PillarID })
	return out
}

// MetricsForPillar returns the metric definitions grouped under a pillar,
// sorted by metric id.
func (c *Catalog) MetricsForPillar(pillarID string) []MetricDefinition {
	return c.byPillar[pillarID]
}

// catalogFile is the YAML shape of a definitions file.
type catalogFile struct {
	Pillars []struct {
		ID     string   `yaml:"id"`
		Name   string   `yaml:"name"`
		Weight *float64 `yaml:"weight"`
	} `yaml:"pillars"`
	Metrics []struct {
		ID          string   `yaml:"id"`
		Pillar      string   `yaml:"pillar"`
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Unit        string   `yaml:"unit"`
		Direction   string   `yaml:"direction"`
		Weight      *float64 `yaml:"weight"`
		TargetMin   *float64 `yaml:"target_min"`
		TargetMax   *float64 `yaml:"target_max"`
	} `yaml:"metrics"`
}

// LoadCatalog reads metric and pillar definitions from a YAML file.
// An unset metric weight defaults to 1.0.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog builds a Catalog from YAML definition data.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing definitions: %w", err)
	}

	pillars := make([]PillarDefinition, 0, len(f.Pillars))
	for _, p := range f.Pillars {
		weight := 1.0
		if p.Weight != nil {
			weight = *p.Weight
		}
		pillars = append(pillars, PillarDefinition{
			PillarID: p.ID,
			Name:     p.Name,
			Weight:   weight,
		})
	}

	metrics := make([]MetricDefinition, 0, len(f.Metrics))
	for _, m := range f.Metrics {
		weight := 1.0
		if m.Weight != nil {
			weight = *m.Weight
		}
		metrics = append(metrics, MetricDefinition{
			MetricID:    m.ID,
			PillarID:    m.Pillar,
			Name:        m.Name,
			Description: m.Description,
			Unit:        m.Unit,
			Direction:   Direction(m.Direction),
			Weight:      weight,
			TargetMin:   m.TargetMin,
			TargetMax:   m.TargetMax,
		})
	}

	return NewCatalog(metrics, pillars)
}
