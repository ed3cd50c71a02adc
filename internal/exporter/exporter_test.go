package exporter

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chainhealth/chainhealth/internal/store"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

type scoreKey struct {
	kind scorecard.Kind
	id   string
}

type fakeScores struct {
	latest map[scoreKey]scorecard.ScoreRecord
}

func (f *fakeScores) Latest(_ context.Context, kind scorecard.Kind, id string) (scorecard.ScoreRecord, error) {
	rec, ok := f.latest[scoreKey{kind, id}]
	if !ok {
		return scorecard.ScoreRecord{}, fmt.Errorf("latest score: %w", scorecard.ErrNotFound)
	}
	return rec, nil
}

type fakeMeasurements struct {
	latest map[string]scorecard.Measurement
}

func (f *fakeMeasurements) Latest(_ context.Context, metricID string) (scorecard.Measurement, error) {
	m, ok := f.latest[metricID]
	if !ok {
		return scorecard.Measurement{}, fmt.Errorf("latest measurement: %w", scorecard.ErrNotFound)
	}
	return m, nil
}

type fakeStatus struct {
	statuses []store.CollectorStatus
}

func (f *fakeStatus) List(context.Context) ([]store.CollectorStatus, error) {
	return f.statuses, nil
}

func testCatalog(t *testing.T) *scorecard.Catalog {
	t.Helper()
	cat, err := scorecard.NewCatalog(
		[]scorecard.MetricDefinition{
			{MetricID: "decent.pool_hhi", PillarID: "decent", Name: "Pool HHI",
				Direction: scorecard.LowerBetter, Weight: 1},
		},
		[]scorecard.PillarDefinition{
			{PillarID: "decent", Name: "Decentralization", Weight: 1},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestRefreshAndScrape(t *testing.T) {
	scores := &fakeScores{latest: map[scoreKey]scorecard.ScoreRecord{
		{scorecard.KindOverall, scorecard.OverallID}: {Score: 78.3, Timestamp: 1750000000},
		{scorecard.KindPillar, "decent"}:             {Score: 64},
		{scorecard.KindMetric, "decent.pool_hhi"}:    {Score: 64},
	}}
	ms := &fakeMeasurements{latest: map[string]scorecard.Measurement{
		"decent.pool_hhi": {Value: 0.225},
	}}
	status := &fakeStatus{statuses: []store.CollectorStatus{
		{Collector: "mempool", ConsecutiveFailures: 0},
		{Collector: "bitnodes", ConsecutiveFailures: 4},
	}}

	e := New(testCatalog(t), scores, ms, status, nil)
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)

	for _, want := range []string{
		"chainhealth_overall_score 78.3",
		"chainhealth_last_pass_timestamp_seconds 1.75e+09",
		`chainhealth_pillar_score{pillar="decent"} 64`,
		`chainhealth_metric_score{metric="decent.pool_hhi",pillar="decent"} 64`,
		`chainhealth_metric_value{metric="decent.pool_hhi"} 0.225`,
		`chainhealth_collector_up{collector="mempool"} 1`,
		`chainhealth_collector_up{collector="bitnodes"} 0`,
		`chainhealth_collector_consecutive_failures{collector="bitnodes"} 4`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestRefreshToleratesEmptyStores(t *testing.T) {
	e := New(testCatalog(t),
		&fakeScores{latest: map[scoreKey]scorecard.ScoreRecord{}},
		&fakeMeasurements{latest: map[string]scorecard.Measurement{}},
		&fakeStatus{}, nil)
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh on empty stores must not fail: %v", err)
	}
}
