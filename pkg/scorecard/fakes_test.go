package scorecard_test

import (
	"context"
	"errors"
	"sort"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// In-memory store fakes shared by the normalizer and engine tests. They
// honor the ErrNotFound contract and can be forced to fail to simulate
// store I/O errors.

var errStoreDown = errors.New("store unavailable")

type fakeMeasurements struct {
	data map[string][]scorecard.Measurement
	fail bool
}

func newFakeMeasurements() *fakeMeasurements {
	return &fakeMeasurements{data: make(map[string][]scorecard.Measurement)}
}

func (f *fakeMeasurements) add(metricID string, ts int64, value float64) {
	f.data[metricID] = append(f.data[metricID], scorecard.Measurement{
		MetricID: metricID, Timestamp: ts, Value: value,
	})
	sort.Slice(f.data[metricID], func(i, j int) bool {
		return f.data[metricID][i].Timestamp < f.data[metricID][j].Timestamp
	})
}

func (f *fakeMeasurements) Upsert(_ context.Context, m scorecard.Measurement) error {
	if f.fail {
		return errStoreDown
	}
	f.add(m.MetricID, m.Timestamp, m.Value)
	return nil
}

func (f *fakeMeasurements) Latest(_ context.Context, metricID string) (scorecard.Measurement, error) {
	if f.fail {
		return scorecard.Measurement{}, errStoreDown
	}
	ms := f.data[metricID]
	if len(ms) == 0 {
		return scorecard.Measurement{}, scorecard.ErrNotFound
	}
	return ms[len(ms)-1], nil
}

func (f *fakeMeasurements) Range(_ context.Context, metricID string, since int64) ([]scorecard.Measurement, error) {
	if f.fail {
		return nil, errStoreDown
	}
	var out []scorecard.Measurement
	for _, m := range f.data[metricID] {
		if m.Timestamp >= since {
			out = append(out, m)
		}
	}
	return out, nil
}

type snapKey struct {
	metricID   string
	windowDays int
}

type fakeSnapshots struct {
	snaps map[snapKey]scorecard.PercentileSnapshot
	fail  bool
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snaps: make(map[snapKey]scorecard.PercentileSnapshot)}
}

func (f *fakeSnapshots) Upsert(_ context.Context, s scorecard.PercentileSnapshot) error {
	if f.fail {
		return errStoreDown
	}
	f.snaps[snapKey{s.MetricID, s.WindowDays}] = s
	return nil
}

func (f *fakeSnapshots) Latest(_ context.Context, metricID string, windowDays int) (scorecard.PercentileSnapshot, error) {
	if f.fail {
		return scorecard.PercentileSnapshot{}, errStoreDown
	}
	s, ok := f.snaps[snapKey{metricID, windowDays}]
	if !ok {
		return scorecard.PercentileSnapshot{}, scorecard.ErrNotFound
	}
	return s, nil
}

type fakeScores struct {
	recs []scorecard.ScoreRecord
	fail bool
}

func (f *fakeScores) Upsert(_ context.Context, r scorecard.ScoreRecord) error {
	if f.fail {
		return errStoreDown
	}
	for i, existing := range f.recs {
		if existing.Kind == r.Kind && existing.ID == r.ID && existing.Timestamp == r.Timestamp {
			f.recs[i] = r
			return nil
		}
	}
	f.recs = append(f.recs, r)
	return nil
}

func (f *fakeScores) Latest(_ context.Context, kind scorecard.Kind, id string) (scorecard.ScoreRecord, error) {
	if f.fail {
		return scorecard.ScoreRecord{}, errStoreDown
	}
	best, found := scorecard.ScoreRecord{}, false
	for _, r := range f.recs {
		if r.Kind == kind && r.ID == id && (!found || r.Timestamp > best.Timestamp) {
			best, found = r, true
		}
	}
	if !found {
		return scorecard.ScoreRecord{}, scorecard.ErrNotFound
	}
	return best, nil
}

func (f *fakeScores) LatestBefore(_ context.Context, kind scorecard.Kind, id string, cutoff int64) (scorecard.ScoreRecord, error) {
	if f.fail {
		return scorecard.ScoreRecord{}, errStoreDown
	}
	best, found := scorecard.ScoreRecord{}, false
	for _, r := range f.recs {
		if r.Kind == kind && r.ID == id && r.Timestamp <= cutoff && (!found || r.Timestamp > best.Timestamp) {
			best, found = r, true
		}
	}
	if !found {
		return scorecard.ScoreRecord{}, scorecard.ErrNotFound
	}
	return best, nil
}

func (f *fakeScores) Range(_ context.Context, kind scorecard.Kind, id string, since int64) ([]scorecard.ScoreRecord, error) {
	if f.fail {
		return nil, errStoreDown
	}
	var out []scorecard.ScoreRecord
	for _, r := range f.recs {
		if r.Kind == kind && r.ID == id && r.Timestamp >= since {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
