package derive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/chainhealth/chainhealth/internal/store"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// Metric ids written by the calculator.
const (
	MetricHashprice          = "security.hashprice"
	MetricFeeShare           = "security.fee_share"
	MetricDifficultyMomentum = "security.difficulty_momentum"
	MetricPoolHHI            = "decent.pool_hhi"
	MetricPoolTop3           = "decent.pool_top3"
	MetricFeeElasticity      = "throughput.fee_elasticity"
	MetricSegwitUsage        = "adoption.segwit_usage"
	MetricSegwitWeight       = "adoption.segwit_weight"
	MetricLNCapacityGrowth   = "lightning.capacity_growth"
	MetricLNChannelGrowth    = "lightning.channel_growth"
)

// Input metric ids the calculator reads back out of the measurement
// store.
const (
	inputDifficulty  = "security.difficulty"
	inputBTCPrice    = "price.btc_usd"
	inputHalfHourFee = "fees.halfhour"
)

// RawSource is the slice of the raw store the calculator reads.
type RawSource interface {
	LatestPoolShares(ctx context.Context) ([]store.PoolShare, error)
	MempoolSnapshots(ctx context.Context, since int64) ([]store.MempoolSnapshot, error)
	BlockRewards(ctx context.Context, limit int) ([]store.BlockReward, error)
	LNStats(ctx context.Context, limit int) ([]store.LNStat, error)
	SegwitStats(ctx context.Context, limit int) ([]store.SegwitStat, error)
	LatestDifficultyEstimate(ctx context.Context) (store.DifficultyEstimate, error)
}

// Calculator turns raw collector payloads into derived measurements.
// Missing inputs skip the affected metric with a warning; only store
// I/O failures abort.
type Calculator struct {
	raw          RawSource
	measurements scorecard.MeasurementStore
	log          *zap.Logger
	now          func() time.Time
}

func NewCalculator(raw RawSource, measurements scorecard.MeasurementStore, log *zap.Logger) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{
		raw:          raw,
		measurements: measurements,
		log:          log,
		now:          time.Now,
	}
}

// WithNow overrides the clock, for tests and backfills.
func (c *Calculator) WithNow(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// CalculateAll runs every derived-metric formula. Each formula is
// independent; a formula skipping for lack of data does not stop the
// rest.
func (c *Calculator) CalculateAll(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"hashprice", c.Hashprice},
		{"fee_share", c.FeeShare},
		{"pool_concentration", c.PoolConcentration},
		{"fee_elasticity", c.FeeElasticity},
		{"segwit_adoption", c.SegwitAdoption},
		{"lightning_growth", c.LightningGrowth},
		{"difficulty_momentum", c.DifficultyMomentum},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("derive %s: %w", step.name, err)
		}
	}
	c.log.Info("completed derived metric calculations")
	return nil
}

// Hashprice computes USD/TH/day miner revenue from difficulty, block
// rewards, and the BTC price.
func (c *Calculator) Hashprice(ctx context.Context) error {
	difficulty, err := c.latestValue(ctx, inputDifficulty)
	if err != nil {
		return err
	}
	if difficulty == 0 {
		c.log.Warn("no difficulty data, skipping hashprice")
		return nil
	}

	rewards, err := c.raw.BlockRewards(ctx, 1)
	if err != nil {
		return err
	}
	if len(rewards) == 0 {
		c.log.Warn("no block reward data, skipping hashprice")
		return nil
	}

	price, err := c.latestValue(ctx, inputBTCPrice)
	if err != nil {
		return err
	}
	if price == 0 {
		c.log.Warn("no price data, skipping hashprice")
		return nil
	}

	hp := Hashprice(difficulty, rewards[0].AvgFeePerBlock, price)
	return c.write(ctx, MetricHashprice, hp, "USD/TH/day")
}

// FeeShare computes the 30-day fee share of total miner revenue.
func (c *Calculator) FeeShare(ctx context.Context) error {
	rewards, err := c.raw.BlockRewards(ctx, 30)
	if err != nil {
		return err
	}
	var fees, subsidy float64
	for _, r := range rewards {
		fees += r.FeesBTC
		subsidy += r.SubsidyBTC
	}
	total := fees + subsidy
	if total <= 0 {
		c.log.Warn("no block reward data, skipping fee share")
		return nil
	}
	return c.write(ctx, MetricFeeShare, fees/total, "")
}

// PoolConcentration computes the mining pool HHI and the top-3 pool
// share from the newest pool snapshot.
func (c *Calculator) PoolConcentration(ctx context.Context) error {
	pools, err := c.raw.LatestPoolShares(ctx)
	if err != nil {
		return err
	}
	if len(pools) == 0 {
		c.log.Warn("no pool share data, skipping concentration")
		return nil
	}
	shares := make([]float64, len(pools))
	for i, p := range pools {
		shares[i] = p.Share
	}
	if err := c.write(ctx, MetricPoolHHI, HHI(shares), ""); err != nil {
		return err
	}
	return c.write(ctx, MetricPoolTop3, TopShare(shares, 3), "")
}

// minElasticityPairs is the minimum number of aligned mempool/fee
// observations needed for a meaningful correlation.
const minElasticityPairs = 10

// FeeElasticity correlates mempool depth against the half-hour fee
// rate over the last 30 days. Observations are paired by nearest
// timestamp within one hour.
func (c *Calculator) FeeElasticity(ctx context.Context) error {
	cutoff := c.now().Unix() - 30*86400

	snaps, err := c.raw.MempoolSnapshots(ctx, cutoff)
	if err != nil {
		return err
	}
	fees, err := c.measurements.Range(ctx, inputHalfHourFee, cutoff)
	if err != nil {
		return err
	}
	if len(snaps) <= minElasticityPairs || len(fees) <= minElasticityPairs {
		c.log.Warn("insufficient data for fee elasticity",
			zap.Int("mempool_points", len(snaps)),
			zap.Int("fee_points", len(fees)))
		return nil
	}

	var vsizes, rates []float64
	for _, snap := range snaps {
		f, ok := nearestWithin(fees, snap.Timestamp, 3600)
		if !ok {
			continue
		}
		vsizes = append(vsizes, snap.VSize)
		rates = append(rates, f.Value)
	}
	if len(vsizes) <= minElasticityPairs {
		c.log.Warn("too few aligned pairs for fee elasticity", zap.Int("pairs", len(vsizes)))
		return nil
	}
	return c.write(ctx, MetricFeeElasticity, Pearson(vsizes, rates), "")
}

// nearestWithin finds the measurement closest in time to ts, accepting
// it only if within maxGap seconds. Measurements must be sorted by
// timestamp ascending.
func nearestWithin(ms []scorecard.Measurement, ts, maxGap int64) (scorecard.Measurement, bool) {
	if len(ms) == 0 {
		return scorecard.Measurement{}, false
	}
	best := ms[0]
	bestGap := int64(math.MaxInt64)
	for _, m := range ms {
		gap := m.Timestamp - ts
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap {
			best, bestGap = m, gap
		}
		if m.Timestamp > ts+maxGap {
			break
		}
	}
	return best, bestGap <= maxGap
}

// SegwitAdoption computes the segwit share of transactions and block
// weight from the newest daily counters.
func (c *Calculator) SegwitAdoption(ctx context.Context) error {
	stats, err := c.raw.SegwitStats(ctx, 1)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		c.log.Warn("no segwit data, skipping adoption")
		return nil
	}
	st := stats[0]
	if st.TotalTxCount > 0 {
		pct := float64(st.SegwitTxCount) / float64(st.TotalTxCount)
		if err := c.write(ctx, MetricSegwitUsage, pct, ""); err != nil {
			return err
		}
	}
	if st.TotalWeight > 0 {
		pct := float64(st.SegwitWeight) / float64(st.TotalWeight)
		if err := c.write(ctx, MetricSegwitWeight, pct, ""); err != nil {
			return err
		}
	}
	return nil
}

// LightningGrowth computes 30-day capacity and channel growth from the
// daily Lightning summaries.
func (c *Calculator) LightningGrowth(ctx context.Context) error {
	stats, err := c.raw.LNStats(ctx, 60)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		c.log.Warn("no lightning data, skipping growth")
		return nil
	}
	curr := stats[0]

	cutoffDay := c.now().AddDate(0, 0, -30).UTC().Format("2006-01-02")
	var prev *store.LNStat
	for i := range stats {
		if stats[i].Day <= cutoffDay {
			prev = &stats[i]
			break
		}
	}
	if prev == nil {
		c.log.Warn("no lightning baseline 30 days back, skipping growth")
		return nil
	}

	if prev.CapacityBTC > 0 {
		growth := (curr.CapacityBTC - prev.CapacityBTC) / prev.CapacityBTC
		if err := c.write(ctx, MetricLNCapacityGrowth, growth, ""); err != nil {
			return err
		}
	}
	if prev.Channels > 0 {
		growth := float64(curr.Channels-prev.Channels) / float64(prev.Channels)
		if err := c.write(ctx, MetricLNChannelGrowth, growth, ""); err != nil {
			return err
		}
	}
	return nil
}

// DifficultyMomentum maps the estimated next difficulty adjustment to
// a stability score.
func (c *Calculator) DifficultyMomentum(ctx context.Context) error {
	est, err := c.raw.LatestDifficultyEstimate(ctx)
	if err != nil {
		if errors.Is(err, scorecard.ErrNotFound) {
			c.log.Warn("no difficulty estimate, skipping momentum")
			return nil
		}
		return err
	}
	return c.write(ctx, MetricDifficultyMomentum, MomentumScore(est.EstChange), "")
}

// latestValue reads a metric's newest reading, mapping absence to a
// zero value so callers can skip instead of fail.
func (c *Calculator) latestValue(ctx context.Context, metricID string) (float64, error) {
	m, err := c.measurements.Latest(ctx, metricID)
	if err != nil {
		if errors.Is(err, scorecard.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return m.Value, nil
}

func (c *Calculator) write(ctx context.Context, metricID string, value float64, unit string) error {
	m := scorecard.Measurement{
		MetricID:  metricID,
		Timestamp: c.now().Unix(),
		Value:     value,
		Unit:      unit,
	}
	if err := c.measurements.Upsert(ctx, m); err != nil {
		return err
	}
	c.log.Debug("derived metric", zap.String("metric", metricID), zap.Float64("value", value))
	return nil
}
