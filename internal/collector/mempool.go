package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainhealth/chainhealth/internal/derive"
	"github.com/chainhealth/chainhealth/internal/store"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// RawSink is the slice of the raw store the collectors write.
type RawSink interface {
	UpsertPoolShares(ctx context.Context, shares []store.PoolShare) error
	UpsertMempoolSnapshot(ctx context.Context, snap store.MempoolSnapshot) error
	UpsertBlockReward(ctx context.Context, r store.BlockReward) error
	UpsertLNStat(ctx context.Context, st store.LNStat) error
	UpsertSegwitStat(ctx context.Context, st store.SegwitStat) error
	UpsertDifficultyEstimate(ctx context.Context, est store.DifficultyEstimate) error
}

// blocksPerDay caps how many recent blocks feed the daily reward and
// segwit aggregates.
const blocksPerDay = 144

// Mempool polls mempool.space for mempool depth, difficulty
// adjustment, mining pools, block rewards, Lightning stats, and fee
// estimates.
type Mempool struct {
	client       *Client
	raw          RawSink
	measurements scorecard.MeasurementStore
	archive      Archiver
	log          *zap.Logger
	now          func() time.Time
}

func NewMempool(client *Client, raw RawSink, measurements scorecard.MeasurementStore, archive Archiver, log *zap.Logger) *Mempool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mempool{
		client:       client,
		raw:          raw,
		measurements: measurements,
		archive:      archive,
		log:          log,
		now:          time.Now,
	}
}

func (m *Mempool) Name() string { return "mempool" }

// WithNow overrides the clock, for tests.
func (m *Mempool) WithNow(now func() time.Time) *Mempool {
	m.now = now
	return m
}

func (m *Mempool) Collect(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"mempool_stats", m.collectMempoolStats},
		{"difficulty_adjustment", m.collectDifficultyAdjustment},
		{"mining_pools", m.collectMiningPools},
		{"recent_blocks", m.collectRecentBlocks},
		{"lightning_stats", m.collectLightningStats},
		{"fee_estimates", m.collectFeeEstimates},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func (m *Mempool) collectMempoolStats(ctx context.Context) error {
	body, err := m.client.Get(ctx, "/mempool", nil)
	if err != nil {
		return err
	}
	m.archivePayload(ctx, "mempool.json", body)

	var payload struct {
		Count    int     `json:"count"`
		VSize    float64 `json:"vsize"`
		TotalFee float64 `json:"total_fee"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding mempool stats: %w", err)
	}

	snap := store.MempoolSnapshot{
		Timestamp: m.now().Unix(),
		TxCount:   payload.Count,
		VSize:     payload.VSize,
		TotalFee:  payload.TotalFee,
	}
	if err := m.raw.UpsertMempoolSnapshot(ctx, snap); err != nil {
		return err
	}
	m.log.Info("collected mempool stats",
		zap.Int("tx_count", snap.TxCount), zap.Float64("vsize", snap.VSize))
	return nil
}

func (m *Mempool) collectDifficultyAdjustment(ctx context.Context) error {
	body, err := m.client.Get(ctx, "/v1/difficulty-adjustment", nil)
	if err != nil {
		return err
	}
	m.archivePayload(ctx, "difficulty.json", body)

	var payload struct {
		ProgressPercent       float64     `json:"progressPercent"`
		DifficultyChange      float64     `json:"difficultyChange"`
		EstimatedRetargetDate json.Number `json:"estimatedRetargetDate"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding difficulty adjustment: %w", err)
	}

	est := store.DifficultyEstimate{
		Timestamp: m.now().Unix(),
		Progress:  payload.ProgressPercent,
		EstChange: payload.DifficultyChange,
		EstDate:   payload.EstimatedRetargetDate.String(),
	}
	if err := m.raw.UpsertDifficultyEstimate(ctx, est); err != nil {
		return err
	}
	m.log.Info("collected difficulty adjustment", zap.Float64("est_change_pct", est.EstChange))
	return nil
}

func (m *Mempool) collectMiningPools(ctx context.Context) error {
	body, err := m.client.Get(ctx, "/v1/mining/pools/1d", nil)
	if err != nil {
		return err
	}
	m.archivePayload(ctx, "pools.json", body)

	var payload struct {
		Pools []struct {
			Name       string  `json:"name"`
			Share      float64 `json:"share"`
			BlockCount int     `json:"blockCount"`
		} `json:"pools"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding mining pools: %w", err)
	}
	if len(payload.Pools) == 0 {
		m.log.Warn("mining pool response had no pools")
		return nil
	}

	ts := m.now().Unix()
	shares := make([]store.PoolShare, len(payload.Pools))
	for i, p := range payload.Pools {
		shares[i] = store.PoolShare{
			Timestamp: ts,
			Pool:      p.Name,
			Share:     p.Share,
			Blocks:    p.BlockCount,
		}
	}
	if err := m.raw.UpsertPoolShares(ctx, shares); err != nil {
		return err
	}
	m.log.Info("collected mining pools", zap.Int("pools", len(shares)))
	return nil
}

// collectRecentBlocks derives the daily block reward and segwit
// aggregates from one recent-blocks fetch.
func (m *Mempool) collectRecentBlocks(ctx context.Context) error {
	body, err := m.client.Get(ctx, "/v1/blocks/0", nil)
	if err != nil {
		return err
	}
	m.archivePayload(ctx, "blocks.json", body)

	var blocks []struct {
		Timestamp  int64   `json:"timestamp"`
		Difficulty float64 `json:"difficulty"`
		TxCount    int     `json:"tx_count"`
		Weight     int64   `json:"weight"`
		Extras     struct {
			TotalFees         float64 `json:"totalFees"` // sats
			SegwitTotalTxs    int64   `json:"segwitTotalTxs"`
			SegwitTotalWeight int64   `json:"segwitTotalWeight"`
			TotalWeight       int64   `json:"totalWeight"`
		} `json:"extras"`
	}
	if err := json.Unmarshal(body, &blocks); err != nil {
		return fmt.Errorf("decoding recent blocks: %w", err)
	}
	if len(blocks) == 0 {
		m.log.Warn("recent blocks response was empty")
		return nil
	}
	if len(blocks) > blocksPerDay {
		blocks = blocks[:blocksPerDay]
	}

	// The newest block carries the current network difficulty, which
	// the hashprice derivation needs.
	if blocks[0].Difficulty > 0 {
		meas := scorecard.Measurement{
			MetricID:  "security.difficulty",
			Timestamp: blocks[0].Timestamp,
			Value:     blocks[0].Difficulty,
		}
		if err := m.measurements.Upsert(ctx, meas); err != nil {
			return err
		}
	}

	day := m.now().UTC().Format("2006-01-02")

	var totalFeesSats float64
	var segwitTxs, totalTxs, segwitWeight, totalWeight int64
	for _, b := range blocks {
		totalFeesSats += b.Extras.TotalFees
		segwitTxs += b.Extras.SegwitTotalTxs
		totalTxs += int64(b.TxCount)
		segwitWeight += b.Extras.SegwitTotalWeight
		if b.Extras.TotalWeight > 0 {
			totalWeight += b.Extras.TotalWeight
		} else {
			totalWeight += b.Weight
		}
	}

	feesBTC := totalFeesSats / 1e8
	reward := store.BlockReward{
		Day:            day,
		AvgFeePerBlock: feesBTC / float64(len(blocks)),
		FeesBTC:        feesBTC,
		SubsidyBTC:     derive.BlockSubsidyBTC * float64(len(blocks)),
	}
	if err := m.raw.UpsertBlockReward(ctx, reward); err != nil {
		return err
	}

	if totalTxs > 0 {
		st := store.SegwitStat{
			Day:           day,
			SegwitTxCount: segwitTxs,
			TotalTxCount:  totalTxs,
			SegwitWeight:  segwitWeight,
			TotalWeight:   totalWeight,
		}
		if err := m.raw.UpsertSegwitStat(ctx, st); err != nil {
			return err
		}
	}

	m.log.Info("collected recent blocks",
		zap.Int("blocks", len(blocks)),
		zap.Float64("avg_fee_btc", reward.AvgFeePerBlock))
	return nil
}

func (m *Mempool) collectLightningStats(ctx context.Context) error {
	body, err := m.client.Get(ctx, "/v1/lightning/statistics/latest", nil)
	if err != nil {
		return err
	}
	m.archivePayload(ctx, "lightning.json", body)

	var payload struct {
		Latest struct {
			ChannelCount  int     `json:"channel_count"`
			NodeCount     int     `json:"node_count"`
			TotalCapacity float64 `json:"total_capacity"` // sats
		} `json:"latest"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding lightning stats: %w", err)
	}
	if payload.Latest.ChannelCount == 0 && payload.Latest.NodeCount == 0 {
		m.log.Warn("lightning response had no data")
		return nil
	}

	st := store.LNStat{
		Day:         m.now().UTC().Format("2006-01-02"),
		NodeCount:   payload.Latest.NodeCount,
		Channels:    payload.Latest.ChannelCount,
		CapacityBTC: payload.Latest.TotalCapacity / 1e8,
	}
	if err := m.raw.UpsertLNStat(ctx, st); err != nil {
		return err
	}
	m.log.Info("collected lightning stats",
		zap.Int("nodes", st.NodeCount), zap.Float64("capacity_btc", st.CapacityBTC))
	return nil
}

func (m *Mempool) collectFeeEstimates(ctx context.Context) error {
	body, err := m.client.Get(ctx, "/v1/fees/recommended", nil)
	if err != nil {
		return err
	}
	m.archivePayload(ctx, "fees.json", body)

	var payload struct {
		FastestFee  float64 `json:"fastestFee"`
		HalfHourFee float64 `json:"halfHourFee"`
		HourFee     float64 `json:"hourFee"`
		EconomyFee  float64 `json:"economyFee"`
		MinimumFee  float64 `json:"minimumFee"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding fee estimates: %w", err)
	}

	ts := m.now().Unix()
	fees := []struct {
		id    string
		value float64
	}{
		{"fees.fast", payload.FastestFee},
		{"fees.halfhour", payload.HalfHourFee},
		{"fees.hour", payload.HourFee},
		{"fees.economy", payload.EconomyFee},
		{"fees.minimum", payload.MinimumFee},
	}
	for _, f := range fees {
		meas := scorecard.Measurement{MetricID: f.id, Timestamp: ts, Value: f.value, Unit: "sat/vB"}
		if err := m.measurements.Upsert(ctx, meas); err != nil {
			return err
		}
	}
	m.log.Info("collected fee estimates", zap.Float64("fast_sat_vb", payload.FastestFee))
	return nil
}

func (m *Mempool) archivePayload(ctx context.Context, name string, body []byte) {
	if m.archive == nil {
		return
	}
	key := fmt.Sprintf("mempool/%s/%s", m.now().UTC().Format("2006-01-02"), name)
	if err := m.archive.Put(ctx, key, body); err != nil {
		m.log.Warn("archiving payload failed", zap.String("key", key), zap.Error(err))
	}
}
