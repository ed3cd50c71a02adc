package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Raw persists collector payloads in their near-source shape. The derive
// package reads these tables back to compute concentration, fee, and
// adoption metrics without re-fetching upstreams.
type Raw struct {
	db *sql.DB
}

// PoolShare is one mining pool's share of recent blocks at a point in
// time.
type PoolShare struct {
	Timestamp int64
	Pool      string
	Share     float64
	Blocks    int
}

// MempoolSnapshot is one observation of mempool depth.
type MempoolSnapshot struct {
	Timestamp int64
	TxCount   int
	VSize     float64
	TotalFee  float64
}

// BlockReward is one day's fee and subsidy totals.
type BlockReward struct {
	Day            string
	AvgFeePerBlock float64
	FeesBTC        float64
	SubsidyBTC     float64
}

// LNStat is one day's Lightning Network summary.
type LNStat struct {
	Day         string
	NodeCount   int
	Channels    int
	CapacityBTC float64
}

// SegwitStat is one day's segwit adoption counters.
type SegwitStat struct {
	Day           string
	SegwitTxCount int64
	TotalTxCount  int64
	SegwitWeight  int64
	TotalWeight   int64
}

// DifficultyEstimate is one observation of the next difficulty
// adjustment estimate.
type DifficultyEstimate struct {
	Timestamp int64
	Progress  float64
	EstChange float64
	EstDate   string
}

// UpsertPoolShares replaces the pool share rows for one timestamp.
func (s *Raw) UpsertPoolShares(ctx context.Context, shares []PoolShare) error {
	for _, p := range shares {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO raw_pool_shares (ts, pool, share, blocks)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (ts, pool) DO UPDATE
			   SET share = EXCLUDED.share, blocks = EXCLUDED.blocks`,
			p.Timestamp, p.Pool, p.Share, p.Blocks,
		)
		if err != nil {
			return fmt.Errorf("upsert pool share %s: %w", p.Pool, err)
		}
	}
	return nil
}

// LatestPoolShares returns the pool shares recorded at the newest
// timestamp, largest share first.
func (s *Raw) LatestPoolShares(ctx context.Context) ([]PoolShare, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, pool, share, blocks FROM raw_pool_shares
		 WHERE ts = (SELECT MAX(ts) FROM raw_pool_shares)
		 ORDER BY share DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("latest pool shares: %w", err)
	}
	defer rows.Close()

	var out []PoolShare
	for rows.Next() {
		var p PoolShare
		if err := rows.Scan(&p.Timestamp, &p.Pool, &p.Share, &p.Blocks); err != nil {
			return nil, fmt.Errorf("scan pool share: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertMempoolSnapshot writes one mempool observation.
func (s *Raw) UpsertMempoolSnapshot(ctx context.Context, snap MempoolSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_mempool_snapshots (ts, tx_count, vsize, total_fee)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (ts) DO UPDATE
		   SET tx_count = EXCLUDED.tx_count,
		       vsize = EXCLUDED.vsize,
		       total_fee = EXCLUDED.total_fee`,
		snap.Timestamp, snap.TxCount, snap.VSize, snap.TotalFee,
	)
	if err != nil {
		return fmt.Errorf("upsert mempool snapshot: %w", err)
	}
	return nil
}

// MempoolSnapshots returns observations at or after since, oldest first.
func (s *Raw) MempoolSnapshots(ctx context.Context, since int64) ([]MempoolSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, tx_count, vsize, total_fee FROM raw_mempool_snapshots
		 WHERE ts >= $1 ORDER BY ts ASC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("range mempool snapshots: %w", err)
	}
	defer rows.Close()

	var out []MempoolSnapshot
	for rows.Next() {
		var snap MempoolSnapshot
		if err := rows.Scan(&snap.Timestamp, &snap.TxCount, &snap.VSize, &snap.TotalFee); err != nil {
			return nil, fmt.Errorf("scan mempool snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// UpsertBlockReward writes one day's reward totals.
func (s *Raw) UpsertBlockReward(ctx context.Context, r BlockReward) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_block_rewards (day, avg_fee_per_block, fees_btc, subsidy_btc)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (day) DO UPDATE
		   SET avg_fee_per_block = EXCLUDED.avg_fee_per_block,
		       fees_btc = EXCLUDED.fees_btc,
		       subsidy_btc = EXCLUDED.subsidy_btc`,
		r.Day, r.AvgFeePerBlock, r.FeesBTC, r.SubsidyBTC,
	)
	if err != nil {
		return fmt.Errorf("upsert block reward %s: %w", r.Day, err)
	}
	return nil
}

// BlockRewards returns the most recent reward rows, newest first,
// capped at limit.
func (s *Raw) BlockRewards(ctx context.Context, limit int) ([]BlockReward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, avg_fee_per_block, fees_btc, subsidy_btc
		 FROM raw_block_rewards ORDER BY day DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("range block rewards: %w", err)
	}
	defer rows.Close()

	var out []BlockReward
	for rows.Next() {
		var r BlockReward
		if err := rows.Scan(&r.Day, &r.AvgFeePerBlock, &r.FeesBTC, &r.SubsidyBTC); err != nil {
			return nil, fmt.Errorf("scan block reward: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertLNStat writes one day's Lightning summary.
func (s *Raw) UpsertLNStat(ctx context.Context, st LNStat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_ln_stats (day, node_count, channels, capacity_btc)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (day) DO UPDATE
		   SET node_count = EXCLUDED.node_count,
		       channels = EXCLUDED.channels,
		       capacity_btc = EXCLUDED.capacity_btc`,
		st.Day, st.NodeCount, st.Channels, st.CapacityBTC,
	)
	if err != nil {
		return fmt.Errorf("upsert ln stat %s: %w", st.Day, err)
	}
	return nil
}

// LNStats returns the most recent Lightning rows, newest first, capped
// at limit.
func (s *Raw) LNStats(ctx context.Context, limit int) ([]LNStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, node_count, channels, capacity_btc
		 FROM raw_ln_stats ORDER BY day DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("range ln stats: %w", err)
	}
	defer rows.Close()

	var out []LNStat
	for rows.Next() {
		var st LNStat
		if err := rows.Scan(&st.Day, &st.NodeCount, &st.Channels, &st.CapacityBTC); err != nil {
			return nil, fmt.Errorf("scan ln stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpsertSegwitStat writes one day's segwit counters.
func (s *Raw) UpsertSegwitStat(ctx context.Context, st SegwitStat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_segwit_stats (day, segwit_tx_count, total_tx_count, segwit_weight, total_weight)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (day) DO UPDATE
		   SET segwit_tx_count = EXCLUDED.segwit_tx_count,
		       total_tx_count = EXCLUDED.total_tx_count,
		       segwit_weight = EXCLUDED.segwit_weight,
		       total_weight = EXCLUDED.total_weight`,
		st.Day, st.SegwitTxCount, st.TotalTxCount, st.SegwitWeight, st.TotalWeight,
	)
	if err != nil {
		return fmt.Errorf("upsert segwit stat %s: %w", st.Day, err)
	}
	return nil
}

// SegwitStats returns the most recent segwit rows, newest first, capped
// at limit.
func (s *Raw) SegwitStats(ctx context.Context, limit int) ([]SegwitStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, segwit_tx_count, total_tx_count, segwit_weight, total_weight
		 FROM raw_segwit_stats ORDER BY day DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("range segwit stats: %w", err)
	}
	defer rows.Close()

	var out []SegwitStat
	for rows.Next() {
		var st SegwitStat
		if err := rows.Scan(&st.Day, &st.SegwitTxCount, &st.TotalTxCount, &st.SegwitWeight, &st.TotalWeight); err != nil {
			return nil, fmt.Errorf("scan segwit stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpsertDifficultyEstimate writes one difficulty adjustment observation.
func (s *Raw) UpsertDifficultyEstimate(ctx context.Context, est DifficultyEstimate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_difficulty_estimates (ts, progress, est_change, est_date)
		 VALUES ($1, $2, $3, NULLIF($4, ''))
		 ON CONFLICT (ts) DO UPDATE
		   SET progress = EXCLUDED.progress,
		       est_change = EXCLUDED.est_change,
		       est_date = EXCLUDED.est_date`,
		est.Timestamp, est.Progress, est.EstChange, est.EstDate,
	)
	if err != nil {
		return fmt.Errorf("upsert difficulty estimate: %w", err)
	}
	return nil
}

// LatestDifficultyEstimate returns the newest difficulty observation.
func (s *Raw) LatestDifficultyEstimate(ctx context.Context) (DifficultyEstimate, error) {
	var (
		est  DifficultyEstimate
		date sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT ts, progress, est_change, est_date
		 FROM raw_difficulty_estimates ORDER BY ts DESC LIMIT 1`,
	).Scan(&est.Timestamp, &est.Progress, &est.EstChange, &date)
	if err != nil {
		return DifficultyEstimate{}, notFound("latest difficulty estimate", err)
	}
	est.EstDate = date.String
	return est, nil
}
