package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// Binance polls the public Binance API for the BTC/USDT price and 24h
// market statistics. No authentication is needed for these endpoints.
type Binance struct {
	client       *Client
	measurements scorecard.MeasurementStore
	archive      Archiver
	log          *zap.Logger
	now          func() time.Time
}

func NewBinance(client *Client, measurements scorecard.MeasurementStore, archive Archiver, log *zap.Logger) *Binance {
	if log == nil {
		log = zap.NewNop()
	}
	return &Binance{
		client:       client,
		measurements: measurements,
		archive:      archive,
		log:          log,
		now:          time.Now,
	}
}

func (b *Binance) Name() string { return "binance" }

// WithNow overrides the clock, for tests.
func (b *Binance) WithNow(now func() time.Time) *Binance {
	b.now = now
	return b
}

const btcSymbol = "BTCUSDT"

func (b *Binance) Collect(ctx context.Context) error {
	if err := b.collect24hStats(ctx); err != nil {
		return fmt.Errorf("24hr stats: %w", err)
	}
	return nil
}

// collect24hStats reads the rolling 24h ticker, which includes the last
// price, so a separate price endpoint call is unnecessary.
func (b *Binance) collect24hStats(ctx context.Context) error {
	params := url.Values{"symbol": {btcSymbol}}
	body, err := b.client.Get(ctx, "/api/v3/ticker/24hr", params)
	if err != nil {
		return err
	}
	if b.archive != nil {
		key := fmt.Sprintf("binance/%s/ticker.json", b.now().UTC().Format("2006-01-02"))
		if aerr := b.archive.Put(ctx, key, body); aerr != nil {
			b.log.Warn("archiving payload failed", zap.String("key", key), zap.Error(aerr))
		}
	}

	// Binance returns numeric fields as strings.
	var payload struct {
		LastPrice          string `json:"lastPrice"`
		Volume             string `json:"volume"`
		QuoteVolume        string `json:"quoteVolume"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding ticker: %w", err)
	}

	price, err := strconv.ParseFloat(payload.LastPrice, 64)
	if err != nil {
		return fmt.Errorf("parsing last price %q: %w", payload.LastPrice, err)
	}
	high, _ := strconv.ParseFloat(payload.HighPrice, 64)
	low, _ := strconv.ParseFloat(payload.LowPrice, 64)
	volumeBTC, _ := strconv.ParseFloat(payload.Volume, 64)
	volumeUSD, _ := strconv.ParseFloat(payload.QuoteVolume, 64)
	change, _ := strconv.ParseFloat(payload.PriceChangePercent, 64)

	ts := b.now().Unix()
	metrics := []struct {
		id    string
		value float64
		unit  string
	}{
		{"price.btc_usd", price, "USD"},
		{"price.volume_24h_btc", volumeBTC, "BTC"},
		{"price.volume_24h_usd", volumeUSD, "USD"},
		{"price.change_24h", change, "%"},
	}
	if low > 0 && high > 0 {
		metrics = append(metrics, struct {
			id    string
			value float64
			unit  string
		}{"price.volatility_24h", (high - low) / low * 100, "%"})
	}
	for _, m := range metrics {
		meas := scorecard.Measurement{MetricID: m.id, Timestamp: ts, Value: m.value, Unit: m.unit}
		if err := b.measurements.Upsert(ctx, meas); err != nil {
			return err
		}
	}

	b.log.Info("collected binance ticker",
		zap.Float64("price_usd", price),
		zap.Float64("change_24h_pct", change))
	return nil
}

// Backfill loads daily close prices for the past days from the kline
// endpoint, writing one price.btc_usd measurement per day. Used by the
// backfill command to give the normalizer history to work with.
func (b *Binance) Backfill(ctx context.Context, days int) (int, error) {
	end := b.now().UnixMilli()
	start := end - int64(days)*86400*1000

	params := url.Values{
		"symbol":    {btcSymbol},
		"interval":  {"1d"},
		"startTime": {strconv.FormatInt(start, 10)},
		"endTime":   {strconv.FormatInt(end, 10)},
		"limit":     {strconv.Itoa(days)},
	}
	body, err := b.client.Get(ctx, "/api/v3/klines", params)
	if err != nil {
		return 0, err
	}

	// Kline rows are heterogeneous arrays:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var klines [][]json.RawMessage
	if err := json.Unmarshal(body, &klines); err != nil {
		return 0, fmt.Errorf("decoding klines: %w", err)
	}

	written := 0
	for _, k := range klines {
		if len(k) < 7 {
			continue
		}
		var openTimeMillis int64
		if err := json.Unmarshal(k[0], &openTimeMillis); err != nil {
			return written, fmt.Errorf("parsing kline open time: %w", err)
		}
		var closeStr string
		if err := json.Unmarshal(k[4], &closeStr); err != nil {
			return written, fmt.Errorf("parsing kline close: %w", err)
		}
		closePrice, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return written, fmt.Errorf("parsing kline close %q: %w", closeStr, err)
		}

		meas := scorecard.Measurement{
			MetricID:  "price.btc_usd",
			Timestamp: openTimeMillis / 1000,
			Value:     closePrice,
			Unit:      "USD",
		}
		if err := b.measurements.Upsert(ctx, meas); err != nil {
			return written, err
		}
		written++
	}

	b.log.Info("backfilled daily prices", zap.Int("days", written))
	return written, nil
}
