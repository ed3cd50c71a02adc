// Package derive recomputes second-order metrics from raw collector
// payloads: concentration indices, fee economics, adoption shares, and
// growth rates. Results are written back as plain measurements so the
// scoring engine treats them like any collected metric.
package derive

import (
	"math"
	"sort"
)

// HHI returns the Herfindahl-Hirschman index of the given shares,
// normalized so the shares sum to 1 first. Returns 0 when the total
// share is zero.
func HHI(shares []float64) float64 {
	var total float64
	for _, s := range shares {
		total += s
	}
	if total <= 0 {
		return 0
	}
	var hhi float64
	for _, s := range shares {
		f := s / total
		hhi += f * f
	}
	return hhi
}

// TopShare returns the combined normalized share of the n largest
// participants.
func TopShare(shares []float64, n int) float64 {
	var total float64
	for _, s := range shares {
		total += s
	}
	if total <= 0 {
		return 0
	}
	sorted := make([]float64, len(shares))
	copy(sorted, shares)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if n > len(sorted) {
		n = len(sorted)
	}
	var top float64
	for _, s := range sorted[:n] {
		top += s
	}
	return top / total
}

// Pearson returns the Pearson correlation coefficient of two
// equal-length series. Returns 0 when either series has zero variance
// or fewer than two points.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// MomentumScore maps the magnitude of an estimated difficulty change
// (in percent) to a stability score. Small adjustments indicate a
// stable hashrate, large swings indicate instability.
func MomentumScore(estChangePct float64) float64 {
	change := math.Abs(estChangePct)
	switch {
	case change < 5:
		return 1.0
	case change < 10:
		return 0.75
	case change < 20:
		return 0.5
	case change < 40:
		return 0.25
	default:
		return 0.0
	}
}

// BlockSubsidyBTC is the post-2024-halving block subsidy.
const BlockSubsidyBTC = 3.125

// Hashprice returns miner revenue in USD per TH/s per day given the
// network difficulty, the average fee per block in BTC, and the BTC/USD
// price. Hashrate is derived from difficulty via difficulty * 2^32 /
// 600, revenue assumes 144 blocks per day.
func Hashprice(difficulty, avgFeePerBlockBTC, priceUSD float64) float64 {
	if difficulty <= 0 {
		return 0
	}
	hashratePerSec := difficulty * math.Pow(2, 32) / 600
	dailyHashes := hashratePerSec * 86400
	dailyRevenueUSD := 144 * (avgFeePerBlockBTC + BlockSubsidyBTC) * priceUSD
	return dailyRevenueUSD / dailyHashes * 1e12
}
