package scorecard

import (
	"math"
	"sort"
)

// ComputePercentiles estimates the distribution of a sample using the
// standard linear-interpolation percentile definition: rank i = (n-1)*p/100
// on the sorted sample, interpolating between the floor and ceil order
// statistics. The input slice is not modified.
func ComputePercentiles(values []float64) Percentiles {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Percentiles{
		P10: percentile(sorted, 10),
		P25: percentile(sorted, 25),
		P50: percentile(sorted, 50),
		P75: percentile(sorted, 75),
		P90: percentile(sorted, 90),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
	}
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := float64(n-1) * p / 100
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// rankBreakpoints are the target ranks of the stored distribution
// breakpoints, in the same order as (*Percentiles).breakpointValues.
var rankBreakpoints = [7]float64{0, 0.10, 0.25, 0.50, 0.75, 0.90, 1.0}

func (p Percentiles) breakpointValues() [7]float64 {
	return [7]float64{p.Min, p.P10, p.P25, p.P50, p.P75, p.P90, p.Max}
}

// Rank converts a value into a percentile rank in [0, 1] by piecewise-linear
// interpolation across the stored breakpoints. Values at or below Min rank 0,
// values at or beyond Max rank 1. A degenerate segment (adjacent breakpoints
// numerically equal) collapses to the segment's lower rank bound so no
// division by zero can occur. The result is monotonically non-decreasing in
// the input value.
func (p Percentiles) Rank(value float64) float64 {
	vals := p.breakpointValues()

	if value <= vals[0] {
		return 0
	}
	if value >= vals[6] {
		return 1
	}

	for i := 0; i < 6; i++ {
		lo, hi := vals[i], vals[i+1]
		if value > hi {
			continue
		}
		if hi <= lo {
			return rankBreakpoints[i]
		}
		frac := (value - lo) / (hi - lo)
		return rankBreakpoints[i] + frac*(rankBreakpoints[i+1]-rankBreakpoints[i])
	}

	// Unreachable: value < Max is always inside some segment.
	return 1
}
