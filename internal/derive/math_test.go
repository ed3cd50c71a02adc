package derive

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestHHI(t *testing.T) {
	tests := []struct {
		name   string
		shares []float64
		want   float64
	}{
		{"five pools", []float64{30, 25, 20, 15, 10}, 0.3*0.3 + 0.25*0.25 + 0.2*0.2 + 0.15*0.15 + 0.1*0.1},
		{"monopoly", []float64{100}, 1.0},
		{"even split", []float64{1, 1, 1, 1}, 0.25},
		{"unnormalized input", []float64{3, 2}, 0.6*0.6 + 0.4*0.4},
		{"empty", nil, 0},
		{"zero total", []float64{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HHI(tt.shares); !almostEqual(got, tt.want) {
				t.Fatalf("HHI(%v) = %v, want %v", tt.shares, got, tt.want)
			}
		})
	}
}

func TestTopShare(t *testing.T) {
	shares := []float64{10, 30, 25, 20, 15}
	if got := TopShare(shares, 3); !almostEqual(got, 0.75) {
		t.Fatalf("TopShare(top 3) = %v, want 0.75", got)
	}
	if got := TopShare(shares, 10); !almostEqual(got, 1.0) {
		t.Fatalf("TopShare(n > len) = %v, want 1.0", got)
	}
	if got := TopShare(nil, 3); got != 0 {
		t.Fatalf("TopShare(empty) = %v, want 0", got)
	}
}

func TestPearson(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	up := []float64{2, 4, 6, 8, 10}
	down := []float64{10, 8, 6, 4, 2}
	flat := []float64{7, 7, 7, 7, 7}

	if got := Pearson(x, up); !almostEqual(got, 1) {
		t.Fatalf("perfect positive correlation = %v, want 1", got)
	}
	if got := Pearson(x, down); !almostEqual(got, -1) {
		t.Fatalf("perfect negative correlation = %v, want -1", got)
	}
	if got := Pearson(x, flat); got != 0 {
		t.Fatalf("zero variance = %v, want 0", got)
	}
	if got := Pearson(x, []float64{1, 2}); got != 0 {
		t.Fatalf("mismatched lengths = %v, want 0", got)
	}
}

func TestMomentumScore(t *testing.T) {
	tests := []struct {
		change float64
		want   float64
	}{
		{0, 1.0},
		{4.9, 1.0},
		{-3, 1.0},
		{5, 0.75},
		{9.9, 0.75},
		{15, 0.5},
		{-25, 0.25},
		{40, 0.0},
		{80, 0.0},
	}
	for _, tt := range tests {
		if got := MomentumScore(tt.change); got != tt.want {
			t.Errorf("MomentumScore(%v) = %v, want %v", tt.change, got, tt.want)
		}
	}
}

func TestHashprice(t *testing.T) {
	// With zero difficulty there is no hashrate to divide by.
	if got := Hashprice(0, 0.5, 60000); got != 0 {
		t.Fatalf("Hashprice(0 difficulty) = %v, want 0", got)
	}

	// Doubling difficulty halves hashprice; doubling price doubles it.
	base := Hashprice(5e13, 0.5, 60000)
	if base <= 0 {
		t.Fatalf("hashprice must be positive, got %v", base)
	}
	if got := Hashprice(1e14, 0.5, 60000); !almostEqual(got, base/2) {
		t.Fatalf("doubled difficulty: got %v, want %v", got, base/2)
	}
	if got := Hashprice(5e13, 0.5, 120000); !almostEqual(got, base*2) {
		t.Fatalf("doubled price: got %v, want %v", got, base*2)
	}
}
