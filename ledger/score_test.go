package ledger

import (
	"errors"
	"math"
	"testing"
)

func TestTierForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  uint8
	}{
		{0.0, 1},
		{0.19, 1},
		{0.2, 2},
		{0.39, 2},
		{0.4, 3},
		{0.59, 3},
		{0.6, 4},
		{0.79, 4},
		{0.8, 5},
		{1.0, 5},
	}
	for _, tc := range cases {
		got, err := TierForScore(tc.score)
		if err != nil {
			t.Fatalf("TierForScore(%v): %v", tc.score, err)
		}
		if got != tc.want {
			t.Fatalf("TierForScore(%v) = %d, want %d", tc.score, got, tc.want)
		}
	}
}

func TestTierForScoreRejectsInvalidScores(t *testing.T) {
	for _, score := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := TierForScore(score); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("TierForScore(%v) must fail with ErrInvalidScore, got %v", score, err)
		}
	}
}
