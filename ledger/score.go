package ledger

// TierForScore maps a continuous quality score in [0,1] to a discrete tier.
// Thresholds are fixed: [0,0.2)→1, [0.2,0.4)→2, [0.4,0.6)→3, [0.6,0.8)→4 and
// [0.8,1.0]→5, with the upper bound inclusive for tier 5.
func TierForScore(score float64) (uint8, error) {
	if score != score || score < 0 || score > 1 {
		return 0, ErrInvalidScore
	}
	switch {
	case score < 0.2:
		return 1, nil
	case score < 0.4:
		return 2, nil
	case score < 0.6:
		return 3, nil
	case score < 0.8:
		return 4, nil
	default:
		return 5, nil
	}
}
