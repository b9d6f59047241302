package ledger

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"beamledger/core/events"
)

const (
	EventTypeRewardRecorded = "reward.recorded"
	EventTypeRewardRejected = "reward.rejected"
	EventTypeRewardClaimed  = "reward.claimed"
)

// NewRecordedEvent returns the canonical event payload for a newly recorded
// grant.
func NewRecordedEvent(g *Grant) *events.Event {
	if g == nil {
		return nil
	}
	return &events.Event{
		Type: EventTypeRewardRecorded,
		Attributes: map[string]string{
			"id":        strconv.FormatUint(g.ID, 10),
			"claimant":  g.Claimant.Hex(),
			"tier":      strconv.FormatUint(uint64(g.Tier), 10),
			"amount":    formatAmount(g.Amount),
			"reference": g.Reference,
			"timestamp": strconv.FormatInt(g.CreatedAt, 10),
		},
	}
}

// NewRejectedEvent returns the canonical event payload for a sub-threshold
// attempt. No grant exists for a rejection, so the payload carries only the
// identity, the rated tier and the time of the attempt.
func NewRejectedEvent(identity common.Address, tier uint8, timestamp int64) *events.Event {
	return &events.Event{
		Type: EventTypeRewardRejected,
		Attributes: map[string]string{
			"identity":  identity.Hex(),
			"tier":      strconv.FormatUint(uint64(tier), 10),
			"timestamp": strconv.FormatInt(timestamp, 10),
		},
	}
}

// NewClaimedEvent returns the canonical event payload emitted when a grant is
// settled to its claimant.
func NewClaimedEvent(g *Grant, timestamp int64) *events.Event {
	if g == nil {
		return nil
	}
	return &events.Event{
		Type: EventTypeRewardClaimed,
		Attributes: map[string]string{
			"id":        strconv.FormatUint(g.ID, 10),
			"claimant":  g.Claimant.Hex(),
			"tier":      strconv.FormatUint(uint64(g.Tier), 10),
			"amount":    formatAmount(g.Amount),
			"timestamp": strconv.FormatInt(timestamp, 10),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
