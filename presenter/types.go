package presenter

import "github.com/fedbridge/bridge-node/entity"

// ActiveRangeResult pairs the active scanning range (nil while the window is
// still being voted on) with the block votes collected so far.
type ActiveRangeResult struct {
	Range      *entity.ActiveRange `json:"range,omitempty"`
	BlockVotes []*entity.BlockVote `json:"block_votes"`
}

// CheckerPendingResult is the current checker backlog: events awaiting their
// first verdict and verdicts sitting in their challenge window.
type CheckerPendingResult struct {
	Unchecked []*entity.UncheckedEvent `json:"unchecked"`
	Checks    []*entity.EventCheck     `json:"checks"`
}

type HealthResult struct {
	Status string `json:"status"`
}
