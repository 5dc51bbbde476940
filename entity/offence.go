package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Offence records slashable misbehavior observed by the protocol. The
// validator count at report time allows proportional slashing downstream.
type Offence struct {
	ID             uint64           `json:"id"`
	Reporter       common.Address   `json:"reporter"`
	Offenders      []common.Address `json:"offenders"`
	Type           string           `json:"type"`
	ValidatorCount uint             `json:"validator_count"`
	CreatedAtBlock uint64           `json:"created_at_block"`
	CreatedAt      *time.Time       `json:"created_at,omitempty"`
}

type OffencesRepo interface {
	Insert(ctx context.Context, offence *Offence) error
	List(ctx context.Context, limit uint) ([]*Offence, error)
}
