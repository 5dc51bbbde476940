package entity

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// VotingSession tracks aye/nay votes from a bounded set of authorities for
// one decision. An account may appear in at most one of ayes/nays.
type VotingSession struct {
	ID                common.Hash         `json:"id"`
	Threshold         uint                `json:"threshold"`
	Ayes              BoundedAccountSet   `json:"ayes"`
	Nays              BoundedAccountSet   `json:"nays"`
	Confirmations     BoundedSignatureSet `json:"confirmations"`
	EndOfVotingPeriod uint64              `json:"end_of_voting_period"`
	CreatedAtBlock    uint64              `json:"created_at_block"`
}

type VotingSessionsRepo interface {
	Get(ctx context.Context, id common.Hash) (*VotingSession, error)
	Put(ctx context.Context, session *VotingSession) error
	Delete(ctx context.Context, id common.Hash) error
	List(ctx context.Context) ([]*VotingSession, error)
}

// Slot appoints one validator per schedule period to produce the root hash.
// LastSummarySlot records the slot whose root last reached approval; a slot
// validator who never got a root approved is reported when the slot advances.
type Slot struct {
	Number          uint64         `json:"number"`
	Validator       common.Address `json:"validator"`
	NextAtBlock     uint64         `json:"next_at_block"`
	LastSummarySlot uint64         `json:"last_summary_slot"`
}

type SlotRepo interface {
	Get(ctx context.Context) (*Slot, error)
	Put(ctx context.Context, slot *Slot) error
}
