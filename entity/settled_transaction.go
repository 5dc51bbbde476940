package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SettledTransaction is the finalized record of a send request, archived
// append-only once corroborations reach quorum.
type SettledTransaction struct {
	TxID           uint32         `db:"tx_id"`
	FunctionName   string         `db:"function_name"`
	CallerID       string         `db:"caller_id"`
	Sender         common.Address `db:"sender"`
	EthTxHash      common.Hash    `db:"eth_tx_hash"`
	Succeeded      bool           `db:"succeeded"`
	ReplayAttempt  uint32         `db:"replay_attempt"`
	SettledAtBlock uint64         `db:"settled_at_block"`
	CreatedAt      *time.Time     `db:"created_at"`
}

type SettledTransactionsRepo interface {
	Insert(ctx context.Context, tx *SettledTransaction) error
	GetByTxID(ctx context.Context, txID uint32) (*SettledTransaction, error)
	List(ctx context.Context, limit uint) ([]*SettledTransaction, error)
}
