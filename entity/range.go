package entity

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthBlockRange is one scanning window over the external chain.
type EthBlockRange struct {
	StartBlock uint32 `json:"start_block"`
	Length     uint32 `json:"length"`
}

func (r EthBlockRange) EndBlock() uint32 {
	return r.StartBlock + r.Length - 1
}

func (r EthBlockRange) NextRange() EthBlockRange {
	return EthBlockRange{StartBlock: r.StartBlock + r.Length, Length: r.Length}
}

// ActiveRange is the single range currently being voted on, partition by
// partition. The partition index only advances on quorum, the range only
// advances when the last partition is approved.
type ActiveRange struct {
	Range                  EthBlockRange `json:"range"`
	Partition              uint16        `json:"partition"`
	EventTypesFilter       []EventType   `json:"event_types_filter"`
	AdditionalTransactions []common.Hash `json:"additional_transactions"`
}

// EventsPartition is a size-bounded slice of the events discovered within one
// range, voted on independently so each vote payload stays bounded.
type EventsPartition struct {
	Range     EthBlockRange     `json:"range"`
	Partition uint16            `json:"partition"`
	IsLast    bool              `json:"is_last"`
	Events    []DiscoveredEvent `json:"events"`
}

// ID is the content hash of the partition; two validators that discovered the
// same events in the same order produce the same id.
func (p *EventsPartition) ID() common.Hash {
	blob, err := json.Marshal(p)
	if err != nil {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(blob)
}

// BlockVote is one author's vote for a candidate scanning-window start.
type BlockVote struct {
	Author      common.Address `db:"author"`
	WindowStart uint32         `db:"window_start"`
}

// PartitionVote is one author's vote for a specific partition version.
type PartitionVote struct {
	PartitionID common.Hash    `db:"partition_id"`
	Author      common.Address `db:"author"`
}

type ActiveRangeRepo interface {
	Get(ctx context.Context) (*ActiveRange, error)
	Put(ctx context.Context, r *ActiveRange) error
	Delete(ctx context.Context) error
}

type BlockVotesRepo interface {
	Insert(ctx context.Context, vote *BlockVote) error
	ExistsByAuthor(ctx context.Context, author common.Address) (bool, error)
	List(ctx context.Context) ([]*BlockVote, error)
	DeleteAll(ctx context.Context) error
}

// AdditionalEventsRepo queues manually-injected transaction hashes until the
// next range is activated, at which point they are drained into it.
type AdditionalEventsRepo interface {
	Enqueue(ctx context.Context, txHash common.Hash) error
	Drain(ctx context.Context) ([]common.Hash, error)
}

type PartitionVotesRepo interface {
	Insert(ctx context.Context, vote *PartitionVote) error
	ExistsByAuthor(ctx context.Context, author common.Address) (bool, error)
	CountByPartition(ctx context.Context, partitionID common.Hash) (uint, error)
	VotersExcept(ctx context.Context, partitionID common.Hash) ([]common.Address, error)
	DeleteAll(ctx context.Context) error
}
