package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type EventType string

const (
	EventTypeAddedValidator     EventType = "AddedValidator"
	EventTypeLifted             EventType = "Lifted"
	EventTypeAvtGrowthLifted    EventType = "AvtGrowthLifted"
	EventTypeAvtLowerClaimed    EventType = "AvtLowerClaimed"
	EventTypeNftMint            EventType = "NftMint"
	EventTypeNftTransferTo      EventType = "NftTransferTo"
	EventTypeNftCancelListing   EventType = "NftCancelListing"
	EventTypeNftEndBatchListing EventType = "NftEndBatchListing"
)

var eventTopics = map[EventType]string{
	EventTypeAddedValidator:     "LogValidatorRegistered(bytes32,bytes32,bytes32,uint256)",
	EventTypeLifted:             "LogLifted(address,address,bytes32,uint256)",
	EventTypeAvtGrowthLifted:    "LogGrowth(uint256,uint32)",
	EventTypeAvtLowerClaimed:    "LogLowerClaimed(uint32)",
	EventTypeNftMint:            "AvnMintTo(uint256,uint64,bytes32,string)",
	EventTypeNftTransferTo:      "AvnTransferTo(uint256,bytes32,uint64)",
	EventTypeNftCancelListing:   "AvnCancelNftListing(uint256,uint64)",
	EventTypeNftEndBatchListing: "AvnEndBatchListing(uint256)",
}

// Signature returns the keccak hash of the event's solidity topic, or the
// zero hash for an unknown event type.
func (t EventType) Signature() common.Hash {
	topic, ok := eventTopics[t]
	if !ok {
		return common.Hash{}
	}
	return crypto.Keccak256Hash([]byte(topic))
}

func (t EventType) IsValid() bool {
	_, ok := eventTopics[t]
	return ok
}

func (t EventType) IsNFTEvent() bool {
	switch t {
	case EventTypeNftMint, EventTypeNftTransferTo, EventTypeNftCancelListing, EventTypeNftEndBatchListing:
		return true
	}
	return false
}

func EventTypeFromSignature(sig common.Hash) (EventType, bool) {
	for t := range eventTopics {
		if t.Signature() == sig {
			return t, true
		}
	}
	return "", false
}

// EventID identifies one external-chain event: the type plus the transaction
// that emitted it.
type EventID struct {
	Type   EventType   `json:"type"`
	TxHash common.Hash `json:"tx_hash"`
}

// EthereumEvent is a raw log observed on the external chain.
type EthereumEvent struct {
	Type     EventType      `json:"type"`
	TxHash   common.Hash    `json:"tx_hash"`
	Contract common.Address `json:"contract"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
}

func (e *EthereumEvent) EventID() EventID {
	return EventID{Type: e.Type, TxHash: e.TxHash}
}

// DiscoveredEvent is an event found while scanning a block range.
type DiscoveredEvent struct {
	Event EthereumEvent `json:"event"`
	Block uint64        `json:"block"`
}

// ProcessedEvent records the terminal outcome for one external transaction
// hash. Once a hash is recorded as accepted it may never be accepted again.
type ProcessedEvent struct {
	TxHash    common.Hash `db:"tx_hash"`
	EventType EventType   `db:"event_type"`
	Accepted  bool        `db:"accepted"`
	CreatedAt *time.Time  `db:"created_at"`
}

type ProcessedEventsRepo interface {
	Ensure(ctx context.Context, event *ProcessedEvent) error
	GetByTxHash(ctx context.Context, txHash common.Hash) (*ProcessedEvent, error)
}
