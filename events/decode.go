package events

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/entity"
)

// Decoders for the raw log payloads, one per event type. Layouts mirror the
// emitting contracts: indexed fields arrive as 32-byte topics, the rest as
// ABI-encoded data words.

var (
	ErrWrongEventType      = errors.New("event type does not match decoder")
	ErrMalformedEventData  = errors.New("malformed event payload")
	ErrEventValueOverflow  = errors.New("event value exceeds 128 bits")
	ErrInvalidEventContent = errors.New("event content fails validity checks")
)

const (
	wordLength = 32
	// a unique external ref is a textual UUID: 32 hex chars + 4 dashes
	nftExternalRefLength = 36
)

type AddedValidatorData struct {
	T1PublicKey []byte
	T2Address   common.Hash
	Deposit     *big.Int
}

type LiftedData struct {
	TokenContract common.Address
	Sender        common.Address
	Receiver      common.Hash
	Amount        *big.Int
}

type AvtGrowthLiftedData struct {
	Amount *big.Int
	Period uint32
}

type AvtLowerClaimedData struct {
	LowerID uint32
}

type NftMintData struct {
	BatchID           *big.Int
	SaleIndex         uint64
	OwnerPublicKey    common.Hash
	UniqueExternalRef string
}

type NftTransferToData struct {
	NftID               *big.Int
	TransferToPublicKey common.Hash
	OpID                uint64
}

type NftCancelListingData struct {
	NftID *big.Int
	OpID  uint64
}

type NftEndBatchListingData struct {
	BatchID *big.Int
}

// DecodePayload dispatches to the typed decoder for the event's type.
func DecodePayload(event *entity.EthereumEvent) (interface{}, error) {
	switch event.Type {
	case entity.EventTypeAddedValidator:
		return DecodeAddedValidator(event)
	case entity.EventTypeLifted:
		return DecodeLifted(event)
	case entity.EventTypeAvtGrowthLifted:
		return DecodeAvtGrowthLifted(event)
	case entity.EventTypeAvtLowerClaimed:
		return DecodeAvtLowerClaimed(event)
	case entity.EventTypeNftMint:
		return DecodeNftMint(event)
	case entity.EventTypeNftTransferTo:
		return DecodeNftTransferTo(event)
	case entity.EventTypeNftCancelListing:
		return DecodeNftCancelListing(event)
	case entity.EventTypeNftEndBatchListing:
		return DecodeNftEndBatchListing(event)
	default:
		return nil, fmt.Errorf("%w: no decoder for %s", ErrWrongEventType, event.Type)
	}
}

func DecodeAddedValidator(event *entity.EthereumEvent) (*AddedValidatorData, error) {
	if err := checkShape(event, entity.EventTypeAddedValidator, 4, wordLength); err != nil {
		return nil, err
	}
	key := make([]byte, 0, 2*wordLength)
	key = append(key, event.Topics[1].Bytes()...)
	key = append(key, event.Topics[2].Bytes()...)
	return &AddedValidatorData{
		T1PublicKey: key,
		T2Address:   event.Topics[3],
		Deposit:     new(big.Int).SetBytes(event.Data),
	}, nil
}

func DecodeLifted(event *entity.EthereumEvent) (*LiftedData, error) {
	if err := checkShape(event, entity.EventTypeLifted, 4, wordLength); err != nil {
		return nil, err
	}
	amount, err := u128FromWord(event.Data)
	if err != nil {
		return nil, err
	}
	data := &LiftedData{
		TokenContract: common.BytesToAddress(event.Topics[1].Bytes()),
		Sender:        common.BytesToAddress(event.Topics[2].Bytes()),
		Receiver:      event.Topics[3],
		Amount:        amount,
	}
	if data.TokenContract == (common.Address{}) || data.Sender == (common.Address{}) || data.Receiver == (common.Hash{}) {
		return nil, fmt.Errorf("%w: zero lift participant", ErrInvalidEventContent)
	}
	return data, nil
}

func DecodeAvtGrowthLifted(event *entity.EthereumEvent) (*AvtGrowthLiftedData, error) {
	if err := checkShape(event, entity.EventTypeAvtGrowthLifted, 3, 0); err != nil {
		return nil, err
	}
	amount, err := u128FromWord(event.Topics[1].Bytes())
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero growth amount", ErrInvalidEventContent)
	}
	return &AvtGrowthLiftedData{
		Amount: amount,
		Period: uint32(new(big.Int).SetBytes(event.Topics[2].Bytes()[wordLength-4:]).Uint64()),
	}, nil
}

func DecodeAvtLowerClaimed(event *entity.EthereumEvent) (*AvtLowerClaimedData, error) {
	if err := checkShape(event, entity.EventTypeAvtLowerClaimed, 2, 0); err != nil {
		return nil, err
	}
	return &AvtLowerClaimedData{
		LowerID: uint32(new(big.Int).SetBytes(event.Topics[1].Bytes()[wordLength-4:]).Uint64()),
	}, nil
}

func DecodeNftMint(event *entity.EthereumEvent) (*NftMintData, error) {
	if err := checkShape(event, entity.EventTypeNftMint, 4, 4*wordLength); err != nil {
		return nil, err
	}
	// data is one ABI-encoded string: two header words, then the ref bytes
	ref := string(event.Data[2*wordLength : 2*wordLength+nftExternalRefLength])
	data := &NftMintData{
		BatchID:           new(big.Int).SetBytes(event.Topics[1].Bytes()),
		SaleIndex:         u64FromTopic(event.Topics[2]),
		OwnerPublicKey:    event.Topics[3],
		UniqueExternalRef: ref,
	}
	if data.BatchID.Sign() == 0 || data.OwnerPublicKey == (common.Hash{}) {
		return nil, fmt.Errorf("%w: zero mint identity", ErrInvalidEventContent)
	}
	return data, nil
}

func DecodeNftTransferTo(event *entity.EthereumEvent) (*NftTransferToData, error) {
	if err := checkShape(event, entity.EventTypeNftTransferTo, 4, 0); err != nil {
		return nil, err
	}
	return &NftTransferToData{
		NftID:               new(big.Int).SetBytes(event.Topics[1].Bytes()),
		TransferToPublicKey: event.Topics[2],
		OpID:                u64FromTopic(event.Topics[3]),
	}, nil
}

func DecodeNftCancelListing(event *entity.EthereumEvent) (*NftCancelListingData, error) {
	if err := checkShape(event, entity.EventTypeNftCancelListing, 3, 0); err != nil {
		return nil, err
	}
	return &NftCancelListingData{
		NftID: new(big.Int).SetBytes(event.Topics[1].Bytes()),
		OpID:  u64FromTopic(event.Topics[2]),
	}, nil
}

func DecodeNftEndBatchListing(event *entity.EthereumEvent) (*NftEndBatchListingData, error) {
	if err := checkShape(event, entity.EventTypeNftEndBatchListing, 2, 0); err != nil {
		return nil, err
	}
	return &NftEndBatchListingData{
		BatchID: new(big.Int).SetBytes(event.Topics[1].Bytes()),
	}, nil
}

func checkShape(event *entity.EthereumEvent, expected entity.EventType, topics, dataLen int) error {
	if event.Type != expected {
		return fmt.Errorf("%w: got %s, decoder expects %s", ErrWrongEventType, event.Type, expected)
	}
	if len(event.Topics) != topics {
		return fmt.Errorf("%w: %s expects %d topics, got %d", ErrMalformedEventData, expected, topics, len(event.Topics))
	}
	if len(event.Data) != dataLen {
		return fmt.Errorf("%w: %s expects %d data bytes, got %d", ErrMalformedEventData, expected, dataLen, len(event.Data))
	}
	return nil
}

// u128FromWord reads a 32-byte big-endian word whose upper half must be zero.
func u128FromWord(word []byte) (*big.Int, error) {
	if len(word) != wordLength {
		return nil, fmt.Errorf("%w: amount word is %d bytes", ErrMalformedEventData, len(word))
	}
	for _, b := range word[:wordLength/2] {
		if b != 0 {
			return nil, ErrEventValueOverflow
		}
	}
	return new(big.Int).SetBytes(word[wordLength/2:]), nil
}

func u64FromTopic(topic common.Hash) uint64 {
	return new(big.Int).SetBytes(topic.Bytes()[wordLength-8:]).Uint64()
}
