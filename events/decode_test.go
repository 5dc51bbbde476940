package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/fedbridge/bridge-node/entity"
)

func topicFromUint(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func TestDecodeLifted(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	sender := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	receiver := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	amount := topicFromUint(1_000_000)

	event := &entity.EthereumEvent{
		Type:   entity.EventTypeLifted,
		Topics: []common.Hash{entity.EventTypeLifted.Signature(), topicFromAddress(token), topicFromAddress(sender), receiver},
		Data:   amount.Bytes(),
	}
	data, err := DecodeLifted(event)
	require.NoError(t, err)
	require.Equal(t, token, data.TokenContract)
	require.Equal(t, sender, data.Sender)
	require.Equal(t, receiver, data.Receiver)
	require.Equal(t, uint64(1_000_000), data.Amount.Uint64())
}

func TestDecodeLiftedRejections(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	sender := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	receiver := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	topics := []common.Hash{entity.EventTypeLifted.Signature(), topicFromAddress(token), topicFromAddress(sender), receiver}

	wrongType := &entity.EthereumEvent{Type: entity.EventTypeNftMint, Topics: topics, Data: make([]byte, 32)}
	_, err := DecodeLifted(wrongType)
	require.ErrorIs(t, err, ErrWrongEventType)

	shortData := &entity.EthereumEvent{Type: entity.EventTypeLifted, Topics: topics, Data: make([]byte, 16)}
	_, err = DecodeLifted(shortData)
	require.ErrorIs(t, err, ErrMalformedEventData)

	overflow := make([]byte, 32)
	overflow[0] = 1
	_, err = DecodeLifted(&entity.EthereumEvent{Type: entity.EventTypeLifted, Topics: topics, Data: overflow})
	require.ErrorIs(t, err, ErrEventValueOverflow)

	zeroSender := []common.Hash{entity.EventTypeLifted.Signature(), topicFromAddress(token), {}, receiver}
	_, err = DecodeLifted(&entity.EthereumEvent{Type: entity.EventTypeLifted, Topics: zeroSender, Data: make([]byte, 32)})
	require.ErrorIs(t, err, ErrInvalidEventContent)
}

func TestDecodeAvtGrowthLifted(t *testing.T) {
	event := &entity.EthereumEvent{
		Type:   entity.EventTypeAvtGrowthLifted,
		Topics: []common.Hash{entity.EventTypeAvtGrowthLifted.Signature(), topicFromUint(5000), topicFromUint(12)},
	}
	data, err := DecodeAvtGrowthLifted(event)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), data.Amount.Uint64())
	require.Equal(t, uint32(12), data.Period)

	event.Topics[1] = common.Hash{}
	_, err = DecodeAvtGrowthLifted(event)
	require.ErrorIs(t, err, ErrInvalidEventContent)
}

func TestDecodePayloadDispatch(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	sender := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	receiver := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")

	lifted := &entity.EthereumEvent{
		Type:   entity.EventTypeLifted,
		Topics: []common.Hash{entity.EventTypeLifted.Signature(), topicFromAddress(token), topicFromAddress(sender), receiver},
		Data:   topicFromUint(500).Bytes(),
	}
	payload, err := DecodePayload(lifted)
	require.NoError(t, err)
	require.IsType(t, &LiftedData{}, payload)
	require.Equal(t, uint64(500), payload.(*LiftedData).Amount.Uint64())

	claimed := &entity.EthereumEvent{
		Type:   entity.EventTypeAvtLowerClaimed,
		Topics: []common.Hash{entity.EventTypeAvtLowerClaimed.Signature(), topicFromUint(42)},
	}
	payload, err = DecodePayload(claimed)
	require.NoError(t, err)
	require.IsType(t, &AvtLowerClaimedData{}, payload)

	_, err = DecodePayload(&entity.EthereumEvent{Type: "Unknown"})
	require.ErrorIs(t, err, ErrWrongEventType)

	// a well-shaped event of the wrong type is refused by its own decoder
	lifted.Type = entity.EventTypeNftMint
	_, err = DecodePayload(lifted)
	require.ErrorIs(t, err, ErrMalformedEventData)
}

func TestDecodeAvtLowerClaimed(t *testing.T) {
	event := &entity.EthereumEvent{
		Type:   entity.EventTypeAvtLowerClaimed,
		Topics: []common.Hash{entity.EventTypeAvtLowerClaimed.Signature(), topicFromUint(42)},
	}
	data, err := DecodeAvtLowerClaimed(event)
	require.NoError(t, err)
	require.Equal(t, uint32(42), data.LowerID)

	_, err = DecodeAvtLowerClaimed(&entity.EthereumEvent{
		Type:   entity.EventTypeAvtLowerClaimed,
		Topics: event.Topics,
		Data:   make([]byte, 32),
	})
	require.ErrorIs(t, err, ErrMalformedEventData)
}

func TestDecodeNftMint(t *testing.T) {
	owner := common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
	ref := "b1dc0452-8b2f-78ec-7e80-167002d11678"
	data := make([]byte, 128)
	copy(data[64:], ref)

	event := &entity.EthereumEvent{
		Type:   entity.EventTypeNftMint,
		Topics: []common.Hash{entity.EventTypeNftMint.Signature(), topicFromUint(77), topicFromUint(3), owner},
		Data:   data,
	}
	decoded, err := DecodeNftMint(event)
	require.NoError(t, err)
	require.Equal(t, uint64(77), decoded.BatchID.Uint64())
	require.Equal(t, uint64(3), decoded.SaleIndex)
	require.Equal(t, owner, decoded.OwnerPublicKey)
	require.Equal(t, ref, decoded.UniqueExternalRef)
}

func TestDecodeNftLifecycleEvents(t *testing.T) {
	key := common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333")

	transfer, err := DecodeNftTransferTo(&entity.EthereumEvent{
		Type:   entity.EventTypeNftTransferTo,
		Topics: []common.Hash{entity.EventTypeNftTransferTo.Signature(), topicFromUint(9), key, topicFromUint(2)},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(9), transfer.NftID.Uint64())
	require.Equal(t, key, transfer.TransferToPublicKey)
	require.Equal(t, uint64(2), transfer.OpID)

	cancel, err := DecodeNftCancelListing(&entity.EthereumEvent{
		Type:   entity.EventTypeNftCancelListing,
		Topics: []common.Hash{entity.EventTypeNftCancelListing.Signature(), topicFromUint(9), topicFromUint(3)},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), cancel.OpID)

	end, err := DecodeNftEndBatchListing(&entity.EthereumEvent{
		Type:   entity.EventTypeNftEndBatchListing,
		Topics: []common.Hash{entity.EventTypeNftEndBatchListing.Signature(), topicFromUint(77)},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(77), end.BatchID.Uint64())
}
