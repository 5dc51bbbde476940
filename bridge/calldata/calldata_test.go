package calldata

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/fedbridge/bridge-node/entity"
)

func TestEncodeFunctionCallSelector(t *testing.T) {
	params := []entity.FunctionParam{
		{Type: "address", Value: "0x41592B7a0dC051EA55b04debe1f4b202AF7d38d0"},
		{Type: "uint256", Value: "1000000000000000000"},
	}
	data, err := EncodeFunctionCall("transfer", params)
	require.NoError(t, err)

	// transfer(address,uint256) selector
	require.Equal(t, "0xa9059cbb", hexutil.Encode(data[:4]))
	// 2 static words follow the selector
	require.Len(t, data, 4+64)
}

func TestEncodeFunctionCallRejectsBadInput(t *testing.T) {
	_, err := EncodeFunctionCall("", nil)
	require.Error(t, err)

	_, err = EncodeFunctionCall("f", []entity.FunctionParam{{Type: "uint42", Value: "1"}})
	require.Error(t, err)

	_, err = EncodeFunctionCall("f", []entity.FunctionParam{{Type: "uint32", Value: "not-a-number"}})
	require.Error(t, err)

	_, err = EncodeFunctionCall("f", []entity.FunctionParam{{Type: "address", Value: "0x123"}})
	require.Error(t, err)
}

func TestEncodeFunctionCallBytes32(t *testing.T) {
	h := crypto.Keccak256Hash([]byte("payload"))
	data, err := EncodeFunctionCall("confirm", []entity.FunctionParam{
		{Type: "bytes32", Value: h.Hex()},
	})
	require.NoError(t, err)
	require.Equal(t, h.Bytes(), data[4:36])
}

func TestGenerateMsgHashChangesWithParams(t *testing.T) {
	params := []entity.FunctionParam{{Type: "uint32", Value: "7"}}

	h1, err := GenerateMsgHash("publishRoot", ExtendParams(params, 1000, 1))
	require.NoError(t, err)
	h2, err := GenerateMsgHash("publishRoot", ExtendParams(params, 1000, 2))
	require.NoError(t, err)
	h3, err := GenerateMsgHash("publishRoot", ExtendParams(params, 2000, 1))
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
	require.NotEqual(t, h1, h3)

	again, err := GenerateMsgHash("publishRoot", ExtendParams(params, 1000, 1))
	require.NoError(t, err)
	require.Equal(t, h1, again)
}

func TestHashParamsDeterministic(t *testing.T) {
	params := []entity.FunctionParam{{Type: "bytes", Value: "0xdead"}}
	require.Equal(t, HashParams(1, params), HashParams(1, params))
	require.NotEqual(t, HashParams(1, params), HashParams(2, params))
}
