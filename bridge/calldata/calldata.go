package calldata

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fedbridge/bridge-node/entity"
)

// EncodeFunctionCall builds the full calldata for an outbound contract call:
// 4-byte selector followed by the ABI-encoded arguments.
func EncodeFunctionCall(functionName string, params []entity.FunctionParam) ([]byte, error) {
	if functionName == "" {
		return nil, fmt.Errorf("empty function name")
	}
	args := make(abi.Arguments, len(params))
	values := make([]interface{}, len(params))
	types := make([]string, len(params))
	for i, param := range params {
		typ, err := abi.NewType(param.Type, "", nil)
		if err != nil {
			return nil, fmt.Errorf("unsupported param type %q: %w", param.Type, err)
		}
		value, err := parseValue(typ, param.Value)
		if err != nil {
			return nil, fmt.Errorf("can't parse param %d: %w", i, err)
		}
		args[i] = abi.Argument{Type: typ}
		values[i] = value
		types[i] = param.Type
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("can't pack params: %w", err)
	}
	signature := fmt.Sprintf("%s(%s)", functionName, strings.Join(types, ","))
	selector := crypto.Keccak256([]byte(signature))[:4]
	return append(selector, packed...), nil
}

// GenerateMsgHash is the message every confirmation attests to: the keccak
// hash of the exact calldata the sender will dispatch.
func GenerateMsgHash(functionName string, params []entity.FunctionParam) (common.Hash, error) {
	data, err := EncodeFunctionCall(functionName, params)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

// HashParams derives the message hash for a lower proof, which has no
// calldata of its own.
func HashParams(lowerID uint32, params []entity.FunctionParam) common.Hash {
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, lowerID)
	for _, param := range params {
		buf = append(buf, param.Type...)
		buf = append(buf, param.Value...)
	}
	return crypto.Keccak256Hash(buf)
}

// ExtendParams appends the transaction expiry and id, making every replay
// attempt produce a distinct message hash.
func ExtendParams(params []entity.FunctionParam, expiry uint64, txID uint32) []entity.FunctionParam {
	extended := make([]entity.FunctionParam, 0, len(params)+2)
	extended = append(extended, params...)
	extended = append(extended,
		entity.FunctionParam{Type: "uint256", Value: strconv.FormatUint(expiry, 10)},
		entity.FunctionParam{Type: "uint32", Value: strconv.FormatUint(uint64(txID), 10)},
	)
	return extended
}

func parseValue(typ abi.Type, value string) (interface{}, error) {
	switch typ.T {
	case abi.UintTy:
		if typ.Size > 64 {
			n, ok := new(big.Int).SetString(value, 10)
			if !ok {
				return nil, fmt.Errorf("invalid integer %q", value)
			}
			return n, nil
		}
		n, err := strconv.ParseUint(value, 10, typ.Size)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", value, err)
		}
		return sizedUint(n, typ.Size), nil
	case abi.IntTy:
		if typ.Size > 64 {
			n, ok := new(big.Int).SetString(value, 10)
			if !ok {
				return nil, fmt.Errorf("invalid integer %q", value)
			}
			return n, nil
		}
		n, err := strconv.ParseInt(value, 10, typ.Size)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", value, err)
		}
		return sizedInt(n, typ.Size), nil
	case abi.AddressTy:
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid address %q", value)
		}
		return common.HexToAddress(value), nil
	case abi.BytesTy:
		blob, err := hexutil.Decode(value)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes %q: %w", value, err)
		}
		return blob, nil
	case abi.FixedBytesTy:
		blob, err := hexutil.Decode(value)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes %q: %w", value, err)
		}
		if len(blob) != typ.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", typ.Size, len(blob))
		}
		arr := reflect.New(typ.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(blob))
		return arr.Interface(), nil
	case abi.StringTy:
		return value, nil
	case abi.BoolTy:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q: %w", value, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported abi type %s", typ.String())
}

func sizedUint(n uint64, size int) interface{} {
	switch {
	case size <= 8:
		return uint8(n)
	case size <= 16:
		return uint16(n)
	case size <= 32:
		return uint32(n)
	default:
		return n
	}
}

func sizedInt(n int64, size int) interface{} {
	switch {
	case size <= 8:
		return int8(n)
	case size <= 16:
		return int16(n)
	case size <= 32:
		return int32(n)
	default:
		return n
	}
}
