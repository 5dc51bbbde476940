package entity

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type RequestKind string

const (
	RequestKindSend       RequestKind = "send"
	RequestKindLowerProof RequestKind = "lower_proof"
)

// FunctionParam is one (solidity type, value) pair of an outbound contract
// call. Numeric values are decimal strings, bytes values are 0x-prefixed hex.
type FunctionParam struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Request is an outbound unit of work submitted by another chain component.
// Immutable once created; owned by the queue until promoted to active.
type Request struct {
	Kind         RequestKind     `json:"kind"`
	TxID         uint32          `json:"tx_id,omitempty"`
	LowerID      uint32          `json:"lower_id,omitempty"`
	FunctionName string          `json:"function_name,omitempty"`
	Params       []FunctionParam `json:"params"`
	CallerID     string          `json:"caller_id"`
}

func (r *Request) ID() uint32 {
	if r.Kind == RequestKindLowerProof {
		return r.LowerID
	}
	return r.TxID
}

// Confirmation tracks the message hash being attested and the ECDSA
// signatures collected so far.
type Confirmation struct {
	MsgHash    common.Hash         `json:"msg_hash"`
	Signatures BoundedSignatureSet `json:"signatures"`
}

// TxData exists once a sender has been appointed for a send request.
type TxData struct {
	Sender                      common.Address    `json:"sender"`
	Expiry                      uint64            `json:"expiry"`
	EthTxHash                   common.Hash       `json:"eth_tx_hash"`
	ReplayAttempt               uint32            `json:"replay_attempt"`
	ValidTxHashCorroborations   BoundedAccountSet `json:"valid_tx_hash_corroborations"`
	InvalidTxHashCorroborations BoundedAccountSet `json:"invalid_tx_hash_corroborations"`
	SuccessCorroborations       BoundedAccountSet `json:"success_corroborations"`
	FailureCorroborations       BoundedAccountSet `json:"failure_corroborations"`
}

// ActiveRequest is the single outstanding request being advanced through the
// bridge state machine. At most one exists at any time.
type ActiveRequest struct {
	Request      Request      `json:"request"`
	Confirmation Confirmation `json:"confirmation"`
	TxData       *TxData      `json:"tx_data,omitempty"`
	LastUpdated  uint64       `json:"last_updated"`
}

func (r *ActiveRequest) IsSend() bool {
	return r.Request.Kind == RequestKindSend
}

type ActiveRequestRepo interface {
	Get(ctx context.Context) (*ActiveRequest, error)
	Put(ctx context.Context, req *ActiveRequest) error
	Delete(ctx context.Context) error
}

type RequestQueueRepo interface {
	Enqueue(ctx context.Context, req *Request) error
	Dequeue(ctx context.Context) (*Request, error)
	Len(ctx context.Context) (uint, error)
	List(ctx context.Context) ([]*Request, error)
}
