package entity

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrCapacityExceeded = errors.New("bounded collection capacity exceeded")

// BoundedAccountSet is a capacity-checked set of account addresses. Capacity
// is enforced at the insertion boundary, membership is unique.
type BoundedAccountSet struct {
	Capacity uint             `json:"capacity"`
	Accounts []common.Address `json:"accounts"`
}

func NewBoundedAccountSet(capacity uint) BoundedAccountSet {
	return BoundedAccountSet{Capacity: capacity}
}

func (s *BoundedAccountSet) Contains(account common.Address) bool {
	for _, a := range s.Accounts {
		if a == account {
			return true
		}
	}
	return false
}

func (s *BoundedAccountSet) Push(account common.Address) error {
	if uint(len(s.Accounts)) >= s.Capacity {
		return ErrCapacityExceeded
	}
	s.Accounts = append(s.Accounts, account)
	return nil
}

func (s *BoundedAccountSet) Count() uint {
	return uint(len(s.Accounts))
}

// BoundedSignatureSet is a capacity-checked list of 65-byte ECDSA signatures.
type BoundedSignatureSet struct {
	Capacity   uint            `json:"capacity"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

func NewBoundedSignatureSet(capacity uint) BoundedSignatureSet {
	return BoundedSignatureSet{Capacity: capacity}
}

func (s *BoundedSignatureSet) Push(sig []byte) error {
	if uint(len(s.Signatures)) >= s.Capacity {
		return ErrCapacityExceeded
	}
	s.Signatures = append(s.Signatures, sig)
	return nil
}

func (s *BoundedSignatureSet) Count() uint {
	return uint(len(s.Signatures))
}

// Concat returns all signatures joined in insertion order.
func (s *BoundedSignatureSet) Concat() []byte {
	var out []byte
	for _, sig := range s.Signatures {
		out = append(out, sig...)
	}
	return out
}
