package chain

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotAValidator = errors.New("account is not a registered validator")

// Validator is one consortium authority: the chain account it signs
// extrinsics with and the Ethereum address its confirmation key resolves to.
type Validator struct {
	AccountID  common.Address `json:"account_id"`
	EthAddress common.Address `json:"eth_address"`
}

// ValidatorSetProvider exposes the current authority set. Implementations
// must return validators in a stable order; primary/sender rotation indexes
// into that order.
type ValidatorSetProvider interface {
	Validators() []Validator
	IsValidator(account common.Address) bool
	TryGetValidator(account common.Address) (Validator, error)
}

type staticValidatorSet struct {
	validators []Validator
	byAccount  map[common.Address]Validator
}

func NewStaticValidatorSet(validators []Validator) ValidatorSetProvider {
	byAccount := make(map[common.Address]Validator, len(validators))
	for _, v := range validators {
		byAccount[v.AccountID] = v
	}
	return &staticValidatorSet{
		validators: validators,
		byAccount:  byAccount,
	}
}

func (s *staticValidatorSet) Validators() []Validator {
	out := make([]Validator, len(s.validators))
	copy(out, s.validators)
	return out
}

func (s *staticValidatorSet) IsValidator(account common.Address) bool {
	_, ok := s.byAccount[account]
	return ok
}

func (s *staticValidatorSet) TryGetValidator(account common.Address) (Validator, error) {
	v, ok := s.byAccount[account]
	if !ok {
		return Validator{}, ErrNotAValidator
	}
	return v, nil
}

// PrimaryValidator picks the authority responsible for block-keyed duties.
// Every node derives the same answer with no communication.
func PrimaryValidator(validators []Validator, blockNumber uint64) (Validator, error) {
	if len(validators) == 0 {
		return Validator{}, ErrNotAValidator
	}
	return validators[blockNumber%uint64(len(validators))], nil
}
