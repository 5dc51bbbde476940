package voting

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/entity"
)

var (
	ErrDuplicateVote = errors.New("account has already voted in this session")
	ErrVotesFull     = errors.New("voting session is at capacity")
)

// NewSession opens a session for one decision. The threshold applies to both
// sides: ayes >= threshold approves, nays >= threshold rejects.
func NewSession(id common.Hash, threshold uint, capacity uint, createdAtBlock, endOfVotingPeriod uint64) *entity.VotingSession {
	return &entity.VotingSession{
		ID:                id,
		Threshold:         threshold,
		Ayes:              entity.NewBoundedAccountSet(capacity),
		Nays:              entity.NewBoundedAccountSet(capacity),
		Confirmations:     entity.NewBoundedSignatureSet(capacity),
		EndOfVotingPeriod: endOfVotingPeriod,
		CreatedAtBlock:    createdAtBlock,
	}
}

func HasVoted(s *entity.VotingSession, account common.Address) bool {
	return s.Ayes.Contains(account) || s.Nays.Contains(account)
}

// RecordAye registers an approval, keeping the voter's ECDSA confirmation of
// the decision payload alongside the vote.
func RecordAye(s *entity.VotingSession, account common.Address, confirmation []byte) error {
	if HasVoted(s, account) {
		return ErrDuplicateVote
	}
	if err := s.Ayes.Push(account); err != nil {
		return ErrVotesFull
	}
	if err := s.Confirmations.Push(confirmation); err != nil {
		return ErrVotesFull
	}
	return nil
}

func RecordNay(s *entity.VotingSession, account common.Address) error {
	if HasVoted(s, account) {
		return ErrDuplicateVote
	}
	if err := s.Nays.Push(account); err != nil {
		return ErrVotesFull
	}
	return nil
}

// HasOutcome reports whether either side reached the threshold.
func HasOutcome(s *entity.VotingSession) bool {
	return s.Ayes.Count() >= s.Threshold || s.Nays.Count() >= s.Threshold
}

// IsApproved is only meaningful once HasOutcome or IsExpired holds. Expired
// sessions resolve to not-approved.
func IsApproved(s *entity.VotingSession) bool {
	return s.Ayes.Count() >= s.Threshold
}

func IsExpired(s *entity.VotingSession, currentBlock uint64) bool {
	return currentBlock > s.EndOfVotingPeriod
}
