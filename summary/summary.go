package summary

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/bridge"
	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/utils"
	"github.com/fedbridge/bridge-node/voting"
)

// CallerID identifies summary-originated bridge requests.
const CallerID = "summary"

var (
	ErrRootAlreadyRegistered  = errors.New("root hash is already under vote")
	ErrUnknownRoot            = errors.New("root hash is not under vote")
	ErrVotingPeriodOpen       = errors.New("voting period has not elapsed yet")
	ErrInvalidConfirmation    = errors.New("confirmation does not sign the root hash")
	ErrNotSlotValidator       = errors.New("author is not the current slot validator")
	ErrTooEarlyToAdvanceSlot  = errors.New("slot schedule period has not elapsed yet")
	ErrSlotGracePeriodElapsed = errors.New("slot validator may not advance past the grace period")
)

type Config struct {
	VotingPeriodBlocks   uint64
	SchedulePeriodBlocks uint64
	SlotGraceBlocks      uint64
	VotesCapacity        uint
}

// Service votes published root hashes through a supermajority session and
// forwards approved roots to the bridge for publication on the external chain.
type Service struct {
	mu sync.Mutex

	logger     logging.Logger
	repo       *repository.Repo
	validators chain.ValidatorSetProvider
	clock      chain.Clock
	offences   *offence.Reporter
	bridge     *bridge.Bridge
	cfg        Config
}

func NewService(logger logging.Logger, repo *repository.Repo, validators chain.ValidatorSetProvider, clock chain.Clock, offences *offence.Reporter, b *bridge.Bridge, cfg Config) *Service {
	return &Service{
		logger:     logger,
		repo:       repo,
		validators: validators,
		clock:      clock,
		offences:   offences,
		bridge:     b,
		cfg:        cfg,
	}
}

// InitSlot seeds the slot schedule if none exists yet. Safe to call on every
// startup.
func (s *Service) InitSlot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.slot(ctx)
	return err
}

// slot loads the current slot, opening slot zero on first use: its validator
// is the primary for the current block and it runs one full schedule period.
func (s *Service) slot(ctx context.Context) (*entity.Slot, error) {
	slot, err := s.repo.Slot.Get(ctx)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("can't load slot: %w", err)
	}
	block := s.clock.CurrentBlock()
	primary, err := chain.PrimaryValidator(s.validators.Validators(), block)
	if err != nil {
		return nil, err
	}
	slot = &entity.Slot{
		Number:      0,
		Validator:   primary.AccountID,
		NextAtBlock: block + s.cfg.SchedulePeriodBlocks,
	}
	if err = s.repo.Slot.Put(ctx, slot); err != nil {
		return nil, fmt.Errorf("can't store slot: %w", err)
	}
	s.logger.WithField("slot_validator", slot.Validator).WithField("next_slot_at_block", slot.NextAtBlock).Info("slot schedule opened")
	return slot, nil
}

// AdvanceSlot rotates the schedule to the next slot. Within the grace period
// after the slot boundary only the slot's own validator may advance; past it
// anyone else may, and the stalling validator is reported. Advancing a slot
// that never got a root approved reports the slot validator as well.
func (s *Service) AdvanceSlot(ctx context.Context, author common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	slot, err := s.slot(ctx)
	if err != nil {
		return err
	}
	block := s.clock.CurrentBlock()
	if block < slot.NextAtBlock {
		return ErrTooEarlyToAdvanceSlot
	}
	graceElapsed := block > slot.NextAtBlock+s.cfg.SlotGraceBlocks
	if graceElapsed && author == slot.Validator {
		return ErrSlotGracePeriodElapsed
	}
	if !graceElapsed && author != slot.Validator {
		return ErrNotSlotValidator
	}

	if slot.LastSummarySlot < slot.Number {
		s.offences.Report(ctx, author, []common.Address{slot.Validator}, offence.TypeNoSummaryCreated)
	}
	if graceElapsed {
		s.offences.Report(ctx, author, []common.Address{slot.Validator}, offence.TypeSlotNotAdvanced)
	}

	slot.Number++
	next, err := chain.PrimaryValidator(s.validators.Validators(), slot.Number)
	if err != nil {
		return err
	}
	slot.Validator = next.AccountID
	slot.NextAtBlock += s.cfg.SchedulePeriodBlocks
	if err = s.repo.Slot.Put(ctx, slot); err != nil {
		return fmt.Errorf("can't store slot: %w", err)
	}
	s.logger.WithField("slot", slot.Number).
		WithField("slot_validator", slot.Validator).
		WithField("next_slot_at_block", slot.NextAtBlock).
		Info("slot advanced")
	ObserveSlotAdvanced()
	return nil
}

// RecordSummaryCalculation opens a voting session for a computed root hash.
// Only the current slot's validator may post one.
func (s *Service) RecordSummaryCalculation(ctx context.Context, author common.Address, rootHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	slot, err := s.slot(ctx)
	if err != nil {
		return err
	}
	if slot.Validator != author {
		return ErrNotSlotValidator
	}
	if _, err = s.repo.VotingSessions.Get(ctx, rootHash); err == nil {
		return ErrRootAlreadyRegistered
	} else if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("can't check voting sessions: %w", err)
	}

	block := s.clock.CurrentBlock()
	threshold := chain.SupermajorityQuorum(uint(len(s.validators.Validators())))
	session := voting.NewSession(rootHash, threshold, s.cfg.VotesCapacity, block, block+s.cfg.VotingPeriodBlocks)
	if err = s.repo.VotingSessions.Put(ctx, session); err != nil {
		return fmt.Errorf("can't open voting session: %w", err)
	}
	s.logger.WithField("root_hash", rootHash).WithField("end_of_voting_period", session.EndOfVotingPeriod).Info("root hash registered for voting")
	return nil
}

// ApproveRoot records an aye carrying the voter's ECDSA confirmation of the
// root. Reaching the threshold resolves the session immediately.
func (s *Service) ApproveRoot(ctx context.Context, author common.Address, rootHash common.Hash, confirmation []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(ctx, rootHash)
	if err != nil {
		return err
	}
	validator, err := s.validators.TryGetValidator(author)
	if err != nil {
		return err
	}
	if err = utils.VerifySigner(validator.EthAddress, rootHash.Bytes(), confirmation); err != nil {
		return ErrInvalidConfirmation
	}
	if err = voting.RecordAye(session, author, confirmation); err != nil {
		return err
	}
	return s.storeOrResolve(ctx, session)
}

// RejectRoot records a nay. No confirmation is carried: there is nothing for
// the external chain to verify about a rejection.
func (s *Service) RejectRoot(ctx context.Context, author common.Address, rootHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(ctx, rootHash)
	if err != nil {
		return err
	}
	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	if err = voting.RecordNay(session, author); err != nil {
		return err
	}
	return s.storeOrResolve(ctx, session)
}

// EndVotingPeriod resolves a session that expired without reaching its
// threshold. The default is rejection.
func (s *Service) EndVotingPeriod(ctx context.Context, author common.Address, rootHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(ctx, rootHash)
	if err != nil {
		return err
	}
	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	if !voting.HasOutcome(session) && !voting.IsExpired(session, s.clock.CurrentBlock()) {
		return ErrVotingPeriodOpen
	}
	return s.resolve(ctx, session)
}

func (s *Service) session(ctx context.Context, rootHash common.Hash) (*entity.VotingSession, error) {
	session, err := s.repo.VotingSessions.Get(ctx, rootHash)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUnknownRoot
		}
		return nil, fmt.Errorf("can't load voting session: %w", err)
	}
	return session, nil
}

func (s *Service) storeOrResolve(ctx context.Context, session *entity.VotingSession) error {
	if voting.HasOutcome(session) {
		return s.resolve(ctx, session)
	}
	if err := s.repo.VotingSessions.Put(ctx, session); err != nil {
		return fmt.Errorf("can't store voting session: %w", err)
	}
	return nil
}

// resolve closes the session, reports voters on the losing side and, for an
// approved root, hands it to the bridge for publication.
func (s *Service) resolve(ctx context.Context, session *entity.VotingSession) error {
	approved := voting.IsApproved(session)
	if approved && len(session.Nays.Accounts) > 0 {
		s.offences.Report(ctx, session.Ayes.Accounts[0], session.Nays.Accounts, offence.TypeRejectedValidRoot)
	}
	if !approved && len(session.Ayes.Accounts) > 0 {
		reporter := session.Ayes.Accounts[0]
		if len(session.Nays.Accounts) > 0 {
			reporter = session.Nays.Accounts[0]
		}
		s.offences.Report(ctx, reporter, session.Ayes.Accounts, offence.TypeApprovedInvalidRoot)
	}
	if err := s.repo.VotingSessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("can't close voting session: %w", err)
	}
	s.logger.WithField("root_hash", session.ID).WithField("approved", approved).Info("root voting resolved")
	ObserveRootResolved(approved)

	if !approved {
		return nil
	}
	slot, err := s.slot(ctx)
	if err != nil {
		return err
	}
	slot.LastSummarySlot = slot.Number
	if err = s.repo.Slot.Put(ctx, slot); err != nil {
		return fmt.Errorf("can't store slot: %w", err)
	}
	params := []entity.FunctionParam{{Type: "bytes32", Value: session.ID.Hex()}}
	if _, err := s.bridge.Publish(ctx, "publishRoot", params, CallerID); err != nil {
		return fmt.Errorf("can't publish approved root: %w", err)
	}
	return nil
}

// ProcessResult receives the bridge's settlement callback for a published root.
func (s *Service) ProcessResult(_ context.Context, txID uint32, _ string, succeeded bool) error {
	s.logger.WithField("tx_id", txID).WithField("succeeded", succeeded).Info("root publication settled")
	return nil
}

func (s *Service) ProcessLowerProofResult(_ context.Context, lowerID uint32, _ string, _ []byte, succeeded bool) error {
	s.logger.WithField("lower_id", lowerID).WithField("succeeded", succeeded).Info("lower proof resolved")
	return nil
}
