package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/events"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/repository"
)

type Config struct {
	ChallengePeriodBlocks uint64
	QuorumFactor          uint
}

// Service is the per-event pipeline: an ingested event is checked once by the
// rotating primary validator, sits through a challenge window where every
// other validator may dispute the verdict, and is then resolved permanently.
type Service struct {
	mu sync.Mutex

	logger     logging.Logger
	repo       *repository.Repo
	validators chain.ValidatorSetProvider
	clock      chain.Clock
	offences   *offence.Reporter
	handlers   map[entity.EventType]events.Handler
	cfg        Config
}

func NewService(logger logging.Logger, repo *repository.Repo, validators chain.ValidatorSetProvider, clock chain.Clock, offences *offence.Reporter, cfg Config) *Service {
	return &Service{
		logger:     logger,
		repo:       repo,
		validators: validators,
		clock:      clock,
		offences:   offences,
		handlers:   make(map[entity.EventType]events.Handler),
		cfg:        cfg,
	}
}

func (s *Service) RegisterHandler(t entity.EventType, h events.Handler) {
	s.handlers[t] = h
}

// AddEthereumLog ingests one event into the unchecked queue. Duplicates are
// detected across the whole pipeline: queued, pending a challenge window, or
// already resolved.
func (s *Service) AddEthereumLog(ctx context.Context, author common.Address, event entity.EthereumEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	known, err := s.eventKnown(ctx, event.EventID(), event.TxHash)
	if err != nil {
		return err
	}
	if known {
		return ErrDuplicateEvent
	}
	ingress, err := s.repo.Counters.NextIngressCounter(ctx)
	if err != nil {
		return fmt.Errorf("can't allocate ingress counter: %w", err)
	}
	unchecked := &entity.UncheckedEvent{
		IngressCounter: ingress,
		Event:          event,
		AddedBy:        &author,
	}
	if err = s.repo.UncheckedEvents.Insert(ctx, unchecked); err != nil {
		return fmt.Errorf("can't queue unchecked event: %w", err)
	}
	s.logger.WithField("event_type", event.Type).WithField("event_tx_hash", event.TxHash).Info("ethereum log queued for checking")
	return nil
}

func (s *Service) eventKnown(ctx context.Context, id entity.EventID, txHash common.Hash) (bool, error) {
	queued, err := s.repo.UncheckedEvents.ExistsByEventID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("can't check unchecked events: %w", err)
	}
	if queued {
		return true, nil
	}
	if _, err = s.repo.EventChecks.GetByEventID(ctx, id); err == nil {
		return true, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return false, fmt.Errorf("can't check event checks: %w", err)
	}
	processed, err := s.repo.ProcessedEvents.GetByTxHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("can't check processed events: %w", err)
	}
	return processed.Accepted, nil
}

// SubmitCheckEventResult posts the primary validator's verdict on a queued
// event and opens its challenge window.
func (s *Service) SubmitCheckEventResult(ctx context.Context, author common.Address, ingressCounter uint64, result entity.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	primary, err := chain.PrimaryValidator(s.validators.Validators(), s.clock.CurrentBlock())
	if err != nil {
		return err
	}
	if primary.AccountID != author {
		return ErrNotPrimaryValidator
	}
	if !result.Postable() {
		return ErrResultNotPostable
	}
	unchecked, err := s.uncheckedByIngress(ctx, ingressCounter)
	if err != nil {
		return err
	}

	block := s.clock.CurrentBlock()
	check := &entity.EventCheck{
		IngressCounter:    ingressCounter,
		Event:             unchecked.Event,
		Result:            result,
		CheckedBy:         author,
		CheckedAtBlock:    block,
		ReadyAfterBlock:   block + s.cfg.ChallengePeriodBlocks,
		MinChallengeVotes: s.minChallengeVotes(),
	}
	if err = s.repo.EventChecks.Insert(ctx, check); err != nil {
		return fmt.Errorf("can't store event check: %w", err)
	}
	if err = s.repo.UncheckedEvents.DeleteByIngressCounter(ctx, ingressCounter); err != nil {
		return fmt.Errorf("can't dequeue unchecked event: %w", err)
	}
	s.logger.WithField("event_tx_hash", unchecked.Event.TxHash).
		WithField("result", result).
		WithField("ready_after_block", check.ReadyAfterBlock).
		Info("check result posted")
	ObserveCheckPosted(result)
	return nil
}

func (s *Service) uncheckedByIngress(ctx context.Context, ingressCounter uint64) (*entity.UncheckedEvent, error) {
	queued, err := s.repo.UncheckedEvents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't list unchecked events: %w", err)
	}
	for _, ev := range queued {
		if ev.IngressCounter == ingressCounter {
			return ev, nil
		}
	}
	return nil, ErrUnknownEvent
}

func (s *Service) minChallengeVotes() uint {
	return uint(len(s.validators.Validators())) / s.cfg.QuorumFactor
}

// ChallengeEvent records one validator's disagreement with a posted verdict.
func (s *Service) ChallengeEvent(ctx context.Context, author common.Address, id entity.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	check, err := s.repo.EventChecks.GetByEventID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrMissingEventCheck
		}
		return fmt.Errorf("can't load event check: %w", err)
	}
	if check.CheckedBy == author {
		return ErrCannotChallengeOwnCheck
	}
	challenged, err := s.repo.Challenges.Exists(ctx, id, author)
	if err != nil {
		return fmt.Errorf("can't check challenges: %w", err)
	}
	if challenged {
		return ErrDuplicateChallenge
	}
	challenge := &entity.Challenge{
		EventType:    id.Type,
		EventTxHash:  id.TxHash,
		ChallengedBy: author,
	}
	if err = s.repo.Challenges.Insert(ctx, challenge); err != nil {
		return fmt.Errorf("can't record challenge: %w", err)
	}
	s.logger.WithField("event_tx_hash", id.TxHash).WithField("challenged_by", author).Warn("check result challenged")
	ObserveChallenge()
	return nil
}

// ProcessEvent resolves a posted verdict once its challenge window elapsed.
// A successful challenge means the posted verdict was wrong: the checker is
// reported, and an overturned Invalid verdict leaves the event resubmittable
// instead of marking it processed. An unsuccessful challenge reports the
// challengers and the verdict stands.
func (s *Service) ProcessEvent(ctx context.Context, author common.Address, id entity.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	check, err := s.repo.EventChecks.GetByEventID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrMissingEventCheck
		}
		return fmt.Errorf("can't load event check: %w", err)
	}
	if s.clock.CurrentBlock() <= check.ReadyAfterBlock {
		return ErrChallengeWindowOpen
	}
	challenges, err := s.repo.Challenges.CountByEventID(ctx, id)
	if err != nil {
		return fmt.Errorf("can't count challenges: %w", err)
	}

	logger := s.logger.WithField("event_tx_hash", id.TxHash).WithField("result", check.Result).WithField("challenges", challenges)
	if s.challengeSuccessful(check, challenges) {
		s.offences.Report(ctx, author, []common.Address{check.CheckedBy}, offence.TypeIncorrectCheckResultSubmitted)
		if err = s.clearResolved(ctx, id); err != nil {
			return err
		}
		if check.Result == entity.CheckResultInvalid {
			// The event may be genuine after all. Leaving it out of
			// ProcessedEvents lets it be submitted again.
			logger.Warn("invalid verdict overturned, event is resubmittable")
			ObserveEventResolved("overturned_invalid")
			return nil
		}
		logger.Warn("verdict overturned by challenge")
		ObserveEventResolved("overturned")
		return s.recordProcessed(ctx, check, false)
	}

	if challenges > 0 {
		dissenters, err2 := s.challengers(ctx, id)
		if err2 != nil {
			return err2
		}
		s.offences.Report(ctx, check.CheckedBy, dissenters, offence.TypeChallengeAttemptedOnValidResult)
	}
	if err = s.clearResolved(ctx, id); err != nil {
		return err
	}

	accepted := false
	if check.Result == entity.CheckResultOk {
		accepted = s.dispatch(ctx, check) == nil
	}
	logger.WithField("accepted", accepted).Info("event resolved")
	ObserveEventResolved("upheld")
	return s.recordProcessed(ctx, check, accepted)
}

// challengeSuccessful re-derives the threshold at resolution time so a grown
// validator set cannot be overturned by a stale recorded minimum.
func (s *Service) challengeSuccessful(check *entity.EventCheck, challenges uint) bool {
	threshold := s.minChallengeVotes()
	if check.MinChallengeVotes > threshold {
		threshold = check.MinChallengeVotes
	}
	return challenges > threshold
}

func (s *Service) challengers(ctx context.Context, id entity.EventID) ([]common.Address, error) {
	list, err := s.repo.Challenges.ListByEventID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't list challenges: %w", err)
	}
	out := make([]common.Address, len(list))
	for i, c := range list {
		out[i] = c.ChallengedBy
	}
	return out, nil
}

func (s *Service) clearResolved(ctx context.Context, id entity.EventID) error {
	if err := s.repo.EventChecks.DeleteByEventID(ctx, id); err != nil {
		return fmt.Errorf("can't delete event check: %w", err)
	}
	if err := s.repo.Challenges.DeleteByEventID(ctx, id); err != nil {
		return fmt.Errorf("can't delete challenges: %w", err)
	}
	return nil
}

func (s *Service) recordProcessed(ctx context.Context, check *entity.EventCheck, accepted bool) error {
	record := &entity.ProcessedEvent{
		TxHash:    check.Event.TxHash,
		EventType: check.Event.Type,
		Accepted:  accepted,
	}
	if err := s.repo.ProcessedEvents.Ensure(ctx, record); err != nil {
		return fmt.Errorf("can't record processed event: %w", err)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, check *entity.EventCheck) error {
	handler, ok := s.handlers[check.Event.Type]
	if !ok {
		s.logger.WithField("event_type", check.Event.Type).Warn("no handler registered for checked event")
		return errors.New("no handler registered")
	}
	discovered := &entity.DiscoveredEvent{Event: check.Event, Block: check.CheckedAtBlock}
	if err := handler.HandleEvent(ctx, discovered); err != nil {
		s.logger.WithError(err).WithField("event_tx_hash", check.Event.TxHash).Error("checked event handler failed")
		return err
	}
	return nil
}
