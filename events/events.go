package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/repository"
)

// Handler consumes one accepted on-chain event. A non-nil error marks the
// event as rejected.
type Handler interface {
	HandleEvent(ctx context.Context, event *entity.DiscoveredEvent) error
}

type HandlerFunc func(ctx context.Context, event *entity.DiscoveredEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event *entity.DiscoveredEvent) error {
	return f(ctx, event)
}

type Config struct {
	RangeLength    uint32
	EventTypes     []entity.EventType
	BridgeContract common.Address
	NFTContracts   []common.Address
}

// Service runs the two-phase discovery consensus: supermajority voting to
// pick a scanning window, then simple-quorum voting on each events partition
// within it. Switching the window is higher stakes than approving one
// partition inside an agreed window, hence the asymmetric thresholds.
type Service struct {
	mu sync.Mutex

	logger     logging.Logger
	repo       *repository.Repo
	validators chain.ValidatorSetProvider
	offences   *offence.Reporter
	handlers   map[entity.EventType]Handler
	cfg        Config
}

func NewService(logger logging.Logger, repo *repository.Repo, validators chain.ValidatorSetProvider, offences *offence.Reporter, cfg Config) *Service {
	return &Service{
		logger:     logger,
		repo:       repo,
		validators: validators,
		offences:   offences,
		handlers:   make(map[entity.EventType]Handler),
		cfg:        cfg,
	}
}

// RegisterHandler wires the consumer for one event type. Must be called
// before the service starts approving partitions.
func (s *Service) RegisterHandler(t entity.EventType, h Handler) {
	s.handlers[t] = h
}

// WindowStart maps a finalised external block to the canonical start of the
// scanning window it votes for. The window trails the tip by five range
// lengths so every honest node scans blocks that are final for all of them.
func (s *Service) WindowStart(finalisedBlock uint32) uint32 {
	lag := 5 * s.cfg.RangeLength
	if finalisedBlock < lag {
		return 0
	}
	start := finalisedBlock - lag
	return start - start%s.cfg.RangeLength
}

// SubmitLatestEthereumBlock records one author's vote for the next scanning
// window. Once total votes reach supermajority the most-voted low window is
// selected and becomes the active range.
func (s *Service) SubmitLatestEthereumBlock(ctx context.Context, author common.Address, latestSeenBlock uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.ActiveRange.Get(ctx); err == nil {
		return ErrActiveRangeExists
	} else if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("can't load active range: %w", err)
	}
	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	voted, err := s.repo.BlockVotes.ExistsByAuthor(ctx, author)
	if err != nil {
		return fmt.Errorf("can't check block vote: %w", err)
	}
	if voted {
		return ErrEventVoteExists
	}
	vote := &entity.BlockVote{Author: author, WindowStart: s.WindowStart(latestSeenBlock)}
	if err = s.repo.BlockVotes.Insert(ctx, vote); err != nil {
		return fmt.Errorf("can't record block vote: %w", err)
	}

	votes, err := s.repo.BlockVotes.List(ctx)
	if err != nil {
		return fmt.Errorf("can't list block votes: %w", err)
	}
	supermajority := chain.SupermajorityQuorum(uint(len(s.validators.Validators())))
	if uint(len(votes)) < supermajority {
		return nil
	}
	return s.activateRange(ctx, selectWindow(votes, supermajority, chain.SimpleQuorum(uint(len(s.validators.Validators())))))
}

// selectWindow walks candidate windows in ascending start order, subtracting
// each window's votes from the supermajority threshold; the first window that
// drops the remainder below simple quorum wins. This favors the most-voted
// low window without requiring any single window to reach quorum alone.
func selectWindow(votes []*entity.BlockVote, supermajority, simpleQuorum uint) uint32 {
	perWindow := make(map[uint32]int)
	for _, vote := range votes {
		perWindow[vote.WindowStart]++
	}
	windows := make([]uint32, 0, len(perWindow))
	for w := range perWindow {
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i] < windows[j] })

	remaining := int(supermajority)
	for _, w := range windows {
		remaining -= perWindow[w]
		if remaining < int(simpleQuorum) {
			return w
		}
	}
	return windows[len(windows)-1]
}

func (s *Service) activateRange(ctx context.Context, windowStart uint32) error {
	additional, err := s.repo.AdditionalEvents.Drain(ctx)
	if err != nil {
		return fmt.Errorf("can't drain additional events: %w", err)
	}
	active := &entity.ActiveRange{
		Range:                  entity.EthBlockRange{StartBlock: windowStart, Length: s.cfg.RangeLength},
		Partition:              0,
		EventTypesFilter:       s.cfg.EventTypes,
		AdditionalTransactions: additional,
	}
	if err = s.repo.ActiveRange.Put(ctx, active); err != nil {
		return fmt.Errorf("can't store active range: %w", err)
	}
	if err = s.repo.BlockVotes.DeleteAll(ctx); err != nil {
		return fmt.Errorf("can't clear block votes: %w", err)
	}
	s.logger.WithField("start_block", windowStart).WithField("length", s.cfg.RangeLength).Info("new active ethereum range")
	ObserveRangeSelected()
	return nil
}

// SubmitEthereumEvents records one author's vote for a partition version.
// Simple quorum approves the partition: its events are filtered, deduped and
// dispatched, dissenting voters are reported, and the cursor advances.
func (s *Service) SubmitEthereumEvents(ctx context.Context, author common.Address, partition *entity.EventsPartition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.repo.ActiveRange.Get(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNonActiveEthereumRange
		}
		return fmt.Errorf("can't load active range: %w", err)
	}
	if partition.Range != active.Range || partition.Partition != active.Partition {
		return ErrNonActiveEthereumRange
	}
	if !s.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	voted, err := s.repo.PartitionVotes.ExistsByAuthor(ctx, author)
	if err != nil {
		return fmt.Errorf("can't check partition vote: %w", err)
	}
	if voted {
		return ErrEventVoteExists
	}
	partitionID := partition.ID()
	if err = s.repo.PartitionVotes.Insert(ctx, &entity.PartitionVote{PartitionID: partitionID, Author: author}); err != nil {
		return fmt.Errorf("can't record partition vote: %w", err)
	}
	count, err := s.repo.PartitionVotes.CountByPartition(ctx, partitionID)
	if err != nil {
		return fmt.Errorf("can't count partition votes: %w", err)
	}
	if count < chain.SimpleQuorum(uint(len(s.validators.Validators()))) {
		return nil
	}
	return s.approvePartition(ctx, author, active, partition, partitionID)
}

func (s *Service) approvePartition(ctx context.Context, author common.Address, active *entity.ActiveRange, partition *entity.EventsPartition, partitionID common.Hash) error {
	for i := range partition.Events {
		event := &partition.Events[i]
		logger := s.logger.WithField("event_type", event.Event.Type).WithField("event_tx_hash", event.Event.TxHash)
		if err := s.processEvent(ctx, active, event); err != nil {
			logger.WithError(err).Warn("ethereum event rejected")
			ObserveEvent(false)
			continue
		}
		logger.Info("ethereum event accepted")
		ObserveEvent(true)
	}

	dissenters, err := s.repo.PartitionVotes.VotersExcept(ctx, partitionID)
	if err != nil {
		return fmt.Errorf("can't list dissenting voters: %w", err)
	}
	s.offences.Report(ctx, author, dissenters, offence.TypeInvalidEthereumRangeData)
	if err = s.repo.PartitionVotes.DeleteAll(ctx); err != nil {
		return fmt.Errorf("can't clear partition votes: %w", err)
	}
	ObservePartitionApproved()

	if !partition.IsLast {
		active.Partition++
		if err = s.repo.ActiveRange.Put(ctx, active); err != nil {
			return fmt.Errorf("can't advance partition: %w", err)
		}
		return nil
	}
	return s.activateRange(ctx, active.Range.NextRange().StartBlock)
}

// processEvent applies the per-event acceptance pipeline: filter, bounds,
// emitting contract, replay protection, handler dispatch. Every event that
// reaches the replay check leaves a permanent ProcessedEvents record.
func (s *Service) processEvent(ctx context.Context, active *entity.ActiveRange, event *entity.DiscoveredEvent) error {
	if !s.typeAccepted(active, event.Event.Type) {
		return errEventTypeNotAccepted
	}
	if event.Block > uint64(active.Range.EndBlock()) && !s.isAdditional(active, event.Event.TxHash) {
		return errEventOutsideRange
	}
	if len(event.Event.Topics) == 0 || event.Event.Topics[0] != event.Event.Type.Signature() {
		return errEventSignatureMistype
	}
	if !s.contractRecognized(event.Event.Type, event.Event.Contract) {
		return errUnrecognizedContract
	}
	processed, err := s.repo.ProcessedEvents.GetByTxHash(ctx, event.Event.TxHash)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("can't check processed events: %w", err)
	}
	if err == nil && processed.Accepted {
		return ErrEventAlreadyProcessed
	}

	handler, ok := s.handlers[event.Event.Type]
	var handleErr error
	if !ok {
		handleErr = errNoHandlerRegistered
	} else {
		handleErr = handler.HandleEvent(ctx, event)
	}
	record := &entity.ProcessedEvent{
		TxHash:    event.Event.TxHash,
		EventType: event.Event.Type,
		Accepted:  handleErr == nil,
	}
	if err = s.repo.ProcessedEvents.Ensure(ctx, record); err != nil {
		return fmt.Errorf("can't record processed event: %w", err)
	}
	return handleErr
}

func (s *Service) typeAccepted(active *entity.ActiveRange, t entity.EventType) bool {
	for _, accepted := range active.EventTypesFilter {
		if accepted == t {
			return true
		}
	}
	return false
}

func (s *Service) isAdditional(active *entity.ActiveRange, txHash common.Hash) bool {
	for _, h := range active.AdditionalTransactions {
		if h == txHash {
			return true
		}
	}
	return false
}

func (s *Service) contractRecognized(t entity.EventType, contract common.Address) bool {
	if t.IsNFTEvent() {
		for _, c := range s.cfg.NFTContracts {
			if c == contract {
				return true
			}
		}
		return false
	}
	return contract == s.cfg.BridgeContract
}

// SetBridgeContract switches the bridge contract instance events must
// originate from. Root-only admin surface; already-active ranges keep voting,
// their events are validated against the new address.
func (s *Service) SetBridgeContract(contract common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.WithField("contract", contract).Warn("bridge contract instance switched")
	s.cfg.BridgeContract = contract
}

// QueueAdditionalEthereumEvent injects one manually-discovered transaction
// hash; its events are merged into the next activated range.
func (s *Service) QueueAdditionalEthereumEvent(ctx context.Context, txHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.AdditionalEvents.Enqueue(ctx, txHash); err != nil {
		return err
	}
	s.logger.WithField("tx_hash", txHash).Info("queued additional ethereum event")
	return nil
}

// RestartEventDiscovery throws away the active range and any in-flight votes
// so window voting starts over. Root surface.
func (s *Service) RestartEventDiscovery(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ActiveRange.Delete(ctx); err != nil {
		return fmt.Errorf("can't clear active range: %w", err)
	}
	if err := s.repo.BlockVotes.DeleteAll(ctx); err != nil {
		return fmt.Errorf("can't clear block votes: %w", err)
	}
	if err := s.repo.PartitionVotes.DeleteAll(ctx); err != nil {
		return fmt.Errorf("can't clear partition votes: %w", err)
	}
	s.logger.Warn("event discovery restarted")
	return nil
}
