package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/bridge/calldata"
	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/utils"
)

// Notification is the callback surface of a component that submitted a
// request and wants to hear about its outcome.
type Notification interface {
	ProcessResult(ctx context.Context, txID uint32, callerID string, succeeded bool) error
	ProcessLowerProofResult(ctx context.Context, lowerID uint32, callerID string, proof []byte, succeeded bool) error
}

type Config struct {
	QueueCapacity         uint
	TxLifetimeSeconds     uint64
	ConfirmationsCapacity uint
}

// Bridge drives outbound requests through the confirmation/corroboration
// state machine. All mutating entry points apply sequentially, mirroring
// one-handler-at-a-time block execution.
type Bridge struct {
	mu sync.Mutex

	logger     logging.Logger
	repo       *repository.Repo
	validators chain.ValidatorSetProvider
	clock      chain.Clock
	offences   *offence.Reporter
	notifiers  map[string]Notification
	viewer     Viewer

	queueCapacity         uint
	confirmationsCapacity uint
	txLifetimeSecs        uint64
}

func NewBridge(logger logging.Logger, repo *repository.Repo, validators chain.ValidatorSetProvider, clock chain.Clock, offences *offence.Reporter, cfg Config) *Bridge {
	return &Bridge{
		logger:                logger,
		repo:                  repo,
		validators:            validators,
		clock:                 clock,
		offences:              offences,
		notifiers:             make(map[string]Notification),
		queueCapacity:         cfg.QueueCapacity,
		confirmationsCapacity: cfg.ConfirmationsCapacity,
		txLifetimeSecs:        cfg.TxLifetimeSeconds,
	}
}

// RegisterNotifier wires the component identified by callerID to receive
// result callbacks. Must be called before the bridge starts handling
// requests for that caller.
func (b *Bridge) RegisterNotifier(callerID string, n Notification) {
	b.notifiers[callerID] = n
}

// Publish queues a send request and returns its allocated transaction id.
func (b *Bridge) Publish(ctx context.Context, functionName string, params []entity.FunctionParam, callerID string) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if functionName == "" {
		return 0, ErrEmptyFunctionName
	}
	// Capacity is checked before the id allocation so a rejected publish
	// leaves no gap in the tx id sequence.
	if err := b.ensureQueueSpace(ctx); err != nil {
		return 0, err
	}
	txID, err := b.repo.Counters.NextTxID(ctx)
	if err != nil {
		return 0, fmt.Errorf("can't allocate tx id: %w", err)
	}
	req := &entity.Request{
		Kind:         entity.RequestKindSend,
		TxID:         txID,
		FunctionName: functionName,
		Params:       params,
		CallerID:     callerID,
	}
	if err = b.queueRequest(ctx, req); err != nil {
		return 0, err
	}
	b.logger.WithField("tx_id", txID).WithField("function_name", functionName).Info("queued publish request")
	ObservePublishedRequest()
	return txID, nil
}

// GenerateLowerProof queues a lower proof request. Deduplication is the
// caller's responsibility.
func (b *Bridge) GenerateLowerProof(ctx context.Context, lowerID uint32, params []entity.FunctionParam, callerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	req := &entity.Request{
		Kind:     entity.RequestKindLowerProof,
		LowerID:  lowerID,
		Params:   params,
		CallerID: callerID,
	}
	if err := b.ensureQueueSpace(ctx); err != nil {
		return err
	}
	if err := b.queueRequest(ctx, req); err != nil {
		return err
	}
	b.logger.WithField("lower_id", lowerID).Info("queued lower proof request")
	return nil
}

// ensureQueueSpace rejects new requests while the queue is at capacity. A
// free active slot always has room.
func (b *Bridge) ensureQueueSpace(ctx context.Context) error {
	_, err := b.repo.ActiveRequest.Get(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("can't load active request: %w", err)
	}
	length, err := b.repo.RequestQueue.Len(ctx)
	if err != nil {
		return fmt.Errorf("can't check queue depth: %w", err)
	}
	if length >= b.queueCapacity {
		return ErrTxRequestQueueFull
	}
	return nil
}

func (b *Bridge) queueRequest(ctx context.Context, req *entity.Request) error {
	_, err := b.repo.ActiveRequest.Get(ctx)
	if err == nil {
		return b.repo.RequestQueue.Enqueue(ctx, req)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("can't load active request: %w", err)
	}
	return b.setupActiveRequest(ctx, req, 0)
}

// setupActiveRequest promotes req into the single active slot. For send
// requests the params are extended with (expiry, tx_id) so every replay
// attempt signs a fresh message hash.
func (b *Bridge) setupActiveRequest(ctx context.Context, req *entity.Request, replayAttempt uint32) error {
	active := &entity.ActiveRequest{
		Request:     *req,
		LastUpdated: b.clock.CurrentBlock(),
	}
	switch req.Kind {
	case entity.RequestKindSend:
		sender, err := b.nextSender(ctx)
		if err != nil {
			return err
		}
		expiry := uint64(b.clock.Now().Unix()) + b.txLifetimeSecs
		extended := calldata.ExtendParams(req.Params, expiry, req.TxID)
		msgHash, err := calldata.GenerateMsgHash(req.FunctionName, extended)
		if err != nil {
			return fmt.Errorf("can't derive msg hash: %w", err)
		}
		active.Confirmation = entity.Confirmation{
			MsgHash:    msgHash,
			Signatures: entity.NewBoundedSignatureSet(b.confirmationsCapacity),
		}
		active.TxData = &entity.TxData{
			Sender:                      sender,
			Expiry:                      expiry,
			ReplayAttempt:               replayAttempt,
			ValidTxHashCorroborations:   entity.NewBoundedAccountSet(b.confirmationsCapacity),
			InvalidTxHashCorroborations: entity.NewBoundedAccountSet(b.confirmationsCapacity),
			SuccessCorroborations:       entity.NewBoundedAccountSet(b.confirmationsCapacity),
			FailureCorroborations:       entity.NewBoundedAccountSet(b.confirmationsCapacity),
		}
	case entity.RequestKindLowerProof:
		active.Confirmation = entity.Confirmation{
			MsgHash:    calldata.HashParams(req.LowerID, req.Params),
			Signatures: entity.NewBoundedSignatureSet(b.confirmationsCapacity),
		}
	default:
		return fmt.Errorf("unknown request kind %q", req.Kind)
	}
	if err := b.repo.ActiveRequest.Put(ctx, active); err != nil {
		return fmt.Errorf("can't store active request: %w", err)
	}
	return nil
}

// nextSender rotates through the validator set on a dedicated nonce so
// consecutive requests pick different senders.
func (b *Bridge) nextSender(ctx context.Context) (common.Address, error) {
	validators := b.validators.Validators()
	if len(validators) == 0 {
		return common.Address{}, ErrErrorAssigningSender
	}
	nonce, err := b.repo.Counters.NextSenderNonce(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("can't advance sender nonce: %w", err)
	}
	return validators[nonce%uint64(len(validators))].AccountID, nil
}

// AddConfirmation records one authority's ECDSA signature over the active
// request's message hash. Stale or surplus submissions are no-ops so
// concurrent honest nodes never error out.
func (b *Bridge) AddConfirmation(ctx context.Context, requestID uint32, signature []byte, author common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	active, err := b.repo.ActiveRequest.Get(ctx)
	if err != nil {
		return db.IgnoreErrNotFound(err)
	}
	if active.Request.ID() != requestID || b.hasEnoughConfirmations(active) {
		return nil
	}
	if active.IsSend() && active.TxData.Sender == author {
		// Dispatching is the sender's implicit confirmation.
		return nil
	}
	validator, err := b.validators.TryGetValidator(author)
	if err != nil {
		return err
	}
	signer, err := utils.RestoreSignerAddress(active.Confirmation.MsgHash.Bytes(), signature)
	if err != nil || signer != validator.EthAddress {
		return ErrInvalidECDSASignature
	}
	for _, existing := range active.Confirmation.Signatures.Signatures {
		if string(existing) == string(signature) {
			return ErrDuplicateConfirmation
		}
	}
	if err = active.Confirmation.Signatures.Push(signature); err != nil {
		return ErrExceedsConfirmationLimit
	}
	active.LastUpdated = b.clock.CurrentBlock()

	if !active.IsSend() && b.hasEnoughConfirmations(active) {
		return b.completeLowerProof(ctx, active)
	}
	if err = b.repo.ActiveRequest.Put(ctx, active); err != nil {
		return fmt.Errorf("can't store active request: %w", err)
	}
	ObserveConfirmations(active.Confirmation.Signatures.Count())
	return nil
}

// hasEnoughConfirmations applies the asymmetric thresholds: lower proofs
// need a supermajority of explicit signatures, send requests reach simple
// quorum with the sender's dispatch counted implicitly.
func (b *Bridge) hasEnoughConfirmations(active *entity.ActiveRequest) bool {
	n := uint(len(b.validators.Validators()))
	count := active.Confirmation.Signatures.Count()
	if active.IsSend() {
		return count+1 >= chain.SimpleQuorum(n)
	}
	return count >= chain.SupermajorityQuorum(n)
}

func (b *Bridge) completeLowerProof(ctx context.Context, active *entity.ActiveRequest) error {
	proof := active.Confirmation.Signatures.Concat()
	b.notify(ctx, func(n Notification) error {
		return n.ProcessLowerProofResult(ctx, active.Request.LowerID, active.Request.CallerID, proof, true)
	}, active.Request.CallerID)
	if err := b.repo.ActiveRequest.Delete(ctx); err != nil {
		return fmt.Errorf("can't clear active request: %w", err)
	}
	b.logger.WithField("lower_id", active.Request.LowerID).Info("lower proof completed")
	return b.processNextRequest(ctx)
}

// AddEthTxHash records the hash of the dispatched external transaction.
// Only the appointed sender may set it, exactly once.
func (b *Bridge) AddEthTxHash(ctx context.Context, txID uint32, ethTxHash common.Hash, author common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	active, err := b.repo.ActiveRequest.Get(ctx)
	if err != nil {
		return db.IgnoreErrNotFound(err)
	}
	if !active.IsSend() || active.Request.TxID != txID {
		return nil
	}
	if active.TxData.Sender != author {
		return ErrEthTxHashMustBeSetBySender
	}
	if active.TxData.EthTxHash != (common.Hash{}) {
		return ErrEthTxHashAlreadySet
	}
	active.TxData.EthTxHash = ethTxHash
	active.LastUpdated = b.clock.CurrentBlock()
	if err = b.repo.ActiveRequest.Put(ctx, active); err != nil {
		return fmt.Errorf("can't store active request: %w", err)
	}
	b.logger.WithField("tx_id", txID).WithField("eth_tx_hash", ethTxHash).Info("eth tx hash recorded")
	return nil
}

// AddCorroboration accumulates one authority's view of the dispatched
// transaction's outcome. Reaching quorum on either side finalizes the
// request; a failed transaction with a quorum of invalid-hash reports is
// replayed instead of settled.
func (b *Bridge) AddCorroboration(ctx context.Context, txID uint32, succeeded, hashIsValid bool, author common.Address, replayAttempt uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	active, err := b.repo.ActiveRequest.Get(ctx)
	if err != nil {
		// Finalized requests are gone from the active slot; late
		// corroborations are no-ops.
		return db.IgnoreErrNotFound(err)
	}
	if !active.IsSend() || active.Request.TxID != txID {
		return nil
	}
	if !b.validators.IsValidator(author) {
		return chain.ErrNotAValidator
	}
	if active.TxData.Sender == author {
		return ErrDuplicateCorroboration
	}
	if active.TxData.ReplayAttempt != replayAttempt {
		return ErrInvalidCorroborationData
	}
	// Expiry flips eligibility: an unsent request can only be corroborated
	// once its lifetime has elapsed.
	if active.TxData.EthTxHash == (common.Hash{}) && uint64(b.clock.Now().Unix()) <= active.TxData.Expiry {
		return ErrPrematureCorroboration
	}
	if active.TxData.SuccessCorroborations.Contains(author) || active.TxData.FailureCorroborations.Contains(author) {
		return ErrDuplicateCorroboration
	}

	outcome := &active.TxData.FailureCorroborations
	if succeeded {
		outcome = &active.TxData.SuccessCorroborations
	}
	if err = outcome.Push(author); err != nil {
		return ErrExceedsConfirmationLimit
	}
	hashes := &active.TxData.InvalidTxHashCorroborations
	if hashIsValid {
		hashes = &active.TxData.ValidTxHashCorroborations
	}
	if !hashes.Contains(author) {
		if err = hashes.Push(author); err != nil {
			return ErrExceedsConfirmationLimit
		}
	}
	active.LastUpdated = b.clock.CurrentBlock()

	if b.corroborationQuorumReached(outcome.Count()) {
		return b.finalize(ctx, active, succeeded)
	}
	if err = b.repo.ActiveRequest.Put(ctx, active); err != nil {
		return fmt.Errorf("can't store active request: %w", err)
	}
	return nil
}

func (b *Bridge) corroborationQuorumReached(count uint) bool {
	return count >= chain.SimpleQuorum(uint(len(b.validators.Validators())))
}

// finalize resolves the active send request: either replays it with a fresh
// expiry and sender, or settles it and promotes the next queued request.
func (b *Bridge) finalize(ctx context.Context, active *entity.ActiveRequest, succeeded bool) error {
	data := active.TxData

	if !succeeded && b.corroborationQuorumReached(data.InvalidTxHashCorroborations.Count()) {
		return b.replay(ctx, active)
	}

	if succeeded {
		if data.FailureCorroborations.Count() > 0 {
			b.offences.Report(ctx, data.Sender, data.FailureCorroborations.Accounts, offence.TypeChallengeAttemptedOnSuccessfulTransaction)
		}
		if b.corroborationQuorumReached(data.InvalidTxHashCorroborations.Count()) {
			// Settled fact stands, the recorded hash does not.
			data.EthTxHash = common.Hash{}
		}
	} else if data.SuccessCorroborations.Count() > 0 {
		b.offences.Report(ctx, data.Sender, data.SuccessCorroborations.Accounts, offence.TypeChallengeAttemptedOnUnsuccessfulTransaction)
	}

	settled := &entity.SettledTransaction{
		TxID:           active.Request.TxID,
		FunctionName:   active.Request.FunctionName,
		CallerID:       active.Request.CallerID,
		Sender:         data.Sender,
		EthTxHash:      data.EthTxHash,
		Succeeded:      succeeded,
		ReplayAttempt:  data.ReplayAttempt,
		SettledAtBlock: b.clock.CurrentBlock(),
	}
	if err := b.repo.SettledTransactions.Insert(ctx, settled); err != nil {
		return fmt.Errorf("can't archive settled transaction: %w", err)
	}
	b.notify(ctx, func(n Notification) error {
		return n.ProcessResult(ctx, active.Request.TxID, active.Request.CallerID, succeeded)
	}, active.Request.CallerID)
	if err := b.repo.ActiveRequest.Delete(ctx); err != nil {
		return fmt.Errorf("can't clear active request: %w", err)
	}
	b.logger.WithField("tx_id", active.Request.TxID).WithField("succeeded", succeeded).Info("request settled")
	ObserveSettledRequest(succeeded)
	return b.processNextRequest(ctx)
}

func (b *Bridge) replay(ctx context.Context, active *entity.ActiveRequest) error {
	b.logger.WithField("tx_id", active.Request.TxID).
		WithField("replay_attempt", active.TxData.ReplayAttempt+1).
		Warn("retrying active request with a fresh message hash")
	ObserveReplay()
	return b.setupActiveRequest(ctx, &active.Request, active.TxData.ReplayAttempt+1)
}

// processNextRequest promotes queued requests until one activates cleanly.
// A request whose setup fails is reported back to its origin as failed.
func (b *Bridge) processNextRequest(ctx context.Context) error {
	for {
		req, err := b.repo.RequestQueue.Dequeue(ctx)
		if err != nil {
			return db.IgnoreErrNotFound(err)
		}
		err = b.setupActiveRequest(ctx, req, 0)
		if err == nil {
			return nil
		}
		b.logger.WithError(err).WithField("caller_id", req.CallerID).Error("can't activate queued request")
		b.notifyFailure(ctx, req)
	}
}

func (b *Bridge) notifyFailure(ctx context.Context, req *entity.Request) {
	if req.Kind == entity.RequestKindLowerProof {
		b.notify(ctx, func(n Notification) error {
			return n.ProcessLowerProofResult(ctx, req.LowerID, req.CallerID, nil, false)
		}, req.CallerID)
		return
	}
	b.notify(ctx, func(n Notification) error {
		return n.ProcessResult(ctx, req.TxID, req.CallerID, false)
	}, req.CallerID)
}

func (b *Bridge) notify(ctx context.Context, fn func(Notification) error, callerID string) {
	n, ok := b.notifiers[callerID]
	if !ok {
		b.logger.WithField("caller_id", callerID).Warn("no notifier registered for caller")
		return
	}
	if err := fn(n); err != nil {
		b.logger.WithError(err).WithField("caller_id", callerID).Error("result notification failed")
	}
}
