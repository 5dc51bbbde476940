package extrinsic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/utils"
)

var (
	ErrInvalidCallSignature = errors.New("call signature does not match the author")
	ErrDuplicateSubmission  = errors.New("an identical call was already submitted")
	ErrStaleCall            = errors.New("call does not apply to the current chain state")
)

// DefaultLongevityBlocks keeps a tag in the dedupe window long enough for the
// action to be recorded on chain, without blocking legitimate resubmission of
// a later round of the same recurring action.
const DefaultLongevityBlocks = 5

// Pool performs submission-time validation: author is a registered authority,
// the signature covers the call payload, the call applies to current chain
// state, and the call's tag has not been seen within the longevity window.
// Handlers re-verify everything; pool validation runs against possibly-stale
// state and only exists to keep spam, stale submissions and duplicates out.
type Pool struct {
	mu sync.Mutex

	logger     logging.Logger
	validators chain.ValidatorSetProvider
	clock      chain.Clock
	repo       *repository.Repo
	longevity  uint64
	seen       map[string]uint64
}

func NewPool(logger logging.Logger, validators chain.ValidatorSetProvider, clock chain.Clock, repo *repository.Repo, longevityBlocks uint64) *Pool {
	return &Pool{
		logger:     logger,
		validators: validators,
		clock:      clock,
		repo:       repo,
		longevity:  longevityBlocks,
		seen:       make(map[string]uint64),
	}
}

func (p *Pool) Validate(ctx context.Context, call Call) error {
	if err := VerifyCall(p.validators, call); err != nil {
		return err
	}
	if err := p.preCheck(ctx, call); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	block := p.clock.CurrentBlock()
	p.evict(block)
	tag := call.Tag()
	if _, ok := p.seen[tag]; ok {
		return ErrDuplicateSubmission
	}
	p.seen[tag] = block
	return nil
}

// preCheck rejects calls that can't possibly apply to the state they target,
// so stale submissions never occupy a dedupe tag.
func (p *Pool) preCheck(ctx context.Context, call Call) error {
	switch c := call.(type) {
	case *AddConfirmation:
		return p.requireActiveRequest(ctx, c.RequestID)
	case *AddEthTxHash:
		return p.requireActiveRequest(ctx, c.TxID)
	case *AddCorroboration:
		return p.requireActiveRequest(ctx, c.TxID)
	case *AdvanceSlot:
		slot, err := p.repo.Slot.Get(ctx)
		if errors.Is(err, db.ErrNotFound) {
			// the schedule opens lazily on the first advance
			return nil
		}
		if err != nil {
			return fmt.Errorf("can't load slot: %w", err)
		}
		if c.SlotNumber != slot.Number {
			return ErrStaleCall
		}
	}
	return nil
}

func (p *Pool) requireActiveRequest(ctx context.Context, requestID uint32) error {
	active, err := p.repo.ActiveRequest.Get(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return ErrStaleCall
	}
	if err != nil {
		return fmt.Errorf("can't load active request: %w", err)
	}
	if active.Request.ID() != requestID {
		return ErrStaleCall
	}
	return nil
}

// Forget drops a tag so the action may be resubmitted, used when a validated
// call fails to apply.
func (p *Pool) Forget(call Call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, call.Tag())
}

// evict ages out tags past the longevity window. Callers hold the mutex.
func (p *Pool) evict(currentBlock uint64) {
	for tag, block := range p.seen {
		if block+p.longevity < currentBlock {
			delete(p.seen, tag)
		}
	}
}

// VerifyCall checks authorship: the author is a registered authority and the
// signature over the call's signing payload recovers to the author's account.
func VerifyCall(validators chain.ValidatorSetProvider, call Call) error {
	v, err := validators.TryGetValidator(call.GetAuthor())
	if err != nil {
		return err
	}
	if err = utils.VerifySigner(v.AccountID, call.SigningPayload(), call.GetSignature()); err != nil {
		return ErrInvalidCallSignature
	}
	return nil
}
