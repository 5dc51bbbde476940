package ocw

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/extrinsic"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/repository"
)

// SummaryDriver rotates the summary slot schedule: when this node holds the
// current slot and the schedule period has elapsed, it submits advance_slot.
// Stalled slots are picked up by the other validators once the grace period
// runs out; the slot holder never advances past it.
type SummaryDriver struct {
	logger      logging.Logger
	repo        *repository.Repo
	clock       chain.Clock
	eth         EthereumClient
	submit      Submitter
	locks       *LockTable
	account     common.Address
	graceBlocks uint64
	lockTTL     time.Duration
}

func NewSummaryDriver(logger logging.Logger, repo *repository.Repo, clock chain.Clock, eth EthereumClient, submit Submitter, locks *LockTable, account common.Address, graceBlocks uint64, lockTTL time.Duration) *SummaryDriver {
	return &SummaryDriver{
		logger:      logger,
		repo:        repo,
		clock:       clock,
		eth:         eth,
		submit:      submit,
		locks:       locks,
		account:     account,
		graceBlocks: graceBlocks,
		lockTTL:     lockTTL,
	}
}

func (d *SummaryDriver) Name() string { return "summary" }

func (d *SummaryDriver) RunOnce(ctx context.Context) error {
	slot, err := d.repo.Slot.Get(ctx)
	if err != nil {
		return db.IgnoreErrNotFound(err)
	}
	block := d.clock.CurrentBlock()
	if block < slot.NextAtBlock {
		return nil
	}
	isSlotValidator := slot.Validator == d.account
	graceElapsed := block > slot.NextAtBlock+d.graceBlocks
	if isSlotValidator == graceElapsed {
		// within grace only the slot holder advances, past it only the rest
		return nil
	}
	lock := fmt.Sprintf("summary_ocw::advance_slot::%d", slot.Number)
	if !d.locks.TryAcquire(lock, d.lockTTL) {
		return nil
	}
	call := &extrinsic.AdvanceSlot{SlotNumber: slot.Number}
	call.Author = d.account
	if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
		d.locks.Release(lock)
		return fmt.Errorf("can't submit advance slot: %w", err)
	}
	d.logger.WithField("slot", slot.Number).Debug("advance slot submitted")
	return nil
}
