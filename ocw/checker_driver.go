package ocw

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/extrinsic"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/sidecar"
)

// CheckerDriver runs this node's side of the check/challenge pipeline. The
// primary checks the oldest unchecked event; everyone else independently
// re-checks posted verdicts and challenges on disagreement; anyone may
// resolve an event whose challenge window elapsed.
type CheckerDriver struct {
	logger     logging.Logger
	repo       *repository.Repo
	validators chain.ValidatorSetProvider
	clock      chain.Clock
	eth        EthereumClient
	submit     Submitter
	account    common.Address

	mu sync.Mutex
	// local memo of this node's own verdicts, so pending events are not
	// re-validated against the external chain every block
	validated map[entity.EventID]entity.CheckResult
}

func NewCheckerDriver(logger logging.Logger, repo *repository.Repo, validators chain.ValidatorSetProvider, clock chain.Clock, eth EthereumClient, submit Submitter, account common.Address) *CheckerDriver {
	return &CheckerDriver{
		logger:     logger,
		repo:       repo,
		validators: validators,
		clock:      clock,
		eth:        eth,
		submit:     submit,
		account:    account,
		validated:  make(map[entity.EventID]entity.CheckResult),
	}
}

func (d *CheckerDriver) Name() string { return "checker" }

func (d *CheckerDriver) RunOnce(ctx context.Context) error {
	primary, err := chain.PrimaryValidator(d.validators.Validators(), d.clock.CurrentBlock())
	if err != nil {
		return err
	}
	if primary.AccountID == d.account {
		if err = d.checkNext(ctx); err != nil {
			return err
		}
	} else if err = d.challengeMismatches(ctx); err != nil {
		return err
	}
	return d.processDue(ctx)
}

func (d *CheckerDriver) checkNext(ctx context.Context) error {
	queued, err := d.repo.UncheckedEvents.List(ctx)
	if err != nil {
		return fmt.Errorf("can't list unchecked events: %w", err)
	}
	if len(queued) == 0 {
		return nil
	}
	oldest := queued[0]
	for _, ev := range queued[1:] {
		if ev.IngressCounter < oldest.IngressCounter {
			oldest = ev
		}
	}
	result := d.checkEvent(ctx, oldest.Event)
	if !result.Postable() {
		// transient failure, retried next block without punishment
		d.logger.WithField("event_tx_hash", oldest.Event.TxHash).WithField("result", result).Debug("check result withheld")
		return nil
	}
	call := &extrinsic.SubmitCheckEventResult{IngressCounter: oldest.IngressCounter, Result: result}
	call.Author = d.account
	if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
		return fmt.Errorf("can't submit check result: %w", err)
	}
	return nil
}

func (d *CheckerDriver) challengeMismatches(ctx context.Context) error {
	pending, err := d.repo.EventChecks.List(ctx)
	if err != nil {
		return fmt.Errorf("can't list event checks: %w", err)
	}
	for _, check := range pending {
		if check.CheckedBy == d.account {
			continue
		}
		id := check.Event.EventID()
		challenged, err := d.repo.Challenges.Exists(ctx, id, d.account)
		if err != nil {
			return fmt.Errorf("can't check challenges: %w", err)
		}
		if challenged {
			continue
		}
		local, ok := d.recallVerdict(id)
		if !ok {
			local = d.checkEvent(ctx, check.Event)
			if !local.Postable() {
				continue
			}
			d.memoizeVerdict(id, local)
		}
		if local == check.Result {
			continue
		}
		call := &extrinsic.ChallengeEvent{EventID: id}
		call.Author = d.account
		if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
			return fmt.Errorf("can't submit challenge: %w", err)
		}
		d.logger.WithField("event_tx_hash", id.TxHash).WithField("posted", check.Result).WithField("local", local).Warn("challenged posted check result")
	}
	return nil
}

func (d *CheckerDriver) processDue(ctx context.Context) error {
	pending, err := d.repo.EventChecks.List(ctx)
	if err != nil {
		return fmt.Errorf("can't list event checks: %w", err)
	}
	block := d.clock.CurrentBlock()
	for _, check := range pending {
		if block <= check.ReadyAfterBlock {
			continue
		}
		call := &extrinsic.ProcessEvent{EventID: check.Event.EventID()}
		call.Author = d.account
		if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
			return fmt.Errorf("can't submit process event: %w", err)
		}
		d.forgetVerdict(check.Event.EventID())
	}
	return nil
}

// checkEvent validates one event against the external chain: the transaction
// must have a receipt carrying a log with the event's signature topic.
func (d *CheckerDriver) checkEvent(ctx context.Context, event entity.EthereumEvent) entity.CheckResult {
	receipt, err := d.eth.TransactionReceipt(ctx, event.TxHash)
	if errors.Is(err, sidecar.ErrReceiptNotFound) {
		return entity.CheckResultInvalid
	}
	if err != nil {
		return entity.CheckResultHTTPError
	}
	if !receipt.Succeeded() {
		return entity.CheckResultInvalid
	}
	for _, log := range receipt.Logs {
		if len(log.Topics) > 0 && log.Topics[0] == event.Type.Signature() {
			return entity.CheckResultOk
		}
	}
	return entity.CheckResultInvalid
}

func (d *CheckerDriver) recallVerdict(id entity.EventID) (entity.CheckResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	result, ok := d.validated[id]
	return result, ok
}

func (d *CheckerDriver) memoizeVerdict(id entity.EventID, result entity.CheckResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.validated[id] = result
}

func (d *CheckerDriver) forgetVerdict(id entity.EventID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.validated, id)
}
