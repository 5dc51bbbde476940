package ocw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/bridge/calldata"
	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/extrinsic"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/sidecar"
)

// BridgeDriver advances the active request from this node's point of view:
// confirm when a signature is still owed, dispatch to the external chain when
// this node is the appointed sender, corroborate once the transaction has
// been sent or has expired.
type BridgeDriver struct {
	logger     logging.Logger
	repo       *repository.Repo
	validators chain.ValidatorSetProvider
	clock      chain.Clock
	eth        EthereumClient
	submit     Submitter
	locks      *LockTable
	account    common.Address
	lockTTL    time.Duration
}

func NewBridgeDriver(logger logging.Logger, repo *repository.Repo, validators chain.ValidatorSetProvider, clock chain.Clock, eth EthereumClient, submit Submitter, locks *LockTable, account common.Address, lockTTL time.Duration) *BridgeDriver {
	return &BridgeDriver{
		logger:     logger,
		repo:       repo,
		validators: validators,
		clock:      clock,
		eth:        eth,
		submit:     submit,
		locks:      locks,
		account:    account,
		lockTTL:    lockTTL,
	}
}

func (d *BridgeDriver) Name() string { return "bridge" }

func (d *BridgeDriver) RunOnce(ctx context.Context) error {
	active, err := d.repo.ActiveRequest.Get(ctx)
	if err != nil {
		return db.IgnoreErrNotFound(err)
	}
	// act only on state every node has finalized
	if active.LastUpdated > d.clock.FinalisedBlock() {
		return nil
	}

	n := uint(len(d.validators.Validators()))
	if !active.IsSend() {
		if active.Confirmation.Signatures.Count() >= chain.SupermajorityQuorum(n) {
			return nil
		}
		return d.confirm(ctx, active)
	}

	data := active.TxData
	isSender := data.Sender == d.account
	enough := active.Confirmation.Signatures.Count()+1 >= chain.SimpleQuorum(n)
	sent := data.EthTxHash != (common.Hash{})
	expired := uint64(d.clock.Now().Unix()) > data.Expiry

	switch {
	case !isSender && !enough:
		return d.confirm(ctx, active)
	case isSender && enough && !sent:
		return d.send(ctx, active)
	case !isSender && (sent || expired):
		if data.SuccessCorroborations.Contains(d.account) || data.FailureCorroborations.Contains(d.account) {
			return nil
		}
		return d.corroborate(ctx, active, sent, expired)
	}
	return nil
}

func (d *BridgeDriver) confirm(ctx context.Context, active *entity.ActiveRequest) error {
	lock := fmt.Sprintf("eth_bridge_ocw::confirm::%d::%d", active.Request.ID(), active.Confirmation.Signatures.Count())
	if !d.locks.TryAcquire(lock, d.lockTTL) {
		return nil
	}
	confirmation, err := d.eth.Sign(ctx, active.Confirmation.MsgHash.Bytes())
	if err != nil {
		d.locks.Release(lock)
		return fmt.Errorf("can't sign msg hash: %w", err)
	}
	call := &extrinsic.AddConfirmation{RequestID: active.Request.ID(), Confirmation: confirmation}
	call.Author = d.account
	if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
		d.locks.Release(lock)
		return fmt.Errorf("can't submit confirmation: %w", err)
	}
	d.logger.WithField("request_id", active.Request.ID()).Debug("confirmation submitted")
	return nil
}

// send dispatches the confirmed request to the external chain under a named
// advisory lock, then records the resulting transaction hash.
func (d *BridgeDriver) send(ctx context.Context, active *entity.ActiveRequest) error {
	txID := active.Request.TxID
	lock := fmt.Sprintf("eth_bridge_ocw::send::%d", txID)
	if !d.locks.TryAcquire(lock, d.lockTTL) {
		return nil
	}
	extended := calldata.ExtendParams(active.Request.Params, active.TxData.Expiry, txID)
	blob, err := calldata.EncodeFunctionCall(active.Request.FunctionName, extended)
	if err != nil {
		d.locks.Release(lock)
		return fmt.Errorf("can't encode function call: %w", err)
	}
	ethTxHash, err := d.eth.Send(ctx, blob)
	if err != nil {
		d.locks.Release(lock)
		return fmt.Errorf("can't send to external chain: %w", err)
	}
	call := &extrinsic.AddEthTxHash{TxID: txID, EthTxHash: ethTxHash}
	call.Author = d.account
	if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
		// keep the lock: the tx is out, resending would double-spend
		return fmt.Errorf("can't submit eth tx hash: %w", err)
	}
	d.logger.WithField("tx_id", txID).WithField("eth_tx_hash", ethTxHash).Info("request dispatched to external chain")
	return nil
}

func (d *BridgeDriver) corroborate(ctx context.Context, active *entity.ActiveRequest, sent, expired bool) error {
	data := active.TxData
	var succeeded, hashValid bool
	switch {
	case !sent:
		// expired without ever being dispatched
		succeeded, hashValid = false, false
	default:
		receipt, err := d.eth.TransactionReceipt(ctx, data.EthTxHash)
		if errors.Is(err, sidecar.ErrReceiptNotFound) {
			if !expired {
				// still pending, check again next block
				return nil
			}
			succeeded, hashValid = false, false
		} else if err != nil {
			return fmt.Errorf("can't fetch receipt: %w", err)
		} else {
			succeeded, hashValid = receipt.Succeeded(), true
		}
	}
	call := &extrinsic.AddCorroboration{
		TxID:          active.Request.TxID,
		Succeeded:     succeeded,
		HashIsValid:   hashValid,
		ReplayAttempt: data.ReplayAttempt,
	}
	call.Author = d.account
	if err := signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
		return fmt.Errorf("can't submit corroboration: %w", err)
	}
	d.logger.WithField("tx_id", active.Request.TxID).WithField("succeeded", succeeded).Debug("corroboration submitted")
	return nil
}
