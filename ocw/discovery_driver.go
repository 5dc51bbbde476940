package ocw

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/events"
	"github.com/fedbridge/bridge-node/extrinsic"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/sidecar"
)

// DiscoveryDriver drives range voting: with no active range it votes this
// node's view of the latest external block; with one it scans the range,
// rebuilds the canonical partitions and votes the current partition.
type DiscoveryDriver struct {
	logger  logging.Logger
	repo    *repository.Repo
	eth     EthereumClient
	submit  Submitter
	account common.Address
}

func NewDiscoveryDriver(logger logging.Logger, repo *repository.Repo, eth EthereumClient, submit Submitter, account common.Address) *DiscoveryDriver {
	return &DiscoveryDriver{
		logger:  logger,
		repo:    repo,
		eth:     eth,
		submit:  submit,
		account: account,
	}
}

func (d *DiscoveryDriver) Name() string { return "discovery" }

func (d *DiscoveryDriver) RunOnce(ctx context.Context) error {
	active, err := d.repo.ActiveRange.Get(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return d.voteLatestBlock(ctx)
	}
	if err != nil {
		return fmt.Errorf("can't load active range: %w", err)
	}
	return d.votePartition(ctx, active)
}

func (d *DiscoveryDriver) voteLatestBlock(ctx context.Context) error {
	voted, err := d.repo.BlockVotes.ExistsByAuthor(ctx, d.account)
	if err != nil {
		return fmt.Errorf("can't check block vote: %w", err)
	}
	if voted {
		return nil
	}
	latest, err := d.eth.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("can't fetch latest block: %w", err)
	}
	call := &extrinsic.SubmitLatestEthereumBlock{LatestSeenBlock: uint32(latest)}
	call.Author = d.account
	if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
		return fmt.Errorf("can't submit block vote: %w", err)
	}
	d.logger.WithField("latest_seen_block", latest).Debug("block vote submitted")
	return nil
}

func (d *DiscoveryDriver) votePartition(ctx context.Context, active *entity.ActiveRange) error {
	voted, err := d.repo.PartitionVotes.ExistsByAuthor(ctx, d.account)
	if err != nil {
		return fmt.Errorf("can't check partition vote: %w", err)
	}
	if voted {
		return nil
	}
	discovered, err := d.scan(ctx, active)
	if err != nil {
		return err
	}
	partitions := events.BuildPartitions(active.Range, discovered)
	if int(active.Partition) >= len(partitions) {
		// this node sees fewer partitions than the chain agreed on;
		// nothing useful to vote
		return nil
	}
	call := &extrinsic.SubmitEthereumEvents{Partition: *partitions[active.Partition]}
	call.Author = d.account
	if err = signAndSubmit(ctx, d.eth, d.submit, call); err != nil {
		return fmt.Errorf("can't submit partition vote: %w", err)
	}
	d.logger.WithField("partition", active.Partition).WithField("events", len(call.Partition.Events)).Debug("partition vote submitted")
	return nil
}

// scan collects the known-type events in the range plus those of any
// manually-injected transactions.
func (d *DiscoveryDriver) scan(ctx context.Context, active *entity.ActiveRange) ([]entity.DiscoveredEvent, error) {
	logs, err := d.eth.Logs(ctx, uint64(active.Range.StartBlock), uint64(active.Range.EndBlock()))
	if err != nil {
		return nil, fmt.Errorf("can't scan range: %w", err)
	}
	seen := make(map[entity.EventID]struct{})
	var discovered []entity.DiscoveredEvent
	appendLog := func(log sidecar.Log) {
		event, ok := logToEvent(log)
		if !ok {
			return
		}
		if _, dup := seen[event.Event.EventID()]; dup {
			return
		}
		seen[event.Event.EventID()] = struct{}{}
		discovered = append(discovered, event)
	}
	for _, log := range logs {
		appendLog(log)
	}
	for _, txHash := range active.AdditionalTransactions {
		receipt, err := d.eth.TransactionReceipt(ctx, txHash)
		if errors.Is(err, sidecar.ErrReceiptNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("can't fetch injected transaction: %w", err)
		}
		for _, log := range receipt.Logs {
			appendLog(log)
		}
	}
	return discovered, nil
}

func logToEvent(log sidecar.Log) (entity.DiscoveredEvent, bool) {
	if len(log.Topics) == 0 {
		return entity.DiscoveredEvent{}, false
	}
	eventType, ok := entity.EventTypeFromSignature(log.Topics[0])
	if !ok {
		return entity.DiscoveredEvent{}, false
	}
	return entity.DiscoveredEvent{
		Event: entity.EthereumEvent{
			Type:     eventType,
			TxHash:   log.TxHash,
			Contract: log.Address,
			Topics:   log.Topics,
			Data:     log.Data,
		},
		Block: uint64(log.BlockNumber),
	}, true
}
