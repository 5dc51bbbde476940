package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/repository/memory"
)

var (
	bridgeContract = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	nftContract    = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func testAccounts(n int) []common.Address {
	accounts := make([]common.Address, n)
	for i := range accounts {
		accounts[i] = common.BytesToAddress([]byte{0xee, byte(i + 1)})
	}
	return accounts
}

func newTestService(t *testing.T, validatorCount int) (*Service, *repository.Repo, []common.Address) {
	t.Helper()
	accounts := testAccounts(validatorCount)
	validators := make([]chain.Validator, validatorCount)
	for i, acc := range accounts {
		validators[i] = chain.Validator{AccountID: acc, EthAddress: acc}
	}
	logger := logging.New()
	repo := memory.NewRepo()
	set := chain.NewStaticValidatorSet(validators)
	clock := chain.NewManualClock(time.Unix(1700000000, 0), 50, 2)
	reporter := offence.NewReporter(logger, repo.Offences, set, clock, nil)

	svc := NewService(logger, repo, set, reporter, Config{
		RangeLength:    20,
		EventTypes:     []entity.EventType{entity.EventTypeLifted, entity.EventTypeNftMint},
		BridgeContract: bridgeContract,
		NFTContracts:   []common.Address{nftContract},
	})
	return svc, repo, accounts
}

func liftedEvent(txSeed byte, block uint64) entity.DiscoveredEvent {
	return entity.DiscoveredEvent{
		Event: entity.EthereumEvent{
			Type:     entity.EventTypeLifted,
			TxHash:   crypto.Keccak256Hash([]byte{txSeed}),
			Contract: bridgeContract,
			Topics:   []common.Hash{entity.EventTypeLifted.Signature()},
		},
		Block: block,
	}
}

func TestWindowStart(t *testing.T) {
	svc, _, _ := newTestService(t, 4)

	// 5 range lengths behind the tip, floored to a range multiple
	require.EqualValues(t, 400, svc.WindowStart(513))
	require.EqualValues(t, 400, svc.WindowStart(500))
	require.EqualValues(t, 0, svc.WindowStart(99))
}

func TestBuildPartitions(t *testing.T) {
	r := entity.EthBlockRange{StartBlock: 100, Length: 20}

	empty := BuildPartitions(r, nil)
	require.Len(t, empty, 1)
	require.True(t, empty[0].IsLast)
	require.Empty(t, empty[0].Events)

	var discovered []entity.DiscoveredEvent
	for i := 0; i < MaxEventsPerPartition+3; i++ {
		discovered = append(discovered, liftedEvent(byte(i), uint64(119-i%5)))
	}
	partitions := BuildPartitions(r, discovered)
	require.Len(t, partitions, 2)
	require.False(t, partitions[0].IsLast)
	require.True(t, partitions[1].IsLast)
	require.Len(t, partitions[0].Events, MaxEventsPerPartition)
	require.Len(t, partitions[1].Events, 3)

	// canonical order: block ascending, tx hash ascending within a block
	previous := partitions[0].Events[0]
	for _, p := range partitions {
		for _, ev := range p.Events[1:] {
			require.LessOrEqual(t, previous.Block, ev.Block)
			previous = ev
		}
	}

	// the same events in any input order produce the same partition ids
	reversed := make([]entity.DiscoveredEvent, len(discovered))
	for i, ev := range discovered {
		reversed[len(discovered)-1-i] = ev
	}
	again := BuildPartitions(r, reversed)
	require.Equal(t, partitions[0].ID(), again[0].ID())
}

func TestBlockVotingSelectsWindow(t *testing.T) {
	svc, repo, accounts := newTestService(t, 4)
	ctx := context.Background()

	// supermajority of 4 is 3 votes
	require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[0], 513))
	require.ErrorIs(t, svc.SubmitLatestEthereumBlock(ctx, accounts[0], 513), ErrEventVoteExists)
	require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[1], 516))

	_, err := repo.ActiveRange.Get(ctx)
	require.Error(t, err)

	require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[2], 529))

	active, err := repo.ActiveRange.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 400, active.Range.StartBlock)
	require.EqualValues(t, 20, active.Range.Length)
	require.EqualValues(t, 0, active.Partition)

	// vote state is cleared and further block votes are refused
	votes, err := repo.BlockVotes.List(ctx)
	require.NoError(t, err)
	require.Empty(t, votes)
	require.ErrorIs(t, svc.SubmitLatestEthereumBlock(ctx, accounts[3], 513), ErrActiveRangeExists)
}

func TestBlockVotingFavorsMostVotedLowWindow(t *testing.T) {
	votes := []*entity.BlockVote{
		{Author: common.BytesToAddress([]byte{1}), WindowStart: 400},
		{Author: common.BytesToAddress([]byte{2}), WindowStart: 420},
		{Author: common.BytesToAddress([]byte{3}), WindowStart: 420},
	}
	// supermajority 3, simple quorum 2: 400 alone leaves remaining=2, not
	// below quorum; 420 pushes it to 0
	require.EqualValues(t, 420, selectWindow(votes, 3, 2))

	unanimous := []*entity.BlockVote{
		{Author: common.BytesToAddress([]byte{1}), WindowStart: 400},
		{Author: common.BytesToAddress([]byte{2}), WindowStart: 400},
		{Author: common.BytesToAddress([]byte{3}), WindowStart: 400},
	}
	require.EqualValues(t, 400, selectWindow(unanimous, 3, 2))
}

func TestSubmitEthereumEventsLifecycle(t *testing.T) {
	svc, repo, accounts := newTestService(t, 4)
	ctx := context.Background()

	var handled []common.Hash
	svc.RegisterHandler(entity.EventTypeLifted, HandlerFunc(func(_ context.Context, ev *entity.DiscoveredEvent) error {
		handled = append(handled, ev.Event.TxHash)
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[i], 513))
	}
	active, err := repo.ActiveRange.Get(ctx)
	require.NoError(t, err)

	good := liftedEvent(1, 410)
	partition := &entity.EventsPartition{
		Range:     active.Range,
		Partition: 0,
		IsLast:    true,
		Events:    []entity.DiscoveredEvent{good},
	}

	wrong := &entity.EventsPartition{Range: active.Range.NextRange(), Partition: 0, IsLast: true}
	require.ErrorIs(t, svc.SubmitEthereumEvents(ctx, accounts[0], wrong), ErrNonActiveEthereumRange)

	require.NoError(t, svc.SubmitEthereumEvents(ctx, accounts[0], partition))
	require.ErrorIs(t, svc.SubmitEthereumEvents(ctx, accounts[0], partition), ErrEventVoteExists)
	require.Empty(t, handled)

	// simple quorum of 4 is 2 votes: partition approved, event dispatched
	require.NoError(t, svc.SubmitEthereumEvents(ctx, accounts[1], partition))
	require.Equal(t, []common.Hash{good.Event.TxHash}, handled)

	processed, err := repo.ProcessedEvents.GetByTxHash(ctx, good.Event.TxHash)
	require.NoError(t, err)
	require.True(t, processed.Accepted)

	// last partition approved: the range advanced to the next window
	next, err := repo.ActiveRange.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, active.Range.NextRange(), next.Range)
	require.EqualValues(t, 0, next.Partition)
}

func TestApprovedPartitionReportsDissenters(t *testing.T) {
	svc, repo, accounts := newTestService(t, 7)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[i], 513))
	}
	active, err := repo.ActiveRange.Get(ctx)
	require.NoError(t, err)

	agreed := &entity.EventsPartition{Range: active.Range, Partition: 0, IsLast: true}
	dissent := &entity.EventsPartition{
		Range:     active.Range,
		Partition: 0,
		IsLast:    true,
		Events:    []entity.DiscoveredEvent{liftedEvent(9, 410)},
	}

	require.NoError(t, svc.SubmitEthereumEvents(ctx, accounts[0], dissent))
	require.NoError(t, svc.SubmitEthereumEvents(ctx, accounts[1], agreed))
	require.NoError(t, svc.SubmitEthereumEvents(ctx, accounts[2], agreed))
	// simple quorum of 7 is 3
	require.NoError(t, svc.SubmitEthereumEvents(ctx, accounts[3], agreed))

	offences, err := repo.Offences.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, offences, 1)
	require.Equal(t, string(offence.TypeInvalidEthereumRangeData), offences[0].Type)
	require.Equal(t, []common.Address{accounts[0]}, offences[0].Offenders)
}

func TestProcessEventRejections(t *testing.T) {
	svc, _, _ := newTestService(t, 4)
	ctx := context.Background()
	active := &entity.ActiveRange{
		Range:            entity.EthBlockRange{StartBlock: 400, Length: 20},
		EventTypesFilter: []entity.EventType{entity.EventTypeLifted, entity.EventTypeNftMint},
	}
	svc.RegisterHandler(entity.EventTypeLifted, HandlerFunc(func(context.Context, *entity.DiscoveredEvent) error {
		return nil
	}))

	filtered := liftedEvent(1, 410)
	filtered.Event.Type = entity.EventTypeAddedValidator
	require.ErrorIs(t, svc.processEvent(ctx, active, &filtered), errEventTypeNotAccepted)

	outside := liftedEvent(2, 450)
	require.ErrorIs(t, svc.processEvent(ctx, active, &outside), errEventOutsideRange)

	mistyped := liftedEvent(3, 410)
	mistyped.Event.Topics = []common.Hash{entity.EventTypeNftMint.Signature()}
	require.ErrorIs(t, svc.processEvent(ctx, active, &mistyped), errEventSignatureMistype)

	badContract := liftedEvent(4, 410)
	badContract.Event.Contract = common.BytesToAddress([]byte{0x99})
	require.ErrorIs(t, svc.processEvent(ctx, active, &badContract), errUnrecognizedContract)

	nft := liftedEvent(5, 410)
	nft.Event.Type = entity.EventTypeNftMint
	nft.Event.Topics = []common.Hash{entity.EventTypeNftMint.Signature()}
	nft.Event.Contract = nftContract
	require.ErrorIs(t, svc.processEvent(ctx, active, &nft), errNoHandlerRegistered)

	// replay protection: an accepted hash can never be accepted again
	accepted := liftedEvent(6, 410)
	require.NoError(t, svc.processEvent(ctx, active, &accepted))
	require.ErrorIs(t, svc.processEvent(ctx, active, &accepted), ErrEventAlreadyProcessed)

	// a rejected hash may be retried
	flaky := liftedEvent(7, 410)
	svc.RegisterHandler(entity.EventTypeLifted, HandlerFunc(func(context.Context, *entity.DiscoveredEvent) error {
		return errors.New("consumer unavailable")
	}))
	require.Error(t, svc.processEvent(ctx, active, &flaky))
	svc.RegisterHandler(entity.EventTypeLifted, HandlerFunc(func(context.Context, *entity.DiscoveredEvent) error {
		return nil
	}))
	require.NoError(t, svc.processEvent(ctx, active, &flaky))
}

func TestAdditionalEventsMergeIntoNextRange(t *testing.T) {
	svc, repo, accounts := newTestService(t, 4)
	ctx := context.Background()

	injected := crypto.Keccak256Hash([]byte("manual"))
	require.NoError(t, svc.QueueAdditionalEthereumEvent(ctx, injected))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[i], 513))
	}
	active, err := repo.ActiveRange.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{injected}, active.AdditionalTransactions)

	// an additional transaction is exempt from the range bound
	svc.RegisterHandler(entity.EventTypeLifted, HandlerFunc(func(context.Context, *entity.DiscoveredEvent) error {
		return nil
	}))
	outside := liftedEvent(1, 9999)
	outside.Event.TxHash = injected
	require.NoError(t, svc.processEvent(ctx, active, &outside))
}

func TestRestartEventDiscovery(t *testing.T) {
	svc, repo, accounts := newTestService(t, 4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[i], 513))
	}
	require.NoError(t, svc.RestartEventDiscovery(ctx))

	_, err := repo.ActiveRange.Get(ctx)
	require.Error(t, err)
	require.NoError(t, svc.SubmitLatestEthereumBlock(ctx, accounts[0], 513))
}
