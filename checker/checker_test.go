package checker

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/events"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/repository/memory"
)

const challengePeriod = 60

func newTestService(t *testing.T, validatorCount int) (*Service, *repository.Repo, *chain.ManualClock, []common.Address) {
	t.Helper()
	accounts := make([]common.Address, validatorCount)
	validators := make([]chain.Validator, validatorCount)
	for i := range accounts {
		accounts[i] = common.BytesToAddress([]byte{0xcc, byte(i + 1)})
		validators[i] = chain.Validator{AccountID: accounts[i], EthAddress: accounts[i]}
	}
	logger := logging.New()
	repo := memory.NewRepo()
	set := chain.NewStaticValidatorSet(validators)
	// block 50 makes accounts[0] the primary for a five-validator set
	clock := chain.NewManualClock(time.Unix(1700000000, 0), 50, 2)
	reporter := offence.NewReporter(logger, repo.Offences, set, clock, nil)

	svc := NewService(logger, repo, set, clock, reporter, Config{
		ChallengePeriodBlocks: challengePeriod,
		QuorumFactor:          4,
	})
	return svc, repo, clock, accounts
}

func testEvent(seed byte) entity.EthereumEvent {
	return entity.EthereumEvent{
		Type:   entity.EventTypeLifted,
		TxHash: crypto.Keccak256Hash([]byte{seed}),
		Topics: []common.Hash{entity.EventTypeLifted.Signature()},
	}
}

func ingestEvent(t *testing.T, svc *Service, repo *repository.Repo, author common.Address, event entity.EthereumEvent) uint64 {
	t.Helper()
	require.NoError(t, svc.AddEthereumLog(context.Background(), author, event))
	queued, err := repo.UncheckedEvents.List(context.Background())
	require.NoError(t, err)
	for _, ev := range queued {
		if ev.Event.TxHash == event.TxHash {
			return ev.IngressCounter
		}
	}
	t.Fatal("event not queued")
	return 0
}

func TestAddEthereumLogDeduplicates(t *testing.T) {
	svc, repo, _, accounts := newTestService(t, 5)
	ctx := context.Background()
	event := testEvent(1)

	outsider := common.BytesToAddress([]byte{0x99})
	require.ErrorIs(t, svc.AddEthereumLog(ctx, outsider, event), chain.ErrNotAValidator)

	ingress := ingestEvent(t, svc, repo, accounts[1], event)
	require.ErrorIs(t, svc.AddEthereumLog(ctx, accounts[2], event), ErrDuplicateEvent)

	// still a duplicate once the check is posted and the queue entry is gone
	require.NoError(t, svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultOk))
	require.ErrorIs(t, svc.AddEthereumLog(ctx, accounts[2], event), ErrDuplicateEvent)
}

func TestSubmitCheckEventResultRules(t *testing.T) {
	svc, repo, _, accounts := newTestService(t, 5)
	ctx := context.Background()
	event := testEvent(2)
	ingress := ingestEvent(t, svc, repo, accounts[1], event)

	err := svc.SubmitCheckEventResult(ctx, accounts[1], ingress, entity.CheckResultOk)
	require.ErrorIs(t, err, ErrNotPrimaryValidator)

	err = svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultHTTPError)
	require.ErrorIs(t, err, ErrResultNotPostable)

	err = svc.SubmitCheckEventResult(ctx, accounts[0], ingress+100, entity.CheckResultOk)
	require.ErrorIs(t, err, ErrUnknownEvent)

	require.NoError(t, svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultOk))

	check, err := repo.EventChecks.GetByEventID(ctx, event.EventID())
	require.NoError(t, err)
	require.Equal(t, accounts[0], check.CheckedBy)
	require.EqualValues(t, 50+challengePeriod, check.ReadyAfterBlock)
	require.EqualValues(t, 1, check.MinChallengeVotes)

	queued, err := repo.UncheckedEvents.List(ctx)
	require.NoError(t, err)
	require.Empty(t, queued)
}

func TestChallengeRules(t *testing.T) {
	svc, repo, _, accounts := newTestService(t, 5)
	ctx := context.Background()
	event := testEvent(3)

	require.ErrorIs(t, svc.ChallengeEvent(ctx, accounts[1], event.EventID()), ErrMissingEventCheck)

	ingress := ingestEvent(t, svc, repo, accounts[1], event)
	require.NoError(t, svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultOk))

	require.ErrorIs(t, svc.ChallengeEvent(ctx, accounts[0], event.EventID()), ErrCannotChallengeOwnCheck)
	require.NoError(t, svc.ChallengeEvent(ctx, accounts[1], event.EventID()))
	require.ErrorIs(t, svc.ChallengeEvent(ctx, accounts[1], event.EventID()), ErrDuplicateChallenge)
}

func TestProcessEventUpheldOkDispatchesHandler(t *testing.T) {
	svc, repo, clock, accounts := newTestService(t, 5)
	ctx := context.Background()
	event := testEvent(4)

	var handled int
	svc.RegisterHandler(entity.EventTypeLifted, events.HandlerFunc(func(context.Context, *entity.DiscoveredEvent) error {
		handled++
		return nil
	}))

	ingress := ingestEvent(t, svc, repo, accounts[1], event)
	require.NoError(t, svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultOk))

	require.ErrorIs(t, svc.ProcessEvent(ctx, accounts[1], event.EventID()), ErrChallengeWindowOpen)

	clock.AdvanceBlocks(challengePeriod + 1)
	require.NoError(t, svc.ProcessEvent(ctx, accounts[1], event.EventID()))
	require.Equal(t, 1, handled)

	processed, err := repo.ProcessedEvents.GetByTxHash(ctx, event.TxHash)
	require.NoError(t, err)
	require.True(t, processed.Accepted)

	_, err = repo.EventChecks.GetByEventID(ctx, event.EventID())
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestUnsuccessfulChallengeReportsChallengers(t *testing.T) {
	svc, repo, clock, accounts := newTestService(t, 5)
	ctx := context.Background()
	event := testEvent(5)
	svc.RegisterHandler(entity.EventTypeLifted, events.HandlerFunc(func(context.Context, *entity.DiscoveredEvent) error {
		return nil
	}))

	ingress := ingestEvent(t, svc, repo, accounts[1], event)
	require.NoError(t, svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultOk))

	// threshold is max(1, 5/4)=1, a single challenge does not overturn
	require.NoError(t, svc.ChallengeEvent(ctx, accounts[1], event.EventID()))
	clock.AdvanceBlocks(challengePeriod + 1)
	require.NoError(t, svc.ProcessEvent(ctx, accounts[2], event.EventID()))

	processed, err := repo.ProcessedEvents.GetByTxHash(ctx, event.TxHash)
	require.NoError(t, err)
	require.True(t, processed.Accepted)

	offences, err := repo.Offences.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, offences, 1)
	require.Equal(t, string(offence.TypeChallengeAttemptedOnValidResult), offences[0].Type)
	require.Equal(t, []common.Address{accounts[1]}, offences[0].Offenders)
}

func TestSuccessfulChallengeOverturnsOkVerdict(t *testing.T) {
	svc, repo, clock, accounts := newTestService(t, 5)
	ctx := context.Background()
	event := testEvent(6)

	ingress := ingestEvent(t, svc, repo, accounts[1], event)
	require.NoError(t, svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultOk))

	require.NoError(t, svc.ChallengeEvent(ctx, accounts[1], event.EventID()))
	require.NoError(t, svc.ChallengeEvent(ctx, accounts[2], event.EventID()))
	clock.AdvanceBlocks(challengePeriod + 1)
	require.NoError(t, svc.ProcessEvent(ctx, accounts[3], event.EventID()))

	processed, err := repo.ProcessedEvents.GetByTxHash(ctx, event.TxHash)
	require.NoError(t, err)
	require.False(t, processed.Accepted)

	offences, err := repo.Offences.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, offences, 1)
	require.Equal(t, string(offence.TypeIncorrectCheckResultSubmitted), offences[0].Type)
	require.Equal(t, []common.Address{accounts[0]}, offences[0].Offenders)
}

func TestOverturnedInvalidVerdictIsResubmittable(t *testing.T) {
	svc, repo, clock, accounts := newTestService(t, 5)
	ctx := context.Background()
	event := testEvent(7)

	ingress := ingestEvent(t, svc, repo, accounts[1], event)
	require.NoError(t, svc.SubmitCheckEventResult(ctx, accounts[0], ingress, entity.CheckResultInvalid))

	require.NoError(t, svc.ChallengeEvent(ctx, accounts[1], event.EventID()))
	require.NoError(t, svc.ChallengeEvent(ctx, accounts[2], event.EventID()))
	clock.AdvanceBlocks(challengePeriod + 1)
	require.NoError(t, svc.ProcessEvent(ctx, accounts[3], event.EventID()))

	// not recorded as processed: the event can enter the pipeline again
	_, err := repo.ProcessedEvents.GetByTxHash(ctx, event.TxHash)
	require.ErrorIs(t, err, db.ErrNotFound)
	require.NoError(t, svc.AddEthereumLog(ctx, accounts[1], event))
}
