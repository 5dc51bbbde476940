package bridge

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/repository/memory"
	"github.com/fedbridge/bridge-node/utils"
)

type notificationCall struct {
	txID      uint32
	lowerID   uint32
	callerID  string
	proof     []byte
	succeeded bool
}

type mockNotifier struct {
	results     []notificationCall
	lowerProofs []notificationCall
}

func (m *mockNotifier) ProcessResult(_ context.Context, txID uint32, callerID string, succeeded bool) error {
	m.results = append(m.results, notificationCall{txID: txID, callerID: callerID, succeeded: succeeded})
	return nil
}

func (m *mockNotifier) ProcessLowerProofResult(_ context.Context, lowerID uint32, callerID string, proof []byte, succeeded bool) error {
	m.lowerProofs = append(m.lowerProofs, notificationCall{lowerID: lowerID, callerID: callerID, proof: proof, succeeded: succeeded})
	return nil
}

type testEnv struct {
	bridge   *Bridge
	repo     *repository.Repo
	clock    *chain.ManualClock
	keys     []*ecdsa.PrivateKey
	accounts []common.Address
	notifier *mockNotifier
}

func newTestEnv(t *testing.T, validatorCount int, queueCapacity uint) *testEnv {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, validatorCount)
	validators := make([]chain.Validator, validatorCount)
	accounts := make([]common.Address, validatorCount)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
		accounts[i] = crypto.PubkeyToAddress(key.PublicKey)
		validators[i] = chain.Validator{AccountID: accounts[i], EthAddress: accounts[i]}
	}

	logger := logging.New()
	repo := memory.NewRepo()
	clock := chain.NewManualClock(time.Unix(1700000000, 0), 100, 2)
	set := chain.NewStaticValidatorSet(validators)
	reporter := offence.NewReporter(logger, repo.Offences, set, clock, &offence.LogSink{Logger: logger})

	b := NewBridge(logger, repo, set, clock, reporter, Config{
		QueueCapacity:         queueCapacity,
		TxLifetimeSeconds:     60,
		ConfirmationsCapacity: 10,
	})
	notifier := &mockNotifier{}
	b.RegisterNotifier("caller", notifier)

	return &testEnv{bridge: b, repo: repo, clock: clock, keys: keys, accounts: accounts, notifier: notifier}
}

func (e *testEnv) confirm(t *testing.T, requestID uint32, validatorIdx int) error {
	t.Helper()
	active, err := e.repo.ActiveRequest.Get(context.Background())
	require.NoError(t, err)
	sig, err := utils.SignData(e.keys[validatorIdx], active.Confirmation.MsgHash.Bytes())
	require.NoError(t, err)
	return e.bridge.AddConfirmation(context.Background(), requestID, sig, e.accounts[validatorIdx])
}

func (e *testEnv) senderIdx(t *testing.T) int {
	t.Helper()
	active, err := e.repo.ActiveRequest.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active.TxData)
	for i, acc := range e.accounts {
		if acc == active.TxData.Sender {
			return i
		}
	}
	t.Fatal("sender is not a known validator")
	return -1
}

func testParams() []entity.FunctionParam {
	return []entity.FunctionParam{
		{Type: "bytes32", Value: crypto.Keccak256Hash([]byte("root")).Hex()},
	}
}

func TestPublishActivatesSingleRequest(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)

	active, err := e.repo.ActiveRequest.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, txID, active.Request.TxID)
	require.NotNil(t, active.TxData)
	require.NotEqual(t, common.Hash{}, active.Confirmation.MsgHash)

	// further requests queue behind the active slot in FIFO order
	second, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	third, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)

	queued, err := e.repo.RequestQueue.List(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	require.Equal(t, second, queued[0].TxID)
	require.Equal(t, third, queued[1].TxID)

	_, err = e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.ErrorIs(t, err, ErrTxRequestQueueFull)
}

func TestPublishRejectionLeavesNoTxIDGap(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	var last uint32
	for i := 0; i < 3; i++ {
		txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
		require.NoError(t, err)
		last = txID
	}

	for i := 0; i < 2; i++ {
		_, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
		require.ErrorIs(t, err, ErrTxRequestQueueFull)
	}

	next, err := e.repo.Counters.NextTxID(ctx)
	require.NoError(t, err)
	require.Equal(t, last+1, next, "rejected publishes must not consume tx ids")
}

func TestPublishRejectsEmptyFunctionName(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	_, err := e.bridge.Publish(context.Background(), "", nil, "caller")
	require.ErrorIs(t, err, ErrEmptyFunctionName)
}

func TestConfirmationRules(t *testing.T) {
	e := newTestEnv(t, 7, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	sender := e.senderIdx(t)
	nonSender := (sender + 1) % 7

	// the sender's own confirmation is ignored, not recorded
	require.NoError(t, e.confirm(t, txID, sender))
	active, err := e.repo.ActiveRequest.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, active.Confirmation.Signatures.Count())

	// a garbage signature is rejected
	err = e.bridge.AddConfirmation(ctx, txID, make([]byte, 65), e.accounts[nonSender])
	require.ErrorIs(t, err, ErrInvalidECDSASignature)

	// a non-validator is rejected
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := utils.SignData(key, active.Confirmation.MsgHash.Bytes())
	require.NoError(t, err)
	err = e.bridge.AddConfirmation(ctx, txID, sig, crypto.PubkeyToAddress(key.PublicKey))
	require.ErrorIs(t, err, chain.ErrNotAValidator)

	require.NoError(t, e.confirm(t, txID, nonSender))
	require.ErrorIs(t, e.confirm(t, txID, nonSender), ErrDuplicateConfirmation)

	active, err = e.repo.ActiveRequest.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, active.Confirmation.Signatures.Count())
}

func TestEthTxHashSenderOnlyOnce(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	sender := e.senderIdx(t)
	nonSender := (sender + 1) % 4
	hash := crypto.Keccak256Hash([]byte("eth tx"))

	err = e.bridge.AddEthTxHash(ctx, txID, hash, e.accounts[nonSender])
	require.ErrorIs(t, err, ErrEthTxHashMustBeSetBySender)

	require.NoError(t, e.bridge.AddEthTxHash(ctx, txID, hash, e.accounts[sender]))
	err = e.bridge.AddEthTxHash(ctx, txID, hash, e.accounts[sender])
	require.ErrorIs(t, err, ErrEthTxHashAlreadySet)
}

func TestCorroborationFinalizesAndPromotesNext(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	next, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)

	sender := e.senderIdx(t)
	hash := crypto.Keccak256Hash([]byte("eth tx"))
	require.NoError(t, e.bridge.AddEthTxHash(ctx, txID, hash, e.accounts[sender]))

	// the sender never corroborates
	err = e.bridge.AddCorroboration(ctx, txID, true, true, e.accounts[sender], 0)
	require.ErrorIs(t, err, ErrDuplicateCorroboration)

	v1 := (sender + 1) % 4
	v2 := (sender + 2) % 4
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, true, true, e.accounts[v1], 0))
	err = e.bridge.AddCorroboration(ctx, txID, false, true, e.accounts[v1], 0)
	require.ErrorIs(t, err, ErrDuplicateCorroboration)

	// simple quorum of 2 finalizes
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, true, true, e.accounts[v2], 0))

	settled, err := e.repo.SettledTransactions.GetByTxID(ctx, txID)
	require.NoError(t, err)
	require.True(t, settled.Succeeded)
	require.Equal(t, hash, settled.EthTxHash)

	require.Len(t, e.notifier.results, 1)
	require.Equal(t, txID, e.notifier.results[0].txID)
	require.True(t, e.notifier.results[0].succeeded)

	// next queued request was promoted
	active, err := e.repo.ActiveRequest.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, next, active.Request.TxID)

	// late corroborations for the settled request are no-ops
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, true, true, e.accounts[(sender+3)%4], 0))
}

func TestCorroborationRequiresSendOrExpiry(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	sender := e.senderIdx(t)
	v1 := (sender + 1) % 4
	v2 := (sender + 2) % 4

	// unsent and within its lifetime: nothing to corroborate yet
	err = e.bridge.AddCorroboration(ctx, txID, false, true, e.accounts[v1], 0)
	require.ErrorIs(t, err, ErrPrematureCorroboration)

	active, err := e.repo.ActiveRequest.Get(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, active.TxData.FailureCorroborations.Count())
	_, err = e.repo.SettledTransactions.GetByTxID(ctx, txID)
	require.ErrorIs(t, err, db.ErrNotFound)

	// past expiry the same request becomes corroboration-eligible
	e.clock.AdvanceTime(61 * time.Second)
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, false, true, e.accounts[v1], 0))
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, false, true, e.accounts[v2], 0))

	settled, err := e.repo.SettledTransactions.GetByTxID(ctx, txID)
	require.NoError(t, err)
	require.False(t, settled.Succeeded)
	require.Equal(t, common.Hash{}, settled.EthTxHash)
}

func TestFailureWithInvalidHashQuorumReplays(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	sender := e.senderIdx(t)
	firstHash := func() common.Hash {
		active, err2 := e.repo.ActiveRequest.Get(ctx)
		require.NoError(t, err2)
		return active.Confirmation.MsgHash
	}()

	v1 := (sender + 1) % 4
	v2 := (sender + 2) % 4
	e.clock.AdvanceTime(61 * time.Second)
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, false, false, e.accounts[v1], 0))
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, false, false, e.accounts[v2], 0))

	// replay: same request stays active with a bumped attempt and a new hash
	active, err := e.repo.ActiveRequest.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, txID, active.Request.TxID)
	require.EqualValues(t, 1, active.TxData.ReplayAttempt)
	require.NotEqual(t, firstHash, active.Confirmation.MsgHash)

	_, err = e.repo.SettledTransactions.GetByTxID(ctx, txID)
	require.ErrorIs(t, err, db.ErrNotFound)

	// stale corroborations against the old attempt are rejected
	err = e.bridge.AddCorroboration(ctx, txID, false, false, e.accounts[v1], 0)
	require.ErrorIs(t, err, ErrInvalidCorroborationData)
}

func TestSuccessWithInvalidHashQuorumZeroesHash(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	sender := e.senderIdx(t)
	hash := crypto.Keccak256Hash([]byte("eth tx"))
	require.NoError(t, e.bridge.AddEthTxHash(ctx, txID, hash, e.accounts[sender]))

	v1 := (sender + 1) % 4
	v2 := (sender + 2) % 4
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, true, false, e.accounts[v1], 0))
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, true, false, e.accounts[v2], 0))

	settled, err := e.repo.SettledTransactions.GetByTxID(ctx, txID)
	require.NoError(t, err)
	require.True(t, settled.Succeeded)
	require.Equal(t, common.Hash{}, settled.EthTxHash)
}

func TestFailureReportsDissentingCorroborators(t *testing.T) {
	e := newTestEnv(t, 7, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)
	sender := e.senderIdx(t)
	hash := crypto.Keccak256Hash([]byte("eth tx"))
	require.NoError(t, e.bridge.AddEthTxHash(ctx, txID, hash, e.accounts[sender]))

	dissenter := (sender + 1) % 7
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, true, true, e.accounts[dissenter], 0))
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, false, true, e.accounts[(sender+2)%7], 0))
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, false, true, e.accounts[(sender+3)%7], 0))
	require.NoError(t, e.bridge.AddCorroboration(ctx, txID, false, true, e.accounts[(sender+4)%7], 0))

	offences, err := e.repo.Offences.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, offences, 1)
	require.Equal(t, string(offence.TypeChallengeAttemptedOnUnsuccessfulTransaction), offences[0].Type)
	require.Equal(t, []common.Address{e.accounts[dissenter]}, offences[0].Offenders)
}

func TestLowerProofCompletion(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	require.NoError(t, e.bridge.GenerateLowerProof(ctx, 7, testParams(), "caller"))

	// supermajority of 4 validators is 3 explicit signatures
	require.NoError(t, e.confirm(t, 7, 0))
	require.NoError(t, e.confirm(t, 7, 1))
	require.Empty(t, e.notifier.lowerProofs)
	require.NoError(t, e.confirm(t, 7, 2))

	require.Len(t, e.notifier.lowerProofs, 1)
	call := e.notifier.lowerProofs[0]
	require.EqualValues(t, 7, call.lowerID)
	require.True(t, call.succeeded)
	require.Len(t, call.proof, 3*65)

	_, err := e.repo.ActiveRequest.Get(ctx)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestRemoveActiveRequestNotifiesFailure(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	ctx := context.Background()

	txID, err := e.bridge.Publish(ctx, "publishRoot", testParams(), "caller")
	require.NoError(t, err)

	require.NoError(t, e.bridge.RemoveActiveRequest(ctx))
	require.Len(t, e.notifier.results, 1)
	require.Equal(t, txID, e.notifier.results[0].txID)
	require.False(t, e.notifier.results[0].succeeded)

	_, err = e.repo.ActiveRequest.Get(ctx)
	require.ErrorIs(t, err, db.ErrNotFound)
}
