package presenter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/repository/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.Repo) {
	t.Helper()
	repo := memory.NewRepo()
	p := NewPresenter(logging.New(), repo)
	server := httptest.NewServer(p.Handler())
	t.Cleanup(server.Close)
	return server, repo
}

func get(t *testing.T, server *httptest.Server, path string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthAndNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	var health HealthResult
	resp := get(t, server, "/health", &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", health.Status)

	resp = get(t, server, "/bridge/active", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = get(t, server, "/bridge/settled/42", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBridgeEndpoints(t *testing.T) {
	server, repo := newTestServer(t)
	ctx := context.Background()

	active := &entity.ActiveRequest{
		Request:     entity.Request{Kind: entity.RequestKindSend, TxID: 7, FunctionName: "publishRoot", CallerID: "summary"},
		LastUpdated: 100,
	}
	require.NoError(t, repo.ActiveRequest.Put(ctx, active))
	require.NoError(t, repo.RequestQueue.Enqueue(ctx, &entity.Request{Kind: entity.RequestKindSend, TxID: 8, FunctionName: "publishRoot"}))
	require.NoError(t, repo.SettledTransactions.Insert(ctx, &entity.SettledTransaction{
		TxID:         7,
		FunctionName: "publishRoot",
		EthTxHash:    common.HexToHash("0x01"),
		Succeeded:    true,
	}))

	var gotActive entity.ActiveRequest
	resp := get(t, server, "/bridge/active", &gotActive)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint32(7), gotActive.Request.TxID)

	var queue []*entity.Request
	resp = get(t, server, "/bridge/queue", &queue)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, queue, 1)

	var settled entity.SettledTransaction
	resp = get(t, server, "/bridge/settled/7", &settled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, settled.Succeeded)

	var list []*entity.SettledTransaction
	resp = get(t, server, "/bridge/settled?limit=5", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
}

func TestEventsEndpoints(t *testing.T) {
	server, repo := newTestServer(t)
	ctx := context.Background()

	// no active range yet: votes alone are returned
	author := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, repo.BlockVotes.Insert(ctx, &entity.BlockVote{Author: author, WindowStart: 400}))

	var rangeRes ActiveRangeResult
	resp := get(t, server, "/events/range", &rangeRes)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rangeRes.Range)
	require.Len(t, rangeRes.BlockVotes, 1)

	require.NoError(t, repo.ActiveRange.Put(ctx, &entity.ActiveRange{
		Range: entity.EthBlockRange{StartBlock: 400, Length: 20},
	}))
	resp = get(t, server, "/events/range", &rangeRes)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, rangeRes.Range)
	require.Equal(t, uint32(400), rangeRes.Range.Range.StartBlock)

	txHash := common.HexToHash("0xcafe000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, repo.ProcessedEvents.Ensure(ctx, &entity.ProcessedEvent{
		TxHash:    txHash,
		EventType: entity.EventTypeLifted,
		Accepted:  true,
	}))

	var processed entity.ProcessedEvent
	resp = get(t, server, "/events/processed/"+txHash.Hex(), &processed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, processed.Accepted)

	resp = get(t, server, "/events/processed/not-a-hash", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckerAndOffencesEndpoints(t *testing.T) {
	server, repo := newTestServer(t)
	ctx := context.Background()

	event := entity.EthereumEvent{
		Type:   entity.EventTypeLifted,
		TxHash: common.HexToHash("0xbeef000000000000000000000000000000000000000000000000000000000002"),
	}
	require.NoError(t, repo.UncheckedEvents.Insert(ctx, &entity.UncheckedEvent{IngressCounter: 1, Event: event}))
	require.NoError(t, repo.Offences.Insert(ctx, &entity.Offence{
		Reporter:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Offenders: []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000bb")},
		Type:      "incorrect_check_result_submitted",
	}))

	var pending CheckerPendingResult
	resp := get(t, server, "/checker/pending", &pending)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, pending.Unchecked, 1)
	require.Empty(t, pending.Checks)

	var offences []*entity.Offence
	resp = get(t, server, "/offences", &offences)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, offences, 1)
}
