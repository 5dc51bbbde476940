package sidecar

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/fedbridge/bridge-node/config"
	"github.com/fedbridge/bridge-node/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(logging.New(), &config.SidecarConfig{URL: server.URL, TimeoutSeconds: 2})
}

func TestSign(t *testing.T) {
	payload := []byte("message")
	signature := make([]byte, 65)
	signature[64] = 1

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eth/sign/"+hex.EncodeToString(payload), r.URL.Path)
		if _, err := w.Write([]byte("0x" + hex.EncodeToString(signature))); err != nil {
			t.Error(err)
		}
	}))

	got, err := client.Sign(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, signature, got)
}

func TestSignRejectsShortSignature(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("0xdead")); err != nil {
			t.Error(err)
		}
	}))
	_, err := client.Sign(context.Background(), []byte("message"))
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestLatestBlock(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eth/latest_block", r.URL.Path)
		if _, err := w.Write([]byte("18345001\n")); err != nil {
			t.Error(err)
		}
	}))

	block, err := client.LatestBlock(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 18345001, block)
}

func TestTransactionReceipt(t *testing.T) {
	txHash := crypto.Keccak256Hash([]byte("tx"))
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eth/events/"+txHash.Hex(), r.URL.Path)
		payload := `{"status":"0x1","blockNumber":"0x10","logs":[{"address":"0x00000000000000000000000000000000000000b1","topics":[],"data":"0x","blockNumber":"0x10","transactionHash":"` + txHash.Hex() + `"}]}`
		if _, err := w.Write([]byte(payload)); err != nil {
			t.Error(err)
		}
	}))

	receipt, err := client.TransactionReceipt(context.Background(), txHash)
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())
	require.EqualValues(t, 16, receipt.BlockNumber)
	require.Len(t, receipt.Logs, 1)
	require.Equal(t, txHash, receipt.Logs[0].TxHash)
}

func TestTransactionReceiptNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := client.TransactionReceipt(context.Background(), crypto.Keccak256Hash([]byte("tx")))
	require.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestSendAndView(t *testing.T) {
	txHash := crypto.Keccak256Hash([]byte("sent"))
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/eth/send":
			_, err := w.Write([]byte(hex.EncodeToString(txHash.Bytes())))
			require.NoError(t, err)
		case "/eth/view":
			_, err := w.Write([]byte("0x0001"))
			require.NoError(t, err)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	got, err := client.Send(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, txHash, got)

	out, err := client.View(context.Background(), []byte{1, 2, 3}, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1}, out)
}

func TestErrorStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err := client.LatestBlock(context.Background())
	require.Error(t, err)
}
