package sidecar

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fedbridge/bridge-node/config"
	"github.com/fedbridge/bridge-node/logging"
)

var (
	ErrReceiptNotFound = errors.New("transaction receipt not found")
	ErrBadResponse     = errors.New("can't decode sidecar response")
)

// Log is one emitted contract log as reported by the sidecar.
type Log struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
}

// Receipt is the resolution of one external-chain transaction.
type Receipt struct {
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	Logs        []Log          `json:"logs"`
}

func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}

// Client talks to the external-chain sidecar over HTTP. Every call carries a
// short deadline: the off-chain worker that issues these calls must never
// stall a tick, it logs and retries on the next block instead.
type Client struct {
	logger  logging.Logger
	http    *http.Client
	baseURL string
}

func NewClient(logger logging.Logger, cfg *config.SidecarConfig) *Client {
	return &Client{
		logger:  logger,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL: strings.TrimRight(cfg.URL, "/"),
	}
}

// Sign asks the sidecar to produce an ECDSA confirmation of data with the
// node's Ethereum key.
func (c *Client) Sign(ctx context.Context, data []byte) ([]byte, error) {
	body, err := c.get(ctx, "sign", "/eth/sign/"+hex.EncodeToString(data))
	if err != nil {
		return nil, err
	}
	sig, err := decodeHexBody(body)
	if err != nil {
		return nil, err
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("%w: signature is %d bytes", ErrBadResponse, len(sig))
	}
	return sig, nil
}

// LatestBlock returns the sidecar's view of the finalised external block.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	body, err := c.get(ctx, "latest_block", "/eth/latest_block")
	if err != nil {
		return 0, err
	}
	block, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return block, nil
}

// TransactionReceipt fetches the receipt and logs for one transaction hash.
// An unresolved transaction yields ErrReceiptNotFound.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	body, err := c.get(ctx, "events", "/eth/events/"+txHash.Hex())
	if err != nil {
		return nil, err
	}
	receipt := new(Receipt)
	if err = json.Unmarshal(body, receipt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return receipt, nil
}

// Logs returns the bridge-relevant logs emitted between two external blocks
// inclusive. The sidecar applies the contract filter server-side.
func (c *Client) Logs(ctx context.Context, fromBlock, toBlock uint64) ([]Log, error) {
	body, err := c.get(ctx, "logs", fmt.Sprintf("/eth/logs/%d/%d", fromBlock, toBlock))
	if err != nil {
		return nil, err
	}
	var logs []Log
	if err = json.Unmarshal(body, &logs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return logs, nil
}

type sendRequest struct {
	Calldata hexutil.Bytes `json:"calldata"`
}

// Send dispatches a signed function call to the bridge contract and returns
// the external transaction hash.
func (c *Client) Send(ctx context.Context, calldata []byte) (common.Hash, error) {
	body, err := c.post(ctx, "send", "/eth/send", &sendRequest{Calldata: calldata})
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := decodeHexBody(body)
	if err != nil {
		return common.Hash{}, err
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: tx hash is %d bytes", ErrBadResponse, len(raw))
	}
	return common.BytesToHash(raw), nil
}

type viewRequest struct {
	Calldata hexutil.Bytes `json:"calldata"`
	Block    *uint64       `json:"block,omitempty"`
}

// View executes a read-only contract call, optionally pinned to a block.
func (c *Client) View(ctx context.Context, calldata []byte, block *uint64) ([]byte, error) {
	body, err := c.post(ctx, "view", "/eth/view", &viewRequest{Calldata: calldata, Block: block})
	if err != nil {
		return nil, err
	}
	return decodeHexBody(body)
}

func (c *Client) get(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("can't build sidecar request: %w", err)
	}
	return c.do(method, req)
}

func (c *Client) post(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("can't encode sidecar request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("can't build sidecar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(method, req)
}

func (c *Client) do(method string, req *http.Request) ([]byte, error) {
	defer ObserveDuration(method)()

	resp, err := c.http.Do(req)
	if err != nil {
		ObserveError(method)
		return nil, fmt.Errorf("sidecar %s failed: %w", method, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Warn("can't close sidecar response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrReceiptNotFound
	}
	if resp.StatusCode != http.StatusOK {
		ObserveError(method)
		return nil, fmt.Errorf("sidecar %s returned status %d", method, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ObserveError(method)
		return nil, fmt.Errorf("can't read sidecar response: %w", err)
	}
	return body, nil
}

func decodeHexBody(body []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(body))
	trimmed = strings.TrimPrefix(trimmed, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return raw, nil
}
