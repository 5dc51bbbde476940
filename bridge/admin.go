package bridge

import (
	"context"
	"fmt"

	"github.com/fedbridge/bridge-node/bridge/calldata"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

// Viewer performs synchronous read-only calls against the bridge contract.
type Viewer interface {
	View(ctx context.Context, data []byte, block *uint64) ([]byte, error)
}

// SetViewer wires the external-chain read path. Optional; ReadBridgeContract
// fails without it.
func (b *Bridge) SetViewer(v Viewer) {
	b.viewer = v
}

// ReadBridgeContract proxies a read-only contract call through the sidecar.
func (b *Bridge) ReadBridgeContract(ctx context.Context, functionName string, params []entity.FunctionParam, block *uint64) ([]byte, error) {
	if b.viewer == nil {
		return nil, fmt.Errorf("no contract viewer configured")
	}
	data, err := calldata.EncodeFunctionCall(functionName, params)
	if err != nil {
		return nil, err
	}
	return b.viewer.View(ctx, data, block)
}

// The operations below are the root-only admin surface.

func (b *Bridge) SetTxLifetime(lifetimeSecs uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txLifetimeSecs = lifetimeSecs
}

func (b *Bridge) SetNextTxID(ctx context.Context, next uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repo.Counters.SetNextTxID(ctx, next)
}

// RemoveActiveRequest force-drops the active request, notifying its origin
// with a failure, and promotes the next queued request.
func (b *Bridge) RemoveActiveRequest(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	active, err := b.repo.ActiveRequest.Get(ctx)
	if err != nil {
		return db.IgnoreErrNotFound(err)
	}
	b.notifyFailure(ctx, &active.Request)
	if err = b.repo.ActiveRequest.Delete(ctx); err != nil {
		return fmt.Errorf("can't clear active request: %w", err)
	}
	b.logger.WithField("request_id", active.Request.ID()).Warn("active request removed by admin")
	return b.processNextRequest(ctx)
}
