package memory

import (
	"context"
	"sync"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type countersRepo struct {
	mu     sync.Mutex
	values map[string]uint64
}

func NewCountersRepo() entity.CountersRepo {
	return &countersRepo{values: make(map[string]uint64)}
}

func (r *countersRepo) next(name string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	value := r.values[name]
	r.values[name] = value + 1
	return value
}

func (r *countersRepo) NextTxID(ctx context.Context) (uint32, error) {
	return uint32(r.next("tx_id")), nil
}

func (r *countersRepo) SetNextTxID(ctx context.Context, next uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values["tx_id"] = uint64(next)
	return nil
}

func (r *countersRepo) NextSenderNonce(ctx context.Context) (uint64, error) {
	return r.next("sender_nonce"), nil
}

func (r *countersRepo) NextIngressCounter(ctx context.Context) (uint64, error) {
	return r.next("ingress_counter"), nil
}

type activeRequestRepo struct {
	mu  sync.Mutex
	req *entity.ActiveRequest
}

func NewActiveRequestRepo() entity.ActiveRequestRepo {
	return &activeRequestRepo{}
}

func (r *activeRequestRepo) Get(ctx context.Context) (*entity.ActiveRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.req == nil {
		return nil, db.ErrNotFound
	}
	req := new(entity.ActiveRequest)
	if err := clone(r.req, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *activeRequestRepo) Put(ctx context.Context, req *entity.ActiveRequest) error {
	stored := new(entity.ActiveRequest)
	if err := clone(req, stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.req = stored
	return nil
}

func (r *activeRequestRepo) Delete(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.req = nil
	return nil
}

type requestQueueRepo struct {
	mu    sync.Mutex
	queue []*entity.Request
}

func NewRequestQueueRepo() entity.RequestQueueRepo {
	return &requestQueueRepo{}
}

func (r *requestQueueRepo) Enqueue(ctx context.Context, req *entity.Request) error {
	stored := new(entity.Request)
	if err := clone(req, stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, stored)
	return nil
}

func (r *requestQueueRepo) Dequeue(ctx context.Context) (*entity.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, db.ErrNotFound
	}
	req := r.queue[0]
	r.queue = r.queue[1:]
	return req, nil
}

func (r *requestQueueRepo) Len(ctx context.Context) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint(len(r.queue)), nil
}

func (r *requestQueueRepo) List(ctx context.Context) ([]*entity.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Request, len(r.queue))
	copy(out, r.queue)
	return out, nil
}

type settledTransactionsRepo struct {
	mu  sync.Mutex
	txs map[uint32]*entity.SettledTransaction
}

func NewSettledTransactionsRepo() entity.SettledTransactionsRepo {
	return &settledTransactionsRepo{txs: make(map[uint32]*entity.SettledTransaction)}
}

func (r *settledTransactionsRepo) Insert(ctx context.Context, tx *entity.SettledTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *tx
	r.txs[tx.TxID] = &stored
	return nil
}

func (r *settledTransactionsRepo) GetByTxID(ctx context.Context, txID uint32) (*entity.SettledTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[txID]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *tx
	return &out, nil
}

func (r *settledTransactionsRepo) List(ctx context.Context, limit uint) ([]*entity.SettledTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.SettledTransaction, 0, len(r.txs))
	for _, tx := range r.txs {
		cp := *tx
		out = append(out, &cp)
		if uint(len(out)) >= limit {
			break
		}
	}
	return out, nil
}
