package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type processedEventsRepo struct {
	mu     sync.Mutex
	events map[common.Hash]*entity.ProcessedEvent
}

func NewProcessedEventsRepo() entity.ProcessedEventsRepo {
	return &processedEventsRepo{events: make(map[common.Hash]*entity.ProcessedEvent)}
}

func (r *processedEventsRepo) Ensure(ctx context.Context, event *entity.ProcessedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.events[event.TxHash]; ok {
		existing.Accepted = existing.Accepted || event.Accepted
		return nil
	}
	stored := *event
	r.events[event.TxHash] = &stored
	return nil
}

func (r *processedEventsRepo) GetByTxHash(ctx context.Context, txHash common.Hash) (*entity.ProcessedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[txHash]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *event
	return &out, nil
}

type activeRangeRepo struct {
	mu sync.Mutex
	r  *entity.ActiveRange
}

func NewActiveRangeRepo() entity.ActiveRangeRepo {
	return &activeRangeRepo{}
}

func (repo *activeRangeRepo) Get(ctx context.Context) (*entity.ActiveRange, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.r == nil {
		return nil, db.ErrNotFound
	}
	out := new(entity.ActiveRange)
	if err := clone(repo.r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (repo *activeRangeRepo) Put(ctx context.Context, activeRange *entity.ActiveRange) error {
	stored := new(entity.ActiveRange)
	if err := clone(activeRange, stored); err != nil {
		return err
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.r = stored
	return nil
}

func (repo *activeRangeRepo) Delete(ctx context.Context) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.r = nil
	return nil
}

type blockVotesRepo struct {
	mu    sync.Mutex
	votes []*entity.BlockVote
}

func NewBlockVotesRepo() entity.BlockVotesRepo {
	return &blockVotesRepo{}
}

func (r *blockVotesRepo) Insert(ctx context.Context, vote *entity.BlockVote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *vote
	r.votes = append(r.votes, &stored)
	return nil
}

func (r *blockVotesRepo) ExistsByAuthor(ctx context.Context, author common.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vote := range r.votes {
		if vote.Author == author {
			return true, nil
		}
	}
	return false, nil
}

func (r *blockVotesRepo) List(ctx context.Context) ([]*entity.BlockVote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.BlockVote, len(r.votes))
	for i, vote := range r.votes {
		cp := *vote
		out[i] = &cp
	}
	return out, nil
}

func (r *blockVotesRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes = nil
	return nil
}

type additionalEventsRepo struct {
	mu     sync.Mutex
	hashes []common.Hash
}

func NewAdditionalEventsRepo() entity.AdditionalEventsRepo {
	return &additionalEventsRepo{}
}

func (r *additionalEventsRepo) Enqueue(ctx context.Context, txHash common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hashes {
		if h == txHash {
			return nil
		}
	}
	r.hashes = append(r.hashes, txHash)
	return nil
}

func (r *additionalEventsRepo) Drain(ctx context.Context) ([]common.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.hashes
	r.hashes = nil
	return out, nil
}

type partitionVotesRepo struct {
	mu    sync.Mutex
	votes []*entity.PartitionVote
}

func NewPartitionVotesRepo() entity.PartitionVotesRepo {
	return &partitionVotesRepo{}
}

func (r *partitionVotesRepo) Insert(ctx context.Context, vote *entity.PartitionVote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *vote
	r.votes = append(r.votes, &stored)
	return nil
}

func (r *partitionVotesRepo) ExistsByAuthor(ctx context.Context, author common.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vote := range r.votes {
		if vote.Author == author {
			return true, nil
		}
	}
	return false, nil
}

func (r *partitionVotesRepo) CountByPartition(ctx context.Context, partitionID common.Hash) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count uint
	for _, vote := range r.votes {
		if vote.PartitionID == partitionID {
			count++
		}
	}
	return count, nil
}

func (r *partitionVotesRepo) VotersExcept(ctx context.Context, partitionID common.Hash) ([]common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var voters []common.Address
	for _, vote := range r.votes {
		if vote.PartitionID != partitionID {
			voters = append(voters, vote.Author)
		}
	}
	return voters, nil
}

func (r *partitionVotesRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes = nil
	return nil
}
