package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type votingSessionsRepo struct {
	mu       sync.Mutex
	sessions map[common.Hash]*entity.VotingSession
	order    []common.Hash
}

func NewVotingSessionsRepo() entity.VotingSessionsRepo {
	return &votingSessionsRepo{sessions: make(map[common.Hash]*entity.VotingSession)}
}

func (r *votingSessionsRepo) Get(ctx context.Context, id common.Hash) (*entity.VotingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := new(entity.VotingSession)
	if err := clone(session, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *votingSessionsRepo) Put(ctx context.Context, session *entity.VotingSession) error {
	stored := new(entity.VotingSession)
	if err := clone(session, stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		r.order = append(r.order, session.ID)
	}
	r.sessions[session.ID] = stored
	return nil
}

func (r *votingSessionsRepo) Delete(ctx context.Context, id common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *votingSessionsRepo) List(ctx context.Context) ([]*entity.VotingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.VotingSession, 0, len(r.order))
	for _, id := range r.order {
		session := new(entity.VotingSession)
		if err := clone(r.sessions[id], session); err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

type slotRepo struct {
	mu   sync.Mutex
	slot *entity.Slot
}

func NewSlotRepo() entity.SlotRepo {
	return &slotRepo{}
}

func (r *slotRepo) Get(ctx context.Context) (*entity.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slot == nil {
		return nil, db.ErrNotFound
	}
	out := new(entity.Slot)
	if err := clone(r.slot, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *slotRepo) Put(ctx context.Context, slot *entity.Slot) error {
	stored := new(entity.Slot)
	if err := clone(slot, stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slot = stored
	return nil
}

type offencesRepo struct {
	mu       sync.Mutex
	offences []*entity.Offence
	nextID   uint64
}

func NewOffencesRepo() entity.OffencesRepo {
	return &offencesRepo{nextID: 1}
}

func (r *offencesRepo) Insert(ctx context.Context, offence *entity.Offence) error {
	stored := new(entity.Offence)
	if err := clone(offence, stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored.ID = r.nextID
	r.nextID++
	r.offences = append(r.offences, stored)
	return nil
}

func (r *offencesRepo) List(ctx context.Context, limit uint) ([]*entity.Offence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Offence, len(r.offences))
	copy(out, r.offences)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if uint(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
