package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type uncheckedEventsRepo struct {
	mu     sync.Mutex
	events map[uint64]*entity.UncheckedEvent
}

func NewUncheckedEventsRepo() entity.UncheckedEventsRepo {
	return &uncheckedEventsRepo{events: make(map[uint64]*entity.UncheckedEvent)}
}

func (r *uncheckedEventsRepo) Insert(ctx context.Context, event *entity.UncheckedEvent) error {
	stored := new(entity.UncheckedEvent)
	if err := clone(event, stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.IngressCounter] = stored
	return nil
}

func (r *uncheckedEventsRepo) List(ctx context.Context) ([]*entity.UncheckedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.UncheckedEvent, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngressCounter < out[j].IngressCounter })
	return out, nil
}

func (r *uncheckedEventsRepo) ExistsByEventID(ctx context.Context, id entity.EventID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.Event.EventID() == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *uncheckedEventsRepo) DeleteByIngressCounter(ctx context.Context, ingressCounter uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, ingressCounter)
	return nil
}

type eventChecksRepo struct {
	mu     sync.Mutex
	checks map[entity.EventID]*entity.EventCheck
}

func NewEventChecksRepo() entity.EventChecksRepo {
	return &eventChecksRepo{checks: make(map[entity.EventID]*entity.EventCheck)}
}

func (r *eventChecksRepo) Insert(ctx context.Context, check *entity.EventCheck) error {
	stored := new(entity.EventCheck)
	if err := clone(check, stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[check.Event.EventID()] = stored
	return nil
}

func (r *eventChecksRepo) GetByEventID(ctx context.Context, id entity.EventID) (*entity.EventCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	check, ok := r.checks[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := new(entity.EventCheck)
	if err := clone(check, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventChecksRepo) List(ctx context.Context) ([]*entity.EventCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.EventCheck, 0, len(r.checks))
	for _, check := range r.checks {
		out = append(out, check)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngressCounter < out[j].IngressCounter })
	return out, nil
}

func (r *eventChecksRepo) DeleteByEventID(ctx context.Context, id entity.EventID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checks, id)
	return nil
}

type challengesRepo struct {
	mu         sync.Mutex
	challenges []*entity.Challenge
}

func NewChallengesRepo() entity.ChallengesRepo {
	return &challengesRepo{}
}

func (r *challengesRepo) Insert(ctx context.Context, challenge *entity.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *challenge
	r.challenges = append(r.challenges, &stored)
	return nil
}

func (r *challengesRepo) matches(c *entity.Challenge, id entity.EventID) bool {
	return c.EventType == id.Type && c.EventTxHash == id.TxHash
}

func (r *challengesRepo) Exists(ctx context.Context, id entity.EventID, author common.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if r.matches(c, id) && c.ChallengedBy == author {
			return true, nil
		}
	}
	return false, nil
}

func (r *challengesRepo) CountByEventID(ctx context.Context, id entity.EventID) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count uint
	for _, c := range r.challenges {
		if r.matches(c, id) {
			count++
		}
	}
	return count, nil
}

func (r *challengesRepo) ListByEventID(ctx context.Context, id entity.EventID) ([]*entity.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Challenge
	for _, c := range r.challenges {
		if r.matches(c, id) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *challengesRepo) DeleteByEventID(ctx context.Context, id entity.EventID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.challenges[:0]
	for _, c := range r.challenges {
		if !r.matches(c, id) {
			kept = append(kept, c)
		}
	}
	r.challenges = kept
	return nil
}
