package ocw

import (
	"context"
	"time"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/utils"
)

// Driver is one off-chain worker concern. RunOnce is invoked at most once per
// chain block; it reads state and submits candidate calls, never mutating
// consensus state directly.
type Driver interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Scheduler ticks the drivers against the chain clock. A driver error is
// logged and retried on the next block: worker failures must never stop the
// node.
type Scheduler struct {
	logger       logging.Logger
	clock        chain.Clock
	pollInterval time.Duration
	drivers      []Driver
	lastRun      map[string]uint64
}

func NewScheduler(logger logging.Logger, clock chain.Clock, pollInterval time.Duration, drivers ...Driver) *Scheduler {
	return &Scheduler{
		logger:       logger,
		clock:        clock,
		pollInterval: pollInterval,
		drivers:      drivers,
		lastRun:      make(map[string]uint64),
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.Tick(ctx)
		if utils.ContextSleep(ctx, s.pollInterval) == nil {
			return ctx.Err()
		}
	}
}

// Tick runs every driver that has not run for the current block yet.
func (s *Scheduler) Tick(ctx context.Context) {
	block := s.clock.CurrentBlock()
	for _, driver := range s.drivers {
		if last, ok := s.lastRun[driver.Name()]; ok && last >= block {
			continue
		}
		s.lastRun[driver.Name()] = block
		if err := driver.RunOnce(ctx); err != nil {
			s.logger.WithError(err).WithField("driver", driver.Name()).WithField("block", block).Warn("worker tick failed")
		}
	}
}
