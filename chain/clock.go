package chain

import (
	"sync"
	"time"
)

// Clock exposes the node's view of chain time. Blocks are derived from wall
// time against a fixed genesis, so every node with a synced clock agrees on
// the current height.
type Clock interface {
	Now() time.Time
	CurrentBlock() uint64
	FinalisedBlock() uint64
}

type systemClock struct {
	genesis     time.Time
	blockTime   time.Duration
	finalityLag uint64
}

func NewSystemClock(genesis time.Time, blockTime time.Duration, finalityLag uint64) Clock {
	return &systemClock{
		genesis:     genesis,
		blockTime:   blockTime,
		finalityLag: finalityLag,
	}
}

func (c *systemClock) Now() time.Time {
	return time.Now()
}

func (c *systemClock) CurrentBlock() uint64 {
	elapsed := time.Since(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.blockTime)
}

func (c *systemClock) FinalisedBlock() uint64 {
	current := c.CurrentBlock()
	if current < c.finalityLag {
		return 0
	}
	return current - c.finalityLag
}

// ManualClock is a Clock controlled by tests.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Time
	block uint64
	lag   uint64
}

func NewManualClock(now time.Time, block, finalityLag uint64) *ManualClock {
	return &ManualClock{now: now, block: block, lag: finalityLag}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) CurrentBlock() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

func (c *ManualClock) FinalisedBlock() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.block < c.lag {
		return 0
	}
	return c.block - c.lag
}

func (c *ManualClock) AdvanceBlocks(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block += n
}

func (c *ManualClock) AdvanceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
