// Package chain supplies the ledger height the registry stamps into batch
// records. Heights are monotonic and externally driven; the registry never
// advances them itself.
package chain

import (
	"sync"
	"time"
)

// Clock reports the current ledger height.
type Clock interface {
	Height() uint64
}

// IntervalClock derives a height from wall-clock time: one block per fixed
// interval since a genesis instant. Good enough for a deployment without a
// real chain feed; expiry semantics only need a monotonic height.
type IntervalClock struct {
	genesis  time.Time
	interval time.Duration
}

func NewIntervalClock(genesis time.Time, interval time.Duration) *IntervalClock {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &IntervalClock{genesis: genesis, interval: interval}
}

func (c *IntervalClock) Height() uint64 {
	elapsed := time.Since(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.interval)
}

// ManualClock is a height source tests advance by hand.
type ManualClock struct {
	mu     sync.Mutex
	height uint64
}

func NewManualClock(height uint64) *ManualClock {
	return &ManualClock{height: height}
}

func (c *ManualClock) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Advance moves the height forward by n blocks.
func (c *ManualClock) Advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
}

// SetHeight pins the height to an absolute value.
func (c *ManualClock) SetHeight(height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = height
}
