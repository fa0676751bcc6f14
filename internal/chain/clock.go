// Package chain provides the block-height clock the engine uses for
// deadline checks.
package chain

import (
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// Clock derives a monotonic block height from a genesis instant and a fixed
// block interval, mirroring the sequence counter of the hosting chain.
type Clock struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time
}

// NewClock creates a Clock with the given genesis time and block interval.
// A non-positive interval defaults to six seconds.
func NewClock(genesis time.Time, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = 6 * time.Second
	}
	return &Clock{
		genesis:  genesis,
		interval: interval,
		now:      time.Now,
	}
}

// Height returns the current block height. Before genesis the height is
// zero; it never decreases afterwards.
func (c *Clock) Height() domain.Height {
	elapsed := c.now().Sub(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return domain.Height(elapsed / c.interval)
}
