// Package input holds the latest-wins, TTL-bounded paddle target cache fed
// by the Hub and drained by the Scheduler each tick.
package input

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	y        float64
	writtenAt time.Time
}

// Cache is the per-player latest paddle target store. It is safe for
// concurrent use; writes hold the lock only long enough to store a value.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	limiter map[string]*rate.Limiter

	ttl    time.Duration
	qps    float64
	minY   float64
	maxY   float64
	nowFn  func() time.Time
}

// New creates a Cache clamping targets to [minY, maxY] (field height minus
// paddle height), expiring entries after ttl, and throttling a given
// player's writes to qps per second via a token bucket.
func New(ttl time.Duration, qps, minY, maxY float64) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		limiter: make(map[string]*rate.Limiter),
		ttl:     ttl,
		qps:     qps,
		minY:    minY,
		maxY:    maxY,
		nowFn:   time.Now,
	}
}

func (c *Cache) limiterFor(playerID string) *rate.Limiter {
	l, ok := c.limiter[playerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.qps), int(c.qps)+1)
		c.limiter[playerID] = l
	}
	return l
}

// Put clamps y and stores it as the player's latest target, subject to
// per-player throttling. A throttled write is silently dropped, matching
// the spec's "clamp or drop silently" policy for malformed/excess input.
func (c *Cache) Put(playerID string, y float64) {
	if y < c.minY {
		y = c.minY
	} else if y > c.maxY {
		y = c.maxY
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.limiterFor(playerID).Allow() {
		return
	}
	c.entries[playerID] = entry{y: y, writtenAt: c.nowFn()}
}

// Take returns the last non-expired target for each of the two players, if
// present.
func (c *Cache) Take(player1ID, player2ID string) (y1 *float64, y2 *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	if e, ok := c.entries[player1ID]; ok && now.Sub(e.writtenAt) <= c.ttl {
		v := e.y
		y1 = &v
	}
	if e, ok := c.entries[player2ID]; ok && now.Sub(e.writtenAt) <= c.ttl {
		v := e.y
		y2 = &v
	}
	return y1, y2
}

// Remove drops any cached target for playerID, used on disconnect.
func (c *Cache) Remove(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, playerID)
	delete(c.limiter, playerID)
}
