// Package ratelimit implements a per-client fixed window limiter.
//
// Each client keeps the timestamps of its admitted requests inside the
// trailing window. A request is admitted while fewer than MaxRequests
// timestamps remain after pruning. Rejected requests are not recorded.
//
// The client map is an LRU bounded by MaxClients and is swept
// periodically so that idle clients do not accumulate.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidConfig is returned by New for a non-positive window, limit or
// capacity.
var ErrInvalidConfig = errors.New("ratelimit: invalid config")

// Clock returns the current time.
type Clock func() time.Time

// Config configures a Limiter.
type Config struct {
	Window      time.Duration
	MaxRequests int
	MaxClients  int
}

// Decision is the outcome of CheckAndRecord.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the oldest recorded request leaves the
	// window. Zero when allowed.
	RetryAfter time.Duration
}

type client struct {
	mu      sync.Mutex
	hits    []time.Time
	removed bool
}

// prune drops timestamps at or before cutoff. Caller holds c.mu.
func (c *client) prune(cutoff time.Time) {
	i := 0
	for i < len(c.hits) && !c.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.hits = append(c.hits[:0], c.hits[i:]...)
	}
}

// Limiter is safe for concurrent use.
type Limiter struct {
	window time.Duration
	max    int
	now    Clock

	// mu serializes get-or-create and removal; per-client state is
	// guarded by client.mu.
	mu      sync.Mutex
	clients *lru.Cache[string, *client]
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.now = c }
}

// New creates a limiter.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if cfg.Window <= 0 || cfg.MaxRequests <= 0 || cfg.MaxClients <= 0 {
		return nil, ErrInvalidConfig
	}

	l := &Limiter{
		window: cfg.Window,
		max:    cfg.MaxRequests,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	cache, err := lru.NewWithEvict(cfg.MaxClients, func(_ string, c *client) {
		// Also called by Remove during Sweep, which marks the client first.
		c.mu.Lock()
		evicted := !c.removed
		c.removed = true
		c.mu.Unlock()
		if evicted {
			EvictionsTotal.WithLabelValues("capacity").Inc()
		}
	})
	if err != nil {
		return nil, err
	}
	l.clients = cache
	return l, nil
}

// CheckAndRecord prunes the client's window and admits the request if the
// client is under its limit, recording it.
func (l *Limiter) CheckAndRecord(clientID string) Decision {
	for {
		c := l.getOrCreate(clientID)

		c.mu.Lock()
		if c.removed {
			// Lost a race with Sweep or eviction; use the fresh entry.
			c.mu.Unlock()
			continue
		}

		now := l.now()
		c.prune(now.Add(-l.window))

		if len(c.hits) >= l.max {
			retryAfter := c.hits[0].Add(l.window).Sub(now)
			c.mu.Unlock()
			DecisionsTotal.WithLabelValues("rejected").Inc()
			return Decision{Allowed: false, Limit: l.max, Remaining: 0, RetryAfter: retryAfter}
		}

		c.hits = append(c.hits, now)
		remaining := l.max - len(c.hits)
		c.mu.Unlock()

		DecisionsTotal.WithLabelValues("allowed").Inc()
		return Decision{Allowed: true, Limit: l.max, Remaining: remaining}
	}
}

func (l *Limiter) getOrCreate(clientID string) *client {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.clients.Get(clientID); ok {
		return c
	}
	c := &client{}
	l.clients.Add(clientID, c)
	TrackedClients.Set(float64(l.clients.Len()))
	return c
}

// Sweep removes clients whose timestamps have all left the window and
// returns how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.window)
	removed := 0

	for _, id := range l.clients.Keys() {
		l.mu.Lock()
		c, ok := l.clients.Peek(id)
		if ok {
			c.mu.Lock()
			c.prune(cutoff)
			if len(c.hits) == 0 {
				c.removed = true
				c.mu.Unlock()
				l.clients.Remove(id)
				removed++
			} else {
				c.mu.Unlock()
			}
		}
		l.mu.Unlock()
	}

	if removed > 0 {
		EvictionsTotal.WithLabelValues("expired").Add(float64(removed))
	}
	TrackedClients.Set(float64(l.clients.Len()))
	return removed
}

// Run sweeps once per window until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	return l.clients.Len()
}

// Limit returns the per-window request limit.
func (l *Limiter) Limit() int {
	return l.max
}

// Window returns the window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}
