// Package ratelimit admits or rejects estimate requests under a global
// fixed-window quota and a per-session sliding-window quota.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Scope names the quota that rejected a request.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeSession Scope = "session"
)

// LimitError is returned when a request is rejected. RetryAfter estimates
// how long the caller should wait before the quota admits again.
type LimitError struct {
	Scope      Scope
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
}

// Config sets the quotas. A non-positive maximum disables that quota.
type Config struct {
	MaxGlobalRequests  int
	ResetInterval      time.Duration
	MaxSessionRequests int
	SessionWindow      time.Duration
}

// Window is the per-session record of admitted request times, oldest first.
// It is owned by one session and must only be used while that session is
// locked by the caller.
type Window struct {
	stamps []time.Time
}

// Len returns the number of recorded requests, including expired ones not
// yet evicted.
func (w *Window) Len() int {
	return len(w.stamps)
}

func (w *Window) evict(now time.Time, window time.Duration) {
	cut := 0
	for cut < len(w.stamps) && now.Sub(w.stamps[cut]) >= window {
		cut++
	}
	if cut > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[cut:]...)
	}
}

// Gate holds the process-wide counter and checks session windows against the
// configured quotas.
type Gate struct {
	cfg Config

	mu          sync.Mutex
	count       int
	windowStart time.Time

	nowFunc func() time.Time
}

// NewGate creates a gate whose global window starts now.
func NewGate(cfg Config) *Gate {
	g := &Gate{cfg: cfg, nowFunc: time.Now}
	g.windowStart = g.nowFunc()
	return g
}

// Admit checks the global quota, then the session quota, and records the
// request against both only when both admit. A rejected request leaves every
// counter as it was, apart from expiring windows that had already elapsed.
func (g *Gate) Admit(w *Window) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()

	if g.cfg.MaxGlobalRequests > 0 {
		elapsed := now.Sub(g.windowStart)
		if elapsed >= g.cfg.ResetInterval {
			g.count = 0
			g.windowStart = now
			elapsed = 0
		}
		if g.count >= g.cfg.MaxGlobalRequests {
			return &LimitError{Scope: ScopeGlobal, RetryAfter: nonNegative(g.cfg.ResetInterval - elapsed)}
		}
	}

	if g.cfg.MaxSessionRequests > 0 {
		w.evict(now, g.cfg.SessionWindow)
		if len(w.stamps) >= g.cfg.MaxSessionRequests {
			oldest := w.stamps[0]
			return &LimitError{Scope: ScopeSession, RetryAfter: nonNegative(oldest.Add(g.cfg.SessionWindow).Sub(now))}
		}
	}

	if g.cfg.MaxGlobalRequests > 0 {
		g.count++
	}
	if g.cfg.MaxSessionRequests > 0 {
		w.stamps = append(w.stamps, now)
	}
	return nil
}

// Usage returns the global count and window start.
func (g *Gate) Usage() (count int, windowStart time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count, g.windowStart
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
