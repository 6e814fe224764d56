// Package antispam gates the contact-message path with a single-use
// arithmetic captcha, a honeypot field and a minimum delay between accepted
// submissions.
package antispam

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Reason explains why a submission was rejected.
type Reason string

const (
	ReasonTooSoon    Reason = "too_soon"
	ReasonHoneypot   Reason = "honeypot"
	ReasonBadCaptcha Reason = "bad_captcha"
)

// RejectedError is returned by Verify for a rejected submission.
type RejectedError struct {
	Reason Reason
	// RetryAfter is set for ReasonTooSoon.
	RetryAfter time.Duration
}

func (e *RejectedError) Error() string {
	if e.Reason == ReasonTooSoon {
		return fmt.Sprintf("submission rejected: %s (retry after %s)", e.Reason, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// State is one session's challenge and last accepted submission time. It
// must only be used while the owning session is locked.
type State struct {
	A            int
	B            int
	LastAccepted time.Time
}

// Expected returns the answer to the current challenge.
func (s *State) Expected() int {
	return s.A + s.B
}

// Question renders the current challenge for display.
func (s *State) Question() string {
	return fmt.Sprintf("Combien font %d + %d ?", s.A, s.B)
}

// Guard verifies contact submissions.
type Guard struct {
	minDelay time.Duration
	maxTerm  int

	nowFunc func() time.Time
	intn    func(n int) int
}

// NewGuard creates a guard that requires minDelay between two accepted
// submissions of the same session.
func NewGuard(minDelay time.Duration) *Guard {
	return &Guard{
		minDelay: minDelay,
		maxTerm:  10,
		nowFunc:  time.Now,
		intn:     rand.IntN,
	}
}

// NewState returns a state with a fresh challenge and no accepted submission.
func (g *Guard) NewState() State {
	var s State
	g.regenerate(&s)
	return s
}

func (g *Guard) regenerate(s *State) {
	s.A = g.intn(g.maxTerm) + 1
	s.B = g.intn(g.maxTerm) + 1
}

// Verify checks a submission against the session state. Checks run in order:
// minimum delay, honeypot, captcha. On acceptance the state records the
// submission time and gets a new challenge; on rejection it is unchanged.
func (g *Guard) Verify(s *State, captchaAnswer, honeypot string) error {
	now := g.nowFunc()

	if !s.LastAccepted.IsZero() {
		if since := now.Sub(s.LastAccepted); since < g.minDelay {
			return &RejectedError{Reason: ReasonTooSoon, RetryAfter: g.minDelay - since}
		}
	}

	if strings.TrimSpace(honeypot) != "" {
		return &RejectedError{Reason: ReasonHoneypot}
	}

	answer, err := strconv.Atoi(strings.TrimSpace(captchaAnswer))
	if err != nil || answer != s.Expected() {
		return &RejectedError{Reason: ReasonBadCaptcha}
	}

	s.LastAccepted = now
	g.regenerate(s)
	return nil
}
