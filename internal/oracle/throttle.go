package oracle

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Throttled caps the request rate to the wrapped oracle across all sessions.
// Waiting for a token counts against the caller's deadline.
type Throttled struct {
	next    Oracle
	limiter *rate.Limiter
}

// NewThrottled wraps next with a token bucket of rps requests per second.
// A non-positive rps disables throttling.
func NewThrottled(next Oracle, rps float64, burst int) *Throttled {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Complete implements Oracle.
func (t *Throttled) Complete(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "oracle: throttle")
	}
	return t.next.Complete(ctx, req)
}
