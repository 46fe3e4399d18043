// Package ratelimit provides process-wide per-source token bucket gates.
// Every caller targeting an external source waits on the same limiter, so
// worker concurrency never multiplies the request rate seen by a source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Registry holds one limiter per external source.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRegistry creates an empty limiter registry. Sources not registered get
// an unlimited gate.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*rate.Limiter)}
}

// Register installs a limiter for source at rps requests per second with the
// given burst. Non-positive rps means unlimited; burst floors at 1.
func (r *Registry) Register(source string, rps float64, burst int) {
	lim := rate.Limit(rps)
	if rps <= 0 {
		lim = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	r.mu.Lock()
	r.limiters[source] = rate.NewLimiter(lim, burst)
	r.mu.Unlock()
}

// Wait blocks until the source's limiter grants a token or ctx is done.
func (r *Registry) Wait(ctx context.Context, source string) error {
	r.mu.Lock()
	lim, ok := r.limiters[source]
	if !ok {
		lim = rate.NewLimiter(rate.Inf, 1)
		r.limiters[source] = lim
	}
	r.mu.Unlock()

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: wait %s", source)
	}
	if waited := time.Since(start); waited > 500*time.Millisecond {
		zap.L().Debug("rate limiter delay",
			zap.String("source", source),
			zap.Duration("waited", waited),
		)
	}
	return nil
}

// Backoff shrinks the source's rate after a reported 429 so subsequent
// callers slow down before the next window. Halves the current limit, floored
// at one request per five minutes.
func (r *Registry) Backoff(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.limiters[source]
	if !ok || lim.Limit() == rate.Inf {
		return
	}
	next := lim.Limit() / 2
	if floor := rate.Limit(1.0 / 300.0); next < floor {
		next = floor
	}
	lim.SetLimit(next)
	zap.L().Warn("rate limiter backing off after 429",
		zap.String("source", source),
		zap.Float64("rps", float64(next)),
	)
}
