package resilience

import (
	"context"
	"errors"
	"sync"
)

// DefaultBreakerThreshold is the consecutive-failure budget before a breaker
// trips. Searches fail for many one-off reasons, so a single failure proves
// nothing; a run of them means the source itself is broken.
const DefaultBreakerThreshold = 5

// Breaker counts consecutive failures against one external source. Every
// success resets the count; the failure that exhausts the threshold trips the
// breaker. Context cancellation says nothing about the source and is never
// counted.
//
// A tripped breaker stays tripped: the caller is expected to take the source
// out of rotation for the rest of the run, the same way an auth failure does.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	tripped   bool
}

// NewBreaker creates a breaker that trips after threshold consecutive
// failures. A non-positive threshold falls back to the default.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	return &Breaker{threshold: threshold}
}

// Record feeds one call outcome into the breaker. It reports true exactly
// once, on the failure that exhausts the threshold.
func (b *Breaker) Record(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	b.failures++
	if b.tripped || b.failures < b.threshold {
		return false
	}
	b.tripped = true
	return true
}

// Tripped reports whether the breaker has tripped.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// BreakerSet holds one breaker per key so independent sources fail
// independently.
type BreakerSet struct {
	mu        sync.Mutex
	threshold int
	byKey     map[string]*Breaker
}

// NewBreakerSet creates a set whose breakers share the given threshold.
func NewBreakerSet(threshold int) *BreakerSet {
	return &BreakerSet{threshold: threshold, byKey: make(map[string]*Breaker)}
}

// For returns the breaker for key, creating it on first use.
func (s *BreakerSet) For(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byKey[key]
	if !ok {
		b = NewBreaker(s.threshold)
		s.byKey[key] = b
	}
	return b
}
