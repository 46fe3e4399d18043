package resilience

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsOnThreshold(t *testing.T) {
	b := NewBreaker(3)
	boom := eris.New("boom")

	assert.False(t, b.Record(boom))
	assert.False(t, b.Record(boom))
	assert.True(t, b.Record(boom))
	assert.True(t, b.Tripped())

	// The trip reports once; later failures leave the breaker tripped
	// without re-reporting.
	assert.False(t, b.Record(boom))
	assert.True(t, b.Tripped())
}

func TestBreakerSuccessResets(t *testing.T) {
	b := NewBreaker(2)
	boom := eris.New("boom")

	assert.False(t, b.Record(boom))
	assert.False(t, b.Record(nil))
	assert.Zero(t, b.Failures())

	assert.False(t, b.Record(boom))
	assert.True(t, b.Record(boom))
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := NewBreaker(1)

	assert.False(t, b.Record(context.Canceled))
	assert.False(t, b.Record(context.DeadlineExceeded))
	assert.False(t, b.Tripped())

	assert.True(t, b.Record(eris.New("boom")))
}

func TestBreakerSetKeysIndependently(t *testing.T) {
	s := NewBreakerSet(1)

	a := s.For("a")
	assert.True(t, a.Record(eris.New("boom")))
	assert.True(t, a.Tripped())
	assert.False(t, s.For("b").Tripped())
	assert.Same(t, a, s.For("a"))
}
