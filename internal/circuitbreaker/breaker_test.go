package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker() *Breaker {
	return New(Config{
		FailThreshold:    3,
		SuccessThreshold: 2,
		Timeout:          20 * time.Millisecond,
	})
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b := newTestBreaker()
	assert.Equal(t, StateClosed, b.State())

	for range 3 {
		assert.True(t, b.Allow())
		b.Record(false)
	}

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker()

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(false)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := newTestBreaker()
	for range 3 {
		b.Record(false)
	}
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(25 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_ClosesAfterProbeSuccesses(t *testing.T) {
	b := newTestBreaker()
	for range 3 {
		b.Record(false)
	}
	time.Sleep(25 * time.Millisecond)
	assert.True(t, b.Allow())

	b.Record(true)
	b.Record(true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ReopensOnProbeFailure(t *testing.T) {
	b := newTestBreaker()
	for range 3 {
		b.Record(false)
	}
	time.Sleep(25 * time.Millisecond)
	assert.True(t, b.Allow())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := newTestBreaker()
	for range 3 {
		b.Record(false)
	}
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
