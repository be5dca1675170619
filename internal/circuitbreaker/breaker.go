// Package circuitbreaker stops hammering an exchange that is failing
// consistently. It gates calls; it never retries them.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the breaker state.
type State int32

const (
	// StateClosed lets all requests through.
	StateClosed State = iota
	// StateOpen rejects requests until the cool-off elapses.
	StateOpen
	// StateHalfOpen probes with live requests after the cool-off.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds breaker thresholds.
type Config struct {
	// FailThreshold is the consecutive failure count that opens the breaker.
	FailThreshold int `json:"fail_threshold"`
	// SuccessThreshold is the probe success count that closes it again.
	SuccessThreshold int `json:"success_threshold"`
	// Timeout is the cool-off before probing resumes.
	Timeout time.Duration `json:"timeout"`
}

// Breaker is a three-state circuit breaker. Safe for concurrent use.
type Breaker struct {
	state            atomic.Int32
	failures         atomic.Int32
	successes        atomic.Int32
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	lastFailTime     atomic.Int64
	mu               sync.Mutex
}

// New creates a closed Breaker with the given thresholds.
func New(config Config) *Breaker {
	b := &Breaker{
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
	}
	b.state.Store(int32(StateClosed))
	return b
}

// Allow reports whether a request may proceed.
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		lastFail := time.Unix(0, b.lastFailTime.Load())
		if time.Since(lastFail) >= b.timeout {
			b.state.Store(int32(StateHalfOpen))
			return true
		}
		return false
	}
	return false
}

// Record feeds the outcome of a completed request into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch State(b.state.Load()) {
	case StateClosed:
		if success {
			b.failures.Store(0)
			return
		}
		if int(b.failures.Add(1)) >= b.failThreshold {
			b.lastFailTime.Store(time.Now().UnixNano())
			b.state.Store(int32(StateOpen))
		}
	case StateHalfOpen:
		if !success {
			b.lastFailTime.Store(time.Now().UnixNano())
			b.successes.Store(0)
			b.state.Store(int32(StateOpen))
			return
		}
		if int(b.successes.Add(1)) >= b.successThreshold {
			b.failures.Store(0)
			b.successes.Store(0)
			b.state.Store(int32(StateClosed))
		}
	case StateOpen:
		if !success {
			b.lastFailTime.Store(time.Now().UnixNano())
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Reset returns the breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Store(int32(StateClosed))
	b.failures.Store(0)
	b.successes.Store(0)
}
