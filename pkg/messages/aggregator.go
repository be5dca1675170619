// Package messages collects user-facing warnings and errors emitted as
// side channels of batch operations. Soft per-record failures land here
// instead of aborting their batch.
package messages

import (
	"sync"

	"github.com/rs/zerolog"
)

// Aggregator accumulates warning and error messages. Emission is
// fire-and-forget; consumers drain the accumulated messages when they
// present results. Safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
	logger   zerolog.Logger
}

// New creates an Aggregator that only accumulates.
func New() *Aggregator {
	return &Aggregator{logger: zerolog.Nop()}
}

// NewWithLogger creates an Aggregator that mirrors every message to the
// given logger as it arrives.
func NewWithLogger(logger zerolog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Warn records a warning.
func (a *Aggregator) Warn(msg string) {
	a.mu.Lock()
	a.warnings = append(a.warnings, msg)
	a.mu.Unlock()
	a.logger.Warn().Msg(msg)
}

// Error records an error message.
func (a *Aggregator) Error(msg string) {
	a.mu.Lock()
	a.errors = append(a.errors, msg)
	a.mu.Unlock()
	a.logger.Error().Msg(msg)
}

// ConsumeWarnings returns and clears all accumulated warnings.
func (a *Aggregator) ConsumeWarnings() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.warnings
	a.warnings = nil
	return out
}

// ConsumeErrors returns and clears all accumulated error messages.
func (a *Aggregator) ConsumeErrors() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.errors
	a.errors = nil
	return out
}

// WarningCount returns the number of pending warnings.
func (a *Aggregator) WarningCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.warnings)
}

// ErrorCount returns the number of pending error messages.
func (a *Aggregator) ErrorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errors)
}
