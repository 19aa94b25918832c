package providers

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Guard wraps a provider call with a deadline and a circuit breaker so
// repeated timeouts or failures stop hammering a degraded provider rather
// than cascading (spec §5 "deadline for every provider call", §7
// ProviderUnavailable).
type Guard struct {
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// GuardConfig configures a Guard's breaker thresholds.
type GuardConfig struct {
	Name                 string
	MaxFailures          uint32
	OpenTimeout          time.Duration
	HalfOpenMaxSuccesses uint32
	CallTimeout          time.Duration
}

// NewGuard builds a Guard with the given name and defaults matching the
// teacher's CircuitBreaker (3 consecutive failures trips the breaker, 30s
// open timeout, 2 successes to close again).
func NewGuard(name string) *Guard {
	return NewGuardWithConfig(GuardConfig{
		Name:                 name,
		MaxFailures:          3,
		OpenTimeout:          30 * time.Second,
		HalfOpenMaxSuccesses: 2,
		CallTimeout:          DefaultCallTimeout,
	})
}

// NewGuardWithConfig builds a Guard with explicit breaker settings.
func NewGuardWithConfig(cfg GuardConfig) *Guard {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	return &Guard{breaker: gobreaker.NewCircuitBreaker(settings), timeout: cfg.CallTimeout}
}

// Call executes fn under a bounded context, through the circuit breaker.
// Breaker-open and context-deadline failures are normalized to
// ErrProviderUnavailable / ErrProviderTimeout respectively so callers can
// branch on the spec §7 error taxonomy with errors.Is.
func (g *Guard) Call(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrProviderUnavailable
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrProviderTimeout
		}
		return nil, err
	}
	return result, nil
}

// State returns the breaker's current state ("closed", "open", "half-open").
func (g *Guard) State() string {
	switch g.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
