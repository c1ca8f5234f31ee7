// Package breaker maintains one circuit breaker per external provider.
// A provider's breaker opens after a run of consecutive failures, waits
// out a cooldown, then allows a single probe call to decide whether it
// closes again. While open, calls short-circuit without touching the
// network.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/alphamachine/engine/internal/errs"
)

// Settings holds per-provider circuit breaker configuration
type Settings struct {
	ConsecutiveFailures uint32        // Failures in a row before tripping
	CountWindow         time.Duration // Window for counting failures
	Cooldown            time.Duration // How long the circuit stays open
}

// DefaultSettings returns the default breaker policy: open after 5
// consecutive failures within 60s, half-open after 30s, single probe.
func DefaultSettings() Settings {
	return Settings{
		ConsecutiveFailures: 5,
		CountWindow:         60 * time.Second,
		Cooldown:            30 * time.Second,
	}
}

// Registry manages circuit breakers keyed by provider name. Breakers are
// created lazily; there is no cross-provider locking beyond map access.
type Registry struct {
	settings Settings
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry creates a breaker registry with the given settings
func NewRegistry(settings Settings) *Registry {
	if settings.ConsecutiveFailures == 0 {
		settings = DefaultSettings()
	}
	return &Registry{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for a provider, creating it on first use
func (r *Registry) Get(provider string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[provider]; ok {
		return cb
	}

	threshold := r.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1, // single probe while half-open
		Interval:    r.settings.CountWindow,
		Timeout:     r.settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			observeState(name, to)
		},
	})
	r.breakers[provider] = cb
	observeState(provider, cb.State())
	return cb
}

// Do runs fn through the provider's breaker. An open breaker surfaces as
// an Unavailable error without invoking fn.
func (r *Registry) Do(op, provider string, fn func() error) error {
	_, err := r.Get(provider).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	observeRequest(provider, err == nil)
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errs.FromProvider(errs.KindUnavailable, op, provider, err)
	}
	return err
}

// State returns the current breaker state for a provider
func (r *Registry) State(provider string) gobreaker.State {
	return r.Get(provider).State()
}
