package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphamachine/engine/internal/errs"
)

func testSettings() Settings {
	return Settings{
		ConsecutiveFailures: 3,
		CountWindow:         time.Minute,
		Cooldown:            50 * time.Millisecond,
	}
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	r := NewRegistry(testSettings())
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := r.Do("market.quote", "polygon", func() error { return boom })
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, r.State("polygon"))

	// While open the call short-circuits with Unavailable.
	called := false
	err := r.Do("market.quote", "polygon", func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, errs.IsUnavailable(err))
	assert.False(t, called, "open breaker must bypass the network call")
}

func TestHalfOpenProbeCloses(t *testing.T) {
	r := NewRegistry(testSettings())
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = r.Do("market.quote", "finnhub", func() error { return boom })
	}
	require.Equal(t, gobreaker.StateOpen, r.State("finnhub"))

	time.Sleep(60 * time.Millisecond)

	// One successful probe closes the circuit again.
	err := r.Do("market.quote", "finnhub", func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, r.State("finnhub"))
}

func TestBreakersAreIndependent(t *testing.T) {
	r := NewRegistry(testSettings())
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = r.Do("llm.complete", "openai", func() error { return boom })
	}
	assert.Equal(t, gobreaker.StateOpen, r.State("openai"))
	assert.Equal(t, gobreaker.StateClosed, r.State("anthropic"))

	err := r.Do("llm.complete", "anthropic", func() error { return nil })
	assert.NoError(t, err)
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	r := NewRegistry(testSettings())
	boom := errors.New("boom")

	_ = r.Do("op", "alphavantage", func() error { return boom })
	_ = r.Do("op", "alphavantage", func() error { return boom })
	require.NoError(t, r.Do("op", "alphavantage", func() error { return nil }))
	_ = r.Do("op", "alphavantage", func() error { return boom })
	_ = r.Do("op", "alphavantage", func() error { return boom })

	assert.Equal(t, gobreaker.StateClosed, r.State("alphavantage"))
}
