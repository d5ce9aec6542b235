package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceBreakerTripsAfterThreshold(t *testing.T) {
	b := newSourceBreaker("test", 2, time.Hour)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())
}

func TestSourceBreakerProbesAfterCooldown(t *testing.T) {
	b := newSourceBreaker("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())

	// A failed probe reopens immediately.
	b.RecordFailure()
	assert.False(t, b.Allow())
}

func TestSourceBreakerClosesOnProbeSuccess(t *testing.T) {
	b := newSourceBreaker("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.Equal(t, breakerClosed, b.state)
}

func TestSourceBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newSourceBreaker("test", 2, time.Hour)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.True(t, b.Allow())
}
