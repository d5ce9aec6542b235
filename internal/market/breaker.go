package market

import (
	"sync"
	"time"

	"ballast/internal/logger"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// sourceBreaker trips after repeated fetch failures so a flapping exchange
// stops eating the request budget and snapshots fall straight to the cache.
// After the cooldown one probe request is let through.
type sourceBreaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	threshold   int
	cooldown    time.Duration
	lastFailure time.Time
	name        string
}

func newSourceBreaker(name string, threshold int, cooldown time.Duration) *sourceBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &sourceBreaker{name: name, threshold: threshold, cooldown: cooldown}
}

func (b *sourceBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if time.Since(b.lastFailure) > b.cooldown {
			b.transition(breakerHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (b *sourceBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.transition(breakerClosed)
	}
	b.failures = 0
}

func (b *sourceBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	switch b.state {
	case breakerClosed:
		if b.failures >= b.threshold {
			b.transition(breakerOpen)
		}
	case breakerHalfOpen:
		b.transition(breakerOpen)
	}
}

func (b *sourceBreaker) transition(to breakerState) {
	from := b.state
	b.state = to
	logger.Warnf("source breaker %s: %s -> %s (failures=%d/%d)", b.name, from, to, b.failures, b.threshold)
}
