package backoff

import (
	"math/rand"
	"time"
)

// JitterType selects how NewJitterFunc spreads a base interval.
type JitterType int

const (
	// NoJitter returns the base interval unchanged.
	NoJitter JitterType = iota
	// FullJitter returns a uniform random duration in [0, interval].
	FullJitter
	// Jitter returns a uniform random duration in [0.5*interval, 1.5*interval].
	Jitter
)

// NewJitterFunc returns a function that applies the given jitter strategy
// to a base interval. Non-positive intervals always yield zero.
func NewJitterFunc(jt JitterType) func(time.Duration) time.Duration {
	return func(interval time.Duration) time.Duration {
		if interval <= 0 {
			return 0
		}
		switch jt {
		case FullJitter:
			return time.Duration(rand.Int63n(int64(interval) + 1))
		case Jitter:
			half := int64(interval) / 2
			return time.Duration(half + rand.Int63n(int64(interval)+1))
		default:
			return interval
		}
	}
}

type jitteredPolicy struct {
	base   RetryPolicy
	jitter func(time.Duration) time.Duration
}

// WithJitter wraps a RetryPolicy so every computed interval is passed
// through the given jitter strategy before being returned.
func WithJitter(base RetryPolicy, jt JitterType) RetryPolicy {
	return &jitteredPolicy{base: base, jitter: NewJitterFunc(jt)}
}

func (p *jitteredPolicy) ComputeNextInterval(retryCount int, elapsedTime time.Duration, err error) (time.Duration, error) {
	interval, computeErr := p.base.ComputeNextInterval(retryCount, elapsedTime, err)
	if computeErr != nil {
		return 0, computeErr
	}
	return p.jitter(interval), nil
}
