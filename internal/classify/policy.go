package classify

import (
	"context"
	"time"

	"github.com/sells-group/watchlog/internal/resilience"
)

// Policy is the retry policy for one classification.
//
// Malformed responses are retried after MalformedDelay up to
// MalformedAttempts times, then the fallback label is used. Rate-limit
// signals back off exponentially from RateLimitBase, doubling up to
// RateLimitMax, with no cap on attempts. A quota-exhausted signal sleeps
// QuotaSleep once and then resumes. Other transient failures wait ErrorDelay
// and retry without a cap.
type Policy struct {
	MalformedAttempts int
	MalformedDelay    time.Duration
	RateLimitBase     time.Duration
	RateLimitMax      time.Duration
	QuotaSleep        time.Duration
	ErrorDelay        time.Duration

	// Sleep waits for d. Defaults to resilience.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the production retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MalformedAttempts: 5,
		MalformedDelay:    1500 * time.Millisecond,
		RateLimitBase:     60 * time.Second,
		RateLimitMax:      5 * time.Minute,
		QuotaSleep:        10 * time.Minute,
		ErrorDelay:        10 * time.Second,
		Sleep:             resilience.Sleep,
	}
}

// RateLimitDelay is the wait before retry n (1-based) of a rate-limited call.
func (p Policy) RateLimitDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.RateLimitBase
	for i := 1; i < n; i++ {
		d *= 2
		if p.RateLimitMax > 0 && d >= p.RateLimitMax {
			return p.RateLimitMax
		}
	}
	if p.RateLimitMax > 0 && d > p.RateLimitMax {
		return p.RateLimitMax
	}
	return d
}

func (p Policy) withDefaults() Policy {
	if p.MalformedAttempts <= 0 {
		p.MalformedAttempts = 1
	}
	if p.Sleep == nil {
		p.Sleep = resilience.Sleep
	}
	return p
}
