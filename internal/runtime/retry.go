package runtime

import (
	"math/rand/v2"
	"time"
)

// RetryPolicy controls startup retry for one-shot backends. A spawn is
// a startup failure when the child exits without producing a single
// stdout or stderr byte; such exits are retried up to MaxAttempts
// total spawns.
type RetryPolicy struct {
	// MaxAttempts is the total number of spawns, first attempt included.
	MaxAttempts int

	// Delay is the linear backoff base between attempts.
	Delay time.Duration

	// Jitter is the exclusive upper bound of random extra delay added
	// to each backoff.
	Jitter time.Duration
}

// DefaultRetryPolicy returns the stock policy: three attempts, 400ms
// base delay, up to 200ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       400 * time.Millisecond,
		Jitter:      200 * time.Millisecond,
	}
}

// ShouldRetry reports whether another spawn may be scheduled after the
// given 1-based attempt number.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// Backoff returns the wait before launching the given attempt. Attempts
// are 1-based, so the first retry is attempt 2 and waits one Delay unit
// plus jitter; later attempts back off linearly.
func (p RetryPolicy) Backoff(nextAttempt int) time.Duration {
	n := nextAttempt - 1
	if n < 1 {
		n = 1
	}
	d := p.Delay * time.Duration(n)
	if p.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(p.Jitter)))
	}
	return d
}
