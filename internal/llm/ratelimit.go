package llm

import (
	"sync"
	"time"
)

// RateLimiter enforces a sliding one-minute request window. Wait blocks the
// caller by sleeping until the window has capacity, then records the call.
// After pruning, never more than requestsPerMinute timestamps remain.
type RateLimiter struct {
	requestsPerMinute int

	mu       sync.Mutex
	requests []time.Time

	// Injectable clock for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls per
// sliding minute.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		now:               time.Now,
		sleep:             time.Sleep,
	}
}

// Wait blocks until the window has capacity, then records this call.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())

	if len(r.requests) >= r.requestsPerMinute {
		wait := time.Minute - r.now().Sub(r.requests[0])
		if wait > 0 {
			r.sleep(wait)
		}
		r.prune(r.now())
	}

	r.requests = append(r.requests, r.now())
}

// prune drops timestamps older than one minute.
func (r *RateLimiter) prune(now time.Time) {
	keep := r.requests[:0]
	for _, t := range r.requests {
		if now.Sub(t) < time.Minute {
			keep = append(keep, t)
		}
	}
	r.requests = keep
}

// Pending returns the number of requests currently inside the window.
func (r *RateLimiter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
	return len(r.requests)
}
