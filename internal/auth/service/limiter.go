package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IssueLimiter throttles one-time-code issuance per subject so a hostile
// caller cannot flood a mailbox or burn SMS credits. Limiters are created
// lazily per key and the whole map is dropped periodically to bound memory.
type IssueLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	limit    rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

const limiterCleanupInterval = 10 * time.Minute

// NewIssueLimiter allows `requests` per `window` with the given burst.
func NewIssueLimiter(requests int, window time.Duration, burst int) *IssueLimiter {
	return &IssueLimiter{
		limit:       rate.Limit(float64(requests) / window.Seconds()),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// Allow reports whether the key may proceed right now.
func (l *IssueLimiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

func (l *IssueLimiter) limiterFor(key string) *rate.Limiter {
	if lim, ok := l.limiters.Load(key); ok {
		return lim.(*rate.Limiter)
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	actual, _ := l.limiters.LoadOrStore(key, lim)

	l.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops all limiters when the cleanup interval has elapsed.
// Coarse, but it keeps the map from growing without bound on ephemeral keys.
func (l *IssueLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < limiterCleanupInterval {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, _ any) bool {
		l.limiters.Delete(key)
		return true
	})
}
