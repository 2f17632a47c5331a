package transport

import (
	"sync"
	"time"
)

// PubkeyRateLimiter is a token-bucket limiter keyed by client pubkey: there
// is no IP address at the event-network layer, but the same bucket
// algorithm applies to whichever sender identity a transport can actually
// see.
type PubkeyRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rps     float64
	burst   int
}

type tokenBucket struct {
	tokens   float64
	lastTime time.Time
}

// NewPubkeyRateLimiter builds a limiter allowing burst immediate events per
// pubkey, refilling at rps events/second. rps <= 0 or burst <= 0 disables
// limiting (Allow always reports true).
func NewPubkeyRateLimiter(rps float64, burst int) *PubkeyRateLimiter {
	return &PubkeyRateLimiter{
		buckets: make(map[string]*tokenBucket),
		rps:     rps,
		burst:   burst,
	}
}

// Allow reports whether an event from pubkey may proceed, consuming one
// token if so.
func (l *PubkeyRateLimiter) Allow(pubkey string) bool {
	if l == nil || l.rps <= 0 || l.burst <= 0 {
		return true
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, exists := l.buckets[pubkey]
	if !exists {
		l.buckets[pubkey] = &tokenBucket{
			tokens:   float64(l.burst - 1),
			lastTime: now,
		}
		return true
	}

	elapsedSeconds := now.Sub(bucket.lastTime).Seconds()
	if elapsedSeconds > 0 {
		bucket.tokens += elapsedSeconds * l.rps
		if maxTokens := float64(l.burst); bucket.tokens > maxTokens {
			bucket.tokens = maxTokens
		}
	}
	bucket.lastTime = now

	if bucket.tokens >= 1 {
		bucket.tokens -= 1
		return true
	}
	return false
}

// Cleanup drops buckets that haven't been touched in over maxAge, bounding
// memory use for a server that has seen many distinct pubkeys.
func (l *PubkeyRateLimiter) Cleanup(maxAge time.Duration) {
	if l == nil || maxAge <= 0 {
		return
	}

	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for pubkey, bucket := range l.buckets {
		if bucket == nil || now.Sub(bucket.lastTime) > maxAge {
			delete(l.buckets, pubkey)
		}
	}
}
