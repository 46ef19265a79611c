// Package ratelimit keeps one token bucket per client identity.
//
// Each bucket holds up to Capacity tokens, starts full and refills linearly at
// Capacity tokens per Window. Buckets live in a bounded LRU; a bucket untouched
// for IdleTTL is dropped and recreated full on the next request. IdleTTL is never
// shorter than Window, so a dropped bucket would have refilled completely anyway.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/guttosm/cryptopulse/config"
	"github.com/guttosm/cryptopulse/internal/logger"
	"github.com/guttosm/cryptopulse/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]

	limit rate.Limit
	burst int
	ttl   time.Duration

	now func() time.Time
	log zerolog.Logger
}

// New builds a Limiter from cfg. Capacity, Window and MaxClients must be positive
// (config.LoadConfig enforces this).
func New(cfg config.RateLimitConfig) *Limiter {
	ttl := cfg.IdleTTL
	if ttl < cfg.Window {
		ttl = cfg.Window
	}

	l := &Limiter{
		limit: rate.Every(cfg.Window / time.Duration(cfg.Capacity)),
		burst: cfg.Capacity,
		ttl:   ttl,
		now:   time.Now,
		log:   logger.Component("ratelimit"),
	}
	l.buckets = expirable.NewLRU[string, *rate.Limiter](cfg.MaxClients, func(key string, _ *rate.Limiter) {
		metrics.RateLimitClients.Dec()
		l.log.Debug().Str("client", key).Msg("bucket evicted")
	}, ttl)

	l.log.Info().
		Int("capacity", cfg.Capacity).
		Dur("window", cfg.Window).
		Int("max_clients", cfg.MaxClients).
		Dur("idle_ttl", ttl).
		Msg("rate limiter configured")
	return l
}

// Allow takes one token from key's bucket.
//
// Returns:
//   - bool: true when a token was taken; a rejected call consumes nothing.
//   - time.Duration: when rejected, the wait until one token is available.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	b := l.bucket(key)
	if b.AllowN(now, 1) {
		metrics.RateLimitAllowed.Inc()
		return true, 0
	}
	metrics.RateLimitRejected.Inc()

	missing := 1 - b.TokensAt(now)
	wait := time.Duration(math.Ceil(missing / float64(l.limit) * float64(time.Second)))
	return false, wait
}

// Tokens reports the tokens currently available to key without consuming any.
// Unknown clients report a full bucket.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	b, ok := l.buckets.Get(key)
	l.mu.Unlock()
	if !ok {
		return float64(l.burst)
	}
	return b.TokensAt(l.now())
}

// Capacity is the bucket size.
func (l *Limiter) Capacity() int { return l.burst }

// Len is the number of buckets currently retained.
func (l *Limiter) Len() int { return l.buckets.Len() }

// bucket returns key's bucket, creating it if absent. Re-adding an existing
// bucket moves it to the LRU front and restarts its idle TTL.
func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets.Get(key)
	if !ok {
		// drop an expired entry still awaiting cleanup so the eviction hook fires
		l.buckets.Remove(key)
		b = rate.NewLimiter(l.limit, l.burst)
		metrics.RateLimitClients.Inc()
		l.log.Debug().Str("client", key).Msg("bucket created")
	}
	l.buckets.Add(key, b)
	return b
}
