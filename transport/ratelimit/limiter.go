// Package ratelimit provides per-key admission control for HTTP handlers.
//
// Each key (a session id, or the client IP when a request carries none) gets
// its own token bucket. Rejected requests receive 429 with a JSON body
// {"error": "...", "message": "...", "backoff": seconds} that clients use to retry.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// KeyFunc extracts the bucket key for a request; an empty key falls back to
// the client IP
type KeyFunc func(r *http.Request) string

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per key
type Limiter struct {
	rate    rate.Limit
	burst   int
	buckets map[string]*bucket
	logger  *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a limiter allowing perSecond requests per key with the given
// burst. A perSecond of zero disables limiting.
func New(perSecond float64, burst int, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rate:    rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*bucket),
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether the limiter rejects anything at all
func (l *Limiter) Enabled() bool {
	return l != nil && l.rate > 0
}

// Reserve takes a token for key. When none is available it returns false
// and how long the caller should wait.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}

	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	// give the token back; the request is rejected, not queued
	r.CancelAt(now)
	return false, delay
}

// Cleanup drops buckets idle for longer than idle and returns how many
func (l *Limiter) Cleanup(idle time.Duration) int {
	if l == nil {
		return 0
	}
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects requests over the limit with 429 and a backoff hint
func (l *Limiter) Middleware(keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !l.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if keyFn != nil {
				key = keyFn(r)
			}
			if key == "" {
				key = "ip:" + ClientIP(r)
			}

			ok, wait := l.Reserve(key)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			backoff := int(math.Ceil(wait.Seconds()))
			if backoff < 1 {
				backoff = 1
			}
			l.logger.Debug("request rate limited",
				zap.String("key", key),
				zap.String("path", r.URL.Path),
				zap.Int("backoff", backoff))

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(backoff))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":   "Too many requests, slow down",
				"message": fmt.Sprintf("Too many requests, try again in %ds", backoff),
				"backoff": backoff,
			})
		})
	}
}

// ClientIP returns the request's client address, preferring the first
// X-Forwarded-For hop
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
