package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

// ipRateLimit is the per-IP budget of unauthenticated endpoints.
const ipRateLimit = 10

// RateLimiter manages rate limiting using token bucket algorithm
type RateLimiter struct {
	mu        sync.Mutex
	rps       float64
	buckets   map[uuid.UUID]*tokenBucket
	ipBuckets map[string]*tokenBucket
}

// tokenBucket implements the token bucket algorithm for rate limiting
type tokenBucket struct {
	tokens    float64
	lastTime  time.Time
	rateLimit float64 // tokens per second
}

// NewRateLimiter creates a RateLimiter granting rps requests per second to
// each authenticated user.
func NewRateLimiter(rps float64) *RateLimiter {
	rl := &RateLimiter{
		rps:       rps,
		buckets:   make(map[uuid.UUID]*tokenBucket),
		ipBuckets: make(map[string]*tokenBucket),
	}

	// Start cleanup goroutine to remove stale buckets
	go rl.cleanup()

	return rl
}

// cleanup periodically removes stale buckets to prevent memory leaks
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for id, bucket := range rl.buckets {
			if now.Sub(bucket.lastTime) > time.Hour {
				delete(rl.buckets, id)
			}
		}
		for ip, bucket := range rl.ipBuckets {
			if now.Sub(bucket.lastTime) > time.Hour {
				delete(rl.ipBuckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// take refills b for the elapsed time and consumes one token if available.
// The bucket holds at most one second worth of requests.
func (b *tokenBucket) take(now time.Time) bool {
	b.tokens += now.Sub(b.lastTime).Seconds() * b.rateLimit
	if b.tokens > b.rateLimit {
		b.tokens = b.rateLimit
	}
	b.lastTime = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// allow checks the bucket of a user.
func (rl *RateLimiter) allow(userID uuid.UUID) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[userID]
	if !exists {
		bucket = &tokenBucket{tokens: rl.rps, lastTime: now, rateLimit: rl.rps}
		rl.buckets[userID] = bucket
	}
	return bucket.take(now)
}

// allowIP checks the bucket of a client IP.
func (rl *RateLimiter) allowIP(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.ipBuckets[ip]
	if !exists {
		bucket = &tokenBucket{tokens: ipRateLimit, lastTime: now, rateLimit: ipRateLimit}
		rl.ipBuckets[ip] = bucket
	}
	return bucket.take(now)
}

// Middleware returns a middleware that checks rate limits per user.
// It must run after AuthMiddleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				slog.Error("user ID not found in context")
				WriteError(w, ErrInternal, http.StatusInternalServerError, CodeInternal)
				return
			}

			if !rl.allow(userID) {
				w.Header().Set("Retry-After", "1")
				WriteError(w,
					fmt.Errorf("rate limit exceeded: %g requests per second", rl.rps),
					http.StatusTooManyRequests,
					CodeRateLimited,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HumaMiddleware is Middleware for huma operations.
func (rl *RateLimiter) HumaMiddleware() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		userID, ok := GetUserID(ctx.Context())
		if ok && !rl.allow(userID) {
			ctx.SetHeader("Retry-After", "1")
			ctx.SetHeader("Content-Type", "application/json")
			ctx.SetStatus(http.StatusTooManyRequests)
			_, _ = fmt.Fprintf(ctx.BodyWriter(), `{"error":"rate limit exceeded","code":%q}`, CodeRateLimited)
			return
		}
		next(ctx)
	}
}

// IPMiddleware creates rate limiting middleware based on client IP
func (rl *RateLimiter) IPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
			}

			if !rl.allowIP(ip) {
				WriteError(w, fmt.Errorf("rate limit exceeded"), http.StatusTooManyRequests, CodeRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
