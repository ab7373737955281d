// ratelimit.go - Per-IP rate limiter middleware.
//
// A simple sliding-window limiter applied globally to the API; designed
// to complement proxy-side limits.
package server

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter tracks requests per IP address using an in-memory map with
// periodic cleanup.
type rateLimiter struct {
	mu       sync.RWMutex
	visitors map[string]*visitor
	rate     int           // requests allowed per window
	window   time.Duration // time window for rate limiting
}

// visitor tracks request timestamps for a single IP address
type visitor struct {
	requests []time.Time
	mu       sync.Mutex
}

// newRateLimiter creates a rate limiter that allows 'rate' requests per 'window'.
// Example: newRateLimiter(300, time.Minute) allows 300 requests per minute per IP.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}

	go rl.cleanup()

	return rl
}

// middleware returns an HTTP middleware that enforces rate limits
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)

		if !rl.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow checks if a request from the given IP should be allowed
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{
			requests: make([]time.Time, 0, rl.rate),
		}
		rl.visitors[ip] = v
	}
	rl.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	// Drop requests older than the window
	valid := v.requests[:0]
	for _, t := range v.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	v.requests = valid

	if len(v.requests) >= rl.rate {
		return false
	}

	v.requests = append(v.requests, now)
	return true
}

// cleanup periodically removes visitors with no recent requests
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.window * 2) // keep visitors for 2x window

		for ip, v := range rl.visitors {
			v.mu.Lock()
			if len(v.requests) == 0 || v.requests[len(v.requests)-1].Before(cutoff) {
				delete(rl.visitors, ip)
			}
			v.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}
