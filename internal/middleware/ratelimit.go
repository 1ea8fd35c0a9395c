package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter shields the content-generation routes. The scarce resource is
// the generative backend's request quota, so the limiter counts requests per
// client IP in fixed windows and rejects the overflow before it can burn a
// provider call. Exceeding the limit costs nothing server-side; the client
// gets RATE_LIMITED and retries in the next window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*quotaWindow
	limit   int
	window  time.Duration
}

// quotaWindow tracks one client's consumption inside the current window.
type quotaWindow struct {
	count   int
	started time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*quotaWindow),
		limit:   limit,
		window:  window,
	}
	go rl.sweep()
	return rl
}

// sweep drops windows that have expired so idle clients do not accumulate.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		rl.mu.Lock()
		for ip, qw := range rl.clients {
			if now.Sub(qw.started) > rl.window {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow consumes one slot of the client's window, opening a fresh window when
// the previous one has elapsed.
func (rl *RateLimiter) allow(client string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	qw, ok := rl.clients[client]
	if !ok || now.Sub(qw.started) > rl.window {
		rl.clients[client] = &quotaWindow{count: 1, started: now}
		return true
	}

	qw.count++
	return qw.count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Generation quota exceeded. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
