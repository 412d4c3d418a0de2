package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// slidingWindow approximates a true sliding window from two fixed windows:
// the previous window's count is weighted by how much of it still overlaps.
type slidingWindow struct {
	start time.Time
	prev  int
	curr  int
}

// Limiter tracks request counts per client key.
type Limiter struct {
	max     int
	window  time.Duration
	keyFunc func(*http.Request) string
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*slidingWindow
}

// NewLimiter creates a Limiter from cfg.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &Limiter{
		max:     cfg.Max,
		window:  cfg.Window,
		keyFunc: cfg.KeyFunc,
		now:     time.Now,
		clients: make(map[string]*slidingWindow),
	}
}

// take records a request for key when allowed and returns the remaining
// budget and the end of the current window.
func (l *Limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	sw := l.clients[key]
	if sw == nil {
		sw = &slidingWindow{start: now.Truncate(l.window)}
		l.clients[key] = sw
	}
	switch elapsed := now.Sub(sw.start); {
	case elapsed >= 2*l.window:
		sw.start, sw.prev, sw.curr = now.Truncate(l.window), 0, 0
	case elapsed >= l.window:
		sw.start, sw.prev, sw.curr = sw.start.Add(l.window), sw.curr, 0
	}

	overlap := 1 - float64(now.Sub(sw.start))/float64(l.window)
	used := float64(sw.prev)*math.Max(overlap, 0) + float64(sw.curr)
	reset = sw.start.Add(l.window)
	if used >= float64(l.max) {
		return 0, reset, false
	}

	sw.curr++
	return max(l.max-int(math.Ceil(used))-1, 0), reset, true
}

// Sweep drops clients idle for two full windows.
func (l *Limiter) Sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, sw := range l.clients {
		if now.Sub(sw.start) >= 2*l.window {
			delete(l.clients, key)
		}
	}
}

// RunSweeper calls Sweep every two windows until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Middleware enforces the limit. Every response carries X-RateLimit-*
// headers; rejected requests get 429 with a Retry-After header.
func (l *Limiter) Middleware() Middleware {
	limit := strconv.Itoa(l.max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := l.take(l.keyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(reset.Sub(l.now()), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit returns a limiting middleware without background eviction.
func RateLimit(cfg RateLimitConfig) Middleware {
	return NewLimiter(cfg).Middleware()
}

// RateLimitWithCleanup is like RateLimit but also evicts idle clients until
// ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	go l.RunSweeper(ctx)
	return l.Middleware()
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
