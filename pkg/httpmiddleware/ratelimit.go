package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max requests per Window.
	Max    int
	Window time.Duration
	// KeyFunc defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts requests, e.g. health checks, from limiting.
	Skip func(*http.Request) bool
}

type window struct {
	start time.Time
	prev  float64
	curr  float64
}

type limiter struct {
	max    float64
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*window
}

func newLimiter(cfg RateLimitConfig, now func() time.Time) *limiter {
	return &limiter{
		max:    float64(cfg.Max),
		window: cfg.Window,
		now:    now,
		keys:   make(map[string]*window),
	}
}

// take consumes one request for key. The previous window counts in
// proportion to how much of it still overlaps the sliding window.
func (l *limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	win, found := l.keys[key]
	if !found {
		win = &window{start: now.Truncate(l.window)}
		l.keys[key] = win
	}
	if elapsed := now.Sub(win.start); elapsed >= l.window {
		if elapsed >= 2*l.window {
			win.prev = 0
		} else {
			win.prev = win.curr
		}
		win.curr = 0
		win.start = now.Truncate(l.window)
	}

	weight := 1 - float64(now.Sub(win.start))/float64(l.window)
	used := win.prev*max(weight, 0) + win.curr
	reset = win.start.Add(l.window)
	if used >= l.max {
		return 0, reset, false
	}
	win.curr++
	return max(int(l.max-used-1), 0), reset, true
}

// evict drops keys idle for two windows.
func (l *limiter) evict() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, win := range l.keys {
		if now.Sub(win.start) >= 2*l.window {
			delete(l.keys, key)
		}
	}
}

// RateLimit limits requests per key. Rejected requests get 429 with a JSON
// body; every limited response carries X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimit(cfg, newLimiter(cfg, time.Now))
}

// RateLimitWithCleanup is RateLimit with a goroutine that evicts idle keys
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg, time.Now)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.evict()
			}
		}
	}()
	return rateLimit(cfg, l)
}

func rateLimit(cfg RateLimitConfig, l *limiter) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			remaining, reset, ok := l.take(keyFunc(r))
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			wait := max(reset.Sub(l.now()), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":    http.StatusTooManyRequests,
				"message": "rate limit exceeded",
			})
		})
	}
}

// ClientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
