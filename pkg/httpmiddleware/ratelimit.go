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

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window. Zero disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(r *http.Request) string
	// Skip exempts requests from limiting, e.g. health probes.
	Skip func(r *http.Request) bool
}

// window approximates a sliding window with the counts of the current and
// the previous fixed window.
type window struct {
	start         time.Time
	prev, current int
}

// hit counts a request at now. It returns how many requests remain and
// whether this one is allowed.
func (w *window) hit(now time.Time, size time.Duration, limit int) (int, bool) {
	if elapsed := now.Sub(w.start); elapsed >= size {
		if elapsed >= 2*size {
			w.prev = 0
		} else {
			w.prev = w.current
		}
		w.current = 0
		w.start = now.Truncate(size)
	}

	weight := 1 - float64(now.Sub(w.start))/float64(size)
	estimate := int(math.Floor(float64(w.prev)*weight)) + w.current
	if estimate >= limit {
		return 0, false
	}
	w.current++
	return limit - estimate - 1, true
}

type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
}

func (l *limiter) allow(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil {
		w = &window{start: now.Truncate(l.cfg.Window)}
		l.windows[key] = w
	}
	remaining, ok = w.hit(now, l.cfg.Window, l.cfg.Max)
	return remaining, w.start.Add(l.cfg.Window), ok
}

// sweep drops windows idle for two window lengths.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.cfg.Window {
			delete(l.windows, key)
		}
	}
}

// RateLimit enforces a per-client request rate. Rejected requests get 429
// with a Retry-After header. Idle client state is swept until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	l := &limiter{cfg: cfg, windows: make(map[string]*window)}

	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			remaining, reset, ok := l.allow(cfg.KeyFunc(r), now)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !ok {
				retry := max(reset.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address host, in that order.
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
