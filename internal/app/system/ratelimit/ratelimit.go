// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// Limiter counts requests per key in fixed windows. It is safe for
// concurrent use. Close stops the background sweeper.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

type window struct {
	count     int
	expiresAt time.Time
}

// New allows limit requests per key every duration.
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go l.sweep(duration * 2)
	return l
}

// Allow records one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// RetryAfter is how long key must wait for its window to reset.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	if d := w.expiresAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Reset forgets key, e.g. after a successful sign-in.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Close stops the sweeper goroutine.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) sweep(every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-t.C:
			l.mu.Lock()
			now := l.now()
			for k, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware rejects callers over the limit with 429, keyed by client IP.
func Middleware(l *Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !l.Allow(ip) {
				secs := int(l.RetryAfter(ip).Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				log.Warn("rate limited", zap.String("ip", ip), zap.String("path", r.URL.Path))
				jsonutil.Write(w, http.StatusTooManyRequests, map[string]string{
					"error": "too many attempts; try again shortly",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginLimiter limits sign-in attempts per IP and per email.
type LoginLimiter struct {
	ip    *Limiter
	email *Limiter
}

// NewLoginLimiter allows ipLimit attempts per IP per minute and a fifth of
// that (at least 3) per email every five minutes.
func NewLoginLimiter(ipLimit int) *LoginLimiter {
	perEmail := ipLimit / 5
	if perEmail < 3 {
		perEmail = 3
	}
	return &LoginLimiter{
		ip:    New(ipLimit, time.Minute),
		email: New(perEmail, 5*time.Minute),
	}
}

// Check records an attempt and returns a Forbidden error when blocked.
func (ll *LoginLimiter) Check(r *http.Request, email string) error {
	if !ll.ip.Allow(ClientIP(r)) {
		return apierr.Forbidden("too many sign-in attempts; wait a minute and try again")
	}
	if key := strings.ToLower(strings.TrimSpace(email)); key != "" && !ll.email.Allow(key) {
		return apierr.Forbidden("too many sign-in attempts for this account; wait a few minutes")
	}
	return nil
}

// Succeeded clears the per-email counter.
func (ll *LoginLimiter) Succeeded(email string) {
	ll.email.Reset(strings.ToLower(strings.TrimSpace(email)))
}

// Close stops both sweepers.
func (ll *LoginLimiter) Close() {
	ll.ip.Close()
	ll.email.Close()
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
