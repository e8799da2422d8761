package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"shared-tasks-backend/internal/httpx"
)

// ipLimiter keeps one token bucket per client IP. A bucket holds n tokens
// and refills completely over window.
type ipLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	window    time.Duration
	message   string
	now       func() time.Time
	lastSweep time.Time
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// newIPLimiter returns nil when n or window is not positive, which
// disables limiting.
func newIPLimiter(n int, window time.Duration, message string) *ipLimiter {
	if n <= 0 || window <= 0 {
		return nil
	}
	return &ipLimiter{
		visitors: map[string]*visitor{},
		every:    rate.Every(window / time.Duration(n)),
		burst:    n,
		window:   window,
		message:  message,
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	// Buckets idle for a full window are full again.
	if now.Sub(l.lastSweep) > l.window {
		for k, v := range l.visitors {
			if now.Sub(v.seen) > l.window {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

func (l *ipLimiter) wrap(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	retry := strconv.Itoa(max(1, int(math.Ceil((l.window / time.Duration(l.burst)).Seconds()))))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", retry)
			httpx.Error(w, http.StatusTooManyRequests, l.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *ipLimiter) wrapFunc(next http.HandlerFunc) http.HandlerFunc {
	return l.wrap(next).ServeHTTP
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
