package web

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/csvimport/internal/core"
)

// visitorTTL is how long an idle client's bucket is kept.
const visitorTTL = 3 * time.Minute

var errRateLimited = errors.New("rate limit exceeded")

// ipRateLimiter keeps one token bucket per client IP. Each bucket refills
// perMinute tokens per minute and holds at most perMinute.
type ipRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	now         func() time.Time
	lastCleanup time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perMinute int) *ipRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &ipRateLimiter{
		visitors:    make(map[string]*visitor),
		limit:       rate.Every(time.Minute / time.Duration(perMinute)),
		burst:       perMinute,
		now:         time.Now,
		lastCleanup: time.Now(),
	}
}

// allow reports whether ip may make a request now and consumes a token if so.
func (rl *ipRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) > visitorTTL {
		for key, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, key)
			}
		}
		rl.lastCleanup = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// retryAfter is the whole number of seconds until one token is available.
func (rl *ipRateLimiter) retryAfter() int {
	secs := int(time.Duration(float64(time.Second) / float64(rl.limit)).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// middleware returns an HTTP middleware that rate limits by client IP.
func (rl *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := core.ClientIPFromContext(r.Context())
		if ip == "" {
			ip, _, _ = net.SplitHostPort(r.RemoteAddr)
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
