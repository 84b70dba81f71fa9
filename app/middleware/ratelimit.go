package appMiddleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api"
)

const limiterIdleTTL = 15 * time.Minute

// KeyFunc picks the bucket a request is counted against. An empty key is not limited.
type KeyFunc func(r *http.Request) string

// RateLimiter keeps one token bucket per key. Buckets idle for limiterIdleTTL are evicted.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
	key      KeyFunc
	logger   *slog.Logger
}

// NewRateLimiter allows perMinute requests per key with the given burst.
func NewRateLimiter(perMinute, burst int, key KeyFunc, logger *slog.Logger) *RateLimiter {
	if burst <= 0 {
		burst = max(1, perMinute/4)
	}
	return &RateLimiter{
		limiters: cache.New(limiterIdleTTL, 2*limiterIdleTTL),
		limit:    rate.Every(time.Minute / time.Duration(max(1, perMinute))),
		burst:    burst,
		key:      key,
		logger:   logger,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.limiters.Get(key); ok {
		rl.limiters.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.SetDefault(key, l)
	return l
}

// Allow reports whether one more request for key fits in its bucket.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiterFor(key).Allow()
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		lim := rl.limiterFor(key)
		res := lim.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				slog.String("path", r.URL.Path),
				slog.Duration("retry_after", delay),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ByClientIP keys on the remote address. Run chi's RealIP first when behind a proxy.
func ByClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ByFormValue keys on a form field, e.g. the sender of an inbound webhook.
func ByFormValue(field string) KeyFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.PostFormValue(field))
	}
}
