package ratelimit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/presentation/helpers"
)

const keyPrefix = "ratelimit:webhook:"

// fixed window: first hit in the window creates the key with a TTL,
// the TTL is the eviction policy
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Limiter is a redis-backed fixed-window rate limiter. It is injected
// where it is used instead of living in a package-level map.
type Limiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func New(client *redis.Client, limit int64, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window}
}

// Allow reports whether one more request under key fits the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := incrScript.Run(ctx, l.client, []string{keyPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}

// Middleware keys the limit by client IP. A redis failure fails open: a
// throttle outage must not make the gateway drop payment notifications.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}

		ok, err := l.Allow(r.Context(), ip)
		if err != nil {
			logger.Warn("rate limiter unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			helpers.HttpError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
