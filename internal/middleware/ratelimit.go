// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "rate_limit:"
	defaultMetricsPath = "/metrics"
)

var ErrLimiterUnavailable = errors.New("rate limit backend unavailable")

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (*Decision, error)
}

// CounterStore is the counter surface of the cache store. Increment returns
// zero or less when the backend cannot be reached.
type CounterStore interface {
	Increment(ctx context.Context, key string, amount int64) int64
	Expire(ctx context.Context, key string, ttl time.Duration) bool
	TTL(ctx context.Context, key string) time.Duration
}

// FixedWindowLimiter counts requests per key in windows that start at the
// first request. INCR and EXPIRE are separate round trips; a crash between
// them leaves a counter without expiry, which the next request re-arms.
type FixedWindowLimiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

func NewFixedWindowLimiter(
	store CounterStore,
	limit int,
	window time.Duration,
) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

func (l *FixedWindowLimiter) Allow(
	ctx context.Context,
	key string,
) (*Decision, error) {
	count := l.store.Increment(ctx, key, 1)
	if count <= 0 {
		return nil, ErrLimiterUnavailable
	}

	if count == 1 {
		l.store.Expire(ctx, key, l.window)
	}

	ttl := l.store.TTL(ctx, key)
	if ttl <= 0 {
		if ttl == -1 {
			l.store.Expire(ctx, key, l.window)
		}
		ttl = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	d := &Decision{
		Allowed:    count <= int64(l.limit),
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: ttl,
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}

	return d, nil
}

// GCRALimiter delegates to redis_rate's generic cell rate algorithm. It is
// selected with rate_limit.strategy=gcra.
type GCRALimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

func NewGCRALimiter(
	rdb *redis.Client,
	requests, burst int,
	window time.Duration,
) *GCRALimiter {
	if burst <= 0 {
		burst = requests
	}
	return &GCRALimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   requests,
			Burst:  burst,
			Period: window,
		},
	}
}

func (l *GCRALimiter) Allow(ctx context.Context, key string) (*Decision, error) {
	res, err := l.limiter.Allow(ctx, key, l.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLimiterUnavailable, err)
	}

	d := &Decision{
		Allowed:    res.Allowed > 0,
		Limit:      l.limit.Rate,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
	}
	if !d.Allowed {
		d.RetryAfter = res.RetryAfter
	}

	return d, nil
}

type RateLimitObserver interface {
	ObserveRateLimited()
	ObserveLimiterFailOpen()
}

type RateLimitConfig struct {
	Limiter    Limiter
	KeyFunc    func(*http.Request) string
	BypassFunc func(*http.Request) bool
	Observer   RateLimitObserver
	Logger     *slog.Logger

	// TrustProxyHeaders keys clients on X-Forwarded-For / X-Real-IP. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// RateLimiter always fails open: a limiter error lets the request through
// and is logged.
type RateLimiter struct {
	config RateLimitConfig
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
		if cfg.TrustProxyHeaders {
			cfg.KeyFunc = KeyByForwardedIP
		}
	}
	if cfg.BypassFunc == nil {
		cfg.BypassFunc = ProbePaths(defaultMetricsPath)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RateLimiter{config: cfg}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		d, err := rl.config.Limiter.Allow(r.Context(), key)
		if err != nil {
			rl.config.Logger.Warn("rate limiter error, failing open",
				"error", err,
				"key", key,
			)
			if rl.config.Observer != nil {
				rl.config.Observer.ObserveLimiterFailOpen()
			}
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, d)

		if !d.Allowed {
			if rl.config.Observer != nil {
				rl.config.Observer.ObserveRateLimited()
			}
			writeRateLimitExceeded(w, d)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ProbePaths returns a bypass func matching the health probes and the
// metrics endpoint mounted at metricsPath.
func ProbePaths(metricsPath string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		p := r.URL.Path
		switch p {
		case "/health", "/healthz", "/livez", "/readyz":
			return true
		}
		if metricsPath != "" && p == metricsPath {
			return true
		}
		return strings.HasPrefix(p, "/health/")
	}
}

// KeyByIP keys on the connection address.
func KeyByIP(r *http.Request) string {
	return rateLimitKeyPrefix + ClientIP(r)
}

func KeyByForwardedIP(r *http.Request) string {
	return rateLimitKeyPrefix + ForwardedIP(r)
}

// ClientIP returns the host of the TCP peer.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// ForwardedIP prefers the last X-Forwarded-For hop, then X-Real-IP, then
// the connection address. Clients control both headers.
func ForwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[len(ips)-1]); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return ClientIP(r)
}

func setRateLimitHeaders(w http.ResponseWriter, d *Decision) {
	h := w.Header()

	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(d.ResetAfter).Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, d *Decision) {
	retryAfter := int(d.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]any{
		"success": false,
		"error": map[string]any{
			"code": "RATE_LIMITED",
			"message": fmt.Sprintf(
				"Rate limit exceeded. Retry after %d seconds.",
				retryAfter,
			),
		},
	}

	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(response)
}
