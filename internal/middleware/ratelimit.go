package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"podcastr/internal/auth"
	"podcastr/internal/metrics"
	"podcastr/internal/ratelimit"
)

// RateLimiterMiddleware throttles mutating requests per caller under one
// named limiter rule.
type RateLimiterMiddleware struct {
	limiter        ratelimit.Limiter
	rule           string
	trustForwarded bool
}

type RateLimiterOption func(*RateLimiterMiddleware)

// TrustForwardedFor keys anonymous callers by the first X-Forwarded-For
// address. Only enable it behind a proxy that overwrites the header.
func TrustForwardedFor() RateLimiterOption {
	return func(rl *RateLimiterMiddleware) { rl.trustForwarded = true }
}

func NewRateLimiterMiddleware(limiter ratelimit.Limiter, rule string, opts ...RateLimiterOption) *RateLimiterMiddleware {
	rl := &RateLimiterMiddleware{limiter: limiter, rule: rule}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Middleware is the actual middleware handler.
func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		key := callerKey(r, rl.trustForwarded)
		res, err := rl.limiter.TryAcquire(r.Context(), rl.rule, key)
		if err != nil {
			// Fail open when the limiter backend is down.
			metrics.RecordRateLimit(rl.rule, "error")
			log.Warn().Err(err).Str("rule", rl.rule).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !res.OK {
			metrics.RecordRateLimit(rl.rule, "denied")
			log.Info().Str("rule", rl.rule).Str("caller", key).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests")
			return
		}
		metrics.RecordRateLimit(rl.rule, "allowed")
		next.ServeHTTP(w, r)
	})
}

// callerKey identifies the caller by identity email, falling back to the
// client address. X-Forwarded-For is ignored unless trustForwarded is set.
func callerKey(r *http.Request, trustForwarded bool) string {
	if id := auth.FromContext(r.Context()); id != nil {
		return "user:" + strings.ToLower(id.Email)
	}
	if trustForwarded {
		if fwd := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-For"), ",")[0]); fwd != "" {
			return "ip:" + fwd
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
