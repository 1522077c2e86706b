package handlers

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"priceguard/internal/auth"
	"priceguard/internal/logger"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
)

// RateLimit enforces a per-caller request budget backed by Redis, so the
// budget holds across replicas. Authenticated callers are keyed by user,
// anonymous ones by client IP. If Redis is down the request passes; rate
// limiting is protection, not a gate.
func (s *Server) RateLimit(perMinute int, next http.Handler) http.Handler {
	limiter := redis_rate.NewLimiter(s.Cache.Redis())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ratelimit:"
		if p := auth.FromRequest(r); p.UserID != "" {
			key += p.UserID
		} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key += host
		} else {
			key += r.RemoteAddr
		}

		res, err := limiter.Allow(r.Context(), key, redis_rate.PerMinute(perMinute))
		if err != nil {
			logger.Log.Warn("Rate limiter unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if res.Allowed == 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter/time.Second)+1))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request with method, path, status and
// duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Log.Info("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush preserves SSE streaming through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
