package httpapi

import (
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/echarter/fleetauth/core"
)

func accessLog(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Printf("[%s] %s %s %d %s", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

// rateLimit caps requests per client address. Limiter outages let traffic through.
func rateLimit(limiter core.RateLimiter, limit int, window time.Duration, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := limiter.CheckAndIncrement(r.Context(), "ip:"+clientIP(r), limit, window)
			if errors.Is(err, core.ErrRateLimitExceeded) {
				api := classify(err)
				writeJSON(w, api.status, errorResponse{ErrorCode: api.code, Message: api.message})
				return
			}
			if err != nil {
				logger.Printf("http rate limiter: %v", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port. Forwarding headers count only when RealIP is installed.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
