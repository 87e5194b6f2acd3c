// Package httpapi exposes the password-reset workflow over HTTP.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/echarter/fleetauth/core"
)

// Resetter is the workflow the handlers drive. *core.Manager implements it.
type Resetter interface {
	RequestReset(ctx context.Context, email string) error
	VerifyReset(ctx context.Context, email, code string) (core.Token, error)
	ApplyNewPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
}

// Options tunes the router. Zero values disable the per-IP limiter and masking.
type Options struct {
	Logger *log.Logger
	// MaskUnknownAccounts answers reset requests for unknown emails with the
	// normal success body.
	MaskUnknownAccounts bool
	// TrustForwarded takes the client address from X-Real-IP / X-Forwarded-For.
	// Set it only behind a proxy that overwrites those headers.
	TrustForwarded bool

	// Limiter throttles each client IP to RateLimit requests per RateWindow.
	// A nil Limiter or zero RateLimit disables it.
	Limiter    core.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

type handler struct {
	svc    Resetter
	logger *log.Logger
	mask   bool
}

// NewRouter mounts the password endpoints and /healthz on a chi router.
func NewRouter(svc Resetter, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &handler{svc: svc, logger: logger, mask: opts.MaskUnknownAccounts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustForwarded {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(api chi.Router) {
		if opts.Limiter != nil && opts.RateLimit > 0 {
			window := opts.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			api.Use(rateLimit(opts.Limiter, opts.RateLimit, window, logger))
		}
		api.Route("/password", func(pr chi.Router) {
			pr.Post("/reset/request", h.requestReset)
			pr.Post("/reset/verify", h.verifyReset)
			pr.Post("/reset", h.applyNewPassword)
			pr.Post("/change", h.changePassword)
		})
	})
	return r
}
