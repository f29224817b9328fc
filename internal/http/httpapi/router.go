package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"instacap/internal/http/handlers"
	"instacap/internal/infra"
	"instacap/internal/infra/geoip"
	"instacap/internal/middleware"
)

// NewRouter builds the API surface consumed by the browser extension.
func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger, geo geoip.CountryResolver) stdhttp.Handler {
	var lookup middleware.CountryLookup
	if geo != nil {
		lookup = geo.CountryCode
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
	r.Use(middleware.I18N(cfg.DefaultLocale, lookup))

	r.Get("/api/health", app.Health)
	r.Post("/api/auth/google", app.AuthGoogle)
	r.Post("/api/webhook/billing", app.BillingWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))
		r.Get("/api/auth/verify", app.AuthVerify)
		r.Get("/api/user/me", app.Me)
		r.Get("/api/usage", app.Usage)
		r.Post("/api/generate-post", app.GeneratePost)
		r.Post("/api/analytics/batch", app.AnalyticsBatch)
	})

	return r
}
