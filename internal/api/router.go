package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// The health endpoint is unauthenticated; every other route requires bearer
// auth. Inbound requests are limited to perMinute per client IP.
func NewRouter(handlers *Handlers, token string, perMinute int, pingers map[string]Pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(httprate.LimitByIP(perMinute, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(pingers, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Get("/api/v1/countries", handlers.GetCountries)

		r.Route("/api/v1/holidays", func(r chi.Router) {
			r.Get("/", handlers.GetHolidays)
			r.Get("/next", handlers.GetNextWorldwide)
			r.Get("/{country}/next", handlers.GetNextForCountry)
			r.Get("/{country}/long-weekends", handlers.GetLongWeekends)
			r.Get("/{country}/is-holiday", handlers.IsHoliday)
			r.Post("/{country}/sync", handlers.SyncHolidays)
		})

		r.Get("/api/v1/archive/{country}", handlers.GetArchive)

		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Get("/cache", handlers.GetCacheStats)
			r.Delete("/cache", handlers.ClearCache)
			r.Get("/rate-limits/{provider}", handlers.GetRateLimit)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
