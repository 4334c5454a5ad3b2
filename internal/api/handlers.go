package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/holiday-aggregator/internal/holiday"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	svc     HolidayService
	archive HolidayArchive
	log     *slog.Logger
	now     func() time.Time
}

// NewHandlers constructs Handlers. archive may be nil, in which case the
// archive routes answer 503.
func NewHandlers(svc HolidayService, archive HolidayArchive, log *slog.Logger) *Handlers {
	return &Handlers{
		svc:     svc,
		archive: archive,
		log:     log,
		now:     time.Now,
	}
}

// listBody is the envelope of every list response.
type listBody struct {
	Success   bool                   `json:"success"`
	Data      any                    `json:"data"`
	Provider  string                 `json:"provider,omitempty"`
	Cached    bool                   `json:"cached"`
	Count     int                    `json:"count"`
	RateLimit *holiday.RateLimitInfo `json:"rateLimit,omitempty"`
}

type dataBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeList[T any](w http.ResponseWriter, resp holiday.Response[[]T]) {
	data := resp.Data
	if data == nil {
		data = []T{}
	}
	writeJSON(w, http.StatusOK, listBody{
		Success:   true,
		Data:      data,
		Provider:  resp.Provider,
		Cached:    resp.Cached,
		Count:     len(data),
		RateLimit: resp.RateLimit,
	})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: msg})
}

// writeError maps service errors to HTTP statuses. The all-providers check
// comes first because its causes may include a rate limit denial.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rlErr *holiday.RateLimitError
	switch {
	case errors.Is(err, holiday.ErrInvalidCountryCode),
		errors.Is(err, holiday.ErrInvalidDate),
		errors.Is(err, holiday.ErrInvalidOptions):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, holiday.ErrAllProvidersFailed):
		h.log.Warn("holiday lookup failed", "path", r.URL.Path, "err", err)
		writeFailure(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &rlErr):
		if wait := rlErr.RetryAfter(h.now()); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		writeFailure(w, http.StatusTooManyRequests, err.Error())
	default:
		h.log.Error("request failed", "path", r.URL.Path, "err", err)
		writeFailure(w, http.StatusInternalServerError, "internal server error")
	}
}

// intParam reads an optional integer query parameter; absent means 0.
func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", holiday.ErrInvalidOptions, name)
	}
	return n, nil
}

// GetHolidays handles GET /api/v1/holidays.
// With ?search= it searches the country (or the popular countries when no
// country is given); otherwise ?country= is required.
func (h *Handlers) GetHolidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := q.Get("country")

	if search := q.Get("search"); search != "" {
		resp, err := h.svc.SearchHolidays(r.Context(), search, country)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeList(w, resp)
		return
	}

	if country == "" {
		writeFailure(w, http.StatusBadRequest, "Country parameter is required")
		return
	}

	var opts holiday.SearchOptions
	var err error
	if opts.Year, err = intParam(r, "year"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if opts.Month, err = intParam(r, "month"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if opts.Limit, err = intParam(r, "limit"); err != nil {
		h.writeError(w, r, err)
		return
	}
	opts.Type = holiday.Type(strings.ToLower(q.Get("type")))

	resp, err := h.svc.HolidaysByCountry(r.Context(), country, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, resp)
}

// GetCountries handles GET /api/v1/countries.
func (h *Handlers) GetCountries(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.svc.AvailableCountries(r.Context()))
}

// GetLongWeekends handles GET /api/v1/holidays/{country}/long-weekends.
func (h *Handlers) GetLongWeekends(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := h.svc.LongWeekends(r.Context(), chi.URLParam(r, "country"), year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, resp)
}

// GetNextWorldwide handles GET /api/v1/holidays/next.
func (h *Handlers) GetNextWorldwide(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.NextPublicHolidaysWorldwide(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, resp)
}

// GetNextForCountry handles GET /api/v1/holidays/{country}/next.
func (h *Handlers) GetNextForCountry(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.NextPublicHolidays(r.Context(), chi.URLParam(r, "country"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, resp)
}

// IsHoliday handles GET /api/v1/holidays/{country}/is-holiday?date=YYYY-MM-DD.
// The date defaults to today (UTC).
func (h *Handlers) IsHoliday(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "country")))
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().UTC().Format(holiday.DateLayout)
	}

	ok, err := h.svc.IsPublicHoliday(r.Context(), date, country)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: map[string]any{
		"date":            date,
		"countryCode":     country,
		"isPublicHoliday": ok,
	}})
}

// SyncHolidays handles POST /api/v1/holidays/{country}/sync?year=.
// It looks the year up through the service and upserts every holiday into
// the archive.
func (h *Handlers) SyncHolidays(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeFailure(w, http.StatusServiceUnavailable, "holiday archive is not configured")
		return
	}
	year, err := intParam(r, "year")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.svc.HolidaysByCountry(r.Context(), chi.URLParam(r, "country"), holiday.SearchOptions{Year: year})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.archive.UpsertHolidays(r.Context(), resp.Provider, resp.Data)
	if err != nil {
		h.log.Error("archive upsert failed", "stored", result.Stored, "err", err)
		writeFailure(w, http.StatusInternalServerError, "failed to store holidays")
		return
	}

	h.log.Info("holidays archived", "sync_id", result.SyncID, "provider", result.Provider, "stored", result.Stored)
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: result})
}

// GetArchive handles GET /api/v1/archive/{country}?year=.
func (h *Handlers) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeFailure(w, http.StatusServiceUnavailable, "holiday archive is not configured")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "country")))
	if len(code) != 2 {
		h.writeError(w, r, fmt.Errorf("%w: %q", holiday.ErrInvalidCountryCode, code))
		return
	}
	year, err := intParam(r, "year")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if year == 0 {
		year = h.now().Year()
	}

	rows, err := h.archive.ListHolidays(r.Context(), code, year)
	if err != nil {
		h.log.Error("archive list failed", "country", code, "year", year, "err", err)
		writeFailure(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, listBody{Success: true, Data: rows, Provider: "archive", Count: len(rows)})
}

// GetCacheStats handles GET /api/v1/admin/cache.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: h.svc.CacheStats(r.Context())})
}

// ClearCache handles DELETE /api/v1/admin/cache.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache(r.Context())
	h.log.Info("cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

// GetRateLimit handles GET /api/v1/admin/rate-limits/{provider}.
func (h *Handlers) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	p, err := holiday.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeFailure(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: h.svc.RateLimitStatus(r.Context(), p)})
}

// HealthHandlerFunc returns an http.HandlerFunc that pings every configured
// backend. With no backends the service is healthy by definition.
func HealthHandlerFunc(pingers map[string]Pinger, log *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(pingers))
	for name := range pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(names))
		for _, name := range names {
			checks[name] = "ok"
			if err := pingers[name].Ping(ctx); err != nil {
				log.Error("health check: ping failed", "backend", name, "err", err)
				checks[name] = "error"
				status = http.StatusServiceUnavailable
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
	}
}
