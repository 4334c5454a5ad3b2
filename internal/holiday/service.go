package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/neexbeast/holiday-aggregator/internal/cache"
)

// Cache TTLs per lookup kind.
const (
	holidaysTTL     = 24 * time.Hour
	countriesTTL    = 7 * 24 * time.Hour
	searchTTL       = time.Hour
	longWeekendsTTL = 24 * time.Hour
	nextHolidaysTTL = time.Hour
)

// Cache is the byte-oriented TTL store the service caches responses in.
// Implementations never fail; a backend error reads as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Delete(ctx context.Context, key string) bool
	Clear(ctx context.Context)
	Stats(ctx context.Context) cache.Stats
}

// Limiter is a fixed-window request counter keyed by provider.
type Limiter interface {
	Allow(ctx context.Context, key string, maxRequests int, window time.Duration) bool
	Remaining(ctx context.Context, key string, maxRequests int) int
	ResetTime(ctx context.Context, key string) (time.Time, bool)
}

// NagerSource is satisfied by NagerClient.
type NagerSource interface {
	PublicHolidays(ctx context.Context, countryCode string, year int) ([]NagerHoliday, error)
	AvailableCountries(ctx context.Context) ([]NagerCountry, error)
	NextPublicHolidaysWorldwide(ctx context.Context) ([]NagerHoliday, error)
	NextPublicHolidays(ctx context.Context, countryCode string) ([]NagerHoliday, error)
	LongWeekends(ctx context.Context, countryCode string, year int) ([]NagerLongWeekend, error)
	IsPublicHoliday(ctx context.Context, date, countryCode string) (bool, error)
}

// CalendarificSource is satisfied by CalendarificClient.
type CalendarificSource interface {
	Enabled() bool
	Holidays(ctx context.Context, countryCode string, year int) (CalendarificResponse, error)
	Countries(ctx context.Context) (CalendarificResponse, error)
}

// AbstractSource is satisfied by AbstractClient.
type AbstractSource interface {
	Enabled() bool
	Holidays(ctx context.Context, countryCode string, year int) ([]AbstractHoliday, error)
}

// Deps are the collaborators a Service is built from.
type Deps struct {
	Cache        Cache
	Limiter      Limiter
	Nager        NagerSource
	Calendarific CalendarificSource
	Abstract     AbstractSource
	Calendar     *OfflineCalendar
	Log          *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service aggregates holiday data across providers with caching, per-provider
// rate limiting and ordered fallback. It holds no state of its own besides
// its collaborators.
type Service struct {
	cache        Cache
	limiter      Limiter
	nager        NagerSource
	calendarific CalendarificSource
	abstract     AbstractSource
	calendar     *OfflineCalendar
	settings     Settings
	pacer        *rate.Limiter
	log          *slog.Logger
	now          func() time.Time
}

// NewService wires a Service. Cache, Limiter and Nager are required.
func NewService(deps Deps, settings Settings, opts ...Option) *Service {
	log := deps.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if settings.Primary == 0 {
		settings.Primary = NagerDate
	}
	if settings.Policy == "" {
		settings.Policy = PolicyStop
	}
	if settings.SearchConcurrency < 1 {
		settings.SearchConcurrency = 1
	}

	s := &Service{
		cache:        deps.Cache,
		limiter:      deps.Limiter,
		nager:        deps.Nager,
		calendarific: deps.Calendarific,
		abstract:     deps.Abstract,
		calendar:     deps.Calendar,
		settings:     settings,
		log:          log,
		now:          time.Now,
	}
	if settings.SearchRate > 0 {
		s.pacer = rate.NewLimiter(rate.Limit(settings.SearchRate), 1)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---- country holidays ----

// HolidaysByCountry returns the holidays of a country for opts.Year (default:
// the current year), filtered by month and type and truncated to opts.Limit.
// The primary provider is tried first, then each fallback in configured order.
func (s *Service) HolidaysByCountry(ctx context.Context, countryCode string, opts SearchOptions) (Response[[]Holiday], error) {
	code, err := validCountry(countryCode)
	if err != nil {
		return Response[[]Holiday]{}, err
	}
	if err := validateOptions(opts); err != nil {
		return Response[[]Holiday]{}, err
	}
	if opts.Year == 0 {
		opts.Year = s.now().Year()
	}

	key := holidaysKey(code, opts)
	var cached []Holiday
	if s.cacheGet(ctx, key, &cached) {
		return Response[[]Holiday]{Data: cached, Provider: ProviderCache, Cached: true}, nil
	}

	primary := s.settings.Primary
	holidays, err := s.fetchHolidays(ctx, primary, code, opts.Year)
	if err == nil {
		return s.serveHolidays(ctx, key, primary, applyOptions(holidays, opts)), nil
	}
	s.log.Warn("primary holiday provider failed, trying fallbacks",
		"provider", primary.Slug(), "country", code, "year", opts.Year, "err", err)
	failures := []error{err}

	for _, p := range s.settings.fallbackChain() {
		if !s.enabled(p) {
			s.log.Warn("skipping disabled holiday provider", "provider", p.Slug())
			failures = append(failures, &ProviderError{Provider: p, Err: ErrProviderDisabled})
			continue
		}

		q := s.settings.quota(p)
		if !s.limiter.Allow(ctx, p.Slug(), q.Requests, q.Period) {
			rlErr := &RateLimitError{Provider: p}
			if reset, ok := s.limiter.ResetTime(ctx, p.Slug()); ok {
				rlErr.ResetAt = reset
			}
			if s.settings.Policy != PolicySkip {
				s.log.Warn("holiday provider rate limited, aborting lookup", "provider", p.Slug(), "country", code)
				return Response[[]Holiday]{}, rlErr
			}
			s.log.Warn("holiday provider rate limited, skipping", "provider", p.Slug(), "country", code)
			failures = append(failures, rlErr)
			continue
		}

		holidays, err := s.fetchHolidays(ctx, p, code, opts.Year)
		if err != nil {
			s.log.Warn("fallback holiday provider failed", "provider", p.Slug(), "country", code, "err", err)
			failures = append(failures, err)
			continue
		}
		return s.serveHolidays(ctx, key, p, applyOptions(holidays, opts)), nil
	}

	return Response[[]Holiday]{}, &AllProvidersFailedError{Errs: failures}
}

func (s *Service) serveHolidays(ctx context.Context, key string, p Provider, holidays []Holiday) Response[[]Holiday] {
	s.cachePut(ctx, key, holidays, holidaysTTL)
	return Response[[]Holiday]{
		Data:      holidays,
		Provider:  p.Name(),
		Cached:    false,
		RateLimit: s.rateLimitInfo(ctx, p),
	}
}

// fetchHolidays performs one provider call and adapts its payload.
func (s *Service) fetchHolidays(ctx context.Context, p Provider, code string, year int) ([]Holiday, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		out []Holiday
		err error
	)
	switch p {
	case NagerDate:
		var raw []NagerHoliday
		if raw, err = s.nager.PublicHolidays(ctx, code, year); err == nil {
			out = AdaptNagerHolidays(raw, code)
		}
	case Calendarific:
		if s.calendarific == nil {
			return nil, &ProviderError{Provider: p, Err: ErrProviderDisabled}
		}
		var resp CalendarificResponse
		if resp, err = s.calendarific.Holidays(ctx, code, year); err == nil {
			out = AdaptCalendarificHolidays(resp, code)
		}
	case Abstract:
		if s.abstract == nil {
			return nil, &ProviderError{Provider: p, Err: ErrProviderDisabled}
		}
		var raw []AbstractHoliday
		if raw, err = s.abstract.Holidays(ctx, code, year); err == nil {
			out = AdaptAbstractHolidays(raw, code)
		}
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return nil, &ProviderError{Provider: p, Err: err}
	}
	return out, nil
}

// enabled reports whether p can be called at all.
func (s *Service) enabled(p Provider) bool {
	switch p {
	case NagerDate:
		return s.nager != nil
	case Calendarific:
		return s.calendarific != nil && s.calendarific.Enabled()
	case Abstract:
		return s.abstract != nil && s.abstract.Enabled()
	}
	return false
}

// ---- countries ----

// AvailableCountries lists supported countries. It never fails: when the
// primary provider cannot answer, the built-in list is returned.
func (s *Service) AvailableCountries(ctx context.Context) Response[[]Country] {
	const key = "available_countries"

	var cached []Country
	if s.cacheGet(ctx, key, &cached) {
		return Response[[]Country]{Data: cached, Provider: ProviderCache, Cached: true}
	}

	primary := s.settings.Primary
	countries, err := s.fetchCountries(ctx, primary)
	if err == nil && len(countries) > 0 {
		s.cachePut(ctx, key, countries, countriesTTL)
		return Response[[]Country]{Data: countries, Provider: primary.Name(), RateLimit: s.rateLimitInfo(ctx, primary)}
	}
	if err == nil {
		err = fmt.Errorf("%s returned no countries", primary.Name())
	}

	s.log.Warn("country list unavailable, using built-in list", "provider", primary.Slug(), "err", err)
	return Response[[]Country]{Data: FallbackCountries(), Provider: ProviderFallback}
}

func (s *Service) fetchCountries(ctx context.Context, p Provider) ([]Country, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	switch p {
	case NagerDate:
		raw, err := s.nager.AvailableCountries(ctx)
		if err != nil {
			return nil, &ProviderError{Provider: p, Err: err}
		}
		return AdaptNagerCountries(raw), nil
	case Calendarific:
		if !s.enabled(p) {
			return nil, &ProviderError{Provider: p, Err: ErrProviderDisabled}
		}
		resp, err := s.calendarific.Countries(ctx)
		if err != nil {
			return nil, &ProviderError{Provider: p, Err: err}
		}
		return AdaptCalendarificCountries(resp), nil
	}
	return nil, &ProviderError{Provider: p, Err: ErrUnsupported}
}

// ---- Nager-only lookups ----

// LongWeekends returns the long weekends of a country. A provider failure
// yields an empty, uncached response tagged ProviderTagError.
func (s *Service) LongWeekends(ctx context.Context, countryCode string, year int) (Response[[]LongWeekend], error) {
	code, err := validCountry(countryCode)
	if err != nil {
		return Response[[]LongWeekend]{}, err
	}
	if year == 0 {
		year = s.now().Year()
	}

	key := fmt.Sprintf("long_weekends_%s_%d", code, year)
	var cached []LongWeekend
	if s.cacheGet(ctx, key, &cached) {
		return Response[[]LongWeekend]{Data: cached, Provider: ProviderCache, Cached: true}, nil
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := s.nager.LongWeekends(tctx, code, year)
	if err != nil {
		s.log.Warn("long weekend lookup failed", "provider", NagerDate.Slug(), "country", code, "year", year, "err", err)
		return Response[[]LongWeekend]{Data: []LongWeekend{}, Provider: ProviderTagError}, nil
	}

	weekends := AdaptNagerLongWeekends(raw, code)
	s.cachePut(ctx, key, weekends, longWeekendsTTL)
	return Response[[]LongWeekend]{Data: weekends, Provider: NagerDate.Name()}, nil
}

// NextPublicHolidaysWorldwide returns holidays of the coming week across all
// countries. The result is cached for one hour only because entries age out
// of the window as time passes.
func (s *Service) NextPublicHolidaysWorldwide(ctx context.Context) (Response[[]Holiday], error) {
	return s.nextHolidays(ctx, "next_holidays_worldwide", "", func(ctx context.Context) ([]NagerHoliday, error) {
		return s.nager.NextPublicHolidaysWorldwide(ctx)
	})
}

// NextPublicHolidays returns the upcoming holidays of one country.
func (s *Service) NextPublicHolidays(ctx context.Context, countryCode string) (Response[[]Holiday], error) {
	code, err := validCountry(countryCode)
	if err != nil {
		return Response[[]Holiday]{}, err
	}
	return s.nextHolidays(ctx, "next_holidays_"+code, code, func(ctx context.Context) ([]NagerHoliday, error) {
		return s.nager.NextPublicHolidays(ctx, code)
	})
}

func (s *Service) nextHolidays(ctx context.Context, key, code string, fetch func(context.Context) ([]NagerHoliday, error)) (Response[[]Holiday], error) {
	var cached []Holiday
	if s.cacheGet(ctx, key, &cached) {
		return Response[[]Holiday]{Data: cached, Provider: ProviderCache, Cached: true}, nil
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := fetch(tctx)
	if err != nil {
		s.log.Warn("next holidays lookup failed", "provider", NagerDate.Slug(), "country", code, "err", err)
		return Response[[]Holiday]{}, &AllProvidersFailedError{Errs: []error{&ProviderError{Provider: NagerDate, Err: err}}}
	}

	holidays := AdaptNagerHolidays(raw, code)
	s.cachePut(ctx, key, holidays, nextHolidaysTTL)
	return Response[[]Holiday]{Data: holidays, Provider: NagerDate.Name()}, nil
}

// IsPublicHoliday reports whether date (YYYY-MM-DD) is a public holiday in
// the country. It is never cached. When the provider is unreachable the
// offline calendar answers for the countries it covers; otherwise false.
func (s *Service) IsPublicHoliday(ctx context.Context, date, countryCode string) (bool, error) {
	code, err := validCountry(countryCode)
	if err != nil {
		return false, err
	}
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.nager.IsPublicHoliday(tctx, date, code)
	if err == nil {
		return ok, nil
	}

	if isHoliday, covered := s.calendar.IsPublicHoliday(day, code); covered {
		s.log.Warn("public holiday check failed, answered from offline calendar",
			"provider", NagerDate.Slug(), "country", code, "date", date, "err", err)
		return isHoliday, nil
	}
	s.log.Warn("public holiday check failed", "provider", NagerDate.Slug(), "country", code, "date", date, "err", err)
	return false, nil
}

// ---- diagnostics ----

// CacheStats sweeps expired entries and reports what is left.
func (s *Service) CacheStats(ctx context.Context) CacheStats {
	st := s.cache.Stats(ctx)
	keys := st.Keys
	if keys == nil {
		keys = []string{}
	}
	return CacheStats{Size: st.Size, Keys: keys}
}

// ClearCache drops every cached response.
func (s *Service) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
}

// RateLimitStatus reports the local quota state of a provider.
func (s *Service) RateLimitStatus(ctx context.Context, p Provider) RateLimitStatus {
	q := s.settings.quota(p)
	info := s.rateLimitInfo(ctx, p)
	return RateLimitStatus{
		Provider:    p.Name(),
		Remaining:   info.Remaining,
		ResetTime:   info.ResetTime,
		MaxRequests: q.Requests,
	}
}

// ---- helpers ----

func (s *Service) rateLimitInfo(ctx context.Context, p Provider) *RateLimitInfo {
	q := s.settings.quota(p)
	info := &RateLimitInfo{Remaining: s.limiter.Remaining(ctx, p.Slug(), q.Requests)}
	if reset, ok := s.limiter.ResetTime(ctx, p.Slug()); ok {
		info.ResetTime = &reset
	}
	return info
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.settings.RequestTimeout)
}

// cacheGet decodes a cached JSON value into dst. Undecodable entries are
// dropped and reported as a miss.
func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	b, ok := s.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.log.Warn("dropping undecodable cache entry", "key", key, "err", err)
		s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *Service) cachePut(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("encoding cache entry failed", "key", key, "err", err)
		return
	}
	s.cache.Set(ctx, key, b, ttl)
}

func validCountry(countryCode string) (string, error) {
	code, ok := normalizeCountryCode(countryCode)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCountryCode, countryCode)
	}
	return code, nil
}

func validateOptions(opts SearchOptions) error {
	switch {
	case opts.Year < 0:
		return fmt.Errorf("%w: year %d", ErrInvalidOptions, opts.Year)
	case opts.Month < 0 || opts.Month > 12:
		return fmt.Errorf("%w: month %d", ErrInvalidOptions, opts.Month)
	case opts.Limit < 0:
		return fmt.Errorf("%w: limit %d", ErrInvalidOptions, opts.Limit)
	case opts.Type != "" && !opts.Type.Valid():
		return fmt.Errorf("%w: type %q", ErrInvalidOptions, opts.Type)
	}
	return nil
}

// holidaysKey serializes the lookup so differently filtered results never
// share an entry.
func holidaysKey(code string, opts SearchOptions) string {
	b, _ := json.Marshal(opts)
	return fmt.Sprintf("holidays_%s_%d_%s", code, opts.Year, b)
}

// applyOptions filters by month, then type, then truncates to the limit.
func applyOptions(holidays []Holiday, opts SearchOptions) []Holiday {
	out := make([]Holiday, 0, len(holidays))
	for _, h := range holidays {
		if opts.Month != 0 && h.Month() != opts.Month {
			continue
		}
		if opts.Type != "" && h.Type != opts.Type {
			continue
		}
		out = append(out, h)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
