// Package config loads process configuration from flags and environment
// variables. Every option can be given either way; flags win.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/neexbeast/holiday-aggregator/internal/holiday"
)

// Providers configures the upstream holiday APIs and how they are combined.
// It is shared by the server and the CLI.
type Providers struct {
	NagerURL           string        `arg:"--nager-url,env:NAGER_BASE_URL" help:"Nager.Date API base URL"`
	CalendarificURL    string        `arg:"--calendarific-url,env:CALENDARIFIC_BASE_URL" help:"Calendarific API base URL"`
	CalendarificAPIKey string        `arg:"--calendarific-key,env:CALENDARIFIC_API_KEY" help:"Calendarific API key; the provider is disabled without one"`
	AbstractURL        string        `arg:"--abstract-url,env:ABSTRACT_BASE_URL" help:"Abstract holidays API base URL"`
	AbstractAPIKey     string        `arg:"--abstract-key,env:ABSTRACT_API_KEY" help:"Abstract API key; the provider is disabled without one"`
	NagerQuota         int           `arg:"--nager-quota,env:NAGER_QUOTA" default:"100000" help:"Nager.Date requests per period"`
	NagerPeriod        time.Duration `arg:"--nager-period,env:NAGER_PERIOD" default:"24h"`
	CalendarificQuota  int           `arg:"--calendarific-quota,env:CALENDARIFIC_QUOTA" default:"1000" help:"Calendarific requests per period"`
	CalendarificPeriod time.Duration `arg:"--calendarific-period,env:CALENDARIFIC_PERIOD" default:"720h"`
	AbstractQuota      int           `arg:"--abstract-quota,env:ABSTRACT_QUOTA" default:"1000" help:"Abstract API requests per period"`
	AbstractPeriod     time.Duration `arg:"--abstract-period,env:ABSTRACT_PERIOD" default:"720h"`
	PrimaryProvider    string        `arg:"--primary,env:PRIMARY_PROVIDER" default:"nager-date" help:"nager-date, calendarific or abstract"`
	FallbackProviders  string        `arg:"--fallbacks,env:FALLBACK_PROVIDERS" default:"nager-date,calendarific,abstract" help:"comma-separated fallback order"`
	RateLimitPolicy    string        `arg:"--rate-limit-policy,env:RATE_LIMIT_POLICY" default:"stop" help:"stop or skip when a fallback is out of quota"`
	ProviderTimeout    time.Duration `arg:"--provider-timeout,env:PROVIDER_TIMEOUT" default:"10s"`
	SearchConcurrency  int           `arg:"--search-concurrency,env:SEARCH_CONCURRENCY" default:"1" help:"parallel country lookups per search"`
	SearchRate         float64       `arg:"--search-rate,env:SEARCH_RATE" default:"0" help:"max country lookups per second during a search; 0 is unlimited"`
}

// Settings validates p and converts it to service settings.
func (p Providers) Settings() (holiday.Settings, error) {
	s := holiday.DefaultSettings()

	primary, err := holiday.ParseProvider(p.PrimaryProvider)
	if err != nil {
		return s, fmt.Errorf("primary provider: %w", err)
	}
	s.Primary = primary

	s.Fallbacks = s.Fallbacks[:0]
	for _, name := range strings.Split(p.FallbackProviders, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fb, err := holiday.ParseProvider(name)
		if err != nil {
			return s, fmt.Errorf("fallback providers: %w", err)
		}
		s.Fallbacks = append(s.Fallbacks, fb)
	}

	policy, err := holiday.ParseRateLimitPolicy(p.RateLimitPolicy)
	if err != nil {
		return s, err
	}
	s.Policy = policy

	quotas := []struct {
		provider holiday.Provider
		requests int
		period   time.Duration
	}{
		{holiday.NagerDate, p.NagerQuota, p.NagerPeriod},
		{holiday.Calendarific, p.CalendarificQuota, p.CalendarificPeriod},
		{holiday.Abstract, p.AbstractQuota, p.AbstractPeriod},
	}
	for _, q := range quotas {
		if q.requests < 1 || q.period <= 0 {
			return s, fmt.Errorf("%s quota needs at least one request per positive period", q.provider.Slug())
		}
		s.Quotas[q.provider] = holiday.Quota{Requests: q.requests, Period: q.period}
	}

	if p.ProviderTimeout <= 0 {
		return s, errors.New("provider timeout must be positive")
	}
	s.RequestTimeout = p.ProviderTimeout

	if p.SearchConcurrency < 1 {
		return s, errors.New("search concurrency must be at least 1")
	}
	s.SearchConcurrency = p.SearchConcurrency

	if p.SearchRate < 0 {
		return s, errors.New("search rate must not be negative")
	}
	s.SearchRate = p.SearchRate

	return s, nil
}

// Clients builds the provider clients.
func (p Providers) Clients() (*holiday.NagerClient, *holiday.CalendarificClient, *holiday.AbstractClient) {
	return holiday.NewNagerClient(p.NagerURL),
		holiday.NewCalendarificClient(p.CalendarificURL, p.CalendarificAPIKey),
		holiday.NewAbstractClient(p.AbstractURL, p.AbstractAPIKey)
}

// Server is the configuration of the HTTP server.
type Server struct {
	Port             string `arg:"--port,env:PORT" default:"8080"`
	BearerToken      string `arg:"--bearer-token,env:BEARER_TOKEN,required" help:"token clients must present"`
	DatabaseURL      string `arg:"--database-url,env:DATABASE_URL" help:"PostgreSQL URL; the holiday archive is disabled without one"`
	RedisURL         string `arg:"--redis-url,env:REDIS_URL" help:"Redis URL; cache and rate limits stay in process without one"`
	MigrationsDir    string `arg:"--migrations-dir,env:MIGRATIONS_DIR" default:"migrations"`
	InboundRateLimit int    `arg:"--inbound-rate-limit,env:INBOUND_RATE_LIMIT" default:"60" help:"requests per minute per client IP"`
	Providers
}

// Version is reported by --version.
func (Server) Version() string { return "holiday-server 1.0" }

// LoadServer parses args (without the program name) and the environment.
// It returns arg.ErrHelp or arg.ErrVersion when those flags are given.
func LoadServer(args []string) (Server, *arg.Parser, error) {
	var cfg Server
	p, err := arg.NewParser(arg.Config{Program: "holiday-server"}, &cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("building argument parser: %w", err)
	}
	if err := p.Parse(args); err != nil {
		return cfg, p, err
	}
	if strings.TrimSpace(cfg.BearerToken) == "" {
		return cfg, p, errors.New("bearer token must not be empty")
	}
	if cfg.InboundRateLimit < 1 {
		return cfg, p, errors.New("inbound rate limit must be at least 1")
	}
	if _, err := cfg.Settings(); err != nil {
		return cfg, p, fmt.Errorf("invalid provider configuration: %w", err)
	}
	return cfg, p, nil
}
