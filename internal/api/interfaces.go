package api

import (
	"context"

	"github.com/neexbeast/holiday-aggregator/internal/holiday"
	"github.com/neexbeast/holiday-aggregator/internal/storage"
)

// HolidayService defines the aggregation operations needed by handlers.
type HolidayService interface {
	HolidaysByCountry(ctx context.Context, countryCode string, opts holiday.SearchOptions) (holiday.Response[[]holiday.Holiday], error)
	AvailableCountries(ctx context.Context) holiday.Response[[]holiday.Country]
	SearchHolidays(ctx context.Context, query, countryCode string) (holiday.Response[[]holiday.Holiday], error)
	LongWeekends(ctx context.Context, countryCode string, year int) (holiday.Response[[]holiday.LongWeekend], error)
	NextPublicHolidaysWorldwide(ctx context.Context) (holiday.Response[[]holiday.Holiday], error)
	NextPublicHolidays(ctx context.Context, countryCode string) (holiday.Response[[]holiday.Holiday], error)
	IsPublicHoliday(ctx context.Context, date, countryCode string) (bool, error)
	CacheStats(ctx context.Context) holiday.CacheStats
	ClearCache(ctx context.Context)
	RateLimitStatus(ctx context.Context, p holiday.Provider) holiday.RateLimitStatus
}

// HolidayArchive defines the storage operations needed by the sync handlers.
type HolidayArchive interface {
	UpsertHolidays(ctx context.Context, provider string, holidays []holiday.Holiday) (storage.SyncResult, error)
	ListHolidays(ctx context.Context, countryCode string, year int) ([]storage.ArchivedHoliday, error)
}

// Pinger is a backend the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}
