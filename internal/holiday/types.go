package holiday

import "time"

// DateLayout is the calendar-date format used for every Holiday.Date.
const DateLayout = "2006-01-02"

// Type is the normalized holiday category.
type Type string

const (
	TypePublic     Type = "public"
	TypeReligious  Type = "religious"
	TypeObservance Type = "observance"
	TypeNational   Type = "national"
)

// Valid reports whether t is one of the four normalized categories.
func (t Type) Valid() bool {
	switch t {
	case TypePublic, TypeReligious, TypeObservance, TypeNational:
		return true
	}
	return false
}

// Holiday is the provider-agnostic holiday record.
type Holiday struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	LocalName   string   `json:"localName"`
	Date        string   `json:"date"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	Type        Type     `json:"type"`
	Description string   `json:"description,omitempty"`
	Global      bool     `json:"global"`
	Fixed       *bool    `json:"fixed,omitempty"`
	LaunchYear  *int     `json:"launchYear,omitempty"`
	Counties    []string `json:"counties,omitempty"`
}

// Month returns the calendar month of the holiday, or 0 if Date is malformed.
func (h Holiday) Month() int {
	t, err := time.Parse(DateLayout, h.Date)
	if err != nil {
		return 0
	}
	return int(t.Month())
}

// Country is a country that providers publish holidays for.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

// LongWeekend is a run of consecutive days off.
type LongWeekend struct {
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	DayCount      int    `json:"dayCount"`
	NeedBridgeDay bool   `json:"needBridgeDay"`
	Country       string `json:"country"`
	CountryCode   string `json:"countryCode"`
}

// SearchOptions narrows a country holiday lookup. Zero values mean "not set".
type SearchOptions struct {
	Year  int  `json:"year,omitempty"`
	Month int  `json:"month,omitempty"`
	Type  Type `json:"type,omitempty"`
	Limit int  `json:"limit,omitempty"`
}

// RateLimitInfo reports the quota left for the provider that served a response.
type RateLimitInfo struct {
	Remaining int        `json:"remaining"`
	ResetTime *time.Time `json:"resetTime"`
}

// RateLimitStatus is the diagnostic view of a provider's quota.
type RateLimitStatus struct {
	Provider    string     `json:"provider"`
	Remaining   int        `json:"remaining"`
	ResetTime   *time.Time `json:"resetTime"`
	MaxRequests int        `json:"maxRequests"`
}

// CacheStats mirrors the cache's surviving entry count and keys.
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Response wraps the data returned by every Service lookup.
// Provider is the display name of the serving provider or one of the
// sentinels ProviderCache, ProviderFallback, ProviderSearch, ProviderTagError.
type Response[T any] struct {
	Data      T              `json:"data"`
	Provider  string         `json:"provider"`
	Cached    bool           `json:"cached"`
	RateLimit *RateLimitInfo `json:"rateLimit,omitempty"`
}

// Provider tags that do not name a remote source.
const (
	ProviderCache    = "cache"
	ProviderFallback = "fallback"
	ProviderSearch   = "search"
	ProviderTagError = "error"
)
