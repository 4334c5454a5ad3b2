package holiday

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies one of the supported upstream holiday sources.
// The set is closed: every per-provider switch in this package handles
// each value explicitly.
type Provider int

const (
	NagerDate Provider = iota + 1
	Calendarific
	Abstract
)

// Providers lists every supported provider in declaration order.
var Providers = []Provider{NagerDate, Calendarific, Abstract}

// ParseProvider maps a configuration slug to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nager-date", "nager":
		return NagerDate, nil
	case "calendarific":
		return Calendarific, nil
	case "abstract":
		return Abstract, nil
	}
	return 0, fmt.Errorf("unknown holiday provider %q", s)
}

// Slug is the stable identifier used in configuration and as the rate-limit key.
func (p Provider) Slug() string {
	switch p {
	case NagerDate:
		return "nager-date"
	case Calendarific:
		return "calendarific"
	case Abstract:
		return "abstract"
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// Name is the display name reported in responses.
func (p Provider) Name() string {
	switch p {
	case NagerDate:
		return "Nager.Date"
	case Calendarific:
		return "Calendarific"
	case Abstract:
		return "Abstract API"
	}
	return p.Slug()
}

func (p Provider) String() string { return p.Slug() }

// Quota is a fixed-window request allowance.
type Quota struct {
	Requests int
	Period   time.Duration
}

// RateLimitPolicy decides what the fallback walk does when a provider's
// quota is exhausted.
type RateLimitPolicy string

const (
	// PolicyStop aborts the lookup with a RateLimitError.
	PolicyStop RateLimitPolicy = "stop"
	// PolicySkip records the denial and moves on to the next fallback.
	PolicySkip RateLimitPolicy = "skip"
)

// ParseRateLimitPolicy accepts "stop" or "skip"; empty means stop.
func ParseRateLimitPolicy(s string) (RateLimitPolicy, error) {
	switch RateLimitPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStop:
		return PolicyStop, nil
	case PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown rate limit policy %q (want stop or skip)", s)
}

// Settings configures provider selection for a Service.
type Settings struct {
	Primary   Provider
	Fallbacks []Provider
	Quotas    map[Provider]Quota
	Policy    RateLimitPolicy

	// RequestTimeout bounds a single provider call.
	RequestTimeout time.Duration

	SearchConcurrency int
	// SearchRate is the maximum number of per-country lookups started per
	// second during a multi-country search. Zero disables pacing.
	SearchRate float64
}

// DefaultQuotas are the published free-tier allowances.
func DefaultQuotas() map[Provider]Quota {
	return map[Provider]Quota{
		NagerDate:    {Requests: 100000, Period: 24 * time.Hour},
		Calendarific: {Requests: 1000, Period: 30 * 24 * time.Hour},
		Abstract:     {Requests: 1000, Period: 30 * 24 * time.Hour},
	}
}

// DefaultSettings uses Nager.Date as primary and walks every provider as fallback.
func DefaultSettings() Settings {
	return Settings{
		Primary:           NagerDate,
		Fallbacks:         []Provider{NagerDate, Calendarific, Abstract},
		Quotas:            DefaultQuotas(),
		Policy:            PolicyStop,
		RequestTimeout:    10 * time.Second,
		SearchConcurrency: 1,
	}
}

// quota returns the configured allowance for p, falling back to the defaults.
func (s Settings) quota(p Provider) Quota {
	if q, ok := s.Quotas[p]; ok && q.Requests > 0 && q.Period > 0 {
		return q
	}
	return DefaultQuotas()[p]
}

// fallbackChain is the configured fallback order without the primary and
// without repeats.
func (s Settings) fallbackChain() []Provider {
	seen := map[Provider]bool{s.Primary: true}
	chain := make([]Provider, 0, len(s.Fallbacks))
	for _, p := range s.Fallbacks {
		if seen[p] {
			continue
		}
		seen[p] = true
		chain = append(chain, p)
	}
	return chain
}
