package holiday

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SearchHolidays finds holidays of the current year whose name, local name or
// description contains query, case-insensitively. An empty countryCode
// searches the popular countries. Countries whose lookup fails are skipped.
//
// Results are deduplicated on (name, date), keeping the first occurrence in
// country order, and sorted with exact name matches first, then by date.
func (s *Service) SearchHolidays(ctx context.Context, query, countryCode string) (Response[[]Holiday], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response[[]Holiday]{}, fmt.Errorf("%w: empty search query", ErrInvalidOptions)
	}
	needle := strings.ToLower(query)

	codes := popularCountryCodes
	scope := "all"
	if strings.TrimSpace(countryCode) != "" {
		code, err := validCountry(countryCode)
		if err != nil {
			return Response[[]Holiday]{}, err
		}
		codes = []string{code}
		scope = code
	}

	key := "search_" + needle + "_" + scope
	var cached []Holiday
	if s.cacheGet(ctx, key, &cached) {
		return Response[[]Holiday]{Data: cached, Provider: ProviderCache, Cached: true}, nil
	}

	year := s.now().Year()
	perCountry := make([][]Holiday, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.SearchConcurrency)
	var paceErr error
	for i, code := range codes {
		if s.pacer != nil {
			// Wait also fails early when the next slot is past ctx's deadline.
			if paceErr = s.pacer.Wait(ctx); paceErr != nil {
				break
			}
		}
		g.Go(func() error {
			resp, err := s.HolidaysByCountry(gctx, code, SearchOptions{Year: year})
			if err != nil {
				s.log.Warn("search skipped country", "country", code, "err", err)
				return nil
			}
			perCountry[i] = matchHolidays(resp.Data, needle)
			return nil
		})
	}
	_ = g.Wait()

	// An interrupted search is incomplete and must not be cached.
	if err := ctx.Err(); err != nil {
		return Response[[]Holiday]{}, err
	}
	if paceErr != nil {
		return Response[[]Holiday]{}, fmt.Errorf("pacing country lookups: %w", paceErr)
	}

	results := rankMatches(dedupe(perCountry), needle)
	s.cachePut(ctx, key, results, searchTTL)
	return Response[[]Holiday]{Data: results, Provider: ProviderSearch}, nil
}

func matchHolidays(holidays []Holiday, needle string) []Holiday {
	var out []Holiday
	for _, h := range holidays {
		if strings.Contains(strings.ToLower(h.Name), needle) ||
			strings.Contains(strings.ToLower(h.LocalName), needle) ||
			strings.Contains(strings.ToLower(h.Description), needle) {
			out = append(out, h)
		}
	}
	return out
}

func dedupe(groups [][]Holiday) []Holiday {
	type nameDate struct{ name, date string }
	seen := make(map[nameDate]struct{})
	out := []Holiday{}
	for _, group := range groups {
		for _, h := range group {
			k := nameDate{h.Name, h.Date}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// rankMatches puts exact name matches first and orders by date within each
// group. Dates are YYYY-MM-DD so they compare as strings.
func rankMatches(holidays []Holiday, needle string) []Holiday {
	sort.SliceStable(holidays, func(i, j int) bool {
		ei := strings.ToLower(holidays[i].Name) == needle
		ej := strings.ToLower(holidays[j].Name) == needle
		if ei != ej {
			return ei
		}
		return holidays[i].Date < holidays[j].Date
	})
	return holidays
}
