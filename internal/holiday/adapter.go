package holiday

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ---- provider wire shapes ----

// NagerHoliday is a record from Nager.Date /PublicHolidays and friends.
type NagerHoliday struct {
	Date        string   `json:"date"`
	LocalName   string   `json:"localName"`
	Name        string   `json:"name"`
	CountryCode string   `json:"countryCode"`
	Fixed       bool     `json:"fixed"`
	Global      bool     `json:"global"`
	Counties    []string `json:"counties"`
	LaunchYear  *int     `json:"launchYear"`
	Types       []string `json:"types"`
}

// NagerCountry is a record from Nager.Date /AvailableCountries.
type NagerCountry struct {
	CountryCode string `json:"countryCode"`
	Name        string `json:"name"`
}

// NagerLongWeekend is a record from Nager.Date /LongWeekend.
type NagerLongWeekend struct {
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	DayCount      int    `json:"dayCount"`
	NeedBridgeDay bool   `json:"needBridgeDay"`
}

// CalendarificResponse is the envelope Calendarific wraps every payload in.
// Response stays raw because the API sends [] instead of an object when empty.
type CalendarificResponse struct {
	Meta struct {
		Code int `json:"code"`
	} `json:"meta"`
	Response json.RawMessage `json:"response"`
}

// CalendarificHoliday is one entry of response.holidays.
type CalendarificHoliday struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Country     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"country"`
	Date struct {
		ISO      string `json:"iso"`
		Datetime struct {
			Year  int `json:"year"`
			Month int `json:"month"`
			Day   int `json:"day"`
		} `json:"datetime"`
	} `json:"date"`
	Type        []string `json:"type"`
	PrimaryType string   `json:"primary_type"`
	URLID       string   `json:"urlid"`
	Locations   string   `json:"locations"`
}

// CalendarificCountry is one entry of response.countries.
type CalendarificCountry struct {
	CountryName string `json:"country_name"`
	ISO3166     string `json:"iso-3166"`
	ISO3166Alt  string `json:"iso_3166"`
}

// AbstractHoliday is a record from the Abstract holidays API.
type AbstractHoliday struct {
	Name        string `json:"name"`
	NameLocal   string `json:"name_local"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Country     string `json:"country"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	DateYear    string `json:"date_year"`
	DateMonth   string `json:"date_month"`
	DateDay     string `json:"date_day"`
	WeekDay     string `json:"week_day"`
}

// ---- category tables ----

var calendarificTypes = map[string]Type{
	"National holiday":  TypePublic,
	"Public holiday":    TypePublic,
	"Local holiday":     TypePublic,
	"Religious holiday": TypeReligious,
	"Observance":        TypeObservance,
	"Season":            TypeObservance,
}

var abstractTypes = map[string]Type{
	"National":   TypeNational,
	"Public":     TypePublic,
	"Religious":  TypeReligious,
	"Observance": TypeObservance,
}

// nagerTypePrecedence is checked in order against a record's types list.
var nagerTypePrecedence = []struct {
	raw  string
	kind Type
}{
	{"Public", TypePublic},
	{"National", TypeNational},
	{"Religious", TypeReligious},
}

// MapCategory maps a provider's raw category to a Type. Unknown categories
// map to TypeObservance.
func MapCategory(p Provider, raw string) Type {
	var table map[string]Type
	switch p {
	case NagerDate:
		return mapNagerTypes([]string{raw})
	case Calendarific:
		table = calendarificTypes
	case Abstract:
		table = abstractTypes
	}
	if t, ok := table[raw]; ok {
		return t
	}
	return TypeObservance
}

func mapNagerTypes(types []string) Type {
	for _, c := range nagerTypePrecedence {
		if slices.Contains(types, c.raw) {
			return c.kind
		}
	}
	return TypeObservance
}

// ---- holiday adapters ----

// idSequencer builds "<ns>_<CC>_<date>_<n>" ids where n counts holidays
// already seen on the same date within one batch.
type idSequencer struct {
	ns   string
	seen map[string]int
}

func newIDSequencer(ns string) *idSequencer {
	return &idSequencer{ns: ns, seen: make(map[string]int)}
}

func (s *idSequencer) next(countryCode, date string) string {
	k := countryCode + "_" + date
	n := s.seen[k]
	s.seen[k] = n + 1
	return fmt.Sprintf("%s_%s_%d", s.ns, k, n)
}

// AdaptNagerHolidays normalizes Nager.Date records. countryCode is used for
// records that carry no valid code of their own and may be empty.
func AdaptNagerHolidays(raw []NagerHoliday, countryCode string) []Holiday {
	ids := newIDSequencer("nager")
	out := make([]Holiday, 0, len(raw))
	for _, r := range raw {
		date, ok := normalizeDate(r.Date)
		if !ok {
			continue
		}
		code, ok := normalizeCountryCode(r.CountryCode)
		if !ok {
			if code, ok = normalizeCountryCode(countryCode); !ok {
				continue
			}
		}
		country := CountryName(code)
		scope := "regional"
		if r.Global {
			scope = "national"
		}
		fixed := r.Fixed

		out = append(out, Holiday{
			ID:          ids.next(code, date),
			Name:        r.Name,
			LocalName:   orDefault(r.LocalName, r.Name),
			Date:        date,
			Country:     country,
			CountryCode: code,
			Type:        mapNagerTypes(r.Types),
			Description: fmt.Sprintf("%s is a %s holiday in %s.", r.Name, scope, country),
			Global:      r.Global,
			Fixed:       &fixed,
			LaunchYear:  r.LaunchYear,
			Counties:    r.Counties,
		})
	}
	return out
}

// AdaptCalendarificHolidays normalizes a Calendarific holidays envelope.
// A non-200 meta code or a missing holidays array yields an empty list.
func AdaptCalendarificHolidays(resp CalendarificResponse, countryCode string) []Holiday {
	if resp.Meta.Code != 200 {
		return []Holiday{}
	}
	var body struct {
		Holidays []CalendarificHoliday `json:"holidays"`
	}
	if !decodeObject(resp.Response, &body) {
		return []Holiday{}
	}

	ids := newIDSequencer("cal")
	out := make([]Holiday, 0, len(body.Holidays))
	for _, r := range body.Holidays {
		date, ok := normalizeDate(r.Date.ISO)
		if !ok {
			date, ok = dateFromParts(r.Date.Datetime.Year, r.Date.Datetime.Month, r.Date.Datetime.Day)
		}
		if !ok {
			continue
		}
		code, ok := normalizeCountryCode(r.Country.ID)
		if !ok {
			if code, ok = normalizeCountryCode(countryCode); !ok {
				continue
			}
		}

		out = append(out, Holiday{
			ID:          ids.next(code, date),
			Name:        r.Name,
			LocalName:   r.Name,
			Date:        date,
			Country:     orDefault(r.Country.Name, CountryName(code)),
			CountryCode: code,
			Type:        MapCategory(Calendarific, r.PrimaryType),
			Description: r.Description,
			Global:      slices.Contains(r.Type, "National holiday"),
		})
	}
	return out
}

// AdaptAbstractHolidays normalizes Abstract API records.
func AdaptAbstractHolidays(raw []AbstractHoliday, countryCode string) []Holiday {
	code, ok := normalizeCountryCode(countryCode)
	if !ok {
		return []Holiday{}
	}

	ids := newIDSequencer("abs")
	out := make([]Holiday, 0, len(raw))
	for _, r := range raw {
		date, ok := abstractDate(r)
		if !ok {
			continue
		}
		description := r.Description
		if description == "" {
			description = fmt.Sprintf("%s is observed in %s.", r.Name, orDefault(r.Country, CountryName(code)))
		}

		out = append(out, Holiday{
			ID:          ids.next(code, date),
			Name:        r.Name,
			LocalName:   orDefault(r.NameLocal, r.Name),
			Date:        date,
			Country:     orDefault(r.Country, CountryName(code)),
			CountryCode: code,
			Type:        MapCategory(Abstract, r.Type),
			Description: description,
			Global:      r.Type == "National",
		})
	}
	return out
}

// ---- country and long weekend adapters ----

// AdaptNagerCountries normalizes Nager.Date countries, dropping invalid codes.
func AdaptNagerCountries(raw []NagerCountry) []Country {
	out := make([]Country, 0, len(raw))
	for _, r := range raw {
		code, ok := normalizeCountryCode(r.CountryCode)
		if !ok {
			continue
		}
		out = append(out, Country{Code: code, Name: orDefault(r.Name, CountryName(code)), Flag: CountryFlag(code)})
	}
	return out
}

// AdaptCalendarificCountries normalizes a Calendarific countries envelope.
func AdaptCalendarificCountries(resp CalendarificResponse) []Country {
	if resp.Meta.Code != 200 {
		return []Country{}
	}
	var body struct {
		Countries []CalendarificCountry `json:"countries"`
	}
	if !decodeObject(resp.Response, &body) {
		return []Country{}
	}

	out := make([]Country, 0, len(body.Countries))
	for _, r := range body.Countries {
		code, ok := normalizeCountryCode(orDefault(r.ISO3166, r.ISO3166Alt))
		if !ok {
			continue
		}
		out = append(out, Country{Code: code, Name: orDefault(r.CountryName, CountryName(code)), Flag: CountryFlag(code)})
	}
	return out
}

// AdaptNagerLongWeekends attaches country identity to Nager.Date long weekends.
func AdaptNagerLongWeekends(raw []NagerLongWeekend, countryCode string) []LongWeekend {
	out := make([]LongWeekend, 0, len(raw))
	for _, r := range raw {
		out = append(out, LongWeekend{
			StartDate:     r.StartDate,
			EndDate:       r.EndDate,
			DayCount:      r.DayCount,
			NeedBridgeDay: r.NeedBridgeDay,
			Country:       CountryName(countryCode),
			CountryCode:   countryCode,
		})
	}
	return out
}

// ---- helpers ----

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// normalizeDate accepts YYYY-MM-DD optionally followed by a time component.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return "", false
	}
	d := s[:len(DateLayout)]
	if _, err := time.Parse(DateLayout, d); err != nil {
		return "", false
	}
	return d, true
}

func dateFromParts(year, month, day int) (string, bool) {
	if year <= 0 || month < 1 || month > 12 || day < 1 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", false
	}
	return t.Format(DateLayout), true
}

// abstractDate prefers the split date fields and falls back to parsing the
// MM/DD/YYYY or ISO date string.
func abstractDate(r AbstractHoliday) (string, bool) {
	y, errY := strconv.Atoi(strings.TrimSpace(r.DateYear))
	m, errM := strconv.Atoi(strings.TrimSpace(r.DateMonth))
	d, errD := strconv.Atoi(strings.TrimSpace(r.DateDay))
	if errY == nil && errM == nil && errD == nil {
		if date, ok := dateFromParts(y, m, d); ok {
			return date, true
		}
	}
	if t, err := time.Parse("01/02/2006", strings.TrimSpace(r.Date)); err == nil {
		return t.Format(DateLayout), true
	}
	return normalizeDate(r.Date)
}

// decodeObject unmarshals raw into dst only when raw is a JSON object.
func decodeObject(raw json.RawMessage, dst any) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
