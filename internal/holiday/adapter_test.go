package holiday_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/holiday-aggregator/internal/holiday"
)

func intPtr(v int) *int { return &v }

// ---- Nager.Date ----

func TestAdaptNagerHolidays(t *testing.T) {
	raw := []holiday.NagerHoliday{
		{Date: "2024-01-01", LocalName: "Neujahr", Name: "New Year's Day", CountryCode: "DE",
			Fixed: true, Global: true, LaunchYear: intPtr(1967), Types: []string{"Public"}},
		{Date: "2024-01-06", LocalName: "", Name: "Epiphany", CountryCode: "DE",
			Global: false, Counties: []string{"DE-BW", "DE-BY"}, Types: []string{"Religious", "Public"}},
	}

	got := holiday.AdaptNagerHolidays(raw, "DE")
	require.Len(t, got, 2)

	ny := got[0]
	assert.Equal(t, "nager_DE_2024-01-01_0", ny.ID)
	assert.Equal(t, "Neujahr", ny.LocalName)
	assert.Equal(t, "Germany", ny.Country)
	assert.Equal(t, holiday.TypePublic, ny.Type)
	assert.Equal(t, "New Year's Day is a national holiday in Germany.", ny.Description)
	require.NotNil(t, ny.Fixed)
	assert.True(t, *ny.Fixed)
	assert.Equal(t, 1967, *ny.LaunchYear)

	ep := got[1]
	assert.Equal(t, "Epiphany", ep.LocalName, "empty local name falls back to name")
	assert.Equal(t, holiday.TypePublic, ep.Type, "Public outranks Religious")
	assert.Equal(t, "Epiphany is a regional holiday in Germany.", ep.Description)
	assert.Equal(t, []string{"DE-BW", "DE-BY"}, ep.Counties)
	assert.False(t, ep.Global)
}

func TestAdaptNagerHolidays_SameDateOrdinals(t *testing.T) {
	raw := []holiday.NagerHoliday{
		{Date: "2024-05-01", Name: "Labour Day", CountryCode: "XX"},
		{Date: "2024-05-01", Name: "Other", CountryCode: "XX"},
	}

	got := holiday.AdaptNagerHolidays(raw, "US")
	require.Len(t, got, 2)
	assert.Equal(t, "nager_XX_2024-05-01_0", got[0].ID)
	assert.Equal(t, "nager_XX_2024-05-01_1", got[1].ID)
	assert.Equal(t, "XX", got[0].Country, "unknown codes use the code as name")
}

func TestAdaptNagerHolidays_DropsInvalid(t *testing.T) {
	raw := []holiday.NagerHoliday{
		{Date: "not-a-date", Name: "Broken"},
		{Date: "2024-02-30", Name: "Impossible"},
		{Date: "2024-03-01", Name: "No code", CountryCode: ""},
	}

	got := holiday.AdaptNagerHolidays(raw, "")
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestAdaptNagerHolidays_UsesRequestedCountryWhenMissing(t *testing.T) {
	got := holiday.AdaptNagerHolidays([]holiday.NagerHoliday{{Date: "2024-03-01", Name: "X"}}, "fr")
	require.Len(t, got, 1)
	assert.Equal(t, "FR", got[0].CountryCode)
	assert.Equal(t, "France", got[0].Country)
}

func TestMapCategory_Nager(t *testing.T) {
	assert.Equal(t, holiday.TypeNational, holiday.MapCategory(holiday.NagerDate, "National"))
	assert.Equal(t, holiday.TypeReligious, holiday.MapCategory(holiday.NagerDate, "Religious"))
	assert.Equal(t, holiday.TypeObservance, holiday.MapCategory(holiday.NagerDate, "Bank"))
	assert.Equal(t, holiday.TypeObservance, holiday.MapCategory(holiday.NagerDate, "Optional"))
}

func TestAdaptNagerCountries(t *testing.T) {
	got := holiday.AdaptNagerCountries([]holiday.NagerCountry{
		{CountryCode: "US", Name: "United States"},
		{CountryCode: "zz", Name: "Zedland"},
		{CountryCode: "XYZ", Name: "Broken"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, holiday.Country{Code: "US", Name: "United States", Flag: "🇺🇸"}, got[0])
	assert.Equal(t, "ZZ", got[1].Code)
	assert.Equal(t, "🏳️", got[1].Flag, "codes outside the built-in table get the placeholder flag")
}

func TestAdaptNagerLongWeekends(t *testing.T) {
	got := holiday.AdaptNagerLongWeekends([]holiday.NagerLongWeekend{
		{StartDate: "2024-03-29", EndDate: "2024-04-01", DayCount: 4, NeedBridgeDay: false},
	}, "GB")

	require.Len(t, got, 1)
	assert.Equal(t, holiday.LongWeekend{
		StartDate: "2024-03-29", EndDate: "2024-04-01", DayCount: 4,
		Country: "United Kingdom", CountryCode: "GB",
	}, got[0])
}

// ---- Calendarific ----

func calendarificEnvelope(t *testing.T, code int, response string) holiday.CalendarificResponse {
	t.Helper()
	var resp holiday.CalendarificResponse
	body := `{"meta":{"code":` + jsonInt(code) + `},"response":` + response + `}`
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestAdaptCalendarificHolidays(t *testing.T) {
	resp := calendarificEnvelope(t, 200, `{"holidays":[
		{"name":"Christmas Day","description":"Christmas Day is a public holiday","country":{"id":"us","name":"United States"},
		 "date":{"iso":"2024-12-25","datetime":{"year":2024,"month":12,"day":25}},
		 "type":["National holiday"],"primary_type":"Federal Holiday"},
		{"name":"March Equinox","description":"","country":{"id":"us","name":"United States"},
		 "date":{"iso":"2024-03-20T03:06:21-00:00","datetime":{"year":2024,"month":3,"day":20}},
		 "type":["Season"],"primary_type":"Season"},
		{"name":"Diwali","description":"","country":{"id":"","name":""},
		 "date":{"iso":"","datetime":{"year":2024,"month":11,"day":1}},
		 "type":["Religious holiday"],"primary_type":"Religious holiday"}
	]}`)

	got := holiday.AdaptCalendarificHolidays(resp, "US")
	require.Len(t, got, 3)

	assert.Equal(t, "cal_US_2024-12-25_0", got[0].ID)
	assert.True(t, got[0].Global)
	assert.Equal(t, holiday.TypeObservance, got[0].Type, "unmapped primary type")
	assert.Equal(t, "Christmas Day", got[0].LocalName)

	assert.Equal(t, "2024-03-20", got[1].Date, "time component is dropped")
	assert.Equal(t, holiday.TypeObservance, got[1].Type)
	assert.False(t, got[1].Global)

	assert.Equal(t, "2024-11-01", got[2].Date, "date rebuilt from datetime parts")
	assert.Equal(t, "US", got[2].CountryCode)
	assert.Equal(t, "United States", got[2].Country)
	assert.Equal(t, holiday.TypeReligious, got[2].Type)
}

func TestAdaptCalendarificHolidays_Malformed(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"error code", 401, `{"holidays":[{"name":"x","date":{"iso":"2024-01-01"}}]}`},
		{"empty array response", 200, `[]`},
		{"missing holidays", 200, `{}`},
		{"holidays not an array", 200, `{"holidays":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := holiday.AdaptCalendarificHolidays(calendarificEnvelope(t, tt.code, tt.body), "US")
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestMapCategory_Calendarific(t *testing.T) {
	tests := map[string]holiday.Type{
		"National holiday":  holiday.TypePublic,
		"Public holiday":    holiday.TypePublic,
		"Local holiday":     holiday.TypePublic,
		"Religious holiday": holiday.TypeReligious,
		"Observance":        holiday.TypeObservance,
		"Season":            holiday.TypeObservance,
		"Clock change/DST":  holiday.TypeObservance,
	}
	for raw, want := range tests {
		assert.Equal(t, want, holiday.MapCategory(holiday.Calendarific, raw), raw)
	}
}

func TestAdaptCalendarificCountries(t *testing.T) {
	resp := calendarificEnvelope(t, 200, `{"countries":[
		{"country_name":"Afghanistan","iso-3166":"AF"},
		{"country_name":"Germany","iso_3166":"de"},
		{"country_name":"Nowhere","iso-3166":""}
	]}`)

	got := holiday.AdaptCalendarificCountries(resp)
	require.Len(t, got, 2)
	assert.Equal(t, "AF", got[0].Code)
	assert.Equal(t, holiday.Country{Code: "DE", Name: "Germany", Flag: "🇩🇪"}, got[1])
}

// ---- Abstract ----

func TestAdaptAbstractHolidays(t *testing.T) {
	raw := []holiday.AbstractHoliday{
		{Name: "Independence Day", NameLocal: "", Country: "United States", Type: "National",
			Date: "07/04/2024", DateYear: "2024", DateMonth: "07", DateDay: "04"},
		{Name: "Good Friday", NameLocal: "Good Friday", Description: "Christian holiday", Type: "Religious",
			Date: "03/29/2024"},
		{Name: "ISO dated", Type: "Public", Date: "2024-05-27"},
		{Name: "Undated", Type: "Public"},
	}

	got := holiday.AdaptAbstractHolidays(raw, "us")
	require.Len(t, got, 3)

	assert.Equal(t, "abs_US_2024-07-04_0", got[0].ID)
	assert.Equal(t, "Independence Day", got[0].LocalName)
	assert.Equal(t, holiday.TypeNational, got[0].Type)
	assert.True(t, got[0].Global)
	assert.Equal(t, "Independence Day is observed in United States.", got[0].Description)

	assert.Equal(t, "2024-03-29", got[1].Date)
	assert.Equal(t, holiday.TypeReligious, got[1].Type)
	assert.Equal(t, "Christian holiday", got[1].Description)
	assert.False(t, got[1].Global)

	assert.Equal(t, "2024-05-27", got[2].Date)
	assert.Equal(t, "United States", got[2].Country, "country name from the built-in table")
}

func TestAdaptAbstractHolidays_InvalidCountry(t *testing.T) {
	got := holiday.AdaptAbstractHolidays([]holiday.AbstractHoliday{{Name: "x", Date: "01/01/2024"}}, "USA")
	assert.Empty(t, got)
}

func TestMapCategory_Abstract(t *testing.T) {
	assert.Equal(t, holiday.TypePublic, holiday.MapCategory(holiday.Abstract, "Public"))
	assert.Equal(t, holiday.TypeObservance, holiday.MapCategory(holiday.Abstract, "Observance"))
	assert.Equal(t, holiday.TypeObservance, holiday.MapCategory(holiday.Abstract, "Local"))
}

func TestAdaptedDatesAlwaysParse(t *testing.T) {
	hs := holiday.AdaptNagerHolidays([]holiday.NagerHoliday{
		{Date: "2024-02-29", Name: "Leap"},
		{Date: "2023-02-29", Name: "Not leap"},
		{Date: "2024-12-31T23:59:59Z", Name: "With time"},
	}, "US")

	require.Len(t, hs, 2)
	for _, h := range hs {
		assert.NotZero(t, h.Month(), h.Date)
	}
}
