package holiday

import "strings"

// placeholderFlag is shown for codes missing from the country table.
const placeholderFlag = "🏳️"

var countryNames = map[string]string{
	"AD": "Andorra",
	"AL": "Albania",
	"AM": "Armenia",
	"AR": "Argentina",
	"AT": "Austria",
	"AU": "Australia",
	"BE": "Belgium",
	"BR": "Brazil",
	"BW": "Botswana",
	"CA": "Canada",
	"CH": "Switzerland",
	"CN": "China",
	"CO": "Colombia",
	"DE": "Germany",
	"DK": "Denmark",
	"ES": "Spain",
	"FI": "Finland",
	"FR": "France",
	"GB": "United Kingdom",
	"IE": "Ireland",
	"IN": "India",
	"IT": "Italy",
	"JP": "Japan",
	"KR": "South Korea",
	"LS": "Lesotho",
	"MX": "Mexico",
	"NI": "Nicaragua",
	"NL": "Netherlands",
	"NO": "Norway",
	"NZ": "New Zealand",
	"PL": "Poland",
	"PT": "Portugal",
	"RU": "Russia",
	"SE": "Sweden",
	"US": "United States",
	"UY": "Uruguay",
	"VE": "Venezuela",
	"ZA": "South Africa",
}

// fallbackCountryCodes is served by AvailableCountries when no provider answers.
var fallbackCountryCodes = []string{
	"AD", "AL", "AM", "AR", "AT", "AU", "BE", "BW", "BR", "CA",
	"CN", "CO", "DK", "FI", "FR", "DE", "IN", "IT", "JP", "LS",
	"MX", "NI", "NL", "NO", "ES", "SE", "GB", "US", "UY", "VE",
}

// popularCountryCodes are searched when a query names no country.
var popularCountryCodes = []string{"US", "GB", "CA", "AU", "DE", "FR", "JP", "IN", "BR", "MX", "IT", "ES"}

// CountryName returns the display name for code, or code itself when unknown.
func CountryName(code string) string {
	if name, ok := countryNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// CountryFlag returns the regional-indicator flag for a known code and the
// placeholder flag otherwise.
func CountryFlag(code string) string {
	code = strings.ToUpper(code)
	if _, ok := countryNames[code]; !ok {
		return placeholderFlag
	}
	var b strings.Builder
	for _, r := range code {
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}

// FallbackCountries returns the built-in country list.
func FallbackCountries() []Country {
	out := make([]Country, 0, len(fallbackCountryCodes))
	for _, code := range fallbackCountryCodes {
		out = append(out, Country{Code: code, Name: CountryName(code), Flag: CountryFlag(code)})
	}
	return out
}

// normalizeCountryCode upper-cases and validates an ISO 3166-1 alpha-2 code.
func normalizeCountryCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return "", false
	}
	for i := 0; i < 2; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", false
		}
	}
	return code, true
}
