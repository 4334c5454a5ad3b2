package holiday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	httpTimeout = 10 * time.Second
	userAgent   = "holiday-aggregator/1.0"
	maxBodySize = 8 << 20
)

// Default provider base URLs.
const (
	NagerDefaultURL        = "https://date.nager.at/api/v3"
	CalendarificDefaultURL = "https://calendarific.com/api/v2"
	AbstractDefaultURL     = "https://holidays.abstractapi.com/v1"
)

// newHTTPClient returns an http.Client with a 10-second timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// newRequest builds a GET request carrying the service User-Agent.
func newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", redact(rawURL), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// doGet performs a GET request and returns the response body.
// 204 No Content yields a nil body; any other non-200 status, or a body over
// maxBodySize, is an error.
func doGet(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := newRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", redact(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", redact(rawURL), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", redact(rawURL), err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", redact(rawURL), maxBodySize)
	}
	return body, nil
}

// redact hides the api_key query parameter so URLs are safe to log.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// decodeList decodes a JSON array body. Anything that is not a well-formed
// array decodes to an empty list.
func decodeList[T any](body []byte) []T {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// ---- Nager.Date ----

// NagerClient talks to the Nager.Date v3 API (no API key required).
type NagerClient struct {
	baseURL string
	client  *http.Client
}

// NewNagerClient constructs a NagerClient; an empty baseURL selects the public API.
func NewNagerClient(baseURL string) *NagerClient {
	if baseURL == "" {
		baseURL = NagerDefaultURL
	}
	return &NagerClient{baseURL: strings.TrimRight(baseURL, "/"), client: newHTTPClient()}
}

// PublicHolidays fetches /PublicHolidays/{year}/{countryCode}.
func (c *NagerClient) PublicHolidays(ctx context.Context, countryCode string, year int) ([]NagerHoliday, error) {
	endpoint := fmt.Sprintf("%s/PublicHolidays/%d/%s", c.baseURL, year, url.PathEscape(countryCode))
	body, err := doGet(ctx, c.client, endpoint)
	if err != nil {
		return nil, fmt.Errorf("nager.date holidays for %s/%d: %w", countryCode, year, err)
	}
	return decodeList[NagerHoliday](body), nil
}

// AvailableCountries fetches /AvailableCountries.
func (c *NagerClient) AvailableCountries(ctx context.Context) ([]NagerCountry, error) {
	body, err := doGet(ctx, c.client, c.baseURL+"/AvailableCountries")
	if err != nil {
		return nil, fmt.Errorf("nager.date countries: %w", err)
	}
	return decodeList[NagerCountry](body), nil
}

// NextPublicHolidaysWorldwide fetches holidays in the next 7 days worldwide.
func (c *NagerClient) NextPublicHolidaysWorldwide(ctx context.Context) ([]NagerHoliday, error) {
	body, err := doGet(ctx, c.client, c.baseURL+"/NextPublicHolidaysWorldwide")
	if err != nil {
		return nil, fmt.Errorf("nager.date next holidays worldwide: %w", err)
	}
	return decodeList[NagerHoliday](body), nil
}

// NextPublicHolidays fetches the upcoming holidays of one country.
func (c *NagerClient) NextPublicHolidays(ctx context.Context, countryCode string) ([]NagerHoliday, error) {
	body, err := doGet(ctx, c.client, c.baseURL+"/NextPublicHolidays/"+url.PathEscape(countryCode))
	if err != nil {
		return nil, fmt.Errorf("nager.date next holidays for %s: %w", countryCode, err)
	}
	return decodeList[NagerHoliday](body), nil
}

// LongWeekends fetches /LongWeekend/{year}/{countryCode}.
func (c *NagerClient) LongWeekends(ctx context.Context, countryCode string, year int) ([]NagerLongWeekend, error) {
	endpoint := fmt.Sprintf("%s/LongWeekend/%d/%s", c.baseURL, year, url.PathEscape(countryCode))
	body, err := doGet(ctx, c.client, endpoint)
	if err != nil {
		return nil, fmt.Errorf("nager.date long weekends for %s/%d: %w", countryCode, year, err)
	}
	return decodeList[NagerLongWeekend](body), nil
}

// IsPublicHoliday asks /IsTodayPublicHoliday for the given date.
// HTTP 200 means true and any other status false; only transport failures
// are errors.
func (c *NagerClient) IsPublicHoliday(ctx context.Context, date, countryCode string) (bool, error) {
	endpoint := c.baseURL + "/IsTodayPublicHoliday/" + url.PathEscape(countryCode) + "?date=" + url.QueryEscape(date)
	req, err := newRequest(ctx, endpoint)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("nager.date is-holiday for %s on %s: %w", countryCode, date, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	return resp.StatusCode == http.StatusOK, nil
}

// ---- Calendarific ----

// CalendarificClient talks to the Calendarific v2 API.
type CalendarificClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewCalendarificClient constructs a CalendarificClient; an empty baseURL
// selects the public API.
func NewCalendarificClient(baseURL, apiKey string) *CalendarificClient {
	if baseURL == "" {
		baseURL = CalendarificDefaultURL
	}
	return &CalendarificClient{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: newHTTPClient()}
}

// Enabled reports whether an API key is configured.
func (c *CalendarificClient) Enabled() bool { return c.apiKey != "" }

func (c *CalendarificClient) get(ctx context.Context, path string, q url.Values) (CalendarificResponse, error) {
	var out CalendarificResponse
	if !c.Enabled() {
		return out, ErrProviderDisabled
	}
	q.Set("api_key", c.apiKey)

	body, err := doGet(ctx, c.client, c.baseURL+path+"?"+q.Encode())
	if err != nil {
		return out, err
	}
	// An undecodable envelope leaves meta.code at zero, which adapters treat as empty.
	_ = json.Unmarshal(body, &out)
	return out, nil
}

// Holidays fetches /holidays for a country and year.
func (c *CalendarificClient) Holidays(ctx context.Context, countryCode string, year int) (CalendarificResponse, error) {
	q := url.Values{}
	q.Set("country", countryCode)
	q.Set("year", strconv.Itoa(year))
	resp, err := c.get(ctx, "/holidays", q)
	if err != nil {
		return resp, fmt.Errorf("calendarific holidays for %s/%d: %w", countryCode, year, err)
	}
	return resp, nil
}

// Countries fetches /countries.
func (c *CalendarificClient) Countries(ctx context.Context) (CalendarificResponse, error) {
	resp, err := c.get(ctx, "/countries", url.Values{})
	if err != nil {
		return resp, fmt.Errorf("calendarific countries: %w", err)
	}
	return resp, nil
}

// ---- Abstract API ----

// AbstractClient talks to the Abstract holidays API.
type AbstractClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAbstractClient constructs an AbstractClient; an empty baseURL selects
// the public API.
func NewAbstractClient(baseURL, apiKey string) *AbstractClient {
	if baseURL == "" {
		baseURL = AbstractDefaultURL
	}
	return &AbstractClient{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: newHTTPClient()}
}

// Enabled reports whether an API key is configured.
func (c *AbstractClient) Enabled() bool { return c.apiKey != "" }

// Holidays fetches the holidays of a country and year. The API answers with
// an array, or with a bare object when a single holiday matches.
func (c *AbstractClient) Holidays(ctx context.Context, countryCode string, year int) ([]AbstractHoliday, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("abstract holidays for %s/%d: %w", countryCode, year, ErrProviderDisabled)
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("country", countryCode)
	q.Set("year", strconv.Itoa(year))

	body, err := doGet(ctx, c.client, c.baseURL+"/?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("abstract holidays for %s/%d: %w", countryCode, year, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single AbstractHoliday
		if err := json.Unmarshal(trimmed, &single); err != nil || single.Name == "" {
			return []AbstractHoliday{}, nil
		}
		return []AbstractHoliday{single}, nil
	}
	return decodeList[AbstractHoliday](trimmed), nil
}
