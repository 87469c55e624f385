// Package weather is a client for Open-Meteo compatible daily forecast APIs.
package weather

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/plantcare/internal/resilience"
)

const (
	defaultBaseURL = "https://api.open-meteo.com"
	dailyFields    = "temperature_2m_max,temperature_2m_min,relative_humidity_2m_mean,daylight_duration"
	maxPastDays    = 92
	maxForecast    = 16
)

// Client fetches daily weather for a coordinate.
type Client interface {
	Daily(ctx context.Context, req DailyRequest) (*DailyResponse, error)
}

// DailyRequest selects a window of past and forecast days around today.
type DailyRequest struct {
	Lat          float64
	Lon          float64
	PastDays     int
	ForecastDays int
}

// Day is one day of weather. Fields are nil when the API has no value.
type Day struct {
	Date          time.Time
	MaxTempC      *float64
	MinTempC      *float64
	MeanHumidity  *float64
	DaylightHours *float64
}

// DailyResponse holds the days returned, oldest first.
type DailyResponse struct {
	Latitude  float64
	Longitude float64
	Days      []Day
}

type apiResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Daily     struct {
		Time             []string   `json:"time"`
		MaxTemp          []*float64 `json:"temperature_2m_max"`
		MinTemp          []*float64 `json:"temperature_2m_min"`
		MeanHumidity     []*float64 `json:"relative_humidity_2m_mean"`
		DaylightDuration []*float64 `json:"daylight_duration"`
	} `json:"daily"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a weather API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func clampDays(n, hi int) int {
	if n < 0 {
		return 0
	}
	if n > hi {
		return hi
	}
	return n
}

func (c *httpClient) Daily(ctx context.Context, req DailyRequest) (*DailyResponse, error) {
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		return nil, eris.Errorf("weather: coordinates out of range (%f, %f)", req.Lat, req.Lon)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "weather: rate limit wait")
		}
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(req.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(req.Lon, 'f', 4, 64))
	q.Set("daily", dailyFields)
	q.Set("past_days", strconv.Itoa(clampDays(req.PastDays, maxPastDays)))
	q.Set("forecast_days", strconv.Itoa(clampDays(req.ForecastDays, maxForecast)))
	q.Set("timezone", "UTC")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "weather: create request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "weather: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "weather: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("weather: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "weather: unmarshal response")
	}
	if raw.Error {
		return nil, eris.Errorf("weather: api error: %s", raw.Reason)
	}
	return convert(&raw)
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func convert(raw *apiResponse) (*DailyResponse, error) {
	out := &DailyResponse{Latitude: raw.Latitude, Longitude: raw.Longitude}
	for i, ds := range raw.Daily.Time {
		date, err := time.Parse("2006-01-02", ds)
		if err != nil {
			return nil, eris.Wrapf(err, "weather: parse date %q", ds)
		}
		d := Day{
			Date:         date,
			MaxTempC:     at(raw.Daily.MaxTemp, i),
			MinTempC:     at(raw.Daily.MinTemp, i),
			MeanHumidity: at(raw.Daily.MeanHumidity, i),
		}
		if secs := at(raw.Daily.DaylightDuration, i); secs != nil {
			h := *secs / 3600
			d.DaylightHours = &h
		}
		out.Days = append(out.Days, d)
	}
	return out, nil
}
