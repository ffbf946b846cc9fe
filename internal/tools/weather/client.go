// Package weather wraps the National Weather Service API (api.weather.gov)
// behind the get_alerts and get_forecast tools.
package weather

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL   = "https://api.weather.gov"
	DefaultUserAgent = "weather-app/1.0"
	defaultTimeout   = 30 * time.Second

	// forecastPeriods is how many upcoming periods a forecast reports.
	forecastPeriods = 5
)

var stateCode = regexp.MustCompile(`^[A-Z]{2}$`)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent the NWS requires on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client is a minimal NWS API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a new NWS client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Alerts returns the active alerts for a two-letter US state code.
func (c *Client) Alerts(ctx context.Context, state string) (string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if !stateCode.MatchString(state) {
		return "", fmt.Errorf("invalid state code %q: expected two letters such as CA or NY", state)
	}

	body, err := c.get(ctx, c.baseURL+"/alerts/active/area/"+state)
	if err != nil {
		return "", fmt.Errorf("unable to fetch alerts: %w", err)
	}

	features := gjson.GetBytes(body, "features")
	if !features.IsArray() {
		return "", fmt.Errorf("unable to fetch alerts: response has no features")
	}
	if len(features.Array()) == 0 {
		return "No active alerts for this state.", nil
	}

	var alerts []string
	features.ForEach(func(_, feature gjson.Result) bool {
		alerts = append(alerts, formatAlert(feature.Get("properties")))
		return true
	})
	return strings.Join(alerts, "\n---\n"), nil
}

// Forecast returns the next few forecast periods for a coordinate.
func (c *Client) Forecast(ctx context.Context, latitude, longitude float64) (string, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return "", fmt.Errorf("coordinates out of range: %v,%v", latitude, longitude)
	}

	pointsURL := fmt.Sprintf("%s/points/%s,%s", c.baseURL, coord(latitude), coord(longitude))
	points, err := c.get(ctx, pointsURL)
	if err != nil {
		return "", fmt.Errorf("unable to fetch forecast data for this location: %w", err)
	}

	forecastURL := gjson.GetBytes(points, "properties.forecast").String()
	if forecastURL == "" {
		return "", fmt.Errorf("unable to fetch forecast data for this location: no forecast endpoint")
	}

	forecast, err := c.get(ctx, forecastURL)
	if err != nil {
		return "", fmt.Errorf("unable to fetch detailed forecast: %w", err)
	}

	periods := gjson.GetBytes(forecast, "properties.periods").Array()
	if len(periods) == 0 {
		return "", fmt.Errorf("unable to fetch detailed forecast: no periods")
	}
	if len(periods) > forecastPeriods {
		periods = periods[:forecastPeriods]
	}

	out := make([]string, 0, len(periods))
	for _, p := range periods {
		out = append(out, formatPeriod(p))
	}
	return strings.Join(out, "\n---\n"), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if detail := gjson.GetBytes(body, "detail").String(); detail != "" {
			return nil, fmt.Errorf("NWS API error (status %d): %s", resp.StatusCode, detail)
		}
		return nil, fmt.Errorf("NWS API error (status %d)", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON from NWS API")
	}
	return body, nil
}

// coord renders a coordinate with at most four decimals; the points
// endpoint redirects anything more precise.
func coord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

func field(r gjson.Result, key, fallback string) string {
	if v := r.Get(key); v.Exists() && v.Type != gjson.Null && v.String() != "" {
		return v.String()
	}
	return fallback
}

func formatAlert(props gjson.Result) string {
	return fmt.Sprintf(`
Event: %s
Area: %s
Severity: %s
Description: %s
Instructions: %s
`,
		field(props, "event", "Unknown"),
		field(props, "areaDesc", "Unknown"),
		field(props, "severity", "Unknown"),
		field(props, "description", "No description available"),
		field(props, "instruction", "No specific instructions provided"),
	)
}

func formatPeriod(p gjson.Result) string {
	return fmt.Sprintf(`
%s:
Temperature: %s°%s
Wind: %s %s
Forecast: %s
`,
		p.Get("name").String(),
		p.Get("temperature").String(),
		p.Get("temperatureUnit").String(),
		p.Get("windSpeed").String(),
		p.Get("windDirection").String(),
		p.Get("detailedForecast").String(),
	)
}
