package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/skywatch/internal/logger"
	"github.com/i474232898/skywatch/internal/weather"
)

// DefaultOpenWeatherURL is the "current weather data" endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// maxPayloadBytes bounds how much of a response body is decoded.
const maxPayloadBytes = 1 << 20

// OpenWeatherConfig tunes the OpenWeatherMap provider.
type OpenWeatherConfig struct {
	BaseURL    string
	MaxRetries int
}

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, cfg OpenWeatherConfig, log *logger.Logger) *OpenWeatherProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}

	return &OpenWeatherProvider{
		name:    "openweathermap",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      cfg.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newBreaker("openweather", log.Named("openweather")),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// CurrentByCity queries the current weather for city in metric units.
func (p *OpenWeatherProvider) CurrentByCity(ctx context.Context, city, credential string) (weather.Report, error) {
	if credential == "" {
		return weather.Report{}, fmt.Errorf("openweather: %w", errMissingKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", city)
		values.Set("appid", credential)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Report{}, fmt.Errorf("openweather request: %w", err)
	}
	defer resp.Body.Close()

	report, err := decodeOpenWeather(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return weather.Report{}, fmt.Errorf("openweather http %d: %w", resp.StatusCode, err)
	}
	return report, nil
}

// statusCode decodes OpenWeatherMap's "cod", which is a number on success
// and a string such as "404" on errors.
type statusCode int

func (c *statusCode) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("cod %q: %w", s, err)
	}
	*c = statusCode(n)
	return nil
}

type openWeatherPayload struct {
	Cod     statusCode `json:"cod"`
	Message string     `json:"message"`
	Name    string     `json:"name"`
	Main    *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Visibility int `json:"visibility"`
	Sys        struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

func decodeOpenWeather(r io.Reader) (weather.Report, error) {
	var payload openWeatherPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return weather.Report{}, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}

	report := weather.Report{
		Code:    int(payload.Cod),
		Message: payload.Message,
	}
	if !report.OK() {
		return report, nil
	}

	if payload.Main == nil || len(payload.Weather) == 0 {
		return weather.Report{}, fmt.Errorf("%w: missing main or weather section", errMalformedPayload)
	}

	report.Snapshot = weather.WeatherSnapshot{
		City:          payload.Name,
		TemperatureC:  payload.Main.Temp,
		HumidityPct:   payload.Main.Humidity,
		Condition:     payload.Weather[0].Description,
		WindSpeedMS:   payload.Wind.Speed,
		CloudinessPct: payload.Clouds.All,
		PressureHpa:   payload.Main.Pressure,
		VisibilityM:   payload.Visibility,
		Sunrise:       payload.Sys.Sunrise,
		Sunset:        payload.Sys.Sunset,
	}
	return report, nil
}
