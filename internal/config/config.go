package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	NetcheckInterfaces = "interfaces"
	NetcheckProbe      = "probe"
	NetcheckOff        = "off"
)

type AppConfig struct {
	// Credential sent as appid on every fetch.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string `validate:"required,url"`

	// Outbound HTTP client timeout; the only bound on a fetch.
	HTTPTimeout time.Duration `validate:"gt=0"`
	// Extra attempts after a transport fault (0 = single attempt).
	ProviderMaxRetries int `validate:"gte=0,lte=5"`

	// Reachability checking.
	NetcheckMode     string        `validate:"oneof=interfaces probe off"`
	NetcheckInterval time.Duration `validate:"gt=0"`
	NetcheckTarget   string        `validate:"required,hostname_port"`

	// How overlapping fetch completions update the current outcome.
	OutcomeOrdering string `validate:"oneof=last-write sequenced"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	// Timezone for sunrise/sunset display.
	DisplayLocation *time.Location

	Port string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout
	cfg.ProviderMaxRetries = getenvInt("PROVIDER_MAX_RETRIES", 0)

	cfg.NetcheckMode = getenvDefault("NETCHECK_MODE", NetcheckInterfaces)
	interval, err := time.ParseDuration(getenvDefault("NETCHECK_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NETCHECK_INTERVAL: %w", err)
	}
	cfg.NetcheckInterval = interval
	cfg.NetcheckTarget = getenvDefault("NETCHECK_TARGET", "api.openweathermap.org:443")

	cfg.OutcomeOrdering = getenvDefault("OUTCOME_ORDERING", "last-write")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "console")

	tz := getenvDefault("DISPLAY_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	cfg.DisplayLocation = loc

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string { return ":" + c.Port }

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
