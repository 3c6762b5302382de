package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/fundboard/internal/analytics"
)

// Environment variables read by ApplyEnv
const (
	EnvAPIURL       = "FUNDBOARD_API_URL"
	EnvLegacyAPIURL = "VITE_API_URL"
	EnvHTTPPort     = "HTTP_PORT"
	EnvLogLevel     = "FUNDBOARD_LOG_LEVEL"
)

// Config is the complete dashboard configuration
type Config struct {
	API        APIConfig      `yaml:"api"`
	Server     ServerConfig   `yaml:"server"`
	Defaults   DefaultsConfig `yaml:"defaults"`
	Strategies []string       `yaml:"strategies"` // Options offered by the strategy selector
	Log        LogConfig      `yaml:"log"`
}

// APIConfig describes the upstream analytics service
type APIConfig struct {
	BaseURL   string          `yaml:"base_url"`   // Resolved once at startup
	TimeoutMS int             `yaml:"timeout_ms"` // Per-request timeout
	UserAgent string          `yaml:"user_agent"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Circuit   CircuitConfig   `yaml:"circuit"`
}

// RateLimitConfig is the optional per-endpoint token bucket
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`   // Requests per second per endpoint
	Burst   int     `yaml:"burst"` // Burst capacity
}

// CircuitConfig is the optional circuit breaker in front of the API
type CircuitConfig struct {
	Enabled          bool `yaml:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold"` // Consecutive failures to open circuit
	OpenTimeoutMS    int  `yaml:"open_timeout_ms"`   // Time spent open before a probe
	IntervalMS       int  `yaml:"interval_ms"`       // Closed-state counter reset, 0 never resets
}

// ServerConfig is the dashboard web server
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	SettleTimeoutMS int    `yaml:"settle_timeout_ms"` // How long GET / waits for panels
	ReadTimeoutMS   int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS  int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS   int    `yaml:"idle_timeout_ms"`
	AllowOrigin     string `yaml:"allow_origin"` // CORS and websocket origin, "*" allows any
	LiveUpdates     bool   `yaml:"live_updates"` // Serve the websocket stream and page script
}

// DefaultsConfig seeds the selection of a fresh session
type DefaultsConfig struct {
	Symbol   string `yaml:"symbol"`
	Strategy string `yaml:"strategy"`
}

// LogConfig controls the global zerolog logger
type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // auto, console or json
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   analytics.DefaultBaseURL,
			TimeoutMS: int(analytics.DefaultTimeout / time.Millisecond),
			UserAgent: "fundboard/1.0",
			RateLimit: RateLimitConfig{RPS: 10, Burst: 20},
			Circuit:   CircuitConfig{FailureThreshold: 3, OpenTimeoutMS: 30000},
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			SettleTimeoutMS: 6000,
			ReadTimeoutMS:   15000,
			WriteTimeoutMS:  15000,
			IdleTimeoutMS:   60000,
			AllowOrigin:     "*",
			LiveUpdates:     true,
		},
		Defaults: DefaultsConfig{
			Symbol:   analytics.DefaultSymbol,
			Strategy: analytics.DefaultStrategy,
		},
		Strategies: []string{"mean_reversion", "mean_reversion_rsi"},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. FUNDBOARD_API_URL wins over
// the legacy VITE_API_URL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	} else if v := getenv(EnvLegacyAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a port number, got %q", EnvHTTPPort, v)
		}
		c.Server.Port = port
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutMS <= 0 {
		return fmt.Errorf("api timeout_ms must be positive, got %d", c.API.TimeoutMS)
	}
	if c.API.RateLimit.Enabled {
		if c.API.RateLimit.RPS <= 0 {
			return fmt.Errorf("api rate_limit rps must be positive, got %f", c.API.RateLimit.RPS)
		}
		if c.API.RateLimit.Burst < 1 {
			return fmt.Errorf("api rate_limit burst must be at least 1, got %d", c.API.RateLimit.Burst)
		}
	}
	if c.API.Circuit.Enabled {
		if c.API.Circuit.FailureThreshold <= 0 {
			return fmt.Errorf("api circuit failure_threshold must be positive, got %d", c.API.Circuit.FailureThreshold)
		}
		if c.API.Circuit.OpenTimeoutMS <= 0 {
			return fmt.Errorf("api circuit open_timeout_ms must be positive, got %d", c.API.Circuit.OpenTimeoutMS)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.SettleTimeoutMS < 0 {
		return fmt.Errorf("server settle_timeout_ms cannot be negative, got %d", c.Server.SettleTimeoutMS)
	}

	if strings.TrimSpace(c.Defaults.Symbol) == "" {
		return fmt.Errorf("defaults symbol cannot be empty")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies cannot be empty")
	}
	if !c.HasStrategy(c.Defaults.Strategy) {
		return fmt.Errorf("defaults strategy %q is not in strategies %v", c.Defaults.Strategy, c.Strategies)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log format must be auto, console or json, got %q", c.Log.Format)
	}
	return nil
}

// HasStrategy reports whether s is one of the configured strategies
func (c *Config) HasStrategy(s string) bool {
	for _, known := range c.Strategies {
		if known == s {
			return true
		}
	}
	return false
}

// DefaultSelection is the selection a fresh session starts with
func (c *Config) DefaultSelection() analytics.Selection {
	return analytics.Selection{Symbol: c.Defaults.Symbol, Strategy: c.Defaults.Strategy}
}

// RequestTimeout returns the per-request API timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}

// SettleTimeout returns how long a page render waits for panels
func (c *Config) SettleTimeout() time.Duration {
	return time.Duration(c.Server.SettleTimeoutMS) * time.Millisecond
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ReadTimeout returns the server read timeout
func (s ServerConfig) ReadTimeout() time.Duration { return ms(s.ReadTimeoutMS) }

// WriteTimeout returns the server write timeout
func (s ServerConfig) WriteTimeout() time.Duration { return ms(s.WriteTimeoutMS) }

// IdleTimeout returns the keep-alive idle timeout
func (s ServerConfig) IdleTimeout() time.Duration { return ms(s.IdleTimeoutMS) }

// OpenTimeout returns how long the breaker stays open
func (c CircuitConfig) OpenTimeout() time.Duration { return ms(c.OpenTimeoutMS) }

// Interval returns the closed-state counter reset period
func (c CircuitConfig) Interval() time.Duration { return ms(c.IntervalMS) }
