package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sawpanic/fundboard/internal/analytics"
	"github.com/sawpanic/fundboard/internal/config"
	"github.com/sawpanic/fundboard/internal/metrics"
	"github.com/sawpanic/fundboard/internal/net/breaker"
	"github.com/sawpanic/fundboard/internal/net/ratelimit"
)

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// loadConfig layers file, environment and explicitly set flags, in that order
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	path, _ := fs.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyFlags copies only flags the user set, so unset flags never mask the file
func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	var errs []error
	str := func(name string, dst *string) {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	msFlag := func(name string, dst *int) {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			v, err := fs.GetDuration(name)
			errs = append(errs, err)
			*dst = int(v / time.Millisecond)
		}
	}

	str("api-url", &cfg.API.BaseURL)
	msFlag("api-timeout", &cfg.API.TimeoutMS)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("host", &cfg.Server.Host)
	msFlag("settle-timeout", &cfg.Server.SettleTimeoutMS)

	if fs.Lookup("port") != nil && fs.Changed("port") {
		v, err := fs.GetInt("port")
		errs = append(errs, err)
		cfg.Server.Port = v
	}
	if fs.Lookup("no-live") != nil && fs.Changed("no-live") {
		v, err := fs.GetBool("no-live")
		errs = append(errs, err)
		cfg.Server.LiveUpdates = !v
	}
	return errors.Join(errs...)
}

// setupLogging configures the global zerolog logger. "auto" picks the console
// writer on a terminal and JSON otherwise.
func setupLogging(lc config.LogConfig, out *os.File) error {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	console := lc.Format == "console" || (lc.Format == "auto" && term.IsTerminal(int(out.Fd())))
	var w io.Writer = out
	if console {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// newClient builds the analytics client with the guards enabled in cfg
func newClient(cfg *config.Config, reg *metrics.Registry) (*analytics.Client, error) {
	opts := []analytics.Option{
		analytics.WithTimeout(cfg.RequestTimeout()),
		analytics.WithUserAgent(cfg.API.UserAgent),
		analytics.WithMetrics(reg),
	}

	if rl := cfg.API.RateLimit; rl.Enabled {
		limiter, err := ratelimit.NewLimiter(rl.RPS, rl.Burst)
		if err != nil {
			return nil, err
		}
		opts = append(opts, analytics.WithRateLimiter(limiter))
	}
	if cc := cfg.API.Circuit; cc.Enabled {
		opts = append(opts, analytics.WithBreaker(breaker.New(breaker.Config{
			Name:                "analytics-api",
			ConsecutiveFailures: uint32(cc.FailureThreshold),
			Interval:            cc.Interval(),
			OpenTimeout:         cc.OpenTimeout(),
		})))
	}

	client, err := analytics.NewClient(cfg.API.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("base_url", client.BaseURL()).
		Dur("timeout", client.Timeout()).
		Bool("rate_limit", cfg.API.RateLimit.Enabled).
		Bool("circuit", cfg.API.Circuit.Enabled).
		Msg("Analytics client ready")
	return client, nil
}
