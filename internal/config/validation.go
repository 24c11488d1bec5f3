package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) Validate() error {
	var errs []error

	if err := c.Averaging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("averaging: %w", err))
	}

	if err := c.Persistence.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("persistence: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	return errors.Join(errs...)
}

func (a *AveragingConfig) Validate() error {
	var errs []error

	if a.GroupSize < 1 {
		errs = append(errs, fmt.Errorf("group_size must be at least 1, got %d", a.GroupSize))
	}

	if a.TrimFraction < 0 || a.TrimFraction >= 0.5 {
		errs = append(errs, fmt.Errorf("trim_fraction must be in [0, 0.5), got %g", a.TrimFraction))
	}

	if a.MinTrim < 0 {
		errs = append(errs, fmt.Errorf("min_trim must be non-negative, got %d", a.MinTrim))
	}

	if a.PlusTwoSeconds <= 0 {
		errs = append(errs, fmt.Errorf("plus_two_seconds must be positive, got %g", a.PlusTwoSeconds))
	}

	return errors.Join(errs...)
}

func (p *PersistenceConfig) Validate() error {
	var errs []error

	validBackends := map[string]bool{
		"json":   true,
		"sqlite": true,
	}
	if !validBackends[p.Backend] {
		errs = append(errs, fmt.Errorf("invalid backend: %s (valid: json, sqlite)", p.Backend))
	}
	if p.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir cannot be empty"))
	}
	if p.FlushIntervalSec < 1 {
		errs = append(errs, fmt.Errorf("flush_interval_sec must be at least 1"))
	}

	return errors.Join(errs...)
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", l.Format)
	}

	return nil
}

func (t *TUIConfig) Validate() error {
	if t.RefreshIntervalMS < 50 {
		return fmt.Errorf("refresh_interval_ms must be at least 50, got %d", t.RefreshIntervalMS)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	var errs []error

	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 0 and 65535, got %d", s.Port))
	}

	if s.MaxBodyBytes < 1<<10 || s.MaxBodyBytes > 16<<20 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be between 1KiB and 16MiB, got %d", s.MaxBodyBytes))
	}

	for _, origin := range s.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
			errs = append(errs, fmt.Errorf("allowed_origins: %q is not an http(s) origin", origin))
		}
	}

	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be positive"))
		}
		if s.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Errorf("rate_limit.burst must be at least 1"))
		}
	}

	return errors.Join(errs...)
}

func (a *AuthConfig) Validate() error {
	for _, p := range a.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("public_paths: %q must start with /", p)
		}
	}
	if a.Enabled {
		if a.User == "" {
			return fmt.Errorf("user cannot be empty when auth is enabled")
		}
		if a.Password == "" {
			return fmt.Errorf("password cannot be empty when auth is enabled")
		}
	}
	return nil
}
