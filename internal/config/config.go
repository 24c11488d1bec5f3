package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Averaging   AveragingConfig   `yaml:"averaging" json:"averaging"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	TUI         TUIConfig         `yaml:"tui" json:"tui"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Auth        AuthConfig        `yaml:"auth" json:"auth"`
}

// AveragingConfig controls how solve groups are averaged.
type AveragingConfig struct {
	// GroupSize is the number of solves in a full group (5 for ao5).
	GroupSize int `yaml:"group_size" json:"group_size"`

	// TrimFraction of the group dropped from each end, before MinTrim
	// applies. 0.05 trims 5 solves per side of an ao100.
	TrimFraction float64 `yaml:"trim_fraction" json:"trim_fraction"`

	// MinTrim is the least number of solves trimmed per side once a group
	// has at least 5 solves.
	MinTrim int `yaml:"min_trim" json:"min_trim"`

	PlusTwoSeconds float64 `yaml:"plus_two_seconds" json:"plus_two_seconds"`
}

type PersistenceConfig struct {
	// Backend is json or sqlite.
	Backend          string `yaml:"backend" json:"backend"`
	DataDir          string `yaml:"data_dir" json:"data_dir"`
	FlushIntervalSec int    `yaml:"flush_interval_sec" json:"flush_interval_sec"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type TUIConfig struct {
	RefreshIntervalMS int `yaml:"refresh_interval_ms" json:"refresh_interval_ms"`
}

// ServerConfig configures the local HTTP API started by "cubetime serve".
type ServerConfig struct {
	Host      string          `yaml:"host" json:"host"`
	Port      int             `yaml:"port" json:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// MaxBodyBytes caps POST and PATCH bodies. Sessions and solves are a few
	// hundred bytes of JSON each.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`

	// AllowedOrigins lists browser origins ("http://localhost:5173") allowed
	// to call the API and subscribe to /events.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`

	// PublicPaths are served without credentials. A trailing "*" matches a
	// prefix.
	PublicPaths []string `yaml:"public_paths" json:"public_paths"`
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Persistence.FlushIntervalSec) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.TUI.RefreshIntervalMS) * time.Millisecond
}

func (c *Config) PlusTwo() time.Duration {
	return time.Duration(c.Averaging.PlusTwoSeconds * float64(time.Second))
}

// DefaultDataDir is $XDG_DATA_HOME/cubetime, falling back to
// ~/.local/share/cubetime and finally a relative directory.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "cubetime")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cubetime"
	}
	return filepath.Join(home, ".local", "share", "cubetime")
}
