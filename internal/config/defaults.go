package config

func Default() *Config {
	return &Config{
		Averaging: AveragingConfig{
			GroupSize:      5,
			TrimFraction:   0.05,
			MinTrim:        1,
			PlusTwoSeconds: 2.0,
		},
		Persistence: PersistenceConfig{
			Backend:          "json",
			DataDir:          DefaultDataDir(),
			FlushIntervalSec: 30,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		TUI: TUIConfig{
			RefreshIntervalMS: 250,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7305,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 20,
				Burst:             40,
			},
			MaxBodyBytes: 64 << 10,
		},
		Auth: AuthConfig{
			Enabled:     false,
			PublicPaths: []string{"/health"},
		},
	}
}
