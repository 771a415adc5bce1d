package config

import "time"

// Config holds runtime settings for the wardrobe CLI.
//
// Units: OnlineCheckInterval, RequestTimeout and GoogleSignInTimeout are
// time.Duration values.
type Config struct {
	APIBaseURL         string
	HealthEndpointAddr string

	SessionSecret    string
	IdentityTestMode bool

	DatabasePath  string
	DeviceKeyPath string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	// GoogleSignInTimeout bounds the wait for the browser redirect.
	GoogleSignInTimeout time.Duration

	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.HealthEndpointAddr = "127.0.0.1:50051"
	c.SessionSecret = "secretKey"
	c.DatabasePath = "wardrobe.db"
	c.DeviceKeyPath = "wardrobe.key"
	c.GoogleRedirectURL = "http://127.0.0.1:8765/callback"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.GoogleSignInTimeout = 5 * time.Minute
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment (optionally seeded by a .env file), a JSON file and
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
