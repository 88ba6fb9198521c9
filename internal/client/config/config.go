// Package config loads the client runtime settings. Sources are layered:
// defaults, then environment (including a .env file when present), then an
// optional JSON file, then command-line flags. Later sources win.
package config

import "time"

// Config holds runtime settings for the eggsctl client.
type Config struct {
	// BackendURL is the base URL of the Eggs Regaco backend API.
	BackendURL string
	// AgentURL is the base URL of the local offline gateway; empty
	// disables gateway features (push, offline asset cache).
	AgentURL string
	// CacheDBPath is the SQLite file backing the local event cache.
	CacheDBPath string
	// DenyIsTerminal makes a denied event permanently unconfirmable on
	// this device.
	DenyIsTerminal bool
	// RequestTimeout bounds a single backend request.
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BackendURL = "http://127.0.0.1:8000"
	c.AgentURL = "http://127.0.0.1:8740"
	c.CacheDBPath = "eggsregaco.db"
	c.DenyIsTerminal = false
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, a JSON file (if given) and command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
