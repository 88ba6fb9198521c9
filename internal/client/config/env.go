package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with REGACO_* environment variables. A .env file
// in the working directory is folded into the environment first; variables
// already set in the real environment keep precedence.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("REGACO_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("REGACO_AGENT_URL"); v != "" {
		cfg.AgentURL = v
	}
	if v := os.Getenv("REGACO_CACHE_DB"); v != "" {
		cfg.CacheDBPath = v
	}
	if v := os.Getenv("REGACO_DENY_TERMINAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DenyIsTerminal = b
		}
	}
	if v := os.Getenv("REGACO_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
}
