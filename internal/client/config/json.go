package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/eggsregaco/regaco/internal/flagx"
)

// Duration lets JSON specify intervals either as strings like "10s" or as
// integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	BackendURL     string   `json:"backend_url"`
	AgentURL       string   `json:"agent_url"`
	CacheDBPath    string   `json:"cache_db_path"`
	DenyIsTerminal *bool    `json:"deny_is_terminal"`
	RequestTimeout Duration `json:"request_timeout"`
}

// parseJson overlays Config with values from the JSON file named by the
// -c/-config flag. No flag means no JSON layer.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFile()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BackendURL != "" {
		cfg.BackendURL = jc.BackendURL
	}
	if jc.AgentURL != "" {
		cfg.AgentURL = jc.AgentURL
	}
	if jc.CacheDBPath != "" {
		cfg.CacheDBPath = jc.CacheDBPath
	}
	if jc.DenyIsTerminal != nil {
		cfg.DenyIsTerminal = *jc.DenyIsTerminal
	}
	if jc.RequestTimeout != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout)
	}
}
