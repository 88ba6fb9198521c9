package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"eggsctl"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestLoadConfig_Defaults(t *testing.T) {
	withArgs(t)

	cfg := LoadConfig()
	assert.Equal(t, "http://127.0.0.1:8000", cfg.BackendURL)
	assert.Equal(t, "http://127.0.0.1:8740", cfg.AgentURL)
	assert.Equal(t, "eggsregaco.db", cfg.CacheDBPath)
	assert.False(t, cfg.DenyIsTerminal)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	withArgs(t)
	t.Setenv("REGACO_BACKEND_URL", "https://eggs.example.com")
	t.Setenv("REGACO_DENY_TERMINAL", "true")
	t.Setenv("REGACO_REQUEST_TIMEOUT", "3s")

	cfg := LoadConfig()
	assert.Equal(t, "https://eggs.example.com", cfg.BackendURL)
	assert.True(t, cfg.DenyIsTerminal)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_JsonOverridesEnv(t *testing.T) {
	t.Setenv("REGACO_BACKEND_URL", "https://env.example.com")

	deny := true
	raw, err := json.Marshal(JsonConfig{
		BackendURL:     "https://json.example.com",
		CacheDBPath:    "/tmp/cache.db",
		DenyIsTerminal: &deny,
		RequestTimeout: Duration(5 * time.Second),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	withArgs(t, "-c", path)

	cfg := LoadConfig()
	assert.Equal(t, "https://json.example.com", cfg.BackendURL)
	assert.Equal(t, "/tmp/cache.db", cfg.CacheDBPath)
	assert.True(t, cfg.DenyIsTerminal)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	t.Setenv("REGACO_BACKEND_URL", "https://env.example.com")
	withArgs(t, "-a", "https://flag.example.com", "-t", "7")

	cfg := LoadConfig()
	assert.Equal(t, "https://flag.example.com", cfg.BackendURL)
	assert.Equal(t, 7*time.Second, cfg.RequestTimeout)
}

func TestDuration_UnmarshalForms(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"2m"`), &d))
	assert.Equal(t, Duration(2*time.Minute), d)

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, Duration(time.Second), d)

	require.Error(t, json.Unmarshal([]byte(`true`), &d))
}
