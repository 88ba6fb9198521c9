package gateway

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/eggsregaco/regaco/internal/flagx"
)

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = "127.0.0.1:8740"
	c.UpstreamURL = "http://127.0.0.1:8000"
	c.PublicURL = "http://127.0.0.1:8740"
	c.APIPrefix = "/api/"
	c.CacheDBPath = "regaco-gateway.db"
	c.Generation = "v1"
	c.Manifest = []string{"/", "/offline.html", "/manifest.json"}
	c.FetchTimeout = 10 * time.Second
}

// LoadConfig constructs the gateway Config in the same layering as the
// client: defaults, environment (with .env folding), JSON file, flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("REGACO_GW_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("REGACO_GW_UPSTREAM"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("REGACO_GW_PUBLIC_URL"); v != "" {
		cfg.PublicURL = v
	}
	if v := os.Getenv("REGACO_GW_API_PREFIX"); v != "" {
		cfg.APIPrefix = v
	}
	if v := os.Getenv("REGACO_GW_CACHE_DB"); v != "" {
		cfg.CacheDBPath = v
	}
	if v := os.Getenv("REGACO_GW_GENERATION"); v != "" {
		cfg.Generation = v
	}
	if v := os.Getenv("REGACO_GW_MANIFEST"); v != "" {
		cfg.Manifest = splitManifest(v)
	}
	if v := os.Getenv("REGACO_GW_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FetchTimeout = d
		}
	}
}

// jsonConfig is a DTO used exclusively for JSON unmarshalling.
type jsonConfig struct {
	ListenAddr  string   `json:"listen_addr"`
	UpstreamURL string   `json:"upstream_url"`
	PublicURL   string   `json:"public_url"`
	APIPrefix   string   `json:"api_prefix"`
	CacheDBPath string   `json:"cache_db_path"`
	Generation  string   `json:"generation"`
	Manifest    []string `json:"manifest"`
}

func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFile()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ListenAddr != "" {
		cfg.ListenAddr = jc.ListenAddr
	}
	if jc.UpstreamURL != "" {
		cfg.UpstreamURL = jc.UpstreamURL
	}
	if jc.PublicURL != "" {
		cfg.PublicURL = jc.PublicURL
	}
	if jc.APIPrefix != "" {
		cfg.APIPrefix = jc.APIPrefix
	}
	if jc.CacheDBPath != "" {
		cfg.CacheDBPath = jc.CacheDBPath
	}
	if jc.Generation != "" {
		cfg.Generation = jc.Generation
	}
	if len(jc.Manifest) > 0 {
		cfg.Manifest = jc.Manifest
	}
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-l string   listen address
//	-u string   upstream backend origin
//	-d string   path of the gateway database file
//	-v string   cache generation tag
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-l", "-u", "-d", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "l", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.UpstreamURL, "u", cfg.UpstreamURL, "upstream backend origin")
	fs.StringVar(&cfg.CacheDBPath, "d", cfg.CacheDBPath, "path of the gateway database file")
	fs.StringVar(&cfg.Generation, "v", cfg.Generation, "cache generation tag")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

func splitManifest(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
