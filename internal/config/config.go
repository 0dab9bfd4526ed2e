// Package config loads the process configuration: per-provider
// credentials and budgets, fetch tuning and the priority orderings per
// data kind. JSON file first, environment overrides second. The core
// never reads the environment itself; it receives this struct at
// startup and treats it as read-only.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

// Provider holds one data source's credentials and request budget.
type Provider struct {
	Enabled              bool   `json:"enabled"`
	APIKey               string `json:"api_key"`
	BaseURL              string `json:"base_url"`
	Currency             string `json:"currency"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

// Fetch tunes orchestration: caching, health backoff and per-kind
// provider priority. Priority lists name provider ids in failover
// order.
type Fetch struct {
	CacheTTLSec      int      `json:"cache_ttl_sec"`
	CacheMaxItems    int      `json:"cache_max_items"`
	FailureThreshold int      `json:"failure_threshold"`
	BackoffBaseSec   int      `json:"backoff_base_sec"`
	BackoffCapSec    int      `json:"backoff_cap_sec"`
	CallTimeoutSec   int      `json:"call_timeout_sec"`
	PermitWaitSec    int      `json:"permit_wait_sec"`
	NewsPriority     []string `json:"news_priority"`
	PricePriority    []string `json:"price_priority"`
}

type Config struct {
	Server       Server   `json:"server"`
	Fetch        Fetch    `json:"fetch"`
	NewsAPI      Provider `json:"newsapi"`
	AlphaVantage Provider `json:"alphavantage"`
	Finnhub      Provider `json:"finnhub"`
	Polygon      Provider `json:"polygon"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Fetch: Fetch{
			CacheTTLSec:      30,
			CacheMaxItems:    10000,
			FailureThreshold: 3,
			BackoffBaseSec:   30,
			BackoffCapSec:    1800,
			CallTimeoutSec:   8,
			PermitWaitSec:    2,
			NewsPriority:     []string{"newsapi", "alphavantage", "finnhub"},
			PricePriority:    []string{"alphavantage", "finnhub", "polygon"},
		},
		NewsAPI: Provider{
			Enabled:              true,
			BaseURL:              "https://newsapi.org/v2",
			MaxRequestsPerMinute: 60,
			Burst:                5,
		},
		AlphaVantage: Provider{
			Enabled:              true,
			BaseURL:              "https://www.alphavantage.co/query",
			Currency:             "USD",
			MaxRequestsPerMinute: 5,
			Burst:                5,
		},
		Finnhub: Provider{
			Enabled:              true,
			BaseURL:              "https://finnhub.io/api/v1",
			Currency:             "USD",
			MaxRequestsPerMinute: 60,
			Burst:                30,
		},
		Polygon: Provider{
			Enabled:              true,
			BaseURL:              "https://api.polygon.io/v1",
			Currency:             "USD",
			MaxRequestsPerMinute: 5,
			Burst:                5,
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does
// not exist, it returns defaults. Environment variables override select
// fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := envInt("REQUEST_TIMEOUT_SEC"); v > 0 {
		cfg.Server.RequestTimeoutSec = v
	}

	// API keys keep the env names the deployment scripts already use.
	if v := os.Getenv("NEWSAPI_KEY"); v != "" {
		cfg.NewsAPI.APIKey = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("FINNHUB_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("POLYGON_KEY"); v != "" {
		cfg.Polygon.APIKey = v
	}

	if v := os.Getenv("NEWSAPI_BASE_URL"); v != "" {
		cfg.NewsAPI.BaseURL = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Finnhub.BaseURL = v
	}
	if v := os.Getenv("POLYGON_BASE_URL"); v != "" {
		cfg.Polygon.BaseURL = v
	}

	if v := envInt("CACHE_TTL_SEC"); v >= 0 && os.Getenv("CACHE_TTL_SEC") != "" {
		cfg.Fetch.CacheTTLSec = v
	}
	if v := envInt("CACHE_MAX_ITEMS"); v > 0 {
		cfg.Fetch.CacheMaxItems = v
	}
	if v := envInt("FAILURE_THRESHOLD"); v > 0 {
		cfg.Fetch.FailureThreshold = v
	}
	if v := envInt("BACKOFF_BASE_SEC"); v > 0 {
		cfg.Fetch.BackoffBaseSec = v
	}
	if v := envInt("BACKOFF_CAP_SEC"); v > 0 {
		cfg.Fetch.BackoffCapSec = v
	}
	if v := envInt("CALL_TIMEOUT_SEC"); v > 0 {
		cfg.Fetch.CallTimeoutSec = v
	}
	if v := envInt("PERMIT_WAIT_SEC"); v > 0 {
		cfg.Fetch.PermitWaitSec = v
	}
	if v := os.Getenv("NEWS_PRIORITY"); v != "" {
		cfg.Fetch.NewsPriority = splitCSV(v)
	}
	if v := os.Getenv("PRICE_PRIORITY"); v != "" {
		cfg.Fetch.PricePriority = splitCSV(v)
	}
}

// Providers returns the provider sections keyed by id.
func (c Config) Providers() map[string]Provider {
	return map[string]Provider{
		"newsapi":      c.NewsAPI,
		"alphavantage": c.AlphaVantage,
		"finnhub":      c.Finnhub,
		"polygon":      c.Polygon,
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	var x int
	_, _ = fmt.Sscanf(v, "%d", &x)
	return x
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
