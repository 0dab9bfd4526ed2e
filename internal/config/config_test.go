package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != "8080" {
		t.Fatalf("port: %q", cfg.Server.Port)
	}
	if cfg.Fetch.CacheTTLSec != 30 || cfg.Fetch.FailureThreshold != 3 {
		t.Fatalf("fetch defaults: %+v", cfg.Fetch)
	}
	if len(cfg.Fetch.NewsPriority) == 0 || cfg.Fetch.NewsPriority[0] != "newsapi" {
		t.Fatalf("news priority: %v", cfg.Fetch.NewsPriority)
	}
	if len(cfg.Fetch.PricePriority) == 0 || cfg.Fetch.PricePriority[0] != "alphavantage" {
		t.Fatalf("price priority: %v", cfg.Fetch.PricePriority)
	}
	for id, p := range cfg.Providers() {
		if !p.Enabled {
			t.Fatalf("%s disabled by default", id)
		}
		if p.BaseURL == "" {
			t.Fatalf("%s missing base url", id)
		}
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"server": {"port": "9090"},
		"fetch": {"cache_ttl_sec": 5, "price_priority": ["polygon"]},
		"finnhub": {"enabled": false, "api_key": "from-file"}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port: %q", cfg.Server.Port)
	}
	if cfg.Fetch.CacheTTLSec != 5 {
		t.Fatalf("cache ttl: %d", cfg.Fetch.CacheTTLSec)
	}
	if len(cfg.Fetch.PricePriority) != 1 || cfg.Fetch.PricePriority[0] != "polygon" {
		t.Fatalf("price priority: %v", cfg.Fetch.PricePriority)
	}
	if cfg.Finnhub.Enabled || cfg.Finnhub.APIKey != "from-file" {
		t.Fatalf("finnhub: %+v", cfg.Finnhub)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("want defaults, got port %q", cfg.Server.Port)
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want parse error")
	}
}

func TestApplyEnv_KeysAndTuning(t *testing.T) {
	t.Setenv("NEWSAPI_KEY", "nk")
	t.Setenv("ALPHA_VANTAGE_KEY", "ak")
	t.Setenv("FINNHUB_KEY", "fk")
	t.Setenv("POLYGON_KEY", "pk")
	t.Setenv("FINNHUB_BASE_URL", "http://localhost:9999")
	t.Setenv("CACHE_TTL_SEC", "0")
	t.Setenv("PERMIT_WAIT_SEC", "5")
	t.Setenv("PRICE_PRIORITY", "polygon, finnhub")

	cfg := Default()
	applyEnv(&cfg)

	if cfg.NewsAPI.APIKey != "nk" || cfg.AlphaVantage.APIKey != "ak" ||
		cfg.Finnhub.APIKey != "fk" || cfg.Polygon.APIKey != "pk" {
		t.Fatalf("api keys: %+v", cfg.Providers())
	}
	if cfg.Finnhub.BaseURL != "http://localhost:9999" {
		t.Fatalf("finnhub base url: %q", cfg.Finnhub.BaseURL)
	}
	// CACHE_TTL_SEC=0 is an explicit "disable caching", not an unset.
	if cfg.Fetch.CacheTTLSec != 0 {
		t.Fatalf("cache ttl: %d", cfg.Fetch.CacheTTLSec)
	}
	if cfg.Fetch.PermitWaitSec != 5 {
		t.Fatalf("permit wait: %d", cfg.Fetch.PermitWaitSec)
	}
	want := []string{"polygon", "finnhub"}
	if len(cfg.Fetch.PricePriority) != 2 || cfg.Fetch.PricePriority[0] != want[0] || cfg.Fetch.PricePriority[1] != want[1] {
		t.Fatalf("price priority: %v", cfg.Fetch.PricePriority)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, b ,, c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}
