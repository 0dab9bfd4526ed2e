package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"marketdata/internal/config"
	"marketdata/internal/fetch"
	"marketdata/internal/fetch/cache"
	"marketdata/internal/fetch/ratelimit"
	"marketdata/internal/httpx"
	"marketdata/internal/provider/alphavantage"
	"marketdata/internal/provider/finnhub"
	"marketdata/internal/provider/newsapi"
	"marketdata/internal/provider/polygon"
)

var (
	flagConfig   string
	flagTimeout  int
	flagVerbose  bool
	flagInterval string
	flagFrom     string
	flagTo       string
)

var rootCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Query financial news and stock prices across configured providers",
	Long:  "fetch resolves news and price queries against the configured provider chain with failover, rate limiting and short-TTL caching.",
}

var priceCmd = &cobra.Command{
	Use:   "price <symbol>",
	Short: "Fetch a normalized quote for a ticker symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, log, err := buildFetcher()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(flagTimeout)*time.Second)
		defer cancel()

		quote, err := f.FetchPrice(ctx, args[0], flagInterval)
		if err != nil {
			log.Error().Err(err).Str("symbol", args[0]).Msg("price fetch failed")
			return err
		}
		return printJSON(quote)
	},
}

var newsCmd = &cobra.Command{
	Use:   "news <terms>",
	Short: "Fetch normalized news for a symbol or search terms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, log, err := buildFetcher()
		if err != nil {
			return err
		}
		from, err := parseDate(flagFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to, err := parseDate(flagTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(flagTimeout)*time.Second)
		defer cancel()

		items, err := f.FetchNews(ctx, args[0], from, to)
		if err != nil {
			log.Error().Err(err).Str("terms", args[0]).Msg("news fetch failed")
			return err
		}
		return printJSON(items)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.json (optional)")
	rootCmd.PersistentFlags().IntVar(&flagTimeout, "timeout", 30, "overall timeout in seconds")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	priceCmd.Flags().StringVar(&flagInterval, "interval", "", "bar interval (1min, 5min, 15min, 30min, 60min, daily); empty for latest")
	newsCmd.Flags().StringVar(&flagFrom, "from", "", "earliest publication date (YYYY-MM-DD)")
	newsCmd.Flags().StringVar(&flagTo, "to", "", "latest publication date (YYYY-MM-DD)")

	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(newsCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildFetcher() (*fetch.Fetcher, zerolog.Logger, error) {
	level := zerolog.WarnLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, log, err
	}
	f, err := wireFetcher(cfg, log)
	if err != nil {
		return nil, log, err
	}
	return f, log, nil
}

// wireFetcher assembles the registry, limiter, cache and transport from
// configuration.
func wireFetcher(cfg config.Config, log zerolog.Logger) (*fetch.Fetcher, error) {
	adapters := map[string]fetch.Adapter{}
	if cfg.NewsAPI.Enabled && cfg.NewsAPI.APIKey != "" {
		adapters["newsapi"] = newsapi.New(newsapi.Config{
			BaseURL: cfg.NewsAPI.BaseURL,
			APIKey:  cfg.NewsAPI.APIKey,
		})
	}
	if cfg.AlphaVantage.Enabled && cfg.AlphaVantage.APIKey != "" {
		adapters["alphavantage"] = alphavantage.New(alphavantage.Config{
			BaseURL:  cfg.AlphaVantage.BaseURL,
			APIKey:   cfg.AlphaVantage.APIKey,
			Currency: cfg.AlphaVantage.Currency,
		})
	}
	if cfg.Finnhub.Enabled && cfg.Finnhub.APIKey != "" {
		adapters["finnhub"] = finnhub.New(finnhub.Config{
			BaseURL:  cfg.Finnhub.BaseURL,
			APIKey:   cfg.Finnhub.APIKey,
			Currency: cfg.Finnhub.Currency,
		})
	}
	if cfg.Polygon.Enabled && cfg.Polygon.APIKey != "" {
		adapters["polygon"] = polygon.New(polygon.Config{
			BaseURL:  cfg.Polygon.BaseURL,
			APIKey:   cfg.Polygon.APIKey,
			Currency: cfg.Polygon.Currency,
		})
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no providers configured; set NEWSAPI_KEY, ALPHA_VANTAGE_KEY, FINNHUB_KEY or POLYGON_KEY")
	}

	registry := fetch.NewRegistry(fetch.RegistryConfig{
		FailureThreshold: cfg.Fetch.FailureThreshold,
		BackoffBase:      time.Duration(cfg.Fetch.BackoffBaseSec) * time.Second,
		BackoffCap:       time.Duration(cfg.Fetch.BackoffCapSec) * time.Second,
	}, log)
	for _, id := range cfg.Fetch.NewsPriority {
		if a, ok := adapters[id]; ok {
			registry.Register(fetch.KindNews, a)
		}
	}
	for _, id := range cfg.Fetch.PricePriority {
		if a, ok := adapters[id]; ok {
			registry.Register(fetch.KindPrice, a)
		}
	}

	limiter := ratelimit.NewLimiter()
	for id, p := range cfg.Providers() {
		if p.Enabled {
			limiter.AddRPM(id, p.MaxRequestsPerMinute, p.Burst)
		}
	}

	var store *cache.Store[fetch.Result]
	if cfg.Fetch.CacheTTLSec > 0 {
		store = cache.New[fetch.Result](time.Duration(cfg.Fetch.CacheTTLSec)*time.Second, cfg.Fetch.CacheMaxItems)
	}

	transport := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	return fetch.New(registry, limiter, transport, store, fetch.Config{
		CallTimeout: time.Duration(cfg.Fetch.CallTimeoutSec) * time.Second,
		PermitWait:  time.Duration(cfg.Fetch.PermitWaitSec) * time.Second,
	}, log), nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
