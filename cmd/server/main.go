package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

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

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("LOG_LEVEL") == "debug" {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	fetcher, registry, err := wireFetcher(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	h := &handler{fetcher: fetcher, registry: registry, providerIDs: providerIDs(cfg), log: log}
	router.GET("/healthz", h.healthz)
	router.GET("/api/price", h.getPrice)
	router.GET("/api/news", h.getNews)
	router.GET("/api/providers", h.getProviders)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type handler struct {
	fetcher     *fetch.Fetcher
	registry    *fetch.Registry
	providerIDs []string
	log         zerolog.Logger
}

func (h *handler) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *handler) getPrice(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing symbol query param"})
		return
	}
	quote, err := h.fetcher.FetchPrice(c.Request.Context(), symbol, c.Query("interval"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *handler) getNews(c *gin.Context) {
	terms := c.Query("q")
	if terms == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q query param"})
		return
	}
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, want YYYY-MM-DD"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, want YYYY-MM-DD"})
		return
	}
	items, err := h.fetcher.FetchNews(c.Request.Context(), terms, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": items})
}

// getProviders exposes health state for operational inspection.
func (h *handler) getProviders(c *gin.Context) {
	type providerStatus struct {
		ID                  string     `json:"id"`
		ConsecutiveFailures int        `json:"consecutive_failures"`
		DisabledUntil       *time.Time `json:"disabled_until,omitempty"`
		LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	}
	out := make([]providerStatus, 0, len(h.providerIDs))
	for _, id := range h.providerIDs {
		health, ok := h.registry.HealthOf(id)
		if !ok {
			continue
		}
		ps := providerStatus{ID: id, ConsecutiveFailures: health.ConsecutiveFailures}
		if !health.DisabledUntil.IsZero() {
			t := health.DisabledUntil
			ps.DisabledUntil = &t
		}
		if !health.LastSuccessAt.IsZero() {
			t := health.LastSuccessAt
			ps.LastSuccessAt = &t
		}
		out = append(out, ps)
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

func (h *handler) writeError(c *gin.Context, err error) {
	var exhausted *fetch.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		causes := make([]gin.H, 0, len(exhausted.Attempts))
		for _, a := range exhausted.Attempts {
			causes = append(causes, gin.H{"provider": a.Provider, "cause": a.Err.Error()})
		}
		status := http.StatusBadGateway
		if errorsAllNotFound(exhausted) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "all providers exhausted", "attempts": causes})
	case errors.Is(err, fetch.ErrUnsupportedQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		// client went away; nothing to write
	default:
		h.log.Error().Err(err).Msg("fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func errorsAllNotFound(e *fetch.ExhaustedError) bool {
	for _, a := range e.Attempts {
		if !errors.Is(a.Err, fetch.ErrNotFound) {
			return false
		}
	}
	return len(e.Attempts) > 0
}

func providerIDs(cfg config.Config) []string {
	out := make([]string, 0, 4)
	for id, p := range cfg.Providers() {
		if p.Enabled && p.APIKey != "" {
			out = append(out, id)
		}
	}
	return out
}

// wireFetcher assembles the registry, limiter, cache and transport from
// configuration.
func wireFetcher(cfg config.Config, log zerolog.Logger) (*fetch.Fetcher, *fetch.Registry, error) {
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
		return nil, nil, fmt.Errorf("no providers configured; set NEWSAPI_KEY, ALPHA_VANTAGE_KEY, FINNHUB_KEY or POLYGON_KEY")
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

	f := fetch.New(registry, limiter, transport, store, fetch.Config{
		CallTimeout: time.Duration(cfg.Fetch.CallTimeoutSec) * time.Second,
		PermitWait:  time.Duration(cfg.Fetch.PermitWaitSec) * time.Second,
	}, log)
	return f, registry, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
