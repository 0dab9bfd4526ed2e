// Package polygon adapts the Polygon v1 last-quote endpoint.
// Throttling signal: HTTP 429; bodies with status "ERROR" are upstream
// failures.
package polygon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketdata/internal/fetch"
)

type Config struct {
	ID       string // default "polygon"
	BaseURL  string // default https://api.polygon.io/v1
	APIKey   string
	Currency string // quote currency, default USD
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	if cfg.ID == "" {
		cfg.ID = "polygon"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.polygon.io/v1"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ID() string { return a.cfg.ID }

func (a *Adapter) Supports(kind fetch.Kind) bool { return kind == fetch.KindPrice }

func (a *Adapter) BuildRequest(q fetch.Query) (fetch.RequestDescriptor, error) {
	if q.Kind != fetch.KindPrice {
		return fetch.RequestDescriptor{}, fmt.Errorf("%s serves prices only: %w", a.cfg.ID, fetch.ErrUnsupportedQuery)
	}
	// The last-quote endpoint has no historical granularity.
	if interval := q.Param(fetch.ParamInterval); interval != "" {
		return fetch.RequestDescriptor{}, fmt.Errorf("%s: interval %q: %w", a.cfg.ID, interval, fetch.ErrUnsupportedQuery)
	}

	symbol := strings.ToUpper(strings.TrimSpace(q.Terms))
	v := url.Values{}
	v.Set("apiKey", a.cfg.APIKey)

	return fetch.RequestDescriptor{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/last/quote/%s?%s", a.cfg.BaseURL, url.PathEscape(symbol), v.Encode()),
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

func (a *Adapter) ParseResponse(q fetch.Query, status int, body []byte) (fetch.Result, error) {
	switch {
	case status == http.StatusTooManyRequests:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrRateLimited)
	case status == http.StatusNotFound:
		return fetch.Result{}, fmt.Errorf("%s: no data for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	case status >= 500:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrUpstream)
	case status != http.StatusOK:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrUpstream)
	}

	var resp lastQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	if strings.EqualFold(resp.Status, "error") {
		return fetch.Result{}, fmt.Errorf("%s: %s: %w", a.cfg.ID, resp.Message, fetch.ErrUpstream)
	}
	if resp.Last == nil || resp.Last.Price == "" {
		return fetch.Result{}, fmt.Errorf("%s: no quote for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}

	price, err := decimal.NewFromString(resp.Last.Price.String())
	if err != nil {
		return fetch.Result{}, fmt.Errorf("%s: price %q: %w", a.cfg.ID, resp.Last.Price, fetch.ErrMalformedResponse)
	}

	symbol := resp.Symbol
	if symbol == "" {
		symbol = strings.ToUpper(q.Terms)
	}
	quote := fetch.PriceQuote{
		Symbol:   symbol,
		Price:    price,
		Currency: a.cfg.Currency,
		AsOf:     epochMaybeMillis(resp.Last.Timestamp),
		Provider: a.cfg.ID,
	}
	return fetch.Result{Kind: fetch.KindPrice, Quote: &quote}, nil
}

func epochMaybeMillis(v int64) time.Time {
	if v <= 0 {
		return time.Now().UTC()
	}
	if v > 1_000_000_000_000 { // ms
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

type lastQuoteResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol"`
	Last    *lastQuote `json:"last"`
}

type lastQuote struct {
	Price     json.Number `json:"price"`
	Size      int64       `json:"size"`
	Timestamp int64       `json:"timestamp"`
}
