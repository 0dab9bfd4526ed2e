// Package finnhub adapts the Finnhub /quote and /company-news
// endpoints. Authentication travels in the X-Finnhub-Token header.
// Throttling signal: HTTP 429.
package finnhub

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
	ID       string // default "finnhub"
	BaseURL  string // default https://finnhub.io/api/v1
	APIKey   string
	Currency string // quote currency, default USD
	NewsDays int    // default lookback for company news, default 7
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	if cfg.ID == "" {
		cfg.ID = "finnhub"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.NewsDays <= 0 {
		cfg.NewsDays = 7
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ID() string { return a.cfg.ID }

func (a *Adapter) Supports(kind fetch.Kind) bool {
	return kind == fetch.KindPrice || kind == fetch.KindNews
}

func (a *Adapter) BuildRequest(q fetch.Query) (fetch.RequestDescriptor, error) {
	var endpoint string
	v := url.Values{}
	switch q.Kind {
	case fetch.KindPrice:
		// /quote is real-time only; intervals are not expressible.
		if interval := q.Param(fetch.ParamInterval); interval != "" {
			return fetch.RequestDescriptor{}, fmt.Errorf("%s: interval %q: %w", a.cfg.ID, interval, fetch.ErrUnsupportedQuery)
		}
		endpoint = "/quote"
		v.Set("symbol", strings.ToUpper(q.Terms))
	case fetch.KindNews:
		endpoint = "/company-news"
		v.Set("symbol", strings.ToUpper(q.Terms))
		from := q.Param(fetch.ParamFrom)
		to := q.Param(fetch.ParamTo)
		// The endpoint requires a window; default to the recent past.
		if to == "" {
			to = time.Now().UTC().Format("2006-01-02")
		}
		if from == "" {
			from = time.Now().UTC().AddDate(0, 0, -a.cfg.NewsDays).Format("2006-01-02")
		}
		v.Set("from", from)
		v.Set("to", to)
	default:
		return fetch.RequestDescriptor{}, fmt.Errorf("%s: kind %q: %w", a.cfg.ID, q.Kind, fetch.ErrUnsupportedQuery)
	}

	return fetch.RequestDescriptor{
		Method: http.MethodGet,
		URL:    a.cfg.BaseURL + endpoint + "?" + v.Encode(),
		Headers: map[string]string{
			"Accept":          "application/json",
			"X-Finnhub-Token": a.cfg.APIKey,
		},
	}, nil
}

func (a *Adapter) ParseResponse(q fetch.Query, status int, body []byte) (fetch.Result, error) {
	switch {
	case status == http.StatusTooManyRequests:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrRateLimited)
	case status == http.StatusNotFound:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrNotFound)
	case status >= 500:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrUpstream)
	case status != http.StatusOK:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrUpstream)
	}

	if q.Kind == fetch.KindNews {
		return a.parseNews(q, body)
	}
	return a.parseQuote(q, body)
}

func (a *Adapter) parseQuote(q fetch.Query, body []byte) (fetch.Result, error) {
	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode quote: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	// Unknown symbols come back as an all-zero quote.
	if resp.Current == "" || (isZero(resp.Current) && resp.Timestamp == 0) {
		return fetch.Result{}, fmt.Errorf("%s: no quote for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}
	price, err := decimal.NewFromString(resp.Current.String())
	if err != nil {
		return fetch.Result{}, fmt.Errorf("%s: price %q: %w", a.cfg.ID, resp.Current, fetch.ErrMalformedResponse)
	}

	quote := fetch.PriceQuote{
		Symbol:   strings.ToUpper(q.Terms),
		Price:    price,
		Currency: a.cfg.Currency,
		AsOf:     time.Unix(resp.Timestamp, 0).UTC(),
		Provider: a.cfg.ID,
	}
	return fetch.Result{Kind: fetch.KindPrice, Quote: &quote}, nil
}

func (a *Adapter) parseNews(q fetch.Query, body []byte) (fetch.Result, error) {
	var articles []newsArticle
	if err := json.Unmarshal(body, &articles); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode news: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	if len(articles) == 0 {
		return fetch.Result{}, fmt.Errorf("%s: no articles for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}

	items := make([]fetch.NewsItem, 0, len(articles))
	for _, art := range articles {
		item := fetch.NewsItem{
			Headline:    art.Headline,
			SourceName:  art.Source,
			PublishedAt: time.Unix(art.Datetime, 0).UTC(),
			URL:         art.URL,
		}
		if art.Summary != "" {
			s := art.Summary
			item.Summary = &s
		}
		items = append(items, item)
	}
	return fetch.Result{Kind: fetch.KindNews, News: items}, nil
}

func isZero(n json.Number) bool {
	s := n.String()
	return s == "0" || s == "0.0" || s == ""
}

type quoteResponse struct {
	Current   json.Number `json:"c"`
	Timestamp int64       `json:"t"`
}

type newsArticle struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Datetime int64  `json:"datetime"`
}
