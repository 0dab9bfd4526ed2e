// Package alphavantage adapts three Alpha Vantage functions:
// GLOBAL_QUOTE (latest quote), TIME_SERIES_INTRADAY / TIME_SERIES_DAILY
// (interval quotes from the most recent bar) and NEWS_SENTIMENT
// (ticker news). Throttling signal: a 200 response whose body carries a
// "Note" or "Information" message instead of data.
package alphavantage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketdata/internal/fetch"
)

type Config struct {
	ID        string // default "alphavantage"
	BaseURL   string // default https://www.alphavantage.co/query
	APIKey    string
	Currency  string // quote currency, default USD (Alpha Vantage serves US listings)
	NewsLimit int    // max news items, default 50
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	if cfg.ID == "" {
		cfg.ID = "alphavantage"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co/query"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.NewsLimit <= 0 {
		cfg.NewsLimit = 50
	}
	return &Adapter{cfg: cfg}
}

// intradayIntervals are the granularities TIME_SERIES_INTRADAY offers.
var intradayIntervals = map[string]bool{
	"1min":  true,
	"5min":  true,
	"15min": true,
	"30min": true,
	"60min": true,
}

func (a *Adapter) ID() string { return a.cfg.ID }

func (a *Adapter) Supports(kind fetch.Kind) bool {
	return kind == fetch.KindPrice || kind == fetch.KindNews
}

func (a *Adapter) BuildRequest(q fetch.Query) (fetch.RequestDescriptor, error) {
	v := url.Values{}
	switch q.Kind {
	case fetch.KindPrice:
		interval := q.Param(fetch.ParamInterval)
		switch {
		case interval == "":
			v.Set("function", "GLOBAL_QUOTE")
			v.Set("symbol", q.Terms)
		case interval == "daily":
			v.Set("function", "TIME_SERIES_DAILY")
			v.Set("symbol", q.Terms)
		case intradayIntervals[interval]:
			v.Set("function", "TIME_SERIES_INTRADAY")
			v.Set("symbol", q.Terms)
			v.Set("interval", interval)
		default:
			return fetch.RequestDescriptor{}, fmt.Errorf("%s: interval %q: %w", a.cfg.ID, interval, fetch.ErrUnsupportedQuery)
		}
	case fetch.KindNews:
		v.Set("function", "NEWS_SENTIMENT")
		v.Set("tickers", q.Terms)
		v.Set("sort", "LATEST")
		v.Set("limit", strconv.Itoa(a.cfg.NewsLimit))
		if from := q.Param(fetch.ParamFrom); from != "" {
			v.Set("time_from", avTime(from))
		}
		if to := q.Param(fetch.ParamTo); to != "" {
			v.Set("time_to", avTime(to))
		}
	default:
		return fetch.RequestDescriptor{}, fmt.Errorf("%s: kind %q: %w", a.cfg.ID, q.Kind, fetch.ErrUnsupportedQuery)
	}
	v.Set("apikey", a.cfg.APIKey)

	return fetch.RequestDescriptor{
		Method:  http.MethodGet,
		URL:     a.cfg.BaseURL + "?" + v.Encode(),
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

// avTime converts a 2006-01-02 date into Alpha Vantage's 20060102T1504.
func avTime(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("20060102T1504")
}

func (a *Adapter) ParseResponse(q fetch.Query, status int, body []byte) (fetch.Result, error) {
	switch {
	case status == http.StatusTooManyRequests:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrRateLimited)
	case status >= 500:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrUpstream)
	case status != http.StatusOK:
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrUpstream)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	// Alpha Vantage reports throttling inside a 200 body.
	for _, key := range []string{"Note", "Information"} {
		if raw, ok := top[key]; ok {
			var msg string
			_ = json.Unmarshal(raw, &msg)
			return fetch.Result{}, fmt.Errorf("%s: %s: %w", a.cfg.ID, msg, fetch.ErrRateLimited)
		}
	}
	if raw, ok := top["Error Message"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return fetch.Result{}, fmt.Errorf("%s: %s: %w", a.cfg.ID, msg, fetch.ErrNotFound)
	}

	if q.Kind == fetch.KindNews {
		return a.parseNews(q, body)
	}
	if q.Param(fetch.ParamInterval) == "" {
		return a.parseGlobalQuote(q, top)
	}
	return a.parseSeries(q, top)
}

func (a *Adapter) parseGlobalQuote(q fetch.Query, top map[string]json.RawMessage) (fetch.Result, error) {
	raw, ok := top["Global Quote"]
	if !ok {
		return fetch.Result{}, fmt.Errorf("%s: missing Global Quote: %w", a.cfg.ID, fetch.ErrMalformedResponse)
	}
	var gq globalQuote
	if err := json.Unmarshal(raw, &gq); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode Global Quote: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	if gq.Symbol == "" {
		// Unknown symbols come back as an empty object.
		return fetch.Result{}, fmt.Errorf("%s: empty quote for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}

	price, err := decimal.NewFromString(gq.Price)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("%s: price %q: %w", a.cfg.ID, gq.Price, fetch.ErrMalformedResponse)
	}
	asOf, err := time.Parse("2006-01-02", gq.LatestTradingDay)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("%s: latest trading day %q: %w", a.cfg.ID, gq.LatestTradingDay, fetch.ErrMalformedResponse)
	}

	quote := fetch.PriceQuote{
		Symbol:   gq.Symbol,
		Price:    price,
		Currency: a.cfg.Currency,
		AsOf:     asOf.UTC(),
		Provider: a.cfg.ID,
	}
	if gq.Volume != "" {
		if vol, err := strconv.ParseInt(gq.Volume, 10, 64); err == nil {
			quote.Volume = &vol
		}
	}
	return fetch.Result{Kind: fetch.KindPrice, Quote: &quote}, nil
}

// parseSeries normalizes the newest bar of a TIME_SERIES_* payload.
func (a *Adapter) parseSeries(q fetch.Query, top map[string]json.RawMessage) (fetch.Result, error) {
	var raw json.RawMessage
	for key, r := range top {
		if strings.HasPrefix(key, "Time Series") {
			raw = r
			break
		}
	}
	if raw == nil {
		return fetch.Result{}, fmt.Errorf("%s: missing time series for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}
	var series map[string]bar
	if err := json.Unmarshal(raw, &series); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode series: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	if len(series) == 0 {
		return fetch.Result{}, fmt.Errorf("%s: empty series for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}

	// Timestamps sort lexicographically; the max key is the newest bar.
	var newest string
	for ts := range series {
		if ts > newest {
			newest = ts
		}
	}
	b := series[newest]

	price, err := decimal.NewFromString(b.Close)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("%s: close %q: %w", a.cfg.ID, b.Close, fetch.ErrMalformedResponse)
	}
	asOf, err := parseBarTime(newest)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("%s: bar time %q: %w", a.cfg.ID, newest, fetch.ErrMalformedResponse)
	}

	quote := fetch.PriceQuote{
		Symbol:   strings.ToUpper(q.Terms),
		Price:    price,
		Currency: a.cfg.Currency,
		AsOf:     asOf,
		Provider: a.cfg.ID,
	}
	if b.Volume != "" {
		if vol, err := strconv.ParseInt(b.Volume, 10, 64); err == nil {
			quote.Volume = &vol
		}
	}
	return fetch.Result{Kind: fetch.KindPrice, Quote: &quote}, nil
}

func parseBarTime(ts string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (a *Adapter) parseNews(q fetch.Query, body []byte) (fetch.Result, error) {
	var resp newsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode feed: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	if len(resp.Feed) == 0 {
		return fetch.Result{}, fmt.Errorf("%s: no articles for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}

	items := make([]fetch.NewsItem, 0, len(resp.Feed))
	for _, f := range resp.Feed {
		publishedAt, err := time.Parse("20060102T150405", f.TimePublished)
		if err != nil {
			return fetch.Result{}, fmt.Errorf("%s: time_published %q: %w", a.cfg.ID, f.TimePublished, fetch.ErrMalformedResponse)
		}
		item := fetch.NewsItem{
			Headline:    f.Title,
			SourceName:  f.Source,
			PublishedAt: publishedAt.UTC(),
			URL:         f.URL,
		}
		if f.Summary != "" {
			s := f.Summary
			item.Summary = &s
		}
		items = append(items, item)
	}
	return fetch.Result{Kind: fetch.KindNews, News: items}, nil
}

type globalQuote struct {
	Symbol           string `json:"01. symbol"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
}

type bar struct {
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type newsResponse struct {
	Feed []feedItem `json:"feed"`
}

type feedItem struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	URL           string `json:"url"`
	Source        string `json:"source"`
	TimePublished string `json:"time_published"`
}
