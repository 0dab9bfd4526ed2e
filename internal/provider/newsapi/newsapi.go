// Package newsapi adapts the NewsAPI.org /everything endpoint.
// Throttling signal: HTTP 429, or an error body with code "rateLimited".
package newsapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketdata/internal/fetch"
)

type Config struct {
	ID       string // default "newsapi"
	BaseURL  string // default https://newsapi.org/v2
	APIKey   string
	PageSize int // articles per request, default 10
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	if cfg.ID == "" {
		cfg.ID = "newsapi"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org/v2"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ID() string { return a.cfg.ID }

func (a *Adapter) Supports(kind fetch.Kind) bool { return kind == fetch.KindNews }

func (a *Adapter) BuildRequest(q fetch.Query) (fetch.RequestDescriptor, error) {
	if q.Kind != fetch.KindNews {
		return fetch.RequestDescriptor{}, fmt.Errorf("%s serves news only: %w", a.cfg.ID, fetch.ErrUnsupportedQuery)
	}
	u, err := url.Parse(a.cfg.BaseURL + "/everything")
	if err != nil {
		return fetch.RequestDescriptor{}, fmt.Errorf("%s base url: %w", a.cfg.ID, fetch.ErrUnsupportedQuery)
	}
	v := url.Values{}
	v.Set("q", q.Terms)
	v.Set("sortBy", "publishedAt")
	v.Set("pageSize", strconv.Itoa(a.cfg.PageSize))
	if from := q.Param(fetch.ParamFrom); from != "" {
		v.Set("from", from)
	}
	if to := q.Param(fetch.ParamTo); to != "" {
		v.Set("to", to)
	}
	v.Set("apiKey", a.cfg.APIKey)
	u.RawQuery = v.Encode()

	return fetch.RequestDescriptor{
		Method:  http.MethodGet,
		URL:     u.String(),
		Headers: map[string]string{"Accept": "application/json"},
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
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fetch.Result{}, fmt.Errorf("%s: decode: %v: %w", a.cfg.ID, err, fetch.ErrMalformedResponse)
	}
	if resp.Status == "error" {
		if resp.Code == "rateLimited" {
			return fetch.Result{}, fmt.Errorf("%s: %s: %w", a.cfg.ID, resp.Message, fetch.ErrRateLimited)
		}
		return fetch.Result{}, fmt.Errorf("%s: %s (%s): %w", a.cfg.ID, resp.Message, resp.Code, fetch.ErrUpstream)
	}
	if status != http.StatusOK {
		return fetch.Result{}, fmt.Errorf("%s: status %d: %w", a.cfg.ID, status, fetch.ErrUpstream)
	}
	if len(resp.Articles) == 0 {
		return fetch.Result{}, fmt.Errorf("%s: no articles for %q: %w", a.cfg.ID, q.Terms, fetch.ErrNotFound)
	}

	items := make([]fetch.NewsItem, 0, len(resp.Articles))
	for _, art := range resp.Articles {
		publishedAt, err := time.Parse(time.RFC3339, art.PublishedAt)
		if err != nil {
			return fetch.Result{}, fmt.Errorf("%s: publishedAt %q: %w", a.cfg.ID, art.PublishedAt, fetch.ErrMalformedResponse)
		}
		item := fetch.NewsItem{
			Headline:    art.Title,
			SourceName:  art.Source.Name,
			PublishedAt: publishedAt.UTC(),
			URL:         art.URL,
		}
		if art.Description != "" {
			d := art.Description
			item.Summary = &d
		}
		items = append(items, item)
	}
	return fetch.Result{Kind: fetch.KindNews, News: items}, nil
}

type apiResponse struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}
