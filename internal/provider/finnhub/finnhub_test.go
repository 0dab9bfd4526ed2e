package finnhub_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marketdata/internal/fetch"
	"marketdata/internal/provider/finnhub"
)

func TestBuildRequest_Quote(t *testing.T) {
	t.Parallel()

	a := finnhub.New(finnhub.Config{APIKey: "tok"})
	rd, err := a.BuildRequest(fetch.Query{Kind: fetch.KindPrice, Terms: "acme"})
	require.NoError(t, err)

	u, err := url.Parse(rd.URL)
	require.NoError(t, err)
	require.Equal(t, "/api/v1/quote", u.Path)
	require.Equal(t, "ACME", u.Query().Get("symbol"))
	require.Equal(t, "tok", rd.Headers["X-Finnhub-Token"])
	require.NotContains(t, rd.URL, "tok")
}

func TestBuildRequest_IntervalIsUnsupported(t *testing.T) {
	t.Parallel()

	a := finnhub.New(finnhub.Config{APIKey: "tok"})
	_, err := a.BuildRequest(fetch.Query{
		Kind:   fetch.KindPrice,
		Terms:  "ACME",
		Params: map[string]string{fetch.ParamInterval: "5min"},
	})
	require.ErrorIs(t, err, fetch.ErrUnsupportedQuery)
}

func TestBuildRequest_CompanyNewsWindow(t *testing.T) {
	t.Parallel()

	a := finnhub.New(finnhub.Config{APIKey: "tok"})

	rd, err := a.BuildRequest(fetch.Query{Kind: fetch.KindNews, Terms: "ACME", Params: map[string]string{
		fetch.ParamFrom: "2026-08-01",
		fetch.ParamTo:   "2026-08-28",
	}})
	require.NoError(t, err)

	u, err := url.Parse(rd.URL)
	require.NoError(t, err)
	require.Equal(t, "/api/v1/company-news", u.Path)
	require.Equal(t, "2026-08-01", u.Query().Get("from"))
	require.Equal(t, "2026-08-28", u.Query().Get("to"))
}

func TestBuildRequest_CompanyNewsDefaultsWindow(t *testing.T) {
	t.Parallel()

	a := finnhub.New(finnhub.Config{APIKey: "tok", NewsDays: 7})
	rd, err := a.BuildRequest(fetch.Query{Kind: fetch.KindNews, Terms: "ACME"})
	require.NoError(t, err)

	u, err := url.Parse(rd.URL)
	require.NoError(t, err)
	v := u.Query()

	to, err := time.Parse("2006-01-02", v.Get("to"))
	require.NoError(t, err)
	from, err := time.Parse("2006-01-02", v.Get("from"))
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, to.Sub(from))
}

func TestParseResponse_Quote(t *testing.T) {
	t.Parallel()

	body := []byte(`{"c": 101.5, "h": 103.2, "l": 100.1, "o": 102.0, "pc": 100.9, "t": 1787324400}`)

	a := finnhub.New(finnhub.Config{APIKey: "tok"})
	res, err := a.ParseResponse(fetch.Query{Kind: fetch.KindPrice, Terms: "acme"}, 200, body)
	require.NoError(t, err)
	require.NotNil(t, res.Quote)

	quote := *res.Quote
	require.Equal(t, "ACME", quote.Symbol)
	require.True(t, quote.Price.Equal(decimal.RequireFromString("101.5")))
	require.Equal(t, "USD", quote.Currency)
	require.Equal(t, time.Unix(1787324400, 0).UTC(), quote.AsOf)
	require.Equal(t, "finnhub", quote.Provider)
	require.Nil(t, quote.Volume)
}

func TestParseResponse_ZeroQuoteIsNotFound(t *testing.T) {
	t.Parallel()

	a := finnhub.New(finnhub.Config{APIKey: "tok"})
	_, err := a.ParseResponse(fetch.Query{Kind: fetch.KindPrice, Terms: "NOPE"}, 200,
		[]byte(`{"c": 0, "h": 0, "l": 0, "o": 0, "pc": 0, "t": 0}`))
	require.ErrorIs(t, err, fetch.ErrNotFound)
}

func TestParseResponse_News(t *testing.T) {
	t.Parallel()

	body := []byte(`[
		{"headline": "ACME beats estimates", "summary": "Up 12%.", "url": "https://fin.example/1", "source": "FinWire", "datetime": 1787324400},
		{"headline": "ACME expands", "summary": "", "url": "https://fin.example/2", "source": "FinWire", "datetime": 1787238000}
	]`)

	a := finnhub.New(finnhub.Config{APIKey: "tok"})
	res, err := a.ParseResponse(fetch.Query{Kind: fetch.KindNews, Terms: "ACME"}, 200, body)
	require.NoError(t, err)
	require.Len(t, res.News, 2)

	first := res.News[0]
	require.Equal(t, "ACME beats estimates", first.Headline)
	require.Equal(t, "FinWire", first.SourceName)
	require.Equal(t, time.Unix(1787324400, 0).UTC(), first.PublishedAt)
	require.NotNil(t, first.Summary)
	require.Nil(t, res.News[1].Summary)
}

func TestParseResponse_ErrorMapping(t *testing.T) {
	t.Parallel()

	a := finnhub.New(finnhub.Config{APIKey: "tok"})
	q := fetch.Query{Kind: fetch.KindPrice, Terms: "ACME"}

	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"http 429", 429, `{}`, fetch.ErrRateLimited},
		{"http 404", 404, `{}`, fetch.ErrNotFound},
		{"http 502", 502, `{}`, fetch.ErrUpstream},
		{"http 401", 401, `{"error": "Invalid API key"}`, fetch.ErrUpstream},
		{"not json", 200, `<html></html>`, fetch.ErrMalformedResponse},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := a.ParseResponse(q, c.status, []byte(c.body))
			require.ErrorIs(t, err, c.want)
		})
	}

	t.Run("empty news array", func(t *testing.T) {
		_, err := a.ParseResponse(fetch.Query{Kind: fetch.KindNews, Terms: "ACME"}, 200, []byte(`[]`))
		require.ErrorIs(t, err, fetch.ErrNotFound)
	})
}
