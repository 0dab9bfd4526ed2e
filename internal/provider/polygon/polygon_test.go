package polygon_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marketdata/internal/fetch"
	"marketdata/internal/provider/polygon"
)

func TestBuildRequest_LastQuote(t *testing.T) {
	t.Parallel()

	a := polygon.New(polygon.Config{APIKey: "k"})
	rd, err := a.BuildRequest(fetch.Query{Kind: fetch.KindPrice, Terms: " acme "})
	require.NoError(t, err)
	require.Equal(t, "GET", rd.Method)
	require.Equal(t, "https://api.polygon.io/v1/last/quote/ACME?apiKey=k", rd.URL)
}

func TestBuildRequest_Unsupported(t *testing.T) {
	t.Parallel()

	a := polygon.New(polygon.Config{APIKey: "k"})

	_, err := a.BuildRequest(fetch.Query{Kind: fetch.KindNews, Terms: "ACME"})
	require.ErrorIs(t, err, fetch.ErrUnsupportedQuery)

	_, err = a.BuildRequest(fetch.Query{
		Kind:   fetch.KindPrice,
		Terms:  "ACME",
		Params: map[string]string{fetch.ParamInterval: "daily"},
	})
	require.ErrorIs(t, err, fetch.ErrUnsupportedQuery)
}

func TestParseResponse_LastQuote(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"status": "success",
		"symbol": "ACME",
		"last": {"price": 101.5, "size": 100, "timestamp": 1787324400123}
	}`)

	a := polygon.New(polygon.Config{APIKey: "k"})
	res, err := a.ParseResponse(fetch.Query{Kind: fetch.KindPrice, Terms: "acme"}, 200, body)
	require.NoError(t, err)
	require.NotNil(t, res.Quote)

	quote := *res.Quote
	require.Equal(t, "ACME", quote.Symbol)
	require.True(t, quote.Price.Equal(decimal.RequireFromString("101.5")))
	require.Equal(t, "USD", quote.Currency)
	require.Equal(t, time.UnixMilli(1787324400123).UTC(), quote.AsOf)
	require.Equal(t, "polygon", quote.Provider)
}

func TestParseResponse_SecondTimestampsAreAccepted(t *testing.T) {
	t.Parallel()

	body := []byte(`{"status": "success", "symbol": "ACME", "last": {"price": 5, "timestamp": 1787324400}}`)

	a := polygon.New(polygon.Config{APIKey: "k"})
	res, err := a.ParseResponse(fetch.Query{Kind: fetch.KindPrice, Terms: "ACME"}, 200, body)
	require.NoError(t, err)
	require.Equal(t, time.Unix(1787324400, 0).UTC(), res.Quote.AsOf)
}

func TestParseResponse_ErrorMapping(t *testing.T) {
	t.Parallel()

	a := polygon.New(polygon.Config{APIKey: "k"})
	q := fetch.Query{Kind: fetch.KindPrice, Terms: "ACME"}

	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"http 429", 429, `{}`, fetch.ErrRateLimited},
		{"http 404", 404, `{}`, fetch.ErrNotFound},
		{"http 500", 500, `{}`, fetch.ErrUpstream},
		{"body error status", 200, `{"status": "ERROR", "message": "unknown ticker"}`, fetch.ErrUpstream},
		{"missing last", 200, `{"status": "success", "symbol": "ACME"}`, fetch.ErrNotFound},
		{"empty last price", 200, `{"status": "success", "last": {"timestamp": 1}}`, fetch.ErrNotFound},
		{"not json", 200, `<html></html>`, fetch.ErrMalformedResponse},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := a.ParseResponse(q, c.status, []byte(c.body))
			require.ErrorIs(t, err, c.want)
		})
	}
}
