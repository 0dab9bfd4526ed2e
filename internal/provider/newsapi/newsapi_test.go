package newsapi_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketdata/internal/fetch"
	"marketdata/internal/provider/newsapi"
)

func newsQuery(terms string, params map[string]string) fetch.Query {
	return fetch.Query{Kind: fetch.KindNews, Terms: terms, Params: params}
}

func TestBuildRequest_EverythingEndpoint(t *testing.T) {
	t.Parallel()

	a := newsapi.New(newsapi.Config{APIKey: "k", PageSize: 5})

	rd, err := a.BuildRequest(newsQuery("ACME earnings", map[string]string{
		fetch.ParamFrom: "2026-08-01",
		fetch.ParamTo:   "2026-08-28",
	}))
	require.NoError(t, err)
	require.Equal(t, "GET", rd.Method)

	u, err := url.Parse(rd.URL)
	require.NoError(t, err)
	require.Equal(t, "/v2/everything", u.Path)

	v := u.Query()
	require.Equal(t, "ACME earnings", v.Get("q"))
	require.Equal(t, "publishedAt", v.Get("sortBy"))
	require.Equal(t, "5", v.Get("pageSize"))
	require.Equal(t, "2026-08-01", v.Get("from"))
	require.Equal(t, "2026-08-28", v.Get("to"))
	require.Equal(t, "k", v.Get("apiKey"))
}

func TestBuildRequest_RejectsPriceQueries(t *testing.T) {
	t.Parallel()

	a := newsapi.New(newsapi.Config{APIKey: "k"})
	_, err := a.BuildRequest(fetch.Query{Kind: fetch.KindPrice, Terms: "ACME"})
	require.ErrorIs(t, err, fetch.ErrUnsupportedQuery)
}

func TestParseResponse_Articles(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"status": "ok",
		"totalResults": 2,
		"articles": [
			{
				"source": {"id": null, "name": "Wire"},
				"title": "ACME beats estimates",
				"description": "Quarterly revenue up 12%.",
				"url": "https://wire.example/acme",
				"publishedAt": "2026-08-28T14:05:00Z"
			},
			{
				"source": {"id": "biz", "name": "Biz Daily"},
				"title": "ACME expands",
				"description": "",
				"url": "https://biz.example/acme",
				"publishedAt": "2026-08-27T09:30:00Z"
			}
		]
	}`)

	a := newsapi.New(newsapi.Config{APIKey: "k"})
	res, err := a.ParseResponse(newsQuery("ACME", nil), 200, body)
	require.NoError(t, err)
	require.Equal(t, fetch.KindNews, res.Kind)
	require.Len(t, res.News, 2)

	first := res.News[0]
	require.Equal(t, "ACME beats estimates", first.Headline)
	require.Equal(t, "Wire", first.SourceName)
	require.Equal(t, "https://wire.example/acme", first.URL)
	require.Equal(t, time.Date(2026, 8, 28, 14, 5, 0, 0, time.UTC), first.PublishedAt)
	require.NotNil(t, first.Summary)
	require.Equal(t, "Quarterly revenue up 12%.", *first.Summary)

	// Empty descriptions stay nil instead of pointing at "".
	require.Nil(t, res.News[1].Summary)
}

func TestParseResponse_ErrorMapping(t *testing.T) {
	t.Parallel()

	a := newsapi.New(newsapi.Config{APIKey: "k"})
	q := newsQuery("ACME", nil)

	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"http 429", 429, `{}`, fetch.ErrRateLimited},
		{"http 404", 404, `{}`, fetch.ErrNotFound},
		{"http 500", 500, `{}`, fetch.ErrUpstream},
		{"body rateLimited", 200, `{"status":"error","code":"rateLimited","message":"slow down"}`, fetch.ErrRateLimited},
		{"body apiKeyInvalid", 200, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`, fetch.ErrUpstream},
		{"empty articles", 200, `{"status":"ok","articles":[]}`, fetch.ErrNotFound},
		{"not json", 200, `<html>upstream proxy</html>`, fetch.ErrMalformedResponse},
		{"bad publishedAt", 200, `{"status":"ok","articles":[{"source":{"name":"Wire"},"title":"t","url":"u","publishedAt":"yesterday"}]}`, fetch.ErrMalformedResponse},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := a.ParseResponse(q, c.status, []byte(c.body))
			require.ErrorIs(t, err, c.want)
		})
	}
}

func TestParseResponse_IsIdempotent(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"status": "ok",
		"articles": [{
			"source": {"name": "Wire"},
			"title": "ACME beats estimates",
			"description": "Revenue up.",
			"url": "https://wire.example/acme",
			"publishedAt": "2026-08-28T14:05:00Z"
		}]
	}`)

	a := newsapi.New(newsapi.Config{APIKey: "k"})
	q := newsQuery("ACME", nil)

	first, err := a.ParseResponse(q, 200, body)
	require.NoError(t, err)
	second, err := a.ParseResponse(q, 200, body)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
