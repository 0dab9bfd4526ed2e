package fetch

import "context"

// RequestDescriptor is a fully formed upstream request, ready to be
// executed by a Transport. Credentials are already baked in by the
// adapter that built it.
type RequestDescriptor struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Transport performs the network call for a RequestDescriptor and
// returns the raw status and body. Adapters never perform I/O
// themselves; everything goes through an injected Transport.
//
//go:generate mockgen -package=fetch_test -destination=mock_transport_test.go -source=adapter.go Transport
type Transport interface {
	Do(ctx context.Context, req RequestDescriptor) (status int, body []byte, err error)
}

// Adapter translates between the normalized query/result schema and one
// provider's wire format. Implementations are pure translators
// constructed from their provider's credentials and base URL at startup.
type Adapter interface {
	// ID is the stable provider identifier used for health tracking,
	// rate limiting and the Provider field of results.
	ID() string

	// Supports reports whether the adapter can serve queries of kind.
	Supports(kind Kind) bool

	// BuildRequest translates a query into a provider request. Returns
	// an error wrapping ErrUnsupportedQuery when the query cannot be
	// expressed against this provider.
	BuildRequest(q Query) (RequestDescriptor, error)

	// ParseResponse translates a raw provider response into the
	// normalized schema. Errors wrap one of the taxonomy sentinels.
	ParseResponse(q Query, status int, body []byte) (Result, error)
}
