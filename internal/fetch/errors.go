package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying provider call outcomes. Adapters wrap these
// with provider-specific context; the Fetcher's candidate loop switches on
// them via errors.Is.
var (
	// ErrUnsupportedQuery means the adapter cannot express the query
	// (e.g. an interval the provider does not offer).
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrMalformedResponse means the provider answered with a payload
	// that does not match its documented schema.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRateLimited means the provider itself signaled throttling.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstream covers 5xx responses, transport failures and call
	// timeouts.
	ErrUpstream = errors.New("upstream error")

	// ErrNotFound means the provider reported no data for the symbol
	// or terms.
	ErrNotFound = errors.New("no data for query")
)

// penalizesHealth reports whether err is a provider-availability signal.
// Query- and payload-specific failures never count against health.
func penalizesHealth(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstream)
}

// Attempt records one provider's failure during a fetch pass.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every candidate provider failed.
// Attempts preserves candidate order so a caller can diagnose an outage
// without inspecting logs.
type ExhaustedError struct {
	Query    Query
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all providers exhausted for %s %q", e.Query.Kind, e.Query.Terms)
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Provider, a.Err)
	}
	return b.String()
}

// Unwrap exposes the per-provider causes so errors.Is can classify an
// exhaustion (e.g. all candidates rejected the query as unsupported).
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
