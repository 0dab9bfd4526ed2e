package fetch

import (
	"sort"
	"strings"
)

// Kind selects which class of data a query asks for.
type Kind string

const (
	KindNews  Kind = "news"
	KindPrice Kind = "price"
)

// Query is the normalized, provider-independent form of a request.
// Terms holds the ticker symbol for price queries and the search terms
// for news queries. Params carries optional refinements such as
// "interval", "from" and "to".
type Query struct {
	Kind   Kind
	Terms  string
	Params map[string]string
}

// ParamKeyInterval and friends are the parameter keys adapters understand.
const (
	ParamInterval = "interval"
	ParamFrom     = "from"
	ParamTo       = "to"
)

// Fingerprint returns a stable cache key for the query. Parameter order
// does not affect the result; empty parameter values are ignored.
func (q Query) Fingerprint() string {
	keys := make([]string, 0, len(q.Params))
	for k, v := range q.Params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(q.Kind))
	b.WriteByte('|')
	b.WriteString(strings.ToUpper(strings.TrimSpace(q.Terms)))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.Params[k])
	}
	return b.String()
}

// Param returns a query parameter or "" when unset.
func (q Query) Param(key string) string {
	if q.Params == nil {
		return ""
	}
	return q.Params[key]
}
