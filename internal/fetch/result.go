package fetch

import (
	"time"

	"github.com/shopspring/decimal"
)

// NewsItem is the normalized shape every news provider maps onto.
// Summary is nil when the provider's payload has no summary; it is
// never synthesized.
type NewsItem struct {
	Headline    string    `json:"headline"`
	SourceName  string    `json:"source_name"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	Summary     *string   `json:"summary,omitempty"`
}

// PriceQuote is the normalized shape every price provider maps onto.
// Provider records which adapter produced the quote.
type PriceQuote struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	AsOf     time.Time       `json:"as_of"`
	Volume   *int64          `json:"volume,omitempty"`
	Provider string          `json:"provider"`
}

// Result is the union of normalized payloads an adapter can produce.
// Exactly one of News or Quote is set, matching Kind.
type Result struct {
	Kind  Kind        `json:"kind"`
	News  []NewsItem  `json:"news,omitempty"`
	Quote *PriceQuote `json:"quote,omitempty"`
}
