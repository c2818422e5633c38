package models

import "time"

// Deal is the canonical record of a scraped listing. It is built fresh each
// cycle by the normalizer and discarded afterwards; only Key is persisted in
// the dedup ledger.
type Deal struct {
	// Key is a stable identity derived from the ASIN and the whole-dollar
	// price tier, so sub-dollar price jitter on a re-scrape yields the
	// same deal.
	Key string

	ASIN           string
	Title          string
	PriceCents     int64
	OrigPriceCents int64
	Currency       string
	Category       string
	DiscountPct    int
	// URL is the canonical product link with the affiliate tag applied.
	URL string
	// SourceURL is the search-result link the listing was found under,
	// re-tagged. Kept for diagnostics.
	SourceURL    string
	DiscoveredAt time.Time

	// History is optional CamelCamelCamel enrichment attached by the
	// orchestrator before dispatch.
	History *PriceHistory
}

// PriceHistory holds the lowest/average prices reported by CamelCamelCamel.
type PriceHistory struct {
	Lowest  string
	Average string
	URL     string
}

// RawListing is the scraper's untyped output for a single search result.
type RawListing struct {
	Title         string `validate:"required"`
	PriceText     string `validate:"required"`
	OrigPriceText string
	ASIN          string `validate:"required"`
	Category      string `validate:"required"`
	SourceURL     string `validate:"omitempty,url"`
}
