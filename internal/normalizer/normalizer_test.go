package normalizer

import (
	"errors"
	"testing"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

func validListing() models.RawListing {
	return models.RawListing{
		Title:         "Widget Pro",
		PriceText:     "19.99",
		OrigPriceText: "$199.99",
		ASIN:          "X1",
		Category:      "electronics",
		SourceURL:     "https://www.amazon.ca/dp/X1",
	}
}

func TestNormalize(t *testing.T) {
	n := New("test-tag-20")
	deal, err := n.Normalize(validListing())
	if err != nil {
		t.Fatalf("Normalize returned unexpected error: %v", err)
	}

	if deal.Title != "Widget Pro" {
		t.Errorf("Title = %q", deal.Title)
	}
	if deal.PriceCents != 1999 {
		t.Errorf("PriceCents = %d, want 1999", deal.PriceCents)
	}
	if deal.OrigPriceCents != 19999 {
		t.Errorf("OrigPriceCents = %d, want 19999", deal.OrigPriceCents)
	}
	if deal.DiscountPct != 90 {
		t.Errorf("DiscountPct = %d, want 90", deal.DiscountPct)
	}
	if deal.URL != "https://www.amazon.ca/dp/X1?tag=test-tag-20" {
		t.Errorf("URL = %q", deal.URL)
	}
	if deal.SourceURL != "https://www.amazon.ca/dp/X1?tag=test-tag-20" {
		t.Errorf("SourceURL = %q, want re-tagged source link", deal.SourceURL)
	}
	if deal.Key == "" {
		t.Error("Key is empty")
	}
	if deal.DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt is zero")
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := New("test-tag-20")
	first, err := n.Normalize(validListing())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := n.Normalize(validListing())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if first.Key != second.Key {
		t.Errorf("Re-normalizing the same listing gave different keys: %q vs %q", first.Key, second.Key)
	}
}

func TestNormalize_MissingFields(t *testing.T) {
	n := New("test-tag-20")

	tests := []struct {
		name   string
		mutate func(*models.RawListing)
		reason Reason
	}{
		{"no title", func(r *models.RawListing) { r.Title = "" }, MissingTitle},
		{"no price", func(r *models.RawListing) { r.PriceText = "" }, MissingPrice},
		{"unparseable price", func(r *models.RawListing) { r.PriceText = "free shipping" }, MissingPrice},
		{"no asin", func(r *models.RawListing) { r.ASIN = "" }, MissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validListing()
			tt.mutate(&raw)
			_, err := n.Normalize(raw)
			if err == nil {
				t.Fatal("Expected error")
			}
			var nErr *Error
			if !errors.As(err, &nErr) {
				t.Fatalf("Expected *Error, got %T", err)
			}
			if nErr.Reason != tt.reason {
				t.Errorf("Reason = %s, want %s", nErr.Reason, tt.reason)
			}
		})
	}
}

func TestDealKey_PriceTierRounding(t *testing.T) {
	// Sub-dollar jitter stays in the same tier.
	if DealKey("X1", 1999) != DealKey("X1", 1950) {
		t.Error("Expected 19.99 and 19.50 to share an identity key")
	}
	// A full-dollar move is a different deal.
	if DealKey("X1", 1999) == DealKey("X1", 1899) {
		t.Error("Expected 19.99 and 18.99 to have different identity keys")
	}
	// Different products never collide on tier alone.
	if DealKey("X1", 1999) == DealKey("X2", 1999) {
		t.Error("Expected different ASINs to have different keys")
	}
}
