package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

// PriceHistory looks up CamelCamelCamel's lowest/average prices for an ASIN.
// Enrichment only; callers treat failure as non-fatal.
func (c *Client) PriceHistory(ctx context.Context, asin string) (*models.PriceHistory, error) {
	url := fmt.Sprintf("https://camelcamelcamel.com/product/%s", asin)
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	lowest := strings.TrimSpace(doc.Find(".stat.lowest span.value").First().Text())
	average := strings.TrimSpace(doc.Find(".stat.average span.value").First().Text())
	if lowest == "" && average == "" {
		return nil, fmt.Errorf("no price history stats found for %s", asin)
	}

	return &models.PriceHistory{
		Lowest:  lowest,
		Average: average,
		URL:     url,
	}, nil
}
