// Package scraper fetches amazon.ca category search pages and extracts
// deeply discounted listings.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
	"github.com/crushthecasino/amzn-price-bot/internal/util"
)

const baseURL = "https://www.amazon.ca"

// Category pairs a preference tag with the amazon.ca browse path scanned for
// it. Paths are sorted cheapest-first so price errors surface on page one.
type Category struct {
	Tag  string
	Path string
}

var defaultCategories = []Category{
	{"electronics", "/Electronics-Accessories/b/?ie=UTF8&node=667823011&ref_=nav_cs_electronics"},
	{"books", "/Books-Used-Books-Textbooks/b/?ie=UTF8&node=916520&ref_=nav_cs_books"},
	{"beauty", "/Beauty/b/?ie=UTF8&node=6205124011&ref_=nav_cs_beauty"},
	{"toys", "/Toys-Games/b/?ie=UTF8&node=6205517011&ref_=nav_cs_toys"},
	{"sports", "/sporting-goods/b/?ie=UTF8&node=2242989011&ref_=nav_cs_sports"},
	{"computers", "/Computers-Accessories/b/?ie=UTF8&node=2404990011&ref_=nav_cs_pc"},
	{"health", "/Health-Personal-Care/b/?ie=UTF8&node=6205177011&ref_=nav_cs_hpc"},
	{"home-improvement", "/Home-Improvement/b/?ie=UTF8&node=3006902011&ref_=nav_cs_hi"},
	{"fashion", "/Fashion/b/?ie=UTF8&node=21204935011&ref_=nav_cs_fashion"},
	{"video-games", "/video-games-hardware-accessories/b/?ie=UTF8&node=3198031&ref_=nav_cs_video_games"},
	{"grocery", "/grocery/b/?ie=UTF8&node=6967215011&ref_=nav_cs_grocery"},
	{"pets", "/pet-supplies-dog-cat-food-bed-toy/b/?ie=UTF8&node=6205514011&ref_=nav_cs_pets"},
	{"baby", "/gp/browse.html?node=3561346011&ref_=nav_cs_baby"},
}

// Tags returns the recognized category tags, for the bot's help text.
func Tags() []string {
	tags := make([]string, len(defaultCategories))
	for i, c := range defaultCategories {
		tags[i] = c.Tag
	}
	return tags
}

type Client struct {
	httpClient     *http.Client
	minDiscountPct int
	categories     []Category
}

func New(minDiscountPct int) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		minDiscountPct: minDiscountPct,
		categories:     defaultCategories,
	}
}

// Scrape walks every category page and returns the raw listings whose
// discount meets the threshold. Individual category failures are logged and
// skipped; the error is non-nil only when every category failed, which the
// orchestrator treats as cycle-fatal.
func (c *Client) Scrape(ctx context.Context) ([]models.RawListing, error) {
	var listings []models.RawListing
	failures := 0
	for _, cat := range c.categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		url := categoryURL(cat.Path)
		var doc *goquery.Document
		err := util.RetryWithBackoff(ctx, 2, time.Second, func(_ int) error {
			var fetchErr error
			doc, fetchErr = c.fetchDocument(ctx, url)
			return fetchErr
		})
		if err != nil {
			slog.Warn("Category scrape failed", "category", cat.Tag, "url", url, "error", err)
			failures++
			continue
		}

		found := parseSearchResults(doc, cat.Tag, c.minDiscountPct)
		slog.Info("Scraped category", "category", cat.Tag, "listings", len(found))
		listings = append(listings, found...)
	}

	if failures == len(c.categories) {
		return nil, fmt.Errorf("all %d category scrapes failed", failures)
	}
	return listings, nil
}

func categoryURL(path string) string {
	suffix := "?sort=price-asc-rank"
	if strings.Contains(path, "?") {
		suffix = "&sort=price-asc-rank"
	}
	return baseURL + path + suffix
}

func (c *Client) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	req.Header.Set("Accept-Language", "en-CA,en-US;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}
	return doc, nil
}

// parseSearchResults extracts qualifying listings from a search results page.
// Items missing a title, sale price or original price are ignored, as are
// items below the discount threshold.
func parseSearchResults(doc *goquery.Document, categoryTag string, minDiscountPct int) []models.RawListing {
	var listings []models.RawListing
	doc.Find(`div[data-component-type="s-search-result"]`).Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h2 a span").First().Text())
		saleWhole := strings.TrimSpace(s.Find("span.a-price-whole").First().Text())
		saleFrac := strings.TrimSpace(s.Find("span.a-price-fraction").First().Text())
		origText := strings.TrimSpace(s.Find("span.a-price.a-text-price span.a-offscreen").First().Text())
		if title == "" || saleWhole == "" || origText == "" {
			return
		}

		if saleFrac == "" {
			saleFrac = "00"
		}
		saleText := strings.ReplaceAll(saleWhole, ",", "") + "." + saleFrac

		saleCents, err := util.ParsePriceCents(saleText)
		if err != nil {
			return
		}
		origCents, err := util.ParsePriceCents(origText)
		if err != nil || origCents == 0 {
			return
		}

		discount := (origCents - saleCents) * 100 / origCents
		if discount < int64(minDiscountPct) {
			return
		}

		href, _ := s.Find("h2 a[href]").First().Attr("href")
		asin := util.ExtractASIN(href)
		if asin == "" {
			return
		}

		listings = append(listings, models.RawListing{
			Title:         title,
			PriceText:     saleText,
			OrigPriceText: origText,
			ASIN:          asin,
			Category:      categoryTag,
			SourceURL:     baseURL + href,
		})
	})
	return listings
}
