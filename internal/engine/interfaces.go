package engine

import (
	"context"
	"time"

	"github.com/crushthecasino/amzn-price-bot/internal/dispatcher"
	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

// Scraper is the marketplace scraping collaborator.
type Scraper interface {
	Scrape(ctx context.Context) ([]models.RawListing, error)
}

// HistorySource optionally enriches deals with historical price stats.
type HistorySource interface {
	PriceHistory(ctx context.Context, asin string) (*models.PriceHistory, error)
}

// DedupLedger answers whether a deal key is new and records it atomically.
type DedupLedger interface {
	IsNewAndRecord(ctx context.Context, key string) (bool, error)
	EvictOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

// SubscriptionLister supplies the preference snapshot matched each cycle.
type SubscriptionLister interface {
	List(ctx context.Context) ([]models.SubscriberPreference, error)
}

// Dispatcher delivers one deal to one recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, subscriberID string, deal *models.Deal) (dispatcher.Outcome, error)
}

// Messenger is used only for the post-run debug ping.
type Messenger interface {
	Send(ctx context.Context, recipientID, text string) error
}
