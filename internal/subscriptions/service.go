// Package subscriptions manages subscriber preference records. It is the
// only mutator of subscription state; the bot router just forwards commands.
package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

// Store abstracts the durable subscription records.
type Store interface {
	GetPreference(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error)
	PutPreference(ctx context.Context, pref models.SubscriberPreference) error
	DeletePreference(ctx context.Context, subscriberID string) error
	ListPreferences(ctx context.Context) ([]models.SubscriberPreference, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Subscribe adds a category (and optional keyword filters) to the
// subscriber's preference set, creating the record on first use. Subscribing
// twice to the same category is a no-op.
func (s *Service) Subscribe(ctx context.Context, subscriberID, category string, keywords []string) (*models.SubscriberPreference, error) {
	pref, err := s.store.GetPreference(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preference: %w", err)
	}

	if pref == nil {
		pref = &models.SubscriberPreference{
			SubscriberID: subscriberID,
			CreatedAt:    s.now(),
		}
	}

	changed := pref.AddCategory(category)
	for _, keyword := range keywords {
		if pref.AddKeyword(keyword) {
			changed = true
		}
	}
	if !changed {
		return pref, nil
	}

	pref.UpdatedAt = s.now()
	if err := s.store.PutPreference(ctx, *pref); err != nil {
		return nil, fmt.Errorf("failed to save preference: %w", err)
	}
	slog.Info("Subscription updated", "subscriber", subscriberID, "category", category)
	return pref, nil
}

// Unsubscribe removes a category. Removing the last category deletes the
// record entirely and returns nil. Unsubscribing from a category the
// subscriber never had is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, subscriberID, category string) (*models.SubscriberPreference, error) {
	pref, err := s.store.GetPreference(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preference: %w", err)
	}
	if pref == nil {
		return nil, nil
	}

	if !pref.RemoveCategory(category) {
		return pref, nil
	}

	if len(pref.Categories) == 0 {
		if err := s.store.DeletePreference(ctx, subscriberID); err != nil {
			return nil, fmt.Errorf("failed to delete preference: %w", err)
		}
		slog.Info("Subscriber removed", "subscriber", subscriberID)
		return nil, nil
	}

	pref.UpdatedAt = s.now()
	if err := s.store.PutPreference(ctx, *pref); err != nil {
		return nil, fmt.Errorf("failed to save preference: %w", err)
	}
	slog.Info("Subscription updated", "subscriber", subscriberID, "removed", category)
	return pref, nil
}

// Preferences returns the subscriber's current record, or nil when none
// exists.
func (s *Service) Preferences(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error) {
	return s.store.GetPreference(ctx, subscriberID)
}

// List returns a snapshot of every subscriber's preferences for matching.
func (s *Service) List(ctx context.Context) ([]models.SubscriberPreference, error) {
	return s.store.ListPreferences(ctx)
}
