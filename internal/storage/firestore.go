// Package storage provides the Firestore-backed durable stores for the dedup
// ledger, subscriber preferences and delivery records.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

const (
	ledgerCollection       = "ledger"
	subscriptionCollection = "subscriptions"
	deliveryCollection     = "deliveries"
)

// ErrKeyExists is returned by TryCreateEntry when the ledger already holds
// the key. Callers rely on this to implement atomic check-and-set.
var ErrKeyExists = errors.New("ledger key already exists")

type Client struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

type ledgerDoc struct {
	FirstSeen time.Time `firestore:"firstSeen"`
}

// TryCreateEntry durably records a deal key. Firestore's Create fails when
// the document exists, which makes this an atomic first-writer-wins
// check-and-set even across racing processes.
func (c *Client) TryCreateEntry(ctx context.Context, key string, firstSeen time.Time) error {
	docRef := c.client.Collection(ledgerCollection).Doc(key)
	_, err := docRef.Create(ctx, ledgerDoc{FirstSeen: firstSeen})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrKeyExists
		}
		return fmt.Errorf("failed to create ledger entry %s: %w", key, err)
	}
	return nil
}

// DeleteEntriesBefore removes ledger entries first seen before cutoff and
// returns how many were deleted.
func (c *Client) DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	iter := c.client.Collection(ledgerCollection).
		Where("firstSeen", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to iterate ledger for eviction: %w", err)
		}
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			return deleted, fmt.Errorf("failed to queue ledger delete %s: %w", doc.Ref.ID, err)
		}
		deleted++
	}
	if deleted > 0 {
		bulkWriter.Flush()
	}
	return deleted, nil
}

// GetPreference returns nil without error when the subscriber has no record.
func (c *Client) GetPreference(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error) {
	doc, err := c.client.Collection(subscriptionCollection).Doc(subscriberID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preference %s: %w", subscriberID, err)
	}

	var pref models.SubscriberPreference
	if err := doc.DataTo(&pref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preference data: %w", err)
	}
	pref.SubscriberID = doc.Ref.ID
	return &pref, nil
}

func (c *Client) PutPreference(ctx context.Context, pref models.SubscriberPreference) error {
	_, err := c.client.Collection(subscriptionCollection).Doc(pref.SubscriberID).Set(ctx, pref)
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", pref.SubscriberID, err)
	}
	return nil
}

func (c *Client) DeletePreference(ctx context.Context, subscriberID string) error {
	_, err := c.client.Collection(subscriptionCollection).Doc(subscriberID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", subscriberID, err)
	}
	return nil
}

// ListPreferences loads every subscriber record. The subscriber population of
// a single bot is small enough that the matcher works from a full snapshot.
func (c *Client) ListPreferences(ctx context.Context) ([]models.SubscriberPreference, error) {
	iter := c.client.Collection(subscriptionCollection).Documents(ctx)
	defer iter.Stop()

	var prefs []models.SubscriberPreference
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list preferences: %w", err)
		}
		var pref models.SubscriberPreference
		if err := doc.DataTo(&pref); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preference %s: %w", doc.Ref.ID, err)
		}
		pref.SubscriberID = doc.Ref.ID
		prefs = append(prefs, pref)
	}
	return prefs, nil
}

func deliveryDocID(subscriberID, dealKey string) string {
	return subscriberID + "_" + dealKey
}

// GetDelivery returns nil without error when no outcome has been recorded
// for the pair.
func (c *Client) GetDelivery(ctx context.Context, subscriberID, dealKey string) (*models.DeliveryRecord, error) {
	doc, err := c.client.Collection(deliveryCollection).Doc(deliveryDocID(subscriberID, dealKey)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get delivery record %s/%s: %w", subscriberID, dealKey, err)
	}

	var rec models.DeliveryRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery record: %w", err)
	}
	return &rec, nil
}

func (c *Client) RecordDelivery(ctx context.Context, rec models.DeliveryRecord) error {
	docID := deliveryDocID(rec.SubscriberID, rec.DealKey)
	_, err := c.client.Collection(deliveryCollection).Doc(docID).Set(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to record delivery %s: %w", docID, err)
	}
	return nil
}
