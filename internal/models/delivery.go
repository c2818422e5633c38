package models

import "time"

// DeliveryStatus is the terminal outcome recorded for a (subscriber, deal)
// pair. Pairs that exhausted transient retries are deliberately not recorded
// so a later cycle may try again.
type DeliveryStatus string

const (
	DeliveryDelivered       DeliveryStatus = "delivered"
	DeliveryFailedPermanent DeliveryStatus = "failed-permanent"
)

// DeliveryRecord marks a completed delivery attempt for idempotence auditing.
type DeliveryRecord struct {
	SubscriberID string         `firestore:"subscriberId"`
	DealKey      string         `firestore:"dealKey"`
	Status       DeliveryStatus `firestore:"status"`
	Attempts     int            `firestore:"attempts"`
	UpdatedAt    time.Time      `firestore:"updatedAt"`
}

// RunSummary aggregates the per-listing and per-delivery counts of one cycle.
type RunSummary struct {
	ListingsSeen  int
	NewDeals      int
	SkippedErrors int
	Sent          int
	Failed        int
	StartedAt     time.Time
	FinishedAt    time.Time
	Aborted       bool
}
