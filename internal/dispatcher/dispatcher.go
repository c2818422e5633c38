// Package dispatcher drives outbound delivery: one message per
// (subscriber, deal) pair, rate-limited globally, with transient failures
// retried under exponential backoff and permanent failures recorded so they
// are never retried.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
	"github.com/crushthecasino/amzn-price-bot/internal/util"
)

type Outcome string

const (
	OutcomeDelivered        Outcome = "delivered"
	OutcomeFailedPermanent  Outcome = "failed-permanent"
	OutcomeRetriesExhausted Outcome = "retries-exhausted"
	OutcomeSkipped          Outcome = "skipped"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 16 * time.Second
)

// Messenger is the external messaging API boundary.
type Messenger interface {
	Send(ctx context.Context, recipientID, text string) error
}

// DeliveryStore persists terminal delivery outcomes for idempotence.
type DeliveryStore interface {
	GetDelivery(ctx context.Context, subscriberID, dealKey string) (*models.DeliveryRecord, error)
	RecordDelivery(ctx context.Context, rec models.DeliveryRecord) error
}

// Per-attempt states. The delivery loop is a state machine rather than
// nested control flow so a fake clock can walk it in tests.
type attemptState int

const (
	statePending attemptState = iota
	stateSent
	stateTransientFail
	statePermanentFail
)

type Dispatcher struct {
	messenger   Messenger
	records     DeliveryStore
	limiter     *rate.Limiter
	isPermanent func(error) bool
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// New builds a dispatcher. isPermanent classifies messenger errors; sendRate
// is the global token bucket in messages per second.
func New(m Messenger, records DeliveryStore, isPermanent func(error) bool, sendRate float64, burst int) *Dispatcher {
	return &Dispatcher{
		messenger:   m,
		records:     records,
		limiter:     rate.NewLimiter(rate.Limit(sendRate), burst),
		isPermanent: isPermanent,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Dispatch sends one deal to one recipient. Pairs with a recorded outcome
// are skipped, upholding at-most-once across cycles. The returned error is
// non-nil only for context cancellation; delivery failures are expressed in
// the Outcome and logged here with enough context to diagnose.
func (d *Dispatcher) Dispatch(ctx context.Context, subscriberID string, deal *models.Deal) (Outcome, error) {
	existing, err := d.records.GetDelivery(ctx, subscriberID, deal.Key)
	if err != nil {
		slog.Warn("Failed to read delivery record, proceeding with send",
			"subscriber", subscriberID, "deal", deal.Key, "error", err)
	}
	if existing != nil {
		return OutcomeSkipped, nil
	}

	text := FormatMessage(deal)

	var lastErr error
	attempt := 0
	state := statePending
	for {
		switch state {
		case statePending:
			// Block on the bucket rather than erroring when drained.
			if err := d.limiter.Wait(ctx); err != nil {
				return "", err
			}
			attempt++
			err := d.messenger.Send(ctx, subscriberID, text)
			switch {
			case err == nil:
				state = stateSent
			case d.isPermanent(err):
				lastErr = err
				state = statePermanentFail
			default:
				lastErr = err
				state = stateTransientFail
			}

		case stateSent:
			d.record(ctx, subscriberID, deal.Key, models.DeliveryDelivered, attempt)
			return OutcomeDelivered, nil

		case stateTransientFail:
			if attempt >= d.maxAttempts {
				slog.Error("Delivery abandoned after transient retries",
					"subscriber", subscriberID, "deal", deal.Key, "attempts", attempt, "error", lastErr)
				return OutcomeRetriesExhausted, nil
			}
			if err := d.sleep(ctx, d.backoff(attempt)); err != nil {
				return "", err
			}
			state = statePending

		case statePermanentFail:
			slog.Error("Permanent delivery failure",
				"subscriber", subscriberID, "deal", deal.Key, "attempts", attempt, "error", lastErr)
			d.record(ctx, subscriberID, deal.Key, models.DeliveryFailedPermanent, attempt)
			return OutcomeFailedPermanent, nil
		}
	}
}

// backoff returns the delay before the next attempt: baseDelay doubling per
// attempt, capped at maxDelay. Non-decreasing by construction.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.baseDelay << (attempt - 1)
	if delay > d.maxDelay {
		return d.maxDelay
	}
	return delay
}

func (d *Dispatcher) record(ctx context.Context, subscriberID, dealKey string, status models.DeliveryStatus, attempts int) {
	rec := models.DeliveryRecord{
		SubscriberID: subscriberID,
		DealKey:      dealKey,
		Status:       status,
		Attempts:     attempts,
		UpdatedAt:    d.now(),
	}
	if err := d.records.RecordDelivery(ctx, rec); err != nil {
		slog.Warn("Failed to record delivery outcome",
			"subscriber", subscriberID, "deal", dealKey, "status", status, "error", err)
	}
}

// FormatMessage renders the Telegram Markdown body for a deal.
func FormatMessage(deal *models.Deal) string {
	var hist string
	if deal.History != nil && deal.History.Lowest != "" {
		hist = fmt.Sprintf("\n📈 Lowest: %s | Avg: %s", deal.History.Lowest, deal.History.Average)
	}
	return fmt.Sprintf(
		"🔥 *PRICE ERROR!* 🔥\n\n"+
			"🛍️ *%s*\n"+
			"💸 Now: $%s (was $%s)\n"+
			"📉 %d%%%s\n\n"+
			"[Buy Now](%s)",
		deal.Title,
		util.FormatCents(deal.PriceCents),
		util.FormatCents(deal.OrigPriceCents),
		deal.DiscountPct,
		hist,
		deal.URL,
	)
}
