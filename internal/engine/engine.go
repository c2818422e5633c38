// Package engine owns the scrape-and-notify cycle: it is the only component
// that understands a run boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crushthecasino/amzn-price-bot/internal/dispatcher"
	"github.com/crushthecasino/amzn-price-bot/internal/matcher"
	"github.com/crushthecasino/amzn-price-bot/internal/models"
	"github.com/crushthecasino/amzn-price-bot/internal/normalizer"
)

// ErrCycleActive is returned when a trigger arrives while another cycle is
// running. The trigger is dropped; the next scheduled tick covers it.
var ErrCycleActive = errors.New("a scrape cycle is already running")

// State is the orchestrator's position in the cycle state machine.
type State int32

const (
	StateIdle State = iota
	StateScraping
	StateNormalizing
	StateDispatching
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScraping:
		return "scraping"
	case StateNormalizing:
		return "normalizing"
	case StateDispatching:
		return "dispatching"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

const (
	normalizeParallelism = 8
	dispatchParallelism  = 4
)

type Engine struct {
	// mu is the cycle-level mutual exclusion lock, held from Scraping
	// through Dispatching.
	mu    sync.Mutex
	state atomic.Int32

	scraper    Scraper
	history    HistorySource
	normalizer *normalizer.Normalizer
	ledger     DedupLedger
	subs       SubscriptionLister
	dispatcher Dispatcher
	messenger  Messenger

	channel   string
	retention time.Duration
	debugPing bool
}

type Options struct {
	Channel   string
	Retention time.Duration
	DebugPing bool
}

func New(s Scraper, h HistorySource, n *normalizer.Normalizer, l DedupLedger, subs SubscriptionLister, d Dispatcher, m Messenger, opts Options) *Engine {
	return &Engine{
		scraper:    s,
		history:    h,
		normalizer: n,
		ledger:     l,
		subs:       subs,
		dispatcher: d,
		messenger:  m,
		channel:    opts.Channel,
		retention:  opts.Retention,
		debugPing:  opts.DebugPing,
	}
}

// State reports the current cycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// TriggerCycle runs one scrape-and-notify cycle. A concurrent trigger gets
// ErrCycleActive. Ledger or scraper failure aborts the cycle with zero
// dispatches for the unprocessed remainder; per-listing and per-delivery
// failures are contained in the summary.
func (e *Engine) TriggerCycle(ctx context.Context) (summary models.RunSummary, err error) {
	if !e.mu.TryLock() {
		slog.Warn("Cycle trigger dropped, another cycle is active")
		return models.RunSummary{}, ErrCycleActive
	}
	defer e.mu.Unlock()

	summary.StartedAt = time.Now()
	defer func() { summary.FinishedAt = time.Now() }()

	e.setState(StateScraping)
	raw, err := e.scraper.Scrape(ctx)
	if err != nil {
		e.setState(StateAborted)
		summary.Aborted = true
		slog.Error("Cycle aborted: scraper failure", "error", err)
		return summary, fmt.Errorf("scraper failure: %w", err)
	}
	summary.ListingsSeen = len(raw)

	e.setState(StateNormalizing)
	deals, skipped := e.normalizeAll(ctx, raw)
	summary.SkippedErrors = skipped

	e.setState(StateDispatching)
	prefs, err := e.subs.List(ctx)
	if err != nil {
		e.setState(StateAborted)
		summary.Aborted = true
		slog.Error("Cycle aborted: failed to load subscriptions", "error", err)
		return summary, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	for _, deal := range deals {
		if err := ctx.Err(); err != nil {
			// Shutdown mid-cycle: already-dispatched work stands,
			// unprocessed deals are safe to re-process next cycle.
			e.setState(StateAborted)
			summary.Aborted = true
			return summary, err
		}

		isNew, err := e.ledger.IsNewAndRecord(ctx, deal.Key)
		if err != nil {
			// Fail closed: no dispatch without a confirmed-new decision.
			e.setState(StateAborted)
			summary.Aborted = true
			slog.Error("Cycle aborted: ledger unavailable", "deal", deal.Key, "error", err)
			return summary, err
		}
		if !isNew {
			continue
		}
		summary.NewDeals++

		e.enrich(ctx, deal)
		sent, failed := e.notify(ctx, deal, prefs)
		summary.Sent += sent
		summary.Failed += failed
	}

	e.finishRun(ctx, &summary)
	e.setState(StateIdle)
	slog.Info("Cycle finished",
		"seen", summary.ListingsSeen, "new", summary.NewDeals,
		"skipped", summary.SkippedErrors, "sent", summary.Sent, "failed", summary.Failed)
	return summary, nil
}

// normalizeAll runs the normalizer over independent listings in parallel.
// Bad listings are skipped and counted, never cycle-fatal.
func (e *Engine) normalizeAll(ctx context.Context, raw []models.RawListing) ([]*models.Deal, int) {
	results := make([]*models.Deal, len(raw))
	errs := make([]error, len(raw))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(normalizeParallelism)
	for i := range raw {
		i := i
		g.Go(func() error {
			deal, err := e.normalizer.Normalize(raw[i])
			results[i], errs[i] = deal, err
			return nil
		})
	}
	// Workers never return errors; per-listing failures land in errs.
	_ = g.Wait()

	var deals []*models.Deal
	seen := make(map[string]bool)
	skipped := 0
	for i, deal := range results {
		if errs[i] != nil {
			skipped++
			slog.Warn("Skipping listing", "title", raw[i].Title, "error", errs[i])
			continue
		}
		// The same listing can appear under two categories in one cycle;
		// collapse to one deal before touching the ledger.
		if seen[deal.Key] {
			continue
		}
		seen[deal.Key] = true
		deals = append(deals, deal)
	}
	return deals, skipped
}

func (e *Engine) enrich(ctx context.Context, deal *models.Deal) {
	if e.history == nil {
		return
	}
	hist, err := e.history.PriceHistory(ctx, deal.ASIN)
	if err != nil {
		slog.Warn("Price history lookup failed", "asin", deal.ASIN, "error", err)
		return
	}
	deal.History = hist
}

// notify broadcasts the deal to the channel and fans out to matched
// subscribers. Dispatch order across subscribers is unspecified.
func (e *Engine) notify(ctx context.Context, deal *models.Deal, prefs []models.SubscriberPreference) (sent, failed int) {
	recipients := matcher.MatchSubscribers(deal, prefs)
	if e.channel != "" {
		recipients = append([]string{e.channel}, recipients...)
	}

	var sentCount, failedCount atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dispatchParallelism)
	for _, recipient := range recipients {
		recipient := recipient
		g.Go(func() error {
			outcome, err := e.dispatcher.Dispatch(gctx, recipient, deal)
			if err != nil {
				// Context cancellation; the deal re-processes next cycle.
				return err
			}
			switch outcome {
			case dispatcher.OutcomeDelivered:
				sentCount.Add(1)
			case dispatcher.OutcomeFailedPermanent, dispatcher.OutcomeRetriesExhausted:
				failedCount.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("Dispatch fan-out interrupted", "deal", deal.Key, "error", err)
	}
	return int(sentCount.Load()), int(failedCount.Load())
}

// finishRun applies retention eviction and the optional debug ping. Both are
// best-effort after a completed cycle.
func (e *Engine) finishRun(ctx context.Context, summary *models.RunSummary) {
	if e.retention > 0 {
		if evicted, err := e.ledger.EvictOlderThan(ctx, e.retention); err != nil {
			slog.Warn("Ledger eviction failed", "error", err)
		} else if evicted > 0 {
			slog.Info("Evicted ledger entries past retention", "count", evicted)
		}
	}

	if e.debugPing && e.messenger != nil && e.channel != "" {
		text := fmt.Sprintf("✅ Debug ping: cycle done, %d new deal(s), %d sent", summary.NewDeals, summary.Sent)
		if err := e.messenger.Send(ctx, e.channel, text); err != nil {
			slog.Warn("Debug ping failed", "error", err)
		}
	}
}

// SearchNow scrapes live and returns deals whose title contains the keyword,
// case-insensitively. Read-only: the ledger is untouched, so a later
// scheduled cycle still notifies subscribers of anything found here.
func (e *Engine) SearchNow(ctx context.Context, keyword string) ([]models.Deal, error) {
	raw, err := e.scraper.Scrape(ctx)
	if err != nil {
		return nil, fmt.Errorf("scraper failure: %w", err)
	}

	deals, _ := e.normalizeAll(ctx, raw)
	needle := strings.ToLower(keyword)

	var found []models.Deal
	for _, deal := range deals {
		if needle == "" || strings.Contains(strings.ToLower(deal.Title), needle) {
			found = append(found, *deal)
		}
	}
	return found, nil
}
