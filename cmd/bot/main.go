package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crushthecasino/amzn-price-bot/internal/bot"
	"github.com/crushthecasino/amzn-price-bot/internal/config"
	"github.com/crushthecasino/amzn-price-bot/internal/dispatcher"
	"github.com/crushthecasino/amzn-price-bot/internal/engine"
	"github.com/crushthecasino/amzn-price-bot/internal/ledger"
	"github.com/crushthecasino/amzn-price-bot/internal/normalizer"
	"github.com/crushthecasino/amzn-price-bot/internal/scraper"
	"github.com/crushthecasino/amzn-price-bot/internal/storage"
	"github.com/crushthecasino/amzn-price-bot/internal/subscriptions"
	"github.com/crushthecasino/amzn-price-bot/internal/telegram"
)

// cycleTimeout bounds one scrape-and-notify run end to end.
const cycleTimeout = 10 * time.Minute

func main() {
	slog.Info("Starting Amazon price error bot...")

	// Local development convenience; in production everything comes from
	// the process environment.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Critical error initializing Firestore client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	tg, err := telegram.New(cfg.BotToken)
	if err != nil {
		slog.Error("Critical error connecting to Telegram", "error", err)
		os.Exit(1)
	}

	scr := scraper.New(cfg.MinDiscountPct)
	norm := normalizer.New(cfg.AffiliateTag)
	led := ledger.New(store)
	subs := subscriptions.New(store)
	disp := dispatcher.New(tg, store, telegram.IsPermanent, cfg.SendRate, cfg.SendBurst)

	eng := engine.New(scr, scr, norm, led, subs, disp, tg, engine.Options{
		Channel:   cfg.Channel,
		Retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		DebugPing: cfg.DebugPing,
	})

	// Scheduled cycles. Overlap with a manual /scrape is resolved by the
	// engine's cycle lock; the dropped trigger is just logged.
	go runScheduler(ctx, eng, cfg.ScrapeInterval)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)
		cancel()
	}()

	router := bot.New(tg.API(), eng, subs, cfg)
	if err := router.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Command router stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot stopped.")
}

func runScheduler(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
			summary, err := eng.TriggerCycle(runCtx)
			cancel()
			switch {
			case errors.Is(err, engine.ErrCycleActive):
				// Dropped by policy; the next tick covers it.
			case err != nil:
				slog.Error("Scheduled cycle failed", "error", err)
			default:
				slog.Info("Scheduled cycle done",
					"seen", summary.ListingsSeen, "new", summary.NewDeals, "sent", summary.Sent)
			}
		}
	}
}
