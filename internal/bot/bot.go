// Package bot routes incoming Telegram commands to engine operations. It is
// a pure router: all state changes happen in the services it calls.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/crushthecasino/amzn-price-bot/internal/config"
	"github.com/crushthecasino/amzn-price-bot/internal/dispatcher"
	"github.com/crushthecasino/amzn-price-bot/internal/engine"
	"github.com/crushthecasino/amzn-price-bot/internal/models"
	"github.com/crushthecasino/amzn-price-bot/internal/scraper"
)

// Engine is the cycle/search surface the router invokes.
type Engine interface {
	TriggerCycle(ctx context.Context) (models.RunSummary, error)
	SearchNow(ctx context.Context, keyword string) ([]models.Deal, error)
}

// Subscriptions is the preference surface the router invokes.
type Subscriptions interface {
	Subscribe(ctx context.Context, subscriberID, category string, keywords []string) (*models.SubscriberPreference, error)
	Unsubscribe(ctx context.Context, subscriberID, category string) (*models.SubscriberPreference, error)
	Preferences(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error)
}

type Bot struct {
	api    *tgbotapi.BotAPI
	engine Engine
	subs   Subscriptions
	cfg    *config.Config
}

func New(api *tgbotapi.BotAPI, e Engine, subs Subscriptions, cfg *config.Config) *Bot {
	return &Bot{api: api, engine: e, subs: subs, cfg: cfg}
}

// Run long-polls for updates until the context is cancelled. Each command is
// handled in its own goroutine so a manual scrape cannot stall the router.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	slog.Info("Bot command router started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}
			go func() {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("Panic handling command", "command", msg.Command(), "panic", r)
					}
				}()
				username := ""
				if msg.From != nil {
					username = msg.From.UserName
				}
				reply := b.handle(ctx, msg.Chat.ID, username, msg.Command(), msg.CommandArguments())
				if reply != "" {
					b.reply(msg.Chat.ID, reply)
				}
			}()
		}
	}
}

// handle executes one command and returns the reply text. Kept free of
// tgbotapi types beyond primitives so it is directly testable.
func (b *Bot) handle(ctx context.Context, chatID int64, username, command, args string) string {
	subscriberID := strconv.FormatInt(chatID, 10)

	switch command {
	case "start":
		return "👋 Welcome! I post Amazon price errors.\n" +
			"Use /subscribe <category> [keyword ...] to get personal alerts,\n" +
			"/search <keyword> to look right now, or /help for everything."

	case "help":
		return "Commands:\n" +
			"/subscribe <category> [keyword ...] — alert me on deals in a category\n" +
			"/unsubscribe <category|all> — stop alerts\n" +
			"/mysettings — show my categories and keywords\n" +
			"/search <keyword> — scan live deals now\n" +
			"/scrape — run a full cycle (admins)\n\n" +
			"Categories: " + strings.Join(scraper.Tags(), ", ")

	case "subscribe":
		fields := strings.Fields(strings.ToLower(args))
		if len(fields) == 0 {
			return "Usage: /subscribe <category> [keyword ...]"
		}
		pref, err := b.subs.Subscribe(ctx, subscriberID, fields[0], fields[1:])
		if err != nil {
			slog.Error("Subscribe failed", "subscriber", subscriberID, "error", err)
			return "❌ Could not save your subscription, try again later."
		}
		return fmt.Sprintf("✅ Subscribed. %s", describePreference(pref))

	case "unsubscribe":
		category := strings.ToLower(strings.TrimSpace(args))
		if category == "" {
			return "Usage: /unsubscribe <category|all>"
		}
		if category == "all" {
			return b.unsubscribeAll(ctx, subscriberID)
		}
		pref, err := b.subs.Unsubscribe(ctx, subscriberID, category)
		if err != nil {
			slog.Error("Unsubscribe failed", "subscriber", subscriberID, "error", err)
			return "❌ Could not update your subscription, try again later."
		}
		if pref == nil {
			return "✅ Unsubscribed from everything."
		}
		return fmt.Sprintf("✅ Done. %s", describePreference(pref))

	case "mysettings":
		pref, err := b.subs.Preferences(ctx, subscriberID)
		if err != nil {
			slog.Error("Preferences lookup failed", "subscriber", subscriberID, "error", err)
			return "❌ Could not load your settings, try again later."
		}
		if pref == nil {
			return "You have no subscriptions. Use /subscribe <category> to start."
		}
		return describePreference(pref)

	case "search":
		keyword := strings.TrimSpace(args)
		if keyword == "" {
			return "Usage: /search <keyword>"
		}
		deals, err := b.engine.SearchNow(ctx, keyword)
		if err != nil {
			slog.Error("Search failed", "keyword", keyword, "error", err)
			return "❌ Search failed, the store may be blocking us. Try again later."
		}
		if len(deals) == 0 {
			return fmt.Sprintf("No live deals matching %q right now.", keyword)
		}
		return formatSearchResults(deals)

	case "scrape":
		if !b.cfg.IsAdmin(username) {
			return "❌ You are not authorized to run this."
		}
		summary, err := b.engine.TriggerCycle(ctx)
		switch {
		case errors.Is(err, engine.ErrCycleActive):
			return "⏳ A cycle is already running, try again in a bit."
		case err != nil:
			slog.Error("Manual cycle failed", "error", err)
			return fmt.Sprintf("❌ Cycle aborted: %v", err)
		default:
			return fmt.Sprintf("✅ Cycle complete: %d seen, %d new, %d skipped, %d sent, %d failed.",
				summary.ListingsSeen, summary.NewDeals, summary.SkippedErrors, summary.Sent, summary.Failed)
		}

	default:
		return "Unknown command. Use /help."
	}
}

func (b *Bot) unsubscribeAll(ctx context.Context, subscriberID string) string {
	pref, err := b.subs.Preferences(ctx, subscriberID)
	if err != nil {
		slog.Error("Preferences lookup failed", "subscriber", subscriberID, "error", err)
		return "❌ Could not update your subscription, try again later."
	}
	if pref == nil {
		return "You had no subscriptions."
	}
	for _, category := range append([]string(nil), pref.Categories...) {
		if _, err := b.subs.Unsubscribe(ctx, subscriberID, category); err != nil {
			slog.Error("Unsubscribe failed", "subscriber", subscriberID, "category", category, "error", err)
			return "❌ Could not update your subscription, try again later."
		}
	}
	return "✅ Unsubscribed from everything."
}

func describePreference(pref *models.SubscriberPreference) string {
	text := "Categories: " + strings.Join(pref.Categories, ", ")
	if len(pref.Keywords) > 0 {
		text += "\nKeywords: " + strings.Join(pref.Keywords, ", ")
	}
	return text
}

const maxSearchResults = 5

func formatSearchResults(deals []models.Deal) string {
	var sb strings.Builder
	shown := len(deals)
	if shown > maxSearchResults {
		shown = maxSearchResults
	}
	for _, deal := range deals[:shown] {
		sb.WriteString(dispatcher.FormatMessage(&deal))
		sb.WriteString("\n\n")
	}
	if len(deals) > shown {
		fmt.Fprintf(&sb, "…and %d more.", len(deals)-shown)
	}
	return strings.TrimSpace(sb.String())
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("Failed to send reply", "chat", chatID, "error", err)
	}
}
