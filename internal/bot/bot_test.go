package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crushthecasino/amzn-price-bot/internal/config"
	"github.com/crushthecasino/amzn-price-bot/internal/engine"
	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

// --- Mock implementations ---

type mockEngine struct {
	summary    models.RunSummary
	cycleErr   error
	cycleCalls int
	deals      []models.Deal
	searchErr  error
	lastSearch string
}

func (m *mockEngine) TriggerCycle(_ context.Context) (models.RunSummary, error) {
	m.cycleCalls++
	return m.summary, m.cycleErr
}

func (m *mockEngine) SearchNow(_ context.Context, keyword string) ([]models.Deal, error) {
	m.lastSearch = keyword
	return m.deals, m.searchErr
}

type mockSubs struct {
	prefs map[string]*models.SubscriberPreference
	err   error
}

func newMockSubs() *mockSubs {
	return &mockSubs{prefs: make(map[string]*models.SubscriberPreference)}
}

func (m *mockSubs) Subscribe(_ context.Context, id, category string, keywords []string) (*models.SubscriberPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	pref := m.prefs[id]
	if pref == nil {
		pref = &models.SubscriberPreference{SubscriberID: id}
		m.prefs[id] = pref
	}
	pref.AddCategory(category)
	for _, k := range keywords {
		pref.AddKeyword(k)
	}
	return pref, nil
}

func (m *mockSubs) Unsubscribe(_ context.Context, id, category string) (*models.SubscriberPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	pref := m.prefs[id]
	if pref == nil {
		return nil, nil
	}
	pref.RemoveCategory(category)
	if len(pref.Categories) == 0 {
		delete(m.prefs, id)
		return nil, nil
	}
	return pref, nil
}

func (m *mockSubs) Preferences(_ context.Context, id string) (*models.SubscriberPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.prefs[id], nil
}

func newTestBot(e Engine, subs Subscriptions) *Bot {
	cfg := &config.Config{AdminUsernames: []string{"admin"}}
	return New(nil, e, subs, cfg)
}

// --- Tests ---

func TestHandle_SubscribeAndSettings(t *testing.T) {
	subs := newMockSubs()
	b := newTestBot(&mockEngine{}, subs)
	ctx := context.Background()

	reply := b.handle(ctx, 42, "alice", "subscribe", "Electronics widget")
	if !strings.Contains(reply, "electronics") {
		t.Errorf("Subscribe reply missing lowered category: %q", reply)
	}
	if !strings.Contains(reply, "widget") {
		t.Errorf("Subscribe reply missing keyword: %q", reply)
	}

	reply = b.handle(ctx, 42, "alice", "mysettings", "")
	if !strings.Contains(reply, "electronics") || !strings.Contains(reply, "widget") {
		t.Errorf("mysettings reply incomplete: %q", reply)
	}

	// A different chat has no settings.
	reply = b.handle(ctx, 7, "bob", "mysettings", "")
	if !strings.Contains(reply, "no subscriptions") {
		t.Errorf("Expected empty-settings message, got %q", reply)
	}
}

func TestHandle_SubscribeUsage(t *testing.T) {
	b := newTestBot(&mockEngine{}, newMockSubs())
	reply := b.handle(context.Background(), 42, "alice", "subscribe", "")
	if !strings.Contains(reply, "Usage") {
		t.Errorf("Expected usage hint, got %q", reply)
	}
}

func TestHandle_UnsubscribeAll(t *testing.T) {
	subs := newMockSubs()
	b := newTestBot(&mockEngine{}, subs)
	ctx := context.Background()

	b.handle(ctx, 42, "alice", "subscribe", "electronics")
	b.handle(ctx, 42, "alice", "subscribe", "books")

	reply := b.handle(ctx, 42, "alice", "unsubscribe", "all")
	if !strings.Contains(reply, "everything") {
		t.Errorf("Unexpected reply: %q", reply)
	}
	if subs.prefs["42"] != nil {
		t.Error("Preferences survived unsubscribe all")
	}
}

func TestHandle_ScrapeIsAdminGated(t *testing.T) {
	eng := &mockEngine{summary: models.RunSummary{ListingsSeen: 10, NewDeals: 2, Sent: 5}}
	b := newTestBot(eng, newMockSubs())
	ctx := context.Background()

	reply := b.handle(ctx, 42, "stranger", "scrape", "")
	if !strings.Contains(reply, "not authorized") {
		t.Errorf("Expected authorization refusal, got %q", reply)
	}
	if eng.cycleCalls != 0 {
		t.Error("Unauthorized user triggered a cycle")
	}

	reply = b.handle(ctx, 42, "Admin", "scrape", "")
	if eng.cycleCalls != 1 {
		t.Error("Admin scrape did not trigger a cycle")
	}
	if !strings.Contains(reply, "10 seen") || !strings.Contains(reply, "2 new") || !strings.Contains(reply, "5 sent") {
		t.Errorf("Summary reply incomplete: %q", reply)
	}
}

func TestHandle_ScrapeWhileCycleActive(t *testing.T) {
	eng := &mockEngine{cycleErr: engine.ErrCycleActive}
	b := newTestBot(eng, newMockSubs())

	reply := b.handle(context.Background(), 42, "admin", "scrape", "")
	if !strings.Contains(reply, "already running") {
		t.Errorf("Expected busy notice, got %q", reply)
	}
}

func TestHandle_Search(t *testing.T) {
	eng := &mockEngine{deals: []models.Deal{{
		Title: "Widget Pro", PriceCents: 1999, OrigPriceCents: 19999,
		DiscountPct: 90, URL: "https://www.amazon.ca/dp/X1?tag=t-20",
	}}}
	b := newTestBot(eng, newMockSubs())

	reply := b.handle(context.Background(), 42, "alice", "search", "widget")
	if eng.lastSearch != "widget" {
		t.Errorf("Search keyword = %q", eng.lastSearch)
	}
	if !strings.Contains(reply, "Widget Pro") {
		t.Errorf("Search reply missing deal: %q", reply)
	}

	eng.deals = nil
	reply = b.handle(context.Background(), 42, "alice", "search", "nothing")
	if !strings.Contains(reply, "No live deals") {
		t.Errorf("Expected empty-result message, got %q", reply)
	}
}

func TestHandle_SearchFailure(t *testing.T) {
	eng := &mockEngine{searchErr: errors.New("blocked")}
	b := newTestBot(eng, newMockSubs())

	reply := b.handle(context.Background(), 42, "alice", "search", "widget")
	if !strings.Contains(reply, "failed") {
		t.Errorf("Expected failure message, got %q", reply)
	}
}

func TestHandle_UnknownCommand(t *testing.T) {
	b := newTestBot(&mockEngine{}, newMockSubs())
	reply := b.handle(context.Background(), 42, "alice", "dance", "")
	if !strings.Contains(reply, "/help") {
		t.Errorf("Expected help pointer, got %q", reply)
	}
}
