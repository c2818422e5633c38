package matcher

import (
	"testing"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

func deal(category, title string) *models.Deal {
	return &models.Deal{Key: "k", Category: category, Title: title}
}

func TestMatchSubscribers_CategoryOnly(t *testing.T) {
	prefs := []models.SubscriberPreference{
		{SubscriberID: "alice", Categories: []string{"electronics"}},
		{SubscriberID: "bob", Categories: []string{"books"}},
	}

	matched := MatchSubscribers(deal("electronics", "Widget Pro"), prefs)
	if len(matched) != 1 || matched[0] != "alice" {
		t.Errorf("Expected [alice], got %v", matched)
	}
}

func TestMatchSubscribers_KeywordFilter(t *testing.T) {
	prefs := []models.SubscriberPreference{
		{SubscriberID: "alice", Categories: []string{"electronics"}, Keywords: []string{"widget"}},
		{SubscriberID: "bob", Categories: []string{"electronics"}, Keywords: []string{"gadget"}},
	}

	matched := MatchSubscribers(deal("electronics", "Widget Pro"), prefs)
	if len(matched) != 1 || matched[0] != "alice" {
		t.Errorf("Expected [alice] (case-insensitive substring), got %v", matched)
	}
}

func TestMatchSubscribers_EmptyResultIsValid(t *testing.T) {
	prefs := []models.SubscriberPreference{
		{SubscriberID: "bob", Categories: []string{"books"}},
	}
	if matched := MatchSubscribers(deal("electronics", "Widget Pro"), prefs); len(matched) != 0 {
		t.Errorf("Expected empty match set, got %v", matched)
	}
	if matched := MatchSubscribers(deal("electronics", "Widget Pro"), nil); len(matched) != 0 {
		t.Errorf("Expected empty match set for no subscribers, got %v", matched)
	}
}

// Adding a category can only grow a subscriber's future match sets.
func TestMatches_MonotonicUnderSubscribe(t *testing.T) {
	pref := models.SubscriberPreference{SubscriberID: "alice", Categories: []string{"electronics"}}
	d := deal("electronics", "Widget Pro")

	if !Matches(d, &pref) {
		t.Fatal("Expected match before adding a category")
	}
	pref.AddCategory("books")
	if !Matches(d, &pref) {
		t.Error("Adding an unrelated category removed an existing match")
	}
	if !Matches(deal("books", "Some Novel"), &pref) {
		t.Error("Added category did not produce a new match")
	}
}
