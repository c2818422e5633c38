// Package matcher maps a deal to the subscribers whose preferences it
// satisfies. Pure functions only; no state.
package matcher

import (
	"strings"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
)

// MatchSubscribers returns the IDs of subscribers whose preferences match the
// deal. A subscriber matches when the deal's category is in their category
// set and, if they carry keyword filters, at least one keyword is a
// case-insensitive substring of the deal title. An empty result is a normal
// outcome, not an error.
func MatchSubscribers(deal *models.Deal, prefs []models.SubscriberPreference) []string {
	var matched []string
	for i := range prefs {
		if Matches(deal, &prefs[i]) {
			matched = append(matched, prefs[i].SubscriberID)
		}
	}
	return matched
}

// Matches reports whether a single subscriber's preferences match the deal.
func Matches(deal *models.Deal, pref *models.SubscriberPreference) bool {
	if !pref.HasCategory(deal.Category) {
		return false
	}
	if len(pref.Keywords) == 0 {
		return true
	}
	title := strings.ToLower(deal.Title)
	for _, keyword := range pref.Keywords {
		if strings.Contains(title, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
