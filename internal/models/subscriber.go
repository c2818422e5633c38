package models

import (
	"sort"
	"time"
)

// SubscriberPreference holds one subscriber's category and keyword filters.
// Categories and Keywords behave as sets; insertion order is irrelevant and
// duplicates are no-ops.
type SubscriberPreference struct {
	SubscriberID string    `firestore:"-"`
	Categories   []string  `firestore:"categories"`
	Keywords     []string  `firestore:"keywords"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// HasCategory reports whether the subscriber follows the given category.
func (p *SubscriberPreference) HasCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// AddCategory inserts a category, keeping the slice a sorted set.
// Returns false if it was already present.
func (p *SubscriberPreference) AddCategory(category string) bool {
	if p.HasCategory(category) {
		return false
	}
	p.Categories = append(p.Categories, category)
	sort.Strings(p.Categories)
	return true
}

// RemoveCategory deletes a category. Returns false if it was not present.
func (p *SubscriberPreference) RemoveCategory(category string) bool {
	for i, c := range p.Categories {
		if c == category {
			p.Categories = append(p.Categories[:i], p.Categories[i+1:]...)
			return true
		}
	}
	return false
}

// AddKeyword inserts a keyword filter, keeping the slice a sorted set.
func (p *SubscriberPreference) AddKeyword(keyword string) bool {
	for _, k := range p.Keywords {
		if k == keyword {
			return false
		}
	}
	p.Keywords = append(p.Keywords, keyword)
	sort.Strings(p.Keywords)
	return true
}
