package models

import "time"

// UnavailableDescription is the placeholder the site (and older builds of this
// watcher) use when a detail page could not be read. It is never persisted.
const UnavailableDescription = "لم يتمكن من جلب الوصف."

// Request is one community request row scraped from the listing page.
// Description stays empty until the detail page has been read.
type Request struct {
	ID           int64     `json:"id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	Link         string    `json:"link" bson:"link"`
	Author       string    `json:"author" bson:"author"`
	PostedAt     time.Time `json:"posted_at" bson:"date"`
	PostedAtRaw  string    `json:"posted_at_raw" bson:"dateString"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at" bson:"discoveredAt"`
}

// PostedAtKnown reports whether the site date attribute parsed.
func (r Request) PostedAtKnown() bool {
	return !r.PostedAt.IsZero()
}

// HasUsableDescription reports whether enrichment produced text worth storing.
func HasUsableDescription(description string) bool {
	return description != "" && description != UnavailableDescription
}
