package pipeline

import (
	"context"
	"log"
	"time"

	"request-radar/internal/listing"
)

// PageFetcher returns the markup behind a URL.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (string, error)
}

// Enricher reads the full description of one request from its detail page.
type Enricher struct {
	fetcher  PageFetcher
	observer Observer
}

// NewEnricher returns an Enricher. observer may be nil.
func NewEnricher(fetcher PageFetcher, observer Observer) *Enricher {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Enricher{fetcher: fetcher, observer: observer}
}

// Enrich performs one detail fetch and returns the description text.
// Every failure is logged and reported as "".
func (e *Enricher) Enrich(ctx context.Context, link string) string {
	if link == "" {
		log.Printf("detail skipped: request has no link")
		return ""
	}
	start := time.Now()
	body, err := e.fetcher.Get(ctx, link)
	e.observer.ObserveFetch(FetchDetail, time.Since(start), err)
	if err != nil {
		log.Printf("detail fetch failed url=%s: %v", link, err)
		return ""
	}
	return listing.ExtractDescription(body)
}
