package pipeline

import (
	"context"
	"fmt"

	"request-radar/internal/models"
	"request-radar/internal/store"
)

// OldestFirst returns a reversed copy of the listing order. The site lists
// newest first, so the result starts with the request closest to the
// already-seen frontier.
func OldestFirst(requests []models.Request) []models.Request {
	out := make([]models.Request, len(requests))
	for i, req := range requests {
		out[len(requests)-1-i] = req
	}
	return out
}

// NoveltyFilter decides whether candidates are already stored. It keeps no
// state of its own; the store is the only record of what has been seen.
type NoveltyFilter struct {
	store store.RequestStore
}

// NewNoveltyFilter wraps a store opened for the current cycle.
func NewNoveltyFilter(s store.RequestStore) NoveltyFilter {
	return NoveltyFilter{store: s}
}

// IsNovel is a single point lookup by id.
func (f NoveltyFilter) IsNovel(ctx context.Context, id int64) (bool, error) {
	exists, err := f.store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("lookup request=%d: %w", id, err)
	}
	return !exists, nil
}

// Partition splits candidates (any order) into novel and known, both oldest-first.
func (f NoveltyFilter) Partition(ctx context.Context, candidates []models.Request) (novel, known []models.Request, err error) {
	for _, req := range OldestFirst(candidates) {
		isNew, err := f.IsNovel(ctx, req.ID)
		if err != nil {
			return nil, nil, err
		}
		if isNew {
			novel = append(novel, req)
		} else {
			known = append(known, req)
		}
	}
	return novel, known, nil
}
