package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"request-radar/internal/models"
)

func TestSQLiteStoreInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer s.Close(ctx)

	req := models.Request{
		ID:          102,
		Title:       "Landing page",
		Link:        "https://khamsat.com/community/requests/102",
		Author:      "omar",
		PostedAt:    time.Date(2025, 7, 21, 14, 30, 0, 0, time.UTC),
		PostedAtRaw: "2025-07-21 14:30:00",
		Description: "full text",
	}

	exists, err := s.Exists(ctx, req.ID)
	if err != nil || exists {
		t.Fatalf("expected missing request, got exists=%v err=%v", exists, err)
	}

	ok, err := s.InsertIfAbsent(ctx, req)
	if err != nil || !ok {
		t.Fatalf("expected insert, got ok=%v err=%v", ok, err)
	}
	ok, err = s.InsertIfAbsent(ctx, req)
	if err != nil || ok {
		t.Fatalf("expected conflict on second insert, got ok=%v err=%v", ok, err)
	}

	got, found, err := s.Get(ctx, req.ID)
	if err != nil || !found {
		t.Fatalf("expected stored request, got found=%v err=%v", found, err)
	}
	if got.Title != req.Title || got.Description != req.Description || !got.PostedAt.Equal(req.PostedAt) {
		t.Fatalf("unexpected stored request %+v", got)
	}
	if got.DiscoveredAt.IsZero() {
		t.Fatal("expected discovered_at to be filled in")
	}
}

func TestSQLiteStoreUnknownPostedAtIsNull(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer s.Close(ctx)

	if _, err := s.InsertIfAbsent(ctx, models.Request{ID: 5, PostedAtRaw: "garbled", Description: "d"}); err != nil {
		t.Fatal(err)
	}
	got, _, err := s.Get(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !got.PostedAt.IsZero() || got.PostedAtRaw != "garbled" {
		t.Fatalf("unexpected posted at fields %+v", got)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "requests.sqlite")

	first, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.InsertIfAbsent(ctx, models.Request{ID: 9, Description: "d"}); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatal(err)
	}

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close(ctx)
	if ok, _ := second.Exists(ctx, 9); !ok {
		t.Fatal("expected request to survive reopen")
	}
}
