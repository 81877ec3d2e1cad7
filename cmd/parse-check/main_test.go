package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"request-radar/internal/config"
	"request-radar/internal/models"
	"request-radar/internal/store"
)

const listingPage = `<html><body><table><tbody>
<tr class="forum_post" id="forum_post-102">
  <td class="details-td">
    <h3 class="details-head"><a href="/community/requests/102">تصميم شعار لمتجر</a></h3>
    <ul class="details-list">
      <li><a class="user" href="/user/omar">omar</a></li>
      <li class="d-lg-inline-block d-none"><span title="2025-07-21 14:30:12">منذ دقيقة</span></li>
    </ul>
  </td>
</tr>
<tr class="forum_post" id="forum_post-101">
  <td class="details-td">
    <h3 class="details-head"><a href="/community/requests/101">Landing page</a></h3>
    <ul class="details-list">
      <li><a class="user" href="/user/sara">sara</a></li>
      <li class="d-lg-inline-block d-none"><span title="yesterday">أمس</span></li>
    </ul>
  </td>
</tr>
</tbody></table></body></html>`

func writeListing(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listing.html")
	if err := os.WriteFile(path, []byte(listingPage), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestRunPrintsOldestFirst(t *testing.T) {
	cfg := config.Config{BaseURL: config.DefaultBaseURL}
	var out bytes.Buffer
	if err := run(context.Background(), cfg, options{file: writeListing(t), titleWidth: 40}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	first := strings.Index(text, "| 101")
	second := strings.Index(text, "| 102")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected 101 before 102:\n%s", text)
	}
	if !strings.Contains(text, "2025-07-21 14:30") || !strings.Contains(text, "yesterday") {
		t.Fatalf("expected parsed and raw dates:\n%s", text)
	}
	if strings.Contains(text, "STATUS") {
		t.Fatalf("status column only appears with -partition:\n%s", text)
	}
	if !strings.HasSuffix(text, "2 candidates\n") {
		t.Fatalf("unexpected footer:\n%s", text)
	}
}

func TestRunPartitionAgainstSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "requests.sqlite")
	ctx := context.Background()
	seed, err := store.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := seed.InsertIfAbsent(ctx, models.Request{ID: 101, Title: "Landing page", Description: "d"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := seed.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	cfg := config.Config{
		BaseURL: config.DefaultBaseURL,
		Store:   store.Config{Driver: store.DriverSQLite, SQLitePath: dbPath},
	}
	var out bytes.Buffer
	if err := run(ctx, cfg, options{file: writeListing(t), partition: true, titleWidth: 40}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, line := range strings.Split(out.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "| 101"):
			if !strings.Contains(line, "known") {
				t.Fatalf("expected 101 known: %s", line)
			}
		case strings.HasPrefix(line, "| 102"):
			if !strings.Contains(line, "new") {
				t.Fatalf("expected 102 new: %s", line)
			}
		}
	}
}

func TestRunRequiresInput(t *testing.T) {
	err := run(context.Background(), config.Config{}, options{}, &bytes.Buffer{})
	if !errors.Is(err, errNoInput) {
		t.Fatalf("expected errNoInput, got %v", err)
	}
}

func TestWriteTableTruncatesTitle(t *testing.T) {
	var out bytes.Buffer
	reqs := []models.Request{{ID: 1, Title: strings.Repeat("a", 30), Author: "x"}}
	writeTable(&out, reqs, nil, 10)
	if !strings.Contains(out.String(), "aaaaaaaaa…") {
		t.Fatalf("expected truncated title:\n%s", out.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || len(lines[0]) != len(lines[1]) {
		t.Fatalf("expected aligned header and separator:\n%s", out.String())
	}
}
