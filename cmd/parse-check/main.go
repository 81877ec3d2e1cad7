package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"request-radar/internal/config"
	"request-radar/internal/fetch"
	"request-radar/internal/listing"
	"request-radar/internal/models"
	"request-radar/internal/pipeline"
	"request-radar/internal/store"
)

var errNoInput = errors.New("either -file or -live is required")

type options struct {
	file       string
	live       bool
	partition  bool
	titleWidth int
}

func main() {
	file := flag.String("file", "", "Path to a saved listing page (HTML)")
	live := flag.Bool("live", false, "Fetch the listing page using SESSION_COOKIE and USER_AGENT")
	partition := flag.Bool("partition", false, "Mark each candidate new or known against the configured store")
	titleWidth := flag.Int("title-width", 48, "Maximum display width of the title column")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opts := options{file: *file, live: *live, partition: *partition, titleWidth: *titleWidth}
	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run parses one listing page and prints its candidates oldest-first.
func run(ctx context.Context, cfg config.Config, opts options, out io.Writer) error {
	markup, err := loadMarkup(ctx, cfg, opts)
	if err != nil {
		return err
	}
	candidates := listing.NewParser(cfg.BaseURL).ParseListing(markup)

	marks := map[int64]string{}
	if opts.partition {
		if marks, err = partition(ctx, cfg.Store, candidates); err != nil {
			return err
		}
	}

	writeTable(out, pipeline.OldestFirst(candidates), marks, opts.titleWidth)
	fmt.Fprintf(out, "%d candidates\n", len(candidates))
	return nil
}

func loadMarkup(ctx context.Context, cfg config.Config, opts options) (string, error) {
	switch {
	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case opts.live:
		client := fetch.NewClient(fetch.Options{
			Cookie:     cfg.SessionCookie,
			UserAgent:  cfg.UserAgent,
			Referer:    cfg.ListingURL(),
			HTTPClient: fetch.NewHTTPClient(cfg.ProxyURL),
		})
		return client.Get(ctx, cfg.ListingURL())
	default:
		return "", errNoInput
	}
}

func partition(ctx context.Context, cfg store.Config, candidates []models.Request) (map[int64]string, error) {
	open, err := store.NewOpener(cfg)
	if err != nil {
		return nil, err
	}
	rs, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := rs.Close(ctx); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	novel, known, err := pipeline.NewNoveltyFilter(rs).Partition(ctx, candidates)
	if err != nil {
		return nil, err
	}
	marks := make(map[int64]string, len(candidates))
	for _, req := range novel {
		marks[req.ID] = "new"
	}
	for _, req := range known {
		marks[req.ID] = "known"
	}
	return marks, nil
}

// writeTable prints a markdown table padded by display width.
func writeTable(out io.Writer, requests []models.Request, marks map[int64]string, titleWidth int) {
	header := []string{"ID", "POSTED", "AUTHOR", "TITLE"}
	if len(marks) > 0 {
		header = append(header, "STATUS")
	}
	rows := [][]string{header}
	for _, req := range requests {
		posted := req.PostedAtRaw
		if req.PostedAtKnown() {
			posted = req.PostedAt.Format("2006-01-02 15:04")
		}
		row := []string{
			fmt.Sprint(req.ID),
			posted,
			req.Author,
			runewidth.Truncate(req.Title, titleWidth, "…"),
		}
		if len(marks) > 0 {
			row = append(row, marks[req.ID])
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for i := range widths {
		widths[i] = 3
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i, row := range rows {
		var sb strings.Builder
		sb.WriteString("|")
		for j, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(cell, widths[j]))
			sb.WriteString(" |")
		}
		fmt.Fprintln(out, sb.String())
		if i == 0 {
			sb.Reset()
			sb.WriteString("|")
			for _, w := range widths {
				sb.WriteString(" " + strings.Repeat("-", w) + " |")
			}
			fmt.Fprintln(out, sb.String())
		}
	}
}
