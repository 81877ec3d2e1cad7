// Package pipeline runs watcher cycles: fetch the listing, keep the requests
// not yet stored, read their details one at a time with a fixed pause between
// them, then store and announce each one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"request-radar/internal/listing"
	"request-radar/internal/models"
	"request-radar/internal/notify"
	"request-radar/internal/store"
)

// DefaultDelay is the pause after every detail fetch.
const DefaultDelay = 20 * time.Second

// closeTimeout bounds store release and status writes, which run even after
// the cycle context is cancelled.
const closeTimeout = 10 * time.Second

// Config holds the per-cycle settings.
type Config struct {
	ListingURL string
	// Delay is the mandatory pause after each detail fetch, success or failure.
	Delay time.Duration
}

// Deps are the collaborators of a Cycle. Status and Observer are optional.
type Deps struct {
	Fetcher  PageFetcher
	Parser   *listing.Parser
	Open     store.Opener
	Notifier notify.Notifier
	Pacer    Pacer
	Status   store.StatusStore
	Observer Observer
}

// Cycle is one end-to-end pass. Run may be called concurrently; each call
// opens its own store connection.
type Cycle struct {
	cfg      Config
	fetcher  PageFetcher
	parser   *listing.Parser
	open     store.Opener
	enricher *Enricher
	notifier notify.Notifier
	pacer    Pacer
	status   store.StatusStore
	observer Observer
	newID    func() string
	now      func() time.Time
}

// NewCycle wires a Cycle, filling defaults for the optional deps.
func NewCycle(cfg Config, deps Deps) *Cycle {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if deps.Parser == nil {
		deps.Parser = listing.NewParser(listing.DefaultOrigin)
	}
	if deps.Pacer == nil {
		deps.Pacer = SleepPacer{}
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	return &Cycle{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		parser:   deps.Parser,
		open:     deps.Open,
		enricher: NewEnricher(deps.Fetcher, deps.Observer),
		notifier: deps.Notifier,
		pacer:    deps.Pacer,
		status:   deps.Status,
		observer: deps.Observer,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Run executes one cycle and returns its summary. It never panics and never
// returns an error: fatal problems end the cycle, are logged, and show up in
// the summary's State and Error.
func (c *Cycle) Run(ctx context.Context) (status models.CycleStatus) {
	status = models.CycleStatus{
		CycleID:   c.newID(),
		State:     models.CycleRunning,
		StartedAt: c.now().UTC(),
	}
	log.Printf("cycle start cycle=%s listing=%s", status.CycleID, c.cfg.ListingURL)
	c.saveStatus(ctx, status)

	defer func() {
		if r := recover(); r != nil {
			status.State = models.CycleAborted
			status.Error = fmt.Sprintf("panic: %v", r)
			log.Printf("cycle panic cycle=%s: %v\n%s", status.CycleID, r, debug.Stack())
		}
		status.FinishedAt = c.now().UTC()
		c.saveStatus(ctx, status)
		c.observer.ObserveCycle(status)
		log.Printf("cycle done cycle=%s state=%s parsed=%d known=%d skipped=%d inserted=%d conflicts=%d notified=%d took=%s",
			status.CycleID, status.State, status.Parsed, status.Known, status.Skipped, status.Inserted,
			status.Conflicts, status.Notified, status.FinishedAt.Sub(status.StartedAt).Round(time.Millisecond))
	}()

	rs, err := c.open(ctx)
	if err != nil {
		c.abort(&status, fmt.Errorf("open store: %w", err))
		return status
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := rs.Close(closeCtx); err != nil {
			log.Printf("store close error cycle=%s: %v", status.CycleID, err)
		}
	}()

	start := time.Now()
	markup, err := c.fetcher.Get(ctx, c.cfg.ListingURL)
	c.observer.ObserveFetch(FetchListing, time.Since(start), err)
	if err != nil {
		c.abort(&status, fmt.Errorf("fetch listing: %w", err))
		return status
	}
	candidates := c.parser.ParseListing(markup)
	status.Parsed = len(candidates)
	log.Printf("listing parsed cycle=%s candidates=%d", status.CycleID, len(candidates))

	filter := NewNoveltyFilter(rs)
	for _, req := range OldestFirst(candidates) {
		if err := c.process(ctx, rs, filter, req, &status); err != nil {
			c.abort(&status, err)
			return status
		}
	}

	status.State = models.CycleCompleted
	return status
}

// process handles one candidate. A returned error ends the cycle.
func (c *Cycle) process(ctx context.Context, rs store.RequestStore, filter NoveltyFilter, req models.Request, status *models.CycleStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	isNew, err := filter.IsNovel(ctx, req.ID)
	if err != nil {
		return err
	}
	if !isNew {
		status.Known++
		return nil
	}

	log.Printf("new request cycle=%s request=%d title=%q", status.CycleID, req.ID, req.Title)
	description := strings.TrimSpace(c.enricher.Enrich(ctx, req.Link))
	if !models.HasUsableDescription(description) {
		status.Skipped++
		log.Printf("request skipped cycle=%s request=%d: no usable description", status.CycleID, req.ID)
		return c.pause(ctx, status.CycleID)
	}

	req.Description = description
	req.DiscoveredAt = c.now().UTC()
	inserted, err := rs.InsertIfAbsent(ctx, req)
	if err != nil {
		return fmt.Errorf("insert request=%d: %w", req.ID, err)
	}
	if !inserted {
		status.Conflicts++
		log.Printf("request already stored by another cycle cycle=%s request=%d", status.CycleID, req.ID)
		return c.pause(ctx, status.CycleID)
	}
	status.Inserted++
	log.Printf("request stored cycle=%s request=%d", status.CycleID, req.ID)

	err = c.notifier.Notify(ctx, status.CycleID, req)
	c.observer.ObserveNotify(err)
	if err != nil {
		log.Printf("notify error cycle=%s request=%d: %v", status.CycleID, req.ID, err)
	} else {
		status.Notified++
	}
	return c.pause(ctx, status.CycleID)
}

func (c *Cycle) pause(ctx context.Context, cycleID string) error {
	if c.cfg.Delay <= 0 {
		return nil
	}
	log.Printf("pacing cycle=%s delay=%s", cycleID, c.cfg.Delay)
	return c.pacer.Pause(ctx, c.cfg.Delay)
}

func (c *Cycle) abort(status *models.CycleStatus, err error) {
	status.State = models.CycleAborted
	status.Error = err.Error()
	if errors.Is(err, context.Canceled) {
		log.Printf("cycle cancelled cycle=%s: %v", status.CycleID, err)
		return
	}
	log.Printf("cycle aborted cycle=%s: %v", status.CycleID, err)
}

func (c *Cycle) saveStatus(ctx context.Context, status models.CycleStatus) {
	if c.status == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := c.status.SetStatus(saveCtx, status); err != nil {
		log.Printf("status write error cycle=%s: %v", status.CycleID, err)
	}
}
