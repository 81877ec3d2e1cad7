// Package scheduler triggers watcher cycles on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule fires every 20 minutes.
const DefaultSchedule = "*/20 * * * *"

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler runs a Job once on Start and then on every tick. A tick that
// fires while an earlier run is still going starts a second, concurrent run.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	job      Job

	mu      sync.Mutex
	ctx     context.Context
	entryID cron.EntryID
	wg      sync.WaitGroup
}

// Parse validates a 5-field cron expression or an @every/@hourly descriptor.
func Parse(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// New returns a stopped scheduler for spec. An empty spec uses DefaultSchedule.
func New(spec string, job Job) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler: nil job")
	}
	schedule, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cron.PrintfLogger(log.Default()))),
		schedule: schedule,
		spec:     spec,
		job:      job,
	}, nil
}

// Start runs the job immediately in the background and registers it with
// cron. ctx is handed to every run; cancelling it does not stop the ticks,
// Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.entryID = s.cron.Schedule(s.schedule, cron.FuncJob(s.fire))
	s.mu.Unlock()

	log.Printf("scheduler start schedule=%q", s.spec)
	s.fire()
	s.cron.Start()
}

// Next reports the next tick time, zero before Start.
func (s *Scheduler) Next() string {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return ""
	}
	return s.cron.Entry(id).Next.String()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job(ctx)
	}()
}

// Stop halts the ticks and blocks until in-flight runs return or ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
