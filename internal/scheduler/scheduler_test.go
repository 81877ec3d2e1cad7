package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseAcceptsCronAndDescriptors(t *testing.T) {
	for _, spec := range []string{"*/20 * * * *", "0 9 * * 1-5", "@every 30s", "@hourly"} {
		if _, err := Parse(spec); err != nil {
			t.Fatalf("expected %q to parse: %v", spec, err)
		}
	}
	for _, spec := range []string{"every minute", "* * *", "*/20 * * * * *"} {
		if _, err := Parse(spec); err == nil {
			t.Fatalf("expected %q to be rejected", spec)
		}
	}
}

func TestNewDefaultsAndValidates(t *testing.T) {
	s, err := New("", func(context.Context) {})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.spec != DefaultSchedule {
		t.Fatalf("expected default schedule, got %q", s.spec)
	}
	if _, err := New("@every 1s", nil); err == nil {
		t.Fatalf("expected nil job to be rejected")
	}
	if _, err := New("bogus", func(context.Context) {}); err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New("@every 1h", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected eager first run")
	}
	if s.Next() == "" {
		t.Fatalf("expected next tick to be scheduled")
	}
}

func TestTicksOverlap(t *testing.T) {
	var running, peak int32
	release := make(chan struct{})
	s, err := New("@every 1s", func(context.Context) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&peak) < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	close(release)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if atomic.LoadInt32(&peak) < 2 {
		t.Fatalf("expected a tick to start while the first run was still going")
	}
}

func TestStopWaitsForRunningJob(t *testing.T) {
	var finished int32
	started := make(chan struct{})
	s, err := New("@every 1h", func(context.Context) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	<-started
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Fatalf("stop returned before the job finished")
	}
}

func TestStopHonoursDeadline(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s, err := New("@every 1h", func(context.Context) { <-block })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); err == nil {
		t.Fatalf("expected stop to give up at the deadline")
	}
}

func TestCancelledContextSkipsRuns(t *testing.T) {
	var runs int32
	s, err := New("@every 1h", func(context.Context) { atomic.AddInt32(&runs, 1) })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if atomic.LoadInt32(&runs) != 0 {
		t.Fatalf("expected no runs after cancellation, got %d", runs)
	}
}
