package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"request-radar/internal/models"
)

func TestMemoryStoreInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(models.Request{ID: 101, Title: "old"})

	ok, err := s.InsertIfAbsent(ctx, models.Request{ID: 101, Title: "again"})
	if err != nil || ok {
		t.Fatalf("expected conflict for existing id, got ok=%v err=%v", ok, err)
	}
	got, _ := s.Get(101)
	if got.Title != "old" {
		t.Fatalf("stored request must not change, got %+v", got)
	}

	ok, err = s.InsertIfAbsent(ctx, models.Request{ID: 102, Title: "new"})
	if err != nil || !ok {
		t.Fatalf("expected insert, got ok=%v err=%v", ok, err)
	}
	exists, _ := s.Exists(ctx, 102)
	if !exists {
		t.Fatal("expected 102 to exist after insert")
	}
}

func TestMemoryStoreConcurrentInsertsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.InsertIfAbsent(ctx, models.Request{ID: 7}); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestNewOpenerUnknownDriver(t *testing.T) {
	_, err := NewOpener(Config{Driver: "cassandra"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestNewOpenerMemory(t *testing.T) {
	open, err := NewOpener(Config{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("NewOpener returned error: %v", err)
	}
	first, _ := open(context.Background())
	if _, err := first.InsertIfAbsent(context.Background(), models.Request{ID: 1}); err != nil {
		t.Fatal(err)
	}
	second, _ := open(context.Background())
	if ok, _ := second.Exists(context.Background(), 1); !ok {
		t.Fatal("memory opener must share state across cycles")
	}
}
