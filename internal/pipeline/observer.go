package pipeline

import (
	"time"

	"request-radar/internal/models"
)

// Fetch kinds reported to an Observer.
const (
	FetchListing = "listing"
	FetchDetail  = "detail"
)

// Observer receives pipeline measurements (the watcher feeds /metrics from it).
type Observer interface {
	ObserveFetch(kind string, took time.Duration, err error)
	ObserveNotify(err error)
	ObserveCycle(status models.CycleStatus)
}

type noopObserver struct{}

func (noopObserver) ObserveFetch(string, time.Duration, error) {}
func (noopObserver) ObserveNotify(error)                       {}
func (noopObserver) ObserveCycle(models.CycleStatus)           {}
