package store

import (
	"context"

	"request-radar/internal/models"
)

// StatusStore records cycle summaries for the status API.
type StatusStore interface {
	SetStatus(ctx context.Context, status models.CycleStatus) error
	GetStatus(ctx context.Context, cycleID string) (models.CycleStatus, bool, error)
	LatestStatus(ctx context.Context) (models.CycleStatus, bool, error)
}
