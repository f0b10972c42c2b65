// Package store persists scoring runs and their per-region results.
package store

import (
	"context"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	CreateRun(ctx context.Context, regions []string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, results []model.ScoringResult, skipped []model.SkippedRegion) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// ResultHistory returns a region's past final scores, newest first.
	ResultHistory(ctx context.Context, regionID string, limit int) ([]model.ScoringResult, error)

	Migrate(ctx context.Context) error
	Close() error
}
