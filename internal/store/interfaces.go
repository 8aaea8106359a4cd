package store

import (
	"context"
	"errors"
	"time"

	"github.com/noopta/situationship-ai/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// AnalysisRunStore records one row per request that reaches the analyzer.
type AnalysisRunStore interface {
	Create(ctx context.Context, run *model.AnalysisRun) (*model.AnalysisRun, error)
	Finish(ctx context.Context, id int64, status model.AnalysisStatus, groupCount int32, errMsg *string) error
	GetByID(ctx context.Context, id int64) (*model.AnalysisRun, error)
}

// ResultCache stores final analyses by content key.
// Get returns ok=false on a miss; errors are reserved for backend failures.
type ResultCache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
