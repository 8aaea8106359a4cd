package store

import (
	"context"
	"time"

	"github.com/noopta/situationship-ai/internal/model"
)

// NoopAnalysisRunStore is used when no database is configured.
type NoopAnalysisRunStore struct{}

func (NoopAnalysisRunStore) Create(_ context.Context, run *model.AnalysisRun) (*model.AnalysisRun, error) {
	created := *run
	if created.Status == "" {
		created.Status = model.AnalysisStatusRunning
	}
	created.StartedAt = time.Now()
	return &created, nil
}

func (NoopAnalysisRunStore) Finish(context.Context, int64, model.AnalysisStatus, int32, *string) error {
	return nil
}

func (NoopAnalysisRunStore) GetByID(context.Context, int64) (*model.AnalysisRun, error) {
	return nil, ErrNotFound
}

// NoopCache never hits and drops every write. Used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (NoopCache) Set(context.Context, string, string, time.Duration) error {
	return nil
}
