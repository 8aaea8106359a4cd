package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noopta/situationship-ai/internal/model"
)

const (
	createAnalysisRunSQL = `INSERT INTO analysis_runs (id, image_count, group_count, status, error)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, image_count, group_count, status, error, started_at, finished_at`

	finishAnalysisRunSQL = `UPDATE analysis_runs
SET status = $2, group_count = $3, error = $4, finished_at = now()
WHERE id = $1`

	getAnalysisRunSQL = `SELECT id, image_count, group_count, status, error, started_at, finished_at
FROM analysis_runs
WHERE id = $1`
)

type analysisRunStore struct {
	db DBTX
}

func NewAnalysisRunStore(db DBTX) AnalysisRunStore {
	return &analysisRunStore{db: db}
}

func (s *analysisRunStore) Create(ctx context.Context, run *model.AnalysisRun) (*model.AnalysisRun, error) {
	status := run.Status
	if status == "" {
		status = model.AnalysisStatusRunning
	}

	row := s.db.QueryRow(ctx, createAnalysisRunSQL,
		run.ID, run.ImageCount, run.GroupCount, string(status), run.Error)

	created, err := scanAnalysisRun(row)
	if err != nil {
		return nil, fmt.Errorf("create analysis run: %w", err)
	}
	return created, nil
}

func (s *analysisRunStore) Finish(ctx context.Context, id int64, status model.AnalysisStatus, groupCount int32, errMsg *string) error {
	tag, err := s.db.Exec(ctx, finishAnalysisRunSQL, id, string(status), groupCount, errMsg)
	if err != nil {
		return fmt.Errorf("finish analysis run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *analysisRunStore) GetByID(ctx context.Context, id int64) (*model.AnalysisRun, error) {
	run, err := scanAnalysisRun(s.db.QueryRow(ctx, getAnalysisRunSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get analysis run: %w", err)
	}
	return run, nil
}

func scanAnalysisRun(row pgx.Row) (*model.AnalysisRun, error) {
	var (
		run        model.AnalysisRun
		status     string
		finishedAt *time.Time
	)
	if err := row.Scan(
		&run.ID,
		&run.ImageCount,
		&run.GroupCount,
		&status,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}
	run.Status = model.AnalysisStatus(status)
	run.FinishedAt = finishedAt
	return &run, nil
}
