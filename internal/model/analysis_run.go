package model

import "time"

type AnalysisStatus string

const (
	AnalysisStatusRunning   AnalysisStatus = "running"
	AnalysisStatusSucceeded AnalysisStatus = "succeeded"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// AnalysisRun is the log entry for one request that reached the analyzer.
// It never holds image bytes or model output.
type AnalysisRun struct {
	ID         int64          `json:"id"`
	ImageCount int32          `json:"image_count"`
	GroupCount int32          `json:"group_count"`
	Status     AnalysisStatus `json:"status"`
	Error      *string        `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}
