package dto

import (
	"time"

	"github.com/noopta/situationship-ai/internal/model"
)

type AnalyzeResponse struct {
	Success  bool   `json:"success"`
	Analysis string `json:"analysis"`
	ID       int64  `json:"id,string,omitempty"`
	Groups   int    `json:"groups"`
	Cached   bool   `json:"cached"`
}

// ErrorResponse keeps the shape the front-end already understands:
// success=false, a short message and optional details.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type AnalysisRunResponse struct {
	ID         int64      `json:"id,string"`
	ImageCount int32      `json:"image_count"`
	GroupCount int32      `json:"group_count"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func ToAnalysisRunResponse(r *model.AnalysisRun) *AnalysisRunResponse {
	return &AnalysisRunResponse{
		ID:         r.ID,
		ImageCount: r.ImageCount,
		GroupCount: r.GroupCount,
		Status:     string(r.Status),
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func NewErrorResponse(msg, details string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg, Details: details}
}
