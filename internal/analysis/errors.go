package analysis

import (
	"errors"
	"fmt"
)

// ErrAnalysisFailed matches every *Error via errors.Is.
var ErrAnalysisFailed = errors.New("analysis failed")

type Stage string

const (
	StageAnalyze Stage = "analyze"
	StageMerge   Stage = "merge"
)

// Error reports the failure that aborted a run. Group is the index of the
// failing group for StageAnalyze, or -1 when no single group is to blame
// (merge failures, caller cancellation).
type Error struct {
	Stage Stage
	Group int
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == StageAnalyze && e.Group >= 0 {
		return fmt.Sprintf("analysis failed: analyze group %d: %v", e.Group, e.Err)
	}
	return fmt.Sprintf("analysis failed: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrAnalysisFailed
}
