package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/noopta/situationship-ai/common/logger"
)

// AnalyzeFunc produces the partial result for one group.
type AnalyzeFunc[G any] func(ctx context.Context, group G) (string, error)

// MergeFunc folds the ordered partial results into the final result.
type MergeFunc func(ctx context.Context, partials []string) (string, error)

// Analyzer runs one analyze call per group with at most Concurrency calls in
// flight, then exactly one merge call over the partial results in group order.
type Analyzer[G any] struct {
	concurrency int
	analyze     AnalyzeFunc[G]
	merge       MergeFunc
}

func New[G any](concurrency int, analyze AnalyzeFunc[G], merge MergeFunc) *Analyzer[G] {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Analyzer[G]{
		concurrency: concurrency,
		analyze:     analyze,
		merge:       merge,
	}
}

// Run analyzes every group and merges the results. With zero groups no
// analyze call is made and merge still runs once with an empty slice.
//
// The first analyze failure stops any group still waiting for a slot from
// starting and is returned at once. Calls already in flight keep running in
// the background and their output is discarded. Every failure is returned
// as *Error.
func (a *Analyzer[G]) Run(ctx context.Context, groups []G) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "situationship.analysis.analyzer"})

	sc := logger.StartSpan(ctx, "analysis.run")
	defer sc.End()
	sc.SetAttributes(
		attribute.Int("analysis.groups", len(groups)),
		attribute.Int("analysis.concurrency", a.concurrency),
	)
	ctx = sc.Context()

	start := time.Now()
	partials, err := a.fanOut(ctx, groups)
	if err != nil {
		sc.RecordError(err)
		return "", err
	}

	slog.DebugContext(ctx, "all groups analyzed",
		"groups", len(groups),
		"duration_ms", time.Since(start).Milliseconds())

	final, err := a.mergeAll(ctx, partials)
	if err != nil {
		sc.RecordError(err)
		return "", err
	}
	return final, nil
}

func (a *Analyzer[G]) fanOut(ctx context.Context, groups []G) ([]string, error) {
	// Each goroutine writes only its own slot. Slots are read only after
	// every goroutine has returned without error.
	partials := make([]string, len(groups))

	// admit is cancelled with the first failure as its cause. It only guards
	// admission through the gate; analyze calls themselves run on ctx.
	admit, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	gate := semaphore.NewWeighted(int64(a.concurrency))
	var g errgroup.Group

	for i, group := range groups {
		g.Go(func() error {
			if err := gate.Acquire(admit, 1); err != nil {
				return context.Cause(admit)
			}
			defer gate.Release(1)

			// Acquire can succeed on an already-cancelled context.
			if admit.Err() != nil {
				return context.Cause(admit)
			}

			partial, err := a.analyzeOne(ctx, i, group)
			if err != nil {
				failure := &Error{Stage: StageAnalyze, Group: i, Err: err}
				// Cancel before the deferred Release so no waiter slips through.
				stop(failure)
				return failure
			}

			if admit.Err() != nil {
				slog.DebugContext(ctx, "discarding partial after run stopped")
				return context.Cause(admit)
			}
			partials[i] = partial
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			return partials, nil
		}
		return nil, failureFrom(admit, err)
	case <-admit.Done():
		// A failed group or a cancelled caller. Siblings still in flight
		// finish on their own and the Wait goroutine exits after them.
		return nil, failureFrom(admit, context.Cause(admit))
	}
}

func failureFrom(admit context.Context, err error) *Error {
	var failure *Error
	if errors.As(context.Cause(admit), &failure) {
		return failure
	}
	if errors.As(err, &failure) {
		return failure
	}
	return &Error{Stage: StageAnalyze, Group: -1, Err: err}
}

func (a *Analyzer[G]) analyzeOne(ctx context.Context, index int, group G) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{GroupIndex: logger.Ptr(index)})

	sc := logger.StartSpan(ctx, "analysis.analyze_group")
	defer sc.End()
	sc.SetAttributes(attribute.Int("analysis.group_index", index))
	ctx = sc.Context()

	start := time.Now()
	partial, err := a.analyze(ctx, group)
	if err != nil {
		sc.RecordError(err)
		slog.WarnContext(ctx, "group analysis failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return "", err
	}

	slog.DebugContext(ctx, "group analyzed",
		"duration_ms", time.Since(start).Milliseconds(),
		"partial_length", len(partial))
	return partial, nil
}

func (a *Analyzer[G]) mergeAll(ctx context.Context, partials []string) (string, error) {
	sc := logger.StartSpan(ctx, "analysis.merge")
	defer sc.End()
	sc.SetAttributes(attribute.Int("analysis.partials", len(partials)))
	ctx = sc.Context()

	start := time.Now()
	final, err := a.merge(ctx, partials)
	if err != nil {
		sc.RecordError(err)
		slog.WarnContext(ctx, "merge failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return "", &Error{Stage: StageMerge, Group: -1, Err: err}
	}

	slog.DebugContext(ctx, "partials merged",
		"partials", len(partials),
		"duration_ms", time.Since(start).Milliseconds(),
		"final_length", len(final))
	return final, nil
}
