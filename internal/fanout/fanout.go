// Package fanout runs a fixed batch of independent jobs with a cap on
// simultaneous in-flight work, returning results in submission order.
package fanout

import (
	"context"
	"fmt"
)

// Job is one unit of work. It must respect ctx cancellation at its own
// suspension points; fanout never preempts a running job.
type Job[T any] func(ctx context.Context) (T, error)

// GatherOrdered executes jobs with at most k running simultaneously and
// returns a slice where result[i] corresponds to jobs[i], regardless of
// completion order.
//
// Failure is fail-fast: the first error (in completion order) cancels the
// derived context, still-queued jobs are never started, in-flight jobs are
// drained, and the error is returned annotated with the job's index. Slots
// of jobs that did not complete hold the zero value of T.
func GatherOrdered[T any](ctx context.Context, k int, jobs []Job[T]) ([]T, error) {
	if k < 1 {
		return nil, fmt.Errorf("fanout: concurrency bound must be >= 1, got %d", k)
	}

	results := make([]T, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type completion struct {
		idx int
		err error
	}
	done := make(chan completion)

	var firstErr error
	inFlight := 0
	admitted := 0

	// drainOne blocks for one completion and records the first failure.
	drainOne := func() {
		c := <-done
		inFlight--
		if c.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fanout: job %d: %w", c.idx, c.err)
			cancel()
		}
	}

	for i, job := range jobs {
		for inFlight >= k {
			drainOne()
		}
		if firstErr != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		go func(idx int, job Job[T]) {
			out, err := job(ctx)
			if err == nil {
				results[idx] = out
			}
			done <- completion{idx: idx, err: err}
		}(i, job)
		inFlight++
		admitted++
	}

	for inFlight > 0 {
		drainOne()
	}

	if firstErr != nil {
		return results, firstErr
	}
	if err := ctx.Err(); err != nil && admitted < len(jobs) {
		return results, fmt.Errorf("fanout: %d of %d jobs not started: %w", len(jobs)-admitted, len(jobs), err)
	}
	return results, nil
}
