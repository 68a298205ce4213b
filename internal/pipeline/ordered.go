package pipeline

import (
	"context"

	"github.com/shirayuki/bilisync/internal/observability/metrics"
)

// SubTask is one named unit of work inside an ordered concurrent group
// (spec §5 "a single video's sub-tasks execute in a fixed order, not in
// parallel: each subsequent sub-task is polled only after the previous one
// completes").
type SubTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// SubTaskResult pairs a SubTask's name with its outcome.
type SubTaskResult struct {
	Name string
	Err  error
}

// RunOrdered executes tasks one at a time in the order given — a plain
// loop, not a sync.WaitGroup fan-out, by design (SPEC_FULL.md Part E.3).
// If abort returns true for some result's error, the remaining tasks are
// left unattempted and RunOrdered returns immediately with only the results
// up to and including the aborting task (spec §4.3 "the remaining work is
// left as-is"); if ctx is done before a task starts, the results of the
// tasks already run are returned. Unattempted tasks have no entry.
func RunOrdered(ctx context.Context, tasks []SubTask, abort func(error) bool) []SubTaskResult {
	results := make([]SubTaskResult, len(tasks))
	for i, t := range tasks {
		if ctx.Err() != nil {
			return results[:i]
		}
		err := t.Run(ctx)
		results[i] = SubTaskResult{Name: t.Name, Err: err}
		metrics.IncSubTask(t.Name, err == nil)
		if abort != nil && abort(err) {
			return results[:i+1]
		}
	}
	return results
}
