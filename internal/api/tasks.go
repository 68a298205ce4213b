package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shirayuki/bilisync/internal/scheduler"
)

// TaskHandler exposes the scheduler's manual-run trigger and status
// snapshot (spec §4.8, SPEC_FULL.md Part D.4).
type TaskHandler struct {
	scheduler *scheduler.Scheduler
}

// Register registers the task routes.
func (h *TaskHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "runTask",
		Method:      "POST",
		Path:        "/api/v1/tasks/run",
		Summary:     "Trigger a manual sync cycle",
		Description: "Runs synchronously using mutex.try_acquire semantics: rejects with 409 if a cycle is already in flight.",
		Tags:        []string{"Tasks"},
	}, h.Run)

	huma.Register(api, huma.Operation{
		OperationID: "getTaskStatus",
		Method:      "GET",
		Path:        "/api/v1/tasks/status",
		Summary:     "Get the current cycle status",
		Tags:        []string{"Tasks"},
	}, h.Status)
}

// RunTaskInput is the input for triggering a manual cycle.
type RunTaskInput struct{}

// RunTaskOutput is the output for triggering a manual cycle.
type RunTaskOutput struct {
	Body scheduler.TaskStatus
}

// Run triggers an immediate cycle and returns the resulting status.
func (h *TaskHandler) Run(ctx context.Context, input *RunTaskInput) (*RunTaskOutput, error) {
	if h.scheduler == nil {
		return nil, huma.Error503ServiceUnavailable("scheduler not configured")
	}
	if err := h.scheduler.RunNow(ctx); err != nil {
		if errors.Is(err, scheduler.ErrCycleInFlight) {
			return nil, huma.Error409Conflict(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to run cycle", err)
	}
	return &RunTaskOutput{Body: h.scheduler.Status()}, nil
}

// TaskStatusInput is the input for reading task status.
type TaskStatusInput struct{}

// TaskStatusOutput is the output for reading task status.
type TaskStatusOutput struct {
	Body scheduler.TaskStatus
}

// Status returns the current TaskStatus snapshot.
func (h *TaskHandler) Status(ctx context.Context, input *TaskStatusInput) (*TaskStatusOutput, error) {
	if h.scheduler == nil {
		return nil, huma.Error503ServiceUnavailable("scheduler not configured")
	}
	return &TaskStatusOutput{Body: h.scheduler.Status()}, nil
}
