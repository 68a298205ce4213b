package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/scheduler"
)

type stubCycler struct {
	err error
}

func (c *stubCycler) RunCycle(ctx context.Context) error { return c.err }

func TestTaskHandler_RunAndStatus(t *testing.T) {
	sched := scheduler.New(scheduler.Deps{
		Orchestrator: &stubCycler{},
		Credential:   bilibili.NewCredentialStore(bilibili.Credential{}),
	})
	h := &TaskHandler{scheduler: sched}

	out, err := h.Run(context.Background(), &RunTaskInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Body.CycleCount)

	status, err := h.Status(context.Background(), &TaskStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Body.CycleCount)
}

func TestTaskHandler_NotConfigured(t *testing.T) {
	h := &TaskHandler{}
	_, err := h.Run(context.Background(), &RunTaskInput{})
	require.Error(t, err)

	_, err = h.Status(context.Background(), &TaskStatusInput{})
	require.Error(t, err)
}
