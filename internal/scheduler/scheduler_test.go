package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/models"
)

type countingCycler struct {
	calls  int32
	err    error
	delay  time.Duration
	onRun  func()
}

func (c *countingCycler) RunCycle(ctx context.Context) error {
	atomic.AddInt32(&c.calls, 1)
	if c.onRun != nil {
		c.onRun()
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.err
}

type stubJobRepo struct {
	createCount int
	updateCount int
}

func (s *stubJobRepo) Create(ctx context.Context, job *models.Job) error {
	s.createCount++
	job.ID = models.NewULID()
	return nil
}
func (s *stubJobRepo) GetByID(context.Context, models.ULID) (*models.Job, error)     { return nil, nil }
func (s *stubJobRepo) GetAll(context.Context) ([]*models.Job, error)                 { return nil, nil }
func (s *stubJobRepo) GetPending(context.Context) ([]*models.Job, error)             { return nil, nil }
func (s *stubJobRepo) GetByStatus(context.Context, models.JobStatus) ([]*models.Job, error) {
	return nil, nil
}
func (s *stubJobRepo) GetByType(context.Context, models.JobType) ([]*models.Job, error) {
	return nil, nil
}
func (s *stubJobRepo) GetByTargetID(context.Context, models.ULID) ([]*models.Job, error) {
	return nil, nil
}
func (s *stubJobRepo) GetRunning(context.Context) ([]*models.Job, error) { return nil, nil }
func (s *stubJobRepo) Update(ctx context.Context, job *models.Job) error {
	s.updateCount++
	return nil
}
func (s *stubJobRepo) Delete(context.Context, models.ULID) error { return nil }
func (s *stubJobRepo) DeleteCompleted(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (s *stubJobRepo) AcquireJob(context.Context, string) (*models.Job, error) { return nil, nil }
func (s *stubJobRepo) ReleaseJob(context.Context, models.ULID) error           { return nil }
func (s *stubJobRepo) FindDuplicatePending(context.Context, models.JobType, models.ULID) (*models.Job, error) {
	return nil, nil
}
func (s *stubJobRepo) CreateHistory(context.Context, *models.JobHistory) error { return nil }
func (s *stubJobRepo) GetHistory(context.Context, *models.JobType, int, int) ([]*models.JobHistory, int64, error) {
	return nil, 0, nil
}
func (s *stubJobRepo) DeleteHistory(context.Context, time.Time) (int64, error) { return 0, nil }

func newTestScheduler(t *testing.T, trigger Trigger, cycler Cycler) (*Scheduler, *stubJobRepo) {
	t.Helper()
	jobs := &stubJobRepo{}
	sched := New(Deps{
		Orchestrator: cycler,
		Jobs:         jobs,
		Credential:   bilibili.NewCredentialStore(bilibili.Credential{}),
		Trigger:      trigger,
	})
	return sched, jobs
}

func TestTrigger_IsCron(t *testing.T) {
	assert.False(t, Trigger{Interval: time.Second}.IsCron())
	assert.True(t, Trigger{Cron: "0 */5 * * * *"}.IsCron())
}

func TestTrigger_Next_Interval(t *testing.T) {
	trig := Trigger{Interval: 10 * time.Minute}
	now := time.Now()
	next, err := trig.next(now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(10*time.Minute), next, time.Second)
}

func TestTrigger_Next_Cron(t *testing.T) {
	trig := Trigger{Cron: "0 0 * * * *"} // top of every hour
	now := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	next, err := trig.next(now)
	require.NoError(t, err)
	assert.Equal(t, 11, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestTrigger_Next_InvalidCron(t *testing.T) {
	trig := Trigger{Cron: "not a cron"}
	_, err := trig.next(time.Now())
	assert.Error(t, err)
}

func TestScheduler_RunNow_ExecutesCycleAndRecordsJob(t *testing.T) {
	cycler := &countingCycler{}
	sched, jobs := newTestScheduler(t, Trigger{Interval: time.Hour}, cycler)

	err := sched.RunNow(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, cycler.calls)
	assert.Equal(t, 1, jobs.createCount)
	assert.Equal(t, 1, jobs.updateCount)

	status := sched.Status()
	assert.False(t, status.Running)
	assert.NotNil(t, status.LastRun)
	assert.NotNil(t, status.LastFinish)
	assert.Equal(t, int64(1), status.CycleCount)
	assert.Empty(t, status.LastError)
}

func TestScheduler_RunNow_RejectsWhileCycleInFlight(t *testing.T) {
	release := make(chan struct{})
	cycler := &countingCycler{onRun: func() { <-release }}
	sched, _ := newTestScheduler(t, Trigger{Interval: time.Hour}, cycler)

	errCh := make(chan error, 1)
	go func() { errCh <- sched.RunNow(context.Background()) }()

	// Give the first RunNow time to acquire the mutex.
	time.Sleep(20 * time.Millisecond)

	err := sched.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrCycleInFlight)

	close(release)
	require.NoError(t, <-errCh)
}

func TestScheduler_RunNow_PublishesLastError(t *testing.T) {
	boom := errors.New("boom")
	cycler := &countingCycler{err: boom}
	sched, _ := newTestScheduler(t, Trigger{Interval: time.Hour}, cycler)

	err := sched.RunNow(context.Background())
	require.NoError(t, err) // RunNow itself never fails; the cycle error is published in status

	status := sched.Status()
	assert.Equal(t, boom.Error(), status.LastError)
}

func TestScheduler_StartStop_RunsAtLeastOnce(t *testing.T) {
	cycler := &countingCycler{}
	sched, _ := newTestScheduler(t, Trigger{Interval: 10 * time.Millisecond}, cycler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	sched.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&cycler.calls), int32(1))
}

func TestScheduler_RequestRun_NudgesLoopEarly(t *testing.T) {
	cycler := &countingCycler{}
	sched, _ := newTestScheduler(t, Trigger{Interval: time.Hour}, cycler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	sched.RequestRun()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	assert.EqualValues(t, 1, cycler.calls)
}

func TestScheduler_DueForCredentialCheck_OncePerDay(t *testing.T) {
	sched, _ := newTestScheduler(t, Trigger{Interval: time.Hour}, &countingCycler{})

	now := time.Now()
	assert.True(t, sched.dueForCredentialCheck(now))
	assert.False(t, sched.dueForCredentialCheck(now.Add(time.Minute)))
	assert.True(t, sched.dueForCredentialCheck(now.Add(25*time.Hour)))
}
