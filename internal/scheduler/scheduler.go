// Package scheduler drives one full synchronization cycle per interval or
// cron expression, serializing cycles with a single mutex and publishing a
// TaskStatus snapshot for the control API (spec §4.8).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/repository"
)

// Cycler runs one refresh/enrich/download cycle across every enabled
// VideoSource. *pipeline.Orchestrator satisfies this; tests substitute a
// stub so the loop/mutex/status logic can be exercised without a real
// database or bilibili client.
type Cycler interface {
	RunCycle(ctx context.Context) error
}

// Trigger is the sum type named in spec §4.8/§9: either a plain interval or
// a 6-field (seconds required) cron expression. Cron wins when both are set.
type Trigger struct {
	Interval time.Duration
	Cron     string
}

// cronParser requires all six fields (seconds through day-of-week), per
// spec §4.1/§9 "cron parsing requires a 6-field parser with seconds required".
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// IsCron reports whether the trigger is cron-scheduled rather than interval-scheduled.
func (t Trigger) IsCron() bool { return t.Cron != "" }

// next computes the next fire time after `from` for this trigger.
func (t Trigger) next(from time.Time) (time.Time, error) {
	if t.IsCron() {
		sched, err := cronParser.Parse(t.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("scheduler: parse cron trigger %q: %w", t.Cron, err)
		}
		return sched.Next(from), nil
	}
	interval := t.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return from.Add(interval), nil
}

// TaskStatus is the cycle-status snapshot published for the supplemented
// control API (spec §4.8 "publishes status").
type TaskStatus struct {
	Running    bool       `json:"running"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastFinish *time.Time `json:"last_finish,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CycleCount int64      `json:"cycle_count"`
}

// Deps are the collaborators the Scheduler needs to run one cycle and its
// per-cycle housekeeping (spec §4.8 "Additional housekeeping per cycle").
type Deps struct {
	Orchestrator Cycler
	Jobs         repository.JobRepository

	Client     *bilibili.Client
	Credential *bilibili.CredentialStore
	MixinKey   *bilibili.MixinKeyCache

	Trigger Trigger
	Logger  *slog.Logger
}

// Scheduler is the single process-wide cycle loop. Only one cycle may run
// at a time, enforced by mu; manual "run now" requests use TryLock
// semantics and reject while a cycle is already in flight (spec §4.8).
type Scheduler struct {
	deps Deps
	log  *slog.Logger

	mu sync.Mutex // guards a single in-flight cycle

	statusMu sync.RWMutex
	status   TaskStatus

	lastCredentialCheckMu sync.Mutex
	lastCredentialCheck   time.Time

	stop   chan struct{}
	done   chan struct{}
	runOne chan struct{}
}

// New builds a Scheduler from deps, defaulting Logger to slog.Default.
func New(deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Scheduler{
		deps:   deps,
		log:    deps.Logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		runOne: make(chan struct{}, 1),
	}
}

// Status returns a copy of the current TaskStatus.
func (s *Scheduler) Status() TaskStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Start runs the periodic loop until ctx is cancelled or Stop is called.
// It blocks; callers should run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	next, err := s.deps.Trigger.next(time.Now())
	if err != nil {
		s.log.Error("invalid scheduler trigger", slog.Any("error", err))
		return
	}
	s.publishNextRun(next)

	for {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stop:
			timer.Stop()
			return
		case <-s.runOne:
			timer.Stop()
			s.runCycle(ctx)
		case <-timer.C:
			s.runCycle(ctx)
		}

		next, err = s.deps.Trigger.next(time.Now())
		if err != nil {
			s.log.Error("invalid scheduler trigger", slog.Any("error", err))
			return
		}
		s.publishNextRun(next)
	}
}

// Stop signals the periodic loop to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// RunNow triggers an immediate cycle using TryLock semantics: it rejects
// with ErrCycleInFlight if a cycle is already running rather than queuing
// behind it (spec §4.8 "Manual run now requests ... use mutex.try_acquire
// semantics — they reject when a cycle is in flight, otherwise run
// synchronously").
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrCycleInFlight
	}
	defer s.mu.Unlock()
	s.runCycleLocked(ctx)
	return nil
}

// runCycle acquires the cycle mutex (blocking, for the periodic loop) and
// runs one cycle.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCycleLocked(ctx)
}

// runCycleLocked assumes the caller already holds s.mu.
func (s *Scheduler) runCycleLocked(ctx context.Context) {
	now := time.Now()
	s.statusMu.Lock()
	s.status.Running = true
	s.status.LastRun = &now
	s.statusMu.Unlock()

	job := models.NewCycleSyncJob("")
	job.MarkRunning("scheduler")
	if s.deps.Jobs != nil {
		if err := s.deps.Jobs.Create(ctx, job); err != nil {
			s.log.Warn("failed to record cycle job", slog.Any("error", err))
		}
	}

	s.runHousekeeping(ctx)

	err := s.deps.Orchestrator.RunCycle(ctx)

	finish := time.Now()
	s.statusMu.Lock()
	s.status.Running = false
	s.status.LastFinish = &finish
	s.status.CycleCount++
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
	}
	s.statusMu.Unlock()

	if err != nil {
		s.log.Error("sync cycle failed", slog.Any("error", err))
		job.MarkFailed(err)
	} else {
		s.log.Info("sync cycle completed", slog.Duration("elapsed", finish.Sub(now)))
		job.MarkCompleted("cycle completed")
	}
	if s.deps.Jobs != nil {
		if uerr := s.deps.Jobs.Update(ctx, job); uerr != nil {
			s.log.Warn("failed to update cycle job", slog.Any("error", uerr))
		}
	}
}

// runHousekeeping refreshes the global WBI mixin key and, once per local
// calendar day, runs the credential-refresh protocol (spec §4.8
// "Additional housekeeping per cycle (before the source loop)").
func (s *Scheduler) runHousekeeping(ctx context.Context) {
	cred := s.deps.Credential.Snapshot()

	if s.deps.Client != nil && s.deps.MixinKey != nil && !cred.Empty() {
		if err := s.deps.Client.RefreshMixinKey(ctx, cred, s.deps.MixinKey); err != nil {
			s.log.Warn("failed to refresh wbi mixin key", slog.Any("error", err))
		}
	}

	if cred.Empty() || s.deps.Client == nil {
		return
	}
	if !s.dueForCredentialCheck(time.Now()) {
		return
	}

	needsRefresh, err := cred.NeedsRefresh(ctx, s.deps.Client)
	if err != nil {
		s.log.Warn("failed to check credential refresh status", slog.Any("error", err))
		return
	}
	if !needsRefresh {
		return
	}

	newCred, err := cred.Refresh(ctx, s.deps.Client)
	if err != nil {
		s.log.Error("credential refresh failed, retaining old credential", slog.Any("error", err))
		return
	}
	s.deps.Credential.Store(newCred)
	s.log.Info("credential refreshed")
}

// dueForCredentialCheck reports whether the daily credential check is due,
// advancing the internal bookkeeping if so (spec §4.1 "at most once per
// local calendar day").
func (s *Scheduler) dueForCredentialCheck(now time.Time) bool {
	s.lastCredentialCheckMu.Lock()
	defer s.lastCredentialCheckMu.Unlock()

	if sameLocalDay(s.lastCredentialCheck, now) {
		return false
	}
	s.lastCredentialCheck = now
	return true
}

func sameLocalDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a, b = a.Local(), b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *Scheduler) publishNextRun(t time.Time) {
	s.statusMu.Lock()
	s.status.NextRun = &t
	s.statusMu.Unlock()
}

// RequestRun asks the periodic loop to run a cycle at its next iteration
// without waiting for the trigger, without blocking if one is already
// queued. Unlike RunNow it does not run synchronously nor report
// ErrCycleInFlight; it simply nudges the loop's select.
func (s *Scheduler) RequestRun() {
	select {
	case s.runOne <- struct{}{}:
	default:
	}
}
