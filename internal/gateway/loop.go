// Package gateway is the long-lived daemon: a periodic scheduler loop
// combined with a REST + SSE control plane. Rather than registering one
// cron entry per schedule, the loop runs a single tick on a fixed interval
// and evaluates every schedule's own window against wall-clock time, since
// the upstream schedules are timezone-windowed recurrences rather than bare
// cron expressions — cron is reserved for the one recurrence kind that
// needs it (the `custom` recurrence, schedule.RecurrenceExpr, consulted by
// internal/schedule.NextExecutionAt).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relay-bss/batchmender/internal/batch"
	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/notify"
	"github.com/relay-bss/batchmender/internal/remediate"
	"github.com/relay-bss/batchmender/internal/remediate/oe"
	"github.com/relay-bss/batchmender/internal/remediate/solution"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/internal/schedule"
	"github.com/relay-bss/batchmender/models"
)

// RuntimeClient is the subset of *runtimeapi.Client the scheduler loop
// depends on directly (schedule listing/update and tracking-entity
// creation); the executor and engines hold their own narrower views of the
// same client.
type RuntimeClient interface {
	ListActiveSchedules(ctx context.Context) ([]json.RawMessage, error)
	UpdateSchedule(ctx context.Context, id string, patch map[string]any) error
	CreateTrackingEntity(ctx context.Context, draft runtimeapi.TrackingDraft) (string, error)
	DiscoverTickets(ctx context.Context, category string, limit int) ([]runtimeapi.DiscoveredTicket, error)
	DiscoverOEServices(ctx context.Context, limit int) ([]runtimeapi.DiscoveredTicket, error)
	UpdateTicket(ctx context.Context, ticketID string, status models.TicketStatus, remediationState, reason string) error
	UpdateTrackingEntity(ctx context.Context, id string, patch map[string]any) error
}

// CycleSnapshot is what gets published after every tick
// and served by GET /status; it mirrors internal/tui.CycleSnapshot field for
// field.
type CycleSnapshot struct {
	SchedulerRunning bool      `json:"scheduler_running"`
	CycleNumber      int       `json:"cycle_number"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds,omitempty"`
	JobIDsCreated    []string  `json:"job_ids_created,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
}

// Loop is a single periodic task that evaluates every active schedule's
// window on each tick and hands off due schedules to the batch executor.
// Only one tick is ever in flight: Start's goroutine and any
// manual RunOnce/RunSchedule call triggered via the façade share runMu so a
// manual trigger never races a background tick.
type Loop struct {
	Client   RuntimeClient
	Executor *batch.Executor
	Logger   *slog.Logger
	Notify   *notify.Dispatcher

	Interval   time.Duration
	SolutionCB func() *solution.Engine
	OECB       func() *oe.Engine

	// OnCycle, when set, is invoked with the snapshot of every finished
	// background tick. The gateway points it at the SSE broadcaster so
	// /events subscribers see live cycle outcomes.
	OnCycle func(CycleSnapshot)

	runMu   sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	mu       sync.RWMutex
	snapshot CycleSnapshot
}

// NewLoop builds a Loop from process configuration. solutionEngine and
// oeEngine are factories rather than shared instances because the Solution
// engine's polling clock (Sleep/Now) may be swapped out per-call in tests.
func NewLoop(client RuntimeClient, executor *batch.Executor, cfg config.SchedulerConfig, logger *slog.Logger, dispatcher *notify.Dispatcher, solutionEngine func() *solution.Engine, oeEngine func() *oe.Engine) *Loop {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		Client:     client,
		Executor:   executor,
		Logger:     logger,
		Notify:     dispatcher,
		Interval:   interval,
		SolutionCB: solutionEngine,
		OECB:       oeEngine,
	}
}

// Running reports whether the background loop is active.
func (l *Loop) Running() bool { return l.running.Load() }

// Status returns the most recent cycle snapshot, stamped with the current
// running flag.
func (l *Loop) Status() CycleSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := l.snapshot
	snap.SchedulerRunning = l.running.Load()
	return snap
}

// Start launches the background tick goroutine; a no-op if already running.
func (l *Loop) Start(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(ctx)
}

// Stop ends the inter-tick sleep promptly; an in-flight tick is allowed to
// finish.
func (l *Loop) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	close(l.stop)
	<-l.done
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	cycle := 0
	for {
		cycle++
		l.tick(ctx, cycle)
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-time.After(l.Interval):
		}
	}
}

// tick runs one scheduler cycle, serialising against any
// concurrent manual trigger via runMu so at most one tick is ever in flight.
func (l *Loop) tick(ctx context.Context, cycle int) []string {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	started := time.Now()
	jobIDs, err := l.runCycle(ctx)
	snap := CycleSnapshot{
		CycleNumber:     cycle,
		StartedAt:       started,
		DurationSeconds: time.Since(started).Seconds(),
		JobIDsCreated:   jobIDs,
	}
	if err != nil {
		snap.ErrorMessage = err.Error()
		l.Logger.Error("scheduler: tick failed", "cycle", cycle, "error", err)
		if l.Notify != nil {
			l.Notify.Notify(ctx, notify.Event{Type: "tick_failed", Title: "scheduler tick failed", Body: err.Error(), Severity: "high", Metadata: map[string]any{"cycle": cycle}})
		}
	} else {
		l.Logger.Info("scheduler: tick complete", "cycle", cycle, "jobs_created", len(jobIDs))
	}

	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()

	if l.OnCycle != nil {
		l.OnCycle(snap)
	}
	return jobIDs
}

// runCycle runs one pass over the schedules: list, parse, filter-due, execute.
func (l *Loop) runCycle(ctx context.Context) ([]string, error) {
	raws, err := l.Client.ListActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active schedules: %w", err)
	}

	now := time.Now().UTC()
	var due []*models.Schedule
	for _, raw := range raws {
		sched, perr := runtimeapi.ParseSchedule(raw)
		if perr != nil {
			l.Logger.Warn("scheduler: dropping unparseable schedule", "error", perr)
			continue
		}
		if schedule.IsDue(*sched, now) {
			due = append(due, sched)
		}
	}

	var jobIDs []string
	for _, sched := range due {
		jobID, execErr := l.executeSchedule(ctx, sched)
		if execErr != nil {
			l.Logger.Error("scheduler: executing schedule failed", "schedule_id", sched.ID, "error", execErr)
			continue
		}
		if jobID != "" {
			jobIDs = append(jobIDs, jobID)
		}
	}
	return jobIDs, nil
}

// executeSchedule runs one due schedule: create the tracking entity, route
// by category, run the batch, update schedule counters.
func (l *Loop) executeSchedule(ctx context.Context, sched *models.Schedule) (string, error) {
	execNum := sched.TotalExecutions + 1
	draft := runtimeapi.TrackingDraft{
		Name:              fmt.Sprintf("%s - Execution %d", sched.Name, execNum),
		Category:          sched.Category,
		RequestedQuantity: sched.MaxBatchSize,
		ParentScheduleID:  sched.ID,
		ExecutionNumber:   execNum,
	}
	jobID, err := l.Client.CreateTrackingEntity(ctx, draft)
	if err != nil {
		return "", fmt.Errorf("creating tracking entity: %w", err)
	}

	var result *batch.BatchResult
	switch sched.Category {
	case models.CategorySolutionEmpty:
		result, err = l.runSolutionBatch(ctx, jobID, sched.MaxBatchSize)
	case models.CategoryPartialDataMissing:
		result, err = l.runOEBatch(ctx, jobID, sched.MaxBatchSize)
	default:
		return jobID, fmt.Errorf("unknown schedule category %q", sched.Category)
	}
	if err != nil {
		return jobID, err
	}

	patch := map[string]any{
		"totalExecutions":   sched.TotalExecutions + 1,
		"lastExecutionDate": time.Now().UTC().Format(time.RFC3339),
		"lastExecutionId":   jobID,
	}
	// An execution counts as successful only when no item failed.
	if result.Summary.Failed > 0 {
		patch["failedExecutions"] = sched.FailedExecutions + 1
	} else {
		patch["successfulExecutions"] = sched.SuccessfulExecutions + 1
	}
	next := schedule.NextExecutionAt(*sched, time.Now().UTC())
	if next != nil {
		patch["nextExecutionDate"] = next.UTC().Format(time.RFC3339)
	} else {
		patch["nextExecutionDate"] = nil
	}
	if err := l.Client.UpdateSchedule(ctx, sched.ID, patch); err != nil {
		l.Logger.Warn("scheduler: updating schedule counters failed", "schedule_id", sched.ID, "error", err)
	}

	if result.Summary.Failed > 0 && l.Notify != nil {
		sev := "medium"
		if result.Summary.Successful == 0 && result.Summary.NotImpacted == 0 {
			sev = "critical"
		}
		l.Notify.Notify(ctx, notify.Event{
			Type:       "batch_failed",
			Title:      "remediation batch had failures",
			Body:       fmt.Sprintf("schedule %s: %d failed of %d", sched.ID, result.Summary.Failed, result.Summary.Total),
			Severity:   sev,
			ScheduleID: sched.ID,
			Metadata:   map[string]any{"schedule_id": sched.ID, "tracking_entity_id": jobID},
		})
	}
	return jobID, nil
}

func (l *Loop) runSolutionBatch(ctx context.Context, jobID string, maxBatch int) (*batch.BatchResult, error) {
	discovered, err := l.Client.DiscoverTickets(ctx, string(models.CategorySolutionEmpty), maxBatch)
	if err != nil {
		return nil, fmt.Errorf("discovering solution tickets: %w", err)
	}
	if len(discovered) == 0 {
		l.Executor.MarkEmpty(ctx, jobID)
		return &batch.BatchResult{State: models.TrackingCompleted}, nil
	}
	items := make([]string, 0, len(discovered))
	for _, d := range discovered {
		items = append(items, d.TargetID)
	}
	engine := l.SolutionCB()
	run := func(ctx context.Context, itemID string) *remediate.Result {
		return engine.Run(ctx, itemID, solution.RunOptions{})
	}
	return l.Executor.RunBatch(ctx, jobID, models.CategorySolutionEmpty, items, run)
}

func (l *Loop) runOEBatch(ctx context.Context, jobID string, maxBatch int) (*batch.BatchResult, error) {
	discovered, err := l.Client.DiscoverOEServices(ctx, maxBatch)
	if err != nil {
		return nil, fmt.Errorf("discovering OE services: %w", err)
	}
	if len(discovered) == 0 {
		l.Executor.MarkEmpty(ctx, jobID)
		return &batch.BatchResult{State: models.TrackingCompleted}, nil
	}
	items := make([]string, 0, len(discovered))
	for _, d := range discovered {
		items = append(items, d.TargetID)
	}
	engine := l.OECB()
	run := func(ctx context.Context, itemID string) *remediate.Result {
		return engine.Run(ctx, itemID, oe.RunOptions{})
	}
	return l.Executor.RunBatch(ctx, jobID, models.CategoryPartialDataMissing, items, run)
}

// RunOnce runs a single tick synchronously, serialising
// against the background loop via the same runMu so it is never concurrent
// with one.
func (l *Loop) RunOnce(ctx context.Context) ([]string, error) {
	jobIDs, err := l.runCycleLocked(ctx)
	return jobIDs, err
}

func (l *Loop) runCycleLocked(ctx context.Context) ([]string, error) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.runCycle(ctx)
}

// RunSchedule runs one schedule immediately, bypassing IsDue (POST
// /execute/{schedule_id}).
func (l *Loop) RunSchedule(ctx context.Context, sched *models.Schedule) (string, error) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.executeSchedule(ctx, sched)
}
