// Package solution implements the five-step Solution remediation engine
// (VALIDATE → DELETE → MIGRATE → POLL → POST_UPDATE).
package solution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/remediate"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/internal/statemachine"
	"github.com/relay-bss/batchmender/models"
)

// RuntimeClient is the subset of *runtimeapi.Client this engine depends on.
// Tests substitute a hand-written fake; no mocking framework is used.
type RuntimeClient interface {
	ValidateSolution(ctx context.Context, solutionID string) (*runtimeapi.SolutionValidateResult, error)
	DeleteSolution(ctx context.Context, solutionID string) error
	MigrateSolution(ctx context.Context, solutionID string) (*runtimeapi.SolutionMigrateResult, error)
	PollMigrationStatus(ctx context.Context, solutionID string) (*runtimeapi.SolutionPollResult, error)
	PostUpdateSolution(ctx context.Context, solutionID, jobID string, updates runtimeapi.SFDCUpdates) error
}

// PollConfig carries the exponential-backoff parameters for the POLL
// step, translated from config.RemediateConfig into durations.
type PollConfig struct {
	InitialDelay  time.Duration
	PollInterval  time.Duration
	MaxInterval   time.Duration
	BackoffFactor float64
	MaxDuration   time.Duration
}

// PollConfigFromRemediate builds a PollConfig from the process configuration.
func PollConfigFromRemediate(cfg config.RemediateConfig) PollConfig {
	return PollConfig{
		InitialDelay:  time.Duration(cfg.InitialDelaySeconds) * time.Second,
		PollInterval:  time.Duration(cfg.PollIntervalSeconds) * time.Second,
		MaxInterval:   time.Duration(cfg.MaxIntervalSeconds) * time.Second,
		BackoffFactor: cfg.BackoffFactor,
		MaxDuration:   time.Duration(cfg.MaxDurationSeconds) * time.Second,
	}
}

// Engine drives one solution id through the five-step flow.
type Engine struct {
	Client RuntimeClient
	Poll   PollConfig

	// Sleep and Now are overridden by tests that exercise the polling loop
	// without waiting in real time.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// New builds an Engine with real sleep/clock functions.
func New(client RuntimeClient, poll PollConfig) *Engine {
	return &Engine{
		Client: client,
		Poll:   poll,
		Sleep:  time.Sleep,
		Now:    time.Now,
	}
}

// RunOptions adjusts a single Run invocation.
type RunOptions struct {
	// SkipValidation bypasses the VALIDATE remote call and MACD eligibility
	// check entirely, moving straight to VALIDATED; used when the caller has
	// already determined eligibility out of band.
	SkipValidation bool
	// SFDCUpdates overrides the default POST_UPDATE field writes wholesale.
	SFDCUpdates *runtimeapi.SFDCUpdates
	OnStep       remediate.StepCallback
}

// Run drives solutionID through VALIDATE → DELETE → MIGRATE → POLL →
// POST_UPDATE, returning the per-item result envelope.
func (e *Engine) Run(ctx context.Context, solutionID string, opts RunOptions) *remediate.Result {
	sm := statemachine.New(solutionID, models.SolutionDetected, models.SolutionTransitions, models.SolutionTerminals, models.SolutionFailed)
	res := &remediate.Result{ItemID: solutionID}
	totalStart := e.Now()

	fail := func(action, reason string) *remediate.Result {
		_ = sm.Transition(models.SolutionFailed, reason)
		res.FailedAt = action
		res.Success = false
		res.FinalState = sm.Current().String()
		res.TotalDurationMS = e.Now().Sub(totalStart).Milliseconds()
		res.StateHistory = historyStrings(sm)
		return res
	}

	_ = sm.Transition(models.SolutionValidating, "")

	if opts.SkipValidation {
		e.record(res, &opts, "VALIDATE", true, 0, "skipped by caller")
		_ = sm.Transition(models.SolutionValidated, "skipped by caller")
	} else {
		remediate.SafeCall(opts.OnStep, "VALIDATE", false, 0)
		step, eligible, reason := e.validate(ctx, solutionID)
		res.Steps = append(res.Steps, step)
		remediate.SafeCall(opts.OnStep, step.Action, step.Success, step.DurationMS)
		if !step.Success {
			return fail("VALIDATE", step.Message)
		}
		if !eligible {
			_ = sm.Transition(models.SolutionSkipped, reason)
			res.Success = true
			res.FinalState = sm.Current().String()
			res.TotalDurationMS = e.Now().Sub(totalStart).Milliseconds()
			res.StateHistory = historyStrings(sm)
			return res
		}
		_ = sm.Transition(models.SolutionValidated, "")
	}

	_ = sm.Transition(models.SolutionDeleting, "")
	step := e.timeStep(&opts, "DELETE", func() (string, string, error) {
		return "", "", e.Client.DeleteSolution(ctx, solutionID)
	})
	res.Steps = append(res.Steps, step)
	if !step.Success {
		_ = sm.Transition(models.SolutionDeleteFailed, step.Message)
		return fail("DELETE", step.Message)
	}

	_ = sm.Transition(models.SolutionMigrating, "")
	var jobID string
	step = e.timeStep(&opts, "MIGRATE", func() (string, string, error) {
		mr, err := e.Client.MigrateSolution(ctx, solutionID)
		if err != nil {
			return "", "", err
		}
		jobID = mr.JobID
		return mr.JobID, "", nil
	})
	res.Steps = append(res.Steps, step)
	if !step.Success {
		_ = sm.Transition(models.SolutionMigrationFailed, step.Message)
		return fail("MIGRATE", step.Message)
	}

	_ = sm.Transition(models.SolutionWaitingConfirmation, "")
	step, confirmed, timedOut := e.poll(ctx, solutionID, &opts)
	res.Steps = append(res.Steps, step)
	if timedOut {
		_ = sm.Transition(models.SolutionMigrationFailed, step.Message)
		return fail("POLL", step.Message)
	}
	if !confirmed {
		_ = sm.Transition(models.SolutionMigrationFailed, step.Message)
		return fail("POLL", step.Message)
	}
	_ = sm.Transition(models.SolutionConfirmed, "")

	_ = sm.Transition(models.SolutionPostUpdate, "")
	updates := runtimeapi.DefaultSFDCUpdates
	if opts.SFDCUpdates != nil {
		updates = *opts.SFDCUpdates
	}
	step = e.timeStep(&opts, "POST_UPDATE", func() (string, string, error) {
		return "", "", e.Client.PostUpdateSolution(ctx, solutionID, jobID, updates)
	})
	res.Steps = append(res.Steps, step)
	// POST_UPDATE is non-fatal in every failure mode (endpoint-missing or
	// otherwise): migration already confirmed server-side, so the item still
	// completes even if this cosmetic write did not land.
	_ = sm.Transition(models.SolutionCompleted, "")

	res.Success = true
	res.FinalState = sm.Current().String()
	res.TotalDurationMS = e.Now().Sub(totalStart).Milliseconds()
	res.StateHistory = historyStrings(sm)
	return res
}

func (e *Engine) validate(ctx context.Context, solutionID string) (remediate.StepResult, bool, string) {
	start := e.Now()
	result, err := e.Client.ValidateSolution(ctx, solutionID)
	dur := e.Now().Sub(start).Milliseconds()
	if err != nil {
		return remediate.StepResult{Action: "VALIDATE", Success: false, DurationMS: dur, Message: err.Error()}, false, ""
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "validate reported failure"
		}
		return remediate.StepResult{Action: "VALIDATE", Success: false, DurationMS: dur, Message: msg}, false, ""
	}

	var details *runtimeapi.MACDDetails
	if len(result.MACDDetails) > 0 {
		var d runtimeapi.MACDDetails
		if decodeErr := json.Unmarshal(result.MACDDetails, &d); decodeErr == nil {
			details = &d
		}
	}
	eligible, reason := macdEligible(details)
	return remediate.StepResult{Action: "VALIDATE", Success: true, DurationMS: dur, Message: reason}, eligible, reason
}

// poll runs the exponential-backoff loop of step 4.
func (e *Engine) poll(ctx context.Context, solutionID string, opts *RunOptions) (remediate.StepResult, bool, bool) {
	start := e.Now()
	remediate.SafeCall(opts.OnStep, "POLL", false, 0)

	e.Sleep(e.Poll.InitialDelay)
	interval := e.Poll.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		result, err := e.Client.PollMigrationStatus(ctx, solutionID)
		elapsed := e.Now().Sub(start)
		if err != nil {
			// Transport exceptions during polling are retried on the next
			// iteration; they never terminate polling by themselves — only the
			// overall timeout does, and its message carries the last error.
			if elapsed >= e.Poll.MaxDuration {
				dur := elapsed.Milliseconds()
				step := remediate.StepResult{Action: "POLL", Success: false, DurationMS: dur, Message: fmt.Sprintf("polling timed out after %s: %v", elapsed, err)}
				remediate.SafeCall(opts.OnStep, "POLL", false, dur)
				return step, false, true
			}
		} else {
			switch result.Status {
			case "COMPLETED", "SUCCESS":
				dur := elapsed.Milliseconds()
				step := remediate.StepResult{Action: "POLL", Success: true, DurationMS: dur, Status: result.Status}
				remediate.SafeCall(opts.OnStep, "POLL", true, dur)
				return step, true, false
			case "FAILED", "ERROR":
				dur := elapsed.Milliseconds()
				step := remediate.StepResult{Action: "POLL", Success: false, DurationMS: dur, Status: result.Status, Message: "migration reported status " + result.Status}
				remediate.SafeCall(opts.OnStep, "POLL", false, dur)
				return step, false, false
			}
			if elapsed >= e.Poll.MaxDuration {
				dur := elapsed.Milliseconds()
				step := remediate.StepResult{Action: "POLL", Success: false, DurationMS: dur, Status: result.Status, Message: fmt.Sprintf("polling timed out after %s, last status %s", elapsed, result.Status)}
				remediate.SafeCall(opts.OnStep, "POLL", false, dur)
				return step, false, true
			}
		}

		wait := interval
		if wait > e.Poll.MaxInterval {
			wait = e.Poll.MaxInterval
		}
		e.Sleep(wait)
		interval = time.Duration(float64(interval) * e.Poll.BackoffFactor)
	}
}

// timeStep runs fn, wrapping it in a StepResult and invoking the caller's
// step callback before and after.
func (e *Engine) timeStep(opts *RunOptions, action string, fn func() (jobID, status string, err error)) remediate.StepResult {
	remediate.SafeCall(opts.OnStep, action, false, 0)
	start := e.Now()
	jobID, status, err := fn()
	dur := e.Now().Sub(start).Milliseconds()
	step := remediate.StepResult{Action: action, Success: err == nil, DurationMS: dur, JobID: jobID, Status: status}
	if err != nil {
		step.Message = err.Error()
	}
	remediate.SafeCall(opts.OnStep, action, step.Success, dur)
	return step
}

func (e *Engine) record(res *remediate.Result, opts *RunOptions, action string, success bool, durationMS int64, message string) {
	res.Steps = append(res.Steps, remediate.StepResult{Action: action, Success: success, DurationMS: durationMS, Message: message})
	remediate.SafeCall(opts.OnStep, action, success, durationMS)
}

func historyStrings(sm *statemachine.Machine[models.SolutionState]) []string {
	snap := sm.Snapshot()
	hist := make([]string, 0, len(snap.History)+1)
	hist = append(hist, models.SolutionDetected.String())
	for _, t := range snap.History {
		hist = append(hist, t.To.String())
	}
	return hist
}
