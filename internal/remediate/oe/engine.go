// Package oe implements the four-step OE (Order Enrichment) remediation
// engine (FETCH → ANALYSE+PATCH → PERSIST → TRIGGER_SYNC).
package oe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relay-bss/batchmender/internal/remediate"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/internal/statemachine"
	"github.com/relay-bss/batchmender/models"
)

// RuntimeClient is the subset of *runtimeapi.Client this engine depends on.
type RuntimeClient interface {
	GetOEServiceInfo(ctx context.Context, serviceID string) (*runtimeapi.OEServiceInfo, error)
	UpdateOEAttachment(ctx context.Context, serviceID, serialisedAttachment string) error
	TriggerOERemediation(ctx context.Context, serviceID, productDefinitionName string) error
	ResolveEnrichment(ctx context.Context, serviceID string) runtimeapi.Enrichment
}

// Engine drives one service id through the four-step flow.
type Engine struct {
	Client RuntimeClient
	Now    func() time.Time
}

// New builds an Engine with a real clock.
func New(client RuntimeClient) *Engine {
	return &Engine{Client: client, Now: time.Now}
}

// RunOptions adjusts a single Run invocation.
type RunOptions struct {
	// DryRun stops the engine after ANALYSE+PATCH, without persisting or
	// triggering sync.
	DryRun bool
	// Enrichment, when non-nil, is used instead of calling ResolveEnrichment.
	Enrichment *runtimeapi.Enrichment
	// FallbackEmail is tried for PICEmail/eSMSUserName only after the
	// Service→BillingAccount→Contact chain returns nothing.
	FallbackEmail string
	OnStep        remediate.StepCallback
}

// PreviewResult is the read-only analog of a dry run, reported by
// GET /oe/preview/{service_id} without requiring a RunOptions.DryRun
// full pass through ANALYSE+PATCH's instruction building.
type PreviewResult struct {
	ServiceType      string   `json:"service_type"`
	MissingFields    []string `json:"missing_fields"`
	PatchableFields  []string `json:"patchable_fields"`
	UnpatchableFields []string `json:"unpatchable_fields"`
}

// Run drives serviceID through FETCH → ANALYSE+PATCH → PERSIST →
// TRIGGER_SYNC, returning the per-item result envelope.
func (e *Engine) Run(ctx context.Context, serviceID string, opts RunOptions) *remediate.Result {
	sm := statemachine.New(serviceID, models.OEDetected, models.OETransitions, models.OETerminals, models.OEFailed)
	res := &remediate.Result{ItemID: serviceID}
	totalStart := e.Now()

	// finish reads the automaton's actual current state rather than trusting
	// a caller-supplied label, so res.FinalState always agrees with
	// sm.Snapshot().Current and the replayed res.StateHistory.
	finish := func(success bool, failedAt string) *remediate.Result {
		if !success {
			res.FailedAt = failedAt
		}
		res.Success = success
		res.FinalState = sm.Current().String()
		res.TotalDurationMS = e.Now().Sub(totalStart).Milliseconds()
		res.StateHistory = historyStrings(sm)
		return res
	}

	_ = sm.Transition(models.OEValidating, "")

	remediate.SafeCall(opts.OnStep, "FETCH", false, 0)
	fetchStep, info, err := e.fetch(ctx, serviceID)
	res.Steps = append(res.Steps, fetchStep)
	remediate.SafeCall(opts.OnStep, fetchStep.Action, fetchStep.Success, fetchStep.DurationMS)
	if err != nil {
		_ = sm.Transition(models.OEFailed, fetchStep.Message)
		return finish(false, "FETCH")
	}
	if info.ReplacementServiceExists {
		_ = sm.Transition(models.OESkipped, "replacement service exists")
		return finish(true, "")
	}
	if info.AttachmentContent == "" {
		_ = sm.Transition(models.OEFailed, "no attachment content returned")
		return finish(false, "FETCH")
	}

	var attachment map[string]any
	if jsonErr := json.Unmarshal([]byte(info.AttachmentContent), &attachment); jsonErr != nil {
		_ = sm.Transition(models.OEFailed, "invalid attachment JSON: "+jsonErr.Error())
		return finish(false, "FETCH")
	}
	_ = sm.Transition(models.OEValidated, "")

	serviceType := detectServiceType(info.ProductDefinitionName, attachment)
	if serviceType == ServiceUnknown {
		_ = sm.Transition(models.OEFailed, "unknown service type")
		return finish(false, "ANALYSE")
	}

	_ = sm.Transition(models.OEAnalyzing, "")
	analyseStart := e.Now()
	remediate.SafeCall(opts.OnStep, "ANALYSE", false, 0)

	missing := analyse(attachment, serviceType)
	if len(missing) == 0 {
		dur := e.Now().Sub(analyseStart).Milliseconds()
		res.Steps = append(res.Steps, remediate.StepResult{Action: "ANALYSE", Success: true, DurationMS: dur, Message: "no missing mandatory fields"})
		remediate.SafeCall(opts.OnStep, "ANALYSE", true, dur)
		_ = sm.Transition(models.OENotImpacted, "")
		return finish(true, "")
	}

	enrichment := e.resolveEnrichment(ctx, serviceID, &opts)
	instructions := buildPatchInstructions(missing, serviceType, enrichment)
	if len(instructions) == 0 {
		dur := e.Now().Sub(analyseStart).Milliseconds()
		res.Steps = append(res.Steps, remediate.StepResult{Action: "ANALYSE", Success: false, DurationMS: dur, Message: "enrichment insufficient to build any patch instruction"})
		remediate.SafeCall(opts.OnStep, "ANALYSE", false, dur)
		_ = sm.Transition(models.OEFailed, "enrichment insufficient")
		return finish(false, "ANALYSE")
	}

	newAttachment, patchedFields := applyPatch(attachment, instructions, serviceType)
	dur := e.Now().Sub(analyseStart).Milliseconds()
	res.Steps = append(res.Steps, remediate.StepResult{Action: "ANALYSE", Success: true, DurationMS: dur, Message: fmt.Sprintf("patched fields: %v", patchedFields)})
	remediate.SafeCall(opts.OnStep, "ANALYSE", true, dur)

	if len(patchedFields) == 0 {
		_ = sm.Transition(models.OENotImpacted, "patch produced no effective change")
		return finish(true, "")
	}

	if opts.DryRun {
		_ = sm.Transition(models.OEValidated, "dry run")
		return finish(true, "")
	}

	serialised, err := json.Marshal(newAttachment)
	if err != nil {
		_ = sm.Transition(models.OEFailed, "serialising patched attachment: "+err.Error())
		return finish(false, "PERSIST")
	}

	persistStep := e.timeStep(&opts, "PERSIST", func() error {
		return e.Client.UpdateOEAttachment(ctx, serviceID, string(serialised))
	})
	res.Steps = append(res.Steps, persistStep)
	if !persistStep.Success {
		_ = sm.Transition(models.OEFailed, persistStep.Message)
		return finish(false, "PERSIST")
	}
	_ = sm.Transition(models.OEAttachmentUpdated, "")

	_ = sm.Transition(models.OERemediationStarted, "")
	triggerStep := e.timeStep(&opts, "TRIGGER_SYNC", func() error {
		return e.Client.TriggerOERemediation(ctx, serviceID, info.ProductDefinitionName)
	})
	res.Steps = append(res.Steps, triggerStep)
	if !triggerStep.Success {
		_ = sm.Transition(models.OEFailed, triggerStep.Message)
		return finish(false, "TRIGGER_SYNC")
	}
	_ = sm.Transition(models.OERemediated, "")
	return finish(true, "")
}

// Preview runs FETCH + ANALYSE only, reporting which fields are missing and
// whether each is patchable given resolved enrichment, without mutating
// anything remote.
func (e *Engine) Preview(ctx context.Context, serviceID string, opts RunOptions) (*PreviewResult, error) {
	info, err := e.Client.GetOEServiceInfo(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	var attachment map[string]any
	if err := json.Unmarshal([]byte(info.AttachmentContent), &attachment); err != nil {
		return nil, fmt.Errorf("invalid attachment JSON: %w", err)
	}
	serviceType := detectServiceType(info.ProductDefinitionName, attachment)
	if serviceType == ServiceUnknown {
		return nil, fmt.Errorf("unknown service type")
	}

	missing := analyse(attachment, serviceType)
	enrichment := e.resolveEnrichment(ctx, serviceID, &opts)
	instructions := buildPatchInstructions(missing, serviceType, enrichment)

	patchable := make(map[string]bool, len(instructions))
	for _, instr := range instructions {
		patchable[instr.Name] = true
	}
	var patchableNames, unpatchableNames []string
	for _, m := range missing {
		if patchable[m] {
			patchableNames = append(patchableNames, m)
		} else {
			unpatchableNames = append(unpatchableNames, m)
		}
	}

	return &PreviewResult{
		ServiceType:       string(serviceType),
		MissingFields:     missing,
		PatchableFields:   patchableNames,
		UnpatchableFields: unpatchableNames,
	}, nil
}

func (e *Engine) fetch(ctx context.Context, serviceID string) (remediate.StepResult, *runtimeapi.OEServiceInfo, error) {
	start := e.Now()
	info, err := e.Client.GetOEServiceInfo(ctx, serviceID)
	dur := e.Now().Sub(start).Milliseconds()
	if err != nil {
		return remediate.StepResult{Action: "FETCH", Success: false, DurationMS: dur, Message: err.Error()}, nil, err
	}
	if !info.RawSuccessBool() {
		err := fmt.Errorf("get_oe_service_info reported failure")
		return remediate.StepResult{Action: "FETCH", Success: false, DurationMS: dur, Message: err.Error()}, nil, err
	}
	return remediate.StepResult{Action: "FETCH", Success: true, DurationMS: dur}, info, nil
}

// resolveEnrichment honours a caller-supplied override, otherwise resolves
// via the runtime client, then applies the fallback-email supplement
// only when the resolved chain left PICEmail empty.
func (e *Engine) resolveEnrichment(ctx context.Context, serviceID string, opts *RunOptions) runtimeapi.Enrichment {
	var enrichment runtimeapi.Enrichment
	if opts.Enrichment != nil {
		enrichment = *opts.Enrichment
	} else {
		enrichment = e.Client.ResolveEnrichment(ctx, serviceID)
	}
	if enrichment.PICEmail == "" && opts.FallbackEmail != "" {
		enrichment.PICEmail = opts.FallbackEmail
	}
	return enrichment
}

func (e *Engine) timeStep(opts *RunOptions, action string, fn func() error) remediate.StepResult {
	remediate.SafeCall(opts.OnStep, action, false, 0)
	start := e.Now()
	err := fn()
	dur := e.Now().Sub(start).Milliseconds()
	step := remediate.StepResult{Action: action, Success: err == nil, DurationMS: dur}
	if err != nil {
		step.Message = err.Error()
	}
	remediate.SafeCall(opts.OnStep, action, step.Success, dur)
	return step
}

func historyStrings(sm *statemachine.Machine[models.OEState]) []string {
	snap := sm.Snapshot()
	hist := make([]string, 0, len(snap.History)+1)
	hist = append(hist, models.OEDetected.String())
	for _, t := range snap.History {
		hist = append(hist, t.To.String())
	}
	return hist
}
