// Package batch sequences a work list through the Solution or OE
// remediation engine, tracking aggregate progress and propagating each
// item's terminal outcome back to its owning problem ticket.
package batch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/relay-bss/batchmender/internal/remediate"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/models"
)

// RuntimeClient is the subset of *runtimeapi.Client the executor depends on.
type RuntimeClient interface {
	DiscoverTickets(ctx context.Context, category string, limit int) ([]runtimeapi.DiscoveredTicket, error)
	UpdateTicket(ctx context.Context, ticketID string, status models.TicketStatus, remediationState, reason string) error
	UpdateTrackingEntity(ctx context.Context, id string, patch map[string]any) error
}

// RunFunc drives one item through its matching remediation engine.
type RunFunc func(ctx context.Context, itemID string) *remediate.Result

// outcome names, per terminal state, the counter it increments and the
// ticket status/remediation_state it propagates.
type outcome struct {
	counter string // "successful" | "failed" | "skipped" | "not_impacted"
	status  models.TicketStatus
}

var solutionOutcomes = map[string]outcome{
	"COMPLETED": {"successful", models.TicketResolved},
	"SKIPPED":   {"skipped", models.TicketClosed},
	"FAILED":    {"failed", models.TicketRejected},
}

var oeOutcomes = map[string]outcome{
	"REMEDIATED":   {"successful", models.TicketResolved},
	"NOT_IMPACTED": {"not_impacted", models.TicketClosed},
	"SKIPPED":      {"skipped", models.TicketClosed},
	"FAILED":       {"failed", models.TicketPending},
}

// Executor sequences items strictly one at a time.
type Executor struct {
	Client RuntimeClient
	Logger *slog.Logger

	cancelled atomic.Bool
}

// New builds an Executor.
func New(client RuntimeClient, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{Client: client, Logger: logger}
}

// Cancel requests cooperative cancellation; observed between items, never
// mid-item.
func (e *Executor) Cancel() { e.cancelled.Store(true) }

// BatchResult is what RunBatch returns.
type BatchResult struct {
	Summary models.BatchSummary
	State   models.TrackingEntityState
	Items   []*remediate.Result
}

// RunBatch sequences items through run, updating trackingEntityID's
// current_item_* fields and summary counters as it goes, and propagating
// each item's terminal outcome to its owning problem ticket.
// category selects which outcome table (Solution vs OE) governs ticket
// status propagation, and whether the ticket is marked in_progress before
// the engine runs: OE does, Solution touches the ticket only at terminal.
func (e *Executor) RunBatch(ctx context.Context, trackingEntityID string, category models.ScheduleCategory, items []string, run RunFunc) (*BatchResult, error) {
	summary := models.BatchSummary{Total: len(items), Pending: len(items)}
	result := &BatchResult{Summary: summary}

	ticketByTarget := e.resolveTickets(ctx, category)
	outcomes := solutionOutcomes
	markInProgress := false
	if category == models.CategoryPartialDataMissing {
		outcomes = oeOutcomes
		markInProgress = true
	}

	cancelledMidRun := false
	for _, itemID := range items {
		if e.cancelled.Load() {
			cancelledMidRun = true
			break
		}

		ticketID := ticketByTarget[itemID]
		e.updateTrackingCurrent(ctx, trackingEntityID, itemID, "in_progress")

		if markInProgress && ticketID != "" {
			if err := e.Client.UpdateTicket(ctx, ticketID, models.TicketInProgress, "", ""); err != nil {
				e.Logger.Warn("batch: marking ticket in_progress failed", "ticket_id", ticketID, "error", err)
			}
		}

		itemResult := run(ctx, itemID)
		result.Items = append(result.Items, itemResult)

		oc, known := outcomes[itemResult.FinalState]
		if !known {
			oc = outcome{counter: "failed", status: models.TicketRejected}
		}
		applyOutcome(&summary, oc.counter)

		if ticketID != "" {
			reason := itemResult.Message()
			if err := e.Client.UpdateTicket(ctx, ticketID, oc.status, itemResult.FinalState, reason); err != nil {
				e.Logger.Warn("batch: updating ticket final status failed", "ticket_id", ticketID, "error", err)
			}
		}

		e.updateTrackingCurrent(ctx, trackingEntityID, itemID, itemResult.FinalState)
		e.updateTrackingSummary(ctx, trackingEntityID, summary)
	}

	switch {
	case cancelledMidRun:
		result.State = models.TrackingCancelled
	case summary.Failed > 0 && summary.Successful == 0:
		result.State = models.TrackingFailed
	default:
		result.State = models.TrackingCompleted
	}
	result.Summary = summary

	now := time.Now()
	e.finalizeTracking(ctx, trackingEntityID, result.State, summary, now)
	return result, nil
}

// MarkEmpty finalises an empty-discovery tracking entity immediately as
// completed with a zero-quantity summary.
func (e *Executor) MarkEmpty(ctx context.Context, trackingEntityID string) {
	now := time.Now()
	summary := models.BatchSummary{}
	e.finalizeTracking(ctx, trackingEntityID, models.TrackingCompleted, summary, now)
}

func applyOutcome(summary *models.BatchSummary, counter string) {
	summary.Pending--
	switch counter {
	case "successful":
		summary.Successful++
	case "failed":
		summary.Failed++
	case "skipped":
		summary.Skipped++
	case "not_impacted":
		summary.NotImpacted++
	}
}

// resolveTickets builds the target_id -> ticket_id map via a single bulk
// listing before the run starts. Targets that cannot be
// resolved are processed anyway; their per-item ticket update is skipped.
func (e *Executor) resolveTickets(ctx context.Context, category models.ScheduleCategory) map[string]string {
	discovered, err := e.Client.DiscoverTickets(ctx, string(category), 10000)
	if err != nil {
		e.Logger.Warn("batch: pre-resolving problem tickets failed", "category", category, "error", err)
		return map[string]string{}
	}
	out := make(map[string]string, len(discovered))
	for _, d := range discovered {
		out[d.TargetID] = d.TicketID
	}
	return out
}

func (e *Executor) updateTrackingCurrent(ctx context.Context, trackingEntityID, itemID, state string) {
	if trackingEntityID == "" {
		return
	}
	patch := map[string]any{"x_currentItemId": itemID, "x_currentItemState": state}
	if err := e.Client.UpdateTrackingEntity(ctx, trackingEntityID, patch); err != nil {
		e.Logger.Warn("batch: updating tracking entity current item failed", "tracking_entity_id", trackingEntityID, "error", err)
	}
}

func (e *Executor) updateTrackingSummary(ctx context.Context, trackingEntityID string, summary models.BatchSummary) {
	if trackingEntityID == "" {
		return
	}
	patch := map[string]any{"x_summary": summary}
	if err := e.Client.UpdateTrackingEntity(ctx, trackingEntityID, patch); err != nil {
		e.Logger.Warn("batch: updating tracking entity summary failed", "tracking_entity_id", trackingEntityID, "error", err)
	}
}

func (e *Executor) finalizeTracking(ctx context.Context, trackingEntityID string, state models.TrackingEntityState, summary models.BatchSummary, completedAt time.Time) {
	if trackingEntityID == "" {
		return
	}
	patch := map[string]any{
		"state":          string(state),
		"actualQuantity": summary.Total,
		"x_summary":      summary,
		"completedAt":    completedAt.UTC().Format(time.RFC3339),
	}
	if err := e.Client.UpdateTrackingEntity(ctx, trackingEntityID, patch); err != nil {
		e.Logger.Warn("batch: finalising tracking entity failed", "tracking_entity_id", trackingEntityID, "error", err, "state", state)
	}
}
