package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-bss/batchmender/internal/remediate"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/models"
)

type fakeRuntime struct {
	discovered      []runtimeapi.DiscoveredTicket
	ticketUpdates   []ticketUpdate
	trackingUpdates []map[string]any
}

type ticketUpdate struct {
	ticketID         string
	status           models.TicketStatus
	remediationState string
	reason           string
}

func (f *fakeRuntime) DiscoverTickets(context.Context, string, int) ([]runtimeapi.DiscoveredTicket, error) {
	return f.discovered, nil
}

func (f *fakeRuntime) UpdateTicket(_ context.Context, ticketID string, status models.TicketStatus, remediationState, reason string) error {
	f.ticketUpdates = append(f.ticketUpdates, ticketUpdate{ticketID, status, remediationState, reason})
	return nil
}

func (f *fakeRuntime) UpdateTrackingEntity(_ context.Context, _ string, patch map[string]any) error {
	f.trackingUpdates = append(f.trackingUpdates, patch)
	return nil
}

func resultFor(itemID, finalState string) *remediate.Result {
	return &remediate.Result{ItemID: itemID, FinalState: finalState, Success: finalState != "FAILED"}
}

// TestRunBatchAggregateCountersInvariant: pending + sum(terminal counters)
// == total at every observation, and pending == 0 once the batch finishes.
func TestRunBatchAggregateCountersInvariant(t *testing.T) {
	fr := &fakeRuntime{
		discovered: []runtimeapi.DiscoveredTicket{
			{TargetID: "sol-1", TicketID: "tkt-1"},
			{TargetID: "sol-2", TicketID: "tkt-2"},
			{TargetID: "sol-3", TicketID: "tkt-3"},
		},
	}
	e := New(fr, nil)

	states := map[string]string{"sol-1": "COMPLETED", "sol-2": "SKIPPED", "sol-3": "FAILED"}
	run := func(_ context.Context, itemID string) *remediate.Result {
		return resultFor(itemID, states[itemID])
	}

	result, err := e.RunBatch(context.Background(), "job-1", models.CategorySolutionEmpty, []string{"sol-1", "sol-2", "sol-3"}, run)
	require.NoError(t, err)

	sum := result.Summary.Successful + result.Summary.Failed + result.Summary.Skipped + result.Summary.NotImpacted
	assert.Equal(t, result.Summary.Total, sum)
	assert.Zero(t, result.Summary.Pending)
	assert.Equal(t, 1, result.Summary.Successful)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.Equal(t, 1, result.Summary.Failed)
}

func TestRunBatchPropagatesTicketStatusPerOutcome(t *testing.T) {
	fr := &fakeRuntime{
		discovered: []runtimeapi.DiscoveredTicket{{TargetID: "sol-1", TicketID: "tkt-1"}},
	}
	e := New(fr, nil)
	run := func(_ context.Context, itemID string) *remediate.Result {
		return resultFor(itemID, "COMPLETED")
	}

	_, err := e.RunBatch(context.Background(), "job-1", models.CategorySolutionEmpty, []string{"sol-1"}, run)
	require.NoError(t, err)

	require.Len(t, fr.ticketUpdates, 1)
	assert.Equal(t, models.TicketResolved, fr.ticketUpdates[0].status)
	assert.Equal(t, "COMPLETED", fr.ticketUpdates[0].remediationState)
}

func TestRunBatchOEFailedMapsToPendingTicket(t *testing.T) {
	fr := &fakeRuntime{
		discovered: []runtimeapi.DiscoveredTicket{{TargetID: "svc-1", TicketID: "tkt-1"}},
	}
	e := New(fr, nil)
	run := func(_ context.Context, itemID string) *remediate.Result {
		return resultFor(itemID, "FAILED")
	}

	_, err := e.RunBatch(context.Background(), "job-1", models.CategoryPartialDataMissing, []string{"svc-1"}, run)
	require.NoError(t, err)

	// OE variant marks the ticket in_progress first, then the terminal update.
	require.Len(t, fr.ticketUpdates, 2)
	last := fr.ticketUpdates[len(fr.ticketUpdates)-1]
	assert.Equal(t, models.TicketPending, last.status)
}

func TestRunBatchSkipsTicketUpdateWhenUnresolved(t *testing.T) {
	fr := &fakeRuntime{} // no discovered tickets: sol-1 can't be resolved
	e := New(fr, nil)
	run := func(_ context.Context, itemID string) *remediate.Result {
		return resultFor(itemID, "COMPLETED")
	}

	result, err := e.RunBatch(context.Background(), "job-1", models.CategorySolutionEmpty, []string{"sol-1"}, run)
	require.NoError(t, err)
	assert.Empty(t, fr.ticketUpdates)
	assert.Equal(t, 1, result.Summary.Successful)
}

// TestCancelObservedBetweenItemsNotMidItem: cancellation is checked between
// items and never abandons an item mid-flow.
func TestCancelObservedBetweenItemsNotMidItem(t *testing.T) {
	fr := &fakeRuntime{
		discovered: []runtimeapi.DiscoveredTicket{
			{TargetID: "sol-1", TicketID: "tkt-1"},
			{TargetID: "sol-2", TicketID: "tkt-2"},
			{TargetID: "sol-3", TicketID: "tkt-3"},
		},
	}
	e := New(fr, nil)

	var ran []string
	run := func(_ context.Context, itemID string) *remediate.Result {
		ran = append(ran, itemID)
		if itemID == "sol-1" {
			e.Cancel()
		}
		return resultFor(itemID, "COMPLETED")
	}

	result, err := e.RunBatch(context.Background(), "job-1", models.CategorySolutionEmpty, []string{"sol-1", "sol-2", "sol-3"}, run)
	require.NoError(t, err)

	// sol-1 ran to completion (no partial-state abandonment); sol-2 and
	// sol-3 never started.
	assert.Equal(t, []string{"sol-1"}, ran)
	assert.Equal(t, models.TrackingCancelled, result.State)
}

func TestFinalStateFailedWhenAllItemsFail(t *testing.T) {
	fr := &fakeRuntime{discovered: []runtimeapi.DiscoveredTicket{{TargetID: "sol-1", TicketID: "tkt-1"}}}
	e := New(fr, nil)
	run := func(_ context.Context, itemID string) *remediate.Result {
		return resultFor(itemID, "FAILED")
	}

	result, err := e.RunBatch(context.Background(), "job-1", models.CategorySolutionEmpty, []string{"sol-1"}, run)
	require.NoError(t, err)
	assert.Equal(t, models.TrackingFailed, result.State)
}

func TestFinalStateCompletedWhenMixedOutcomes(t *testing.T) {
	fr := &fakeRuntime{discovered: []runtimeapi.DiscoveredTicket{
		{TargetID: "sol-1", TicketID: "tkt-1"},
		{TargetID: "sol-2", TicketID: "tkt-2"},
	}}
	e := New(fr, nil)
	states := map[string]string{"sol-1": "COMPLETED", "sol-2": "FAILED"}
	run := func(_ context.Context, itemID string) *remediate.Result {
		return resultFor(itemID, states[itemID])
	}

	result, err := e.RunBatch(context.Background(), "job-1", models.CategorySolutionEmpty, []string{"sol-1", "sol-2"}, run)
	require.NoError(t, err)
	assert.Equal(t, models.TrackingCompleted, result.State)
}

func TestMarkEmptyFinalisesZeroQuantitySummary(t *testing.T) {
	fr := &fakeRuntime{}
	e := New(fr, nil)
	e.MarkEmpty(context.Background(), "job-1")

	require.NotEmpty(t, fr.trackingUpdates)
	last := fr.trackingUpdates[len(fr.trackingUpdates)-1]
	assert.Equal(t, string(models.TrackingCompleted), last["state"])
	assert.Equal(t, 0, last["actualQuantity"])
}
