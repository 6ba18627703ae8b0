package solution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-bss/batchmender/internal/runtimeapi"
)

// fakeClient is a hand-written stand-in for RuntimeClient; per the project's
// testing convention, no mocking framework is used (see internal/remediate/
// solution/engine.go's RuntimeClient doc comment).
type fakeClient struct {
	validateResult *runtimeapi.SolutionValidateResult
	validateErr    error

	deleteErr error

	migrateResult *runtimeapi.SolutionMigrateResult
	migrateErr    error

	pollResults []*runtimeapi.SolutionPollResult
	pollErr     error
	pollCalls   int

	postUpdateErr error

	postUpdateCalled bool
}

func (f *fakeClient) ValidateSolution(context.Context, string) (*runtimeapi.SolutionValidateResult, error) {
	return f.validateResult, f.validateErr
}

func (f *fakeClient) DeleteSolution(context.Context, string) error { return f.deleteErr }

func (f *fakeClient) MigrateSolution(context.Context, string) (*runtimeapi.SolutionMigrateResult, error) {
	return f.migrateResult, f.migrateErr
}

func (f *fakeClient) PollMigrationStatus(context.Context, string) (*runtimeapi.SolutionPollResult, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	idx := f.pollCalls
	if idx >= len(f.pollResults) {
		idx = len(f.pollResults) - 1
	}
	f.pollCalls++
	return f.pollResults[idx], nil
}

func (f *fakeClient) PostUpdateSolution(context.Context, string, string, runtimeapi.SFDCUpdates) error {
	f.postUpdateCalled = true
	return f.postUpdateErr
}

func noSleepEngine(client RuntimeClient, poll PollConfig) *Engine {
	e := New(client, poll)
	e.Sleep = func(time.Duration) {}
	return e
}

// TestHappyPathSolution: every step succeeds and the item completes.
func TestHappyPathSolution(t *testing.T) {
	fc := &fakeClient{
		validateResult: &runtimeapi.SolutionValidateResult{Success: true},
		migrateResult:  &runtimeapi.SolutionMigrateResult{JobID: "J1"},
		pollResults:    []*runtimeapi.SolutionPollResult{{Status: "COMPLETED"}},
	}
	e := noSleepEngine(fc, PollConfig{InitialDelay: 0, PollInterval: time.Millisecond, MaxInterval: time.Millisecond, BackoffFactor: 2, MaxDuration: time.Second})

	res := e.Run(context.Background(), "sol-1", RunOptions{})

	assert.Equal(t, "COMPLETED", res.FinalState)
	assert.True(t, res.Success)
	assert.Empty(t, res.FailedAt)
	require.Len(t, res.Steps, 5)
	for _, s := range res.Steps {
		assert.True(t, s.Success, "step %s should succeed", s.Action)
	}
	assert.True(t, fc.postUpdateCalled)
}

// TestMACDSkip: an ineligible item skips before delete/migrate/poll/post-update.
func TestMACDSkip(t *testing.T) {
	fc := &fakeClient{
		validateResult: &runtimeapi.SolutionValidateResult{
			Success:     true,
			MACDDetails: []byte(`{"macdBasketExists":true,"basketDetails":[{"basketStage":"Submitted","basketAgeInDays":1}]}`),
		},
	}
	e := noSleepEngine(fc, PollConfig{MaxDuration: time.Second})

	res := e.Run(context.Background(), "sol-1", RunOptions{})

	assert.Equal(t, "SKIPPED", res.FinalState)
	assert.True(t, res.Success)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "VALIDATE", res.Steps[0].Action)
	assert.Contains(t, res.Steps[0].Message, "Submitted")
	assert.False(t, fc.postUpdateCalled)
}

func TestValidateFailureFailsImmediately(t *testing.T) {
	fc := &fakeClient{validateResult: &runtimeapi.SolutionValidateResult{Success: false, Message: "solution not found"}}
	e := noSleepEngine(fc, PollConfig{MaxDuration: time.Second})

	res := e.Run(context.Background(), "sol-1", RunOptions{})

	assert.Equal(t, "FAILED", res.FinalState)
	assert.False(t, res.Success)
	assert.Equal(t, "VALIDATE", res.FailedAt)
}

// TestPollingTimeout: every poll returns IN_PROGRESS and the overall
// MaxDuration elapses.
func TestPollingTimeout(t *testing.T) {
	fc := &fakeClient{
		validateResult: &runtimeapi.SolutionValidateResult{Success: true},
		migrateResult:  &runtimeapi.SolutionMigrateResult{JobID: "J1"},
		pollResults:    []*runtimeapi.SolutionPollResult{{Status: "IN_PROGRESS"}},
	}
	e := noSleepEngine(fc, PollConfig{InitialDelay: 0, PollInterval: 0, MaxInterval: 0, BackoffFactor: 2, MaxDuration: 0})

	// A fake, monotonically-advancing clock lets the poll loop observe
	// elapsed >= MaxDuration (0) on its very first iteration without
	// sleeping in real time.
	tick := 0
	base := time.Now()
	e.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	res := e.Run(context.Background(), "sol-1", RunOptions{})

	assert.Equal(t, "FAILED", res.FinalState)
	assert.False(t, res.Success)
	assert.Equal(t, "POLL", res.FailedAt)
	assert.Contains(t, res.Message(), "timed out")
}

func TestDeleteFailureTransitionsToFailed(t *testing.T) {
	fc := &fakeClient{
		validateResult: &runtimeapi.SolutionValidateResult{Success: true},
		deleteErr:      assertErr("delete boom"),
	}
	e := noSleepEngine(fc, PollConfig{MaxDuration: time.Second})

	res := e.Run(context.Background(), "sol-1", RunOptions{})
	assert.Equal(t, "FAILED", res.FinalState)
	assert.Equal(t, "DELETE", res.FailedAt)
}

func TestSkipValidationBypassesMACDCheck(t *testing.T) {
	fc := &fakeClient{
		migrateResult: &runtimeapi.SolutionMigrateResult{JobID: "J1"},
		pollResults:   []*runtimeapi.SolutionPollResult{{Status: "SUCCESS"}},
	}
	e := noSleepEngine(fc, PollConfig{MaxDuration: time.Second})

	res := e.Run(context.Background(), "sol-1", RunOptions{SkipValidation: true})
	assert.Equal(t, "COMPLETED", res.FinalState)
	assert.True(t, res.Success)
}

// TestPostUpdateFailureIsNonFatal: any POST_UPDATE failure,
// including a 404-like endpoint-missing response, still completes the item.
func TestPostUpdateFailureIsNonFatal(t *testing.T) {
	fc := &fakeClient{
		validateResult: &runtimeapi.SolutionValidateResult{Success: true},
		migrateResult:  &runtimeapi.SolutionMigrateResult{JobID: "J1"},
		pollResults:    []*runtimeapi.SolutionPollResult{{Status: "COMPLETED"}},
		postUpdateErr:  assertErr("endpoint missing"),
	}
	e := noSleepEngine(fc, PollConfig{MaxDuration: time.Second})

	res := e.Run(context.Background(), "sol-1", RunOptions{})
	assert.Equal(t, "COMPLETED", res.FinalState)
	assert.True(t, res.Success)
	lastStep := res.Steps[len(res.Steps)-1]
	assert.Equal(t, "POST_UPDATE", lastStep.Action)
	assert.False(t, lastStep.Success)
}

func TestStepCallbackPanicIsSwallowed(t *testing.T) {
	fc := &fakeClient{
		validateResult: &runtimeapi.SolutionValidateResult{
			Success:     true,
			MACDDetails: []byte(`{"macdBasketExists":true,"basketDetails":[{"basketStage":"Submitted","basketAgeInDays":1}]}`),
		},
	}
	e := noSleepEngine(fc, PollConfig{MaxDuration: time.Second})

	assert.NotPanics(t, func() {
		e.Run(context.Background(), "sol-1", RunOptions{OnStep: func(string, bool, int64) { panic("boom") }})
	})
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
