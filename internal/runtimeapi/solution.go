package runtimeapi

import (
	"context"
	"encoding/json"
	"fmt"
)

// ValidateSolution calls the Solution "validate" primitive (step 1, VALIDATE).
func (c *Client) ValidateSolution(ctx context.Context, solutionID string) (*SolutionValidateResult, error) {
	body, err := c.do(ctx, timeoutStandard, "GET", "/solutionInfo/"+solutionID, nil)
	if err != nil {
		return nil, err
	}
	var out SolutionValidateResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding validate response: %w", err)
	}
	out.Success = normalizeSuccess(out.RawSuccess)
	return &out, nil
}

// DeleteSolution calls the Solution "delete" primitive (step 2, DELETE).
// Idempotent from the client's point of view.
func (c *Client) DeleteSolution(ctx context.Context, solutionID string) error {
	_, err := c.do(ctx, timeoutStandard, "DELETE", "/solutionMigration/"+solutionID, nil)
	return err
}

// MigrateSolution calls the Solution "migrate" primitive (step 3, MIGRATE),
// returning the opaque job id the runtime assigns to the asynchronous job.
func (c *Client) MigrateSolution(ctx context.Context, solutionID string) (*SolutionMigrateResult, error) {
	body, err := c.do(ctx, timeoutTrigger, "POST", "/solutionMigration", map[string]any{"solutionId": solutionID})
	if err != nil {
		return nil, err
	}
	var out SolutionMigrateResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding migrate response: %w", err)
	}
	if !normalizeSuccess(out.RawSuccess) {
		return nil, fmt.Errorf("migrate reported failure")
	}
	return &out, nil
}

// PollMigrationStatus calls the Solution "poll status" primitive, used by
// step 4 (POLL)'s exponential-backoff loop.
func (c *Client) PollMigrationStatus(ctx context.Context, solutionID string) (*SolutionPollResult, error) {
	body, err := c.do(ctx, timeoutPoll, "GET", "/migrationStatus/"+solutionID, nil)
	if err != nil {
		return nil, err
	}
	var out SolutionPollResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}
	return &out, nil
}

// PostUpdateSolution calls the Solution "post-update" primitive (step 5,
// POST_UPDATE), forwarding the migration job id and the SFDC field writes.
func (c *Client) PostUpdateSolution(ctx context.Context, solutionID, jobID string, updates SFDCUpdates) error {
	payload := map[string]any{
		"solutionId":  solutionID,
		"jobId":       jobID,
		"sfdcUpdates": updates,
	}
	_, err := c.do(ctx, timeoutStandard, "POST", "/solutionPostUpdate", payload)
	return err
}
