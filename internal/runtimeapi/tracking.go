package runtimeapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relay-bss/batchmender/models"
)

// TrackingDraft is the caller-supplied shape for a new tracking entity. The
// runtime assigns the id; CreateTrackingEntity locates it afterwards.
type TrackingDraft struct {
	Name              string
	Category          models.ScheduleCategory
	RequestedQuantity int
	ParentScheduleID  string
	Configuration     map[string]any
	IsRecurrent       bool
	ExecutionNumber   int
}

// CreateTrackingEntity implements the "create then locate" idiom: the
// runtime's create endpoint does not return the assigned id, so after
// issuing the create call this lists tracking entities and returns the one
// whose (name, parent_schedule_id, state=pending) fingerprint matches the
// draft. Best-effort: a concurrent producer creating a like-named entity at
// the same instant can cause a wrong match; callers must not depend on
// this for correctness beyond normal operational use.
func (c *Client) CreateTrackingEntity(ctx context.Context, draft TrackingDraft) (string, error) {
	cfg, err := json.Marshal(draft.Configuration)
	if err != nil {
		cfg = []byte("{}")
	}
	payload := map[string]any{
		"name":                draft.Name,
		"description":         fmt.Sprintf("Auto-created by schedule %s", draft.ParentScheduleID),
		"category":            draft.Category,
		"requestedQuantity":   draft.RequestedQuantity,
		"x_configuration":     string(cfg),
		"x_isRecurrent":       draft.IsRecurrent,
		"x_parentScheduleId":  draft.ParentScheduleID,
		"x_executionNumber":   draft.ExecutionNumber,
	}
	if _, err := c.do(ctx, timeoutStandard, "POST", "/trackingEntities", payload); err != nil {
		return "", err
	}

	entities, err := c.ListTrackingEntities(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("locating created tracking entity: %w", err)
	}
	for _, e := range entities {
		if e.Name == draft.Name && e.ParentScheduleID == draft.ParentScheduleID && e.State == "pending" {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("could not locate created tracking entity %q for schedule %s", draft.Name, draft.ParentScheduleID)
}

// ListTrackingEntities returns tracking entities, optionally filtered.
func (c *Client) ListTrackingEntities(ctx context.Context, filters map[string]string) ([]rawTrackingEntity, error) {
	path := "/trackingEntities"
	for i, k := range sortedKeys(filters) {
		sep := "&"
		if i == 0 {
			sep = "?"
		}
		path += sep + k + "=" + filters[k]
	}
	body, err := c.do(ctx, timeoutStandard, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	var items []rawTrackingEntity
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding tracking entities: %w", err)
	}
	return items, nil
}

// UpdateTrackingEntity applies a partial, merge-style patch.
func (c *Client) UpdateTrackingEntity(ctx context.Context, id string, patch map[string]any) error {
	_, err := c.do(ctx, timeoutStandard, "PATCH", "/trackingEntities/"+id, patch)
	return err
}

// DeleteTrackingEntity removes a tracking entity.
func (c *Client) DeleteTrackingEntity(ctx context.Context, id string) error {
	_, err := c.do(ctx, timeoutStandard, "DELETE", "/trackingEntities/"+id, nil)
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic query order keeps request logs diffable; not otherwise
	// load-bearing.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
