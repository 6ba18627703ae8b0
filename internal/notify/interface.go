package notify

import "context"

// Event represents a notification event raised by the scheduler loop or
// batch executor.
type Event struct {
	Type       string         // "tick_failed" | "batch_failed"
	Title      string
	Body       string
	URL        string         // optional deep link (e.g. gateway status page)
	Severity   string         // "critical" | "high" | "medium" | "low" | ""
	ScheduleID string         // the schedule whose tick/batch raised this event, if any
	Metadata   map[string]any // extra structured data, e.g. tracking_entity_id
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
