package models

// TicketStatus is the runtime-visible lifecycle status of a problem ticket.
// Distinct from RemediationState, which is carried as a characteristic.
type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
	TicketRejected   TicketStatus = "rejected"
)

// ProblemTicket is the durable per-item record ("service problem") naming a
// target to remediate and its current remediation state. TargetID is a
// solution id (Solution variant) or service id (OE variant).
type ProblemTicket struct {
	ID       string
	TargetID string
	Category ScheduleCategory
	Status   TicketStatus

	// RemediationState mirrors the characteristic of the same name; it is
	// the string form of the owning automaton's current/terminal state.
	RemediationState string
	Reason           string
}
