package models

// SolutionState is one step of the five-step Solution remediation automaton.
type SolutionState string

const (
	SolutionDetected            SolutionState = "DETECTED"
	SolutionValidating          SolutionState = "VALIDATING"
	SolutionValidated           SolutionState = "VALIDATED"
	SolutionDeleting            SolutionState = "DELETING"
	SolutionDeleteFailed        SolutionState = "DELETE_FAILED"
	SolutionMigrating           SolutionState = "MIGRATING"
	SolutionMigrationFailed     SolutionState = "MIGRATION_FAILED"
	SolutionWaitingConfirmation SolutionState = "WAITING_CONFIRMATION"
	SolutionConfirmed           SolutionState = "CONFIRMED"
	SolutionPostUpdate          SolutionState = "POST_UPDATE"
	SolutionPostUpdateFailed    SolutionState = "POST_UPDATE_FAILED"
	SolutionCompleted           SolutionState = "COMPLETED"
	SolutionSkipped             SolutionState = "SKIPPED"
	SolutionFailed              SolutionState = "FAILED"
)

// SolutionTransitions is the legal-successors table for the Solution automaton.
// Terminal states are absent (their successor list is empty).
var SolutionTransitions = map[SolutionState][]SolutionState{
	SolutionDetected:            {SolutionValidating},
	SolutionValidating:          {SolutionValidated, SolutionSkipped, SolutionFailed},
	SolutionValidated:           {SolutionDeleting},
	SolutionDeleting:            {SolutionMigrating, SolutionDeleteFailed},
	SolutionDeleteFailed:        {SolutionFailed},
	SolutionMigrating:           {SolutionWaitingConfirmation, SolutionMigrationFailed},
	SolutionWaitingConfirmation: {SolutionConfirmed, SolutionMigrationFailed},
	SolutionMigrationFailed:     {SolutionFailed},
	SolutionConfirmed:           {SolutionPostUpdate},
	SolutionPostUpdate:          {SolutionCompleted, SolutionPostUpdateFailed},
	SolutionPostUpdateFailed:    {SolutionFailed},
}

// SolutionTerminals is the set of states with no legal successors.
var SolutionTerminals = map[SolutionState]bool{
	SolutionCompleted: true,
	SolutionSkipped:   true,
	SolutionFailed:    true,
}

func (s SolutionState) String() string { return string(s) }

// IsTerminal reports whether s has no legal successors.
func (s SolutionState) IsTerminal() bool { return SolutionTerminals[s] }

// OEState is one step of the four-step Order Enrichment remediation automaton.
type OEState string

const (
	OEDetected            OEState = "DETECTED"
	OEValidating          OEState = "VALIDATING"
	OEValidated           OEState = "VALIDATED"
	OENotImpacted         OEState = "NOT_IMPACTED"
	OEAnalyzing           OEState = "ANALYZING"
	OEAttachmentUpdated   OEState = "ATTACHMENT_UPDATED"
	OERemediationStarted  OEState = "REMEDIATION_STARTED"
	OERemediated          OEState = "REMEDIATED"
	OESkipped             OEState = "SKIPPED"
	OEFailed              OEState = "FAILED"
)

// OETransitions is the legal-successors table for the OE automaton.
// ANALYZING has three exits besides failure: no missing fields or a
// zero-effective patch both land on NOT_IMPACTED; a dry-run stops at
// VALIDATED without persisting.
var OETransitions = map[OEState][]OEState{
	OEDetected:           {OEValidating},
	OEValidating:         {OEValidated, OESkipped, OEFailed},
	OEValidated:          {OENotImpacted, OEAnalyzing, OEFailed},
	OEAnalyzing:          {OENotImpacted, OEValidated, OEAttachmentUpdated, OEFailed},
	OEAttachmentUpdated:  {OERemediationStarted, OEFailed},
	OERemediationStarted: {OERemediated, OEFailed},
}

// OETerminals is the set of states with no legal successors.
var OETerminals = map[OEState]bool{
	OENotImpacted: true,
	OERemediated:  true,
	OESkipped:     true,
	OEFailed:      true,
}

func (s OEState) String() string { return string(s) }

// IsTerminal reports whether s has no legal successors.
func (s OEState) IsTerminal() bool { return OETerminals[s] }
