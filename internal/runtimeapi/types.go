package runtimeapi

import "encoding/json"

// rawSchedule is the upstream's wire shape for a schedule record. Field
// names follow the runtime's own casing; Parse converts it into
// models.Schedule.
type rawSchedule struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	IsActive             bool            `json:"isActive"`
	Category             string          `json:"category"`
	RecurrencePattern    string          `json:"recurrencePattern"`
	RecurrenceExpr       string          `json:"recurrenceExpr"`
	WindowStartTime      string          `json:"windowStartTime"`
	WindowEndTime        string          `json:"windowEndTime"`
	Timezone             string          `json:"timezone"`
	MaxBatchSize         int             `json:"maxBatchSize"`
	SelectionCriteria    json.RawMessage `json:"selectionCriteria"`
	TotalExecutions      int             `json:"totalExecutions"`
	SuccessfulExecutions int             `json:"successfulExecutions"`
	FailedExecutions     int             `json:"failedExecutions"`
	LastExecutionID      string          `json:"lastExecutionId"`
	LastExecutionDate    string          `json:"lastExecutionDate"`
	NextExecutionDate    string          `json:"nextExecutionDate"`
}

// rawTrackingEntity is the upstream's wire shape for a tracking entity
// ("batch job").
type rawTrackingEntity struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	State             string `json:"state"`
	ParentScheduleID  string `json:"x_parentScheduleId"`
	RequestedQuantity int    `json:"requestedQuantity"`
	ActualQuantity    int    `json:"actualQuantity"`
	CurrentItemID     string `json:"x_currentItemId"`
	CurrentItemState  string `json:"x_currentItemState"`
	Summary           string `json:"x_summary"`
}

// rawTicket is the upstream's wire shape for a problem ticket.
type rawTicket struct {
	ID             string          `json:"id"`
	TargetID       string          `json:"targetId"`
	Category       string          `json:"category"`
	Status         string          `json:"status"`
	Characteristic json.RawMessage `json:"characteristic"`
}

// DiscoveredTicket is one entry from discover_tickets / discover_oe_services.
type DiscoveredTicket struct {
	TicketID         string `json:"ticketId"`
	TargetID         string `json:"targetId"`
	ServiceProblemID string `json:"serviceProblemId,omitempty"`
}

// SolutionValidateResult is the response of the Solution "validate" primitive.
type SolutionValidateResult struct {
	Success     bool            `json:"-"`
	RawSuccess  any             `json:"success"`
	Message     string          `json:"message"`
	MACDDetails json.RawMessage `json:"macd_details"`
}

// MACDDetails is the decoded shape of SolutionValidateResult.MACDDetails.
type MACDDetails struct {
	MACDBasketExists bool         `json:"macdBasketExists"`
	BasketDetails    []MACDBasket `json:"basketDetails"`
}

// MACDBasket describes one in-flight MACD basket against a solution.
type MACDBasket struct {
	Stage   string `json:"basketStage"`
	AgeDays int    `json:"basketAgeInDays"`
}

// SolutionMigrateResult is the response of the "migrate" primitive.
type SolutionMigrateResult struct {
	RawSuccess any    `json:"success"`
	JobID      string `json:"job_id"`
}

// SolutionPollResult is the response of the "poll migration status" primitive.
type SolutionPollResult struct {
	Status string `json:"status"`
}

// SFDCUpdates are the field writes POST_UPDATE applies to the solution record.
type SFDCUpdates struct {
	IsMigratedToHeroku             bool   `json:"isMigratedToHeroku"`
	IsConfigurationUpdatedToHeroku bool   `json:"isConfigurationUpdatedToHeroku"`
	ExternalIdentifier             string `json:"externalIdentifier"`
}

// DefaultSFDCUpdates is applied in POST_UPDATE when the caller supplies no
// overrides.
var DefaultSFDCUpdates = SFDCUpdates{
	IsMigratedToHeroku:             true,
	IsConfigurationUpdatedToHeroku: true,
	ExternalIdentifier:             "",
}

// OEServiceInfo is the response of the OE "get info" primitive.
type OEServiceInfo struct {
	RawSuccess               any    `json:"success"`
	AttachmentContent        string `json:"attachment_content"`
	ProductDefinitionName    string `json:"product_definition_name"`
	ReplacementServiceExists bool   `json:"replacement_service_exists"`
}

// RawSuccessBool normalises RawSuccess per the `success` polymorphism rule.
// A response with the field entirely absent (nil) is treated as success,
// since not every runtime echoes it back on this endpoint.
func (o *OEServiceInfo) RawSuccessBool() bool {
	if o.RawSuccess == nil {
		return true
	}
	return NormalizeSuccess(o.RawSuccess)
}

// Enrichment is the data resolved through the Service→BillingAccount→
// Individual→ContactMedium chain.
type Enrichment struct {
	ReservedNumber     string
	PICEmail           string
	BillingAccountID   string
	BillingAccountName string
}
