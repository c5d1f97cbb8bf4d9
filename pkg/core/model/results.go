package model

import "time"

// ActionTaken is the per-response outcome of a processing run
type ActionTaken string

const (
	ActionApproved   ActionTaken = "approved"
	ActionWaitlisted ActionTaken = "waitlisted"
	ActionRejected   ActionTaken = "rejected"
	ActionNoAction   ActionTaken = "no_action"
)

// Decision reasons written to Response.DecisionReason
const (
	ReasonAutoApproved        = "auto-approved: priority score met threshold"
	ReasonApprovedNoThreshold = "auto-approved: capacity available"
	ReasonManualReview        = "manual review required"
	ReasonWaitlisted          = "waitlisted: capacity exhausted"
	ReasonCapacityExhausted   = "capacity exhausted"
	ReasonWaitlistFull        = "waitlist full"
	ReasonPromoted            = "promoted from waitlist"
)

// ProcessingDetail is one response's outcome within a run
type ProcessingDetail struct {
	ResponseID     string         `json:"response_id"`
	EmployeeID     string         `json:"employee_id"`
	OriginalStatus ResponseStatus `json:"original_status"`
	NewStatus      ResponseStatus `json:"new_status"`
	PriorityScore  float64        `json:"priority_score"`
	ActionTaken    ActionTaken    `json:"action_taken"`
	Reason         string         `json:"reason"`
}

// ProcessingResult is the output artifact of one AllocationEngine run
type ProcessingResult struct {
	LaborActionID      string             `json:"labor_action_id"`
	TotalResponses     int                `json:"total_responses"`
	ProcessedCount     int                `json:"processed_count"`
	ApprovedCount      int                `json:"approved_count"`
	WaitlistedCount    int                `json:"waitlisted_count"`
	RejectedCount      int                `json:"rejected_count"`
	NoActionCount      int                `json:"no_action_count"`
	PositionsFilled    int                `json:"positions_filled"`
	PositionsAvailable int                `json:"positions_available"`
	OfferClosed        bool               `json:"offer_closed"`
	ProcessingDetails  []ProcessingDetail `json:"processing_details"`
	NotificationsSent  int                `json:"notifications_sent"`
	ExecutionTimeMs    int64              `json:"execution_time_ms"`
}

// Record appends a detail and bumps the matching counter
func (r *ProcessingResult) Record(d ProcessingDetail) {
	r.ProcessingDetails = append(r.ProcessingDetails, d)
	r.ProcessedCount++
	switch d.ActionTaken {
	case ActionApproved:
		r.ApprovedCount++
	case ActionWaitlisted:
		r.WaitlistedCount++
	case ActionRejected:
		r.RejectedCount++
	default:
		r.NoActionCount++
	}
}

// BatchItemResult is the outcome of one item in a batch override
type BatchItemResult struct {
	ResponseID string `json:"response_id"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// BatchResult reports a batch override with continue-on-error semantics
type BatchResult struct {
	TotalRequested  int               `json:"total_requested"`
	SuccessfulCount int               `json:"successful_count"`
	FailedCount     int               `json:"failed_count"`
	Results         []BatchItemResult `json:"results"`
}

// PromotedEmployee identifies a promoted response and where it sat in the queue
type PromotedEmployee struct {
	ResponseID   string `json:"response_id"`
	EmployeeID   string `json:"employee_id"`
	FromPosition int    `json:"from_position"`
}

// PromotionResult reports a waitlist promotion
type PromotionResult struct {
	PromotedCount     int                `json:"promoted_count"`
	PromotedEmployees []PromotedEmployee `json:"promoted_employees"`
	RemainingWaitlist int                `json:"remaining_waitlist"`
}

// WorkflowStatus is the workflow status query response
type WorkflowStatus struct {
	OfferID             string      `json:"offer_id"`
	OfferStatus         OfferStatus `json:"offer_status"`
	PositionsAvailable  int         `json:"positions_available"`
	PositionsFilled     int         `json:"positions_filled"`
	PendingResponses    int         `json:"pending_responses"`
	ApprovedResponses   int         `json:"approved_responses"`
	WaitlistedResponses int         `json:"waitlisted_responses"`
	WorkflowEnabled     bool        `json:"workflow_enabled"`
	LastProcessedAt     *time.Time  `json:"last_processed_at"`
}

// WithdrawalResult reports a withdrawal and any promotion it triggered
type WithdrawalResult struct {
	ResponseID      string            `json:"response_id"`
	PreviousStatus  ResponseStatus    `json:"previous_status"`
	PositionsFilled int               `json:"positions_filled"`
	Promoted        *PromotedEmployee `json:"promoted,omitempty"`
}

// TrimResult reports a waitlist overflow trim
type TrimResult struct {
	TrimmedCount      int      `json:"trimmed_count"`
	TrimmedResponses  []string `json:"trimmed_responses"`
	RemainingWaitlist int      `json:"remaining_waitlist"`
}
