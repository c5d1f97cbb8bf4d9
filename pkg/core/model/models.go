package model

import "time"

type OfferType string

const (
	OfferTypeVET OfferType = "vet" // voluntary extra time
	OfferTypeVTO OfferType = "vto" // voluntary time off
)

type OfferStatus string

const (
	OfferDraft     OfferStatus = "draft"
	OfferOpen      OfferStatus = "open"
	OfferClosed    OfferStatus = "closed"
	OfferCancelled OfferStatus = "cancelled"
)

// Offer is a published, capacity-bounded labor action employees respond to
type Offer struct {
	ID                 string
	OrganizationID     string
	Type               OfferType
	PositionsAvailable int
	PositionsFilled    int
	Status             OfferStatus
	TargetDate         time.Time
	StartTime          string // HH:MM, local to the site
	EndTime            string
	RequiredSkills     []string
	PublishedAt        time.Time
}

// Capacity returns the number of responses that can still be admitted
func (o *Offer) Capacity() int {
	return max(o.PositionsAvailable-o.PositionsFilled, 0)
}

// IsFilled returns true once every position has been taken
func (o *Offer) IsFilled() bool {
	return o.PositionsAvailable > 0 && o.PositionsFilled >= o.PositionsAvailable
}

type ResponseStatus string

const (
	StatusPending    ResponseStatus = "pending"
	StatusAccepted   ResponseStatus = "accepted"
	StatusWaitlisted ResponseStatus = "waitlisted"
	StatusRejected   ResponseStatus = "rejected"
	StatusDeclined   ResponseStatus = "declined"
	StatusWithdrawn  ResponseStatus = "withdrawn"
)

// IsTerminal reports whether the scored path will never touch a response again
func (s ResponseStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusDeclined, StatusWithdrawn:
		return true
	}
	return false
}

// Response is one employee's answer to an offer
type Response struct {
	ID               string
	OfferID          string
	EmployeeID       string
	Status           ResponseStatus
	PriorityScore    *float64         // nil until scored
	Factors          *PriorityFactors // snapshot captured at first scoring
	WaitlistPosition int              // 1-based; 0 when not waitlisted
	SubmittedAt      time.Time
	DecisionReason   string
	DecidedBy        string
	DecidedAt        *time.Time
}

// PriorityFactors is the per-response snapshot of scoring inputs
type PriorityFactors struct {
	SeniorityYears         float64 `json:"seniority_years"`
	PerformanceRating      float64 `json:"performance_rating"`
	AttendanceRate         float64 `json:"attendance_rate"`
	PriorOfferCount        int     `json:"prior_offer_count"`
	DaysSinceLastAccepted  float64 `json:"days_since_last_accepted"` // negative when never accepted
	ResponseLatencyMinutes float64 `json:"response_latency_minutes"`
	SkillMatchPercent      float64 `json:"skill_match_percent"`
}

// WaitlistEntry is a waitlisted response in queue order
type WaitlistEntry struct {
	ResponseID string  `json:"response_id"`
	EmployeeID string  `json:"employee_id"`
	Position   int     `json:"position"`
	Score      float64 `json:"priority_score"`
}
