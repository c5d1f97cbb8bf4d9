// Package attributes supplies the employee data that priority factors are derived from.
package attributes

import (
	"context"
	"time"

	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/core/scoring"
)

// Employee holds the scoring-relevant attributes of one employee
type Employee struct {
	EmployeeID        string     `json:"employee_id"`
	SeniorityYears    float64    `json:"seniority_years"`
	PerformanceRating float64    `json:"performance_rating"`
	AttendanceRate    float64    `json:"attendance_rate"`
	PriorOfferCount   int        `json:"prior_offer_count"`
	LastAcceptedAt    *time.Time `json:"last_accepted_at,omitempty"`
	Skills            []string   `json:"skills"`
}

// Provider fetches attributes for a batch of employees.
// Employees the provider knows nothing about are absent from the returned map.
type Provider interface {
	GetAttributes(ctx context.Context, employeeIDs []string) (map[string]Employee, error)
}

// Snapshot derives the priority factors of a response.
// Time-based factors are measured from the offer's publish time so that a snapshot
// taken on any later run is identical.
func Snapshot(emp Employee, offer *model.Offer, resp model.Response) model.PriorityFactors {
	daysSince := -1.0
	if emp.LastAcceptedAt != nil {
		daysSince = max(offer.PublishedAt.Sub(*emp.LastAcceptedAt).Hours()/24, 0)
	}

	latency := 0.0
	if !offer.PublishedAt.IsZero() {
		latency = max(resp.SubmittedAt.Sub(offer.PublishedAt).Minutes(), 0)
	}

	return model.PriorityFactors{
		SeniorityYears:         emp.SeniorityYears,
		PerformanceRating:      emp.PerformanceRating,
		AttendanceRate:         emp.AttendanceRate,
		PriorOfferCount:        emp.PriorOfferCount,
		DaysSinceLastAccepted:  daysSince,
		ResponseLatencyMinutes: latency,
		SkillMatchPercent:      scoring.SkillMatch(offer.RequiredSkills, emp.Skills),
	}
}

// Static is a fixed, in-memory provider
type Static map[string]Employee

// GetAttributes returns the known employees among employeeIDs
func (s Static) GetAttributes(ctx context.Context, employeeIDs []string) (map[string]Employee, error) {
	out := make(map[string]Employee, len(employeeIDs))
	for _, id := range employeeIDs {
		if emp, ok := s[id]; ok {
			out[id] = emp
		}
	}
	return out, nil
}
