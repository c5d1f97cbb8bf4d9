package commands

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mm1618bu/laborflow/pkg/attributes"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
)

// Fixtures seed the in-memory store when no database is configured
type Fixtures struct {
	Employees []EmployeeFixture `yaml:"employees"`
	Offers    []OfferFixture    `yaml:"offers"`
}

type EmployeeFixture struct {
	EmployeeID        string     `yaml:"employeeID"`
	SeniorityYears    float64    `yaml:"seniorityYears"`
	PerformanceRating float64    `yaml:"performanceRating"`
	AttendanceRate    float64    `yaml:"attendanceRate"`
	PriorOfferCount   int        `yaml:"priorOfferCount"`
	LastAcceptedAt    *time.Time `yaml:"lastAcceptedAt,omitempty"`
	Skills            []string   `yaml:"skills,omitempty"`
}

type OfferFixture struct {
	ID                 string            `yaml:"id"`
	OrganizationID     string            `yaml:"organizationID"`
	Type               string            `yaml:"type"`
	PositionsAvailable int               `yaml:"positionsAvailable"`
	PositionsFilled    int               `yaml:"positionsFilled"`
	Status             string            `yaml:"status"`
	TargetDate         time.Time         `yaml:"targetDate"`
	StartTime          string            `yaml:"startTime"`
	EndTime            string            `yaml:"endTime"`
	RequiredSkills     []string          `yaml:"requiredSkills,omitempty"`
	PublishedAt        time.Time         `yaml:"publishedAt"`
	Responses          []ResponseFixture `yaml:"responses"`
}

type ResponseFixture struct {
	ID               string    `yaml:"id"`
	EmployeeID       string    `yaml:"employeeID"`
	Status           string    `yaml:"status"`
	WaitlistPosition int       `yaml:"waitlistPosition,omitempty"`
	SubmittedAt      time.Time `yaml:"submittedAt"`
}

// ReadFixtures parses a fixtures file and checks every offer is within capacity
func ReadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}

	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures file: %w", err)
	}

	for _, o := range f.Offers {
		if o.ID == "" {
			return nil, fmt.Errorf("fixtures contain an offer without an id")
		}
		if o.PositionsFilled > o.PositionsAvailable {
			return nil, fmt.Errorf("offer %s has %d of %d positions filled", o.ID, o.PositionsFilled, o.PositionsAvailable)
		}
	}

	return &f, nil
}

// Attributes returns the employee fixtures keyed by employee id
func (f *Fixtures) Attributes() attributes.Static {
	attrs := attributes.Static{}
	for _, e := range f.Employees {
		attrs[e.EmployeeID] = attributes.Employee{
			EmployeeID:        e.EmployeeID,
			SeniorityYears:    e.SeniorityYears,
			PerformanceRating: e.PerformanceRating,
			AttendanceRate:    e.AttendanceRate,
			PriorOfferCount:   e.PriorOfferCount,
			LastAcceptedAt:    e.LastAcceptedAt,
			Skills:            e.Skills,
		}
	}
	return attrs
}

// Model converts an offer fixture; an empty status means open
func (o OfferFixture) Model() model.Offer {
	status := model.OfferStatus(o.Status)
	if status == "" {
		status = model.OfferOpen
	}
	return model.Offer{
		ID:                 o.ID,
		OrganizationID:     o.OrganizationID,
		Type:               model.OfferType(o.Type),
		PositionsAvailable: o.PositionsAvailable,
		PositionsFilled:    o.PositionsFilled,
		Status:             status,
		TargetDate:         o.TargetDate,
		StartTime:          o.StartTime,
		EndTime:            o.EndTime,
		RequiredSkills:     o.RequiredSkills,
		PublishedAt:        o.PublishedAt,
	}
}

// Model converts a response fixture; an empty status means pending
func (r ResponseFixture) Model(offerID string) model.Response {
	status := model.ResponseStatus(r.Status)
	if status == "" {
		status = model.StatusPending
	}
	return model.Response{
		ID:               r.ID,
		OfferID:          offerID,
		EmployeeID:       r.EmployeeID,
		Status:           status,
		WaitlistPosition: r.WaitlistPosition,
		SubmittedAt:      r.SubmittedAt,
	}
}

// LoadFixtures reads a fixtures file into a new in-memory store and attribute provider
func LoadFixtures(path string) (*db.Memory, attributes.Static, error) {
	f, err := ReadFixtures(path)
	if err != nil {
		return nil, nil, err
	}

	store := db.NewMemory()
	for _, o := range f.Offers {
		store.PutOffer(o.Model())
		for _, r := range o.Responses {
			store.PutResponse(r.Model(o.ID))
		}
	}

	return store, f.Attributes(), nil
}
