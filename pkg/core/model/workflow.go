package model

import (
	"math"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
)

// weightTolerance absorbs float noise from YAML/JSON decoding of decimal weights
const weightTolerance = 1e-6

// PriorityWeights are the factor weights of the composite score; they must sum to 1.0
type PriorityWeights struct {
	Seniority   float64 `yaml:"seniority" json:"seniority"`
	Performance float64 `yaml:"performance" json:"performance"`
	Attendance  float64 `yaml:"attendance" json:"attendance"`
	History     float64 `yaml:"history" json:"history"`
	Recency     float64 `yaml:"recency" json:"recency"`
	Speed       float64 `yaml:"speed" json:"speed"`
	Skills      float64 `yaml:"skills" json:"skills"`
}

// Sum returns the total of all weights
func (w PriorityWeights) Sum() float64 {
	return w.Seniority + w.Performance + w.Attendance + w.History + w.Recency + w.Speed + w.Skills
}

// Validate rejects negative weights and weights not summing to 1.0.
// Weights are never renormalized.
func (w PriorityWeights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"seniority", w.Seniority},
		{"performance", w.Performance},
		{"attendance", w.Attendance},
		{"history", w.History},
		{"recency", w.Recency},
		{"speed", w.Speed},
		{"skills", w.Skills},
	}
	for _, n := range named {
		if n.value < 0 || math.IsNaN(n.value) {
			return apperr.Config("weight %q must be non-negative, got %v", n.name, n.value)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return apperr.Config("priority weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// DefaultWeights favour performance and attendance, then tenure and rotation fairness
func DefaultWeights() PriorityWeights {
	return PriorityWeights{
		Seniority:   0.20,
		Performance: 0.25,
		Attendance:  0.20,
		History:     0.05,
		Recency:     0.10,
		Speed:       0.10,
		Skills:      0.10,
	}
}

// ScoringParams control factor normalization
type ScoringParams struct {
	// MaxSeniorityYears is the tenure at which the seniority factor saturates
	MaxSeniorityYears float64 `yaml:"maxSeniorityYears" json:"max_seniority_years"`

	// HistoryCeiling is the prior-offer count at which the history factor saturates
	HistoryCeiling int `yaml:"historyCeiling" json:"history_ceiling"`

	// RecencyCapDays is the gap since the last accepted offer that earns the full recency factor
	RecencyCapDays float64 `yaml:"recencyCapDays" json:"recency_cap_days"`

	// SpeedCutoffMinutes is the response latency beyond which the speed factor is 0
	SpeedCutoffMinutes float64 `yaml:"speedCutoffMinutes" json:"speed_cutoff_minutes"`
}

func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		MaxSeniorityYears:  10,
		HistoryCeiling:     10,
		RecencyCapDays:     90,
		SpeedCutoffMinutes: 1440,
	}
}

// WorkflowConfig is the immutable per-run configuration of the allocation workflow
type WorkflowConfig struct {
	Enabled              bool            `json:"enabled"`
	Weights              PriorityWeights `json:"weights"`
	Scoring              ScoringParams   `json:"scoring"`
	AutoApproveThreshold float64         `json:"auto_approve_threshold"`
	AutoApproveEnabled   bool            `json:"auto_approve_enabled"`
	AutoWaitlistEnabled  bool            `json:"auto_waitlist_enabled"`
	MaxWaitlistSize      int             `json:"max_waitlist_size"`
	AutoCloseWhenFilled  bool            `json:"auto_close_when_filled"`
}

// DefaultWorkflowConfig returns the organization-independent defaults
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Enabled:              true,
		Weights:              DefaultWeights(),
		Scoring:              DefaultScoringParams(),
		AutoApproveThreshold: 60,
		AutoApproveEnabled:   true,
		AutoWaitlistEnabled:  true,
		MaxWaitlistSize:      10,
		AutoCloseWhenFilled:  true,
	}
}

// Validate checks the config before any run uses it
func (c WorkflowConfig) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.AutoApproveThreshold < 0 || c.AutoApproveThreshold > 100 || math.IsNaN(c.AutoApproveThreshold) {
		return apperr.Config("autoApproveThreshold must be within [0,100], got %v", c.AutoApproveThreshold)
	}
	if c.MaxWaitlistSize < 0 {
		return apperr.Config("maxWaitlistSize must be non-negative, got %d", c.MaxWaitlistSize)
	}
	if c.Scoring.MaxSeniorityYears <= 0 {
		return apperr.Config("scoring.maxSeniorityYears must be positive")
	}
	if c.Scoring.HistoryCeiling <= 0 {
		return apperr.Config("scoring.historyCeiling must be positive")
	}
	if c.Scoring.RecencyCapDays <= 0 {
		return apperr.Config("scoring.recencyCapDays must be positive")
	}
	if c.Scoring.SpeedCutoffMinutes <= 0 {
		return apperr.Config("scoring.speedCutoffMinutes must be positive")
	}
	return nil
}
