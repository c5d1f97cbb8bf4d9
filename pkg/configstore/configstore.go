// Package configstore resolves the workflow configuration that applies to one offer.
//
// Layers, lowest precedence first: defaults, organization overrides, offer overrides
// whose rrule matches the offer's target date, then overrides supplied with the request.
// The resolved config is a value; callers never share mutable configuration.
package configstore

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// Patch is a partial workflow config. Nil fields inherit from the layer below.
type Patch struct {
	Enabled              *bool                  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Weights              *model.PriorityWeights `yaml:"weights,omitempty" json:"weights,omitempty"`
	Scoring              *model.ScoringParams   `yaml:"scoring,omitempty" json:"scoring,omitempty"`
	AutoApproveThreshold *float64               `yaml:"autoApproveThreshold,omitempty" json:"auto_approve_threshold,omitempty"`
	AutoApproveEnabled   *bool                  `yaml:"autoApproveEnabled,omitempty" json:"auto_approve_enabled,omitempty"`
	AutoWaitlistEnabled  *bool                  `yaml:"autoWaitlistEnabled,omitempty" json:"auto_waitlist_enabled,omitempty"`
	MaxWaitlistSize      *int                   `yaml:"maxWaitlistSize,omitempty" json:"max_waitlist_size,omitempty"`
	AutoCloseWhenFilled  *bool                  `yaml:"autoCloseWhenFilled,omitempty" json:"auto_close_when_filled,omitempty"`
}

// Apply returns cfg with every set field of p replacing its counterpart
func (p Patch) Apply(cfg model.WorkflowConfig) model.WorkflowConfig {
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.Weights != nil {
		cfg.Weights = *p.Weights
	}
	if p.Scoring != nil {
		cfg.Scoring = *p.Scoring
	}
	if p.AutoApproveThreshold != nil {
		cfg.AutoApproveThreshold = *p.AutoApproveThreshold
	}
	if p.AutoApproveEnabled != nil {
		cfg.AutoApproveEnabled = *p.AutoApproveEnabled
	}
	if p.AutoWaitlistEnabled != nil {
		cfg.AutoWaitlistEnabled = *p.AutoWaitlistEnabled
	}
	if p.MaxWaitlistSize != nil {
		cfg.MaxWaitlistSize = *p.MaxWaitlistSize
	}
	if p.AutoCloseWhenFilled != nil {
		cfg.AutoCloseWhenFilled = *p.AutoCloseWhenFilled
	}
	return cfg
}

// OfferOverride applies a patch to offers whose target date matches RRule.
// An empty OrganizationID matches every organization.
type OfferOverride struct {
	RRule          string `yaml:"rrule" validate:"required"`
	OrganizationID string `yaml:"organizationID,omitempty"`
	Patch          `yaml:",inline"`
}

type compiledOverride struct {
	OfferOverride
	option rrule.ROption
}

// Store holds the configured layers. It is read-only after New and safe for concurrent use.
type Store struct {
	defaults      model.WorkflowConfig
	organizations map[string]Patch
	overrides     []compiledOverride
	logger        *zap.Logger
}

// New parses every override rule up front so Resolve never fails on syntax
func New(defaults model.WorkflowConfig, organizations map[string]Patch, overrides []OfferOverride, logger *zap.Logger) (*Store, error) {
	compiled := make([]compiledOverride, 0, len(overrides))
	for i, o := range overrides {
		opt, err := rrule.StrToROption(o.RRule)
		if err != nil {
			return nil, fmt.Errorf("invalid rrule in offerOverrides[%d]: %w", i, err)
		}
		compiled = append(compiled, compiledOverride{OfferOverride: o, option: *opt})
	}
	if organizations == nil {
		organizations = map[string]Patch{}
	}
	return &Store{
		defaults:      defaults,
		organizations: organizations,
		overrides:     compiled,
		logger:        logger,
	}, nil
}

// Resolve merges the layers for offer and validates the result.
// request may be nil.
func (s *Store) Resolve(offer *model.Offer, request *Patch) (model.WorkflowConfig, error) {
	cfg := s.defaults

	if org, ok := s.organizations[offer.OrganizationID]; ok {
		cfg = org.Apply(cfg)
	}

	for i, o := range s.overrides {
		if o.OrganizationID != "" && o.OrganizationID != offer.OrganizationID {
			continue
		}
		matched, err := o.appliesTo(offer.TargetDate)
		if err != nil {
			return model.WorkflowConfig{}, fmt.Errorf("failed to evaluate offer override %d: %w", i, err)
		}
		if matched {
			s.logger.Debug("Applying offer override",
				zap.String("offer_id", offer.ID),
				zap.Int("index", i),
				zap.String("rrule", o.RRule))
			cfg = o.Apply(cfg)
		}
	}

	if request != nil {
		cfg = request.Apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return model.WorkflowConfig{}, err
	}
	return cfg, nil
}

// Defaults returns the base layer
func (s *Store) Defaults() model.WorkflowConfig {
	return s.defaults
}

// appliesTo reports whether the rule has an occurrence on date's calendar day.
// A fresh rule is built per call since RRule is not safe for concurrent use.
func (o compiledOverride) appliesTo(date time.Time) (bool, error) {
	if date.IsZero() {
		return false, nil
	}

	searchStart := date.AddDate(0, 0, -7)
	searchEnd := date.AddDate(0, 0, 7)

	opt := o.option
	opt.Dtstart = searchStart
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return false, err
	}

	day := date.Format("2006-01-02")
	for _, occurrence := range rule.Between(searchStart, searchEnd, true) {
		if occurrence.Format("2006-01-02") == day {
			return true, nil
		}
	}
	return false, nil
}
