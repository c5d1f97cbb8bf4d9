// Package scoring computes the 0-100 composite priority score of a response.
//
// Every factor is normalized to [0,100] independently and the composite is the weighted
// sum of the normalized factors. The functions in this package are pure: identical
// inputs always produce identical outputs.
package scoring

import (
	"math"
	"strings"

	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// Breakdown holds the normalized factors and the composite score they produce
type Breakdown struct {
	Seniority   float64 `json:"seniority"`
	Performance float64 `json:"performance"`
	Attendance  float64 `json:"attendance"`
	History     float64 `json:"history"`
	Recency     float64 `json:"recency"`
	Speed       float64 `json:"speed"`
	Skills      float64 `json:"skills"`
	Total       float64 `json:"total"`
}

// Score normalizes the factor snapshot and applies the configured weights.
// The config is expected to have passed WorkflowConfig.Validate.
func Score(f model.PriorityFactors, weights model.PriorityWeights, params model.ScoringParams) Breakdown {
	b := Breakdown{
		Seniority:   NormalizeSeniority(f.SeniorityYears, params.MaxSeniorityYears),
		Performance: clamp(f.PerformanceRating, 0, 100),
		Attendance:  clamp(f.AttendanceRate, 0, 1) * 100,
		History:     NormalizeHistory(f.PriorOfferCount, params.HistoryCeiling),
		Recency:     NormalizeRecency(f.DaysSinceLastAccepted, params.RecencyCapDays),
		Speed:       NormalizeSpeed(f.ResponseLatencyMinutes, params.SpeedCutoffMinutes),
		Skills:      clamp(f.SkillMatchPercent, 0, 100),
	}

	total := b.Seniority*weights.Seniority +
		b.Performance*weights.Performance +
		b.Attendance*weights.Attendance +
		b.History*weights.History +
		b.Recency*weights.Recency +
		b.Speed*weights.Speed +
		b.Skills*weights.Skills

	b.Total = Round(clamp(total, 0, 100))
	return b
}

// ScoreWithConfig is Score using the weights and params of a workflow config
func ScoreWithConfig(f model.PriorityFactors, cfg model.WorkflowConfig) Breakdown {
	return Score(f, cfg.Weights, cfg.Scoring)
}

// NormalizeSeniority scales tenure linearly up to maxYears
func NormalizeSeniority(years, maxYears float64) float64 {
	if maxYears <= 0 {
		return 0
	}
	return clamp(years, 0, maxYears) / maxYears * 100
}

// NormalizeHistory gives diminishing returns for prior accepted offers:
// 100 * ln(1+n) / ln(1+ceiling), saturating at the ceiling
func NormalizeHistory(count, ceiling int) float64 {
	if count <= 0 || ceiling <= 0 {
		return 0
	}
	if count >= ceiling {
		return 100
	}
	return clamp(100*math.Log1p(float64(count))/math.Log1p(float64(ceiling)), 0, 100)
}

// NormalizeRecency favours rotation: a longer gap since the last accepted offer scores
// higher. Employees who never accepted an offer (negative days) get the full score.
func NormalizeRecency(days, capDays float64) float64 {
	if days < 0 {
		return 100
	}
	if capDays <= 0 {
		return 0
	}
	return clamp(days/capDays*100, 0, 100)
}

// NormalizeSpeed favours fast responders; latencies at or beyond the cutoff score 0
func NormalizeSpeed(latencyMinutes, cutoffMinutes float64) float64 {
	if cutoffMinutes <= 0 {
		return 0
	}
	latency := max(latencyMinutes, 0)
	return clamp(100*(1-latency/cutoffMinutes), 0, 100)
}

// SkillMatch returns the percentage of required skills the employee holds.
// Matching is case-insensitive; an offer with no required skills is a full match.
func SkillMatch(required, held []string) float64 {
	if len(required) == 0 {
		return 100
	}

	heldSet := make(map[string]bool, len(held))
	for _, s := range held {
		heldSet[strings.ToLower(strings.TrimSpace(s))] = true
	}

	matched := 0
	seen := make(map[string]bool, len(required))
	for _, s := range required {
		key := strings.ToLower(strings.TrimSpace(s))
		if seen[key] {
			continue
		}
		seen[key] = true
		if heldSet[key] {
			matched++
		}
	}
	return Round(float64(matched) / float64(len(seen)) * 100)
}

// Round rounds to two decimals, half away from zero
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
