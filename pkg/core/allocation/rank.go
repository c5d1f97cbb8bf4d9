package allocation

import (
	"cmp"
	"slices"
	"time"

	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/core/scoring"
)

// Scored is a pending response with its factor snapshot attached and scored
type Scored struct {
	Response  model.Response
	Breakdown scoring.Breakdown
	Score     float64
}

// ScoreResponse scores a response that already carries a factor snapshot
func ScoreResponse(r model.Response, cfg model.WorkflowConfig) Scored {
	b := scoring.ScoreWithConfig(*r.Factors, cfg)
	return Scored{Response: r, Breakdown: b, Score: b.Total}
}

// Rank orders responses by score descending, then earliest submission, then response ID.
// The order is total, so ranking the same input always yields the same order.
func Rank(scored []Scored) {
	slices.SortStableFunc(scored, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := a.Response.SubmittedAt.Compare(b.Response.SubmittedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Response.ID, b.Response.ID)
	})
}

// Outcome is the result of walking a ranked list against an offer's capacity
type Outcome struct {
	// Details and Decided are parallel, in rank order
	Details []model.ProcessingDetail
	Decided []model.Response

	// Approved holds the employee IDs admitted in this walk
	Approved []string

	Filled int
	Close  bool
}

// Walk decides each ranked response in turn, re-reading the live capacity at every step.
// waitlistSize is the number of responses already on the offer's waitlist.
func Walk(offer *model.Offer, ranked []Scored, waitlistSize int, cfg model.WorkflowConfig, actor string, now time.Time) Outcome {
	out := Outcome{Filled: offer.PositionsFilled}

	for _, s := range ranked {
		r := s.Response
		original := r.Status
		score := s.Score
		r.PriorityScore = &score

		capacity := offer.PositionsAvailable - out.Filled

		var action model.ActionTaken
		switch {
		case capacity > 0 && (!cfg.AutoApproveEnabled || score >= cfg.AutoApproveThreshold):
			action = model.ActionApproved
			r.Status = model.StatusAccepted
			r.WaitlistPosition = 0
			r.DecisionReason = model.ReasonApprovedNoThreshold
			if cfg.AutoApproveEnabled {
				r.DecisionReason = model.ReasonAutoApproved
			}
			out.Filled++
			out.Approved = append(out.Approved, r.EmployeeID)

		case capacity > 0:
			action = model.ActionNoAction
			r.DecisionReason = model.ReasonManualReview

		case cfg.AutoWaitlistEnabled && waitlistSize < cfg.MaxWaitlistSize:
			action = model.ActionWaitlisted
			waitlistSize++
			r.Status = model.StatusWaitlisted
			r.WaitlistPosition = waitlistSize
			r.DecisionReason = model.ReasonWaitlisted

		default:
			action = model.ActionRejected
			r.Status = model.StatusRejected
			r.DecisionReason = model.ReasonCapacityExhausted
			if cfg.AutoWaitlistEnabled {
				r.DecisionReason = model.ReasonWaitlistFull
			}
		}

		if action != model.ActionNoAction {
			decidedAt := now
			r.DecidedBy = actor
			r.DecidedAt = &decidedAt
		}

		out.Decided = append(out.Decided, r)
		out.Details = append(out.Details, model.ProcessingDetail{
			ResponseID:     r.ID,
			EmployeeID:     r.EmployeeID,
			OriginalStatus: original,
			NewStatus:      r.Status,
			PriorityScore:  score,
			ActionTaken:    action,
			Reason:         r.DecisionReason,
		})
	}

	out.Close = cfg.AutoCloseWhenFilled && out.Filled == offer.PositionsAvailable
	return out
}
