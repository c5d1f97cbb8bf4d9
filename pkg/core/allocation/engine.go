// Package allocation scores, ranks and admits the pending responses of an offer.
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/attributes"
	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
	"github.com/mm1618bu/laborflow/pkg/lock"
	"github.com/mm1618bu/laborflow/pkg/metrics"
	"github.com/mm1618bu/laborflow/pkg/notify"
)

// SystemActor is recorded as the decider of automated decisions
const SystemActor = "system"

// Options control a single processing run
type Options struct {
	DryRun      bool
	ProcessedBy string
}

// Engine runs the allocation workflow for one offer at a time
type Engine struct {
	store    db.Database
	attrs    attributes.Provider
	locker   lock.Locker
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an engine. notifier and m may be nil.
func NewEngine(store db.Database, attrs attributes.Provider, locker lock.Locker, notifier notify.Notifier, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		attrs:    attrs,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// invalidator is implemented by attribute providers that cache
type invalidator interface {
	Invalidate(ctx context.Context, employeeIDs ...string) error
}

// Process scores, ranks and decides every pending response of the offer.
// The whole run is committed atomically; in dry-run mode nothing is written and no
// notifications are published.
func (e *Engine) Process(ctx context.Context, offerID string, cfg model.WorkflowConfig, opts Options) (result *model.ProcessingResult, err error) {
	start := e.now()
	defer func() {
		e.metrics.ObserveOperation(string(db.OperationProcess), err, e.now().Sub(start))
	}()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, apperr.InvalidState(offerID, "", "allocation workflow is disabled")
	}

	actor := opts.ProcessedBy
	if actor == "" {
		actor = SystemActor
	}

	e.logger.Info("Processing offer",
		zap.String("offer_id", offerID),
		zap.String("processed_by", actor),
		zap.Bool("dry_run", opts.DryRun))

	release, err := e.locker.Acquire(ctx, lock.OfferKey(offerID))
	if err != nil {
		return nil, err
	}
	defer release()

	offer, err := e.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}
	if offer.Status != model.OfferOpen {
		return nil, apperr.InvalidState(offerID, "", "offer is %s, only open offers can be processed", offer.Status)
	}

	responses, err := e.store.ListResponses(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}

	var pending []model.Response
	waitlistSize := 0
	for _, r := range responses {
		switch r.Status {
		case model.StatusPending:
			pending = append(pending, r)
		case model.StatusWaitlisted:
			waitlistSize++
		}
	}

	e.logger.Debug("Loaded responses",
		zap.Int("total", len(responses)),
		zap.Int("pending", len(pending)),
		zap.Int("waitlisted", waitlistSize))

	scored, err := e.score(ctx, offer, pending, cfg)
	if err != nil {
		return nil, err
	}
	Rank(scored)

	now := e.now()
	out := Walk(offer, scored, waitlistSize, cfg, actor, now)

	result = &model.ProcessingResult{
		LaborActionID:      offer.ID,
		TotalResponses:     len(responses),
		PositionsFilled:    out.Filled,
		PositionsAvailable: offer.PositionsAvailable,
		OfferClosed:        out.Close,
		ProcessingDetails:  []model.ProcessingDetail{},
	}
	for _, d := range out.Details {
		result.Record(d)
	}

	events := decisionEvents(offer.ID, out, now)

	if opts.DryRun {
		// Report what a real run would publish
		if e.notifier != nil {
			result.NotificationsSent = len(events)
		}
		result.ExecutionTimeMs = e.now().Sub(start).Milliseconds()
		e.logger.Info("Dry run complete, no changes saved",
			zap.String("offer_id", offerID),
			zap.Int("approved", result.ApprovedCount),
			zap.Int("waitlisted", result.WaitlistedCount),
			zap.Int("rejected", result.RejectedCount),
			zap.Int("no_action", result.NoActionCount))
		return result, nil
	}

	cs := db.ChangeSet{
		OfferID:     offer.ID,
		FilledDelta: out.Filled - offer.PositionsFilled,
		Responses:   out.Decided,
		Run: &db.RunRecord{
			ID:              uuid.NewString(),
			OfferID:         offer.ID,
			Operation:       db.OperationProcess,
			Actor:           actor,
			ProcessedCount:  result.ProcessedCount,
			ApprovedCount:   result.ApprovedCount,
			WaitlistedCount: result.WaitlistedCount,
			RejectedCount:   result.RejectedCount,
			NoActionCount:   result.NoActionCount,
			OfferClosed:     out.Close,
			CompletedAt:     now,
		},
	}
	if out.Close {
		cs.OfferStatus = model.OfferClosed
	}
	if err := e.store.Commit(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to commit processing run: %w", err)
	}

	e.metrics.ObserveDecisions(result)

	result.NotificationsSent = notify.PublishAll(ctx, e.notifier, events, e.logger)
	e.metrics.ObserveNotifications(result.NotificationsSent, len(events))

	if inv, ok := e.attrs.(invalidator); ok && len(out.Approved) > 0 {
		if err := inv.Invalidate(ctx, out.Approved...); err != nil {
			e.logger.Warn("Failed to invalidate cached attributes", zap.Error(err))
		}
	}

	result.ExecutionTimeMs = e.now().Sub(start).Milliseconds()

	e.logger.Info("Offer processed",
		zap.String("offer_id", offerID),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("approved", result.ApprovedCount),
		zap.Int("waitlisted", result.WaitlistedCount),
		zap.Int("rejected", result.RejectedCount),
		zap.Int("no_action", result.NoActionCount),
		zap.Int("positions_filled", result.PositionsFilled),
		zap.Bool("offer_closed", result.OfferClosed))

	return result, nil
}

// score attaches a factor snapshot and score to every pending response.
// A stored snapshot is reused; only responses without one hit the attribute provider.
func (e *Engine) score(ctx context.Context, offer *model.Offer, pending []model.Response, cfg model.WorkflowConfig) ([]Scored, error) {
	var missing []string
	for _, r := range pending {
		if r.Factors == nil {
			missing = append(missing, r.EmployeeID)
		}
	}

	var attrs map[string]attributes.Employee
	if len(missing) > 0 {
		var err error
		attrs, err = e.attrs.GetAttributes(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch employee attributes: %w", err)
		}
	}

	scored := make([]Scored, 0, len(pending))
	for _, r := range pending {
		if r.Factors == nil {
			emp, ok := attrs[r.EmployeeID]
			if !ok {
				e.logger.Warn("No attributes for employee, scoring with defaults",
					zap.String("offer_id", offer.ID),
					zap.String("employee_id", r.EmployeeID))
				emp = attributes.Employee{EmployeeID: r.EmployeeID}
			}
			f := attributes.Snapshot(emp, offer, r)
			r.Factors = &f
		}
		scored = append(scored, ScoreResponse(r, cfg))
	}
	return scored, nil
}

func decisionEvents(offerID string, out Outcome, at time.Time) []notify.Event {
	var events []notify.Event
	for i, d := range out.Details {
		if e, ok := notify.EventForDecision(out.Decided[i], d.ActionTaken, at); ok {
			events = append(events, e)
		}
	}
	if out.Close {
		events = append(events, notify.Event{Type: notify.EventOfferClosed, OfferID: offerID, OccurredAt: at})
	}
	return events
}
