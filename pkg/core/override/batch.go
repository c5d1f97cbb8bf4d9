// Package override applies manual manager decisions to a batch of responses.
package override

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/core/waitlist"
	"github.com/mm1618bu/laborflow/pkg/db"
	"github.com/mm1618bu/laborflow/pkg/lock"
	"github.com/mm1618bu/laborflow/pkg/metrics"
	"github.com/mm1618bu/laborflow/pkg/notify"
)

const (
	ReasonManualApproval  = "manually approved"
	ReasonManualRejection = "manually rejected"
)

// Batch applies manual approve/reject decisions with continue-on-error semantics
type Batch struct {
	store    db.Database
	locker   lock.Locker
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewBatch creates a batch override service. notifier and m may be nil.
func NewBatch(store db.Database, locker lock.Locker, notifier notify.Notifier, m *metrics.Metrics, logger *zap.Logger) *Batch {
	return &Batch{
		store:    store,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Approve accepts each response in turn while capacity remains.
// An item that cannot be approved is reported in the result and does not stop the batch.
func (b *Batch) Approve(ctx context.Context, offerID string, responseIDs []string, actorID, notes string) (*model.BatchResult, error) {
	reason := ReasonManualApproval
	if notes != "" {
		reason = ReasonManualApproval + ": " + notes
	}
	return b.apply(ctx, db.OperationApprove, offerID, responseIDs, actorID, reason)
}

// Reject rejects each response in turn
func (b *Batch) Reject(ctx context.Context, offerID string, responseIDs []string, actorID, reason string) (*model.BatchResult, error) {
	if reason == "" {
		reason = ReasonManualRejection
	}
	return b.apply(ctx, db.OperationReject, offerID, responseIDs, actorID, reason)
}

func (b *Batch) apply(ctx context.Context, op db.Operation, offerID string, responseIDs []string, actorID, reason string) (result *model.BatchResult, err error) {
	start := b.now()
	defer func() {
		b.metrics.ObserveOperation(string(op), err, b.now().Sub(start))
	}()

	b.logger.Info("Applying batch override",
		zap.String("offer_id", offerID),
		zap.String("operation", string(op)),
		zap.String("actor_id", actorID),
		zap.Int("responses", len(responseIDs)))

	release, err := b.locker.Acquire(ctx, lock.OfferKey(offerID))
	if err != nil {
		return nil, err
	}
	defer release()

	offer, err := b.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}
	if offer.Status != model.OfferOpen {
		return nil, apperr.InvalidState(offerID, "", "offer is %s, only open offers accept overrides", offer.Status)
	}

	result = &model.BatchResult{
		TotalRequested: len(responseIDs),
		Results:        make([]model.BatchItemResult, 0, len(responseIDs)),
	}
	seen := make(map[string]bool, len(responseIDs))
	var events []notify.Event

	for _, id := range responseIDs {
		var itemErr error
		if seen[id] {
			itemErr = apperr.InvalidState(offerID, id, "response %s appears more than once in the batch", id)
		} else {
			seen[id] = true
			var event notify.Event
			event, itemErr = b.applyOne(ctx, op, offerID, id, actorID, reason)
			if itemErr == nil {
				events = append(events, event)
			}
		}

		item := model.BatchItemResult{ResponseID: id, Success: itemErr == nil}
		if itemErr != nil {
			item.Error = itemErr.Error()
			item.ErrorCode = string(apperr.KindOf(itemErr))
			result.FailedCount++
			b.logger.Warn("Batch item failed",
				zap.String("offer_id", offerID),
				zap.String("response_id", id),
				zap.Error(itemErr))
		} else {
			result.SuccessfulCount++
		}
		result.Results = append(result.Results, item)
	}

	if result.SuccessfulCount > 0 {
		if err := b.store.Commit(ctx, db.ChangeSet{OfferID: offerID, Run: b.runRecord(op, offerID, actorID, result)}); err != nil {
			b.logger.Warn("Failed to record batch run", zap.String("offer_id", offerID), zap.Error(err))
		}
	}

	sent := notify.PublishAll(ctx, b.notifier, events, b.logger)
	b.metrics.ObserveNotifications(sent, len(events))

	b.logger.Info("Batch override complete",
		zap.String("offer_id", offerID),
		zap.String("operation", string(op)),
		zap.Int("successful", result.SuccessfulCount),
		zap.Int("failed", result.FailedCount))

	return result, nil
}

// applyOne re-reads the offer and its responses and commits a single decision
func (b *Batch) applyOne(ctx context.Context, op db.Operation, offerID, responseID, actorID, reason string) (notify.Event, error) {
	offer, err := b.store.GetOffer(ctx, offerID)
	if err != nil {
		return notify.Event{}, fmt.Errorf("failed to load offer: %w", err)
	}
	responses, err := b.store.ListResponses(ctx, offerID)
	if err != nil {
		return notify.Event{}, fmt.Errorf("failed to load responses: %w", err)
	}

	idx := slices.IndexFunc(responses, func(r model.Response) bool { return r.ID == responseID })
	if idx < 0 {
		return notify.Event{}, apperr.NotFound(offerID, responseID, "response %s not found on offer %s", responseID, offerID)
	}
	target := responses[idx]

	status, action := model.StatusAccepted, model.ActionApproved
	if op == db.OperationReject {
		status, action = model.StatusRejected, model.ActionRejected
	}
	if target.Status != model.StatusPending && target.Status != model.StatusWaitlisted {
		return notify.Event{}, apperr.InvalidState(offerID, responseID, "cannot %s a %s response", op, target.Status)
	}

	delta := 0
	if status == model.StatusAccepted {
		if offer.Capacity() == 0 {
			return notify.Event{}, apperr.CapacityExceeded(offerID, responseID, offer.PositionsAvailable, offer.PositionsFilled)
		}
		delta = 1
	}

	now := b.now()
	updated := target
	updated.Status = status
	updated.WaitlistPosition = 0
	updated.DecisionReason = reason
	updated.DecidedBy = actorID
	updated.DecidedAt = &now

	changed := []model.Response{updated}
	if target.Status == model.StatusWaitlisted {
		rest := slices.DeleteFunc(waitlist.Ordered(responses), func(r model.Response) bool { return r.ID == responseID })
		changed = append(changed, waitlist.Renumber(rest)...)
	}

	if err := b.store.Commit(ctx, db.ChangeSet{OfferID: offerID, FilledDelta: delta, Responses: changed}); err != nil {
		return notify.Event{}, fmt.Errorf("failed to commit %s of response %s: %w", op, responseID, err)
	}

	event, _ := notify.EventForDecision(updated, action, now)
	return event, nil
}

func (b *Batch) runRecord(op db.Operation, offerID, actorID string, result *model.BatchResult) *db.RunRecord {
	r := &db.RunRecord{
		ID:             uuid.NewString(),
		OfferID:        offerID,
		Operation:      op,
		Actor:          actorID,
		ProcessedCount: result.TotalRequested,
		CompletedAt:    b.now(),
	}
	if op == db.OperationApprove {
		r.ApprovedCount = result.SuccessfulCount
	} else {
		r.RejectedCount = result.SuccessfulCount
	}
	return r
}
