// Package waitlist manages the ordered overflow queue of an offer: promotion when
// capacity frees up, withdrawals and overflow trims.
package waitlist

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
	"github.com/mm1618bu/laborflow/pkg/lock"
	"github.com/mm1618bu/laborflow/pkg/metrics"
	"github.com/mm1618bu/laborflow/pkg/notify"
)

// Manager mutates offer waitlists under the per-offer lock
type Manager struct {
	store    db.Database
	locker   lock.Locker
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a waitlist manager. notifier and m may be nil.
func NewManager(store db.Database, locker lock.Locker, notifier notify.Notifier, m *metrics.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Promote moves up to freedPositions waitlisted responses to accepted, in waitlist
// order, never exceeding the offer's remaining capacity. Remaining entries are
// renumbered and keep their relative order.
func (m *Manager) Promote(ctx context.Context, offerID string, freedPositions int, actor string) (result *model.PromotionResult, err error) {
	start := m.now()
	defer func() {
		m.metrics.ObserveOperation(string(db.OperationPromote), err, m.now().Sub(start))
	}()

	if freedPositions <= 0 {
		return nil, apperr.InvalidState(offerID, "", "freed positions must be positive, got %d", freedPositions)
	}

	release, err := m.locker.Acquire(ctx, lock.OfferKey(offerID))
	if err != nil {
		return nil, err
	}
	defer release()

	offer, responses, err := m.load(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != model.OfferOpen && offer.Status != model.OfferClosed {
		return nil, apperr.InvalidState(offerID, "", "cannot promote on a %s offer", offer.Status)
	}

	capacity := offer.Capacity()
	if capacity == 0 {
		return nil, apperr.InvalidState(offerID, "", "no capacity to promote into: %d of %d positions filled",
			offer.PositionsFilled, offer.PositionsAvailable)
	}

	queue := Ordered(responses)
	n := min(freedPositions, capacity, len(queue))
	now := m.now()

	m.logger.Info("Promoting from waitlist",
		zap.String("offer_id", offerID),
		zap.Int("freed_positions", freedPositions),
		zap.Int("capacity", capacity),
		zap.Int("waitlist_size", len(queue)))

	result = &model.PromotionResult{PromotedEmployees: []model.PromotedEmployee{}}
	var changed []model.Response
	var events []notify.Event
	for _, r := range queue[:n] {
		result.PromotedEmployees = append(result.PromotedEmployees, model.PromotedEmployee{
			ResponseID:   r.ID,
			EmployeeID:   r.EmployeeID,
			FromPosition: r.WaitlistPosition,
		})
		r = accept(r, actor, now)
		changed = append(changed, r)
		events = append(events, promotedEvent(r, now))
	}
	changed = append(changed, Renumber(queue[n:])...)

	result.PromotedCount = n
	result.RemainingWaitlist = len(queue) - n

	err = m.store.Commit(ctx, db.ChangeSet{
		OfferID:     offerID,
		FilledDelta: n,
		Responses:   changed,
		Run:         m.run(offerID, db.OperationPromote, actor, now, func(r *db.RunRecord) { r.ApprovedCount = n }),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}

	sent := notify.PublishAll(ctx, m.notifier, events, m.logger)
	m.metrics.ObserveNotifications(sent, len(events))

	m.logger.Info("Waitlist promotion complete",
		zap.String("offer_id", offerID),
		zap.Int("promoted", n),
		zap.Int("remaining_waitlist", result.RemainingWaitlist))

	return result, nil
}

// Withdraw applies an external withdrawal event to a response.
// Withdrawing an accepted response frees its position; with autoPromote the head of
// the waitlist takes it in the same commit.
func (m *Manager) Withdraw(ctx context.Context, offerID, responseID, actor string, autoPromote bool) (result *model.WithdrawalResult, err error) {
	start := m.now()
	defer func() {
		m.metrics.ObserveOperation(string(db.OperationWithdraw), err, m.now().Sub(start))
	}()

	release, err := m.locker.Acquire(ctx, lock.OfferKey(offerID))
	if err != nil {
		return nil, err
	}
	defer release()

	offer, responses, err := m.load(ctx, offerID)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(responses, func(r model.Response) bool { return r.ID == responseID })
	if idx < 0 {
		return nil, apperr.NotFound(offerID, responseID, "response %s not found on offer %s", responseID, offerID)
	}
	target := responses[idx]

	if !model.CanTransition(target.Status, model.StatusWithdrawn) {
		return nil, apperr.InvalidState(offerID, responseID, "cannot withdraw a %s response", target.Status)
	}

	now := m.now()
	result = &model.WithdrawalResult{ResponseID: responseID, PreviousStatus: target.Status}

	withdrawn := target
	withdrawn.Status = model.StatusWithdrawn
	withdrawn.WaitlistPosition = 0
	withdrawn.DecisionReason = "withdrawn by employee"
	withdrawn.DecidedBy = actor
	withdrawn.DecidedAt = &now

	changed := []model.Response{withdrawn}
	events := []notify.Event{{
		Type:       notify.EventWithdrawn,
		OfferID:    offerID,
		ResponseID: responseID,
		EmployeeID: target.EmployeeID,
		OccurredAt: now,
	}}
	delta := 0

	switch target.Status {
	case model.StatusAccepted:
		delta = -1
		queue := Ordered(responses)
		promotable := offer.Status == model.OfferOpen || offer.Status == model.OfferClosed
		if autoPromote && promotable && len(queue) > 0 {
			head := queue[0]
			result.Promoted = &model.PromotedEmployee{
				ResponseID:   head.ID,
				EmployeeID:   head.EmployeeID,
				FromPosition: head.WaitlistPosition,
			}
			head = accept(head, actor, now)
			changed = append(changed, head)
			changed = append(changed, Renumber(queue[1:])...)
			events = append(events, promotedEvent(head, now))
			delta = 0
		}

	case model.StatusWaitlisted:
		rest := slices.DeleteFunc(Ordered(responses), func(r model.Response) bool { return r.ID == responseID })
		changed = append(changed, Renumber(rest)...)
	}

	result.PositionsFilled = offer.PositionsFilled + delta

	err = m.store.Commit(ctx, db.ChangeSet{
		OfferID:     offerID,
		FilledDelta: delta,
		Responses:   changed,
		Run: m.run(offerID, db.OperationWithdraw, actor, now, func(r *db.RunRecord) {
			r.ProcessedCount = 1
			if result.Promoted != nil {
				r.ApprovedCount = 1
			}
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	sent := notify.PublishAll(ctx, m.notifier, events, m.logger)
	m.metrics.ObserveNotifications(sent, len(events))

	m.logger.Info("Response withdrawn",
		zap.String("offer_id", offerID),
		zap.String("response_id", responseID),
		zap.String("previous_status", string(target.Status)),
		zap.Bool("promoted", result.Promoted != nil))

	return result, nil
}

// Trim rejects every waitlist entry beyond maxSize with reason "waitlist full"
func (m *Manager) Trim(ctx context.Context, offerID string, maxSize int, actor string) (result *model.TrimResult, err error) {
	start := m.now()
	defer func() {
		m.metrics.ObserveOperation(string(db.OperationTrim), err, m.now().Sub(start))
	}()

	if maxSize < 0 {
		return nil, apperr.Config("waitlist size must be non-negative, got %d", maxSize)
	}

	release, err := m.locker.Acquire(ctx, lock.OfferKey(offerID))
	if err != nil {
		return nil, err
	}
	defer release()

	_, responses, err := m.load(ctx, offerID)
	if err != nil {
		return nil, err
	}

	queue := Ordered(responses)
	result = &model.TrimResult{TrimmedResponses: []string{}, RemainingWaitlist: min(len(queue), maxSize)}
	if len(queue) <= maxSize {
		return result, nil
	}

	now := m.now()
	changed := Renumber(queue[:maxSize])
	var events []notify.Event
	for _, r := range queue[maxSize:] {
		r.Status = model.StatusRejected
		r.WaitlistPosition = 0
		r.DecisionReason = model.ReasonWaitlistFull
		r.DecidedBy = actor
		r.DecidedAt = &now
		changed = append(changed, r)
		result.TrimmedResponses = append(result.TrimmedResponses, r.ID)
		if e, ok := notify.EventForDecision(r, model.ActionRejected, now); ok {
			events = append(events, e)
		}
	}
	result.TrimmedCount = len(result.TrimmedResponses)

	err = m.store.Commit(ctx, db.ChangeSet{
		OfferID:   offerID,
		Responses: changed,
		Run: m.run(offerID, db.OperationTrim, actor, now, func(r *db.RunRecord) {
			r.ProcessedCount = result.TrimmedCount
			r.RejectedCount = result.TrimmedCount
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit waitlist trim: %w", err)
	}

	sent := notify.PublishAll(ctx, m.notifier, events, m.logger)
	m.metrics.ObserveNotifications(sent, len(events))

	m.logger.Info("Waitlist trimmed",
		zap.String("offer_id", offerID),
		zap.Int("trimmed", result.TrimmedCount),
		zap.Int("remaining_waitlist", result.RemainingWaitlist))

	return result, nil
}

// Entries returns the waitlist of an offer in queue order
func (m *Manager) Entries(ctx context.Context, offerID string) ([]model.WaitlistEntry, error) {
	_, responses, err := m.load(ctx, offerID)
	if err != nil {
		return nil, err
	}
	queue := Ordered(responses)
	entries := make([]model.WaitlistEntry, len(queue))
	for i, r := range queue {
		var score float64
		if r.PriorityScore != nil {
			score = *r.PriorityScore
		}
		entries[i] = model.WaitlistEntry{
			ResponseID: r.ID,
			EmployeeID: r.EmployeeID,
			Position:   r.WaitlistPosition,
			Score:      score,
		}
	}
	return entries, nil
}

func (m *Manager) load(ctx context.Context, offerID string) (*model.Offer, []model.Response, error) {
	offer, err := m.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load offer: %w", err)
	}
	responses, err := m.store.ListResponses(ctx, offerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load responses: %w", err)
	}
	return offer, responses, nil
}

func (m *Manager) run(offerID string, op db.Operation, actor string, at time.Time, fill func(*db.RunRecord)) *db.RunRecord {
	r := &db.RunRecord{
		ID:          uuid.NewString(),
		OfferID:     offerID,
		Operation:   op,
		Actor:       actor,
		CompletedAt: at,
	}
	fill(r)
	return r
}

// Ordered returns the waitlisted responses in queue order: position, then score
// descending, then response ID
func Ordered(responses []model.Response) []model.Response {
	var queue []model.Response
	for _, r := range responses {
		if r.Status == model.StatusWaitlisted {
			queue = append(queue, r)
		}
	}
	slices.SortStableFunc(queue, func(a, b model.Response) int {
		if c := cmp.Compare(a.WaitlistPosition, b.WaitlistPosition); c != 0 {
			return c
		}
		if c := cmp.Compare(scoreOf(b), scoreOf(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return queue
}

// Renumber assigns positions 1..n in the given order and returns the entries whose
// position changed
func Renumber(queue []model.Response) []model.Response {
	var changed []model.Response
	for i, r := range queue {
		if r.WaitlistPosition != i+1 {
			r.WaitlistPosition = i + 1
			changed = append(changed, r)
		}
	}
	return changed
}

func accept(r model.Response, actor string, at time.Time) model.Response {
	r.Status = model.StatusAccepted
	r.WaitlistPosition = 0
	r.DecisionReason = model.ReasonPromoted
	r.DecidedBy = actor
	r.DecidedAt = &at
	return r
}

func promotedEvent(r model.Response, at time.Time) notify.Event {
	return notify.Event{
		Type:       notify.EventPromoted,
		OfferID:    r.OfferID,
		ResponseID: r.ID,
		EmployeeID: r.EmployeeID,
		Reason:     r.DecisionReason,
		OccurredAt: at,
	}
}

func scoreOf(r model.Response) float64 {
	if r.PriorityScore == nil {
		return 0
	}
	return *r.PriorityScore
}
