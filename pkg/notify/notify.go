// Package notify emits decision events for delivery to employees and managers.
// Message content and delivery channels are owned by downstream consumers.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// EventType names a workflow decision
type EventType string

const (
	EventApproved    EventType = "response.approved"
	EventWaitlisted  EventType = "response.waitlisted"
	EventRejected    EventType = "response.rejected"
	EventPromoted    EventType = "response.promoted"
	EventWithdrawn   EventType = "response.withdrawn"
	EventOfferClosed EventType = "offer.closed"
)

// Event is one decision notification
type Event struct {
	Type             EventType `json:"type"`
	OfferID          string    `json:"offer_id"`
	ResponseID       string    `json:"response_id,omitempty"`
	EmployeeID       string    `json:"employee_id,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	WaitlistPosition int       `json:"waitlist_position,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Notifier publishes events
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// EventForDecision maps a response decision to its event; ok is false for manual review
func EventForDecision(resp model.Response, action model.ActionTaken, at time.Time) (Event, bool) {
	var t EventType
	switch action {
	case model.ActionApproved:
		t = EventApproved
	case model.ActionWaitlisted:
		t = EventWaitlisted
	case model.ActionRejected:
		t = EventRejected
	default:
		return Event{}, false
	}
	return Event{
		Type:             t,
		OfferID:          resp.OfferID,
		ResponseID:       resp.ID,
		EmployeeID:       resp.EmployeeID,
		Reason:           resp.DecisionReason,
		WaitlistPosition: resp.WaitlistPosition,
		OccurredAt:       at,
	}, true
}

// PublishAll publishes every event and returns how many succeeded.
// A failed publish is logged and never aborts the remaining events.
func PublishAll(ctx context.Context, n Notifier, events []Event, logger *zap.Logger) int {
	if n == nil {
		return 0
	}
	sent := 0
	for _, e := range events {
		if err := n.Publish(ctx, e); err != nil {
			logger.Warn("Failed to publish notification",
				zap.String("type", string(e.Type)),
				zap.String("offer_id", e.OfferID),
				zap.String("response_id", e.ResponseID),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// LogNotifier writes events to the log; used when no transport is configured
type LogNotifier struct {
	Logger *zap.Logger
}

func (l *LogNotifier) Publish(ctx context.Context, event Event) error {
	l.Logger.Info("Notification",
		zap.String("type", string(event.Type)),
		zap.String("offer_id", event.OfferID),
		zap.String("response_id", event.ResponseID),
		zap.String("employee_id", event.EmployeeID),
		zap.String("reason", event.Reason))
	return nil
}
