package allocation

import (
	"context"
	"fmt"

	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
)

// Status summarizes an offer's workflow state. It takes no lock and may observe a
// state that a concurrent run is about to replace.
func (e *Engine) Status(ctx context.Context, offerID string, cfg model.WorkflowConfig) (*model.WorkflowStatus, error) {
	offer, err := e.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}

	responses, err := e.store.ListResponses(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}

	lastProcessed, err := e.store.LastRunAt(ctx, offerID, db.OperationProcess)
	if err != nil {
		return nil, fmt.Errorf("failed to load last processing run: %w", err)
	}

	status := &model.WorkflowStatus{
		OfferID:            offer.ID,
		OfferStatus:        offer.Status,
		PositionsAvailable: offer.PositionsAvailable,
		PositionsFilled:    offer.PositionsFilled,
		WorkflowEnabled:    cfg.Enabled,
		LastProcessedAt:    lastProcessed,
	}
	for _, r := range responses {
		switch r.Status {
		case model.StatusPending:
			status.PendingResponses++
		case model.StatusAccepted:
			status.ApprovedResponses++
		case model.StatusWaitlisted:
			status.WaitlistedResponses++
		}
	}
	return status, nil
}
