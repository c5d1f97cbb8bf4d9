package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
)

// Commit applies a change set in one transaction.
// The offer row is updated with a guarded statement so positions_filled can never leave
// [0, positions_available], even if two writers bypass the offer lock.
func (d *DB) Commit(ctx context.Context, cs db.ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateOffer(ctx, tx, cs); err != nil {
		return err
	}

	if err := checkTransitions(ctx, tx, cs); err != nil {
		return err
	}

	for _, r := range cs.Responses {
		_, err := tx.Exec(ctx, `
			UPDATE responses
			SET status = $3, priority_score = $4, factors = $5, waitlist_position = $6,
			    decision_reason = $7, decided_by = $8, decided_at = $9
			WHERE offer_id = $1 AND id = $2
		`, cs.OfferID, r.ID, string(r.Status), r.PriorityScore, r.Factors, r.WaitlistPosition,
			r.DecisionReason, r.DecidedBy, r.DecidedAt)
		if err != nil {
			return fmt.Errorf("failed to update response %s: %w", r.ID, err)
		}
	}

	if run := cs.Run; run != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO processing_runs (id, offer_id, operation, actor, processed_count, approved_count,
			                             waitlisted_count, rejected_count, no_action_count, offer_closed, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, run.ID, run.OfferID, string(run.Operation), run.Actor, run.ProcessedCount, run.ApprovedCount,
			run.WaitlistedCount, run.RejectedCount, run.NoActionCount, run.OfferClosed, run.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to insert processing run: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// updateOffer applies the filled delta and status change, locking the offer row for the
// rest of the transaction
func updateOffer(ctx context.Context, tx pgx.Tx, cs db.ChangeSet) error {
	var filled int
	err := tx.QueryRow(ctx, `
		UPDATE offers
		SET positions_filled = positions_filled + $2,
		    status = COALESCE(NULLIF($3, ''), status)
		WHERE id = $1
		  AND positions_filled + $2 >= 0
		  AND positions_filled + $2 <= positions_available
		RETURNING positions_filled
	`, cs.OfferID, cs.FilledDelta, string(cs.OfferStatus)).Scan(&filled)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update offer: %w", err)
	}

	// The guard refused the update; find out why
	var available, current int
	err = tx.QueryRow(ctx, `
		SELECT positions_available, positions_filled FROM offers WHERE id = $1
	`, cs.OfferID).Scan(&available, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(cs.OfferID, "", "offer %s not found", cs.OfferID)
	}
	if err != nil {
		return fmt.Errorf("failed to query offer: %w", err)
	}
	if current+cs.FilledDelta < 0 {
		return apperr.InvalidState(cs.OfferID, "", "positions filled cannot drop below zero")
	}
	return apperr.CapacityExceeded(cs.OfferID, "", available, current)
}

// checkTransitions locks the affected response rows and refuses any status change the
// state machine does not allow
func checkTransitions(ctx context.Context, tx pgx.Tx, cs db.ChangeSet) error {
	if len(cs.Responses) == 0 {
		return nil
	}

	ids := make([]string, len(cs.Responses))
	for i, r := range cs.Responses {
		ids[i] = r.ID
	}

	rows, err := tx.Query(ctx, `
		SELECT id, status FROM responses WHERE offer_id = $1 AND id = ANY($2) FOR UPDATE
	`, cs.OfferID, ids)
	if err != nil {
		return fmt.Errorf("failed to lock responses: %w", err)
	}
	stored := make(map[string]model.Response, len(ids))
	for rows.Next() {
		var r model.Response
		var status string
		if err := rows.Scan(&r.ID, &status); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan response: %w", err)
		}
		r.OfferID = cs.OfferID
		r.Status = model.ResponseStatus(status)
		stored[r.ID] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating responses: %w", err)
	}

	for _, r := range cs.Responses {
		current, ok := stored[r.ID]
		if !ok {
			return apperr.NotFound(cs.OfferID, r.ID, "response %s not found", r.ID)
		}
		if err := db.CheckTransition(current, r); err != nil {
			return err
		}
	}
	return nil
}
