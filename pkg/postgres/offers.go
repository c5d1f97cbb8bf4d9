package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
)

// GetOffer retrieves one offer
func (d *DB) GetOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	var o model.Offer
	var offerType, status string
	var targetDate, publishedAt *time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT id, organization_id, offer_type, positions_available, positions_filled, status,
		       target_date, start_time, end_time, required_skills, published_at
		FROM offers
		WHERE id = $1
	`, offerID).Scan(&o.ID, &o.OrganizationID, &offerType, &o.PositionsAvailable, &o.PositionsFilled, &status,
		&targetDate, &o.StartTime, &o.EndTime, &o.RequiredSkills, &publishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(offerID, "", "offer %s not found", offerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query offer: %w", err)
	}

	o.Type = model.OfferType(offerType)
	o.Status = model.OfferStatus(status)
	if targetDate != nil {
		o.TargetDate = *targetDate
	}
	if publishedAt != nil {
		o.PublishedAt = *publishedAt
	}
	return &o, nil
}

// ListResponses retrieves every response of an offer in submission order
func (d *DB) ListResponses(ctx context.Context, offerID string) ([]model.Response, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, offer_id, employee_id, status, priority_score, factors, waitlist_position,
		       submitted_at, decision_reason, decided_by, decided_at
		FROM responses
		WHERE offer_id = $1
		ORDER BY submitted_at, id
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []model.Response
	for rows.Next() {
		var r model.Response
		var status string
		if err := rows.Scan(&r.ID, &r.OfferID, &r.EmployeeID, &status, &r.PriorityScore, &r.Factors,
			&r.WaitlistPosition, &r.SubmittedAt, &r.DecisionReason, &r.DecidedBy, &r.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		r.Status = model.ResponseStatus(status)
		responses = append(responses, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responses: %w", err)
	}

	return responses, nil
}

// LastRunAt returns when the most recent run of operation on the offer completed, or nil
func (d *DB) LastRunAt(ctx context.Context, offerID string, operation db.Operation) (*time.Time, error) {
	var completedAt *time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT MAX(completed_at) FROM processing_runs WHERE offer_id = $1 AND operation = $2
	`, offerID, string(operation)).Scan(&completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}
	return completedAt, nil
}

// UpsertOffer inserts an offer or replaces every column of an existing one
func (d *DB) UpsertOffer(ctx context.Context, o model.Offer) error {
	var targetDate, publishedAt *time.Time
	if !o.TargetDate.IsZero() {
		targetDate = &o.TargetDate
	}
	if !o.PublishedAt.IsZero() {
		publishedAt = &o.PublishedAt
	}
	skills := o.RequiredSkills
	if skills == nil {
		skills = []string{}
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO offers (id, organization_id, offer_type, positions_available, positions_filled, status,
		                    target_date, start_time, end_time, required_skills, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			offer_type = EXCLUDED.offer_type,
			positions_available = EXCLUDED.positions_available,
			positions_filled = EXCLUDED.positions_filled,
			status = EXCLUDED.status,
			target_date = EXCLUDED.target_date,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			required_skills = EXCLUDED.required_skills,
			published_at = EXCLUDED.published_at
	`, o.ID, o.OrganizationID, string(o.Type), o.PositionsAvailable, o.PositionsFilled, string(o.Status),
		targetDate, o.StartTime, o.EndTime, skills, publishedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert offer: %w", err)
	}
	return nil
}

// InsertResponse records a new response
func (d *DB) InsertResponse(ctx context.Context, r model.Response) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO responses (id, offer_id, employee_id, status, priority_score, factors, waitlist_position,
		                       submitted_at, decision_reason, decided_by, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.ID, r.OfferID, r.EmployeeID, string(r.Status), r.PriorityScore, r.Factors, r.WaitlistPosition,
		r.SubmittedAt, r.DecisionReason, r.DecidedBy, r.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}
