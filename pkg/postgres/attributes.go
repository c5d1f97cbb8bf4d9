package postgres

import (
	"context"
	"fmt"

	"github.com/mm1618bu/laborflow/pkg/attributes"
)

// GetAttributes reads employee attributes; employees without a row are absent from the map
func (d *DB) GetAttributes(ctx context.Context, employeeIDs []string) (map[string]attributes.Employee, error) {
	out := make(map[string]attributes.Employee, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return out, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT employee_id, seniority_years, performance_rating, attendance_rate, prior_offer_count,
		       last_accepted_at, skills
		FROM employee_attributes
		WHERE employee_id = ANY($1)
	`, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query employee attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e attributes.Employee
		if err := rows.Scan(&e.EmployeeID, &e.SeniorityYears, &e.PerformanceRating, &e.AttendanceRate,
			&e.PriorOfferCount, &e.LastAcceptedAt, &e.Skills); err != nil {
			return nil, fmt.Errorf("failed to scan employee attributes: %w", err)
		}
		out[e.EmployeeID] = e
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employee attributes: %w", err)
	}

	return out, nil
}

// UpsertEmployee writes the attributes of one employee
func (d *DB) UpsertEmployee(ctx context.Context, e attributes.Employee) error {
	skills := e.Skills
	if skills == nil {
		skills = []string{}
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO employee_attributes (employee_id, seniority_years, performance_rating, attendance_rate,
		                                 prior_offer_count, last_accepted_at, skills)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (employee_id) DO UPDATE SET
			seniority_years = EXCLUDED.seniority_years,
			performance_rating = EXCLUDED.performance_rating,
			attendance_rate = EXCLUDED.attendance_rate,
			prior_offer_count = EXCLUDED.prior_offer_count,
			last_accepted_at = EXCLUDED.last_accepted_at,
			skills = EXCLUDED.skills
	`, e.EmployeeID, e.SeniorityYears, e.PerformanceRating, e.AttendanceRate, e.PriorOfferCount,
		e.LastAcceptedAt, skills)
	if err != nil {
		return fmt.Errorf("failed to upsert employee attributes: %w", err)
	}
	return nil
}
